// Package bytecode inspects deployed EVM code for token risk features.
package bytecode

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// MintSelector is mint(address,uint256).
var MintSelector = [4]byte{0x40, 0xc1, 0x0f, 0x19}

var (
	transferSig  = [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	balanceOfSig = [4]byte{0x70, 0xa0, 0x82, 0x31}

	transferEventTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef").Bytes()
	eip1967Impl        = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc").Bytes()
	eip1967Admin       = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103").Bytes()
)

type selectorFlag struct {
	flag  string
	score int
}

// Selectors for privileged token functions, as they appear in the dispatcher.
var selectors = map[[4]byte]selectorFlag{
	MintSelector:             {"Mintable", 10},
	{0x42, 0x96, 0x6c, 0x68}: {"Burnable", 0},
	{0xf2, 0xfd, 0xe3, 0x8b}: {"Ownable", 0},
	{0x71, 0x50, 0x18, 0xa6}: {"RenounceOwnership", 0},
	{0x1d, 0x3b, 0x9e, 0xdf}: {"Blacklist", 20},
	{0xfe, 0x57, 0x5a, 0x87}: {"Blacklist", 20},
	{0x36, 0x59, 0xcf, 0xe6}: {"Upgradable", 5},
	{0x84, 0x56, 0xcb, 0x59}: {"Pausable", 15},
	{0x8f, 0x70, 0xcc, 0xf7}: {"TradingToggle", 15},
	{0xec, 0x28, 0x43, 0x8a}: {"MaxTxLimit", 10},
	{0x3c, 0xcf, 0xd6, 0x0b}: {"Withdrawal", 0},
	{0x2e, 0x1a, 0x7d, 0x4d}: {"Withdrawal", 0},
}

// Analysis is the outcome of one code walk.
type Analysis struct {
	Flags []string `json:"flags"`
	Score int      `json:"score"`
}

func (a Analysis) Has(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AnalyzeCode performs static analysis on contract bytecode to identify risks and features.
func AnalyzeCode(code []byte) Analysis {
	return NewAnalyzer(code).Analyze()
}

type Analyzer struct {
	code []byte

	flags    []string
	score    int
	detected map[string]bool

	lastOp       byte
	lastPushData []byte

	hasSelfDestruct  bool
	hasDelegateCall  bool
	hasCaller        bool
	hasOrigin        bool
	hasTimestamp     bool
	hasSstore        bool
	hasSubConstant   bool
	hasDiv           bool
	hasTransferSig   bool
	hasBalanceOf     bool
	hasTransferEvent bool
	hasEIP1967       bool
	countLogs        int
}

func NewAnalyzer(code []byte) *Analyzer {
	return &Analyzer{
		code:     code,
		flags:    []string{},
		detected: make(map[string]bool),
	}
}

func (a *Analyzer) addFlag(flag string, s int) {
	if !a.detected[flag] {
		a.detected[flag] = true
		a.flags = append(a.flags, flag)
		a.score += s
	}
}

func isPush(op byte) bool { return op >= 0x60 && op <= 0x7F }

func (a *Analyzer) Analyze() Analysis {
	code := a.code
	pc := 0
	for pc < len(code) {
		op := code[pc]

		// Skip PUSH data (PUSH1=0x60 ... PUSH32=0x7F)
		if isPush(op) {
			n := int(op - 0x5F)
			if pc+1+n <= len(code) {
				a.lastPushData = code[pc+1 : pc+1+n]
				a.inspectPush(op, a.lastPushData)
			} else {
				a.lastPushData = nil
			}
			a.lastOp = op
			pc += n + 1
			continue
		}

		switch op {
		case 0x03: // SUB
			if isPush(a.lastOp) {
				a.hasSubConstant = true
			}
		case 0x04: // DIV
			a.hasDiv = true
		case 0x32: // ORIGIN
			if !a.hasOrigin {
				a.hasOrigin = true
				a.addFlag("TxOrigin", 10)
			}
		case 0x33: // CALLER
			a.hasCaller = true
		case 0x42: // TIMESTAMP
			a.hasTimestamp = true
		case 0x55: // SSTORE
			a.hasSstore = true
		case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4: // LOG0..LOG4
			a.countLogs++
		case 0xF4: // DELEGATECALL
			if !a.hasDelegateCall {
				a.hasDelegateCall = true
				a.addFlag("DelegateCall", 20)
			}
			if a.lastOp == 0x73 { // PUSH20
				a.addFlag("SuspiciousDelegate", 30)
			}
		case 0xFF: // SELFDESTRUCT
			if !a.hasSelfDestruct {
				a.hasSelfDestruct = true
				a.addFlag("SelfDestruct", 50)
			}
			if a.lastOp == 0x73 { // PUSH20
				a.addFlag("HardcodedSelfDestruct", 50)
			}
		}
		a.lastOp = op
		pc++
	}

	a.combine()
	return Analysis{Flags: a.flags, Score: a.score}
}

func (a *Analyzer) inspectPush(op byte, data []byte) {
	if op == 0x63 { // PUSH4
		var sig [4]byte
		copy(sig[:], data)
		switch sig {
		case transferSig:
			a.hasTransferSig = true
		case balanceOfSig:
			a.hasBalanceOf = true
		default:
			if f, ok := selectors[sig]; ok {
				a.addFlag(f.flag, f.score)
			}
		}
	}
	if op == 0x7F { // PUSH32
		if bytes.Equal(data, transferEventTopic) {
			a.hasTransferEvent = true
		}
		if bytes.Equal(data, eip1967Impl) || bytes.Equal(data, eip1967Admin) {
			a.hasEIP1967 = true
		}
	}
}

// combine derives flags that need the whole walk.
func (a *Analyzer) combine() {
	if a.hasTransferSig && !a.hasSstore {
		a.addFlag("FakeToken", 50)
	}
	if a.hasTransferSig && a.hasDiv {
		a.addFlag("TaxToken", 20)
	}
	if a.hasTransferSig && a.hasSubConstant {
		a.addFlag("HiddenFee", 20)
	}
	if a.hasTransferSig && a.hasTimestamp {
		a.addFlag("TradingCooldown", 10)
	}
	if a.hasTransferEvent && a.countLogs == 0 {
		a.addFlag("FakeTransferEvent", 50)
	}
	if a.hasBalanceOf && !a.hasSstore {
		a.addFlag("FakeHighBalance", 40)
	}
	if a.hasSelfDestruct && a.hasCaller {
		a.addFlag("PrivilegedSelfDestruct", 20)
	}
	if a.hasDelegateCall && a.hasEIP1967 {
		a.addFlag("ProxyEIP1967", 0)
	}
	if a.hasDelegateCall && !a.hasEIP1967 {
		a.addFlag("NonStandardProxy", 20)
	}
	if a.detected["Mintable"] && !a.detected["Ownable"] {
		a.addFlag("PublicMint", 30)
	}
	if a.detected["Upgradable"] && !a.detected["Ownable"] {
		a.addFlag("UnprotectedUpgrade", 40)
	}
}

// HasSelector reports whether sel appears as PUSH4 data in code.
func HasSelector(code []byte, sel [4]byte) bool {
	pc := 0
	for pc < len(code) {
		op := code[pc]
		if isPush(op) {
			n := int(op - 0x5F)
			if op == 0x63 && pc+5 <= len(code) && bytes.Equal(code[pc+1:pc+5], sel[:]) {
				return true
			}
			pc += n + 1
			continue
		}
		pc++
	}
	return false
}

// HasSelfDestructByte reports whether 0xff appears anywhere in code. It is a
// raw byte scan: PUSH data, constants and the metadata trailer all match.
func HasSelfDestructByte(code []byte) bool {
	return bytes.IndexByte(code, 0xff) >= 0
}

// DetectTokenType guesses the token standard from interface selectors.
func DetectTokenType(code []byte) string {
	switch {
	case bytes.Contains(code, []byte{0xa9, 0x05, 0x9c, 0xbb}):
		return "ERC20"
	case bytes.Contains(code, []byte{0x80, 0xac, 0x58, 0xcd}):
		return "ERC721"
	case bytes.Contains(code, []byte{0xd9, 0xb6, 0x7a, 0x26}):
		return "ERC1155"
	default:
		return ""
	}
}
