// Package risk holds the report model and its assembly from probe results.
package risk

import (
	"strings"
	"time"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/derive"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// IsZero reports whether addr is the "no contract / no owner" sentinel.
func IsZero(addr common.Address) bool { return addr == (common.Address{}) }

// ParseAddress accepts 0x-prefixed hex in any case and canonicalises it.
func ParseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, false
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// PairHandle identifies the liquidity pair of one run.
type PairHandle struct {
	Pair   common.Address `json:"pair"`
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	Target common.Address `json:"target"`
	Quote  common.Address `json:"quote"`
}

func (p PairHandle) TargetIsToken0() bool { return p.Token0 == p.Target }

// QuoteToken is the pair side that is not the target.
func (p PairHandle) QuoteToken() common.Address {
	if p.TargetIsToken0() {
		return p.Token1
	}
	return p.Token0
}

// ForQuote is the same pair seen from the quote token's side.
func (p PairHandle) ForQuote() PairHandle {
	p.Target, p.Quote = p.QuoteToken(), p.Target
	return p
}

type TokenStaticInfo struct {
	Address     common.Address       `json:"address"`
	Name        *string              `json:"name"`
	Symbol      *string              `json:"symbol"`
	Decimals    *uint8               `json:"decimals"`
	TotalSupply Result[*uint256.Int] `json:"totalSupply"`
}

// Label is the symbol, else the name, else the address.
func (t TokenStaticInfo) Label() string {
	if t.Symbol != nil && *t.Symbol != "" {
		return *t.Symbol
	}
	if t.Name != nil && *t.Name != "" {
		return *t.Name
	}
	return t.Address.Hex()
}

type Reserves struct {
	Reserve0           *uint256.Int `json:"reserve0"`
	Reserve1           *uint256.Int `json:"reserve1"`
	BlockTimestampLast uint32       `json:"blockTimestampLast"`
}

// Oriented returns the target-side and quote-side reserves.
func (r Reserves) Oriented(p PairHandle) (target, quote *uint256.Int) {
	if p.TargetIsToken0() {
		return r.Reserve0, r.Reserve1
	}
	return r.Reserve1, r.Reserve0
}

type LiquidityStatus = derive.LiquidityStatus

const (
	Locked          = derive.Locked
	PartiallyLocked = derive.PartiallyLocked
	FullyUnlocked   = derive.FullyUnlocked
	Unknown         = derive.Unknown
)

type Mintability string

const (
	Mintable    Mintability = "MINTABLE"
	NotMintable Mintability = "NOT_MINTABLE"
)

type SupplyStatus string

const (
	Fixed    SupplyStatus = "FIXED"
	NotFixed SupplyStatus = "NOT_FIXED"
)

type OwnershipStatus string

const (
	Renounced    OwnershipStatus = "RENOUNCED"
	NotRenounced OwnershipStatus = "NOT_RENOUNCED"
)

type Ownership struct {
	Status OwnershipStatus `json:"status"`
	Owner  common.Address  `json:"owner"`
}

// Volume is the swap input volume of each pair side over a block window.
type Volume struct {
	Token0    *uint256.Int `json:"token0"`
	Token1    *uint256.Int `json:"token1"`
	FromBlock uint64       `json:"fromBlock"`
	ToBlock   uint64       `json:"toBlock"`
	Swaps     int          `json:"swaps"`
}

// QuoteSignals repeats the per-token checks on the quote side of the pair.
// MarketCap is priced in raw target units.
type QuoteSignals struct {
	MarketCap           Result[decimal.Decimal] `json:"marketCap"`
	Mintable            Result[Mintability]     `json:"mintable"`
	SupplyFixed         Result[SupplyStatus]    `json:"supplyFixed"`
	Ownership           Result[Ownership]       `json:"ownership"`
	AgeDays             Result[int]             `json:"ageDays"`
	SelfDestructPresent Result[bool]            `json:"selfDestructPresent"`
}

type RiskReport struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	ChainID     uint64     `json:"chainId"`
	Pair        PairHandle `json:"pair"`

	Token TokenStaticInfo `json:"token"`
	Quote TokenStaticInfo `json:"quote"`

	Reserves             Result[Reserves]        `json:"reserves"`
	LPTotalSupply        Result[*uint256.Int]    `json:"lpTotalSupply"`
	LiquidityStatus      LiquidityStatus         `json:"liquidityStatus"`
	QuoteLiquidityStatus LiquidityStatus         `json:"quoteLiquidityStatus"`
	LockedPercent        Result[decimal.Decimal] `json:"lockedPercent"`
	MarketCap            Result[decimal.Decimal] `json:"marketCap"`

	Mintable            Result[Mintability]       `json:"mintable"`
	SupplyFixed         Result[SupplyStatus]      `json:"supplyFixed"`
	Ownership           Result[Ownership]         `json:"ownership"`
	AgeDays             Result[int]               `json:"ageDays"`
	SelfDestructPresent Result[bool]              `json:"selfDestructPresent"`
	Volume24h           Result[Volume]            `json:"volume24h"`
	MintSelector        Result[bool]              `json:"mintSelector"`
	CodeFlags           Result[bytecode.Analysis] `json:"codeFlags"`
	TokenStandard       string                    `json:"tokenStandard,omitempty"`

	QuoteSignals QuoteSignals `json:"quoteSignals"`

	Caveats   []string `json:"caveats"`
	Narrative *string  `json:"narrative"`
}
