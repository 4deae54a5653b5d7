package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	target = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	quote  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	lp     = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func ptr[T any](v T) *T { return &v }

func sampleReport(mutate func(*risk.Inputs)) *risk.RiskReport {
	in := risk.Inputs{
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ChainID:     8453,
		Pair:        risk.PairHandle{Pair: lp, Token0: target, Token1: quote, Target: target, Quote: quote},
		Token: risk.TokenStaticInfo{
			Address: target, Name: ptr("Test Token"), Symbol: ptr("TST"), Decimals: ptr(uint8(2)),
			TotalSupply: risk.Ok(uint256.NewInt(100000)),
		},
		Quote: risk.TokenStaticInfo{
			Address: quote, Name: ptr("Wrapped Ether"), Symbol: ptr("WETH"), Decimals: ptr(uint8(4)),
			TotalSupply: risk.Ok(uint256.NewInt(1000000)),
		},
		Reserves:            risk.Ok(risk.Reserves{Reserve0: uint256.NewInt(99500), Reserve1: uint256.NewInt(20000)}),
		LPTotalSupply:       risk.Ok(uint256.NewInt(42)),
		Mintable:            risk.Ok(risk.NotMintable),
		SupplyFixed:         risk.Ok(risk.Fixed),
		Ownership:           risk.Ok(risk.Ownership{Status: risk.NotRenounced, Owner: owner}),
		AgeDays:             risk.Ok(12),
		SelfDestructPresent: risk.Ok(false),
		Volume24h: risk.Ok(risk.Volume{
			Token0: uint256.NewInt(1500), Token1: uint256.NewInt(0), FromBlock: 10, ToBlock: 20, Swaps: 3,
		}),
		MintSelector:  risk.Ok(false),
		CodeFlags:     risk.Ok(bytecode.Analysis{}),
		TokenStandard: "ERC20",
		QuoteSignals: risk.QuoteSignals{
			Mintable:            risk.Ok(risk.NotMintable),
			SupplyFixed:         risk.Ok(risk.Fixed),
			Ownership:           risk.Ok(risk.Ownership{Status: risk.Renounced}),
			AgeDays:             risk.Ok(400),
			SelfDestructPresent: risk.Ok(false),
		},
	}
	if mutate != nil {
		mutate(&in)
	}
	r := risk.Assemble(in)
	return &r
}

func TestTextHealthy(t *testing.T) {
	out := Text(sampleReport(nil))

	assert.Contains(t, out, "Rug check: TST on chain 8453")
	assert.Contains(t, out, "Test Token (TST) "+target.Hex()+", decimals 2")
	assert.Contains(t, out, "1000 TST")
	assert.Contains(t, out, "995 TST / 2 WETH")
	assert.Contains(t, out, "0.00201005025125628141 WETH per TST")
	assert.Contains(t, out, "LOCKED (99.50% of supply in pool)")
	assert.Contains(t, out, "2.010050 WETH")
	assert.Contains(t, out, "NOT_MINTABLE")
	assert.Contains(t, out, "NOT_RENOUNCED (owner "+owner.Hex()+")")
	assert.Contains(t, out, "12 days")
	assert.Contains(t, out, "15 TST in / 0 WETH in, 3 swaps in blocks 10-20")
	assert.Contains(t, out, "Code flags:")
	assert.Contains(t, out, "Caveats:")
	assert.NotContains(t, out, "FAILED")

	// 1000000 * 99500 / 20000 raw TST, at 2 decimals
	assert.Contains(t, out, "Quote market cap:")
	assert.Contains(t, out, "49750.000000 TST")
	assert.Contains(t, out, "400 days")
	assert.Regexp(t, `Quote ownership:\s+RENOUNCED`, out)
	assert.NotContains(t, out, "Summary:")
}

func TestFailedSignalsAreVisible(t *testing.T) {
	r := sampleReport(func(in *risk.Inputs) {
		in.Mintable = risk.Failed[risk.Mintability]("timeout")
		in.SupplyFixed = risk.Failed[risk.SupplyStatus]("timeout")
		in.Ownership = risk.Failed[risk.Ownership]("ownership function not found")
		in.Reserves = risk.Failed[risk.Reserves]("execution reverted")
		in.QuoteSignals = risk.QuoteSignals{}
	})
	// Caveat prose names the statuses; only the signal rows matter here.
	r.Caveats = nil

	for name, out := range map[string]string{"text": Text(r), "markdown": Markdown(r)} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, out, "FAILED (timeout)")
			assert.Contains(t, out, "FAILED (ownership function not found)")
			assert.Contains(t, out, "FAILED (execution reverted)")
			assert.Contains(t, out, "UNKNOWN")
			assert.Contains(t, out, "FAILED (not collected)")
			assert.NotContains(t, out, "NOT_MINTABLE")
			assert.NotContains(t, out, "RENOUNCED")
			assert.NotContains(t, out, "FIXED")
		})
	}
}

func TestMarkdown(t *testing.T) {
	r := sampleReport(nil)
	r.Narrative = ptr("Owner keeps control | watch it.")
	out := Markdown(r)

	assert.True(t, strings.HasPrefix(out, "# Rug check: TST\n"))
	assert.Contains(t, out, "| Signal | Value |")
	assert.Contains(t, out, "| Mintable | NOT_MINTABLE |")
	assert.Contains(t, out, "| Quote age | 400 days |")
	assert.Contains(t, out, "## Summary\n\nOwner keeps control | watch it.")
	assert.Contains(t, out, "## Caveats")
}

func TestUnknownDecimalsFallBackToRawUnits(t *testing.T) {
	r := sampleReport(func(in *risk.Inputs) {
		in.Quote.Decimals = nil
	})
	out := Text(r)
	assert.Contains(t, out, "20000 raw WETH")
	assert.Contains(t, out, "20100.50 raw WETH")
}

func TestJSON(t *testing.T) {
	r := sampleReport(func(in *risk.Inputs) {
		in.AgeDays = risk.Failed[int]("contract creation not found")
	})
	b, err := JSON(r)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, map[string]interface{}{"status": "failed", "reason": "contract creation not found"}, got["ageDays"])
	assert.Equal(t, map[string]interface{}{"status": "ok", "value": "NOT_MINTABLE"}, got["mintable"])
	assert.Equal(t, "LOCKED", got["liquidityStatus"])
	assert.Nil(t, got["narrative"])

	var back risk.RiskReport
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "contract creation not found", back.AgeDays.Reason())
}

func TestWrite(t *testing.T) {
	r := sampleReport(nil)

	for _, format := range []string{"", FormatText, FormatMarkdown, "markdown", FormatJSON} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, format, r), format)
		assert.NotEmpty(t, buf.String(), format)
	}

	err := Write(&bytes.Buffer{}, "yaml", r)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestAppendJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	require.NoError(t, AppendJSONL(path, sampleReport(nil)))
	require.NoError(t, AppendJSONL(path, sampleReport(func(in *risk.Inputs) {
		in.ChainID = 1
	})))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var chains []uint64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var r risk.RiskReport
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		chains = append(chains, r.ChainID)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []uint64{8453, 1}, chains)
}
