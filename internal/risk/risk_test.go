package risk

import (
	"encoding/json"
	"testing"
	"time"

	"eth-rugcheck/internal/bytecode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	target = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	quote  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pair   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestResultJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"ok int", Ok(3), `{"status":"ok","value":3}`},
		{"ok zero", Ok(0), `{"status":"ok","value":0}`},
		{"ok bool", Ok(false), `{"status":"ok","value":false}`},
		{"ok uint256", Ok(u(15)), `{"status":"ok","value":"15"}`},
		{"failed", Failed[int]("timeout"), `{"status":"failed","reason":"timeout"}`},
		{"zero value", Result[int]{}, `{"status":"failed","reason":"not collected"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestResultUnmarshal(t *testing.T) {
	var ok Result[Mintability]
	if err := json.Unmarshal([]byte(`{"status":"ok","value":"MINTABLE"}`), &ok); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, isOk := ok.Get(); !isOk || v != Mintable {
		t.Errorf("got %v %v, want MINTABLE ok", v, isOk)
	}

	var failed Result[int]
	if err := json.Unmarshal([]byte(`{"status":"failed","reason":"no receipt"}`), &failed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if failed.IsOk() || failed.Reason() != "no receipt" {
		t.Errorf("got %+v, want failed(no receipt)", failed)
	}

	var bad Result[int]
	if err := json.Unmarshal([]byte(`{"status":"maybe"}`), &bad); err == nil {
		t.Errorf("expected error for unknown status")
	}
}

func TestMapAndFailedAs(t *testing.T) {
	double := func(v int) int { return v * 2 }
	if v, ok := Map(Ok(4), double).Get(); !ok || v != 8 {
		t.Errorf("Map(Ok(4)) = %v %v", v, ok)
	}
	if r := Map(Failed[int]("boom"), double); r.IsOk() || r.Reason() != "boom" {
		t.Errorf("Map(Failed) = %+v", r)
	}
	if r := FailedAs[string](Failed[int]("boom")); r.Reason() != "boom" {
		t.Errorf("FailedAs reason = %q", r.Reason())
	}
}

func TestParseAddress(t *testing.T) {
	a, ok := ParseAddress("0xd9aa594f65d163c22072c0edfc7923a7f3470cc1")
	b, ok2 := ParseAddress(" 0xD9AA594F65D163C22072C0EDFC7923A7F3470CC1 ")
	if !ok || !ok2 || a != b {
		t.Errorf("case variants should parse to the same address: %s %s", a.Hex(), b.Hex())
	}
	for _, bad := range []string{"", "d9aa594f65d163c22072c0edfc7923a7f3470cc1", "0x1234", "0xzz"} {
		if _, ok := ParseAddress(bad); ok {
			t.Errorf("ParseAddress(%q) should fail", bad)
		}
	}
	if !IsZero(common.Address{}) || IsZero(a) {
		t.Errorf("IsZero misclassified")
	}
}

func baseInputs() Inputs {
	return Inputs{
		GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ChainID:     8453,
		Pair:        PairHandle{Pair: pair, Token0: target, Token1: quote, Target: target, Quote: quote},
		Token:       TokenStaticInfo{Address: target, TotalSupply: Ok(u(1000))},
		Quote:       TokenStaticInfo{Address: quote, TotalSupply: Ok(u(1_000_000))},
		Reserves:    Ok(Reserves{Reserve0: u(995), Reserve1: u(500)}),
	}
}

func TestAssembleDerivesMetrics(t *testing.T) {
	r := Assemble(baseInputs())

	if r.LiquidityStatus != Locked {
		t.Errorf("LiquidityStatus = %s, want LOCKED", r.LiquidityStatus)
	}
	if r.QuoteLiquidityStatus != FullyUnlocked {
		t.Errorf("QuoteLiquidityStatus = %s, want FULLY_UNLOCKED", r.QuoteLiquidityStatus)
	}
	mc, ok := r.MarketCap.Get()
	// 1000 * 500 / 995
	if !ok || !mc.Equal(decimal.RequireFromString("502.512562814070351759")) {
		t.Errorf("MarketCap = %s %v", mc, ok)
	}
	if pct, ok := r.LockedPercent.Get(); !ok || !pct.Equal(decimal.RequireFromString("99.5")) {
		t.Errorf("LockedPercent = %s %v", pct, ok)
	}
}

func TestAssembleOrientsReservesWhenTargetIsToken1(t *testing.T) {
	in := baseInputs()
	in.Pair.Token0, in.Pair.Token1 = quote, target
	in.Reserves = Ok(Reserves{Reserve0: u(500), Reserve1: u(995)})

	r := Assemble(in)
	if r.LiquidityStatus != Locked {
		t.Errorf("LiquidityStatus = %s, want LOCKED", r.LiquidityStatus)
	}
	if mc, _ := r.MarketCap.Get(); !mc.Equal(decimal.RequireFromString("502.512562814070351759")) {
		t.Errorf("MarketCap = %s", mc)
	}
}

func TestAssembleZeroSupplyIsUnknown(t *testing.T) {
	in := baseInputs()
	in.Token.TotalSupply = Ok(u(0))
	in.Reserves = Ok(Reserves{Reserve0: u(1000), Reserve1: u(1)})

	r := Assemble(in)
	if r.LiquidityStatus != Unknown {
		t.Errorf("LiquidityStatus = %s, want UNKNOWN", r.LiquidityStatus)
	}
	if r.LockedPercent.IsOk() {
		t.Errorf("LockedPercent should fail for zero supply")
	}
	if mc, ok := r.MarketCap.Get(); !ok || !mc.IsZero() {
		t.Errorf("MarketCap = %s %v, want Ok(0)", mc, ok)
	}
}

func TestAssembleCarriesFailuresVerbatim(t *testing.T) {
	in := baseInputs()
	in.Token.TotalSupply = Failed[*uint256.Int]("execution reverted")
	in.Ownership = Failed[Ownership]("ownership function not found")
	in.AgeDays = Failed[int]("timeout")

	r := Assemble(in)
	if r.LiquidityStatus != Unknown {
		t.Errorf("LiquidityStatus = %s, want UNKNOWN", r.LiquidityStatus)
	}
	if r.MarketCap.IsOk() || r.MarketCap.Reason() != "execution reverted" {
		t.Errorf("MarketCap = %+v, want failed(execution reverted)", r.MarketCap)
	}
	if r.Ownership.Reason() != "ownership function not found" || r.AgeDays.Reason() != "timeout" {
		t.Errorf("failures not carried verbatim: %q %q", r.Ownership.Reason(), r.AgeDays.Reason())
	}
	// Never-collected slots stay failed rather than defaulting to success.
	if r.Mintable.IsOk() || r.Volume24h.IsOk() {
		t.Errorf("uncollected probes must not read as Ok")
	}
}

func TestAssembleFailedReserves(t *testing.T) {
	in := baseInputs()
	in.Reserves = Failed[Reserves]("transport error (getReserves): EOF")

	r := Assemble(in)
	if r.LiquidityStatus != Unknown || r.QuoteLiquidityStatus != Unknown {
		t.Errorf("statuses = %s/%s, want UNKNOWN", r.LiquidityStatus, r.QuoteLiquidityStatus)
	}
	if r.MarketCap.Reason() != "transport error (getReserves): EOF" {
		t.Errorf("MarketCap reason = %q", r.MarketCap.Reason())
	}
}

func TestAssembleQuoteSignals(t *testing.T) {
	in := baseInputs()
	in.QuoteSignals = QuoteSignals{
		MarketCap:           Ok(decimal.NewFromInt(1)),
		Mintable:            Ok(Mintable),
		Ownership:           Failed[Ownership]("ownership function not found"),
		SelfDestructPresent: Ok(false),
	}

	r := Assemble(in)
	// 1_000_000 * 995 / 500, in raw target units
	if mc, ok := r.QuoteSignals.MarketCap.Get(); !ok || !mc.Equal(decimal.NewFromInt(1_990_000)) {
		t.Errorf("quote MarketCap = %s %v", mc, ok)
	}
	if v, _ := r.QuoteSignals.Mintable.Get(); v != Mintable {
		t.Errorf("quote Mintable = %+v", r.QuoteSignals.Mintable)
	}
	if r.QuoteSignals.Ownership.Reason() != "ownership function not found" {
		t.Errorf("quote Ownership = %+v", r.QuoteSignals.Ownership)
	}
	if r.QuoteSignals.AgeDays.IsOk() || r.QuoteSignals.SupplyFixed.IsOk() {
		t.Errorf("uncollected quote checks must not read as Ok")
	}

	in.Quote.TotalSupply = Failed[*uint256.Int]("execution reverted")
	if got := Assemble(in).QuoteSignals.MarketCap.Reason(); got != "execution reverted" {
		t.Errorf("quote MarketCap reason = %q", got)
	}
	in.Reserves = Failed[Reserves]("timeout")
	if got := Assemble(in).QuoteSignals.MarketCap.Reason(); got != "timeout" {
		t.Errorf("quote MarketCap reason = %q", got)
	}
}

func TestPairHandleForQuote(t *testing.T) {
	h := PairHandle{Pair: pair, Token0: target, Token1: quote, Target: target, Quote: quote}
	q := h.ForQuote()
	if q.Target != quote || q.Quote != target || q.QuoteToken() != target {
		t.Errorf("ForQuote = %+v", q)
	}
	if q.TargetIsToken0() || q.Pair != pair {
		t.Errorf("ForQuote changed the pair layout: %+v", q)
	}
}

func TestAssembleCaveats(t *testing.T) {
	in := baseInputs()
	in.SelfDestructPresent = Ok(true)
	in.CodeFlags = Ok(bytecode.Analysis{Flags: []string{"Ownable"}})

	r := Assemble(in)
	found := map[string]bool{}
	for _, c := range r.Caveats {
		found[c] = true
	}
	for _, want := range []string{CaveatSpotPrice, CaveatSelfDestruct, CaveatMintCall, CaveatVolumeWindow, caveatLikelyFalsePositive} {
		if !found[want] {
			t.Errorf("missing caveat %q", want)
		}
	}
	if v, _ := r.SelfDestructPresent.Get(); !v {
		t.Errorf("self-destruct finding must be reported as found, not corrected")
	}

	in.CodeFlags = Ok(bytecode.Analysis{Flags: []string{"SelfDestruct"}})
	for _, c := range Assemble(in).Caveats {
		if c == caveatLikelyFalsePositive {
			t.Errorf("false-positive caveat with a decoded SELFDESTRUCT")
		}
	}
}

func TestReportJSONIsComplete(t *testing.T) {
	b, err := json.Marshal(Assemble(baseInputs()))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, k := range []string{"marketCap", "mintable", "supplyFixed", "ownership", "ageDays", "selfDestructPresent", "volume24h", "liquidityStatus", "quoteSignals", "narrative"} {
		if _, ok := m[k]; !ok {
			t.Errorf("report JSON missing %q", k)
		}
	}

	var back RiskReport
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal report: %v", err)
	}
	if back.LiquidityStatus != Locked || back.Pair.Pair != pair {
		t.Errorf("decoded report mismatch: %+v", back.Pair)
	}
}
