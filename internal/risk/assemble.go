package risk

import (
	"time"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/derive"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	CaveatSpotPrice    = "Market cap uses the pool spot price (reserve ratio) in the quote token's raw units; it is an approximation, not an oracle price."
	CaveatSelfDestruct = "Self-destruct detection scans for any 0xff byte in the deployed code; PUSH data, constants and metadata can match, so a positive result is a static-pattern heuristic, not proof."
	CaveatMintCall     = "Mintability is inferred from a zero-argument mint() call; most real mint functions take arguments and revert on this call, so NOT_MINTABLE is weak evidence. See the mint selector check."
	CaveatVolumeWindow = "24h volume uses a block window estimated from a fixed average block time; variable block times skew the window."
	CaveatLiquidity    = "Liquidity status compares the pool's reserve of a token with that token's total supply; it does not inspect LP token locks."

	caveatLikelyFalsePositive = "The 0xff byte was found but no SELFDESTRUCT opcode was decoded at an instruction boundary; the self-destruct finding is likely a false positive."
)

// Inputs is every probe outcome of one run.
type Inputs struct {
	GeneratedAt time.Time
	ChainID     uint64
	Pair        PairHandle

	Token TokenStaticInfo
	Quote TokenStaticInfo

	Reserves      Result[Reserves]
	LPTotalSupply Result[*uint256.Int]

	Mintable            Result[Mintability]
	SupplyFixed         Result[SupplyStatus]
	Ownership           Result[Ownership]
	AgeDays             Result[int]
	SelfDestructPresent Result[bool]
	Volume24h           Result[Volume]
	MintSelector        Result[bool]
	CodeFlags           Result[bytecode.Analysis]
	TokenStandard       string

	// MarketCap is derived by Assemble and ignored here.
	QuoteSignals QuoteSignals
}

// Assemble builds the report. It performs no I/O and carries every failure
// through unchanged.
func Assemble(in Inputs) RiskReport {
	r := RiskReport{
		GeneratedAt:         in.GeneratedAt,
		ChainID:             in.ChainID,
		Pair:                in.Pair,
		Token:               in.Token,
		Quote:               in.Quote,
		Reserves:            in.Reserves,
		LPTotalSupply:       in.LPTotalSupply,
		Mintable:            in.Mintable,
		SupplyFixed:         in.SupplyFixed,
		Ownership:           in.Ownership,
		AgeDays:             in.AgeDays,
		SelfDestructPresent: in.SelfDestructPresent,
		Volume24h:           in.Volume24h,
		MintSelector:        in.MintSelector,
		CodeFlags:           in.CodeFlags,
		TokenStandard:       in.TokenStandard,
		QuoteSignals:        in.QuoteSignals,
	}

	r.LiquidityStatus, r.QuoteLiquidityStatus = Unknown, Unknown
	r.LockedPercent = Failed[decimal.Decimal]("not computed")
	r.MarketCap = Failed[decimal.Decimal]("not computed")

	reserves, resOk := in.Reserves.Get()
	supply, supplyOk := in.Token.TotalSupply.Get()

	switch {
	case !resOk:
		r.LockedPercent = FailedAs[decimal.Decimal](in.Reserves)
		r.MarketCap = FailedAs[decimal.Decimal](in.Reserves)
	case !supplyOk:
		r.LockedPercent = FailedAs[decimal.Decimal](in.Token.TotalSupply)
		r.MarketCap = FailedAs[decimal.Decimal](in.Token.TotalSupply)
	default:
		target, quote := reserves.Oriented(in.Pair)
		r.LiquidityStatus = derive.Liquidity(target, supply)
		if pct, ok := derive.LockedPercent(target, supply); ok {
			r.LockedPercent = Ok(pct)
		} else {
			r.LockedPercent = Failed[decimal.Decimal]("total supply is zero")
		}
		r.MarketCap = Ok(derive.MarketCap(supply, target, quote))
	}

	quoteSupply, quoteSupplyOk := in.Quote.TotalSupply.Get()
	switch {
	case !resOk:
		r.QuoteSignals.MarketCap = FailedAs[decimal.Decimal](in.Reserves)
	case !quoteSupplyOk:
		r.QuoteSignals.MarketCap = FailedAs[decimal.Decimal](in.Quote.TotalSupply)
	default:
		target, quote := reserves.Oriented(in.Pair)
		r.QuoteLiquidityStatus = derive.Liquidity(quote, quoteSupply)
		r.QuoteSignals.MarketCap = Ok(derive.MarketCap(quoteSupply, quote, target))
	}

	r.Caveats = caveats(in)
	return r
}

func caveats(in Inputs) []string {
	c := []string{CaveatSpotPrice, CaveatLiquidity, CaveatMintCall, CaveatSelfDestruct, CaveatVolumeWindow}

	present, ok := in.SelfDestructPresent.Get()
	analysis, aok := in.CodeFlags.Get()
	if ok && present && aok && !analysis.Has("SelfDestruct") {
		c = append(c, caveatLikelyFalsePositive)
	}
	return c
}
