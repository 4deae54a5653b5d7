package probe

import (
	"context"
	"errors"
	"time"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/metrics"
	"eth-rugcheck/internal/risk"
)

// ReasonNoOwner is the ownership failure for tokens without an owner accessor.
const ReasonNoOwner = "ownership function not found"

// Mint calls the zero-argument mint() on the target. A successful call reads
// as mintable; a revert or empty contract as fixed supply. Transport errors
// say nothing about supply and fail both results.
func Mint(ctx context.Context, env Env) (risk.Result[risk.Mintability], risk.Result[risk.SupplyStatus]) {
	_, err := chain.CallRaw(ctx, env.Client, chain.TokenABI, env.Pair.Target, "mint")
	switch {
	case err == nil:
		return risk.Ok(risk.Mintable), risk.Ok(risk.NotFixed)
	case chain.IsContractFailure(err):
		return risk.Ok(risk.NotMintable), risk.Ok(risk.Fixed)
	default:
		return fail[risk.Mintability](err), fail[risk.SupplyStatus](err)
	}
}

// Ownership reads owner(); the zero address means ownership was renounced.
func Ownership(ctx context.Context, env Env) risk.Result[risk.Ownership] {
	owner, err := chain.CallAddress(ctx, env.Client, chain.TokenABI, env.Pair.Target, "owner")
	switch {
	case err == nil && risk.IsZero(owner):
		return risk.Ok(risk.Ownership{Status: risk.Renounced})
	case err == nil:
		return risk.Ok(risk.Ownership{Status: risk.NotRenounced, Owner: owner})
	case chain.IsContractFailure(err):
		return risk.Failed[risk.Ownership](ReasonNoOwner)
	default:
		return fail[risk.Ownership](err)
	}
}

// CodeSignals are the signals read from one fetch of the target's code.
type CodeSignals struct {
	SelfDestruct risk.Result[bool]
	MintSelector risk.Result[bool]
	Flags        risk.Result[bytecode.Analysis]
	Standard     string
}

// errNoCode marks an account without deployed code.
var errNoCode = errors.New("no contract code")

func targetCode(ctx context.Context, env Env) ([]byte, error) {
	code, err := env.Client.CodeAt(ctx, env.Pair.Target, nil)
	if err != nil {
		return nil, chain.Classify("eth_getCode", err)
	}
	if len(code) == 0 {
		return nil, errNoCode
	}
	return code, nil
}

// Code fetches the target's deployed code once and derives every static signal from it.
func Code(ctx context.Context, env Env, m *metrics.CheckerMetrics) CodeSignals {
	code, err := targetCode(ctx, env)
	if err != nil {
		return CodeSignals{
			SelfDestruct: fail[bool](err),
			MintSelector: fail[bool](err),
			Flags:        fail[bytecode.Analysis](err),
		}
	}

	start := time.Now()
	analysis := bytecode.AnalyzeCode(code)
	if m != nil {
		m.CodeAnalysisDuration.Observe(time.Since(start).Seconds())
		for _, f := range analysis.Flags {
			m.CodeAnalysisFlags.WithLabelValues(f).Inc()
		}
	}

	return CodeSignals{
		SelfDestruct: risk.Ok(bytecode.HasSelfDestructByte(code)),
		MintSelector: risk.Ok(bytecode.HasSelector(code, bytecode.MintSelector)),
		Flags:        risk.Ok(analysis),
		Standard:     bytecode.DetectTokenType(code),
	}
}

// SelfDestruct reports whether the 0xff byte occurs in the target's code,
// without running the full analysis.
func SelfDestruct(ctx context.Context, env Env) risk.Result[bool] {
	code, err := targetCode(ctx, env)
	if err != nil {
		return fail[bool](err)
	}
	return risk.Ok(bytecode.HasSelfDestructByte(code))
}
