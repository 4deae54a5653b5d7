// Package pair finds the liquidity pair of a token through a V2-style factory.
package pair

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/metrics"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPairNotFound is wrapped by every ResolutionError.
var ErrPairNotFound = errors.New("no liquidity pair found")

// ResolutionError means no pair exists against any configured quote token.
type ResolutionError struct {
	Token  common.Address
	Quotes []common.Address
}

func (e *ResolutionError) Error() string {
	qs := make([]string, len(e.Quotes))
	for i, q := range e.Quotes {
		qs[i] = q.Hex()
	}
	return fmt.Sprintf("%v for %s against [%s]", ErrPairNotFound, e.Token.Hex(), strings.Join(qs, ", "))
}

func (e *ResolutionError) Unwrap() error { return ErrPairNotFound }

type Resolver struct {
	client  chain.Client
	factory common.Address
	metrics *metrics.CheckerMetrics

	// Labels quote addresses in metrics and logs.
	Symbol func(common.Address) string
}

func NewResolver(client chain.Client, factory common.Address, m *metrics.CheckerMetrics) *Resolver {
	if m == nil {
		m = metrics.NewCheckerMetrics()
	}
	return &Resolver{client: client, factory: factory, metrics: m}
}

func (r *Resolver) label(q common.Address) string {
	if r.Symbol != nil {
		if s := r.Symbol(q); s != "" {
			return s
		}
	}
	return q.Hex()
}

// Resolve tries quotes in order and stops at the first non-zero pair. A
// quote equal to token is skipped. Transport failures come back as
// *chain.TransportError. A factory that answers with no data is not a factory,
// so that aborts too; a reverting lookup counts as "no pair".
func (r *Resolver) Resolve(ctx context.Context, token common.Address, quotes []common.Address) (risk.PairHandle, error) {
	for _, q := range quotes {
		if q == token {
			continue
		}
		addr, err := chain.CallAddress(ctx, r.client, chain.FactoryABI, r.factory, "getPair", token, q)
		if err != nil {
			if errors.Is(err, chain.ErrEmptyReturn) {
				r.metrics.PairLookups.WithLabelValues(r.label(q), "error").Inc()
				return risk.PairHandle{}, fmt.Errorf("factory %s returned no data for getPair: %w", r.factory.Hex(), err)
			}
			if !chain.IsContractFailure(err) {
				r.metrics.PairLookups.WithLabelValues(r.label(q), "error").Inc()
				return risk.PairHandle{}, asTransport("getPair", err)
			}
			log.Printf("getPair(%s, %s) failed: %v", token.Hex(), r.label(q), err)
			r.metrics.PairLookups.WithLabelValues(r.label(q), "error").Inc()
			continue
		}
		if risk.IsZero(addr) {
			r.metrics.PairLookups.WithLabelValues(r.label(q), "zero").Inc()
			continue
		}
		r.metrics.PairLookups.WithLabelValues(r.label(q), "found").Inc()
		return r.handle(ctx, addr, token, q)
	}
	return risk.PairHandle{}, &ResolutionError{Token: token, Quotes: quotes}
}

func (r *Resolver) handle(ctx context.Context, pairAddr, token, quote common.Address) (risk.PairHandle, error) {
	t0, err := chain.CallAddress(ctx, r.client, chain.PairABI, pairAddr, "token0")
	if err != nil {
		return risk.PairHandle{}, asTransport("token0", err)
	}
	t1, err := chain.CallAddress(ctx, r.client, chain.PairABI, pairAddr, "token1")
	if err != nil {
		return risk.PairHandle{}, asTransport("token1", err)
	}
	if t0 != token && t1 != token {
		return risk.PairHandle{}, fmt.Errorf("pair %s does not hold %s (token0 %s, token1 %s)", pairAddr.Hex(), token.Hex(), t0.Hex(), t1.Hex())
	}
	log.Printf("Resolved pair %s for %s against %s", pairAddr.Hex(), token.Hex(), r.label(quote))
	return risk.PairHandle{Pair: pairAddr, Token0: t0, Token1: t1, Target: token, Quote: quote}, nil
}

// asTransport keeps transport errors typed and wraps everything else with the op.
func asTransport(op string, err error) error {
	var te *chain.TransportError
	if errors.As(err, &te) {
		return err
	}
	if chain.IsTimeout(err) {
		return &chain.TransportError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
