// Package pipeline runs one token through resolution, probe fan-out and
// report assembly.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/metrics"
	"eth-rugcheck/internal/pair"
	"eth-rugcheck/internal/probe"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	Idle       State = "IDLE"
	Resolving  State = "RESOLVING"
	Found      State = "FOUND"
	NotFound   State = "NOT_FOUND"
	Collecting State = "COLLECTING"
	Assembling State = "ASSEMBLING"
	Done       State = "DONE"
	Aborted    State = "ABORTED"
)

// Narrator attaches free text to a finished report.
type Narrator interface {
	Summarize(ctx context.Context, report *risk.RiskReport) (string, error)
}

type Options struct {
	Factory     common.Address
	Quotes      []common.Address
	QuoteSymbol func(common.Address) string

	ChainID        uint64
	ProbeTimeout   time.Duration
	Concurrency    int
	BlockTime      time.Duration
	LogChunkBlocks uint64
	Locator        probe.CreationLocator

	Narrator         Narrator
	NarrativeTimeout time.Duration // ProbeTimeout when zero

	Metrics *metrics.CheckerMetrics
	Now     func() time.Time
}

type Runner struct {
	client   chain.Client
	opts     Options
	resolver *pair.Resolver

	mu    sync.Mutex
	state State
}

func New(client chain.Client, opts Options) *Runner {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCheckerMetrics()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	res := pair.NewResolver(client, opts.Factory, opts.Metrics)
	res.Symbol = opts.QuoteSymbol
	return &Runner{client: client, opts: opts, resolver: res, state: Idle}
}

// State is the last state the runner reached.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run produces the report for token. Only pair resolution can fail the run;
// every probe failure is carried inside the report.
func (r *Runner) Run(ctx context.Context, token common.Address) (*risk.RiskReport, error) {
	start := time.Now()
	defer func() {
		r.opts.Metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	r.setState(Resolving)
	handle, err := r.resolver.Resolve(ctx, token, r.opts.Quotes)
	if err != nil {
		if errors.Is(err, pair.ErrPairNotFound) {
			r.setState(NotFound)
			r.opts.Metrics.RunsTotal.WithLabelValues("not_found").Inc()
		} else {
			r.opts.Metrics.RunsTotal.WithLabelValues("error").Inc()
		}
		r.setState(Aborted)
		log.Printf("Run for %s aborted: %v", token.Hex(), err)
		return nil, err
	}
	r.setState(Found)

	r.setState(Collecting)
	in := r.collect(ctx, handle)

	r.setState(Assembling)
	report := risk.Assemble(in)
	r.narrate(ctx, &report)

	r.setState(Done)
	r.opts.Metrics.RunsTotal.WithLabelValues("done").Inc()
	return &report, nil
}

func (r *Runner) collect(ctx context.Context, handle risk.PairHandle) risk.Inputs {
	env := probe.Env{
		Client:         r.client,
		Pair:           handle,
		Now:            r.opts.Now,
		BlockTime:      r.opts.BlockTime,
		LogChunkBlocks: r.opts.LogChunkBlocks,
		Locator:        r.opts.Locator,
	}
	in := risk.Inputs{
		GeneratedAt: r.opts.Now().UTC(),
		ChainID:     r.opts.ChainID,
		Pair:        handle,
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	var tokenInfo, quoteInfo risk.Result[risk.TokenStaticInfo]
	run(ctx, r, &g, "token_info", &tokenInfo, func(ctx context.Context) risk.Result[risk.TokenStaticInfo] {
		return risk.Ok(probe.StaticInfo(ctx, r.client, handle.Target))
	})
	run(ctx, r, &g, "quote_info", &quoteInfo, func(ctx context.Context) risk.Result[risk.TokenStaticInfo] {
		return risk.Ok(probe.StaticInfo(ctx, r.client, handle.QuoteToken()))
	})
	run(ctx, r, &g, "reserves", &in.Reserves, func(ctx context.Context) risk.Result[risk.Reserves] {
		return probe.Reserves(ctx, env)
	})
	run(ctx, r, &g, "lp_supply", &in.LPTotalSupply, func(ctx context.Context) risk.Result[*uint256.Int] {
		return probe.LPSupply(ctx, env)
	})

	var mint risk.Result[mintResult]
	run(ctx, r, &g, "mint", &mint, func(ctx context.Context) risk.Result[mintResult] {
		m, s := probe.Mint(ctx, env)
		if !m.IsOk() {
			return risk.FailedAs[mintResult](m)
		}
		return risk.Ok(mintResult{m, s})
	})
	run(ctx, r, &g, "ownership", &in.Ownership, func(ctx context.Context) risk.Result[risk.Ownership] {
		return probe.Ownership(ctx, env)
	})
	run(ctx, r, &g, "age", &in.AgeDays, func(ctx context.Context) risk.Result[int] {
		return probe.Age(ctx, env)
	})
	run(ctx, r, &g, "volume", &in.Volume24h, func(ctx context.Context) risk.Result[risk.Volume] {
		return probe.Volume(ctx, env)
	})

	quote := r.collectQuote(ctx, &g, env)

	var code risk.Result[probe.CodeSignals]
	run(ctx, r, &g, "code", &code, func(ctx context.Context) risk.Result[probe.CodeSignals] {
		cs := probe.Code(ctx, env, r.opts.Metrics)
		if !cs.SelfDestruct.IsOk() {
			return risk.FailedAs[probe.CodeSignals](cs.SelfDestruct)
		}
		return risk.Ok(cs)
	})

	_ = g.Wait()

	in.Token = staticOrFailed(tokenInfo, handle.Target)
	in.Quote = staticOrFailed(quoteInfo, handle.QuoteToken())

	if m, ok := mint.Get(); ok {
		in.Mintable, in.SupplyFixed = m.mintable, m.supply
	} else {
		in.Mintable = risk.FailedAs[risk.Mintability](mint)
		in.SupplyFixed = risk.FailedAs[risk.SupplyStatus](mint)
	}

	if cs, ok := code.Get(); ok {
		in.SelfDestructPresent = cs.SelfDestruct
		in.MintSelector = cs.MintSelector
		in.CodeFlags = cs.Flags
		in.TokenStandard = cs.Standard
	} else {
		in.SelfDestructPresent = risk.FailedAs[bool](code)
		in.MintSelector = risk.FailedAs[bool](code)
		in.CodeFlags = risk.FailedAs[bytecode.Analysis](code)
	}

	in.QuoteSignals = quote.signals()
	return in
}

// quoteSlots hold the quote-side results until the group is done.
type quoteSlots struct {
	mint         risk.Result[mintResult]
	ownership    risk.Result[risk.Ownership]
	age          risk.Result[int]
	selfDestruct risk.Result[bool]
}

// collectQuote schedules the per-token checks against the quote token.
func (r *Runner) collectQuote(ctx context.Context, g *errgroup.Group, env probe.Env) *quoteSlots {
	env.Pair = env.Pair.ForQuote()
	q := &quoteSlots{}

	run(ctx, r, g, "quote_mint", &q.mint, func(ctx context.Context) risk.Result[mintResult] {
		m, s := probe.Mint(ctx, env)
		if !m.IsOk() {
			return risk.FailedAs[mintResult](m)
		}
		return risk.Ok(mintResult{m, s})
	})
	run(ctx, r, g, "quote_ownership", &q.ownership, func(ctx context.Context) risk.Result[risk.Ownership] {
		return probe.Ownership(ctx, env)
	})
	run(ctx, r, g, "quote_age", &q.age, func(ctx context.Context) risk.Result[int] {
		return probe.Age(ctx, env)
	})
	run(ctx, r, g, "quote_self_destruct", &q.selfDestruct, func(ctx context.Context) risk.Result[bool] {
		return probe.SelfDestruct(ctx, env)
	})
	return q
}

func (q *quoteSlots) signals() risk.QuoteSignals {
	s := risk.QuoteSignals{
		Ownership:           q.ownership,
		AgeDays:             q.age,
		SelfDestructPresent: q.selfDestruct,
	}
	if m, ok := q.mint.Get(); ok {
		s.Mintable, s.SupplyFixed = m.mintable, m.supply
	} else {
		s.Mintable = risk.FailedAs[risk.Mintability](q.mint)
		s.SupplyFixed = risk.FailedAs[risk.SupplyStatus](q.mint)
	}
	return s
}

type mintResult struct {
	mintable risk.Result[risk.Mintability]
	supply   risk.Result[risk.SupplyStatus]
}

// run schedules one guarded probe whose result lands in slot.
func run[T any](ctx context.Context, r *Runner, g *errgroup.Group, name string, slot *risk.Result[T], fn func(context.Context) risk.Result[T]) {
	g.Go(func() error {
		start := time.Now()
		res := probe.Guard(ctx, r.opts.ProbeTimeout, fn)
		r.opts.Metrics.ProbeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		status := "ok"
		switch {
		case res.Reason() == probe.ReasonTimeout:
			status = "timeout"
		case !res.IsOk():
			status = "failed"
			log.Printf("Probe %s failed: %s", name, res.Reason())
		}
		r.opts.Metrics.ProbeResults.WithLabelValues(name, status).Inc()

		*slot = res
		return nil
	})
}

func staticOrFailed(res risk.Result[risk.TokenStaticInfo], addr common.Address) risk.TokenStaticInfo {
	if info, ok := res.Get(); ok {
		return info
	}
	return risk.TokenStaticInfo{Address: addr, TotalSupply: risk.FailedAs[*uint256.Int](res)}
}

func (r *Runner) narrate(ctx context.Context, report *risk.RiskReport) {
	if r.opts.Narrator == nil {
		return
	}
	timeout := r.opts.NarrativeTimeout
	if timeout <= 0 {
		timeout = r.opts.ProbeTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := r.opts.Narrator.Summarize(ctx, report)
	if err != nil {
		log.Printf("Narrative generation failed: %v", err)
		r.opts.Metrics.NarrativeFailures.Inc()
		report.Narrative = nil
		return
	}
	report.Narrative = &text
}
