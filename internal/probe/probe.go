// Package probe collects independent on-chain signals about a token and its
// pair. Every collector returns a risk.Result; no error escapes.
package probe

import (
	"context"
	"errors"
	"strings"
	"time"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/risk"
)

// ReasonTimeout is the failure reason of a probe that ran out of time.
const ReasonTimeout = "timeout"

// Env is what every collector may read.
type Env struct {
	Client chain.Client
	Pair   risk.PairHandle
	Now    func() time.Time

	BlockTime      time.Duration
	LogChunkBlocks uint64
	Locator        CreationLocator
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Reason renders err as a failure reason.
func Reason(err error) string {
	if chain.IsTimeout(err) {
		return ReasonTimeout
	}
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

func fail[T any](err error) risk.Result[T] {
	return risk.Failed[T](Reason(err))
}

// Guard runs fn under its own timeout. A panic or an expired deadline
// becomes a failure; fn's own result is kept otherwise.
func Guard[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) risk.Result[T]) (res risk.Result[T]) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res = risk.Failedf[T]("panic: %v", r)
		}
	}()

	res = fn(ctx)
	if !res.IsOk() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return risk.Failed[T](ReasonTimeout)
	}
	return res
}
