package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"eth-rugcheck/internal/metrics"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	maxRPCFailures  = 3
	rpcTripDuration = 5 * time.Minute
	chainIDAttempts = 3
)

type rpcState struct {
	URL          string
	FailureCount int
	TrippedUntil time.Time
	lock         sync.Mutex
}

// Dialer connects to the first healthy endpoint of a rotation, tripping a
// per-endpoint circuit breaker after repeated failures.
type Dialer struct {
	states     []*rpcState
	next       int
	lock       sync.Mutex
	metrics    *metrics.CheckerMetrics
	retryDelay time.Duration

	clientFactory func(ctx context.Context, url string) (Client, error)
}

func NewDialer(urls []string, m *metrics.CheckerMetrics) *Dialer {
	if m == nil {
		m = metrics.NewCheckerMetrics()
	}
	d := &Dialer{
		metrics:    m,
		retryDelay: time.Second,
		clientFactory: func(ctx context.Context, url string) (Client, error) {
			return ethclient.DialContext(ctx, url)
		},
	}
	for _, u := range urls {
		d.states = append(d.states, &rpcState{URL: u})
	}
	return d
}

// Dial returns a connected client and its chain ID. Every endpoint is tried
// at most once per call, starting after the last one used.
func (d *Dialer) Dial(ctx context.Context) (Client, *big.Int, error) {
	d.lock.Lock()
	start := d.next
	d.lock.Unlock()

	var lastErr error
	for i := 0; i < len(d.states); i++ {
		idx := (start + i) % len(d.states)
		state := d.states[idx]

		state.lock.Lock()
		isTripped := time.Now().Before(state.TrippedUntil)
		state.lock.Unlock()
		if isTripped {
			continue
		}

		client, cid, err := d.connect(ctx, state.URL)
		if err == nil {
			log.Printf("Connected to RPC: %s (ChainID: %s)", state.URL, cid)
			state.lock.Lock()
			state.FailureCount = 0
			state.lock.Unlock()

			for _, s := range d.states {
				d.metrics.ActiveRPC.WithLabelValues(s.URL).Set(0)
			}
			d.metrics.ActiveRPC.WithLabelValues(state.URL).Set(1)

			d.lock.Lock()
			d.next = idx
			d.lock.Unlock()
			return client, cid, nil
		}
		if ctx.Err() != nil {
			return nil, nil, Classify("dial", ctx.Err())
		}

		lastErr = err
		log.Printf("RPC connection failed to %s: %v. Trying next...", state.URL, err)
		state.lock.Lock()
		state.FailureCount++
		if state.FailureCount >= maxRPCFailures {
			state.TrippedUntil = time.Now().Add(rpcTripDuration)
			log.Printf("Circuit breaker tripped for %s for %v", state.URL, rpcTripDuration)
			d.metrics.RPCCircuitBreakerTrips.WithLabelValues(state.URL).Inc()
		}
		state.lock.Unlock()
	}

	d.lock.Lock()
	d.next = (start + 1) % max(len(d.states), 1)
	d.lock.Unlock()

	if lastErr == nil {
		lastErr = ErrNoEndpoint
	} else {
		lastErr = fmt.Errorf("%w: %v", ErrNoEndpoint, lastErr)
	}
	return nil, nil, &TransportError{Op: "dial", Err: lastErr}
}

func (d *Dialer) connect(ctx context.Context, url string) (Client, *big.Int, error) {
	client, err := d.clientFactory(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	var cid *big.Int
	for attempt := 0; attempt < chainIDAttempts; attempt++ {
		cid, err = client.ChainID(ctx)
		if err == nil {
			return client, cid, nil
		}
		d.metrics.ChainIDFetchFailures.WithLabelValues(url).Inc()
		if attempt < chainIDAttempts-1 {
			select {
			case <-ctx.Done():
				client.Close()
				return nil, nil, ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
	}
	client.Close()
	return nil, nil, err
}
