package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"eth-rugcheck/internal/chain/chaintest"
	"eth-rugcheck/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDialerRotatesPastFailingEndpoint(t *testing.T) {
	m := metrics.NewCheckerMetrics()
	d := NewDialer([]string{"http://bad", "http://good"}, m)
	d.retryDelay = 0

	var dialed []string
	d.clientFactory = func(ctx context.Context, url string) (Client, error) {
		dialed = append(dialed, url)
		if url == "http://bad" {
			return nil, errors.New("connection refused")
		}
		return &chaintest.MockClient{}, nil
	}

	c, cid, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if c == nil || cid.Cmp(big.NewInt(8453)) != 0 {
		t.Errorf("Dial returned client %v chainID %v", c, cid)
	}
	if len(dialed) != 2 || dialed[1] != "http://good" {
		t.Errorf("dial order = %v", dialed)
	}
	if got := testutil.ToFloat64(m.ActiveRPC.WithLabelValues("http://good")); got != 1 {
		t.Errorf("active gauge for good = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveRPC.WithLabelValues("http://bad")); got != 0 {
		t.Errorf("active gauge for bad = %v, want 0", got)
	}
}

func TestDialerTripsCircuitBreaker(t *testing.T) {
	m := metrics.NewCheckerMetrics()
	d := NewDialer([]string{"http://bad"}, m)
	d.retryDelay = 0

	attempts := 0
	d.clientFactory = func(ctx context.Context, url string) (Client, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	for i := 0; i < maxRPCFailures; i++ {
		_, _, err := d.Dial(context.Background())
		var te *TransportError
		if !errors.As(err, &te) || !errors.Is(err, ErrNoEndpoint) {
			t.Fatalf("Dial #%d: err = %v, want TransportError wrapping ErrNoEndpoint", i, err)
		}
	}
	if got := testutil.ToFloat64(m.RPCCircuitBreakerTrips.WithLabelValues("http://bad")); got != 1 {
		t.Errorf("trips = %v, want 1", got)
	}

	// Tripped endpoints are skipped without dialing.
	_, _, _ = d.Dial(context.Background())
	if attempts != maxRPCFailures {
		t.Errorf("attempts = %d, want %d", attempts, maxRPCFailures)
	}
	if !time.Now().Before(d.states[0].TrippedUntil) {
		t.Errorf("endpoint should be tripped")
	}
}

func TestDialerRetriesChainID(t *testing.T) {
	m := metrics.NewCheckerMetrics()
	d := NewDialer([]string{"http://flaky"}, m)
	d.retryDelay = 0

	calls := 0
	client := &chaintest.MockClient{
		ChainIDFunc: func(ctx context.Context) (*big.Int, error) {
			calls++
			if calls < chainIDAttempts {
				return nil, errors.New("temporary")
			}
			return big.NewInt(1), nil
		},
	}
	d.clientFactory = func(ctx context.Context, url string) (Client, error) { return client, nil }

	if _, cid, err := d.Dial(context.Background()); err != nil || cid.Int64() != 1 {
		t.Fatalf("Dial = %v, %v", cid, err)
	}
	if got := testutil.ToFloat64(m.ChainIDFetchFailures.WithLabelValues("http://flaky")); got != chainIDAttempts-1 {
		t.Errorf("chain id failures = %v, want %d", got, chainIDAttempts-1)
	}
}

func TestDialerNoEndpoints(t *testing.T) {
	d := NewDialer(nil, nil)
	if _, _, err := d.Dial(context.Background()); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("err = %v, want ErrNoEndpoint", err)
	}
}
