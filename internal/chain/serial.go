package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Serial funnels every call through one worker goroutine so that at most
// one request is in flight on the wrapped client.
type Serial struct {
	inner Client
	jobs  chan func()
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewSerial(inner Client) *Serial {
	s := &Serial{
		inner: inner,
		jobs:  make(chan func()),
		quit:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Serial) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case job := <-s.jobs:
			job()
		}
	}
}

type serialResult[T any] struct {
	v   T
	err error
}

func enqueue[T any](ctx context.Context, s *Serial, fn func() (T, error)) (T, error) {
	var zero T
	ch := make(chan serialResult[T], 1)
	job := func() {
		v, err := fn()
		ch <- serialResult[T]{v, err}
	}

	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.quit:
		return zero, ErrClosed
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Serial) ChainID(ctx context.Context) (*big.Int, error) {
	return enqueue(ctx, s, func() (*big.Int, error) { return s.inner.ChainID(ctx) })
}

func (s *Serial) BlockNumber(ctx context.Context) (uint64, error) {
	return enqueue(ctx, s, func() (uint64, error) { return s.inner.BlockNumber(ctx) })
}

func (s *Serial) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return enqueue(ctx, s, func() (*types.Header, error) { return s.inner.HeaderByNumber(ctx, number) })
}

func (s *Serial) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return enqueue(ctx, s, func() (*types.Receipt, error) { return s.inner.TransactionReceipt(ctx, txHash) })
}

func (s *Serial) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return enqueue(ctx, s, func() ([]byte, error) { return s.inner.CodeAt(ctx, account, blockNumber) })
}

func (s *Serial) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return enqueue(ctx, s, func() ([]byte, error) { return s.inner.CallContract(ctx, msg, blockNumber) })
}

func (s *Serial) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return enqueue(ctx, s, func() ([]types.Log, error) { return s.inner.FilterLogs(ctx, q) })
}

// Close stops the worker and closes the wrapped client.
func (s *Serial) Close() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		s.inner.Close()
	})
}
