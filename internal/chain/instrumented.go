package chain

import (
	"context"
	"math/big"
	"time"

	"eth-rugcheck/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Instrumented records per-method latency and error class for every call.
type Instrumented struct {
	inner   Client
	metrics *metrics.CheckerMetrics
}

func NewInstrumented(inner Client, m *metrics.CheckerMetrics) *Instrumented {
	if m == nil {
		m = metrics.NewCheckerMetrics()
	}
	return &Instrumented{inner: inner, metrics: m}
}

func (c *Instrumented) observe(method string, start time.Time, err error) {
	c.metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RPCErrors.WithLabelValues(method, Class(Classify(method, err))).Inc()
	}
}

func (c *Instrumented) ChainID(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	v, err := c.inner.ChainID(ctx)
	c.observe("eth_chainId", start, err)
	return v, err
}

func (c *Instrumented) BlockNumber(ctx context.Context) (uint64, error) {
	start := time.Now()
	v, err := c.inner.BlockNumber(ctx)
	c.observe("eth_blockNumber", start, err)
	return v, err
}

func (c *Instrumented) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	start := time.Now()
	v, err := c.inner.HeaderByNumber(ctx, number)
	c.observe("eth_getBlockByNumber", start, err)
	return v, err
}

func (c *Instrumented) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	v, err := c.inner.TransactionReceipt(ctx, txHash)
	c.observe("eth_getTransactionReceipt", start, err)
	return v, err
}

func (c *Instrumented) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	v, err := c.inner.CodeAt(ctx, account, blockNumber)
	c.observe("eth_getCode", start, err)
	return v, err
}

func (c *Instrumented) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	v, err := c.inner.CallContract(ctx, msg, blockNumber)
	c.observe("eth_call", start, err)
	return v, err
}

func (c *Instrumented) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	start := time.Now()
	v, err := c.inner.FilterLogs(ctx, q)
	c.observe("eth_getLogs", start, err)
	return v, err
}

func (c *Instrumented) Close() { c.inner.Close() }
