// Package chaintest provides a scriptable chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler answers one eth_call. args is the undecoded calldata after the selector.
type CallHandler func(args []byte) ([]byte, error)

// MockClient implements chain.Client. Unset Func fields fall back to the
// call router for CallContract and to benign defaults elsewhere.
type MockClient struct {
	ChainIDFunc            func(ctx context.Context) (*big.Int, error)
	BlockNumberFunc        func(ctx context.Context) (uint64, error)
	HeaderByNumberFunc     func(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAtFunc             func(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContractFunc       func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogsFunc         func(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CloseFunc              func()

	calls atomic.Int64

	mu       sync.Mutex
	handlers map[routeKey]CallHandler
	counts   map[routeKey]int
}

type routeKey struct {
	to       common.Address
	selector [4]byte
}

// Calls is the total number of client method invocations, Close excluded.
func (m *MockClient) Calls() int64 { return m.calls.Load() }

// CallCount is the number of eth_calls of method made against to.
func (m *MockClient) CallCount(to common.Address, contract abi.ABI, method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[routeKey{to, selector(contract, method)}]
}

func selector(contract abi.ABI, method string) [4]byte {
	meth, ok := contract.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	var sel [4]byte
	copy(sel[:], meth.ID)
	return sel
}

// Handle routes eth_calls of method on to through h.
func (m *MockClient) Handle(to common.Address, contract abi.ABI, method string, h CallHandler) {
	key := routeKey{to, selector(contract, method)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[routeKey]CallHandler)
	}
	m.handlers[key] = h
}

// Return routes method on to to a fixed ABI-encoded result.
func (m *MockClient) Return(to common.Address, contract abi.ABI, method string, values ...interface{}) {
	out := MustPackOutputs(contract, method, values...)
	m.Handle(to, contract, method, func([]byte) ([]byte, error) { return out, nil })
}

// Fail routes method on to to err.
func (m *MockClient) Fail(to common.Address, contract abi.ABI, method string, err error) {
	m.Handle(to, contract, method, func([]byte) ([]byte, error) { return nil, err })
}

// MustPackOutputs ABI-encodes return values for method.
func MustPackOutputs(contract abi.ABI, method string, values ...interface{}) []byte {
	meth, ok := contract.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	out, err := meth.Outputs.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("chaintest: pack %s outputs: %v", method, err))
	}
	return out
}

// Revert mimics the error a node returns for a reverted eth_call.
func Revert(reason string) error {
	if reason == "" {
		return errors.New("execution reverted")
	}
	return errors.New("execution reverted: " + reason)
}

// ErrTransport mimics a dropped connection.
var ErrTransport = errors.New("connection refused")

func (m *MockClient) ChainID(ctx context.Context) (*big.Int, error) {
	m.calls.Add(1)
	if m.ChainIDFunc != nil {
		return m.ChainIDFunc(ctx)
	}
	return big.NewInt(8453), nil
}

func (m *MockClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.calls.Add(1)
	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}
	return 100, nil
}

func (m *MockClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	m.calls.Add(1)
	if m.HeaderByNumberFunc != nil {
		return m.HeaderByNumberFunc(ctx, number)
	}
	return &types.Header{Number: number}, nil
}

func (m *MockClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.calls.Add(1)
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, txHash)
	}
	return nil, ethereum.NotFound
}

func (m *MockClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	m.calls.Add(1)
	if m.CodeAtFunc != nil {
		return m.CodeAtFunc(ctx, account, blockNumber)
	}
	return []byte{}, nil
}

func (m *MockClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls.Add(1)
	if m.CallContractFunc != nil {
		return m.CallContractFunc(ctx, msg, blockNumber)
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("chaintest: malformed call")
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	key := routeKey{*msg.To, sel}

	m.mu.Lock()
	h, ok := m.handlers[key]
	if m.counts == nil {
		m.counts = make(map[routeKey]int)
	}
	m.counts[key]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		// An account without the method and no fallback returns nothing.
		return []byte{}, nil
	}
	return h(msg.Data[4:])
}

func (m *MockClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	m.calls.Add(1)
	if m.FilterLogsFunc != nil {
		return m.FilterLogsFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockClient) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}
