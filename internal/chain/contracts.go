package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const factoryABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABIJSON = `[
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0In","type":"uint256"},
		{"indexed":false,"name":"amount1In","type":"uint256"},
		{"indexed":false,"name":"amount0Out","type":"uint256"},
		{"indexed":false,"name":"amount1Out","type":"uint256"},
		{"indexed":true,"name":"to","type":"address"}
	],"name":"Swap","type":"event"}
]`

// tokenABIJSON covers the ERC-20 metadata accessors plus the optional owner()
// and the zero-argument mint() used by the mint probe.
const tokenABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Legacy tokens (MKR, SAI) return name and symbol as bytes32.
const tokenBytes32ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

var (
	FactoryABI      = mustParseABI(factoryABIJSON)
	PairABI         = mustParseABI(pairABIJSON)
	TokenABI        = mustParseABI(tokenABIJSON)
	TokenBytes32ABI = mustParseABI(tokenBytes32ABIJSON)

	// Keccak-256 of Swap(address,uint256,uint256,uint256,uint256,address).
	SwapTopic = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// Call packs method with args, executes it as eth_call against the latest
// block and unpacks the outputs. Errors are classified.
func Call(ctx context.Context, c Client, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	out, err := CallRaw(ctx, c, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	m, ok := contract.Methods[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %s", method)
	}
	if len(m.Outputs) == 0 {
		return nil, nil
	}
	if len(out) == 0 {
		return nil, ErrEmptyReturn
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, method, err)
	}
	if len(values) != len(m.Outputs) {
		return nil, fmt.Errorf("%w: %s: got %d values, want %d", ErrMalformed, method, len(values), len(m.Outputs))
	}
	return values, nil
}

// CallRaw executes method without decoding the result.
func CallRaw(ctx context.Context, c Client, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]byte, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, Classify(method, err)
	}
	return out, nil
}

// CallAddress is Call for single address-returning methods.
func CallAddress(ctx context.Context, c Client, contract abi.ABI, to common.Address, method string, args ...interface{}) (common.Address, error) {
	values, err := Call(ctx, c, contract, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s returned %T", ErrMalformed, method, values[0])
	}
	return addr, nil
}
