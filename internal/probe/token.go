package probe

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"eth-rugcheck/internal/chain"
	"eth-rugcheck/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StaticInfo reads name, symbol, decimals and totalSupply of addr. Missing
// optional accessors leave the field nil.
func StaticInfo(ctx context.Context, c chain.Client, addr common.Address) risk.TokenStaticInfo {
	info := risk.TokenStaticInfo{
		Address:     addr,
		Name:        textField(ctx, c, addr, "name"),
		Symbol:      textField(ctx, c, addr, "symbol"),
		TotalSupply: TotalSupply(ctx, c, addr),
	}
	if values, err := chain.Call(ctx, c, chain.TokenABI, addr, "decimals"); err == nil {
		if d, ok := values[0].(uint8); ok {
			info.Decimals = &d
		}
	}
	return info
}

// textField reads a string accessor, falling back to the bytes32 encoding
// of legacy tokens.
func textField(ctx context.Context, c chain.Client, addr common.Address, method string) *string {
	values, err := chain.Call(ctx, c, chain.TokenABI, addr, method)
	if err == nil {
		if s, ok := values[0].(string); ok {
			return &s
		}
	}
	if err != nil && !errors.Is(err, chain.ErrMalformed) {
		return nil
	}
	values, err = chain.Call(ctx, c, chain.TokenBytes32ABI, addr, method)
	if err != nil {
		return nil
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return nil
	}
	s := strings.TrimRight(string(raw[:]), "\x00")
	return &s
}

// TotalSupply reads totalSupply() of a token or pair.
func TotalSupply(ctx context.Context, c chain.Client, addr common.Address) risk.Result[*uint256.Int] {
	values, err := chain.Call(ctx, c, chain.TokenABI, addr, "totalSupply")
	if err != nil {
		return fail[*uint256.Int](err)
	}
	return toUint256(values[0])
}

// Reserves reads getReserves() of the pair.
func Reserves(ctx context.Context, env Env) risk.Result[risk.Reserves] {
	values, err := chain.Call(ctx, env.Client, chain.PairABI, env.Pair.Pair, "getReserves")
	if err != nil {
		return fail[risk.Reserves](err)
	}
	r0, ok0 := toUint256(values[0]).Get()
	r1, ok1 := toUint256(values[1]).Get()
	ts, okTs := values[2].(uint32)
	if !ok0 || !ok1 || !okTs {
		return risk.Failed[risk.Reserves]("malformed getReserves return")
	}
	return risk.Ok(risk.Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts})
}

// LPSupply reads the pair's own totalSupply (LP tokens outstanding).
func LPSupply(ctx context.Context, env Env) risk.Result[*uint256.Int] {
	values, err := chain.Call(ctx, env.Client, chain.PairABI, env.Pair.Pair, "totalSupply")
	if err != nil {
		return fail[*uint256.Int](err)
	}
	return toUint256(values[0])
}

func toUint256(v interface{}) risk.Result[*uint256.Int] {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return risk.Failedf[*uint256.Int]("unexpected value type %T", v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return risk.Failed[*uint256.Int]("value exceeds 256 bits")
	}
	return risk.Ok(u)
}
