// Package derive turns raw on-chain quantities into risk metrics. Every
// function is pure: identical inputs give identical outputs.
package derive

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept by ratio metrics.
const Precision = 18

type LiquidityStatus string

const (
	Locked          LiquidityStatus = "LOCKED"
	PartiallyLocked LiquidityStatus = "PARTIALLY_LOCKED"
	FullyUnlocked   LiquidityStatus = "FULLY_UNLOCKED"
	Unknown         LiquidityStatus = "UNKNOWN"
)

var (
	big99  = big.NewInt(99)
	big100 = big.NewInt(100)
)

func toBig(u *uint256.Int) *big.Int {
	if u == nil {
		return new(big.Int)
	}
	return u.ToBig()
}

// ToDecimal converts a raw on-chain quantity without loss. nil is zero.
func ToDecimal(u *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(toBig(u), 0)
}

// SpotPrice is reserve1/reserve0, or zero when reserve0 is zero.
func SpotPrice(reserve0, reserve1 *uint256.Int) decimal.Decimal {
	r0 := toBig(reserve0)
	if r0.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(toBig(reserve1), 0).DivRound(decimal.NewFromBigInt(r0, 0), Precision)
}

// MarketCap is totalSupply × reserve1 / reserve0 in reserve1's raw units.
// The product is exact; only the final division rounds. reserve0 == 0 gives 0.
// It is a pool spot-price approximation, not an oracle price.
func MarketCap(totalSupply, reserve0, reserve1 *uint256.Int) decimal.Decimal {
	r0 := toBig(reserve0)
	if r0.Sign() == 0 {
		return decimal.Zero
	}
	num := new(big.Int).Mul(toBig(totalSupply), toBig(reserve1))
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(r0, 0), Precision)
}

// Liquidity classifies the share of totalSupply held as pool reserve.
// Thresholds are exclusive: exactly 99% or 1% is PARTIALLY_LOCKED.
func Liquidity(reserve, totalSupply *uint256.Int) LiquidityStatus {
	s := toBig(totalSupply)
	if s.Sign() == 0 {
		return Unknown
	}
	scaled := new(big.Int).Mul(toBig(reserve), big100)

	switch {
	case scaled.Cmp(new(big.Int).Mul(s, big99)) > 0:
		return Locked
	case scaled.Cmp(s) < 0:
		return FullyUnlocked
	default:
		return PartiallyLocked
	}
}

// LockedPercent is 100 × reserve / totalSupply. ok is false when totalSupply is zero.
func LockedPercent(reserve, totalSupply *uint256.Int) (pct decimal.Decimal, ok bool) {
	s := toBig(totalSupply)
	if s.Sign() == 0 {
		return decimal.Zero, false
	}
	num := new(big.Int).Mul(toBig(reserve), big100)
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(s, 0), Precision), true
}

// AgeDays is the number of whole days between created and now, never negative.
func AgeDays(now, created time.Time) int {
	d := now.Sub(created)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// ScaleUnits converts a raw amount into whole-token units.
func ScaleUnits(v decimal.Decimal, decimals uint8) decimal.Decimal {
	return v.Shift(-int32(decimals))
}

// WindowBlocks estimates how many blocks fit in span at the given block time.
func WindowBlocks(span, blockTime time.Duration) uint64 {
	if blockTime <= 0 {
		return 0
	}
	return uint64(span / blockTime)
}
