package fixed

import (
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// All monetary amounts in the ledger are int64 fixed-point values at
// AmountScale. Ratios and fee rates are expressed in parts-per-million.
const (
	// AmountScale is the fixed divisor for asset amounts (6 decimal places).
	AmountScale int64 = 1_000_000

	// RatioScale is the fixed divisor for collateralization ratios and fee
	// rates. A ratio of 150% is 1_500_000; a fee of 0.5% is 5_000.
	RatioScale int64 = 1_000_000
)

// RatioInfinite is the sentinel returned for positions with zero debt.
// Large enough to compare above any configurable threshold, small enough
// that ratio arithmetic on it cannot overflow int64.
const RatioInfinite int64 = math.MaxInt64 / RatioScale

// Rounding is always floor (toward zero for the non-negative values this
// ledger operates on). Issuance limits and liquidation payouts must never
// round in the caller's favor.

var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0)
	intPool.Put(v)
}

// MulDiv computes a * b / denom with a big.Int intermediate, floor rounding.
// Returns an error on division by zero or int64 overflow of the quotient.
func MulDiv(a, b, denom int64) (int64, error) {
	if denom == 0 {
		return 0, fmt.Errorf("fixed: division by zero")
	}

	num := getInt()
	defer putInt(num)

	num.Mul(big.NewInt(a), big.NewInt(b))
	num.Quo(num, big.NewInt(denom))

	if !num.IsInt64() {
		return 0, fmt.Errorf("fixed: overflow in %d * %d / %d", a, b, denom)
	}

	return num.Int64(), nil
}

// MulDivCeil computes a * b / denom rounded up. Used where a requirement
// must not be understated (e.g. the collateral a position must retain).
func MulDivCeil(a, b, denom int64) (int64, error) {
	if denom == 0 {
		return 0, fmt.Errorf("fixed: division by zero")
	}

	num := getInt()
	rem := getInt()
	defer putInt(num)
	defer putInt(rem)

	num.Mul(big.NewInt(a), big.NewInt(b))
	num.QuoRem(num, big.NewInt(denom), rem)

	if !num.IsInt64() {
		return 0, fmt.Errorf("fixed: overflow in ceil(%d * %d / %d)", a, b, denom)
	}
	v := num.Int64()
	if rem.Sign() > 0 {
		v++
	}
	return v, nil
}

// MustMulDiv is MulDiv for inputs the caller has already bounds-checked.
// Panics on overflow; a panic here means an invariant upstream is broken.
func MustMulDiv(a, b, denom int64) int64 {
	v, err := MulDiv(a, b, denom)
	if err != nil {
		panic(err)
	}
	return v
}

// Ratio computes the collateralization ratio in parts-per-million:
//
//	price * collateral * RatioScale / (priceScale * debt)
//
// Zero debt yields RatioInfinite.
func Ratio(price, priceScale, collateral, debt int64) int64 {
	if debt == 0 {
		return RatioInfinite
	}
	if priceScale == 0 {
		return 0
	}

	num := getInt()
	den := getInt()
	defer putInt(num)
	defer putInt(den)

	num.Mul(big.NewInt(price), big.NewInt(collateral))
	num.Mul(num, big.NewInt(RatioScale))
	den.Mul(big.NewInt(priceScale), big.NewInt(debt))
	num.Quo(num, den)

	if !num.IsInt64() {
		return RatioInfinite
	}
	r := num.Int64()
	if r > RatioInfinite {
		return RatioInfinite
	}
	return r
}

// DebtForCollateral returns the largest debt issuable against collateral at
// the given ratio: price * collateral * RatioScale / (priceScale * ratio).
func DebtForCollateral(price, priceScale, collateral, ratio int64) (int64, error) {
	if ratio <= 0 {
		return 0, fmt.Errorf("fixed: non-positive ratio %d", ratio)
	}

	num := getInt()
	den := getInt()
	defer putInt(num)
	defer putInt(den)

	num.Mul(big.NewInt(price), big.NewInt(collateral))
	num.Mul(num, big.NewInt(RatioScale))
	den.Mul(big.NewInt(priceScale), big.NewInt(ratio))
	num.Quo(num, den)

	if !num.IsInt64() {
		return 0, fmt.Errorf("fixed: overflow computing debt limit")
	}
	return num.Int64(), nil
}

// CollateralForDebt returns the collateral equivalent of a debt amount:
// debt * priceScale / price. This is the payout base for capitalization
// and dust collapse.
func CollateralForDebt(price, priceScale, debt int64) (int64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("fixed: non-positive price %d", price)
	}
	return MulDiv(debt, priceScale, price)
}

// ApplyRate multiplies an amount by a parts-per-million rate, floor rounded.
func ApplyRate(amount, ratePPM int64) int64 {
	return MustMulDiv(amount, ratePPM, RatioScale)
}

// ParseAmount converts a decimal string ("1.5") to an int64 at AmountScale.
func ParseAmount(s string) (int64, error) {
	return parseScaled(s, AmountScale)
}

// ParseRatio converts a decimal ratio string ("1.5" for 150%) to ppm.
func ParseRatio(s string) (int64, error) {
	return parseScaled(s, RatioScale)
}

func parseScaled(s string, scale int64) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	v := d.Mul(decimal.NewFromInt(scale)).Truncate(0)
	if !v.IsInteger() || v.BigInt().BitLen() > 62 {
		return 0, fmt.Errorf("fixed: %q out of range at scale %d", s, scale)
	}
	if v.Sign() < 0 {
		return 0, fmt.Errorf("fixed: %q is negative", s)
	}
	return v.BigInt().Int64(), nil
}

// FormatAmount renders an int64 amount at AmountScale as a decimal string.
func FormatAmount(v int64) string {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(AmountScale)).String()
}
