// Package units converts between on-ledger base units and display amounts.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the precision of every venue asset unless configured.
const DefaultDecimals int32 = 6

// ToDisplay scales base units down by decimals.
func ToDisplay(base uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -decimals)
}

// FromDisplay scales a display amount up to base units, truncating any
// precision below one base unit.
func FromDisplay(d decimal.Decimal, decimals int32) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", d)
	}
	base := d.Shift(decimals).Truncate(0)
	if base.BigInt().BitLen() > 64 {
		return 0, fmt.Errorf("amount %s overflows base units", d)
	}
	return base.BigInt().Uint64(), nil
}

// FromFloat is FromDisplay for a float amount.
func FromFloat(f float64, decimals int32) (uint64, error) {
	return FromDisplay(decimal.NewFromFloat(f), decimals)
}

// PerUnit divides a quote total by an underlying amount, both in base units,
// giving the quote price of one whole underlying unit.
func PerUnit(quoteTotal uint64, quoteDecimals int32, amount uint64, underlyingDecimals int32) (float64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("zero underlying amount")
	}
	q := ToDisplay(quoteTotal, quoteDecimals)
	a := ToDisplay(amount, underlyingDecimals)
	f, _ := q.DivRound(a, 16).Float64()
	return f, nil
}

// Total multiplies a per-unit quote price by an underlying amount and
// returns quote base units.
func Total(perUnit float64, quoteDecimals int32, amount uint64, underlyingDecimals int32) (uint64, error) {
	a := ToDisplay(amount, underlyingDecimals)
	return FromDisplay(decimal.NewFromFloat(perUnit).Mul(a), quoteDecimals)
}
