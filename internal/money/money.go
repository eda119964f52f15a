// Package money centralizes the rounding conventions spec.md §9 requires at
// every externally observable boundary: quantities round to four decimals,
// cash amounts to two, per-share cost bases to six. Using one place for
// these constants keeps the portfolio and tax ledgers from drifting apart
// on rounding behavior.
package money

import "github.com/shopspring/decimal"

const (
	quantityDecimals = 4
	cashDecimals     = 2
	basisDecimals    = 6
)

// RoundQuantity rounds a share count to the quantity precision (4 decimals).
// Fractional shares are permitted; this only bounds precision.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(quantityDecimals)
}

// RoundCash rounds a dollar amount to the cash precision (2 decimals).
func RoundCash(d decimal.Decimal) decimal.Decimal {
	return d.Round(cashDecimals)
}

// RoundBasis rounds a per-share cost basis to the basis precision (6 decimals).
func RoundBasis(d decimal.Decimal) decimal.Decimal {
	return d.Round(basisDecimals)
}

// Tolerance is the rounding slack (spec.md §8) allowed when comparing a
// recomputed cash balance against the sum of recorded cash movements.
var Tolerance = decimal.New(1, -6) // 1e-6

// WithinTolerance reports whether a and b differ by no more than Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
