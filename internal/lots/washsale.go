package lots

import (
	"time"

	"github.com/shopspring/decimal"
)

// washWindowDays is the span on each side of a sale within which a
// replacement purchase triggers the wash-sale rule (spec.md §4.2: ±30
// calendar days).
const washWindowDays = 30

// WashWindow tracks the replacement-purchase window opened by a losing
// sale, so the portfolio can attribute a later BUY's disallowed loss back
// onto the new lot.
type WashWindow struct {
	Symbol       string
	SaleDate     time.Time
	LossPerShare decimal.Decimal // positive magnitude of the per-share loss
	SharesSold   decimal.Decimal
	Consumed     decimal.Decimal // portion of SharesSold already matched to a replacement
	LongTerm     bool            // classification of the original sale, for ledger adjustment
}

// InWindow reports whether purchaseDate falls within the ±30 calendar day
// wash-sale window anchored on the sale date (spec.md §4.2). Both ends are
// inclusive, and a purchase on the sale date itself is in the window.
func (w *WashWindow) InWindow(purchaseDate time.Time) bool {
	lo := w.SaleDate.AddDate(0, 0, -washWindowDays)
	hi := w.SaleDate.AddDate(0, 0, washWindowDays)
	return !purchaseDate.Before(lo) && !purchaseDate.After(hi)
}

// WithinPriorWindow reports whether acquired falls within the 30 calendar
// days strictly preceding sale — the backward half of spec.md §4.2's ±30
// calendar day wash-sale window. A lot acquired on the sale date itself is
// not a backward match.
func WithinPriorWindow(acquired, sale time.Time) bool {
	lo := sale.AddDate(0, 0, -washWindowDays)
	return !acquired.Before(lo) && acquired.Before(sale)
}

// Remaining returns the shares sold at a loss that have not yet been
// matched against a replacement purchase.
func (w *WashWindow) Remaining() decimal.Decimal {
	return w.SharesSold.Sub(w.Consumed)
}

// Open reports whether any portion of the window's loss is still
// unmatched.
func (w *WashWindow) Open() bool {
	return w.Remaining().IsPositive()
}

// Match attributes disallowed loss to a replacement purchase of
// replacementQty shares, up to the smaller of replacementQty and the
// window's remaining unmatched shares. It returns the matched share count
// and the total disallowed loss dollar amount for that match.
func (w *WashWindow) Match(replacementQty decimal.Decimal) (matchedShares, disallowedAmount decimal.Decimal) {
	remaining := w.Remaining()
	matched := replacementQty
	if matched.GreaterThan(remaining) {
		matched = remaining
	}
	if matched.IsNegative() || matched.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	w.Consumed = w.Consumed.Add(matched)
	return matched, matched.Mul(w.LossPerShare)
}
