// Package lots implements the per-lot accounting primitives spec.md §3 and
// §4.2 describe: an immutable-after-creation Lot record, the derived
// Position view over a symbol's open lots, and the disposal orderings
// (FIFO/LIFO/HIFO) used to select which lots a SELL consumes.
package lots

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/money"
)

// Method is a tax-lot disposal ordering.
type Method string

const (
	FIFO Method = "FIFO"
	LIFO Method = "LIFO"
	HIFO Method = "HIFO"
)

// Lot is an open tax lot. It is immutable after creation except for these
// mutations: RemainingQuantity is reduced by a SELL, CostBasisPerShare is
// recomputed when a wash-sale attribution lands on this lot, and ApplySplit
// rescales the quantities and CostBasisPerShare.
type Lot struct {
	ID                 uuid.UUID
	Symbol             string
	OriginalQuantity   decimal.Decimal
	RemainingQuantity  decimal.Decimal
	CostBasisPerShare  decimal.Decimal
	AcquisitionDate    time.Time
	DisallowedLoss     decimal.Decimal // cumulative wash-sale loss folded into this lot's basis
	WashedInto         bool            // true once a disallowed loss has been attributed here
	WashMatchedQty     decimal.Decimal // cumulative shares of this lot already used as a backward-direction wash-sale replacement
}

// NewLot creates a new open lot from a BUY or DRIP purchase.
func NewLot(symbol string, quantity, costPerShare decimal.Decimal, acquired time.Time) *Lot {
	q := money.RoundQuantity(quantity)
	return &Lot{
		ID:                uuid.New(),
		Symbol:            symbol,
		OriginalQuantity:  q,
		RemainingQuantity: q,
		CostBasisPerShare: money.RoundBasis(costPerShare),
		AcquisitionDate:   acquired,
	}
}

// Closed reports whether the lot has been fully consumed.
func (l *Lot) Closed() bool { return l.RemainingQuantity.IsZero() }

// HoldingPeriodDays returns the number of days between acquisition and the
// given sell date, inclusive of the acquisition day (spec.md §4.2).
func HoldingPeriodDays(acquired, sold time.Time) int {
	return int(sold.Sub(acquired).Hours()/24) + 1
}

// IsLongTerm reports whether a sale on sold of a lot acquired on acquired
// is long-term: sell_date - acquisition_date > 365 days, so a sale exactly
// 365 days after acquisition is still short-term.
func IsLongTerm(acquired, sold time.Time) bool {
	return HoldingPeriodDays(acquired, sold)-1 > 365
}

// ApplySplit multiplies RemainingQuantity (and OriginalQuantity, for
// reporting) by ratio and divides CostBasisPerShare by ratio, per
// spec.md §4.2.
func (l *Lot) ApplySplit(ratio decimal.Decimal) {
	l.RemainingQuantity = money.RoundQuantity(l.RemainingQuantity.Mul(ratio))
	l.OriginalQuantity = money.RoundQuantity(l.OriginalQuantity.Mul(ratio))
	l.CostBasisPerShare = money.RoundBasis(l.CostBasisPerShare.Div(ratio))
}

// AttributeWashSale folds a disallowed loss into this lot's cost basis,
// recomputing CostBasisPerShare as specified in spec.md §4.2: the
// disallowed amount is added to the lot's total cost basis and divided back
// out per share.
func (l *Lot) AttributeWashSale(disallowedTotal decimal.Decimal) {
	if l.RemainingQuantity.IsZero() {
		return
	}
	perShareAdj := disallowedTotal.Div(l.RemainingQuantity)
	l.CostBasisPerShare = money.RoundBasis(l.CostBasisPerShare.Add(perShareAdj))
	l.DisallowedLoss = l.DisallowedLoss.Add(disallowedTotal)
	l.WashedInto = true
}

// AvailableWashCapacity returns the portion of RemainingQuantity not
// already used to absorb an earlier backward wash-sale match, so the same
// replacement shares cannot absorb more disallowed loss than they represent.
func (l *Lot) AvailableWashCapacity() decimal.Decimal {
	avail := l.RemainingQuantity.Sub(l.WashMatchedQty)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// ConsumeWashCapacity records that qty shares of this lot have now been
// used to absorb a backward-direction wash-sale disallowance.
func (l *Lot) ConsumeWashCapacity(qty decimal.Decimal) {
	l.WashMatchedQty = l.WashMatchedQty.Add(qty)
}

// Position is the derived view of a symbol's open lots.
type Position struct {
	Symbol string
	Lots   []*Lot
}

// Shares sums RemainingQuantity across all open lots.
func (p *Position) Shares() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.RemainingQuantity)
	}
	return money.RoundQuantity(total)
}

// MarketValue returns Shares() * closePrice.
func (p *Position) MarketValue(closePrice decimal.Decimal) decimal.Decimal {
	return money.RoundCash(p.Shares().Mul(closePrice))
}

// CostBasis returns the total remaining cost basis across all open lots.
func (p *Position) CostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.RemainingQuantity.Mul(l.CostBasisPerShare))
	}
	return money.RoundCash(total)
}

// Ordered returns a copy of lots sorted per method, stable on ties as
// spec.md §4.2 requires (FIFO ties broken by original order; HIFO ties
// broken by older acquisition date).
func Ordered(lotsIn []*Lot, method Method) []*Lot {
	out := make([]*Lot, len(lotsIn))
	copy(out, lotsIn)
	switch method {
	case FIFO:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AcquisitionDate.Before(out[j].AcquisitionDate)
		})
	case LIFO:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AcquisitionDate.After(out[j].AcquisitionDate)
		})
	case HIFO:
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CostBasisPerShare.Equal(out[j].CostBasisPerShare) {
				return out[i].CostBasisPerShare.GreaterThan(out[j].CostBasisPerShare)
			}
			return out[i].AcquisitionDate.Before(out[j].AcquisitionDate)
		})
	}
	return out
}
