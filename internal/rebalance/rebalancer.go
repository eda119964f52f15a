package rebalance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/calendar"
	"github.com/backtestlab/simcore/internal/simerr"
)

// Mode is a rebalance trigger policy, per spec.md §6 rebalancing.type.
type Mode string

const (
	ModeCalendar     Mode = "calendar"
	ModeDrift        Mode = "drift"
	ModeBoth         Mode = "both"
	ModeCashflowOnly Mode = "cashflow_only"
)

// Config holds the rebalancer's trigger parameters.
type Config struct {
	Mode               Mode
	CalendarCadence    calendar.Cadence
	DriftAbsPct        decimal.Decimal // e.g. 0.05 for 5%
	DriftRelPct        decimal.Decimal
	CashflowThreshold  decimal.Decimal // minimum undeployed cash to trigger cashflow_only
	Taxable            bool
}

// Holding is the caller-supplied (driver-supplied) snapshot of one
// symbol's current state, used both for drift evaluation and for
// tax-aware sell ordering.
type Holding struct {
	Symbol string
	Value  decimal.Decimal // current mark-to-market value
	Price  decimal.Decimal

	// HIFOUnrealizedGainLoss and HIFOLongTerm describe what selling from
	// the highest-cost-basis lot would realize, used only to order sells
	// tax-aware (spec.md §4.4 step 3). Ignored for non-taxable accounts.
	HIFOUnrealizedGainLoss decimal.Decimal
	HIFOLongTerm           bool
}

// LegAction identifies a trade plan leg's direction.
type LegAction string

const (
	LegSell LegAction = "SELL"
	LegBuy  LegAction = "BUY"
)

// Leg is one ordered instruction in a trade plan.
type Leg struct {
	Symbol string
	Action LegAction
	Amount decimal.Decimal // positive dollar notional
}

// Rebalancer decides trigger timing and builds tax-aware trade plans.
type Rebalancer struct {
	Config Config
	Sizing Sizing
	cal    *calendar.Calendar

	lastRebalanceKey string // cadence alignment memoization, keyed "YYYY-MM-DD"
}

// New constructs a Rebalancer bound to cal for calendar-cadence alignment.
func New(cfg Config, sizing Sizing, cal *calendar.Calendar) *Rebalancer {
	return &Rebalancer{Config: cfg, Sizing: sizing, cal: cal}
}

// Due reports whether a rebalance should occur on date, given cashAddedToday
// (deposits + cash dividends credited that day) and the current holdings
// (for drift evaluation against target weights).
func (r *Rebalancer) Due(date time.Time, holdings []Holding, totalValue, cashAddedToday decimal.Decimal) (bool, error) {
	switch r.Config.Mode {
	case ModeCalendar:
		return r.calendarDue(date)
	case ModeDrift:
		return r.driftDue(holdings, totalValue)
	case ModeBoth:
		cd, err := r.calendarDue(date)
		if err != nil {
			return false, err
		}
		if cd {
			return true, nil
		}
		return r.driftDue(holdings, totalValue)
	case ModeCashflowOnly:
		return cashAddedToday.GreaterThan(r.Config.CashflowThreshold), nil
	default:
		return false, simerr.Newf(simerr.KindConfigurationInvalid, "unknown rebalance mode %q", r.Config.Mode)
	}
}

func (r *Rebalancer) calendarDue(date time.Time) (bool, error) {
	aligned, err := r.cal.Align(date, r.Config.CalendarCadence)
	if err != nil {
		return false, err
	}
	key := aligned.Format("2006-01-02")
	if aligned.Equal(normalize(date)) && key != r.lastRebalanceKey {
		r.lastRebalanceKey = key
		return true, nil
	}
	return false, nil
}

func normalize(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Rebalancer) driftDue(holdings []Holding, totalValue decimal.Decimal) (bool, error) {
	if totalValue.IsZero() {
		return false, nil
	}
	universe := symbolsOf(holdings)
	targets, err := r.Sizing.TargetWeights(universe)
	if err != nil {
		return false, err
	}
	for _, h := range holdings {
		current := h.Value.Div(totalValue)
		target := targets[h.Symbol]
		diff := current.Sub(target).Abs()
		if r.Config.DriftAbsPct.IsPositive() && diff.GreaterThan(r.Config.DriftAbsPct) {
			return true, nil
		}
		if r.Config.DriftRelPct.IsPositive() && target.IsPositive() {
			rel := diff.Div(target)
			if rel.GreaterThan(r.Config.DriftRelPct) {
				return true, nil
			}
		}
	}
	return false, nil
}

func symbolsOf(holdings []Holding) []string {
	out := make([]string, len(holdings))
	for i, h := range holdings {
		out[i] = h.Symbol
	}
	return out
}

// Plan computes an ordered trade plan from current holdings to the
// configured target weights, per spec.md §4.4. Scaling buys down to
// available cash is not done here; the caller applies ScaleBuysForCash.
func (r *Rebalancer) Plan(holdings []Holding, totalValue decimal.Decimal) ([]Leg, error) {
	universe := symbolsOf(holdings)
	targets, err := r.Sizing.TargetWeights(universe)
	if err != nil {
		return nil, err
	}

	type delta struct {
		h     Holding
		delta decimal.Decimal // target value - current value; negative => sell
	}
	deltas := make([]delta, 0, len(holdings))
	for _, h := range holdings {
		targetValue := totalValue.Mul(targets[h.Symbol])
		deltas = append(deltas, delta{h: h, delta: targetValue.Sub(h.Value)})
	}

	var sells, buys []delta
	for _, dl := range deltas {
		if dl.delta.IsNegative() {
			sells = append(sells, dl)
		} else if dl.delta.IsPositive() {
			buys = append(buys, dl)
		}
	}

	sort.SliceStable(sells, func(i, j int) bool {
		if !r.Config.Taxable {
			// spec.md §4.4 step 3: in a non-taxable account, order by
			// largest overweight first rather than by tax consequence.
			return sells[i].delta.Abs().GreaterThan(sells[j].delta.Abs())
		}
		return sellRank(sells[i].h) < sellRank(sells[j].h)
	})
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].delta.GreaterThan(buys[j].delta) // largest underweight first
	})

	var legs []Leg
	for _, s := range sells {
		legs = append(legs, Leg{Symbol: s.h.Symbol, Action: LegSell, Amount: s.delta.Abs()})
	}
	for _, b := range buys {
		legs = append(legs, Leg{Symbol: b.h.Symbol, Action: LegBuy, Amount: b.delta})
	}
	return legs, nil
}

// sellRank orders a taxable account's sells per spec.md §4.4 step 3: losses
// first, then long-term gains, then short-term gains deferred last.
// Non-taxable accounts are ranked separately by the caller (largest
// overweight first), since that ordering has nothing to do with tax
// consequence.
func sellRank(h Holding) int {
	switch {
	case h.HIFOUnrealizedGainLoss.IsNegative():
		return 0 // losses first
	case h.HIFOLongTerm:
		return 1 // long-term gains next
	default:
		return 2 // short-term gains deferred last
	}
}

// ScaleBuysForCash scales every buy leg proportionally so total buy
// notional does not exceed availableCash, per spec.md §4.4 step 5.
func ScaleBuysForCash(legs []Leg, availableCash decimal.Decimal) []Leg {
	totalBuy := decimal.Zero
	for _, l := range legs {
		if l.Action == LegBuy {
			totalBuy = totalBuy.Add(l.Amount)
		}
	}
	if totalBuy.LessThanOrEqual(availableCash) || totalBuy.IsZero() {
		return legs
	}
	scale := availableCash.Div(totalBuy)
	out := make([]Leg, len(legs))
	for i, l := range legs {
		if l.Action == LegBuy {
			l.Amount = l.Amount.Mul(scale)
		}
		out[i] = l
	}
	return out
}
