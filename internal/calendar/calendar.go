// Package calendar implements MarketCalendar: enumeration of trading days,
// trading/non-trading classification, and cadence alignment for deposit and
// rebalance scheduling. See spec.md §4.1.
package calendar

import (
	"time"

	"github.com/backtestlab/simcore/internal/simerr"
)

// Cadence is one of the scheduling cadences recognized by StrategyConfig's
// deposits.cadence and rebalancing.calendar.period fields.
type Cadence string

const (
	Daily           Cadence = "daily"
	WeeklyMonday    Cadence = "weekly"
	Monthly         Cadence = "monthly"
	Quarterly       Cadence = "quarterly"
	Annually        Cadence = "yearly"
	EveryMarketDay  Cadence = "every_market_day"
)

// Calendar enumerates trading days for a single named market and answers
// trading/non-trading and cadence-alignment questions.
type Calendar struct {
	name     string
	holidays map[string]struct{} // "YYYY-MM-DD" -> present if observed holiday
}

// registry of supported named calendars, populated in init().
var registry = map[string]*Calendar{}

// Get returns the named calendar; an unsupported name yields a
// KindConfigurationInvalid error (there is no separate unknown-calendar kind).
func Get(name string) (*Calendar, error) {
	if name == "" {
		name = "US"
	}
	c, ok := registry[name]
	if !ok {
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "unknown calendar %q", name)
	}
	return c, nil
}

func key(d time.Time) string { return d.Format("2006-01-02") }

// IsTrading is total: every calendar date maps to true or false.
func (c *Calendar) IsTrading(d time.Time) bool {
	d = normalize(d)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[key(d)]
	return !holiday
}

func normalize(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Enumerate returns a strictly increasing list of trading days bounded
// inclusively by [start, end].
func (c *Calendar) Enumerate(start, end time.Time) []time.Time {
	start, end = normalize(start), normalize(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTrading(d) {
			days = append(days, d)
		}
	}
	return days
}

// NextTradingDay returns d if it is a trading day, else the first trading
// day strictly after d.
func (c *Calendar) NextTradingDay(d time.Time) time.Time {
	d = normalize(d)
	for !c.IsTrading(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PriorTradingDay returns d if it is a trading day, else the first trading
// day strictly before d.
func (c *Calendar) PriorTradingDay(d time.Time) time.Time {
	d = normalize(d)
	for !c.IsTrading(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Align maps a cadence and an anchor date to the first trading day on or
// after the logical scheduled date, per spec.md §4.1:
//   - daily:     d if trading, else next trading day.
//   - weekly:    the Monday of d's week, rolled forward if not trading.
//   - monthly:   first trading day of d's month.
//   - quarterly: first trading day of the quarter containing d
//     (Jan/Apr/Jul/Oct).
//   - yearly:    first trading day of January of d's year.
//   - every_market_day: every trading day is scheduled, so Align(d) == NextTradingDay(d).
func (c *Calendar) Align(d time.Time, cadence Cadence) (time.Time, error) {
	d = normalize(d)
	switch cadence {
	case Daily, EveryMarketDay:
		return c.NextTradingDay(d), nil
	case WeeklyMonday:
		offset := (int(d.Weekday()) + 6) % 7 // days since Monday
		monday := d.AddDate(0, 0, -offset)
		return c.NextTradingDay(monday), nil
	case Monthly:
		first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return c.NextTradingDay(first), nil
	case Quarterly:
		qMonth := time.Month(((int(d.Month())-1)/3)*3 + 1)
		first := time.Date(d.Year(), qMonth, 1, 0, 0, 0, 0, time.UTC)
		return c.NextTradingDay(first), nil
	case Annually:
		first := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return c.NextTradingDay(first), nil
	default:
		return time.Time{}, simerr.Newf(simerr.KindConfigurationInvalid, "unknown cadence %q", cadence)
	}
}

// periodBounds returns the calendar [start, end] dates (inclusive) of the
// period containing d for cadence, used to resolve a "last" day_rule.
func periodBounds(d time.Time, cadence Cadence) (time.Time, time.Time) {
	switch cadence {
	case WeeklyMonday:
		offset := (int(d.Weekday()) + 6) % 7 // days since Monday
		monday := d.AddDate(0, 0, -offset)
		return monday, monday.AddDate(0, 0, 6)
	case Monthly:
		first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, -1)
	case Quarterly:
		qMonth := time.Month(((int(d.Month())-1)/3)*3 + 1)
		first := time.Date(d.Year(), qMonth, 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 3, -1)
	case Annually:
		first := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(1, 0, -1)
	default: // Daily, EveryMarketDay
		return d, d
	}
}

// AlignWithRule behaves like Align, except dayRule == "last" resolves to
// the last trading day of the period instead of the first (spec.md §6
// deposits.day_rule). Any other value, including the empty string,
// preserves Align's first-trading-day default.
func (c *Calendar) AlignWithRule(d time.Time, cadence Cadence, dayRule string) (time.Time, error) {
	if dayRule != "last" {
		return c.Align(d, cadence)
	}
	d = normalize(d)
	switch cadence {
	case Daily, EveryMarketDay:
		return c.NextTradingDay(d), nil
	case WeeklyMonday, Monthly, Quarterly, Annually:
		_, end := periodBounds(d, cadence)
		return c.PriorTradingDay(end), nil
	default:
		return time.Time{}, simerr.Newf(simerr.KindConfigurationInvalid, "unknown cadence %q", cadence)
	}
}
