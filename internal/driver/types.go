// Package driver implements the SimulationDriver component of spec.md
// §4.6: the daily orchestration loop tying MarketCalendar, Portfolio,
// TaxLedger, Rebalancer, and MetricsEngine together, plus the abstract
// PriceSource boundary the core depends on rather than any concrete
// market-data client.
package driver

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one trading day's OHLCV observation for one symbol
// (spec.md §3).
type Bar struct {
	Date          time.Time
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	AdjustedClose decimal.Decimal
	Volume        decimal.Decimal
}

// DividendAction is a cash dividend corporate action.
type DividendAction struct {
	Symbol            string
	ExDate            time.Time
	AmountPerShare    decimal.Decimal
	QualifiedFraction decimal.Decimal
}

// SplitAction is a forward or reverse split corporate action.
type SplitAction struct {
	Symbol string
	Date   time.Time
	Ratio  decimal.Decimal
}

// PriceSource is the sole external data boundary the core depends on
// (spec.md §6). Implementations live outside the core (internal/pricesource)
// and must return dates in non-decreasing order. This is also the core's
// only permitted suspension point (spec.md §5).
type PriceSource interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	Dividends(ctx context.Context, symbol string, start, end time.Time) ([]DividendAction, error)
	Splits(ctx context.Context, symbol string, start, end time.Time) ([]SplitAction, error)
	ExpenseRatio(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	IsDelisted(ctx context.Context, symbol string, date time.Time) (bool, error)
}

// ProgressReporter receives optional progress callbacks as the driver
// advances through the trading-day sequence. A nil ProgressReporter is
// valid; the driver skips reporting. internal/progress provides a
// Redis-backed implementation for host use.
type ProgressReporter interface {
	Report(daysCompleted, totalDays int, currentDate time.Time)
}
