package driver

import (
	"time"

	"github.com/backtestlab/simcore/internal/config"
	"github.com/backtestlab/simcore/internal/lots"
	"github.com/backtestlab/simcore/internal/metrics"
	"github.com/backtestlab/simcore/internal/portfolio"
	"github.com/backtestlab/simcore/internal/signals"
	"github.com/backtestlab/simcore/internal/simerr"
	"github.com/backtestlab/simcore/internal/tax"
)

// SignalObservation is one symbol's indicator readings on one trading
// day, recorded for diagnostic/export purposes (spec.md §4.6 step 5: the
// signal engine is informational in v1, not yet wired into trade
// decisions).
type SignalObservation struct {
	Date   time.Time
	Symbol string
	Values []signals.Value
}

// Warning is a non-fatal event the driver surfaces in the result bundle
// rather than aborting the run (spec.md §7: data gaps, contribution-cap
// hits, scaled-down plans).
type Warning struct {
	Kind    simerr.Kind
	Message string
	Date    time.Time
	Symbol  string
}

// Diagnostics summarizes run-level counters (spec.md §6 result bundle).
type Diagnostics struct {
	TotalDays           int
	RebalancesPerformed int
	TradesExecuted      int
}

// ResultBundle is the complete simulation output (spec.md §6).
type ResultBundle struct {
	Config            config.StrategyConfig
	Equity            []metrics.EquityPoint
	Metrics           metrics.Result
	BenchmarkMetrics  map[string]metrics.Result
	BenchmarkEquity   map[string][]metrics.EquityPoint
	Trades            []portfolio.TradeRecord
	Positions         map[string]*lots.Position
	TaxYearSummaries  map[int]tax.YearSummary
	OpenLots          map[string][]*lots.Lot
	Warnings          []Warning
	Diagnostics       Diagnostics
	Partial           bool
	SignalObservations []SignalObservation
}
