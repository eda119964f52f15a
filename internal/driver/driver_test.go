package driver

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backtestlab/simcore/internal/calendar"
	"github.com/backtestlab/simcore/internal/config"
	"github.com/backtestlab/simcore/internal/portfolio"
	"github.com/backtestlab/simcore/internal/rebalance"
	"github.com/backtestlab/simcore/internal/simerr"
)

// fakeSource is a deterministic in-memory PriceSource for driver tests,
// grounded in the same role a SQLite fixture source plays for real runs:
// a closed, replayable series with no network or clock dependency.
type fakeSource struct {
	bars map[string][]Bar
}

func (f *fakeSource) Bars(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	var out []Bar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) Dividends(_ context.Context, _ string, _, _ time.Time) ([]DividendAction, error) {
	return nil, nil
}

func (f *fakeSource) Splits(_ context.Context, _ string, _, _ time.Time) ([]SplitAction, error) {
	return nil, nil
}

func (f *fakeSource) ExpenseRatio(_ context.Context, _ string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (f *fakeSource) IsDelisted(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func buildFakeSource(cal *calendar.Calendar, start, end time.Time, symbol string, startPrice float64) *fakeSource {
	days := cal.Enumerate(start, end)
	bars := make([]Bar, len(days))
	price := startPrice
	for i, day := range days {
		bars[i] = Bar{Date: day, Open: dec(price), High: dec(price), Low: dec(price), Close: dec(price), AdjustedClose: dec(price)}
		price += 0.1
	}
	return &fakeSource{bars: map[string][]Bar{symbol: bars}}
}

func TestRunBuyAndHoldProducesOneEquityPointPerTradingDay(t *testing.T) {
	cal, err := calendar.Get("US")
	require.NoError(t, err)
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	src := buildFakeSource(cal, start, end, "SPY", 100)

	cfg := config.StrategyConfig{
		Period:      config.Period{Start: start, End: end},
		Universe:    config.Universe{Symbols: []string{"SPY"}},
		InitialCash: dec(10000),
		Account:     config.Account{Type: portfolio.Taxable},
		Dividends:   config.Dividends{Mode: config.DividendCash},
		Orders:      config.Orders{Timing: config.MOO},
		Lots:        config.LotConfig{Method: "FIFO"},
		PositionSizing: config.PositionSizing{Method: "EQUAL_WEIGHT"},
	}

	sizing := rebalance.Sizing{Method: rebalance.EqualWeight}
	rb := rebalance.New(rebalance.Config{Mode: rebalance.ModeCalendar, CalendarCadence: calendar.Daily, Taxable: true}, sizing, cal)

	d := &SimulationDriver{Config: cfg, Source: src, Calendar: cal, Rebalancer: rb}
	bundle, err := d.Run(context.Background())
	require.NoError(t, err)

	expectedDays := len(cal.Enumerate(start, end))
	assert.Equal(t, expectedDays, len(bundle.Equity))
	assert.False(t, bundle.Partial)
	assert.True(t, bundle.Equity[len(bundle.Equity)-1].TotalValue.GreaterThan(dec(10000)))
}

func TestRunFailsOnMissingBar(t *testing.T) {
	cal, err := calendar.Get("US")
	require.NoError(t, err)
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{bars: map[string][]Bar{}} // no data at all
	cfg := config.StrategyConfig{
		Period:      config.Period{Start: start, End: end},
		Universe:    config.Universe{Symbols: []string{"SPY"}},
		InitialCash: dec(10000),
		Account:     config.Account{Type: portfolio.Taxable},
	}
	d := &SimulationDriver{Config: cfg, Source: src, Calendar: cal}
	_, err = d.Run(context.Background())
	require.Error(t, err)
}

// TestRunRothIRACapStopsMonthlyDepositsMidYear exercises a Roth IRA with a
// $7,000 annual cap and $1,000 monthly deposits: the 7th deposit exhausts
// the cap, the 8th through 12th are rejected with a warning each rather than
// failing the run,
// and deposits resume once the calendar rolls into the next contribution
// year.
func TestRunRothIRACapStopsMonthlyDepositsMidYear(t *testing.T) {
	cal, err := calendar.Get("US")
	require.NoError(t, err)
	start := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)

	src := buildFakeSource(cal, start, end, "SPY", 100)

	cfg := config.StrategyConfig{
		Period:      config.Period{Start: start, End: end},
		Universe:    config.Universe{Symbols: []string{"SPY"}},
		InitialCash: dec(0),
		Account: config.Account{
			Type: portfolio.RothIRA,
			ContributionCaps: config.ContributionCapConfig{Enforce: true, Roth: dec(7000)},
		},
		Deposits:       config.Deposits{Cadence: calendar.Monthly, Amount: dec(1000)},
		Dividends:      config.Dividends{Mode: config.DividendCash},
		Orders:         config.Orders{Timing: config.MOO},
		Lots:           config.LotConfig{Method: "FIFO"},
		PositionSizing: config.PositionSizing{Method: "EQUAL_WEIGHT"},
	}

	sizing := rebalance.Sizing{Method: rebalance.EqualWeight}
	rb := rebalance.New(rebalance.Config{Mode: rebalance.ModeCalendar, CalendarCadence: calendar.Daily, Taxable: false}, sizing, cal)

	d := &SimulationDriver{Config: cfg, Source: src, Calendar: cal, Rebalancer: rb}
	bundle, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, bundle.Partial)

	capWarnings := 0
	for _, w := range bundle.Warnings {
		if w.Kind == simerr.KindContributionCapExceeded {
			capWarnings++
		}
	}
	// One warning for each of the 8th through 12th monthly deposits of the
	// first contribution year (cap reached on month 7, so August through
	// December 2024 are rejected); the 2025 deposits start a new year.
	assert.Equal(t, 5, capWarnings)
	assert.True(t, bundle.Equity[len(bundle.Equity)-1].TotalValue.GreaterThan(dec(7000)))
}
