package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backtestlab/simcore/internal/portfolio"
)

func validConfig() StrategyConfig {
	return StrategyConfig{
		Period: Period{
			Start: time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC),
		},
		Universe:    Universe{Symbols: []string{"SPY", "AGG"}},
		InitialCash: decimal.NewFromInt(10000),
		Account:     Account{Type: portfolio.Taxable},
		Dividends:   Dividends{Mode: DividendDRIP},
		Rebalancing: Rebalancing{Type: "calendar", Calendar: CalendarRebalance{Period: "Q"}},
		Orders:      Orders{Timing: MOO},
		Lots:        LotConfig{Method: "HIFO"},
		PositionSizing: PositionSizing{
			Method: "EQUAL_WEIGHT",
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBackwardsPeriod(t *testing.T) {
	cfg := validConfig()
	cfg.Period.Start, cfg.Period.End = cfg.Period.End, cfg.Period.Start
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeInitialCash(t *testing.T) {
	cfg := validConfig()
	cfg.InitialCash = decimal.NewFromInt(-1)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownAccountType(t *testing.T) {
	cfg := validConfig()
	cfg.Account.Type = "Savings"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresCustomWeightsCoverage(t *testing.T) {
	cfg := validConfig()
	cfg.PositionSizing = PositionSizing{
		Method:        "CUSTOM_WEIGHTS",
		CustomWeights: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(1)},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGG")
}
