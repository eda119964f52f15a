// Package config defines StrategyConfig, the simulation input contract of
// spec.md §6, and loads it from JSON/YAML with go-playground/validator
// struct-tag validation.
package config

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/calendar"
	"github.com/backtestlab/simcore/internal/lots"
	"github.com/backtestlab/simcore/internal/portfolio"
	"github.com/backtestlab/simcore/internal/rebalance"
)

// Meta carries free-text run identification, not interpreted by the core.
type Meta struct {
	Name  string `json:"name" yaml:"name"`
	Notes string `json:"notes" yaml:"notes"`
}

// Period bounds the simulation and names the trading calendar.
type Period struct {
	Start    time.Time `json:"start" yaml:"start" validate:"required"`
	End      time.Time `json:"end" yaml:"end" validate:"required,gtfield=Start"`
	Calendar string    `json:"calendar" yaml:"calendar"`
}

// Universe is the set of tradable symbols for the run.
type Universe struct {
	Symbols []string `json:"symbols" yaml:"symbols" validate:"required,min=1,dive,required"`
}

// TaxParams mirrors spec.md §6 account.tax.*.
type TaxParams struct {
	FederalOrdinary         decimal.Decimal `json:"federal_ordinary" yaml:"federal_ordinary"`
	FederalLTCG             decimal.Decimal `json:"federal_ltcg" yaml:"federal_ltcg"`
	State                   decimal.Decimal `json:"state" yaml:"state"`
	QualifiedDividendPct    decimal.Decimal `json:"qualified_dividend_pct" yaml:"qualified_dividend_pct"`
	ApplyWashSale           bool            `json:"apply_wash_sale" yaml:"apply_wash_sale"`
	PayTaxesFromExternal    bool            `json:"pay_taxes_from_external" yaml:"pay_taxes_from_external"`
	WithdrawalTaxRateForIRA decimal.Decimal `json:"withdrawal_tax_rate_for_ira" yaml:"withdrawal_tax_rate_for_ira"`
}

// ContributionCapConfig mirrors spec.md §6 account.contribution_caps.*.
type ContributionCapConfig struct {
	Enforce     bool            `json:"enforce" yaml:"enforce"`
	IRA         decimal.Decimal `json:"ira" yaml:"ira"`
	IRACatchUp  decimal.Decimal `json:"ira_catch_up" yaml:"ira_catch_up"`
	Roth        decimal.Decimal `json:"roth" yaml:"roth"`
	RothCatchUp decimal.Decimal `json:"roth_catch_up" yaml:"roth_catch_up"`
}

// Account mirrors spec.md §6 account.*.
type Account struct {
	Type             portfolio.AccountType `json:"type" yaml:"type" validate:"required,oneof=Taxable Traditional-IRA Roth-IRA 529-Plan"`
	Tax              TaxParams             `json:"tax" yaml:"tax"`
	ContributionCaps ContributionCapConfig `json:"contribution_caps" yaml:"contribution_caps"`
}

// Deposits mirrors spec.md §6 deposits.*.
type Deposits struct {
	Cadence             calendar.Cadence `json:"cadence" yaml:"cadence" validate:"omitempty,oneof=daily weekly monthly quarterly yearly every_market_day"`
	Amount              decimal.Decimal  `json:"amount" yaml:"amount"`
	DayRule             string           `json:"day_rule" yaml:"day_rule"`
	MarketDayEveryday   bool             `json:"market_day_everyday" yaml:"market_day_everyday"`
}

// DividendMode selects cash or reinvestment routing.
type DividendMode string

const (
	DividendDRIP DividendMode = "DRIP"
	DividendCash DividendMode = "CASH"
)

// Dividends mirrors spec.md §6 dividends.*.
type Dividends struct {
	Mode                  DividendMode    `json:"mode" yaml:"mode" validate:"required,oneof=DRIP CASH"`
	ReinvestThresholdPct  decimal.Decimal `json:"reinvest_threshold_pct" yaml:"reinvest_threshold_pct"`
}

// CalendarRebalance names a cadence letter per spec.md §6
// rebalancing.calendar.period.
type CalendarRebalance struct {
	Period string `json:"period" yaml:"period" validate:"omitempty,oneof=D W M Q A"`
}

// DriftRebalance configures the drift trigger.
type DriftRebalance struct {
	AbsPct decimal.Decimal `json:"abs_pct" yaml:"abs_pct"`
	RelPct decimal.Decimal `json:"rel_pct" yaml:"rel_pct"`
}

// Rebalancing mirrors spec.md §6 rebalancing.*.
type Rebalancing struct {
	Type                    rebalance.Mode    `json:"type" yaml:"type" validate:"required,oneof=calendar drift both cashflow_only"`
	Calendar                CalendarRebalance `json:"calendar" yaml:"calendar"`
	Drift                   DriftRebalance    `json:"drift" yaml:"drift"`
	CashflowDeployThreshold decimal.Decimal   `json:"cashflow_deploy_threshold" yaml:"cashflow_deploy_threshold"`
}

// OrderTiming selects the execution price convention.
type OrderTiming string

const (
	MOO OrderTiming = "MOO"
	MOC OrderTiming = "MOC"
)

// Orders mirrors spec.md §6 orders.*.
type Orders struct {
	Timing OrderTiming `json:"timing" yaml:"timing" validate:"required,oneof=MOO MOC"`
}

// LotConfig mirrors spec.md §6 lots.*.
type LotConfig struct {
	Method lots.Method `json:"method" yaml:"method" validate:"required,oneof=FIFO LIFO HIFO"`
}

// Frictions mirrors spec.md §6 frictions.*.
type Frictions struct {
	CommissionPerTrade decimal.Decimal `json:"commission_per_trade" yaml:"commission_per_trade"`
	SlippageBps        decimal.Decimal `json:"slippage_bps" yaml:"slippage_bps"`
	UseActualETFER     bool            `json:"use_actual_etf_er" yaml:"use_actual_etf_er"`
	EquityBorrowBps    decimal.Decimal `json:"equity_borrow_bps" yaml:"equity_borrow_bps"`
}

// PositionSizing mirrors spec.md §6 position_sizing.*.
type PositionSizing struct {
	Method        rebalance.SizingMethod     `json:"method" yaml:"method" validate:"required,oneof=EQUAL_WEIGHT CUSTOM_WEIGHTS"`
	CustomWeights map[string]decimal.Decimal `json:"custom_weights,omitempty" yaml:"custom_weights,omitempty"`
	TopN          int                        `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	VolTarget     decimal.Decimal            `json:"vol_target,omitempty" yaml:"vol_target,omitempty"`
}

// Benchmark names the symbols tracked alongside the strategy for
// alpha/beta/tracking-error computation.
type Benchmark struct {
	Symbols []string `json:"symbols" yaml:"symbols"`
}

// SignalSpec configures one optional technical indicator (spec.md §9).
type SignalSpec struct {
	Kind   string `json:"kind" yaml:"kind"`
	Period int    `json:"period" yaml:"period"`
	Slow   int    `json:"slow,omitempty" yaml:"slow,omitempty"`
	Signal int    `json:"signal,omitempty" yaml:"signal,omitempty"`
	StdDev float64 `json:"std_dev,omitempty" yaml:"std_dev,omitempty"`
}

// StrategyConfig is the complete, immutable simulation input (spec.md §3,
// §6). Unknown keys encountered while decoding are rejected by the
// loader, per §9's "dynamic config objects map to a fully enumerated,
// validated configuration record" resolution.
type StrategyConfig struct {
	Meta           Meta            `json:"meta" yaml:"meta"`
	Period         Period          `json:"period" yaml:"period" validate:"required"`
	Universe       Universe        `json:"universe" yaml:"universe" validate:"required"`
	InitialCash    decimal.Decimal `json:"initial_cash" yaml:"initial_cash"`
	Account        Account         `json:"account" yaml:"account" validate:"required"`
	Deposits       Deposits        `json:"deposits" yaml:"deposits"`
	Dividends      Dividends       `json:"dividends" yaml:"dividends" validate:"required"`
	Rebalancing    Rebalancing     `json:"rebalancing" yaml:"rebalancing" validate:"required"`
	Orders         Orders          `json:"orders" yaml:"orders" validate:"required"`
	Lots           LotConfig       `json:"lots" yaml:"lots" validate:"required"`
	Frictions      Frictions       `json:"frictions" yaml:"frictions"`
	PositionSizing PositionSizing  `json:"position_sizing" yaml:"position_sizing" validate:"required"`
	Benchmark      Benchmark       `json:"benchmark" yaml:"benchmark"`
	Signals        []SignalSpec    `json:"signals,omitempty" yaml:"signals,omitempty"`
}
