// Package tax implements the TaxLedger component of spec.md §4.3: per-year
// accumulation of realized gains and dividend income, and year-end tax
// accrual across federal ordinary, federal long-term-capital-gains, and
// state components.
package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/money"
	"github.com/backtestlab/simcore/internal/portfolio"
)

// Config holds the account's tax parameters (spec.md §6
// account.tax.*).
type Config struct {
	FederalOrdinary         decimal.Decimal
	FederalLTCG             decimal.Decimal
	State                   decimal.Decimal
	QualifiedDividendPct    decimal.Decimal
	ApplyWashSale           bool
	PayTaxesFromExternal    bool
	WithdrawalTaxRateForIRA decimal.Decimal
}

// YearSummary is the closed-book result for one calendar year
// (spec.md §3 TaxYearSummary).
type YearSummary struct {
	Year                int
	ShortTermGains      decimal.Decimal
	LongTermGains       decimal.Decimal
	QualifiedDividends  decimal.Decimal
	OrdinaryDividends   decimal.Decimal
	InterestIncome      decimal.Decimal
	TotalTax            decimal.Decimal
	WashSaleEventCount  int
	ExternalLiability   bool // true if PayTaxesFromExternal: tax does not reduce portfolio cash
}

type yearAccumulator struct {
	shortTermGains     decimal.Decimal
	longTermGains      decimal.Decimal
	qualifiedDividends decimal.Decimal
	ordinaryDividends  decimal.Decimal
	interestIncome     decimal.Decimal
	washSaleEvents     int
}

// Ledger accumulates realized gains, dividends, and wash-sale adjustments
// by calendar year and produces a YearSummary on closeYear. It implements
// internal/portfolio's Divider interface.
type Ledger struct {
	accountType portfolio.AccountType
	years       map[int]*yearAccumulator
	closed      map[int]YearSummary
}

// New constructs an empty Ledger for the given account type.
func New(accountType portfolio.AccountType) *Ledger {
	return &Ledger{
		accountType: accountType,
		years:       make(map[int]*yearAccumulator),
		closed:      make(map[int]YearSummary),
	}
}

func (l *Ledger) yearFor(year int) *yearAccumulator {
	acc, ok := l.years[year]
	if !ok {
		acc = &yearAccumulator{}
		l.years[year] = acc
	}
	return acc
}

// RecordRealizedGain accumulates a SELL's gain or loss into its calendar
// year's short- or long-term bucket.
func (l *Ledger) RecordRealizedGain(g portfolio.RealizedGain) {
	if !l.accountType.Taxed() {
		return
	}
	acc := l.yearFor(g.Date.Year())
	if g.LongTerm {
		acc.longTermGains = acc.longTermGains.Add(g.GainLoss)
	} else {
		acc.shortTermGains = acc.shortTermGains.Add(g.GainLoss)
	}
}

// RecordDividend accumulates qualified and ordinary dividend income into
// the calendar year containing date.
func (l *Ledger) RecordDividend(date time.Time, qualified, ordinary decimal.Decimal) {
	if !l.accountType.Taxed() {
		return
	}
	acc := l.yearFor(date.Year())
	acc.qualifiedDividends = acc.qualifiedDividends.Add(qualified)
	acc.ordinaryDividends = acc.ordinaryDividends.Add(ordinary)
}

// RecordInterestIncome accumulates cash-yield interest income, if
// configured, into the calendar year containing date.
func (l *Ledger) RecordInterestIncome(date time.Time, amount decimal.Decimal) {
	if !l.accountType.Taxed() {
		return
	}
	acc := l.yearFor(date.Year())
	acc.interestIncome = acc.interestIncome.Add(amount)
}

// RecordWashSaleAdjustment retroactively disallows loss from the tax year
// containing saleDate and counts the event, per spec.md §4.2.
func (l *Ledger) RecordWashSaleAdjustment(saleDate time.Time, disallowedAmount decimal.Decimal, longTerm bool) {
	if !l.accountType.Taxed() || disallowedAmount.IsZero() {
		return
	}
	acc := l.yearFor(saleDate.Year())
	if longTerm {
		acc.longTermGains = acc.longTermGains.Add(disallowedAmount)
	} else {
		acc.shortTermGains = acc.shortTermGains.Add(disallowedAmount)
	}
	acc.washSaleEvents++
}

// CloseYear computes the tax due for year and returns the summary.
// Losses offset gains within class first, then cross-class (short-term
// losses reduce long-term gains), and do not carry to a future year
// (spec.md §4.3: documented single-year limitation).
func (l *Ledger) CloseYear(year int, cfg Config) YearSummary {
	acc := l.yearFor(year)

	shortTerm := acc.shortTermGains
	longTerm := acc.longTermGains

	// Within-class offset already reflected since gains/losses accumulate
	// into the same bucket. Cross-class: a net short-term loss offsets a
	// net long-term gain, and vice versa.
	if shortTerm.IsNegative() && longTerm.IsPositive() {
		offset := shortTerm.Neg()
		if offset.GreaterThan(longTerm) {
			offset = longTerm
		}
		longTerm = longTerm.Sub(offset)
		shortTerm = shortTerm.Add(offset)
	} else if longTerm.IsNegative() && shortTerm.IsPositive() {
		offset := longTerm.Neg()
		if offset.GreaterThan(shortTerm) {
			offset = shortTerm
		}
		shortTerm = shortTerm.Sub(offset)
		longTerm = longTerm.Add(offset)
	}

	summary := YearSummary{
		Year:               year,
		ShortTermGains:     money.RoundCash(shortTerm),
		LongTermGains:      money.RoundCash(longTerm),
		QualifiedDividends: money.RoundCash(acc.qualifiedDividends),
		OrdinaryDividends:  money.RoundCash(acc.ordinaryDividends),
		InterestIncome:     money.RoundCash(acc.interestIncome),
		WashSaleEventCount: acc.washSaleEvents,
		ExternalLiability:  cfg.PayTaxesFromExternal,
	}

	if !l.accountType.Taxed() {
		summary.TotalTax = decimal.Zero
		l.closed[year] = summary
		return summary
	}

	ordinaryRate := cfg.FederalOrdinary.Add(cfg.State)
	ltcgRate := cfg.FederalLTCG.Add(cfg.State)

	var tax decimal.Decimal
	if shortTerm.IsPositive() {
		tax = tax.Add(shortTerm.Mul(ordinaryRate))
	}
	if longTerm.IsPositive() {
		tax = tax.Add(longTerm.Mul(ltcgRate))
	}
	tax = tax.Add(acc.ordinaryDividends.Mul(ordinaryRate))
	tax = tax.Add(acc.qualifiedDividends.Mul(ltcgRate))
	tax = tax.Add(acc.interestIncome.Mul(ordinaryRate))

	summary.TotalTax = money.RoundCash(tax)
	l.closed[year] = summary
	return summary
}

// Summary returns the closed YearSummary for year, if closeYear has been
// called for it.
func (l *Ledger) Summary(year int) (YearSummary, bool) {
	s, ok := l.closed[year]
	return s, ok
}

// Summaries returns all closed year summaries, keyed by year.
func (l *Ledger) Summaries() map[int]YearSummary {
	out := make(map[int]YearSummary, len(l.closed))
	for y, s := range l.closed {
		out[y] = s
	}
	return out
}

// WithdrawalAfterTaxEquivalent applies withdrawal_tax_rate_for_ira to a
// Traditional IRA's pre-tax value, per spec.md §4.3. For Roth and Taxable
// accounts it returns value unchanged.
func WithdrawalAfterTaxEquivalent(accountType portfolio.AccountType, value decimal.Decimal, cfg Config) decimal.Decimal {
	if accountType != portfolio.TraditionalIRA {
		return value
	}
	return money.RoundCash(value.Mul(decimal.New(1, 0).Sub(cfg.WithdrawalTaxRateForIRA)))
}
