package tax

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/backtestlab/simcore/internal/portfolio"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestCloseYearTaxableBasic(t *testing.T) {
	l := New(portfolio.Taxable)
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.March, 1), GainLoss: d("1000"), LongTerm: true})
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.June, 1), GainLoss: d("500"), LongTerm: false})
	l.RecordDividend(date(2024, time.April, 1), d("100"), d("50"))

	cfg := Config{FederalOrdinary: d("0.24"), FederalLTCG: d("0.15"), State: d("0.05")}
	summary := l.CloseYear(2024, cfg)

	assert.True(t, summary.LongTermGains.Equal(d("1000")))
	assert.True(t, summary.ShortTermGains.Equal(d("500")))
	// tax = 500*0.29 + 1000*0.20 + 50*0.29 + 100*0.20 = 145 + 200 + 14.5 + 20 = 379.5
	assert.True(t, summary.TotalTax.Equal(d("379.5")))
}

func TestCloseYearCrossClassOffset(t *testing.T) {
	l := New(portfolio.Taxable)
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.March, 1), GainLoss: d("-300"), LongTerm: false})
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.June, 1), GainLoss: d("1000"), LongTerm: true})

	cfg := Config{FederalOrdinary: d("0.24"), FederalLTCG: d("0.15"), State: d("0")}
	summary := l.CloseYear(2024, cfg)

	assert.True(t, summary.ShortTermGains.IsZero())
	assert.True(t, summary.LongTermGains.Equal(d("700")))
	assert.True(t, summary.TotalTax.Equal(d("105"))) // 700*0.15
}

func TestCloseYearIRAIsUntaxed(t *testing.T) {
	l := New(portfolio.RothIRA)
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.March, 1), GainLoss: d("1000"), LongTerm: true})
	cfg := Config{FederalOrdinary: d("0.24"), FederalLTCG: d("0.15"), State: d("0.05")}
	summary := l.CloseYear(2024, cfg)
	assert.True(t, summary.TotalTax.IsZero())
}

func TestWashSaleAdjustmentReducesRecognizedLoss(t *testing.T) {
	l := New(portfolio.Taxable)
	l.RecordRealizedGain(portfolio.RealizedGain{Date: date(2024, time.February, 1), GainLoss: d("-500"), LongTerm: false})
	l.RecordWashSaleAdjustment(date(2024, time.February, 1), d("200"), false)

	cfg := Config{FederalOrdinary: d("0.24"), FederalLTCG: d("0.15"), State: d("0")}
	summary := l.CloseYear(2024, cfg)
	assert.True(t, summary.ShortTermGains.Equal(d("-300")))
	assert.Equal(t, 1, summary.WashSaleEventCount)
}

func TestWithdrawalAfterTaxEquivalentOnlyAppliesToTraditionalIRA(t *testing.T) {
	cfg := Config{WithdrawalTaxRateForIRA: d("0.22")}
	assert.True(t, WithdrawalAfterTaxEquivalent(portfolio.TraditionalIRA, d("1000"), cfg).Equal(d("780")))
	assert.True(t, WithdrawalAfterTaxEquivalent(portfolio.RothIRA, d("1000"), cfg).Equal(d("1000")))
	assert.True(t, WithdrawalAfterTaxEquivalent(portfolio.Taxable, d("1000"), cfg).Equal(d("1000")))
}
