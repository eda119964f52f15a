package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func day(offset int) time.Time {
	return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestComputeWithFewerThanTwoPointsReturnsNulls(t *testing.T) {
	res := Compute([]EquityPoint{{Date: day(0), TotalValue: dec(10000)}}, nil, 0)
	assert.True(t, IsNull(res.TWR))
	assert.True(t, IsNull(res.Sharpe))
}

func TestComputeSteadyGrowth(t *testing.T) {
	points := []EquityPoint{
		{Date: day(0), TotalValue: dec(10000)},
		{Date: day(1), TotalValue: dec(10100)},
		{Date: day(2), TotalValue: dec(10201)},
		{Date: day(3), TotalValue: dec(10303.01)},
	}
	res := Compute(points, nil, 0)
	assert.InDelta(t, 0.030301, res.TWR, 1e-6)
	assert.True(t, IsNull(res.Alpha))
}

func TestMaxDrawdown(t *testing.T) {
	points := []EquityPoint{
		{Date: day(0), TotalValue: dec(100)},
		{Date: day(1), TotalValue: dec(120)},
		{Date: day(2), TotalValue: dec(90)},
		{Date: day(3), TotalValue: dec(110)},
	}
	dd, days := MaxDrawdown(points)
	assert.InDelta(t, -0.25, dd, 1e-9)
	assert.Equal(t, 2, days)
}

func TestComputeIRRKnownCase(t *testing.T) {
	points := []EquityPoint{
		{Date: day(0), TotalValue: dec(1000), ExternalCashflow: dec(1000)},
		{Date: day(365), TotalValue: dec(1100)},
	}
	irr := computeIRR(points)
	assert.InDelta(t, 0.10, irr, 1e-3)
}

func TestComputeWithBenchmarkAlphaBeta(t *testing.T) {
	strategy := []EquityPoint{
		{Date: day(0), TotalValue: dec(100)},
		{Date: day(1), TotalValue: dec(102)},
		{Date: day(2), TotalValue: dec(104)},
		{Date: day(3), TotalValue: dec(106)},
	}
	benchmark := []EquityPoint{
		{Date: day(0), TotalValue: dec(100)},
		{Date: day(1), TotalValue: dec(101)},
		{Date: day(2), TotalValue: dec(102)},
		{Date: day(3), TotalValue: dec(103)},
	}
	res := Compute(strategy, benchmark, 0)
	assert.False(t, IsNull(res.Beta))
	assert.False(t, IsNull(res.TrackingError))
}
