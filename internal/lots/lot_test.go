package lots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestIsLongTerm(t *testing.T) {
	acquired := date(2023, time.January, 1)
	assert.False(t, IsLongTerm(acquired, date(2024, time.January, 1)))
	assert.True(t, IsLongTerm(acquired, date(2024, time.January, 2)))
}

func TestApplySplit(t *testing.T) {
	l := NewLot("AAPL", d("100"), d("10.00"), date(2023, time.June, 1))
	l.ApplySplit(d("2"))
	assert.True(t, l.RemainingQuantity.Equal(d("200")))
	assert.True(t, l.CostBasisPerShare.Equal(d("5.00")))
}

func TestOrderedFIFOAndLIFO(t *testing.T) {
	l1 := NewLot("AAPL", d("10"), d("100"), date(2023, time.January, 1))
	l2 := NewLot("AAPL", d("10"), d("120"), date(2023, time.June, 1))
	l3 := NewLot("AAPL", d("10"), d("90"), date(2023, time.March, 1))

	fifo := Ordered([]*Lot{l1, l2, l3}, FIFO)
	require.Len(t, fifo, 3)
	assert.Equal(t, l1, fifo[0])
	assert.Equal(t, l3, fifo[1])
	assert.Equal(t, l2, fifo[2])

	lifo := Ordered([]*Lot{l1, l2, l3}, LIFO)
	assert.Equal(t, l2, lifo[0])
	assert.Equal(t, l3, lifo[1])
	assert.Equal(t, l1, lifo[2])

	hifo := Ordered([]*Lot{l1, l2, l3}, HIFO)
	assert.Equal(t, l2, hifo[0]) // cost 120, highest
	assert.Equal(t, l1, hifo[1]) // cost 100
	assert.Equal(t, l3, hifo[2]) // cost 90, lowest
}

func TestPositionAggregates(t *testing.T) {
	l1 := NewLot("AAPL", d("10"), d("100"), date(2023, time.January, 1))
	l2 := NewLot("AAPL", d("5"), d("120"), date(2023, time.June, 1))
	p := &Position{Symbol: "AAPL", Lots: []*Lot{l1, l2}}

	assert.True(t, p.Shares().Equal(d("15")))
	assert.True(t, p.CostBasis().Equal(d("1000").Add(d("600"))))
	assert.True(t, p.MarketValue(d("150")).Equal(d("2250")))
}

func TestWashWindowMatch(t *testing.T) {
	w := &WashWindow{
		Symbol:       "AAPL",
		SaleDate:     date(2024, time.March, 10),
		LossPerShare: d("5"),
		SharesSold:   d("10"),
	}
	assert.True(t, w.InWindow(date(2024, time.March, 20)))
	assert.False(t, w.InWindow(date(2024, time.April, 15)))

	matched, disallowed := w.Match(d("6"))
	assert.True(t, matched.Equal(d("6")))
	assert.True(t, disallowed.Equal(d("30")))
	assert.True(t, w.Open())
	assert.True(t, w.Remaining().Equal(d("4")))

	matched2, disallowed2 := w.Match(d("10"))
	assert.True(t, matched2.Equal(d("4")))
	assert.True(t, disallowed2.Equal(d("20")))
	assert.False(t, w.Open())
}
