package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUnknownCalendar(t *testing.T) {
	_, err := Get("Mars")
	require.Error(t, err)
}

func TestIsTradingWeekendsAndHolidays(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	assert.False(t, c.IsTrading(date(2024, time.January, 1)), "New Year's Day")
	assert.False(t, c.IsTrading(date(2024, time.January, 6)), "Saturday")
	assert.False(t, c.IsTrading(date(2024, time.January, 7)), "Sunday")
	assert.True(t, c.IsTrading(date(2024, time.January, 2)))
}

func TestObservedHolidayShift(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	// July 4, 2026 is a Saturday; observed on Friday July 3.
	assert.False(t, c.IsTrading(date(2026, time.July, 3)))
	assert.True(t, c.IsTrading(date(2026, time.July, 6)))
}

func TestEnumerateStrictlyIncreasingAndBounded(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	days := c.Enumerate(date(2024, time.January, 1), date(2024, time.January, 10))
	require.NotEmpty(t, days)
	for i := range days {
		assert.True(t, c.IsTrading(days[i]))
		if i > 0 {
			assert.True(t, days[i].After(days[i-1]))
		}
	}
	assert.False(t, days[0].Before(date(2024, time.January, 1)))
	assert.False(t, days[len(days)-1].After(date(2024, time.January, 10)))
}

func TestAlignCadences(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	// 2024-01-01 is a holiday Monday; monthly aligns to the 2nd.
	aligned, err := c.Align(date(2024, time.January, 15), Monthly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2), aligned)

	// Quarterly from any date in Q1 aligns to the first trading day of January.
	aligned, err = c.Align(date(2024, time.February, 20), Quarterly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2), aligned)

	// Weekly aligns to the Monday of the given date's week, rolled forward
	// if that Monday is not a trading day.
	aligned, err = c.Align(date(2024, time.January, 3), WeeklyMonday)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 1).Weekday(), time.Monday)
	assert.Equal(t, date(2024, time.January, 2), aligned) // Jan 1 holiday -> Jan 2

	_, err = c.Align(date(2024, time.January, 1), Cadence("bogus"))
	assert.Error(t, err)
}

func TestAlignDepositOnHolidayShiftsForward(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	// Deposit scheduled on a holiday shifts to the next trading day.
	aligned, err := c.Align(date(2024, time.January, 1), Daily)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2), aligned)
}

func TestAlignWithRuleLastDayOfPeriod(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	// Monthly, day_rule unset: first trading day of January (the 2nd, since
	// the 1st is a holiday).
	aligned, err := c.AlignWithRule(date(2024, time.January, 15), Monthly, "")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 2), aligned)

	// Monthly, day_rule "last": last trading day of January 2024 (Jan 31 is
	// a Wednesday, a trading day).
	aligned, err = c.AlignWithRule(date(2024, time.January, 15), Monthly, "last")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 31), aligned)

	// Quarterly, day_rule "last": last trading day of Q1 2024 (March 29 is
	// Good Friday; last trading day is March 28).
	aligned, err = c.AlignWithRule(date(2024, time.February, 10), Quarterly, "last")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 28), aligned)
}

func TestPriorTradingDaySkipsNonTradingDays(t *testing.T) {
	c, err := Get("US")
	require.NoError(t, err)

	assert.Equal(t, date(2023, time.December, 29), c.PriorTradingDay(date(2024, time.January, 1)))
	assert.Equal(t, date(2024, time.January, 2), c.PriorTradingDay(date(2024, time.January, 2)))
}
