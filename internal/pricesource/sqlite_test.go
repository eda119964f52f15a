package pricesource

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func seedFixture(t *testing.T, f *FixtureSource) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE bars(symbol TEXT, date TEXT, open TEXT, high TEXT, low TEXT, close TEXT, adjusted_close TEXT, volume TEXT)`,
		`CREATE TABLE dividends(symbol TEXT, ex_date TEXT, amount_per_share TEXT, qualified_fraction TEXT)`,
		`CREATE TABLE splits(symbol TEXT, date TEXT, ratio TEXT)`,
		`CREATE TABLE delistings(symbol TEXT, delisted_on TEXT)`,
		`CREATE TABLE expense_ratios(symbol TEXT, ratio TEXT)`,
		`INSERT INTO bars VALUES ('SPY', '2024-01-02', '470', '472', '469', '471', '471', '1000')`,
		`INSERT INTO bars VALUES ('SPY', '2024-01-03', '471', '473', '470', '472', '472', '1100')`,
		`INSERT INTO dividends VALUES ('SPY', '2024-01-03', '1.50', '1')`,
		`INSERT INTO splits VALUES ('SPY', '2024-01-03', '2')`,
		`INSERT INTO expense_ratios VALUES ('SPY', '0.0009')`,
		`INSERT INTO delistings VALUES ('OLD', '2024-01-02')`,
	}
	for _, stmt := range stmts {
		_, err := f.db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestFixtureSourceBarsAndCorporateActions(t *testing.T) {
	f, err := OpenFixtureSource(":memory:")
	require.NoError(t, err)
	defer f.Close()
	seedFixture(t, f)

	ctx := context.Background()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	bars, err := f.Bars(ctx, "SPY", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.True(t, bars[1].Close.Equal(dec(472)))

	divs, err := f.Dividends(ctx, "SPY", start, end)
	require.NoError(t, err)
	require.Len(t, divs, 1)
	require.True(t, divs[0].AmountPerShare.Equal(dec(1.5)))

	splits, err := f.Splits(ctx, "SPY", start, end)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	require.True(t, splits[0].Ratio.Equal(dec(2)))

	ratio, ok, err := f.ExpenseRatio(ctx, "SPY")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ratio.Equal(dec(0.0009)))

	_, ok, err = f.ExpenseRatio(ctx, "QQQ")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFixtureSourceIsDelisted(t *testing.T) {
	f, err := OpenFixtureSource(":memory:")
	require.NoError(t, err)
	defer f.Close()
	seedFixture(t, f)

	ctx := context.Background()
	delisted, err := f.IsDelisted(ctx, "OLD", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, delisted)

	active, err := f.IsDelisted(ctx, "SPY", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, active)
}
