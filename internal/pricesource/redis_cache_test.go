package pricesource

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/backtestlab/simcore/internal/driver"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("SIMCORE_TEST_DOCKER") != "true" {
		t.Skip("Docker tests disabled (set SIMCORE_TEST_DOCKER=true to enable)")
	}
}

type countingSource struct {
	calls int
	bars  []driver.Bar
}

func (c *countingSource) Bars(_ context.Context, _ string, _, _ time.Time) ([]driver.Bar, error) {
	c.calls++
	return c.bars, nil
}
func (c *countingSource) Dividends(_ context.Context, _ string, _, _ time.Time) ([]driver.DividendAction, error) {
	return nil, nil
}
func (c *countingSource) Splits(_ context.Context, _ string, _, _ time.Time) ([]driver.SplitAction, error) {
	return nil, nil
}
func (c *countingSource) ExpenseRatio(_ context.Context, _ string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (c *countingSource) IsDelisted(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func TestCachedSourceServesSecondCallFromCache(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer container.Terminate(ctx)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	defer client.Close()

	underlying := &countingSource{bars: []driver.Bar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: dec(100), High: dec(101), Low: dec(99), Close: dec(100.5), AdjustedClose: dec(100.5), Volume: dec(1000)},
	}}
	cached := NewCachedSource(underlying, client)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	first, err := cached.Bars(ctx, "SPY", start, end)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, underlying.calls)

	second, err := cached.Bars(ctx, "SPY", start, end)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, underlying.calls, "second call should be served from cache, not the underlying source")
	require.True(t, second[0].Close.Equal(first[0].Close))
}
