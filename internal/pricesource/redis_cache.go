package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/driver"
)

const barsTTL = 24 * time.Hour

// CachedSource wraps a driver.PriceSource with a Redis-backed bar cache,
// following the Get/json.Unmarshal/redis.Nil pattern the teacher uses for
// its conversation cache. Only Bars is cached: dividends/splits are looked
// up rarely (once per preload) and ExpenseRatio/IsDelisted are cheap
// metadata calls not worth the round trip.
type CachedSource struct {
	underlying driver.PriceSource
	cache      *redis.Client
}

// NewCachedSource returns a CachedSource decorating underlying.
func NewCachedSource(underlying driver.PriceSource, cache *redis.Client) *CachedSource {
	return &CachedSource{underlying: underlying, cache: cache}
}

type cachedBar struct {
	Date          time.Time `json:"date"`
	Open          string    `json:"open"`
	High          string    `json:"high"`
	Low           string    `json:"low"`
	Close         string    `json:"close"`
	AdjustedClose string    `json:"adjusted_close"`
	Volume        string    `json:"volume"`
}

func barCacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("bars:%s:%s:%s", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func toCachedBars(bars []driver.Bar) []cachedBar {
	out := make([]cachedBar, len(bars))
	for i, b := range bars {
		out[i] = cachedBar{
			Date: b.Date, Open: b.Open.String(), High: b.High.String(), Low: b.Low.String(),
			Close: b.Close.String(), AdjustedClose: b.AdjustedClose.String(), Volume: b.Volume.String(),
		}
	}
	return out
}

func fromCachedBars(cached []cachedBar) ([]driver.Bar, error) {
	out := make([]driver.Bar, len(cached))
	for i, c := range cached {
		open, err := decimal.NewFromString(c.Open)
		if err != nil {
			return nil, err
		}
		high, err := decimal.NewFromString(c.High)
		if err != nil {
			return nil, err
		}
		low, err := decimal.NewFromString(c.Low)
		if err != nil {
			return nil, err
		}
		closePx, err := decimal.NewFromString(c.Close)
		if err != nil {
			return nil, err
		}
		adj, err := decimal.NewFromString(c.AdjustedClose)
		if err != nil {
			return nil, err
		}
		vol, err := decimal.NewFromString(c.Volume)
		if err != nil {
			return nil, err
		}
		out[i] = driver.Bar{Date: c.Date, Open: open, High: high, Low: low, Close: closePx, AdjustedClose: adj, Volume: vol}
	}
	return out, nil
}

// Bars serves from cache on a hit and falls back to the underlying source
// on a miss, populating the cache for next time.
func (c *CachedSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]driver.Bar, error) {
	key := barCacheKey(symbol, start, end)

	raw, err := c.cache.Get(ctx, key).Result()
	if err == nil {
		var cached []cachedBar
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			bars, convErr := fromCachedBars(cached)
			if convErr == nil {
				return bars, nil
			}
		}
		// corrupted entry, fall through to refetch
		c.cache.Del(ctx, key)
	} else if err != redis.Nil {
		return nil, fmt.Errorf("redis bar cache lookup for %s: %w", symbol, err)
	}

	bars, err := c.underlying.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(toCachedBars(bars)); marshalErr == nil {
		c.cache.Set(ctx, key, payload, barsTTL)
	}
	return bars, nil
}

func (c *CachedSource) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]driver.DividendAction, error) {
	return c.underlying.Dividends(ctx, symbol, start, end)
}

func (c *CachedSource) Splits(ctx context.Context, symbol string, start, end time.Time) ([]driver.SplitAction, error) {
	return c.underlying.Splits(ctx, symbol, start, end)
}

func (c *CachedSource) ExpenseRatio(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	return c.underlying.ExpenseRatio(ctx, symbol)
}

func (c *CachedSource) IsDelisted(ctx context.Context, symbol string, date time.Time) (bool, error) {
	return c.underlying.IsDelisted(ctx, symbol, date)
}
