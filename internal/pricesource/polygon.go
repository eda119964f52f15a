// Package pricesource provides concrete driver.PriceSource implementations:
// a Polygon.io-backed adapter, a Redis caching decorator, and a SQLite
// fixture source for deterministic offline runs (spec.md §6).
package pricesource

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/driver"
)

// PolygonSource adapts a polygon.Client to driver.PriceSource. It is the
// only component that talks to the Polygon REST API; the core depends on
// the driver.PriceSource interface instead.
type PolygonSource struct {
	client     *polygon.Client
	maxRetries int
}

// NewPolygonSource builds a PolygonSource around a freshly constructed
// polygon.Client, the same construction the teacher uses.
func NewPolygonSource(apiKey string) *PolygonSource {
	return &PolygonSource{client: polygon.New(apiKey), maxRetries: 3}
}

func (s *PolygonSource) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*2) * time.Second):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to %s after %d attempts: %w", operation, s.maxRetries, lastErr)
}

// Bars implements driver.PriceSource using a daily ListAggs call.
func (s *PolygonSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]driver.Bar, error) {
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Asc).WithLimit(50000).WithAdjusted(true)

	var bars []driver.Bar
	err := s.withRetry(ctx, "list aggs for "+symbol, func() error {
		bars = nil
		it := s.client.ListAggs(ctx, params)
		for it.Next() {
			agg := it.Item()
			ts := time.Time(agg.Timestamp)
			bars = append(bars, driver.Bar{
				Date:          time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
				Open:          decimal.NewFromFloat(agg.Open),
				High:          decimal.NewFromFloat(agg.High),
				Low:           decimal.NewFromFloat(agg.Low),
				Close:         decimal.NewFromFloat(agg.Close),
				AdjustedClose: decimal.NewFromFloat(agg.Close),
				Volume:        decimal.NewFromFloat(agg.Volume),
			})
		}
		return it.Err()
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// Dividends implements driver.PriceSource via ListDividends, following the
// same List*Params/WithX builder convention the teacher uses for aggs,
// quotes, and trades.
func (s *PolygonSource) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]driver.DividendAction, error) {
	params := models.ListDividendsParams{
		TickerEQ: &symbol,
	}.WithOrder(models.Asc).WithLimit(1000)

	var out []driver.DividendAction
	err := s.withRetry(ctx, "list dividends for "+symbol, func() error {
		out = nil
		it := s.client.ListDividends(ctx, params)
		for it.Next() {
			d := it.Item()
			exDate := time.Time(d.ExDividendDate)
			if exDate.Before(start) || exDate.After(end) {
				continue
			}
			out = append(out, driver.DividendAction{
				Symbol:            symbol,
				ExDate:            exDate,
				AmountPerShare:    decimal.NewFromFloat(d.CashAmount),
				QualifiedFraction: decimal.NewFromInt(1),
			})
		}
		return it.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Splits implements driver.PriceSource via ListSplits.
func (s *PolygonSource) Splits(ctx context.Context, symbol string, start, end time.Time) ([]driver.SplitAction, error) {
	params := models.ListSplitsParams{
		TickerEQ: &symbol,
	}.WithOrder(models.Asc).WithLimit(1000)

	var out []driver.SplitAction
	err := s.withRetry(ctx, "list splits for "+symbol, func() error {
		out = nil
		it := s.client.ListSplits(ctx, params)
		for it.Next() {
			sp := it.Item()
			date := time.Time(sp.ExecutionDate)
			if date.Before(start) || date.After(end) {
				continue
			}
			ratio := decimal.Zero
			if sp.SplitFrom != 0 {
				ratio = decimal.NewFromFloat(sp.SplitTo / sp.SplitFrom)
			}
			out = append(out, driver.SplitAction{
				Symbol: symbol,
				Date:   date,
				Ratio:  ratio,
			})
		}
		return it.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpenseRatio has no Polygon reference data endpoint; it is supplied by
// host-side configuration instead (spec.md §3 notes ER is a static input).
func (s *PolygonSource) ExpenseRatio(_ context.Context, _ string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

// IsDelisted reports delisting by checking whether the ticker's reference
// details carry an active flag as of date, using GetTickerDetails.
func (s *PolygonSource) IsDelisted(ctx context.Context, symbol string, date time.Time) (bool, error) {
	params := &models.GetTickerDetailsParams{
		Ticker: symbol,
	}
	params = params.WithDate(models.Date(date))

	var delisted bool
	err := s.withRetry(ctx, "get ticker details for "+symbol, func() error {
		res, err := s.client.GetTickerDetails(ctx, params)
		if err != nil {
			return err
		}
		delisted = !res.Results.Active
		return nil
	})
	if err != nil {
		// treat a lookup failure as "unknown, not delisted" rather than
		// aborting the run; missing-bar handling still surfaces the gap.
		return false, nil
	}
	return delisted, nil
}
