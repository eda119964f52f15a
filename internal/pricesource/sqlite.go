package pricesource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registered as "sqlite"

	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/driver"
)

// FixtureSource is a deterministic driver.PriceSource backed by a SQLite
// database of pre-recorded bars/dividends/splits, grounded in the same
// sql.Open/Query/Scan idiom the pack's history-db accessors use, but with
// no in-memory caching layer: a fixture run is expected to be small and
// replayed exactly, never mutated mid-run.
type FixtureSource struct {
	db *sql.DB
}

// OpenFixtureSource opens a SQLite fixture database at path; it does not
// check that the file exists or holds the schema below. Callers are expected to have populated it out-of-band with the
// schema below.
func OpenFixtureSource(path string) (*FixtureSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open fixture database: %w", err)
	}
	return &FixtureSource{db: db}, nil
}

// Close releases the underlying database handle.
func (f *FixtureSource) Close() error { return f.db.Close() }

// Schema:
//   bars(symbol TEXT, date TEXT, open TEXT, high TEXT, low TEXT, close TEXT, adjusted_close TEXT, volume TEXT)
//   dividends(symbol TEXT, ex_date TEXT, amount_per_share TEXT, qualified_fraction TEXT)
//   splits(symbol TEXT, date TEXT, ratio TEXT)
//   delistings(symbol TEXT, delisted_on TEXT)
//   expense_ratios(symbol TEXT, ratio TEXT)
// All monetary columns are stored as decimal-string TEXT to avoid float
// round-tripping through SQLite's NUMERIC affinity.

func (f *FixtureSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]driver.Bar, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adjusted_close, volume
		FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []driver.Bar
	for rows.Next() {
		var dateStr, openS, highS, lowS, closeS, adjS, volS string
		if err := rows.Scan(&dateStr, &openS, &highS, &lowS, &closeS, &adjS, &volS); err != nil {
			return nil, fmt.Errorf("scan bar row for %s: %w", symbol, err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse bar date for %s: %w", symbol, err)
		}
		b, err := decodeBar(date, openS, highS, lowS, closeS, adjS, volS)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func decodeBar(date time.Time, openS, highS, lowS, closeS, adjS, volS string) (driver.Bar, error) {
	open, err := decimal.NewFromString(openS)
	if err != nil {
		return driver.Bar{}, err
	}
	high, err := decimal.NewFromString(highS)
	if err != nil {
		return driver.Bar{}, err
	}
	low, err := decimal.NewFromString(lowS)
	if err != nil {
		return driver.Bar{}, err
	}
	closePx, err := decimal.NewFromString(closeS)
	if err != nil {
		return driver.Bar{}, err
	}
	adj, err := decimal.NewFromString(adjS)
	if err != nil {
		return driver.Bar{}, err
	}
	vol, err := decimal.NewFromString(volS)
	if err != nil {
		return driver.Bar{}, err
	}
	return driver.Bar{Date: date, Open: open, High: high, Low: low, Close: closePx, AdjustedClose: adj, Volume: vol}, nil
}

func (f *FixtureSource) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]driver.DividendAction, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT ex_date, amount_per_share, qualified_fraction
		FROM dividends
		WHERE symbol = ? AND ex_date >= ? AND ex_date <= ?
		ORDER BY ex_date ASC
	`, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query dividends for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []driver.DividendAction
	for rows.Next() {
		var dateStr, amountS, qualS string
		if err := rows.Scan(&dateStr, &amountS, &qualS); err != nil {
			return nil, fmt.Errorf("scan dividend row for %s: %w", symbol, err)
		}
		exDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse dividend date for %s: %w", symbol, err)
		}
		amount, err := decimal.NewFromString(amountS)
		if err != nil {
			return nil, err
		}
		qualified, err := decimal.NewFromString(qualS)
		if err != nil {
			return nil, err
		}
		out = append(out, driver.DividendAction{Symbol: symbol, ExDate: exDate, AmountPerShare: amount, QualifiedFraction: qualified})
	}
	return out, rows.Err()
}

func (f *FixtureSource) Splits(ctx context.Context, symbol string, start, end time.Time) ([]driver.SplitAction, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT date, ratio
		FROM splits
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query splits for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []driver.SplitAction
	for rows.Next() {
		var dateStr, ratioS string
		if err := rows.Scan(&dateStr, &ratioS); err != nil {
			return nil, fmt.Errorf("scan split row for %s: %w", symbol, err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse split date for %s: %w", symbol, err)
		}
		ratio, err := decimal.NewFromString(ratioS)
		if err != nil {
			return nil, err
		}
		out = append(out, driver.SplitAction{Symbol: symbol, Date: date, Ratio: ratio})
	}
	return out, rows.Err()
}

func (f *FixtureSource) ExpenseRatio(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	var ratioS string
	err := f.db.QueryRowContext(ctx, `SELECT ratio FROM expense_ratios WHERE symbol = ?`, symbol).Scan(&ratioS)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("query expense ratio for %s: %w", symbol, err)
	}
	ratio, err := decimal.NewFromString(ratioS)
	if err != nil {
		return decimal.Zero, false, err
	}
	return ratio, true, nil
}

func (f *FixtureSource) IsDelisted(ctx context.Context, symbol string, date time.Time) (bool, error) {
	var delistedOnStr string
	err := f.db.QueryRowContext(ctx, `SELECT delisted_on FROM delistings WHERE symbol = ?`, symbol).Scan(&delistedOnStr)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query delisting for %s: %w", symbol, err)
	}
	delistedOn, err := time.Parse("2006-01-02", delistedOnStr)
	if err != nil {
		return false, fmt.Errorf("parse delisting date for %s: %w", symbol, err)
	}
	return !date.Before(delistedOn), nil
}
