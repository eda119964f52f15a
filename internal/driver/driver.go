package driver

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/backtestlab/simcore/internal/calendar"
	"github.com/backtestlab/simcore/internal/config"
	"github.com/backtestlab/simcore/internal/lots"
	"github.com/backtestlab/simcore/internal/metrics"
	"github.com/backtestlab/simcore/internal/portfolio"
	"github.com/backtestlab/simcore/internal/rebalance"
	"github.com/backtestlab/simcore/internal/signals"
	"github.com/backtestlab/simcore/internal/simerr"
	"github.com/backtestlab/simcore/internal/tax"
)

// SimulationDriver is the top-level orchestrator: it owns no state beyond
// what it needs to run exactly one simulation over one StrategyConfig,
// per spec.md §5's single-threaded-cooperative model.
type SimulationDriver struct {
	Config      config.StrategyConfig
	Source      PriceSource
	Calendar    *calendar.Calendar
	Rebalancer  *rebalance.Rebalancer
	Signals     signals.Engine
	Progress    ProgressReporter

	// EventLog, if set, receives one structured record per simulated
	// trading day (prices applied, trades executed, warnings raised). A
	// nil EventLog disables day-level structured logging entirely.
	EventLog *zap.Logger
}

// loadedSeries is the per-symbol data preloaded once at the start of a
// run. Bars, dividends, splits, and expense ratios are all fetched here,
// before the daily loop begins; the only PriceSource call made inside the
// loop is IsDelisted, when a universe symbol has no bar for a day.
type loadedSeries struct {
	bars         map[string]map[string]Bar // symbol -> "YYYY-MM-DD" -> Bar
	dividends    map[string]map[string]DividendAction
	splits       map[string]map[string]SplitAction
	expenseRatio map[string]decimal.Decimal
}

func dayKey(d time.Time) string { return d.Format("2006-01-02") }

// allSymbols returns the universe plus any benchmark symbols, deduplicated,
// so preload fetches benchmark data alongside the traded universe.
func allSymbols(cfg config.StrategyConfig) []string {
	seen := make(map[string]bool, len(cfg.Universe.Symbols)+len(cfg.Benchmark.Symbols))
	var out []string
	for _, sym := range cfg.Universe.Symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for _, sym := range cfg.Benchmark.Symbols {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func (d *SimulationDriver) preload(ctx context.Context) (*loadedSeries, error) {
	out := &loadedSeries{
		bars:         make(map[string]map[string]Bar),
		dividends:    make(map[string]map[string]DividendAction),
		splits:       make(map[string]map[string]SplitAction),
		expenseRatio: make(map[string]decimal.Decimal),
	}
	start, end := d.Config.Period.Start, d.Config.Period.End
	for _, sym := range allSymbols(d.Config) {
		bars, err := d.Source.Bars(ctx, sym, start, end)
		if err != nil {
			return nil, simerr.Newf(simerr.KindDataUnavailable, "fetching bars for %s: %v", sym, err).WithSymbol(sym).Wrap(err)
		}
		byDate := make(map[string]Bar, len(bars))
		for _, b := range bars {
			byDate[dayKey(b.Date)] = b
		}
		out.bars[sym] = byDate

		divs, err := d.Source.Dividends(ctx, sym, start, end)
		if err != nil {
			return nil, simerr.Newf(simerr.KindDataUnavailable, "fetching dividends for %s: %v", sym, err).WithSymbol(sym).Wrap(err)
		}
		divByDate := make(map[string]DividendAction, len(divs))
		for _, div := range divs {
			divByDate[dayKey(div.ExDate)] = div
		}
		out.dividends[sym] = divByDate

		splits, err := d.Source.Splits(ctx, sym, start, end)
		if err != nil {
			return nil, simerr.Newf(simerr.KindDataUnavailable, "fetching splits for %s: %v", sym, err).WithSymbol(sym).Wrap(err)
		}
		splitByDate := make(map[string]SplitAction, len(splits))
		for _, s := range splits {
			splitByDate[dayKey(s.Date)] = s
		}
		out.splits[sym] = splitByDate

		if er, ok, err := d.Source.ExpenseRatio(ctx, sym); err == nil && ok {
			out.expenseRatio[sym] = er
		}
	}
	return out, nil
}

// schedule tracks the last cadence key that has already fired, so the
// driver can detect the single trading day each cadence period aligns to
// without re-firing.
type schedule struct {
	lastKey string
}

// due reports whether cfg's deposit schedule fires on date. cfg.MarketDayEveryday
// overrides cadence to every trading day (spec.md §6 deposits.market_day_everyday);
// cfg.DayRule selects which trading day within the cadence period is
// scheduled ("last" for the last trading day, anything else for Align's
// first-trading-day default, per deposits.day_rule).
func (s *schedule) due(cal *calendar.Calendar, date time.Time, cfg config.Deposits) (bool, error) {
	cadence := cfg.Cadence
	if cfg.MarketDayEveryday {
		cadence = calendar.EveryMarketDay
	}
	aligned, err := cal.AlignWithRule(date, cadence, cfg.DayRule)
	if err != nil {
		return false, err
	}
	key := aligned.Format("2006-01-02")
	if aligned.Equal(normalize(date)) && key != s.lastKey {
		s.lastKey = key
		return true, nil
	}
	return false, nil
}

func normalize(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Run executes the daily loop described in spec.md §4.6 and returns the
// complete result bundle.
func (d *SimulationDriver) Run(ctx context.Context) (*ResultBundle, error) {
	days := d.Calendar.Enumerate(d.Config.Period.Start, d.Config.Period.End)
	data, err := d.preload(ctx)
	if err != nil {
		return nil, err
	}

	ledger := tax.New(d.Config.Account.Type)
	friction := portfolio.FrictionModel{
		CommissionPerTrade: d.Config.Frictions.CommissionPerTrade,
		SlippageBps:        d.Config.Frictions.SlippageBps,
	}
	caps := portfolio.ContributionCaps{
		Enforce: d.Config.Account.ContributionCaps.Enforce,
		IRA:     d.Config.Account.ContributionCaps.IRA, IRACatchUp: d.Config.Account.ContributionCaps.IRACatchUp,
		Roth: d.Config.Account.ContributionCaps.Roth, RothCatchUp: d.Config.Account.ContributionCaps.RothCatchUp,
	}
	pf := portfolio.New(d.Config.Account.Type, friction, caps, d.Config.Account.Tax.ApplyWashSale, d.Config.InitialCash, ledger)

	var (
		equity      []metrics.EquityPoint
		warnings    []Warning
		depositSch  schedule
		diag        Diagnostics
		partial     bool
		signalLog   []SignalObservation
		closeHistory = make(map[string][]float64)
	)

	for _, date := range days {
		select {
		case <-ctx.Done():
			partial = true
		default:
		}
		if partial {
			break
		}

		if d.Progress != nil {
			d.Progress.Report(len(equity), len(days), date)
		}

		tradesBeforeToday := len(pf.Trades())
		warningsBeforeToday := len(warnings)

		closes := make(map[string]decimal.Decimal)
		opens := make(map[string]decimal.Decimal)
		for _, sym := range d.Config.Universe.Symbols {
			bar, ok := data.bars[sym][dayKey(date)]
			if !ok {
				delisted, derr := d.Source.IsDelisted(ctx, sym, date)
				if derr == nil && delisted {
					continue // spec.md §3: a symbol marked delisted after a date is exempt from the bar invariant
				}
				return nil, simerr.Newf(simerr.KindDataUnavailable, "missing bar for %s on %s", sym, dayKey(date)).
					WithSymbol(sym).WithDate(dayKey(date))
			}
			closes[sym] = bar.Close
			opens[sym] = bar.Open

			if split, ok := data.splits[sym][dayKey(date)]; ok {
				pf.ApplySplit(sym, split.Ratio, date)
			}
		}

		dividendCashToday := decimal.Zero
		for _, sym := range d.Config.Universe.Symbols {
			div, ok := data.dividends[sym][dayKey(date)]
			if !ok {
				continue
			}
			drip := d.Config.Dividends.Mode == config.DividendDRIP
			cashBefore := pf.Cash
			if err := pf.ApplyDividend(sym, div.AmountPerShare, div.QualifiedFraction, date, drip, closes[sym]); err != nil {
				warnings = append(warnings, Warning{Kind: simerr.KindInsufficientCash, Message: err.Error(), Date: date, Symbol: sym})
			}
			if !drip {
				dividendCashToday = dividendCashToday.Add(pf.Cash.Sub(cashBefore))
			}
		}

		cashAddedToday := decimal.Zero
		if due, err := depositSch.due(d.Calendar, date, d.Config.Deposits); err == nil && due && d.Config.Deposits.Amount.IsPositive() {
			cashBefore := pf.Cash
			if err := pf.Deposit(d.Config.Deposits.Amount, date); err != nil {
				warnings = append(warnings, Warning{Kind: simerr.KindContributionCapExceeded, Message: err.Error(), Date: date})
			}
			cashAddedToday = pf.Cash.Sub(cashBefore)
		}

		// Signals evaluate against bars up to and including t-1 (spec.md
		// §4.6: no look-ahead), so today's close is appended to the history
		// only after evaluation.
		if len(d.Signals.Specs) > 0 {
			for _, sym := range d.Config.Universe.Symbols {
				values, err := d.Signals.Evaluate(closeHistory[sym])
				if err != nil {
					return nil, err
				}
				signalLog = append(signalLog, SignalObservation{Date: date, Symbol: sym, Values: values})
			}
		}
		for _, sym := range d.Config.Universe.Symbols {
			f, _ := closes[sym].Float64()
			closeHistory[sym] = append(closeHistory[sym], f)
		}

		if d.Rebalancer != nil {
			holdings := buildHoldings(pf, d.Config.Universe.Symbols, closes, date)
			totalValue := pf.TotalValue(closes)
			due, err := d.Rebalancer.Due(date, holdings, totalValue, cashAddedToday.Add(dividendCashToday))
			if err != nil {
				return nil, err
			}
			if due {
				tradePrices := closes
				if d.Config.Orders.Timing == config.MOO {
					tradePrices = opens
				}
				legs, err := d.Rebalancer.Plan(holdings, totalValue)
				if err != nil {
					return nil, err
				}
				executed, w := d.executePlan(pf, legs, tradePrices, date)
				diag.TradesExecuted += executed
				warnings = append(warnings, w...)
				diag.RebalancesPerformed++
			}
		}

		markCloses := applyERDrag(closes, data.expenseRatio)
		total := pf.TotalValue(markCloses)
		equity = append(equity, metrics.EquityPoint{
			Date: date, Cash: pf.Cash, PositionsValue: pf.Mark(markCloses),
			TotalValue: total, ExternalCashflow: cashAddedToday,
		})

		if d.EventLog != nil {
			d.EventLog.Info("trading day complete",
				zap.String("date", dayKey(date)),
				zap.String("total_value", total.String()),
				zap.String("cash", pf.Cash.String()),
				zap.Int("trades_today", len(pf.Trades())-tradesBeforeToday),
				zap.Int("warnings_today", len(warnings)-warningsBeforeToday),
			)
		}

		if isLastTradingDayOfYear(d.Calendar, date) {
			yearSummary := ledger.CloseYear(date.Year(), tax.Config{
				FederalOrdinary: d.Config.Account.Tax.FederalOrdinary, FederalLTCG: d.Config.Account.Tax.FederalLTCG,
				State: d.Config.Account.Tax.State, QualifiedDividendPct: d.Config.Account.Tax.QualifiedDividendPct,
				PayTaxesFromExternal: d.Config.Account.Tax.PayTaxesFromExternal,
				WithdrawalTaxRateForIRA: d.Config.Account.Tax.WithdrawalTaxRateForIRA,
			})
			if !yearSummary.ExternalLiability && yearSummary.TotalTax.IsPositive() {
				pf.Cash = pf.Cash.Sub(yearSummary.TotalTax)
			}
		}
	}

	diag.TotalDays = len(equity)

	benchmarkEquity := make(map[string][]metrics.EquityPoint)
	benchmarkMetrics := make(map[string]metrics.Result)
	for _, sym := range d.Config.Benchmark.Symbols {
		curve, err := d.runBenchmarkBuyAndHold(ctx, sym, days, data)
		if err != nil {
			warnings = append(warnings, Warning{Kind: simerr.KindDataUnavailable, Message: err.Error(), Symbol: sym})
			continue
		}
		benchmarkEquity[sym] = curve
		benchmarkMetrics[sym] = metrics.Compute(curve, nil, 0)
	}

	var primaryBenchmark []metrics.EquityPoint
	if len(d.Config.Benchmark.Symbols) > 0 {
		primaryBenchmark = benchmarkEquity[d.Config.Benchmark.Symbols[0]]
	}

	openLots := make(map[string][]*lots.Lot)
	positions := make(map[string]*lots.Position)
	for _, sym := range pf.Symbols() {
		pos := pf.Position(sym)
		positions[sym] = pos
		openLots[sym] = pos.Lots
	}

	return &ResultBundle{
		Config:           d.Config,
		Equity:           equity,
		Metrics:          metrics.Compute(equity, primaryBenchmark, 0),
		BenchmarkMetrics: benchmarkMetrics,
		BenchmarkEquity:  benchmarkEquity,
		Trades:           pf.Trades(),
		Positions:        positions,
		TaxYearSummaries: ledger.Summaries(),
		OpenLots:         openLots,
		Warnings:           warnings,
		Diagnostics:        diag,
		Partial:            partial,
		SignalObservations: signalLog,
	}, nil
}

func buildHoldings(pf *portfolio.Portfolio, universe []string, closes map[string]decimal.Decimal, asOf time.Time) []rebalance.Holding {
	var out []rebalance.Holding
	for _, sym := range universe {
		pos := pf.Position(sym)
		price := closes[sym]
		if pos == nil {
			out = append(out, rebalance.Holding{Symbol: sym, Value: decimal.Zero, Price: price})
			continue
		}
		value := pos.MarketValue(price)

		ordered := lots.Ordered(pos.Lots, lots.HIFO)
		var gainLoss decimal.Decimal
		var longTerm bool
		if len(ordered) > 0 {
			top := ordered[0]
			gainLoss = price.Sub(top.CostBasisPerShare).Mul(top.RemainingQuantity)
			longTerm = lots.IsLongTerm(top.AcquisitionDate, asOf)
		}
		out = append(out, rebalance.Holding{
			Symbol: sym, Value: value, Price: price,
			HIFOUnrealizedGainLoss: gainLoss, HIFOLongTerm: longTerm,
		})
	}
	return out
}

func (d *SimulationDriver) executePlan(pf *portfolio.Portfolio, legs []rebalance.Leg, prices map[string]decimal.Decimal, date time.Time) (int, []Warning) {
	var warnings []Warning
	available := pf.Cash
	buyTotal := decimal.Zero
	for _, l := range legs {
		if l.Action == rebalance.LegBuy {
			buyTotal = buyTotal.Add(l.Amount)
		}
	}
	if buyTotal.GreaterThan(available) {
		legs = rebalance.ScaleBuysForCash(legs, available)
		warnings = append(warnings, Warning{Kind: simerr.KindInsufficientCash, Message: "rebalance plan scaled down to available cash", Date: date})
	}

	executed := 0
	for _, l := range legs {
		price, ok := prices[l.Symbol]
		if !ok {
			continue
		}
		switch l.Action {
		case rebalance.LegSell:
			pos := pf.Position(l.Symbol)
			if pos == nil || pos.Shares().IsZero() {
				continue
			}
			shares := l.Amount.Div(price)
			if shares.GreaterThan(pos.Shares()) {
				shares = pos.Shares()
			}
			if _, err := pf.Sell(l.Symbol, shares, price, date, d.Config.Lots.Method); err == nil {
				executed++
			}
		case rebalance.LegBuy:
			if _, err := pf.Buy(l.Symbol, l.Amount, price, date); err == nil {
				executed++
			}
		}
	}
	return executed, warnings
}

// applyERDrag reduces each symbol's close by er/252, for mark-to-market
// accounting purposes only (spec.md §4.6 step 7's documented
// simplification).
func applyERDrag(closes map[string]decimal.Decimal, ers map[string]decimal.Decimal) map[string]decimal.Decimal {
	if len(ers) == 0 {
		return closes
	}
	out := make(map[string]decimal.Decimal, len(closes))
	for sym, price := range closes {
		if er, ok := ers[sym]; ok {
			drag := price.Mul(er).Div(decimal.New(252, 0))
			out[sym] = price.Sub(drag)
			continue
		}
		out[sym] = price
	}
	return out
}

func isLastTradingDayOfYear(cal *calendar.Calendar, date time.Time) bool {
	next := cal.NextTradingDay(date.AddDate(0, 0, 1))
	return next.Year() != date.Year()
}

// runBenchmarkBuyAndHold replays a single-symbol buy-and-hold using the
// same deposit and dividend-reinvestment policy as the primary run, per
// spec.md §4.6's closing step.
func (d *SimulationDriver) runBenchmarkBuyAndHold(ctx context.Context, symbol string, days []time.Time, data *loadedSeries) ([]metrics.EquityPoint, error) {
	ledger := tax.New(portfolio.Taxable) // benchmark curves are informational; no tax side effects tracked
	pf := portfolio.New(portfolio.Taxable, portfolio.FrictionModel{}, portfolio.ContributionCaps{}, false, d.Config.InitialCash, ledger)
	var equity []metrics.EquityPoint
	var depositSch schedule
	bought := false

	for _, date := range days {
		bar, ok := data.bars[symbol][dayKey(date)]
		if !ok {
			return nil, simerr.Newf(simerr.KindDataUnavailable, "missing benchmark bar for %s on %s", symbol, dayKey(date)).WithSymbol(symbol)
		}
		if split, ok := data.splits[symbol][dayKey(date)]; ok {
			pf.ApplySplit(symbol, split.Ratio, date)
		}
		if div, ok := data.dividends[symbol][dayKey(date)]; ok {
			drip := d.Config.Dividends.Mode == config.DividendDRIP
			_ = pf.ApplyDividend(symbol, div.AmountPerShare, div.QualifiedFraction, date, drip, bar.Close)
		}

		cashAdded := decimal.Zero
		if due, err := depositSch.due(d.Calendar, date, d.Config.Deposits); err == nil && due && d.Config.Deposits.Amount.IsPositive() {
			_ = pf.Deposit(d.Config.Deposits.Amount, date)
			cashAdded = d.Config.Deposits.Amount
		}
		if !bought && pf.Cash.IsPositive() {
			if _, err := pf.Buy(symbol, pf.Cash, bar.Close, date); err == nil {
				bought = true
			}
		} else if cashAdded.IsPositive() {
			_, _ = pf.Buy(symbol, cashAdded, bar.Close, date)
		}

		closes := map[string]decimal.Decimal{symbol: bar.Close}
		equity = append(equity, metrics.EquityPoint{
			Date: date, Cash: pf.Cash, PositionsValue: pf.Mark(closes),
			TotalValue: pf.TotalValue(closes), ExternalCashflow: cashAdded,
		})
	}
	return equity, nil
}
