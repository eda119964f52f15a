// Package metrics implements the MetricsEngine component of spec.md §4.5:
// time-weighted and money-weighted return, risk-adjusted ratios,
// drawdowns, and benchmark-relative statistics computed from the daily
// equity series.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// EquityPoint is one day's mark-to-market snapshot (spec.md §3).
type EquityPoint struct {
	Date             time.Time
	Cash             decimal.Decimal
	PositionsValue   decimal.Decimal
	TotalValue       decimal.Decimal
	ExternalCashflow decimal.Decimal // net deposits/withdrawals posted this day
}

// Null is the sentinel returned for ratios that are undefined per
// spec.md §4.5's edge cases (fewer than two data points, zero volatility,
// or an absent benchmark).
var Null = math.NaN()

// IsNull reports whether v is the Null sentinel.
func IsNull(v float64) bool { return math.IsNaN(v) }

// Result bundles every metric computed over one equity series.
type Result struct {
	TWR                float64
	IRR                float64
	CAGR               float64
	AnnualizedVol      float64
	Sharpe             float64
	Sortino            float64
	Calmar             float64
	MaxDrawdown        float64
	MaxDrawdownDays    int
	HitRatio           float64
	BestMonth          float64
	WorstMonth         float64
	BestQuarter        float64
	WorstQuarter       float64
	Alpha              float64
	Beta               float64
	TrackingError      float64
	InformationRatio   float64
}

// DailyReturns computes (V_t - C_t)/V_{t-1} - 1 for t = 1..n-1.
func DailyReturns(points []EquityPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := toFloat(points[i-1].TotalValue)
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		cur := toFloat(points[i].TotalValue)
		cf := toFloat(points[i].ExternalCashflow)
		out = append(out, (cur-cf)/prev-1)
	}
	return out
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ChainedReturn compounds a slice of period returns into a single total
// return.
func ChainedReturn(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	return total - 1
}

// Compute evaluates every metric in spec.md §4.5 for the strategy series,
// and additionally the benchmark-relative metrics if benchmark is
// non-empty.
func Compute(points []EquityPoint, benchmark []EquityPoint, riskFreeDaily float64) Result {
	var res Result
	daily := DailyReturns(points)
	if len(points) < 2 {
		return nullResult()
	}

	res.TWR = ChainedReturn(daily)

	totalDays := points[len(points)-1].Date.Sub(points[0].Date).Hours() / 24
	if totalDays <= 0 {
		res.CAGR = Null
	} else {
		res.CAGR = math.Pow(1+res.TWR, 365/totalDays) - 1
	}

	res.IRR = computeIRR(points)

	vol := stat.StdDev(daily, nil)
	res.AnnualizedVol = vol * math.Sqrt(252)

	excess := make([]float64, len(daily))
	for i, r := range daily {
		excess[i] = r - riskFreeDaily
	}
	meanExcess := stat.Mean(excess, nil)
	if res.AnnualizedVol == 0 {
		res.Sharpe = Null
		res.Sortino = Null
	} else {
		res.Sharpe = meanExcess * 252 / res.AnnualizedVol
		res.Sortino = meanExcess * 252 / downsideDeviation(excess)
	}

	dd, ddDays := MaxDrawdown(points)
	res.MaxDrawdown = dd
	res.MaxDrawdownDays = ddDays
	if dd == 0 {
		res.Calmar = Null
	} else {
		res.Calmar = res.CAGR / math.Abs(dd)
	}

	res.HitRatio, res.BestMonth, res.WorstMonth = monthlyStats(points)
	res.BestQuarter, res.WorstQuarter = quarterlyStats(points)

	if len(benchmark) >= 2 {
		bDaily := DailyReturns(benchmark)
		n := minInt(len(daily), len(bDaily))
		if n >= 2 {
			sOverlap := daily[:n]
			bOverlap := bDaily[:n]
			alpha, beta := stat.LinearRegression(bOverlap, sOverlap, nil, false)
			res.Alpha = alpha * 252
			res.Beta = beta

			active := make([]float64, n)
			for i := range active {
				active[i] = sOverlap[i] - bOverlap[i]
			}
			te := stat.StdDev(active, nil) * math.Sqrt(252)
			res.TrackingError = te
			if te == 0 {
				res.InformationRatio = Null
			} else {
				res.InformationRatio = stat.Mean(active, nil) * 252 / te
			}
		} else {
			res.Alpha, res.Beta, res.TrackingError, res.InformationRatio = Null, Null, Null, Null
		}
	} else {
		res.Alpha, res.Beta, res.TrackingError, res.InformationRatio = Null, Null, Null, Null
	}

	return res
}

func nullResult() Result {
	return Result{
		TWR: Null, IRR: Null, CAGR: Null, AnnualizedVol: Null, Sharpe: Null, Sortino: Null,
		Calmar: Null, MaxDrawdown: Null, HitRatio: Null, BestMonth: Null, WorstMonth: Null,
		BestQuarter: Null, WorstQuarter: Null, Alpha: Null, Beta: Null, TrackingError: Null,
		InformationRatio: Null,
	}
}

func downsideDeviation(excess []float64) float64 {
	var negatives []float64
	for _, e := range excess {
		if e < 0 {
			negatives = append(negatives, e)
		}
	}
	if len(negatives) == 0 {
		return 0
	}
	return stat.StdDev(negatives, nil) * math.Sqrt(252)
}

// MaxDrawdown returns the largest peak-to-trough decline and its duration
// in days from peak to recovery (or to period end if unrecovered).
func MaxDrawdown(points []EquityPoint) (float64, int) {
	if len(points) == 0 {
		return 0, 0
	}
	peak := toFloat(points[0].TotalValue)
	peakIdx := 0
	worst := 0.0
	worstPeak, worstPeakIdx, troughIdx := peak, 0, 0
	for i, p := range points {
		v := toFloat(p.TotalValue)
		if v > peak {
			peak = v
			peakIdx = i
		}
		if peak == 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < worst {
			worst = dd
			worstPeak, worstPeakIdx, troughIdx = peak, peakIdx, i
		}
	}
	if worst == 0 {
		return 0, 0
	}
	end := len(points) - 1
	for i := troughIdx + 1; i < len(points); i++ {
		if toFloat(points[i].TotalValue) >= worstPeak {
			end = i
			break
		}
	}
	return worst, end - worstPeakIdx
}

func monthlyStats(points []EquityPoint) (hitRatio, best, worst float64) {
	returns := periodicReturns(points, func(d time.Time) (int, int) { return d.Year(), int(d.Month()) })
	return aggregate(returns)
}

func quarterlyStats(points []EquityPoint) (best, worst float64) {
	returns := periodicReturns(points, func(d time.Time) (int, int) { return d.Year(), (int(d.Month())-1)/3 + 1 })
	_, best, worst = aggregate(returns)
	return best, worst
}

// periodicReturns groups daily returns by the (year, bucket) key keyFn
// produces and chains each group into a single period return.
func periodicReturns(points []EquityPoint, keyFn func(time.Time) (int, int)) []float64 {
	if len(points) < 2 {
		return nil
	}
	type key struct{ y, b int }
	groups := make(map[key][]float64)
	var order []key
	for i := 1; i < len(points); i++ {
		prev := toFloat(points[i-1].TotalValue)
		if prev == 0 {
			continue
		}
		cur := toFloat(points[i].TotalValue)
		cf := toFloat(points[i].ExternalCashflow)
		r := (cur-cf)/prev - 1
		y, b := keyFn(points[i].Date)
		k := key{y, b}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	out := make([]float64, 0, len(order))
	for _, k := range order {
		out = append(out, ChainedReturn(groups[k]))
	}
	return out
}

func aggregate(periodReturns []float64) (hitRatio, best, worst float64) {
	if len(periodReturns) == 0 {
		return Null, Null, Null
	}
	positive := 0
	best, worst = periodReturns[0], periodReturns[0]
	for _, r := range periodReturns {
		if r > 0 {
			positive++
		}
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	return float64(positive) / float64(len(periodReturns)), best, worst
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
