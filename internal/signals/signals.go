// Package signals implements the optional entry/exit signal evaluation
// named in spec.md §4.6 step 5 and resolved in §9: a fixed set of
// technical indicators computed strictly from closes observed before the
// evaluation date, never peeking forward.
package signals

import (
	"github.com/markcheno/go-talib"

	"github.com/backtestlab/simcore/internal/simerr"
)

// Kind identifies a supported indicator.
type Kind string

const (
	SMA       Kind = "SMA"
	EMA       Kind = "EMA"
	RSI       Kind = "RSI"
	MACD      Kind = "MACD"
	Momentum  Kind = "MOMENTUM"
	Breakout  Kind = "BREAKOUT"
	Bollinger Kind = "BOLLINGER"
)

// Spec configures one indicator evaluation.
type Spec struct {
	Kind   Kind
	Period int // primary lookback; for MACD this is the fast period
	Slow   int // MACD slow period
	Signal int // MACD signal period
	StdDev float64
}

// Engine evaluates a fixed set of signal specs against a rolling window of
// historical closes. Nothing in this package consumes data beyond the
// closes slice it is given, which is the caller's (the driver's)
// responsibility to truncate at the evaluation date.
type Engine struct {
	Specs []Spec
}

// Value is one indicator's most recent value, aligned to the last close
// in the input window.
type Value struct {
	Kind  Kind
	Value float64
	Valid bool // false if the window was too short to produce a value
}

// Evaluate computes every configured indicator's latest value from
// closes. The caller is responsible for the no-look-ahead guarantee: for
// an observation on day t, closes[len(closes)-1] must be day t-1's close,
// not t's (spec.md §4.6 step 5 prohibits a signal from seeing its own
// day's bar).
func (e Engine) Evaluate(closes []float64) ([]Value, error) {
	out := make([]Value, 0, len(e.Specs))
	for _, s := range e.Specs {
		v, err := evaluateOne(s, closes)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func latest(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !isNaN(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

func isNaN(f float64) bool { return f != f }

func evaluateOne(s Spec, closes []float64) (Value, error) {
	// talib zero-fills its lookback instead of emitting NaN, so a window
	// shorter than the indicator's lookback is reported invalid up front.
	need := 0
	switch s.Kind {
	case SMA, EMA, Bollinger:
		need = s.Period
	case RSI, Momentum:
		need = s.Period + 1
	case MACD:
		need = s.Slow + s.Signal - 1
	}
	if len(closes) < need {
		return Value{Kind: s.Kind, Valid: false}, nil
	}
	switch s.Kind {
	case SMA:
		series := talib.Sma(closes, s.Period)
		v, ok := latest(series)
		return Value{Kind: s.Kind, Value: v, Valid: ok}, nil
	case EMA:
		series := talib.Ema(closes, s.Period)
		v, ok := latest(series)
		return Value{Kind: s.Kind, Value: v, Valid: ok}, nil
	case RSI:
		series := talib.Rsi(closes, s.Period)
		v, ok := latest(series)
		return Value{Kind: s.Kind, Value: v, Valid: ok}, nil
	case MACD:
		_, _, hist := talib.Macd(closes, s.Period, s.Slow, s.Signal)
		v, ok := latest(hist)
		return Value{Kind: s.Kind, Value: v, Valid: ok}, nil
	case Momentum:
		series := talib.Mom(closes, s.Period)
		v, ok := latest(series)
		return Value{Kind: s.Kind, Value: v, Valid: ok}, nil
	case Breakout:
		return evaluateBreakout(s, closes)
	case Bollinger:
		upper, _, lower := talib.BBands(closes, s.Period, s.StdDev, s.StdDev, talib.SMA)
		upperV, ok1 := latest(upper)
		lowerV, ok2 := latest(lower)
		if !ok1 || !ok2 || len(closes) == 0 {
			return Value{Kind: s.Kind, Valid: false}, nil
		}
		last := closes[len(closes)-1]
		// Normalized position within the band: 0 at lower band, 1 at upper.
		width := upperV - lowerV
		if width == 0 {
			return Value{Kind: s.Kind, Valid: false}, nil
		}
		return Value{Kind: s.Kind, Value: (last - lowerV) / width, Valid: true}, nil
	default:
		return Value{}, simerr.Newf(simerr.KindConfigurationInvalid, "unknown signal kind %q", s.Kind)
	}
}

// evaluateBreakout reports how far the latest close is above (positive)
// or below (negative) the highest/lowest close of the prior s.Period bars,
// as a fraction of that range.
func evaluateBreakout(s Spec, closes []float64) (Value, error) {
	if len(closes) <= s.Period {
		return Value{Kind: s.Kind, Valid: false}, nil
	}
	window := closes[len(closes)-1-s.Period : len(closes)-1]
	hi, lo := window[0], window[0]
	for _, c := range window {
		if c > hi {
			hi = c
		}
		if c < lo {
			lo = c
		}
	}
	last := closes[len(closes)-1]
	rangeSpan := hi - lo
	if rangeSpan == 0 {
		return Value{Kind: s.Kind, Valid: false}, nil
	}
	if last > hi {
		return Value{Kind: s.Kind, Value: (last - hi) / rangeSpan, Valid: true}, nil
	}
	if last < lo {
		return Value{Kind: s.Kind, Value: (last - lo) / rangeSpan, Valid: true}, nil
	}
	return Value{Kind: s.Kind, Value: 0, Valid: true}, nil
}
