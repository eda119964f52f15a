// Package rebalance implements the Rebalancer component of spec.md §4.4:
// trigger evaluation (calendar, drift, cashflow-driven, or both) and
// tax-aware trade-plan construction.
package rebalance

import (
	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/simerr"
)

// SizingMethod selects how target weights are computed, per spec.md §6
// position_sizing.method.
type SizingMethod string

const (
	EqualWeight   SizingMethod = "EQUAL_WEIGHT"
	CustomWeights SizingMethod = "CUSTOM_WEIGHTS"
)

// Sizing computes target portfolio weights from the configured method.
type Sizing struct {
	Method        SizingMethod
	CustomWeights map[string]decimal.Decimal
}

// TargetWeights returns a weight per symbol in universe, summing to 1.0.
// CUSTOM_WEIGHTS is renormalized if the configured weights do not already
// sum to 1.0 (spec.md §4.4).
func (s Sizing) TargetWeights(universe []string) (map[string]decimal.Decimal, error) {
	switch s.Method {
	case EqualWeight, "":
		if len(universe) == 0 {
			return map[string]decimal.Decimal{}, nil
		}
		w := decimal.New(1, 0).Div(decimal.New(int64(len(universe)), 0))
		out := make(map[string]decimal.Decimal, len(universe))
		for _, sym := range universe {
			out[sym] = w
		}
		return out, nil
	case CustomWeights:
		if len(s.CustomWeights) == 0 {
			return nil, simerr.New(simerr.KindConfigurationInvalid, "custom_weights is required for CUSTOM_WEIGHTS sizing")
		}
		total := decimal.Zero
		for _, w := range s.CustomWeights {
			total = total.Add(w)
		}
		if total.IsZero() {
			return nil, simerr.New(simerr.KindConfigurationInvalid, "custom_weights sum to zero")
		}
		out := make(map[string]decimal.Decimal, len(s.CustomWeights))
		for sym, w := range s.CustomWeights {
			out[sym] = w.Div(total)
		}
		return out, nil
	default:
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "unknown position sizing method %q", s.Method)
	}
}
