package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closesRising(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestEvaluateSMAInvalidOnShortWindow(t *testing.T) {
	e := Engine{Specs: []Spec{{Kind: SMA, Period: 20}}}
	values, err := e.Evaluate(closesRising(5, 100))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.False(t, values[0].Valid)
}

func TestEvaluateSMAValid(t *testing.T) {
	e := Engine{Specs: []Spec{{Kind: SMA, Period: 5}}}
	values, err := e.Evaluate(closesRising(30, 100))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.True(t, values[0].Valid)
}

func TestEvaluateBreakout(t *testing.T) {
	closes := closesRising(20, 100)
	closes = append(closes, 500) // sharp breakout above the trailing window
	e := Engine{Specs: []Spec{{Kind: Breakout, Period: 10}}}
	values, err := e.Evaluate(closes)
	require.NoError(t, err)
	require.True(t, values[0].Valid)
	assert.True(t, values[0].Value > 0)
}

func TestEvaluateUnknownKind(t *testing.T) {
	e := Engine{Specs: []Spec{{Kind: "bogus"}}}
	_, err := e.Evaluate(closesRising(10, 100))
	assert.Error(t, err)
}
