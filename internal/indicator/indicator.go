// Package indicator implements technical indicators computed over a whole
// time series. An indicator is a pure function of (parameters, series): the
// same inputs always produce the same output, which is what makes the
// memoization in backtest/cache sound.
package indicator

import (
	"math"

	"github.com/stratforge/backtest/internal/series"
)

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
)

// Series holds one computed scalar per bar, aligned 1:1 with the bars of the
// time series it was computed over. Entries inside the warmup window are NaN.
type Series []float64

// Valid reports whether the value at index i is outside the warmup window.
func (s Series) Valid(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// Indicator is a computation over a full time series.
type Indicator interface {
	// Kind returns the indicator family.
	Kind() Kind
	// Params returns the canonical parameter string. Together with the kind
	// and the series identity it forms the cache key.
	Params() string
	// Compute derives one value per bar.
	Compute(ts *series.TimeSeries) (Series, error)
}

// warmup fills the first n entries of a fresh series with NaN.
func warmup(length, n int) Series {
	out := make(Series, length)
	for i := 0; i < n && i < length; i++ {
		out[i] = math.NaN()
	}

	return out
}
