// Package series provides the immutable time series of bars that every
// backtest run replays. A TimeSeries is constructed once, validated, given a
// stable content identity, and shared read-only across concurrent runs.
package series

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// TimeSeries is an ordered, immutable sequence of bars. The zero value is not
// usable; construct with New.
type TimeSeries struct {
	symbol string
	bars   []types.Bar
	closes []float64
	id     string
}

// New validates and constructs a TimeSeries. Bars must be strictly increasing
// in timestamp; duplicates and reordering fail with an input error. The bar
// slice is copied, so callers may reuse theirs.
func New(symbol string, bars []types.Bar) (*TimeSeries, error) {
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeEmptySeries, "series %q has no bars", symbol)
	}

	owned := make([]types.Bar, len(bars))
	copy(owned, bars)

	closes := make([]float64, len(owned))
	hash := sha256.New()

	for i, bar := range owned {
		if i > 0 {
			prev := owned[i-1].Time
			if bar.Time.Equal(prev) {
				return nil, errors.Newf(errors.ErrCodeDuplicateBar,
					"series %q has duplicate timestamp %s at index %d", symbol, bar.Time, i)
			}

			if bar.Time.Before(prev) {
				return nil, errors.Newf(errors.ErrCodeNonMonotonicBars,
					"series %q is not ordered: bar %d (%s) precedes bar %d (%s)", symbol, i, bar.Time, i-1, prev)
			}
		}

		closes[i] = bar.Close
		fmt.Fprintf(hash, "%d|%g|%g|%g|%g|%g\n",
			bar.Time.UnixNano(), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	fmt.Fprintf(hash, "symbol=%s", symbol)

	return &TimeSeries{
		symbol: symbol,
		bars:   owned,
		closes: closes,
		id:     hex.EncodeToString(hash.Sum(nil))[:16],
	}, nil
}

// ID returns the stable content identity of the series. Two series with
// identical bars and symbol share an ID; the ID is a cache key component.
func (t *TimeSeries) ID() string {
	return t.id
}

// Symbol returns the trading symbol the series describes.
func (t *TimeSeries) Symbol() string {
	return t.symbol
}

// Len returns the number of bars.
func (t *TimeSeries) Len() int {
	return len(t.bars)
}

// Bar returns the bar at index i.
func (t *TimeSeries) Bar(i int) types.Bar {
	return t.bars[i]
}

// Bars returns the underlying bar slice. Callers must not modify it.
func (t *TimeSeries) Bars() []types.Bar {
	return t.bars
}

// Closes returns the close price of every bar, aligned with Bars.
// Callers must not modify it.
func (t *TimeSeries) Closes() []float64 {
	return t.closes
}

// Start returns the timestamp of the first bar.
func (t *TimeSeries) Start() time.Time {
	return t.bars[0].Time
}

// End returns the timestamp of the last bar.
func (t *TimeSeries) End() time.Time {
	return t.bars[len(t.bars)-1].Time
}
