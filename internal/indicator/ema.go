package indicator

import (
	"fmt"

	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/pkg/errors"
)

// EMA is an exponential moving average over closing prices, seeded with the
// simple average of the first period bars.
type EMA struct {
	period int
}

// NewEMA creates an exponential moving average with the given period.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

// Kind implements Indicator.
func (e *EMA) Kind() Kind {
	return KindEMA
}

// Params implements Indicator.
func (e *EMA) Params() string {
	return fmt.Sprintf("period=%d", e.period)
}

// Compute implements Indicator.
func (e *EMA) Compute(ts *series.TimeSeries) (Series, error) {
	if e.period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "ema period must be positive, got %d", e.period)
	}

	if ts.Len() < e.period {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory,
			"ema(%d) needs %d bars, series %s has %d", e.period, e.period, ts.ID(), ts.Len())
	}

	closes := ts.Closes()
	out := warmup(len(closes), e.period-1)
	multiplier := 2.0 / (float64(e.period) + 1.0)

	var seed float64
	for i := 0; i < e.period; i++ {
		seed += closes[i]
	}

	prev := seed / float64(e.period)
	out[e.period-1] = prev

	for i := e.period; i < len(closes); i++ {
		prev = (closes[i]-prev)*multiplier + prev
		out[i] = prev
	}

	return out, nil
}
