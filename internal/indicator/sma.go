package indicator

import (
	"fmt"

	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/pkg/errors"
)

// SMA is a simple moving average over closing prices.
type SMA struct {
	period int
}

// NewSMA creates a simple moving average with the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Kind implements Indicator.
func (s *SMA) Kind() Kind {
	return KindSMA
}

// Params implements Indicator.
func (s *SMA) Params() string {
	return fmt.Sprintf("period=%d", s.period)
}

// Compute implements Indicator using a rolling sum.
func (s *SMA) Compute(ts *series.TimeSeries) (Series, error) {
	if s.period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "sma period must be positive, got %d", s.period)
	}

	if ts.Len() < s.period {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory,
			"sma(%d) needs %d bars, series %s has %d", s.period, s.period, ts.ID(), ts.Len())
	}

	closes := ts.Closes()
	out := warmup(len(closes), s.period-1)

	var sum float64
	for i, c := range closes {
		sum += c
		if i >= s.period {
			sum -= closes[i-s.period]
		}

		if i >= s.period-1 {
			out[i] = sum / float64(s.period)
		}
	}

	return out, nil
}
