package indicator

import (
	"fmt"

	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/pkg/errors"
)

// RSI is the relative strength index over closing prices, using Wilder's
// smoothing for average gains and losses.
type RSI struct {
	period int
}

// NewRSI creates a relative strength index with the given period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Kind implements Indicator.
func (r *RSI) Kind() Kind {
	return KindRSI
}

// Params implements Indicator.
func (r *RSI) Params() string {
	return fmt.Sprintf("period=%d", r.period)
}

// Compute implements Indicator.
func (r *RSI) Compute(ts *series.TimeSeries) (Series, error) {
	if r.period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "rsi period must be positive, got %d", r.period)
	}

	if ts.Len() <= r.period {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory,
			"rsi(%d) needs %d bars, series %s has %d", r.period, r.period+1, ts.ID(), ts.Len())
	}

	closes := ts.Closes()
	out := warmup(len(closes), r.period)

	var avgGain, avgLoss float64

	for i := 1; i <= r.period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)
	out[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]

		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs)
}
