package backtest

import (
	"math"

	"github.com/stratforge/backtest/internal/types"
)

// barsPerYear is the annualization factor for daily bars.
const barsPerYear = 252

// computeMetrics derives performance metrics from a finished run's equity
// curve and trade log.
func computeMetrics(startingCash float64, curve []types.EquityPoint, trades []types.Fill) types.Metrics {
	m := types.Metrics{
		StartingCash: startingCash,
		FinalEquity:  startingCash,
		NumTrades:    len(trades),
	}

	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}

	if startingCash > 0 {
		m.TotalReturn = m.FinalEquity/startingCash - 1
	}

	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio = sharpeRatio(curve)

	var wins, closes int

	for _, trade := range trades {
		m.TotalFees += trade.Commission

		if trade.Side == types.OrderSideSell {
			closes++
			m.RealizedPnL += trade.PnL

			if trade.PnL > 0 {
				wins++
			}
		}
	}

	if closes > 0 {
		m.WinRate = float64(wins) / float64(closes)
	}

	return m
}

// maxDrawdown returns the largest peak-to-trough decline as a positive
// fraction of the peak.
func maxDrawdown(curve []types.EquityPoint) float64 {
	var peak, worst float64

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// sharpeRatio computes the annualized Sharpe ratio over per-bar equity
// returns with a zero risk-free rate. Fewer than two samples, or a flat
// curve, yield zero.
func sharpeRatio(curve []types.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}

		returns = append(returns, curve[i].Equity/prev-1)
	}

	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}

	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}

	return mean / stddev * math.Sqrt(barsPerYear)
}
