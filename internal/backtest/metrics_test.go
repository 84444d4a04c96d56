package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stratforge/backtest/internal/types"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) curve(values ...float64) []types.EquityPoint {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	points := make([]types.EquityPoint, len(values))
	for i, v := range values {
		points[i] = types.EquityPoint{Time: base.AddDate(0, 0, i), Equity: v}
	}

	return points
}

func (suite *MetricsTestSuite) TestTotalReturn() {
	m := computeMetrics(100000, suite.curve(100000, 105000, 110000), nil)
	suite.InDelta(0.10, m.TotalReturn, 1e-9)
	suite.Equal(110000.0, m.FinalEquity)
	suite.Equal(100000.0, m.StartingCash)
}

func (suite *MetricsTestSuite) TestEmptyCurveKeepsStartingCash() {
	m := computeMetrics(100000, nil, nil)
	suite.Equal(100000.0, m.FinalEquity)
	suite.Equal(0.0, m.TotalReturn)
	suite.Equal(0.0, m.MaxDrawdown)
	suite.Equal(0.0, m.SharpeRatio)
}

func (suite *MetricsTestSuite) TestMaxDrawdown() {
	// Peak 120000, trough 90000: drawdown 25%.
	m := computeMetrics(100000, suite.curve(100000, 120000, 90000, 110000), nil)
	suite.InDelta(0.25, m.MaxDrawdown, 1e-9)
}

func (suite *MetricsTestSuite) TestMonotonicCurveHasNoDrawdown() {
	m := computeMetrics(100000, suite.curve(100000, 101000, 102000, 103000), nil)
	suite.Equal(0.0, m.MaxDrawdown)
}

func (suite *MetricsTestSuite) TestFlatCurveHasZeroSharpe() {
	m := computeMetrics(100000, suite.curve(100000, 100000, 100000), nil)
	suite.Equal(0.0, m.SharpeRatio)
}

func (suite *MetricsTestSuite) TestSharpeAnnualization() {
	// Alternating +1%/-1% returns have mean ~= -0.005% and high variance;
	// the exact value matters less than the sign and the scale.
	m := computeMetrics(100000, suite.curve(100000, 101000, 99990, 100990), nil)
	suite.False(math.IsNaN(m.SharpeRatio))
	suite.NotEqual(0.0, m.SharpeRatio)
}

func (suite *MetricsTestSuite) TestTradeAggregates() {
	trades := []types.Fill{
		{Side: types.OrderSideBuy, Commission: 1.0},
		{Side: types.OrderSideSell, Commission: 1.0, PnL: 50},
		{Side: types.OrderSideBuy, Commission: 1.0},
		{Side: types.OrderSideSell, Commission: 1.0, PnL: -20},
	}

	m := computeMetrics(100000, suite.curve(100000, 100030), trades)
	suite.Equal(4, m.NumTrades)
	suite.InDelta(4.0, m.TotalFees, 1e-9)
	suite.InDelta(30.0, m.RealizedPnL, 1e-9)
	suite.InDelta(0.5, m.WinRate, 1e-9)
}
