package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) series(closes ...float64) *series.TimeSeries {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{
			Time:   base.AddDate(0, 0, i),
			Symbol: "TEST",
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1,
		}
	}

	ts, err := series.New("TEST", bars)
	suite.Require().NoError(err)

	return ts
}

func (suite *IndicatorTestSuite) TestSMAValues() {
	ts := suite.series(1, 2, 3, 4, 5)

	out, err := NewSMA(3).Compute(ts)
	suite.Require().NoError(err)
	suite.Require().Len(out, 5)

	suite.False(out.Valid(0))
	suite.False(out.Valid(1))
	suite.True(out.Valid(2))
	suite.InDelta(2.0, out[2], 1e-9)
	suite.InDelta(3.0, out[3], 1e-9)
	suite.InDelta(4.0, out[4], 1e-9)
}

func (suite *IndicatorTestSuite) TestSMAWarmupIsNaN() {
	ts := suite.series(10, 20, 30)

	out, err := NewSMA(3).Compute(ts)
	suite.Require().NoError(err)
	suite.True(math.IsNaN(out[0]))
	suite.True(math.IsNaN(out[1]))
}

func (suite *IndicatorTestSuite) TestSMAInsufficientHistory() {
	ts := suite.series(1, 2)

	_, err := NewSMA(3).Compute(ts)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientHistory))
}

func (suite *IndicatorTestSuite) TestSMAInvalidPeriod() {
	ts := suite.series(1, 2, 3)

	_, err := NewSMA(0).Compute(ts)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestEMASeedEqualsSMA() {
	ts := suite.series(2, 4, 6, 8)

	out, err := NewEMA(3).Compute(ts)
	suite.Require().NoError(err)
	suite.False(out.Valid(1))
	// First valid value is the SMA of the seed window.
	suite.InDelta(4.0, out[2], 1e-9)

	// multiplier = 2/(3+1) = 0.5, so ema = 8*0.5 + 4*0.5
	suite.InDelta(6.0, out[3], 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIAllGains() {
	ts := suite.series(1, 2, 3, 4, 5, 6)

	out, err := NewRSI(3).Compute(ts)
	suite.Require().NoError(err)
	suite.False(out.Valid(2))
	suite.True(out.Valid(3))
	suite.InDelta(100.0, out[3], 1e-9)
	suite.InDelta(100.0, out[5], 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIMixedMoves() {
	ts := suite.series(10, 11, 10, 11, 10, 11)

	out, err := NewRSI(2).Compute(ts)
	suite.Require().NoError(err)

	for i := 2; i < 6; i++ {
		suite.True(out.Valid(i))
		suite.Greater(out[i], 0.0)
		suite.Less(out[i], 100.0)
	}
}

func (suite *IndicatorTestSuite) TestParamsAndKind() {
	suite.Equal("period=14", NewRSI(14).Params())
	suite.Equal(KindRSI, NewRSI(14).Kind())
	suite.Equal("period=50", NewSMA(50).Params())
	suite.Equal(KindSMA, NewSMA(50).Kind())
	suite.Equal(KindEMA, NewEMA(9).Kind())
}

func (suite *IndicatorTestSuite) TestComputeIsDeterministic() {
	ts := suite.series(5, 7, 6, 9, 8, 12, 11)

	first, err := NewSMA(3).Compute(ts)
	suite.Require().NoError(err)

	second, err := NewSMA(3).Compute(ts)
	suite.Require().NoError(err)

	for i := range first {
		if first.Valid(i) {
			suite.Equal(first[i], second[i])
		}
	}
}
