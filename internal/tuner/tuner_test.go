package tuner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

type TunerTestSuite struct {
	suite.Suite
	series   *series.TimeSeries
	registry *strategy.Registry
}

func TestTunerSuite(t *testing.T) {
	suite.Run(t, new(TunerTestSuite))
}

func (suite *TunerTestSuite) SetupTest() {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, 120)
	for i := range bars {
		price := 100.0 + float64(i%13) + float64(i)/10
		bars[i] = types.Bar{
			Time:   base.AddDate(0, 0, i),
			Symbol: "TEST",
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}

	ts, err := series.New("TEST", bars)
	suite.Require().NoError(err)

	suite.series = ts
	suite.registry = strategy.DefaultRegistry()
}

func (suite *TunerTestSuite) config() exchange.Config {
	return exchange.Config{Label: "tuning", StartingCash: 100000}
}

func (suite *TunerTestSuite) tuner(objective Objective) *Tuner {
	return &Tuner{
		Registry:     suite.registry,
		StrategyName: strategy.NameSMACrossover,
		Objective:    objective,
		Workers:      4,
		Cache:        cache.New(),
	}
}

func (suite *TunerTestSuite) TestEvaluateRanksCandidates() {
	space := Space{
		Dimensions: []Dimension{
			{Name: "fast", Values: []float64{5, 10}},
			{Name: "slow", Values: []float64{20, 40}},
		},
	}

	candidates, err := Grid(space)
	suite.Require().NoError(err)

	evaluations, err := suite.tuner(ObjectiveTotalReturn()).Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().NoError(err)
	suite.Require().Len(evaluations, 4)

	for i := 1; i < len(evaluations); i++ {
		suite.GreaterOrEqual(evaluations[i-1].Score, evaluations[i].Score)
	}

	for _, evaluation := range evaluations {
		suite.Equal(types.RunStatusCompleted, evaluation.Result.Status)
		suite.NotNil(evaluation.Candidate)
	}
}

func (suite *TunerTestSuite) TestTiesBreakByLabel() {
	// A constant objective forces a total tie.
	constant := Objective{
		Name:  "constant",
		Score: func(r *types.Result) float64 { return 1.0 },
	}

	candidates := []Candidate{
		{"fast": 10, "slow": 40},
		{"fast": 5, "slow": 20},
		{"fast": 5, "slow": 40},
	}

	evaluations, err := suite.tuner(constant).Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().NoError(err)
	suite.Require().Len(evaluations, 3)

	suite.Equal("fast=10,slow=40", evaluations[0].Candidate.Label())
	suite.Equal("fast=5,slow=20", evaluations[1].Candidate.Label())
	suite.Equal("fast=5,slow=40", evaluations[2].Candidate.Label())
}

func (suite *TunerTestSuite) TestUnbuildableCandidateFailsFast() {
	candidates := []Candidate{{"fast": 50, "slow": 20}}

	_, err := suite.tuner(ObjectiveSharpe()).Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoFeasibleParams))
}

func (suite *TunerTestSuite) TestNoFeasibleParams() {
	// Both candidates need more history than the series has.
	candidates := []Candidate{
		{"fast": 150, "slow": 300},
		{"fast": 200, "slow": 400},
	}

	_, err := suite.tuner(ObjectiveSharpe()).Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoFeasibleParams))
}

func (suite *TunerTestSuite) TestEmptyCandidates() {
	_, err := suite.tuner(ObjectiveSharpe()).Evaluate(
		context.Background(), suite.series, suite.config(), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEmptySpace))
}

func (suite *TunerTestSuite) TestCloseThresholdCandidatesStayDistinct() {
	// Fractional thresholds a rounded name would collapse together.
	search := suite.tuner(ObjectiveTotalReturn())
	search.StrategyName = strategy.NameRSIReversion

	candidates := []Candidate{
		{"period": 5, "oversold": 30.2},
		{"period": 5, "oversold": 30.4},
	}

	evaluations, err := search.Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().NoError(err)
	suite.Require().Len(evaluations, 2)

	suite.NotEqual(evaluations[0].Candidate.Label(), evaluations[1].Candidate.Label())
	suite.NotEqual(evaluations[0].Result.StrategyName, evaluations[1].Result.StrategyName)
}

func (suite *TunerTestSuite) TestDuplicateCandidatesRejected() {
	candidates := []Candidate{
		{"fast": 5, "slow": 20},
		{"fast": 5, "slow": 20},
	}

	_, err := suite.tuner(ObjectiveSharpe()).Evaluate(
		context.Background(), suite.series, suite.config(), candidates)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *TunerTestSuite) TestSharedCacheAcrossCandidates() {
	shared := cache.New()

	search := suite.tuner(ObjectiveSharpe())
	search.Cache = shared

	// Two candidates share the slow average.
	candidates := []Candidate{
		{"fast": 5, "slow": 40},
		{"fast": 10, "slow": 40},
	}

	_, err := search.Evaluate(context.Background(), suite.series, suite.config(), candidates)
	suite.Require().NoError(err)

	// sma(5), sma(10), sma(40): three computations for four indicator uses.
	suite.Equal(int64(3), shared.Stats().Computations)
}
