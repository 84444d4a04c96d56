package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stratforge/backtest/internal/types"
)

type StoreTestSuite struct {
	suite.Suite
	store *ResultStore
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	store, err := NewResultStore(nil)
	suite.Require().NoError(err)

	suite.store = store
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.store.Close()
}

func (suite *StoreTestSuite) result(id string, sharpe float64) *types.Result {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	return &types.Result{
		RunID:        id,
		StrategyName: "buy_and_hold",
		DatasetID:    "abcd1234",
		ConfigLabel:  "default",
		Status:       types.RunStatusCompleted,
		EquityCurve: []types.EquityPoint{
			{Time: base, Equity: 100000},
			{Time: base.AddDate(0, 0, 1), Equity: 101000},
		},
		Trades: []types.Fill{
			{
				OrderID:      "order-1",
				Symbol:       "SPY",
				Side:         types.OrderSideBuy,
				Quantity:     100,
				Price:        100,
				Time:         base,
				StrategyName: "buy_and_hold",
			},
		},
		Metrics: types.Metrics{
			StartingCash: 100000,
			FinalEquity:  101000,
			TotalReturn:  0.01,
			SharpeRatio:  sharpe,
			NumTrades:    1,
		},
		Runtime: 25 * time.Millisecond,
	}
}

func (suite *StoreTestSuite) TestInsertAndCount() {
	suite.Require().NoError(suite.store.Insert(suite.result("run-1", 1.2)))
	suite.Require().NoError(suite.store.Insert(suite.result("run-2", 0.8)))

	count, err := suite.store.Count()
	suite.Require().NoError(err)
	suite.Equal(2, count)
}

func (suite *StoreTestSuite) TestBestRunsOrdering() {
	suite.Require().NoError(suite.store.Insert(suite.result("low", 0.5)))
	suite.Require().NoError(suite.store.Insert(suite.result("high", 2.0)))
	suite.Require().NoError(suite.store.Insert(suite.result("mid", 1.0)))

	failed := suite.result("broken", 99.0)
	failed.Status = types.RunStatusFailed
	failed.Error = "induced"
	suite.Require().NoError(suite.store.Insert(failed))

	ids, err := suite.store.BestRuns("sharpe_ratio", 10)
	suite.Require().NoError(err)
	suite.Equal([]string{"high", "mid", "low"}, ids)
}

func (suite *StoreTestSuite) TestBestRunsRejectsUnknownMetric() {
	_, err := suite.store.BestRuns("run_id; DROP TABLE runs", 10)
	suite.Require().Error(err)
}

func (suite *StoreTestSuite) TestExportWritesArtifacts() {
	results := []*types.Result{suite.result("run-1", 1.2)}
	suite.Require().NoError(suite.store.InsertAll(results))

	folder := filepath.Join(suite.T().TempDir(), "results")
	suite.Require().NoError(suite.store.Export(folder, results))

	for _, name := range []string{"runs.parquet", "trades.parquet", "equity.parquet", "summary.yaml"} {
		_, err := os.Stat(filepath.Join(folder, name))
		suite.NoError(err)
	}

	summary, err := os.ReadFile(filepath.Join(folder, "summary.yaml"))
	suite.Require().NoError(err)
	suite.Contains(string(summary), "run-1")
	suite.Contains(string(summary), "buy_and_hold")
}
