package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stratforge/backtest/internal/indicator"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	cache *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func (suite *CacheTestSuite) SetupTest() {
	suite.cache = New()
}

func (suite *CacheTestSuite) key(name string) Key {
	return Key{Kind: indicator.KindSMA, Params: name, SeriesID: "abcd1234"}
}

func (suite *CacheTestSuite) TestKeyString() {
	key := Key{Kind: indicator.KindRSI, Params: "period=14", SeriesID: "deadbeef"}
	suite.Equal("rsi(period=14)@deadbeef", key.String())
}

func (suite *CacheTestSuite) TestGetOrComputeMemoizes() {
	var calls int

	compute := func() (indicator.Series, error) {
		calls++

		return indicator.Series{1, 2, 3}, nil
	}

	first, err := suite.cache.GetOrCompute(suite.key("period=3"), compute)
	suite.Require().NoError(err)

	second, err := suite.cache.GetOrCompute(suite.key("period=3"), compute)
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Equal(1, calls)

	stats := suite.cache.Stats()
	suite.Equal(int64(1), stats.Hits)
	suite.Equal(int64(1), stats.Misses)
	suite.Equal(int64(1), stats.Computations)
	suite.Equal(1, stats.Entries)
}

func (suite *CacheTestSuite) TestAtMostOneConcurrentComputation() {
	const goroutines = 50

	var calls atomic.Int64

	compute := func() (indicator.Series, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)

		return indicator.Series{42}, nil
	}

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			value, err := suite.cache.GetOrCompute(suite.key("period=50"), compute)
			suite.NoError(err)
			suite.Equal(indicator.Series{42}, value)
		}()
	}

	wg.Wait()

	suite.Equal(int64(1), calls.Load())
	suite.Equal(int64(1), suite.cache.Stats().Computations)
}

func (suite *CacheTestSuite) TestFailuresAreNotMemoized() {
	boom := errors.New(errors.ErrCodeIndicatorCalculation, "boom")

	_, err := suite.cache.GetOrCompute(suite.key("period=9"), func() (indicator.Series, error) {
		return nil, boom
	})
	suite.Require().Error(err)
	suite.Equal(0, suite.cache.Stats().Entries)

	// A later request computes again and can succeed.
	value, err := suite.cache.GetOrCompute(suite.key("period=9"), func() (indicator.Series, error) {
		return indicator.Series{7}, nil
	})
	suite.Require().NoError(err)
	suite.Equal(indicator.Series{7}, value)
	suite.Equal(int64(2), suite.cache.Stats().Computations)
}

func (suite *CacheTestSuite) TestDistinctKeysComputeSeparately() {
	var calls atomic.Int64

	compute := func() (indicator.Series, error) {
		calls.Add(1)

		return indicator.Series{1}, nil
	}

	_, err := suite.cache.GetOrCompute(suite.key("period=10"), compute)
	suite.Require().NoError(err)

	_, err = suite.cache.GetOrCompute(suite.key("period=20"), compute)
	suite.Require().NoError(err)

	otherSeries := Key{Kind: indicator.KindSMA, Params: "period=10", SeriesID: "ffff0000"}
	_, err = suite.cache.GetOrCompute(otherSeries, compute)
	suite.Require().NoError(err)

	suite.Equal(int64(3), calls.Load())
}

func (suite *CacheTestSuite) TestLRUEviction() {
	bounded := NewWithCapacity(2)

	compute := func(v float64) func() (indicator.Series, error) {
		return func() (indicator.Series, error) {
			return indicator.Series{v}, nil
		}
	}

	_, err := bounded.GetOrCompute(suite.key("a"), compute(1))
	suite.Require().NoError(err)

	_, err = bounded.GetOrCompute(suite.key("b"), compute(2))
	suite.Require().NoError(err)

	// Touch "a" so "b" becomes the eviction victim.
	_, err = bounded.GetOrCompute(suite.key("a"), compute(1))
	suite.Require().NoError(err)

	_, err = bounded.GetOrCompute(suite.key("c"), compute(3))
	suite.Require().NoError(err)

	suite.Equal(2, bounded.Stats().Entries)

	// "b" was evicted, so requesting it computes again.
	before := bounded.Stats().Computations
	_, err = bounded.GetOrCompute(suite.key("b"), compute(2))
	suite.Require().NoError(err)
	suite.Equal(before+1, bounded.Stats().Computations)
}

func (suite *CacheTestSuite) TestValueUsesIndicatorKey() {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, 10)
	for i := range bars {
		price := float64(100 + i)
		bars[i] = types.Bar{
			Time: base.AddDate(0, 0, i), Symbol: "TEST",
			Open: price, High: price, Low: price, Close: price, Volume: 1,
		}
	}

	ts, err := series.New("TEST", bars)
	suite.Require().NoError(err)

	first, err := suite.cache.Value(indicator.NewSMA(3), ts)
	suite.Require().NoError(err)

	second, err := suite.cache.Value(indicator.NewSMA(3), ts)
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Equal(int64(1), suite.cache.Stats().Computations)
}

func (suite *CacheTestSuite) TestReset() {
	_, err := suite.cache.GetOrCompute(suite.key("x"), func() (indicator.Series, error) {
		return indicator.Series{1}, nil
	})
	suite.Require().NoError(err)

	suite.cache.Reset()

	stats := suite.cache.Stats()
	suite.Equal(0, stats.Entries)
	suite.Equal(int64(0), stats.Computations)
}
