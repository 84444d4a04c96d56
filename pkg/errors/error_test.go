package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewFormatsCode() {
	err := New(ErrCodeOrderRejected, "quantity must be positive")
	suite.Equal("[500] quantity must be positive", err.Error())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeMissingColumn, "source is missing column %q", "close")
	suite.Equal(`[201] source is missing column "close"`, err.Error())
}

func (suite *ErrorTestSuite) TestWrapIncludesCause() {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeQueryFailed, "failed to read bars", cause)
	suite.Contains(err.Error(), "disk on fire")
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeInvalidPeriod, GetCode(New(ErrCodeInvalidPeriod, "bad period")))
	suite.Equal(ErrCodeUnknown, GetCode(fmt.Errorf("plain error")))
	suite.Equal(ErrCodeUnknown, GetCode(nil))
}

func (suite *ErrorTestSuite) TestGetCodeUnwrapsChain() {
	inner := New(ErrCodeInsufficientHistory, "too few bars")
	outer := fmt.Errorf("computing sma: %w", inner)
	suite.Equal(ErrCodeInsufficientHistory, GetCode(outer))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeRunCancelled, "stopped")
	suite.True(HasCode(err, ErrCodeRunCancelled))
	suite.False(HasCode(err, ErrCodeRunFailed))
}

func (suite *ErrorTestSuite) TestIsInput() {
	suite.True(IsInput(New(ErrCodeMalformedInput, "bad csv")))
	suite.True(IsInput(New(ErrCodeNonMonotonicBars, "out of order")))
	suite.False(IsInput(New(ErrCodeOrderRejected, "no funds")))
	suite.False(IsInput(fmt.Errorf("plain")))
}
