package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidQuantity      ErrorCode = 103
	ErrCodeInvalidPrice         ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Input errors (200-299). Fatal to the whole batch.
	ErrCodeMalformedInput    ErrorCode = 200
	ErrCodeMissingColumn     ErrorCode = 201
	ErrCodeBadTimestamp      ErrorCode = 202
	ErrCodeNonMonotonicBars  ErrorCode = 203
	ErrCodeDuplicateBar      ErrorCode = 204
	ErrCodeEmptySeries       ErrorCode = 205
	ErrCodeQueryFailed       ErrorCode = 206
	ErrCodeSourceUnavailable ErrorCode = 207

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300
	ErrCodeInsufficientHistory  ErrorCode = 301
	ErrCodeIndicatorNotFound    ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound ErrorCode = 400
	ErrCodeStrategyConfig   ErrorCode = 401
	ErrCodeStrategyRuntime  ErrorCode = 402

	// Order errors (500-599)
	ErrCodeOrderRejected      ErrorCode = 500
	ErrCodeInsufficientFunds  ErrorCode = 501
	ErrCodeInsufficientShares ErrorCode = 502
	ErrCodeOrderNotFound      ErrorCode = 503
	ErrCodeExchangeClosed     ErrorCode = 504

	// Run/orchestration errors (600-699)
	ErrCodeRunCancelled ErrorCode = 600
	ErrCodeRunFailed    ErrorCode = 601
	ErrCodeNoRuns       ErrorCode = 602
	ErrCodeStoreFailed  ErrorCode = 603

	// Tuner errors (800-899)
	ErrCodeNoFeasibleParams ErrorCode = 800
	ErrCodeEmptySpace       ErrorCode = 801
)
