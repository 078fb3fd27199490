package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidInterval      ErrorCode = 102
	ErrCodeInvalidQuantity      ErrorCode = 103
	ErrCodeInvalidPrice         ErrorCode = 104
	ErrCodeInvalidTransaction   ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound     ErrorCode = 200
	ErrCodeDataSourceFailed ErrorCode = 201
	ErrCodeQueryFailed      ErrorCode = 202
	ErrCodePriceUnavailable ErrorCode = 203
	ErrCodeNoBarsAvailable  ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeInsufficientData       ErrorCode = 302

	// Strategy/Graph errors (400-499)
	ErrCodeStrategyConfigError   ErrorCode = 400
	ErrCodeUnknownNodeType       ErrorCode = 401
	ErrCodeUnknownNodeReference  ErrorCode = 402
	ErrCodeDuplicateNodeID       ErrorCode = 403
	ErrCodeGraphCycle            ErrorCode = 404
	ErrCodeConditionEvaluation   ErrorCode = 405
	ErrCodeSchemaVersionMismatch ErrorCode = 406

	// Position errors (500-599)
	ErrCodePositionNotFound      ErrorCode = 500
	ErrCodePositionAlreadyClosed ErrorCode = 501
	ErrCodePositionStillOpen     ErrorCode = 502

	// Backtest errors (600-699)
	ErrCodeEngineConfigError  ErrorCode = 600
	ErrCodeEngineNotReady     ErrorCode = 601
	ErrCodeResultsWriteFailed ErrorCode = 602
)
