package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField      Code = "REQUIRED_FIELD"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Venue error codes
const (
	CodeVenueError            Code = "VENUE_ERROR"
	CodeVenueConnectionFailed Code = "VENUE_CONNECTION_FAILED"
	CodeVenueRPCError         Code = "VENUE_RPC_ERROR"
	CodeUnsupportedPair       Code = "UNSUPPORTED_PAIR"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeZeroQuote             Code = "ZERO_QUOTE"
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
)

// Pipeline error codes
const (
	CodeInvalidTradeParams    Code = "INVALID_TRADE_PARAMS"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeRiskRejected          Code = "RISK_REJECTED"
	CodeSubmissionFailed      Code = "SUBMISSION_FAILED"
	CodeExecutionFailed       Code = "EXECUTION_FAILED"
	CodeExecutionTimeout      Code = "EXECUTION_TIMEOUT"
	CodeWatchCancelled        Code = "WATCH_CANCELLED"
)

// Circuit breaker error codes
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
