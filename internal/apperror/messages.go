package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General
	CodeRequiredField:      "Required field is missing",
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeConfigurationError: "Configuration error",
	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	// Venue
	CodeVenueError:            "Venue request failed",
	CodeVenueConnectionFailed: "Failed to connect to venue",
	CodeVenueRPCError:         "Venue RPC call failed",
	CodeUnsupportedPair:       "Venue does not support this token pair",
	CodeInvalidQuote:          "Invalid quote data",
	CodeZeroQuote:             "Venue returned a zero output amount",
	CodeGasEstimationFailed:   "Gas estimation failed",
	CodeContractCallFailed:    "Smart contract call failed",

	// Pipeline
	CodeInvalidTradeParams:    "Invalid trade parameters",
	CodeInsufficientLiquidity: "Insufficient liquidity across venues",
	CodeRiskRejected:          "Risk check rejected the trade",
	CodeSubmissionFailed:      "Execution could not be submitted",
	CodeExecutionFailed:       "Execution resolved as failed",
	CodeExecutionTimeout:      "Execution outcome unknown within timeout",
	CodeWatchCancelled:        "Watch session cancelled",

	// Circuit breaker
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
