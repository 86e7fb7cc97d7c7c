package domain

// ExecutionResult is the outcome of one end-to-end attempt. AbortReason
// is set when the attempt stopped before submission; MonitorOutcome is
// set when a trade was submitted and monitored to a terminal state.
type ExecutionResult struct {
	Success        bool
	Opportunity    *Opportunity
	MonitorOutcome *MonitorEvent
	AbortReason    string
}

// Aborted builds a result for an attempt that stopped before submission.
func Aborted(opp *Opportunity, reason string) *ExecutionResult {
	return &ExecutionResult{
		Success:     false,
		Opportunity: opp,
		AbortReason: reason,
	}
}
