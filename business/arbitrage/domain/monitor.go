package domain

import (
	"time"

	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
)

// MonitorStatus is the lifecycle state of a submitted execution.
type MonitorStatus string

// An execution starts PENDING and reaches exactly one terminal state.
// TIMEOUT means the outcome is unknown, not that the trade failed.
const (
	StatusPending MonitorStatus = "PENDING"
	StatusSuccess MonitorStatus = "SUCCESS"
	StatusFailed  MonitorStatus = "FAILED"
	StatusTimeout MonitorStatus = "TIMEOUT"
)

// IsTerminal reports whether the status ends the monitoring lifecycle.
func (s MonitorStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// MonitorEvent records one status transition of a monitored execution.
type MonitorEvent struct {
	Status      MonitorStatus
	ExecutionID venuedomain.ExecutionHandle
	Message     string
	Timestamp   time.Time
	Receipt     *venuedomain.Receipt
}

// NewMonitorEvent builds a timestamped event.
func NewMonitorEvent(status MonitorStatus, id venuedomain.ExecutionHandle, message string, receipt *venuedomain.Receipt) MonitorEvent {
	return MonitorEvent{
		Status:      status,
		ExecutionID: id,
		Message:     message,
		Timestamp:   time.Now(),
		Receipt:     receipt,
	}
}
