// Package infra provides adapters for the arbitrage context.
package infra

import (
	"context"

	"github.com/fd1az/arb-pipeline/business/arbitrage/app"
	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

var _ app.AuditSink = (*LogAuditSink)(nil)

// LogAuditSink writes every monitoring event to the structured log,
// which is the pipeline's audit trail. Terminal failures are logged at
// error level so they surface in alerting.
type LogAuditSink struct {
	log logger.LoggerInterface
}

// NewLogAuditSink creates a sink writing to log.
func NewLogAuditSink(log logger.LoggerInterface) *LogAuditSink {
	return &LogAuditSink{log: log.With("component", "audit")}
}

// Record implements app.AuditSink.
func (s *LogAuditSink) Record(ctx context.Context, event domain.MonitorEvent) {
	args := []any{
		"status", string(event.Status),
		"execution_id", string(event.ExecutionID),
		"message", event.Message,
		"event_time", event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if event.Receipt != nil {
		args = append(args,
			"gas_used", event.Receipt.GasUsed,
			"block_number", event.Receipt.BlockNumber,
		)
	}

	switch event.Status {
	case domain.StatusFailed, domain.StatusTimeout:
		s.log.Error(ctx, "execution event", args...)
	default:
		s.log.Info(ctx, "execution event", args...)
	}
}
