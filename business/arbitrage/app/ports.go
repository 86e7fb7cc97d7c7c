// Package app implements the arbitrage pipeline: opportunity
// evaluation, pre-trade risk checks, execution monitoring, and the
// orchestrator that ties them together.
package app

import (
	"context"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
)

// AuditSink receives every monitoring event for audit purposes,
// independent of any per-call observer. Implementations must tolerate
// being called from monitoring goroutines.
type AuditSink interface {
	Record(ctx context.Context, event domain.MonitorEvent)
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event domain.MonitorEvent)

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event domain.MonitorEvent) {
	f(ctx, event)
}
