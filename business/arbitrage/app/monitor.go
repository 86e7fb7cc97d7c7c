package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

// EventObserver receives status transitions for one monitored
// execution. It is optional and per-call, unlike the audit sink.
type EventObserver func(event domain.MonitorEvent)

// TransactionMonitor tracks a submitted trade from PENDING to exactly
// one terminal state. Every transition goes to the audit sink; TIMEOUT
// is reported distinctly from FAILED because an unconfirmed trade may
// still settle later.
type TransactionMonitor struct {
	sink   AuditSink
	log    logger.LoggerInterface
	tracer apm.Tracer

	outcomes metric.Int64Counter
}

// NewTransactionMonitor creates a monitor recording events to sink.
func NewTransactionMonitor(sink AuditSink, log logger.LoggerInterface) (*TransactionMonitor, error) {
	m := &TransactionMonitor{
		sink:   sink,
		log:    log,
		tracer: apm.NewTracer("arbitrage.monitor"),
	}

	meter := otel.Meter("arbitrage.monitor")
	var err error
	m.outcomes, err = meter.Int64Counter(
		"execution_outcomes_total",
		metric.WithDescription("Terminal execution outcomes by status"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Run watches handle on venue until it reaches a terminal state or
// timeout elapses, and returns the terminal event. The observer, when
// non-nil, sees the same transitions as the audit sink.
func (m *TransactionMonitor) Run(ctx context.Context, venue venueapp.VenueClient, handle venuedomain.ExecutionHandle, timeout time.Duration, observer EventObserver) domain.MonitorEvent {
	ctx, span := m.tracer.StartSpanFromContext(ctx, "TransactionMonitor.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("venue", venue.VenueID()),
		attribute.String("execution_id", string(handle)),
	)

	m.emit(ctx, observer, domain.NewMonitorEvent(
		domain.StatusPending, handle, "execution submitted, awaiting outcome", nil))

	receipt, err := venue.WaitForOutcome(ctx, handle, timeout)

	var terminal domain.MonitorEvent
	switch {
	case err != nil && isTimeout(err):
		terminal = domain.NewMonitorEvent(domain.StatusTimeout, handle,
			fmt.Sprintf("no outcome within %s, settlement unknown", timeout), nil)
	case err != nil:
		terminal = domain.NewMonitorEvent(domain.StatusFailed, handle,
			fmt.Sprintf("outcome check failed: %v", err), nil)
	case receipt.Succeeded():
		terminal = domain.NewMonitorEvent(domain.StatusSuccess, handle,
			"execution confirmed", receipt)
	default:
		terminal = domain.NewMonitorEvent(domain.StatusFailed, handle,
			"execution reverted on venue", receipt)
	}

	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue.VenueID()),
		attribute.String("status", string(terminal.Status)),
	))
	m.emit(ctx, observer, terminal)
	return terminal
}

// emit delivers an event to the audit sink and the observer. Observer
// panics are contained so they cannot break the terminal-state
// guarantee for the sink.
func (m *TransactionMonitor) emit(ctx context.Context, observer EventObserver, event domain.MonitorEvent) {
	m.sink.Record(ctx, event)
	if observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "monitor observer panicked",
				"execution_id", string(event.ExecutionID),
				"panic", fmt.Sprintf("%v", r))
		}
	}()
	observer(event)
}

func isTimeout(err error) bool {
	return apperror.HasCode(err, apperror.CodeExecutionTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
