package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

func newTestMonitor(t *testing.T, sink AuditSink) *TransactionMonitor {
	t.Helper()
	m, err := NewTransactionMonitor(sink, logger.NewDiscard())
	if err != nil {
		t.Fatalf("NewTransactionMonitor: %v", err)
	}
	return m
}

func waitVenue(receipt *venuedomain.Receipt, err error) *stubVenue {
	return &stubVenue{
		id: "venue-1",
		waitFn: func(ctx context.Context, handle venuedomain.ExecutionHandle, timeout time.Duration) (*venuedomain.Receipt, error) {
			return receipt, err
		},
	}
}

func TestMonitorLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		receipt *venuedomain.Receipt
		waitErr error
		want    domain.MonitorStatus
	}{
		{
			name:    "confirmed receipt",
			receipt: &venuedomain.Receipt{Handle: "0xabc", Status: venuedomain.ReceiptStatusSuccess, GasUsed: 180_000},
			want:    domain.StatusSuccess,
		},
		{
			name:    "reverted receipt",
			receipt: &venuedomain.Receipt{Handle: "0xabc", Status: venuedomain.ReceiptStatusReverted},
			want:    domain.StatusFailed,
		},
		{
			name:    "venue error",
			waitErr: errors.New("rpc: connection reset"),
			want:    domain.StatusFailed,
		},
		{
			name:    "venue timeout code",
			waitErr: apperror.New(apperror.CodeExecutionTimeout),
			want:    domain.StatusTimeout,
		},
		{
			name:    "context deadline",
			waitErr: context.DeadlineExceeded,
			want:    domain.StatusTimeout,
		},
		{
			name:    "wrapped context deadline",
			waitErr: apperror.Wrap(context.DeadlineExceeded, apperror.CodeVenueRPCError, "receipt poll"),
			want:    domain.StatusTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			m := newTestMonitor(t, sink)

			terminal := m.Run(context.Background(), waitVenue(tt.receipt, tt.waitErr), "0xabc", time.Minute, nil)

			if terminal.Status != tt.want {
				t.Fatalf("terminal status = %s, want %s", terminal.Status, tt.want)
			}

			events := sink.snapshot()
			if len(events) != 2 {
				t.Fatalf("sink saw %d events, want 2 (PENDING + terminal)", len(events))
			}
			if events[0].Status != domain.StatusPending {
				t.Errorf("first event = %s, want PENDING", events[0].Status)
			}
			if events[1].Status != tt.want {
				t.Errorf("second event = %s, want %s", events[1].Status, tt.want)
			}
			if events[0].ExecutionID != "0xabc" || events[1].ExecutionID != "0xabc" {
				t.Error("events must carry the execution handle")
			}
		})
	}
}

func TestMonitorExactlyOneTerminalEvent(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMonitor(t, sink)

	var observed []domain.MonitorEvent
	m.Run(context.Background(),
		waitVenue(&venuedomain.Receipt{Handle: "0xabc", Status: venuedomain.ReceiptStatusSuccess}, nil),
		"0xabc", time.Minute,
		func(event domain.MonitorEvent) { observed = append(observed, event) })

	for _, events := range [][]domain.MonitorEvent{sink.snapshot(), observed} {
		terminals := 0
		for i, e := range events {
			if e.Status.IsTerminal() {
				terminals++
				if i == 0 {
					t.Error("terminal event emitted before PENDING")
				}
			}
		}
		if terminals != 1 {
			t.Errorf("saw %d terminal events, want exactly 1", terminals)
		}
	}
}

func TestMonitorObserverSeesSinkEvents(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMonitor(t, sink)

	var observed []domain.MonitorStatus
	m.Run(context.Background(),
		waitVenue(nil, apperror.New(apperror.CodeExecutionTimeout)),
		"order-17", 30*time.Second,
		func(event domain.MonitorEvent) { observed = append(observed, event.Status) })

	want := []domain.MonitorStatus{domain.StatusPending, domain.StatusTimeout}
	if len(observed) != len(want) {
		t.Fatalf("observer saw %d events, want %d", len(observed), len(want))
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("observer event[%d] = %s, want %s", i, observed[i], want[i])
		}
	}
}

func TestMonitorObserverPanicDoesNotLoseAudit(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMonitor(t, sink)

	terminal := m.Run(context.Background(),
		waitVenue(&venuedomain.Receipt{Handle: "0xabc", Status: venuedomain.ReceiptStatusSuccess}, nil),
		"0xabc", time.Minute,
		func(event domain.MonitorEvent) { panic("observer bug") })

	if terminal.Status != domain.StatusSuccess {
		t.Fatalf("terminal status = %s, want SUCCESS", terminal.Status)
	}
	if got := len(sink.snapshot()); got != 2 {
		t.Fatalf("sink saw %d events, want 2", got)
	}
}
