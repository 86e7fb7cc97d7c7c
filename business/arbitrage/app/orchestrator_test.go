package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

func newPipeline(t *testing.T, venues ...venueapp.VenueClient) (*Orchestrator, *recordingSink) {
	t.Helper()

	log := logger.NewDiscard()
	agg, err := venueapp.NewAggregator(venues, log)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	sink := &recordingSink{}
	monitor, err := NewTransactionMonitor(sink, log)
	if err != nil {
		t.Fatalf("NewTransactionMonitor: %v", err)
	}
	orch, err := NewOrchestrator(agg, NewEvaluator(), NewRiskGuard(log), monitor, log)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch, sink
}

func testRequest(t *testing.T) TradeRequest {
	t.Helper()
	return TradeRequest{
		Params:         pipelineParams(t),
		MinProfitBps:   decimal.NewFromInt(50),
		MaxSlippagePct: decimal.RequireFromString("0.5"),
		Costs:          noCosts(),
		OutcomeTimeout: time.Minute,
	}
}

// driftingQuote answers first with the given output, and with the
// drifted output on every later call. It models a price moving between
// the aggregation round and the risk re-quote.
func driftingQuote(venueID string, first, later int64) func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
	var calls atomic.Int64
	return func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
		if calls.Add(1) == 1 {
			return quoteAt(venueID, first)(ctx, params)
		}
		return quoteAt(venueID, later)(ctx, params)
	}
}

func TestAttemptAbortsOnRiskRejection(t *testing.T) {
	// Buy leg drifts from 1.000 to 1.012 before the risk check: 1.2%
	// impact against a 0.5% tolerance. Nothing may be submitted.
	buy := &stubVenue{id: "venue-1", quoteFn: driftingQuote("venue-1", 1000, 1012)}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, sink := newPipeline(t, buy, sell)

	result, err := orch.Attempt(context.Background(), testRequest(t), nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if result.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(result.AbortReason, "Price impact") {
		t.Errorf("abort reason = %q, want the guard's rejection", result.AbortReason)
	}
	if buy.submitted() != 0 || sell.submitted() != 0 {
		t.Error("risk rejection must prevent submission")
	}
	if result.MonitorOutcome != nil {
		t.Error("no monitoring may happen without a submission")
	}
	if len(sink.snapshot()) != 0 {
		t.Error("audit sink must stay empty when nothing was submitted")
	}
}

func TestAttemptAbortsOnInsufficientLiquidity(t *testing.T) {
	only := &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)}
	orch, _ := newPipeline(t, only)

	result, err := orch.Attempt(context.Background(), testRequest(t), nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if result.Success {
		t.Fatal("expected success=false")
	}
	if result.AbortReason != domain.ReasonInsufficientLiquidity {
		t.Errorf("abort reason = %q, want %q", result.AbortReason, domain.ReasonInsufficientLiquidity)
	}
	// One aggregation quote, no risk re-quote: the pipeline stopped at
	// evaluation.
	if only.quoteCalls != 1 {
		t.Errorf("venue quoted %d times, want 1", only.quoteCalls)
	}
	if only.submitted() != 0 {
		t.Error("nothing may be submitted")
	}
}

func TestAttemptAbortsOnSubmissionFailure(t *testing.T) {
	buy := &stubVenue{
		id:      "venue-1",
		quoteFn: quoteAt("venue-1", 1000),
		submitFn: func(ctx context.Context, params venuedomain.TradeParams) (venuedomain.ExecutionHandle, error) {
			return "", errors.New("nonce too low")
		},
	}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, sink := newPipeline(t, buy, sell)

	result, err := orch.Attempt(context.Background(), testRequest(t), nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if result.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(result.AbortReason, "Submission") {
		t.Errorf("abort reason = %q, want submission failure", result.AbortReason)
	}
	if len(sink.snapshot()) != 0 {
		t.Error("audit sink must stay empty for a failed submission")
	}
}

func TestAttemptTimesOutAwaitingOutcome(t *testing.T) {
	buy := &stubVenue{
		id:      "venue-1",
		quoteFn: quoteAt("venue-1", 1000),
		submitFn: func(ctx context.Context, params venuedomain.TradeParams) (venuedomain.ExecutionHandle, error) {
			return "0xdeadbeef", nil
		},
		waitFn: func(ctx context.Context, handle venuedomain.ExecutionHandle, timeout time.Duration) (*venuedomain.Receipt, error) {
			select {
			case <-time.After(timeout):
				return nil, context.DeadlineExceeded
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, sink := newPipeline(t, buy, sell)

	req := testRequest(t)
	req.OutcomeTimeout = 50 * time.Millisecond

	result, err := orch.Attempt(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if result.Success {
		t.Fatal("a timed-out execution is not a success")
	}
	if result.MonitorOutcome == nil || result.MonitorOutcome.Status != domain.StatusTimeout {
		t.Fatalf("monitor outcome = %+v, want TIMEOUT", result.MonitorOutcome)
	}

	events := sink.snapshot()
	if len(events) != 2 || events[0].Status != domain.StatusPending || events[1].Status != domain.StatusTimeout {
		t.Fatalf("audit events = %v, want [PENDING TIMEOUT]", statuses(events))
	}
}

func TestAttemptFullSuccessPath(t *testing.T) {
	buy := &stubVenue{
		id:      "venue-1",
		quoteFn: quoteAt("venue-1", 1000),
		submitFn: func(ctx context.Context, params venuedomain.TradeParams) (venuedomain.ExecutionHandle, error) {
			return "0xdeadbeef", nil
		},
		waitFn: func(ctx context.Context, handle venuedomain.ExecutionHandle, timeout time.Duration) (*venuedomain.Receipt, error) {
			return &venuedomain.Receipt{Handle: handle, Status: venuedomain.ReceiptStatusSuccess, GasUsed: 210_000, BlockNumber: 19_000_001}, nil
		},
	}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, sink := newPipeline(t, buy, sell)

	var observed []domain.MonitorStatus
	result, err := orch.Attempt(context.Background(), testRequest(t), func(event domain.MonitorEvent) {
		observed = append(observed, event.Status)
	})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, abort reason %q", result.AbortReason)
	}
	if result.Opportunity.Strategy.BuyVenue != "venue-1" || result.Opportunity.Strategy.SellVenue != "venue-2" {
		t.Errorf("strategy = %+v", result.Opportunity.Strategy)
	}
	if result.MonitorOutcome.Receipt == nil || result.MonitorOutcome.Receipt.BlockNumber != 19_000_001 {
		t.Error("terminal event must carry the receipt")
	}
	if buy.submitted() != 1 {
		t.Errorf("buy venue submitted %d times, want 1", buy.submitted())
	}
	if len(observed) != 2 || len(sink.snapshot()) != 2 {
		t.Errorf("observer saw %d events, sink %d, want 2 each", len(observed), len(sink.snapshot()))
	}
}

func TestAnalyzeIsReadOnly(t *testing.T) {
	buy := &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, sink := newPipeline(t, buy, sell)

	opp, err := orch.Analyze(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !opp.Profitable {
		t.Fatalf("expected profitable, got reason %q", opp.Reason)
	}
	if opp.Strategy.BuyVenue != "venue-1" || opp.Strategy.SellVenue != "venue-2" {
		t.Errorf("strategy = %+v", opp.Strategy)
	}
	// One aggregation quote each, no risk re-quote, nothing submitted,
	// nothing audited.
	if buy.quoteCalls != 1 || sell.quoteCalls != 1 {
		t.Errorf("quote calls = %d/%d, want 1/1", buy.quoteCalls, sell.quoteCalls)
	}
	if buy.submitted() != 0 || sell.submitted() != 0 {
		t.Error("analysis must not submit")
	}
	if len(sink.snapshot()) != 0 {
		t.Error("analysis must not produce audit events")
	}
}

func TestAttemptRejectsInvalidRequest(t *testing.T) {
	orch, _ := newPipeline(t, &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)})

	req := testRequest(t)
	req.OutcomeTimeout = 0

	if _, err := orch.Attempt(context.Background(), req, nil); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWatchScansImmediately(t *testing.T) {
	buy := &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, _ := newPipeline(t, buy, sell)

	found := make(chan *domain.Opportunity, 1)
	cancel, err := orch.Watch(context.Background(), testRequest(t), time.Hour, func(opp *domain.Opportunity) {
		select {
		case found <- opp:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	// The interval is one hour: only the immediate first scan can
	// deliver this.
	select {
	case opp := <-found:
		if !opp.Profitable {
			t.Error("handler must only see profitable opportunities")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first scan did not run immediately")
	}
}

func TestWatchSlowScansDoNotOverlap(t *testing.T) {
	// A scan that outlives the interval must delay the next one, not
	// run beside it: ticks firing mid-scan coalesce into a single
	// follow-up scan.
	const (
		interval = 10 * time.Millisecond
		scanTime = 60 * time.Millisecond
	)

	var inFlight, maxInFlight atomic.Int64
	slow := &stubVenue{
		id: "venue-1",
		quoteFn: func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				seen := maxInFlight.Load()
				if n <= seen || maxInFlight.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(scanTime)
			return quoteAt("venue-1", 1000)(ctx, params)
		},
	}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, _ := newPipeline(t, slow, sell)

	var fired atomic.Int64
	cancel, err := orch.Watch(context.Background(), testRequest(t), interval, func(opp *domain.Opportunity) {
		fired.Add(1)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	elapsed := 30 * interval
	time.Sleep(elapsed)
	cancel()

	// venue-1 is quoted exactly once per scan, so its concurrent call
	// count is the number of scans in flight.
	if got := maxInFlight.Load(); got != 1 {
		t.Fatalf("observed %d concurrent scans, want 1", got)
	}

	intervals := int64(elapsed / interval)
	if got := fired.Load(); got == 0 || got >= intervals/2 {
		t.Fatalf("handler fired %d times over %d intervals, want far fewer (coalesced ticks)", got, intervals)
	}
}

func TestWatchCancelStopsCallbacks(t *testing.T) {
	buy := &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, _ := newPipeline(t, buy, sell)

	var calls atomic.Int64
	interval := 20 * time.Millisecond
	cancel, err := orch.Watch(context.Background(), testRequest(t), interval, func(opp *domain.Opportunity) {
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	time.Sleep(3 * interval)
	cancel()
	after := calls.Load()

	if after == 0 {
		t.Fatal("expected at least one scan before cancellation")
	}

	// Two full intervals past cancellation: the count must not move.
	time.Sleep(2 * interval)
	if got := calls.Load(); got != after {
		t.Fatalf("handler invoked %d more times after cancel returned", got-after)
	}
}

func TestWatchCancelIsIdempotent(t *testing.T) {
	buy := &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)}
	sell := &stubVenue{id: "venue-2", quoteFn: quoteAt("venue-2", 1020)}
	orch, _ := newPipeline(t, buy, sell)

	cancel, err := orch.Watch(context.Background(), testRequest(t), 10*time.Millisecond, func(opp *domain.Opportunity) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel()
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent cancel calls deadlocked")
	}
}

func TestWatchRejectsBadArguments(t *testing.T) {
	orch, _ := newPipeline(t, &stubVenue{id: "venue-1", quoteFn: quoteAt("venue-1", 1000)})

	if _, err := orch.Watch(context.Background(), testRequest(t), 0, func(opp *domain.Opportunity) {}); err == nil {
		t.Error("zero interval must be rejected")
	}
	if _, err := orch.Watch(context.Background(), testRequest(t), time.Second, nil); err == nil {
		t.Error("nil handler must be rejected")
	}
}

func statuses(events []domain.MonitorEvent) []domain.MonitorStatus {
	out := make([]domain.MonitorStatus, len(events))
	for i, e := range events {
		out[i] = e.Status
	}
	return out
}
