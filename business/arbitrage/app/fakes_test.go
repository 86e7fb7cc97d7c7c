package app

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/asset"
)

// stubVenue is a scriptable venue client. Unset hooks fail the call.
type stubVenue struct {
	id       string
	quoteFn  func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error)
	submitFn func(ctx context.Context, params venuedomain.TradeParams) (venuedomain.ExecutionHandle, error)
	waitFn   func(ctx context.Context, handle venuedomain.ExecutionHandle, timeout time.Duration) (*venuedomain.Receipt, error)

	mu          sync.Mutex
	quoteCalls  int
	submitCalls int
}

func (s *stubVenue) VenueID() string { return s.id }

func (s *stubVenue) Quote(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
	s.mu.Lock()
	s.quoteCalls++
	s.mu.Unlock()
	return s.quoteFn(ctx, params)
}

func (s *stubVenue) Submit(ctx context.Context, params venuedomain.TradeParams) (venuedomain.ExecutionHandle, error) {
	s.mu.Lock()
	s.submitCalls++
	s.mu.Unlock()
	return s.submitFn(ctx, params)
}

func (s *stubVenue) WaitForOutcome(ctx context.Context, handle venuedomain.ExecutionHandle, timeout time.Duration) (*venuedomain.Receipt, error) {
	return s.waitFn(ctx, handle, timeout)
}

func (s *stubVenue) submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls
}

// quoteAt scripts a venue to always answer with the given output.
func quoteAt(venueID string, amountOut int64) func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
	return func(ctx context.Context, params venuedomain.TradeParams) (*venuedomain.Quote, error) {
		out := asset.NewAmount(params.TokenOut, big.NewInt(amountOut))
		return venuedomain.NewQuote(venueID, params.AmountIn, out, 100_000)
	}
}

// recordingSink collects every audit event, safe for concurrent use.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.MonitorEvent
}

func (s *recordingSink) Record(ctx context.Context, event domain.MonitorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []domain.MonitorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MonitorEvent, len(s.events))
	copy(out, s.events)
	return out
}

func pipelineParams(t *testing.T) venuedomain.TradeParams {
	t.Helper()
	params, err := venuedomain.NewTradeParams(
		asset.WETH,
		asset.USDC,
		asset.NewAmount(asset.WETH, big.NewInt(1000)),
	)
	if err != nil {
		t.Fatalf("NewTradeParams: %v", err)
	}
	return params
}
