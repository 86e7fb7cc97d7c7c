// Package app wires venue clients into the quote aggregation service.
package app

import (
	"context"
	"time"

	"github.com/fd1az/arb-pipeline/business/venue/domain"
)

// VenueClient is the port every venue adapter implements. Quote is
// read-only; Submit and WaitForOutcome mutate and observe venue state.
type VenueClient interface {
	// VenueID returns the stable identifier used in quotes and logs.
	VenueID() string

	// Quote prices the trade without executing it.
	Quote(ctx context.Context, params domain.TradeParams) (*domain.Quote, error)

	// Submit sends the trade to the venue and returns a handle for it.
	Submit(ctx context.Context, params domain.TradeParams) (domain.ExecutionHandle, error)

	// WaitForOutcome blocks until the submitted trade reaches a
	// confirmed outcome or timeout elapses. A timeout is reported as
	// an error carrying apperror.CodeExecutionTimeout.
	WaitForOutcome(ctx context.Context, handle domain.ExecutionHandle, timeout time.Duration) (*domain.Receipt, error)
}
