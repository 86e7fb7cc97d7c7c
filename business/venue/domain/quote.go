package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/asset"
)

// Quote is a venue's answer to a quote request: the output it would
// deliver right now for the requested input, plus the gas it expects
// the swap to cost.
type Quote struct {
	VenueID        string
	AmountIn       asset.Amount
	AmountOut      asset.Amount
	GasEstimate    uint64
	EffectivePrice decimal.Decimal // amountOut / amountIn, in raw units
	Timestamp      time.Time
}

// NewQuote builds a quote and derives its effective price. A zero
// output is rejected: it carries no pricing information and would
// poison downstream ratios.
func NewQuote(venueID string, amountIn, amountOut asset.Amount, gasEstimate uint64) (*Quote, error) {
	if venueID == "" {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("venueID"))
	}
	if !amountIn.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("amount_in must be positive"))
	}
	if !amountOut.IsPositive() {
		return nil, apperror.New(apperror.CodeZeroQuote,
			apperror.WithContext(venueID))
	}

	return &Quote{
		VenueID:        venueID,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		GasEstimate:    gasEstimate,
		EffectivePrice: amountOut.RawDecimal().Div(amountIn.RawDecimal()),
		Timestamp:      time.Now(),
	}, nil
}

// Age returns how long ago the quote was taken.
func (q *Quote) Age() time.Duration {
	return time.Since(q.Timestamp)
}
