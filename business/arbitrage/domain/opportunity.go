// Package domain holds the arbitrage bounded context's core types:
// opportunities, cost models, risk assessments, and monitoring events.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ReasonInsufficientLiquidity is the rejection reason when fewer than
// two venues answered a quote round. Cross-venue comparison needs at
// least two prices.
const ReasonInsufficientLiquidity = "Insufficient liquidity across venues"

// Strategy names the venue pair of an opportunity: buy back on the
// venue quoting the least output, sell on the venue quoting the most.
type Strategy struct {
	BuyVenue  string
	SellVenue string
}

// Opportunity is the outcome of evaluating one quote round. Reason is
// always populated; Strategy is present only when Profitable is true.
type Opportunity struct {
	Profitable        bool
	ProfitBasisPoints decimal.Decimal
	GrossProfit       *big.Int // output-token raw units
	ExecutionCost     *big.Int // output-token raw units
	NetProfit         *big.Int // may be negative
	Strategy          *Strategy
	Reason            string
	Timestamp         time.Time
}

// NotProfitable builds a rejected opportunity with the given reason.
func NotProfitable(reason string) *Opportunity {
	return &Opportunity{
		Profitable: false,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}
