package app

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/asset"
)

// Rejection reasons for unprofitable rounds.
const (
	ReasonNoPriceDivergence = "No price divergence across venues"
	ReasonBelowThreshold    = "Profit below minimum threshold"
	ReasonCostsExceedProfit = "Execution costs exceed gross profit"
)

var tenThousand = decimal.NewFromInt(10_000)

// Evaluator decides whether a quote round contains a profitable
// cross-venue spread. It is pure: no I/O, no clock beyond the result
// timestamp, and deterministic for a given input.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate compares quotes pairwise by output and prices the best
// spread. Quotes are only comparable when they price the requested
// input amount; any other size is excluded before ranking. Fewer than
// two comparable quotes fails closed: one price cannot be arbitraged
// against itself. Ties on output resolve to the earlier quote, so a
// venue's position in the round is stable across runs.
func (e *Evaluator) Evaluate(quotes []*venuedomain.Quote, amountIn asset.Amount, minProfitBps decimal.Decimal, costs domain.CostModel) *domain.Opportunity {
	comparable := make([]*venuedomain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.AmountIn.Equals(amountIn) {
			comparable = append(comparable, q)
		}
	}
	if len(comparable) < 2 {
		return domain.NotProfitable(domain.ReasonInsufficientLiquidity)
	}

	// With a uniform input amount, ranking raw outputs is exactly
	// effective-price ordering. Highest output is where the input token
	// sells dearest; lowest is where it can be bought back cheapest.
	// Strict comparisons keep the first quote on ties.
	best, worst := comparable[0], comparable[0]
	for _, q := range comparable[1:] {
		if q.AmountOut.Raw().Cmp(best.AmountOut.Raw()) > 0 {
			best = q
		}
		if q.AmountOut.Raw().Cmp(worst.AmountOut.Raw()) < 0 {
			worst = q
		}
	}

	gross := new(big.Int).Sub(best.AmountOut.Raw(), worst.AmountOut.Raw())
	if gross.Sign() == 0 {
		opp := domain.NotProfitable(ReasonNoPriceDivergence)
		opp.GrossProfit = gross
		opp.ExecutionCost = big.NewInt(0)
		opp.NetProfit = big.NewInt(0)
		return opp
	}

	cost := costs.ExecutionCost(worst.GasEstimate, best.GasEstimate)
	net := new(big.Int).Sub(gross, cost)

	profitBps := decimal.NewFromBigInt(gross, 0).
		Div(amountIn.RawDecimal()).
		Mul(tenThousand)

	opp := &domain.Opportunity{
		ProfitBasisPoints: profitBps,
		GrossProfit:       gross,
		ExecutionCost:     cost,
		NetProfit:         net,
		Timestamp:         time.Now(),
	}

	// Strategy is only attached to a positive verdict: an unprofitable
	// round carries no executable venue pair.
	switch {
	case net.Sign() <= 0:
		opp.Reason = ReasonCostsExceedProfit
	case profitBps.LessThan(minProfitBps):
		opp.Reason = ReasonBelowThreshold
	default:
		opp.Profitable = true
		opp.Strategy = &domain.Strategy{
			BuyVenue:  worst.VenueID,
			SellVenue: best.VenueID,
		}
		opp.Reason = fmt.Sprintf("Buy on %s, sell on %s for %s bps",
			worst.VenueID, best.VenueID, profitBps.StringFixed(2))
	}
	return opp
}
