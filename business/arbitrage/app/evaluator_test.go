package app

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/asset"
)

func mkAmountIn(t *testing.T, raw int64) asset.Amount {
	t.Helper()
	return asset.NewAmount(asset.WETH, big.NewInt(raw))
}

func mkQuote(t *testing.T, venueID string, amountInRaw, amountOutRaw int64, gas uint64) *venuedomain.Quote {
	t.Helper()
	q, err := venuedomain.NewQuote(
		venueID,
		asset.NewAmount(asset.WETH, big.NewInt(amountInRaw)),
		asset.NewAmount(asset.USDC, big.NewInt(amountOutRaw)),
		gas,
	)
	if err != nil {
		t.Fatalf("NewQuote(%s): %v", venueID, err)
	}
	return q
}

func noCosts() domain.CostModel {
	return domain.NewCostModel(decimal.Zero)
}

func TestEvaluateTwoVenueSpread(t *testing.T) {
	// Venue 1 prices at 1.00, venue 2 at 1.02 for the same 1000 input:
	// buy back on venue 1, sell on venue 2, 20 units gross, 200 bps.
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1020, 120),
	}

	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(50), noCosts())

	if !opp.Profitable {
		t.Fatalf("expected profitable, got reason %q", opp.Reason)
	}
	if opp.Strategy.BuyVenue != "venue-1" || opp.Strategy.SellVenue != "venue-2" {
		t.Errorf("strategy = buy:%s sell:%s, want buy:venue-1 sell:venue-2",
			opp.Strategy.BuyVenue, opp.Strategy.SellVenue)
	}
	if opp.GrossProfit.String() != "20" {
		t.Errorf("gross profit = %s, want 20", opp.GrossProfit)
	}
	if !opp.ProfitBasisPoints.Equal(decimal.NewFromInt(200)) {
		t.Errorf("profit bps = %s, want 200", opp.ProfitBasisPoints)
	}
	if opp.NetProfit.String() != "20" {
		t.Errorf("net profit = %s, want 20", opp.NetProfit)
	}
}

func TestEvaluateFailsClosedBelowTwoQuotes(t *testing.T) {
	e := NewEvaluator()
	tests := []struct {
		name   string
		quotes []*venuedomain.Quote
	}{
		{"no quotes", nil},
		{"one quote", []*venuedomain.Quote{mkQuote(t, "venue-1", 1000, 1020, 100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := e.Evaluate(tt.quotes, mkAmountIn(t, 1000), decimal.Zero, noCosts())
			if opp.Profitable {
				t.Fatal("expected not profitable")
			}
			if opp.Reason != domain.ReasonInsufficientLiquidity {
				t.Errorf("reason = %q, want %q", opp.Reason, domain.ReasonInsufficientLiquidity)
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1003, 100),
		mkQuote(t, "venue-2", 1000, 1020, 120),
		mkQuote(t, "venue-3", 1000, 995, 90),
	}
	amountIn := mkAmountIn(t, 1000)
	min := decimal.NewFromInt(10)

	first := e.Evaluate(quotes, amountIn, min, noCosts())
	for i := 0; i < 100; i++ {
		got := e.Evaluate(quotes, amountIn, min, noCosts())
		if got.Profitable != first.Profitable ||
			!got.ProfitBasisPoints.Equal(first.ProfitBasisPoints) ||
			got.GrossProfit.Cmp(first.GrossProfit) != 0 ||
			got.NetProfit.Cmp(first.NetProfit) != 0 ||
			got.Strategy.BuyVenue != first.Strategy.BuyVenue ||
			got.Strategy.SellVenue != first.Strategy.SellVenue ||
			got.Reason != first.Reason {
			t.Fatalf("run %d diverged from first evaluation", i)
		}
	}
}

func TestEvaluateTieBreakIsStable(t *testing.T) {
	// Two venues tie on the best price and two tie on the worst: the
	// first of each in input order must win its leg, every time.
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1020, 100),
		mkQuote(t, "venue-3", 1000, 1020, 100),
		mkQuote(t, "venue-4", 1000, 1000, 100),
	}

	for i := 0; i < 50; i++ {
		opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.Zero, noCosts())
		if !opp.Profitable {
			t.Fatalf("expected profitable, got reason %q", opp.Reason)
		}
		if opp.Strategy.BuyVenue != "venue-1" || opp.Strategy.SellVenue != "venue-2" {
			t.Fatalf("tie-break unstable on run %d: buy:%s sell:%s",
				i, opp.Strategy.BuyVenue, opp.Strategy.SellVenue)
		}
	}
}

func TestEvaluateExcludesMismatchedQuoteSizes(t *testing.T) {
	// venue-2 priced half the requested input. Its raw output cannot be
	// ranked against full-size quotes, so it must sit out the round.
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 500, 520, 100),
		mkQuote(t, "venue-3", 1000, 1020, 100),
	}

	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(50), noCosts())

	if !opp.Profitable {
		t.Fatalf("expected profitable, got reason %q", opp.Reason)
	}
	if opp.Strategy.BuyVenue != "venue-1" || opp.Strategy.SellVenue != "venue-3" {
		t.Errorf("strategy = buy:%s sell:%s, want buy:venue-1 sell:venue-3",
			opp.Strategy.BuyVenue, opp.Strategy.SellVenue)
	}
	if opp.GrossProfit.String() != "20" {
		t.Errorf("gross profit = %s, want 20", opp.GrossProfit)
	}

	// With the mismatched quote out, a single comparable price is left:
	// the round fails closed.
	opp = e.Evaluate(quotes[:2], mkAmountIn(t, 1000), decimal.Zero, noCosts())
	if opp.Profitable {
		t.Fatal("expected not profitable")
	}
	if opp.Reason != domain.ReasonInsufficientLiquidity {
		t.Errorf("reason = %q, want %q", opp.Reason, domain.ReasonInsufficientLiquidity)
	}
}

func TestEvaluateNoStrategyWhenRejected(t *testing.T) {
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1005, 100),
	}

	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(100), noCosts())
	if opp.Profitable {
		t.Fatal("expected not profitable")
	}
	if opp.Strategy != nil {
		t.Error("rejected rounds must not carry an executable strategy")
	}
	if opp.Reason == "" {
		t.Error("reason must always be populated")
	}
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	e := NewEvaluator()

	// 20 gross on 1000 in = exactly 200 bps, at the threshold. With
	// costs eating the entire gross, net is exactly zero: strictly
	// positive net profit is required, so this must reject.
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 10),
		mkQuote(t, "venue-2", 1000, 1020, 10),
	}
	costs := domain.NewCostModel(decimal.NewFromInt(1)) // 20 gas total -> cost 20

	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(200), costs)

	if !opp.ProfitBasisPoints.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("profit bps = %s, want exactly 200", opp.ProfitBasisPoints)
	}
	if opp.NetProfit.Sign() != 0 {
		t.Fatalf("net profit = %s, want exactly 0", opp.NetProfit)
	}
	if opp.Profitable {
		t.Error("zero net profit at the bps threshold must not be profitable")
	}
}

func TestEvaluateAtThresholdWithPositiveNet(t *testing.T) {
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1020, 120),
	}

	// Threshold met exactly and net is positive: profitable.
	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(200), noCosts())
	if !opp.Profitable {
		t.Errorf("bps == threshold with positive net should be profitable, reason %q", opp.Reason)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1005, 120),
	}

	// 50 bps spread against a 100 bps threshold.
	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.NewFromInt(100), noCosts())
	if opp.Profitable {
		t.Fatal("expected not profitable")
	}
	if opp.Reason != ReasonBelowThreshold {
		t.Errorf("reason = %q, want %q", opp.Reason, ReasonBelowThreshold)
	}
}

func TestEvaluateCostsExceedGross(t *testing.T) {
	e := NewEvaluator()
	quotes := []*venuedomain.Quote{
		mkQuote(t, "venue-1", 1000, 1000, 100),
		mkQuote(t, "venue-2", 1000, 1020, 120),
	}
	costs := domain.NewCostModel(decimal.NewFromInt(1)) // 220 gas -> cost 220 > 20 gross

	opp := e.Evaluate(quotes, mkAmountIn(t, 1000), decimal.Zero, costs)
	if opp.Profitable {
		t.Fatal("expected not profitable")
	}
	if opp.Reason != ReasonCostsExceedProfit {
		t.Errorf("reason = %q, want %q", opp.Reason, ReasonCostsExceedProfit)
	}
	if opp.NetProfit.Sign() >= 0 {
		t.Errorf("net profit = %s, want negative", opp.NetProfit)
	}
}
