package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

var oneHundred = decimal.NewFromInt(100)

// RiskGuard re-quotes a venue immediately before execution and rejects
// trades whose price has drifted past the slippage tolerance. Every
// failure mode is unsafe: when the guard cannot prove the trade is
// within tolerance, it refuses it.
type RiskGuard struct {
	log    logger.LoggerInterface
	tracer apm.Tracer
}

// NewRiskGuard creates a risk guard.
func NewRiskGuard(log logger.LoggerInterface) *RiskGuard {
	return &RiskGuard{
		log:    log,
		tracer: apm.NewTracer("arbitrage.riskguard"),
	}
}

// Verify fetches a fresh quote from venue and compares its effective
// price against referencePrice, the price the opportunity was priced
// at. Impact is the absolute relative drift in percent.
func (g *RiskGuard) Verify(ctx context.Context, venue venueapp.VenueClient, params venuedomain.TradeParams, maxSlippagePct, referencePrice decimal.Decimal) domain.RiskAssessment {
	ctx, span := g.tracer.StartSpanFromContext(ctx, "RiskGuard.Verify")
	defer span.End()

	span.SetAttributes(attribute.String("venue", venue.VenueID()))

	if referencePrice.Sign() <= 0 {
		return domain.Unsafe("Reference price is not positive")
	}

	quote, err := venue.Quote(ctx, params)
	if err != nil {
		g.log.Warn(ctx, "risk re-quote failed, rejecting trade",
			"venue", venue.VenueID(),
			"error", err.Error())
		return domain.Unsafe(fmt.Sprintf("Failed to re-quote venue %s: %v", venue.VenueID(), err))
	}

	impact := quote.EffectivePrice.Sub(referencePrice).
		Div(referencePrice).
		Mul(oneHundred).
		Abs()

	if impact.GreaterThan(maxSlippagePct) {
		g.log.Warn(ctx, "price impact over tolerance, rejecting trade",
			"venue", venue.VenueID(),
			"impact_pct", impact.String(),
			"max_slippage_pct", maxSlippagePct.String())
		return domain.RiskAssessment{
			IsSafe: false,
			Reason: fmt.Sprintf("Price impact %s%% exceeds max slippage %s%%",
				impact.StringFixed(4), maxSlippagePct.String()),
			ExpectedAmountOut: quote.AmountOut,
			ImpactPercent:     impact,
		}
	}

	return domain.RiskAssessment{
		IsSafe:            true,
		ExpectedAmountOut: quote.AmountOut,
		ImpactPercent:     impact,
	}
}
