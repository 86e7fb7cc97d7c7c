package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-pipeline/internal/asset"
)

// RiskAssessment is the verdict of a pre-execution safety check.
// Unsafe verdicts always carry a reason.
type RiskAssessment struct {
	IsSafe            bool
	Reason            string
	ExpectedAmountOut asset.Amount
	ImpactPercent     decimal.Decimal
}

// Unsafe builds a rejecting assessment.
func Unsafe(reason string) RiskAssessment {
	return RiskAssessment{IsSafe: false, Reason: reason}
}
