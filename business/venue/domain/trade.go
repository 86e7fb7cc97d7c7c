// Package domain holds the venue bounded context's core types: trade
// parameters, quotes, and execution receipts.
package domain

import (
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/asset"
)

// TradeParams describes the trade every venue is asked to quote or
// execute: swap AmountIn of TokenIn for TokenOut.
type TradeParams struct {
	TokenIn  *asset.Asset
	TokenOut *asset.Asset
	AmountIn asset.Amount
}

// NewTradeParams builds validated trade parameters.
func NewTradeParams(tokenIn, tokenOut *asset.Asset, amountIn asset.Amount) (TradeParams, error) {
	p := TradeParams{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn}
	if err := p.Validate(); err != nil {
		return TradeParams{}, err
	}
	return p, nil
}

// Validate checks the parameters are complete and the amount is positive.
func (p TradeParams) Validate() error {
	if p.TokenIn == nil || p.TokenOut == nil {
		return apperror.New(apperror.CodeInvalidTradeParams,
			apperror.WithContext("token pair is incomplete"))
	}
	if p.TokenIn.ID().Equals(p.TokenOut.ID()) {
		return apperror.New(apperror.CodeInvalidTradeParams,
			apperror.WithContext("token_in and token_out are the same asset"))
	}
	if !p.AmountIn.IsPositive() {
		return apperror.New(apperror.CodeInvalidTradeParams,
			apperror.WithContext("amount_in must be positive"))
	}
	if p.AmountIn.Asset() == nil || !p.AmountIn.Asset().ID().Equals(p.TokenIn.ID()) {
		return apperror.New(apperror.CodeInvalidTradeParams,
			apperror.WithContext("amount_in is not denominated in token_in"))
	}
	return nil
}

// Pair renders the trade direction, e.g. "WETH->USDC".
func (p TradeParams) Pair() string {
	if p.TokenIn == nil || p.TokenOut == nil {
		return ""
	}
	return p.TokenIn.Symbol() + "->" + p.TokenOut.Symbol()
}
