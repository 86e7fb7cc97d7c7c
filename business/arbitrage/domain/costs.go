package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// CostModel converts gas estimates into output-token units so profit
// and cost live in the same denomination.
type CostModel struct {
	// GasPriceOutUnit is output-token raw units per unit of gas. Zero
	// disables cost accounting.
	GasPriceOutUnit decimal.Decimal
}

// NewCostModel builds a cost model from a gas-to-output conversion rate.
func NewCostModel(gasPriceOutUnit decimal.Decimal) CostModel {
	return CostModel{GasPriceOutUnit: gasPriceOutUnit}
}

// ExecutionCost returns the estimated cost of executing both legs, in
// output-token raw units. Fractions truncate toward zero so the cost
// never exceeds what the rate implies.
func (m CostModel) ExecutionCost(buyGas, sellGas uint64) *big.Int {
	if m.GasPriceOutUnit.Sign() <= 0 {
		return big.NewInt(0)
	}
	totalGas := new(big.Int).Add(
		new(big.Int).SetUint64(buyGas),
		new(big.Int).SetUint64(sellGas),
	)
	cost := m.GasPriceOutUnit.Mul(decimal.NewFromBigInt(totalGas, 0))
	return cost.BigInt()
}
