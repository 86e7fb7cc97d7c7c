// Package evm implements the venue client port against Uniswap
// V3-style quoter and router contracts over an Ethereum JSON-RPC node.
package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// QuoterV2.quoteExactInputSingle and SwapRouter02.exactInputSingle are
// the only contract surfaces the adapter touches.
const quoterV2ABI = `[{
	"name": "quoteExactInputSingle",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [{
		"name": "params",
		"type": "tuple",
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "fee", "type": "uint24"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		]
	}],
	"outputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "sqrtPriceX96After", "type": "uint160"},
		{"name": "initializedTicksCrossed", "type": "uint32"},
		{"name": "gasEstimate", "type": "uint256"}
	]
}]`

const swapRouterABI = `[{
	"name": "exactInputSingle",
	"type": "function",
	"stateMutability": "payable",
	"inputs": [{
		"name": "params",
		"type": "tuple",
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "fee", "type": "uint24"},
			{"name": "recipient", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "amountOutMinimum", "type": "uint256"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		]
	}],
	"outputs": [{"name": "amountOut", "type": "uint256"}]
}]`

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type quoteResult struct {
	AmountOut   *big.Int
	GasEstimate uint64
}

// contracts holds the parsed ABIs and encodes/decodes call data.
type contracts struct {
	quoter abi.ABI
	router abi.ABI
}

func newContracts() (*contracts, error) {
	quoter, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	router, err := abi.JSON(strings.NewReader(swapRouterABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &contracts{quoter: quoter, router: router}, nil
}

func (c *contracts) packQuote(tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int64) ([]byte, error) {
	return c.quoter.Pack("quoteExactInputSingle", quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(feeTier),
		SqrtPriceLimitX96: big.NewInt(0),
	})
}

func (c *contracts) unpackQuote(data []byte) (*quoteResult, error) {
	values, err := c.quoter.Unpack("quoteExactInputSingle", data)
	if err != nil {
		return nil, fmt.Errorf("unpack quote result: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected quote result arity: %d", len(values))
	}

	amountOut, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amountOut type %T", values[0])
	}
	gasEstimate, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected gasEstimate type %T", values[3])
	}

	return &quoteResult{
		AmountOut:   amountOut,
		GasEstimate: gasEstimate.Uint64(),
	}, nil
}

func (c *contracts) packSwap(tokenIn, tokenOut, recipient common.Address, amountIn, amountOutMin *big.Int, feeTier int64) ([]byte, error) {
	return c.router.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(feeTier),
		Recipient:         recipient,
		AmountIn:          amountIn,
		AmountOutMinimum:  amountOutMin,
		SqrtPriceLimitX96: big.NewInt(0),
	})
}
