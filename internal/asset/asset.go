// Package asset provides typed assets and immutable amounts in raw
// smallest-unit representation (wei, token base units).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID uniquely identifies an asset across chains.
type AssetID string

// NewNativeAssetID creates the ID for a chain's native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID(fmt.Sprintf("native:%d", chainID))
}

// NewTokenAssetID creates the ID for an ERC-20 style token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	return AssetID(fmt.Sprintf("token:%d:%s", chainID, addr.Hex()))
}

// Equals compares two asset IDs.
func (id AssetID) Equals(other AssetID) bool {
	return id == other
}

// Asset is an immutable descriptor for a tradeable asset.
type Asset struct {
	id       AssetID
	chainID  uint64
	address  common.Address
	isToken  bool
	symbol   string
	name     string
	decimals uint8
}

// NewNative creates a chain-native asset (e.g. ETH on mainnet).
func NewNative(chainID uint64, symbol, name string, decimals uint8) *Asset {
	return &Asset{
		id:       NewNativeAssetID(chainID),
		chainID:  chainID,
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}
}

// NewToken creates a token asset with an on-chain address.
func NewToken(chainID uint64, addr common.Address, symbol, name string, decimals uint8) *Asset {
	return &Asset{
		id:       NewTokenAssetID(chainID, addr),
		chainID:  chainID,
		address:  addr,
		isToken:  true,
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}
}

// ID returns the asset's unique ID.
func (a *Asset) ID() AssetID { return a.id }

// ChainID returns the chain the asset lives on.
func (a *Asset) ChainID() uint64 { return a.chainID }

// Symbol returns the asset symbol (e.g. "WETH").
func (a *Asset) Symbol() string { return a.symbol }

// Name returns the asset's display name.
func (a *Asset) Name() string { return a.name }

// Decimals returns the number of decimal places in the raw unit.
func (a *Asset) Decimals() uint8 { return a.decimals }

// Address returns the token contract address and whether one exists.
func (a *Asset) Address() (common.Address, bool) {
	return a.address, a.isToken
}

// String returns the symbol.
func (a *Asset) String() string { return a.symbol }
