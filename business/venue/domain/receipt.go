package domain

// ExecutionHandle identifies a submitted trade on its venue: a
// transaction hash for on-chain venues, an order ID for API venues.
type ExecutionHandle string

// Receipt statuses mirror EVM receipt semantics: 1 success, 0 reverted.
const (
	ReceiptStatusReverted uint64 = 0
	ReceiptStatusSuccess  uint64 = 1
)

// Receipt is the confirmed outcome of a submitted trade.
type Receipt struct {
	Handle      ExecutionHandle
	Status      uint64
	GasUsed     uint64
	BlockNumber uint64
}

// Succeeded reports whether the trade settled successfully.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}
