package ethereum

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ContributionEvent represents a ContributionReceived vault event
type ContributionEvent struct {
	Patron      common.Address
	Creator     common.Address
	Amount      decimal.Decimal
	BlockNumber uint64
	TxHash      common.Hash
}
