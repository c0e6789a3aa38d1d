package dex

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind is the discriminant of Event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventVaultDeposit
	EventVaultWithdraw
	EventConvert
	EventBuyGem
	EventSellGem
	EventTransfer
)

func (k EventKind) String() string {
	switch k {
	case EventVaultDeposit:
		return "VaultDeposit"
	case EventVaultWithdraw:
		return "VaultWithdraw"
	case EventConvert:
		return "Convert"
	case EventBuyGem:
		return "BuyGem"
	case EventSellGem:
		return "SellGem"
	case EventTransfer:
		return "Transfer"
	default:
		return "Unknown"
	}
}

// Event is a decoded log. Which payload fields are set depends on Kind:
//
//	VaultDeposit, VaultWithdraw: Assets, Shares
//	Convert:                     AmountIn (source token), AmountOut (destination token)
//	BuyGem, SellGem:             Value, Fee, Owner
//	Transfer:                    From, To, Value
type Event struct {
	Kind    EventKind
	Name    string
	Address common.Address

	Owner common.Address
	From  common.Address
	To    common.Address

	Assets    *uint256.Int
	Shares    *uint256.Int
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Value     *uint256.Int
	Fee       *uint256.Int
}
