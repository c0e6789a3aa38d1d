package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionProtocolComponents groups the components created by one transaction.
type TransactionProtocolComponents struct {
	Tx         TxRef               `json:"tx"`
	Components []ProtocolComponent `json:"components"`
}

// BlockTransactionProtocolComponents is the output of component discovery,
// ordered by transaction index.
type BlockTransactionProtocolComponents struct {
	TxComponents []TransactionProtocolComponents `json:"tx_components"`
}

// Len returns the number of components across all transactions.
func (b *BlockTransactionProtocolComponents) Len() int {
	n := 0
	for _, tx := range b.TxComponents {
		n += len(tx.Components)
	}
	return n
}

// BalanceDelta is a signed change of a component's token balance caused by
// one leg of one log. Positive means inflow to the component.
type BalanceDelta struct {
	Ordinal     uint64         `json:"ord"`
	Tx          TxRef          `json:"tx"`
	Token       common.Address `json:"token"`
	ComponentID hexutil.Bytes  `json:"component_id"`
	Delta       *big.Int       `json:"delta"`
}

// BlockBalanceDeltas is the flat, ordinal tagged delta stream of a block.
type BlockBalanceDeltas struct {
	BalanceDeltas []BalanceDelta `json:"balance_deltas"`
}

// EntityChanges carries attribute updates for one component.
type EntityChanges struct {
	ComponentID string      `json:"component_id"`
	Attributes  []Attribute `json:"attributes"`
}

// ContractSlot is a storage slot and its value after the transaction.
type ContractSlot struct {
	Slot  hexutil.Bytes `json:"slot"`
	Value hexutil.Bytes `json:"value"`
}

// ContractChange collects the state changes of one watched contract in one
// transaction.
type ContractChange struct {
	Address    common.Address `json:"address"`
	Balance    hexutil.Bytes  `json:"balance,omitempty"`
	Code       hexutil.Bytes  `json:"code,omitempty"`
	Slots      []ContractSlot `json:"slots"`
	ChangeType ChangeType     `json:"change"`
}

// ComponentBalance is the absolute balance of a token held by a component.
// Balance is a big-endian two's-complement integer.
type ComponentBalance struct {
	Token       common.Address `json:"token"`
	Balance     hexutil.Bytes  `json:"balance"`
	ComponentID string         `json:"component_id"`
}

// TransactionChanges bundles every change attributed to one transaction.
type TransactionChanges struct {
	Tx               TxRef               `json:"tx"`
	ContractChanges  []ContractChange    `json:"contract_changes"`
	EntityChanges    []EntityChanges     `json:"entity_changes"`
	ComponentChanges []ProtocolComponent `json:"component_changes"`
	BalanceChanges   []ComponentBalance  `json:"balance_changes"`
}

// IsEmpty reports whether the bundle carries nothing worth emitting.
func (t *TransactionChanges) IsEmpty() bool {
	return len(t.ContractChanges) == 0 &&
		len(t.EntityChanges) == 0 &&
		len(t.ComponentChanges) == 0 &&
		len(t.BalanceChanges) == 0
}

// BlockChanges is the terminal artifact of a block, with transactions
// sorted ascending by index.
type BlockChanges struct {
	Block   BlockRef             `json:"block"`
	Changes []TransactionChanges `json:"changes"`
}
