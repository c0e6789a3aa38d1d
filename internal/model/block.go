package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the host-supplied view of one block: header fields plus every
// transaction with its call tree, receipt logs and account creations.
type Block struct {
	Number       uint64        `json:"number"`
	Hash         common.Hash   `json:"hash"`
	ParentHash   common.Hash   `json:"parent_hash"`
	Timestamp    uint64        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// Ref returns the header reference carried by BlockChanges.
func (b *Block) Ref() BlockRef {
	return BlockRef{
		Number:     b.Number,
		Hash:       b.Hash,
		ParentHash: b.ParentHash,
		Timestamp:  b.Timestamp,
	}
}

// BlockRef identifies a block in emitted artifacts.
type BlockRef struct {
	Number     uint64      `json:"number"`
	Hash       common.Hash `json:"hash"`
	ParentHash common.Hash `json:"parent_hash"`
	Timestamp  uint64      `json:"timestamp"`
}

// Transaction is a transaction as executed in the block.
type Transaction struct {
	Hash             common.Hash       `json:"hash"`
	Index            uint32            `json:"index"`
	From             common.Address    `json:"from"`
	To               *common.Address   `json:"to,omitempty"`
	Input            hexutil.Bytes     `json:"input,omitempty"`
	Status           uint64            `json:"status"`
	Calls            []Call            `json:"calls,omitempty"`
	Logs             []Log             `json:"logs,omitempty"`
	AccountCreations []AccountCreation `json:"account_creations,omitempty"`
}

// Ref returns the transaction reference attached to every derived record.
func (t *Transaction) Ref() TxRef {
	return TxRef{Hash: t.Hash, Index: t.Index, From: t.From}
}

// ToAddress returns the recipient, or the zero address for contract creations.
func (t *Transaction) ToAddress() common.Address {
	if t.To == nil {
		return common.Address{}
	}
	return *t.To
}

// Succeeded reports whether the receipt status is successful.
func (t *Transaction) Succeeded() bool {
	return t.Status == 1
}

// Call is one frame of the call tree, flattened in execution order. Depth
// and ParentIndex preserve the nesting.
type Call struct {
	Index          uint32          `json:"index"`
	ParentIndex    uint32          `json:"parent_index"`
	Depth          uint32          `json:"depth"`
	CallType       string          `json:"call_type"`
	Caller         common.Address  `json:"caller"`
	Address        common.Address  `json:"address"`
	Input          hexutil.Bytes   `json:"input,omitempty"`
	ReturnData     hexutil.Bytes   `json:"return_data,omitempty"`
	BeginOrdinal   uint64          `json:"begin_ordinal"`
	EndOrdinal     uint64          `json:"end_ordinal"`
	StateReverted  bool            `json:"state_reverted"`
	StorageChanges []StorageChange `json:"storage_changes,omitempty"`
	CodeChanges    []CodeChange    `json:"code_changes,omitempty"`
	BalanceChanges []BalanceChange `json:"balance_changes,omitempty"`
}

// Selector returns the 4-byte function selector of the call input.
func (c *Call) Selector() ([4]byte, bool) {
	var sel [4]byte
	if len(c.Input) < 4 {
		return sel, false
	}
	copy(sel[:], c.Input[:4])
	return sel, true
}

// StorageChange is a single storage slot write observed during a call.
type StorageChange struct {
	Address  common.Address `json:"address"`
	Key      common.Hash    `json:"key"`
	OldValue common.Hash    `json:"old_value"`
	NewValue common.Hash    `json:"new_value"`
	Ordinal  uint64         `json:"ordinal"`
}

// CodeChange is a code replacement observed during a call.
type CodeChange struct {
	Address common.Address `json:"address"`
	OldCode hexutil.Bytes  `json:"old_code,omitempty"`
	NewCode hexutil.Bytes  `json:"new_code,omitempty"`
	Ordinal uint64         `json:"ordinal"`
}

// BalanceChange is a native balance change observed during a call.
type BalanceChange struct {
	Address  common.Address `json:"address"`
	OldValue hexutil.Bytes  `json:"old_value,omitempty"`
	NewValue hexutil.Bytes  `json:"new_value,omitempty"`
	Ordinal  uint64         `json:"ordinal"`
}

// Log is a receipt log. Ordinal is the host-assigned position within the block.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	Index   uint32         `json:"index"`
	Ordinal uint64         `json:"ordinal"`
}

// Topic0 returns the event signature topic.
func (l *Log) Topic0() (common.Hash, bool) {
	if len(l.Topics) == 0 {
		return common.Hash{}, false
	}
	return l.Topics[0], true
}

// AccountCreation is a contract account created by the transaction.
type AccountCreation struct {
	Account common.Address `json:"account"`
	Ordinal uint64         `json:"ordinal"`
}

// TxRef identifies the transaction a record originated from.
type TxRef struct {
	Hash  common.Hash    `json:"hash"`
	Index uint32         `json:"index"`
	From  common.Address `json:"from"`
}
