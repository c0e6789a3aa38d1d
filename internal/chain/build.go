package chain

import (
	"bytes"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"protocolScope/internal/model"
)

// buildBlock assembles the host block. Ordinals are assigned in execution
// order across the whole block: call entry (and any account it creates),
// nested calls, call exit, then the receipt logs and state changes of the
// transaction.
func buildBlock(block *types.Block, receipts []*types.Receipt, calls []callFrame, diffs []stateDiff) *model.Block {
	out := &model.Block{
		Number:       block.NumberU64(),
		Hash:         block.Hash(),
		ParentHash:   block.ParentHash(),
		Timestamp:    block.Time(),
		Transactions: make([]model.Transaction, 0, len(block.Transactions())),
	}

	var ordinal uint64
	for i, tx := range block.Transactions() {
		receipt := receipts[i]
		from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		if err != nil {
			from = common.Address{}
		}
		mtx := model.Transaction{
			Hash:   tx.Hash(),
			Index:  uint32(i),
			From:   from,
			To:     tx.To(),
			Input:  tx.Data(),
			Status: receipt.Status,
		}

		flattenCalls(&mtx, calls[i], 0, 0, false, &ordinal)

		for _, log := range receipt.Logs {
			ordinal++
			mtx.Logs = append(mtx.Logs, model.Log{
				Address: log.Address,
				Topics:  append([]common.Hash(nil), log.Topics...),
				Data:    append([]byte(nil), log.Data...),
				Index:   uint32(log.Index),
				Ordinal: ordinal,
			})
		}

		if len(mtx.Calls) > 0 && receipt.Status == types.ReceiptStatusSuccessful {
			applyStateDiff(&mtx.Calls[0], diffs[i], &ordinal)
		}
		out.Transactions = append(out.Transactions, mtx)
	}
	return out
}

func flattenCalls(tx *model.Transaction, frame callFrame, depth uint32, parent uint32, reverted bool, ordinal *uint64) {
	reverted = reverted || frame.Error != ""
	index := uint32(len(tx.Calls))
	*ordinal++

	var address common.Address
	if frame.To != nil {
		address = *frame.To
	}
	tx.Calls = append(tx.Calls, model.Call{
		Index:         index,
		ParentIndex:   parent,
		Depth:         depth,
		CallType:      strings.ToUpper(frame.Type),
		Caller:        frame.From,
		Address:       address,
		Input:         frame.Input,
		ReturnData:    frame.Output,
		BeginOrdinal:  *ordinal,
		StateReverted: reverted,
	})

	if isCreate(frame.Type) && !reverted && frame.To != nil {
		tx.AccountCreations = append(tx.AccountCreations, model.AccountCreation{
			Account: address,
			Ordinal: *ordinal,
		})
	}

	for _, child := range frame.Calls {
		flattenCalls(tx, child, depth+1, index, reverted, ordinal)
	}

	*ordinal++
	tx.Calls[index].EndOrdinal = *ordinal
}

func isCreate(callType string) bool {
	switch strings.ToUpper(callType) {
	case "CREATE", "CREATE2":
		return true
	}
	return false
}

// applyStateDiff attaches the transaction's storage, code and balance
// changes to its root call.
func applyStateDiff(root *model.Call, diff stateDiff, ordinal *uint64) {
	addrs := make([]common.Address, 0, len(diff.Post))
	for addr := range diff.Post {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, addr := range addrs {
		post := diff.Post[addr]
		pre := diff.Pre[addr]

		keys := make(map[common.Hash]struct{}, len(post.Storage)+len(pre.Storage))
		for k := range post.Storage {
			keys[k] = struct{}{}
		}
		for k := range pre.Storage {
			keys[k] = struct{}{}
		}
		sorted := make([]common.Hash, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

		for _, k := range sorted {
			// Slots cleared by the transaction are absent from post.
			newValue := post.Storage[k]
			oldValue := pre.Storage[k]
			if newValue == oldValue {
				continue
			}
			*ordinal++
			root.StorageChanges = append(root.StorageChanges, model.StorageChange{
				Address:  addr,
				Key:      k,
				OldValue: oldValue,
				NewValue: newValue,
				Ordinal:  *ordinal,
			})
		}

		if len(post.Code) > 0 && !bytes.Equal(post.Code, pre.Code) {
			*ordinal++
			root.CodeChanges = append(root.CodeChanges, model.CodeChange{
				Address: addr,
				OldCode: pre.Code,
				NewCode: post.Code,
				Ordinal: *ordinal,
			})
		}

		if post.Balance != nil {
			*ordinal++
			change := model.BalanceChange{
				Address:  addr,
				NewValue: post.Balance.ToInt().Bytes(),
				Ordinal:  *ordinal,
			}
			if pre.Balance != nil {
				change.OldValue = pre.Balance.ToInt().Bytes()
			}
			root.BalanceChanges = append(root.BalanceChanges, change)
		}
	}
}
