package pipeline

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/aggregate"
	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
)

const (
	attrBalanceOwner = "balance_owner"
	attrUpdateMarker = "update_marker"
)

var updateMarker = []byte{0x01}

// MapProtocolChanges joins the block's components, balances and watched
// contract state into BlockChanges, one bundle per transaction in index
// order. Bundles with nothing in them are dropped.
func (p *Pipeline) MapProtocolChanges(
	cfg *params.Params,
	block *model.Block,
	components model.BlockTransactionProtocolComponents,
	_ model.BlockBalanceDeltas,
	reader index.ComponentReader,
	transcript []aggregate.BalanceStoreDelta,
) (model.BlockChanges, error) {
	builders := make(map[uint32]*txBuilder)
	builderFor := func(tx model.TxRef) *txBuilder {
		b, ok := builders[tx.Index]
		if !ok {
			b = newTxBuilder(tx)
			builders[tx.Index] = b
		}
		return b
	}

	seededAttrs := seededAttributes(cfg.ExplicitByTx())
	for _, txc := range components.TxComponents {
		b := builderFor(txc.Tx)
		for _, c := range txc.Components {
			owner, err := c.PrimaryAddress()
			if err != nil {
				return model.BlockChanges{}, fmt.Errorf("%w: %v", model.ErrInvariantViolation, err)
			}
			b.addComponent(c)
			b.setAttribute(c.ID, model.Attribute{Name: attrBalanceOwner, Value: owner.Bytes(), ChangeType: model.ChangeTypeCreation})
			b.setAttribute(c.ID, model.Attribute{Name: attrUpdateMarker, Value: updateMarker, ChangeType: model.ChangeTypeCreation})
			for _, attr := range seededAttrs[c.ID] {
				b.setAttribute(c.ID, attr)
			}
		}
	}

	for _, group := range aggregate.BalancesByTx(transcript) {
		b := builderFor(group.Tx)
		for _, bal := range group.Balances {
			b.addBalance(bal)
		}
	}

	for _, tx := range sortedTransactions(block) {
		changes := contractChanges(tx, reader)
		if len(changes) == 0 {
			continue
		}
		b := builderFor(tx.Ref())
		for _, cc := range changes {
			b.contracts[cc.Address] = cc
		}
	}

	for _, b := range builders {
		for addr := range b.contracts {
			id, ok := reader.ComponentID(addr)
			if !ok {
				return model.BlockChanges{}, fmt.Errorf("%w: no component for changed contract %s", model.ErrInvariantViolation, addr.Hex())
			}
			b.markUpdated(id)
		}
	}

	indices := make([]uint32, 0, len(builders))
	for idx := range builders {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := model.BlockChanges{Block: block.Ref(), Changes: []model.TransactionChanges{}}
	for _, idx := range indices {
		changes := builders[idx].build()
		if changes.IsEmpty() {
			continue
		}
		out.Changes = append(out.Changes, changes)
	}
	return out, nil
}

func seededAttributes(seeded map[string][]params.PoolParams) map[string][]model.Attribute {
	out := make(map[string][]model.Attribute)
	for _, pools := range seeded {
		for i := range pools {
			addr, err := model.ParseAddress(pools[i].Address)
			if err != nil {
				continue
			}
			if attrs := pools[i].Attributes(); len(attrs) > 0 {
				out[model.ComponentIDFromAddress(addr)] = attrs
			}
		}
	}
	return out
}

// contractChanges collects the final slot, code and native balance values
// of every indexed contract the transaction touched. Reverted frames are
// ignored.
func contractChanges(tx *model.Transaction, reader index.ComponentReader) []model.ContractChange {
	type pending struct {
		change    model.ContractChange
		slots     map[common.Hash]slotWrite
		codeOrd   uint64
		balOrdSet bool
		balOrd    uint64
	}
	created := make(map[common.Address]bool, len(tx.AccountCreations))
	for _, c := range tx.AccountCreations {
		created[c.Account] = true
	}
	tracked := make(map[common.Address]bool)
	isTracked := func(addr common.Address) bool {
		v, ok := tracked[addr]
		if !ok {
			v = reader.Contains(addr)
			tracked[addr] = v
		}
		return v
	}

	touched := make(map[common.Address]*pending)
	get := func(addr common.Address) *pending {
		pc, ok := touched[addr]
		if !ok {
			changeType := model.ChangeTypeUpdate
			if created[addr] {
				changeType = model.ChangeTypeCreation
			}
			pc = &pending{
				change: model.ContractChange{Address: addr, ChangeType: changeType},
				slots:  make(map[common.Hash]slotWrite),
			}
			touched[addr] = pc
		}
		return pc
	}

	for i := range tx.Calls {
		call := &tx.Calls[i]
		if call.StateReverted {
			continue
		}
		for _, sc := range call.StorageChanges {
			if !isTracked(sc.Address) {
				continue
			}
			pc := get(sc.Address)
			if prev, ok := pc.slots[sc.Key]; !ok || sc.Ordinal >= prev.ordinal {
				pc.slots[sc.Key] = slotWrite{value: sc.NewValue, ordinal: sc.Ordinal}
			}
		}
		for _, cc := range call.CodeChanges {
			if !isTracked(cc.Address) {
				continue
			}
			pc := get(cc.Address)
			if pc.change.Code == nil || cc.Ordinal >= pc.codeOrd {
				pc.change.Code = append([]byte(nil), cc.NewCode...)
				pc.codeOrd = cc.Ordinal
			}
		}
		for _, bc := range call.BalanceChanges {
			if !isTracked(bc.Address) {
				continue
			}
			pc := get(bc.Address)
			if !pc.balOrdSet || bc.Ordinal >= pc.balOrd {
				pc.change.Balance = append([]byte(nil), bc.NewValue...)
				pc.balOrd, pc.balOrdSet = bc.Ordinal, true
			}
		}
	}

	out := make([]model.ContractChange, 0, len(touched))
	for _, pc := range touched {
		keys := make([]common.Hash, 0, len(pc.slots))
		for k := range pc.slots {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
		pc.change.Slots = make([]model.ContractSlot, 0, len(keys))
		for _, k := range keys {
			pc.change.Slots = append(pc.change.Slots, model.ContractSlot{
				Slot:  k.Bytes(),
				Value: pc.slots[k].value.Bytes(),
			})
		}
		out = append(out, pc.change)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0 })
	return out
}

type slotWrite struct {
	value   common.Hash
	ordinal uint64
}
