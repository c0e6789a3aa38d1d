package aggregate

import (
	"fmt"
	"sort"

	"protocolScope/internal/model"
	"protocolScope/internal/storage/postgres"
)

// Accumulator folds consecutive BlockChanges into the latest row per key.
// Blocks must be added in ascending order.
type Accumulator struct {
	Protocol   string
	FirstBlock uint64
	LastBlock  uint64
	Blocks     int

	components map[string]postgres.ComponentRow
	balances   map[string]postgres.BalanceRow
	attributes map[string]postgres.AttributeRow
	slots      map[string]postgres.SlotRow
}

func NewAccumulator(protocol string) *Accumulator {
	acc := &Accumulator{Protocol: protocol}
	acc.Reset()
	return acc
}

// Reset drops every pending row.
func (a *Accumulator) Reset() {
	a.FirstBlock = 0
	a.LastBlock = 0
	a.Blocks = 0
	a.components = make(map[string]postgres.ComponentRow)
	a.balances = make(map[string]postgres.BalanceRow)
	a.attributes = make(map[string]postgres.AttributeRow)
	a.slots = make(map[string]postgres.SlotRow)
}

// AddBlock applies one block. Later transactions overwrite earlier ones.
func (a *Accumulator) AddBlock(block model.BlockChanges) error {
	number := block.Block.Number
	if a.Blocks > 0 && number < a.LastBlock {
		return fmt.Errorf("%w: block %d after %d", model.ErrRange, number, a.LastBlock)
	}
	if a.Blocks == 0 {
		a.FirstBlock = number
	}
	a.LastBlock = number
	a.Blocks++

	for _, tx := range block.Changes {
		txHash := tx.Tx.Hash.Hex()
		for _, component := range tx.ComponentChanges {
			if _, ok := a.components[component.ID]; ok {
				continue
			}
			a.components[component.ID] = componentRow(a.Protocol, component, number, txHash)
		}
		for _, entity := range tx.EntityChanges {
			for _, attr := range entity.Attributes {
				a.attributes[entity.ComponentID+"/"+attr.Name] = postgres.AttributeRow{
					ComponentID: entity.ComponentID,
					Name:        attr.Name,
					Value:       attr.Value,
					BlockNumber: number,
				}
			}
		}
		for _, balance := range tx.BalanceChanges {
			token := addressText(balance.Token)
			a.balances[balance.ComponentID+"/"+token] = postgres.BalanceRow{
				ComponentID: balance.ComponentID,
				Token:       token,
				Balance:     balanceText(balance.Balance),
				BlockNumber: number,
				TxHash:      txHash,
			}
		}
		for _, contract := range tx.ContractChanges {
			address := addressText(contract.Address)
			for _, slot := range contract.Slots {
				a.slots[address+"/"+slot.Slot.String()] = postgres.SlotRow{
					Address:     address,
					Slot:        slot.Slot,
					Value:       slot.Value,
					BlockNumber: number,
				}
			}
		}
	}
	return nil
}

// Pending reports whether any row awaits a flush.
func (a *Accumulator) Pending() bool {
	return len(a.components)+len(a.balances)+len(a.attributes)+len(a.slots) > 0
}

// Components returns the pending components ordered by id.
func (a *Accumulator) Components() []postgres.ComponentRow {
	return sortedRows(a.components)
}

// Balances returns the pending balances ordered by component and token.
func (a *Accumulator) Balances() []postgres.BalanceRow {
	return sortedRows(a.balances)
}

// Attributes returns the pending attributes ordered by component and name.
func (a *Accumulator) Attributes() []postgres.AttributeRow {
	return sortedRows(a.attributes)
}

// Slots returns the pending slots ordered by address and slot.
func (a *Accumulator) Slots() []postgres.SlotRow {
	return sortedRows(a.slots)
}

func sortedRows[T any](rows map[string]T) []T {
	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		out = append(out, rows[key])
	}
	return out
}
