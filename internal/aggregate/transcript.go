package aggregate

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/model"
)

// BalanceStoreDelta is one applied balance addition: the key written and the
// values before and after.
type BalanceStoreDelta struct {
	Ordinal     uint64         `json:"ord"`
	Tx          model.TxRef    `json:"tx"`
	Token       common.Address `json:"token"`
	ComponentID []byte         `json:"component_id"`
	Key         string         `json:"key"`
	OldValue    *big.Int       `json:"old_value"`
	NewValue    *big.Int       `json:"new_value"`
}

// TxBalances are the absolute balances left by one transaction.
type TxBalances struct {
	Tx       model.TxRef
	Balances []model.ComponentBalance
}

type balanceKey struct {
	component string
	token     common.Address
}

// BalancesByTx groups the transcript by transaction and keeps the last value
// written for each (component, token). Transactions come out in ascending
// index order, balances sorted by component then token.
func BalancesByTx(transcript []BalanceStoreDelta) []TxBalances {
	type group struct {
		tx     model.TxRef
		values map[balanceKey]*big.Int
	}
	groups := make(map[uint32]*group)
	for _, d := range transcript {
		g, ok := groups[d.Tx.Index]
		if !ok {
			g = &group{tx: d.Tx, values: make(map[balanceKey]*big.Int)}
			groups[d.Tx.Index] = g
		}
		g.values[balanceKey{component: string(d.ComponentID), token: d.Token}] = d.NewValue
	}

	indices := make([]uint32, 0, len(groups))
	for idx := range groups {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]TxBalances, 0, len(indices))
	for _, idx := range indices {
		g := groups[idx]
		keys := make([]balanceKey, 0, len(g.values))
		for k := range g.values {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].component != keys[j].component {
				return keys[i].component < keys[j].component
			}
			return bytes.Compare(keys[i].token.Bytes(), keys[j].token.Bytes()) < 0
		})

		balances := make([]model.ComponentBalance, 0, len(keys))
		for _, k := range keys {
			balances = append(balances, model.ComponentBalance{
				Token:       k.token,
				Balance:     model.EncodeSignedBigInt(g.values[k]),
				ComponentID: k.component,
			})
		}
		out = append(out, TxBalances{Tx: g.tx, Balances: balances})
	}
	return out
}
