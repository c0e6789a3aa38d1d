package pipeline

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/model"
)

// txBuilder accumulates the changes of one transaction.
type txBuilder struct {
	tx         model.TxRef
	components []model.ProtocolComponent
	entities   map[string][]model.Attribute
	contracts  map[common.Address]model.ContractChange
	balances   map[string]map[common.Address]model.ComponentBalance
}

func newTxBuilder(tx model.TxRef) *txBuilder {
	return &txBuilder{
		tx:        tx,
		entities:  make(map[string][]model.Attribute),
		contracts: make(map[common.Address]model.ContractChange),
		balances:  make(map[string]map[common.Address]model.ComponentBalance),
	}
}

func (b *txBuilder) addComponent(c model.ProtocolComponent) {
	b.components = append(b.components, c)
}

// setAttribute adds attr to the component's entity change, replacing an
// attribute with the same name.
func (b *txBuilder) setAttribute(componentID string, attr model.Attribute) {
	attrs := b.entities[componentID]
	for i := range attrs {
		if attrs[i].Name == attr.Name {
			attrs[i] = attr
			return
		}
	}
	b.entities[componentID] = append(attrs, attr)
}

// markUpdated flags the component so consumers re-read its storage. A
// marker set at creation is kept.
func (b *txBuilder) markUpdated(componentID string) {
	for _, attr := range b.entities[componentID] {
		if attr.Name == attrUpdateMarker {
			return
		}
	}
	b.setAttribute(componentID, model.Attribute{
		Name:       attrUpdateMarker,
		Value:      updateMarker,
		ChangeType: model.ChangeTypeUpdate,
	})
}

func (b *txBuilder) addBalance(bal model.ComponentBalance) {
	byToken, ok := b.balances[bal.ComponentID]
	if !ok {
		byToken = make(map[common.Address]model.ComponentBalance)
		b.balances[bal.ComponentID] = byToken
	}
	byToken[bal.Token] = bal
}

func (b *txBuilder) build() model.TransactionChanges {
	out := model.TransactionChanges{
		Tx:               b.tx,
		ContractChanges:  []model.ContractChange{},
		EntityChanges:    []model.EntityChanges{},
		ComponentChanges: append([]model.ProtocolComponent{}, b.components...),
		BalanceChanges:   []model.ComponentBalance{},
	}

	addrs := make([]common.Address, 0, len(b.contracts))
	for addr := range b.contracts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, addr := range addrs {
		out.ContractChanges = append(out.ContractChanges, b.contracts[addr])
	}

	for _, id := range sortedKeys(b.entities) {
		out.EntityChanges = append(out.EntityChanges, model.EntityChanges{
			ComponentID: id,
			Attributes:  b.entities[id],
		})
	}

	for _, id := range sortedKeys(b.balances) {
		byToken := b.balances[id]
		tokens := make([]common.Address, 0, len(byToken))
		for token := range byToken {
			tokens = append(tokens, token)
		}
		sort.Slice(tokens, func(i, j int) bool { return bytes.Compare(tokens[i][:], tokens[j][:]) < 0 })
		for _, token := range tokens {
			out.BalanceChanges = append(out.BalanceChanges, byToken[token])
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
