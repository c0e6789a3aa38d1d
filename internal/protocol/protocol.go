// Package protocol defines what a protocol family contributes to the
// pipeline: component discovery, event shapes and delta rules.
package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/multierr"

	"protocolScope/internal/dex"
	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
)

// Protocol is one tracked protocol family.
type Protocol interface {
	Name() string
	// Roles lists the protocol_params fields the family accepts.
	Roles() []string
	// SeededType is the type tag of pools seeded through pool_params.
	SeededType() model.ProtocolType
	// Discover returns the components deployed by tx, in creation order.
	// The error aggregates per-component failures; components that were
	// built are returned alongside it.
	Discover(p *params.Params, tx *model.Transaction) ([]model.ProtocolComponent, error)
	Decoder() *dex.EventDecoder
	// Relevant is the cheap pre-decode filter on a log.
	Relevant(p *params.Params, log *model.Log, reader index.ComponentReader) bool
	// Deltas maps a decoded event to its balance legs, in emission order.
	Deltas(p *params.Params, tx *model.Transaction, event dex.Event, reader index.ComponentReader) []Leg
	// StartBlock is the first height at which balances of the component
	// are aggregated.
	StartBlock(p *params.Params, componentID string) uint64
}

// Leg is one signed balance change of a component.
type Leg struct {
	Token       common.Address
	ComponentID string
	Delta       *big.Int
}

// Inflow is a positive leg.
func Inflow(token common.Address, componentID string, amount *uint256.Int) Leg {
	return Leg{Token: token, ComponentID: componentID, Delta: amount.ToBig()}
}

// Outflow is a negative leg.
func Outflow(token common.Address, componentID string, amount *uint256.Int) Leg {
	return Leg{Token: token, ComponentID: componentID, Delta: new(big.Int).Neg(amount.ToBig())}
}

// SeededComponents builds the components seeded for tx through pool_params.
// A malformed entry fails only its own component.
func SeededComponents(seeded map[string][]params.PoolParams, tx *model.Transaction, protocolType model.ProtocolType) ([]model.ProtocolComponent, error) {
	pools, ok := seeded[txHashKey(tx.Hash)]
	if !ok {
		return nil, nil
	}
	var (
		out  []model.ProtocolComponent
		errs error
	)
	for i := range pools {
		component, err := pools[i].Component(protocolType)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, component)
	}
	return out, errs
}

// FirstCreation returns the first account created by tx.
func FirstCreation(tx *model.Transaction) (common.Address, bool) {
	if len(tx.AccountCreations) == 0 {
		return common.Address{}, false
	}
	return tx.AccountCreations[0].Account, true
}

func txHashKey(hash common.Hash) string {
	return common.Bytes2Hex(hash.Bytes())
}
