package params

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/model"
)

// Component builds the protocol component described by the seeded pool.
// Malformed addresses fail with model.ErrAddressFormat.
func (pp *PoolParams) Component(protocolType model.ProtocolType) (model.ProtocolComponent, error) {
	primary, err := parseRequired(pp.Address)
	if err != nil {
		return model.ProtocolComponent{}, fmt.Errorf("pool_params[%d] address: %w", pp.Index, err)
	}

	tokens, err := parseAddresses(pp.Tokens)
	if err != nil {
		return model.ProtocolComponent{}, fmt.Errorf("pool_params[%d] tokens: %w", pp.Index, err)
	}
	if len(tokens) == 0 {
		return model.ProtocolComponent{}, fmt.Errorf("%w: pool_params[%d] has no tokens", model.ErrConfig, pp.Index)
	}

	contracts := []common.Address{primary}
	extra, err := parseAddresses(pp.Contracts)
	if err != nil {
		return model.ProtocolComponent{}, fmt.Errorf("pool_params[%d] contracts: %w", pp.Index, err)
	}
	for _, c := range extra {
		if c != primary {
			contracts = append(contracts, c)
		}
	}

	static := make([]model.Attribute, 0, len(pp.StaticAttributeKeys))
	for i, key := range pp.StaticAttributeKeys {
		static = append(static, model.Attribute{
			Name:       key,
			Value:      []byte(pp.StaticAttributeVals[i]),
			ChangeType: model.ChangeTypeCreation,
		})
	}

	return model.ProtocolComponent{
		ID:               model.ComponentIDFromAddress(primary),
		Tokens:           tokens,
		Contracts:        contracts,
		StaticAttributes: static,
		ChangeType:       model.ChangeTypeCreation,
		ProtocolType:     protocolType,
	}, nil
}

// Attributes returns the mutable attributes seeded for the pool.
func (pp *PoolParams) Attributes() []model.Attribute {
	out := make([]model.Attribute, 0, len(pp.AttributeKeys))
	for i, key := range pp.AttributeKeys {
		out = append(out, model.Attribute{
			Name:       key,
			Value:      []byte(pp.AttributeVals[i]),
			ChangeType: model.ChangeTypeCreation,
		})
	}
	return out
}

func parseRequired(input string) (common.Address, error) {
	addr, err := model.ParseAddress(input)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: empty address", model.ErrAddressFormat)
	}
	return addr, nil
}

func parseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		addr, err := parseRequired(input)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
