package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChangeType describes how an entity changed in a transaction.
type ChangeType string

const (
	ChangeTypeUpdate   ChangeType = "update"
	ChangeTypeCreation ChangeType = "creation"
	ChangeTypeDeletion ChangeType = "deletion"
)

// FinancialType is the economic kind of a component.
type FinancialType string

const (
	FinancialTypeSwap     FinancialType = "swap"
	FinancialTypePsm      FinancialType = "psm"
	FinancialTypeDebt     FinancialType = "debt"
	FinancialTypeLeverage FinancialType = "leverage"
	FinancialTypeLend     FinancialType = "lend"
	FinancialTypeStake    FinancialType = "stake"
)

// ImplementationType tells consumers how to simulate the component.
type ImplementationType string

const (
	ImplementationTypeVm     ImplementationType = "vm"
	ImplementationTypeNative ImplementationType = "native"
)

// ProtocolType tags every component of a protocol family.
type ProtocolType struct {
	Name               string             `json:"name"`
	FinancialType      FinancialType      `json:"financial_type"`
	ImplementationType ImplementationType `json:"implementation_type"`
	AttributeSchema    []string           `json:"attribute_schema"`
}

// Attribute is a named opaque value attached to a component.
type Attribute struct {
	Name       string        `json:"name"`
	Value      hexutil.Bytes `json:"value"`
	ChangeType ChangeType    `json:"change_type"`
}

// ProtocolComponent is a single pool or vault. It is created once and never
// mutated afterwards.
type ProtocolComponent struct {
	ID               string           `json:"id"`
	Tokens           []common.Address `json:"tokens"`
	Contracts        []common.Address `json:"contracts"`
	StaticAttributes []Attribute      `json:"static_attributes"`
	ChangeType       ChangeType       `json:"change_type"`
	ProtocolType     ProtocolType     `json:"protocol_type"`
}

// PrimaryAddress returns the contract that defines the component state.
func (c *ProtocolComponent) PrimaryAddress() (common.Address, error) {
	if len(c.Contracts) > 0 {
		return c.Contracts[0], nil
	}
	return AddressFromComponentID(c.ID)
}

// Validate checks the component invariants: non-empty tokens and an id that
// matches the primary contract.
func (c *ProtocolComponent) Validate() error {
	if len(c.Tokens) == 0 {
		return fmt.Errorf("%w: component %s has no tokens", ErrInvariantViolation, c.ID)
	}
	if len(c.Contracts) == 0 {
		return fmt.Errorf("%w: component %s has no contracts", ErrInvariantViolation, c.ID)
	}
	if want := ComponentIDFromAddress(c.Contracts[0]); len(c.ID) < 42 || c.ID[:42] != want {
		return fmt.Errorf("%w: component id %s does not match primary contract %s", ErrInvariantViolation, c.ID, want)
	}
	return nil
}

// ComponentIDFromAddress renders the canonical id for a primary address.
func ComponentIDFromAddress(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// AddressFromComponentID decodes the primary address from the first 42
// characters of a component id.
func AddressFromComponentID(id string) (common.Address, error) {
	if len(id) < 42 || !strings.HasPrefix(id, "0x") {
		return common.Address{}, fmt.Errorf("%w: component id %q", ErrAddressFormat, id)
	}
	raw, err := hexutil.Decode(id[:42])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: component id %q: %v", ErrAddressFormat, id, err)
	}
	return common.BytesToAddress(raw), nil
}

// ParseAddress decodes a 20-byte hex address with or without the 0x prefix.
// An empty string or a bare "0x" yields the zero address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "0x" {
		return common.Address{}, nil
	}
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		input = "0x" + input
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrAddressFormat, input)
	}
	return common.HexToAddress(input), nil
}
