package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/model"
)

// FactoryDeploy is a decoded pool deployment call.
type FactoryDeploy struct {
	Method string
	Name   string
	Symbol string
	Coins  []common.Address
}

// CallDecoder decodes factory calls by selector.
type CallDecoder struct {
	contractABI abi.ABI
}

// NewCallDecoder builds a decoder for the functions of contractABI.
func NewCallDecoder(contractABI abi.ABI) *CallDecoder {
	return &CallDecoder{contractABI: contractABI}
}

// CanDecode reports whether the call selector belongs to the ABI.
func (d *CallDecoder) CanDecode(call model.Call) bool {
	sel, ok := call.Selector()
	if !ok {
		return false
	}
	_, err := d.contractABI.MethodById(sel[:])
	return err == nil
}

// DecodeDeploy decodes a deploy call and returns its non-zero coins in order.
func (d *CallDecoder) DecodeDeploy(call model.Call) (FactoryDeploy, error) {
	sel, ok := call.Selector()
	if !ok {
		return FactoryDeploy{}, fmt.Errorf("%w: call input shorter than selector", model.ErrDecode)
	}
	method, err := d.contractABI.MethodById(sel[:])
	if err != nil {
		return FactoryDeploy{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	values := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(values, call.Input[4:]); err != nil {
		return FactoryDeploy{}, fmt.Errorf("%w: unpack %s: %v", model.ErrDecode, method.Name, err)
	}

	coins, err := coinList(values["_coins"])
	if err != nil {
		return FactoryDeploy{}, fmt.Errorf("%w: %s: %v", model.ErrDecode, method.Name, err)
	}
	if len(coins) == 0 {
		return FactoryDeploy{}, fmt.Errorf("%w: %s: no coins", model.ErrDecode, method.Name)
	}

	name, _ := values["_name"].(string)
	symbol, _ := values["_symbol"].(string)
	return FactoryDeploy{
		Method: method.Name,
		Name:   name,
		Symbol: symbol,
		Coins:  coins,
	}, nil
}

func coinList(v interface{}) ([]common.Address, error) {
	var raw []common.Address
	switch typed := v.(type) {
	case []common.Address:
		raw = typed
	case [2]common.Address:
		raw = typed[:]
	case [3]common.Address:
		raw = typed[:]
	case [4]common.Address:
		raw = typed[:]
	default:
		return nil, fmt.Errorf("unexpected coins type %T", v)
	}
	out := make([]common.Address, 0, len(raw))
	for _, c := range raw {
		if c == (common.Address{}) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
