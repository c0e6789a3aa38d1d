package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"protocolScope/internal/model"
)

// Shape binds an ABI event to the Event variant it decodes into.
type Shape struct {
	Event abi.Event
	Kind  EventKind
	build func(values map[string]interface{}) (Event, error)
}

// EventDecoder decodes logs against an ordered list of shapes. The first
// shape whose topic0 and indexed arity match the log wins.
type EventDecoder struct {
	shapes  []Shape
	byTopic map[common.Hash][]int
}

// NewEventDecoder builds a decoder over shapes in declaration order.
func NewEventDecoder(shapes ...Shape) *EventDecoder {
	d := &EventDecoder{
		shapes:  shapes,
		byTopic: make(map[common.Hash][]int),
	}
	for i, s := range shapes {
		d.byTopic[s.Event.ID] = append(d.byTopic[s.Event.ID], i)
	}
	return d
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.byTopic[topic0]
	return ok
}

// Decode returns the decoded event. ok is false when no shape matches the
// log; err is set when a shape matched but its payload is malformed.
func (d *EventDecoder) Decode(log model.Log) (Event, bool, error) {
	topic0, ok := log.Topic0()
	if !ok {
		return Event{}, false, nil
	}
	for _, i := range d.byTopic[topic0] {
		shape := d.shapes[i]
		if len(log.Topics) != len(indexedArguments(shape.Event.Inputs))+1 {
			continue
		}
		values, err := unpackLog(shape.Event, log)
		if err != nil {
			return Event{}, true, fmt.Errorf("%w: %s: %v", model.ErrDecode, shape.Event.Name, err)
		}
		event, err := shape.build(values)
		if err != nil {
			return Event{}, true, fmt.Errorf("%w: %s: %v", model.ErrDecode, shape.Event.Name, err)
		}
		event.Kind = shape.Kind
		event.Name = shape.Event.Name
		event.Address = log.Address
		return event, true, nil
	}
	return Event{}, false, nil
}

func unpackLog(event abi.Event, log model.Log) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	if err := abi.ParseTopicsIntoMap(values, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	return values, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asAddress(values map[string]interface{}, name string) (common.Address, error) {
	v, ok := values[name]
	if !ok {
		return common.Address{}, fmt.Errorf("missing %s", name)
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", name, v)
	}
	return addr, nil
}

func asUint256(values map[string]interface{}, name string) (*uint256.Int, error) {
	v, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("missing %s", name)
	}
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", name, v)
	}
	out, err := model.ToUint256(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
