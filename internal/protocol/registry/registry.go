// Package registry resolves protocol families by name.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"protocolScope/internal/model"
	"protocolScope/internal/protocol"
	"protocolScope/internal/protocol/curve"
	"protocolScope/internal/protocol/sky"
)

var constructors = map[string]func(*zap.Logger) (protocol.Protocol, error){
	sky.Name: func(logger *zap.Logger) (protocol.Protocol, error) {
		return sky.New(logger)
	},
	curve.Name: func(logger *zap.Logger) (protocol.Protocol, error) {
		return curve.New(logger)
	},
}

// Names lists the known protocol families.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup builds the protocol family called name.
func Lookup(name string, logger *zap.Logger) (protocol.Protocol, error) {
	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown protocol %q (known: %v)", model.ErrConfig, name, Names())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := build(logger.Named(name))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return p, nil
}
