// Package pipeline runs the five block stages: component discovery,
// component indexing, delta extraction, balance aggregation and change
// assembly.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"protocolScope/internal/aggregate"
	"protocolScope/internal/index"
	"protocolScope/internal/metrics"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
	"protocolScope/internal/protocol"
)

// Pipeline processes blocks for one protocol family against one index.
type Pipeline struct {
	protocol protocol.Protocol
	params   *params.Params
	index    *index.Index
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Result carries every stage output of a committed block.
type Result struct {
	Components   model.BlockTransactionProtocolComponents
	Deltas       model.BlockBalanceDeltas
	Transcript   []aggregate.BalanceStoreDelta
	Changes      model.BlockChanges
	DecodeErrors []model.DecodeError
}

// New builds a pipeline. logger and m may be nil.
func New(proto protocol.Protocol, cfg *params.Params, ix *index.Index, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		protocol: proto,
		params:   cfg,
		index:    ix,
		logger:   logger,
		metrics:  m,
	}
}

// ProcessBlock runs every stage for block inside one index transaction.
// The transaction is committed only when all stages succeed.
func (p *Pipeline) ProcessBlock(ctx context.Context, block *model.Block) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	name := p.protocol.Name()

	result, err := p.process(block)
	if err != nil {
		p.metrics.BlockFailed(name)
		p.logger.Error("block aborted",
			zap.Uint64("block", block.Number),
			zap.String("hash", block.Hash.Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	p.metrics.BlockProcessed(name, time.Since(started))
	p.metrics.ComponentsCreated(name, result.Components.Len())
	p.metrics.DeltasEmitted(name, len(result.Deltas.BalanceDeltas))
	p.logger.Debug("block processed",
		zap.Uint64("block", block.Number),
		zap.Int("components", result.Components.Len()),
		zap.Int("deltas", len(result.Deltas.BalanceDeltas)),
		zap.Int("changes", len(result.Changes.Changes)),
	)
	return result, nil
}

func (p *Pipeline) process(block *model.Block) (*Result, error) {
	tx, err := p.index.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	result := &Result{}
	var decodeErrors []model.DecodeError

	components, err := p.MapComponents(p.params, block, &decodeErrors)
	if err != nil {
		return nil, fmt.Errorf("map components: %w", err)
	}
	if err := StoreComponents(components, tx.ComponentWriter()); err != nil {
		return nil, fmt.Errorf("store components: %w", err)
	}

	deltas := p.MapRelativeBalances(p.params, block, tx.ComponentReader(), &decodeErrors)

	transcript, err := p.StoreBalances(p.params, block, deltas, tx.BalanceWriter())
	if err != nil {
		return nil, fmt.Errorf("store balances: %w", err)
	}

	changes, err := p.MapProtocolChanges(p.params, block, components, deltas, tx.ComponentReader(), transcript)
	if err != nil {
		return nil, fmt.Errorf("map protocol changes: %w", err)
	}

	if err := tx.Err(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Components = components
	result.Deltas = deltas
	result.Transcript = transcript
	result.Changes = changes
	result.DecodeErrors = decodeErrors
	return result, nil
}
