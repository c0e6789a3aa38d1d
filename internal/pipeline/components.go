package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
	"protocolScope/internal/protocol"
)

// MapComponents finds the components created in block, grouped by
// transaction in index order. Address format and decode failures drop only
// the offending component; config errors abort the block.
func (p *Pipeline) MapComponents(cfg *params.Params, block *model.Block, decodeErrors *[]model.DecodeError) (model.BlockTransactionProtocolComponents, error) {
	var out model.BlockTransactionProtocolComponents
	seededByTx := cfg.ExplicitByTx()
	for _, tx := range sortedTransactions(block) {
		discovered, err := p.protocol.Discover(cfg, tx)
		if ferr := p.componentErrors(block, tx, err, decodeErrors); ferr != nil {
			return model.BlockTransactionProtocolComponents{}, ferr
		}
		seeded, err := protocol.SeededComponents(seededByTx, tx, p.protocol.SeededType())
		if ferr := p.componentErrors(block, tx, err, decodeErrors); ferr != nil {
			return model.BlockTransactionProtocolComponents{}, ferr
		}

		components := append(discovered, seeded...)
		if len(components) == 0 {
			continue
		}
		for i := range components {
			if err := components[i].Validate(); err != nil {
				return model.BlockTransactionProtocolComponents{}, err
			}
		}
		out.TxComponents = append(out.TxComponents, model.TransactionProtocolComponents{
			Tx:         tx.Ref(),
			Components: components,
		})
	}
	return out, nil
}

func (p *Pipeline) componentErrors(block *model.Block, tx *model.Transaction, err error, decodeErrors *[]model.DecodeError) error {
	if err == nil {
		return nil
	}
	for _, e := range multierr.Errors(err) {
		if model.IsFatal(e) {
			return e
		}
		p.logger.Warn("component skipped",
			zap.Uint64("block", block.Number),
			zap.String("tx", tx.Hash.Hex()),
			zap.Error(e),
		)
		if errors.Is(e, model.ErrDecode) {
			p.metrics.DecodeFailure(p.protocol.Name())
		}
		if decodeErrors != nil {
			*decodeErrors = append(*decodeErrors, model.DecodeError{
				BlockNumber: block.Number,
				BlockHash:   block.Hash.Hex(),
				TxHash:      tx.Hash.Hex(),
				Stage:       "map_components",
				Error:       e.Error(),
			})
		}
	}
	return nil
}

// StoreComponents records pool:<address> → id for every component, in
// transaction order. An id seen twice in the block is an invariant violation.
func StoreComponents(components model.BlockTransactionProtocolComponents, writer index.ComponentWriter) error {
	seen := make(map[string]struct{}, components.Len())
	for _, txc := range components.TxComponents {
		for _, c := range txc.Components {
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: component %s created twice in block (tx %s)", model.ErrInvariantViolation, c.ID, txc.Tx.Hash.Hex())
			}
			seen[c.ID] = struct{}{}

			key, err := index.PoolKeyFromID(c.ID)
			if err != nil {
				return fmt.Errorf("%w: %v", model.ErrInvariantViolation, err)
			}
			if err := writer.SetOnce(key, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedTransactions(block *model.Block) []*model.Transaction {
	out := make([]*model.Transaction, len(block.Transactions))
	for i := range block.Transactions {
		out[i] = &block.Transactions[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
