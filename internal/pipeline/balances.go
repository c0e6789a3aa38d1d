package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"protocolScope/internal/aggregate"
	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
)

type blockLog struct {
	tx  *model.Transaction
	log *model.Log
}

// MapRelativeBalances turns the protocol events of block into signed
// balance deltas. Logs that fail to decode are logged and skipped.
func (p *Pipeline) MapRelativeBalances(cfg *params.Params, block *model.Block, reader index.ComponentReader, decodeErrors *[]model.DecodeError) model.BlockBalanceDeltas {
	var logs []blockLog
	for _, tx := range sortedTransactions(block) {
		for i := range tx.Logs {
			logs = append(logs, blockLog{tx: tx, log: &tx.Logs[i]})
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].log.Ordinal < logs[j].log.Ordinal })

	decoder := p.protocol.Decoder()
	out := model.BlockBalanceDeltas{}
	for _, entry := range logs {
		if !p.protocol.Relevant(cfg, entry.log, reader) {
			continue
		}
		event, matched, err := decoder.Decode(*entry.log)
		if err != nil {
			p.metrics.DecodeFailure(p.protocol.Name())
			p.logger.Debug("decode log",
				zap.String("tx", entry.tx.Hash.Hex()),
				zap.Uint32("log_index", entry.log.Index),
				zap.String("address", entry.log.Address.Hex()),
				zap.Error(err),
			)
			if decodeErrors != nil {
				*decodeErrors = append(*decodeErrors, model.DecodeError{
					BlockNumber: block.Number,
					BlockHash:   block.Hash.Hex(),
					TxHash:      entry.tx.Hash.Hex(),
					LogIndex:    uint64(entry.log.Index),
					Address:     entry.log.Address.Hex(),
					Stage:       "map_relative_balances",
					Error:       err.Error(),
				})
			}
			continue
		}
		if !matched {
			continue
		}

		for _, leg := range p.protocol.Deltas(cfg, entry.tx, event, reader) {
			out.BalanceDeltas = append(out.BalanceDeltas, model.BalanceDelta{
				Ordinal:     entry.log.Ordinal,
				Tx:          entry.tx.Ref(),
				Token:       leg.Token,
				ComponentID: []byte(leg.ComponentID),
				Delta:       leg.Delta,
			})
		}
	}
	return out
}

// StoreBalances adds every delta into the balance index at the block height
// and returns the ordered write transcript. Deltas of components whose start
// block lies above the block are dropped.
func (p *Pipeline) StoreBalances(cfg *params.Params, block *model.Block, deltas model.BlockBalanceDeltas, writer *index.BalanceWriter) ([]aggregate.BalanceStoreDelta, error) {
	order := make([]int, len(deltas.BalanceDeltas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return deltas.BalanceDeltas[order[i]].Ordinal < deltas.BalanceDeltas[order[j]].Ordinal
	})

	transcript := make([]aggregate.BalanceStoreDelta, 0, len(order))
	for _, pos := range order {
		d := deltas.BalanceDeltas[pos]
		if block.Number < p.protocol.StartBlock(cfg, string(d.ComponentID)) {
			continue
		}
		key, old, updated, err := writer.Add(d.Ordinal, pos, d.Token, d.ComponentID, block.Number, d.Delta)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, aggregate.BalanceStoreDelta{
			Ordinal:     d.Ordinal,
			Tx:          d.Tx,
			Token:       d.Token,
			ComponentID: append([]byte(nil), d.ComponentID...),
			Key:         key,
			OldValue:    old,
			NewValue:    updated,
		})
	}
	return transcript, nil
}
