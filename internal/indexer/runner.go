package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"protocolScope/internal/model"
	"protocolScope/internal/pipeline"
	"protocolScope/internal/storage"
)

// BlockSource supplies assembled blocks. *chain.Client implements it.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FetchBlock(ctx context.Context, number uint64) (*model.Block, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Protocol          string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner fetches blocks, runs them through the pipeline and writes the
// resulting BlockChanges to storage.
type Runner struct {
	cfg        RunConfig
	source     BlockSource
	pipeline   *pipeline.Pipeline
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source BlockSource, p *pipeline.Pipeline, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		pipeline:   p,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled, cfg.Protocol),
	}
}

// Run executes the indexing loop. Each block is committed to the index as
// soon as it is processed; the sink and the checkpoint advance per batch.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("block source is nil")
	}
	if r.pipeline == nil {
		return fmt.Errorf("pipeline is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.latestWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("process range", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		changes := make([]model.BlockChanges, 0, blockRange.To-blockRange.From+1)
		var last model.BlockRef
		var decodeErrors int
		for number := blockRange.From; number <= blockRange.To; number++ {
			block, err := r.fetchWithRetry(ctx, number)
			if err != nil {
				return fmt.Errorf("fetch block %d: %w", number, err)
			}
			result, err := r.pipeline.ProcessBlock(ctx, block)
			if err != nil {
				return fmt.Errorf("process block %d: %w", number, err)
			}
			changes = append(changes, result.Changes)
			decodeErrors += len(result.DecodeErrors)
			last = block.Ref()
		}

		if err := r.storage.PutBlockChanges(ctx, changes); err != nil {
			return fmt.Errorf("store changes: %w", err)
		}
		if err := r.checkpoint.Save(last); err != nil {
			return err
		}

		r.logger.Info("batch complete",
			zap.Int("blocks", len(changes)),
			zap.Int("decode_errors", decodeErrors),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (r *Runner) fetchWithRetry(ctx context.Context, number uint64) (*model.Block, error) {
	var block *model.Block
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		block, err = r.source.FetchBlock(ctx, number)
		if err != nil {
			r.logger.Warn("fetch block failed", zap.Error(err), zap.Uint64("block_number", number))
		}
		return err
	})
	return block, err
}

func (r *Runner) latestWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.source.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}
