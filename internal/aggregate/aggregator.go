package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"protocolScope/internal/model"
	"protocolScope/internal/storage"
	"protocolScope/internal/storage/postgres"
)

// Writer persists accumulated rows. *postgres.Store implements it.
type Writer interface {
	UpsertComponents(ctx context.Context, rows []postgres.ComponentRow) error
	UpsertAttributes(ctx context.Context, rows []postgres.AttributeRow) error
	UpsertBalances(ctx context.Context, rows []postgres.BalanceRow) error
	UpsertSlots(ctx context.Context, rows []postgres.SlotRow) error
}

// Config controls loading behavior.
type Config struct {
	Protocol   string
	BatchSize  int
	StateStore StateStore
}

// Loader loads BlockChanges JSONL into relational tables.
type Loader struct {
	cfg    Config
	writer Writer
	logger *zap.Logger
}

func NewLoader(cfg Config, writer Writer, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Loader{cfg: cfg, writer: writer, logger: logger}
}

// Run loads the BlockChanges file at inputPath.
func (l *Loader) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return l.Load(ctx, file)
}

// Load reads BlockChanges lines from r. Blocks at or below the saved state
// are skipped; state advances after every flushed batch.
func (l *Loader) Load(ctx context.Context, r io.Reader) error {
	if l.writer == nil {
		return fmt.Errorf("writer is nil")
	}

	last, resumed, err := l.loadState(ctx)
	if err != nil {
		return err
	}

	acc := NewAccumulator(l.cfg.Protocol)
	var total, loaded, skipped, failed int

	err = storage.ScanJsonl(r, func(line int, block model.BlockChanges, decodeErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++
		if decodeErr != nil {
			failed++
			l.logger.Warn("decode block changes", zap.Int("line", line), zap.Error(decodeErr))
			return nil
		}
		if resumed && block.Block.Number <= last {
			skipped++
			return nil
		}
		if err := acc.AddBlock(block); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		loaded++

		if acc.Blocks >= l.cfg.BatchSize {
			return l.flush(ctx, acc)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := l.flush(ctx, acc); err != nil {
		return err
	}

	l.logger.Info("load complete",
		zap.Int("total", total),
		zap.Int("loaded", loaded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (l *Loader) loadState(ctx context.Context) (uint64, bool, error) {
	if l.cfg.StateStore == nil {
		return 0, false, nil
	}
	last, ok, err := l.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load state: %w", err)
	}
	if ok {
		l.logger.Info("resume load", zap.Uint64("last_processed", last))
	}
	return last, ok, nil
}

func (l *Loader) flush(ctx context.Context, acc *Accumulator) error {
	if acc.Blocks == 0 {
		return nil
	}
	if err := writeRows(ctx, l.writer, acc); err != nil {
		return err
	}
	l.logger.Debug("batch loaded",
		zap.Uint64("from", acc.FirstBlock),
		zap.Uint64("to", acc.LastBlock),
		zap.Int("blocks", acc.Blocks),
	)
	if l.cfg.StateStore != nil {
		if err := l.cfg.StateStore.Save(ctx, acc.LastBlock); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	acc.Reset()
	return nil
}

func writeRows(ctx context.Context, writer Writer, acc *Accumulator) error {
	if !acc.Pending() {
		return nil
	}
	if err := writer.UpsertComponents(ctx, acc.Components()); err != nil {
		return fmt.Errorf("upsert components: %w", err)
	}
	if err := writer.UpsertAttributes(ctx, acc.Attributes()); err != nil {
		return fmt.Errorf("upsert attributes: %w", err)
	}
	if err := writer.UpsertBalances(ctx, acc.Balances()); err != nil {
		return fmt.Errorf("upsert balances: %w", err)
	}
	if err := writer.UpsertSlots(ctx, acc.Slots()); err != nil {
		return fmt.Errorf("upsert slots: %w", err)
	}
	return nil
}

// Sink writes BlockChanges straight to a Writer. It implements
// storage.Storage for the run command.
type Sink struct {
	protocol string
	writer   Writer
}

func NewSink(protocol string, writer Writer) *Sink {
	return &Sink{protocol: protocol, writer: writer}
}

func (s *Sink) PutBlockChanges(ctx context.Context, changes []model.BlockChanges) error {
	acc := NewAccumulator(s.protocol)
	for _, block := range changes {
		if err := acc.AddBlock(block); err != nil {
			return err
		}
	}
	return writeRows(ctx, s.writer, acc)
}
