package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"protocolScope/internal/config"
	"protocolScope/internal/model"
	"protocolScope/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, ix, err := buildPipeline(cfg.Protocol, cfg.Params, cfg.ParamsFile, cfg.IndexPath, logger, nil)
	if err != nil {
		return err
	}
	defer ix.Close()

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	var errWriter *jsonlWriter
	if cfg.Errors != "" {
		errWriter, err = newJSONLWriter(cfg.Errors)
		if err != nil {
			return err
		}
		defer errWriter.Close()
	}

	logger.Info("replay start",
		zap.String("protocol", cfg.Protocol),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	var total, processed, failed, decodeErrors int
	err = storage.ScanJsonl(inputFile, func(line int, block *model.Block, decodeErr error) error {
		total++
		if decodeErr != nil || block == nil {
			failed++
			if decodeErr == nil {
				decodeErr = fmt.Errorf("null block")
			}
			writeDecodeError(errWriter, model.DecodeError{Stage: "replay_input", Error: fmt.Sprintf("line %d: %v", line, decodeErr)})
			return nil
		}

		result, err := p.ProcessBlock(ctx, block)
		if err != nil {
			return fmt.Errorf("block %d: %w", block.Number, err)
		}
		for _, decodeError := range result.DecodeErrors {
			writeDecodeError(errWriter, decodeError)
		}
		decodeErrors += len(result.DecodeErrors)
		processed++
		return outWriter.Write(result.Changes)
	})
	if err != nil {
		return err
	}

	// Deferred closes only cover early returns.
	if err := multierr.Combine(outWriter.Close(), errWriter.Close()); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Int("decode_errors", decodeErrors),
	)

	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// newJSONLWriter truncates path and returns a buffered writer over it.
func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Later calls are no-ops.
func (w *jsonlWriter) Close() error {
	if w == nil || w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
