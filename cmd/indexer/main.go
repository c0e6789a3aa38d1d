package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"protocolScope/internal/aggregate"
	"protocolScope/internal/chain"
	"protocolScope/internal/config"
	"protocolScope/internal/index"
	"protocolScope/internal/indexer"
	"protocolScope/internal/metrics"
	"protocolScope/internal/params"
	"protocolScope/internal/pipeline"
	"protocolScope/internal/protocol/registry"
	"protocolScope/internal/storage"
	"protocolScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Protocol component and balance indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	protocols := strings.Join(registry.Names(), ", ")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Index blocks from an RPC node",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL with debug tracing enabled")
	runCmd.Flags().String("protocol", "", "protocol family ("+protocols+")")
	runCmd.Flags().String("params", "", "URL-encoded protocol params")
	runCmd.Flags().String("params-file", "", "file with protocol params, one pair per line")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("batch-size", 100, "blocks per batch")
	runCmd.Flags().String("index-path", "./data/index", "leveldb index directory, empty for in-memory")
	runCmd.Flags().String("out", "./data/block_changes.jsonl", "output BlockChanges JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("metrics-addr", "", "address for the Prometheus endpoint, empty to disable")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Run the pipeline over blocks read from JSONL",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input blocks JSONL")
	replayCmd.Flags().String("out", "./data/block_changes.jsonl", "output BlockChanges JSONL")
	replayCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	replayCmd.Flags().String("protocol", "", "protocol family ("+protocols+")")
	replayCmd.Flags().String("params", "", "URL-encoded protocol params")
	replayCmd.Flags().String("params-file", "", "file with protocol params, one pair per line")
	replayCmd.Flags().String("index-path", "", "leveldb index directory, empty for in-memory")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load BlockChanges JSONL into Postgres",
		RunE:  runLoad,
	}

	loadCmd.Flags().String("in", "", "input BlockChanges JSONL")
	loadCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	loadCmd.Flags().String("protocol", "", "protocol name stored with components")
	loadCmd.Flags().Int("batch-size", 100, "blocks per DB flush")
	loadCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	loadCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(loadCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err = metrics.New(reg)
		if err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	p, ix, err := buildPipeline(cfg.Protocol, cfg.Params, cfg.ParamsFile, cfg.IndexPath, logger, m)
	if err != nil {
		return err
	}
	defer ix.Close()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, aggregate.NewSink(cfg.Protocol, store))
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Protocol:          cfg.Protocol,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, p, sinks, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("protocol", cfg.Protocol),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("index_path", cfg.IndexPath),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

// buildPipeline resolves the protocol, parses its params and opens the index.
// The caller closes the returned index.
func buildPipeline(name, inline, paramsFile, indexPath string, logger *zap.Logger, m *metrics.Metrics) (*pipeline.Pipeline, *index.Index, error) {
	proto, err := registry.Lookup(name, logger)
	if err != nil {
		return nil, nil, err
	}
	blob, err := indexer.LoadParamsBlob(inline, paramsFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := params.Parse(blob, proto.Roles())
	if err != nil {
		return nil, nil, fmt.Errorf("parse params: %w", err)
	}
	ix, err := index.Open(indexPath)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(proto, cfg, ix, logger.Named("pipeline"), m), ix, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
