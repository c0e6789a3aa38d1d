package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"protocolScope/internal/aggregate"
	"protocolScope/internal/config"
	"protocolScope/internal/storage/postgres"
)

func runLoad(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLoad(cfgFile, cmd.Flags())
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

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	stateName := "load:" + cfg.Protocol
	var stateStore aggregate.StateStore
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile, Name: stateName}
	} else {
		stateStore = &aggregate.DBStateStore{Store: store, Name: stateName}
	}

	loader := aggregate.NewLoader(aggregate.Config{
		Protocol:   cfg.Protocol,
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, store, logger)

	logger.Info("load start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("protocol", cfg.Protocol),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return loader.Run(ctx, cfg.Input)
}
