package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"protocolScope/internal/model"
)

// Config holds configuration for the run command.
type Config struct {
	RPCURL            string
	Protocol          string
	Params            string
	ParamsFile        string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	IndexPath         string
	Out               string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(100),
		"index-path":         "./data/index",
		"out":                "./data/block_changes.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Protocol:          v.GetString("protocol"),
		Params:            v.GetString("params"),
		ParamsFile:        v.GetString("params-file"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		IndexPath:         v.GetString("index-path"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate reports missing or inconsistent settings as config errors.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: rpc url is required", model.ErrConfig)
	}
	if c.Protocol == "" {
		return fmt.Errorf("%w: protocol is required", model.ErrConfig)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("%w: batch-size must be greater than zero", model.ErrConfig)
	}
	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("%w: to block %d is before from block %d", model.ErrConfig, c.ToBlock, c.FromBlock)
	}
	if c.Out == "" && c.PGDSN == "" {
		return fmt.Errorf("%w: out or pg-dsn is required", model.ErrConfig)
	}
	return nil
}

// newViper builds a viper instance over defaults, INDEXER_* environment
// variables, flags and an optional config file.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
