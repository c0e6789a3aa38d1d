package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"protocolScope/internal/model"
)

// LoadConfig holds configuration for the load command.
type LoadConfig struct {
	Input     string
	PGDSN     string
	Protocol  string
	BatchSize int
	StateFile string
	LogLevel  string
}

// LoadLoad merges config file, environment variables, and flags into LoadConfig.
func LoadLoad(cfgFile string, flags *pflag.FlagSet) (LoadConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size": 100,
		"log-level":  "info",
	})
	if err != nil {
		return LoadConfig{}, err
	}

	return LoadConfig{
		Input:     v.GetString("in"),
		PGDSN:     v.GetString("pg-dsn"),
		Protocol:  v.GetString("protocol"),
		BatchSize: v.GetInt("batch-size"),
		StateFile: v.GetString("state-file"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

func (c LoadConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: input file is required", model.ErrConfig)
	}
	if c.PGDSN == "" {
		return fmt.Errorf("%w: pg-dsn is required", model.ErrConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch-size must be greater than zero", model.ErrConfig)
	}
	return nil
}
