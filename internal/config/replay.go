package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"protocolScope/internal/model"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In         string
	Out        string
	Errors     string
	Protocol   string
	Params     string
	ParamsFile string
	IndexPath  string
	LogLevel   string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/block_changes.jsonl",
		"errors":    "./data/decode_errors.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		In:         v.GetString("in"),
		Out:        v.GetString("out"),
		Errors:     v.GetString("errors"),
		Protocol:   v.GetString("protocol"),
		Params:     v.GetString("params"),
		ParamsFile: v.GetString("params-file"),
		IndexPath:  v.GetString("index-path"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}

func (c ReplayConfig) Validate() error {
	if c.In == "" {
		return fmt.Errorf("%w: input file is required", model.ErrConfig)
	}
	if c.Out == "" {
		return fmt.Errorf("%w: output file is required", model.ErrConfig)
	}
	if c.Protocol == "" {
		return fmt.Errorf("%w: protocol is required", model.ErrConfig)
	}
	return nil
}
