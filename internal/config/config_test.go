package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/model"
)

func runFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("protocol", "", "")
	flags.Uint64("from", 0, "")
	flags.Uint64("to", 0, "")
	flags.Uint64("batch-size", 0, "")
	return flags
}

func TestLoadMergesFlagsEnvAndDefaults(t *testing.T) {
	t.Setenv("INDEXER_PROTOCOL", "sky")
	t.Setenv("INDEXER_PG_DSN", "postgres://localhost/scope")

	flags := runFlags()
	require.NoError(t, flags.Parse([]string{"--rpc", "http://node:8545", "--from", "20663734"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, "http://node:8545", cfg.RPCURL)
	require.Equal(t, "sky", cfg.Protocol)
	require.Equal(t, "postgres://localhost/scope", cfg.PGDSN)
	require.Equal(t, uint64(20663734), cfg.FromBlock)
	require.Equal(t, uint64(100), cfg.BatchSize)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	require.True(t, cfg.CheckpointEnabled)
	require.NoError(t, cfg.Validate())

	cfg.ToBlock = 10
	require.ErrorIs(t, cfg.Validate(), model.ErrConfig)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	content := "rpc: http://file:8545\nprotocol: curve\nparams-file: ./curve.params\nmetrics-addr: :9100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "http://file:8545", cfg.RPCURL)
	require.Equal(t, "curve", cfg.Protocol)
	require.Equal(t, "./curve.params", cfg.ParamsFile)
	require.Equal(t, ":9100", cfg.MetricsAddr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestReplayAndLoadValidation(t *testing.T) {
	replay, err := LoadReplay("", nil)
	require.NoError(t, err)
	require.Equal(t, "./data/decode_errors.jsonl", replay.Errors)
	require.ErrorIs(t, replay.Validate(), model.ErrConfig)

	load, err := LoadLoad("", nil)
	require.NoError(t, err)
	require.Equal(t, 100, load.BatchSize)
	require.ErrorIs(t, load.Validate(), model.ErrConfig)

	load.Input = "changes.jsonl"
	load.PGDSN = "postgres://localhost/scope"
	require.NoError(t, load.Validate())
}
