package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/index"
	"protocolScope/internal/model"
	"protocolScope/internal/params"
	"protocolScope/internal/pipeline"
	"protocolScope/internal/protocol/curve"
	"protocolScope/internal/storage"
)

const seedBlob = "protocol_params[plain_pool_factory]=" +
	"&pool_params[0][address]=bebc44782c7db0a1a60cb6fe97d0b483032ff1c7" +
	"&pool_params[0][tx_hash]=20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6" +
	"&pool_params[0][tokens][]=6b175474e89094c44da98b954eedeac495271d0f"

var seedTx = common.HexToHash("0x20793bbf260912aae189d5d261ff003c9b9166da8191d8f9d63ff1c7722f3ac6")

type fakeSource struct {
	latest   uint64
	failAt   uint64
	failures int
	fetched  []uint64
}

func (s *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return s.latest, nil
}

func (s *fakeSource) FetchBlock(_ context.Context, number uint64) (*model.Block, error) {
	if number == s.failAt && s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return nil, errors.New("connection reset")
	}
	s.fetched = append(s.fetched, number)
	block := &model.Block{
		Number: number,
		Hash:   common.BigToHash(common.Big2),
	}
	if number == 102 {
		block.Transactions = []model.Transaction{{Hash: seedTx, Index: 0, Status: 1}}
	}
	return block, nil
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	proto, err := curve.New(nil)
	require.NoError(t, err)
	cfg, err := params.Parse(seedBlob, proto.Roles())
	require.NoError(t, err)
	return pipeline.New(proto, cfg, index.NewMemory(), nil, nil)
}

func readChanges(t *testing.T, path string) []model.BlockChanges {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []model.BlockChanges
	err = storage.ScanJsonl(file, func(_ int, block model.BlockChanges, err error) error {
		require.NoError(t, err)
		out = append(out, block)
		return nil
	})
	require.NoError(t, err)
	return out
}

func testRunConfig(dir string) RunConfig {
	return RunConfig{
		Protocol:          "curve",
		FromBlock:         100,
		BatchSize:         2,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}
}

func TestRunnerWritesChangesAndResumes(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "changes.jsonl")
	p := newTestPipeline(t)
	cfg := testRunConfig(dir)

	source := &fakeSource{latest: 104, failAt: 101, failures: 1}
	runner := NewRunner(cfg, source, p, storage.NewJsonlStorage(out), nil)
	require.NoError(t, runner.Run(context.Background()))
	require.Equal(t, []uint64{100, 101, 102, 103, 104}, source.fetched)

	changes := readChanges(t, out)
	require.Len(t, changes, 5)
	for i, block := range changes {
		require.Equal(t, uint64(100+i), block.Block.Number)
	}
	require.Len(t, changes[2].Changes, 1)
	require.Len(t, changes[2].Changes[0].ComponentChanges, 1)
	require.Equal(t, "0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7", changes[2].Changes[0].ComponentChanges[0].ID)
	require.Empty(t, changes[0].Changes)

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true, "curve").Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(104), cp.LastProcessedBlock)

	resumed := &fakeSource{latest: 106}
	runner = NewRunner(cfg, resumed, p, storage.NewJsonlStorage(out), nil)
	require.NoError(t, runner.Run(context.Background()))
	require.Equal(t, []uint64{105, 106}, resumed.fetched)
	require.Len(t, readChanges(t, out), 7)
}

func TestRunnerStopsAfterRetries(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "changes.jsonl")
	cfg := testRunConfig(dir)
	cfg.ToBlock = 104

	source := &fakeSource{failAt: 103, failures: -1}
	runner := NewRunner(cfg, source, newTestPipeline(t), storage.NewJsonlStorage(out), nil)
	err := runner.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch block 103")

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true, "curve").Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(101), cp.LastProcessedBlock)
	require.Len(t, readChanges(t, out), 2)
}

func TestCheckpointRejectsOtherProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, NewCheckpointStore(path, true, "sky").Save(model.BlockRef{Number: 9}))

	_, _, err := NewCheckpointStore(path, true, "curve").Load()
	require.ErrorIs(t, err, model.ErrConfig)

	_, ok, err := NewCheckpointStore(path, false, "curve").Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadParamsBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.txt")
	content := "# curve factories\nprotocol_params[plain_pool_factory]=\n\n&protocol_params[core_stableswap_factory]=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	blob, err := LoadParamsBlob("", path)
	require.NoError(t, err)
	require.Equal(t, "protocol_params[plain_pool_factory]=&protocol_params[core_stableswap_factory]=", blob)

	blob, err = LoadParamsBlob(" a=b ", "")
	require.NoError(t, err)
	require.Equal(t, "a=b", blob)

	_, err = LoadParamsBlob("a=b", path)
	require.ErrorIs(t, err, model.ErrConfig)
}

func TestWithRetrySkipsFatalErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return model.ErrInvariantViolation
	})
	require.ErrorIs(t, err, model.ErrInvariantViolation)
	require.Equal(t, 1, calls)

	calls = 0
	err = withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}
