package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/model"
)

type failing struct{}

func (failing) PutBlockChanges(context.Context, []model.BlockChanges) error {
	return errors.New("down")
}

func TestJsonlAppendAndScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "changes.jsonl")
	sink := NewJsonlStorage(path)

	blocks := []model.BlockChanges{
		{Block: model.BlockRef{Number: 1, Hash: common.HexToHash("0x01")}, Changes: []model.TransactionChanges{}},
		{Block: model.BlockRef{Number: 2, Hash: common.HexToHash("0x02")}, Changes: []model.TransactionChanges{}},
	}
	require.NoError(t, sink.PutBlockChanges(context.Background(), blocks[:1]))
	require.NoError(t, sink.PutBlockChanges(context.Background(), blocks[1:]))
	require.NoError(t, sink.PutBlockChanges(context.Background(), nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []uint64
	err = ScanJsonl(f, func(_ int, record model.BlockChanges, err error) error {
		require.NoError(t, err)
		got = append(got, record.Block.Number)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, got)
}

func TestScanJsonlReportsBadLines(t *testing.T) {
	input := "{\"block\":{\"number\":3}}\n\nnot json\n"
	var bad []int
	err := ScanJsonl(strings.NewReader(input), func(line int, _ model.BlockChanges, err error) error {
		if err != nil {
			bad = append(bad, line)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{3}, bad)
}

func TestMultiReportsEveryFailure(t *testing.T) {
	sink := NewJsonlStorage(filepath.Join(t.TempDir(), "a.jsonl"))
	err := Multi{failing{}, sink, failing{}}.PutBlockChanges(context.Background(), []model.BlockChanges{{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "down; down")
}
