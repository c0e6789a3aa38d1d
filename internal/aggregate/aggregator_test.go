package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/model"
	"protocolScope/internal/storage/postgres"
)

type recordingWriter struct {
	components []postgres.ComponentRow
	attributes []postgres.AttributeRow
	balances   []postgres.BalanceRow
	slots      []postgres.SlotRow
	calls      int
	fail       error
}

func (w *recordingWriter) UpsertComponents(_ context.Context, rows []postgres.ComponentRow) error {
	w.calls++
	if w.fail != nil {
		return w.fail
	}
	w.components = append(w.components, rows...)
	return nil
}

func (w *recordingWriter) UpsertAttributes(_ context.Context, rows []postgres.AttributeRow) error {
	w.attributes = append(w.attributes, rows...)
	return nil
}

func (w *recordingWriter) UpsertBalances(_ context.Context, rows []postgres.BalanceRow) error {
	w.balances = append(w.balances, rows...)
	return nil
}

func (w *recordingWriter) UpsertSlots(_ context.Context, rows []postgres.SlotRow) error {
	w.slots = append(w.slots, rows...)
	return nil
}

var (
	poolAddr = common.HexToAddress("0xdc24316b9ae028f1497c275eb9192a3ea0f67022")
	poolID   = model.ComponentIDFromAddress(poolAddr)
	tokenA   = common.HexToAddress("0xae7ab96520de3a18e5e111b5eaab095312d7fe84")
)

func sampleBlock(number uint64, balance int64, slotValue byte) model.BlockChanges {
	tx := model.TxRef{Hash: common.BigToHash(common.Big1), Index: 3}
	changes := model.TransactionChanges{
		Tx: tx,
		BalanceChanges: []model.ComponentBalance{{
			Token:       tokenA,
			Balance:     model.EncodeSignedBigInt(big.NewInt(balance)),
			ComponentID: poolID,
		}},
		ContractChanges: []model.ContractChange{{
			Address:    poolAddr,
			Slots:      []model.ContractSlot{{Slot: []byte{0x01}, Value: []byte{slotValue}}},
			ChangeType: model.ChangeTypeUpdate,
		}},
		EntityChanges: []model.EntityChanges{{
			ComponentID: poolID,
			Attributes:  []model.Attribute{{Name: "update_marker", Value: []byte{1}, ChangeType: model.ChangeTypeUpdate}},
		}},
	}
	if number == 100 {
		changes.ComponentChanges = []model.ProtocolComponent{{
			ID:               poolID,
			Tokens:           []common.Address{tokenA},
			Contracts:        []common.Address{poolAddr},
			StaticAttributes: []model.Attribute{{Name: "pool_type", Value: []byte("plain_pool")}},
			ChangeType:       model.ChangeTypeCreation,
			ProtocolType:     model.ProtocolType{Name: "curve_pool", FinancialType: model.FinancialTypeSwap},
		}}
	}
	return model.BlockChanges{
		Block:   model.BlockRef{Number: number},
		Changes: []model.TransactionChanges{changes},
	}
}

func jsonl(t *testing.T, blocks ...model.BlockChanges) string {
	t.Helper()
	var sb strings.Builder
	for _, block := range blocks {
		line, err := json.Marshal(block)
		require.NoError(t, err)
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestAccumulatorKeepsLatestRow(t *testing.T) {
	acc := NewAccumulator("curve")
	require.NoError(t, acc.AddBlock(sampleBlock(100, 5, 0xaa)))
	require.NoError(t, acc.AddBlock(sampleBlock(101, -7, 0xbb)))

	require.Equal(t, uint64(100), acc.FirstBlock)
	require.Equal(t, uint64(101), acc.LastBlock)

	components := acc.Components()
	require.Len(t, components, 1)
	require.Equal(t, "curve", components[0].Protocol)
	require.Equal(t, "curve_pool", components[0].ProtocolType)
	require.Equal(t, "swap", components[0].FinancialType)
	require.Equal(t, uint64(100), components[0].CreatedBlock)
	require.Equal(t, "0x"+common.Bytes2Hex([]byte("plain_pool")), components[0].StaticAttributes["pool_type"])

	balances := acc.Balances()
	require.Len(t, balances, 1)
	require.Equal(t, "-7", balances[0].Balance)
	require.Equal(t, uint64(101), balances[0].BlockNumber)

	slots := acc.Slots()
	require.Len(t, slots, 1)
	require.Equal(t, []byte{0xbb}, slots[0].Value)

	require.Len(t, acc.Attributes(), 1)

	err := acc.AddBlock(sampleBlock(99, 1, 0x01))
	require.ErrorIs(t, err, model.ErrRange)

	acc.Reset()
	require.False(t, acc.Pending())
}

func TestLoaderResumesFromState(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json"), Name: "load:curve"}
	input := jsonl(t, sampleBlock(100, 5, 0xaa), sampleBlock(101, 6, 0xbb)) +
		"not json\n" +
		jsonl(t, sampleBlock(102, 8, 0xcc))

	writer := &recordingWriter{}
	loader := NewLoader(Config{Protocol: "curve", BatchSize: 2, StateStore: state}, writer, nil)
	require.NoError(t, loader.Load(context.Background(), strings.NewReader(input)))

	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(102), last)
	require.Equal(t, 2, writer.calls)
	require.Len(t, writer.components, 1)
	require.Equal(t, "8", writer.balances[len(writer.balances)-1].Balance)

	again := &recordingWriter{}
	loader = NewLoader(Config{Protocol: "curve", BatchSize: 2, StateStore: state}, again, nil)
	require.NoError(t, loader.Load(context.Background(), strings.NewReader(input)))
	require.Zero(t, again.calls)
}

func TestLoaderStopsOnWriteError(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json"), Name: "load:curve"}
	boom := errors.New("boom")
	writer := &recordingWriter{fail: boom}
	loader := NewLoader(Config{BatchSize: 1, StateStore: state}, writer, nil)

	err := loader.Load(context.Background(), strings.NewReader(jsonl(t, sampleBlock(100, 1, 0x01))))
	require.ErrorIs(t, err, boom)

	_, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSinkWritesBlocks(t *testing.T) {
	writer := &recordingWriter{}
	sink := NewSink("curve", writer)
	require.NoError(t, sink.PutBlockChanges(context.Background(), []model.BlockChanges{sampleBlock(100, 3, 0x02)}))
	require.Len(t, writer.components, 1)
	require.Len(t, writer.balances, 1)
	require.Equal(t, "3", writer.balances[0].Balance)

	empty := &recordingWriter{}
	sink = NewSink("curve", empty)
	require.NoError(t, sink.PutBlockChanges(context.Background(), []model.BlockChanges{{Block: model.BlockRef{Number: 7}, Changes: []model.TransactionChanges{}}}))
	require.Zero(t, empty.calls)
}

func TestFileStateStoreKeepsNamesApart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "load.json")
	curveState := &FileStateStore{Path: path, Name: "load:curve"}
	skyState := &FileStateStore{Path: path, Name: "load:sky"}
	ctx := context.Background()

	_, ok, err := curveState.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, curveState.Save(ctx, 10))
	require.NoError(t, skyState.Save(ctx, 20_770_196))
	require.NoError(t, curveState.Save(ctx, 11))

	last, ok, err := curveState.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(11), last)

	last, ok, err = skyState.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(20_770_196), last)
}
