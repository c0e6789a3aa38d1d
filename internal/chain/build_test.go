package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestBuildBlockOrdinals(t *testing.T) {
	factory := common.HexToAddress("0x6a8cbed756804b16e05e741edabd5cb544ae21bf")
	pool := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	failed := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	token := common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &factory, Gas: 21000, GasPrice: big.NewInt(1)})
	header := &types.Header{Number: big.NewInt(100), Time: 1_700_000_000}
	block := types.NewBlockWithHeader(header).WithBody([]*types.Transaction{tx}, nil)

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: token, Topics: []common.Hash{common.HexToHash("0x01")}, Data: []byte{0x02}, Index: 7},
		},
	}
	calls := callFrame{
		Type:  "CALL",
		To:    &factory,
		Input: hexutil.Bytes{0xaa, 0xbb, 0xcc, 0xdd},
		Calls: []callFrame{
			{Type: "CREATE", From: factory, To: &pool},
			{Type: "CREATE2", From: factory, To: &failed, Error: "execution reverted"},
		},
	}
	slot := common.HexToHash("0x05")
	diff := stateDiff{
		Pre: map[common.Address]accountState{
			pool: {Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x01")}},
		},
		Post: map[common.Address]accountState{
			pool: {Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x02")}, Code: []byte{0x60}},
		},
	}

	got := buildBlock(block, []*types.Receipt{receipt}, []callFrame{calls}, []stateDiff{diff})
	require.Equal(t, uint64(100), got.Number)
	require.Equal(t, uint64(1_700_000_000), got.Timestamp)
	require.Len(t, got.Transactions, 1)

	mtx := got.Transactions[0]
	require.True(t, mtx.Succeeded())
	require.Len(t, mtx.Calls, 3)
	root, create, reverted := mtx.Calls[0], mtx.Calls[1], mtx.Calls[2]

	require.Equal(t, uint64(1), root.BeginOrdinal)
	require.Equal(t, uint64(2), create.BeginOrdinal)
	require.Equal(t, uint64(3), create.EndOrdinal)
	require.Equal(t, uint32(1), create.Depth)
	require.Equal(t, uint32(0), create.ParentIndex)
	require.True(t, reverted.StateReverted)
	require.Equal(t, uint64(6), root.EndOrdinal)

	require.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, []byte(root.Input))
	require.Len(t, mtx.AccountCreations, 1)
	require.Equal(t, pool, mtx.AccountCreations[0].Account)
	require.Equal(t, uint64(2), mtx.AccountCreations[0].Ordinal)

	require.Len(t, mtx.Logs, 1)
	require.Equal(t, uint64(7), mtx.Logs[0].Ordinal)
	require.Equal(t, uint32(7), mtx.Logs[0].Index)

	require.Len(t, root.StorageChanges, 1)
	require.Equal(t, common.HexToHash("0x02"), root.StorageChanges[0].NewValue)
	require.Equal(t, common.HexToHash("0x01"), root.StorageChanges[0].OldValue)
	require.Len(t, root.CodeChanges, 1)
	require.Greater(t, root.CodeChanges[0].Ordinal, root.StorageChanges[0].Ordinal)
}
