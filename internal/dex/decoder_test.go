package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"protocolScope/internal/model"
)

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func TestSkyDecoderDeposit(t *testing.T) {
	shapes, err := SkyShapes()
	require.NoError(t, err)
	decoder := NewEventDecoder(shapes...)

	skyABI, err := SkyABI()
	require.NoError(t, err)
	event := skyABI.Events["Deposit"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1_000_000), big.NewInt(999_900))
	require.NoError(t, err)

	vault := common.HexToAddress("0x83f20f44975d03b1b09e64809b757c47f942beea")
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := model.Log{
		Address: vault,
		Topics:  []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(owner)},
		Data:    data,
		Ordinal: 42,
	}

	require.True(t, decoder.CanDecode(event.ID))
	got, ok, err := decoder.Decode(log)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, EventVaultDeposit, got.Kind)
	require.Equal(t, "Deposit", got.Name)
	require.Equal(t, vault, got.Address)
	require.Equal(t, owner, got.Owner)
	require.Equal(t, uint64(1_000_000), got.Assets.Uint64())
	require.Equal(t, uint64(999_900), got.Shares.Uint64())
}

func TestSkyDecoderConvertDirections(t *testing.T) {
	shapes, err := SkyShapes()
	require.NoError(t, err)
	decoder := NewEventDecoder(shapes...)
	skyABI, err := SkyABI()
	require.NoError(t, err)

	caller := common.HexToAddress("0x1111111111111111111111111111111111111111")
	usr := common.HexToAddress("0x2222222222222222222222222222222222222222")

	event := skyABI.Events["SkyToMkr"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(24_000), big.NewInt(1))
	require.NoError(t, err)
	got, ok, err := decoder.Decode(model.Log{
		Topics: []common.Hash{event.ID, topicFromAddress(caller), topicFromAddress(usr)},
		Data:   data,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, EventConvert, got.Kind)
	require.Equal(t, "SkyToMkr", got.Name)
	require.Equal(t, uint64(24_000), got.AmountIn.Uint64())
	require.Equal(t, uint64(1), got.AmountOut.Uint64())

	event = skyABI.Events["DaiToUsds"]
	data, err = event.Inputs.NonIndexed().Pack(big.NewInt(77))
	require.NoError(t, err)
	got, ok, err = decoder.Decode(model.Log{
		Topics: []common.Hash{event.ID, topicFromAddress(caller), topicFromAddress(usr)},
		Data:   data,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(77), got.AmountIn.Uint64())
	require.Equal(t, uint64(77), got.AmountOut.Uint64())
}

func TestDecoderArityMismatchSkips(t *testing.T) {
	shapes, err := TransferShapes()
	require.NoError(t, err)
	decoder := NewEventDecoder(shapes...)
	erc20, err := ERC20ABI()
	require.NoError(t, err)
	transfer := erc20.Events["Transfer"]

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	// ERC-721 style: token id indexed, empty data.
	_, ok, err := decoder.Decode(model.Log{
		Topics: []common.Hash{transfer.ID, topicFromAddress(from), topicFromAddress(to), common.BigToHash(big.NewInt(7))},
	})
	require.NoError(t, err)
	require.False(t, ok)

	data, err := transfer.Inputs.NonIndexed().Pack(big.NewInt(5))
	require.NoError(t, err)
	got, ok, err := decoder.Decode(model.Log{
		Topics: []common.Hash{transfer.ID, topicFromAddress(from), topicFromAddress(to)},
		Data:   data,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, from, got.From)
	require.Equal(t, to, got.To)
	require.Equal(t, uint64(5), got.Value.Uint64())
}

func TestDecoderMalformedData(t *testing.T) {
	shapes, err := SkyShapes()
	require.NoError(t, err)
	decoder := NewEventDecoder(shapes...)
	skyABI, err := SkyABI()
	require.NoError(t, err)
	event := skyABI.Events["BuyGem"]

	_, ok, err := decoder.Decode(model.Log{
		Topics: []common.Hash{event.ID, topicFromAddress(common.HexToAddress("0x01"))},
		Data:   []byte{0x01, 0x02},
	})
	require.True(t, ok)
	require.True(t, errors.Is(err, model.ErrDecode))
}

func TestDecoderUnknownTopic(t *testing.T) {
	shapes, err := SkyShapes()
	require.NoError(t, err)
	decoder := NewEventDecoder(shapes...)

	_, ok, err := decoder.Decode(model.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = decoder.Decode(model.Log{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCurveDeployDecoders(t *testing.T) {
	dai := common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	usdc := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")

	plain, err := CurvePlainFactoryABI()
	require.NoError(t, err)
	input, err := plain.Pack("deploy_plain_pool", "DAI/USDC", "DU", [4]common.Address{dai, usdc}, big.NewInt(200), big.NewInt(4_000_000))
	require.NoError(t, err)

	decoder := NewCallDecoder(plain)
	call := model.Call{Input: input}
	require.True(t, decoder.CanDecode(call))
	deploy, err := decoder.DecodeDeploy(call)
	require.NoError(t, err)
	require.Equal(t, "deploy_plain_pool", deploy.Method)
	require.Equal(t, "DAI/USDC", deploy.Name)
	require.Equal(t, []common.Address{dai, usdc}, deploy.Coins)

	ng, err := CurveStableswapNGFactoryABI()
	require.NoError(t, err)
	input, err = ng.Pack("deploy_plain_pool", "DAI/USDC", "DU", []common.Address{usdc, dai},
		big.NewInt(200), big.NewInt(4_000_000), big.NewInt(20_000_000_000), big.NewInt(866),
		big.NewInt(0), []uint8{0, 0}, [][4]byte{{}, {}}, []common.Address{{}, {}})
	require.NoError(t, err)
	deploy, err = NewCallDecoder(ng).DecodeDeploy(model.Call{Input: input})
	require.NoError(t, err)
	require.Equal(t, []common.Address{usdc, dai}, deploy.Coins)

	require.False(t, decoder.CanDecode(model.Call{Input: input}))
	_, err = decoder.DecodeDeploy(model.Call{Input: []byte{0x01}})
	require.True(t, errors.Is(err, model.ErrDecode))
}
