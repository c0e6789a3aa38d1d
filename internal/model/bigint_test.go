package model

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeSignedBigInt(t *testing.T) {
	cases := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x00, 0x80}},
		{-1, []byte{0xff}},
		{-128, []byte{0x80}},
		{-129, []byte{0xff, 0x7f}},
		{1_000_000, []byte{0x0f, 0x42, 0x40}},
		{-999_900, []byte{0xf0, 0xbe, 0x24}},
	}
	for _, tc := range cases {
		got := EncodeSignedBigInt(big.NewInt(tc.in))
		require.Equal(t, tc.want, got, "encode %d", tc.in)
		require.Equal(t, tc.in, DecodeSignedBigInt(got).Int64(), "decode %x", got)
	}
}

func TestDecodeSignedBigIntEmpty(t *testing.T) {
	require.Zero(t, DecodeSignedBigInt(nil).Sign())
}

func TestEncodeSignedBigIntWide(t *testing.T) {
	v, ok := new(big.Int).SetString("-115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)
	require.Equal(t, 0, v.Cmp(DecodeSignedBigInt(EncodeSignedBigInt(v))))
}

func TestToUint256(t *testing.T) {
	v, err := ToUint256(big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, uint64(42), v.Uint64())

	_, err = ToUint256(big.NewInt(-1))
	require.True(t, errors.Is(err, ErrRange))

	_, err = ToUint256(new(big.Int).Lsh(big.NewInt(1), 256))
	require.True(t, errors.Is(err, ErrRange))
}
