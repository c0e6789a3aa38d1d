package model

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// EncodeSignedBigInt returns the minimal big-endian two's-complement
// encoding of v. Zero encodes as a single 0x00 byte.
func EncodeSignedBigInt(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0}, b...)
		}
		return b
	}

	// Smallest n such that -2^(8n-1) <= v.
	n := (new(big.Int).Not(v).BitLen() + 8) / 8
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	twos := new(big.Int).Add(mod, v)
	out := make([]byte, n)
	twos.FillBytes(out)
	return out
}

// DecodeSignedBigInt parses a big-endian two's-complement encoding.
// An empty slice decodes to zero.
func DecodeSignedBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	v := new(big.Int).SetBytes(b)
	if b[0]&0x80 == 0 {
		return v
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
	return v.Sub(v, mod)
}

// ToUint256 converts v into an unsigned 256-bit integer. Negative values and
// values wider than 256 bits are range errors.
func ToUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrRange, v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: value %s exceeds 256 bits", ErrRange, v)
	}
	return out, nil
}
