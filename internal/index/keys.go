package index

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	poolPrefix    = "pool:"
	balancePrefix = "balance:"
)

// PoolKey is the component index key of a primary address.
func PoolKey(address common.Address) string {
	return poolPrefix + strings.ToLower(address.Hex())
}

// PoolKeyFromID derives the component index key from the first 42
// characters of a component id.
func PoolKeyFromID(id string) (string, error) {
	if len(id) < 42 {
		return "", fmt.Errorf("component id too short: %q", id)
	}
	return poolPrefix + strings.ToLower(id[:42]), nil
}

// BalanceKey is the accumulator key of (token, component) at a height.
func BalanceKey(token common.Address, componentID []byte, height uint64) string {
	return balanceKeyPrefix(token, componentID) + strconv.FormatUint(height, 10)
}

func balanceKeyPrefix(token common.Address, componentID []byte) string {
	return balancePrefix + hex.EncodeToString(token.Bytes()) + ":" + hex.EncodeToString(componentID) + ":"
}

// ParseBalanceKey splits a balance key into its parts.
func ParseBalanceKey(key string) (common.Address, []byte, uint64, error) {
	if !strings.HasPrefix(key, balancePrefix) {
		return common.Address{}, nil, 0, fmt.Errorf("not a balance key: %q", key)
	}
	parts := strings.Split(strings.TrimPrefix(key, balancePrefix), ":")
	if len(parts) != 3 {
		return common.Address{}, nil, 0, fmt.Errorf("malformed balance key: %q", key)
	}
	token, err := hex.DecodeString(parts[0])
	if err != nil || len(token) != common.AddressLength {
		return common.Address{}, nil, 0, fmt.Errorf("malformed balance token: %q", key)
	}
	component, err := hex.DecodeString(parts[1])
	if err != nil {
		return common.Address{}, nil, 0, fmt.Errorf("malformed balance component: %q", key)
	}
	height, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return common.Address{}, nil, 0, fmt.Errorf("malformed balance height: %q", key)
	}
	return common.BytesToAddress(token), component, height, nil
}
