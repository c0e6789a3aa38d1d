package index

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"protocolScope/internal/model"
)

// ComponentReader is the read-only view of the component keys.
type ComponentReader struct {
	tx *Tx
}

// ComponentReader returns the read capability over pool keys.
func (tx *Tx) ComponentReader() ComponentReader {
	return ComponentReader{tx: tx}
}

// GetLast returns the component id stored under key.
func (r ComponentReader) GetLast(key string) (string, bool) {
	if r.tx == nil {
		return "", false
	}
	v, ok := r.tx.Get(key)
	if !ok {
		return "", false
	}
	return string(v), true
}

// ComponentID returns the id of the component whose primary address is addr.
func (r ComponentReader) ComponentID(addr common.Address) (string, bool) {
	return r.GetLast(PoolKey(addr))
}

// Contains reports whether addr is a tracked primary address.
func (r ComponentReader) Contains(addr common.Address) bool {
	_, ok := r.ComponentID(addr)
	return ok
}

// ComponentWriter is the write capability over pool keys.
type ComponentWriter struct {
	tx *Tx
}

// ComponentWriter returns the write capability over pool keys.
func (tx *Tx) ComponentWriter() ComponentWriter {
	return ComponentWriter{tx: tx}
}

// SetOnce writes key → id. Rewriting the same value is a no-op; a differing
// value is an invariant violation.
func (w ComponentWriter) SetOnce(key, id string) error {
	if !strings.HasPrefix(key, poolPrefix) {
		return fmt.Errorf("%w: component writer cannot write %q", model.ErrInvariantViolation, key)
	}
	if existing, ok := w.tx.Get(key); ok {
		if string(existing) == id {
			return nil
		}
		return fmt.Errorf("%w: %s already maps to %s, refusing %s", model.ErrInvariantViolation, key, existing, id)
	}
	w.tx.Set(key, []byte(id))
	return nil
}

type addPosition struct {
	ordinal uint64
	seq     int
}

func (p addPosition) after(other addPosition) bool {
	if p.ordinal != other.ordinal {
		return p.ordinal > other.ordinal
	}
	return p.seq > other.seq
}

// BalanceWriter is the additive write capability over balance keys.
type BalanceWriter struct {
	tx   *Tx
	last map[string]addPosition
}

// BalanceWriter returns the write capability over balance keys.
func (tx *Tx) BalanceWriter() *BalanceWriter {
	return &BalanceWriter{tx: tx, last: make(map[string]addPosition)}
}

// Add accumulates delta into the (token, component) balance at height. The
// first write at a height is seeded from the latest earlier height, so
// replaying a block yields the same values. Adds to
// one key must arrive in strictly ascending (ordinal, seq) order.
func (w *BalanceWriter) Add(ordinal uint64, seq int, token common.Address, componentID []byte, height uint64, delta *big.Int) (string, *big.Int, *big.Int, error) {
	key := BalanceKey(token, componentID, height)
	pos := addPosition{ordinal: ordinal, seq: seq}
	if prev, ok := w.last[key]; ok && !pos.after(prev) {
		return key, nil, nil, fmt.Errorf("%w: repeated add to %s at ordinal %d", model.ErrInvariantViolation, key, ordinal)
	}

	// A value already stored at height before this writer touched it comes
	// from an earlier run of the same block; it is rebuilt, not added to.
	var old *big.Int
	if _, touched := w.last[key]; touched {
		v, _ := w.tx.Get(key)
		old = model.DecodeSignedBigInt(v)
	} else {
		old = latestBefore(w.tx, token, componentID, height)
	}
	updated := new(big.Int).Add(old, delta)
	w.tx.Set(key, model.EncodeSignedBigInt(updated))
	w.last[key] = pos
	return key, old, updated, nil
}

// BalanceReader is the read-only view of balance keys.
type BalanceReader struct {
	tx *Tx
}

// BalanceReader returns the read capability over balance keys.
func (tx *Tx) BalanceReader() BalanceReader {
	return BalanceReader{tx: tx}
}

// At returns the accumulated balance written exactly at height.
func (r BalanceReader) At(token common.Address, componentID []byte, height uint64) (*big.Int, bool) {
	v, ok := r.tx.Get(BalanceKey(token, componentID, height))
	if !ok {
		return nil, false
	}
	return model.DecodeSignedBigInt(v), true
}

// Latest returns the balance at the highest written height.
func (r BalanceReader) Latest(token common.Address, componentID []byte) (*big.Int, uint64, bool) {
	var (
		best  uint64
		value []byte
		found bool
	)
	prefix := balanceKeyPrefix(token, componentID)
	r.tx.Iterate(prefix, func(key string, v []byte) bool {
		h, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			return true
		}
		if !found || h > best {
			best, value, found = h, v, true
		}
		return true
	})
	if !found {
		return nil, 0, false
	}
	return model.DecodeSignedBigInt(value), best, true
}

// latestBefore seeds a first write at height. Decimal heights of equal
// length sort numerically, so for each digit count the first key of that
// length found scanning down from the bound is the largest one; longer
// counts are tried first.
func latestBefore(tx *Tx, token common.Address, componentID []byte, height uint64) *big.Int {
	prefix := balanceKeyPrefix(token, componentID)
	target := strconv.FormatUint(height, 10)
	for digits := len(target); digits > 0; digits-- {
		upper := prefix + target
		if digits < len(target) {
			upper = prefix + strings.Repeat("9", digits) + "\x00"
		}
		var (
			value []byte
			found bool
		)
		tx.ReverseIterate(prefix, upper, func(key string, v []byte) bool {
			if len(key)-len(prefix) != digits {
				return true
			}
			value, found = v, true
			return false
		})
		if found {
			return model.DecodeSignedBigInt(value)
		}
	}
	return new(big.Int)
}
