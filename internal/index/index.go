package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Index is the persistent key-value index shared by the pipeline stages.
// Writes are staged per block in a Tx and become visible to later blocks
// only after Commit.
type Index struct {
	backend Backend

	mu   sync.Mutex
	open bool
}

// Open opens a LevelDB backed index at path. An empty path yields an
// in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		return NewMemory(), nil
	}
	backend, err := newLevelDbBackend(path)
	if err != nil {
		return nil, fmt.Errorf("open leveldb index: %w", err)
	}
	return New(backend), nil
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Index {
	return New(newMemoryBackend())
}

// New wraps a backend.
func New(backend Backend) *Index {
	return &Index{backend: backend}
}

// Close releases the backend.
func (ix *Index) Close() error {
	return ix.backend.Close()
}

// Begin opens the block transaction. Only one transaction may be open at a
// time; blocks are processed strictly in order.
func (ix *Index) Begin() (*Tx, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.open {
		return nil, errors.New("index transaction already open")
	}
	ix.open = true
	return &Tx{
		index:   ix,
		overlay: make(map[string][]byte),
	}, nil
}

func (ix *Index) release() {
	ix.mu.Lock()
	ix.open = false
	ix.mu.Unlock()
}

// Tx stages the writes of one block.
type Tx struct {
	index   *Index
	overlay map[string][]byte
	order   []string
	err     error
	done    bool
}

// Get returns the value for key, checking staged writes first.
func (tx *Tx) Get(key string) ([]byte, bool) {
	if v, ok := tx.overlay[key]; ok {
		return v, true
	}
	v, err := tx.index.backend.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			tx.setErr(fmt.Errorf("get %s: %w", key, err))
		}
		return nil, false
	}
	return v, true
}

// Set stages a write.
func (tx *Tx) Set(key string, value []byte) {
	if _, ok := tx.overlay[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.overlay[key] = append([]byte(nil), value...)
}

// Iterate visits every key under prefix, merging staged and committed
// entries, in ascending key order.
func (tx *Tx) Iterate(prefix string, fn func(key string, value []byte) bool) {
	merged := make(map[string][]byte)
	err := tx.index.backend.Iterate([]byte(prefix), func(k, v []byte) bool {
		merged[string(k)] = append([]byte(nil), v...)
		return true
	})
	if err != nil {
		tx.setErr(fmt.Errorf("iterate %s: %w", prefix, err))
		return
	}
	for k, v := range tx.overlay {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, merged[k]) {
			return
		}
	}
}

// ReverseIterate visits keys under prefix that sort strictly below upper,
// merging staged and committed entries, in descending key order.
func (tx *Tx) ReverseIterate(prefix, upper string, fn func(key string, value []byte) bool) {
	var staged []string
	for k := range tx.overlay {
		if strings.HasPrefix(k, prefix) && k < upper {
			staged = append(staged, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(staged)))

	stopped := false
	err := tx.index.backend.ReverseIterate([]byte(prefix), []byte(upper), func(k, v []byte) bool {
		key := string(k)
		for len(staged) > 0 && staged[0] >= key {
			head := staged[0]
			staged = staged[1:]
			if !fn(head, tx.overlay[head]) {
				stopped = true
				return false
			}
			if head == key {
				return true
			}
		}
		if !fn(key, v) {
			stopped = true
			return false
		}
		return true
	})
	if err != nil {
		tx.setErr(fmt.Errorf("reverse iterate %s: %w", prefix, err))
		return
	}
	if stopped {
		return
	}
	for _, k := range staged {
		if !fn(k, tx.overlay[k]) {
			return
		}
	}
}

// Err returns the first backend error observed by the transaction.
func (tx *Tx) Err() error {
	return tx.err
}

// Commit flushes staged writes atomically in write order.
func (tx *Tx) Commit() error {
	if tx.done {
		return errors.New("index transaction already finished")
	}
	tx.done = true
	defer tx.index.release()

	if tx.err != nil {
		return tx.err
	}
	entries := make([]Entry, 0, len(tx.order))
	for _, k := range tx.order {
		entries = append(entries, Entry{Key: []byte(k), Value: tx.overlay[k]})
	}
	if err := tx.index.backend.Write(entries); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Discard drops every staged write. Safe to call after Commit.
func (tx *Tx) Discard() {
	if tx.done {
		return
	}
	tx.done = true
	tx.overlay = nil
	tx.order = nil
	tx.index.release()
}

func (tx *Tx) setErr(err error) {
	if tx.err == nil {
		tx.err = err
	}
}
