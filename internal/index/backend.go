package index

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by a Backend for a missing key.
var ErrNotFound = errors.New("not found")

// Backend is the durable key-value store behind the index.
type Backend interface {
	Get(key []byte) ([]byte, error)
	// Iterate visits keys with the given prefix in ascending order until fn
	// returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	// ReverseIterate visits keys with the given prefix that sort strictly
	// below upper, in descending order, until fn returns false.
	ReverseIterate(prefix, upper []byte, fn func(key, value []byte) bool) error
	// Write applies all entries atomically.
	Write(entries []Entry) error
	Close() error
}

// Entry is one key-value pair of a committed batch.
type Entry struct {
	Key   []byte
	Value []byte
}

// levelDbBackend persists the index in a LevelDB directory.
type levelDbBackend struct {
	db *leveldb.DB
}

func newLevelDbBackend(path string) (*levelDbBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &levelDbBackend{db: db}, nil
}

func (b *levelDbBackend) Get(key []byte) ([]byte, error) {
	data, err := b.db.Get(key, &opt.ReadOptions{})
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *levelDbBackend) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (b *levelDbBackend) ReverseIterate(prefix, upper []byte, fn func(key, value []byte) bool) error {
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	var ok bool
	if iter.Seek(upper) {
		ok = iter.Prev()
	} else {
		ok = iter.Last()
	}
	for ; ok; ok = iter.Prev() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (b *levelDbBackend) Write(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, e := range entries {
		batch.Put(e.Key, e.Value)
	}
	return b.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (b *levelDbBackend) Close() error {
	return b.db.Close()
}

// memoryBackend keeps the index in memory. Used for tests and replay runs.
// keys is kept sorted so range scans do not touch the whole store.
type memoryBackend struct {
	mu    sync.RWMutex
	store map[string][]byte
	keys  []string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{store: make(map[string][]byte)}
}

func (b *memoryBackend) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.store[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (b *memoryBackend) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	p := string(prefix)
	b.mu.RLock()
	var keys []string
	for i := sort.SearchStrings(b.keys, p); i < len(b.keys) && strings.HasPrefix(b.keys[i], p); i++ {
		keys = append(keys, b.keys[i])
	}
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = b.store[k]
	}
	b.mu.RUnlock()

	for i, k := range keys {
		if !fn([]byte(k), values[i]) {
			break
		}
	}
	return nil
}

// ReverseIterate holds the read lock while fn runs; fn must not write.
func (b *memoryBackend) ReverseIterate(prefix, upper []byte, fn func(key, value []byte) bool) error {
	p := string(prefix)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := sort.SearchStrings(b.keys, string(upper)) - 1; i >= 0 && strings.HasPrefix(b.keys[i], p); i-- {
		if !fn([]byte(b.keys[i]), b.store[b.keys[i]]) {
			break
		}
	}
	return nil
}

func (b *memoryBackend) Write(entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		k := string(e.Key)
		if _, ok := b.store[k]; !ok {
			i := sort.SearchStrings(b.keys, k)
			b.keys = append(b.keys, "")
			copy(b.keys[i+1:], b.keys[i:])
			b.keys[i] = k
		}
		b.store[k] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (b *memoryBackend) Close() error {
	return nil
}
