// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"github.com/google/btree"
)

// StateReader is the read-only pre-block snapshot.
type StateReader interface {
	// Get returns the value of key and whether it exists.
	Get(key StateKey) ([]byte, bool, error)
}

type kvItem struct {
	key   StateKey
	value []byte
}

func kvItemLess(a, b kvItem) bool {
	return a.key < b.key
}

// MemoryState is an in-memory ordered key value snapshot. Readers may use
// it concurrently as long as nobody writes to it; Apply returns a new
// snapshot sharing unchanged nodes with the old one.
type MemoryState struct {
	tree *btree.BTreeG[kvItem]
}

func NewMemoryState() *MemoryState {
	return &MemoryState{tree: btree.NewG[kvItem](32, kvItemLess)}
}

func NewMemoryStateFrom(kvs map[StateKey][]byte) *MemoryState {
	ms := NewMemoryState()
	for k, v := range kvs {
		ms.Set(k, v)
	}
	return ms
}

func (ms *MemoryState) Get(key StateKey) ([]byte, bool, error) {
	item, ok := ms.tree.Get(kvItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set is only safe while the snapshot is still being built.
func (ms *MemoryState) Set(key StateKey, value []byte) {
	ms.tree.ReplaceOrInsert(kvItem{key: key, value: value})
}

func (ms *MemoryState) Len() int {
	return ms.tree.Len()
}

// Apply returns a copy of ms with the materialized writes applied. Delta
// writes are not accepted here and must be resolved first.
func (ms *MemoryState) Apply(writes []VersionedWrite) (*MemoryState, error) {
	next := &MemoryState{tree: ms.tree.Clone()}
	for _, w := range writes {
		switch w.Op.Kind {
		case WriteValue:
			next.tree.ReplaceOrInsert(kvItem{key: w.Path, value: w.Op.Value})
		case WriteDeletion:
			next.tree.Delete(kvItem{key: w.Path})
		default:
			return nil, fmt.Errorf("unmaterialized %s write to %s by tx %d", w.Op.Kind, w.Path, w.V.TxIndex)
		}
	}
	return next, nil
}

// Range calls f for every key in order until f returns false.
func (ms *MemoryState) Range(f func(key StateKey, value []byte) bool) {
	ms.tree.Ascend(func(item kvItem) bool {
		return f(item.key, item.value)
	})
}

// Equal reports whether both snapshots hold the same keys and values.
func (ms *MemoryState) Equal(other *MemoryState) bool {
	if ms.Len() != other.Len() {
		return false
	}
	equal := true
	ms.Range(func(key StateKey, value []byte) bool {
		v, ok, _ := other.Get(key)
		equal = ok && bytes.Equal(v, value)
		return equal
	})
	return equal
}

type cachedValue struct {
	value []byte
	ok    bool
}

func hashStateKey(k StateKey) uint32 {
	return uint32(xxhash.Sum64String(string(k)))
}

// CachedReader is a wrapper for an instance of type StateReader
// This wrapper only makes calls to the underlying reader if the item is not in the cache
type CachedReader struct {
	r     StateReader
	cache *freelru.SyncedLRU[StateKey, cachedValue]
}

// NewCachedReader wraps a given state reader into the cached reader
func NewCachedReader(r StateReader, size uint32) (*CachedReader, error) {
	cache, err := freelru.NewSynced[StateKey, cachedValue](size, hashStateKey)
	if err != nil {
		return nil, err
	}
	return &CachedReader{r: r, cache: cache}, nil
}

func (cr *CachedReader) Get(key StateKey) ([]byte, bool, error) {
	if v, ok := cr.cache.Get(key); ok {
		return v.value, v.ok, nil
	}
	v, ok, err := cr.r.Get(key)
	if err != nil {
		return nil, false, err
	}
	cr.cache.Add(key, cachedValue{value: v, ok: ok})
	return v, ok, nil
}

// HitRatio reports the share of lookups served from the cache.
func (cr *CachedReader) HitRatio() float64 {
	m := cr.cache.Metrics()
	if m.Hits+m.Misses == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Hits+m.Misses)
}
