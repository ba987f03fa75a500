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

// Package codecache keeps loaded modules across blocks. Every module has a
// version in an immutable snapshot that is swapped atomically when the
// module is republished; cached code is only served while its version is
// current, so readers see either the old or the new code and never a mix.
package codecache

import (
	"maps"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-blockstm/common/metrics"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

var (
	cacheHits          = metrics.GetOrCreateCounter(`codecache_lookups{result="hit"}`)
	cacheMisses        = metrics.GetOrCreateCounter(`codecache_lookups{result="miss"}`)
	cacheInvalidations = metrics.GetOrCreateCounter("codecache_invalidations")
)

// Guard is the handle the block executor uses to reach the code cache.
type Guard interface {
	state.ModuleCache
	// InvalidateOnPublish drops the cached code of ids and bumps their
	// versions so that loads started earlier cannot repopulate it.
	InvalidateOnPublish(ids ...state.ModuleID)
	Snapshot() *Snapshot
}

// Snapshot is an immutable view of module versions.
type Snapshot struct {
	generation uint64
	versions   map[state.ModuleID]uint64
}

func (s *Snapshot) Generation() uint64 {
	return s.generation
}

func (s *Snapshot) Version(id state.ModuleID) uint64 {
	return s.versions[id]
}

type entry struct {
	code    []byte
	version uint64
}

type Cache struct {
	entries  *lru.Cache[state.ModuleID, entry]
	snapshot atomic.Pointer[Snapshot]
	mu       sync.Mutex
}

var _ Guard = (*Cache)(nil)

func New(size int) (*Cache, error) {
	entries, err := lru.New[state.ModuleID, entry](size)
	if err != nil {
		return nil, err
	}
	c := &Cache{entries: entries}
	c.snapshot.Store(&Snapshot{versions: map[state.ModuleID]uint64{}})
	return c, nil
}

func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

func (c *Cache) Get(id state.ModuleID) ([]byte, uint64, bool) {
	version := c.Snapshot().Version(id)
	if e, ok := c.entries.Get(id); ok && e.version == version {
		cacheHits.Inc()
		return e.code, version, true
	}
	cacheMisses.Inc()
	return nil, version, false
}

// Put stores code loaded while version was current. Stale loads are ignored.
func (c *Cache) Put(id state.ModuleID, code []byte, version uint64) {
	if c.Snapshot().Version(id) != version {
		return
	}
	c.entries.Add(id, entry{code: code, version: version})
}

func (c *Cache) InvalidateOnPublish(ids ...state.ModuleID) {
	if len(ids) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.Snapshot()
	next := &Snapshot{generation: prev.generation + 1, versions: maps.Clone(prev.versions)}
	for _, id := range ids {
		next.versions[id]++
	}
	c.snapshot.Store(next)

	for _, id := range ids {
		c.entries.Remove(id)
	}
	cacheInvalidations.AddInt(len(ids))
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
