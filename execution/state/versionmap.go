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
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tidwall/btree"
)

type ReadStatus int

const (
	MVReadResultDone ReadStatus = iota
	MVReadResultDependency
	MVReadResultNone
	MVReadResultResolved
	MVReadResultUnresolved
	MVReadResultDeltaFailure
)

func (s ReadStatus) String() string {
	switch s {
	case MVReadResultDone:
		return "done"
	case MVReadResultDependency:
		return "dependency"
	case MVReadResultNone:
		return "none"
	case MVReadResultResolved:
		return "resolved"
	case MVReadResultUnresolved:
		return "unresolved"
	case MVReadResultDeltaFailure:
		return "delta-failure"
	default:
		return fmt.Sprintf("ReadStatus(%d)", int(s))
	}
}

const FlagDone = 0
const FlagEstimate = 1

type cell struct {
	txIdx       int
	incarnation int
	flag        uint
	op          WriteOp
}

func cellLess(a, b *cell) bool {
	return a.txIdx < b.txIdx
}

type versionedCells struct {
	sync.RWMutex
	tm *btree.BTreeG[*cell]
}

func newVersionedCells() *versionedCells {
	return &versionedCells{tm: btree.NewBTreeGOptions(cellLess, btree.Options{NoLocks: true})}
}

// ReadResult is the outcome of reading a key at a transaction index.
type ReadResult struct {
	status      ReadStatus
	depIdx      int
	incarnation int
	op          WriteOp
	value       []byte
	deltas      []Delta
	err         error
}

func (res ReadResult) Status() ReadStatus {
	return res.status
}

// DepIdx is the writer of the observed entry, or the blocking transaction for a dependency.
// It is -1 when the read was served by storage.
func (res ReadResult) DepIdx() int {
	return res.depIdx
}

func (res ReadResult) Incarnation() int {
	return res.incarnation
}

// Op is the write observed by a MVReadResultDone read.
func (res ReadResult) Op() WriteOp {
	return res.op
}

// Value is the materialized aggregator value of a MVReadResultResolved read.
func (res ReadResult) Value() []byte {
	return res.value
}

// Deltas returns the pending deltas, oldest first, of a MVReadResultUnresolved read.
func (res ReadResult) Deltas() []Delta {
	return res.deltas
}

func (res ReadResult) Err() error {
	return res.err
}

// VersionMap is the multi-version store shared by all workers of a block.
// Each key carries its own lock so contention is limited to transactions
// touching the same key.
type VersionMap struct {
	s *xsync.MapOf[StateKey, *versionedCells]
}

func NewVersionMap() *VersionMap {
	return &VersionMap{s: xsync.NewMapOf[StateKey, *versionedCells]()}
}

func (vm *VersionMap) getKeyCells(k StateKey, create bool) *versionedCells {
	if cells, ok := vm.s.Load(k); ok || !create {
		return cells
	}
	cells, _ := vm.s.LoadOrStore(k, newVersionedCells())
	return cells
}

// Write stores the effect of incarnation v on k, replacing any entry
// previously written at v.TxIndex. Writing an older incarnation over a
// newer one is a programming error.
func (vm *VersionMap) Write(k StateKey, v Version, op WriteOp) {
	cells := vm.getKeyCells(k, true)

	cells.Lock()
	defer cells.Unlock()

	if ci, ok := cells.tm.Get(&cell{txIdx: v.TxIndex}); ok {
		if ci.incarnation > v.Incarnation {
			panic(fmt.Errorf("existing transaction value does not have lower incarnation: %s, %s",
				k, v))
		}
		ci.flag = FlagDone
		ci.incarnation = v.Incarnation
		ci.op = op
		return
	}

	cells.tm.Set(&cell{txIdx: v.TxIndex, incarnation: v.Incarnation, flag: FlagDone, op: op})
}

// MarkEstimate flags the entry of txIdx on k as pending so that readers
// report a dependency instead of consuming a value about to be replaced.
func (vm *VersionMap) MarkEstimate(k StateKey, txIdx int) {
	cells := vm.getKeyCells(k, false)
	if cells == nil {
		panic(fmt.Errorf("path must already exist: %s", k))
	}

	cells.Lock()
	defer cells.Unlock()

	if ci, ok := cells.tm.Get(&cell{txIdx: txIdx}); !ok {
		panic(fmt.Errorf("should not happen - cell should be present for path: %s", k))
	} else {
		ci.flag = FlagEstimate
	}
}

// Delete removes the entry of txIdx on k. It is used when a new incarnation
// no longer writes a key its predecessor wrote.
func (vm *VersionMap) Delete(k StateKey, txIdx int) {
	cells := vm.getKeyCells(k, false)
	if cells == nil {
		return
	}

	cells.Lock()
	defer cells.Unlock()

	cells.tm.Delete(&cell{txIdx: txIdx})
}

// Read returns the effect on k of the closest transaction below txIdx.
// Deltas found on the way down are resolved against the first full value
// below them, or returned unresolved when they reach storage.
func (vm *VersionMap) Read(k StateKey, txIdx int) (res ReadResult) {
	res.depIdx = -1
	res.incarnation = -1
	res.status = MVReadResultNone

	cells := vm.getKeyCells(k, false)
	if cells == nil {
		return
	}

	cells.RLock()
	defer cells.RUnlock()

	// pending deltas, newest transaction first
	var pending [][]Delta
	found := false

	cells.tm.Descend(&cell{txIdx: txIdx - 1}, func(c *cell) bool {
		found = true
		if c.flag == FlagEstimate {
			res.status = MVReadResultDependency
			res.depIdx = c.txIdx
			res.incarnation = c.incarnation
			return false
		}

		if c.op.Kind == WriteDelta {
			pending = append(pending, c.op.Deltas)
			return true
		}

		res.depIdx = c.txIdx
		res.incarnation = c.incarnation

		if len(pending) == 0 {
			res.status = MVReadResultDone
			res.op = c.op
			return false
		}

		var base []byte
		if c.op.Kind == WriteValue {
			base = c.op.Value
		}

		value, err := ResolveDeltas(base, flattenDeltas(pending))
		if err != nil {
			res.status = MVReadResultDeltaFailure
			res.err = err
			return false
		}

		res.status = MVReadResultResolved
		res.value = value
		return false
	})

	if !found {
		return
	}

	if res.status == MVReadResultNone {
		res.status = MVReadResultUnresolved
		res.deltas = flattenDeltas(pending)
	}

	return
}

func flattenDeltas(pending [][]Delta) []Delta {
	var n int
	for _, ds := range pending {
		n += len(ds)
	}
	out := make([]Delta, 0, n)
	for i := len(pending) - 1; i >= 0; i-- {
		out = append(out, pending[i]...)
	}
	return out
}

func (vm *VersionMap) FlushVersionedWrites(writes VersionedWrites) {
	for _, v := range writes {
		vm.Write(v.Path, v.V, v.Op)
	}
}

// Keys returns every key with at least one entry.
func (vm *VersionMap) Keys() []StateKey {
	keys := make([]StateKey, 0, vm.s.Size())
	vm.s.Range(func(k StateKey, _ *versionedCells) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
