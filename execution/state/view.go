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

	"github.com/holiman/uint256"
)

// ModuleCache is the cross-block code cache consulted for modules that no
// transaction of the current block has written. version is the cache
// generation observed by Get and must be handed back to Put so that code
// loaded before an invalidation is never served after it.
type ModuleCache interface {
	Get(id ModuleID) (code []byte, version uint64, ok bool)
	Put(id ModuleID, code []byte, version uint64)
}

type writeBuffer struct {
	ops       map[StateKey]*WriteOp
	order     []StateKey
	published []ModuleID
}

func (b *writeBuffer) set(k StateKey, op WriteOp) {
	if b.ops == nil {
		b.ops = map[StateKey]*WriteOp{}
	}
	if cur, ok := b.ops[k]; ok {
		*cur = op
		return
	}
	b.ops[k] = &op
	b.order = append(b.order, k)
}

func (b *writeBuffer) addDelta(k StateKey, d Delta) error {
	cur, ok := b.ops[k]
	if !ok {
		b.set(k, DeltaOp(d))
		return nil
	}

	switch cur.Kind {
	case WriteDelta:
		cur.Deltas = append(cur.Deltas, d)
	default:
		v, err := ResolveDeltas(cur.Value, []Delta{d})
		if err != nil {
			return err
		}
		*cur = ValueOp(v)
	}
	return nil
}

// get serves a read from the transaction's own writes. handled is false
// when the transaction has not touched k.
func (b *writeBuffer) get(k StateKey, shared func() ([]byte, bool, error)) (v []byte, ok bool, handled bool, err error) {
	op, found := b.ops[k]
	if !found {
		return nil, false, false, nil
	}

	switch op.Kind {
	case WriteValue:
		return op.Value, true, true, nil
	case WriteDeletion:
		return nil, false, true, nil
	default:
		base, _, err := shared()
		if err != nil {
			return nil, false, true, err
		}
		v, err := ResolveDeltas(base, op.Deltas)
		if err != nil {
			return nil, false, true, err
		}
		return v, true, true, nil
	}
}

func (b *writeBuffer) versionedWrites(v Version) VersionedWrites {
	if len(b.order) == 0 {
		return nil
	}
	writes := make(VersionedWrites, 0, len(b.order))
	for _, k := range b.order {
		writes = append(writes, VersionedWrite{Path: k, V: v, Op: *b.ops[k]})
	}
	return writes
}

type readEntry struct {
	value []byte
	ok    bool
	err   error
}

// VersionedStateView is the state seen by one incarnation of one
// transaction. Reads go through the transaction's own writes, then the
// block's VersionMap, then storage; the first observation of every key is
// recorded for validation and repeated reads return the same value.
//
// Without a VersionMap the view reads storage directly and records
// nothing, which is how transactions run sequentially.
type VersionedStateView struct {
	version    Version
	versionMap *VersionMap
	base       StateReader
	modules    ModuleCache

	reads  map[StateKey]readEntry
	rs     VersionedReads
	writes writeBuffer

	dep         int
	speculative bool
}

func NewVersionedStateView(v Version, versionMap *VersionMap, base StateReader, modules ModuleCache) *VersionedStateView {
	return &VersionedStateView{
		version:    v,
		versionMap: versionMap,
		base:       base,
		modules:    modules,
		reads:      map[StateKey]readEntry{},
		dep:        -1,
	}
}

func (s *VersionedStateView) Version() Version {
	return s.version
}

// Dependency is the transaction a read was blocked on, or -1.
func (s *VersionedStateView) Dependency() int {
	return s.dep
}

// HadInvalidRead reports whether a read hit an estimate or an inconsistent
// aggregator, in which case the result of the incarnation is discarded
// whatever the VM made of the failed read.
func (s *VersionedStateView) HadInvalidRead() bool {
	return s.dep >= 0 || s.speculative
}

func (s *VersionedStateView) SpeculativeFailure() bool {
	return s.speculative
}

func (s *VersionedStateView) VersionedReads() VersionedReads {
	return s.rs
}

func (s *VersionedStateView) VersionedWrites() VersionedWrites {
	return s.writes.versionedWrites(s.version)
}

func (s *VersionedStateView) PublishedModules() []ModuleID {
	return s.writes.published
}

func (s *VersionedStateView) readStorage(k StateKey) func() ([]byte, bool, error) {
	return func() ([]byte, bool, error) {
		return s.base.Get(k)
	}
}

func (s *VersionedStateView) readModuleStorage(id ModuleID) func() ([]byte, bool, error) {
	return func() ([]byte, bool, error) {
		if s.modules == nil {
			return s.base.Get(ModuleKey(id))
		}
		code, version, ok := s.modules.Get(id)
		if ok {
			return code, true, nil
		}
		code, ok, err := s.base.Get(ModuleKey(id))
		if err != nil || !ok {
			return code, ok, err
		}
		s.modules.Put(id, code, version)
		return code, true, nil
	}
}

func (s *VersionedStateView) versionedRead(k StateKey, readStorage func() ([]byte, bool, error)) ([]byte, bool, error) {
	if e, ok := s.reads[k]; ok {
		return e.value, e.ok, e.err
	}

	if s.versionMap == nil {
		v, ok, err := readStorage()
		if err == nil {
			s.reads[k] = readEntry{value: v, ok: ok}
		}
		return v, ok, err
	}

	if s.dep >= 0 {
		return nil, false, ErrExecAbortError{DependencyTxIndex: s.dep}
	}

	res := s.versionMap.Read(k, s.version.TxIndex)

	var e readEntry
	var vr = VersionedRead{
		V: Version{
			TxIndex:     res.DepIdx(),
			Incarnation: res.Incarnation(),
		},
		Path: k,
	}

	switch res.Status() {
	case MVReadResultDone:
		vr.Kind = ReadKindMap
		if op := res.Op(); op.Kind == WriteValue {
			e = readEntry{value: op.Value, ok: true}
		}
	case MVReadResultDependency:
		s.dep = res.DepIdx()
		return nil, false, ErrExecAbortError{DependencyTxIndex: s.dep}
	case MVReadResultNone:
		v, ok, err := readStorage()
		if err != nil {
			return nil, false, err
		}
		vr.Kind = ReadKindStorage
		e = readEntry{value: v, ok: ok}
	case MVReadResultResolved:
		vr.Kind = ReadKindResolved
		vr.Resolved = res.Value()
		e = readEntry{value: res.Value(), ok: true}
	case MVReadResultUnresolved:
		base, _, err := readStorage()
		if err != nil {
			return nil, false, err
		}
		v, err := ResolveDeltas(base, res.Deltas())
		if err != nil {
			vr.Kind = ReadKindDeltaFailure
			s.speculative = true
			e = readEntry{err: fmt.Errorf("%w: %w", ErrSpeculativeRead, err)}
		} else {
			vr.Kind = ReadKindResolved
			vr.Resolved = v
			e = readEntry{value: v, ok: true}
		}
	case MVReadResultDeltaFailure:
		vr.Kind = ReadKindDeltaFailure
		s.speculative = true
		e = readEntry{err: fmt.Errorf("%w: %w", ErrSpeculativeRead, res.Err())}
	}

	s.reads[k] = e
	s.rs = append(s.rs, vr)

	return e.value, e.ok, e.err
}

// Get returns the value of k and whether it exists.
func (s *VersionedStateView) Get(k StateKey) ([]byte, bool, error) {
	shared := func() ([]byte, bool, error) { return s.versionedRead(k, s.readStorage(k)) }
	if v, ok, handled, err := s.writes.get(k, shared); handled {
		return v, ok, err
	}
	return shared()
}

func (s *VersionedStateView) Has(k StateKey) (bool, error) {
	_, ok, err := s.Get(k)
	return ok, err
}

func (s *VersionedStateView) Put(k StateKey, v []byte) {
	s.writes.set(k, ValueOp(bytes.Clone(v)))
}

func (s *VersionedStateView) Delete(k StateKey) {
	s.writes.set(k, DeletionOp())
}

// AddDelta defers d until commit unless the transaction already holds a
// concrete value for k, in which case it is applied at once.
func (s *VersionedStateView) AddDelta(k StateKey, d Delta) error {
	return s.writes.addDelta(k, d)
}

func (s *VersionedStateView) GetAggregator(k StateKey) (uint256.Int, error) {
	v, _, err := s.Get(k)
	if err != nil {
		return uint256.Int{}, err
	}
	return DecodeAggregator(v)
}

// Module returns the code published under id.
func (s *VersionedStateView) Module(id ModuleID) ([]byte, bool, error) {
	k := ModuleKey(id)
	shared := func() ([]byte, bool, error) { return s.versionedRead(k, s.readModuleStorage(id)) }
	if v, ok, handled, err := s.writes.get(k, shared); handled {
		return v, ok, err
	}
	return shared()
}

func (s *VersionedStateView) PublishModule(id ModuleID, code []byte) {
	s.Put(ModuleKey(id), code)
	for _, p := range s.writes.published {
		if p == id {
			return
		}
	}
	s.writes.published = append(s.writes.published, id)
}
