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
	"slices"
	"strings"
)

// OverlayState is the committed state of a block in progress: the writes
// of every committed transaction layered over the pre-block snapshot. It
// is owned by a single committer and is not safe for concurrent use.
type OverlayState struct {
	base      StateReader
	committed map[StateKey]VersionedWrite
}

func NewOverlayState(base StateReader) *OverlayState {
	return &OverlayState{base: base, committed: map[StateKey]VersionedWrite{}}
}

func (o *OverlayState) Get(k StateKey) ([]byte, bool, error) {
	if w, ok := o.committed[k]; ok {
		if w.Op.Kind == WriteDeletion {
			return nil, false, nil
		}
		return w.Op.Value, true, nil
	}
	return o.base.Get(k)
}

// Materialize resolves the delta writes of a transaction against the
// committed state. Value and deletion writes are returned unchanged.
func (o *OverlayState) Materialize(writes VersionedWrites) (VersionedWrites, error) {
	var out VersionedWrites
	for i, w := range writes {
		if w.Op.Kind != WriteDelta {
			continue
		}
		if out == nil {
			out = slices.Clone(writes)
		}
		base, _, err := o.Get(w.Path)
		if err != nil {
			return nil, err
		}
		v, err := ResolveDeltas(base, w.Op.Deltas)
		if err != nil {
			return nil, fmt.Errorf("materializing %s of tx %d: %w", w.Path, w.V.TxIndex, err)
		}
		out[i].Op = ValueOp(v)
	}
	if out == nil {
		return writes, nil
	}
	return out, nil
}

// Apply commits materialized writes.
func (o *OverlayState) Apply(writes VersionedWrites) error {
	for _, w := range writes {
		if w.Op.Kind == WriteDelta {
			return fmt.Errorf("unmaterialized delta write to %s by tx %d", w.Path, w.V.TxIndex)
		}
	}
	for _, w := range writes {
		o.committed[w.Path] = w
	}
	return nil
}

// Writes returns the latest committed write of every key, ordered by key.
func (o *OverlayState) Writes() VersionedWrites {
	writes := make(VersionedWrites, 0, len(o.committed))
	for _, w := range o.committed {
		writes = append(writes, w)
	}
	slices.SortFunc(writes, func(a, b VersionedWrite) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})
	return writes
}
