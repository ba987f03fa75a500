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
	"errors"
	"sync/atomic"
)

const (
	ReadKindMap = iota
	ReadKindStorage
	ReadKindResolved
	ReadKindDeltaFailure
)

type VersionedRead struct {
	Path StateKey
	Kind int
	V    Version
	// Resolved holds the materialized aggregator value for ReadKindResolved
	Resolved []byte
}

type VersionedWrite struct {
	Path StateKey
	V    Version
	Op   WriteOp
}

type VersionedReads []VersionedRead
type VersionedWrites []VersionedWrite

// HasNewWrite returns true if the current set has a new write compared to the input
func (txo VersionedWrites) HasNewWrite(cmpSet []VersionedWrite) bool {
	if len(txo) == 0 {
		return false
	} else if len(cmpSet) == 0 || len(txo) > len(cmpSet) {
		return true
	}

	cmpMap := map[StateKey]bool{cmpSet[0].Path: true}

	for i := 1; i < len(cmpSet); i++ {
		cmpMap[cmpSet[i].Path] = true
	}

	for _, v := range txo {
		if !cmpMap[v.Path] {
			return true
		}
	}

	return false
}

// Missing returns the keys of prev that are no longer written by txo.
func (txo VersionedWrites) Missing(prev []VersionedWrite) []StateKey {
	if len(prev) == 0 {
		return nil
	}

	cmpMap := make(map[StateKey]bool, len(txo))
	for _, w := range txo {
		cmpMap[w.Path] = true
	}

	var missing []StateKey
	for _, v := range prev {
		if !cmpMap[v.Path] {
			missing = append(missing, v.Path)
		}
	}
	return missing
}

type writeSet struct {
	writes VersionedWrites
	set    map[StateKey]struct{}
}

// VersionedIO holds the read and write descriptors of the latest executed
// incarnation of every transaction in the block. Slots are swapped
// atomically so validators never observe a half recorded descriptor.
type VersionedIO struct {
	inputs  []atomic.Pointer[VersionedReads]
	outputs []atomic.Pointer[writeSet]
}

func NewVersionedIO(numTx int) *VersionedIO {
	return &VersionedIO{
		inputs:  make([]atomic.Pointer[VersionedReads], numTx),
		outputs: make([]atomic.Pointer[writeSet], numTx),
	}
}

func (io *VersionedIO) Len() int {
	return len(io.inputs)
}

func (io *VersionedIO) ReadSet(txnIdx int) VersionedReads {
	if rs := io.inputs[txnIdx].Load(); rs != nil {
		return *rs
	}
	return nil
}

func (io *VersionedIO) WriteSet(txnIdx int) VersionedWrites {
	if ws := io.outputs[txnIdx].Load(); ws != nil {
		return ws.writes
	}
	return nil
}

func (io *VersionedIO) HasWritten(txnIdx int, k StateKey) bool {
	ws := io.outputs[txnIdx].Load()
	if ws == nil {
		return false
	}
	_, ok := ws.set[k]
	return ok
}

func (io *VersionedIO) RecordRead(txId int, input VersionedReads) {
	io.inputs[txId].Store(&input)
}

func (io *VersionedIO) RecordWrite(txId int, output VersionedWrites) {
	ws := &writeSet{writes: output, set: make(map[StateKey]struct{}, len(output))}
	for _, v := range output {
		ws.set[v.Path] = struct{}{}
	}
	io.outputs[txId].Store(ws)
}

// ValidateVersion re-reads every key recorded for txIdx and reports whether
// each read would still observe the same thing. The VM is not involved;
// base is consulted only to re-materialize deltas that reach storage.
func ValidateVersion(txIdx int, lastIO *VersionedIO, versionedData *VersionMap, base StateReader) (valid bool) {
	valid = true

	for _, rd := range lastIO.ReadSet(txIdx) {
		mvResult := versionedData.Read(rd.Path, txIdx)
		switch mvResult.Status() {
		case MVReadResultDone:
			valid = rd.Kind == ReadKindMap && rd.V == (Version{
				TxIndex:     mvResult.DepIdx(),
				Incarnation: mvResult.Incarnation(),
			})
		case MVReadResultDependency:
			valid = false
		case MVReadResultNone:
			valid = rd.Kind == ReadKindStorage
		case MVReadResultResolved:
			valid = rd.Kind == ReadKindResolved && bytes.Equal(rd.Resolved, mvResult.Value())
		case MVReadResultUnresolved:
			value, err := resolveFromStorage(base, rd.Path, mvResult.Deltas())
			switch {
			case errors.Is(err, ErrDeltaOverflow), errors.Is(err, ErrDeltaUnderflow):
				valid = rd.Kind == ReadKindDeltaFailure
			case err != nil:
				valid = false
			default:
				valid = rd.Kind == ReadKindResolved && bytes.Equal(rd.Resolved, value)
			}
		case MVReadResultDeltaFailure:
			valid = rd.Kind == ReadKindDeltaFailure
		default:
			panic(errors.New("should not happen - undefined vm read status"))
		}

		if !valid {
			break
		}
	}

	return
}

// resolveFromStorage applies deltas on top of the base value of k.
func resolveFromStorage(base StateReader, k StateKey, deltas []Delta) ([]byte, error) {
	v, _, err := base.Get(k)
	if err != nil {
		return nil, err
	}
	return ResolveDeltas(v, deltas)
}
