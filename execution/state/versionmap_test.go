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
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func val(s string) WriteOp {
	return ValueOp([]byte(s))
}

func aggr(v uint64) []byte {
	return EncodeAggregator(uint256.NewInt(v))
}

func TestVersionMapReadWrite(t *testing.T) {
	vm := NewVersionMap()
	k := StateKey("k")

	res := vm.Read(k, 5)
	require.Equal(t, MVReadResultNone, res.Status())
	require.Equal(t, -1, res.DepIdx())

	vm.Write(k, Version{TxIndex: 2, Incarnation: 0}, val("two"))
	vm.Write(k, Version{TxIndex: 4, Incarnation: 1}, val("four"))

	res = vm.Read(k, 2)
	require.Equal(t, MVReadResultNone, res.Status(), "a transaction never observes its own entry")

	res = vm.Read(k, 3)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, 2, res.DepIdx())
	require.Equal(t, 0, res.Incarnation())
	require.Equal(t, []byte("two"), res.Op().Value)

	res = vm.Read(k, 10)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, 4, res.DepIdx())
	require.Equal(t, 1, res.Incarnation())

	vm.Write(k, Version{TxIndex: 4, Incarnation: 2}, DeletionOp())
	res = vm.Read(k, 10)
	require.Equal(t, WriteDeletion, res.Op().Kind)
	require.Equal(t, 2, res.Incarnation())
}

func TestVersionMapLowerIncarnationPanics(t *testing.T) {
	vm := NewVersionMap()
	k := StateKey("k")
	vm.Write(k, Version{TxIndex: 1, Incarnation: 3}, val("a"))
	require.Panics(t, func() {
		vm.Write(k, Version{TxIndex: 1, Incarnation: 2}, val("b"))
	})
}

func TestVersionMapEstimate(t *testing.T) {
	vm := NewVersionMap()
	k := StateKey("k")
	vm.Write(k, Version{TxIndex: 1, Incarnation: 0}, val("a"))
	vm.Write(k, Version{TxIndex: 3, Incarnation: 0}, val("b"))

	vm.MarkEstimate(k, 3)

	res := vm.Read(k, 5)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 3, res.DepIdx())

	res = vm.Read(k, 3)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, 1, res.DepIdx())

	vm.Write(k, Version{TxIndex: 3, Incarnation: 1}, val("c"))
	res = vm.Read(k, 5)
	require.Equal(t, MVReadResultDone, res.Status())
	require.Equal(t, []byte("c"), res.Op().Value)

	require.Panics(t, func() { vm.MarkEstimate(StateKey("missing"), 1) })
	require.Panics(t, func() { vm.MarkEstimate(k, 2) })
}

func TestVersionMapDelete(t *testing.T) {
	vm := NewVersionMap()
	k := StateKey("k")
	vm.Write(k, Version{TxIndex: 1, Incarnation: 0}, val("a"))
	vm.Write(k, Version{TxIndex: 3, Incarnation: 0}, val("b"))

	vm.Delete(k, 3)
	res := vm.Read(k, 5)
	require.Equal(t, 1, res.DepIdx())

	vm.Delete(k, 1)
	require.Equal(t, MVReadResultNone, vm.Read(k, 5).Status())

	vm.Delete(StateKey("missing"), 1)
}

func TestVersionMapDeltaResolution(t *testing.T) {
	vm := NewVersionMap()
	k := StateKey("counter")

	vm.Write(k, Version{TxIndex: 2, Incarnation: 0}, DeltaOp(AddDelta(5, 0)))
	vm.Write(k, Version{TxIndex: 4, Incarnation: 0}, DeltaOp(AddDelta(1, 0), SubDelta(3)))

	res := vm.Read(k, 6)
	require.Equal(t, MVReadResultUnresolved, res.Status())
	require.Equal(t, []Delta{AddDelta(5, 0), AddDelta(1, 0), SubDelta(3)}, res.Deltas())

	resolved, err := ResolveDeltas(aggr(10), res.Deltas())
	require.NoError(t, err)
	require.Equal(t, aggr(13), resolved)

	vm.Write(k, Version{TxIndex: 1, Incarnation: 0}, ValueOp(aggr(7)))
	res = vm.Read(k, 6)
	require.Equal(t, MVReadResultResolved, res.Status())
	require.Equal(t, aggr(10), res.Value())
	require.Equal(t, 1, res.DepIdx())

	vm.Write(k, Version{TxIndex: 5, Incarnation: 0}, DeltaOp(SubDelta(100)))
	res = vm.Read(k, 6)
	require.Equal(t, MVReadResultDeltaFailure, res.Status())
	require.ErrorIs(t, res.Err(), ErrDeltaUnderflow)

	vm.MarkEstimate(k, 4)
	res = vm.Read(k, 6)
	require.Equal(t, MVReadResultDependency, res.Status())
	require.Equal(t, 4, res.DepIdx())

	res = vm.Read(k, 3)
	require.Equal(t, MVReadResultResolved, res.Status())
	require.Equal(t, aggr(12), res.Value())
}

func TestVersionMapConcurrentKeys(t *testing.T) {
	vm := NewVersionMap()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := StateKey(fmt.Sprintf("k%d", i%10))
				vm.Write(k, Version{TxIndex: w*100 + i, Incarnation: 0}, val("x"))
				vm.Read(k, w*100+i+1)
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, vm.Keys(), 10)
	for i := 0; i < 10; i++ {
		res := vm.Read(StateKey(fmt.Sprintf("k%d", i)), 1000)
		require.Equal(t, MVReadResultDone, res.Status())
		require.Equal(t, 790+i, res.DepIdx())
	}
}
