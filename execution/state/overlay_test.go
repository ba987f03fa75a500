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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayMaterialize(t *testing.T) {
	overlay := NewOverlayState(NewMemoryStateFrom(map[StateKey][]byte{"c": aggr(3)}))

	writes := VersionedWrites{
		{Path: "c", V: Version{TxIndex: 0}, Op: DeltaOp(AddDelta(4, 0))},
		{Path: "x", V: Version{TxIndex: 0}, Op: val("x")},
	}
	out, err := overlay.Materialize(writes)
	require.NoError(t, err)
	require.Equal(t, WriteDelta, writes[0].Op.Kind, "input is left untouched")
	require.Equal(t, ValueOp(aggr(7)), out[0].Op)

	require.Error(t, overlay.Apply(writes))
	require.NoError(t, overlay.Apply(out))

	v, ok, err := overlay.Get("c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, aggr(7), v)

	_, err = overlay.Materialize(VersionedWrites{{Path: "c", Op: DeltaOp(SubDelta(8))}})
	require.ErrorIs(t, err, ErrDeltaUnderflow)

	plain := VersionedWrites{{Path: "y", Op: DeletionOp()}}
	out, err = overlay.Materialize(plain)
	require.NoError(t, err)
	require.Equal(t, plain, out)
	require.NoError(t, overlay.Apply(out))

	_, ok, err = overlay.Get("y")
	require.NoError(t, err)
	require.False(t, ok)

	keys := []StateKey{}
	for _, w := range overlay.Writes() {
		keys = append(keys, w.Path)
	}
	require.Equal(t, []StateKey{"c", "x", "y"}, keys)
}
