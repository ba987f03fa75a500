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

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDeltaApply(t *testing.T) {
	base := uint256.NewInt(10)

	res, err := AddDelta(5, 20).Apply(base)
	require.NoError(t, err)
	require.Equal(t, uint64(15), res.Uint64())

	_, err = AddDelta(11, 20).Apply(base)
	require.ErrorIs(t, err, ErrDeltaOverflow)

	res, err = AddDelta(11, 0).Apply(base)
	require.NoError(t, err)
	require.Equal(t, uint64(21), res.Uint64())

	res, err = SubDelta(10).Apply(base)
	require.NoError(t, err)
	require.True(t, res.IsZero())

	_, err = SubDelta(11).Apply(base)
	require.ErrorIs(t, err, ErrDeltaUnderflow)

	var maxV uint256.Int
	maxV.SetAllOne()
	_, err = AddDelta(1, 0).Apply(&maxV)
	require.ErrorIs(t, err, ErrDeltaOverflow)
}

func TestResolveDeltas(t *testing.T) {
	v, err := ResolveDeltas(nil, []Delta{AddDelta(3, 0), SubDelta(1)})
	require.NoError(t, err)
	require.Len(t, v, AggregatorLength)

	decoded, err := DecodeAggregator(v)
	require.NoError(t, err)
	require.Equal(t, uint64(2), decoded.Uint64())

	_, err = ResolveDeltas(nil, []Delta{SubDelta(1), AddDelta(3, 0)})
	require.ErrorIs(t, err, ErrDeltaUnderflow)

	_, err = DecodeAggregator(make([]byte, 33))
	require.ErrorIs(t, err, ErrAggregatorFormat)
}

func TestDeltaString(t *testing.T) {
	require.Equal(t, "+5(<=20)", AddDelta(5, 20).String())
	require.Equal(t, "-7", SubDelta(7).String())
}
