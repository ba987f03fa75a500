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

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
)

func chainIO() *VersionedIO {
	io := NewVersionedIO(4)
	io.RecordWrite(0, VersionedWrites{{Path: "a"}})
	io.RecordRead(1, VersionedReads{{Path: "a"}})
	io.RecordWrite(1, VersionedWrites{{Path: "b"}})
	io.RecordRead(2, VersionedReads{{Path: "a"}, {Path: "b"}})
	io.RecordRead(3, VersionedReads{{Path: "z"}})
	return io
}

func TestGetDep(t *testing.T) {
	deps := GetDep(chainIO())

	require.True(t, deps[1].Contains(0))
	require.Equal(t, 1, deps[1].Cardinality())
	require.True(t, deps[2].Contains(1))
	require.False(t, deps[2].Contains(0), "transitive dependencies are dropped")
	require.Equal(t, 0, deps[3].Cardinality())

	require.Equal(t, "1<-[0] 2<-[1]", FormatDeps(deps))
}

func TestBuildDAG(t *testing.T) {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())

	d := BuildDAG(chainIO(), logger)
	require.Equal(t, 3, d.GetSize())
	require.Equal(t, 3, d.LongestPath())
	require.Equal(t, 0, DAG{}.LongestPath())
}
