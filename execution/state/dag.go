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
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/heimdalr/dag"
	log "github.com/inconshreveable/log15"
)

type DAG struct {
	*dag.DAG
}

type txVertex int

func (v txVertex) ID() string {
	return strconv.Itoa(int(v))
}

func HasReadDep(txFrom VersionedWrites, txTo VersionedReads) bool {
	reads := make(map[StateKey]bool)

	for _, v := range txTo {
		reads[v.Path] = true
	}

	for _, rd := range txFrom {
		if _, ok := reads[rd.Path]; ok {
			return true
		}
	}

	return false
}

// BuildDAG links every transaction to each earlier transaction that wrote
// a key it read.
func BuildDAG(deps *VersionedIO, logger log.Logger) (d DAG) {
	d = DAG{dag.NewDAG()}
	ids := make(map[int]string)

	vertex := func(i int) string {
		if id, ok := ids[i]; ok {
			return id
		}
		id, err := d.AddVertex(txVertex(i))
		if err != nil {
			logger.Warn("Failed to add vertex", "tx", i, "err", err)
		}
		ids[i] = id
		return id
	}

	for i := deps.Len() - 1; i > 0; i-- {
		txTo := deps.ReadSet(i)
		txToId := vertex(i)

		for j := i - 1; j >= 0; j-- {
			txFrom := deps.WriteSet(j)

			if HasReadDep(txFrom, txTo) {
				txFromId := vertex(j)

				err := d.AddEdge(txFromId, txToId)
				if err != nil {
					logger.Warn("Failed to add edge", "from", txFromId, "to", txToId, "err", err)
				}
			}
		}
	}

	return
}

// LongestPath returns the length in transactions of the longest dependency
// chain, the lower bound on sequential steps any schedule needs.
func (d DAG) LongestPath() int {
	if d.DAG == nil {
		return 0
	}

	memo := map[string]int{}
	var depth func(id string) int
	depth = func(id string) int {
		if v, ok := memo[id]; ok {
			return v
		}
		best := 0
		parents, err := d.GetParents(id)
		if err == nil {
			for pid := range parents {
				if p := depth(pid); p > best {
					best = p
				}
			}
		}
		memo[id] = best + 1
		return best + 1
	}

	longest := 0
	for id := range d.GetVertices() {
		if l := depth(id); l > longest {
			longest = l
		}
	}
	return longest
}

func depsHelper(dependencies map[int]mapset.Set[int], txFrom VersionedWrites, txTo VersionedReads, i int, j int) map[int]mapset.Set[int] {
	if HasReadDep(txFrom, txTo) {
		dependencies[i].Add(j)

		// keep only direct dependencies: anything j already depends on is implied
		for _, k := range dependencies[i].ToSlice() {
			if dependencies[j] != nil && dependencies[j].Contains(k) {
				dependencies[i].Remove(k)
			}
		}
	}

	return dependencies
}

// GetDep returns, for every transaction, the earlier transactions it
// directly depends on.
func GetDep(deps *VersionedIO) map[int]mapset.Set[int] {
	newDependencies := map[int]mapset.Set[int]{}

	for i := 1; i < deps.Len(); i++ {
		txTo := deps.ReadSet(i)

		newDependencies[i] = mapset.NewThreadUnsafeSet[int]()

		for j := 0; j <= i-1; j++ {
			txFrom := deps.WriteSet(j)

			newDependencies = depsHelper(newDependencies, txFrom, txTo, i, j)
		}
	}

	return newDependencies
}

// FormatDeps renders a dependency map as "i<-[a b]" entries for logging.
func FormatDeps(deps map[int]mapset.Set[int]) string {
	var sb strings.Builder
	for i := 1; i <= len(deps); i++ {
		s, ok := deps[i]
		if !ok || s.Cardinality() == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		from := s.ToSlice()
		slices.Sort(from)
		fmt.Fprintf(&sb, "%d<-%v", i, from)
	}
	return sb.String()
}
