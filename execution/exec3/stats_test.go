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

package exec3

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecCountersConcurrent(t *testing.T) {
	c := newExecCounters(8)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.started(3)
				if i%10 == 0 {
					c.started(5)
				}
			}
		}()
	}
	wg.Wait()
	c.started(0)

	stats := c.stats(4)
	require.Equal(t, uint64(441), stats.Executions)
	require.Equal(t, []int{1, 0, 0, 400, 0, 40, 0, 0}, stats.Incarnations)
	require.Equal(t, []uint32{3, 5}, stats.Reexecuted.ToArray())
	require.Equal(t, -1, stats.FallbackAt)
}
