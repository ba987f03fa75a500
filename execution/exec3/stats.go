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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Stats describes how a block was executed.
type Stats struct {
	Workers      int
	Executions   uint64
	Success      uint64
	Dependencies uint64 // executions stopped by a read of an estimate
	Speculative  uint64 // executions that observed inconsistent state
	Validations  uint64
	Aborts       uint64 // failed validations
	Committed    int

	// Incarnations is the number of executions started per transaction.
	Incarnations []int
	// Reexecuted holds the indexes of transactions executed more than once.
	Reexecuted *roaring.Bitmap

	Halted     bool
	HaltReason string
	// FallbackAt is the index sequential execution took over at, or -1.
	FallbackAt int

	// Deps maps every transaction to the earlier transactions it read
	// from. Only filled when profiling.
	Deps            string
	LongestDepChain int

	Duration time.Duration
}

func (s *Stats) RepeatRatio() float64 {
	if s.Committed == 0 {
		return 0
	}
	return 100.0 * float64(s.Executions-uint64(s.Committed)) / float64(s.Committed)
}

func (s *Stats) String() string {
	return fmt.Sprintf("workers=%d execs=%d success=%d deps=%d speculative=%d validations=%d aborts=%d committed=%d repeat=%.2f%%",
		s.Workers, s.Executions, s.Success, s.Dependencies, s.Speculative, s.Validations, s.Aborts, s.Committed, s.RepeatRatio())
}

type execCounters struct {
	execs        atomic.Uint64
	success      atomic.Uint64
	dependencies atomic.Uint64
	speculative  atomic.Uint64
	validations  atomic.Uint64
	aborts       atomic.Uint64

	incarnations []atomic.Int32
}

func newExecCounters(blockSize int) *execCounters {
	return &execCounters{incarnations: make([]atomic.Int32, blockSize)}
}

func (c *execCounters) started(txIdx int) {
	c.execs.Add(1)
	c.incarnations[txIdx].Add(1)
}

func (c *execCounters) stats(workers int) *Stats {
	incarnations := make([]int, len(c.incarnations))
	reexecuted := roaring.New()
	for i := range c.incarnations {
		incarnations[i] = int(c.incarnations[i].Load())
		if incarnations[i] > 1 {
			reexecuted.Add(uint32(i))
		}
	}
	return &Stats{
		Workers:      workers,
		Executions:   c.execs.Load(),
		Success:      c.success.Load(),
		Dependencies: c.dependencies.Load(),
		Speculative:  c.speculative.Load(),
		Validations:  c.validations.Load(),
		Aborts:       c.aborts.Load(),
		Incarnations: incarnations,
		Reexecuted:   reexecuted,
		FallbackAt:   -1,
	}
}
