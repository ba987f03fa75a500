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

	"github.com/c2h5oh/datasize"
	log "github.com/inconshreveable/log15"

	"github.com/erigontech/erigon-blockstm/execution/codecache"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

// BlockResult is the outcome of a block, in transaction order.
type BlockResult struct {
	Results []exec.ExecutionStatus
	// Writes holds the last committed write of every key, ordered by key.
	Writes     state.VersionedWrites
	GasUsed    uint64
	OutputSize datasize.ByteSize
	Stats      *Stats
}

// committer applies finished transactions to the block state strictly in
// order. The parallel executor calls it under the scheduler's commit lock,
// the sequential one directly.
type committer struct {
	cfg     Config
	block   *exec.Block
	overlay *state.OverlayState
	guard   codecache.Guard
	logger  log.Logger

	results    []exec.ExecutionStatus
	committed  int
	gasUsed    uint64
	outputSize datasize.ByteSize

	published     []state.ModuleID
	publishedSeen map[state.ModuleID]struct{}

	halted     bool
	haltReason string
}

func newCommitter(cfg Config, block *exec.Block, overlay *state.OverlayState, guard codecache.Guard, logger log.Logger) *committer {
	return &committer{
		cfg:           cfg,
		block:         block,
		overlay:       overlay,
		guard:         guard,
		logger:        logger,
		results:       make([]exec.ExecutionStatus, block.Len()),
		publishedSeen: map[state.ModuleID]struct{}{},
	}
}

// commit makes txIdx part of the block. stop is set when nothing after
// txIdx may be committed; err is a block level failure.
func (c *committer) commit(txIdx int, st exec.ExecutionStatus) (stop bool, err error) {
	if c.halted {
		return true, nil
	}
	if txIdx != c.committed {
		panic(fmt.Errorf("commit out of order: expected tx %d, got %d", c.committed, txIdx))
	}

	switch st.Kind {
	case exec.Abort:
		if c.block.Transactions[txIdx].MustSucceed() {
			return true, c.fail(txIdx, exec.MustSucceedAbortedError(txIdx, st.Err))
		}
	case exec.DelayedFieldsCodeInvariant:
		return true, c.fail(txIdx, exec.DelayedFieldsCodeInvariantError(txIdx, st.Err))
	case exec.Success, exec.SkipRest:
		writes, err := c.overlay.Materialize(st.Output.Writes)
		if err != nil {
			return true, c.fail(txIdx, exec.DelayedFieldsCodeInvariantError(txIdx, err))
		}
		if err := c.overlay.Apply(writes); err != nil {
			return true, c.fail(txIdx, exec.DelayedFieldsCodeInvariantError(txIdx, err))
		}
		out := *st.Output
		out.Writes = writes
		st.Output = &out
		c.publish(out.Published)
	default:
		return true, c.fail(txIdx, fmt.Errorf("tx %d: can't commit %s", txIdx, st))
	}

	c.results[txIdx] = st
	c.committed++
	if st.Output != nil {
		c.gasUsed += st.Output.GasUsed
		c.outputSize += st.Output.Size()
	}

	switch {
	case st.Kind == exec.SkipRest:
		c.halt(txIdx, "skip rest")
	case c.cfg.BlockGasLimit > 0 && c.gasUsed > c.cfg.BlockGasLimit:
		c.halt(txIdx, "block gas limit reached")
	case c.cfg.BlockOutputLimit > 0 && c.outputSize > c.cfg.BlockOutputLimit:
		c.halt(txIdx, "block output limit reached")
	}

	return c.halted, nil
}

func (c *committer) publish(ids []state.ModuleID) {
	if len(ids) == 0 {
		return
	}
	if c.guard != nil {
		c.guard.InvalidateOnPublish(ids...)
	}
	for _, id := range ids {
		if _, ok := c.publishedSeen[id]; !ok {
			c.publishedSeen[id] = struct{}{}
			c.published = append(c.published, id)
		}
	}
}

func (c *committer) halt(txIdx int, reason string) {
	c.halted = true
	c.haltReason = reason
	c.logger.Debug("block halted", "block", c.block.Number(), "tx", txIdx, "reason", reason,
		"gas", c.gasUsed, "output", c.outputSize.HumanReadable())
}

// fail halts the block on a block level error. Nothing is committed after it.
func (c *committer) fail(txIdx int, err error) error {
	c.halt(txIdx, err.Error())
	return err
}

// sweepCodeCache drops every module published by the block from the code
// cache. It must run once no transaction of the block can still load code.
func (c *committer) sweepCodeCache() {
	if c.guard != nil && len(c.published) > 0 {
		c.guard.InvalidateOnPublish(c.published...)
	}
}

func (c *committer) finish(stats *Stats) *BlockResult {
	for i := c.committed; i < len(c.results); i++ {
		c.results[i] = exec.NewSkipped()
	}
	stats.Committed = c.committed
	stats.Halted = c.halted
	stats.HaltReason = c.haltReason
	return &BlockResult{
		Results:    c.results,
		Writes:     c.overlay.Writes(),
		GasUsed:    c.gasUsed,
		OutputSize: c.outputSize,
		Stats:      stats,
	}
}
