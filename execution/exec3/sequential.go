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
	"context"
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/erigontech/erigon-blockstm/execution/codecache"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

// SequentialExecutor runs the transactions of a block one after another.
// It is the reference the parallel executor must agree with and the engine
// the parallel executor falls back to.
type SequentialExecutor struct {
	cfg     Config
	factory exec.ExecutorFactory
	guard   codecache.Guard
	logger  log.Logger
}

func NewSequentialExecutor(cfg Config, factory exec.ExecutorFactory, guard codecache.Guard, logger log.Logger) *SequentialExecutor {
	if logger == nil {
		logger = log.Root()
	}
	return &SequentialExecutor{cfg: cfg, factory: factory, guard: guard, logger: logger}
}

func (se *SequentialExecutor) ExecuteBlock(ctx context.Context, block *exec.Block, base state.StateReader) (*BlockResult, error) {
	start := time.Now()

	c := newCommitter(se.cfg, block, state.NewOverlayState(base), se.guard, se.logger)
	// code committed earlier in the block is cached while later transactions load it
	defer c.sweepCodeCache()
	counters := newExecCounters(block.Len())
	if err := runSequential(ctx, se.cfg, se.factory, block, c, counters, 0, se.logger); err != nil {
		return nil, err
	}

	res := c.finish(counters.stats(1))
	res.Stats.Duration = time.Since(start)

	se.logger.Debug("sequential exec summary", "block", block.Number(), "txs", block.Len(),
		"committed", res.Stats.Committed, "gas", res.GasUsed, "in", res.Stats.Duration)
	return res, nil
}

// runSequential executes and commits transactions from index from on top
// of what c has committed so far.
func runSequential(ctx context.Context, cfg Config, factory exec.ExecutorFactory, block *exec.Block, c *committer, counters *execCounters, from int, logger log.Logger) error {
	if from >= block.Len() || c.halted {
		return nil
	}

	executor, err := factory.NewExecutor(block.Env, c.overlay)
	if err != nil {
		return err
	}

	for txIdx := from; txIdx < block.Len(); txIdx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		counters.started(txIdx)
		view := state.NewVersionedStateView(state.Version{TxIndex: txIdx}, nil, c.overlay, c.guard)
		status := runTransaction(cfg, executor, view, block.Transactions[txIdx], txIdx, logger)
		if status.Kind == exec.SpeculativeAbort {
			return fmt.Errorf("tx %d: speculative abort without concurrent writers: %w", txIdx, status.Err)
		}
		counters.success.Add(1)

		stop, err := c.commit(txIdx, status)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}
