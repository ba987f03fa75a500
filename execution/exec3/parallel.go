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
	"runtime"
	"sync/atomic"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cenkalti/backoff/v4"
	log "github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/erigon-blockstm/common/dbg"
	"github.com/erigontech/erigon-blockstm/execution/codecache"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

// ParallelExecutor runs blocks with optimistic concurrency: transactions
// execute speculatively against a multi-version store, get validated and
// re-executed when their reads turn out stale, and are committed in block
// order. Results are the same as running the block sequentially.
type ParallelExecutor struct {
	cfg     Config
	factory exec.ExecutorFactory
	guard   codecache.Guard
	logger  log.Logger
}

// NewParallelExecutor creates an executor. guard may be nil, in which case
// code is always read from state.
func NewParallelExecutor(cfg Config, factory exec.ExecutorFactory, guard codecache.Guard, logger log.Logger) *ParallelExecutor {
	if logger == nil {
		logger = log.Root()
	}
	return &ParallelExecutor{cfg: cfg, factory: factory, guard: guard, logger: logger}
}

// blockExecution is the state shared by the workers of one block.
type blockExecution struct {
	cfg   Config
	block *exec.Block
	base  state.StateReader
	guard codecache.Guard

	sched      *Scheduler
	versionMap *state.VersionMap
	io         *state.VersionedIO
	results    []atomic.Pointer[txResult]
	counters   *execCounters
	committer  *committer

	fallback atomic.Bool
	logger   log.Logger
}

func newBlockExecution(cfg Config, block *exec.Block, base state.StateReader, guard codecache.Guard, logger log.Logger) *blockExecution {
	n := block.Len()
	return &blockExecution{
		cfg:        cfg,
		block:      block,
		base:       base,
		guard:      guard,
		sched:      NewScheduler(n),
		versionMap: state.NewVersionMap(),
		io:         state.NewVersionedIO(n),
		results:    make([]atomic.Pointer[txResult], n),
		counters:   newExecCounters(n),
		committer:  newCommitter(cfg, block, state.NewOverlayState(base), guard, logger),
		logger:     logger,
	}
}

func (be *blockExecution) runWorker(ctx context.Context, id int, factory exec.ExecutorFactory) error {
	executor, err := factory.NewExecutor(be.block.Env, be.base)
	if err != nil {
		be.sched.Halt("executor init failed")
		return fmt.Errorf("worker %d: %w", id, err)
	}
	w := &worker{id: id, be: be, executor: executor, logger: be.logger}

	idle := backoff.NewExponentialBackOff()
	idle.InitialInterval = 5 * time.Microsecond
	idle.MaxInterval = time.Millisecond
	idle.MaxElapsedTime = 0
	idle.Reset()

	for {
		if err := ctx.Err(); err != nil {
			be.sched.Halt("cancelled")
			return err
		}

		task := be.sched.NextTask()
		kind := task.Kind
		for task.Kind == TaskExecute || task.Kind == TaskValidate {
			task = w.run(task)
		}

		if err := be.tryCommit(); err != nil {
			return err
		}
		be.checkFallback()

		switch kind {
		case TaskDone:
			return nil
		case TaskNone:
			timer := time.NewTimer(idle.NextBackOff())
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		default:
			idle.Reset()
		}
	}
}

// tryCommit commits every transaction that is ready, if no other worker is
// committing already.
func (be *blockExecution) tryCommit() error {
	if !be.sched.TryLockCommit() {
		return nil
	}
	defer be.sched.UnlockCommit()

	for {
		if be.sched.Halted() {
			return nil
		}
		txIdx, inc, ok := be.sched.TryCommit()
		if !ok {
			return nil
		}

		res := be.results[txIdx].Load()
		if res == nil || res.incarnation != inc {
			panic(fmt.Errorf("no result for committed tx %d incarnation %d", txIdx, inc))
		}

		stop, err := be.committer.commit(txIdx, res.status)
		if err != nil {
			be.sched.Halt(err.Error())
			return err
		}
		if stop {
			be.sched.Halt(be.committer.haltReason)
			return nil
		}
	}
}

func (be *blockExecution) checkFallback() {
	ratio := be.cfg.FallbackAbortRatio
	if ratio <= 0 || be.fallback.Load() {
		return
	}
	if be.counters.execs.Load() < uint64(be.cfg.FallbackMinExecutions) {
		return
	}
	if float64(be.counters.aborts.Load()) <= ratio*float64(be.block.Len()) {
		return
	}
	if be.sched.Halt("abort ratio exceeded") {
		be.fallback.Store(true)
	}
}

// ExecuteBlock runs block on top of base. On a block level failure no
// partial result is returned.
func (pe *ParallelExecutor) ExecuteBlock(ctx context.Context, block *exec.Block, base state.StateReader) (*BlockResult, error) {
	if err := pe.cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer mxExecBlockTime.ObserveDuration(start)

	if pe.cfg.ReadCacheSize > 0 {
		cached, err := state.NewCachedReader(base, uint32(pe.cfg.ReadCacheSize))
		if err != nil {
			return nil, err
		}
		base = cached
	}

	be := newBlockExecution(pe.cfg, block, base, pe.guard, pe.logger)
	// modules loaded by the fallback come from the block overlay too
	defer be.committer.sweepCodeCache()

	workers := min(pe.cfg.Workers, max(block.Len(), 1))
	mxExecWorkers.SetInt(workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return be.runWorker(gctx, i, pe.factory)
		})
	}
	err := g.Wait()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	stats := be.counters.stats(workers)

	if be.fallback.Load() && !be.committer.halted {
		from := be.committer.committed
		stats.FallbackAt = from
		mxExecFallbacks.Inc()
		pe.logger.Info("falling back to sequential execution", "block", block.Number(), "tx", from,
			"aborts", stats.Aborts, "execs", stats.Executions)

		counters := newExecCounters(block.Len())
		if err := runSequential(ctx, pe.cfg, pe.factory, block, be.committer, counters, from, pe.logger); err != nil {
			return nil, err
		}
		seq := counters.stats(1)
		stats.Executions += seq.Executions
		stats.Success += seq.Success
		for i := from; i < block.Len(); i++ {
			stats.Incarnations[i] += seq.Incarnations[i]
			if stats.Incarnations[i] > 1 {
				stats.Reexecuted.Add(uint32(i))
			}
		}
	}

	if pe.cfg.Profile {
		allDeps := state.GetDep(be.io)
		deps := state.BuildDAG(be.io, pe.logger)
		stats.Deps = state.FormatDeps(allDeps)
		stats.LongestDepChain = deps.LongestPath()
	}

	res := be.committer.finish(stats)
	stats.Duration = time.Since(start)

	if res.Stats.Halted {
		mxExecHalts.Inc()
	}
	mxExecBlocks.Inc()
	mxExecTransactions.AddInt(stats.Committed)
	if repeats := int(stats.Executions) - stats.Committed; repeats > 0 {
		mxExecRepeats.AddInt(repeats)
	}
	mxExecGas.AddUint64(res.GasUsed)

	var m runtime.MemStats
	dbg.ReadMemStats(&m)
	pe.logger.Debug("exec summary", "block", block.Number(), "workers", workers, "execs", stats.Executions,
		"success", stats.Success, "deps", stats.Dependencies, "speculative", stats.Speculative,
		"validations", stats.Validations, "aborts", stats.Aborts, "committed", stats.Committed,
		"repeat", fmt.Sprintf("%.2f%%", stats.RepeatRatio()), "gas", res.GasUsed,
		"output", res.OutputSize.HumanReadable(), "in", stats.Duration,
		"alloc", datasize.ByteSize(m.Alloc).HumanReadable(), "sys", datasize.ByteSize(m.Sys).HumanReadable())

	return res, nil
}
