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
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/erigontech/erigon-blockstm/common/dbg"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

var ErrExecutorPanic = errors.New("executor panic")

type txResult struct {
	incarnation int
	status      exec.ExecutionStatus
}

// runTransaction calls the VM on view and fills the output with what the
// transaction did to the view. A panicking VM aborts the transaction.
func runTransaction(cfg Config, executor exec.Executor, view *state.VersionedStateView, txn exec.Transaction, txIdx int, logger log.Logger) (status exec.ExecutionStatus) {
	defer func() {
		if rec := recover(); rec != nil {
			if !view.HadInvalidRead() {
				logger.Debug("Recovered from VM failure.", "tx", txIdx, "err", rec, "stack", dbg.Stack())
			}
			status = exec.NewAbort(fmt.Errorf("%w: %v", ErrExecutorPanic, rec), nil)
		}
	}()

	status = executor.ExecuteTransaction(view, txn, txIdx)

	switch status.Kind {
	case exec.Success, exec.SkipRest:
		var out exec.Output
		if status.Output != nil {
			out = *status.Output
		}
		out.Writes = view.VersionedWrites()
		out.Published = view.PublishedModules()
		status.Output = &out
		if status.Kind == exec.Success && cfg.isReconfiguration(&out) {
			status.Kind = exec.SkipRest
		}
	case exec.Abort:
		if status.Output != nil {
			out := *status.Output
			out.Writes, out.Published = nil, nil
			status.Output = &out
		}
	}
	return status
}

// worker runs scheduler tasks with its own executor.
type worker struct {
	id       int
	be       *blockExecution
	executor exec.Executor
	logger   log.Logger
}

func (w *worker) run(t Task) Task {
	switch t.Kind {
	case TaskExecute:
		return w.execute(t.Version)
	case TaskValidate:
		return w.validate(t.Version, t.Wave)
	default:
		return Task{}
	}
}

func (w *worker) execute(v state.Version) Task {
	be := w.be
	txIdx, inc := v.TxIndex, v.Incarnation

	for {
		if txIdx > be.sched.SkipBarrier() {
			be.sched.RetryExecution(txIdx, inc)
			return Task{}
		}

		be.counters.started(txIdx)
		view := state.NewVersionedStateView(v, be.versionMap, be.base, be.guard)
		status := runTransaction(be.cfg, w.executor, view, be.block.Transactions[txIdx], txIdx, w.logger)

		if dep := view.Dependency(); dep >= 0 {
			be.counters.dependencies.Add(1)
			mxExecDependencies.Inc()
			if be.sched.AddDependency(txIdx, dep) {
				return Task{}
			}
			// the blocking transaction finished in the meantime
			continue
		}

		if view.HadInvalidRead() || status.Kind == exec.SpeculativeAbort {
			be.counters.speculative.Add(1)
			mxExecSpeculative.Inc()
			be.sched.RetryExecution(txIdx, inc)
			return Task{}
		}

		return w.finishExecution(v, view, status)
	}
}

func (w *worker) finishExecution(v state.Version, view *state.VersionedStateView, status exec.ExecutionStatus) Task {
	be := w.be
	txIdx, inc := v.TxIndex, v.Incarnation

	var writes state.VersionedWrites
	if status.Kind == exec.Success || status.Kind == exec.SkipRest {
		writes = status.Output.Writes
	}

	prev := be.io.WriteSet(txIdx)
	for _, k := range writes.Missing(prev) {
		be.versionMap.Delete(k, txIdx)
	}
	be.versionMap.FlushVersionedWrites(writes)
	revalidate := writes.HasNewWrite(prev)

	reads := view.VersionedReads()
	if dbg.Traced(txIdx) {
		w.logger.Info("tx io", "worker", w.id, "version", v, "status", status.Kind, "reads", len(reads), "writes", writes)
	}
	be.io.RecordRead(txIdx, reads)
	be.io.RecordWrite(txIdx, writes)
	be.results[txIdx].Store(&txResult{incarnation: inc, status: status})
	be.counters.success.Add(1)

	if status.Kind == exec.SkipRest {
		be.sched.SetSkipBarrier(txIdx, inc)
	} else {
		be.sched.ClearSkipBarrier(txIdx, inc)
	}

	if revalidate {
		mxExecTriggers.Inc()
	}
	return be.sched.FinishExecution(txIdx, inc, revalidate)
}

func (w *worker) validate(v state.Version, wave uint32) Task {
	be := w.be
	txIdx, inc := v.TxIndex, v.Incarnation

	be.counters.validations.Add(1)
	if state.ValidateVersion(txIdx, be.io, be.versionMap, be.base) {
		be.sched.FinishValidation(txIdx, inc, wave)
		return Task{}
	}

	if !be.sched.TryValidationAbort(txIdx, inc) {
		return Task{}
	}

	be.counters.aborts.Add(1)
	mxExecAborts.Inc()
	for _, wr := range be.io.WriteSet(txIdx) {
		be.versionMap.MarkEstimate(wr.Path, txIdx)
	}
	return be.sched.FinishAbort(txIdx, inc)
}
