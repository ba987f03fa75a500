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
	"sync"
	"sync/atomic"

	"github.com/erigontech/erigon-blockstm/execution/state"
)

type TaskKind uint8

const (
	// TaskNone means nothing can be handed out right now; ask again later.
	TaskNone TaskKind = iota
	TaskExecute
	TaskValidate
	// TaskDone means the block is finished or halted.
	TaskDone
)

func (k TaskKind) String() string {
	switch k {
	case TaskNone:
		return "none"
	case TaskExecute:
		return "execute"
	case TaskValidate:
		return "validate"
	case TaskDone:
		return "done"
	default:
		return fmt.Sprintf("TaskKind(%d)", uint8(k))
	}
}

type Task struct {
	Kind    TaskKind
	Version state.Version
	Wave    uint32
}

func executeTask(idx, inc int) Task {
	return Task{Kind: TaskExecute, Version: state.Version{TxIndex: idx, Incarnation: inc}}
}

func validateTask(idx, inc int, wave uint32) Task {
	return Task{Kind: TaskValidate, Version: state.Version{TxIndex: idx, Incarnation: inc}, Wave: wave}
}

type TxStatus uint8

const (
	ReadyToExecute TxStatus = iota
	Executing
	Executed
	// ReadyToValidate is reported for executed transactions with a
	// validation of their current incarnation still pending.
	ReadyToValidate
	Aborting
	Committed
)

func (s TxStatus) String() string {
	switch s {
	case ReadyToExecute:
		return "ready-to-execute"
	case Executing:
		return "executing"
	case Executed:
		return "executed"
	case ReadyToValidate:
		return "ready-to-validate"
	case Aborting:
		return "aborting"
	case Committed:
		return "committed"
	default:
		return fmt.Sprintf("TxStatus(%d)", uint8(s))
	}
}

type txnStatus struct {
	sync.Mutex
	status      TxStatus
	incarnation int
	// the latest finished incarnation asked to skip the rest of the block
	skipRest bool
}

type txnDependency struct {
	sync.Mutex
	dependents []int
}

type validationStatus struct {
	sync.RWMutex
	// wave that every transaction from this index on must pass, raised
	// whenever the validation index is pulled back to this index
	maxTriggeredWave uint32
	// wave the current incarnation must pass
	requiredWave     uint32
	validated        bool
	validatedInc     int
	maxValidatedWave uint32
}

func packValidationIdx(idx uint32, wave uint32) uint64 {
	return uint64(wave)<<32 | uint64(idx)
}

func unpackValidationIdx(v uint64) (idx uint32, wave uint32) {
	return uint32(v), uint32(v >> 32)
}

// Scheduler coordinates the workers of one block. Transactions are
// executed optimistically in index order, validated in waves and
// committed strictly in order; a transaction commits once its current
// incarnation passed a validation wave that no earlier re-execution has
// invalidated since.
type Scheduler struct {
	blockSize int

	executionIdx  atomic.Int64
	validationIdx atomic.Uint64

	status      []*txnStatus
	dependency  []*txnDependency
	validations []*validationStatus

	skipBarrierMu sync.Mutex
	skipBarrier   atomic.Int64

	commitMu   sync.Mutex
	commitIdx  int
	commitWave uint32
	committed  atomic.Int64

	doneMarker atomic.Bool
	halted     atomic.Bool
	haltReason atomic.Pointer[string]
}

func NewScheduler(blockSize int) *Scheduler {
	s := &Scheduler{
		blockSize:   blockSize,
		status:      make([]*txnStatus, blockSize),
		dependency:  make([]*txnDependency, blockSize),
		validations: make([]*validationStatus, blockSize),
	}
	for i := 0; i < blockSize; i++ {
		s.status[i] = &txnStatus{}
		s.dependency[i] = &txnDependency{}
		s.validations[i] = &validationStatus{}
	}
	s.skipBarrier.Store(int64(blockSize))
	if blockSize == 0 {
		s.doneMarker.Store(true)
	}
	return s
}

func (s *Scheduler) BlockSize() int {
	return s.blockSize
}

func (s *Scheduler) Done() bool {
	return s.doneMarker.Load()
}

func (s *Scheduler) Halted() bool {
	return s.halted.Load()
}

func (s *Scheduler) HaltReason() string {
	if r := s.haltReason.Load(); r != nil {
		return *r
	}
	return ""
}

// Halt stops handing out tasks. Tasks already handed out run to completion.
// It returns false if the scheduler was already done.
func (s *Scheduler) Halt(reason string) bool {
	if !s.doneMarker.CompareAndSwap(false, true) {
		return false
	}
	s.haltReason.Store(&reason)
	s.halted.Store(true)
	return true
}

// CommitIdx is the number of committed transactions. It never decreases.
func (s *Scheduler) CommitIdx() int {
	return int(s.committed.Load())
}

func (s *Scheduler) Status(idx int) (TxStatus, int) {
	vs := s.validations[idx]
	vs.RLock()
	defer vs.RUnlock()

	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()

	if ts.status == Executed {
		valIdx, _ := unpackValidationIdx(s.validationIdx.Load())
		if !vs.validated || vs.validatedInc != ts.incarnation || vs.maxValidatedWave < vs.requiredWave || int(valIdx) <= idx {
			return ReadyToValidate, ts.incarnation
		}
	}
	return ts.status, ts.incarnation
}

// NextTask hands out the lowest pending validation if validation lags
// behind execution, and the next speculative execution otherwise.
func (s *Scheduler) NextTask() Task {
	for {
		if s.Done() {
			return Task{Kind: TaskDone}
		}

		valIdx, _ := unpackValidationIdx(s.validationIdx.Load())
		execIdx := s.executionIdx.Load()

		if int(valIdx) >= s.blockSize && execIdx >= int64(s.blockSize) {
			return Task{}
		}

		if int64(valIdx) < min(execIdx, int64(s.blockSize)) {
			if t, ok := s.nextVersionToValidate(); ok {
				return t
			}
		} else {
			if t, ok := s.nextVersionToExecute(); ok {
				return t
			}
		}
	}
}

func (s *Scheduler) nextVersionToValidate() (Task, bool) {
	idx, wave := unpackValidationIdx(s.validationIdx.Add(1) - 1)
	if int(idx) >= s.blockSize {
		return Task{}, false
	}

	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()
	if ts.status == Executed {
		return validateTask(int(idx), ts.incarnation, wave), true
	}
	return Task{}, false
}

func (s *Scheduler) nextVersionToExecute() (Task, bool) {
	if s.executionIdx.Load() >= int64(s.blockSize) {
		return Task{}, false
	}

	idx := s.executionIdx.Add(1) - 1
	if idx >= int64(s.blockSize) {
		return Task{}, false
	}

	if idx > s.skipBarrier.Load() {
		// nothing above the barrier runs until it is lifted, which pulls
		// the execution index back
		s.executionIdx.CompareAndSwap(idx+1, int64(s.blockSize))
		return Task{}, false
	}

	return s.tryIncarnate(int(idx))
}

func (s *Scheduler) tryIncarnate(idx int) (Task, bool) {
	if int64(idx) > s.skipBarrier.Load() {
		return Task{}, false
	}

	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()
	if ts.status == ReadyToExecute {
		ts.status = Executing
		return executeTask(idx, ts.incarnation), true
	}
	return Task{}, false
}

func (s *Scheduler) decreaseExecutionIdx(target int) {
	for {
		cur := s.executionIdx.Load()
		if cur <= int64(target) || s.executionIdx.CompareAndSwap(cur, int64(target)) {
			return
		}
	}
}

// decreaseValidationIdx pulls the validation index back to target and starts
// a new wave. vs is the validation status of target if the caller already
// holds its lock, nil otherwise.
func (s *Scheduler) decreaseValidationIdx(target int, vs *validationStatus) (uint32, bool) {
	if vs == nil && target < s.blockSize {
		vs = s.validations[target]
		vs.Lock()
		defer vs.Unlock()
	}

	for {
		cur := s.validationIdx.Load()
		idx, wave := unpackValidationIdx(cur)
		if int(idx) <= target {
			return 0, false
		}
		if s.validationIdx.CompareAndSwap(cur, packValidationIdx(uint32(target), wave+1)) {
			if vs != nil {
				vs.maxTriggeredWave = max(vs.maxTriggeredWave, wave+1)
			}
			return wave + 1, true
		}
	}
}

// AddDependency parks idx until blocker finishes its next execution. It
// returns false if blocker has already finished, in which case idx should
// simply be executed again.
func (s *Scheduler) AddDependency(idx, blocker int) bool {
	dep := s.dependency[blocker]
	dep.Lock()
	defer dep.Unlock()

	bs := s.status[blocker]
	bs.Lock()
	resolved := bs.status == Executed || bs.status == Committed
	bs.Unlock()
	if resolved {
		return false
	}

	ts := s.status[idx]
	ts.Lock()
	if ts.status == Executing {
		ts.status = Aborting
	}
	ts.Unlock()

	for _, d := range dep.dependents {
		if d == idx {
			return true
		}
	}
	dep.dependents = append(dep.dependents, idx)
	return true
}

func (s *Scheduler) setReadyStatus(idx int) bool {
	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()
	if ts.status != Aborting {
		return false
	}
	ts.incarnation++
	ts.status = ReadyToExecute
	return true
}

func (s *Scheduler) resumeDependencies(dependents []int) {
	minIdx := -1
	for _, d := range dependents {
		if s.setReadyStatus(d) && (minIdx == -1 || d < minIdx) {
			minIdx = d
		}
	}
	if minIdx != -1 {
		s.decreaseExecutionIdx(minIdx)
	}
}

// FinishExecution marks incarnation inc of idx executed and wakes the
// transactions waiting on it. revalidateSuffix is set when the incarnation
// wrote a key its predecessor did not, which may invalidate reads of every
// later transaction. The returned validation task, if any, should be run
// by the caller.
func (s *Scheduler) FinishExecution(idx, inc int, revalidateSuffix bool) Task {
	vs := s.validations[idx]
	vs.Lock()
	defer vs.Unlock()

	ts := s.status[idx]
	ts.Lock()
	if ts.status != Executing || ts.incarnation != inc {
		ts.Unlock()
		return Task{}
	}
	ts.status = Executed
	ts.Unlock()

	dep := s.dependency[idx]
	dep.Lock()
	dependents := dep.dependents
	dep.dependents = nil
	dep.Unlock()

	s.resumeDependencies(dependents)

	curIdx, curWave := unpackValidationIdx(s.validationIdx.Load())
	if int(curIdx) > idx {
		if revalidateSuffix {
			if wave, ok := s.decreaseValidationIdx(idx, vs); ok {
				curWave = wave
			}
		}
		vs.requiredWave = curWave
		if s.Done() {
			return Task{}
		}
		return validateTask(idx, inc, curWave)
	}
	return Task{}
}

// RetryExecution abandons incarnation inc of idx, which read inconsistent
// state, and schedules a fresh incarnation.
func (s *Scheduler) RetryExecution(idx, inc int) {
	ts := s.status[idx]
	ts.Lock()
	if ts.status != Executing || ts.incarnation != inc {
		ts.Unlock()
		return
	}
	ts.incarnation++
	ts.status = ReadyToExecute
	ts.Unlock()

	s.decreaseExecutionIdx(idx)
}

// FinishValidation records that incarnation inc of idx passed validation at wave.
func (s *Scheduler) FinishValidation(idx, inc int, wave uint32) {
	vs := s.validations[idx]
	vs.Lock()
	defer vs.Unlock()

	ts := s.status[idx]
	ts.Lock()
	current := ts.status == Executed && ts.incarnation == inc
	ts.Unlock()
	if !current {
		return
	}

	if !vs.validated || vs.validatedInc != inc {
		vs.validated = true
		vs.validatedInc = inc
		vs.maxValidatedWave = wave
		return
	}
	vs.maxValidatedWave = max(vs.maxValidatedWave, wave)
}

// TryValidationAbort claims the abort of incarnation inc of idx after a
// failed validation. Only one caller wins.
func (s *Scheduler) TryValidationAbort(idx, inc int) bool {
	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()
	if ts.status == Executed && ts.incarnation == inc {
		ts.status = Aborting
		return true
	}
	return false
}

// FinishAbort completes an abort claimed by TryValidationAbort: every later
// transaction is scheduled for revalidation and the re-execution of idx is
// handed back to the caller when possible.
func (s *Scheduler) FinishAbort(idx, inc int) Task {
	vs := s.validations[idx]
	vs.Lock()

	ts := s.status[idx]
	ts.Lock()
	if ts.status != Aborting || ts.incarnation != inc {
		ts.Unlock()
		vs.Unlock()
		return Task{}
	}
	ts.incarnation++
	ts.status = ReadyToExecute
	ts.Unlock()

	s.decreaseValidationIdx(idx+1, nil)
	vs.Unlock()

	if s.executionIdx.Load() > int64(idx) && !s.Done() {
		if t, ok := s.tryIncarnate(idx); ok {
			return t
		}
	}
	s.decreaseExecutionIdx(idx)
	return Task{}
}

// SetSkipBarrier records that incarnation inc of idx asked to skip the rest
// of the block. No transaction above the lowest such index is executed
// until the barrier is cleared.
func (s *Scheduler) SetSkipBarrier(idx, inc int) {
	ts := s.status[idx]
	ts.Lock()
	if ts.incarnation != inc {
		ts.Unlock()
		return
	}
	ts.skipRest = true
	ts.Unlock()

	s.skipBarrierMu.Lock()
	defer s.skipBarrierMu.Unlock()
	if int64(idx) < s.skipBarrier.Load() {
		s.skipBarrier.Store(int64(idx))
	}
}

// ClearSkipBarrier is called when a new incarnation of idx no longer skips
// the rest of the block.
func (s *Scheduler) ClearSkipBarrier(idx, inc int) {
	ts := s.status[idx]
	ts.Lock()
	if !ts.skipRest || ts.incarnation != inc {
		ts.Unlock()
		return
	}
	ts.skipRest = false
	ts.Unlock()

	s.skipBarrierMu.Lock()
	defer s.skipBarrierMu.Unlock()
	if s.skipBarrier.Load() != int64(idx) {
		return
	}

	next := s.blockSize
	for j := idx + 1; j < s.blockSize; j++ {
		st := s.status[j]
		st.Lock()
		skip := st.skipRest
		st.Unlock()
		if skip {
			next = j
			break
		}
	}
	s.skipBarrier.Store(int64(next))
	s.decreaseExecutionIdx(idx + 1)
}

// SkipBarrier is the lowest index whose latest execution skips the rest of
// the block, or the block size.
func (s *Scheduler) SkipBarrier() int {
	return int(s.skipBarrier.Load())
}

// TryLockCommit makes the caller the single committer. Workers that fail
// to get the lock go on with other tasks.
func (s *Scheduler) TryLockCommit() bool {
	return s.commitMu.TryLock()
}

func (s *Scheduler) UnlockCommit() {
	s.commitMu.Unlock()
}

// TryCommit commits the next transaction if its current incarnation is
// validated. The caller must hold the commit lock.
func (s *Scheduler) TryCommit() (idx int, inc int, ok bool) {
	if s.commitIdx == s.blockSize {
		return 0, 0, false
	}
	idx = s.commitIdx

	vs := s.validations[idx]
	if !vs.TryRLock() {
		return 0, 0, false
	}
	defer vs.RUnlock()

	ts := s.status[idx]
	ts.Lock()
	defer ts.Unlock()

	if ts.status != Executed {
		return 0, 0, false
	}

	s.commitWave = max(s.commitWave, vs.maxTriggeredWave)
	if !vs.validated || vs.validatedInc != ts.incarnation || vs.maxValidatedWave < max(s.commitWave, vs.requiredWave) {
		return 0, 0, false
	}

	ts.status = Committed
	s.commitIdx++
	s.committed.Store(int64(s.commitIdx))
	if s.commitIdx == s.blockSize {
		s.doneMarker.Store(true)
	}
	return idx, ts.incarnation, true
}
