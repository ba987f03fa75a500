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

// Package vmtest provides a small programmable VM for exercising the block
// executors. Transactions are lists of state operations; every value a
// transaction reads flows into its writes or events so that stale reads
// change its output.
package vmtest

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-blockstm/common"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrFailed              = errors.New("transaction failed")
	ErrMissingModule       = errors.New("module not found")
)

const (
	EventRead     = "read"
	EventLoad     = "load"
	EventNewEpoch = "new_epoch"
)

type OpKind uint8

const (
	// OpRead emits the value of Key as a read event.
	OpRead OpKind = iota
	// OpWrite stores Value under Key.
	OpWrite
	// OpCopy stores the value of Key under Other.
	OpCopy
	// OpIncrement adds Amount to the balance stored under Key.
	OpIncrement
	// OpTransfer moves Amount from the balance under Key to the one under Other.
	OpTransfer
	OpDelete
	// OpDelta adds Delta to the aggregator under Key without reading it.
	OpDelta
	// OpReadAggregator emits the aggregator value under Key as a read event.
	OpReadAggregator
	// OpPublish publishes Value as the code of Module.
	OpPublish
	// OpLoad emits the code of Module as a load event and aborts if there is none.
	OpLoad
	OpEmit
	OpFail
	// OpReconfigure ends the block after this transaction.
	OpReconfigure
	// OpCheckEqual aborts speculatively unless Key and Other hold the same
	// value. Workloads keep such pairs equal in every committed state.
	OpCheckEqual
	OpCodeInvariant
	OpPanic
)

var opNames = [...]string{"read", "write", "copy", "increment", "transfer", "delete", "delta", "read-aggregator",
	"publish", "load", "emit", "fail", "reconfigure", "check-equal", "code-invariant", "panic"}

func (k OpKind) String() string {
	if int(k) < len(opNames) {
		return opNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

type Op struct {
	Kind   OpKind
	Key    state.StateKey
	Other  state.StateKey
	Module state.ModuleID
	Value  []byte
	Amount uint64
	Delta  state.Delta
	Event  string
}

func (op Op) String() string {
	var sb strings.Builder
	sb.WriteString(op.Kind.String())
	switch op.Kind {
	case OpPublish, OpLoad:
		fmt.Fprintf(&sb, "(%s)", op.Module)
	case OpDelta:
		fmt.Fprintf(&sb, "(%s %s)", op.Key, op.Delta)
	case OpCopy, OpTransfer, OpCheckEqual:
		fmt.Fprintf(&sb, "(%s %s %d)", op.Key, op.Other, op.Amount)
	case OpEmit:
		fmt.Fprintf(&sb, "(%s %x)", op.Event, op.Value)
	default:
		fmt.Fprintf(&sb, "(%s %x %d)", op.Key, op.Value, op.Amount)
	}
	return sb.String()
}

// Txn is a transaction of the test VM.
type Txn struct {
	Nonce    uint64
	Ops      []Op
	Gas      uint64
	Critical bool
}

var _ exec.Transaction = (*Txn)(nil)

func (t *Txn) Hash() common.Hash {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%d:%t", t.Nonce, t.Gas, t.Critical)
	for _, op := range t.Ops {
		sb.WriteString(";")
		sb.WriteString(op.String())
	}
	return common.HashData([]byte(sb.String()))
}

func (t *Txn) MustSucceed() bool {
	return t.Critical
}

// Recorder counts VM invocations per transaction.
type Recorder struct {
	mu    sync.Mutex
	calls map[int]int
	total int
}

func NewRecorder() *Recorder {
	return &Recorder{calls: map[int]int{}}
}

func (r *Recorder) record(txIdx int) {
	r.mu.Lock()
	r.calls[txIdx]++
	r.total++
	r.mu.Unlock()
}

func (r *Recorder) Calls(txIdx int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[txIdx]
}

func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Called returns the indexes the VM ran at least once, in no particular order.
func (r *Recorder) Called() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idxs := make([]int, 0, len(r.calls))
	for idx := range r.calls {
		idxs = append(idxs, idx)
	}
	return idxs
}

// Factory creates VMs. The zero value runs transactions without delays.
type Factory struct {
	// MaxDelay makes every execution sleep for a random duration up to MaxDelay.
	MaxDelay time.Duration
	Seed     int64
	Recorder *Recorder
	// OnExecute is called before every execution.
	OnExecute func(txIdx int)
	// InitErr makes NewExecutor fail.
	InitErr error

	created atomic.Int64
}

var _ exec.ExecutorFactory = (*Factory)(nil)

func (f *Factory) NewExecutor(env exec.Environment, base state.StateReader) (exec.Executor, error) {
	if f.InitErr != nil {
		return nil, f.InitErr
	}
	n := f.created.Add(1)
	return &VM{factory: f, env: env, rng: rand.New(rand.NewSource(f.Seed + n))}, nil
}

func (f *Factory) Created() int {
	return int(f.created.Load())
}

type VM struct {
	factory *Factory
	env     exec.Environment
	rng     *rand.Rand
}

func (vm *VM) ExecuteTransaction(view exec.StateView, txn exec.Transaction, txIdx int) exec.ExecutionStatus {
	t, ok := txn.(*Txn)
	if !ok {
		return exec.NewAbort(fmt.Errorf("unexpected transaction type %T", txn), nil)
	}

	if r := vm.factory.Recorder; r != nil {
		r.record(txIdx)
	}
	if h := vm.factory.OnExecute; h != nil {
		h(txIdx)
	}
	if d := vm.factory.MaxDelay; d > 0 {
		time.Sleep(time.Duration(vm.rng.Int63n(int64(d))))
	}

	out := &exec.Output{GasUsed: t.Gas}
	reconfigure := false
	for i, op := range t.Ops {
		done, err := vm.apply(view, op, out)
		if err != nil {
			st := exec.StatusFromError(fmt.Errorf("op %d %s: %w", i, op.Kind, err))
			if st.Kind == exec.Abort {
				st.Output = out
			}
			return st
		}
		reconfigure = reconfigure || done
	}

	if reconfigure {
		return exec.NewSkipRest(out)
	}
	return exec.NewSuccess(out)
}

func readBalance(view exec.StateView, k state.StateKey) (uint256.Int, error) {
	v, _, err := view.Get(k)
	if err != nil {
		return uint256.Int{}, err
	}
	return state.DecodeAggregator(v)
}

func (vm *VM) apply(view exec.StateView, op Op, out *exec.Output) (reconfigure bool, err error) {
	switch op.Kind {
	case OpRead:
		v, ok, err := view.Get(op.Key)
		if err != nil {
			return false, err
		}
		if !ok {
			v = []byte("<nil>")
		}
		out.Events = append(out.Events, exec.Event{Type: EventRead, Data: append([]byte(op.Key+"="), v...)})
	case OpWrite:
		view.Put(op.Key, op.Value)
	case OpCopy:
		v, ok, err := view.Get(op.Key)
		if err != nil {
			return false, err
		}
		if ok {
			view.Put(op.Other, v)
		} else {
			view.Delete(op.Other)
		}
	case OpIncrement:
		bal, err := readBalance(view, op.Key)
		if err != nil {
			return false, err
		}
		bal.AddUint64(&bal, op.Amount)
		view.Put(op.Key, state.EncodeAggregator(&bal))
	case OpTransfer:
		from, err := readBalance(view, op.Key)
		if err != nil {
			return false, err
		}
		amount := uint256.NewInt(op.Amount)
		if from.Lt(amount) {
			return false, fmt.Errorf("%w: %s has %s, needs %d", ErrInsufficientBalance, op.Key, from.Dec(), op.Amount)
		}
		from.Sub(&from, amount)
		view.Put(op.Key, state.EncodeAggregator(&from))

		to, err := readBalance(view, op.Other)
		if err != nil {
			return false, err
		}
		to.Add(&to, amount)
		view.Put(op.Other, state.EncodeAggregator(&to))
	case OpDelete:
		view.Delete(op.Key)
	case OpDelta:
		return false, view.AddDelta(op.Key, op.Delta)
	case OpReadAggregator:
		v, err := view.GetAggregator(op.Key)
		if err != nil {
			return false, err
		}
		out.Events = append(out.Events, exec.Event{Type: EventRead, Data: []byte(string(op.Key) + "=" + v.Dec())})
	case OpPublish:
		view.PublishModule(op.Module, op.Value)
	case OpLoad:
		code, ok, err := view.Module(op.Module)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrMissingModule, op.Module)
		}
		out.Events = append(out.Events, exec.Event{Type: EventLoad, Data: append([]byte(op.Module+"="), code...)})
	case OpEmit:
		out.Events = append(out.Events, exec.Event{Type: op.Event, Data: op.Value})
	case OpFail:
		return false, fmt.Errorf("%w: %s", ErrFailed, op.Value)
	case OpReconfigure:
		out.Events = append(out.Events, exec.Event{Type: EventNewEpoch, Data: uint256.NewInt(vm.env.BlockNumber + 1).Bytes()})
		return true, nil
	case OpCheckEqual:
		a, _, err := view.Get(op.Key)
		if err != nil {
			return false, err
		}
		b, _, err := view.Get(op.Other)
		if err != nil {
			return false, err
		}
		if string(a) != string(b) {
			return false, fmt.Errorf("%w: %s and %s differ", exec.ErrSpeculativeAbort, op.Key, op.Other)
		}
	case OpCodeInvariant:
		return false, fmt.Errorf("%w: %s", exec.ErrDelayedFieldsCodeInvariant, op.Value)
	case OpPanic:
		panic(fmt.Sprintf("vm panic: %s", op.Value))
	default:
		return false, fmt.Errorf("unknown op %s", op.Kind)
	}
	return false, nil
}
