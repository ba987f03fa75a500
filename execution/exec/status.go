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

package exec

import (
	"errors"
	"fmt"

	"github.com/erigontech/erigon-blockstm/execution/state"
)

type StatusKind uint8

const (
	Success StatusKind = iota
	SkipRest
	Abort
	SpeculativeAbort
	DelayedFieldsCodeInvariant
	// Skipped marks transactions after a block halt. They were never executed.
	Skipped
)

func (k StatusKind) String() string {
	switch k {
	case Success:
		return "success"
	case SkipRest:
		return "skip-rest"
	case Abort:
		return "abort"
	case SpeculativeAbort:
		return "speculative-abort"
	case DelayedFieldsCodeInvariant:
		return "delayed-fields-code-invariant"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("StatusKind(%d)", uint8(k))
	}
}

// ExecutionStatus is the outcome of running a transaction.
type ExecutionStatus struct {
	Kind   StatusKind
	Output *Output
	Err    error
}

func NewSuccess(out *Output) ExecutionStatus {
	return ExecutionStatus{Kind: Success, Output: out}
}

func NewSkipRest(out *Output) ExecutionStatus {
	return ExecutionStatus{Kind: SkipRest, Output: out}
}

// NewAbort records a failed transaction. out may carry the gas charged and
// events emitted; its writes are never applied.
func NewAbort(err error, out *Output) ExecutionStatus {
	return ExecutionStatus{Kind: Abort, Output: out, Err: err}
}

func NewSpeculativeAbort(err error) ExecutionStatus {
	if err == nil {
		err = ErrSpeculativeAbort
	}
	return ExecutionStatus{Kind: SpeculativeAbort, Err: err}
}

func NewDelayedFieldsCodeInvariant(err error) ExecutionStatus {
	return ExecutionStatus{Kind: DelayedFieldsCodeInvariant, Err: err}
}

func NewSkipped() ExecutionStatus {
	return ExecutionStatus{Kind: Skipped}
}

// StatusFromError classifies an error returned by a VM that only reports
// failures as errors.
func StatusFromError(err error) ExecutionStatus {
	var abortErr ErrExecAbortError
	switch {
	case errors.Is(err, ErrSpeculativeAbort), errors.Is(err, state.ErrSpeculativeRead), errors.As(err, &abortErr):
		return NewSpeculativeAbort(err)
	case errors.Is(err, ErrDelayedFieldsCodeInvariant):
		return NewDelayedFieldsCodeInvariant(err)
	default:
		return NewAbort(err, nil)
	}
}

func (s ExecutionStatus) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %v", s.Kind, s.Err)
	}
	return s.Kind.String()
}

// Committable reports whether the status can be the final outcome of a transaction.
func (s ExecutionStatus) Committable() bool {
	return s.Kind != SpeculativeAbort
}
