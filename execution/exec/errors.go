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

type ErrExecAbortError = state.ErrExecAbortError

var (
	// ErrSpeculativeAbort is returned by a VM that observed state no
	// sequential execution could produce. The incarnation is retried.
	ErrSpeculativeAbort = errors.New("speculative execution aborted")

	ErrDelayedFieldsCodeInvariant = errors.New("delayed fields code invariant violated")

	ErrMustSucceedAborted = errors.New("transaction that must succeed aborted")
)

// TxError ties a block level failure to the transaction that caused it.
type TxError struct {
	TxIndex int
	Err     error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %d: %v", e.TxIndex, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// DelayedFieldsCodeInvariantError wraps err so that it matches ErrDelayedFieldsCodeInvariant.
func DelayedFieldsCodeInvariantError(txIndex int, err error) error {
	return &TxError{TxIndex: txIndex, Err: fmt.Errorf("%w: %w", ErrDelayedFieldsCodeInvariant, err)}
}

func MustSucceedAbortedError(txIndex int, err error) error {
	return &TxError{TxIndex: txIndex, Err: fmt.Errorf("%w: %w", ErrMustSucceedAborted, err)}
}
