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
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-blockstm/execution/state"
)

func TestStatusFromError(t *testing.T) {
	require.Equal(t, SpeculativeAbort, StatusFromError(fmt.Errorf("wrapped: %w", ErrSpeculativeAbort)).Kind)
	require.Equal(t, SpeculativeAbort, StatusFromError(ErrExecAbortError{DependencyTxIndex: 3}).Kind)
	require.Equal(t, SpeculativeAbort, StatusFromError(fmt.Errorf("%w: %w", state.ErrSpeculativeRead, state.ErrDeltaUnderflow)).Kind)
	require.Equal(t, DelayedFieldsCodeInvariant, StatusFromError(ErrDelayedFieldsCodeInvariant).Kind)

	st := StatusFromError(errors.New("out of gas"))
	require.Equal(t, Abort, st.Kind)
	require.Equal(t, "abort: out of gas", st.String())
	require.True(t, st.Committable())
	require.False(t, NewSpeculativeAbort(nil).Committable())
	require.ErrorIs(t, NewSpeculativeAbort(nil).Err, ErrSpeculativeAbort)
}

func TestBlockErrors(t *testing.T) {
	err := DelayedFieldsCodeInvariantError(4, state.ErrDeltaOverflow)
	require.ErrorIs(t, err, ErrDelayedFieldsCodeInvariant)
	require.ErrorIs(t, err, state.ErrDeltaOverflow)

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	require.Equal(t, 4, txErr.TxIndex)

	err = MustSucceedAbortedError(0, errors.New("bad metadata"))
	require.ErrorIs(t, err, ErrMustSucceedAborted)
	require.Contains(t, err.Error(), "tx 0")
}

func TestOutput(t *testing.T) {
	var nilOut *Output
	require.Zero(t, nilOut.Size())
	require.False(t, nilOut.HasEvent("x"))

	out := &Output{
		Writes: state.VersionedWrites{{Path: "key", Op: state.ValueOp([]byte("value"))}},
		Events: []Event{{Type: "reconfig", Data: []byte{1}}},
	}
	require.Equal(t, datasize.ByteSize(3+5+8+1), out.Size())
	require.True(t, out.HasEvent("reconfig"))
}
