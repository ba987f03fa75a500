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

package vmtest

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

func run(t *testing.T, base state.StateReader, txn *Txn) (exec.ExecutionStatus, *state.VersionedStateView) {
	t.Helper()
	f := &Factory{Recorder: NewRecorder()}
	vm, err := f.NewExecutor(exec.Environment{BlockNumber: 7}, base)
	require.NoError(t, err)
	view := state.NewVersionedStateView(state.Version{}, nil, base, nil)
	st := vm.ExecuteTransaction(view, txn, 0)
	require.Equal(t, 1, f.Recorder.Calls(0))
	return st, view
}

func TestTransfer(t *testing.T) {
	base := Genesis(2, 10)

	st, view := run(t, base, &Txn{Gas: 5, Ops: []Op{{Kind: OpTransfer, Key: Account(0), Other: Account(1), Amount: 4}}})
	require.Equal(t, exec.Success, st.Kind)
	require.Equal(t, uint64(5), st.Output.GasUsed)

	from, err := view.GetAggregator(Account(0))
	require.NoError(t, err)
	require.Equal(t, uint64(6), from.Uint64())
	to, err := view.GetAggregator(Account(1))
	require.NoError(t, err)
	require.Equal(t, uint64(14), to.Uint64())

	st, _ = run(t, base, &Txn{Gas: 5, Ops: []Op{{Kind: OpTransfer, Key: Account(0), Other: Account(1), Amount: 11}}})
	require.Equal(t, exec.Abort, st.Kind)
	require.ErrorIs(t, st.Err, ErrInsufficientBalance)
	require.Equal(t, uint64(5), st.Output.GasUsed)
}

func TestSelfTransfer(t *testing.T) {
	base := Genesis(1, 10)
	_, view := run(t, base, &Txn{Ops: []Op{{Kind: OpTransfer, Key: Account(0), Other: Account(0), Amount: 3}}})
	v, err := view.GetAggregator(Account(0))
	require.NoError(t, err)
	require.Equal(t, uint64(10), v.Uint64())
}

func TestOps(t *testing.T) {
	base := state.NewMemoryStateFrom(map[state.StateKey][]byte{"a": []byte("x"), state.ModuleKey("m"): []byte("code")})

	st, view := run(t, base, &Txn{Ops: []Op{
		{Kind: OpRead, Key: "a"},
		{Kind: OpCopy, Key: "a", Other: "b"},
		{Kind: OpDelete, Key: "a"},
		{Kind: OpRead, Key: "a"},
		{Kind: OpDelta, Key: "agg", Delta: state.AddDelta(5, 0)},
		{Kind: OpReadAggregator, Key: "agg"},
		{Kind: OpLoad, Module: "m"},
		{Kind: OpPublish, Module: "n", Value: []byte("new")},
		{Kind: OpLoad, Module: "n"},
		{Kind: OpEmit, Event: "log", Value: []byte{1}},
		{Kind: OpCheckEqual, Key: "b", Other: "b"},
	}})
	require.Equal(t, exec.Success, st.Kind, st.String())

	var events []string
	for _, e := range st.Output.Events {
		events = append(events, e.Type+":"+string(e.Data))
	}
	require.Equal(t, []string{"read:a=x", "read:a=<nil>", "read:agg=5", "load:m=code", "load:n=new", "log:\x01"}, events)

	v, ok, err := view.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("x"), v)
	require.Equal(t, []state.ModuleID{"n"}, view.PublishedModules())
}

func TestStatuses(t *testing.T) {
	base := state.NewMemoryStateFrom(map[state.StateKey][]byte{"a": []byte("1"), "b": []byte("2")})

	st, _ := run(t, base, &Txn{Ops: []Op{{Kind: OpReconfigure}}})
	require.Equal(t, exec.SkipRest, st.Kind)
	require.True(t, st.Output.HasEvent(EventNewEpoch))
	require.Equal(t, uint256.NewInt(8).Bytes(), st.Output.Events[0].Data)

	st, _ = run(t, base, &Txn{Ops: []Op{{Kind: OpFail, Value: []byte("boom")}}})
	require.Equal(t, exec.Abort, st.Kind)
	require.ErrorIs(t, st.Err, ErrFailed)

	st, _ = run(t, base, &Txn{Ops: []Op{{Kind: OpLoad, Module: "missing"}}})
	require.Equal(t, exec.Abort, st.Kind)
	require.ErrorIs(t, st.Err, ErrMissingModule)

	st, _ = run(t, base, &Txn{Ops: []Op{{Kind: OpCheckEqual, Key: "a", Other: "b"}}})
	require.Equal(t, exec.SpeculativeAbort, st.Kind)

	st, _ = run(t, base, &Txn{Ops: []Op{{Kind: OpCodeInvariant, Value: []byte("bad")}}})
	require.Equal(t, exec.DelayedFieldsCodeInvariant, st.Kind)

	st, _ = run(t, base, &Txn{Ops: []Op{{Kind: OpDelta, Key: "agg", Delta: state.SubDelta(1)}, {Kind: OpReadAggregator, Key: "agg"}}})
	require.Equal(t, exec.Abort, st.Kind)
	require.ErrorIs(t, st.Err, state.ErrDeltaUnderflow)

	require.Panics(t, func() {
		run(t, base, &Txn{Ops: []Op{{Kind: OpPanic}}})
	})
}

func TestFactory(t *testing.T) {
	f := &Factory{InitErr: errors.New("no vm")}
	_, err := f.NewExecutor(exec.Environment{}, state.NewMemoryState())
	require.Error(t, err)

	f = &Factory{}
	_, err = f.NewExecutor(exec.Environment{}, state.NewMemoryState())
	require.NoError(t, err)
	require.Equal(t, 1, f.Created())
}

func TestTransferBlock(t *testing.T) {
	cfg := DefaultTransferConfig()
	cfg.Txs = 50
	cfg.ReconfigAt = 10

	block := TransferBlock(cfg)
	require.Equal(t, 50, block.Len())
	require.Equal(t, block.Transactions[3].Hash(), TransferBlock(cfg).Transactions[3].Hash())
	require.NotEqual(t, block.Transactions[3].Hash(), block.Transactions[4].Hash())

	last := block.Transactions[10].(*Txn).Ops
	require.Equal(t, OpReconfigure, last[len(last)-1].Kind)
}
