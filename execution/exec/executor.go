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
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-blockstm/execution/state"
)

//go:generate mockgen -source=./executor.go -destination=./executor_mock.go -package=exec

// StateView is what a transaction sees while it executes. Values returned
// by reads must not be modified.
type StateView interface {
	Get(key state.StateKey) ([]byte, bool, error)
	Has(key state.StateKey) (bool, error)
	Put(key state.StateKey, value []byte)
	Delete(key state.StateKey)
	AddDelta(key state.StateKey, d state.Delta) error
	GetAggregator(key state.StateKey) (uint256.Int, error)
	Module(id state.ModuleID) ([]byte, bool, error)
	PublishModule(id state.ModuleID, code []byte)
}

var _ StateView = (*state.VersionedStateView)(nil)

// Executor runs single transactions. One executor is created per worker
// and is never called concurrently.
type Executor interface {
	ExecuteTransaction(view StateView, txn Transaction, txIndex int) ExecutionStatus
}

type ExecutorFactory interface {
	NewExecutor(env Environment, base state.StateReader) (Executor, error)
}

// ExecutorFactoryFunc adapts a function to ExecutorFactory.
type ExecutorFactoryFunc func(env Environment, base state.StateReader) (Executor, error)

func (f ExecutorFactoryFunc) NewExecutor(env Environment, base state.StateReader) (Executor, error) {
	return f(env, base)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(view StateView, txn Transaction, txIndex int) ExecutionStatus

func (f ExecutorFunc) ExecuteTransaction(view StateView, txn Transaction, txIndex int) ExecutionStatus {
	return f(view, txn, txIndex)
}
