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
	"github.com/c2h5oh/datasize"

	"github.com/erigontech/erigon-blockstm/common"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

// Transaction is opaque to the engine apart from its identity and whether
// the block is invalid without it.
type Transaction interface {
	Hash() common.Hash
	// MustSucceed marks transactions, such as block metadata, whose abort
	// fails the whole block.
	MustSucceed() bool
}

// Environment carries the block context handed to the executor factory.
type Environment struct {
	BlockNumber uint64
	Timestamp   uint64
	GasLimit    uint64
}

type Block struct {
	Env          Environment
	Transactions []Transaction
}

func (b *Block) Number() uint64 {
	return b.Env.BlockNumber
}

func (b *Block) Len() int {
	return len(b.Transactions)
}

type Event struct {
	Type string
	Data []byte
}

// Output is the effect of a transaction. The VM fills Events and GasUsed;
// the engine fills Writes and Published from what the transaction did to
// its view.
type Output struct {
	Writes    state.VersionedWrites
	Events    []Event
	GasUsed   uint64
	Published []state.ModuleID
}

// Size approximates the bytes the output adds to the block.
func (o *Output) Size() datasize.ByteSize {
	if o == nil {
		return 0
	}
	var size uint64
	for _, w := range o.Writes {
		size += uint64(len(w.Path) + len(w.Op.Value))
	}
	for _, e := range o.Events {
		size += uint64(len(e.Type) + len(e.Data))
	}
	return datasize.ByteSize(size)
}

// HasEvent reports whether the output emitted an event of the given type.
func (o *Output) HasEvent(typ string) bool {
	if o == nil {
		return false
	}
	for _, e := range o.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}
