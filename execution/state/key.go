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

package state

import (
	"fmt"
	"strings"
)

// StateKey addresses a single value in the block state.
type StateKey string

// ModuleID names a published code module.
type ModuleID string

const modulePrefix = "code/"

// ModuleKey returns the state key under which the code of id is stored.
func ModuleKey(id ModuleID) StateKey {
	return StateKey(modulePrefix + string(id))
}

func (k StateKey) IsModule() bool {
	return strings.HasPrefix(string(k), modulePrefix)
}

// ModuleID returns the module stored under k, or the empty id when k is not a code key.
func (k StateKey) ModuleID() ModuleID {
	if !k.IsModule() {
		return ""
	}
	return ModuleID(strings.TrimPrefix(string(k), modulePrefix))
}

func (k StateKey) String() string {
	return string(k)
}

// Version identifies one incarnation of one transaction in the block.
type Version struct {
	TxIndex     int
	Incarnation int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.TxIndex, v.Incarnation)
}

type WriteKind uint8

const (
	WriteValue WriteKind = iota
	WriteDeletion
	WriteDelta
)

func (k WriteKind) String() string {
	switch k {
	case WriteValue:
		return "value"
	case WriteDeletion:
		return "deletion"
	case WriteDelta:
		return "delta"
	default:
		return fmt.Sprintf("WriteKind(%d)", uint8(k))
	}
}

// WriteOp is the effect of a transaction on a single key. Deltas are kept
// in the order the transaction applied them.
type WriteOp struct {
	Kind   WriteKind
	Value  []byte
	Deltas []Delta
}

func ValueOp(v []byte) WriteOp {
	return WriteOp{Kind: WriteValue, Value: v}
}

func DeletionOp() WriteOp {
	return WriteOp{Kind: WriteDeletion}
}

func DeltaOp(deltas ...Delta) WriteOp {
	return WriteOp{Kind: WriteDelta, Deltas: deltas}
}
