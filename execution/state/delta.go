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
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrDeltaOverflow    = errors.New("aggregator delta overflow")
	ErrDeltaUnderflow   = errors.New("aggregator delta underflow")
	ErrAggregatorFormat = errors.New("aggregator value is wider than 32 bytes")
)

const AggregatorLength = 32

// Delta is a commutative update of an aggregator value. It is applied
// against the value visible at materialization time rather than against
// the value the transaction observed, so transactions that only add to a
// counter do not conflict with each other.
type Delta struct {
	Amount   uint256.Int
	Negative bool
	// Limit is the inclusive upper bound of the aggregator. A zero limit is unbounded.
	Limit uint256.Int
}

func AddDelta(amount, limit uint64) Delta {
	var d Delta
	d.Amount.SetUint64(amount)
	d.Limit.SetUint64(limit)
	return d
}

func SubDelta(amount uint64) Delta {
	var d Delta
	d.Amount.SetUint64(amount)
	d.Negative = true
	return d
}

func (d Delta) String() string {
	sign := "+"
	if d.Negative {
		sign = "-"
	}
	if d.Limit.IsZero() {
		return sign + d.Amount.Dec()
	}
	return fmt.Sprintf("%s%s(<=%s)", sign, d.Amount.Dec(), d.Limit.Dec())
}

// Apply returns base updated by d.
func (d Delta) Apply(base *uint256.Int) (uint256.Int, error) {
	var res uint256.Int
	if d.Negative {
		if base.Lt(&d.Amount) {
			return res, fmt.Errorf("%w: %s %s", ErrDeltaUnderflow, base.Dec(), d)
		}
		res.Sub(base, &d.Amount)
		return res, nil
	}
	if _, overflow := res.AddOverflow(base, &d.Amount); overflow {
		return res, fmt.Errorf("%w: %s %s", ErrDeltaOverflow, base.Dec(), d)
	}
	if !d.Limit.IsZero() && res.Gt(&d.Limit) {
		return res, fmt.Errorf("%w: %s %s", ErrDeltaOverflow, base.Dec(), d)
	}
	return res, nil
}

// ApplyDeltas applies deltas oldest first, stopping at the first failure.
func ApplyDeltas(base *uint256.Int, deltas []Delta) (uint256.Int, error) {
	v := *base
	for _, d := range deltas {
		next, err := d.Apply(&v)
		if err != nil {
			return uint256.Int{}, err
		}
		v = next
	}
	return v, nil
}

// DecodeAggregator reads a big-endian aggregator value. Missing values read as zero.
func DecodeAggregator(b []byte) (uint256.Int, error) {
	var v uint256.Int
	if len(b) > AggregatorLength {
		return v, ErrAggregatorFormat
	}
	v.SetBytes(b)
	return v, nil
}

func EncodeAggregator(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

// ResolveDeltas materializes deltas on top of an encoded base value.
func ResolveDeltas(base []byte, deltas []Delta) ([]byte, error) {
	v, err := DecodeAggregator(base)
	if err != nil {
		return nil, err
	}
	res, err := ApplyDeltas(&v, deltas)
	if err != nil {
		return nil, err
	}
	return EncodeAggregator(&res), nil
}
