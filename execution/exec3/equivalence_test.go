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
	"context"
	"fmt"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-blockstm/execution/codecache"
	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
	"github.com/erigontech/erigon-blockstm/execution/vmtest"
)

var (
	fuzzKeys    = []state.StateKey{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7"}
	fuzzAggs    = []state.StateKey{"agg0", "agg1"}
	fuzzModules = []state.ModuleID{"m0", "m1"}
)

func fuzzOp(op *vmtest.Op, c fuzz.Continue) {
	key := fuzzKeys[c.Intn(len(fuzzKeys))]
	other := fuzzKeys[c.Intn(len(fuzzKeys))]
	agg := fuzzAggs[c.Intn(len(fuzzAggs))]
	module := fuzzModules[c.Intn(len(fuzzModules))]

	switch c.Intn(16) {
	case 0, 1:
		*op = vmtest.Op{Kind: vmtest.OpRead, Key: key}
	case 2, 3:
		*op = vmtest.Op{Kind: vmtest.OpWrite, Key: key, Value: balance(uint64(c.Intn(50)))}
	case 4:
		*op = vmtest.Op{Kind: vmtest.OpCopy, Key: key, Other: other}
	case 5, 6:
		*op = vmtest.Op{Kind: vmtest.OpIncrement, Key: key, Amount: uint64(c.Intn(10))}
	case 7, 8:
		*op = vmtest.Op{Kind: vmtest.OpTransfer, Key: key, Other: other, Amount: uint64(1 + c.Intn(20))}
	case 9:
		*op = vmtest.Op{Kind: vmtest.OpDelete, Key: key}
	case 10:
		*op = vmtest.Op{Kind: vmtest.OpDelta, Key: agg, Delta: state.AddDelta(uint64(1+c.Intn(10)), 0)}
	case 11:
		*op = vmtest.Op{Kind: vmtest.OpDelta, Key: agg, Delta: state.SubDelta(uint64(1 + c.Intn(3)))}
	case 12:
		*op = vmtest.Op{Kind: vmtest.OpReadAggregator, Key: agg}
	case 13:
		*op = vmtest.Op{Kind: vmtest.OpPublish, Module: module, Value: []byte(fmt.Sprintf("code-%d", c.Intn(100)))}
	case 14:
		*op = vmtest.Op{Kind: vmtest.OpLoad, Module: module}
	default:
		if c.Intn(4) == 0 {
			*op = vmtest.Op{Kind: vmtest.OpFail, Value: []byte("revert")}
		} else {
			*op = vmtest.Op{Kind: vmtest.OpEmit, Event: "log", Value: []byte{byte(c.Intn(256))}}
		}
	}
}

func fuzzTxn(txn *vmtest.Txn, c fuzz.Continue) {
	txn.Gas = uint64(1 + c.Intn(100))
	txn.Ops = make([]vmtest.Op, 1+c.Intn(4))
	for i := range txn.Ops {
		c.Fuzz(&txn.Ops[i])
	}
}

func randomBlock(seed int64, size int) (*exec.Block, *state.MemoryState) {
	f := fuzz.NewWithSeed(seed).NilChance(0).Funcs(fuzzOp, fuzzTxn)

	txns := make([]*vmtest.Txn, size)
	for i := range txns {
		txns[i] = &vmtest.Txn{}
		f.Fuzz(txns[i])
	}

	kvs := map[state.StateKey][]byte{
		state.ModuleKey("m0"): []byte("genesis"),
	}
	for i, k := range fuzzKeys {
		if i%3 != 2 {
			kvs[k] = balance(uint64(10 * (i + 1)))
		}
	}
	for _, k := range fuzzAggs {
		kvs[k] = balance(20)
	}
	return newBlock(txns...), state.NewMemoryStateFrom(kvs)
}

func TestParallelMatchesSequential(t *testing.T) {
	seeds := 40
	if testing.Short() {
		seeds = 10
	}

	for seed := int64(0); seed < int64(seeds); seed++ {
		block, base := randomBlock(seed, 5+int(seed)%40)

		seqCache, err := codecache.New(8)
		require.NoError(t, err)
		want, wantErr := NewSequentialExecutor(testConfig(1), &vmtest.Factory{}, seqCache, testLogger()).
			ExecuteBlock(context.Background(), block, base)

		for _, workers := range []int{1, 2, 4, 8} {
			t.Run(fmt.Sprintf("seed=%d/workers=%d", seed, workers), func(t *testing.T) {
				cache, err := codecache.New(8)
				require.NoError(t, err)

				cfg := testConfig(workers)
				cfg.Profile = seed%2 == 0
				factory := &vmtest.Factory{MaxDelay: 30 * time.Microsecond, Seed: seed}

				got, err := NewParallelExecutor(cfg, factory, cache, testLogger()).ExecuteBlock(context.Background(), block, base)
				if wantErr != nil {
					require.EqualError(t, err, wantErr.Error())
					return
				}
				require.NoError(t, err)
				requireSameResult(t, want, got)
			})
		}
	}
}

func TestTransferWorkload(t *testing.T) {
	cfg := vmtest.DefaultTransferConfig()
	cfg.Txs = 300
	cfg.Accounts = 20
	cfg.Hot = 0.3
	cfg.MaxAmount = 5
	block := vmtest.TransferBlock(cfg)
	base := vmtest.Genesis(cfg.Accounts, 1000)

	want, err := executeSequential(t, testConfig(1), block, base)
	require.NoError(t, err)

	fees, _ := committedValue(t, want, vmtest.FeesKey)
	require.Equal(t, balance(300), fees)

	for _, workers := range []int{2, 8} {
		got, err := NewParallelExecutor(testConfig(workers), &vmtest.Factory{Seed: int64(workers)}, nil, testLogger()).
			ExecuteBlock(context.Background(), block, base)
		require.NoError(t, err)
		requireSameResult(t, want, got)
		require.Equal(t, len(got.Stats.Incarnations), block.Len())
	}
}
