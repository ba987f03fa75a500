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
	"fmt"
	"math/rand"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-blockstm/execution/exec"
	"github.com/erigontech/erigon-blockstm/execution/state"
)

// FeesKey is the aggregator every transfer adds its fee to.
const FeesKey state.StateKey = "fees"

func Account(i int) state.StateKey {
	return state.StateKey(fmt.Sprintf("acct/%06d", i))
}

// Genesis creates accounts holding balance each.
func Genesis(accounts int, balance uint64) *state.MemoryState {
	ms := state.NewMemoryState()
	b := uint256.NewInt(balance)
	for i := 0; i < accounts; i++ {
		ms.Set(Account(i), state.EncodeAggregator(b))
	}
	return ms
}

type TransferConfig struct {
	Txs      int `toml:"txs"`
	Accounts int `toml:"accounts"`
	// Hot is the share of transfers paying into account 0.
	Hot       float64 `toml:"hot"`
	MaxAmount uint64  `toml:"max_amount"`
	Fee       uint64  `toml:"fee"`
	// ReconfigAt makes the transaction at that index end the block; -1 disables.
	ReconfigAt int    `toml:"reconfig_at"`
	Number     uint64 `toml:"number"`
	Seed       int64  `toml:"seed"`
}

func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		Txs:        1000,
		Accounts:   100,
		Hot:        0.1,
		MaxAmount:  100,
		Fee:        1,
		ReconfigAt: -1,
		Number:     1,
		Seed:       1,
	}
}

// TransferBlock generates a block of balance transfers between random
// accounts. Fees are collected through an aggregator so they don't make
// transfers conflict.
func TransferBlock(cfg TransferConfig) *exec.Block {
	rng := rand.New(rand.NewSource(cfg.Seed))
	block := &exec.Block{
		Env: exec.Environment{BlockNumber: cfg.Number, Timestamp: cfg.Number * 12, GasLimit: uint64(cfg.Txs) * 21000},
	}

	for i := 0; i < cfg.Txs; i++ {
		from := rng.Intn(cfg.Accounts)
		to := rng.Intn(cfg.Accounts)
		if rng.Float64() < cfg.Hot {
			to = 0
		}
		amount := uint64(1)
		if cfg.MaxAmount > 1 {
			amount += uint64(rng.Int63n(int64(cfg.MaxAmount)))
		}

		txn := &Txn{
			Nonce: uint64(i),
			Gas:   21000,
			Ops: []Op{
				{Kind: OpTransfer, Key: Account(from), Other: Account(to), Amount: amount},
			},
		}
		if cfg.Fee > 0 {
			txn.Ops = append(txn.Ops, Op{Kind: OpDelta, Key: FeesKey, Delta: state.AddDelta(cfg.Fee, 0)})
		}
		if i == cfg.ReconfigAt {
			txn.Ops = append(txn.Ops, Op{Kind: OpReconfigure})
		}
		block.Transactions = append(block.Transactions, txn)
	}
	return block
}
