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

import "github.com/erigontech/erigon-blockstm/common/metrics"

var (
	mxExecBlocks       = metrics.GetOrCreateCounter("exec_blocks")
	mxExecTransactions = metrics.GetOrCreateCounter("exec_txs_done")
	mxExecRepeats      = metrics.GetOrCreateCounter("exec_repeats")
	mxExecTriggers     = metrics.GetOrCreateCounter("exec_triggers")
	mxExecAborts       = metrics.GetOrCreateCounter(`exec_aborts{reason="validation"}`)
	mxExecDependencies = metrics.GetOrCreateCounter(`exec_aborts{reason="dependency"}`)
	mxExecSpeculative  = metrics.GetOrCreateCounter(`exec_aborts{reason="speculative"}`)
	mxExecFallbacks    = metrics.GetOrCreateCounter("exec_fallbacks")
	mxExecHalts        = metrics.GetOrCreateCounter("exec_halts")
	mxExecGas          = metrics.GetOrCreateCounter("exec_gas")
	mxExecWorkers      = metrics.GetOrCreateGauge("exec_workers")
	mxExecBlockTime    = metrics.GetOrCreateSummary("exec_block_seconds")
)
