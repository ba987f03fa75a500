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

package main

import (
	"context"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	cfg := defaultBenchConfig()
	err := decodeConfig(strings.NewReader(`
[exec]
workers = 3
block_output_limit = "64KB"
fallback_abort_ratio = 0.5

[workload]
txs = 50
hot = 0.2

[bench]
blocks = 2
`), &cfg)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Exec.Workers)
	require.Equal(t, 64*datasize.KB, cfg.Exec.BlockOutputLimit)
	require.Equal(t, 0.5, cfg.Exec.FallbackAbortRatio)
	require.Equal(t, 50, cfg.Workload.Txs)
	require.Equal(t, 0.2, cfg.Workload.Hot)
	require.Equal(t, 100, cfg.Workload.Accounts)
	require.Equal(t, 2, cfg.Bench.Blocks)

	cfg = defaultBenchConfig()
	require.Error(t, decodeConfig(strings.NewReader("[exec]\nworkerz = 3\n"), &cfg))

	cfg = defaultBenchConfig()
	require.Error(t, decodeConfig(strings.NewReader("[exec]\nworkers = 0\n"), &cfg))
}

func TestEncodeConfigRoundTrip(t *testing.T) {
	cfg := defaultBenchConfig()
	cfg.Exec.Workers = 5
	cfg.Exec.BlockOutputLimit = 2 * datasize.MB
	b, err := cfg.encode()
	require.NoError(t, err)

	decoded := defaultBenchConfig()
	require.NoError(t, decodeConfig(strings.NewReader(string(b)), &decoded))
	require.Equal(t, cfg.Exec.Workers, decoded.Exec.Workers)
	require.Equal(t, cfg.Exec.BlockOutputLimit, decoded.Exec.BlockOutputLimit)
	require.Equal(t, cfg.Workload, decoded.Workload)
}

func TestBench(t *testing.T) {
	cfg := defaultBenchConfig()
	cfg.Exec.Workers = 4
	cfg.Workload.Txs = 200
	cfg.Workload.Accounts = 30
	cfg.Workload.ReconfigAt = 150
	cfg.Bench.Blocks = 3

	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	require.NoError(t, bench(context.Background(), cfg, logger))
}
