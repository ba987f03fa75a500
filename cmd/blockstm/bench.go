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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/erigon-blockstm/common/metrics"
	"github.com/erigontech/erigon-blockstm/execution/codecache"
	"github.com/erigontech/erigon-blockstm/execution/exec3"
	"github.com/erigontech/erigon-blockstm/execution/state"
	"github.com/erigontech/erigon-blockstm/execution/vmtest"
)

var errMismatch = errors.New("parallel result differs from sequential")

// Incarnations differ between the two runs.
var resultOpts = cmp.Options{
	cmpopts.IgnoreFields(state.Version{}, "Incarnation"),
	cmpopts.EquateEmpty(),
	cmp.Comparer(func(a, b error) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return a.Error() == b.Error()
	}),
}

func runBench(cliCtx *cli.Context) error {
	logger, err := setupLogger(cliCtx)
	if err != nil {
		return err
	}
	cfg, err := configFromFlags(cliCtx)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if addr := cfg.Bench.MetricsAddr; addr != "" {
		srv := startMetrics(addr, logger)
		defer srv.Close()
	}

	return bench(ctx, cfg, logger)
}

func startMetrics(addr string, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s/debug/metrics/prometheus", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	return srv
}

// bench runs the configured number of blocks, each on top of the state
// the previous block committed, and checks that parallel execution
// matches sequential execution block by block.
func bench(ctx context.Context, cfg benchConfig, logger log.Logger) error {
	cfg.Exec.IsReconfiguration = exec3.ReconfigurationOnEvent(vmtest.EventNewEpoch)

	seqCache, err := codecache.New(cfg.Exec.CodeCacheSize)
	if err != nil {
		return err
	}
	parCache, err := codecache.New(cfg.Exec.CodeCacheSize)
	if err != nil {
		return err
	}
	seq := exec3.NewSequentialExecutor(cfg.Exec, &vmtest.Factory{}, seqCache, logger)
	par := exec3.NewParallelExecutor(cfg.Exec, &vmtest.Factory{Seed: cfg.Workload.Seed}, parCache, logger)

	base := vmtest.Genesis(cfg.Workload.Accounts, cfg.Bench.Balance)
	workload := cfg.Workload

	var seqTotal, parTotal time.Duration
	for i := 0; i < cfg.Bench.Blocks; i++ {
		workload.Number = cfg.Workload.Number + uint64(i)
		workload.Seed = cfg.Workload.Seed + int64(i)
		block := vmtest.TransferBlock(workload)

		start := time.Now()
		want, err := seq.ExecuteBlock(ctx, block, base)
		if err != nil {
			return fmt.Errorf("block %d sequential: %w", block.Number(), err)
		}
		seqTook := time.Since(start)

		start = time.Now()
		got, err := par.ExecuteBlock(ctx, block, base)
		if err != nil {
			return fmt.Errorf("block %d parallel: %w", block.Number(), err)
		}
		parTook := time.Since(start)

		if diff := diffResults(want, got); diff != "" {
			logger.Error("Result mismatch", "block", block.Number(), "diff", diff)
			return fmt.Errorf("block %d: %w", block.Number(), errMismatch)
		}

		seqTotal += seqTook
		parTotal += parTook
		logger.Info("Block executed", "number", block.Number(), "txs", block.Len(),
			"committed", got.Stats.Committed, "gas", got.GasUsed, "output", got.OutputSize.HumanReadable(),
			"seq", seqTook, "par", parTook, "speedup", speedup(seqTook, parTook), "stats", got.Stats.String())
		if got.Stats.Deps != "" {
			logger.Debug("Dependencies", "number", block.Number(), "longest", got.Stats.LongestDepChain, "deps", got.Stats.Deps)
		}

		if base, err = base.Apply(got.Writes); err != nil {
			return err
		}
	}

	logger.Info("Bench done", "blocks", cfg.Bench.Blocks, "workers", cfg.Exec.Workers,
		"seq", seqTotal, "par", parTotal, "speedup", speedup(seqTotal, parTotal))
	return nil
}

func diffResults(want, got *exec3.BlockResult) string {
	if diff := cmp.Diff(want.Results, got.Results, resultOpts...); diff != "" {
		return diff
	}
	if diff := cmp.Diff(want.Writes, got.Writes, resultOpts...); diff != "" {
		return diff
	}
	if want.GasUsed != got.GasUsed {
		return fmt.Sprintf("gas used %d != %d", want.GasUsed, got.GasUsed)
	}
	return ""
}

func speedup(seq, par time.Duration) string {
	if par <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2fx", float64(seq)/float64(par))
}
