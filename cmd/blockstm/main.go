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
	"fmt"
	"os"
	"strings"

	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"
)

var (
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML file with [exec], [workload] and [bench] sections",
	}
	VerbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level: crit, error, warn, info, debug",
		Value: "info",
	}
	MetricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address, e.g. 127.0.0.1:6061",
	}
	TxsFlag = cli.IntFlag{
		Name:  "txs",
		Usage: "Transactions per block",
	}
	AccountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "Number of accounts transfers pick from",
	}
	HotFlag = cli.Float64Flag{
		Name:  "hot",
		Usage: "Share of transfers paying into the same account",
	}
	WorkersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "Parallel workers, defaults to the number of CPUs",
	}
	ReconfigAtFlag = cli.IntFlag{
		Name:  "reconfig-at",
		Usage: "Index of the transaction that ends every block, -1 disables",
	}
	SeedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Workload seed",
	}
	BlocksFlag = cli.IntFlag{
		Name:  "blocks",
		Usage: "Number of blocks to run, each on top of the previous one",
	}
	FallbackRatioFlag = cli.Float64Flag{
		Name:  "fallback-ratio",
		Usage: "Abort ratio switching the rest of a block to sequential execution, 0 disables",
	}
	ProfileFlag = cli.BoolFlag{
		Name:  "profile",
		Usage: "Log the dependency graph of every block",
	}
)

var benchFlags = []cli.Flag{
	&ConfigFlag,
	&MetricsAddrFlag,
	&TxsFlag,
	&AccountsFlag,
	&HotFlag,
	&WorkersFlag,
	&ReconfigAtFlag,
	&SeedFlag,
	&BlocksFlag,
	&FallbackRatioFlag,
	&ProfileFlag,
}

var benchCommand = cli.Command{
	Action: runBench,
	Name:   "bench",
	Usage:  "Execute generated transfer blocks sequentially and in parallel and compare the results",
	Flags:  benchFlags,
}

var configCommand = cli.Command{
	Action: printConfig,
	Name:   "config",
	Usage:  "Print the effective configuration as TOML",
	Flags:  benchFlags,
}

func main() {
	app := cli.NewApp()
	app.Name = "blockstm"
	app.Usage = "parallel block execution benchmark"
	app.UsageText = app.Name + ` [command] [flags]`

	app.Commands = []*cli.Command{
		&benchCommand,
		&configCommand,
	}
	app.Flags = []cli.Flag{
		&VerbosityFlag,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(ctx *cli.Context) (log.Logger, error) {
	lvl, err := log.LvlFromString(strings.ToLower(ctx.String(VerbosityFlag.Name)))
	if err != nil {
		return nil, err
	}
	logger := log.New()
	logger.SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
	return logger, nil
}

// configFromFlags loads --config and overrides it with explicitly set flags.
func configFromFlags(ctx *cli.Context) (benchConfig, error) {
	cfg, err := loadConfig(ctx.String(ConfigFlag.Name))
	if err != nil {
		return cfg, err
	}

	if ctx.IsSet(TxsFlag.Name) {
		cfg.Workload.Txs = ctx.Int(TxsFlag.Name)
	}
	if ctx.IsSet(AccountsFlag.Name) {
		cfg.Workload.Accounts = ctx.Int(AccountsFlag.Name)
	}
	if ctx.IsSet(HotFlag.Name) {
		cfg.Workload.Hot = ctx.Float64(HotFlag.Name)
	}
	if ctx.IsSet(ReconfigAtFlag.Name) {
		cfg.Workload.ReconfigAt = ctx.Int(ReconfigAtFlag.Name)
	}
	if ctx.IsSet(SeedFlag.Name) {
		cfg.Workload.Seed = ctx.Int64(SeedFlag.Name)
	}
	if ctx.IsSet(WorkersFlag.Name) {
		cfg.Exec.Workers = ctx.Int(WorkersFlag.Name)
	}
	if ctx.IsSet(FallbackRatioFlag.Name) {
		cfg.Exec.FallbackAbortRatio = ctx.Float64(FallbackRatioFlag.Name)
	}
	if ctx.IsSet(ProfileFlag.Name) {
		cfg.Exec.Profile = ctx.Bool(ProfileFlag.Name)
	}
	if ctx.IsSet(BlocksFlag.Name) {
		cfg.Bench.Blocks = ctx.Int(BlocksFlag.Name)
	}
	if ctx.IsSet(MetricsAddrFlag.Name) {
		cfg.Bench.MetricsAddr = ctx.String(MetricsAddrFlag.Name)
	}
	return cfg, cfg.validate()
}

func printConfig(ctx *cli.Context) error {
	cfg, err := configFromFlags(ctx)
	if err != nil {
		return err
	}
	b, err := cfg.encode()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
