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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/erigontech/erigon-blockstm/execution/exec3"
	"github.com/erigontech/erigon-blockstm/execution/vmtest"
)

// benchConfig is the layout of the --config file.
type benchConfig struct {
	Exec     exec3.Config          `toml:"exec"`
	Workload vmtest.TransferConfig `toml:"workload"`
	Bench    struct {
		Blocks int `toml:"blocks"`
		// Balance every genesis account starts with.
		Balance     uint64 `toml:"balance"`
		MetricsAddr string `toml:"metrics_addr"`
	} `toml:"bench"`
}

func defaultBenchConfig() benchConfig {
	cfg := benchConfig{
		Exec:     exec3.DefaultConfig(),
		Workload: vmtest.DefaultTransferConfig(),
	}
	cfg.Bench.Blocks = 1
	cfg.Bench.Balance = 1_000_000
	return cfg
}

func loadConfig(path string) (benchConfig, error) {
	cfg := defaultBenchConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := decodeConfig(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, cfg *benchConfig) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return cfg.validate()
}

func (cfg *benchConfig) validate() error {
	if err := cfg.Exec.Validate(); err != nil {
		return err
	}
	if cfg.Workload.Txs < 0 {
		return fmt.Errorf("txs can't be negative, got %d", cfg.Workload.Txs)
	}
	if cfg.Workload.Accounts < 1 {
		return fmt.Errorf("accounts must be positive, got %d", cfg.Workload.Accounts)
	}
	if cfg.Workload.Hot < 0 || cfg.Workload.Hot > 1 {
		return fmt.Errorf("hot must be within [0, 1], got %v", cfg.Workload.Hot)
	}
	if cfg.Bench.Blocks < 1 {
		return fmt.Errorf("blocks must be positive, got %d", cfg.Bench.Blocks)
	}
	return nil
}

func (cfg *benchConfig) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
