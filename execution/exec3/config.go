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
	"errors"
	"fmt"
	"runtime"

	"github.com/c2h5oh/datasize"

	"github.com/erigontech/erigon-blockstm/execution/exec"
)

type Config struct {
	// Workers is the number of goroutines executing and validating
	// transactions. 1 still runs the parallel protocol.
	Workers int `toml:"workers"`

	// BlockGasLimit halts the block after the transaction whose gas brings
	// the committed total above it. 0 disables the limit.
	BlockGasLimit uint64 `toml:"block_gas_limit"`

	// BlockOutputLimit does the same for the approximate size of committed outputs.
	BlockOutputLimit datasize.ByteSize `toml:"block_output_limit"`

	// FallbackAbortRatio switches the rest of the block to sequential execution
	// once validation aborts exceed ratio*len(block). 0 disables the fallback.
	FallbackAbortRatio    float64 `toml:"fallback_abort_ratio"`
	FallbackMinExecutions int     `toml:"fallback_min_executions"`

	// Profile builds the transaction dependency graph after every block.
	Profile bool `toml:"profile"`

	// ReadCacheSize is the number of base state entries cached for the
	// workers of a block. 0 disables the cache.
	ReadCacheSize int `toml:"read_cache_size"`

	// CodeCacheSize is the number of modules kept by the code cache the CLI creates.
	CodeCacheSize int `toml:"code_cache_size"`

	// IsReconfiguration marks successful outputs that end the block, such as
	// ones emitting a new epoch event. They are committed as SkipRest.
	IsReconfiguration func(out *exec.Output) bool `toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Workers:               runtime.NumCPU(),
		FallbackMinExecutions: 64,
		ReadCacheSize:         1 << 14,
		CodeCacheSize:         1024,
	}
}

func (cfg Config) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.FallbackAbortRatio < 0 {
		return errors.New("fallback abort ratio can't be negative")
	}
	if cfg.ReadCacheSize < 0 {
		return errors.New("read cache size can't be negative")
	}
	if cfg.FallbackMinExecutions < 0 {
		return errors.New("fallback min executions can't be negative")
	}
	return nil
}

func (cfg Config) isReconfiguration(out *exec.Output) bool {
	return cfg.IsReconfiguration != nil && cfg.IsReconfiguration(out)
}

// ReconfigurationOnEvent returns a predicate matching outputs that emitted
// an event of the given type.
func ReconfigurationOnEvent(typ string) func(*exec.Output) bool {
	return func(out *exec.Output) bool {
		return out.HasEvent(typ)
	}
}
