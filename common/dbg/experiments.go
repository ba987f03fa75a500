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

package dbg

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"

	log "github.com/inconshreveable/log15"
)

var doMemstat = true

func init() {
	_, ok := os.LookupEnv("NO_MEMSTAT")
	if ok {
		doMemstat = false
	}
}

func DoMemStat() bool { return doMemstat }
func ReadMemStats(m *runtime.MemStats) {
	if doMemstat {
		runtime.ReadMemStats(m)
	}
}

// Stack returns the stack of the calling goroutine.
func Stack() string {
	return string(debug.Stack())
}

func EnvBool(name string, defaultVal bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	log.Info("[Experiment]", name, b)
	return b
}

func EnvInt(name string, defaultVal int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	log.Info("[Experiment]", name, i)
	return i
}

var (
	traceTxIO     bool
	traceTxIOOnce sync.Once
)

// TraceTxIO logs the read and write set of every finished execution.
func TraceTxIO() bool {
	traceTxIOOnce.Do(func() {
		traceTxIO = EnvBool("BLOCKSTM_TRACE_IO", false)
	})
	return traceTxIO
}

var (
	traceTx     = -1
	traceTxOnce sync.Once
)

// TraceTx is the index of the single transaction TraceTxIO is limited to, -1 for all.
func TraceTx() int {
	traceTxOnce.Do(func() {
		traceTx = EnvInt("BLOCKSTM_TRACE_TX", -1)
	})
	return traceTx
}

// Traced reports whether IO tracing is on for txIdx.
func Traced(txIdx int) bool {
	if !TraceTxIO() {
		return false
	}
	t := TraceTx()
	return t < 0 || t == txIdx
}
