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

package codecache

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-blockstm/execution/state"
)

func TestCacheGetPut(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	_, version, ok := c.Get("m")
	require.False(t, ok)
	require.Zero(t, version)

	c.Put("m", []byte("v1"), version)
	code, _, ok := c.Get("m")
	require.True(t, ok)
	require.Equal(t, []byte("v1"), code)
	require.Equal(t, 1, c.Len())
}

func TestCacheInvalidateOnPublish(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	_, before, _ := c.Get("m")
	c.Put("m", []byte("v1"), before)
	c.Put("other", []byte("o"), 0)

	snap := c.Snapshot()
	c.InvalidateOnPublish("m")
	require.Equal(t, snap.Generation()+1, c.Snapshot().Generation())
	require.Equal(t, uint64(0), snap.Version("m"), "old snapshots are immutable")

	_, after, ok := c.Get("m")
	require.False(t, ok)
	require.Equal(t, before+1, after)

	// a load that started before the invalidation cannot repopulate the cache
	c.Put("m", []byte("v1"), before)
	_, _, ok = c.Get("m")
	require.False(t, ok)

	c.Put("m", []byte("v2"), after)
	code, _, ok := c.Get("m")
	require.True(t, ok)
	require.Equal(t, []byte("v2"), code)

	code, _, ok = c.Get("other")
	require.True(t, ok)
	require.Equal(t, []byte("o"), code)

	c.InvalidateOnPublish()
	require.Equal(t, snap.Generation()+1, c.Snapshot().Generation())
}

func TestCacheConcurrentInvalidation(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	var published sync.Map
	published.Store(uint64(0), []byte("code-0"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				code, version, ok := c.Get("m")
				if ok {
					expected, _ := published.Load(version)
					if !bytes.Equal(expected.([]byte), code) {
						t.Errorf("version %d served %s", version, code)
						return
					}
					continue
				}
				current, _ := published.Load(version)
				if current != nil {
					c.Put("m", current.([]byte), version)
				}
			}
		}()
	}

	for v := uint64(1); v <= 100; v++ {
		published.Store(v, []byte("code-"+string(rune('a'+v%26))))
		c.InvalidateOnPublish(state.ModuleID("m"))
	}
	close(stop)
	wg.Wait()
}
