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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvBool(t *testing.T) {
	t.Setenv("DBG_TEST_BOOL", "true")
	require.True(t, EnvBool("DBG_TEST_BOOL", false))
	require.True(t, EnvBool("DBG_TEST_UNSET", true))
	t.Setenv("DBG_TEST_BOOL", "nope")
	require.Panics(t, func() { EnvBool("DBG_TEST_BOOL", false) })
}

func TestEnvInt(t *testing.T) {
	t.Setenv("DBG_TEST_INT", "7")
	require.Equal(t, 7, EnvInt("DBG_TEST_INT", 0))
	require.Equal(t, -1, EnvInt("DBG_TEST_UNSET", -1))
}
