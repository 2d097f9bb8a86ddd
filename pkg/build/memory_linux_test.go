// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meminfo")
	require.NoError(t, os.WriteFile(path, []byte("MemTotal:       16318412 kB\nMemAvailable:    2048 kB\n"), 0644))
	available, ok := memAvailable(path)
	require.True(t, ok)
	assert.Equal(t, uint64(2048*1024), available)

	_, ok = memAvailable(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("MemTotal:       16318412 kB\n"), 0644))
	_, ok = memAvailable(path)
	assert.False(t, ok)
}
