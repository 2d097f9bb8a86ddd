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

package files

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Unzip(t *testing.T) {
	files := map[string]string{
		"eigen-3.4.0/Eigen/Core":        "// core\n",
		"eigen-3.4.0/COPYING.MPL2":      "MPL2\n",
		"eigen-3.4.0/cmake/Eigen.cmake": "# cmake\n",
	}
	archives := map[string][]byte{
		"eigen.tar.gz": tarGzBytes(t, files),
		"eigen.tar.xz": tarXzBytes(t, files),
		"eigen.tar":    tarBytes(t, files),
		"eigen.zip":    zipBytes(t, files),
	}
	for name, content := range archives {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(archive, content, 0644))

			stripped := filepath.Join(dir, "stripped")
			require.NoError(t, Unzip(archive, stripped, true))
			assert.Equal(t, "// core\n", readFile(t, filepath.Join(stripped, "Eigen", "Core")))
			assert.Equal(t, "MPL2\n", readFile(t, filepath.Join(stripped, "COPYING.MPL2")))

			kept := filepath.Join(dir, "kept")
			require.NoError(t, Unzip(archive, kept, false))
			assert.Equal(t, "# cmake\n", readFile(t, filepath.Join(kept, "eigen-3.4.0", "cmake", "Eigen.cmake")))
		})
	}

	t.Run("No common root", func(t *testing.T) {
		dir := t.TempDir()
		archive := filepath.Join(dir, "flat.tar.gz")
		require.NoError(t, os.WriteFile(archive, tarGzBytes(t, map[string]string{
			"a/x.h": "",
			"b/y.h": "",
		}), 0644))
		err := Unzip(archive, filepath.Join(dir, "out"), true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "top-level directory")

		archive = filepath.Join(dir, "file.zip")
		require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{"README": "x"}), 0644))
		assert.Error(t, Unzip(archive, filepath.Join(dir, "out"), true))
		require.NoError(t, Unzip(archive, filepath.Join(dir, "out"), false))
	})

	t.Run("Path traversal", func(t *testing.T) {
		dir := t.TempDir()
		archive := filepath.Join(dir, "evil.tar")
		require.NoError(t, os.WriteFile(archive, tarBytes(t, map[string]string{"../evil.sh": "rm -rf /"}), 0644))
		assert.Error(t, Unzip(archive, filepath.Join(dir, "out"), false))
		_, err := os.Stat(filepath.Join(dir, "evil.sh"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Links", func(t *testing.T) {
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		content := "libz\n"
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "zlib/lib/libz.so.1.3", Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "zlib/lib/libz.so", Linkname: "libz.so.1.3", Typeflag: tar.TypeSymlink}))
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "zlib/lib/libz-copy.so", Linkname: "zlib/lib/libz.so.1.3", Typeflag: tar.TypeLink}))
		require.NoError(t, tw.Close())

		dir := t.TempDir()
		archive := filepath.Join(dir, "links.tar")
		require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))
		out := filepath.Join(dir, "out")
		require.NoError(t, Unzip(archive, out, true))
		link, err := os.Readlink(filepath.Join(out, "lib", "libz.so"))
		require.NoError(t, err)
		assert.Equal(t, "libz.so.1.3", link)
		assert.Equal(t, content, readFile(t, filepath.Join(out, "lib", "libz-copy.so")))
	})

	t.Run("Unsupported", func(t *testing.T) {
		assert.False(t, IsArchive("gurobi.msi"))
		assert.True(t, IsArchive("GMP-6.3.0.TAR.BZ2"))
		assert.Error(t, Unzip("gurobi.msi", t.TempDir(), false))
	})
}
