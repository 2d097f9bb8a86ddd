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

package recipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const eigenSHA = "b4c198460eba6f28d34894e3a5710998818515104d6e74e5cc331ce31e46e626"

func Test_NewRecipeVersion(t *testing.T) {
	source := func(url string) SourceEntry {
		return SourceEntry{URLs: URLList{url}, SHA256: eigenSHA}
	}

	t.Run("Fresh index", func(t *testing.T) {
		dir := t.TempDir()
		ui := &testUI{}
		require.NoError(t, NewRecipeVersion(dir, "eigen", "3.4.0", source("https://example.com/eigen-3.4.0.tar.bz2"), ui))
		require.NoError(t, NewRecipeVersion(dir, "eigen", "3.3.9", source("https://example.com/eigen-3.3.9.tar.bz2"), ui))
		assert.Len(t, ui.messages, 2)

		index := NewLocalIndex("local", dir)
		require.NoError(t, index.Load(context.Background(), false, Cache{}, ui))
		entry, ok := index.MatchName("eigen")
		require.True(t, ok)
		assert.Equal(t, []string{"3.3.9", "3.4.0"}, entry.Versions.List())
		data, err := entry.ConanData("3.3.9")
		require.NoError(t, err)
		e, err := data.Source("3.3.9")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/eigen-3.3.9.tar.bz2"}, []string(e.URLs))
		assert.Equal(t, eigenSHA, e.SHA256)

		content, err := os.ReadFile(filepath.Join(dir, RecipesDir, "eigen", DefaultRecipeFolder, ConanDataFileName))
		require.NoError(t, err)
		assert.Contains(t, string(content), "  \"3.4.0\":\n    url: https://example.com/eigen-3.4.0.tar.bz2\n")
	})

	t.Run("Keeps other sections", func(t *testing.T) {
		dir := t.TempDir()
		folder := filepath.Join(dir, RecipesDir, "eigen", DefaultRecipeFolder)
		require.NoError(t, writeTestFile(filepath.Join(folder, ConanDataFileName), eigenConanData))
		require.NoError(t, NewRecipeVersion(dir, "eigen", "3.4.1", source("https://example.com/eigen-3.4.1.tar.bz2"), &testUI{}))
		data, err := ReadConanData(filepath.Join(folder, ConanDataFileName))
		require.NoError(t, err)
		assert.True(t, data.HasSource("3.4.0"))
		assert.True(t, data.HasSource("3.4.1"))
		assert.Len(t, data.PatchesFor("3.4.0", OSWindows), 2)
	})

	t.Run("Already exists", func(t *testing.T) {
		dir := t.TempDir()
		ui := &testUI{}
		require.NoError(t, NewRecipeVersion(dir, "eigen", "3.4.0", source("https://example.com/a.tgz"), ui))
		err := NewRecipeVersion(dir, "eigen", "3.4.0", source("https://example.com/a.tgz"), ui)
		assert.Equal(t, codes.AlreadyExists, status.Code(err))

		// Sources without a config.yml entry.
		dir = t.TempDir()
		folder := filepath.Join(dir, RecipesDir, "eigen", DefaultRecipeFolder)
		require.NoError(t, writeTestFile(filepath.Join(folder, ConanDataFileName), eigenConanData))
		err = NewRecipeVersion(dir, "eigen", "3.4.0", source("https://example.com/a.tgz"), ui)
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
	})

	t.Run("Invalid", func(t *testing.T) {
		dir := t.TempDir()
		ui := &testUI{}
		assert.True(t, IsErrAlreadyReported(NewRecipeVersion(dir, "Eigen", "3.4.0", source("https://example.com/a.tgz"), ui)))
		assert.True(t, IsErrAlreadyReported(NewRecipeVersion(dir, "eigen", "[>=3]", source("https://example.com/a.tgz"), ui)))
		bad := SourceEntry{URLs: URLList{"https://example.com/a.tgz"}, SHA256: "abc"}
		assert.True(t, IsErrAlreadyReported(NewRecipeVersion(dir, "eigen", "3.4.0", bad, ui)))
		assert.Len(t, ui.messages, 3)
		_, err := os.Stat(filepath.Join(dir, RecipesDir))
		assert.True(t, os.IsNotExist(err))
	})
}
