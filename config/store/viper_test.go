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

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
)

func Test_Viper(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()

	t.Run("Missing file", func(t *testing.T) {
		vc := NewViper(home, false, false)
		require.NoError(t, vc.Init(filepath.Join(t.TempDir(), "config.yaml")))
		cfg, err := vc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, home, cfg.Home)
		assert.Equal(t, filepath.Join(home, "downloads"), cfg.DownloadCache)
		assert.Nil(t, cfg.IndexConfigs)
		assert.Nil(t, cfg.Autosync)
		assert.Equal(t, "", cfg.HostProfile)
	})

	t.Run("No default index", func(t *testing.T) {
		vc := NewViper(home, true, true)
		require.NoError(t, vc.Init(filepath.Join(t.TempDir(), "config.yaml")))
		cfg, err := vc.Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, cfg.IndexConfigs)
		assert.Empty(t, cfg.IndexConfigs)
		require.NotNil(t, cfg.Autosync)
		assert.False(t, *cfg.Autosync)
	})

	t.Run("Round trip", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`recipe:
  autosync: false
  profile:
    host: linux-gcc12
  indexes:
    - name: local
      kind: local
      path: /srv/index
`), 0644))
		vc := NewViper(home, false, false)
		require.NoError(t, vc.Init(file))
		cfg, err := vc.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, recipe.IndexConfigs{{Name: "local", Kind: recipe.IndexKindLocal, Path: "/srv/index"}}, cfg.IndexConfigs)
		require.NotNil(t, cfg.Autosync)
		assert.False(t, *cfg.Autosync)
		assert.Equal(t, "linux-gcc12", cfg.HostProfile)
		assert.Equal(t, "", cfg.BuildProfile)

		cfg.IndexConfigs = append(cfg.IndexConfigs, recipe.IndexConfig{
			Name: "center",
			Kind: recipe.IndexKindGit,
			Path: "github.com/conan-io/conan-center-index",
		})
		cfg.BuildProfile = "default"
		require.NoError(t, vc.Store(ctx, cfg))

		reloaded := NewViper(home, false, false)
		require.NoError(t, reloaded.Init(file))
		cfg, err = reloaded.Load(ctx)
		require.NoError(t, err)
		require.Len(t, cfg.IndexConfigs, 2)
		assert.Equal(t, "center", cfg.IndexConfigs[1].Name)
		assert.Equal(t, recipe.IndexKindGit, cfg.IndexConfigs[1].Kind)
		assert.Equal(t, "default", cfg.BuildProfile)
		assert.Equal(t, "linux-gcc12", cfg.HostProfile)
	})
}
