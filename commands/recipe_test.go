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

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/tracking"
)

const helloSHA = "b4c198460eba6f28d34894e3a5710998818515104d6e74e5cc331ce31e46e626"

type testUI struct {
	messages []string
}

func (ui *testUI) ReportError(format string, a ...interface{}) error {
	ui.messages = append(ui.messages, fmt.Sprintf("Error: "+format, a...))
	return recipe.ErrAlreadyReported
}

func (ui *testUI) ReportWarning(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Warning: "+format, a...))
}

func (ui *testUI) ReportInfo(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Info: "+format, a...))
}

func (ui *testUI) contains(substr string) bool {
	for _, m := range ui.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type memStore struct {
	cfg    Config
	stores int
}

func (s *memStore) Load(ctx context.Context) (*Config, error) {
	cfg := s.cfg
	return &cfg, nil
}

func (s *memStore) Store(ctx context.Context, cfg *Config) error {
	s.cfg = *cfg
	s.stores++
	return nil
}

// helloRecipe is a header library that produces its sources locally.
func helloRecipe() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "hello",
		License:     "MIT",
		PackageType: recipe.HeaderLibrary,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
	}).
		On(recipe.StageSource, func(ctx context.Context, c *recipe.Conanfile) error {
			if err := os.WriteFile(filepath.Join(c.SourceFolder(), "LICENSE"), []byte("MIT"), 0644); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(c.SourceFolder(), "include"), 0755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(c.SourceFolder(), "include", "hello.h"), []byte("#pragma once\n"), 0644)
		}).
		On(recipe.StagePackage, func(ctx context.Context, c *recipe.Conanfile) error {
			if _, err := files.Copy("LICENSE", c.SourceFolder(), filepath.Join(c.PackageFolder(), "licenses")); err != nil {
				return err
			}
			_, err := files.Copy("*.h", filepath.Join(c.SourceFolder(), "include"), filepath.Join(c.PackageFolder(), "include"))
			return err
		}).
		On(recipe.StagePackageInfo, func(ctx context.Context, c *recipe.Conanfile) error {
			c.CppInfo.BinDirs = nil
			c.CppInfo.LibDirs = nil
			return nil
		}).
		MustBuild()
}

type testEnv struct {
	store  *memStore
	ui     *testUI
	events []*tracking.Event
	index  string
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{
		store: &memStore{cfg: Config{
			Home:         t.TempDir(),
			IndexConfigs: recipe.IndexConfigs{},
		}},
		ui:    &testUI{},
		index: t.TempDir(),
	}
}

// run executes the command line and returns its output.
func (env *testEnv) run(t *testing.T, args ...string) (string, error) {
	var runErr error
	run := func(f CobraErrorCommand) CobraCommand {
		return func(cmd *cobra.Command, args []string) {
			runErr = f(cmd, args)
		}
	}
	track := func(ctx context.Context, e *tracking.Event) error {
		env.events = append(env.events, e)
		return nil
	}
	catalog := recipe.NewCatalog()
	catalog.Register(helloRecipe())
	cmd, err := Recipe(run, track, env.store, env.ui, catalog)
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--auto-sync=false"))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String(), runErr
}

// withHelloIndex creates a local index with hello/1.0 and registers it.
func (env *testEnv) withHelloIndex(t *testing.T) {
	_, err := env.run(t, "new", "hello/1.0", "--index", env.index,
		"--url", "https://example.com/hello-1.0.tar.gz", "--sha256", strings.ToUpper(helloSHA))
	require.NoError(t, err)
	_, err = env.run(t, "index", "add", "local", env.index, "--local")
	require.NoError(t, err)
}

func linuxFlags() []string {
	return []string{
		"-s", "os=Linux",
		"-s", "arch=x86_64",
		"-s", "compiler=gcc",
		"-s", "compiler.version=12",
		"-s", "build_type=Release",
	}
}

func Test_Index(t *testing.T) {
	env := newTestEnv(t)
	env.withHelloIndex(t)
	assert.Equal(t, recipe.IndexConfigs{{Name: "local", Kind: recipe.IndexKindLocal, Path: env.index}}, env.store.cfg.IndexConfigs)

	out, err := env.run(t, "index", "list")
	require.NoError(t, err)
	assert.Equal(t, "local: "+env.index+" (local)\n", out)

	t.Run("Add twice", func(t *testing.T) {
		stores := env.store.stores
		_, err := env.run(t, "index", "add", "local", env.index, "--local")
		require.NoError(t, err)
		assert.Equal(t, stores, env.store.stores)

		_, err = env.run(t, "index", "add", "local", t.TempDir(), "--local")
		assert.Error(t, err)
		assert.True(t, env.ui.contains("Index 'local' already exists"))
	})

	t.Run("Missing path", func(t *testing.T) {
		_, err := env.run(t, "index", "add", "other", filepath.Join(env.index, "missing"), "--local")
		var withCode WithExitCode
		require.ErrorAs(t, err, &withCode)
		assert.Equal(t, 1, withCode.ExitCode())
	})

	t.Run("Sync", func(t *testing.T) {
		_, err := env.run(t, "index", "sync", "local", "unknown")
		require.NoError(t, err)
		assert.True(t, env.ui.contains("Warning: Index 'unknown' not found"))
		assert.True(t, env.ui.contains("Info: Syncing 'local'"))
	})

	t.Run("List recipes", func(t *testing.T) {
		out, err := env.run(t, "list")
		require.NoError(t, err)
		assert.Equal(t, "local: "+env.index+":\n  hello: 1.0\n", out)
	})

	t.Run("Remove", func(t *testing.T) {
		_, err := env.run(t, "index", "remove", "unknown")
		assert.Error(t, err)
		_, err = env.run(t, "index", "remove", "local")
		require.NoError(t, err)
		assert.Equal(t, recipe.IndexConfigs{}, env.store.cfg.IndexConfigs)
	})
}

func Test_New(t *testing.T) {
	env := newTestEnv(t)
	env.withHelloIndex(t)
	content, err := os.ReadFile(filepath.Join(env.index, recipe.RecipesDir, "hello", recipe.ConfigFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "1.0")

	_, err = env.run(t, "new", "hello/1.0", "--index", env.index,
		"--url", "https://example.com/hello-1.0.tar.gz", "--sha256", helloSHA)
	assert.Error(t, err)
	assert.True(t, env.ui.contains("Error: Recipe 'hello' already has version '1.0'"))

	_, err = env.run(t, "new", "hello/2.0@user/stable", "--index", env.index,
		"--url", "https://example.com/hello-2.0.tar.gz", "--sha256", helloSHA)
	assert.Error(t, err)

	assert.Equal(t, "trecipe new", env.events[0].Name)
	assert.Equal(t, "hello/1.0", env.events[0].Properties["ref"])
}

func Test_Create(t *testing.T) {
	env := newTestEnv(t)
	env.withHelloIndex(t)

	t.Run("Unknown policy", func(t *testing.T) {
		_, err := env.run(t, "create", "hello/1.0", "--build=sometimes")
		assert.Error(t, err)
	})

	out, err := env.run(t, append([]string{"create", "hello/[>=1 <2]"}, linuxFlags()...)...)
	require.NoError(t, err)
	folder := strings.TrimSpace(out)
	assert.FileExists(t, filepath.Join(folder, "include", "hello.h"))
	assert.FileExists(t, filepath.Join(folder, "licenses", "LICENSE"))
	assert.True(t, env.ui.contains("Info: Package 'hello/1.0' created"))

	t.Run("Cached", func(t *testing.T) {
		out, err := env.run(t, "list", "--cached")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "hello/1.0:", lines[0])
		assert.Equal(t, "  "+filepath.Base(folder), lines[1])
	})

	t.Run("Info", func(t *testing.T) {
		out, err := env.run(t, append([]string{"info", "hello/1.0", "--format", "json"}, linuxFlags()...)...)
		require.NoError(t, err)
		infos := []nodeInfo{}
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		require.Len(t, infos, 1)
		assert.Equal(t, "hello/1.0", infos[0].Ref)
		assert.Equal(t, "host", infos[0].Context)
		assert.Equal(t, string(recipe.HeaderLibrary), infos[0].PackageType)
		assert.Equal(t, filepath.Base(folder), infos[0].PackageID)
		assert.Equal(t, "Linux", infos[0].Settings["os"])

		out, err = env.run(t, append([]string{"info", "hello/1.0"}, linuxFlags()...)...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "hello/1.0:\n  context: host\n  package_type: header-library\n"))
	})

	t.Run("Graph", func(t *testing.T) {
		out, err := env.run(t, append([]string{"graph", "hello/1.0"}, linuxFlags()...)...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "hello/1.0 [header-library]"))
	})

	t.Run("Source", func(t *testing.T) {
		out, err := env.run(t, append([]string{"source", "hello/1.0"}, linuxFlags()...)...)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(strings.TrimSpace(out), "include", "hello.h"))
	})

	t.Run("Rebuild", func(t *testing.T) {
		out, err := env.run(t, append([]string{"create", "hello/1.0", "--build=never"}, linuxFlags()...)...)
		require.NoError(t, err)
		assert.Equal(t, folder, strings.TrimSpace(out))
	})

	t.Run("Invalid reference", func(t *testing.T) {
		_, err := env.run(t, "graph", "Hello")
		assert.Error(t, err)
	})
}

func Test_WithFlag(t *testing.T) {
	args := []string{"trecipe", "create", "gmp/6.3.0", "--build=never", "-s", "os=Linux"}
	assert.Equal(t, []string{"trecipe", "create", "gmp/6.3.0", "-s", "os=Linux", "--build=missing"}, withFlag(args, "--build=missing"))
}
