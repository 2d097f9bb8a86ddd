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
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
)

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

type recordingRunner struct {
	commands []recipe.Command
}

func (r *recordingRunner) Run(ctx context.Context, cmd recipe.Command) (string, error) {
	r.commands = append(r.commands, cmd)
	return "", nil
}

func newConanfile(t *testing.T, settings map[string]string, build map[string]string, conf map[string]interface{}) (*recipe.Conanfile, *testUI, *recordingRunner) {
	r := recipe.NewBuilder(recipe.Metadata{
		Name:        "faiss",
		Version:     "1.8.0",
		License:     "MIT",
		PackageType: recipe.StaticLibrary,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
	}).MustBuild()
	cf := recipe.NewConf()
	for k, v := range conf {
		require.NoError(t, cf.Define(k, v))
	}
	ui := &testUI{}
	runner := &recordingRunner{}
	c, err := recipe.NewConanfile(r, recipe.ConanfileConfig{
		Settings:      settings,
		SettingsBuild: build,
		Conf:          cf,
		Runner:        runner,
		UI:            ui,
		BuildFolder:   t.TempDir(),
	})
	require.NoError(t, err)
	return c, ui, runner
}

var linux = map[string]string{"os": "Linux", "arch": "x86_64", "compiler": "gcc", "compiler.libcxx": "libstdc++11"}

func withMemory(t *testing.T, bytes uint64, ok bool) {
	old := availableMemory
	availableMemory = func() (uint64, bool) { return bytes, ok }
	t.Cleanup(func() { availableMemory = old })
}

func Test_LimitBuildJobs(t *testing.T) {
	t.Run("Limited", func(t *testing.T) {
		withMemory(t, 8*gib, true)
		c, _, _ := newConanfile(t, linux, linux, map[string]interface{}{recipe.ConfBuildJobs: 16})
		jobs, err := LimitBuildJobs(c, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, jobs)
		assert.Equal(t, 2, Jobs(c))
	})

	t.Run("At least one", func(t *testing.T) {
		withMemory(t, gib/2, true)
		c, _, _ := newConanfile(t, linux, linux, map[string]interface{}{recipe.ConfBuildJobs: 4})
		jobs, err := LimitBuildJobs(c, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, jobs)
	})

	t.Run("Enough memory", func(t *testing.T) {
		withMemory(t, 64*gib, true)
		c, ui, _ := newConanfile(t, linux, linux, map[string]interface{}{recipe.ConfBuildJobs: 4})
		jobs, err := LimitBuildJobs(c, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, jobs)
		assert.Empty(t, ui.messages)
	})

	t.Run("Unknown memory", func(t *testing.T) {
		withMemory(t, 0, false)
		c, ui, _ := newConanfile(t, linux, linux, map[string]interface{}{recipe.ConfBuildJobs: 4})
		jobs, err := LimitBuildJobs(c, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, jobs)
		require.Len(t, ui.messages, 1)
		assert.True(t, strings.HasPrefix(ui.messages[0], "Warning: "))
	})

}

func Test_Cross(t *testing.T) {
	ctx := context.Background()
	arm := map[string]string{"os": "Linux", "arch": "armv8", "compiler": "gcc", "compiler.libcxx": "libc++"}

	t.Run("StdCppLibrary", func(t *testing.T) {
		c, _, _ := newConanfile(t, linux, linux, nil)
		assert.Equal(t, "stdc++", StdCppLibrary(c))
		c, _, _ = newConanfile(t, arm, linux, nil)
		assert.Equal(t, "c++", StdCppLibrary(c))
		c, _, _ = newConanfile(t, map[string]string{"os": "Windows", "compiler": "msvc"}, nil, nil)
		assert.Equal(t, "", StdCppLibrary(c))
	})

	t.Run("Native", func(t *testing.T) {
		c, _, runner := newConanfile(t, linux, linux, nil)
		ran, err := RunHost(ctx, c, c.BuildFolder(), "./tests")
		require.NoError(t, err)
		assert.True(t, ran)
		require.Len(t, runner.commands, 1)
		assert.Equal(t, []string{"./tests"}, runner.commands[0].Args)
	})

	t.Run("Skipped", func(t *testing.T) {
		c, ui, runner := newConanfile(t, arm, linux, nil)
		assert.False(t, CanRunHost(c))
		ran, err := RunHost(ctx, c, c.BuildFolder(), "./tests")
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Empty(t, runner.commands)
		assert.Len(t, ui.messages, 1)
	})

	t.Run("Emulated", func(t *testing.T) {
		c, _, runner := newConanfile(t, arm, linux, map[string]interface{}{
			ConfEmulator: []string{"qemu-aarch64", "-L", "/usr/aarch64-linux-gnu"},
		})
		assert.True(t, CanRunHost(c))
		ran, err := RunHost(ctx, c, c.BuildFolder(), "./tests")
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, []string{"qemu-aarch64", "-L", "/usr/aarch64-linux-gnu", "./tests"}, runner.commands[0].Args)
	})
}
