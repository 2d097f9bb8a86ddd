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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testUI struct {
	messages []string
}

func (ui *testUI) ReportError(format string, a ...interface{}) error {
	ui.messages = append(ui.messages, fmt.Sprintf("Error: "+format, a...))
	return ErrAlreadyReported
}

func (ui *testUI) ReportWarning(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Warning: "+format, a...))
}

func (ui *testUI) ReportInfo(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Info: "+format, a...))
}

// recordingRunner records all commands. If onRun is set, it is called
// instead of returning an empty output.
type recordingRunner struct {
	commands []Command
	onRun    func(cmd Command) (string, error)
}

func (r *recordingRunner) Run(ctx context.Context, cmd Command) (string, error) {
	r.commands = append(r.commands, cmd)
	if r.onRun != nil {
		return r.onRun(cmd)
	}
	return "", nil
}

func (r *recordingRunner) lines() []string {
	result := []string{}
	for _, c := range r.commands {
		result = append(result, strings.Join(c.Args, " "))
	}
	return result
}

var linuxSettings = map[string]string{
	"os":               "Linux",
	"arch":             "x86_64",
	"compiler":         "gcc",
	"compiler.version": "12",
	"compiler.libcxx":  "libstdc++11",
	"compiler.cppstd":  "17",
	"build_type":       "Release",
}

var windowsSettings = map[string]string{
	"os":               "Windows",
	"arch":             "x86_64",
	"compiler":         "msvc",
	"compiler.version": "193",
	"compiler.runtime": "dynamic",
	"compiler.cppstd":  "14",
	"build_type":       "Release",
}

var defaultSettings = []string{"os", "arch", "compiler", "build_type"}

func libraryMeta(name string, version string) Metadata {
	return Metadata{
		Name:        name,
		Version:     version,
		License:     "MIT",
		PackageType: Library,
		Settings:    defaultSettings,
		Options: map[string]OptionDef{
			"shared": BoolOption(),
			"fPIC":   BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"shared": false,
			"fPIC":   true,
		},
		Implements: []string{AutoSharedFPIC},
	}
}

func newTestConanfile(t *testing.T, r *Recipe, settings map[string]string) *Conanfile {
	c, err := NewConanfile(r, ConanfileConfig{
		Settings:      settings,
		SettingsBuild: settings,
	})
	require.NoError(t, err)
	return c
}
