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

package meson

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// Meson drives the setup, compile, install and test steps.
type Meson struct {
	c *recipe.Conanfile
}

// New creates the driver for c.
func New(c *recipe.Conanfile) *Meson {
	return &Meson{c: c}
}

func (m *Meson) machineFileArg() []string {
	c := m.c
	if c.CrossBuilding() {
		return []string{"--cross-file", filepath.ToSlash(filepath.Join(c.GeneratorsFolder(), CrossFileName))}
	}
	return []string{"--native-file", filepath.ToSlash(filepath.Join(c.GeneratorsFolder(), NativeFileName))}
}

// ConfigureArgs returns the argv of the setup step.
// Existing build folders are reconfigured.
func (m *Meson) ConfigureArgs(reconfigure bool) []string {
	c := m.c
	args := []string{"meson", "setup"}
	args = append(args, m.machineFileArg()...)
	args = append(args, filepath.ToSlash(c.BuildFolder()), filepath.ToSlash(c.SourceFolder()))
	if reconfigure {
		args = append(args, "--reconfigure")
	}
	return args
}

// Configure runs meson setup.
func (m *Meson) Configure(ctx context.Context, reconfigure bool) error {
	_, err := m.c.Run(ctx, m.ConfigureArgs(reconfigure)...)
	return err
}

// BuildArgs returns the argv of the compile step.
func (m *Meson) BuildArgs(target string) []string {
	args := []string{"meson", "compile", "-C", filepath.ToSlash(m.c.BuildFolder()),
		"-j", strconv.Itoa(build.Jobs(m.c))}
	if target != "" {
		args = append(args, target)
	}
	return args
}

// Build runs meson compile.
func (m *Meson) Build(ctx context.Context, target string) error {
	_, err := m.c.Run(ctx, m.BuildArgs(target)...)
	return err
}

// InstallArgs returns the argv of the install step. The machine file
// uses '/' as prefix, so the package folder is the destdir.
func (m *Meson) InstallArgs() []string {
	return []string{"meson", "install", "-C", filepath.ToSlash(m.c.BuildFolder()),
		"--destdir", filepath.ToSlash(m.c.PackageFolder())}
}

// Install runs meson install.
func (m *Meson) Install(ctx context.Context) error {
	_, err := m.c.Run(ctx, m.InstallArgs()...)
	return err
}

// Test runs the test suite.
// It returns whether the tests ran.
func (m *Meson) Test(ctx context.Context) (bool, error) {
	c := m.c
	if c.Conf.GetBool(recipe.ConfSkipTest, false) {
		return false, nil
	}
	if !build.CanRunHost(c) {
		c.UI.ReportInfo("Cross-building, not running the tests")
		return false, nil
	}
	_, err := c.Run(ctx, "meson", "test", "-v", "-C", filepath.ToSlash(c.BuildFolder()))
	return err == nil, err
}
