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

package cmake

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// CMake drives the configure, build, install and test steps of a CMake
// project.
// It reads the generator and the cache variables from the presets the
// toolchain wrote in generate.
type CMake struct {
	c              *recipe.Conanfile
	generator      string
	toolchainFile  string
	cacheVariables map[string]string
}

// New creates the driver for c.
func New(c *recipe.Conanfile) (*CMake, error) {
	cm := &CMake{
		c:              c,
		generator:      Generator(c),
		cacheVariables: map[string]string{},
	}
	data, err := os.ReadFile(filepath.Join(c.GeneratorsFolder(), PresetsFileName))
	if os.IsNotExist(err) {
		return cm, nil
	}
	if err != nil {
		return nil, err
	}
	presets, err := readPresets(data)
	if err != nil {
		return nil, recipe.WrapFrameworkError(err, "invalid %s", PresetsFileName)
	}
	if len(presets.ConfigurePresets) > 0 {
		p := presets.ConfigurePresets[0]
		cm.generator = p.Generator
		cm.toolchainFile = p.ToolchainFile
		cm.cacheVariables = p.CacheVariables
	}
	return cm, nil
}

// ConfigureOptions parameterize Configure.
type ConfigureOptions struct {
	// Variables are passed with -D after the cache variables of the
	// toolchain, and win over them.
	Variables map[string]string
	// BuildScriptFolder is the folder of the top CMakeLists.txt, relative to
	// the source folder.
	BuildScriptFolder string
	CLIArgs           []string
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigureArgs returns the argv of the configure step.
func (cm *CMake) ConfigureArgs(opts ConfigureOptions) []string {
	c := cm.c
	args := []string{"cmake", "-G", cm.generator}
	if cm.toolchainFile != "" {
		args = append(args, "-DCMAKE_TOOLCHAIN_FILE="+cm.toolchainFile)
	}
	args = append(args, "-DCMAKE_INSTALL_PREFIX="+filepath.ToSlash(c.PackageFolder()))
	variables := map[string]string{}
	for k, v := range cm.cacheVariables {
		variables[k] = v
	}
	for k, v := range opts.Variables {
		variables[k] = v
	}
	for _, k := range sortedKeys(variables) {
		args = append(args, "-D"+k+"="+variables[k])
	}
	args = append(args, opts.CLIArgs...)
	source := c.SourceFolder()
	if opts.BuildScriptFolder != "" {
		source = filepath.Join(source, filepath.FromSlash(opts.BuildScriptFolder))
	}
	return append(args, "-S", filepath.ToSlash(source), "-B", filepath.ToSlash(c.BuildFolder()))
}

// Configure runs the configure step.
func (cm *CMake) Configure(ctx context.Context, opts ConfigureOptions) error {
	_, err := cm.c.Run(ctx, cm.ConfigureArgs(opts)...)
	return err
}

func (cm *CMake) isMultiConfig() bool {
	g := cm.generator
	return strings.Contains(g, "Visual Studio") || strings.Contains(g, "Xcode") || strings.Contains(g, "Multi-Config")
}

// jobsArgs returns the arguments of the native build tool that select the
// number of parallel jobs.
func (cm *CMake) jobsArgs() []string {
	jobs := strconv.Itoa(build.Jobs(cm.c))
	switch {
	case strings.Contains(cm.generator, "Visual Studio"):
		return []string{"/m:" + jobs}
	case strings.Contains(cm.generator, "Xcode"):
		return []string{"-jobs", jobs}
	}
	return []string{"-j" + jobs}
}

func (cm *CMake) configArgs() []string {
	if !cm.isMultiConfig() {
		return nil
	}
	return []string{"--config", cm.c.Settings.GetSafe("build_type", "Release")}
}

// BuildOptions parameterize Build.
type BuildOptions struct {
	Target  string
	CLIArgs []string
	// BuildToolArgs are passed to the native build tool, after "--".
	BuildToolArgs []string
}

// BuildArgs returns the argv of the build step.
func (cm *CMake) BuildArgs(opts BuildOptions) []string {
	args := []string{"cmake", "--build", filepath.ToSlash(cm.c.BuildFolder())}
	args = append(args, cm.configArgs()...)
	if opts.Target != "" {
		args = append(args, "--target", opts.Target)
	}
	args = append(args, opts.CLIArgs...)
	args = append(args, "--")
	args = append(args, cm.jobsArgs()...)
	return append(args, opts.BuildToolArgs...)
}

// Build runs the build step.
func (cm *CMake) Build(ctx context.Context, opts BuildOptions) error {
	_, err := cm.c.Run(ctx, cm.BuildArgs(opts)...)
	return err
}

// InstallArgs returns the argv of the install step.
func (cm *CMake) InstallArgs(component string) []string {
	args := []string{"cmake", "--install", filepath.ToSlash(cm.c.BuildFolder())}
	args = append(args, cm.configArgs()...)
	if component != "" {
		args = append(args, "--component", component)
	}
	return append(args, "--prefix", filepath.ToSlash(cm.c.PackageFolder()))
}

// Install installs the project into the package folder.
func (cm *CMake) Install(ctx context.Context) error {
	_, err := cm.c.Run(ctx, cm.InstallArgs("")...)
	return err
}

// InstallComponent installs a single install component.
func (cm *CMake) InstallComponent(ctx context.Context, component string) error {
	_, err := cm.c.Run(ctx, cm.InstallArgs(component)...)
	return err
}

// Test runs ctest, unless tests are skipped by tools.build:skip_test or
// host binaries can't run.
// It returns whether the tests ran.
func (cm *CMake) Test(ctx context.Context) (bool, error) {
	c := cm.c
	if c.Conf.GetBool(recipe.ConfSkipTest, false) {
		return false, nil
	}
	if !build.CanRunHost(c) {
		c.UI.ReportInfo("Cross-building, not running the tests")
		return false, nil
	}
	args := []string{"ctest", "--test-dir", filepath.ToSlash(c.BuildFolder()), "--output-on-failure",
		"-j", strconv.Itoa(build.Jobs(c))}
	if cm.isMultiConfig() {
		args = append(args, "-C", c.Settings.GetSafe("build_type", "Release"))
	}
	_, err := c.Run(ctx, args...)
	return err == nil, err
}
