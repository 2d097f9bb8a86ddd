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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
	"gopkg.in/ini.v1"
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

func (r *recordingRunner) lines() []string {
	result := []string{}
	for _, c := range r.commands {
		result = append(result, strings.Join(c.Args, " "))
	}
	return result
}

var linuxSettings = map[string]string{
	"os":              "Linux",
	"arch":            "x86_64",
	"compiler":        "gcc",
	"compiler.cppstd": "gnu17",
	"build_type":      "Release",
}

var armSettings = map[string]string{
	"os":         "Linux",
	"arch":       "armv8",
	"compiler":   "gcc",
	"build_type": "Debug",
}

type testEnv struct {
	c      *recipe.Conanfile
	ui     *testUI
	runner *recordingRunner
	root   string
}

func newTestEnv(t *testing.T, settings map[string]string, settingsBuild map[string]string, conf map[string]interface{}) *testEnv {
	root := t.TempDir()
	if settingsBuild == nil {
		settingsBuild = settings
	}
	cf := recipe.NewConf()
	require.NoError(t, cf.Define(recipe.ConfBuildJobs, 4))
	for k, v := range conf {
		require.NoError(t, cf.Define(k, v))
	}
	r := recipe.NewBuilder(recipe.Metadata{
		Name:        "gmp",
		Version:     "6.3.0",
		License:     "LGPL-3.0-only",
		PackageType: recipe.StaticLibrary,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
		Options: map[string]recipe.OptionDef{
			"shared": recipe.BoolOption(),
			"fPIC":   recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{"shared": false, "fPIC": true},
	}).MustBuild()
	ui := &testUI{}
	runner := &recordingRunner{}
	c, err := recipe.NewConanfile(r, recipe.ConanfileConfig{
		Settings:      settings,
		SettingsBuild: settingsBuild,
		Conf:          cf,
		Runner:        runner,
		UI:            ui,
		SourceFolder:  filepath.Join(root, "src"),
		BuildFolder:   filepath.Join(root, "build"),
		PackageFolder: filepath.Join(root, "package"),
	})
	require.NoError(t, err)
	return &testEnv{c: c, ui: ui, runner: runner, root: root}
}

func loadMachineFile(t *testing.T, data []byte) *ini.File {
	f, err := ini.LoadSources(ini.LoadOptions{PreserveSurroundedQuote: true, IgnoreInlineComment: true}, data)
	require.NoError(t, err)
	return f
}

func Test_Toolchain(t *testing.T) {
	t.Run("Native", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		tc := NewToolchain(env.c)
		assert.Equal(t, NativeFileName, tc.FileName())
		data, err := tc.Content()
		require.NoError(t, err)
		f := loadMachineFile(t, data)

		opts := f.Section(SectionBuiltinOptions)
		assert.Equal(t, "'release'", opts.Key("buildtype").String())
		assert.Equal(t, "'static'", opts.Key("default_library").String())
		assert.Equal(t, "true", opts.Key("b_staticpic").String())
		assert.Equal(t, "'gnu++17'", opts.Key("cpp_std").String())
		assert.Equal(t, "'/'", opts.Key("prefix").String())
		assert.Equal(t, "'res'", opts.Key("datadir").String())
		assert.False(t, opts.HasKey("b_vscrt"))
		_, err = f.GetSection(SectionHostMachine)
		assert.Error(t, err)
		_, err = f.GetSection(SectionProperties)
		assert.Error(t, err)
	})

	t.Run("Cross", func(t *testing.T) {
		env := newTestEnv(t, armSettings, linuxSettings, map[string]interface{}{
			build.ConfEmulator:             []string{"qemu-aarch64"},
			recipe.ConfCompilerExecutables: map[string]string{"c": "aarch64-linux-gnu-gcc", "cpp": "aarch64-linux-gnu-g++"},
		})
		tc := NewToolchain(env.c)
		tc.ProjectOptions.Set("tests", false)
		tc.ExtraDefines = []string{"NDEBUG_ASSERTS"}
		assert.Equal(t, CrossFileName, tc.FileName())
		data, err := tc.Content()
		require.NoError(t, err)
		f := loadMachineFile(t, data)

		assert.Equal(t, "'aarch64-linux-gnu-gcc'", f.Section(SectionBinaries).Key("c").String())
		assert.Equal(t, "['qemu-aarch64']", f.Section(SectionBinaries).Key("exe_wrapper").String())
		assert.Equal(t, "true", f.Section(SectionProperties).Key("needs_exe_wrapper").String())
		assert.Equal(t, "false", f.Section(SectionProjectOptions).Key("tests").String())
		assert.Equal(t, "'debug'", f.Section(SectionBuiltinOptions).Key("buildtype").String())
		assert.Equal(t, "['-DNDEBUG_ASSERTS']", f.Section(SectionBuiltinOptions).Key("c_args").String())
		host := f.Section(SectionHostMachine)
		assert.Equal(t, "'linux'", host.Key("system").String())
		assert.Equal(t, "'aarch64'", host.Key("cpu_family").String())
		assert.Equal(t, "'armv8'", host.Key("cpu").String())
		assert.Equal(t, "'x86_64'", f.Section(SectionBuildMachine).Key("cpu_family").String())
	})

	t.Run("MSVC", func(t *testing.T) {
		settings := map[string]string{
			"os":               "Windows",
			"arch":             "x86_64",
			"compiler":         "msvc",
			"compiler.version": "193",
			"compiler.runtime": "static",
			"compiler.cppstd":  "17",
			"build_type":       "Debug",
		}
		env := newTestEnv(t, settings, nil, nil)
		data, err := NewToolchain(env.c).Content()
		require.NoError(t, err)
		opts := loadMachineFile(t, data).Section(SectionBuiltinOptions)
		assert.Equal(t, "'mtd'", opts.Key("b_vscrt").String())
		assert.Equal(t, "'c++17'", opts.Key("cpp_std").String())
	})

	t.Run("Generate", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		require.NoError(t, NewToolchain(env.c).Generate())
		_, err := os.Stat(filepath.Join(env.c.GeneratorsFolder(), NativeFileName))
		assert.NoError(t, err)
	})
}

func Test_Values(t *testing.T) {
	v := NewValues()
	v.Set("b", 1)
	v.Set("a", "x")
	v.Set("b", 2)
	assert.Equal(t, []string{"b", "a"}, v.Names())
	value, ok := v.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, value)
	v.Delete("b")
	assert.Equal(t, []string{"a"}, v.Names())

	assert.Equal(t, `'it\'s'`, formatValue("it's"))
	assert.Equal(t, "['a', 'b']", formatValue([]string{"a", "b"}))
	assert.Equal(t, "[]", formatValue([]string{}))
	assert.Equal(t, "3", formatValue(3))
}

func Test_Driver(t *testing.T) {
	ctx := context.Background()

	t.Run("Native", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		m := New(env.c)
		require.NoError(t, m.Configure(ctx, false))
		require.NoError(t, m.Build(ctx, ""))
		require.NoError(t, m.Install(ctx))
		ran, err := m.Test(ctx)
		require.NoError(t, err)
		assert.True(t, ran)

		buildDir := filepath.Join(env.root, "build")
		assert.Equal(t, []string{
			"meson setup --native-file " + filepath.Join(buildDir, NativeFileName) + " " + buildDir + " " + filepath.Join(env.root, "src"),
			"meson compile -C " + buildDir + " -j 4",
			"meson install -C " + buildDir + " --destdir " + filepath.Join(env.root, "package"),
			"meson test -v -C " + buildDir,
		}, env.runner.lines())
	})

	t.Run("Cross", func(t *testing.T) {
		env := newTestEnv(t, armSettings, linuxSettings, nil)
		m := New(env.c)
		args := m.ConfigureArgs(true)
		assert.Equal(t, "--cross-file", args[2])
		assert.Equal(t, "--reconfigure", args[len(args)-1])
		assert.Equal(t, "gmp", m.BuildArgs("gmp")[len(m.BuildArgs("gmp"))-1])

		ran, err := m.Test(ctx)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Equal(t, []string{"Info: gmp/6.3.0: Cross-building, not running the tests"}, env.ui.messages)
	})
}

func gmpDependency() *recipe.Dependency {
	info := recipe.NewCppInfo()
	info.SetProperty(recipe.PropPkgConfigName, "gmp")
	gmp := info.Components("libgmp")
	gmp.Libs = []string{"gmp"}
	gmp.SetProperty(recipe.PropPkgConfigName, "gmp")
	gmpxx := info.Components("gmpxx")
	gmpxx.Libs = []string{"gmpxx"}
	gmpxx.Requires = []string{"libgmp"}
	gmpxx.SystemLibs = []string{"m"}
	gmpxx.CxxFlags = []string{"-fno-exceptions"}
	gmpxx.SetProperty(recipe.PropPkgConfigName, "gmpxx")
	return &recipe.Dependency{
		Ref:           recipe.MustParseRef("gmp/6.3.0"),
		PackageType:   recipe.StaticLibrary,
		Direct:        true,
		Headers:       true,
		Libs:          true,
		PackageFolder: "/pkgs/gmp",
		CppInfo:       info,
	}
}

func Test_PkgConfigDeps(t *testing.T) {
	t.Run("Components", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		env.c.Dependencies.Add(gmpDependency())
		files := NewPkgConfigDeps(env.c).Content()
		require.Len(t, files, 2)
		assert.Equal(t, `prefix=/pkgs/gmp
libdir=${prefix}/lib
includedir=${prefix}/include
bindir=${prefix}/bin

Name: gmpxx
Description: Package gmp/6.3.0
Version: 6.3.0
Libs: -L"${libdir}" -lgmpxx -lm
Cflags: -I"${includedir}" -fno-exceptions
Requires: gmp
`, files["gmpxx.pc"])
		assert.Contains(t, files["gmp.pc"], "Libs: -L\"${libdir}\" -lgmp\n")
		assert.NotContains(t, files["gmp.pc"], "Requires:")
	})

	t.Run("Root requires components", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		info := recipe.NewCppInfo()
		info.Components("core").Libs = []string{"igl"}
		info.Components("opengl").Requires = []string{"core", "glad::glad"}
		info.Components("opengl").SetProperty(recipe.PropPkgConfigAliases, []string{"igl-gl"})
		env.c.Dependencies.Add(&recipe.Dependency{
			Ref:           recipe.MustParseRef("libigl/2.5.0"),
			Headers:       true,
			Libs:          true,
			PackageFolder: "/pkgs/libigl",
			CppInfo:       info,
		})
		glad := recipe.NewCppInfo()
		glad.Libs = []string{"glad"}
		env.c.Dependencies.Add(&recipe.Dependency{
			Ref:           recipe.MustParseRef("glad/0.1.36"),
			Libs:          true,
			Headers:       true,
			PackageFolder: "/pkgs/glad",
			CppInfo:       glad,
		})

		pc := NewPkgConfigDeps(env.c)
		pc.SetProperty("glad", recipe.PropPkgConfigName, "glad2")
		files := pc.Content()
		assert.Contains(t, files, "libigl.pc")
		assert.Contains(t, files, "libigl-core.pc")
		assert.Contains(t, files, "libigl-opengl.pc")
		assert.Contains(t, files, "glad2.pc")
		assert.Contains(t, files["libigl.pc"], "Requires: libigl-core libigl-opengl\n")
		assert.Contains(t, files["libigl-opengl.pc"], "Requires: libigl-core glad2\n")
		assert.NotContains(t, files["libigl-opengl.pc"], "-L")
		assert.Equal(t, "Name: igl-gl\nDescription: Alias igl-gl for libigl-opengl\nVersion: 2.5.0\nRequires: libigl-opengl\n",
			files["igl-gl.pc"])
	})

	t.Run("Custom content", func(t *testing.T) {
		env := newTestEnv(t, linuxSettings, nil, nil)
		info := recipe.NewCppInfo()
		info.IncludeDirs = []string{"include", "include/eigen3"}
		info.LibDirs = nil
		info.Defines = []string{"EIGEN_MPL2_ONLY"}
		info.SetProperty(recipe.PropPkgConfigName, "eigen3")
		info.SetProperty(recipe.PropPkgConfigCustomContent, "datadir=${prefix}/share")
		env.c.Dependencies.Add(&recipe.Dependency{
			Ref:           recipe.MustParseRef("eigen/3.4.0"),
			Headers:       true,
			PackageFolder: "/pkgs/eigen",
			CppInfo:       info,
		})
		files := NewPkgConfigDeps(env.c).Content()
		assert.Equal(t, `prefix=/pkgs/eigen
includedir=${prefix}/include
includedir1=${prefix}/include/eigen3
bindir=${prefix}/bin
datadir=${prefix}/share

Name: eigen3
Description: Package eigen/3.4.0
Version: 3.4.0
Cflags: -I"${includedir}" -I"${includedir1}" -DEIGEN_MPL2_ONLY
`, files["eigen3.pc"])

		require.NoError(t, NewPkgConfigDeps(env.c).Generate())
		_, err := os.Stat(filepath.Join(env.c.GeneratorsFolder(), "eigen3.pc"))
		assert.NoError(t, err)
	})
}
