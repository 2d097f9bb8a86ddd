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

package recipes

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/toolchain/cmake"
)

func Test_Libigl(t *testing.T) {
	installed := []string{
		"include/igl/cotmatrix.h",
		"include/igl/cotmatrix.cpp",
		"lib/libigl.a",
		"lib/cmake/igl/iglConfig.cmake",
		"share/doc/README.md",
	}

	t.Run("Static", func(t *testing.T) {
		var c *recipe.Conanfile
		b := newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: linuxSettings,
			onRun:    fakeInstall(&c, "--install", installed...),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.Equal(t, recipe.StaticLibrary, c.PackageType())
		assert.Equal(t, []string{"eigen/3.4.0"}, b.requirementRefs(recipe.ScopeHost))
		assert.True(t, b.requirement(t, "eigen").TransitiveHeaders)
		assert.Equal(t, []string{"cmake/[>=3.16]"}, b.requirementRefs(recipe.ScopeBuild))
		assert.Equal(t, recipe.True, c.Info.Options.Get("fPIC"))
		assert.Equal(t, "gcc", c.Info.Settings.Get("compiler"))

		writeFiles(t, c.SourceFolder(), "LICENSE.MPL2", "LICENSE.GPL")
		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)

		assert.Contains(t, readFile(t, filepath.Join(c.GeneratorsFolder(), libiglDepsFile)), "find_package(Eigen3 REQUIRED CONFIG)")
		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DLIBIGL_USE_STATIC_LIBRARY=ON")
		assert.Contains(t, configure.Args, "-DLIBIGL_POSITION_INDEPENDENT_CODE=ON")
		assert.Contains(t, configure.Args, "-DLIBIGL_BUILD_TESTS=OFF")
		assert.Contains(t, configure.Args, "-DCMAKE_PROJECT_libigl_INCLUDE="+filepath.ToSlash(filepath.Join(c.GeneratorsFolder(), libiglDepsFile)))
		assert.Contains(t, configure.Args, "-DCMAKE_TOOLCHAIN_FILE="+filepath.ToSlash(filepath.Join(c.GeneratorsFolder(), cmake.ToolchainFileName)))
		_, ok = b.runner.find("--build")
		assert.True(t, ok)

		assert.Equal(t, []string{
			"include/igl/cotmatrix.h",
			"lib/libigl.a",
			"licenses/LICENSE.MPL2",
		}, listFiles(t, c.PackageFolder()))

		core := c.CppInfo.Components("core")
		assert.Equal(t, []string{"igl"}, core.Libs)
		assert.Equal(t, []string{"IGL_STATIC_LIBRARY"}, core.Defines)
		assert.Equal(t, []string{"common"}, core.Requires)
		common := c.CppInfo.Components("common")
		assert.Equal(t, []string{"eigen::eigen"}, common.Requires)
		assert.Equal(t, []string{"pthread"}, common.SystemLibs)
		assert.Equal(t, "igl::igl", c.CppInfo.StringProperty(recipe.PropCMakeTargetName))
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Header only", func(t *testing.T) {
		var c *recipe.Conanfile
		b := newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: linuxSettings,
			options:  []string{"header_only=True"},
			onRun:    fakeInstall(&c, "--install", "include/igl/cotmatrix.h", "include/igl/cotmatrix.cpp", "lib/cmake/igl/iglConfig.cmake"),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.Equal(t, recipe.HeaderLibrary, c.PackageType())
		assert.Empty(t, c.Info.Settings.Keys())
		assert.Empty(t, c.Info.Options.Keys())

		writeFiles(t, c.SourceFolder(), "LICENSE.MPL2")
		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)

		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DLIBIGL_USE_STATIC_LIBRARY=OFF")
		// The implementation files are part of the headers.
		assert.Equal(t, []string{
			"include/igl/cotmatrix.cpp",
			"include/igl/cotmatrix.h",
			"licenses/LICENSE.MPL2",
		}, listFiles(t, c.PackageFolder()))
		assert.NoDirExists(t, filepath.Join(c.PackageFolder(), "lib"))
		assert.Empty(t, c.CppInfo.AllLibs())
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Invalid", func(t *testing.T) {
		b := newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: withSettings(linuxSettings, "arch=x86"),
		})
		b.configure(t)
		assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()))

		b = newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: withSettings(msvcSettings, "compiler.runtime=static"),
		})
		b.configure(t)
		assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()))

		b = newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: withSettings(msvcSettings, "compiler.runtime=static"),
			options:  []string{"header_only=True"},
		})
		b.configure(t)
		assert.NoError(t, b.c.Invalid())

		b = newTestBuild(t, Libigl(), buildConfig{
			version:  "2.5.0",
			settings: withSettings(linuxSettings, "compiler.cppstd=20"),
		})
		b.configure(t)
		assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()))
	})
}

func Test_Eigen(t *testing.T) {
	t.Run("Version 3", func(t *testing.T) {
		var c *recipe.Conanfile
		b := newTestBuild(t, Eigen(), buildConfig{
			version:  "3.4.0",
			settings: linuxSettings,
			onRun:    fakeInstall(&c, "--install", "include/eigen3/Eigen/Core", "share/eigen3/cmake/Eigen3Config.cmake"),
		})
		c = b.c
		b.configure(t)
		assert.Equal(t, recipe.HeaderLibrary, c.PackageType())
		assert.Empty(t, c.Info.Settings.Keys())
		assert.True(t, c.Options.Has("MPL2_only"))

		writeFiles(t, c.SourceFolder(), "COPYING.MPL2", "COPYING.BSD", "README.md")
		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)
		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DEIGEN_BUILD_DOC=OFF")
		assert.Contains(t, configure.Args, "-DBUILD_TESTING=OFF")
		assert.Equal(t, []string{
			"include/eigen3/Eigen/Core",
			"licenses/COPYING.BSD",
			"licenses/COPYING.MPL2",
		}, listFiles(t, c.PackageFolder()))
		assert.Equal(t, []string{"include/eigen3"}, c.CppInfo.IncludeDirs)
		assert.Equal(t, []string{"EIGEN_MPL2_ONLY"}, c.CppInfo.Defines)
		assert.Equal(t, []string{"m"}, c.CppInfo.SystemLibs)
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Version 4", func(t *testing.T) {
		b := newTestBuild(t, Eigen(), buildConfig{version: "4.0.0", settings: msvcSettings})
		b.configure(t)
		assert.False(t, b.c.Options.Has("MPL2_only"))
	})
}
