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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
)

func gurobiConanData(os string, arch string, url string, sha string) string {
	if arch == "" {
		return fmt.Sprintf("sources:\n  \"11.0.0\":\n    %s:\n      url: %q\n      sha256: %q\n", os, url, sha)
	}
	return fmt.Sprintf("sources:\n  \"11.0.0\":\n    %s:\n      %s:\n        url: %q\n        sha256: %q\n", os, arch, url, sha)
}

func Test_Gurobi(t *testing.T) {
	t.Run("Names", func(t *testing.T) {
		b := newTestBuild(t, Gurobi(), buildConfig{version: "11.0.0", settings: linuxSettings})
		cLib, err := gurobiCLib(b.c)
		require.NoError(t, err)
		assert.Equal(t, "gurobi110", cLib)
		dist, err := gurobiDistName(b.c)
		require.NoError(t, err)
		assert.Equal(t, "1100", dist)

		b = newTestBuild(t, Gurobi(), buildConfig{version: "12.0", settings: linuxSettings})
		dist, err = gurobiDistName(b.c)
		require.NoError(t, err)
		assert.Equal(t, "1200", dist)
	})

	t.Run("Linux", func(t *testing.T) {
		url, sha := serveTarGz(t, "gurobi11.0.0_linux64.tar.gz", "gurobi1100", map[string]string{
			"linux64/EULA.pdf":                "eula",
			"linux64/include/gurobi_c.h":      "c",
			"linux64/include/gurobi_c++.h":    "c++",
			"linux64/lib/libgurobi110.so":     "so",
			"linux64/lib/libgurobi.so.11.0.0": "so",
			"linux64/src/cpp/Env.cpp":         "env",
			"linux64/bin/grbgetkey":           "tool",
		})
		var c *recipe.Conanfile
		b := newTestBuild(t, Gurobi(), buildConfig{
			version:   "11.0.0",
			settings:  linuxSettings,
			conanData: gurobiConanData("Linux", "x86_64", url, sha),
			onRun:     fakeInstall(&c, "--install", "include/gurobi_c++.h", "lib/libgurobi_c++.a"),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.Empty(t, b.requirementRefs(recipe.ScopeBuild))
		assert.Equal(t, "gcc", c.Info.Settings.Get("compiler"))

		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)
		assert.FileExists(t, filepath.Join(c.SourceFolder(), "lib", "libgurobi110.so"))
		assert.NoDirExists(t, filepath.Join(c.SourceFolder(), "linux64"))
		assert.Equal(t, gurobiCxxCMakeLists, readFile(t, filepath.Join(c.SourceFolder(), "CMakeLists.txt")))
		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DC_LIB=gurobi110")
		assert.Contains(t, configure.Args, "-DBUILD_SHARED_LIBS=OFF")

		assert.Equal(t, []string{
			"include/gurobi_c++.h",
			"include/gurobi_c.h",
			"lib/libgurobi.so.11.0.0",
			"lib/libgurobi110.so",
			"lib/libgurobi_c++.a",
			"licenses/EULA.pdf",
		}, listFiles(t, c.PackageFolder()))

		gurobiC := c.CppInfo.Components("gurobi_c")
		assert.Equal(t, []string{"gurobi110"}, gurobiC.Libs)
		assert.True(t, gurobiC.BoolProperty(recipe.PropNoSoname))
		gurobiCxx := c.CppInfo.Components("gurobi_cxx")
		assert.Equal(t, []string{"gurobi_c++"}, gurobiCxx.Libs)
		assert.Equal(t, []string{"gurobi_c"}, gurobiCxx.Requires)
		assert.Equal(t, []string{"m"}, gurobiCxx.SystemLibs)
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Macos", func(t *testing.T) {
		url, sha := serveBytes(t, "gurobi11.0.0_macos_universal2.pkg", []byte("xar"))
		var c *recipe.Conanfile
		payload := "gurobi_pkg/gurobi11.0.0_macos_universal2.component.pkg/Payload/Library/gurobi1100/macos_universal2/"
		b := newTestBuild(t, Gurobi(), buildConfig{
			version:   "11.0.0",
			settings:  macSettings,
			options:   []string{"cxx=False"},
			conanData: gurobiConanData("Macos", "", url, sha),
			onRun: writeOnRun("pkgutil", func() string { return c.BuildFolder() },
				payload+"EULA.pdf",
				payload+"include/gurobi_c.h",
				payload+"lib/libgurobi110.dylib"),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.False(t, c.Options.Has("shared"))
		assert.Equal(t, []string{"C"}, c.Languages())
		assert.Equal(t, "armv8|x86_64", c.Info.Settings.Get("arch"))
		assert.False(t, c.Info.Settings.Has("compiler"))
		assert.False(t, c.Info.Settings.Has("compiler.version"))
		assert.False(t, c.Info.Settings.Has("build_type"))
		assert.Equal(t, "Macos", c.Info.Settings.Get("os"))

		// The universal binary serves both architectures.
		intel := newTestBuild(t, Gurobi(), buildConfig{
			version:  "11.0.0",
			settings: withSettings(macSettings, "arch=x86_64"),
			options:  []string{"cxx=False"},
		})
		intel.configure(t)
		assert.Equal(t, c.PackageID(), intel.c.PackageID())

		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)
		pkgutil, ok := b.runner.find("pkgutil")
		require.True(t, ok)
		assert.Equal(t, []string{"pkgutil", "--expand-full", filepath.Join(c.SourceFolder(), "gurobi.pkg"), "gurobi_pkg"}, pkgutil.Args)
		assert.Equal(t, c.BuildFolder(), pkgutil.Dir)
		_, ok = b.runner.find("cmake")
		assert.False(t, ok)
		assert.Equal(t, []string{
			"include/gurobi_c.h",
			"lib/libgurobi110.dylib",
			"licenses/EULA.pdf",
		}, listFiles(t, c.PackageFolder()))
		assert.Equal(t, []string{"gurobi_c"}, c.CppInfo.ComponentNames())
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Windows", func(t *testing.T) {
		url, sha := serveBytes(t, "Gurobi-11.0.0-win64.msi", []byte("msi"))
		var c *recipe.Conanfile
		dist := "gurobi/SourceDir/gurobi1100/win64/"
		b := newTestBuild(t, Gurobi(), buildConfig{
			version:   "11.0.0",
			settings:  msvcSettings,
			options:   []string{"cxx=False", "tools=True"},
			conanData: gurobiConanData("Windows", "", url, sha),
			onRun: writeOnRun("lessmsi", func() string { return c.BuildFolder() },
				dist+"EULA.pdf",
				dist+"include/gurobi_c.h",
				dist+"bin/gurobi110.dll",
				dist+"bin/grbgetkey.exe",
				dist+"bin/gurobi_cl.exe",
				dist+"bin/other.exe",
				dist+"lib/gurobi110.lib"),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.Equal(t, []string{"lessmsi/[*]"}, b.requirementRefs(recipe.ScopeBuild))

		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)
		assert.Equal(t, []string{"lessmsi x " + filepath.Join(c.SourceFolder(), "gurobi.msi")}, b.runner.lines())
		assert.Equal(t, []string{
			"bin/grbgetkey.exe",
			"bin/gurobi110.dll",
			"bin/gurobi_cl.exe",
			"include/gurobi_c.h",
			"lib/gurobi110.lib",
			"licenses/EULA.pdf",
		}, listFiles(t, c.PackageFolder()))
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, settings := range []map[string]string{
			withSettings(linuxSettings, "arch=x86"),
			withSettings(msvcSettings, "arch=armv8"),
			withSettings(linuxSettings, "os=Android"),
		} {
			b := newTestBuild(t, Gurobi(), buildConfig{version: "11.0.0", settings: settings})
			b.configure(t)
			assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()), settings)
		}
	})
}
