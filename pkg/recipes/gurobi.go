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
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-version"
	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/toolchain/cmake"
)

// gurobiCxxCMakeLists builds the C++ wrapper shipped as sources with the
// distribution.
const gurobiCxxCMakeLists = `cmake_minimum_required(VERSION 3.15)
project(gurobi_cxx LANGUAGES CXX)

file(GLOB GUROBI_CXX_SOURCES src/cpp/*.cpp)
add_library(gurobi_c++ ${GUROBI_CXX_SOURCES})
target_include_directories(gurobi_c++ PUBLIC include)
find_library(GUROBI_C_LIB NAMES ${C_LIB} PATHS lib NO_DEFAULT_PATH REQUIRED)
target_link_libraries(gurobi_c++ PUBLIC ${GUROBI_C_LIB})

install(TARGETS gurobi_c++
  RUNTIME DESTINATION bin
  LIBRARY DESTINATION lib
  ARCHIVE DESTINATION lib)
install(FILES include/gurobi_c++.h DESTINATION include)
`

// Gurobi repackages the binary distribution of the Gurobi optimizer. Only
// the C++ wrapper is compiled.
func Gurobi() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "gurobi",
		Description: "Gurobi Optimizer C/C++ SDK",
		License:     "DocumentRef-EULA.pdf:LicenseRef-GUROBI-EULA",
		Homepage:    "https://www.gurobi.com/",
		Topics:      []string{"optimization", "linear-programming", "mixed-integer-programming", "quadratic-programming"},
		PackageType: recipe.SharedLibrary,
		Settings:    defaultSettings,
		Options: map[string]recipe.OptionDef{
			"shared": recipe.BoolOption(),
			"cxx":    recipe.BoolOption(),
			"tools":  recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"shared": false,
			"cxx":    true,
			"tools":  false,
		},
		Implements: []string{recipe.AutoSharedFPIC},
	}).
		On(recipe.StageConfigure, gurobiConfigure).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CMakeLayout(c, "src")
		}).
		On(recipe.StageBuildRequirements, func(ctx context.Context, c *recipe.Conanfile) error {
			if c.Settings.Get("os") == recipe.OSWindows {
				return c.ToolRequires("lessmsi/[*]")
			}
			return nil
		}).
		On(recipe.StageValidate, gurobiValidate).
		On(recipe.StagePackageID, gurobiPackageID).
		On(recipe.StageGenerate, gurobiGenerate).
		On(recipe.StageBuild, gurobiBuild).
		On(recipe.StagePackage, gurobiPackage).
		On(recipe.StagePackageInfo, gurobiPackageInfo).
		MustBuild()
}

func gurobiConfigure(ctx context.Context, c *recipe.Conanfile) error {
	if !c.Options.Bool("shared") {
		if err := c.Options.RmSafe("fPIC"); err != nil {
			return err
		}
	}
	if !c.Options.Bool("cxx") {
		if err := c.SetLanguages("C"); err != nil {
			return err
		}
		return c.Options.RmSafe("shared")
	}
	return nil
}

func gurobiPackageID(ctx context.Context, c *recipe.Conanfile) error {
	// The C library is a prebuilt binary.
	if !c.Options.Bool("cxx") {
		if err := c.Info.Settings.Delete("compiler"); err != nil {
			return err
		}
		if err := c.Info.Settings.Delete("build_type"); err != nil {
			return err
		}
	}
	// The macOS binaries are universal.
	if recipe.IsApple(c.Settings.Get("os")) && c.Info.Settings.Has("arch") {
		return c.Info.Settings.Set("arch", "armv8|x86_64")
	}
	return nil
}

func gurobiValidate(ctx context.Context, c *recipe.Conanfile) error {
	osName := c.Settings.Get("os")
	switch {
	case isLinuxLike(c.Settings):
		if !c.Settings.Is("arch", "x86_64", "armv8") {
			return recipe.NewInvalidConfiguration("Only x86_64 and armv8 are supported on Linux")
		}
	case osName == recipe.OSWindows:
		if c.Settings.Get("arch") != "x86_64" {
			return recipe.NewInvalidConfiguration("Only x86_64 is supported on Windows")
		}
	case !recipe.IsApple(osName):
		return recipe.NewInvalidConfiguration("Only Linux, Windows and Macos are supported")
	}
	if c.Options.Bool("cxx") {
		return recipe.CheckMinCppstd(c, "98")
	}
	return nil
}

// gurobiCLib is the name of the C library, like "gurobi110".
func gurobiCLib(c *recipe.Conanfile) (string, error) {
	major, minor, err := majorMinor(c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("gurobi%d%d", major, minor), nil
}

// gurobiDistName is the version as it appears in the folders of the
// installers, like "1100".
func gurobiDistName(c *recipe.Conanfile) (string, error) {
	v, err := version.NewVersion(c.Version())
	if err != nil {
		return "", recipe.WrapFrameworkError(err, "%s: invalid version", c.Ref)
	}
	segments := v.Segments()
	for len(segments) < 3 {
		segments = append(segments, 0)
	}
	return fmt.Sprintf("%d%d%d", segments[0], segments[1], segments[2]), nil
}

func gurobiGenerate(ctx context.Context, c *recipe.Conanfile) error {
	if !c.Options.Bool("cxx") {
		return nil
	}
	cLib, err := gurobiCLib(c)
	if err != nil {
		return err
	}
	tc := cmake.NewToolchain(c)
	tc.CacheVariables.Set("BUILD_SHARED_LIBS", c.Options.Bool("shared"))
	tc.CacheVariables.Set("C_LIB", cLib)
	return tc.Generate()
}

// gurobiFetch installs the distribution of the host platform in the source
// folder.
func gurobiFetch(ctx context.Context, c *recipe.Conanfile) error {
	dist, err := gurobiDistName(c)
	if err != nil {
		return err
	}
	source := c.SourceFolder()
	switch {
	case isLinuxLike(c.Settings):
		arch := c.Settings.Get("arch")
		entry, err := c.ConanData.Source(c.Version(), recipe.OSLinux, arch)
		if err != nil {
			return err
		}
		if err := files.Get(ctx, c, entry.URLs, files.GetOptions{
			StripRoot: true,
			Download:  files.DownloadOptions{SHA256: entry.SHA256},
		}); err != nil {
			return err
		}
		subdir := "linux64"
		if arch == "armv8" {
			subdir = "armlinux64"
		}
		return files.MoveFolderContents(filepath.Join(source, subdir), source)

	case recipe.IsApple(c.Settings.Get("os")):
		entry, err := c.ConanData.Source(c.Version(), recipe.OSMacos)
		if err != nil {
			return err
		}
		pkg := filepath.Join(source, "gurobi.pkg")
		if err := files.Download(ctx, c, entry.URLs, pkg, files.DownloadOptions{SHA256: entry.SHA256}); err != nil {
			return err
		}
		if _, err := c.RunIn(ctx, c.BuildFolder(), "pkgutil", "--expand-full", pkg, "gurobi_pkg"); err != nil {
			return err
		}
		subdir := fmt.Sprintf("gurobi%s_macos_universal2.component.pkg/Payload/Library/gurobi%s/macos_universal2", c.Version(), dist)
		return files.MoveFolderContents(filepath.Join(c.BuildFolder(), "gurobi_pkg", filepath.FromSlash(subdir)), source)

	default:
		entry, err := c.ConanData.Source(c.Version(), recipe.OSWindows)
		if err != nil {
			return err
		}
		msi := filepath.Join(source, "gurobi.msi")
		if err := files.Download(ctx, c, entry.URLs, msi, files.DownloadOptions{SHA256: entry.SHA256}); err != nil {
			return err
		}
		if _, err := c.RunIn(ctx, c.BuildFolder(), "lessmsi", "x", msi); err != nil {
			return err
		}
		subdir := fmt.Sprintf("gurobi/SourceDir/gurobi%s/win64", dist)
		return files.MoveFolderContents(filepath.Join(c.BuildFolder(), filepath.FromSlash(subdir)), source)
	}
}

// gurobiBuild fetches the binaries per build, since the source folder is
// shared by all configurations and the distributions are per platform.
func gurobiBuild(ctx context.Context, c *recipe.Conanfile) error {
	if err := gurobiFetch(ctx, c); err != nil {
		return err
	}
	if !c.Options.Bool("cxx") {
		return nil
	}
	if err := files.Save(filepath.Join(c.SourceFolder(), "CMakeLists.txt"), gurobiCxxCMakeLists); err != nil {
		return err
	}
	return cmakeBuild(ctx, c)
}

// gurobiCopy copies the files matching pattern from a folder of the
// distribution to a folder of the package.
type gurobiCopy struct {
	pattern string
	from    string
	to      string
}

func gurobiPackage(ctx context.Context, c *recipe.Conanfile) error {
	cLib, err := gurobiCLib(c)
	if err != nil {
		return err
	}
	src, pkg := c.SourceFolder(), c.PackageFolder()
	copies := []gurobiCopy{
		{"EULA.pdf", "", "licenses"},
		{"gurobi_c.h", "include", "include"},
	}
	switch {
	case isLinuxLike(c.Settings):
		copies = append(copies,
			gurobiCopy{"libgurobi.so*", "lib", "lib"},
			gurobiCopy{"lib" + cLib + ".so", "lib", "lib"})
	case recipe.IsApple(c.Settings.Get("os")):
		copies = append(copies,
			gurobiCopy{"lib" + cLib + ".dylib", "lib", "lib"})
	default:
		copies = append(copies,
			gurobiCopy{cLib + ".dll", "bin", "bin"},
			gurobiCopy{cLib + ".lib", "lib", "lib"})
	}
	if c.Options.Bool("tools") {
		copies = append(copies,
			gurobiCopy{"grb*", "bin", "bin"},
			gurobiCopy{"gurobi_cl*", "bin", "bin"})
	}
	for _, cp := range copies {
		if _, err := files.Copy(cp.pattern, filepath.Join(src, cp.from), filepath.Join(pkg, cp.to)); err != nil {
			return err
		}
	}
	if c.Options.Bool("cxx") {
		return cmakeInstall(ctx, c)
	}
	return nil
}

func gurobiPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	cLib, err := gurobiCLib(c)
	if err != nil {
		return err
	}
	gurobiC := c.CppInfo.Components("gurobi_c")
	gurobiC.Libs = []string{cLib}
	gurobiC.SetProperty(recipe.PropNoSoname, true)
	if !c.Options.Bool("cxx") {
		return nil
	}
	gurobiCxx := c.CppInfo.Components("gurobi_cxx")
	gurobiCxx.Libs = []string{"gurobi_c++"}
	gurobiCxx.Requires = []string{"gurobi_c"}
	if isLinuxLike(c.Settings) {
		gurobiCxx.SystemLibs = []string{"m"}
	}
	return nil
}
