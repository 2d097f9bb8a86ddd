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
	"os"
	"path/filepath"

	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/toolchain/cmake"
)

// The header Eigen 3 ships has pragmas newer compilers complain about.
// conandata.yml points to a newer copy in this section.
const eigenWarningsSection = "disable_stupid_warnings_h"

const eigenWarningsHeader = "Eigen/src/Core/util/DisableStupidWarnings.h"

// Eigen is the header-only linear algebra library.
func Eigen() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "eigen",
		Description: "Eigen is a C++ template library for linear algebra: matrices, vectors, numerical solvers, and related algorithms.",
		License:     "MPL-2.0 AND BSD-3-Clause AND LGPL-2.1-or-later",
		Homepage:    "http://eigen.tuxfamily.org",
		Topics:      []string{"algebra", "linear-algebra", "matrix", "vector", "numerical", "header-only"},
		PackageType: recipe.HeaderLibrary,
		Settings:    defaultSettings,
		Options: map[string]recipe.OptionDef{
			"MPL2_only": recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"MPL2_only": true,
		},
	}).
		On(recipe.StageConfigOptions, eigenConfigOptions).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CMakeLayout(c, "src")
		}).
		On(recipe.StagePackageID, func(ctx context.Context, c *recipe.Conanfile) error {
			return c.Info.Clear()
		}).
		On(recipe.StageSource, eigenSource).
		On(recipe.StageGenerate, eigenGenerate).
		On(recipe.StageBuild, eigenBuild).
		On(recipe.StagePackage, eigenPackage).
		On(recipe.StagePackageInfo, eigenPackageInfo).
		MustBuild()
}

func eigenIsV4(c *recipe.Conanfile) (bool, error) {
	major, _, err := majorMinor(c)
	return major >= 4, err
}

func eigenConfigOptions(ctx context.Context, c *recipe.Conanfile) error {
	v4, err := eigenIsV4(c)
	if err != nil {
		return err
	}
	// Eigen 4 is MPL2 only.
	if v4 {
		return c.Options.Delete("MPL2_only")
	}
	return nil
}

func eigenSource(ctx context.Context, c *recipe.Conanfile) error {
	if err := getSources(ctx, c); err != nil {
		return err
	}
	v4, err := eigenIsV4(c)
	if err != nil || v4 {
		return err
	}
	entries := []recipe.SourceEntry{}
	ok, err := c.ConanData.Decode(eigenWarningsSection, &entries)
	if err != nil || !ok || len(entries) == 0 {
		return err
	}
	path := filepath.Join(c.SourceFolder(), filepath.FromSlash(eigenWarningsHeader))
	if _, err := os.Stat(path); err != nil {
		return recipe.WrapFrameworkError(err, "%s: missing %s", c.Ref, eigenWarningsHeader)
	}
	c.UI.ReportInfo("Updating %s", eigenWarningsHeader)
	return files.Download(ctx, c, entries[0].URLs, path, files.DownloadOptions{SHA256: entries[0].SHA256})
}

func eigenGenerate(ctx context.Context, c *recipe.Conanfile) error {
	tc := cmake.NewToolchain(c)
	tc.CacheVariables.Set("EIGEN_BUILD_BLAS", false)
	tc.CacheVariables.Set("EIGEN_BUILD_LAPACK", false)
	tc.CacheVariables.Set("BUILD_TESTING", !c.Conf.GetBool(recipe.ConfSkipTest, true))
	tc.CacheVariables.Set("EIGEN_TEST_NOQT", true)
	tc.CacheVariables.Set("EIGEN_BUILD_DOC", false)
	tc.CacheVariables.Set("EIGEN_BUILD_DEMOS", false)
	tc.CacheVariables.Set("EIGEN_BUILD_PKGCONFIG", false)
	tc.CacheVariables.Set("EIGEN_BUILD_CMAKE_PACKAGE", false)
	return tc.Generate()
}

// cmakeBuild configures and builds the CMake project of the source folder.
func cmakeBuild(ctx context.Context, c *recipe.Conanfile) error {
	cm, err := cmake.New(c)
	if err != nil {
		return err
	}
	if err := cm.Configure(ctx, cmake.ConfigureOptions{}); err != nil {
		return err
	}
	return cm.Build(ctx, cmake.BuildOptions{})
}

func cmakeInstall(ctx context.Context, c *recipe.Conanfile) error {
	cm, err := cmake.New(c)
	if err != nil {
		return err
	}
	return cm.Install(ctx)
}

func eigenBuild(ctx context.Context, c *recipe.Conanfile) error {
	return cmakeBuild(ctx, c)
}

func eigenPackage(ctx context.Context, c *recipe.Conanfile) error {
	if err := copyLicenses(c, "COPYING.*"); err != nil {
		return err
	}
	if err := cmakeInstall(ctx, c); err != nil {
		return err
	}
	return files.Rmdir(filepath.Join(c.PackageFolder(), "share"))
}

func eigenPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	ci := c.CppInfo
	ci.SetProperty(recipe.PropCMakeFileName, "Eigen3")
	ci.SetProperty(recipe.PropCMakeTargetName, "Eigen3::Eigen")
	ci.SetProperty(recipe.PropPkgConfigName, "eigen3")
	ci.IncludeDirs = []string{"include/eigen3"}
	ci.BinDirs = nil
	ci.LibDirs = nil
	if isLinuxLike(c.Settings) {
		ci.SystemLibs = []string{"m"}
	}
	if c.Options.Bool("MPL2_only") {
		ci.Defines = []string{"EIGEN_MPL2_ONLY"}
	}
	return nil
}
