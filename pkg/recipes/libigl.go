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

// libiglDepsFile is injected into the libigl project, so that it finds
// Eigen through the generated config files instead of fetching it.
const libiglDepsFile = "conan_deps.cmake"

const libiglDepsContent = `find_package(Eigen3 REQUIRED CONFIG)
if(NOT TARGET Eigen3::Eigen)
  message(FATAL_ERROR "Eigen3::Eigen not found")
endif()
`

// The libigl modules that need dependencies we don't package.
var libiglDisabledModules = []string{
	"LIBIGL_BUILD_TUTORIALS",
	"LIBIGL_BUILD_TESTS",
	"LIBIGL_BUILD_PYTHON",
	"LIBIGL_EMBREE",
	"LIBIGL_GLFW",
	"LIBIGL_IMGUI",
	"LIBIGL_OPENGL",
	"LIBIGL_STB",
	"LIBIGL_PREDICATES",
	"LIBIGL_SPECTRA",
	"LIBIGL_XML",
	"LIBIGL_COPYLEFT_CORE",
	"LIBIGL_COPYLEFT_CGAL",
	"LIBIGL_COPYLEFT_COMISO",
	"LIBIGL_COPYLEFT_TETGEN",
	"LIBIGL_RESTRICTED_MATLAB",
	"LIBIGL_RESTRICTED_MOSEK",
	"LIBIGL_RESTRICTED_TRIANGLE",
	"LIBIGL_GLFW_TESTS",
}

// Libigl is the geometry processing library. It is either consumed as
// headers only, or as a static library.
func Libigl() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "libigl",
		Description: "Simple C++ geometry processing library",
		License:     "MPL-2.0",
		Homepage:    "https://libigl.github.io/",
		Topics:      []string{"geometry", "matrices", "algorithms", "header-only"},
		PackageType: recipe.StaticLibrary,
		Settings:    defaultSettings,
		Options: map[string]recipe.OptionDef{
			"fPIC":        recipe.BoolOption(),
			"header_only": recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"fPIC":        true,
			"header_only": false,
		},
		Implements: []string{recipe.AutoHeaderOnly, recipe.AutoSharedFPIC},
	}).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CMakeLayout(c, "src")
		}).
		On(recipe.StageRequirements, func(ctx context.Context, c *recipe.Conanfile) error {
			return c.Requires("eigen/3.4.0", recipe.TransitiveHeaders())
		}).
		On(recipe.StageBuildRequirements, func(ctx context.Context, c *recipe.Conanfile) error {
			return c.ToolRequires("cmake/[>=3.16]")
		}).
		On(recipe.StageValidate, libiglValidate).
		On(recipe.StageSource, getSources).
		On(recipe.StageGenerate, libiglGenerate).
		On(recipe.StageBuild, cmakeBuild).
		On(recipe.StagePackage, libiglPackage).
		On(recipe.StagePackageInfo, libiglPackageInfo).
		MustBuild()
}

func libiglValidate(ctx context.Context, c *recipe.Conanfile) error {
	if c.Settings.Get("arch") == "x86" {
		return recipe.NewInvalidConfiguration("Architecture %s is not supported", c.Settings.Get("arch"))
	}
	if recipe.IsMSVCStaticRuntime(c.Settings) && !c.Options.Bool("header_only") {
		return recipe.NewInvalidConfiguration("Visual Studio build with MT runtime is not supported")
	}
	if err := recipe.CheckMinCppstd(c, "14"); err != nil {
		return err
	}
	// 2.5.0 doesn't compile with C++20: template-id not allowed for destructor.
	return recipe.CheckMaxCppstd(c, "17")
}

func libiglGenerate(ctx context.Context, c *recipe.Conanfile) error {
	depsFile := filepath.Join(c.GeneratorsFolder(), libiglDepsFile)
	if err := files.Save(depsFile, libiglDepsContent); err != nil {
		return err
	}
	tc := cmake.NewToolchain(c)
	tc.CacheVariables.Set("CMAKE_PROJECT_libigl_INCLUDE", filepath.ToSlash(depsFile))
	tc.CacheVariables.Set("LIBIGL_USE_STATIC_LIBRARY", !c.Options.Bool("header_only"))
	tc.CacheVariables.Set("LIBIGL_POSITION_INDEPENDENT_CODE", c.Options.GetSafe("fPIC", recipe.True) == recipe.True)
	tc.CacheVariables.Set("CMAKE_POLICY_DEFAULT_CMP0048", "NEW")
	tc.CacheVariables.Set("CMAKE_POLICY_DEFAULT_CMP0077", "NEW")
	for _, name := range libiglDisabledModules {
		tc.CacheVariables.Set(name, false)
	}
	if err := tc.Generate(); err != nil {
		return err
	}
	return cmake.NewDeps(c).Generate()
}

func libiglPackage(ctx context.Context, c *recipe.Conanfile) error {
	if err := cmakeInstall(ctx, c); err != nil {
		return err
	}
	// The optional modules have other licenses. Only the core is built.
	if err := copyLicenses(c, "LICENSE.MPL2"); err != nil {
		return err
	}
	pkg := c.PackageFolder()
	if err := files.Rmdir(filepath.Join(pkg, "share")); err != nil {
		return err
	}
	if err := files.Rmdir(filepath.Join(pkg, "lib", "cmake")); err != nil {
		return err
	}
	if c.Options.Bool("header_only") {
		// The install step still creates the lib folder.
		return removeIfEmpty(filepath.Join(pkg, "lib"))
	}
	// In static mode the template implementations are compiled into the
	// library.
	for _, pattern := range []string{"*.c", "*.cpp"} {
		if _, err := files.Rm(pattern, pkg, true); err != nil {
			return err
		}
	}
	return nil
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dir)
	}
	return nil
}

func libiglPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	ci := c.CppInfo
	ci.SetProperty(recipe.PropCMakeFileName, "libigl")
	ci.SetProperty(recipe.PropCMakeTargetName, "igl::igl")

	common := ci.Components("common")
	common.SetProperty(recipe.PropCMakeTargetName, "igl::common")
	common.Requires = []string{"eigen::eigen"}
	if isLinuxLike(c.Settings) {
		common.SystemLibs = []string{"pthread"}
	}

	core := ci.Components("core")
	core.SetProperty(recipe.PropCMakeTargetName, "igl::core")
	core.Requires = []string{"common"}
	if !c.Options.Bool("header_only") {
		core.Libs = []string{"igl"}
		core.Defines = append(core.Defines, "IGL_STATIC_LIBRARY")
	}
	return nil
}
