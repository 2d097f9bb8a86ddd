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
	"path/filepath"
	"strings"

	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/toolchain/cmake"
	"github.com/toitlang/trecipe/pkg/toolchain/cuda"
)

// The project was renamed twice. Each name installs its own CMake config.
var adaptiveCppCMakeNames = []string{"AdaptiveCpp", "hipSYCL", "OpenSYCL"}

const adaptiveCppDescription = "Compiler for multiple programming models (SYCL, C++ standard parallelism, HIP/CUDA) " +
	"for CPUs and GPUs from all vendors"

// AdaptiveCpp is the SYCL compiler and runtime built on LLVM.
// It pins "with_fiber" on the boost of every graph it appears in.
func AdaptiveCpp() *recipe.Recipe {
	names := make([]interface{}, len(adaptiveCppCMakeNames))
	for i, n := range adaptiveCppCMakeNames {
		names[i] = n
	}
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "adaptivecpp",
		Description: adaptiveCppDescription,
		License:     "BSD-2-Clause",
		Homepage:    "https://github.com/AdaptiveCpp/AdaptiveCpp",
		Topics:      []string{"compiler", "parallelism", "gpgpu", "sycl", "hip", "cuda", "hipsycl"},
		PackageType: recipe.SharedLibrary,
		Settings:    append(append([]string{}, defaultSettings...), "cuda"),
		Options: map[string]recipe.OptionDef{
			"cuda":       recipe.BoolOption(),
			"rocm":       recipe.BoolOption(),
			"opencl":     recipe.BoolOption(),
			"cmake_name": recipe.EnumOption(names...),
		},
		DefaultOptions: map[string]interface{}{
			"cuda":               false,
			"rocm":               false,
			"opencl":             false,
			"cmake_name":         "AdaptiveCpp",
			"boost/*:with_fiber": true,
		},
		ExportsSources: []string{"patches/*"},
	}).
		On(recipe.StageConfigure, func(ctx context.Context, c *recipe.Conanfile) error {
			if !c.Options.Bool("cuda") {
				return c.Settings.Delete("cuda")
			}
			return nil
		}).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CMakeLayout(c, "src")
		}).
		On(recipe.StageRequirements, adaptiveCppRequirements).
		On(recipe.StageBuildRequirements, func(ctx context.Context, c *recipe.Conanfile) error {
			return c.ToolRequires("clang/" + recipe.HostVersion)
		}).
		On(recipe.StageValidate, adaptiveCppValidate).
		On(recipe.StageValidateBuild, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CheckMinCppstd(c, "17")
		}).
		On(recipe.StageSource, getSources).
		On(recipe.StageGenerate, adaptiveCppGenerate).
		On(recipe.StageBuild, func(ctx context.Context, c *recipe.Conanfile) error {
			return cmakeBuild(ctx, c)
		}).
		On(recipe.StagePackage, adaptiveCppPackage).
		On(recipe.StagePackageInfo, adaptiveCppPackageInfo).
		MustBuild()
}

func adaptiveCppRequirements(ctx context.Context, c *recipe.Conanfile) error {
	requires := []struct {
		ref    string
		traits []recipe.Trait
	}{
		{"boost/[^1.71]", []recipe.Trait{recipe.TransitiveHeaders(), recipe.TransitiveLibs()}},
		{"llvm-core/[>=19]", []recipe.Trait{recipe.TransitiveHeaders(), recipe.TransitiveLibs()}},
		{"clang/[>=19]", []recipe.Trait{recipe.TransitiveHeaders(), recipe.NoLibs()}},
		{"openmp/system", []recipe.Trait{recipe.TransitiveHeaders(), recipe.TransitiveLibs()}},
		{"libnuma/[^2.0.14]", nil},
	}
	for _, r := range requires {
		if err := c.Requires(r.ref, r.traits...); err != nil {
			return err
		}
	}
	if c.Options.Bool("cuda") {
		return cuda.RequireToolkit(c, "cudart")
	}
	return nil
}

func adaptiveCppValidate(ctx context.Context, c *recipe.Conanfile) error {
	if c.Settings.Get("os") != recipe.OSLinux {
		return recipe.NewInvalidConfiguration("The recipe currently only supports Linux.")
	}
	if c.Options.Bool("cuda") {
		return cuda.ValidateSettings(c)
	}
	return nil
}

func adaptiveCppGenerate(ctx context.Context, c *recipe.Conanfile) error {
	tc := cmake.NewToolchain(c)
	tc.CacheVariables.Set("WITH_CUDA_BACKEND", c.Options.Bool("cuda"))
	tc.CacheVariables.Set("WITH_ROCM_BACKEND", c.Options.Bool("rocm"))
	tc.CacheVariables.Set("WITH_OPENCL_BACKEND", c.Options.Bool("opencl"))
	tc.CacheVariables.Set("ACPP_EXPERIMENTAL_LLVM", true)
	tc.CacheVariables.Set("LLVM_LIBRARY", "LLVM")
	if err := tc.Generate(); err != nil {
		return err
	}

	deps := cmake.NewDeps(c)
	// The build links against the LLVM target of a monolithic build.
	if llvm, ok := c.Dependencies.Host("llvm-core"); ok && !llvm.OptionBool("monolithic") {
		deps.SetProperty("llvm-core", recipe.PropCMakeTargetAliases, []string{"LLVM"})
	}
	return deps.Generate()
}

func adaptiveCppPackage(ctx context.Context, c *recipe.Conanfile) error {
	if err := copyLicenses(c, "LICENSE"); err != nil {
		return err
	}
	if err := cmakeInstall(ctx, c); err != nil {
		return err
	}
	// Keep the variables and build modules of the configs, but not the
	// targets. Those come from the generated config.
	for _, name := range adaptiveCppCMakeNames {
		dir := filepath.Join(c.PackageFolder(), "lib", "cmake", name)
		lower := strings.ToLower(name)
		if _, err := files.Rm("*-config-version.cmake", dir, false); err != nil {
			return err
		}
		if _, err := files.Rm("*-targets*.cmake", dir, false); err != nil {
			return err
		}
		vars := filepath.Join(dir, lower+"-vars.cmake")
		if err := files.Rename(filepath.Join(dir, lower+"-config.cmake"), vars); err != nil {
			return err
		}
		if err := files.ReplaceInFile(c, vars, "include(", "# include("); err != nil {
			return err
		}
	}
	_, err := files.Rm("*.pdb", c.PackageFolder(), true)
	return err
}

func adaptiveCppPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	name := c.Options.Get("cmake_name")
	ci := c.CppInfo
	ci.SetProperty(recipe.PropCMakeFileName, name)
	ci.SetProperty(recipe.PropCMakeBuildModules, []string{"lib/cmake/" + name + "/" + strings.ToLower(name) + "-vars.cmake"})

	common := ci.Components("acpp-common")
	common.SetProperty(recipe.PropCMakeTargetName, name+"::acpp-common")
	common.Libs = []string{"acpp-common"}
	common.IncludeDirs = append(common.IncludeDirs, "include/AdaptiveCpp")
	common.BuildDirs = []string{"lib/cmake/" + name}

	rt := ci.Components("acpp-rt")
	rt.SetProperty(recipe.PropCMakeTargetName, name+"::acpp-rt")
	rt.Libs = []string{"acpp-rt"}
	rt.Requires = []string{"acpp-common"}

	runtimeDeps := ci.Components("_runtime_deps")
	runtimeDeps.Requires = []string{
		"boost::fiber",
		"llvm-core::llvm-core",
		"clang::clang",
		"openmp::openmp",
		"libnuma::libnuma",
	}
	if c.Options.Bool("cuda") {
		runtimeDeps.Requires = append(runtimeDeps.Requires, "cudart::cudart_")
	}
	return nil
}
