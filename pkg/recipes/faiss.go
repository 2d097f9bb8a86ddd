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

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/toolchain/cmake"
	"github.com/toitlang/trecipe/pkg/toolchain/cuda"
)

// faissOptLevels are ordered: a level's binary also contains the libraries
// of all lower levels.
var faissOptLevels = []string{"generic", "avx2", "avx512", "avx512_spr", "sve"}

// Faiss is the library for similarity search of dense vectors, optionally
// with its CUDA backend.
func Faiss() *recipe.Recipe {
	levels := make([]interface{}, len(faissOptLevels))
	for i, l := range faissOptLevels {
		levels[i] = l
	}
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "faiss",
		Description: "Faiss - a library for efficient similarity search and clustering of dense vectors",
		License:     "MIT",
		Homepage:    "https://github.com/facebookresearch/faiss",
		Topics:      []string{"approximate-nearest-neighbor", "similarity-search", "clustering", "gpu"},
		PackageType: recipe.Library,
		Settings:    append(append([]string{}, defaultSettings...), "cuda"),
		Options: map[string]recipe.OptionDef{
			"shared":    recipe.BoolOption(),
			"fPIC":      recipe.BoolOption(),
			"opt_level": recipe.EnumOption(levels...),
			"c_api":     recipe.BoolOption(),
			"lto":       recipe.BoolOption(),
			"with_cuda": recipe.BoolOption(),
			"with_mkl":  recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"shared":    false,
			"fPIC":      true,
			"opt_level": "avx2",
			"c_api":     false,
			"lto":       false,
			"with_cuda": false,
			"with_mkl":  false,
		},
	}).
		On(recipe.StageConfigOptions, faissConfigOptions).
		On(recipe.StageConfigure, faissConfigure).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.CMakeLayout(c, "src")
		}).
		On(recipe.StageRequirements, faissRequirements).
		On(recipe.StageBuildRequirements, faissBuildRequirements).
		On(recipe.StageValidate, faissValidate).
		On(recipe.StageCompatibility, faissCompatibility).
		On(recipe.StageSource, faissSource).
		On(recipe.StageGenerate, faissGenerate).
		On(recipe.StageBuild, func(ctx context.Context, c *recipe.Conanfile) error {
			return cmakeBuild(ctx, c)
		}).
		On(recipe.StagePackage, faissPackage).
		On(recipe.StagePackageInfo, faissPackageInfo).
		MustBuild()
}

func faissConfigOptions(ctx context.Context, c *recipe.Conanfile) error {
	if c.Settings.Get("os") == recipe.OSWindows {
		if err := c.Options.Delete("fPIC"); err != nil {
			return err
		}
	}
	if c.Settings.Get("arch") != "x86_64" {
		return c.Options.Delete("opt_level")
	}
	return nil
}

func faissConfigure(ctx context.Context, c *recipe.Conanfile) error {
	if c.Options.Bool("shared") {
		if err := c.Options.RmSafe("fPIC"); err != nil {
			return err
		}
	}
	openblas := c.Options.Dep("openblas/*")
	pins := []struct {
		name  string
		value interface{}
	}{
		{"use_openmp", true},
		{"use_thread", false},
		{"use_locking", false},
		{"num_threads", 512},
	}
	for _, pin := range pins {
		if err := openblas.Set(pin.name, pin.value); err != nil {
			return err
		}
	}
	if !c.Options.Bool("with_cuda") {
		return c.Settings.Delete("cuda")
	}
	return nil
}

func faissRequirements(ctx context.Context, c *recipe.Conanfile) error {
	// omp.h is included by public headers.
	if err := c.Requires("openmp/system", recipe.TransitiveHeaders(), recipe.TransitiveLibs()); err != nil {
		return err
	}
	blas := "openblas/[>=0.3.28 <1]"
	if c.Options.Bool("with_mkl") {
		blas = "onemkl/[*]"
	}
	if err := c.Requires(blas); err != nil {
		return err
	}
	if !c.Options.Bool("with_cuda") {
		return nil
	}
	for _, name := range []string{"cudart", "cublas", "curand", "cuda-profiler-api"} {
		if err := cuda.RequireToolkit(c, name); err != nil {
			return err
		}
	}
	return nil
}

func faissBuildRequirements(ctx context.Context, c *recipe.Conanfile) error {
	if err := c.ToolRequires("cmake/[>=3.24 <5]"); err != nil {
		return err
	}
	if c.Options.Bool("with_cuda") {
		return cuda.RequireToolkitTool(c, "nvcc")
	}
	return nil
}

func faissValidate(ctx context.Context, c *recipe.Conanfile) error {
	if err := recipe.CheckMinCppstd(c, "17"); err != nil {
		return err
	}
	if c.Options.Bool("with_cuda") {
		return cuda.ValidateSettings(c)
	}
	return nil
}

// faissEnabledLevels returns the levels up to the selected one.
func faissEnabledLevels(c *recipe.Conanfile) []string {
	selected := c.Options.GetSafe("opt_level", "generic")
	for i, l := range faissOptLevels {
		if l == selected {
			return faissOptLevels[:i+1]
		}
	}
	return faissOptLevels[:1]
}

// faissCompatibility accepts the binaries built for a lower level.
func faissCompatibility(ctx context.Context, c *recipe.Conanfile) error {
	if !c.Options.Has("opt_level") {
		return nil
	}
	for _, level := range faissEnabledLevels(c) {
		compat := recipe.Compatible{Options: map[string]string{"opt_level": level}}
		if err := c.AddCompatible(compat); err != nil {
			return err
		}
	}
	return nil
}

func faissSource(ctx context.Context, c *recipe.Conanfile) error {
	if err := files.GetSources(ctx, c); err != nil {
		return err
	}
	if err := files.ReplaceInFile(c, "faiss/CMakeLists.txt", "POSITION_INDEPENDENT_CODE ON", ""); err != nil {
		return err
	}
	// IcmEncoder.cu needs cuRAND.
	if err := files.ReplaceInFile(c, "faiss/gpu/CMakeLists.txt",
		"set(CUDA_LIBS CUDA::cudart CUDA::cublas)",
		"find_package(cuda-profiler-api REQUIRED)\n"+
			"set(CUDA_LIBS CUDA::cudart CUDA::cublas CUDA::curand cuda-profiler-api::cuda-profiler-api)"); err != nil {
		return err
	}
	return files.ReplaceInFile(c, "faiss/CMakeLists.txt", "${MKL_LIBRARIES}", "MKL::MKL")
}

func faissGenerate(ctx context.Context, c *recipe.Conanfile) error {
	tc := cmake.NewToolchain(c)
	vars := tc.CacheVariables
	vars.Set("FAISS_OPT_LEVEL", c.Options.GetSafe("opt_level", "generic"))
	vars.Set("FAISS_c_api", c.Options.Bool("c_api"))
	vars.Set("FAISS_ENABLE_GPU", c.Options.Bool("with_cuda"))
	// TODO: enable once there is a rapidsai/cuvs recipe.
	vars.Set("FAISS_ENABLE_CUVS", false)
	vars.Set("FAISS_ENABLE_MKL", c.Options.Bool("with_mkl"))
	vars.Set("FAISS_ENABLE_PYTHON", false)
	vars.Set("FAISS_ENABLE_EXTRAS", false)
	vars.Set("BUILD_TESTING", false)
	vars.Set("FAISS_USE_LTO", c.Options.Bool("lto"))
	if err := tc.Generate(); err != nil {
		return err
	}
	if err := cmake.NewDeps(c).Generate(); err != nil {
		return err
	}
	if !c.Options.Bool("with_cuda") {
		return nil
	}
	nvcc, err := cuda.NewToolchain(c)
	if err != nil {
		return err
	}
	return nvcc.Generate()
}

func faissPackage(ctx context.Context, c *recipe.Conanfile) error {
	if err := copyLicenses(c, "LICENSE"); err != nil {
		return err
	}
	if err := cmakeInstall(ctx, c); err != nil {
		return err
	}
	return files.Rmdir(filepath.Join(c.PackageFolder(), "share"))
}

func faissPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	c.CppInfo.SetProperty(recipe.PropCMakeFileName, "faiss")
	requires := []string{"openmp::openmp"}
	if c.Options.Bool("with_mkl") {
		requires = append(requires, "onemkl::mkl")
	} else {
		requires = append(requires, "openblas::openblas")
	}
	if c.Options.Bool("with_cuda") {
		requires = append(requires,
			"cudart::cudart_",
			"cublas::cublas_",
			"curand::curand",
			"cuda-profiler-api::cuda-profiler-api")
	}
	stdcpp := build.StdCppLibrary(c)
	for _, level := range faissEnabledLevels(c) {
		lib, libC := "faiss", "faiss_c"
		if level != "generic" {
			lib += "_" + level
			libC += "_" + level
		}
		comp := c.CppInfo.Components(lib)
		comp.SetProperty(recipe.PropCMakeTargetName, lib)
		comp.Libs = []string{lib}
		comp.Requires = append([]string{}, requires...)
		if isLinuxLike(c.Settings) {
			comp.SystemLibs = append(comp.SystemLibs, "m")
		}
		if !c.Options.Bool("c_api") {
			continue
		}
		compC := c.CppInfo.Components(libC)
		compC.SetProperty(recipe.PropCMakeTargetName, libC)
		compC.Libs = []string{libC}
		compC.Requires = []string{lib}
		if !c.Options.Bool("shared") && stdcpp != "" {
			compC.SystemLibs = append(compC.SystemLibs, stdcpp)
		}
	}
	return nil
}
