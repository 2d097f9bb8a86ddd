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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
)

var faissCUDASettings = withSettings(linuxSettings,
	"cuda.version=12.4",
	"cuda.architectures=80;90-real")

func pinStrings(c *recipe.Conanfile) []string {
	result := []string{}
	for _, p := range c.Options.Pins() {
		result = append(result, p.String())
	}
	return result
}

func Test_Faiss(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		var c *recipe.Conanfile
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: withSettings(linuxSettings, "cuda.version=12.4"),
			onRun:    fakeInstall(&c, "--install", "include/faiss/Index.h", "lib/libfaiss.a", "lib/libfaiss_avx2.a", "share/faiss/faiss-config.cmake"),
		})
		c = b.c
		b.configure(t)
		require.NoError(t, c.Invalid())
		assert.Equal(t, []string{"openmp/system", "openblas/[>=0.3.28 <1]"}, b.requirementRefs(recipe.ScopeHost))
		openmp := b.requirement(t, "openmp")
		assert.True(t, openmp.TransitiveHeaders)
		assert.True(t, openmp.TransitiveLibs)
		assert.Equal(t, []string{"cmake/[>=3.24 <5]"}, b.requirementRefs(recipe.ScopeBuild))
		assert.Equal(t, []string{
			"openblas/*:use_openmp=True",
			"openblas/*:use_thread=False",
			"openblas/*:use_locking=False",
			"openblas/*:num_threads=512",
		}, pinStrings(c))
		// Without CUDA, the cuda settings aren't part of the identity.
		assert.False(t, c.Settings.Has("cuda.version"))
		assert.False(t, c.Info.Settings.Has("cuda.version"))

		compatibles := c.CompatibleInfos()
		require.Len(t, compatibles, 2)
		assert.Equal(t, "generic", compatibles[0].Options.Get("opt_level"))
		assert.Equal(t, "avx2", compatibles[1].Options.Get("opt_level"))

		writeFiles(t, c.SourceFolder(), "LICENSE")
		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackage, recipe.StagePackageInfo)
		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DFAISS_OPT_LEVEL=avx2")
		assert.Contains(t, configure.Args, "-DFAISS_ENABLE_GPU=OFF")
		assert.Contains(t, configure.Args, "-DFAISS_ENABLE_CUVS=OFF")
		assert.Contains(t, configure.Args, "-DFAISS_ENABLE_PYTHON=OFF")
		assert.Equal(t, []string{
			"include/faiss/Index.h",
			"lib/libfaiss.a",
			"lib/libfaiss_avx2.a",
			"licenses/LICENSE",
		}, listFiles(t, c.PackageFolder()))

		assert.Equal(t, []string{"faiss", "faiss_avx2"}, c.CppInfo.ComponentNames())
		avx2 := c.CppInfo.Components("faiss_avx2")
		assert.Equal(t, []string{"faiss_avx2"}, avx2.Libs)
		assert.Equal(t, "faiss_avx2", avx2.StringProperty(recipe.PropCMakeTargetName))
		assert.Equal(t, []string{"openmp::openmp", "openblas::openblas"}, avx2.Requires)
		assert.Equal(t, []string{"m"}, avx2.SystemLibs)
		assert.Equal(t, "faiss", c.CppInfo.StringProperty(recipe.PropCMakeFileName))
		require.NoError(t, recipe.CheckPackage(c))
	})

	t.Run("C API", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: linuxSettings,
			options:  []string{"c_api=True", "opt_level=avx512", "with_mkl=True"},
		})
		b.configure(t)
		c := b.c
		assert.Equal(t, []string{"openmp/system", "onemkl/[*]"}, b.requirementRefs(recipe.ScopeHost))
		assert.Len(t, c.CompatibleInfos(), 3)
		b.produce(t, recipe.StageGenerate, recipe.StagePackageInfo)
		assert.Equal(t, []string{
			"faiss", "faiss_c",
			"faiss_avx2", "faiss_c_avx2",
			"faiss_avx512", "faiss_c_avx512",
		}, c.CppInfo.ComponentNames())
		api := c.CppInfo.Components("faiss_c_avx512")
		assert.Equal(t, []string{"faiss_avx512"}, api.Requires)
		assert.Equal(t, []string{"stdc++"}, api.SystemLibs)
		assert.Equal(t, []string{"openmp::openmp", "onemkl::mkl"}, c.CppInfo.Components("faiss").Requires)
	})

	t.Run("CUDA", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: faissCUDASettings,
			options:  []string{"with_cuda=True", "shared=True"},
		})
		b.configure(t)
		c := b.c
		require.NoError(t, c.Invalid())
		assert.False(t, c.Options.Has("fPIC"))
		assert.Equal(t, "12.4", c.Info.Settings.Get("cuda.version"))
		assert.Equal(t, []string{
			"openmp/system",
			"openblas/[>=0.3.28 <1]",
			"cudart/[~12.4]",
			"cublas/[~12.4]",
			"curand/[~12.4]",
			"cuda-profiler-api/[~12.4]",
		}, b.requirementRefs(recipe.ScopeHost))
		assert.Equal(t, []string{"cmake/[>=3.24 <5]", "nvcc/[~12.4]"}, b.requirementRefs(recipe.ScopeBuild))

		b.produce(t, recipe.StageGenerate, recipe.StageBuild, recipe.StagePackageInfo)
		env := c.BuildEnv.Apply(nil, ":")
		assert.Equal(t, "-gencode=arch=compute_80,code=sm_80 -gencode=arch=compute_80,code=compute_80 -gencode=arch=compute_90,code=sm_90",
			env["NVCC_APPEND_FLAGS"])
		assert.Equal(t, "80;90-real", env["CUDAARCHS"])
		configure, ok := b.runner.find("-DCMAKE_INSTALL_PREFIX")
		require.True(t, ok)
		assert.Contains(t, configure.Args, "-DFAISS_ENABLE_GPU=ON")
		assert.Contains(t, c.CppInfo.Components("faiss").Requires, "cudart::cudart_")
		assert.Contains(t, c.CppInfo.Components("faiss_avx2").Requires, "cuda-profiler-api::cuda-profiler-api")
	})

	t.Run("CUDA static C API", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: withSettings(linuxSettings, "cuda.version=12.4", "cuda.architectures=80-real;90"),
			options:  []string{"with_cuda=True", "opt_level=avx2", "c_api=True", "shared=False"},
		})
		b.configure(t)
		c := b.c
		require.NoError(t, c.Invalid())
		assert.True(t, c.Options.Has("fPIC"))
		assert.Equal(t, "80-real;90", c.Info.Settings.Get("cuda.architectures"))
		assert.Equal(t, []string{"cmake/[>=3.24 <5]", "nvcc/[~12.4]"}, b.requirementRefs(recipe.ScopeBuild))
		assert.Len(t, c.CompatibleInfos(), 2)
	})

	t.Run("CUDA without settings", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: withSettings(linuxSettings, "cuda.version=12.4"),
			options:  []string{"with_cuda=True"},
		})
		b.configure(t)
		assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()))
	})

	t.Run("Other architectures", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: withSettings(linuxSettings, "arch=armv8"),
		})
		b.configure(t)
		assert.False(t, b.c.Options.Has("opt_level"))
		assert.Empty(t, b.c.CompatibleInfos())
		b.produce(t, recipe.StageGenerate, recipe.StagePackageInfo)
		assert.Equal(t, []string{"faiss"}, b.c.CppInfo.ComponentNames())
	})

	t.Run("Invalid", func(t *testing.T) {
		b := newTestBuild(t, Faiss(), buildConfig{
			version:  "1.9.0",
			settings: withSettings(linuxSettings, "compiler.cppstd=14"),
		})
		b.configure(t)
		assert.True(t, recipe.IsInvalidConfiguration(b.c.Invalid()))

		b = newTestBuild(t, Faiss(), buildConfig{version: "1.9.0", settings: msvcSettings})
		b.configure(t)
		assert.False(t, b.c.Options.Has("fPIC"))
	})
}
