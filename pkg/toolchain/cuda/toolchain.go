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

package cuda

import (
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// Toolchain carries the CUDA configuration into the build environment.
// nvcc picks up NVCC_APPEND_FLAGS, and CMake picks up CUDAARCHS.
type Toolchain struct {
	c             *recipe.Conanfile
	Version       string
	Architectures []Architecture
	// ExtraFlags are appended after the architecture flags.
	ExtraFlags []string
	// HostCompiler, when set, is passed with -ccbin.
	HostCompiler string
}

// NewToolchain creates the toolchain from the settings of c.
func NewToolchain(c *recipe.Conanfile) (*Toolchain, error) {
	if err := ValidateSettings(c); err != nil {
		return nil, err
	}
	archs, err := ParseArchitectures(c.Settings.Get(SettingArchitectures))
	if err != nil {
		return nil, err
	}
	tc := &Toolchain{
		c:             c,
		Version:       c.Settings.Get(SettingVersion),
		Architectures: archs,
	}
	if cxx := c.Conf.GetMap(recipe.ConfCompilerExecutables)["cpp"]; cxx != "" {
		tc.HostCompiler = cxx
	}
	return tc, nil
}

// Flags returns all nvcc flags.
func (tc *Toolchain) Flags() []string {
	result := GencodeFlags(tc.Architectures)
	if tc.HostCompiler != "" {
		result = append(result, "-ccbin="+tc.HostCompiler)
	}
	return append(result, tc.ExtraFlags...)
}

// Environment returns the overlay the toolchain contributes.
func (tc *Toolchain) Environment() *recipe.EnvOverlay {
	env := recipe.NewEnvOverlay()
	env.Append("NVCC_APPEND_FLAGS", strings.Join(tc.Flags(), " "), " ")
	env.Define("CUDAARCHS", CMakeArchitectures(tc.Architectures))
	return env
}

// Generate adds the environment of the toolchain to the build environment.
func (tc *Toolchain) Generate() error {
	tc.c.BuildEnv = recipe.Compose(tc.c.BuildEnv, tc.Environment())
	return nil
}
