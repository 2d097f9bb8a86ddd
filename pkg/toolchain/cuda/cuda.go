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

// Package cuda computes the nvcc flags of CUDA enabled packages from the
// cuda.version and cuda.architectures settings.
package cuda

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

const (
	SettingVersion       = "cuda.version"
	SettingArchitectures = "cuda.architectures"
)

// Architectures that select a set of GPUs, instead of a single one.
const (
	ArchNative   = "native"
	ArchAll      = "all"
	ArchAllMajor = "all-major"
)

var (
	versionRegexp = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)
	archRegexp    = regexp.MustCompile(`^([0-9]+)(a?)(-real|-virtual)?$`)
)

// Architecture is one entry of cuda.architectures, like "80", "90a-real" or
// "native".
type Architecture struct {
	// Name is the architecture without suffix: "80", "90a", "native".
	Name string
	// Real requests device code (sm_NN).
	Real bool
	// Virtual requests PTX (compute_NN).
	Virtual bool
	number  int
}

// IsSpecial returns whether the architecture is one of native, all or
// all-major.
func (a Architecture) IsSpecial() bool {
	return a.Name == ArchNative || a.Name == ArchAll || a.Name == ArchAllMajor
}

// Number returns the numeric part of the architecture.
// It is 0 for special architectures.
func (a Architecture) Number() int {
	return a.number
}

// String returns the architecture in CMake notation.
func (a Architecture) String() string {
	switch {
	case a.IsSpecial(), a.Real && a.Virtual:
		return a.Name
	case a.Real:
		return a.Name + "-real"
	}
	return a.Name + "-virtual"
}

// ParseArchitectures parses a list of architectures. Entries are separated
// by ";" or ",".
func ParseArchitectures(value string) ([]Architecture, error) {
	result := []Architecture{}
	fields := []string{}
	for _, field := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	for _, field := range fields {
		switch field {
		case ArchNative, ArchAll, ArchAllMajor:
			if len(fields) > 1 {
				return nil, fmt.Errorf("CUDA architecture '%s' can't be combined with other architectures", field)
			}
			result = append(result, Architecture{Name: field, Real: true, Virtual: true})
			continue
		}
		m := archRegexp.FindStringSubmatch(field)
		if m == nil {
			return nil, fmt.Errorf("invalid CUDA architecture '%s'", field)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid CUDA architecture '%s': %w", field, err)
		}
		arch := Architecture{Name: m[1] + m[2], number: n}
		switch m[3] {
		case "-real":
			arch.Real = true
		case "-virtual":
			arch.Virtual = true
		default:
			arch.Real, arch.Virtual = true, true
		}
		result = append(result, arch)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no CUDA architecture in '%s'", value)
	}
	return result, nil
}

// GencodeFlags returns the nvcc flags for the architectures.
// native, all and all-major become a single -arch flag. Every other
// architecture emits device code, PTX, or both when it has no suffix.
func GencodeFlags(archs []Architecture) []string {
	result := []string{}
	for _, a := range archs {
		if a.IsSpecial() {
			result = append(result, "-arch="+a.Name)
			continue
		}
		if a.Real {
			result = append(result, fmt.Sprintf("-gencode=arch=compute_%s,code=sm_%s", a.Name, a.Name))
		}
		if a.Virtual {
			result = append(result, fmt.Sprintf("-gencode=arch=compute_%s,code=compute_%s", a.Name, a.Name))
		}
	}
	return result
}

// CMakeArchitectures renders the architectures for CMAKE_CUDA_ARCHITECTURES.
func CMakeArchitectures(archs []Architecture) string {
	parts := make([]string, 0, len(archs))
	for _, a := range archs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ";")
}

// ValidateSettings checks that cuda.version and cuda.architectures are set
// and well formed.
func ValidateSettings(c *recipe.Conanfile) error {
	version := c.Settings.Get(SettingVersion)
	if version == "" {
		return recipe.NewInvalidConfiguration("the setting %s is required", SettingVersion)
	}
	if !versionRegexp.MatchString(version) {
		return recipe.NewInvalidConfiguration("%s must be <major>.<minor>, got '%s'", SettingVersion, version)
	}
	value := c.Settings.Get(SettingArchitectures)
	if value == "" {
		return recipe.NewInvalidConfiguration("the setting %s is required", SettingArchitectures)
	}
	if _, err := ParseArchitectures(value); err != nil {
		return recipe.NewInvalidConfiguration("%v", err)
	}
	return nil
}

// CheckMinArchitecture fails when one of the selected architectures is
// older than min. Special architectures always pass.
func CheckMinArchitecture(c *recipe.Conanfile, min int) error {
	archs, err := ParseArchitectures(c.Settings.Get(SettingArchitectures))
	if err != nil {
		return recipe.NewInvalidConfiguration("%v", err)
	}
	for _, a := range archs {
		if !a.IsSpecial() && a.Number() < min {
			return recipe.NewInvalidConfiguration("CUDA architecture %s is not supported, the minimum is %d", a.Name, min)
		}
	}
	return nil
}

// VersionRange returns the range of CUDA toolkit package versions that
// match the cuda.version setting, like "[~12.4]".
func VersionRange(c *recipe.Conanfile) (string, error) {
	version := c.Settings.Get(SettingVersion)
	if !versionRegexp.MatchString(version) {
		return "", recipe.NewInvalidConfiguration("%s must be <major>.<minor>, got '%s'", SettingVersion, version)
	}
	return "[~" + version + "]", nil
}

// RequireToolkit requires a package of the CUDA toolkit, like "cudart" or
// "cublas", in the version matching cuda.version.
func RequireToolkit(c *recipe.Conanfile, name string, traits ...recipe.Trait) error {
	r, err := VersionRange(c)
	if err != nil {
		return err
	}
	return c.Requires(name+"/"+r, traits...)
}

// RequireToolkitTool requires a tool of the CUDA toolkit, like "nvcc", in
// the version matching cuda.version. Only valid in build_requirements.
func RequireToolkitTool(c *recipe.Conanfile, name string, traits ...recipe.Trait) error {
	r, err := VersionRange(c)
	if err != nil {
		return err
	}
	return c.ToolRequires(name+"/"+r, traits...)
}
