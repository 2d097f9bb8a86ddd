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

package cmake

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

var visualStudioGenerators = map[string]string{
	"190": "Visual Studio 14 2015",
	"191": "Visual Studio 15 2017",
	"192": "Visual Studio 16 2019",
	"193": "Visual Studio 17 2022",
	"194": "Visual Studio 17 2022",
}

// Generator returns the CMake generator for c.
// The conf entry tools.cmake.cmaketoolchain:generator wins. msvc uses the
// Visual Studio generator of its version, MinGW uses MinGW Makefiles.
func Generator(c *recipe.Conanfile) string {
	if g := c.Conf.GetString(recipe.ConfCMakeGenerator, ""); g != "" {
		return g
	}
	if recipe.IsMSVC(c.Settings) {
		version := c.Settings.Get("compiler.version")
		if len(version) > 3 {
			version = version[:3]
		}
		if g, ok := visualStudioGenerators[version]; ok {
			return g
		}
		return "Visual Studio 17 2022"
	}
	if c.SettingsBuild.Get("os") == recipe.OSWindows && c.Settings.Get("compiler") == recipe.CompilerGCC {
		return "MinGW Makefiles"
	}
	return "Unix Makefiles"
}

// PresetName returns the name of the configure preset.
func PresetName(c *recipe.Conanfile) string {
	if recipe.IsMultiConfig(c) {
		return "conan-default"
	}
	return "conan-" + strings.ToLower(c.Settings.GetSafe("build_type", "release"))
}

type presetVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

type configurePreset struct {
	Name           string            `json:"name"`
	DisplayName    string            `json:"displayName"`
	Generator      string            `json:"generator"`
	CacheVariables map[string]string `json:"cacheVariables"`
	ToolchainFile  string            `json:"toolchainFile"`
	BinaryDir      string            `json:"binaryDir"`
}

type buildPreset struct {
	Name            string `json:"name"`
	ConfigurePreset string `json:"configurePreset"`
	Jobs            int    `json:"jobs,omitempty"`
	Configuration   string `json:"configuration,omitempty"`
}

type testPreset struct {
	Name            string `json:"name"`
	ConfigurePreset string `json:"configurePreset"`
	Configuration   string `json:"configuration,omitempty"`
}

// presetsFile is the schema version 3 of CMakePresets.json.
type presetsFile struct {
	Version              int               `json:"version"`
	CMakeMinimumRequired presetVersion     `json:"cmakeMinimumRequired"`
	ConfigurePresets     []configurePreset `json:"configurePresets"`
	BuildPresets         []buildPreset     `json:"buildPresets"`
	TestPresets          []testPreset      `json:"testPresets"`
}

// Presets renders CMakePresets.json.
func (tc *Toolchain) Presets() ([]byte, error) {
	c := tc.c
	cache := map[string]string{}
	for _, name := range tc.CacheVariables.Names() {
		cache[name] = tc.CacheVariables.String(name)
	}
	name := PresetName(c)
	buildName := "conan-" + strings.ToLower(c.Settings.GetSafe("build_type", "release"))
	configuration := ""
	if recipe.IsMultiConfig(c) {
		configuration = c.Settings.Get("build_type")
	}
	presets := presetsFile{
		Version:              3,
		CMakeMinimumRequired: presetVersion{Major: 3, Minor: 15},
		ConfigurePresets: []configurePreset{{
			Name:           name,
			DisplayName:    "'" + name + "' config",
			Generator:      tc.Generator,
			CacheVariables: cache,
			ToolchainFile:  filepath.ToSlash(filepath.Join(c.GeneratorsFolder(), ToolchainFileName)),
			BinaryDir:      filepath.ToSlash(c.BuildFolder()),
		}},
		BuildPresets: []buildPreset{{
			Name:            buildName,
			ConfigurePreset: name,
			Jobs:            build.Jobs(c),
			Configuration:   configuration,
		}},
		TestPresets: []testPreset{{
			Name:            buildName,
			ConfigurePreset: name,
			Configuration:   configuration,
		}},
	}
	data, err := json.MarshalIndent(presets, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// readPresets loads the presets written by the toolchain.
func readPresets(data []byte) (*presetsFile, error) {
	result := &presetsFile{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return result, nil
}
