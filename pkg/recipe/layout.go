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

package recipe

import (
	"path/filepath"
	"strings"
)

// Folders holds the folders of a Conanfile.
// The orchestrator assigns the base folders; the recipe chooses the
// sub-folders during layout. Afterwards all folders are read-only.
type Folders struct {
	recipeBase  string
	sourceBase  string
	buildBase   string
	packageBase string
	exportBase  string

	source     string
	build      string
	generators string

	frozen bool
}

// RecipeFolder is the folder of the recipe in its index, holding
// conandata.yml and the patches.
func (f *Folders) RecipeFolder() string {
	return f.recipeBase
}

// SourceFolder is the folder with the extracted sources.
func (f *Folders) SourceFolder() string {
	return join(f.sourceBase, f.source)
}

// BuildFolder is the folder the build runs in.
func (f *Folders) BuildFolder() string {
	return join(f.buildBase, f.build)
}

// GeneratorsFolder receives the toolchain and dependency files.
func (f *Folders) GeneratorsFolder() string {
	return join(f.buildBase, f.generators)
}

// PackageFolder is the canonical installation tree.
func (f *Folders) PackageFolder() string {
	return f.packageBase
}

// ExportSourcesFolder holds the exported sources of the recipe.
func (f *Folders) ExportSourcesFolder() string {
	return f.exportBase
}

// SourceSubfolder returns the relative source folder chosen in layout.
func (f *Folders) SourceSubfolder() string {
	return f.source
}

func join(base string, sub string) string {
	if base == "" {
		return ""
	}
	if sub == "" {
		return base
	}
	return filepath.Join(base, filepath.FromSlash(sub))
}

// assignRefFolders is called by the orchestrator with the folders that are
// shared by all binaries of a reference.
func (f *Folders) assignRefFolders(export string, source string) {
	f.exportBase, f.sourceBase = export, source
}

// assignPackageFolders is called by the orchestrator once the package id is
// known.
func (f *Folders) assignPackageFolders(build string, pkg string) {
	f.buildBase, f.packageBase = build, pkg
}

// setLayout is called by the layout helpers.
func (f *Folders) setLayout(source string, build string, generators string) error {
	if f.frozen {
		return NewFrameworkError("folders are read-only after layout")
	}
	f.source, f.build, f.generators = source, build, generators
	return nil
}

// BasicLayout uses a single build folder "build-<build_type>".
func BasicLayout(c *Conanfile, srcFolder string) error {
	if err := c.checkStage("set the layout", StageLayout); err != nil {
		return err
	}
	build := "build"
	if bt := c.Settings.Get("build_type"); bt != "" {
		build += "-" + strings.ToLower(bt)
	}
	return c.Folders.setLayout(srcFolder, build, build+"/conan")
}

// CMakeLayout uses "build/<build_type>" for single-config generators and
// "build" for multi-config ones (Visual Studio, Ninja Multi-Config).
func CMakeLayout(c *Conanfile, srcFolder string) error {
	if err := c.checkStage("set the layout", StageLayout); err != nil {
		return err
	}
	if IsMultiConfig(c) {
		return c.Folders.setLayout(srcFolder, "build", "build/generators")
	}
	bt := c.Settings.GetSafe("build_type", "Release")
	return c.Folders.setLayout(srcFolder, "build/"+bt, "build/"+bt+"/generators")
}

// IsMultiConfig returns whether the CMake generator in use builds several
// configurations from one tree.
func IsMultiConfig(c *Conanfile) bool {
	generator := c.Conf.GetString(ConfCMakeGenerator, "")
	if generator == "" {
		return IsMSVC(c.Settings)
	}
	return strings.Contains(generator, "Visual Studio") || strings.Contains(generator, "Xcode") ||
		strings.Contains(generator, "Multi-Config")
}
