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

package gnu

import (
	"path/filepath"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// Deps aggregates the include, library and link flags of the host
// dependencies into CPPFLAGS, CFLAGS, CXXFLAGS, LDFLAGS and LIBS.
type Deps struct {
	c *recipe.Conanfile
}

// NewDeps creates the generator for the dependencies of c.
func NewDeps(c *recipe.Conanfile) *Deps {
	return &Deps{c: c}
}

func absDirs(folder string, dirs []string) []string {
	result := []string{}
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(folder, dir)
		}
		result = append(result, filepath.ToSlash(dir))
	}
	return result
}

// Flags are the aggregated flags per variable.
type Flags struct {
	CPPFlags []string
	CFlags   []string
	CxxFlags []string
	LDFlags  []string
	Libs     []string
}

// Flags computes the aggregated flags, in dependency order.
func (d *Deps) Flags() Flags {
	msvc := recipe.IsMSVC(d.c.Settings)
	f := Flags{}
	for _, dep := range d.c.Dependencies.HostList() {
		if dep.CppInfo == nil || !(dep.Headers || dep.Libs) {
			continue
		}
		info := dep.CppInfo.Aggregated()
		if dep.Headers {
			for _, dir := range absDirs(dep.PackageFolder, info.IncludeDirs) {
				f.CPPFlags = append(f.CPPFlags, "-I"+dir)
			}
			for _, define := range info.Defines {
				f.CPPFlags = append(f.CPPFlags, "-D"+define)
			}
			f.CFlags = append(f.CFlags, info.CFlags...)
			f.CxxFlags = append(f.CxxFlags, info.CxxFlags...)
		}
		if !dep.Libs {
			continue
		}
		for _, dir := range absDirs(dep.PackageFolder, info.LibDirs) {
			if msvc {
				f.LDFlags = append(f.LDFlags, "-LIBPATH:"+dir)
			} else {
				f.LDFlags = append(f.LDFlags, "-L"+dir)
			}
		}
		for _, dir := range absDirs(dep.PackageFolder, info.FrameworkDirs) {
			f.LDFlags = append(f.LDFlags, "-F"+dir)
		}
		f.LDFlags = append(f.LDFlags, info.SharedLinkFlags...)
		f.LDFlags = append(f.LDFlags, info.ExeLinkFlags...)
		for _, lib := range append(append([]string{}, info.Libs...), info.SystemLibs...) {
			if msvc {
				if !strings.HasSuffix(lib, ".lib") {
					lib += ".lib"
				}
				f.Libs = append(f.Libs, lib)
			} else {
				f.Libs = append(f.Libs, "-l"+lib)
			}
		}
		for _, fw := range info.Frameworks {
			f.Libs = append(f.Libs, "-framework", fw)
		}
	}
	return f
}

// Environment returns the flags as environment additions.
func (d *Deps) Environment() *recipe.EnvOverlay {
	f := d.Flags()
	env := recipe.NewEnvOverlay()
	for _, entry := range []struct {
		name  string
		flags []string
	}{
		{"CPPFLAGS", f.CPPFlags},
		{"CFLAGS", f.CFlags},
		{"CXXFLAGS", f.CxxFlags},
		{"LDFLAGS", f.LDFlags},
		{"LIBS", f.Libs},
	} {
		if len(entry.flags) > 0 {
			env.Append(entry.name, strings.Join(entry.flags, " "), " ")
		}
	}
	return env
}

// Generate adds the flags to the build environment of the recipe.
func (d *Deps) Generate() error {
	d.c.BuildEnv = recipe.Compose(d.c.BuildEnv, d.Environment())
	return nil
}
