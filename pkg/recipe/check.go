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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// LibraryPatterns returns the file name patterns a library may have on the
// given OS.
func LibraryPatterns(lib string, osName string) []string {
	q := glob.QuoteMeta(lib)
	switch {
	case osName == OSWindows:
		return []string{q + ".lib", "lib" + q + ".a", "lib" + q + ".dll.a", "lib" + q + ".lib"}
	case IsApple(osName):
		return []string{"lib" + q + ".a", "lib" + q + ".dylib", "lib" + q + ".*.dylib", q + ".framework"}
	}
	return []string{"lib" + q + ".a", "lib" + q + ".so", "lib" + q + ".so.*"}
}

// findLibrary returns whether one of the directories holds the library.
func findLibrary(dirs []string, lib string, osName string) (bool, error) {
	patterns := []glob.Glob{}
	for _, p := range LibraryPatterns(lib, osName) {
		g, err := glob.Compile(p)
		if err != nil {
			return false, err
		}
		patterns = append(patterns, g)
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			for _, g := range patterns {
				if g.Match(entry.Name()) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// CheckPackage verifies the package folder and the published cpp_info of a
// produced binary:
//   - every library exists in one of the library directories,
//   - header libraries have no library directory content and no libraries,
//   - the licenses directory holds at least one file.
func CheckPackage(c *Conanfile) error {
	folder := c.PackageFolder()
	problems := []string{}
	osName := c.Settings.Get("os")
	if osName == "" {
		osName = c.SettingsBuild.Get("os")
	}
	for _, unit := range c.CppInfo.Units() {
		dirs := []string{}
		for _, d := range unit.LibDirs {
			dirs = append(dirs, filepath.Join(folder, filepath.FromSlash(d)))
		}
		for _, lib := range unit.Libs {
			ok, err := findLibrary(dirs, lib, osName)
			if err != nil {
				return err
			}
			if !ok {
				problems = append(problems, fmt.Sprintf("library '%s' not found in %v", lib, unit.LibDirs))
			}
		}
	}
	if c.PackageType() == HeaderLibrary {
		if libs := c.CppInfo.AllLibs(); len(libs) > 0 {
			problems = append(problems, fmt.Sprintf("header-library declares libraries %v", libs))
		}
		entries, err := os.ReadDir(filepath.Join(folder, "lib"))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if len(entries) > 0 {
			problems = append(problems, "header-library has a non-empty lib directory")
		}
	}
	entries, err := os.ReadDir(filepath.Join(folder, LicensesDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(entries) == 0 {
		problems = append(problems, "no license in '"+LicensesDir+"'")
	}
	if len(problems) > 0 {
		return NewFrameworkError("%s: invalid package: %s", c.Ref, strings.Join(problems, "; "))
	}
	return nil
}

// CheckIdentity verifies the identity after package_id: options deleted in
// configure are absent, and auto_shared_fpic never leaves fPIC next to
// shared=True.
func CheckIdentity(c *Conanfile) error {
	if c.Info == nil {
		return NewFrameworkError("%s: no package id computed", c.Ref)
	}
	for _, name := range c.Options.Deleted(StageConfigure) {
		if c.Info.Options.Has(name) {
			return NewFrameworkError("%s: option '%s' was removed in configure but is part of the identity", c.Ref, name)
		}
	}
	if c.recipe.Implements(AutoSharedFPIC) && c.Info.Options.Get("shared") == True && c.Info.Options.Has("fPIC") {
		return NewFrameworkError("%s: fPIC is part of the identity of a shared library", c.Ref)
	}
	return nil
}

// CheckComponentRequires verifies that every "pkg::comp" requirement of the
// published components names a host requirement and one of its components.
func CheckComponentRequires(c *Conanfile) error {
	problems := []string{}
	check := func(owner string, requires []string) {
		for _, r := range requires {
			parts := strings.SplitN(r, "::", 2)
			if len(parts) != 2 {
				continue
			}
			pkg, comp := parts[0], parts[1]
			dep, ok := c.Dependencies.Host(pkg)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s requires '%s', but '%s' is not a host requirement", owner, r, pkg))
				continue
			}
			if dep.CppInfo == nil {
				continue
			}
			if dep.CppInfo.HasComponents() {
				if !dep.CppInfo.HasComponent(comp) {
					problems = append(problems, fmt.Sprintf("%s requires '%s', but '%s' has no component '%s'", owner, r, pkg, comp))
				}
			} else if comp != pkg {
				problems = append(problems, fmt.Sprintf("%s requires '%s', but '%s' has no components", owner, r, pkg))
			}
		}
	}
	check("cpp_info", c.CppInfo.Requires)
	for _, comp := range c.CppInfo.ComponentList() {
		check("component "+comp.Name, comp.Requires)
	}
	if len(problems) > 0 {
		return NewFrameworkError("%s: %s", c.Ref, strings.Join(problems, "; "))
	}
	return nil
}
