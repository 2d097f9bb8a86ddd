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

package files

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

const rpathPrefix = "@rpath/"

// FixAppleSharedInstallName makes the shared libraries of the package
// relocatable. Their install names become "@rpath/<name>", and references
// between the binaries of the package are changed accordingly.
func FixAppleSharedInstallName(ctx context.Context, c *recipe.Conanfile) error {
	if !recipe.IsApple(c.Settings.Get("os")) {
		return nil
	}
	libs, err := machOFiles(filepath.Join(c.PackageFolder(), "lib"), ".dylib")
	if err != nil {
		return err
	}
	renamed := map[string]string{}
	for _, lib := range libs {
		id, err := installName(ctx, c, lib)
		if err != nil {
			return err
		}
		if id == "" || strings.HasPrefix(id, rpathPrefix) {
			continue
		}
		newID := rpathPrefix + filepath.Base(id)
		if _, err := c.RunIn(ctx, filepath.Dir(lib), "install_name_tool", "-id", newID, lib); err != nil {
			return err
		}
		renamed[id] = newID
	}

	exes, err := machOFiles(filepath.Join(c.PackageFolder(), "bin"), "")
	if err != nil {
		return err
	}
	libFolder := filepath.Join(c.PackageFolder(), "lib") + string(filepath.Separator)
	for _, binary := range append(libs, exes...) {
		deps, err := dependencies(ctx, c, binary)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			newName, ok := renamed[dep]
			if !ok && strings.HasPrefix(dep, libFolder) {
				newName, ok = rpathPrefix+filepath.Base(dep), true
			}
			if !ok || dep == newName {
				continue
			}
			if _, err := c.RunIn(ctx, filepath.Dir(binary), "install_name_tool", "-change", dep, newName, binary); err != nil {
				return err
			}
		}
	}
	return nil
}

// machOFiles returns the regular files in folder with the given extension.
// An empty extension selects executables.
func machOFiles(folder string, ext string) ([]string, error) {
	result := []string{}
	err := walkFiles(folder, func(p string) error {
		if ext != "" {
			if filepath.Ext(p) == ext {
				result = append(result, p)
			}
			return nil
		}
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0111 != 0 {
			result = append(result, p)
		}
		return nil
	})
	sort.Strings(result)
	return result, err
}

// installName returns the id of the shared library. `otool -D` prints the
// file name followed by the id.
func installName(ctx context.Context, c *recipe.Conanfile, lib string) (string, error) {
	out, err := c.RunIn(ctx, filepath.Dir(lib), "otool", "-D", lib)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return "", nil
	}
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// dependencies parses the output of `otool -L`:
//
//	/path/libfoo.dylib:
//		@rpath/libfoo.dylib (compatibility version 1.0.0, current version 1.0.0)
//		/usr/lib/libSystem.B.dylib (compatibility version 1.0.0, current version 1311.0.0)
func dependencies(ctx context.Context, c *recipe.Conanfile, binary string) ([]string, error) {
	out, err := c.RunIn(ctx, filepath.Dir(binary), "otool", "-L", binary)
	if err != nil {
		return nil, err
	}
	result := []string{}
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, " ("); idx >= 0 {
			line = line[:idx]
		}
		if line != "" {
			result = append(result, line)
		}
	}
	return result, nil
}
