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
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// PackagePolicy selects which of the default post-install cleanups are
// skipped.
type PackagePolicy struct {
	// KeepCMakeConfig keeps upstream CMake config folders.
	KeepCMakeConfig bool
	// KeepPkgConfig keeps upstream .pc files.
	KeepPkgConfig bool
	// KeepMan keeps manual pages.
	KeepMan bool
	// KeepPDB keeps all .pdb files, not only the ones of shipped DLLs.
	KeepPDB bool
}

// ApplyPackagePolicy runs the post-install cleanups on the package folder:
// libtool archives, stray debug databases, CMake and pkg-config files of
// upstream, manual pages, and the artifacts of the other linkage. On Apple
// it also rewrites the install names of shared libraries.
func ApplyPackagePolicy(ctx context.Context, c *recipe.Conanfile, policy PackagePolicy) error {
	folder := c.PackageFolder()
	if _, err := Rm("*.la", folder, true); err != nil {
		return err
	}
	if !policy.KeepPDB {
		if err := removeStrayPDBs(folder); err != nil {
			return err
		}
	}
	dirs := []string{}
	if !policy.KeepCMakeConfig {
		dirs = append(dirs, "lib/cmake", "share/cmake", "cmake")
	}
	if !policy.KeepPkgConfig {
		dirs = append(dirs, "lib/pkgconfig", "share/pkgconfig")
	}
	if !policy.KeepMan {
		dirs = append(dirs, "share/man", "man")
	}
	for _, d := range dirs {
		if err := Rmdir(filepath.Join(folder, filepath.FromSlash(d))); err != nil {
			return err
		}
	}
	if err := EnforceLinkage(c); err != nil {
		return err
	}
	if recipe.IsApple(c.Settings.Get("os")) {
		return FixAppleSharedInstallName(ctx, c)
	}
	return nil
}

// removeStrayPDBs keeps the .pdb files that sit next to a DLL of the same
// name.
func removeStrayPDBs(folder string) error {
	return walkFiles(folder, func(p string) error {
		if !strings.EqualFold(filepath.Ext(p), ".pdb") {
			return nil
		}
		dll := strings.TrimSuffix(p, filepath.Ext(p)) + ".dll"
		if _, err := os.Stat(dll); err == nil {
			return nil
		}
		return os.Remove(p)
	})
}

// EnforceLinkage removes the artifacts of the linkage the package doesn't
// have, if upstream installed both.
func EnforceLinkage(c *recipe.Conanfile) error {
	folder := c.PackageFolder()
	lib := filepath.Join(folder, "lib")
	bin := filepath.Join(folder, "bin")
	switch c.PackageType() {
	case recipe.SharedLibrary:
		// With msvc, import libraries and static libraries can't be told
		// apart by name.
		if recipe.IsMSVC(c.Settings) {
			return nil
		}
		return walkFiles(lib, func(p string) error {
			name := filepath.Base(p)
			if strings.HasSuffix(name, ".a") && !strings.HasSuffix(name, ".dll.a") {
				return os.Remove(p)
			}
			return nil
		})
	case recipe.StaticLibrary:
		for _, pattern := range []string{"*.so", "*.so.*", "*.dylib", "*.dll.a"} {
			if _, err := Rm(pattern, lib, true); err != nil {
				return err
			}
		}
		_, err := Rm("*.dll", bin, true)
		return err
	}
	return nil
}

// RenameImportLibs gives the import libraries of msvc shared builds their
// canonical name: "lib/<name>.lib". Upstream builds often produce
// "<name>.dll.lib" or "lib<name>.dll.lib".
func RenameImportLibs(c *recipe.Conanfile, names ...string) error {
	if c.PackageType() != recipe.SharedLibrary || !recipe.IsMSVC(c.Settings) {
		return nil
	}
	lib := filepath.Join(c.PackageFolder(), "lib")
	for _, name := range names {
		canonical := filepath.Join(lib, name+".lib")
		if _, err := os.Stat(canonical); err == nil {
			continue
		}
		for _, candidate := range []string{name + ".dll.lib", "lib" + name + ".dll.lib", "lib" + name + ".lib"} {
			p := filepath.Join(lib, candidate)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := Rename(p, canonical); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// walkFiles calls f for every regular file below folder. Missing folders
// are ignored.
func walkFiles(folder string, f func(p string) error) error {
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(folder, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return f(p)
	})
}
