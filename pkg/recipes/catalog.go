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

// Package recipes contains the recipes shipped with trecipe.
//
// Recipe indexes only provide the versions and the external data of a
// recipe. The implementations live here, and are registered in the
// catalog under the recipe folder they implement.
package recipes

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-version"
	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// All returns the recipes of the catalog.
func All() []*recipe.Recipe {
	return []*recipe.Recipe{
		AdaptiveCpp(),
		Eigen(),
		Faiss(),
		GMP(),
		Gurobi(),
		Libigl(),
		MSYS2(),
	}
}

// Catalog returns a catalog with all recipes. Every recipe serves the
// "all" folder of its index entry.
func Catalog() *recipe.Catalog {
	catalog := recipe.NewCatalog()
	for _, r := range All() {
		catalog.Register(r, "all")
	}
	return catalog
}

var defaultSettings = []string{"os", "arch", "compiler", "build_type"}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// majorMinor returns the first two segments of the version of c.
func majorMinor(c *recipe.Conanfile) (major int, minor int, err error) {
	v, err := version.NewVersion(c.Version())
	if err != nil {
		return 0, 0, recipe.WrapFrameworkError(err, "invalid version '%s'", c.Version())
	}
	segments := v.Segments()
	return segments[0], segments[1], nil
}

func isLinuxLike(s *recipe.Settings) bool {
	return s.Is("os", recipe.OSLinux, recipe.OSFreeBSD)
}

// copyLicenses copies the files matching pattern from the source folder
// into the licenses folder of the package.
func copyLicenses(c *recipe.Conanfile, pattern string) error {
	_, err := files.Copy(pattern, c.SourceFolder(), filepath.Join(c.PackageFolder(), recipe.LicensesDir), files.CopyOptions{Flatten: true})
	return err
}

// getSources fetches the sources of the version and applies the patches
// of conandata.yml.
func getSources(ctx context.Context, c *recipe.Conanfile) error {
	if err := files.GetSources(ctx, c); err != nil {
		return err
	}
	return files.ApplyConanDataPatches(ctx, c)
}
