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

	"github.com/toitlang/trecipe/pkg/recipe"
)

// PatchTool is the external program patches are applied with.
var PatchTool = "patch"

// ApplyConanDataPatches applies the patches of the recipe's version, in the
// order they are declared. Patches restricted to another operating system
// are skipped.
func ApplyConanDataPatches(ctx context.Context, c *recipe.Conanfile) error {
	if c.ConanData == nil {
		return nil
	}
	for _, p := range c.ConanData.PatchesFor(c.Version(), c.Settings.Get("os")) {
		if err := ApplyPatch(ctx, c, p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPatch applies a single patch to the source folder, or to the base
// folder of the patch.
func ApplyPatch(ctx context.Context, c *recipe.Conanfile, p recipe.PatchEntry) error {
	patchFile, err := findPatch(c, p.PatchFile)
	if err != nil {
		return &recipe.PatchError{Patch: p.PatchFile, Err: err}
	}
	if p.PatchType != "" {
		c.UI.ReportInfo("Apply %s patch %s: %s", p.PatchType, p.PatchFile, p.PatchDescription)
	} else {
		c.UI.ReportInfo("Apply patch %s: %s", p.PatchFile, p.PatchDescription)
	}
	dir := resolve(c.SourceFolder(), p.BaseFolder)
	out, err := c.RunIn(ctx, dir, PatchTool, "-p1", "--forward", "--batch", "-i", patchFile)
	if err != nil {
		return &recipe.PatchError{Patch: p.PatchFile, Output: out, Err: err}
	}
	return nil
}

// findPatch looks for the patch in the exported sources first, and then in
// the recipe folder.
func findPatch(c *recipe.Conanfile, name string) (string, error) {
	if filepath.IsAbs(name) {
		_, err := os.Stat(name)
		return name, err
	}
	var lastErr error
	for _, base := range []string{c.Folders.ExportSourcesFolder(), c.RecipeFolder()} {
		if base == "" {
			continue
		}
		candidate := filepath.Join(base, filepath.FromSlash(name))
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return "", lastErr
}
