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
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// ReplaceInFile replaces all occurrences of search. It is an error if search
// doesn't occur. Relative paths are relative to the source folder.
func ReplaceInFile(c *recipe.Conanfile, p string, search string, replace string) error {
	found, err := replaceInFile(c, p, search, replace)
	if err != nil {
		return err
	}
	if !found {
		return recipe.NewFrameworkError("%s: pattern '%s' not found in '%s'", c.Ref, search, p)
	}
	return nil
}

// ReplaceInFileIfPresent is ReplaceInFile, but only warns if search doesn't
// occur. Returns whether the file changed.
func ReplaceInFileIfPresent(c *recipe.Conanfile, p string, search string, replace string) (bool, error) {
	found, err := replaceInFile(c, p, search, replace)
	if err != nil {
		return false, err
	}
	if !found {
		c.UI.ReportWarning("Pattern '%s' not found in '%s'", search, p)
	}
	return found, nil
}

func replaceInFile(c *recipe.Conanfile, p string, search string, replace string) (bool, error) {
	p = resolve(c.SourceFolder(), p)
	content, err := os.ReadFile(p)
	if err != nil {
		return false, err
	}
	old := string(content)
	if !strings.Contains(old, search) {
		return false, nil
	}
	updated := strings.ReplaceAll(old, search, replace)
	if updated == old {
		return true, nil
	}
	if c.Conf.GetString(recipe.ConfVerbose, "") == "verbose" {
		diff, err := Diff(p, old, updated)
		if err != nil {
			return false, err
		}
		c.UI.ReportInfo("Edited %s\n%s", p, diff)
	}
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(p, []byte(updated), info.Mode().Perm())
}

// Diff renders a unified diff of the two versions of the file.
func Diff(name string, old string, updated string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(old),
		B:        splitLines(updated),
		FromFile: name,
		ToFile:   name,
		Context:  2,
	})
}

// splitLines keeps the line terminators. A missing final newline is added
// so the last line renders like the others.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += "\n"
	return lines
}

// Save writes the content, creating the parent folders.
func Save(p string, content string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

// Load reads the whole file.
func Load(p string) (string, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
