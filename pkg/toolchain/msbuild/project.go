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

package msbuild

import (
	"path/filepath"
	"regexp"

	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
)

var (
	toolsetPattern = regexp.MustCompile(`<PlatformToolset>[^<]*</PlatformToolset>`)
	sdkPattern     = regexp.MustCompile(`<WindowsTargetPlatformVersion>[^<]*</WindowsTargetPlatformVersion>`)
)

// RewriteProject replaces the platform toolset and, when sdkVersion isn't
// empty, the target platform version of a vcxproj. Relative paths are
// relative to the source folder. It returns whether the project changed.
func RewriteProject(c *recipe.Conanfile, project string, toolset string, sdkVersion string) (bool, error) {
	if !filepath.IsAbs(project) {
		project = filepath.Join(c.SourceFolder(), project)
	}
	old, err := files.Load(project)
	if err != nil {
		return false, err
	}
	updated := old
	if toolset != "" {
		updated = toolsetPattern.ReplaceAllLiteralString(updated, "<PlatformToolset>"+toolset+"</PlatformToolset>")
	}
	if sdkVersion != "" {
		updated = sdkPattern.ReplaceAllLiteralString(updated,
			"<WindowsTargetPlatformVersion>"+sdkVersion+"</WindowsTargetPlatformVersion>")
	}
	if updated == old {
		return false, nil
	}
	if c.Conf.GetString(recipe.ConfVerbose, "") == "verbose" {
		diff, err := files.Diff(project, old, updated)
		if err != nil {
			return false, err
		}
		c.UI.ReportInfo("Edited %s\n%s", project, diff)
	}
	return true, files.Save(project, updated)
}

// RewriteProjects rewrites the projects with the toolset and SDK the
// settings and conf select.
func RewriteProjects(c *recipe.Conanfile, projects ...string) error {
	toolset := Toolset(c.Settings)
	sdk := c.Conf.GetString(ConfWinSDKVersion, "")
	for _, p := range projects {
		if _, err := RewriteProject(c, p, toolset, sdk); err != nil {
			return err
		}
	}
	return nil
}
