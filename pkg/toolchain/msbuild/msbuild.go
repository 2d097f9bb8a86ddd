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
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// MSBuild builds solutions and projects.
type MSBuild struct {
	c             *recipe.Conanfile
	Configuration string
	Platform      string
}

// New creates the driver for c.
func New(c *recipe.Conanfile) *MSBuild {
	return &MSBuild{
		c:             c,
		Configuration: c.Settings.GetSafe("build_type", "Release"),
		Platform:      SolutionPlatform(c.Settings.Get("arch")),
	}
}

// BuildArgs returns the argv that builds the solution or project.
// Relative paths are relative to the source folder.
func (m *MSBuild) BuildArgs(solution string, targets ...string) []string {
	c := m.c
	if !filepath.IsAbs(solution) {
		solution = filepath.Join(c.SourceFolder(), solution)
	}
	args := []string{"msbuild", solution,
		"/p:Configuration=" + m.Configuration,
		"/p:Platform=" + m.Platform,
		"/m:" + strconv.Itoa(build.Jobs(c)),
	}
	props := filepath.Join(c.GeneratorsFolder(), PropsFileName)
	if _, err := os.Stat(props); err == nil {
		args = append(args, "/p:ForceImportBeforeCppTargets="+props)
	}
	for _, target := range targets {
		args = append(args, "/target:"+target)
	}
	return args
}

// Build runs msbuild in the build folder.
func (m *MSBuild) Build(ctx context.Context, solution string, targets ...string) error {
	_, err := m.c.Run(ctx, m.BuildArgs(solution, targets...)...)
	return err
}
