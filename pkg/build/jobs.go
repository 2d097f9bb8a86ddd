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

// Package build contains helpers shared by the build backends: the number
// of parallel jobs, cross-building predicates and compiler runtime names.
package build

import (
	"runtime"

	"github.com/toitlang/trecipe/pkg/recipe"
)

const gib = 1024 * 1024 * 1024

// availableMemory is replaced in tests.
var availableMemory = systemMemory

// Jobs returns the number of parallel build jobs.
// The conf entry tools.build:jobs wins over the number of CPUs.
func Jobs(c *recipe.Conanfile) int {
	if jobs := c.Conf.GetInt(recipe.ConfBuildJobs, 0); jobs > 0 {
		return jobs
	}
	return runtime.NumCPU()
}

// LimitBuildJobs reduces the number of parallel jobs so that every job has
// at least gbPerJob GiB of available memory, and records the result in
// tools.build:jobs.
// When the available memory can't be determined, the jobs are left
// unchanged.
func LimitBuildJobs(c *recipe.Conanfile, gbPerJob float64) (int, error) {
	jobs := Jobs(c)
	if gbPerJob <= 0 {
		return jobs, nil
	}
	available, ok := availableMemory()
	if !ok {
		c.UI.ReportWarning("Unable to determine the available memory, not limiting the build jobs")
		return jobs, nil
	}
	limit := int(float64(available) / (gbPerJob * gib))
	if limit < 1 {
		limit = 1
	}
	if limit >= jobs {
		return jobs, nil
	}
	c.UI.ReportInfo("Limiting the build jobs to %d (%.1f GiB available)", limit, float64(available)/gib)
	if err := c.Conf.Define(recipe.ConfBuildJobs, limit); err != nil {
		return jobs, err
	}
	return limit, nil
}
