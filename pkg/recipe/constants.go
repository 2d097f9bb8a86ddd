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

const (
	// The directory inside indexes, where recipes are stored.
	RecipesDir = "recipes"

	// The file, next to the recipe folders, listing the supported versions.
	ConfigFileName = "config.yml"

	// The external data of a recipe folder.
	ConanDataFileName = "conandata.yml"

	// The directory inside a recipe folder holding the patch files.
	PatchesDir = "patches"

	// Written into every package folder.
	ManifestFileName = "conanmanifest.yaml"

	// The directory inside a package folder that must hold the licenses.
	LicensesDir = "licenses"

	BuildEnvScriptName = "conanbuildenv"
	RunEnvScriptName   = "conanrunenv"
)

// Well known conf keys.
const (
	ConfBuildJobs           = "tools.build:jobs"
	ConfSkipTest            = "tools.build:skip_test"
	ConfCompilerExecutables = "tools.build:compiler_executables"
	ConfCanRun              = "tools.build.cross_building:can_run"
	ConfCMakeGenerator      = "tools.cmake.cmaketoolchain:generator"
	ConfBashPath            = "tools.microsoft.bash:path"
	ConfBashSubsystem       = "tools.microsoft.bash:subsystem"
	ConfDownloadRetry       = "tools.files.download:retry"
	ConfDownloadCache       = "tools.files.download:download_cache"
	ConfDownloadURLs        = "core.sources:download_urls"
	ConfCppstdPolicy        = "tools.info.package_id:cppstd_policy"
	ConfVerbose             = "tools.build:verbosity"
)
