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

import "fmt"

// Stage is a state of the recipe lifecycle.
// Stages are totally ordered; a Conanfile only moves forward.
type Stage int

const (
	// StageInit is the state of a fresh Conanfile, before any handler ran.
	StageInit Stage = iota
	StageExportSources
	StageConfigOptions
	StageConfigure
	StageLayout
	StageRequirements
	StageBuildRequirements
	StageValidate
	StagePackageID
	StageCompatibility
	StageValidateBuild
	StageSource
	StageGenerate
	StageBuild
	StagePackage
	StagePackageInfo
	// StageFrozen is reached after package_info returned.
	StageFrozen
)

var stageNames = map[Stage]string{
	StageInit:              "init",
	StageExportSources:     "export_sources",
	StageConfigOptions:     "config_options",
	StageConfigure:         "configure",
	StageLayout:            "layout",
	StageRequirements:      "requirements",
	StageBuildRequirements: "build_requirements",
	StageValidate:          "validate",
	StagePackageID:         "package_id",
	StageCompatibility:     "compatibility",
	StageValidateBuild:     "validate_build",
	StageSource:            "source",
	StageGenerate:          "generate",
	StageBuild:             "build",
	StagePackage:           "package",
	StagePackageInfo:       "package_info",
	StageFrozen:            "frozen",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage returns the stage with the given name.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return StageInit, fmt.Errorf("unknown stage '%s'", name)
}

// producerOnly returns whether the stage only runs when a binary is built.
func (s Stage) producerOnly() bool {
	switch s {
	case StageValidateBuild, StageSource, StageGenerate, StageBuild, StagePackage:
		return true
	}
	return false
}
