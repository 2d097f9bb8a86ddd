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

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// VersionEntry maps a version to the recipe folder implementing it.
type VersionEntry struct {
	Folder string `yaml:"folder"`
}

// VersionsFile is the content of a recipe's config.yml.
type VersionsFile struct {
	path     string                  `yaml:"-"`
	Versions map[string]VersionEntry `yaml:"versions"`
}

func (vf *VersionsFile) Parse(b []byte, ui UI) error {
	if err := yaml.Unmarshal(b, vf); err != nil {
		return ui.ReportError("Failed to parse %s: %v", vf.name(), err)
	}
	if err := vf.Validate(ui); err != nil {
		if !IsErrAlreadyReported(err) {
			return ui.ReportError("Failed to parse %s: %v", vf.name(), err)
		}
		return err
	}
	return nil
}

func (vf *VersionsFile) ParseString(str string, ui UI) error {
	return vf.Parse([]byte(str), ui)
}

func (vf *VersionsFile) name() string {
	if vf.path == "" {
		return ConfigFileName
	}
	return vf.path
}

func (vf *VersionsFile) Validate(ui UI) error {
	if len(vf.Versions) == 0 {
		return ui.ReportError("%s: no versions", vf.name())
	}
	for v, entry := range vf.Versions {
		if strings.TrimSpace(v) == "" || strings.ContainsAny(v, "/@[] ") {
			return ui.ReportError("%s: invalid version '%s'", vf.name(), v)
		}
		if entry.Folder == "" {
			return ui.ReportError("%s: missing folder for version '%s'", vf.name(), v)
		}
		if filepath.IsAbs(entry.Folder) || strings.Contains(entry.Folder, "..") {
			return ui.ReportError("%s: folder of version '%s' must be a sub-folder: '%s'", vf.name(), v, entry.Folder)
		}
	}
	return nil
}

func (vf *VersionsFile) ParseFile(filename string, ui UI) error {
	vf.path = filename
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return vf.Parse(b, ui)
}

// ReadVersionsFile reads the config.yml at the given path.
func ReadVersionsFile(path string, ui UI) (*VersionsFile, error) {
	vf := VersionsFile{}
	if err := vf.ParseFile(path, ui); err != nil {
		return nil, err
	}
	return &vf, nil
}

// List returns all versions, sorted from oldest to newest.
func (vf *VersionsFile) List() []string {
	result := []string{}
	for v := range vf.Versions {
		result = append(result, v)
	}
	SortVersions(result)
	return result
}

// Folder returns the recipe folder of the given version.
func (vf *VersionsFile) Folder(version string) (string, error) {
	entry, ok := vf.Versions[version]
	if !ok {
		return "", fmt.Errorf("version '%s' not listed in %s", version, vf.name())
	}
	return entry.Folder, nil
}

func (vf *VersionsFile) WriteYAML(writer io.Writer) error {
	return yaml.NewEncoder(writer).Encode(vf)
}

func (vf *VersionsFile) WriteToFile() (err error) {
	file, err := os.Create(vf.path)
	if err != nil {
		return err
	}
	defer func() {
		e := file.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	return vf.WriteYAML(file)
}
