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
	"bytes"
	"os"
	"path/filepath"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

// DefaultRecipeFolder is the folder new versions are mapped to.
const DefaultRecipeFolder = "all"

// NewRecipeVersion registers a version of a recipe in the index at root.
// It creates recipes/<name>/config.yml and the conandata.yml of the
// recipe folder if they don't exist yet.
//
// Returns an error with code AlreadyExists if the version is already known.
func NewRecipeVersion(root string, name string, version string, source SourceEntry, ui UI) error {
	if !IsValidName(name) {
		return ui.ReportError("Invalid recipe name '%s'", name)
	}
	if version == "" || IsVersionRange(version) {
		return ui.ReportError("Invalid version '%s'", version)
	}
	if err := source.validate("sources." + version); err != nil {
		return ui.ReportError("Invalid source: %v", err)
	}

	dir := filepath.Join(root, RecipesDir, name)
	configPath := filepath.Join(dir, ConfigFileName)
	vf := &VersionsFile{path: configPath, Versions: map[string]VersionEntry{}}
	exists, err := isFile(configPath)
	if err != nil {
		return err
	}
	if exists {
		if vf, err = ReadVersionsFile(configPath, ui); err != nil {
			return err
		}
		if _, ok := vf.Versions[version]; ok {
			return status.Errorf(codes.AlreadyExists, "Recipe '%s' already has version '%s'", name, version)
		}
	}

	folder := filepath.Join(dir, DefaultRecipeFolder)
	if err := os.MkdirAll(filepath.Join(folder, "patches"), 0755); err != nil {
		return err
	}
	if err := addConanDataSource(filepath.Join(folder, ConanDataFileName), version, source); err != nil {
		return err
	}
	vf.Versions[version] = VersionEntry{Folder: DefaultRecipeFolder}
	if err := vf.WriteToFile(); err != nil {
		return err
	}
	ui.ReportInfo("Added '%s/%s' to '%s'", name, version, root)
	return nil
}

// addConanDataSource adds the source entry of version to the file at path.
// The other entries and their order are kept.
func addConanDataSource(path string, version string, source SourceEntry) error {
	doc := &yaml.Node{}
	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(bytes.TrimSpace(b)) > 0 {
		if err := yaml.Unmarshal(b, doc); err != nil {
			return WrapFrameworkError(err, "failed to parse %s", path)
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return NewFrameworkError("%s: expected a mapping", path)
	}
	sources := mappingValue(root, "sources")
	if sources.Kind != yaml.MappingNode {
		return NewFrameworkError("%s: 'sources' must be a mapping", path)
	}
	for i := 0; i+1 < len(sources.Content); i += 2 {
		if sources.Content[i].Value == version {
			return status.Errorf(codes.AlreadyExists, "%s already has sources for version '%s'", path, version)
		}
	}
	sources.Style = 0
	entry := &yaml.Node{}
	if err := entry.Encode(&source); err != nil {
		return err
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Value: version, Style: yaml.DoubleQuotedStyle}
	sources.Content = append(sources.Content, key, entry)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// mappingValue returns the value of key in the mapping node, adding an
// empty mapping if the key is missing.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	value := &yaml.Node{Kind: yaml.MappingNode}
	mapping.Content = append(mapping.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	return value
}
