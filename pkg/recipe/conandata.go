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
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// URLList is a list of mirrors. In YAML it is either a single string or a
// list of strings.
type URLList []string

func (l *URLList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = URLList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	return fmt.Errorf("line %d: url must be a string or a list of strings", node.Line)
}

func (l URLList) MarshalYAML() (interface{}, error) {
	if len(l) == 1 {
		return l[0], nil
	}
	return []string(l), nil
}

// SourceEntry is the description of one archive.
type SourceEntry struct {
	URLs   URLList `yaml:"url"`
	SHA256 string  `yaml:"sha256"`
	// StripRoot is a pointer, so that recipes can tell an explicit false
	// apart from a missing entry.
	StripRoot   *bool  `yaml:"strip_root,omitempty"`
	Destination string `yaml:"destination,omitempty"`
	Filename    string `yaml:"filename,omitempty"`
	// SignatureURL points to an armored detached OpenPGP signature.
	SignatureURL string `yaml:"sig_url,omitempty"`
}

// StripRootOr returns the strip_root flag, or def if it isn't given.
func (e *SourceEntry) StripRootOr(def bool) bool {
	if e.StripRoot == nil {
		return def
	}
	return *e.StripRoot
}

var sha256Regexp = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func (e *SourceEntry) validate(where string) error {
	if len(e.URLs) == 0 {
		return fmt.Errorf("%s: missing url", where)
	}
	for _, u := range e.URLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("%s: empty url", where)
		}
	}
	if !sha256Regexp.MatchString(e.SHA256) {
		return fmt.Errorf("%s: invalid sha256 '%s'", where, e.SHA256)
	}
	return nil
}

// SourceNode is a node of the sources tree of a version.
// Versions with a single archive have an Entry. Others are keyed by
// platform or component (Children), or are lists (Items).
type SourceNode struct {
	Entry    *SourceEntry
	Children map[string]*SourceNode
	Items    []*SourceNode
}

func (n *SourceNode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			child := &SourceNode{}
			if err := child.UnmarshalYAML(item); err != nil {
				return err
			}
			n.Items = append(n.Items, child)
		}
		return nil
	case yaml.MappingNode:
		if isSourceEntry(node) {
			n.Entry = &SourceEntry{}
			return node.Decode(n.Entry)
		}
		n.Children = map[string]*SourceNode{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			child := &SourceNode{}
			if err := child.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			n.Children[node.Content[i].Value] = child
		}
		return nil
	}
	return fmt.Errorf("line %d: invalid source entry", node.Line)
}

func isSourceEntry(node *yaml.Node) bool {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "url" {
			return true
		}
	}
	return false
}

func (n *SourceNode) validate(where string) error {
	if n.Entry != nil {
		return n.Entry.validate(where)
	}
	for _, key := range n.Keys() {
		if err := n.Children[key].validate(where + "." + key); err != nil {
			return err
		}
	}
	for i, item := range n.Items {
		if err := item.validate(fmt.Sprintf("%s[%d]", where, i)); err != nil {
			return err
		}
	}
	if n.Entry == nil && len(n.Children) == 0 && len(n.Items) == 0 {
		return fmt.Errorf("%s: empty source entry", where)
	}
	return nil
}

// Keys returns the sorted keys of a keyed node.
func (n *SourceNode) Keys() []string {
	keys := []string{}
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup follows the keys. List items are addressed by their index.
func (n *SourceNode) Lookup(keys ...string) (*SourceNode, bool) {
	current := n
	for _, key := range keys {
		if current.Children != nil {
			next, ok := current.Children[key]
			if !ok {
				return nil, false
			}
			current = next
			continue
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(current.Items) {
			return nil, false
		}
		current = current.Items[idx]
	}
	return current, true
}

// Known patch types.
var patchTypes = map[string]bool{
	"official":      true,
	"vulnerability": true,
	"portability":   true,
	"conan":         true,
	"bugfix":        true,
	"backport":      true,
}

// PatchEntry describes one patch of a version.
type PatchEntry struct {
	PatchFile        string `yaml:"patch_file"`
	PatchDescription string `yaml:"patch_description"`
	PatchType        string `yaml:"patch_type,omitempty"`
	PatchSource      string `yaml:"patch_source,omitempty"`
	// PatchOS restricts the patch to one operating system.
	PatchOS string `yaml:"patch_os,omitempty"`
	// BaseFolder is relative to the source folder.
	BaseFolder string `yaml:"base_path,omitempty"`
}

func (p *PatchEntry) validate(where string) error {
	if p.PatchFile == "" {
		return fmt.Errorf("%s: missing patch_file", where)
	}
	if p.PatchDescription == "" {
		return fmt.Errorf("%s: missing patch_description for '%s'", where, p.PatchFile)
	}
	if p.PatchType != "" && !patchTypes[p.PatchType] {
		return fmt.Errorf("%s: unknown patch_type '%s'", where, p.PatchType)
	}
	return nil
}

// ConanData is the typed content of a recipe's conandata.yml.
type ConanData struct {
	path    string                  `yaml:"-"`
	Sources map[string]*SourceNode  `yaml:"sources"`
	Patches map[string][]PatchEntry `yaml:"patches,omitempty"`
	// Extra holds the remaining top-level sections, like "license" or
	// version maps of dependencies.
	Extra map[string]yaml.Node `yaml:",inline"`
}

// Parse decodes and validates the content.
func (d *ConanData) Parse(b []byte) error {
	if err := yaml.Unmarshal(b, d); err != nil {
		return WrapFrameworkError(err, "failed to parse %s", d.name())
	}
	if err := d.Validate(); err != nil {
		return WrapFrameworkError(err, "invalid %s", d.name())
	}
	return nil
}

// ParseString is Parse for strings.
func (d *ConanData) ParseString(str string) error {
	return d.Parse([]byte(str))
}

// ParseFile reads and parses the given file.
func (d *ConanData) ParseFile(filename string) error {
	d.path = filename
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return d.Parse(b)
}

func (d *ConanData) name() string {
	if d.path != "" {
		return d.path
	}
	return ConanDataFileName
}

// ReadConanData reads the conandata.yml at the given path.
// A missing file yields empty data.
func ReadConanData(path string) (*ConanData, error) {
	d := &ConanData{}
	if ok, err := isFile(path); err != nil {
		return nil, err
	} else if !ok {
		d.path = path
		return d, nil
	}
	if err := d.ParseFile(path); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the schema of all entries.
func (d *ConanData) Validate() error {
	versions := []string{}
	for v := range d.Sources {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if d.Sources[v] == nil {
			return fmt.Errorf("sources.%s: empty source entry", v)
		}
		if err := d.Sources[v].validate("sources." + v); err != nil {
			return err
		}
	}
	for v, patches := range d.Patches {
		for i := range patches {
			if err := patches[i].validate(fmt.Sprintf("patches.%s[%d]", v, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Source returns the archive of the version, following the keys through
// nested entries.
func (d *ConanData) Source(version string, keys ...string) (*SourceEntry, error) {
	node, ok := d.Sources[version]
	if !ok {
		return nil, NewFrameworkError("no sources for version '%s' in %s", version, d.name())
	}
	n, ok := node.Lookup(keys...)
	if !ok || n.Entry == nil {
		return nil, NewFrameworkError("no sources for '%s' in %s",
			strings.Join(append([]string{version}, keys...), "."), d.name())
	}
	return n.Entry, nil
}

// SourceNode returns the raw source tree of the version.
func (d *ConanData) SourceNode(version string) (*SourceNode, bool) {
	n, ok := d.Sources[version]
	return n, ok
}

// HasSource returns whether the nested entry exists.
func (d *ConanData) HasSource(version string, keys ...string) bool {
	_, err := d.Source(version, keys...)
	return err == nil
}

// PatchesFor returns the patches of the version that apply to the given
// operating system.
func (d *ConanData) PatchesFor(version string, os string) []PatchEntry {
	result := []PatchEntry{}
	for _, p := range d.Patches[version] {
		if p.PatchOS != "" && os != "" && p.PatchOS != os {
			continue
		}
		result = append(result, p)
	}
	return result
}

// String returns the scalar value of an extra section, optionally indexed
// by version: `vulkan_version: {"1.3.250": "1.3.250.0"}`.
func (d *ConanData) String(section string, keys ...string) (string, bool) {
	node, ok := d.Extra[section]
	if !ok {
		return "", false
	}
	current := &node
	for _, key := range keys {
		if current.Kind != yaml.MappingNode {
			return "", false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(current.Content); i += 2 {
			if current.Content[i].Value == key {
				next = current.Content[i+1]
				break
			}
		}
		if next == nil {
			return "", false
		}
		current = next
	}
	if current.Kind != yaml.ScalarNode {
		return "", false
	}
	return current.Value, true
}

// Decode decodes an extra section into out.
// ok is false when the section doesn't exist.
func (d *ConanData) Decode(section string, out interface{}) (ok bool, err error) {
	node, ok := d.Extra[section]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, WrapFrameworkError(err, "invalid section '%s' in %s", section, d.name())
	}
	return true, nil
}
