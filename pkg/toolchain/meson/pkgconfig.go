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

package meson

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// PkgConfigDeps writes a .pc file per dependency and per component.
// Packages with components get a root file that requires all of them.
type PkgConfigDeps struct {
	c *recipe.Conanfile
	// BuildContextActivated lists build requirements whose files are
	// generated as well.
	BuildContextActivated []string

	overrides map[string]map[string]interface{}
}

// NewPkgConfigDeps creates the generator for the dependencies of c.
func NewPkgConfigDeps(c *recipe.Conanfile) *PkgConfigDeps {
	return &PkgConfigDeps{c: c, overrides: map[string]map[string]interface{}{}}
}

// SetProperty overrides a property the dependency published.
// dep is the name of the dependency, or "dep::component".
func (g *PkgConfigDeps) SetProperty(dep string, property string, value interface{}) {
	if g.overrides[dep] == nil {
		g.overrides[dep] = map[string]interface{}{}
	}
	g.overrides[dep][property] = value
}

func (g *PkgConfigDeps) property(dep *recipe.Dependency, comp *recipe.Component, name string) (interface{}, bool) {
	key := dep.Ref.Name
	if comp != nil && comp.Name != "" {
		key += "::" + comp.Name
	}
	if v, ok := g.overrides[key][name]; ok {
		return v, true
	}
	if comp == nil {
		comp = &dep.CppInfo.Component
	}
	return comp.Property(name)
}

func (g *PkgConfigDeps) stringProperty(dep *recipe.Dependency, comp *recipe.Component, name string) string {
	v, _ := g.property(dep, comp, name)
	s, _ := v.(string)
	return s
}

func (g *PkgConfigDeps) stringsProperty(dep *recipe.Dependency, comp *recipe.Component, name string) []string {
	v, _ := g.property(dep, comp, name)
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return []string{val}
	}
	return nil
}

// Name returns the pkg-config name of the dependency.
func (g *PkgConfigDeps) Name(dep *recipe.Dependency) string {
	if name := g.stringProperty(dep, nil, recipe.PropPkgConfigName); name != "" {
		return name
	}
	return dep.Ref.Name
}

func (g *PkgConfigDeps) componentName(dep *recipe.Dependency, comp *recipe.Component) string {
	if name := g.stringProperty(dep, comp, recipe.PropPkgConfigName); name != "" {
		return name
	}
	return dep.Ref.Name + "-" + comp.Name
}

func (g *PkgConfigDeps) resolveRequire(dep *recipe.Dependency, require string) string {
	if !strings.Contains(require, "::") {
		if dep.CppInfo.HasComponent(require) {
			return g.componentName(dep, dep.CppInfo.Components(require))
		}
		return dep.Ref.Name + "-" + require
	}
	parts := strings.SplitN(require, "::", 2)
	other, ok := g.c.Dependencies.Host(parts[0])
	if !ok || other.CppInfo == nil {
		return parts[0]
	}
	if other.CppInfo.HasComponent(parts[1]) {
		return g.componentName(other, other.CppInfo.Components(parts[1]))
	}
	return g.Name(other)
}

func (g *PkgConfigDeps) selected() []*recipe.Dependency {
	result := []*recipe.Dependency{}
	for _, dep := range g.c.Dependencies.HostList() {
		if dep.CppInfo != nil && (dep.Headers || dep.Libs) {
			result = append(result, dep)
		}
	}
	for _, name := range g.BuildContextActivated {
		if dep, ok := g.c.Dependencies.Build(name); ok && dep.CppInfo != nil {
			result = append(result, dep)
		}
	}
	return result
}

// pcFile is the content of a .pc file before rendering.
type pcFile struct {
	name        string
	description string
	version     string
	prefix      string
	variables   []string
	custom      string
	libs        []string
	cflags      []string
	requires    []string
}

func (f *pcFile) render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "prefix=%s\n", f.prefix)
	for _, v := range f.variables {
		sb.WriteString(v + "\n")
	}
	if f.custom != "" {
		sb.WriteString(strings.TrimRight(f.custom, "\n") + "\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Name: %s\n", f.name)
	fmt.Fprintf(&sb, "Description: %s\n", f.description)
	fmt.Fprintf(&sb, "Version: %s\n", f.version)
	if len(f.libs) > 0 {
		fmt.Fprintf(&sb, "Libs: %s\n", strings.Join(f.libs, " "))
	}
	if len(f.cflags) > 0 {
		fmt.Fprintf(&sb, "Cflags: %s\n", strings.Join(f.cflags, " "))
	}
	if len(f.requires) > 0 {
		fmt.Fprintf(&sb, "Requires: %s\n", strings.Join(f.requires, " "))
	}
	return sb.String()
}

// dirVariables declares a variable per directory, like libdir and
// libdir1, and returns the references to them.
func dirVariables(f *pcFile, packageFolder string, kind string, dirs []string) []string {
	refs := []string{}
	for i, dir := range dirs {
		name := kind
		if i > 0 {
			name = fmt.Sprintf("%s%d", kind, i)
		}
		value := filepath.ToSlash(dir)
		if !filepath.IsAbs(dir) {
			value = "${prefix}/" + value
		}
		f.variables = append(f.variables, name+"="+value)
		refs = append(refs, "${"+name+"}")
	}
	return refs
}

func (g *PkgConfigDeps) componentFile(dep *recipe.Dependency, comp *recipe.Component, name string) *pcFile {
	version := g.stringProperty(dep, comp, recipe.PropComponentVersion)
	if version == "" {
		version = dep.Ref.Version
	}
	f := &pcFile{
		name:        name,
		description: "Package " + dep.Ref.String(),
		version:     version,
		prefix:      filepath.ToSlash(dep.PackageFolder),
	}
	for _, ref := range dirVariables(f, dep.PackageFolder, "libdir", comp.LibDirs) {
		if len(comp.Libs) > 0 {
			f.libs = append(f.libs, "-L\""+ref+"\"")
		}
	}
	for _, ref := range dirVariables(f, dep.PackageFolder, "includedir", comp.IncludeDirs) {
		f.cflags = append(f.cflags, "-I\""+ref+"\"")
	}
	dirVariables(f, dep.PackageFolder, "bindir", comp.BinDirs)
	for _, ref := range dirVariables(f, dep.PackageFolder, "frameworkdir", comp.FrameworkDirs) {
		f.libs = append(f.libs, "-F\""+ref+"\"")
	}
	for _, lib := range append(append([]string{}, comp.Libs...), comp.SystemLibs...) {
		f.libs = append(f.libs, "-l"+lib)
	}
	for _, fw := range comp.Frameworks {
		f.libs = append(f.libs, "-framework "+fw)
	}
	f.libs = append(f.libs, comp.SharedLinkFlags...)
	f.libs = append(f.libs, comp.ExeLinkFlags...)
	for _, d := range comp.Defines {
		f.cflags = append(f.cflags, "-D"+d)
	}
	f.cflags = append(f.cflags, comp.CFlags...)
	f.cflags = append(f.cflags, comp.CxxFlags...)
	for _, r := range comp.Requires {
		f.requires = append(f.requires, g.resolveRequire(dep, r))
	}
	return f
}

func aliasFile(alias string, target string, version string) string {
	f := &pcFile{
		name:        alias,
		description: "Alias " + alias + " for " + target,
		version:     version,
		requires:    []string{target},
	}
	content := f.render()
	// Aliases don't define a prefix.
	return strings.TrimPrefix(content, "prefix=\n\n")
}

// Content returns the generated files by name.
func (g *PkgConfigDeps) Content() map[string]string {
	result := map[string]string{}
	for _, dep := range g.selected() {
		info := dep.CppInfo
		rootName := g.Name(dep)
		var root *pcFile
		if info.HasComponents() {
			root = &pcFile{
				name:        rootName,
				description: "Package " + dep.Ref.String(),
				version:     dep.Ref.Version,
				prefix:      filepath.ToSlash(dep.PackageFolder),
			}
			replaced := false
			names := []string{}
			for _, comp := range info.ComponentList() {
				name := g.componentName(dep, comp)
				file := g.componentFile(dep, comp, name)
				for _, alias := range g.stringsProperty(dep, comp, recipe.PropPkgConfigAliases) {
					result[alias+".pc"] = aliasFile(alias, name, file.version)
				}
				// A component named like the package replaces the root file.
				if name == rootName {
					root = file
					replaced = true
					continue
				}
				result[name+".pc"] = file.render()
				names = append(names, name)
			}
			if !replaced {
				root.requires = names
			}
		} else {
			root = g.componentFile(dep, &info.Component, rootName)
		}
		if v := g.stringProperty(dep, nil, recipe.PropSystemPackageVersion); v != "" {
			root.version = v
		}
		root.custom = g.stringProperty(dep, nil, recipe.PropPkgConfigCustomContent)
		result[rootName+".pc"] = root.render()
		for _, alias := range g.stringsProperty(dep, nil, recipe.PropPkgConfigAliases) {
			result[alias+".pc"] = aliasFile(alias, rootName, root.version)
		}
	}
	return result
}

// Generate writes the files into the generators folder.
func (g *PkgConfigDeps) Generate() error {
	files := g.Content()
	folder := g.c.GeneratorsFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(folder, name), []byte(files[name]), 0644); err != nil {
			return err
		}
	}
	return nil
}
