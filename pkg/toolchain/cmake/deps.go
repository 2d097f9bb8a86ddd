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

package cmake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// Deps generates the CMake files that let find_package locate the
// dependencies: a config file (and version file) per dependency, and a
// find module when the find mode asks for one.
//
// Each dependency becomes an imported target, and each component its own
// target linked into the root one. Aliases are additional targets that
// link to the primary one.
type Deps struct {
	c *recipe.Conanfile
	// BuildContextActivated lists build requirements whose files are
	// generated as well, like protobuf for its protoc modules.
	BuildContextActivated []string

	overrides map[string]map[string]interface{}
}

// NewDeps creates the generator for the dependencies of c.
func NewDeps(c *recipe.Conanfile) *Deps {
	return &Deps{
		c:         c,
		overrides: map[string]map[string]interface{}{},
	}
}

// SetProperty overrides a property the dependency published.
// dep is the name of the dependency, or "dep::component" for a component.
func (d *Deps) SetProperty(dep string, property string, value interface{}) {
	if d.overrides[dep] == nil {
		d.overrides[dep] = map[string]interface{}{}
	}
	d.overrides[dep][property] = value
}

func (d *Deps) property(dep *recipe.Dependency, comp *recipe.Component, name string) (interface{}, bool) {
	key := dep.Ref.Name
	if comp != nil && comp.Name != "" {
		key += "::" + comp.Name
	}
	if v, ok := d.overrides[key][name]; ok {
		return v, true
	}
	if comp == nil {
		comp = &dep.CppInfo.Component
	}
	return comp.Property(name)
}

func (d *Deps) stringProperty(dep *recipe.Dependency, comp *recipe.Component, name string) string {
	v, ok := d.property(dep, comp, name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (d *Deps) stringsProperty(dep *recipe.Dependency, comp *recipe.Component, name string) []string {
	v, ok := d.property(dep, comp, name)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return []string{val}
	}
	return nil
}

// FileName returns the name find_package uses for the dependency.
func (d *Deps) FileName(dep *recipe.Dependency) string {
	if name := d.stringProperty(dep, nil, recipe.PropCMakeFileName); name != "" {
		return name
	}
	return dep.Ref.Name
}

// FindMode returns the cmake_find_mode of the dependency.
func (d *Deps) FindMode(dep *recipe.Dependency) string {
	if mode := d.stringProperty(dep, nil, recipe.PropCMakeFindMode); mode != "" {
		return mode
	}
	return recipe.FindModeConfig
}

// TargetName returns the primary target of the dependency.
func (d *Deps) TargetName(dep *recipe.Dependency) string {
	if name := d.stringProperty(dep, nil, recipe.PropCMakeTargetName); name != "" {
		return name
	}
	return dep.Ref.Name + "::" + dep.Ref.Name
}

func (d *Deps) componentTarget(dep *recipe.Dependency, comp *recipe.Component) string {
	if name := d.stringProperty(dep, comp, recipe.PropCMakeTargetName); name != "" {
		return name
	}
	return dep.Ref.Name + "::" + comp.Name
}

// resolveRequire returns the target of a component requirement.
func (d *Deps) resolveRequire(dep *recipe.Dependency, require string) string {
	if !strings.Contains(require, "::") {
		if dep.CppInfo.HasComponent(require) {
			return d.componentTarget(dep, dep.CppInfo.Components(require))
		}
		return dep.Ref.Name + "::" + require
	}
	parts := strings.SplitN(require, "::", 2)
	other, ok := d.c.Dependencies.Host(parts[0])
	if !ok || other.CppInfo == nil {
		return require
	}
	if other.CppInfo.HasComponent(parts[1]) {
		return d.componentTarget(other, other.CppInfo.Components(parts[1]))
	}
	return d.TargetName(other)
}

func (d *Deps) selected() []*recipe.Dependency {
	result := []*recipe.Dependency{}
	for _, dep := range d.c.Dependencies.HostList() {
		if dep.CppInfo == nil || !(dep.Headers || dep.Libs) {
			continue
		}
		result = append(result, dep)
	}
	for _, name := range d.BuildContextActivated {
		if dep, ok := d.c.Dependencies.Build(name); ok && dep.CppInfo != nil {
			result = append(result, dep)
		}
	}
	return result
}

func configFileNames(fileName string) (string, string) {
	if fileName == strings.ToLower(fileName) {
		return fileName + "-config.cmake", fileName + "-config-version.cmake"
	}
	return fileName + "Config.cmake", fileName + "ConfigVersion.cmake"
}

// Content returns the generated files by name.
func (d *Deps) Content() (map[string]string, error) {
	result := map[string]string{}
	for _, dep := range d.selected() {
		mode := d.FindMode(dep)
		switch mode {
		case recipe.FindModeNone:
			continue
		case recipe.FindModeConfig, recipe.FindModeModule, recipe.FindModeBoth:
		default:
			return nil, recipe.NewFrameworkError("%s: unknown %s '%s'", dep.Ref, recipe.PropCMakeFindMode, mode)
		}
		fileName := d.FileName(dep)
		if mode == recipe.FindModeConfig || mode == recipe.FindModeBoth {
			config, version := configFileNames(fileName)
			result[config] = d.render(dep, fileName, d.TargetName(dep))
			result[version] = d.renderVersion(dep)
		}
		if mode == recipe.FindModeModule || mode == recipe.FindModeBoth {
			moduleName := d.stringProperty(dep, nil, recipe.PropCMakeModuleFileName)
			if moduleName == "" {
				moduleName = fileName
			}
			target := d.stringProperty(dep, nil, recipe.PropCMakeModuleTargetName)
			if target == "" {
				target = d.TargetName(dep)
			}
			result["Find"+moduleName+".cmake"] = d.render(dep, moduleName, target)
		}
	}
	return result, nil
}

// Generate writes the files into the generators folder.
func (d *Deps) Generate() error {
	files, err := d.Content()
	if err != nil {
		return err
	}
	folder := d.c.GeneratorsFolder()
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

func (d *Deps) version(dep *recipe.Dependency) string {
	if v := d.stringProperty(dep, nil, recipe.PropSystemPackageVersion); v != "" {
		return v
	}
	return dep.Ref.Version
}

func (d *Deps) renderVersion(dep *recipe.Dependency) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "set(PACKAGE_VERSION %s)\n", quote(d.version(dep)))
	sb.WriteString(`if(PACKAGE_FIND_VERSION VERSION_GREATER PACKAGE_VERSION)
  set(PACKAGE_VERSION_COMPATIBLE FALSE)
else()
  set(PACKAGE_VERSION_COMPATIBLE TRUE)
  if(PACKAGE_FIND_VERSION STREQUAL PACKAGE_VERSION)
    set(PACKAGE_VERSION_EXACT TRUE)
  endif()
endif()
`)
	return sb.String()
}

func quoteList(values []string) string {
	return quote(strings.Join(values, ";"))
}

func dirs(dep *recipe.Dependency, list []string) []string {
	result := []string{}
	for _, dir := range list {
		result = append(result, absDir(dep.PackageFolder, dir))
	}
	return result
}

func setTargetProperty(sb *strings.Builder, target string, property string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(sb, "set_property(TARGET %s PROPERTY %s %s)\n", target, property, quoteList(values))
}

func addTarget(sb *strings.Builder, target string) {
	fmt.Fprintf(sb, "if(NOT TARGET %s)\n  add_library(%s INTERFACE IMPORTED)\nendif()\n", target, target)
}

func addAliases(sb *strings.Builder, target string, aliases []string) {
	for _, alias := range aliases {
		if alias == target {
			continue
		}
		fmt.Fprintf(sb, "if(NOT TARGET %s)\n  add_library(%s INTERFACE IMPORTED)\n", alias, alias)
		fmt.Fprintf(sb, "  set_property(TARGET %s PROPERTY INTERFACE_LINK_LIBRARIES %s)\nendif()\n", alias, target)
	}
}

// linkItems returns what a target links: its libraries, system libraries,
// frameworks and required targets.
func (d *Deps) linkItems(dep *recipe.Dependency, comp *recipe.Component) []string {
	result := append([]string{}, comp.Libs...)
	result = append(result, comp.SystemLibs...)
	for _, f := range comp.Frameworks {
		result = append(result, "-framework "+f)
	}
	for _, r := range comp.Requires {
		result = append(result, d.resolveRequire(dep, r))
	}
	return result
}

func compileOptions(comp *recipe.Component) []string {
	result := []string{}
	for _, f := range comp.CFlags {
		result = append(result, "$<$<COMPILE_LANGUAGE:C>:"+f+">")
	}
	for _, f := range comp.CxxFlags {
		result = append(result, "$<$<COMPILE_LANGUAGE:CXX>:"+f+">")
	}
	return result
}

func linkOptions(comp *recipe.Component) []string {
	result := []string{}
	for _, f := range comp.SharedLinkFlags {
		result = append(result, "$<$<STREQUAL:$<TARGET_PROPERTY:TYPE>,SHARED_LIBRARY>:"+f+">")
		result = append(result, "$<$<STREQUAL:$<TARGET_PROPERTY:TYPE>,MODULE_LIBRARY>:"+f+">")
	}
	for _, f := range comp.ExeLinkFlags {
		result = append(result, "$<$<STREQUAL:$<TARGET_PROPERTY:TYPE>,EXECUTABLE>:"+f+">")
	}
	return result
}

func (d *Deps) renderTarget(sb *strings.Builder, dep *recipe.Dependency, comp *recipe.Component, target string, extraLinks []string) {
	addTarget(sb, target)
	setTargetProperty(sb, target, "INTERFACE_INCLUDE_DIRECTORIES", dirs(dep, comp.IncludeDirs))
	if len(comp.Libs) > 0 {
		setTargetProperty(sb, target, "INTERFACE_LINK_DIRECTORIES", dirs(dep, comp.LibDirs))
	}
	setTargetProperty(sb, target, "INTERFACE_LINK_LIBRARIES", append(d.linkItems(dep, comp), extraLinks...))
	setTargetProperty(sb, target, "INTERFACE_COMPILE_DEFINITIONS", comp.Defines)
	setTargetProperty(sb, target, "INTERFACE_COMPILE_OPTIONS", compileOptions(comp))
	setTargetProperty(sb, target, "INTERFACE_LINK_OPTIONS", linkOptions(comp))
}

// render produces the config file or find module of the dependency.
// prefix is the name find_package was called with.
func (d *Deps) render(dep *recipe.Dependency, prefix string, target string) string {
	info := dep.CppInfo
	root := &info.Component
	aggregated := info.Aggregated()
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Generated by trecipe for %s. Do not edit.\n", dep.Ref)
	fmt.Fprintf(&sb, "set(%s_FOUND 1)\n", prefix)
	fmt.Fprintf(&sb, "set(%s_VERSION %s)\n", prefix, quote(d.version(dep)))
	fmt.Fprintf(&sb, "set(%s_PACKAGE_FOLDER %s)\n", prefix, quote(filepath.ToSlash(dep.PackageFolder)))
	fmt.Fprintf(&sb, "set(%s_INCLUDE_DIRS %s)\n", prefix, quoteList(dirs(dep, aggregated.IncludeDirs)))
	fmt.Fprintf(&sb, "set(%s_LIB_DIRS %s)\n", prefix, quoteList(dirs(dep, aggregated.LibDirs)))
	defines := []string{}
	for _, def := range aggregated.Defines {
		defines = append(defines, "-D"+def)
	}
	fmt.Fprintf(&sb, "set(%s_DEFINITIONS %s)\n", prefix, quoteList(defines))
	fmt.Fprintf(&sb, "set(%s_LIBRARIES %s)\n", prefix, target)

	if info.HasComponents() {
		componentTargets := []string{}
		for _, comp := range info.ComponentList() {
			compTarget := d.componentTarget(dep, comp)
			componentTargets = append(componentTargets, compTarget)
			sb.WriteString("\n")
			d.renderTarget(&sb, dep, comp, compTarget, nil)
			addAliases(&sb, compTarget, d.stringsProperty(dep, comp, recipe.PropCMakeTargetAliases))
		}
		sb.WriteString("\n")
		addTarget(&sb, target)
		setTargetProperty(&sb, target, "INTERFACE_LINK_LIBRARIES", componentTargets)
	} else {
		sb.WriteString("\n")
		d.renderTarget(&sb, dep, root, target, nil)
	}
	addAliases(&sb, target, d.stringsProperty(dep, nil, recipe.PropCMakeTargetAliases))

	for _, extra := range d.stringsProperty(dep, nil, recipe.PropCMakeAdditionalVariablePrefixes) {
		sb.WriteString("\n")
		for _, suffix := range []string{"FOUND", "VERSION", "INCLUDE_DIRS", "LIB_DIRS", "DEFINITIONS", "LIBRARIES"} {
			fmt.Fprintf(&sb, "set(%s_%s ${%s_%s})\n", extra, suffix, prefix, suffix)
		}
	}

	modules := d.stringsProperty(dep, nil, recipe.PropCMakeBuildModules)
	if len(modules) > 0 {
		sb.WriteString("\n")
		for _, m := range modules {
			fmt.Fprintf(&sb, "include(%s)\n", quote(absDir(dep.PackageFolder, m)))
		}
	}
	return sb.String()
}
