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
	"reflect"
	"sort"
	"strings"
)

// Known cpp_info properties.
const (
	PropCMakeFileName                   = "cmake_file_name"
	PropCMakeTargetName                 = "cmake_target_name"
	PropCMakeTargetAliases              = "cmake_target_aliases"
	PropCMakeFindMode                   = "cmake_find_mode"
	PropCMakeBuildModules               = "cmake_build_modules"
	PropCMakeAdditionalVariablePrefixes = "cmake_additional_variables_prefixes"
	PropCMakeModuleFileName             = "cmake_module_file_name"
	PropCMakeModuleTargetName           = "cmake_module_target_name"
	PropPkgConfigName                   = "pkg_config_name"
	PropPkgConfigAliases                = "pkg_config_aliases"
	PropPkgConfigCustomContent          = "pkg_config_custom_content"
	PropNoSoname                        = "nosoname"
	PropComponentVersion                = "component_version"
	PropSystemPackageVersion            = "system_package_version"
)

var knownProperties = map[string]bool{
	PropCMakeFileName:                   true,
	PropCMakeTargetName:                 true,
	PropCMakeTargetAliases:              true,
	PropCMakeFindMode:                   true,
	PropCMakeBuildModules:               true,
	PropCMakeAdditionalVariablePrefixes: true,
	PropCMakeModuleFileName:             true,
	PropCMakeModuleTargetName:           true,
	PropPkgConfigName:                   true,
	PropPkgConfigAliases:                true,
	PropPkgConfigCustomContent:          true,
	PropNoSoname:                        true,
	PropComponentVersion:                true,
	PropSystemPackageVersion:            true,
}

// Values of the cmake_find_mode property.
const (
	FindModeConfig = "config"
	FindModeModule = "module"
	FindModeBoth   = "both"
	FindModeNone   = "none"
)

// Component is a sub-unit of a package.
// The root CppInfo is a component as well.
type Component struct {
	Name            string
	Libs            []string
	SystemLibs      []string
	Frameworks      []string
	IncludeDirs     []string
	LibDirs         []string
	BinDirs         []string
	ResDirs         []string
	FrameworkDirs   []string
	BuildDirs       []string
	Defines         []string
	CFlags          []string
	CxxFlags        []string
	SharedLinkFlags []string
	ExeLinkFlags    []string
	// Requires are "comp" for components of the same package, and
	// "pkg::comp" for components of other packages.
	Requires   []string
	properties map[string]interface{}
}

func newComponent(name string) *Component {
	return &Component{
		Name:        name,
		IncludeDirs: []string{"include"},
		LibDirs:     []string{"lib"},
		BinDirs:     []string{"bin"},
		properties:  map[string]interface{}{},
	}
}

// SetProperty sets a generator property.
// Values are string, bool or []string. Unknown names are reported when the
// cpp_info is validated.
func (c *Component) SetProperty(name string, value interface{}) {
	if c.properties == nil {
		c.properties = map[string]interface{}{}
	}
	switch v := value.(type) {
	case []string:
		c.properties[name] = append([]string{}, v...)
	default:
		c.properties[name] = value
	}
}

// Property returns the raw value of a property.
func (c *Component) Property(name string) (interface{}, bool) {
	v, ok := c.properties[name]
	return v, ok
}

// StringProperty returns a string property or "".
func (c *Component) StringProperty(name string) string {
	v, ok := c.properties[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// StringsProperty returns a list property. Single strings are returned as
// a list with one element.
func (c *Component) StringsProperty(name string) []string {
	v, ok := c.properties[name]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case string:
		return []string{val}
	}
	return nil
}

// BoolProperty returns a bool property.
func (c *Component) BoolProperty(name string) bool {
	v, ok := c.properties[name]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// PropertyNames returns the names of all set properties, sorted.
func (c *Component) PropertyNames() []string {
	names := []string{}
	for k := range c.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c *Component) validate(owner string) []string {
	errs := []string{}
	for _, name := range c.PropertyNames() {
		value := c.properties[name]
		if !knownProperties[name] {
			errs = append(errs, fmt.Sprintf("%s: unknown property '%s'", owner, name))
			continue
		}
		switch name {
		case PropCMakeFindMode:
			s, _ := value.(string)
			if s != FindModeConfig && s != FindModeModule && s != FindModeBoth && s != FindModeNone {
				errs = append(errs, fmt.Sprintf("%s: invalid cmake_find_mode '%v'", owner, value))
			}
		case PropNoSoname:
			if _, ok := value.(bool); !ok {
				errs = append(errs, fmt.Sprintf("%s: property 'nosoname' must be a bool", owner))
			}
		case PropCMakeTargetAliases, PropPkgConfigAliases, PropCMakeBuildModules, PropCMakeAdditionalVariablePrefixes:
			if _, ok := value.([]string); !ok {
				errs = append(errs, fmt.Sprintf("%s: property '%s' must be a list", owner, name))
			}
		}
	}
	for _, r := range c.Requires {
		if r == "" || strings.HasPrefix(r, "::") || strings.HasSuffix(r, "::") {
			errs = append(errs, fmt.Sprintf("%s: invalid requires '%s'", owner, r))
		}
	}
	return errs
}

func (c *Component) clone() *Component {
	result := *c
	cp := func(s []string) []string {
		if s == nil {
			return nil
		}
		return append([]string{}, s...)
	}
	result.Libs = cp(c.Libs)
	result.SystemLibs = cp(c.SystemLibs)
	result.Frameworks = cp(c.Frameworks)
	result.IncludeDirs = cp(c.IncludeDirs)
	result.LibDirs = cp(c.LibDirs)
	result.BinDirs = cp(c.BinDirs)
	result.ResDirs = cp(c.ResDirs)
	result.FrameworkDirs = cp(c.FrameworkDirs)
	result.BuildDirs = cp(c.BuildDirs)
	result.Defines = cp(c.Defines)
	result.CFlags = cp(c.CFlags)
	result.CxxFlags = cp(c.CxxFlags)
	result.SharedLinkFlags = cp(c.SharedLinkFlags)
	result.ExeLinkFlags = cp(c.ExeLinkFlags)
	result.Requires = cp(c.Requires)
	result.properties = map[string]interface{}{}
	for k, v := range c.properties {
		if list, ok := v.([]string); ok {
			result.properties[k] = cp(list)
		} else {
			result.properties[k] = v
		}
	}
	return &result
}

// CppInfo is the consumer facing metadata of a package.
// The embedded Component is the root; named components are kept in
// declaration order.
type CppInfo struct {
	Component
	components []*Component
}

// NewCppInfo creates a cpp_info with default directories.
func NewCppInfo() *CppInfo {
	return &CppInfo{Component: *newComponent("")}
}

// Components returns the named component, creating it on first access.
func (ci *CppInfo) Components(name string) *Component {
	for _, c := range ci.components {
		if c.Name == name {
			return c
		}
	}
	c := newComponent(name)
	ci.components = append(ci.components, c)
	return c
}

// HasComponent returns whether the component exists.
func (ci *CppInfo) HasComponent(name string) bool {
	for _, c := range ci.components {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ComponentList returns all named components in declaration order.
func (ci *CppInfo) ComponentList() []*Component {
	return append([]*Component{}, ci.components...)
}

// ComponentNames returns the names of all components in declaration order.
func (ci *CppInfo) ComponentNames() []string {
	names := []string{}
	for _, c := range ci.components {
		names = append(names, c.Name)
	}
	return names
}

// HasComponents returns whether the package publishes named components.
func (ci *CppInfo) HasComponents() bool {
	return len(ci.components) > 0
}

// AllLibs returns the libraries of the root and all components.
func (ci *CppInfo) AllLibs() []string {
	result := append([]string{}, ci.Libs...)
	for _, c := range ci.components {
		result = append(result, c.Libs...)
	}
	return result
}

// Units returns the root, when it is the only unit, or all components.
func (ci *CppInfo) Units() []*Component {
	if !ci.HasComponents() {
		return []*Component{&ci.Component}
	}
	return ci.ComponentList()
}

// Validate checks the properties and requires of all components.
func (ci *CppInfo) Validate() error {
	errs := ci.Component.validate("cpp_info")
	for _, c := range ci.components {
		errs = append(errs, c.validate("component "+c.Name)...)
		for _, r := range c.Requires {
			if !strings.Contains(r, "::") && !ci.HasComponent(r) {
				errs = append(errs, fmt.Sprintf("component %s: requires unknown component '%s'", c.Name, r))
			}
		}
	}
	if len(errs) > 0 {
		return NewFrameworkError("invalid cpp_info: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Clone returns a deep copy.
func (ci *CppInfo) Clone() *CppInfo {
	result := &CppInfo{Component: *ci.Component.clone()}
	for _, c := range ci.components {
		result.components = append(result.components, c.clone())
	}
	return result
}

// Equal returns whether both infos are identical.
func (ci *CppInfo) Equal(other *CppInfo) bool {
	return reflect.DeepEqual(ci, other)
}

// Aggregated merges all components into a single one, following the
// declaration order. Used by generators that have no notion of components.
func (ci *CppInfo) Aggregated() *Component {
	if !ci.HasComponents() {
		return ci.Component.clone()
	}
	result := &Component{properties: map[string]interface{}{}}
	seen := map[string]map[string]bool{}
	add := func(field string, dst *[]string, values []string) {
		if seen[field] == nil {
			seen[field] = map[string]bool{}
		}
		for _, v := range values {
			if !seen[field][v] {
				seen[field][v] = true
				*dst = append(*dst, v)
			}
		}
	}
	for _, c := range ci.components {
		add("libs", &result.Libs, c.Libs)
		add("system_libs", &result.SystemLibs, c.SystemLibs)
		add("frameworks", &result.Frameworks, c.Frameworks)
		add("includedirs", &result.IncludeDirs, c.IncludeDirs)
		add("libdirs", &result.LibDirs, c.LibDirs)
		add("bindirs", &result.BinDirs, c.BinDirs)
		add("resdirs", &result.ResDirs, c.ResDirs)
		add("frameworkdirs", &result.FrameworkDirs, c.FrameworkDirs)
		add("builddirs", &result.BuildDirs, c.BuildDirs)
		add("defines", &result.Defines, c.Defines)
		add("cflags", &result.CFlags, c.CFlags)
		add("cxxflags", &result.CxxFlags, c.CxxFlags)
		add("sharedlinkflags", &result.SharedLinkFlags, c.SharedLinkFlags)
		add("exelinkflags", &result.ExeLinkFlags, c.ExeLinkFlags)
		for _, r := range c.Requires {
			if strings.Contains(r, "::") {
				add("requires", &result.Requires, []string{r})
			}
		}
	}
	for k, v := range ci.properties {
		result.properties[k] = v
	}
	return result
}
