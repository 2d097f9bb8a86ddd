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

// Package cmake generates the toolchain and the dependency files consumed
// by CMake builds, and drives cmake itself.
package cmake

import (
	"sort"
	"strconv"
	"strings"
)

// Variables is an ordered set of typed CMake assignments.
// Values are string, bool, int or []string.
type Variables struct {
	names  []string
	values map[string]interface{}
}

// NewVariables creates an empty set.
func NewVariables() *Variables {
	return &Variables{values: map[string]interface{}{}}
}

// Set assigns the variable. A new variable is added at the end, an
// existing one keeps its position.
func (v *Variables) Set(name string, value interface{}) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	if list, ok := value.([]string); ok {
		value = append([]string{}, list...)
	}
	v.values[name] = value
}

// Get returns the value of the variable.
func (v *Variables) Get(name string) (interface{}, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Has returns whether the variable is set.
func (v *Variables) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Delete removes the variable.
func (v *Variables) Delete(name string) {
	if _, ok := v.values[name]; !ok {
		return
	}
	delete(v.values, name)
	for i, n := range v.names {
		if n == name {
			v.names = append(v.names[:i], v.names[i+1:]...)
			break
		}
	}
}

// Names returns the names in assignment order.
func (v *Variables) Names() []string {
	return append([]string{}, v.names...)
}

// SortedNames returns the names in lexical order.
func (v *Variables) SortedNames() []string {
	names := v.Names()
	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (v *Variables) Len() int {
	return len(v.names)
}

// String returns the value as CMake sees it on the command line.
func (v *Variables) String(name string) string {
	return formatValue(v.values[name])
}

func formatValue(value interface{}) string {
	switch val := value.(type) {
	case bool:
		if val {
			return "ON"
		}
		return "OFF"
	case int:
		return strconv.Itoa(val)
	case []string:
		return strings.Join(val, ";")
	case string:
		return val
	case nil:
		return ""
	}
	return ""
}

// quote renders a string as a quoted CMake argument.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// quoteArg renders the value of a set() call.
func quoteArg(value interface{}) string {
	switch value.(type) {
	case bool, int:
		return formatValue(value)
	}
	return quote(formatValue(value))
}
