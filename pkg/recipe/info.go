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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// InfoValues is one section of the identity vector.
// The package_id stage may delete entries and replace the value of
// existing entries, but never add new ones.
type InfoValues struct {
	section string
	values  map[string]string
	guard   func(op string) error
}

func newInfoValues(section string, values map[string]string) *InfoValues {
	result := &InfoValues{section: section, values: map[string]string{}}
	for k, v := range values {
		result.values[k] = v
	}
	return result
}

func (iv *InfoValues) check(op string) error {
	if iv.guard == nil {
		return nil
	}
	return iv.guard(op)
}

// Get returns the value of the key.
func (iv *InfoValues) Get(key string) string {
	return iv.values[key]
}

// Has returns whether the key is part of the identity.
func (iv *InfoValues) Has(key string) bool {
	_, ok := iv.values[key]
	return ok
}

// Delete removes the key and its sub-keys from the identity.
func (iv *InfoValues) Delete(key string) error {
	if err := iv.check("delete " + iv.section + " " + key); err != nil {
		return err
	}
	for k := range iv.values {
		if k == key || strings.HasPrefix(k, key+".") {
			delete(iv.values, k)
		}
	}
	return nil
}

// Set replaces the value of an existing key.
// Collapsing several values into one, like "armv8|x86_64", is the main
// use case.
func (iv *InfoValues) Set(key string, value string) error {
	if err := iv.check("set " + iv.section + " " + key); err != nil {
		return err
	}
	if _, ok := iv.values[key]; !ok {
		return NewFrameworkError("can't add '%s' to the %s of the package id", key, iv.section)
	}
	iv.values[key] = value
	return nil
}

// Clear removes all entries.
func (iv *InfoValues) Clear() error {
	if err := iv.check("clear " + iv.section); err != nil {
		return err
	}
	iv.values = map[string]string{}
	return nil
}

// Keys returns all keys, sorted.
func (iv *InfoValues) Keys() []string {
	keys := []string{}
	for k := range iv.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the section.
func (iv *InfoValues) Values() map[string]string {
	result := map[string]string{}
	for k, v := range iv.values {
		result[k] = v
	}
	return result
}

func (iv *InfoValues) copy() *InfoValues {
	return newInfoValues(iv.section, iv.values)
}

// Info is the identity vector of a binary.
type Info struct {
	Settings *InfoValues
	Options  *InfoValues
	// Requires maps the names of the identity relevant requirements to the
	// version text recorded for them.
	Requires *InfoValues
	// Invalid is set when validate rejected the configuration.
	Invalid error
}

func newInfo(settings map[string]string, options map[string]string, requires map[string]string) *Info {
	return &Info{
		Settings: newInfoValues("settings", settings),
		Options:  newInfoValues("options", options),
		Requires: newInfoValues("requires", requires),
	}
}

func (i *Info) setGuard(guard func(op string) error) {
	i.Settings.guard = guard
	i.Options.guard = guard
	i.Requires.guard = guard
}

// Clear removes settings, options and requirements from the identity.
func (i *Info) Clear() error {
	if err := i.Settings.Clear(); err != nil {
		return err
	}
	if err := i.Options.Clear(); err != nil {
		return err
	}
	return i.Requires.Clear()
}

// Copy returns an unguarded copy.
func (i *Info) Copy() *Info {
	return &Info{
		Settings: i.Settings.copy(),
		Options:  i.Options.copy(),
		Requires: i.Requires.copy(),
		Invalid:  i.Invalid,
	}
}

// Text returns the canonical textual form of the identity.
func (i *Info) Text() string {
	sb := strings.Builder{}
	write := func(iv *InfoValues) {
		if len(iv.values) == 0 {
			return
		}
		fmt.Fprintf(&sb, "[%s]\n", iv.section)
		for _, k := range iv.Keys() {
			if iv.section == "requires" {
				fmt.Fprintf(&sb, "%s\n", iv.values[k])
			} else {
				fmt.Fprintf(&sb, "%s=%s\n", k, iv.values[k])
			}
		}
	}
	write(i.Settings)
	write(i.Options)
	write(i.Requires)
	return sb.String()
}

// PackageID hashes the identity.
func (i *Info) PackageID() string {
	sum := sha1.Sum([]byte(i.Text()))
	return hex.EncodeToString(sum[:])
}
