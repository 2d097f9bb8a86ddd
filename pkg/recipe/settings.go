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
	"sort"
	"strings"
)

// Settings is a flat view of the settings a recipe consumes.
// Sub-settings use dotted keys: "compiler.cppstd", "cuda.version".
type Settings struct {
	values map[string]string
	guard  func(op string) error
}

// NewSettings creates settings with the given values.
func NewSettings(values map[string]string) *Settings {
	result := &Settings{values: map[string]string{}}
	for k, v := range values {
		result.values[k] = v
	}
	return result
}

// restrict creates a copy of the settings that only contains the declared
// top-level settings and their sub-settings.
func (s *Settings) restrict(declared []string) *Settings {
	result := &Settings{values: map[string]string{}}
	for k, v := range s.values {
		top := strings.SplitN(k, ".", 2)[0]
		for _, d := range declared {
			if d == top {
				result.values[k] = v
				break
			}
		}
	}
	return result
}

// Get returns the value of the setting or "" if it isn't set.
func (s *Settings) Get(key string) string {
	if s == nil {
		return ""
	}
	return s.values[key]
}

// GetSafe returns the value of the setting or the given default.
func (s *Settings) GetSafe(key string, def string) string {
	if s == nil {
		return def
	}
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Has returns whether the setting has a value.
func (s *Settings) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// Is returns whether the setting equals one of the given values.
func (s *Settings) Is(key string, values ...string) bool {
	v, ok := s.values[key]
	if !ok {
		return false
	}
	for _, candidate := range values {
		if v == candidate {
			return true
		}
	}
	return false
}

// Delete removes the setting and all its sub-settings.
// Deleting is only allowed during config_options and configure.
func (s *Settings) Delete(key string) error {
	if s.guard != nil {
		if err := s.guard("delete setting " + key); err != nil {
			return err
		}
	}
	for k := range s.values {
		if k == key || strings.HasPrefix(k, key+".") {
			delete(s.values, k)
		}
	}
	return nil
}

// Keys returns all keys, sorted.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of all settings.
func (s *Settings) Values() map[string]string {
	result := map[string]string{}
	for k, v := range s.values {
		result[k] = v
	}
	return result
}

// Copy returns an unguarded copy.
func (s *Settings) Copy() *Settings {
	return NewSettings(s.values)
}

func (s *Settings) String() string {
	parts := []string{}
	for _, k := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, s.values[k]))
	}
	return strings.Join(parts, " ")
}

// Common setting values.
const (
	OSWindows = "Windows"
	OSLinux   = "Linux"
	OSMacos   = "Macos"
	OSFreeBSD = "FreeBSD"
	OSAndroid = "Android"
	OSiOS     = "iOS"

	CompilerMSVC       = "msvc"
	CompilerGCC        = "gcc"
	CompilerClang      = "clang"
	CompilerAppleClang = "apple-clang"
)

var appleOSs = []string{"Macos", "iOS", "watchOS", "tvOS", "visionOS"}

// IsApple returns whether the given os is one of Apple's.
func IsApple(os string) bool {
	for _, a := range appleOSs {
		if a == os {
			return true
		}
	}
	return false
}

// IsMSVC returns whether the settings select the msvc compiler.
func IsMSVC(s *Settings) bool {
	return s.Get("compiler") == CompilerMSVC
}

// IsMSVCStaticRuntime returns whether the settings select the static
// msvc runtime.
func IsMSVCStaticRuntime(s *Settings) bool {
	return IsMSVC(s) && s.Get("compiler.runtime") == "static"
}
