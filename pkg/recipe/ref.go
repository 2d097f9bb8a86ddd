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
	"regexp"
	"strings"
)

// HostVersion is the placeholder version of a tool requirement that must
// resolve to the version of the host requirement with the same name.
const HostVersion = "<host_version>"

// Ref identifies a recipe: name/version[@user/channel].
// The version may be a range expression in brackets.
type Ref struct {
	Name    string
	Version string
	User    string
	Channel string
}

var nameRegexp = regexp.MustCompile(`^[a-z0-9_][a-z0-9_+.-]{1,100}$`)

// IsValidName returns whether the given string is a valid package name.
func IsValidName(name string) bool {
	return nameRegexp.MatchString(name)
}

// ParseRef parses a reference of the form name/version[@user/channel].
func ParseRef(str string) (Ref, error) {
	str = strings.TrimSpace(str)
	var result Ref
	main := str
	if idx := strings.Index(str, "@"); idx >= 0 {
		main = str[:idx]
		uc := strings.SplitN(str[idx+1:], "/", 2)
		if len(uc) != 2 || uc[0] == "" || uc[1] == "" {
			return Ref{}, fmt.Errorf("invalid reference '%s': expected user/channel after '@'", str)
		}
		result.User, result.Channel = uc[0], uc[1]
	}
	parts := strings.SplitN(main, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid reference '%s': expected name/version", str)
	}
	result.Name, result.Version = parts[0], parts[1]
	if !IsValidName(result.Name) {
		return Ref{}, fmt.Errorf("invalid reference '%s': invalid name '%s'", str, result.Name)
	}
	return result, nil
}

// MustParseRef is like ParseRef but panics on error.
func MustParseRef(str string) Ref {
	ref, err := ParseRef(str)
	if err != nil {
		panic(err)
	}
	return ref
}

func (r Ref) String() string {
	result := r.Name + "/" + r.Version
	if r.User != "" {
		result += "@" + r.User + "/" + r.Channel
	}
	return result
}

// IsRange returns whether the version of the reference is a range.
func (r Ref) IsRange() bool {
	return IsVersionRange(r.Version)
}

// WithVersion returns a copy of the reference with the given version.
func (r Ref) WithVersion(v string) Ref {
	r.Version = v
	return r
}
