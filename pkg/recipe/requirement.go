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

// Scope of a dependency edge.
type Scope int

const (
	ScopeHost Scope = iota
	ScopeBuild
)

func (s Scope) String() string {
	if s == ScopeBuild {
		return "build"
	}
	return "host"
}

// Requirement is a dependency edge declared by a recipe.
type Requirement struct {
	Ref   Ref
	Scope Scope
	// Headers and Libs are opt-outs: a requirement with Libs false doesn't
	// link against the requiree.
	Headers bool
	Libs    bool
	Run     bool
	// TransitiveHeaders makes the requiree's headers visible to consumers of
	// the requirer.
	TransitiveHeaders bool
	// TransitiveLibs propagates the requiree's link set to consumers of the
	// requirer.
	TransitiveLibs bool
	// Force overrides version conflicts with other requirements.
	Force bool
	// Visible marks a tool requirement whose presence is observable in the
	// build environment of consumers.
	Visible bool
	// Options pins option values on the requiree.
	Options map[string]string
	// Test marks test requirements. They are never part of the identity.
	Test bool
}

func (r *Requirement) String() string {
	parts := []string{}
	if r.TransitiveHeaders {
		parts = append(parts, "transitive_headers")
	}
	if r.TransitiveLibs {
		parts = append(parts, "transitive_libs")
	}
	if !r.Headers {
		parts = append(parts, "headers=False")
	}
	if !r.Libs {
		parts = append(parts, "libs=False")
	}
	if r.Force {
		parts = append(parts, "force")
	}
	if r.Visible {
		parts = append(parts, "visible")
	}
	keys := []string{}
	for k := range r.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, r.Options[k]))
	}
	if len(parts) == 0 {
		return r.Ref.String()
	}
	return r.Ref.String() + " (" + strings.Join(parts, ", ") + ")"
}

// Trait modifies a requirement.
type Trait func(r *Requirement)

// TransitiveHeaders marks the requiree's headers as part of the requirer's
// public headers.
func TransitiveHeaders() Trait {
	return func(r *Requirement) { r.TransitiveHeaders = true }
}

// TransitiveLibs propagates the requiree's libraries to the requirer's
// consumers.
func TransitiveLibs() Trait {
	return func(r *Requirement) { r.TransitiveLibs = true }
}

// NoLibs doesn't link against the requiree.
func NoLibs() Trait {
	return func(r *Requirement) { r.Libs = false }
}

// NoHeaders doesn't use the requiree's headers.
func NoHeaders() Trait {
	return func(r *Requirement) { r.Headers = false }
}

// Force overrides version conflicts.
func Force() Trait {
	return func(r *Requirement) { r.Force = true }
}

// Visible makes a tool requirement visible to consumers.
func Visible() Trait {
	return func(r *Requirement) { r.Visible = true }
}

// Run marks the requiree as needed at runtime.
func Run() Trait {
	return func(r *Requirement) { r.Run = true }
}

// WithOptions pins option values on the requiree.
func WithOptions(options map[string]interface{}) Trait {
	return func(r *Requirement) {
		if r.Options == nil {
			r.Options = map[string]string{}
		}
		for k, v := range options {
			r.Options[k] = FormatValue(v)
		}
	}
}

func newRequirement(refStr string, scope Scope, traits []Trait) (*Requirement, error) {
	ref, err := ParseRef(refStr)
	if err != nil {
		return nil, err
	}
	r := &Requirement{
		Ref:     ref,
		Scope:   scope,
		Headers: scope == ScopeHost,
		Libs:    scope == ScopeHost,
		Run:     scope == ScopeBuild,
	}
	for _, t := range traits {
		t(r)
	}
	if r.Ref.IsRange() {
		if _, err := ParseVersionRange(r.Ref.Version); err != nil {
			return nil, err
		}
	} else if r.Ref.Version == HostVersion && scope != ScopeBuild {
		return nil, fmt.Errorf("'%s' is only valid for tool requirements", HostVersion)
	}
	return r, nil
}
