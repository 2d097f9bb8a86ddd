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
	"context"
	"fmt"
	"sort"
	"strings"
)

// PackageType declares the kind of artifact a recipe produces.
type PackageType string

const (
	Library        PackageType = "library"
	SharedLibrary  PackageType = "shared-library"
	StaticLibrary  PackageType = "static-library"
	HeaderLibrary  PackageType = "header-library"
	Application    PackageType = "application"
	BuildScripts   PackageType = "build-scripts"
	PythonRequire  PackageType = "python-require"
	UnknownPackage PackageType = "unknown"
)

// IsValid returns whether the package type is known.
func (t PackageType) IsValid() bool {
	switch t {
	case Library, SharedLibrary, StaticLibrary, HeaderLibrary, Application, BuildScripts, PythonRequire, UnknownPackage:
		return true
	}
	return false
}

// Automatic implementations a recipe can opt into.
const (
	AutoSharedFPIC = "auto_shared_fpic"
	AutoHeaderOnly = "auto_header_only"
)

// Metadata is the static part of a recipe.
type Metadata struct {
	Name        string
	Version     string
	User        string
	Channel     string
	Description string
	License     string
	Homepage    string
	URL         string
	Topics      []string
	PackageType PackageType
	// The top-level settings the recipe consumes, like "os" or "compiler".
	Settings []string
	Options  map[string]OptionDef
	// Defaults for the options. Keys of the form "pattern:option" are
	// defaults for dependencies, like "boost/*:with_fiber".
	DefaultOptions map[string]interface{}
	Implements     []string
	Provides       []string
	Languages      []string
	// References of recipes providing shared helpers. They don't take part
	// in the host or build graph.
	PythonRequires []string
	// Files of the recipe folder that are exported with the sources.
	ExportsSources []string
}

// Handler implements one lifecycle stage of a recipe.
type Handler func(ctx context.Context, c *Conanfile) error

// Recipe is a built, immutable recipe.
type Recipe struct {
	meta     Metadata
	handlers map[Stage]Handler
}

// Metadata returns a copy of the recipe's metadata.
func (r *Recipe) Metadata() Metadata {
	m := r.meta
	m.Topics = append([]string{}, r.meta.Topics...)
	m.Settings = append([]string{}, r.meta.Settings...)
	m.Implements = append([]string{}, r.meta.Implements...)
	m.Provides = append([]string{}, r.meta.Provides...)
	m.Languages = append([]string{}, r.meta.Languages...)
	m.PythonRequires = append([]string{}, r.meta.PythonRequires...)
	m.ExportsSources = append([]string{}, r.meta.ExportsSources...)
	m.Options = map[string]OptionDef{}
	for k, v := range r.meta.Options {
		m.Options[k] = v
	}
	m.DefaultOptions = map[string]interface{}{}
	for k, v := range r.meta.DefaultOptions {
		m.DefaultOptions[k] = v
	}
	return m
}

// Name of the recipe.
func (r *Recipe) Name() string {
	return r.meta.Name
}

// Ref returns the reference of the recipe.
func (r *Recipe) Ref() Ref {
	return Ref{Name: r.meta.Name, Version: r.meta.Version, User: r.meta.User, Channel: r.meta.Channel}
}

// Handler returns the handler registered for the stage, if any.
func (r *Recipe) Handler(stage Stage) (Handler, bool) {
	h, ok := r.handlers[stage]
	return h, ok
}

// Has returns whether the recipe defines the stage.
func (r *Recipe) Has(stage Stage) bool {
	_, ok := r.handlers[stage]
	return ok
}

// Implements returns whether the recipe opted into the given automatic
// implementation.
func (r *Recipe) Implements(name string) bool {
	for _, i := range r.meta.Implements {
		if i == name {
			return true
		}
	}
	return false
}

// WithVersion returns the same recipe for a concrete version.
func (r *Recipe) WithVersion(v string) *Recipe {
	result := &Recipe{meta: r.meta, handlers: r.handlers}
	result.meta.Version = v
	return result
}

func (r *Recipe) withRef(ref Ref) *Recipe {
	result := &Recipe{meta: r.meta, handlers: r.handlers}
	result.meta.Version = ref.Version
	result.meta.User = ref.User
	result.meta.Channel = ref.Channel
	return result
}

// Builder collects the metadata and handlers of a recipe.
type Builder struct {
	meta     Metadata
	handlers map[Stage]Handler
	errs     []string
}

// NewBuilder starts building a recipe with the given metadata.
func NewBuilder(meta Metadata) *Builder {
	return &Builder{
		meta:     meta,
		handlers: map[Stage]Handler{},
	}
}

// On registers the handler for the given stage.
// Registering the same stage twice is an error reported by Build.
func (b *Builder) On(stage Stage, h Handler) *Builder {
	if stage <= StageInit || stage >= StageFrozen {
		b.errs = append(b.errs, fmt.Sprintf("can't register a handler for stage '%s'", stage))
		return b
	}
	if _, ok := b.handlers[stage]; ok {
		b.errs = append(b.errs, fmt.Sprintf("handler for stage '%s' registered twice", stage))
		return b
	}
	b.handlers[stage] = h
	return b
}

// Build validates the metadata and returns the recipe.
func (b *Builder) Build() (*Recipe, error) {
	errs := append([]string{}, b.errs...)
	m := b.meta
	if !IsValidName(m.Name) {
		errs = append(errs, fmt.Sprintf("invalid name '%s'", m.Name))
	}
	if m.PackageType == "" {
		m.PackageType = UnknownPackage
	}
	if !m.PackageType.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid package type '%s'", m.PackageType))
	}
	for _, impl := range m.Implements {
		if impl != AutoSharedFPIC && impl != AutoHeaderOnly {
			errs = append(errs, fmt.Sprintf("unknown implementation '%s'", impl))
		}
	}
	if _, err := NewOptions(m.Options, m.DefaultOptions); err != nil {
		errs = append(errs, err.Error())
	}
	for _, d := range DependencyDefaults(m.DefaultOptions) {
		if d.Pattern == "" || d.Name == "" {
			errs = append(errs, fmt.Sprintf("invalid dependency default '%s'", d))
		}
	}
	for _, pr := range m.PythonRequires {
		if _, err := ParseRef(pr); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("invalid recipe '%s': %s", m.Name, strings.Join(errs, "; "))
	}
	handlers := map[Stage]Handler{}
	for s, h := range b.handlers {
		handlers[s] = h
	}
	return &Recipe{meta: m, handlers: handlers}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Recipe {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
