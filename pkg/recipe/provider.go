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
	"path/filepath"
	"sort"
)

// LoadedRecipe is a recipe bound to a version, with its external data.
type LoadedRecipe struct {
	Recipe    *Recipe
	ConanData *ConanData
	// Folder is the recipe folder in the index. Empty for recipes that
	// don't come from an index.
	Folder string
}

// Provider finds recipes.
type Provider interface {
	// Versions returns the versions known for the recipe, oldest first.
	Versions(name string) ([]string, error)
	// Load returns the recipe for the exact reference.
	Load(ctx context.Context, ref Ref) (*LoadedRecipe, error)
}

// Catalog holds the recipe implementations, keyed by name and by the
// recipe folder of the index they implement.
type Catalog struct {
	recipes map[string]map[string]*Recipe
}

// AnyFolder registers a recipe for all folders.
const AnyFolder = ""

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{recipes: map[string]map[string]*Recipe{}}
}

// Register adds the recipe for the given folders. Without folders, the
// recipe serves all of them.
func (c *Catalog) Register(r *Recipe, folders ...string) {
	if len(folders) == 0 {
		folders = []string{AnyFolder}
	}
	byFolder, ok := c.recipes[r.Name()]
	if !ok {
		byFolder = map[string]*Recipe{}
		c.recipes[r.Name()] = byFolder
	}
	for _, f := range folders {
		byFolder[f] = r
	}
}

// Lookup returns the recipe for the folder, falling back to the one
// registered for all folders.
func (c *Catalog) Lookup(name string, folder string) (*Recipe, bool) {
	byFolder, ok := c.recipes[name]
	if !ok {
		return nil, false
	}
	if r, ok := byFolder[folder]; ok {
		return r, true
	}
	r, ok := byFolder[AnyFolder]
	return r, ok
}

// Names returns the names of all registered recipes, sorted.
func (c *Catalog) Names() []string {
	result := []string{}
	for name := range c.recipes {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// IndexProvider combines recipe implementations with the versions and
// data of recipe indexes.
type IndexProvider struct {
	catalog *Catalog
	indexes Indexes
}

// NewIndexProvider creates a provider.
func NewIndexProvider(catalog *Catalog, indexes Indexes) *IndexProvider {
	return &IndexProvider{catalog: catalog, indexes: indexes}
}

func (p *IndexProvider) Versions(name string) ([]string, error) {
	entry, _, ok := p.indexes.MatchName(name)
	if !ok {
		return nil, NewFrameworkError("recipe '%s' not found in any index", name)
	}
	return entry.Versions.List(), nil
}

func (p *IndexProvider) Load(ctx context.Context, ref Ref) (*LoadedRecipe, error) {
	entry, _, ok := p.indexes.MatchName(ref.Name)
	if !ok {
		return nil, NewFrameworkError("recipe '%s' not found in any index", ref.Name)
	}
	folder, err := entry.Versions.Folder(ref.Version)
	if err != nil {
		return nil, WrapFrameworkError(err, "can't load %s", ref)
	}
	r, ok := p.catalog.Lookup(ref.Name, folder)
	if !ok {
		return nil, NewFrameworkError("no implementation for recipe '%s' (folder '%s')", ref.Name, folder)
	}
	data, err := entry.ConanData(ref.Version)
	if err != nil {
		return nil, err
	}
	return &LoadedRecipe{
		Recipe:    r.withRef(ref),
		ConanData: data,
		Folder:    filepath.Join(entry.Path, filepath.FromSlash(folder)),
	}, nil
}

// MemoryProvider serves recipes without an index.
type MemoryProvider struct {
	entries map[string]map[string]*LoadedRecipe
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: map[string]map[string]*LoadedRecipe{}}
}

// Add makes the recipe available in the given versions.
func (p *MemoryProvider) Add(r *Recipe, data *ConanData, versions ...string) {
	byVersion, ok := p.entries[r.Name()]
	if !ok {
		byVersion = map[string]*LoadedRecipe{}
		p.entries[r.Name()] = byVersion
	}
	if data == nil {
		data = &ConanData{}
	}
	for _, v := range versions {
		byVersion[v] = &LoadedRecipe{Recipe: r.WithVersion(v), ConanData: data}
	}
}

func (p *MemoryProvider) Versions(name string) ([]string, error) {
	byVersion, ok := p.entries[name]
	if !ok {
		return nil, NewFrameworkError("recipe '%s' not found", name)
	}
	result := []string{}
	for v := range byVersion {
		result = append(result, v)
	}
	SortVersions(result)
	return result, nil
}

func (p *MemoryProvider) Load(ctx context.Context, ref Ref) (*LoadedRecipe, error) {
	byVersion, ok := p.entries[ref.Name]
	if !ok {
		return nil, NewFrameworkError("recipe '%s' not found", ref.Name)
	}
	loaded, ok := byVersion[ref.Version]
	if !ok {
		return nil, NewFrameworkError("version '%s' of recipe '%s' not found", ref.Version, ref.Name)
	}
	return loaded, nil
}
