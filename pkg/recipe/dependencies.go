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

// Dependency is the view a recipe has of one of its (direct or
// transitive) dependencies.
// Only the reference, options, package type, traits, package folder and
// the published info are contracted. Nothing of the dependency's build
// tree is visible.
type Dependency struct {
	Ref         Ref
	PackageType PackageType
	Scope       Scope
	// Direct is true for requirements the recipe declared itself.
	Direct bool
	// Headers and Libs tell whether the consumer compiles and links against
	// the dependency.
	Headers bool
	Libs    bool
	Run     bool
	// TransitiveHeaders and TransitiveLibs tell whether the consumer
	// re-exports the dependency to its own consumers.
	TransitiveHeaders bool
	TransitiveLibs    bool
	Visible           bool
	Test              bool

	Options       map[string]string
	PackageFolder string
	CppInfo       *CppInfo
	BuildEnvInfo  *EnvOverlay
	RunEnvInfo    *EnvOverlay
	ConfInfo      *Conf

	node *Node
}

// Option returns the value of an option of the dependency.
func (d *Dependency) Option(name string) string {
	return d.Options[name]
}

// OptionBool returns whether the option of the dependency is True.
func (d *Dependency) OptionBool(name string) bool {
	return d.Options[name] == True
}

// refresh copies the published data of the dependency's Conanfile.
func (d *Dependency) refresh() {
	if d.node == nil || d.node.Conanfile == nil {
		return
	}
	cf := d.node.Conanfile
	d.PackageType = cf.PackageType()
	d.Options = cf.Options.Values()
	d.PackageFolder = cf.PackageFolder()
	if cf.Stage() == StageFrozen {
		d.CppInfo = cf.CppInfo.Clone()
		d.BuildEnvInfo = Compose(cf.BuildEnvInfo)
		d.RunEnvInfo = Compose(cf.RunEnvInfo)
		d.ConfInfo = cf.ConfInfo.Copy()
	}
}

// Dependencies holds the host and build dependencies of a recipe, in
// dependency order: a dependency comes after the dependencies it requires.
type Dependencies struct {
	host  []*Dependency
	build []*Dependency
}

// NewDependencies returns an empty set.
func NewDependencies() *Dependencies {
	return &Dependencies{}
}

// Add adds or replaces a dependency.
func (ds *Dependencies) Add(d *Dependency) {
	list := &ds.host
	if d.Scope == ScopeBuild {
		list = &ds.build
	}
	for i, existing := range *list {
		if existing.Ref.Name == d.Ref.Name {
			(*list)[i] = d
			return
		}
	}
	*list = append(*list, d)
}

func find(list []*Dependency, name string) (*Dependency, bool) {
	for _, d := range list {
		if d.Ref.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Host returns the host dependency with the given name.
func (ds *Dependencies) Host(name string) (*Dependency, bool) {
	return find(ds.host, name)
}

// Build returns the build dependency with the given name.
func (ds *Dependencies) Build(name string) (*Dependency, bool) {
	return find(ds.build, name)
}

// HasHost returns whether there is a host dependency with the given name.
func (ds *Dependencies) HasHost(name string) bool {
	_, ok := ds.Host(name)
	return ok
}

// HostList returns all host dependencies.
func (ds *Dependencies) HostList() []*Dependency {
	return append([]*Dependency{}, ds.host...)
}

// DirectHost returns the host dependencies the recipe declared itself.
func (ds *Dependencies) DirectHost() []*Dependency {
	result := []*Dependency{}
	for _, d := range ds.host {
		if d.Direct {
			result = append(result, d)
		}
	}
	return result
}

// BuildList returns all build dependencies.
func (ds *Dependencies) BuildList() []*Dependency {
	return append([]*Dependency{}, ds.build...)
}

func (ds *Dependencies) refresh() {
	for _, d := range ds.host {
		d.refresh()
	}
	for _, d := range ds.build {
		d.refresh()
	}
}
