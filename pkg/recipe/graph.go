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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Node is one binary identity in the dependency graph.
type Node struct {
	ID        int
	Ref       Ref
	Conanfile *Conanfile
	Loaded    *LoadedRecipe
	Context   Scope
	IsRoot    bool
	// Edges are the requirements of the node, in declaration order.
	Edges []*Edge
	// Dependents are the edges pointing to this node.
	Dependents []*Edge
	// PythonRequires are the resolved helper recipes.
	PythonRequires []Ref

	closure *closure
	forced  bool
	// Option assignments received from the consumers of the node.
	inherited []OptionAssignment
	// The dependencies that consumers of the node see through it.
	public []visibleDep
}

// Edge connects a requirer with its requiree.
type Edge struct {
	From        *Node
	To          *Node
	Requirement *Requirement
}

type visibleDep struct {
	node    *Node
	headers bool
	libs    bool
	run     bool
}

// PackageID returns the identity hash of the node.
func (n *Node) PackageID() string {
	return n.Conanfile.PackageID()
}

// Invalid returns the reason the configuration of the node is invalid.
func (n *Node) Invalid() error {
	return n.Conanfile.Invalid()
}

func (n *Node) String() string {
	if n.Context == ScopeBuild {
		return n.Ref.String() + " (build)"
	}
	return n.Ref.String()
}

// propagated returns the option assignments the node hands down to its
// requirements. Later entries win.
func (n *Node) propagated() []OptionAssignment {
	result := DependencyDefaults(n.Conanfile.recipe.meta.DefaultOptions)
	result = append(result, n.Conanfile.Options.Pins()...)
	return append(result, n.inherited...)
}

// Graph is the expanded dependency graph of a root reference.
type Graph struct {
	Root *Node
	// Nodes in discovery order.
	Nodes []*Node
	order []*Node
}

// Order returns the nodes such that every node comes after all nodes it
// requires.
func (g *Graph) Order() []*Node {
	return append([]*Node{}, g.order...)
}

// Find returns the first node with the given name in the given context.
func (g *Graph) Find(name string, scope Scope) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.Ref.Name == name && n.Context == scope {
			return n, true
		}
	}
	return nil, false
}

// Render writes the graph as an indented tree.
func (g *Graph) Render(w io.Writer) error {
	seen := map[*Node]bool{}
	var render func(n *Node, indent string, req *Requirement) error
	render = func(n *Node, indent string, req *Requirement) error {
		line := indent + n.String()
		if req != nil && req.Test {
			line += " (test)"
		}
		line += " [" + string(n.Conanfile.PackageType()) + "]"
		if id := n.PackageID(); id != "" {
			line += " " + id
		}
		if n.Invalid() != nil {
			line += " INVALID: " + n.Invalid().Error()
		}
		if seen[n] {
			_, err := fmt.Fprintln(w, line+" ...")
			return err
		}
		seen[n] = true
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, e := range n.Edges {
			if err := render(e.To, indent+"  ", e.Requirement); err != nil {
				return err
			}
		}
		return nil
	}
	return render(g.Root, "", nil)
}

func (g *Graph) topological() ([]*Node, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := map[*Node]int{}
	order := []*Node{}
	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n] {
		case visiting:
			return NewFrameworkError("dependency cycle through '%s'", n.Ref)
		case done:
			return nil
		}
		state[n] = visiting
		for _, e := range n.Edges {
			if err := visit(e.To); err != nil {
				return err
			}
		}
		state[n] = done
		order = append(order, n)
		return nil
	}
	if err := visit(g.Root); err != nil {
		return nil, err
	}
	return order, nil
}

// GraphOptions parameterize BuildGraph.
type GraphOptions struct {
	Provider     Provider
	HostProfile  *Profile
	BuildProfile *Profile
	Runner       Runner
	UI           UI
	// Export, if given, runs right after the Conanfile of a node is
	// instantiated, before config_options. It may run several times for
	// the same reference.
	Export func(ctx context.Context, n *Node) error
}

// A closure is the set of nodes sharing one context. Names are unique
// within a closure. Every tool requirement starts a new closure.
type closure struct {
	scope   Scope
	profile *Profile
	// Settings of the consumer the tools of this closure produce code for.
	target map[string]string
	byName map[string]*Node
	nodes  []*Node
	depth  int
}

func (cl *closure) add(n *Node) {
	cl.byName[n.Ref.Name] = n
	cl.nodes = append(cl.nodes, n)
}

const (
	maxExpansions   = 10
	maxClosureDepth = 16
)

var errRestart = errors.New("restart graph expansion")

type graphBuilder struct {
	opts     GraphOptions
	host     *Profile
	build    *Profile
	graph    *Graph
	loaded   map[string]*LoadedRecipe
	versions map[string][]string
	// Versions imposed by requirements with force, keyed by context and name.
	forced map[string]string
	// Option assignments discovered after the node they apply to was
	// configured. Applied from the start on the next expansion.
	late map[Scope][]OptionAssignment
}

// BuildGraph expands the dependency graph of the root reference, and runs
// every node up to compatibility: options are resolved, requirements
// declared, the configuration validated and the identity computed.
//
// Option values pinned by dependents are honored independently of the
// order in which the nodes are reached.
func BuildGraph(ctx context.Context, root Ref, opts GraphOptions) (*Graph, error) {
	if opts.Provider == nil {
		return nil, NewFrameworkError("no recipe provider")
	}
	host := opts.HostProfile
	if host == nil {
		host = NewProfile()
	}
	build := opts.BuildProfile
	if build == nil {
		build = host
	}
	b := &graphBuilder{
		opts:     opts,
		host:     host,
		build:    build,
		loaded:   map[string]*LoadedRecipe{},
		versions: map[string][]string{},
		forced:   map[string]string{},
		late:     map[Scope][]OptionAssignment{},
	}
	for i := 0; i < maxExpansions; i++ {
		g, err := b.expand(ctx, root)
		if err == errRestart {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := b.finalize(ctx, g); err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, NewFrameworkError("the graph of '%s' doesn't converge", root)
}

func (b *graphBuilder) newClosure(scope Scope, profile *Profile, target map[string]string, depth int) (*closure, error) {
	if depth > maxClosureDepth {
		return nil, NewFrameworkError("tool requirements nested too deeply")
	}
	return &closure{
		scope:   scope,
		profile: profile,
		target:  target,
		byName:  map[string]*Node{},
		depth:   depth,
	}, nil
}

func (b *graphBuilder) expand(ctx context.Context, rootRef Ref) (*Graph, error) {
	b.graph = &Graph{}
	ref, err := b.resolveVersion(ctx, rootRef)
	if err != nil {
		return nil, err
	}
	cl, err := b.newClosure(ScopeHost, b.host, nil, 0)
	if err != nil {
		return nil, err
	}
	root, err := b.newNode(ctx, cl, ref, nil, nil)
	if err != nil {
		return nil, err
	}
	b.graph.Root = root
	if err := b.expandClosure(ctx, cl, root); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// expandClosure adds the host requirements breadth first. Tool requirements
// are expanded afterwards, so that '<host_version>' can see the complete
// closure.
func (b *graphBuilder) expandClosure(ctx context.Context, cl *closure, start *Node) error {
	queue := []*Node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, req := range n.Conanfile.Requirements() {
			if req.Scope != ScopeHost {
				continue
			}
			child, created, err := b.require(ctx, cl, n, req)
			if err != nil {
				return err
			}
			if created {
				queue = append(queue, child)
			}
		}
	}
	for _, n := range append([]*Node{}, cl.nodes...) {
		for _, req := range n.Conanfile.Requirements() {
			if req.Scope != ScopeBuild {
				continue
			}
			ref, err := b.resolve(ctx, req, n, cl)
			if err != nil {
				return err
			}
			toolCl, err := b.newClosure(ScopeBuild, b.build, cl.profile.Settings, cl.depth+1)
			if err != nil {
				return err
			}
			tool, err := b.newNode(ctx, toolCl, ref, n, req)
			if err != nil {
				return err
			}
			link(n, tool, req)
			if err := b.expandClosure(ctx, toolCl, tool); err != nil {
				return err
			}
		}
	}
	return nil
}

func link(from *Node, to *Node, req *Requirement) {
	e := &Edge{From: from, To: to, Requirement: req}
	from.Edges = append(from.Edges, e)
	to.Dependents = append(to.Dependents, e)
}

func forcedKey(scope Scope, name string) string {
	return scope.String() + "/" + name
}

// require adds the host requirement of parent to the closure. Returns
// whether a new node was created.
func (b *graphBuilder) require(ctx context.Context, cl *closure, parent *Node, req *Requirement) (*Node, bool, error) {
	if existing, ok := cl.byName[req.Ref.Name]; ok {
		if err := b.checkExisting(cl, existing, parent, req); err != nil {
			return nil, false, err
		}
		link(parent, existing, req)
		if err := b.checkReusedOptions(cl, existing, parent, req); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	ref, err := b.resolve(ctx, req, parent, cl)
	if err != nil {
		return nil, false, err
	}
	if req.Force {
		key := forcedKey(cl.scope, ref.Name)
		if forced, ok := b.forced[key]; ok && forced != ref.Version {
			return nil, false, &ConflictError{
				Name:      ref.Name,
				Existing:  ref.WithVersion(forced).String(),
				Requested: ref.Version,
				Requirer:  parent.Ref.String(),
			}
		}
		b.forced[key] = ref.Version
	}
	n, err := b.newNode(ctx, cl, ref, parent, req)
	if err != nil {
		return nil, false, err
	}
	n.forced = req.Force
	link(parent, n, req)
	return n, true, nil
}

// checkExisting verifies that the requirement can use the node that is
// already in the closure.
func (b *graphBuilder) checkExisting(cl *closure, existing *Node, parent *Node, req *Requirement) error {
	key := forcedKey(cl.scope, req.Ref.Name)
	matches := false
	if req.Ref.IsRange() {
		vr, err := ParseVersionRange(req.Ref.Version)
		if err != nil {
			return WrapFrameworkError(err, "%s", parent.Ref)
		}
		matches = vr.Match(existing.Ref.Version)
	} else {
		matches = req.Ref.Version == existing.Ref.Version
	}
	if forced, ok := b.forced[key]; ok && !req.Force && forced == existing.Ref.Version {
		return nil
	}
	if matches {
		if req.Force {
			existing.forced = true
		}
		return nil
	}
	if req.Force {
		if forced, ok := b.forced[key]; ok && forced != req.Ref.Version {
			return &ConflictError{
				Name:      req.Ref.Name,
				Existing:  req.Ref.WithVersion(forced).String(),
				Requested: req.Ref.Version,
				Requirer:  parent.Ref.String(),
			}
		}
		if req.Ref.IsRange() {
			ref, err := b.resolveVersion(context.Background(), req.Ref)
			if err != nil {
				return err
			}
			b.forced[key] = ref.Version
		} else {
			b.forced[key] = req.Ref.Version
		}
		return errRestart
	}
	if existing.forced {
		return nil
	}
	return &ConflictError{
		Name:      req.Ref.Name,
		Existing:  existing.Ref.String(),
		Requested: req.Ref.Version,
		Requirer:  parent.Ref.String(),
	}
}

// checkReusedOptions looks for option assignments of a new dependent that
// would change the already configured node, or one of its requirements.
// Such assignments are recorded and the expansion restarts.
func (b *graphBuilder) checkReusedOptions(cl *closure, existing *Node, parent *Node, req *Requirement) error {
	for _, name := range sortedKeys(req.Options) {
		a := OptionAssignment{Pattern: existing.Ref.Name, Name: name, Value: req.Options[name]}
		if err := b.checkLate(cl, existing, a); err != nil {
			return err
		}
	}
	incoming := parent.propagated()
	for _, target := range descendants(existing) {
		for _, a := range incoming {
			if !matchesPattern(a.Pattern, target.Ref, target.IsRoot) {
				continue
			}
			if err := b.checkLate(cl, target, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *graphBuilder) checkLate(cl *closure, target *Node, a OptionAssignment) error {
	for _, p := range cl.profile.optionsFor(target.Ref, target.IsRoot) {
		if p.Name == a.Name {
			// The profile has the last word.
			return nil
		}
	}
	changed, err := target.Conanfile.Options.wouldChange(a.Name, a.Value)
	if err != nil {
		return WrapFrameworkError(err, "%s", target.Ref)
	}
	if !changed {
		return nil
	}
	if a.Pattern == "" {
		a.Pattern = target.Ref.Name
	}
	for _, existing := range b.late[cl.scope] {
		if existing.Name == a.Name && matchesPattern(existing.Pattern, target.Ref, target.IsRoot) {
			return NewFrameworkError("conflicting values for option '%s' of '%s': '%s' and '%s'",
				a.Name, target.Ref, existing.Value, a.Value)
		}
	}
	b.late[cl.scope] = append(b.late[cl.scope], a)
	return errRestart
}

// descendants returns the node and all nodes of the same context it
// requires.
func descendants(n *Node) []*Node {
	result := []*Node{}
	seen := map[*Node]bool{}
	queue := []*Node{n}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		result = append(result, current)
		for _, e := range current.Edges {
			if e.To.Context == n.Context {
				queue = append(queue, e.To)
			}
		}
	}
	return result
}

func (b *graphBuilder) availableVersions(name string) ([]string, error) {
	if versions, ok := b.versions[name]; ok {
		return versions, nil
	}
	versions, err := b.opts.Provider.Versions(name)
	if err != nil {
		return nil, err
	}
	b.versions[name] = versions
	return versions, nil
}

// resolveVersion replaces a version range with the highest matching
// version.
func (b *graphBuilder) resolveVersion(ctx context.Context, ref Ref) (Ref, error) {
	if !ref.IsRange() {
		return ref, nil
	}
	vr, err := ParseVersionRange(ref.Version)
	if err != nil {
		return Ref{}, WrapFrameworkError(err, "invalid reference '%s'", ref)
	}
	versions, err := b.availableVersions(ref.Name)
	if err != nil {
		return Ref{}, err
	}
	v, ok := vr.Highest(versions)
	if !ok {
		return Ref{}, NewFrameworkError("no version of '%s' matches '%s'", ref.Name, ref.Version)
	}
	return ref.WithVersion(v), nil
}

func (b *graphBuilder) resolve(ctx context.Context, req *Requirement, parent *Node, cl *closure) (Ref, error) {
	ref := req.Ref
	scope := cl.scope
	if req.Scope == ScopeBuild {
		scope = ScopeBuild
	}
	if v, ok := b.forced[forcedKey(scope, ref.Name)]; ok && !req.Force {
		return ref.WithVersion(v), nil
	}
	if ref.Version == HostVersion {
		hostNode, ok := parent.closure.byName[ref.Name]
		if !ok || hostNode.Context != ScopeHost {
			return Ref{}, NewFrameworkError("%s: '%s' needs a host requirement named '%s'", parent.Ref, ref, ref.Name)
		}
		return ref.WithVersion(hostNode.Ref.Version), nil
	}
	return b.resolveVersion(ctx, ref)
}

func (b *graphBuilder) load(ctx context.Context, ref Ref) (*LoadedRecipe, error) {
	key := ref.String()
	if l, ok := b.loaded[key]; ok {
		return l, nil
	}
	l, err := b.opts.Provider.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	b.loaded[key] = l
	return l, nil
}

func (b *graphBuilder) newNode(ctx context.Context, cl *closure, ref Ref, parent *Node, req *Requirement) (*Node, error) {
	loaded, err := b.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if loaded.Recipe.meta.PackageType == PythonRequire {
		return nil, NewFrameworkError("'%s' provides helpers and can only be used as python_requires", ref)
	}
	cf, err := NewConanfile(loaded.Recipe, ConanfileConfig{
		Settings:       cl.profile.Settings,
		SettingsBuild:  b.build.Settings,
		SettingsTarget: cl.target,
		Conf:           cl.profile.Conf,
		ConanData:      loaded.ConanData,
		Runner:         b.opts.Runner,
		UI:             b.opts.UI,
		Context:        cl.scope,
		RecipeFolder:   loaded.Folder,
	})
	if err != nil {
		return nil, err
	}
	n := &Node{
		ID:        len(b.graph.Nodes),
		Ref:       ref,
		Conanfile: cf,
		Loaded:    loaded,
		Context:   cl.scope,
		IsRoot:    parent == nil,
		closure:   cl,
	}
	cl.add(n)
	b.graph.Nodes = append(b.graph.Nodes, n)

	for _, pr := range loaded.Recipe.meta.PythonRequires {
		resolved, err := b.resolvePythonRequire(ctx, pr)
		if err != nil {
			return nil, WrapFrameworkError(err, "%s", ref)
		}
		n.PythonRequires = append(n.PythonRequires, resolved)
	}
	if b.opts.Export != nil {
		if err := b.opts.Export(ctx, n); err != nil {
			return nil, err
		}
	}
	if err := b.applyOptions(cl, n, parent, req); err != nil {
		return nil, err
	}
	for _, stage := range []Stage{StageConfigOptions, StageConfigure, StageLayout, StageRequirements, StageBuildRequirements} {
		if err := cf.Execute(ctx, stage); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (b *graphBuilder) resolvePythonRequire(ctx context.Context, str string) (Ref, error) {
	ref, err := ParseRef(str)
	if err != nil {
		return Ref{}, err
	}
	ref, err = b.resolveVersion(ctx, ref)
	if err != nil {
		return Ref{}, err
	}
	l, err := b.load(ctx, ref)
	if err != nil {
		return Ref{}, err
	}
	if l.Recipe.meta.PackageType != PythonRequire {
		return Ref{}, NewFrameworkError("python_requires '%s' is a '%s'", ref, l.Recipe.meta.PackageType)
	}
	return ref, nil
}

// applyOptions applies the option values coming from outside the recipe.
// From lowest to highest priority: the dependency defaults of the parent,
// its pins, the options of the edge, the assignments the parent inherited
// from its own consumers, late assignments, and the profile.
func (b *graphBuilder) applyOptions(cl *closure, n *Node, parent *Node, req *Requirement) error {
	options := n.Conanfile.Options
	applyMatching := func(list []OptionAssignment) error {
		for _, a := range list {
			if !matchesPattern(a.Pattern, n.Ref, n.IsRoot) {
				continue
			}
			if err := options.override(a.Name, a.Value, false); err != nil {
				return WrapFrameworkError(err, "%s", n.Ref)
			}
		}
		return nil
	}
	sameContext := parent != nil && parent.Context == n.Context
	if sameContext {
		own := DependencyDefaults(parent.Conanfile.recipe.meta.DefaultOptions)
		own = append(own, parent.Conanfile.Options.Pins()...)
		if err := applyMatching(own); err != nil {
			return err
		}
	}
	if req != nil {
		for _, name := range sortedKeys(req.Options) {
			if err := options.override(name, req.Options[name], true); err != nil {
				return WrapFrameworkError(err, "%s: options of requirement '%s'", parent.Ref, req.Ref)
			}
		}
	}
	if sameContext {
		if err := applyMatching(parent.inherited); err != nil {
			return err
		}
		n.inherited = parent.propagated()
	}
	if err := applyMatching(b.late[cl.scope]); err != nil {
		return err
	}
	for _, a := range cl.profile.optionsFor(n.Ref, n.IsRoot) {
		if err := options.override(a.Name, a.Value, a.Pattern == ""); err != nil {
			return WrapFrameworkError(err, "%s", n.Ref)
		}
	}
	return nil
}

func (b *graphBuilder) finalize(ctx context.Context, g *Graph) error {
	order, err := g.topological()
	if err != nil {
		return err
	}
	g.order = order
	for _, n := range order {
		computeDependencies(n)
		n.Conanfile.identityRequires = identityRequires(n)
		for _, stage := range []Stage{StageValidate, StagePackageID, StageCompatibility} {
			if err := n.Conanfile.Execute(ctx, stage); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeDependencies fills the Dependencies of the node, and computes what
// the node exposes to its own consumers.
//
// A transitive dependency is visible through an intermediate package when
// the edge has the transitive traits, or when the intermediate is a static
// or header library that can't hide it. Shared libraries and applications
// are always visible for running.
func computeDependencies(n *Node) {
	deps := NewDependencies()
	byNode := map[*Node]*Dependency{}
	add := func(target *Node, scope Scope, direct bool, req *Requirement, headers, libs, run bool) {
		if d, ok := byNode[target]; ok {
			d.Direct = d.Direct || direct
			d.Headers = d.Headers || headers
			d.Libs = d.Libs || libs
			d.Run = d.Run || run
			return
		}
		d := &Dependency{
			Ref:     target.Ref,
			Scope:   scope,
			Direct:  direct,
			Headers: headers,
			Libs:    libs,
			Run:     run,
			node:    target,
		}
		if req != nil && direct {
			d.TransitiveHeaders = req.TransitiveHeaders
			d.TransitiveLibs = req.TransitiveLibs
			d.Visible = req.Visible
			d.Test = req.Test
		}
		byNode[target] = d
		deps.Add(d)
	}

	pt := n.Conanfile.PackageType()
	nonShared := pt == StaticLibrary || pt == HeaderLibrary || pt == Library
	public := []visibleDep{}
	publicIndex := map[*Node]int{}
	expose := func(v visibleDep) {
		if i, ok := publicIndex[v.node]; ok {
			public[i].headers = public[i].headers || v.headers
			public[i].libs = public[i].libs || v.libs
			public[i].run = public[i].run || v.run
			return
		}
		publicIndex[v.node] = len(public)
		public = append(public, v)
	}

	for _, e := range n.Edges {
		req := e.Requirement
		target := e.To
		if req.Scope == ScopeBuild {
			add(target, ScopeBuild, true, req, false, false, true)
			continue
		}
		targetType := target.Conanfile.PackageType()
		run := req.Run || targetType == SharedLibrary || targetType == Application
		add(target, ScopeHost, true, req, req.Headers, req.Libs, run)
		if req.Test {
			continue
		}
		for _, v := range target.public {
			add(v.node, ScopeHost, false, nil, v.headers && req.Headers, v.libs && req.Libs, v.run)
		}
		headers := req.TransitiveHeaders || (pt == HeaderLibrary && req.Headers)
		libs := req.TransitiveLibs || (nonShared && req.Libs)
		if headers || libs || run {
			expose(visibleDep{node: target, headers: headers, libs: libs, run: run})
		}
		for _, v := range target.public {
			vh := v.headers && headers
			vl := v.libs && libs
			if vh || vl || v.run {
				expose(visibleDep{node: v.node, headers: vh, libs: vl, run: v.run})
			}
		}
	}
	// Visible tool requirements of direct host requirements.
	for _, e := range n.Edges {
		if e.Requirement.Scope != ScopeHost || e.Requirement.Test {
			continue
		}
		for _, te := range e.To.Edges {
			if te.Requirement.Scope == ScopeBuild && te.Requirement.Visible {
				add(te.To, ScopeBuild, false, nil, false, false, true)
			}
		}
	}
	n.public = public
	deps.refresh()
	n.Conanfile.Dependencies = deps
}

// identityRequires computes the requirement part of the identity.
// Shared libraries and applications embed their static and header-only
// dependencies, and record them with their full version. All other
// dependencies are recorded as name/major.minor.Z. Build requirements and
// test requirements never affect the identity.
func identityRequires(n *Node) map[string]string {
	result := map[string]string{}
	pt := n.Conanfile.PackageType()
	embeds := pt == SharedLibrary || pt == Application
	for _, d := range n.Conanfile.Dependencies.HostList() {
		if d.Test {
			continue
		}
		if embeds && (d.PackageType == StaticLibrary || d.PackageType == HeaderLibrary) {
			result[d.Ref.Name] = d.Ref.String()
		} else {
			result[d.Ref.Name] = minorMode(d.Ref)
		}
	}
	return result
}

// minorMode turns "1.2.3" into "1.2.Z". Versions that don't start with a
// number are kept.
func minorMode(ref Ref) string {
	parts := strings.Split(ref.Version, ".")
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return ref.String()
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	parts = append(parts, "Z")
	return ref.WithVersion(strings.Join(parts, ".")).String()
}

// matchesPattern implements the option patterns: "&" is the root of the
// graph, patterns containing a '/' are matched against name/version, all
// others against the name.
func matchesPattern(pattern string, ref Ref, isRoot bool) bool {
	if pattern == "&" {
		return isRoot
	}
	subject := ref.Name
	if strings.Contains(pattern, "@") {
		subject = ref.String()
	} else if strings.Contains(pattern, "/") {
		subject = ref.Name + "/" + ref.Version
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(subject)
}
