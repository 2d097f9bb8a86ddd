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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BuildPolicy decides when binaries are built from sources.
type BuildPolicy string

const (
	// BuildMissing builds the binaries that are not in the cache.
	BuildMissing BuildPolicy = "missing"
	// BuildNever only consumes cached binaries.
	BuildNever BuildPolicy = "never"
	// BuildAlways rebuilds every binary.
	BuildAlways BuildPolicy = "always"
)

// IsValid returns whether the policy is known.
func (p BuildPolicy) IsValid() bool {
	return p == BuildMissing || p == BuildNever || p == BuildAlways
}

// Manager drives the nodes of a graph through the lifecycle, and keeps the
// results in the cache.
type Manager struct {
	cache    Cache
	provider Provider
	runner   Runner
	ui       UI
}

// NewManager creates a manager.
func NewManager(cache Cache, provider Provider, runner Runner, ui UI) *Manager {
	if ui == nil {
		ui = NullUI
	}
	return &Manager{
		cache:    cache,
		provider: provider,
		runner:   runner,
		ui:       ui,
	}
}

// Graph expands the graph of the reference. All nodes are evaluated up to
// their identity, and their recipe files are exported to the cache.
func (m *Manager) Graph(ctx context.Context, ref Ref, host *Profile, build *Profile) (*Graph, error) {
	return BuildGraph(ctx, ref, GraphOptions{
		Provider:     m.provider,
		HostProfile:  host,
		BuildProfile: build,
		Runner:       m.runner,
		UI:           m.ui,
		Export:       m.export,
	})
}

// export assigns the folders shared by all binaries of the reference, and
// runs export_sources.
func (m *Manager) export(ctx context.Context, n *Node) error {
	c := n.Conanfile
	exportFolder := m.cache.ExportPath(n.Ref)
	c.Folders.assignRefFolders(exportFolder, m.cache.SourcePath(n.Ref))
	meta := c.recipe.meta
	if len(meta.ExportsSources) > 0 && c.RecipeFolder() != "" {
		if err := copyMatching(c.RecipeFolder(), exportFolder, meta.ExportsSources); err != nil {
			return WrapFrameworkError(err, "%s: exporting sources", n.Ref)
		}
	}
	if !c.recipe.Has(StageExportSources) {
		return nil
	}
	if err := os.MkdirAll(exportFolder, 0755); err != nil {
		return err
	}
	return c.Execute(ctx, StageExportSources)
}

// InstallOptions parameterize Install.
type InstallOptions struct {
	Policy BuildPolicy
	// BuildRoot always builds the root of the graph, independently of the
	// policy.
	BuildRoot bool
}

// Install makes the binaries of all nodes available, building them if the
// policy allows it, and runs package_info for every node.
func (m *Manager) Install(ctx context.Context, g *Graph, opts InstallOptions) error {
	policy := opts.Policy
	if policy == "" {
		policy = BuildMissing
	}
	if !policy.IsValid() {
		return NewFrameworkError("unknown build policy '%s'", policy)
	}
	for _, n := range g.Order() {
		if err := m.installNode(ctx, n, policy, opts.BuildRoot && n.IsRoot); err != nil {
			return err
		}
	}
	return nil
}

// Create builds the root of the graph of the reference, and makes sure all
// its dependencies are available.
func (m *Manager) Create(ctx context.Context, ref Ref, host *Profile, build *Profile, policy BuildPolicy) (*Graph, error) {
	g, err := m.Graph(ctx, ref, host, build)
	if err != nil {
		return nil, err
	}
	if err := m.Install(ctx, g, InstallOptions{Policy: policy, BuildRoot: true}); err != nil {
		return g, err
	}
	return g, nil
}

// Source runs the source stage of the root of the graph, without building
// anything.
func (m *Manager) Source(ctx context.Context, ref Ref, host *Profile) (string, error) {
	g, err := m.Graph(ctx, ref, host, nil)
	if err != nil {
		return "", err
	}
	if err := m.source(ctx, g.Root); err != nil {
		return "", err
	}
	return g.Root.Conanfile.SourceFolder(), nil
}

func (m *Manager) installNode(ctx context.Context, n *Node, policy BuildPolicy, forceBuild bool) error {
	c := n.Conanfile
	if err := n.Invalid(); err != nil {
		return &LifecycleError{Ref: n.Ref.String(), Stage: StageValidate, Err: err}
	}
	if err := CheckIdentity(c); err != nil {
		return err
	}
	c.Dependencies.refresh()
	id := c.PackageID()
	exists, err := m.cache.HasPackage(n.Ref, id)
	if err != nil {
		return err
	}
	switch {
	case exists && !forceBuild && policy != BuildAlways:
		return m.consume(ctx, n, id)
	case forceBuild || policy != BuildNever:
		return m.build(ctx, n, id)
	}
	for _, info := range c.CompatibleInfos() {
		compatID := info.PackageID()
		exists, err := m.cache.HasPackage(n.Ref, compatID)
		if err != nil {
			return err
		}
		if exists {
			m.ui.ReportInfo("%s: using compatible binary %s", n, compatID)
			return m.consume(ctx, n, compatID)
		}
	}
	return NewFrameworkError("%s: missing binary %s", n, id)
}

// consume runs package_info against a binary of the cache.
func (m *Manager) consume(ctx context.Context, n *Node, id string) error {
	c := n.Conanfile
	c.Folders.assignPackageFolders(m.cache.BuildPath(n.Ref, id), m.cache.PackagePath(n.Ref, id))
	if err := c.ExecuteUntil(ctx, StagePackageInfo); err != nil {
		return err
	}
	return CheckComponentRequires(c)
}

// prepareEnvironment composes the build environment and applies the conf
// published by the direct requirements.
func (m *Manager) prepareEnvironment(n *Node) {
	c := n.Conanfile
	overlays := []*EnvOverlay{n.closure.profile.BuildEnv}
	for _, d := range c.Dependencies.BuildList() {
		overlays = append(overlays, d.RunEnvInfo, d.BuildEnvInfo)
	}
	c.BuildEnv = Compose(overlays...)
	for _, d := range c.Dependencies.BuildList() {
		if d.Direct {
			c.Conf.Update(d.ConfInfo)
		}
	}
	for _, d := range c.Dependencies.DirectHost() {
		c.Conf.Update(d.ConfInfo)
	}
}

func (m *Manager) runEnvironment(n *Node) *EnvOverlay {
	overlays := []*EnvOverlay{}
	for _, d := range n.Conanfile.Dependencies.HostList() {
		if d.Run {
			overlays = append(overlays, d.RunEnvInfo)
		}
	}
	return Compose(overlays...)
}

// writeEnvScripts materializes the environments in the generators folder.
func writeEnvScripts(folder string, name string, env *EnvOverlay) error {
	var sh, bat bytes.Buffer
	if err := env.RenderSh(&sh); err != nil {
		return err
	}
	if err := env.RenderBat(&bat); err != nil {
		return err
	}
	if err := writeFileIfChanged(filepath.Join(folder, name+".sh"), sh.Bytes()); err != nil {
		return err
	}
	return writeFileIfChanged(filepath.Join(folder, name+".bat"), bat.Bytes())
}

const sourceDoneMarker = ".trecipe_source_done"

// source runs the source stage once per reference. The source folder is
// shared by all binaries and guarded by a file lock.
func (m *Manager) source(ctx context.Context, n *Node) error {
	c := n.Conanfile
	base := m.cache.SourcePath(n.Ref)
	return withFileLock(ctx, base+".lock", func() error {
		marker := filepath.Join(base, sourceDoneMarker)
		done, err := isFile(marker)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := os.RemoveAll(base); err != nil {
			return err
		}
		if err := os.MkdirAll(c.SourceFolder(), 0755); err != nil {
			return err
		}
		if !c.Conf.Has(ConfDownloadCache) && m.cache.DownloadCachePath() != "" {
			if err := c.Conf.Define(ConfDownloadCache, m.cache.DownloadCachePath()); err != nil {
				return err
			}
		}
		if err := c.Execute(ctx, StageSource); err != nil {
			return err
		}
		return os.WriteFile(marker, []byte(n.Ref.String()+"\n"), 0644)
	})
}

// build produces the binary with the given id.
func (m *Manager) build(ctx context.Context, n *Node, id string) error {
	c := n.Conanfile
	m.ui.ReportInfo("Building %s (%s)", n, id)
	buildFolder := m.cache.BuildPath(n.Ref, id)
	packageFolder := m.cache.PackagePath(n.Ref, id)
	c.Folders.assignPackageFolders(buildFolder, packageFolder)

	if err := c.Execute(ctx, StageValidateBuild); err != nil {
		return err
	}
	if err := m.source(ctx, n); err != nil {
		return err
	}
	m.prepareEnvironment(n)
	if err := os.RemoveAll(buildFolder); err != nil {
		return err
	}
	if err := os.MkdirAll(c.GeneratorsFolder(), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.BuildFolder(), 0755); err != nil {
		return err
	}
	if err := c.Execute(ctx, StageGenerate); err != nil {
		return err
	}
	if err := writeEnvScripts(c.GeneratorsFolder(), BuildEnvScriptName, c.BuildEnv); err != nil {
		return err
	}
	if err := writeEnvScripts(c.GeneratorsFolder(), RunEnvScriptName, m.runEnvironment(n)); err != nil {
		return err
	}
	if err := c.Execute(ctx, StageBuild); err != nil {
		return err
	}
	if err := os.RemoveAll(packageFolder); err != nil {
		return err
	}
	if err := os.MkdirAll(packageFolder, 0755); err != nil {
		return err
	}
	if err := c.Execute(ctx, StagePackage); err != nil {
		return err
	}
	if err := c.Execute(ctx, StagePackageInfo); err != nil {
		return err
	}
	if err := CheckPackage(c); err != nil {
		return err
	}
	if err := CheckComponentRequires(c); err != nil {
		return err
	}
	manifest, err := ComputeManifest(packageFolder, n.Ref, c.Info)
	if err != nil {
		return err
	}
	if err := manifest.WriteToFile(); err != nil {
		return fmt.Errorf("failed to write the manifest of %s: %w", n, err)
	}
	return nil
}
