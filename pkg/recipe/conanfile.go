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
	"os"
	"strings"
)

// Command is an external program invocation.
type Command struct {
	Args []string
	// Dir is the working directory. Defaults to the build folder.
	Dir string
	// Env is the complete environment, as returned by os.Environ.
	// If nil, the environment of the current process is used.
	Env []string
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner launches external programs.
// Implementations return an ExternalToolError for non-zero exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// Compatible is an alternative identity whose binary may be used when the
// exact one is missing.
type Compatible struct {
	Settings map[string]string
	Options  map[string]string
}

// ConanfileConfig parameterizes a new Conanfile.
type ConanfileConfig struct {
	// Settings of the context the recipe is evaluated in.
	Settings map[string]string
	// SettingsBuild are the settings of the build machine.
	SettingsBuild map[string]string
	// SettingsTarget is only set for build context recipes, and holds the
	// settings of the consumer the tool produces code for.
	SettingsTarget map[string]string
	// Options override the defaults of the recipe, like the [options] of a
	// profile. The graph applies its own values instead.
	Options   []OptionAssignment
	Conf      *Conf
	ConanData *ConanData
	Runner    Runner
	UI        UI
	Context   Scope
	// RecipeFolder is the folder of the recipe in its index.
	RecipeFolder string
	// Base folders. The manager assigns them from the cache; they are only
	// given here when a Conanfile is driven without a manager.
	ExportFolder  string
	SourceFolder  string
	BuildFolder   string
	PackageFolder string
}

// Conanfile is the instance of a recipe for one binary identity.
// A fresh Conanfile is created for every identity, and moves through the
// lifecycle stages exactly once.
type Conanfile struct {
	Ref            Ref
	Settings       *Settings
	SettingsBuild  *Settings
	SettingsTarget *Settings
	Options        *Options
	Conf           *Conf
	Info           *Info
	Folders        *Folders
	CppInfo        *CppInfo
	BuildEnvInfo   *EnvOverlay
	RunEnvInfo     *EnvOverlay
	ConfInfo       *Conf
	Dependencies   *Dependencies
	ConanData      *ConanData
	Runner         Runner
	UI             UI
	// BuildEnv is the environment build steps run in. It is available from
	// generate on, and contains the contributions of all build requirements.
	BuildEnv *EnvOverlay

	recipe       *Recipe
	packageType  PackageType
	languages    []string
	context      Scope
	stage        Stage
	requirements []*Requirement
	compatibles  []Compatible
	invalid      error
	invalidBuild error
	// Identity text of the requirements, set by the graph.
	identityRequires map[string]string
}

// NewConanfile instantiates the recipe.
func NewConanfile(r *Recipe, cfg ConanfileConfig) (*Conanfile, error) {
	meta := r.meta
	options, err := NewOptions(meta.Options, meta.DefaultOptions)
	if err != nil {
		return nil, WrapFrameworkError(err, "recipe '%s'", meta.Name)
	}
	ui := cfg.UI
	if ui == nil {
		ui = NullUI
	}
	conf := cfg.Conf
	if conf == nil {
		conf = NewConf()
	}
	data := cfg.ConanData
	if data == nil {
		data = &ConanData{}
	}
	folders := &Folders{
		recipeBase:  cfg.RecipeFolder,
		exportBase:  cfg.ExportFolder,
		sourceBase:  cfg.SourceFolder,
		buildBase:   cfg.BuildFolder,
		packageBase: cfg.PackageFolder,
	}
	c := &Conanfile{
		Ref:           r.Ref(),
		Settings:      NewSettings(cfg.Settings).restrict(meta.Settings),
		SettingsBuild: NewSettings(cfg.SettingsBuild),
		Options:       options,
		Conf:          conf.Copy(),
		Folders:       folders,
		CppInfo:       NewCppInfo(),
		BuildEnvInfo:  NewEnvOverlay(),
		RunEnvInfo:    NewEnvOverlay(),
		ConfInfo:      NewConf(),
		Dependencies:  NewDependencies(),
		ConanData:     data,
		Runner:        cfg.Runner,
		UI:            ScopedUI(r.Ref().String(), ui),
		BuildEnv:      NewEnvOverlay(),
		recipe:        r,
		packageType:   meta.PackageType,
		languages:     append([]string{}, meta.Languages...),
		context:       cfg.Context,
		stage:         StageInit,
	}
	if cfg.SettingsTarget != nil {
		c.SettingsTarget = NewSettings(cfg.SettingsTarget)
	}
	c.Options.stage = func() Stage { return c.stage }
	for _, a := range cfg.Options {
		if a.Pattern != "" {
			continue
		}
		if err := c.Options.override(a.Name, a.Value, true); err != nil {
			return nil, err
		}
	}
	c.Settings.guard = func(op string) error {
		return c.checkStage(op, StageConfigOptions, StageConfigure)
	}
	return c, nil
}

// Recipe returns the recipe this Conanfile instantiates.
func (c *Conanfile) Recipe() *Recipe {
	return c.recipe
}

// Name of the package.
func (c *Conanfile) Name() string {
	return c.Ref.Name
}

// Version of the package.
func (c *Conanfile) Version() string {
	return c.Ref.Version
}

// Stage returns the current lifecycle stage.
func (c *Conanfile) Stage() Stage {
	return c.stage
}

// Context returns whether the recipe is evaluated for the host or the
// build machine.
func (c *Conanfile) Context() Scope {
	return c.context
}

// PackageType returns the effective package type.
func (c *Conanfile) PackageType() PackageType {
	return c.packageType
}

// SetPackageType narrows the package type. Only allowed in
// config_options and configure.
func (c *Conanfile) SetPackageType(t PackageType) error {
	if err := c.checkStage("set the package type", StageConfigOptions, StageConfigure); err != nil {
		return err
	}
	if !t.IsValid() {
		return NewFrameworkError("invalid package type '%s'", t)
	}
	c.packageType = t
	return nil
}

// Languages returns the languages the package is written in.
func (c *Conanfile) Languages() []string {
	return append([]string{}, c.languages...)
}

// SetLanguages narrows the languages. Only allowed in configure.
func (c *Conanfile) SetLanguages(languages ...string) error {
	if err := c.checkStage("set the languages", StageConfigure); err != nil {
		return err
	}
	c.languages = append([]string{}, languages...)
	return nil
}

// HasLanguage returns whether the package uses the given language.
func (c *Conanfile) HasLanguage(lang string) bool {
	if len(c.languages) == 0 {
		// Without declaration C and C++ are assumed.
		return lang == "C" || lang == "C++"
	}
	for _, l := range c.languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (c *Conanfile) checkStage(op string, allowed ...Stage) error {
	for _, s := range allowed {
		if c.stage == s {
			return nil
		}
	}
	return NewFrameworkError("%s: can't %s in stage '%s'", c.Ref, op, c.stage)
}

// Requires declares a host requirement. Only allowed in requirements.
func (c *Conanfile) Requires(ref string, traits ...Trait) error {
	if err := c.checkStage("declare requirement "+ref, StageRequirements); err != nil {
		return err
	}
	r, err := newRequirement(ref, ScopeHost, traits)
	if err != nil {
		return WrapFrameworkError(err, "invalid requirement")
	}
	c.requirements = append(c.requirements, r)
	return nil
}

// ToolRequires declares a build requirement.
func (c *Conanfile) ToolRequires(ref string, traits ...Trait) error {
	if err := c.checkStage("declare tool requirement "+ref, StageRequirements, StageBuildRequirements); err != nil {
		return err
	}
	r, err := newRequirement(ref, ScopeBuild, traits)
	if err != nil {
		return WrapFrameworkError(err, "invalid tool requirement")
	}
	c.requirements = append(c.requirements, r)
	return nil
}

// TestRequires declares a host requirement that is only used for tests.
func (c *Conanfile) TestRequires(ref string, traits ...Trait) error {
	if err := c.checkStage("declare test requirement "+ref, StageBuildRequirements); err != nil {
		return err
	}
	r, err := newRequirement(ref, ScopeHost, traits)
	if err != nil {
		return WrapFrameworkError(err, "invalid test requirement")
	}
	r.Test = true
	r.TransitiveHeaders = false
	r.TransitiveLibs = false
	c.requirements = append(c.requirements, r)
	return nil
}

// Requirements returns the declared requirements in declaration order.
func (c *Conanfile) Requirements() []*Requirement {
	return append([]*Requirement{}, c.requirements...)
}

// AddCompatible declares an alternative identity. Only allowed in
// compatibility.
func (c *Conanfile) AddCompatible(compat Compatible) error {
	if err := c.checkStage("declare a compatible binary", StageCompatibility); err != nil {
		return err
	}
	c.compatibles = append(c.compatibles, compat)
	return nil
}

// Compatibles returns the declared alternative identities.
func (c *Conanfile) Compatibles() []Compatible {
	return append([]Compatible{}, c.compatibles...)
}

// Invalid returns the error of validate, if the configuration is invalid.
func (c *Conanfile) Invalid() error {
	return c.invalid
}

// CrossBuilding returns whether the host and the build machine differ.
func (c *Conanfile) CrossBuilding() bool {
	if c.SettingsBuild == nil || len(c.SettingsBuild.values) == 0 {
		return false
	}
	hostOS, buildOS := c.Settings.Get("os"), c.SettingsBuild.Get("os")
	hostArch, buildArch := c.Settings.Get("arch"), c.SettingsBuild.Get("arch")
	if hostOS != "" && buildOS != "" && hostOS != buildOS {
		return true
	}
	if hostArch != "" && buildArch != "" && hostArch != buildArch {
		return true
	}
	return false
}

// CanRun returns whether binaries for the host can be executed on the
// build machine. The conf entry tools.build.cross_building:can_run wins.
func (c *Conanfile) CanRun() bool {
	if c.Conf.Has(ConfCanRun) {
		return c.Conf.GetBool(ConfCanRun, false)
	}
	return !c.CrossBuilding()
}

// SourceFolder is a shortcut for Folders.SourceFolder.
func (c *Conanfile) SourceFolder() string {
	return c.Folders.SourceFolder()
}

// BuildFolder is a shortcut for Folders.BuildFolder.
func (c *Conanfile) BuildFolder() string {
	return c.Folders.BuildFolder()
}

// GeneratorsFolder is a shortcut for Folders.GeneratorsFolder.
func (c *Conanfile) GeneratorsFolder() string {
	return c.Folders.GeneratorsFolder()
}

// PackageFolder is a shortcut for Folders.PackageFolder.
func (c *Conanfile) PackageFolder() string {
	return c.Folders.PackageFolder()
}

// RecipeFolder is a shortcut for Folders.RecipeFolder.
func (c *Conanfile) RecipeFolder() string {
	return c.Folders.RecipeFolder()
}

// PathSeparator returns the path list separator of the build machine.
func (c *Conanfile) PathSeparator() string {
	if c.SettingsBuild.Get("os") == OSWindows {
		return ";"
	}
	if c.SettingsBuild.Get("os") == "" && os.PathListSeparator == ';' {
		return ";"
	}
	return ":"
}

// Environ returns the process environment with the build environment
// applied.
func (c *Conanfile) Environ() []string {
	return c.BuildEnv.Environ(os.Environ(), c.PathSeparator())
}

// Run executes the command in the build folder, within the build
// environment, and returns its output.
func (c *Conanfile) Run(ctx context.Context, args ...string) (string, error) {
	return c.RunIn(ctx, c.BuildFolder(), args...)
}

// RunIn executes the command in the given directory.
func (c *Conanfile) RunIn(ctx context.Context, dir string, args ...string) (string, error) {
	if c.Runner == nil {
		return "", NewFrameworkError("%s: no runner configured", c.Ref)
	}
	if len(args) == 0 {
		return "", NewFrameworkError("%s: empty command", c.Ref)
	}
	return c.Runner.Run(ctx, Command{Args: args, Dir: dir, Env: c.Environ()})
}
