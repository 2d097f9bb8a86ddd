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

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toitlang/trecipe/config"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/tracking"
)

type ConfigStore interface {
	Load(ctx context.Context) (*Config, error)
	Store(ctx context.Context, cfg *Config) error
}

type Config struct {
	// Home is the root of the package cache.
	Home            string
	IndexCachePaths []string
	DownloadCache   string
	// Default profiles. Empty means detected.
	HostProfile  string
	BuildProfile string

	// The following entries must be `nil` if they are not set in the
	// configuration.
	// Note that viper changes empty lists to `nil` so it's important to
	// check for that case.
	IndexConfigs recipe.IndexConfigs
	Autosync     *bool
}

var defaultIndex = recipe.IndexConfig{
	Name: "conan-center",
	Kind: recipe.IndexKindGit,
	Path: "github.com/conan-io/conan-center-index",
}

func (h *recipeHandler) getIndexConfigsOrDefault() recipe.IndexConfigs {
	if h.hasIndexConfigs() {
		return h.cfg.IndexConfigs
	}
	return []recipe.IndexConfig{defaultIndex}
}

func (h *recipeHandler) hasIndexConfigs() bool {
	return h.cfg.IndexConfigs != nil
}

func (h *recipeHandler) saveIndexConfigs(ctx context.Context, configs recipe.IndexConfigs) error {
	h.cfg.IndexConfigs = configs
	return h.saveConfigs(ctx)
}

func (h *recipeHandler) saveConfigs(ctx context.Context) error {
	return h.cfgStore.Store(ctx, h.cfg)
}

type CobraCommand func(cmd *cobra.Command, args []string)
type CobraErrorCommand func(cmd *cobra.Command, args []string) error
type Run func(CobraErrorCommand) CobraCommand

// WithSilent is implemented by errors that have already been reported.
type WithSilent interface {
	Silent() bool
}

// WithExitCode is implemented by errors that carry the exit code of the
// process.
type WithExitCode interface {
	ExitCode() int
}

// DefaultRunWrapper prints the error of the command, unless it is silent,
// and exits with its code.
func DefaultRunWrapper(f CobraErrorCommand) CobraCommand {
	return func(cmd *cobra.Command, args []string) {
		err := f(cmd, args)
		if err == nil {
			return
		}
		var silent WithSilent
		if !errors.As(err, &silent) || !silent.Silent() {
			fmt.Fprintln(os.Stderr, err)
		}
		code := 1
		var withCode WithExitCode
		if errors.As(err, &withCode) {
			code = withCode.ExitCode()
		}
		os.Exit(code)
	}
}

func (h *recipeHandler) buildCache() recipe.Cache {
	options := []recipe.CacheOption{
		recipe.WithIndexCachePath(h.cfg.IndexCachePaths...),
	}
	if h.cfg.DownloadCache != "" {
		options = append(options, recipe.WithDownloadCache(h.cfg.DownloadCache))
	}
	return recipe.NewCache(h.cfg.Home, h.ui, options...)
}

func (h *recipeHandler) shouldAutoSync(cmd *cobra.Command) (bool, error) {
	if cmd.Flags().Changed("auto-sync") || h.cfg.Autosync == nil {
		return cmd.Flags().GetBool("auto-sync")
	}
	return *h.cfg.Autosync, nil
}

func (h *recipeHandler) buildManager(cmd *cobra.Command) (*recipe.Manager, recipe.Cache, error) {
	cache := h.buildCache()
	if err := cache.CreateCacheDir(h.ui); err != nil {
		return nil, cache, err
	}
	sync, err := h.shouldAutoSync(cmd)
	if err != nil {
		return nil, cache, err
	}
	indexes, err := h.loadUserIndexes(cmd.Context(), sync, cache)
	if err != nil {
		return nil, cache, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, cache, err
	}
	runner := recipe.ExecRunner{UI: h.ui, Verbose: verbose}
	provider := recipe.NewIndexProvider(h.catalog, indexes)
	return recipe.NewManager(cache, provider, runner, h.ui), cache, nil
}

// Loads all indexes as specified by the user's configuration.
func (h *recipeHandler) loadUserIndexes(ctx context.Context, shouldAutoSync bool, cache recipe.Cache) (recipe.Indexes, error) {
	configs := h.getIndexConfigsOrDefault()
	return configs.Load(ctx, shouldAutoSync, cache, h.ui)
}

func (h *recipeHandler) loadProfile(name string) (*recipe.Profile, error) {
	if name == "" {
		return recipe.DetectProfile(), nil
	}
	path, err := config.ProfilePath(name)
	if err != nil {
		return nil, err
	}
	p, err := recipe.ReadProfile(path)
	if err != nil {
		return nil, h.ui.ReportError("Failed to load profile '%s': %v", name, err)
	}
	return p, nil
}

// loadProfiles returns the host and build profiles. Command line settings,
// options and conf apply to the host profile.
func (h *recipeHandler) loadProfiles(cmd *cobra.Command) (*recipe.Profile, *recipe.Profile, error) {
	flags := cmd.Flags()
	hostName, err := flags.GetString("profile")
	if err != nil {
		return nil, nil, err
	}
	if hostName == "" {
		hostName = h.cfg.HostProfile
	}
	buildName, err := flags.GetString("profile-build")
	if err != nil {
		return nil, nil, err
	}
	if buildName == "" {
		buildName = h.cfg.BuildProfile
	}
	host, err := h.loadProfile(hostName)
	if err != nil {
		return nil, nil, err
	}
	build, err := h.loadProfile(buildName)
	if err != nil {
		return nil, nil, err
	}
	settings, errSettings := flags.GetStringArray("settings")
	options, errOptions := flags.GetStringArray("options")
	conf, errConf := flags.GetStringArray("conf")
	if err := FirstError(errSettings, errOptions, errConf); err != nil {
		return nil, nil, err
	}
	if err := host.Update(settings, options, conf); err != nil {
		return nil, nil, h.ui.ReportError("%v", err)
	}
	return host, build, nil
}

func (h *recipeHandler) parseRef(arg string) (recipe.Ref, error) {
	ref, err := recipe.ParseRef(arg)
	if err != nil {
		return recipe.Ref{}, h.ui.ReportError("%v", err)
	}
	return ref, nil
}

// reportFailure reports errors that haven't been reported yet.
func (h *recipeHandler) reportFailure(err error) error {
	if err == nil || recipe.IsErrAlreadyReported(err) {
		return err
	}
	return h.ui.ReportError("%v", err)
}

type recipeHandler struct {
	cfg      *Config
	cfgStore ConfigStore
	ui       recipe.UI
	track    tracking.Track
	catalog  *recipe.Catalog
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("profile", "p", "", "Profile of the host machine")
	cmd.Flags().String("profile-build", "", "Profile of the build machine")
	cmd.Flags().StringArrayP("settings", "s", nil, "Host setting 'key=value'")
	cmd.Flags().StringArrayP("options", "o", nil, "Option '[pattern:]name=value'")
	cmd.Flags().StringArrayP("conf", "c", nil, "Conf entry 'key=value'")
}

// Recipe returns the root command of the tool.
func Recipe(run Run, track tracking.Track, configStore ConfigStore, ui recipe.UI, catalog *recipe.Catalog) (*cobra.Command, error) {
	if ui == nil {
		ui = recipeUI
	}
	if track == nil {
		track = tracking.Nop
	}

	handler := &recipeHandler{
		cfgStore: configStore,
		ui:       ui,
		track:    track,
		catalog:  catalog,
	}

	// 1. Loads the config before invoking the command.
	// 2. Intercepts any error and checks if it is an already-reported error.
	//    If it is, replaces it with a silent error.
	//    Otherwise returns it to the caller.
	// 3. Wraps the call into the given 'run' function.
	errorCfgRun := func(f CobraErrorCommand) CobraCommand {
		return run(func(cmd *cobra.Command, args []string) error {
			if handler.cfg == nil {
				cfg, err := handler.cfgStore.Load(cmd.Context())
				if err != nil {
					return err
				}
				handler.cfg = cfg
			}

			err := f(cmd, args)

			if recipe.IsErrAlreadyReported(err) {
				return newExitError(1)
			}
			return err
		})
	}

	cmd := &cobra.Command{
		Use:              "trecipe",
		Short:            "Build C and C++ packages from recipes",
		TraverseChildren: true,
	}
	cmd.PersistentFlags().Bool("auto-sync", true, "automatically synchronize indexes")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Show more information")

	createCmd := &cobra.Command{
		Use:   "create <name>/<version>",
		Short: "Builds the package and its missing dependencies",
		Long: `Builds the binary of the given package for the host profile.

Dependencies are taken from the cache. Missing dependencies are built
from their recipes, unless '--build=never' is given. With '--build=always'
every binary of the graph is rebuilt.

The package folder of the new binary is printed on success.`,
		Example: `  # Build eigen for the detected machine.
  trecipe create eigen/3.4.0

  # Build a shared libigl with a profile, using existing binaries only.
  trecipe create libigl/2.5.0 -p linux-gcc12 -o shared=True --build=never

  # Version ranges select the highest version of the indexes.
  trecipe create "gmp/[>=6.2 <7]" -s build_type=Debug`,
		Run:  errorCfgRun(handler.create),
		Args: cobra.ExactArgs(1),
	}
	addProfileFlags(createCmd)
	createCmd.Flags().String("build", string(recipe.BuildMissing), "Build policy of the dependencies (missing, never, always)")
	cmd.AddCommand(createCmd)

	infoCmd := &cobra.Command{
		Use:   "info <name>/<version>",
		Short: "Shows the identity of every package of the graph",
		Long: `Expands the dependency graph and shows, for every node, its package
type, package id and the settings, options and requirements that are part
of the identity. Invalid configurations are shown with their reason.`,
		Run:  errorCfgRun(handler.info),
		Args: cobra.ExactArgs(1),
	}
	addProfileFlags(infoCmd)
	infoCmd.Flags().String("format", "text", "Defines the output format (valid: 'text', 'json')")
	cmd.AddCommand(infoCmd)

	graphCmd := &cobra.Command{
		Use:   "graph <name>/<version>",
		Short: "Prints the dependency graph",
		Run:   errorCfgRun(handler.graph),
		Args:  cobra.ExactArgs(1),
	}
	addProfileFlags(graphCmd)
	cmd.AddCommand(graphCmd)

	sourceCmd := &cobra.Command{
		Use:   "source <name>/<version>",
		Short: "Fetches and patches the sources of a package",
		Long: `Runs the source stage of the package and prints the source folder.

The source folder is shared by all binaries of the package. It is only
fetched once.`,
		Run:  errorCfgRun(handler.source),
		Args: cobra.ExactArgs(1),
	}
	addProfileFlags(sourceCmd)
	cmd.AddCommand(sourceCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the recipes of all indexes",
		Long: `Lists the recipes of all indexes.

Recipes without an implementation are marked as such.
If '--cached' is given, lists the binaries of the cache instead.`,
		Run:  errorCfgRun(handler.list),
		Args: cobra.NoArgs,
	}
	listCmd.Flags().Bool("cached", false, "List the binaries of the cache")
	cmd.AddCommand(listCmd)

	newCmd := &cobra.Command{
		Use:   "new <name>/<version>",
		Short: "Adds a recipe version to a local index",
		Long: `Adds a version of a recipe to a local index.

Creates 'recipes/<name>/config.yml', mapping the version to the 'all'
folder, and adds the source archive to 'recipes/<name>/all/conandata.yml'.

If the --index flag is not given, the current directory is used.`,
		Example: `  trecipe new eigen/3.4.0 --url=https://gitlab.com/libeigen/eigen/-/archive/3.4.0/eigen-3.4.0.tar.bz2 \
    --sha256=b4c198460eba6f28d34894e3a5710998818515104d6e74e5cc331ce31e46e626`,
		Run:  errorCfgRun(handler.newRecipe),
		Args: cobra.ExactArgs(1),
	}
	newCmd.Flags().String("index", "", "Root of the local index")
	newCmd.Flags().StringArray("url", nil, "URL of the source archive (repeat for mirrors)")
	newCmd.Flags().String("sha256", "", "Digest of the source archive")
	cmd.AddCommand(newCmd)

	cmd.AddCommand(indexCommands(handler, errorCfgRun))

	return cmd, nil
}

type exitError struct {
	code int
}

func (e *exitError) ExitCode() int {
	return e.code
}

func (e *exitError) Silent() bool {
	return true
}

func (e *exitError) Error() string {
	return fmt.Sprintf("ExitError - exit code: %d", e.code)
}

func newExitError(code int) *exitError {
	return &exitError{
		code: code,
	}
}

var recipeUI = recipe.FmtUI

func (h *recipeHandler) create(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ref, err := h.parseRef(args[0])
	if err != nil {
		return err
	}
	policy, err := cmd.Flags().GetString("build")
	if err != nil {
		return err
	}
	if !recipe.BuildPolicy(policy).IsValid() {
		h.ui.ReportError("Unknown build policy '%s'", policy)
		return newExitError(1)
	}
	host, build, err := h.loadProfiles(cmd)
	if err != nil {
		return err
	}
	m, _, err := h.buildManager(cmd)
	if err != nil {
		return err
	}

	h.track(ctx, &tracking.Event{
		Name: "trecipe create",
		Properties: map[string]string{
			"ref":    ref.String(),
			"policy": policy,
		},
	})

	g, err := m.Create(ctx, ref, host, build, recipe.BuildPolicy(policy))
	if err != nil {
		if policy == string(recipe.BuildNever) && !recipe.IsErrAlreadyReported(err) {
			err = h.ui.ReportError(`%v
  Run with '--build=missing' to build it: %s`, err, recipe.QuoteCommand(withFlag(os.Args, "--build=missing")))
		}
		return h.reportFailure(err)
	}
	root := g.Root
	h.ui.ReportInfo("Package '%s' created: %s", root.Ref, root.PackageID())
	fmt.Fprintln(cmd.OutOrStdout(), root.Conanfile.PackageFolder())
	return nil
}

// withFlag returns args with the '--build' flag replaced.
func withFlag(args []string, flag string) []string {
	result := []string{}
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--build=") && !strings.HasPrefix(arg, "--build ") {
			result = append(result, arg)
		}
	}
	return append(result, flag)
}

func (h *recipeHandler) loadGraph(cmd *cobra.Command, arg string) (*recipe.Graph, error) {
	ref, err := h.parseRef(arg)
	if err != nil {
		return nil, err
	}
	host, build, err := h.loadProfiles(cmd)
	if err != nil {
		return nil, err
	}
	m, _, err := h.buildManager(cmd)
	if err != nil {
		return nil, err
	}
	g, err := m.Graph(cmd.Context(), ref, host, build)
	if err != nil {
		return nil, h.reportFailure(err)
	}
	return g, nil
}

type nodeInfo struct {
	Ref         string            `json:"ref"`
	Context     string            `json:"context"`
	PackageType string            `json:"package_type"`
	PackageID   string            `json:"package_id,omitempty"`
	Invalid     string            `json:"invalid,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
}

func newNodeInfo(n *recipe.Node) nodeInfo {
	c := n.Conanfile
	result := nodeInfo{
		Ref:         n.Ref.String(),
		Context:     n.Context.String(),
		PackageType: string(c.PackageType()),
		PackageID:   n.PackageID(),
		Settings:    c.Info.Settings.Values(),
		Options:     c.Info.Options.Values(),
	}
	for _, k := range c.Info.Requires.Keys() {
		result.Requires = append(result.Requires, c.Info.Requires.Get(k))
	}
	if err := n.Invalid(); err != nil {
		result.Invalid = err.Error()
	}
	return result
}

func printNodeInfo(w io.Writer, info nodeInfo) {
	fmt.Fprintf(w, "%s:\n", info.Ref)
	fmt.Fprintf(w, "  context: %s\n", info.Context)
	fmt.Fprintf(w, "  package_type: %s\n", info.PackageType)
	if info.Invalid != "" {
		fmt.Fprintf(w, "  invalid: %s\n", info.Invalid)
	} else {
		fmt.Fprintf(w, "  package_id: %s\n", info.PackageID)
	}
	printSection := func(name string, values map[string]string) {
		if len(values) == 0 {
			return
		}
		fmt.Fprintf(w, "  %s:\n", name)
		for _, k := range sortedKeys(values) {
			fmt.Fprintf(w, "    %s=%s\n", k, values[k])
		}
	}
	printSection("settings", info.Settings)
	printSection("options", info.Options)
	if len(info.Requires) > 0 {
		fmt.Fprintf(w, "  requires:\n")
		for _, r := range info.Requires {
			fmt.Fprintf(w, "    %s\n", r)
		}
	}
}

func (h *recipeHandler) info(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		h.ui.ReportError("Unknown format '%s'", format)
		return newExitError(1)
	}
	g, err := h.loadGraph(cmd, args[0])
	if err != nil {
		return err
	}
	infos := []nodeInfo{}
	for _, n := range g.Order() {
		infos = append(infos, newNodeInfo(n))
	}
	out := cmd.OutOrStdout()
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}
	for _, info := range infos {
		printNodeInfo(out, info)
	}
	return nil
}

func (h *recipeHandler) graph(cmd *cobra.Command, args []string) error {
	g, err := h.loadGraph(cmd, args[0])
	if err != nil {
		return err
	}
	return g.Render(cmd.OutOrStdout())
}

func (h *recipeHandler) source(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ref, err := h.parseRef(args[0])
	if err != nil {
		return err
	}
	host, _, err := h.loadProfiles(cmd)
	if err != nil {
		return err
	}
	m, _, err := h.buildManager(cmd)
	if err != nil {
		return err
	}
	h.track(ctx, &tracking.Event{
		Name: "trecipe source",
		Properties: map[string]string{
			"ref": ref.String(),
		},
	})
	folder, err := m.Source(ctx, ref, host)
	if err != nil {
		return h.reportFailure(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), folder)
	return nil
}

func (h *recipeHandler) list(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cached, err := cmd.Flags().GetBool("cached")
	if err != nil {
		return err
	}
	cache := h.buildCache()
	if cached {
		refs, err := cache.Refs()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			ids, err := cache.PackageIDs(ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s:\n", ref)
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
		}
		return nil
	}

	sync, err := h.shouldAutoSync(cmd)
	if err != nil {
		return err
	}
	indexes, err := h.loadUserIndexes(cmd.Context(), sync, cache)
	if err != nil {
		return err
	}
	for _, index := range indexes {
		fmt.Fprintf(out, "%s:\n", index.Describe())
		for _, entry := range index.Entries() {
			line := fmt.Sprintf("  %s: %s", entry.Name, strings.Join(entry.Versions.List(), ", "))
			if _, ok := h.catalog.Lookup(entry.Name, recipe.AnyFolder); !ok && !h.hasAnyFolder(entry) {
				line += " (no recipe)"
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

// hasAnyFolder returns whether the catalog implements one of the recipe
// folders of the entry.
func (h *recipeHandler) hasAnyFolder(entry *recipe.IndexEntry) bool {
	for _, v := range entry.Versions.List() {
		folder, err := entry.Versions.Folder(v)
		if err != nil {
			continue
		}
		if _, ok := h.catalog.Lookup(entry.Name, folder); ok {
			return true
		}
	}
	return false
}

func (h *recipeHandler) newRecipe(cmd *cobra.Command, args []string) error {
	ref, err := h.parseRef(args[0])
	if err != nil {
		return err
	}
	if ref.User != "" {
		h.ui.ReportError("Index recipes can't have a user and channel: '%s'", ref)
		return newExitError(1)
	}
	root, err := cmd.Flags().GetString("index")
	if err != nil {
		return err
	}
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	urls, err := cmd.Flags().GetStringArray("url")
	if err != nil {
		return err
	}
	sha, err := cmd.Flags().GetString("sha256")
	if err != nil {
		return err
	}
	source := recipe.SourceEntry{URLs: urls, SHA256: strings.ToLower(sha)}
	err = recipe.NewRecipeVersion(root, ref.Name, ref.Version, source, h.ui)
	if IsAlreadyExistsError(err) {
		return h.ui.ReportError(ErrorMessage(err))
	} else if err != nil {
		return err
	}
	h.track(cmd.Context(), &tracking.Event{
		Name: "trecipe new",
		Properties: map[string]string{
			"ref": ref.String(),
		},
	})
	return nil
}
