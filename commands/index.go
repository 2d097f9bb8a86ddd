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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/tracking"
)

func indexCommands(handler *recipeHandler, errorCfgRun func(CobraErrorCommand) CobraCommand) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manages recipe indexes",
	}

	addIndexCmd := &cobra.Command{
		Use:   "add <name> <URL>",
		Short: "Adds an index",
		Long: `Adds a recipe index.

The 'name' of the index must not be used yet.

By default the 'URL' is interpreted as Git-URL.
If the '--local' flag is used, then the 'URL' is interpreted as local
path to a folder with a 'recipes' directory.`,
		Example: `  # Add the conan center index.
  trecipe index add conan-center github.com/conan-io/conan-center-index
`,
		Run:  errorCfgRun(handler.indexAdd),
		Args: cobra.ExactArgs(2),
	}
	addIndexCmd.Flags().Bool("local", false, "Index is local")
	indexCmd.AddCommand(addIndexCmd)

	removeIndexCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Removes an index",
		Long: `Removes an index.

The 'name' of the index you want to remove.`,
		Run:  errorCfgRun(handler.indexRemove),
		Args: cobra.ExactArgs(1),
	}
	indexCmd.AddCommand(removeIndexCmd)

	syncIndexCmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronizes all indexes",
		Long: `Synchronizes indexes.

If no argument is given, synchronizes all indexes.
Otherwise only the indexes with the given names are synchronized.`,
		Run:  errorCfgRun(handler.indexSync),
		Args: cobra.ArbitraryArgs,
	}
	syncIndexCmd.Flags().BoolP("clear-cache", "", false, "Clear the index cache before synchronizing")
	indexCmd.AddCommand(syncIndexCmd)

	listIndexesCmd := &cobra.Command{
		Use:   "list",
		Short: "List indexes",
		Run:   errorCfgRun(handler.indexList),
		Args:  cobra.NoArgs,
	}
	indexCmd.AddCommand(listIndexesCmd)

	return indexCmd
}

func (h *recipeHandler) indexList(cmd *cobra.Command, args []string) error {
	configs := h.getIndexConfigsOrDefault()
	for _, config := range configs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", config.Name, config.Path, config.Kind)
	}
	return nil
}

func (h *recipeHandler) indexAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cache := h.buildCache()
	isLocal, err := cmd.Flags().GetBool("local")
	if err != nil {
		return err
	}
	name := args[0]
	pathOrURL := args[1]
	var kind recipe.IndexKind = recipe.IndexKindGit
	if isLocal {
		kind = recipe.IndexKindLocal
		abs, err := filepath.Abs(pathOrURL)
		if err != nil {
			h.ui.ReportError("Invalid index: %v", err)
			return newExitError(1)
		}
		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			h.ui.ReportError("Path doesn't exist: %v", err)
			return newExitError(1)
		} else if err != nil {
			return err
		} else if !info.IsDir() {
			h.ui.ReportError("Path isn't a directory: '%s'", abs)
			return newExitError(1)
		}
		pathOrURL = abs
	}
	configs := h.getIndexConfigsOrDefault()
	// Check that we don't already have an index with that name.
	for _, config := range configs {
		if config.Name == name {
			if config.Kind != kind || config.Path != pathOrURL {
				h.ui.ReportError("Index '%s' already exists", name)
				return newExitError(1)
			}
			// Already exists with the same config.
			if h.hasIndexConfigs() {
				return nil
			}
			// Already exists, but not saved in the configuration file.
			return h.saveIndexConfigs(ctx, configs)
		}
	}
	indexConfig := recipe.IndexConfig{
		Name: name,
		Kind: kind,
		Path: pathOrURL,
	}
	trackProperties := map[string]string{
		"name": name,
		"kind": string(kind),
	}
	if kind == recipe.IndexKindGit {
		trackProperties["url"] = pathOrURL
	}
	h.track(ctx, &tracking.Event{
		Name:       "trecipe index add",
		Properties: trackProperties,
	})

	sync := true
	clearCache := false
	_, err = indexConfig.Load(ctx, sync, clearCache, cache, h.ui)

	if err != nil {
		if !recipe.IsErrAlreadyReported(err) {
			return h.ui.ReportError("Index '%s' has errors: %v", name, err)
		}
		return err
	}
	configs = append(configs, indexConfig)
	return h.saveIndexConfigs(ctx, configs)
}

func (h *recipeHandler) indexRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]
	configs := h.getIndexConfigsOrDefault()
	index := -1
	for i, config := range configs {
		if config.Name == name {
			index = i
			break
		}
	}

	if index == -1 {
		h.ui.ReportError("Index '%s' does not exist", name)
		return newExitError(1)
	}

	h.track(ctx, &tracking.Event{
		Name: "trecipe index remove",
		Properties: map[string]string{
			"name": configs[index].Name,
			"path": configs[index].Path,
		},
	})

	remaining := append(recipe.IndexConfigs{}, configs[:index]...)
	remaining = append(remaining, configs[index+1:]...)
	return h.saveIndexConfigs(ctx, remaining)
}

func (h *recipeHandler) indexSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	clearCache, err := cmd.Flags().GetBool("clear-cache")
	if err != nil {
		return err
	}
	cache := h.buildCache()
	configs := h.getIndexConfigsOrDefault()

	var configsToSync []recipe.IndexConfig

	syncAll := len(args) == 0
	if syncAll {
		configsToSync = configs
	} else {
		nameToConfig := map[string]recipe.IndexConfig{}
		for _, config := range configs {
			nameToConfig[config.Name] = config
		}
		for _, toSyncName := range args {
			config, ok := nameToConfig[toSyncName]
			if !ok {
				h.ui.ReportWarning("Index '%s' not found", toSyncName)
			} else {
				configsToSync = append(configsToSync, config)
			}
		}
	}

	hasErrors := false
	for _, config := range configsToSync {
		sync := true
		h.ui.ReportInfo("Syncing '%s'", config.Name)
		_, err := config.Load(ctx, sync, clearCache, cache, h.ui)
		if err != nil {
			if !recipe.IsErrAlreadyReported(err) {
				h.ui.ReportError("Error while syncing '%s': '%v'", config.Name, err)
			} else {
				h.ui.ReportError("Error while syncing '%s'", config.Name)
			}
			hasErrors = true
		}
	}
	if hasErrors {
		return newExitError(1)
	}
	return nil
}
