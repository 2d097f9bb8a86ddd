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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toitlang/trecipe/commands"
	"github.com/toitlang/trecipe/config"
	"github.com/toitlang/trecipe/config/store"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/recipes"
	"github.com/toitlang/trecipe/pkg/tracking"
)

func getTrimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// newUI selects how messages are reported. Structured logs go to stderr.
func newUI(format string) recipe.UI {
	switch format {
	case "json":
		return recipe.NewLogUI(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	case "text":
		return recipe.NewLogUI(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
	return recipe.FmtUI
}

func main() {
	cfgFile := getTrimmedEnv("TRECIPE_CONFIG_FILE")
	home := getTrimmedEnv(config.HomeEnv)
	noDefaultIndex := getTrimmedEnv("TRECIPE_NO_DEFAULT_INDEX")
	shouldPrintTracking := getTrimmedEnv("TRECIPE_SHOULD_PRINT_TRACKING")
	noAutosync := getTrimmedEnv("TRECIPE_NO_AUTO_SYNC")
	logFormat := getTrimmedEnv("TRECIPE_LOG_FORMAT")

	track := tracking.Track(tracking.Nop)
	if shouldPrintTracking != "" {
		track = tracking.NewPrinter(os.Stdout)
	}

	ui := newUI(logFormat)

	configStore := store.NewViper(home, noAutosync != "", noDefaultIndex != "")
	cobra.OnInitialize(func() {
		if cfgFile == "" {
			cfgFile, _ = config.UserConfigFile()
		}
		if err := configStore.Init(cfgFile); err != nil {
			ui.ReportWarning("Failed to read config file '%s': %v", cfgFile, err)
		}
	})

	rootCmd, err := commands.Recipe(commands.DefaultRunWrapper, track, configStore, ui, recipes.Catalog())
	if err != nil {
		e, ok := err.(commands.WithSilent)
		if !ok || !e.Silent() {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
