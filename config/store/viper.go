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

package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/toitlang/trecipe/commands"
	"github.com/toitlang/trecipe/config"
	"github.com/toitlang/trecipe/pkg/recipe"
)

type Viper struct {
	v              *viper.Viper
	home           string
	noAutosync     bool
	noDefaultIndex bool
}

func NewViper(home string, noAutosync bool, noDefaultIndex bool) *Viper {
	return &Viper{
		v:              viper.New(),
		home:           home,
		noAutosync:     noAutosync,
		noDefaultIndex: noDefaultIndex,
	}
}

const configKeyIndexes = "recipe.indexes"
const configKeyAutosync = "recipe.autosync"
const configKeyHostProfile = "recipe.profile.host"
const configKeyBuildProfile = "recipe.profile.build"

// Init reads the given config file. A missing file is not an error; it is
// created on the first Store.
func (vc *Viper) Init(cfgFile string) error {
	vc.v.SetConfigFile(cfgFile)
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return nil
	}
	return vc.v.ReadInConfig()
}

func (vc *Viper) Load(ctx context.Context) (*commands.Config, error) {
	result := commands.Config{}

	if vc.home == "" {
		var err error
		result.Home, err = config.HomePath()
		if err != nil {
			return nil, err
		}
		result.DownloadCache, err = config.DownloadCachePath()
		if err != nil {
			return nil, err
		}
	} else {
		result.Home = vc.home
		result.DownloadCache = filepath.Join(vc.home, "downloads")
	}
	if _, ok := os.LookupEnv(config.IndexCachePathsEnv); ok {
		paths, err := config.IndexCachePaths()
		if err != nil {
			return nil, err
		}
		result.IndexCachePaths = paths
	}

	result.HostProfile = vc.v.GetString(configKeyHostProfile)
	result.BuildProfile = vc.v.GetString(configKeyBuildProfile)

	if vc.v.IsSet(configKeyIndexes) {
		err := vc.v.UnmarshalKey(configKeyIndexes, &result.IndexConfigs)
		if err != nil {
			return nil, err
		}
		if result.IndexConfigs == nil {
			// Viper seems to just ignore empty lists.
			result.IndexConfigs = recipe.IndexConfigs{}
		}
	} else if vc.noDefaultIndex {
		result.IndexConfigs = recipe.IndexConfigs{}
	}

	if vc.noAutosync {
		sync := false
		result.Autosync = &sync
	} else if vc.v.IsSet(configKeyAutosync) {
		sync := vc.v.GetBool(configKeyAutosync)
		result.Autosync = &sync
	}

	return &result, nil
}

func (vc *Viper) Store(ctx context.Context, cfg *commands.Config) error {
	if cfg.Autosync != nil {
		vc.v.Set(configKeyAutosync, *cfg.Autosync)
	}
	if cfg.IndexConfigs != nil {
		vc.v.Set(configKeyIndexes, cfg.IndexConfigs)
	}
	if cfg.HostProfile != "" {
		vc.v.Set(configKeyHostProfile, cfg.HostProfile)
	}
	if cfg.BuildProfile != "" {
		vc.v.Set(configKeyBuildProfile, cfg.BuildProfile)
	}
	return vc.v.WriteConfig()
}
