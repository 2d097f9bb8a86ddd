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

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	indexCacheSubDir    = "indexes"
	downloadCacheSubDir = "downloads"
	// HomeEnv overrides the folder holding the package cache, the index
	// checkouts and the download cache.
	HomeEnv = "TRECIPE_HOME"
	// IndexCachePathsEnv contains additional ':' separated paths where git
	// indexes are looked up. The first one is used for new checkouts.
	IndexCachePathsEnv = "TRECIPE_INDEX_CACHE_PATHS"
	// UserConfigDirEnv if set, will be the directory the user config will be loaded from.
	UserConfigDirEnv = "TRECIPE_USER_CONFIG_DIR"
)

func EnsureDirectory(dir string, err error) (string, error) {
	if err != nil {
		return dir, err
	}
	return dir, os.MkdirAll(dir, 0755)
}

// HomePath returns the root of the cache.
func HomePath() (string, error) {
	if p, ok := os.LookupEnv(HomeEnv); ok && p != "" {
		return p, nil
	}
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".cache", "trecipe"), nil
}

func homePathFor(subDir string) (string, error) {
	home, err := HomePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, subDir), nil
}

func computeCachePaths(envName string, defaultSubdir string) ([]string, error) {
	variable, exists := os.LookupEnv(envName)
	if exists {
		parts := []string{}
		for _, p := range strings.Split(variable, string(os.PathListSeparator)) {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) != 0 {
			return parts, nil
		}
	}
	defaultPath, err := homePathFor(defaultSubdir)
	if err != nil {
		return nil, err
	}
	return []string{
		defaultPath,
	}, nil
}

// IndexCachePaths returns the locations of git index checkouts.
func IndexCachePaths() ([]string, error) {
	return computeCachePaths(IndexCachePathsEnv, indexCacheSubDir)
}

// DownloadCachePath returns the folder of downloaded source archives.
func DownloadCachePath() (string, error) {
	return homePathFor(downloadCacheSubDir)
}
