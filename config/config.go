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

const profilesSubDir = "profiles"

func UserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigDirEnv); ok {
		return path, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "trecipe"), nil
}

func UserConfigFile() (string, bool) {
	if homedir, err := EnsureDirectory(UserConfigPath()); err == nil {
		return filepath.Join(homedir, "config.yaml"), true
	}
	return "", false
}

// ProfilePath resolves a profile argument.
// Plain names refer to files in the profiles folder of the user config;
// anything that looks like a path is returned unchanged.
func ProfilePath(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	dir, err := UserConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, profilesSubDir, name), nil
}
