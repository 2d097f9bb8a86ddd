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

package files

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/ulikunitz/xz"
)

type testUI struct {
	messages []string
}

func (ui *testUI) ReportError(format string, a ...interface{}) error {
	ui.messages = append(ui.messages, fmt.Sprintf("Error: "+format, a...))
	return recipe.ErrAlreadyReported
}

func (ui *testUI) ReportWarning(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Warning: "+format, a...))
}

func (ui *testUI) ReportInfo(format string, a ...interface{}) {
	ui.messages = append(ui.messages, fmt.Sprintf("Info: "+format, a...))
}

func (ui *testUI) contains(substr string) bool {
	for _, m := range ui.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type recordingRunner struct {
	commands []recipe.Command
	onRun    func(cmd recipe.Command) (string, error)
}

func (r *recordingRunner) Run(ctx context.Context, cmd recipe.Command) (string, error) {
	r.commands = append(r.commands, cmd)
	if r.onRun != nil {
		return r.onRun(cmd)
	}
	return "", nil
}

func (r *recordingRunner) lines() []string {
	result := []string{}
	for _, c := range r.commands {
		result = append(result, strings.Join(c.Args, " "))
	}
	return result
}

type testEnv struct {
	c      *recipe.Conanfile
	ui     *testUI
	runner *recordingRunner
	root   string
}

type envConfig struct {
	settings    map[string]string
	packageType recipe.PackageType
	conf        map[string]interface{}
	conanData   string
	version     string
}

var linuxSettings = map[string]string{
	"os":         "Linux",
	"arch":       "x86_64",
	"compiler":   "gcc",
	"build_type": "Release",
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	root := t.TempDir()
	if cfg.settings == nil {
		cfg.settings = linuxSettings
	}
	if cfg.packageType == "" {
		cfg.packageType = recipe.StaticLibrary
	}
	if cfg.version == "" {
		cfg.version = "1.0"
	}
	conf := recipe.NewConf()
	require.NoError(t, conf.Define(recipe.ConfDownloadRetry, 0))
	for k, v := range cfg.conf {
		require.NoError(t, conf.Define(k, v))
	}
	data := &recipe.ConanData{}
	if cfg.conanData != "" {
		require.NoError(t, data.ParseString(cfg.conanData))
	}
	r := recipe.NewBuilder(recipe.Metadata{
		Name:        "zlib",
		Version:     cfg.version,
		License:     "Zlib",
		PackageType: cfg.packageType,
		Settings:    []string{"os", "arch", "compiler", "build_type"},
	}).MustBuild()
	ui := &testUI{}
	runner := &recordingRunner{}
	c, err := recipe.NewConanfile(r, recipe.ConanfileConfig{
		Settings:      cfg.settings,
		SettingsBuild: cfg.settings,
		Conf:          conf,
		ConanData:     data,
		Runner:        runner,
		UI:            ui,
		RecipeFolder:  filepath.Join(root, "recipe"),
		SourceFolder:  filepath.Join(root, "source"),
		BuildFolder:   filepath.Join(root, "build"),
		PackageFolder: filepath.Join(root, "package"),
	})
	require.NoError(t, err)
	return &testEnv{c: c, ui: ui, runner: runner, root: root}
}

func sortedNames(files map[string]string) []string {
	names := []string{}
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		content := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func tarXzBytes(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, p string, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, p string) string {
	content, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(content)
}
