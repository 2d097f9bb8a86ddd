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

package recipes

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toitlang/trecipe/pkg/recipe"
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

// recordingRunner records all commands. If onRun is set, it is called
// instead of returning an empty output.
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

// find returns the first command whose line contains substr.
func (r *recordingRunner) find(substr string) (recipe.Command, bool) {
	for _, c := range r.commands {
		if strings.Contains(strings.Join(c.Args, " "), substr) {
			return c, true
		}
	}
	return recipe.Command{}, false
}

var linuxSettings = map[string]string{
	"os":               "Linux",
	"arch":             "x86_64",
	"compiler":         "gcc",
	"compiler.version": "12",
	"compiler.libcxx":  "libstdc++11",
	"compiler.cppstd":  "17",
	"build_type":       "Release",
}

var msvcSettings = map[string]string{
	"os":               "Windows",
	"arch":             "x86_64",
	"compiler":         "msvc",
	"compiler.version": "193",
	"compiler.runtime": "dynamic",
	"compiler.cppstd":  "17",
	"build_type":       "Release",
}

var macSettings = map[string]string{
	"os":               "Macos",
	"arch":             "armv8",
	"compiler":         "apple-clang",
	"compiler.version": "15",
	"compiler.libcxx":  "libc++",
	"compiler.cppstd":  "17",
	"build_type":       "Release",
}

func withSettings(base map[string]string, overrides ...string) map[string]string {
	result := map[string]string{}
	for k, v := range base {
		result[k] = v
	}
	for _, o := range overrides {
		kv := strings.SplitN(o, "=", 2)
		result[kv[0]] = kv[1]
	}
	return result
}

type buildConfig struct {
	version        string
	settings       map[string]string
	settingsBuild  map[string]string
	settingsTarget map[string]string
	// options are "name=value" assignments.
	options   []string
	conf      map[string]interface{}
	conanData string
	onRun     func(cmd recipe.Command) (string, error)
}

// testBuild drives a recipe through its stages without a manager.
type testBuild struct {
	c      *recipe.Conanfile
	runner *recordingRunner
	ui     *testUI
	root   string
}

func newTestBuild(t *testing.T, r *recipe.Recipe, cfg buildConfig) *testBuild {
	root := t.TempDir()
	if cfg.version != "" {
		r = r.WithVersion(cfg.version)
	}
	settingsBuild := cfg.settingsBuild
	if settingsBuild == nil {
		settingsBuild = cfg.settings
	}
	conf := recipe.NewConf()
	require.NoError(t, conf.Define(recipe.ConfBuildJobs, 4))
	require.NoError(t, conf.Define(recipe.ConfDownloadRetry, 0))
	for k, v := range cfg.conf {
		require.NoError(t, conf.Define(k, v))
	}
	data := &recipe.ConanData{}
	if cfg.conanData != "" {
		require.NoError(t, data.ParseString(cfg.conanData))
	}
	options := []recipe.OptionAssignment{}
	for _, o := range cfg.options {
		a, err := recipe.ParseOptionAssignment(o)
		require.NoError(t, err)
		options = append(options, a)
	}
	runner := &recordingRunner{onRun: cfg.onRun}
	ui := &testUI{}
	c, err := recipe.NewConanfile(r, recipe.ConanfileConfig{
		Settings:       cfg.settings,
		SettingsBuild:  settingsBuild,
		SettingsTarget: cfg.settingsTarget,
		Options:        options,
		Conf:           conf,
		ConanData:      data,
		Runner:         runner,
		UI:             ui,
		RecipeFolder:   filepath.Join(root, "recipe"),
		ExportFolder:   filepath.Join(root, "export"),
		SourceFolder:   filepath.Join(root, "source"),
		BuildFolder:    filepath.Join(root, "build"),
		PackageFolder:  filepath.Join(root, "package"),
	})
	require.NoError(t, err)
	return &testBuild{c: c, runner: runner, ui: ui, root: root}
}

// configure runs all consumer stages up to the compatibility.
func (b *testBuild) configure(t *testing.T) {
	require.NoError(t, b.c.ExecuteUntil(context.Background(), recipe.StageCompatibility))
}

// produce runs the given producer stages, preparing the folders the way
// the manager does.
func (b *testBuild) produce(t *testing.T, stages ...recipe.Stage) {
	for _, stage := range stages {
		switch stage {
		case recipe.StageSource:
			require.NoError(t, os.MkdirAll(b.c.SourceFolder(), 0755))
		case recipe.StageGenerate:
			require.NoError(t, os.MkdirAll(b.c.GeneratorsFolder(), 0755))
			require.NoError(t, os.MkdirAll(b.c.BuildFolder(), 0755))
		case recipe.StagePackage:
			require.NoError(t, os.MkdirAll(b.c.PackageFolder(), 0755))
		}
		require.NoError(t, b.c.Execute(context.Background(), stage))
	}
}

// requirementRefs returns the references declared for the scope.
func (b *testBuild) requirementRefs(scope recipe.Scope) []string {
	result := []string{}
	for _, r := range b.c.Requirements() {
		if r.Scope == scope {
			result = append(result, r.Ref.String())
		}
	}
	return result
}

// requirement returns the declared requirement of the package.
func (b *testBuild) requirement(t *testing.T, name string) *recipe.Requirement {
	for _, r := range b.c.Requirements() {
		if r.Ref.Name == name {
			return r
		}
	}
	require.Failf(t, "missing requirement", "no requirement on %s", name)
	return nil
}

func writeFile(t *testing.T, p string, content string) {
	require.NoError(t, writeFileErr(p, content))
}

func writeFileErr(p string, content string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

func readFile(t *testing.T, p string) string {
	content, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(content)
}

// writeFiles creates the files, with their name as content.
func writeFiles(t *testing.T, root string, files ...string) {
	for _, f := range files {
		writeFile(t, filepath.Join(root, filepath.FromSlash(f)), f)
	}
}

func listFiles(t *testing.T, root string) []string {
	result := []string{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return result
	}
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		result = append(result, filepath.ToSlash(rel))
		return nil
	}))
	sort.Strings(result)
	return result
}

// fakeInstall returns an onRun that creates the files in the package
// folder of c when a command containing trigger runs.
func fakeInstall(c **recipe.Conanfile, trigger string, files ...string) func(cmd recipe.Command) (string, error) {
	return writeOnRun(trigger, func() string { return (*c).PackageFolder() }, files...)
}

// writeOnRun returns an onRun that creates the files below root when a
// command containing trigger runs.
func writeOnRun(trigger string, root func() string, files ...string) func(cmd recipe.Command) (string, error) {
	return func(cmd recipe.Command) (string, error) {
		if !strings.Contains(strings.Join(cmd.Args, " "), trigger) {
			return "", nil
		}
		for _, f := range files {
			if err := writeFileErr(filepath.Join(root(), filepath.FromSlash(f)), f); err != nil {
				return "", err
			}
		}
		return "", nil
	}
}

// serveTarGz serves a tar.gz archive with the given files under the given
// root directory. It returns the URL of the archive and its digest.
func serveTarGz(t *testing.T, name string, root string, files map[string]string) (string, string) {
	names := []string{}
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, n := range names {
		content := files[n]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     root + "/" + n,
			Mode:     0755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return serveBytes(t, name, buf.Bytes())
}

// serveBytes serves data under the given name. It returns the URL and the
// digest of the data.
func serveBytes(t *testing.T, name string, data []byte) (string, string) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+name {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	sum := sha256.Sum256(data)
	return server.URL + "/" + name, hex.EncodeToString(sum[:])
}
