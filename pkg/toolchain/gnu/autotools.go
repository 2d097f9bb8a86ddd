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

package gnu

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alessio/shellescape"
	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/subsystem"
	"gopkg.in/yaml.v2"
)

// Autotools drives autoreconf, configure and make.
// It reads the arguments the toolchain wrote in generate. On Windows
// build machines the commands run through bash.
type Autotools struct {
	c    *recipe.Conanfile
	args args
}

// New creates the driver for c.
func New(c *recipe.Conanfile) (*Autotools, error) {
	a := &Autotools{c: c}
	data, err := os.ReadFile(filepath.Join(c.GeneratorsFolder(), ArgsFileName))
	if os.IsNotExist(err) {
		tc, err := NewToolchain(c)
		if err != nil {
			return nil, err
		}
		a.args = args{
			ConfigureArgs:  tc.configureArgs(),
			MakeArgs:       tc.MakeArgs,
			AutoreconfArgs: tc.AutoreconfArgs,
		}
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &a.args); err != nil {
		return nil, recipe.WrapFrameworkError(err, "invalid %s", ArgsFileName)
	}
	return a, nil
}

func (a *Autotools) useBash() bool {
	return a.c.SettingsBuild.Get("os") == recipe.OSWindows
}

// path converts the path to the notation of the shell the commands run
// in.
func (a *Autotools) path(p string) string {
	if !a.useBash() {
		return filepath.ToSlash(p)
	}
	return subsystem.UnixPath(p, a.c.Conf.GetString(recipe.ConfBashSubsystem, subsystem.MSYS2))
}

// command wraps the argv into a bash invocation when needed.
func (a *Autotools) command(argv []string) []string {
	if !a.useBash() {
		return argv
	}
	bash := a.c.Conf.GetString(recipe.ConfBashPath, "bash")
	return []string{bash, "-c", shellescape.QuoteCommand(argv)}
}

func (a *Autotools) scriptFolder(buildScriptFolder string) string {
	folder := a.c.SourceFolder()
	if buildScriptFolder != "" {
		folder = filepath.Join(folder, filepath.FromSlash(buildScriptFolder))
	}
	return folder
}

// AutoreconfArgs returns the argv of autoreconf.
func (a *Autotools) AutoreconfArgs(extra ...string) []string {
	argv := append([]string{"autoreconf"}, a.args.AutoreconfArgs...)
	return a.command(append(argv, extra...))
}

// Autoreconf regenerates the configure script in the folder of the
// build scripts.
func (a *Autotools) Autoreconf(ctx context.Context, buildScriptFolder string, extra ...string) error {
	_, err := a.c.RunIn(ctx, a.scriptFolder(buildScriptFolder), a.AutoreconfArgs(extra...)...)
	return err
}

// ConfigureArgs returns the argv of the configure step.
func (a *Autotools) ConfigureArgs(buildScriptFolder string, extra ...string) []string {
	script := a.path(filepath.Join(a.scriptFolder(buildScriptFolder), "configure"))
	argv := append([]string{script}, a.args.ConfigureArgs...)
	return a.command(append(argv, extra...))
}

// Configure runs the configure script in the build folder.
func (a *Autotools) Configure(ctx context.Context, buildScriptFolder string, extra ...string) error {
	_, err := a.c.Run(ctx, a.ConfigureArgs(buildScriptFolder, extra...)...)
	return err
}

// MakeArgs returns the argv of make for the given target.
func (a *Autotools) MakeArgs(target string, extra ...string) []string {
	argv := []string{"make"}
	if target != "" {
		argv = append(argv, target)
	}
	argv = append(argv, "-j"+strconv.Itoa(build.Jobs(a.c)))
	argv = append(argv, a.args.MakeArgs...)
	return a.command(append(argv, extra...))
}

// Make builds the target in the build folder.
func (a *Autotools) Make(ctx context.Context, target string, extra ...string) error {
	_, err := a.c.Run(ctx, a.MakeArgs(target, extra...)...)
	return err
}

// InstallArgs returns the argv of the install step. The prefix is '/',
// so the package folder is the DESTDIR.
func (a *Autotools) InstallArgs(extra ...string) []string {
	return a.MakeArgs("install", append([]string{"DESTDIR=" + a.path(a.c.PackageFolder())}, extra...)...)
}

// Install installs into the package folder.
func (a *Autotools) Install(ctx context.Context, extra ...string) error {
	_, err := a.c.Run(ctx, a.InstallArgs(extra...)...)
	return err
}
