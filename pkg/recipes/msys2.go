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
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/subsystem"
)

// MSYS2 packages a Windows installation of the MSYS2 distribution, and
// publishes its bash to the consumers that need a Unix shell, like
// Autotools builds. The license covers the base installer, not the
// installed packages.
func MSYS2() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "msys2",
		Version:     "cci.latest",
		Description: "MSYS2 is a software distro and building platform for Windows",
		License:     "BSD 3-Clause",
		Homepage:    "http://www.msys2.org",
		Topics:      []string{"msys", "unix", "subsystem"},
		PackageType: recipe.Application,
		Settings:    defaultSettings,
		// exclude_files and packages are comma separated lists.
		Options: map[string]recipe.OptionDef{
			"exclude_files": recipe.AnyOption(),
			"packages":      recipe.AnyOption(),
			"no_kill":       recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"exclude_files": "*/link.exe",
			"packages":      "base-devel",
			"no_kill":       false,
		},
	}).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.BasicLayout(c, "src")
		}).
		On(recipe.StagePackageID, msys2PackageID).
		On(recipe.StageValidate, msys2Validate).
		On(recipe.StagePackage, msys2Package).
		On(recipe.StagePackageInfo, msys2PackageInfo).
		MustBuild()
}

func msys2PackageID(ctx context.Context, c *recipe.Conanfile) error {
	if err := c.Info.Settings.Delete("compiler"); err != nil {
		return err
	}
	if err := c.Info.Settings.Delete("build_type"); err != nil {
		return err
	}
	return c.Info.Options.Delete("no_kill")
}

func msys2Validate(ctx context.Context, c *recipe.Conanfile) error {
	if c.Settings.Get("os") != recipe.OSWindows {
		return recipe.NewInvalidConfiguration("Only Windows is supported")
	}
	if c.Settings.Get("arch") != "x86_64" {
		return recipe.NewInvalidConfiguration("Only Windows x64 is supported")
	}
	return nil
}

// splitList splits an option value at commas and spaces.
func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func msys2Root(c *recipe.Conanfile) string {
	return filepath.Join(c.PackageFolder(), "bin", "msys64")
}

// msys2 runs commands in the fresh installation.
type msys2 struct {
	c    *recipe.Conanfile
	root string
}

func (m msys2) usrBin() string {
	return filepath.Join(m.root, "usr", "bin")
}

func (m msys2) bash(ctx context.Context, cmd string) (string, error) {
	return m.c.RunIn(ctx, m.usrBin(), filepath.Join(m.usrBin(), "bash.exe"), "-l", "-c", cmd)
}

// pacman runs pacman, and dumps its log when it fails.
func (m msys2) pacman(ctx context.Context, args string) (string, error) {
	cmd := "pacman --noconfirm " + args
	out, err := m.bash(ctx, cmd)
	if err != nil {
		m.c.UI.ReportWarning("'%s' failed", cmd)
		if log, loadErr := files.Load(filepath.Join(m.root, "var", "log", "pacman.log")); loadErr == nil {
			m.c.UI.ReportWarning("pacman.log contents:\n%s", log)
		}
	}
	// pacman leaves background processes that keep files open.
	if !m.c.Options.Bool("no_kill") {
		m.killPacman(ctx)
	}
	return out, err
}

func (m msys2) killPacman(ctx context.Context) {
	for _, args := range [][]string{
		{"taskkill", "/f", "/t", "/im", "pacman.exe"},
		{"taskkill", "/f", "/im", "gpg-agent.exe"},
		{"taskkill", "/f", "/im", "dirmngr.exe"},
		{"taskkill", "/fi", "MODULES eq msys-2.0.dll"},
	} {
		// Nothing to kill is fine.
		m.c.RunIn(ctx, m.root, args...)
	}
}

func (m msys2) removeExcluded(patterns []string) error {
	globs := []glob.Glob{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return recipe.WrapFrameworkError(err, "invalid exclude pattern '%s'", p)
		}
		globs = append(globs, g)
	}
	return filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return err
		}
		for _, g := range globs {
			if g.Match(filepath.ToSlash(rel)) {
				return os.Remove(p)
			}
		}
		return nil
	})
}

// msys2Package follows the MSYS2 recommendations for CI installations.
func msys2Package(ctx context.Context, c *recipe.Conanfile) error {
	m := msys2{c: c, root: msys2Root(c)}
	entry, err := c.ConanData.Source(c.Version())
	if err != nil {
		return err
	}
	if err := files.GetEntry(ctx, c, entry, m.root); err != nil {
		return err
	}
	// The first login runs the initial setup.
	if _, err := m.bash(ctx, "echo"); err != nil {
		return err
	}
	// Core packages first, then the rest.
	for i := 0; i < 2; i++ {
		if _, err := m.pacman(ctx, "--sync --refresh --sysupgrade --sysupgrade"); err != nil {
			return err
		}
	}
	if packages := splitList(c.Options.Get("packages")); len(packages) > 0 {
		if _, err := m.pacman(ctx, "--sync "+strings.Join(packages, " ")); err != nil {
			return err
		}
	}
	// pkgconf conflicts with the pkg-config packages consumers bring.
	if _, err := m.bash(ctx, "pacman --noconfirm --query --quiet pkgconf"); err == nil {
		if _, err := m.pacman(ctx, "--remove --recursive --nodeps --nodeps pkgconf"); err != nil {
			return err
		}
	}
	// The pacman cache and the home folder of the user.
	for _, dir := range []string{"var", "home"} {
		if err := files.Rmdir(filepath.Join(m.root, dir)); err != nil {
			return err
		}
	}
	if err := m.removeExcluded(splitList(c.Options.Get("exclude_files"))); err != nil {
		return err
	}
	licenses := filepath.Join(m.root, "usr", "share", "licenses")
	if _, err := files.Copy("*", licenses, filepath.Join(c.PackageFolder(), "licenses")); err != nil {
		return err
	}
	// bash warns without /tmp.
	if err := files.Save(filepath.Join(m.root, "tmp", "dummy"), ""); err != nil {
		return err
	}
	// The system flag of mtab makes deleting the package prompt.
	_, err = c.RunIn(ctx, c.PackageFolder(), "attrib", "-S", filepath.Join(m.root, "etc", "mtab"))
	return err
}

func msys2PackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	root := msys2Root(c)
	msysBin := filepath.Join(root, "usr", "bin")
	ci := c.CppInfo
	ci.LibDirs = nil
	ci.IncludeDirs = nil
	ci.BinDirs = []string{"bin/msys64/usr/bin"}

	c.BuildEnvInfo.DefinePath("MSYS_ROOT", root)
	c.BuildEnvInfo.DefinePath("MSYS_BIN", msysBin)
	// The cross compilers for Windows on ARM live in /opt.
	if c.SettingsTarget.Get("os") == recipe.OSWindows && c.SettingsTarget.Get("arch") == "armv8" {
		c.BuildEnvInfo.PrependPath("PATH", filepath.Join(root, "opt", "bin"))
	}

	if err := c.ConfInfo.Define(recipe.ConfBashSubsystem, subsystem.MSYS2); err != nil {
		return err
	}
	return c.ConfInfo.Define(recipe.ConfBashPath, filepath.Join(msysBin, "bash.exe"))
}
