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
	"path/filepath"

	"github.com/toitlang/trecipe/pkg/files"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/subsystem"
	"github.com/toitlang/trecipe/pkg/toolchain/gnu"
)

const gmpYasmWrapper = "yasm_wrapper.sh"

// gmpYasmWrapperContent drops the compiler flags libtool passes to the
// assembler, and forwards the rest to yasm.
const gmpYasmWrapperContent = `#!/bin/sh
args=""
while [ $# -gt 0 ]; do
  case "$1" in
    -c|-nologo|-FS|-DPIC|-DDLL_EXPORT) ;;
    -O*|-M*|-Z*|-E*) ;;
    -o) args="$args -o $2"; shift ;;
    *) args="$args $1" ;;
  esac
  shift
done
exec yasm $args
`

// The configure checks that fail with cl, and their known results.
var gmpMSVCConfigureArgs = []string{
	"ac_cv_c_restrict=restrict",
	"ac_cv_func_memset=yes",
	"gmp_cv_asm_label_suffix=:",
	"gmp_cv_asm_w32=.word",
	"gmp_cv_check_libm_for_build=no",
	"lt_cv_deplibs_check_method=pass_all",
	"nm_interface=MS dumpbin",
}

// GMP is the arbitrary precision arithmetic library. It is built with
// Autotools on all platforms, with cl wrapped by the automake scripts on
// Windows.
func GMP() *recipe.Recipe {
	return recipe.NewBuilder(recipe.Metadata{
		Name:        "gmp",
		Description: "GMP is a free library for arbitrary precision arithmetic, operating on signed integers, rational numbers, and floating-point numbers.",
		License:     "LGPL-3.0-or-later OR GPL-2.0-or-later",
		Homepage:    "https://gmplib.org",
		Topics:      []string{"math", "arbitrary", "precision", "integer"},
		PackageType: recipe.Library,
		Settings:    defaultSettings,
		Options: map[string]recipe.OptionDef{
			"shared":          recipe.BoolOption(),
			"fPIC":            recipe.BoolOption(),
			"enable_assembly": recipe.BoolOption(),
			"enable_fat":      recipe.BoolOption(),
			"enable_cxx":      recipe.BoolOption(),
		},
		DefaultOptions: map[string]interface{}{
			"shared":          false,
			"fPIC":            true,
			"enable_assembly": false,
			"enable_fat":      false,
			"enable_cxx":      true,
		},
	}).
		On(recipe.StageConfigOptions, gmpConfigOptions).
		On(recipe.StageConfigure, gmpConfigure).
		On(recipe.StageLayout, func(ctx context.Context, c *recipe.Conanfile) error {
			return recipe.BasicLayout(c, "src")
		}).
		On(recipe.StageBuildRequirements, gmpBuildRequirements).
		On(recipe.StageSource, gmpSource).
		On(recipe.StageGenerate, gmpGenerate).
		On(recipe.StageBuild, gmpBuild).
		On(recipe.StagePackage, gmpPackage).
		On(recipe.StagePackageInfo, gmpPackageInfo).
		MustBuild()
}

func gmpConfigOptions(ctx context.Context, c *recipe.Conanfile) error {
	// GMP doesn't export symbols for a shared build on Windows.
	if c.Settings.Get("os") == recipe.OSWindows {
		if err := c.Options.Delete("shared"); err != nil {
			return err
		}
		if err := c.Options.Delete("fPIC"); err != nil {
			return err
		}
		if err := c.SetPackageType(recipe.StaticLibrary); err != nil {
			return err
		}
	}
	if !c.Settings.Is("arch", "x86", "x86_64") {
		if err := c.Options.Delete("enable_assembly"); err != nil {
			return err
		}
		return c.Options.Delete("enable_fat")
	}
	return nil
}

func gmpConfigure(ctx context.Context, c *recipe.Conanfile) error {
	if c.Options.Bool("shared") {
		if err := c.Options.RmSafe("fPIC"); err != nil {
			return err
		}
	}
	if c.Options.Bool("enable_fat") {
		if err := c.Options.Set("enable_assembly", true); err != nil {
			return err
		}
	}
	if !c.Options.Bool("enable_cxx") {
		return c.SetLanguages("C")
	}
	return nil
}

func gmpBuildRequirements(ctx context.Context, c *recipe.Conanfile) error {
	if c.SettingsBuild.Get("os") == recipe.OSWindows {
		if !c.Conf.Has(recipe.ConfBashPath) {
			if err := c.ToolRequires("msys2/cci.latest"); err != nil {
				return err
			}
		}
		if recipe.IsMSVC(c.Settings) {
			// yasm determines the word size of 32-bit builds, and automake
			// provides the lib wrapper.
			if err := c.ToolRequires("yasm/[^1.3.0]"); err != nil {
				return err
			}
			if err := c.ToolRequires("automake/[^1.16.5]"); err != nil {
				return err
			}
		}
	}
	return c.ToolRequires("libtool/[*]")
}

func gmpSource(ctx context.Context, c *recipe.Conanfile) error {
	if err := files.GetSources(ctx, c); err != nil {
		return err
	}
	// Tests, demos and the tuning programs aren't packaged.
	if err := files.ReplaceInFile(c, "Makefile.am",
		"SUBDIRS = tests mpn mpz mpq mpf printf scanf rand cxx demos tune doc",
		"SUBDIRS = mpn mpz mpq mpf printf rand cxx"); err != nil {
		return err
	}
	// Don't embed the compiler and its flags in the header.
	if err := files.ReplaceInFile(c, "gmp-h.in", `#define __GMP_CC "@CC@"`, ""); err != nil {
		return err
	}
	return files.ReplaceInFile(c, "gmp-h.in", `#define __GMP_CFLAGS "@CFLAGS@"`, "")
}

func gmpGenerate(ctx context.Context, c *recipe.Conanfile) error {
	tc, err := gnu.NewToolchain(c)
	if err != nil {
		return err
	}
	// A relative srcdir avoids drive letters in the generated includes on
	// Windows.
	srcdir, err := filepath.Rel(c.BuildFolder(), c.SourceFolder())
	if err != nil {
		return err
	}
	tc.ConfigureArgs = append(tc.ConfigureArgs,
		"--with-pic="+yesNo(c.Options.GetSafe("fPIC", recipe.True) == recipe.True),
		"--enable-assembly="+yesNo(c.Options.Bool("enable_assembly")),
		"--enable-fat="+yesNo(c.Options.Bool("enable_fat")),
		"--enable-cxx="+yesNo(c.Options.Bool("enable_cxx")),
		"--srcdir="+filepath.ToSlash(srcdir))
	if recipe.IsMSVC(c.Settings) {
		if err := gmpMSVC(c, tc); err != nil {
			return err
		}
	}
	return tc.Generate()
}

func gmpMSVC(c *recipe.Conanfile, tc *gnu.Toolchain) error {
	tc.ConfigureArgs = append(tc.ConfigureArgs, gmpMSVCConfigureArgs...)
	tc.CxxFlags = append(tc.CxxFlags, "-EHsc")

	machine := "amd64"
	if c.Settings.Get("arch") == "x86" {
		machine = "x86"
	}
	wrapper := filepath.Join(c.GeneratorsFolder(), gmpYasmWrapper)
	if err := files.Save(wrapper, gmpYasmWrapperContent); err != nil {
		return err
	}
	sub := ""
	if c.SettingsBuild.Get("os") == recipe.OSWindows {
		sub = c.Conf.GetString(recipe.ConfBashSubsystem, subsystem.MSYS2)
	}
	tc.ExtraEnv.Define("CCAS", subsystem.UnixPath(wrapper, sub)+" -a x86 -m "+machine+" -p gas -r raw -f win32 -g null -X gnu")
	tc.ExtraEnv.Define("CC", "cl -nologo")
	tc.ExtraEnv.Define("CXX", "cl -nologo")
	tc.ExtraEnv.Define("LD", "link -nologo")
	tc.ExtraEnv.Define("NM", "dumpbin -nologo -symbols")
	if _, arLib, ok := gnu.AutomakeWrappers(c); ok {
		tc.ExtraEnv.Define("AR", arLib+` "lib -nologo"`)
	}
	return nil
}

func gmpBuild(ctx context.Context, c *recipe.Conanfile) error {
	// The patches of conandata.yml depend on the operating system, so they
	// are applied per build.
	if err := files.ApplyConanDataPatches(ctx, c); err != nil {
		return err
	}
	autotools, err := gnu.New(c)
	if err != nil {
		return err
	}
	if err := autotools.Autoreconf(ctx, ""); err != nil {
		return err
	}
	// Unprototyped functions are gone in C23, and the check for 'g' fails
	// with newer compilers.
	if _, err := files.ReplaceInFileIfPresent(c, "configure",
		"void g(){}",
		"void g(int a,t1 const* b,t1 c,t2 d,t1 const* e,int f){}"); err != nil {
		return err
	}
	if err := autotools.Configure(ctx, ""); err != nil {
		return err
	}
	return autotools.Make(ctx, "")
}

func gmpPackage(ctx context.Context, c *recipe.Conanfile) error {
	for _, license := range []string{"COPYINGv2", "COPYING.LESSERv3"} {
		if err := copyLicenses(c, license); err != nil {
			return err
		}
	}
	autotools, err := gnu.New(c)
	if err != nil {
		return err
	}
	if err := autotools.Install(ctx); err != nil {
		return err
	}
	pkg := c.PackageFolder()
	if err := files.Rmdir(filepath.Join(pkg, "lib", "pkgconfig")); err != nil {
		return err
	}
	if err := files.Rmdir(filepath.Join(pkg, "share")); err != nil {
		return err
	}
	if _, err := files.Rm("*.la", filepath.Join(pkg, "lib"), false); err != nil {
		return err
	}
	return files.FixAppleSharedInstallName(ctx, c)
}

func gmpPackageInfo(ctx context.Context, c *recipe.Conanfile) error {
	ci := c.CppInfo
	libgmp := ci.Components("libgmp")
	libgmp.SetProperty(recipe.PropPkgConfigName, "gmp")
	libgmp.Libs = []string{"gmp"}
	if c.Settings.Get("os") != recipe.OSWindows {
		libgmp.SystemLibs = []string{"m"}
	}
	if c.Options.Bool("enable_cxx") {
		gmpxx := ci.Components("gmpxx")
		gmpxx.SetProperty(recipe.PropPkgConfigName, "gmpxx")
		gmpxx.Libs = []string{"gmpxx"}
		gmpxx.Requires = []string{"libgmp"}
	}
	ci.SetProperty(recipe.PropPkgConfigName, "_gmp_aggregate_")
	return nil
}
