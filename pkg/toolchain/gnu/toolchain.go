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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/set"
	"github.com/toitlang/trecipe/pkg/subsystem"
	"gopkg.in/yaml.v2"
)

// ArgsFileName is the file in the generators folder that hands the
// arguments of the toolchain to the Autotools driver.
const ArgsFileName = "trecipe_autotools_args.yml"

// args is the content of the args file.
type args struct {
	ConfigureArgs  []string `yaml:"configure_args"`
	MakeArgs       []string `yaml:"make_args,omitempty"`
	AutoreconfArgs []string `yaml:"autoreconf_args"`
}

// Toolchain computes the configure arguments and the compiler
// environment of an Autotools build.
type Toolchain struct {
	c *recipe.Conanfile

	ConfigureArgs  []string
	MakeArgs       []string
	AutoreconfArgs []string

	// Host and Build are the GNU triplets passed as --host and --build.
	// They are only set when cross-building.
	Host  string
	Build string

	Defines     []string
	CFlags      []string
	CxxFlags    []string
	LDFlags     []string
	ExtraEnv    *recipe.EnvOverlay
	FPIC        bool
	MSVCWrapper bool
}

// NewToolchain computes the defaults from the settings and options of c.
func NewToolchain(c *recipe.Conanfile) (*Toolchain, error) {
	tc := &Toolchain{
		c:              c,
		AutoreconfArgs: []string{"--force", "--install"},
		ExtraEnv:       recipe.NewEnvOverlay(),
	}
	tc.ConfigureArgs = []string{
		"--prefix=/",
		"--bindir=${prefix}/bin",
		"--sbindir=${prefix}/bin",
		"--libdir=${prefix}/lib",
		"--includedir=${prefix}/include",
		"--oldincludedir=${prefix}/include",
		"--datarootdir=${prefix}/res",
	}
	if c.Options.Has("shared") {
		if c.Options.Bool("shared") {
			tc.ConfigureArgs = append(tc.ConfigureArgs, "--enable-shared", "--disable-static")
		} else {
			tc.ConfigureArgs = append(tc.ConfigureArgs, "--disable-shared", "--enable-static")
		}
	}
	if c.Options.Has("fPIC") {
		tc.FPIC = c.Options.Bool("fPIC")
	}
	if c.CrossBuilding() {
		host, err := HostTriplet(c)
		if err != nil {
			return nil, recipe.NewInvalidConfiguration("%s", err.Error())
		}
		build, err := BuildTriplet(c)
		if err != nil {
			return nil, recipe.NewInvalidConfiguration("%s", err.Error())
		}
		tc.Host = host
		tc.Build = build
	}
	tc.MSVCWrapper = recipe.IsMSVC(c.Settings)
	return tc, nil
}

// UpdateConfigureArgs replaces arguments with the same '--name' and adds
// new ones. A nil value removes the argument.
func (tc *Toolchain) UpdateConfigureArgs(updates map[string]*string) {
	result := []string{}
	seen := set.String{}
	for _, arg := range tc.ConfigureArgs {
		name := strings.SplitN(arg, "=", 2)[0]
		value, ok := updates[name]
		if !ok {
			result = append(result, arg)
			continue
		}
		seen.Add(name)
		if value != nil {
			result = append(result, joinArg(name, *value))
		}
	}
	for _, name := range sortedNames(updates) {
		if value := updates[name]; !seen.Contains(name) && value != nil {
			result = append(result, joinArg(name, *value))
		}
	}
	tc.ConfigureArgs = result
}

func sortedNames(m map[string]*string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinArg(name string, value string) string {
	if value == "" {
		return name
	}
	return name + "=" + value
}

func (tc *Toolchain) configureArgs() []string {
	result := append([]string{}, tc.ConfigureArgs...)
	if tc.Host != "" {
		result = append(result, "--host="+tc.Host)
	}
	if tc.Build != "" {
		result = append(result, "--build="+tc.Build)
	}
	return result
}

func (tc *Toolchain) compileFlags() []string {
	s := tc.c.Settings
	flags := append([]string{}, BuildTypeFlags(s)...)
	flags = appendNonEmpty(flags, ArchFlag(s), RuntimeFlag(s))
	if tc.FPIC && !recipe.IsMSVC(s) && s.Get("os") != recipe.OSWindows {
		flags = append(flags, "-fPIC")
	}
	if recipe.IsMSVC(s) {
		flags = append(flags, "-FS")
	}
	return flags
}

// Environment returns the compiler environment: CPPFLAGS, CFLAGS,
// CXXFLAGS, LDFLAGS and the compilers.
func (tc *Toolchain) Environment() *recipe.EnvOverlay {
	c := tc.c
	s := c.Settings
	env := recipe.NewEnvOverlay()

	libcxxFlags, libcxxDefines := LibcxxFlags(s)
	defines := append(append(append([]string{}, NDebugDefine(s)...), libcxxDefines...), tc.Defines...)
	cppflags := []string{}
	for _, d := range defines {
		cppflags = append(cppflags, "-D"+d)
	}
	compile := tc.compileFlags()
	cflags := appendNonEmpty(append([]string{}, compile...), CstdFlag(s))
	cflags = append(cflags, tc.CFlags...)
	cxxflags := appendNonEmpty(append([]string{}, compile...), CppstdFlag(s))
	cxxflags = append(append(cxxflags, libcxxFlags...), tc.CxxFlags...)
	ldflags := appendNonEmpty([]string{}, ArchFlag(s))
	ldflags = append(ldflags, tc.LDFlags...)

	for _, entry := range []struct {
		name  string
		flags []string
	}{
		{"CPPFLAGS", cppflags},
		{"CFLAGS", cflags},
		{"CXXFLAGS", cxxflags},
		{"LDFLAGS", ldflags},
	} {
		if len(entry.flags) > 0 {
			env.Append(entry.name, strings.Join(entry.flags, " "), " ")
		}
	}

	executables := c.Conf.GetMap(recipe.ConfCompilerExecutables)
	for _, entry := range []struct{ key, name string }{{"c", "CC"}, {"cpp", "CXX"}, {"rc", "RC"}, {"asm", "AS"}} {
		if exe := executables[entry.key]; exe != "" {
			env.Define(entry.name, exe)
		}
	}
	if tc.MSVCWrapper {
		tc.msvcEnvironment(env, executables)
	}
	return recipe.Compose(env, tc.ExtraEnv)
}

// AutomakeWrappers returns the 'compile' and 'ar-lib' scripts shipped by
// the automake build requirement, in the path notation of the bash
// subsystem. ok is false without automake.
func AutomakeWrappers(c *recipe.Conanfile) (compile string, arLib string, ok bool) {
	dep, found := c.Dependencies.Build("automake")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(dep.Ref.Version, ".", 3)
	version := parts[0]
	if len(parts) > 1 {
		version += "." + parts[1]
	}
	dir := filepath.Join(dep.PackageFolder, "res", "automake-"+version)
	sub := c.Conf.GetString(recipe.ConfBashSubsystem, "")
	compile = subsystem.UnixPath(filepath.Join(dir, "compile"), sub)
	arLib = subsystem.UnixPath(filepath.Join(dir, "ar-lib"), sub)
	return compile, arLib, true
}

func (tc *Toolchain) msvcEnvironment(env *recipe.EnvOverlay, executables map[string]string) {
	cc := "cl -nologo"
	if exe := executables["c"]; exe != "" {
		cc = exe
	}
	cxx := "cl -nologo"
	if exe := executables["cpp"]; exe != "" {
		cxx = exe
	}
	ar := "lib"
	if compile, arLib, ok := AutomakeWrappers(tc.c); ok {
		cc = compile + " " + cc
		cxx = compile + " " + cxx
		ar = arLib + " " + ar
	}
	env.Define("CC", cc)
	env.Define("CXX", cxx)
	env.Define("AR", ar)
	env.Define("LD", "link -nologo")
	env.Define("NM", "dumpbin -symbols")
	env.Define("OBJDUMP", ":")
	env.Define("RANLIB", ":")
	env.Define("STRIP", ":")
}

// Content returns the args file.
func (tc *Toolchain) Content() ([]byte, error) {
	return yaml.Marshal(args{
		ConfigureArgs:  tc.configureArgs(),
		MakeArgs:       tc.MakeArgs,
		AutoreconfArgs: tc.AutoreconfArgs,
	})
}

// Generate adds the environment to the build environment of the recipe
// and writes the args file.
func (tc *Toolchain) Generate() error {
	c := tc.c
	c.BuildEnv = recipe.Compose(c.BuildEnv, tc.Environment())
	content, err := tc.Content()
	if err != nil {
		return err
	}
	folder := c.GeneratorsFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, ArgsFileName), content, 0644)
}
