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
	"sort"
	"strconv"
	"strings"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// Make runs a plain Makefile. The compilers and flags of the host reach
// make through the environment.
type Make struct {
	c *recipe.Conanfile
	// Variables are passed as VAR=value on the command line.
	Variables map[string]string
	flags     *Toolchain
}

// NewMake creates the driver for c.
func NewMake(c *recipe.Conanfile) (*Make, error) {
	tc, err := NewToolchain(c)
	if err != nil {
		return nil, err
	}
	return &Make{c: c, Variables: map[string]string{}, flags: tc}, nil
}

// Tools returns the tool variables: CC, CXX, AR, RANLIB and STRIP.
// The compiler_executables conf wins. When cross-building with gcc the
// tools get the prefix of the host triplet; clang gets a --target.
func (m *Make) Tools() map[string]string {
	c := m.c
	s := c.Settings
	tools := map[string]string{}
	compiler := s.Get("compiler")
	if c.CrossBuilding() && !recipe.IsMSVC(s) {
		host := m.flags.Host
		switch {
		case strings.Contains(compiler, "clang"):
			tools["CC"] = "clang --target=" + host
			tools["CXX"] = "clang++ --target=" + host
			tools["AR"] = "llvm-ar"
			tools["RANLIB"] = "llvm-ranlib"
			tools["STRIP"] = "llvm-strip"
		default:
			tools["CC"] = host + "-gcc"
			tools["CXX"] = host + "-g++"
			tools["AR"] = host + "-ar"
			tools["RANLIB"] = host + "-ranlib"
			tools["STRIP"] = host + "-strip"
			tools["CROSS_COMPILE"] = host + "-"
		}
	}
	executables := c.Conf.GetMap(recipe.ConfCompilerExecutables)
	if exe := executables["c"]; exe != "" {
		tools["CC"] = exe
	}
	if exe := executables["cpp"]; exe != "" {
		tools["CXX"] = exe
	}
	return tools
}

// Environment returns the tools and the compiler flags.
func (m *Make) Environment() *recipe.EnvOverlay {
	env := recipe.NewEnvOverlay()
	tools := m.Tools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env.Define(name, tools[name])
	}
	return recipe.Compose(env, m.flags.Environment())
}

// Generate adds the environment to the build environment of the recipe.
func (m *Make) Generate() error {
	m.c.BuildEnv = recipe.Compose(m.c.BuildEnv, m.Environment())
	return nil
}

// Args returns the argv of make for the target.
func (m *Make) Args(target string, extra ...string) []string {
	argv := []string{"make", "-j" + strconv.Itoa(build.Jobs(m.c))}
	if target != "" {
		argv = append(argv, target)
	}
	names := make([]string, 0, len(m.Variables))
	for name := range m.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		argv = append(argv, name+"="+m.Variables[name])
	}
	return append(argv, extra...)
}

// Run runs make in dir.
func (m *Make) Run(ctx context.Context, dir string, target string, extra ...string) error {
	_, err := m.c.RunIn(ctx, dir, m.Args(target, extra...)...)
	return err
}
