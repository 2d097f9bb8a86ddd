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

package build

import (
	"context"

	"github.com/toitlang/trecipe/pkg/recipe"
)

// ConfEmulator is a command prefix, like ["qemu-aarch64", "-L", "/usr/aarch64-linux-gnu"],
// used to run host binaries on the build machine.
const ConfEmulator = "tools.build.cross_building:emulator"

// StdCppLibrary returns the name of the C++ standard library the settings
// link against, as it is given to the linker, or "" if there is none to
// link explicitly.
func StdCppLibrary(c *recipe.Conanfile) string {
	switch c.Settings.Get("compiler.libcxx") {
	case "libstdc++", "libstdc++11":
		return "stdc++"
	case "libc++":
		return "c++"
	case "c++_shared":
		return "c++_shared"
	case "c++_static":
		return "c++_static"
	}
	return ""
}

// CanRunHost returns whether host binaries can be run, either natively or
// through the configured emulator.
func CanRunHost(c *recipe.Conanfile) bool {
	return c.CanRun() || len(c.Conf.GetStrings(ConfEmulator)) > 0
}

// RunHost runs a host binary, like a test suite or a code generator that
// was built for the host.
// When cross-building without emulator the command is skipped, and
// RunHost returns false.
func RunHost(ctx context.Context, c *recipe.Conanfile, dir string, args ...string) (bool, error) {
	if c.CanRun() {
		_, err := c.RunIn(ctx, dir, args...)
		return err == nil, err
	}
	emulator := c.Conf.GetStrings(ConfEmulator)
	if len(emulator) == 0 {
		c.UI.ReportInfo("Cross-building, not running '%s'", args[0])
		return false, nil
	}
	_, err := c.RunIn(ctx, dir, append(append([]string{}, emulator...), args...)...)
	return err == nil, err
}
