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

// Package gnu contains the Autotools and Make integrations: GNU triplets,
// the Autotools toolchain and its dependency flags, and the drivers that
// run configure and make.
package gnu

import (
	"fmt"
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

var machines = map[string]string{
	"x86":     "i686",
	"x86_64":  "x86_64",
	"armv8":   "aarch64",
	"armv8.3": "aarch64",
	"ppc64le": "powerpc64le",
	"ppc64":   "powerpc64",
	"ppc32":   "powerpc",
	"riscv64": "riscv64",
	"riscv32": "riscv32",
	"s390x":   "s390x",
	"wasm":    "wasm32",
	"asm.js":  "asmjs",
}

var systems = map[string]string{
	recipe.OSWindows: "w64-mingw32",
	recipe.OSLinux:   "linux-gnu",
	recipe.OSAndroid: "linux-android",
	recipe.OSMacos:   "apple-darwin",
	recipe.OSiOS:     "apple-ios",
	"watchOS":        "apple-watchos",
	"tvOS":           "apple-tvos",
	"visionOS":       "apple-xros",
	recipe.OSFreeBSD: "unknown-freebsd",
	"Emscripten":     "local-emscripten",
	"Neutrino":       "nto-qnx",
}

// Triplet returns the GNU triplet (machine-vendor-os) of the given
// settings. The compiler only matters on Windows, where msvc targets
// unknown-windows and anything else MinGW.
func Triplet(osName string, arch string, compiler string) (string, error) {
	if osName == "" || arch == "" {
		return "", fmt.Errorf("can't compute the GNU triplet without os and arch")
	}
	machine, ok := machines[arch]
	if !ok {
		switch {
		case strings.HasPrefix(arch, "arm"):
			machine = "arm"
		case strings.HasPrefix(arch, "mips"):
			machine = arch
		default:
			return "", fmt.Errorf("unknown arch '%s' for the GNU triplet", arch)
		}
	}
	system, ok := systems[osName]
	if !ok {
		system = strings.ToLower(osName)
	}
	if osName == recipe.OSWindows && compiler == recipe.CompilerMSVC {
		system = "unknown-windows"
	}
	if osName == recipe.OSLinux || osName == recipe.OSAndroid {
		if strings.HasPrefix(arch, "arm") && !strings.HasPrefix(arch, "armv8") {
			system += "eabi"
			if osName == recipe.OSLinux && strings.HasSuffix(arch, "hf") {
				system += "hf"
			}
		}
	}
	return machine + "-" + system, nil
}

// HostTriplet returns the triplet of the host settings of c.
func HostTriplet(c *recipe.Conanfile) (string, error) {
	s := c.Settings
	return Triplet(s.Get("os"), s.Get("arch"), s.Get("compiler"))
}

// BuildTriplet returns the triplet of the build settings of c.
func BuildTriplet(c *recipe.Conanfile) (string, error) {
	s := c.SettingsBuild
	return Triplet(s.Get("os"), s.Get("arch"), s.Get("compiler"))
}
