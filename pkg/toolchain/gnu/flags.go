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
	"strings"

	"github.com/toitlang/trecipe/pkg/recipe"
)

func isGCCLike(s *recipe.Settings) bool {
	compiler := s.Get("compiler")
	return compiler == recipe.CompilerGCC || strings.Contains(compiler, "clang")
}

// BuildTypeFlags returns the optimization and debug flags of the build
// type.
func BuildTypeFlags(s *recipe.Settings) []string {
	bt := s.Get("build_type")
	if recipe.IsMSVC(s) {
		switch bt {
		case "Debug":
			return []string{"-Zi", "-Ob0", "-Od"}
		case "Release":
			return []string{"-O2", "-Ob2"}
		case "RelWithDebInfo":
			return []string{"-Zi", "-O2", "-Ob1"}
		case "MinSizeRel":
			return []string{"-O1", "-Ob1"}
		}
		return nil
	}
	if !isGCCLike(s) {
		return nil
	}
	switch bt {
	case "Debug":
		return []string{"-g"}
	case "Release":
		return []string{"-O3"}
	case "RelWithDebInfo":
		return []string{"-O2", "-g"}
	case "MinSizeRel":
		return []string{"-Os"}
	}
	return nil
}

// NDebugDefine returns "NDEBUG" for the optimized build types.
func NDebugDefine(s *recipe.Settings) []string {
	switch s.Get("build_type") {
	case "Release", "RelWithDebInfo", "MinSizeRel":
		return []string{"NDEBUG"}
	}
	return nil
}

// ArchFlag returns -m32 or -m64 for gcc-like compilers on targets where
// the driver supports them.
func ArchFlag(s *recipe.Settings) string {
	if !isGCCLike(s) || recipe.IsApple(s.Get("os")) || s.Get("os") == recipe.OSAndroid {
		return ""
	}
	switch s.Get("arch") {
	case "x86":
		return "-m32"
	case "x86_64", "ppc64", "ppc64le", "s390x":
		return "-m64"
	}
	return ""
}

// CppstdFlag returns the flag that selects compiler.cppstd.
func CppstdFlag(s *recipe.Settings) string {
	std := s.Get("compiler.cppstd")
	if std == "" {
		return ""
	}
	if recipe.IsMSVC(s) {
		std = strings.TrimPrefix(std, "gnu")
		switch std {
		case "98", "11", "14":
			return "-std:c++14"
		case "23", "26":
			return "-std:c++latest"
		}
		return "-std:c++" + std
	}
	if strings.HasPrefix(std, "gnu") {
		return "-std=gnu++" + strings.TrimPrefix(std, "gnu")
	}
	return "-std=c++" + std
}

// CstdFlag returns the flag that selects compiler.cstd.
func CstdFlag(s *recipe.Settings) string {
	std := s.Get("compiler.cstd")
	if std == "" {
		return ""
	}
	if recipe.IsMSVC(s) {
		return "-std:c" + strings.TrimPrefix(std, "gnu")
	}
	if strings.HasPrefix(std, "gnu") {
		return "-std=" + std
	}
	return "-std=c" + std
}

// RuntimeFlag returns the msvc runtime flag, like -MD or -MTd.
func RuntimeFlag(s *recipe.Settings) string {
	if !recipe.IsMSVC(s) {
		return ""
	}
	flag := "-MD"
	if s.Get("compiler.runtime") == "static" {
		flag = "-MT"
	}
	debug := s.Get("compiler.runtime_type") == "Debug"
	if s.Get("compiler.runtime_type") == "" {
		debug = s.Get("build_type") == "Debug"
	}
	if debug {
		flag += "d"
	}
	return flag
}

// LibcxxFlags returns the flags and defines that select compiler.libcxx.
func LibcxxFlags(s *recipe.Settings) (flags []string, defines []string) {
	libcxx := s.Get("compiler.libcxx")
	switch {
	case libcxx == "":
	case strings.Contains(s.Get("compiler"), "clang") && (libcxx == "libc++" || libcxx == "libstdc++"):
		flags = append(flags, "-stdlib="+libcxx)
	case s.Get("compiler") == recipe.CompilerGCC && libcxx == "libstdc++":
		defines = append(defines, "_GLIBCXX_USE_CXX11_ABI=0")
	case s.Get("compiler") == recipe.CompilerGCC && libcxx == "libstdc++11":
		defines = append(defines, "_GLIBCXX_USE_CXX11_ABI=1")
	}
	return flags, defines
}

func appendNonEmpty(list []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			list = append(list, v)
		}
	}
	return list
}
