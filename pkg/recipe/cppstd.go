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

package recipe

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// Values of the tools.info.package_id:cppstd_policy conf.
const (
	CppstdPolicyInfer = "infer"
	CppstdPolicyFail  = "fail"
)

var cppstdOrder = []string{"98", "11", "14", "17", "20", "23", "26"}
var cstdOrder = []string{"89", "99", "11", "17", "23"}

func stdRank(order []string, std string) (int, bool, error) {
	gnu := strings.HasPrefix(std, "gnu")
	num := strings.TrimPrefix(std, "gnu")
	if num == "90" {
		num = "89"
	}
	for i, s := range order {
		if s == num {
			return i, gnu, nil
		}
	}
	return 0, false, NewFrameworkError("unknown language standard '%s'", std)
}

// CompareCppstd orders C++ standards. "gnuN" sorts directly after "N".
func CompareCppstd(a string, b string) (int, error) {
	return compareStd(cppstdOrder, a, b)
}

func compareStd(order []string, a string, b string) (int, error) {
	ra, ga, err := stdRank(order, a)
	if err != nil {
		return 0, err
	}
	rb, gb, err := stdRank(order, b)
	if err != nil {
		return 0, err
	}
	switch {
	case ra != rb:
		if ra < rb {
			return -1, nil
		}
		return 1, nil
	case ga == gb:
		return 0, nil
	case ga:
		return 1, nil
	}
	return -1, nil
}

// DefaultCppstd returns the standard the compiler uses when none is given.
func DefaultCppstd(compiler string, compilerVersion string) (string, bool) {
	v, err := version.NewVersion(compilerVersion)
	if err != nil {
		return "", false
	}
	major := v.Segments()[0]
	switch compiler {
	case CompilerGCC:
		switch {
		case major < 5:
			return "gnu98", true
		case major < 11:
			return "gnu14", true
		}
		return "gnu17", true
	case CompilerClang:
		switch {
		case major < 6:
			return "gnu98", true
		case major < 16:
			return "gnu14", true
		}
		return "gnu17", true
	case CompilerAppleClang:
		return "gnu98", true
	case CompilerMSVC:
		if major >= 190 {
			return "14", true
		}
		return "", false
	}
	return "", false
}

// EffectiveCppstd returns compiler.cppstd, or the compiler's default if the
// setting isn't given and the policy allows inferring it.
func EffectiveCppstd(c *Conanfile) (string, error) {
	if std := c.Settings.Get("compiler.cppstd"); std != "" {
		return std, nil
	}
	policy := c.Conf.GetString(ConfCppstdPolicy, CppstdPolicyInfer)
	if policy == CppstdPolicyFail {
		return "", NewInvalidConfiguration("%s requires compiler.cppstd to be set", c.Ref)
	}
	if policy != CppstdPolicyInfer {
		return "", NewFrameworkError("invalid %s '%s'", ConfCppstdPolicy, policy)
	}
	std, ok := DefaultCppstd(c.Settings.Get("compiler"), c.Settings.Get("compiler.version"))
	if !ok {
		return "", NewInvalidConfiguration("%s: can't infer the C++ standard of compiler '%s %s'",
			c.Ref, c.Settings.Get("compiler"), c.Settings.Get("compiler.version"))
	}
	return std, nil
}

// CheckMinCppstd fails with an InvalidConfigurationError if the effective
// C++ standard is lower than min.
func CheckMinCppstd(c *Conanfile, min string) error {
	std, err := EffectiveCppstd(c)
	if err != nil {
		return err
	}
	cmp, err := compareStdNumeric(cppstdOrder, std, min)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return NewInvalidConfiguration("%s requires C++%s, which your compiler configuration (%s) doesn't support", c.Ref, min, std)
	}
	return nil
}

// CheckMaxCppstd fails with an InvalidConfigurationError if the effective
// C++ standard is higher than max.
func CheckMaxCppstd(c *Conanfile, max string) error {
	std, err := EffectiveCppstd(c)
	if err != nil {
		return err
	}
	cmp, err := compareStdNumeric(cppstdOrder, std, max)
	if err != nil {
		return err
	}
	if cmp > 0 {
		return NewInvalidConfiguration("%s requires C++%s or lower, but compiler.cppstd is %s", c.Ref, max, std)
	}
	return nil
}

// ValidMinCppstd returns whether CheckMinCppstd would succeed.
func ValidMinCppstd(c *Conanfile, min string) bool {
	return CheckMinCppstd(c, min) == nil
}

// DefaultCstd returns the C standard the compiler uses when none is given.
func DefaultCstd(compiler string, compilerVersion string) (string, bool) {
	v, err := version.NewVersion(compilerVersion)
	if err != nil {
		return "", false
	}
	major := v.Segments()[0]
	switch compiler {
	case CompilerGCC:
		switch {
		case major < 5:
			return "gnu99", true
		case major < 8:
			return "gnu11", true
		case major < 15:
			return "gnu17", true
		}
		return "gnu23", true
	case CompilerClang, CompilerAppleClang:
		if major < 11 {
			return "gnu11", true
		}
		return "gnu17", true
	}
	return "", false
}

// EffectiveCstd returns compiler.cstd, or the compiler's default if the
// setting isn't given and the policy allows inferring it.
func EffectiveCstd(c *Conanfile) (string, error) {
	if std := c.Settings.Get("compiler.cstd"); std != "" {
		return std, nil
	}
	policy := c.Conf.GetString(ConfCppstdPolicy, CppstdPolicyInfer)
	if policy == CppstdPolicyFail {
		return "", NewInvalidConfiguration("%s requires compiler.cstd to be set", c.Ref)
	}
	if policy != CppstdPolicyInfer {
		return "", NewFrameworkError("invalid %s '%s'", ConfCppstdPolicy, policy)
	}
	std, ok := DefaultCstd(c.Settings.Get("compiler"), c.Settings.Get("compiler.version"))
	if !ok {
		return "", NewInvalidConfiguration("%s: can't infer the C standard of compiler '%s %s'",
			c.Ref, c.Settings.Get("compiler"), c.Settings.Get("compiler.version"))
	}
	return std, nil
}

// CheckMinCstd fails with an InvalidConfigurationError if the effective C
// standard is lower than min.
func CheckMinCstd(c *Conanfile, min string) error {
	std, err := EffectiveCstd(c)
	if err != nil {
		return err
	}
	cmp, err := compareStdNumeric(cstdOrder, std, min)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return NewInvalidConfiguration("%s requires C%s, which your compiler configuration (%s) doesn't support", c.Ref, min, std)
	}
	return nil
}

// compareStdNumeric ignores the gnu extension flag.
func compareStdNumeric(order []string, a string, b string) (int, error) {
	ra, _, err := stdRank(order, a)
	if err != nil {
		return 0, err
	}
	rb, _, err := stdRank(order, b)
	if err != nil {
		return 0, err
	}
	switch {
	case ra < rb:
		return -1, nil
	case ra > rb:
		return 1, nil
	}
	return 0, nil
}
