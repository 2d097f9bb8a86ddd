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
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

type rangeKind int

const (
	// A semver range accepts all versions up to the next incompatible one.
	// For example "^1.2.3" accepts "1.9.0" but not "2.0.0".
	semverRange rangeKind = iota
	// A tilde range accepts all versions with the same prefix, up to the
	// last given segment.
	// For example "~12.4" accepts "12.4.1" but not "12.5".
	tildeRange
)

// VersionRange is a parsed version range expression, like ">=3.16",
// "^1.3.0", "~12.4", "*" or ">=0.3.28 <1 || 2".
// Space separated conditions must all hold; alternatives are separated
// by "||".
type VersionRange struct {
	raw               string
	alternatives      []version.Constraints
	any               bool
	includePrerelease bool
}

// IsVersionRange returns whether the version part of a reference is a
// range expression, that is, enclosed in brackets.
func IsVersionRange(v string) bool {
	return strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")
}

// ParseVersionRange parses a range expression.
// The surrounding brackets are optional.
func ParseVersionRange(str string) (*VersionRange, error) {
	raw := strings.TrimSpace(str)
	expr := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	result := &VersionRange{raw: raw}

	// Flags come after a ','.
	if idx := strings.Index(expr, ","); idx >= 0 {
		for _, flag := range strings.Split(expr[idx+1:], ",") {
			switch strings.TrimSpace(flag) {
			case "include_prerelease":
				result.includePrerelease = true
			case "":
			default:
				return nil, fmt.Errorf("unknown version range flag '%s' in '%s'", strings.TrimSpace(flag), str)
			}
		}
		expr = expr[:idx]
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty version range")
	}

	for _, alternative := range strings.Split(expr, "||") {
		alternative = strings.TrimSpace(alternative)
		if alternative == "*" || alternative == "" {
			result.any = true
			continue
		}
		var cs version.Constraints
		for _, cond := range strings.Fields(alternative) {
			parsed, err := parseCondition(cond)
			if err != nil {
				return nil, fmt.Errorf("invalid version range '%s': %w", str, err)
			}
			cs = append(cs, parsed...)
		}
		result.alternatives = append(result.alternatives, cs)
	}
	return result, nil
}

func parseCondition(cond string) (version.Constraints, error) {
	switch {
	case strings.HasPrefix(cond, "^"):
		return parseConstraintRange(strings.TrimPrefix(cond, "^"), semverRange)
	case strings.HasPrefix(cond, "~"):
		return parseConstraintRange(strings.TrimPrefix(cond, "~"), tildeRange)
	case cond == "*":
		return version.NewConstraint(">=0")
	}
	// Conditions may be glued to their operator ('>=1.2') or not, but
	// version.NewConstraint handles both.
	return version.NewConstraint(cond)
}

func parseConstraintRange(vStr string, kind rangeKind) (version.Constraints, error) {
	v, err := version.NewVersion(vStr)
	if err != nil {
		return nil, err
	}
	// Only consider the segments that were given explicitly.
	given := strings.Count(strings.SplitN(strings.SplitN(vStr, "-", 2)[0], "+", 2)[0], ".") + 1
	segments := v.Segments()
	if given > len(segments) {
		given = len(segments)
	}
	segments = segments[:given]
	upper := ""
	if kind == semverRange {
		// '^1.2.3' is equivalent to '>=1.2.3,<2.0.0' and
		// '^0.1.2' is equivalent to '>=0.1.2,<0.2.0'
		reset := false
		bumped := false
		for i, segment := range segments {
			if reset {
				segments[i] = 0
			} else if segment != 0 {
				segments[i] = segment + 1
				reset = true
				bumped = true
			}
		}
		if !bumped {
			// '^0' or '^0.0': bump the last segment.
			segments[len(segments)-1]++
		}
	} else {
		// '~12.4' is equivalent to '>=12.4,<12.5', and '~1' to '>=1,<2'.
		// With three or more segments, the minor is bumped: '~1.2.3' is
		// '>=1.2.3,<1.3'.
		bumpIdx := len(segments) - 1
		if bumpIdx > 1 {
			bumpIdx = 1
		}
		segments = segments[:bumpIdx+1]
		segments[bumpIdx]++
	}
	strs := make([]string, len(segments))
	for i, segment := range segments {
		strs[i] = fmt.Sprint(segment)
	}
	upper = strings.Join(strs, ".")
	expandedConstraint := ">=" + vStr + ",<" + upper
	return version.NewConstraint(expandedConstraint)
}

// Match returns whether the given version satisfies the range.
// Versions that don't follow the dotted numeric scheme, like "system" or
// "cci.20230101", only match '*'.
func (r *VersionRange) Match(v string) bool {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return r.any
	}
	if parsed.Prerelease() != "" && !r.includePrerelease {
		return false
	}
	if r.any {
		return true
	}
	if r.includePrerelease && parsed.Prerelease() != "" {
		// go-version refuses to compare prereleases against release
		// constraints. Use the core version instead.
		segments := parsed.Segments()
		strs := make([]string, len(segments))
		for i, segment := range segments {
			strs[i] = fmt.Sprint(segment)
		}
		core, err := version.NewVersion(strings.Join(strs, "."))
		if err != nil {
			return false
		}
		parsed = core
	}
	for _, cs := range r.alternatives {
		if cs.Check(parsed) {
			return true
		}
	}
	return false
}

// Highest returns the highest of the candidates matching the range.
func (r *VersionRange) Highest(candidates []string) (string, bool) {
	matching := []string{}
	for _, c := range candidates {
		if r.Match(c) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return "", false
	}
	SortVersions(matching)
	return matching[len(matching)-1], true
}

func (r *VersionRange) String() string {
	return r.raw
}

// SortVersions sorts the given versions in increasing order.
// Versions that can't be parsed are sorted before all others, in
// lexicographic order.
func SortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) < 0
	})
}

// CompareVersions compares two version strings.
func CompareVersions(a string, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}
