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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStagedOptions(t *testing.T, stage *Stage) *Options {
	o, err := NewOptions(map[string]OptionDef{
		"shared":    BoolOption(),
		"fPIC":      BoolOption(),
		"opt_level": EnumOption("generic", "avx2", "avx512"),
		"namespace": AnyOption(),
	}, map[string]interface{}{
		"shared":                false,
		"fPIC":                  true,
		"opt_level":             "avx2",
		"namespace":             nil,
		"boost/*:with_fiber":    true,
		"openblas:build_lapack": true,
	})
	require.NoError(t, err)
	o.stage = func() Stage { return *stage }
	return o
}

func Test_Options(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		stage := StageInit
		o := newStagedOptions(t, &stage)
		assert.Equal(t, False, o.Get("shared"))
		assert.True(t, o.Bool("fPIC"))
		assert.Equal(t, "avx2", o.Get("opt_level"))
		assert.Equal(t, None, o.Get("namespace"))
		assert.Equal(t, []string{"fPIC", "namespace", "opt_level", "shared"}, o.Names())
		assert.Equal(t, "fPIC=True namespace=None opt_level=avx2 shared=False", o.String())
	})

	t.Run("Invalid default", func(t *testing.T) {
		_, err := NewOptions(map[string]OptionDef{"shared": BoolOption()},
			map[string]interface{}{"shared": "maybe"})
		assert.Error(t, err)
	})

	t.Run("Priorities", func(t *testing.T) {
		stage := StageInit
		o := newStagedOptions(t, &stage)
		require.NoError(t, o.override("opt_level", "avx512", true))
		stage = StageConfigOptions
		// A conditional default doesn't beat a user value.
		require.NoError(t, o.Set("opt_level", "generic"))
		assert.Equal(t, "avx512", o.Get("opt_level"))
		stage = StageConfigure
		// Values set in configure are final.
		require.NoError(t, o.Set("opt_level", "generic"))
		assert.Equal(t, "generic", o.Get("opt_level"))
		changed, err := o.wouldChange("opt_level", "avx2")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("Normalize", func(t *testing.T) {
		stage := StageConfigure
		o := newStagedOptions(t, &stage)
		require.NoError(t, o.Set("shared", "true"))
		assert.Equal(t, True, o.Get("shared"))
		assert.Error(t, o.Set("opt_level", "sse"))
		assert.Error(t, o.Set("unknown", true))
		require.NoError(t, o.Set("namespace", "my_ns"))
		assert.Equal(t, "my_ns", o.Get("namespace"))
	})

	t.Run("Delete", func(t *testing.T) {
		stage := StageConfigOptions
		o := newStagedOptions(t, &stage)
		require.NoError(t, o.Delete("fPIC"))
		assert.False(t, o.Has("fPIC"))
		assert.True(t, o.Declared("fPIC"))
		assert.Error(t, o.Delete("fPIC"))
		assert.NoError(t, o.RmSafe("fPIC"))
		assert.Equal(t, []string{"fPIC"}, o.Deleted(StageConfigOptions))
		_, ok := o.Values()["fPIC"]
		assert.False(t, ok)

		// Overrides of deleted options are ignored.
		require.NoError(t, o.override("fPIC", "True", true))
		assert.False(t, o.Has("fPIC"))
		changed, err := o.wouldChange("fPIC", "False")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("Frozen", func(t *testing.T) {
		stage := StageValidate
		o := newStagedOptions(t, &stage)
		assert.Error(t, o.Set("shared", true))
		assert.Error(t, o.RmSafe("fPIC"))
		assert.Error(t, o.Dep("zlib").Set("shared", true))
	})

	t.Run("Pins", func(t *testing.T) {
		stage := StageConfigure
		o := newStagedOptions(t, &stage)
		require.NoError(t, o.Dep("boost/*").Set("without_python", true))
		assert.Equal(t, []OptionAssignment{{Pattern: "boost/*", Name: "without_python", Value: True}}, o.Pins())
	})

	t.Run("Unknown override", func(t *testing.T) {
		stage := StageInit
		o := newStagedOptions(t, &stage)
		assert.Error(t, o.override("unknown", "1", true))
		assert.NoError(t, o.override("unknown", "1", false))
		assert.Error(t, o.override("shared", "maybe", false))
	})
}

func Test_DependencyDefaults(t *testing.T) {
	defaults := DependencyDefaults(map[string]interface{}{
		"shared":                false,
		"boost/*:with_fiber":    true,
		"openblas:build_lapack": true,
	})
	assert.Equal(t, []OptionAssignment{
		{Pattern: "boost/*", Name: "with_fiber", Value: True},
		{Pattern: "openblas", Name: "build_lapack", Value: True},
	}, defaults)
}

func Test_ParseOptionAssignment(t *testing.T) {
	a, err := ParseOptionAssignment("boost/*:with_fiber=True")
	require.NoError(t, err)
	assert.Equal(t, OptionAssignment{Pattern: "boost/*", Name: "with_fiber", Value: "True"}, a)
	assert.Equal(t, "boost/*:with_fiber=True", a.String())

	a, err = ParseOptionAssignment(" shared = False ")
	require.NoError(t, err)
	assert.Equal(t, OptionAssignment{Name: "shared", Value: "False"}, a)

	_, err = ParseOptionAssignment("shared")
	assert.Error(t, err)
	_, err = ParseOptionAssignment("zlib:=True")
	assert.Error(t, err)
}
