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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EnvOverlay(t *testing.T) {
	t.Run("Apply", func(t *testing.T) {
		e := NewEnvOverlay()
		e.Define("CC", "gcc")
		e.Append("CFLAGS", "-O2", "")
		e.Prepend("CFLAGS", "-g", "")
		e.PrependPath("PATH", "/opt/bin")
		e.AppendPath("PKG_CONFIG_PATH", "/opt/lib/pkgconfig")
		e.Unset("LD_PRELOAD")
		result := e.Apply(map[string]string{
			"CFLAGS":     "-Wall",
			"PATH":       "/usr/bin",
			"LD_PRELOAD": "libfoo.so",
		}, ":")
		assert.Equal(t, map[string]string{
			"CC":              "gcc",
			"CFLAGS":          "-g -Wall -O2",
			"PATH":            "/opt/bin:/usr/bin",
			"PKG_CONFIG_PATH": "/opt/lib/pkgconfig",
		}, result)
	})

	t.Run("Windows separator", func(t *testing.T) {
		e := NewEnvOverlay()
		e.PrependPath("PATH", `C:\tools`)
		result := e.Apply(map[string]string{"PATH": `C:\Windows`}, ";")
		assert.Equal(t, `C:\tools;C:\Windows`, result["PATH"])
	})

	t.Run("Compose", func(t *testing.T) {
		a := NewEnvOverlay()
		a.Define("X", "1")
		b := NewEnvOverlay()
		b.Define("X", "2")
		composed := Compose(a, nil, b)
		assert.Equal(t, "2", composed.Apply(nil, ":")["X"])
		assert.Len(t, a.Ops(), 1)
		assert.True(t, Compose().IsEmpty())
	})

	t.Run("Environ", func(t *testing.T) {
		e := NewEnvOverlay()
		e.Define("B", "2")
		assert.Equal(t, []string{"A=1", "B=2"}, e.Environ([]string{"A=1", "B=1"}, ":"))
	})

	t.Run("Scripts", func(t *testing.T) {
		e := NewEnvOverlay()
		e.Define("CC", "gcc")
		e.Define("MSG", "hello world")
		e.PrependPath("PATH", "/opt/bin")
		e.Unset("LD_PRELOAD")

		var sh bytes.Buffer
		require.NoError(t, e.RenderSh(&sh))
		assert.Equal(t, `# Generated environment script.
export CC=gcc
export MSG='hello world'
export PATH=/opt/bin"${PATH:+:$PATH}"
unset LD_PRELOAD
`, sh.String())

		var bat bytes.Buffer
		require.NoError(t, e.RenderBat(&bat))
		assert.Equal(t, "@echo off\r\nrem Generated environment script.\r\n"+
			"set \"CC=gcc\"\r\n"+
			"set \"MSG=hello world\"\r\n"+
			"set \"PATH=/opt/bin;%PATH%\"\r\n"+
			"set LD_PRELOAD=\r\n", bat.String())
	})
}

func Test_Conf(t *testing.T) {
	c := NewConf()
	require.NoError(t, c.Define(ConfBuildJobs, 4))
	require.NoError(t, c.Define("user.faiss:cuda", true))
	assert.Error(t, c.Define("jobs", 1))
	assert.Equal(t, 4, c.GetInt(ConfBuildJobs, 0))
	assert.Equal(t, 7, c.GetInt("tools.build:missing", 7))
	assert.True(t, c.GetBool("user.faiss:cuda", false))

	other := c.Copy()
	require.NoError(t, other.Define(ConfBuildJobs, 2))
	assert.Equal(t, 4, c.GetInt(ConfBuildJobs, 0))

	c.Update(other)
	assert.Equal(t, 2, c.GetInt(ConfBuildJobs, 0))
	c.Unset(ConfBuildJobs)
	assert.False(t, c.Has(ConfBuildJobs))

	assert.Equal(t, true, ParseConfValue("True"))
	assert.Equal(t, 12, ParseConfValue(" 12 "))
	assert.Equal(t, []string{"a", "b"}, ParseConfValue("['a', \"b\"]"))
	assert.Equal(t, "Ninja", ParseConfValue("Ninja"))
}
