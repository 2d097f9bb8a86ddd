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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `
[settings]
os=Linux
arch=x86_64
compiler=gcc
compiler.version=12
compiler.cppstd=gnu17
build_type=Release

[options]
boost/*:with_fiber=True
shared=True

[conf]
tools.build:jobs=8
tools.build:skip_test=True
user.cuda:architectures=['70', '80']

[buildenv]
CC=gcc-12
CFLAGS+=-O2
PATH=+(path)/opt/tools/bin
LD_PRELOAD=!
`

func Test_Profile(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		p := NewProfile()
		require.NoError(t, p.ParseString(testProfile))
		assert.Equal(t, "gcc", p.Settings["compiler"])
		assert.Equal(t, "gnu17", p.Settings["compiler.cppstd"])
		assert.Equal(t, []OptionAssignment{
			{Pattern: "boost/*", Name: "with_fiber", Value: "True"},
			{Name: "shared", Value: "True"},
		}, p.Options)
		assert.Equal(t, 8, p.Conf.GetInt(ConfBuildJobs, 0))
		assert.True(t, p.Conf.GetBool(ConfSkipTest, false))
		assert.Equal(t, []string{"70", "80"}, p.Conf.GetStrings("user.cuda:architectures"))

		ops := p.BuildEnv.Ops()
		require.Len(t, ops, 4)
		assert.Equal(t, EnvOp{Kind: EnvDefine, Name: "CC", Value: "gcc-12"}, ops[0])
		assert.Equal(t, EnvOp{Kind: EnvAppend, Name: "CFLAGS", Value: "-O2", Separator: " "}, ops[1])
		assert.Equal(t, EnvPrependPath, ops[2].Kind)
		assert.Equal(t, "/opt/tools/bin", ops[2].Value)
		assert.Equal(t, EnvUnset, ops[3].Kind)
	})

	t.Run("Errors", func(t *testing.T) {
		assert.Error(t, NewProfile().ParseString("os=Linux\n"))
		assert.Error(t, NewProfile().ParseString("[unknown]\nfoo=bar\n"))
		assert.Error(t, NewProfile().ParseString("[conf]\nbuild:jobs=2\n"))
		assert.Error(t, NewProfile().ParseString("[options]\n:=True\n"))
	})

	t.Run("File", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "linux")
		require.NoError(t, os.WriteFile(path, []byte(testProfile), 0644))
		p, err := ReadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, "Linux", p.Settings["os"])

		_, err = ReadProfile(filepath.Join(dir, "missing"))
		assert.Error(t, err)
	})

	t.Run("Update", func(t *testing.T) {
		p := NewProfile()
		require.NoError(t, p.ParseString(testProfile))
		c := p.Copy()
		require.NoError(t, c.Update(
			[]string{"build_type=Debug"},
			[]string{"zlib:shared=False"},
			[]string{"tools.build:jobs=2"}))
		assert.Equal(t, "Debug", c.Settings["build_type"])
		assert.Equal(t, "Release", p.Settings["build_type"])
		assert.Len(t, c.Options, 3)
		assert.Equal(t, 2, c.Conf.GetInt(ConfBuildJobs, 0))
		assert.Equal(t, 8, p.Conf.GetInt(ConfBuildJobs, 0))

		assert.Error(t, c.Update([]string{"build_type"}, nil, nil))
		assert.Error(t, c.Update(nil, nil, []string{"jobs=2"}))
	})

	t.Run("String", func(t *testing.T) {
		p := NewProfile()
		p.Settings["os"] = "Linux"
		p.Settings["arch"] = "armv8"
		p.Options = []OptionAssignment{{Pattern: "zlib", Name: "shared", Value: "True"}}
		assert.Equal(t, "[settings]\narch=armv8\nos=Linux\n[options]\nzlib:shared=True\n", p.String())

		// The rendered form parses back.
		other := NewProfile()
		require.NoError(t, other.ParseString(p.String()))
		assert.Equal(t, p.Settings, other.Settings)
		assert.Equal(t, p.Options, other.Options)
	})

	t.Run("Options for", func(t *testing.T) {
		p := NewProfile()
		require.NoError(t, p.ParseString(testProfile))
		assert.Len(t, p.optionsFor(MustParseRef("app/1.0"), true), 1)
		assert.Len(t, p.optionsFor(MustParseRef("boost/1.85.0"), false), 1)
		assert.Empty(t, p.optionsFor(MustParseRef("zlib/1.3.1"), false))
	})

	t.Run("Detect", func(t *testing.T) {
		p := DetectProfile()
		assert.Equal(t, "Release", p.Settings["build_type"])
		assert.NotEmpty(t, p.Settings["compiler"])
	})
}
