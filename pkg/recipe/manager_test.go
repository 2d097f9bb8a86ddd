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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

type buildCounter struct {
	sources int
	builds  int
}

func zlibRecipe(counter *buildCounter) *Recipe {
	return zlibBuilder(counter).MustBuild()
}

func zlibBuilder(counter *buildCounter) *Builder {
	return NewBuilder(libraryMeta("zlib", "1.3.1")).
		On(StageLayout, func(ctx context.Context, c *Conanfile) error {
			return BasicLayout(c, "src")
		}).
		On(StageSource, func(ctx context.Context, c *Conanfile) error {
			counter.sources++
			return writeTestFile(filepath.Join(c.SourceFolder(), "zlib.c"), "int deflate;")
		}).
		On(StageBuild, func(ctx context.Context, c *Conanfile) error {
			counter.builds++
			if _, err := c.Run(ctx, "make", "-j4"); err != nil {
				return err
			}
			return writeTestFile(filepath.Join(c.BuildFolder(), "libz.a"), "archive")
		}).
		On(StagePackage, func(ctx context.Context, c *Conanfile) error {
			name := "libz.a"
			if c.Options.Bool("shared") {
				name = "libz.so.1.3.1"
			}
			if err := writeTestFile(filepath.Join(c.PackageFolder(), "lib", name), "archive"); err != nil {
				return err
			}
			if err := writeTestFile(filepath.Join(c.PackageFolder(), "include", "zlib.h"), "// zlib"); err != nil {
				return err
			}
			return writeTestFile(filepath.Join(c.PackageFolder(), LicensesDir, "LICENSE"), "zlib license")
		}).
		On(StagePackageInfo, func(ctx context.Context, c *Conanfile) error {
			c.CppInfo.Libs = []string{"z"}
			c.CppInfo.SetProperty(PropCMakeFileName, "ZLIB")
			return nil
		})
}

func ninjaRecipe() *Recipe {
	meta := appMeta("ninja")
	meta.Version = "1.11.1"
	return NewBuilder(meta).
		On(StagePackage, func(ctx context.Context, c *Conanfile) error {
			if err := writeTestFile(filepath.Join(c.PackageFolder(), "bin", "ninja"), "#!/bin/sh"); err != nil {
				return err
			}
			return writeTestFile(filepath.Join(c.PackageFolder(), LicensesDir, "COPYING"), "Apache")
		}).
		On(StagePackageInfo, func(ctx context.Context, c *Conanfile) error {
			c.RunEnvInfo.PrependPath("PATH", filepath.Join(c.PackageFolder(), "bin"))
			return c.ConfInfo.Define(ConfCMakeGenerator, "Ninja")
		}).MustBuild()
}

func consumerRecipe(seen *[]string) *Recipe {
	return NewBuilder(appMeta("app")).
		On(StageRequirements, func(ctx context.Context, c *Conanfile) error {
			return c.Requires("zlib/1.3.1")
		}).
		On(StageBuildRequirements, func(ctx context.Context, c *Conanfile) error {
			return c.ToolRequires("ninja/1.11.1")
		}).
		On(StageGenerate, func(ctx context.Context, c *Conanfile) error {
			zlib, ok := c.Dependencies.Host("zlib")
			if !ok {
				return NewFrameworkError("zlib missing")
			}
			*seen = append(*seen, zlib.CppInfo.Libs...)
			*seen = append(*seen, c.Conf.GetString(ConfCMakeGenerator, ""))
			return nil
		}).
		On(StagePackage, func(ctx context.Context, c *Conanfile) error {
			if err := writeTestFile(filepath.Join(c.PackageFolder(), "bin", "app"), "binary"); err != nil {
				return err
			}
			return writeTestFile(filepath.Join(c.PackageFolder(), LicensesDir, "LICENSE"), "MIT")
		}).MustBuild()
}

func newTestManager(t *testing.T, provider Provider, runner Runner) (*Manager, Cache) {
	cache := NewCache(t.TempDir(), &testUI{})
	return NewManager(cache, provider, runner, &testUI{}), cache
}

func Test_Manager(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		counter := &buildCounter{}
		seen := []string{}
		p := NewMemoryProvider()
		p.Add(zlibRecipe(counter), nil, "1.3.1")
		p.Add(ninjaRecipe(), nil, "1.11.1")
		p.Add(consumerRecipe(&seen), nil, "1.0")
		runner := &recordingRunner{}
		m, cache := newTestManager(t, p, runner)

		g, err := m.Create(ctx, MustParseRef("app/1.0"), linuxProfile(), nil, BuildMissing)
		require.NoError(t, err)
		assert.Equal(t, 1, counter.sources)
		assert.Equal(t, 1, counter.builds)
		assert.Equal(t, []string{"make -j4"}, runner.lines())
		assert.Equal(t, []string{"z", "Ninja"}, seen)

		zlib, _ := g.Find("zlib", ScopeHost)
		ok, err := cache.HasPackage(zlib.Ref, zlib.PackageID())
		require.NoError(t, err)
		assert.True(t, ok)

		manifest, err := ReadManifest(cache.PackagePath(zlib.Ref, zlib.PackageID()))
		require.NoError(t, err)
		assert.Equal(t, zlib.PackageID(), manifest.PackageID)
		assert.Equal(t, []string{"include/zlib.h", "lib/libz.a", "licenses/LICENSE"}, manifest.Paths())
		diffs, err := manifest.Verify(cache.PackagePath(zlib.Ref, zlib.PackageID()))
		require.NoError(t, err)
		assert.Empty(t, diffs)

		// The build environment contains the run environment of the tool.
		root := g.Root.Conanfile
		ops := root.BuildEnv.Ops()
		require.Len(t, ops, 1)
		assert.Equal(t, "PATH", ops[0].Name)
		script := filepath.Join(root.GeneratorsFolder(), BuildEnvScriptName+".sh")
		ok, err = isFile(script)
		require.NoError(t, err)
		assert.True(t, ok)

		// A second run consumes the cached zlib, and rebuilds the root.
		runner.commands = nil
		_, err = m.Create(ctx, MustParseRef("app/1.0"), linuxProfile(), nil, BuildNever)
		require.NoError(t, err)
		assert.Equal(t, 1, counter.builds)
		assert.Empty(t, runner.commands)
		assert.Equal(t, []string{"z", "Ninja", "z", "Ninja"}, seen)
	})

	t.Run("Missing binary", func(t *testing.T) {
		counter := &buildCounter{}
		p := NewMemoryProvider()
		p.Add(zlibRecipe(counter), nil, "1.3.1")
		m, _ := newTestManager(t, p, &recordingRunner{})
		g, err := m.Graph(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil)
		require.NoError(t, err)
		err = m.Install(ctx, g, InstallOptions{Policy: BuildNever})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing binary")
		assert.Equal(t, 0, counter.builds)
	})

	t.Run("Compatible binary", func(t *testing.T) {
		counter := &buildCounter{}
		r := zlibBuilder(counter).
			On(StageCompatibility, func(ctx context.Context, c *Conanfile) error {
				if c.Options.Bool("fPIC") {
					return nil
				}
				return c.AddCompatible(Compatible{Options: map[string]string{"fPIC": "True"}})
			}).MustBuild()
		p := NewMemoryProvider()
		p.Add(r, nil, "1.3.1")
		m, cache := newTestManager(t, p, &recordingRunner{})

		pic, err := m.Create(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil, BuildMissing)
		require.NoError(t, err)
		require.Equal(t, 1, counter.builds)
		assert.Regexp(t, "^[0-9a-f]{40}$", pic.Root.PackageID())

		profile := linuxProfile()
		profile.Options = []OptionAssignment{{Name: "fPIC", Value: "False"}}
		g, err := m.Graph(ctx, MustParseRef("zlib/1.3.1"), profile, nil)
		require.NoError(t, err)
		require.NotEqual(t, pic.Root.PackageID(), g.Root.PackageID())
		require.NoError(t, m.Install(ctx, g, InstallOptions{Policy: BuildNever}))
		assert.Equal(t, 1, counter.builds)
		assert.Equal(t, cache.PackagePath(g.Root.Ref, pic.Root.PackageID()), g.Root.Conanfile.PackageFolder())
		assert.Equal(t, []string{"z"}, g.Root.Conanfile.CppInfo.Libs)

		// Without a compatible binary the exact one is still missing.
		profile.Options = []OptionAssignment{{Name: "shared", Value: "True"}}
		g, err = m.Graph(ctx, MustParseRef("zlib/1.3.1"), profile, nil)
		require.NoError(t, err)
		err = m.Install(ctx, g, InstallOptions{Policy: BuildNever})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing binary")
	})

	t.Run("Invalid build with cached binary", func(t *testing.T) {
		counter := &buildCounter{}
		blocked := false
		r := zlibBuilder(counter).
			On(StageValidateBuild, func(ctx context.Context, c *Conanfile) error {
				if blocked {
					return NewInvalidBuild("the compiler can't build zlib")
				}
				return nil
			}).MustBuild()
		p := NewMemoryProvider()
		p.Add(r, nil, "1.3.1")
		m, _ := newTestManager(t, p, &recordingRunner{})

		_, err := m.Create(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil, BuildMissing)
		require.NoError(t, err)
		blocked = true

		g, err := m.Graph(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil)
		require.NoError(t, err)
		require.NoError(t, m.Install(ctx, g, InstallOptions{Policy: BuildMissing}))
		assert.Equal(t, 1, counter.builds)
		assert.Equal(t, []string{"z"}, g.Root.Conanfile.CppInfo.Libs)

		g, err = m.Graph(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil)
		require.NoError(t, err)
		err = m.Install(ctx, g, InstallOptions{Policy: BuildAlways})
		assert.True(t, IsInvalidBuild(err))
		assert.Equal(t, 1, counter.builds)
	})

	t.Run("Shared source", func(t *testing.T) {
		counter := &buildCounter{}
		p := NewMemoryProvider()
		p.Add(zlibRecipe(counter), nil, "1.3.1")
		m, cache := newTestManager(t, p, &recordingRunner{})

		static, err := m.Create(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil, BuildMissing)
		require.NoError(t, err)
		profile := linuxProfile()
		profile.Options = []OptionAssignment{{Name: "shared", Value: "True"}}
		shared, err := m.Create(ctx, MustParseRef("zlib/1.3.1"), profile, nil, BuildMissing)
		require.NoError(t, err)

		assert.NotEqual(t, static.Root.PackageID(), shared.Root.PackageID())
		assert.Equal(t, 1, counter.sources)
		assert.Equal(t, 2, counter.builds)
		ids, err := cache.PackageIDs(MustParseRef("zlib/1.3.1"))
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})

	t.Run("Invalid configuration", func(t *testing.T) {
		r := NewBuilder(libraryMeta("gurobi", "11.0.0")).
			On(StageValidate, func(ctx context.Context, c *Conanfile) error {
				if c.Settings.Get("os") != OSWindows {
					return NewInvalidConfiguration("only Windows binaries are available")
				}
				return nil
			}).MustBuild()
		p := NewMemoryProvider()
		p.Add(r, nil, "11.0.0")
		m, _ := newTestManager(t, p, &recordingRunner{})
		_, err := m.Create(ctx, MustParseRef("gurobi/11.0.0"), linuxProfile(), nil, BuildMissing)
		require.Error(t, err)
		assert.True(t, IsInvalidConfiguration(err))
	})

	t.Run("Missing license", func(t *testing.T) {
		r := NewBuilder(libraryMeta("eigen", "3.4.0")).
			On(StagePackage, func(ctx context.Context, c *Conanfile) error {
				return writeTestFile(filepath.Join(c.PackageFolder(), "lib", "libeigen.a"), "x")
			}).
			On(StagePackageInfo, func(ctx context.Context, c *Conanfile) error {
				c.CppInfo.Libs = []string{"eigen"}
				return nil
			}).MustBuild()
		p := NewMemoryProvider()
		p.Add(r, nil, "3.4.0")
		m, cache := newTestManager(t, p, &recordingRunner{})
		g, err := m.Create(ctx, MustParseRef("eigen/3.4.0"), linuxProfile(), nil, BuildMissing)
		require.Error(t, err)
		assert.True(t, IsFramework(err))
		ok, err := cache.HasPackage(g.Root.Ref, g.Root.PackageID())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Failing command", func(t *testing.T) {
		counter := &buildCounter{}
		p := NewMemoryProvider()
		p.Add(zlibRecipe(counter), nil, "1.3.1")
		runner := &recordingRunner{
			onRun: func(cmd Command) (string, error) {
				return "boom", &ExternalToolError{Command: cmd.String(), ExitCode: 2, Output: "boom"}
			},
		}
		m, _ := newTestManager(t, p, runner)
		_, err := m.Create(ctx, MustParseRef("zlib/1.3.1"), linuxProfile(), nil, BuildMissing)
		require.Error(t, err)
		assert.True(t, IsExternalTool(err))
		var lerr *LifecycleError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, StageBuild, lerr.Stage)
	})
}

func Test_CheckPackage(t *testing.T) {
	ctx := context.Background()
	newPackaged := func(t *testing.T, meta Metadata, files []string, libs []string) *Conanfile {
		dir := t.TempDir()
		for _, f := range files {
			require.NoError(t, writeTestFile(filepath.Join(dir, filepath.FromSlash(f)), "x"))
		}
		r := NewBuilder(meta).
			On(StagePackageInfo, func(ctx context.Context, c *Conanfile) error {
				c.CppInfo.Libs = libs
				return nil
			}).MustBuild()
		c := newTestConanfile(t, r, linuxSettings)
		c.Folders.assignPackageFolders(filepath.Join(dir, "build"), dir)
		require.NoError(t, c.ExecuteUntil(ctx, StagePackageInfo))
		return c
	}

	t.Run("Valid", func(t *testing.T) {
		c := newPackaged(t, libraryMeta("gmp", "6.3.0"),
			[]string{"lib/libgmp.so.10", "licenses/COPYING"}, []string{"gmp"})
		assert.NoError(t, CheckPackage(c))
	})

	t.Run("Missing library", func(t *testing.T) {
		c := newPackaged(t, libraryMeta("gmp", "6.3.0"),
			[]string{"lib/libgmpxx.a", "licenses/COPYING"}, []string{"gmp"})
		err := CheckPackage(c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "library 'gmp' not found")
	})

	t.Run("Header library with lib folder", func(t *testing.T) {
		meta := libraryMeta("eigen", "3.4.0")
		meta.PackageType = HeaderLibrary
		c := newPackaged(t, meta, []string{"lib/libeigen.a", "licenses/COPYING"}, nil)
		assert.Error(t, CheckPackage(c))
	})

	t.Run("No license", func(t *testing.T) {
		c := newPackaged(t, libraryMeta("gmp", "6.3.0"), []string{"lib/libgmp.a"}, []string{"gmp"})
		assert.Error(t, CheckPackage(c))
	})
}

func Test_LibraryPatterns(t *testing.T) {
	assert.Equal(t, []string{"gmp.lib", "libgmp.a", "libgmp.dll.a", "libgmp.lib"}, LibraryPatterns("gmp", OSWindows))
	assert.Contains(t, LibraryPatterns("gmp", OSMacos), "libgmp.*.dylib")
	assert.Contains(t, LibraryPatterns("gmp", OSLinux), "libgmp.so.*")
}
