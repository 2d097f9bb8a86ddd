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
)

// Execute moves the Conanfile to the given stage and runs the recipe's
// handler for it, followed by the built-in behavior of the stage.
// Stages can be skipped, but never revisited.
//
// An InvalidConfigurationError returned by validate doesn't fail the
// stage. It is recorded, and reported by Invalid and Info.Invalid.
func (c *Conanfile) Execute(ctx context.Context, stage Stage) error {
	if stage <= c.stage || stage >= StageFrozen {
		return c.wrap(stage, NewFrameworkError("can't enter stage '%s' from stage '%s'", stage, c.stage))
	}
	c.stage = stage
	if err := c.enter(stage); err != nil {
		return c.wrap(stage, err)
	}
	if h, ok := c.recipe.Handler(stage); ok {
		if err := h(ctx, c); err != nil {
			switch {
			case stage == StageValidate && IsInvalidConfiguration(err):
				c.invalid = err
			case stage == StageValidateBuild && IsInvalidBuild(err):
				c.invalidBuild = err
				return c.wrap(stage, err)
			default:
				return c.wrap(stage, err)
			}
		}
	}
	if err := c.leave(stage); err != nil {
		return c.wrap(stage, err)
	}
	return nil
}

// ExecuteUntil runs all stages after the current one, up to and including
// the given one.
// Producer-only stages are skipped unless the target is one of them.
func (c *Conanfile) ExecuteUntil(ctx context.Context, stage Stage) error {
	for s := c.stage + 1; s <= stage; s++ {
		if s.producerOnly() && !stage.producerOnly() {
			continue
		}
		if err := c.Execute(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conanfile) wrap(stage Stage, err error) error {
	if _, ok := err.(*LifecycleError); ok {
		return err
	}
	return &LifecycleError{Ref: c.Ref.String(), Stage: stage, Err: err}
}

func (c *Conanfile) enter(stage Stage) error {
	if stage > StageLayout {
		c.Folders.frozen = true
	}
	switch stage {
	case StagePackageID:
		c.Info = newInfo(c.Settings.Values(), c.Options.Values(), c.identityRequires)
		c.Info.Invalid = c.invalid
		c.Info.setGuard(func(op string) error {
			return c.checkStage(op, StagePackageID)
		})
	case StagePackageInfo:
		// package_info must compute its output from scratch.
		c.CppInfo = NewCppInfo()
		c.BuildEnvInfo = NewEnvOverlay()
		c.RunEnvInfo = NewEnvOverlay()
		c.ConfInfo = NewConf()
	}
	return nil
}

func (c *Conanfile) leave(stage Stage) error {
	switch stage {
	case StageConfigOptions:
		if c.recipe.Implements(AutoSharedFPIC) && c.Settings.Get("os") == OSWindows {
			return c.Options.RmSafe("fPIC")
		}
	case StageConfigure:
		return c.finishConfigure()
	case StageLayout:
		c.Folders.frozen = true
	case StagePackageID:
		if c.recipe.Implements(AutoHeaderOnly) && c.Options.Bool("header_only") {
			return c.Info.Clear()
		}
	case StagePackageInfo:
		if err := c.CppInfo.Validate(); err != nil {
			return err
		}
		if c.packageType == HeaderLibrary && len(c.CppInfo.AllLibs()) > 0 {
			return NewFrameworkError("header-library '%s' declares libraries %v", c.Ref, c.CppInfo.AllLibs())
		}
		c.stage = StageFrozen
	}
	return nil
}

func (c *Conanfile) finishConfigure() error {
	headerOnly := c.Options.Has("header_only") && c.Options.Bool("header_only")
	if c.recipe.Implements(AutoSharedFPIC) {
		if headerOnly || c.packageType == HeaderLibrary {
			if err := c.Options.RmSafe("fPIC"); err != nil {
				return err
			}
			if err := c.Options.RmSafe("shared"); err != nil {
				return err
			}
		} else if c.Options.Has("shared") && c.Options.Bool("shared") {
			if err := c.Options.RmSafe("fPIC"); err != nil {
				return err
			}
		}
	}
	switch c.packageType {
	case Library:
		if headerOnly {
			c.packageType = HeaderLibrary
		} else if c.Options.Has("shared") {
			if c.Options.Bool("shared") {
				c.packageType = SharedLibrary
			} else {
				c.packageType = StaticLibrary
			}
		}
	case StaticLibrary, SharedLibrary:
		if headerOnly && c.recipe.Implements(AutoHeaderOnly) {
			c.packageType = HeaderLibrary
		}
	}
	return nil
}

// PackageID returns the identity hash. Only valid after package_id.
func (c *Conanfile) PackageID() string {
	if c.Info == nil {
		return ""
	}
	return c.Info.PackageID()
}

// CompatibleInfos returns the identities of the declared compatible
// binaries, in declaration order.
func (c *Conanfile) CompatibleInfos() []*Info {
	result := []*Info{}
	if c.Info == nil {
		return result
	}
	for _, compat := range c.compatibles {
		info := c.Info.Copy()
		for k, v := range compat.Settings {
			info.Settings.values[k] = v
		}
		for k, v := range compat.Options {
			info.Options.values[k] = v
		}
		result = append(result, info)
	}
	return result
}
