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
	"os"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// Profile is the orchestrator-level configuration of one context (host or
// build): settings, option overrides, conf and environment.
type Profile struct {
	path     string
	Settings map[string]string
	Options  []OptionAssignment
	Conf     *Conf
	BuildEnv *EnvOverlay
}

// NewProfile creates an empty profile.
func NewProfile() *Profile {
	return &Profile{
		Settings: map[string]string{},
		Conf:     NewConf(),
		BuildEnv: NewEnvOverlay(),
	}
}

// ReadProfile reads the profile at the given path.
func ReadProfile(path string) (*Profile, error) {
	p := NewProfile()
	if err := p.ParseFile(path); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) ParseFile(path string) error {
	p.path = path
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return p.Parse(b)
}

func (p *Profile) ParseString(str string) error {
	return p.Parse([]byte(str))
}

func (p *Profile) name() string {
	if p.path == "" {
		return "profile"
	}
	return p.path
}

// Parse reads the INI content of a profile. Sections are [settings],
// [options], [conf] and [buildenv].
func (p *Profile) Parse(b []byte) error {
	f, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:  "=",
		IgnoreInlineComment: true,
	}, b)
	if err != nil {
		return WrapFrameworkError(err, "failed to parse %s", p.name())
	}
	for _, section := range f.Sections() {
		switch section.Name() {
		case ini.DefaultSection:
			if len(section.Keys()) > 0 {
				return NewFrameworkError("%s: entries outside of a section", p.name())
			}
		case "settings":
			for _, key := range section.Keys() {
				p.Settings[key.Name()] = key.Value()
			}
		case "options":
			for _, key := range section.Keys() {
				a, err := ParseOptionAssignment(key.Name() + "=" + key.Value())
				if err != nil {
					return WrapFrameworkError(err, "%s", p.name())
				}
				p.Options = append(p.Options, a)
			}
		case "conf":
			for _, key := range section.Keys() {
				if err := p.Conf.Define(key.Name(), ParseConfValue(key.Value())); err != nil {
					return WrapFrameworkError(err, "%s", p.name())
				}
			}
		case "buildenv":
			for _, key := range section.Keys() {
				if err := parseEnvLine(p.BuildEnv, key.Name(), key.Value()); err != nil {
					return WrapFrameworkError(err, "%s", p.name())
				}
			}
		default:
			return NewFrameworkError("%s: unknown section [%s]", p.name(), section.Name())
		}
	}
	return nil
}

// parseEnvLine understands
//
//	VAR=value      define
//	VAR+=value     append
//	VAR=+value     prepend
//	VAR=!          unset
//
// A "(path)" prefix of the value makes it a path operation.
func parseEnvLine(env *EnvOverlay, key string, value string) error {
	key = strings.TrimSpace(key)
	appendOp := strings.HasSuffix(key, "+")
	key = strings.TrimSpace(strings.TrimSuffix(key, "+"))
	if key == "" {
		return fmt.Errorf("missing variable name")
	}
	if !appendOp && value == "!" {
		env.Unset(key)
		return nil
	}
	prependOp := !appendOp && strings.HasPrefix(value, "+")
	if prependOp {
		value = value[1:]
	}
	isPath := strings.HasPrefix(value, "(path)")
	value = strings.TrimPrefix(value, "(path)")
	switch {
	case appendOp && isPath:
		env.AppendPath(key, value)
	case appendOp:
		env.Append(key, value, " ")
	case prependOp && isPath:
		env.PrependPath(key, value)
	case prependOp:
		env.Prepend(key, value, " ")
	case isPath:
		env.DefinePath(key, value)
	default:
		env.Define(key, value)
	}
	return nil
}

// Update applies command line overrides: "key=value" for settings,
// "[pattern:]name=value" for options, and "key=value" for conf.
func (p *Profile) Update(settings []string, options []string, conf []string) error {
	for _, s := range settings {
		kv := strings.SplitN(s, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return NewFrameworkError("invalid setting '%s': expected key=value", s)
		}
		p.Settings[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	for _, o := range options {
		a, err := ParseOptionAssignment(o)
		if err != nil {
			return WrapFrameworkError(err, "invalid option")
		}
		p.Options = append(p.Options, a)
	}
	for _, c := range conf {
		kv := strings.SplitN(c, "=", 2)
		if len(kv) != 2 {
			return NewFrameworkError("invalid conf '%s': expected key=value", c)
		}
		if err := p.Conf.Define(strings.TrimSpace(kv[0]), ParseConfValue(kv[1])); err != nil {
			return WrapFrameworkError(err, "invalid conf")
		}
	}
	return nil
}

// Copy returns a deep copy.
func (p *Profile) Copy() *Profile {
	result := &Profile{
		path:     p.path,
		Settings: map[string]string{},
		Options:  append([]OptionAssignment{}, p.Options...),
		Conf:     p.Conf.Copy(),
		BuildEnv: Compose(p.BuildEnv),
	}
	for k, v := range p.Settings {
		result.Settings[k] = v
	}
	return result
}

// String renders the profile in its INI form.
func (p *Profile) String() string {
	sb := strings.Builder{}
	sb.WriteString("[settings]\n")
	for _, k := range sortedKeys(p.Settings) {
		fmt.Fprintf(&sb, "%s=%s\n", k, p.Settings[k])
	}
	if len(p.Options) > 0 {
		sb.WriteString("[options]\n")
		for _, o := range p.Options {
			fmt.Fprintf(&sb, "%s\n", o)
		}
	}
	if keys := p.Conf.Keys(); len(keys) > 0 {
		sb.WriteString("[conf]\n")
		for _, k := range keys {
			v, _ := p.Conf.Get(k)
			fmt.Fprintf(&sb, "%s=%v\n", k, v)
		}
	}
	return sb.String()
}

var goosToOS = map[string]string{
	"linux":   OSLinux,
	"darwin":  OSMacos,
	"windows": OSWindows,
	"freebsd": OSFreeBSD,
	"android": OSAndroid,
}

var goarchToArch = map[string]string{
	"amd64":   "x86_64",
	"386":     "x86",
	"arm64":   "armv8",
	"arm":     "armv7",
	"ppc64le": "ppc64le",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

// DetectProfile returns a profile for the machine the process runs on.
// The compiler is a guess; real setups should provide a profile.
func DetectProfile() *Profile {
	p := NewProfile()
	osName := goosToOS[runtime.GOOS]
	if osName != "" {
		p.Settings["os"] = osName
	}
	if arch := goarchToArch[runtime.GOARCH]; arch != "" {
		p.Settings["arch"] = arch
	}
	p.Settings["build_type"] = "Release"
	switch osName {
	case OSWindows:
		p.Settings["compiler"] = CompilerMSVC
		p.Settings["compiler.version"] = "194"
		p.Settings["compiler.runtime"] = "dynamic"
		p.Settings["compiler.cppstd"] = "14"
	case OSMacos:
		p.Settings["compiler"] = CompilerAppleClang
		p.Settings["compiler.version"] = "15"
		p.Settings["compiler.libcxx"] = "libc++"
		p.Settings["compiler.cppstd"] = "gnu17"
	default:
		p.Settings["compiler"] = CompilerGCC
		p.Settings["compiler.version"] = "13"
		p.Settings["compiler.libcxx"] = "libstdc++11"
		p.Settings["compiler.cppstd"] = "gnu17"
	}
	return p
}

// optionsFor returns the profile options that apply to the reference.
// Options without pattern only apply to the root of the graph.
func (p *Profile) optionsFor(ref Ref, isRoot bool) []OptionAssignment {
	result := []OptionAssignment{}
	for _, o := range p.Options {
		if o.Pattern == "" {
			if isRoot {
				result = append(result, o)
			}
			continue
		}
		if matchesPattern(o.Pattern, ref, isRoot) {
			result = append(result, o)
		}
	}
	return result
}
