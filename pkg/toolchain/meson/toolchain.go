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

// Package meson generates the machine files and pkg-config files consumed
// by Meson builds, and drives meson itself.
package meson

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
	"gopkg.in/ini.v1"
)

const (
	NativeFileName = "conan_meson_native.ini"
	CrossFileName  = "conan_meson_cross.ini"
)

// Sections of the machine file.
const (
	SectionBinaries       = "binaries"
	SectionBuiltinOptions = "built-in options"
	SectionProjectOptions = "project options"
	SectionProperties     = "properties"
	SectionBuildMachine   = "build_machine"
	SectionHostMachine    = "host_machine"
)

// Values is an ordered set of typed Meson assignments.
// Values are string, bool, int or []string.
type Values struct {
	names  []string
	values map[string]interface{}
}

// NewValues creates an empty set.
func NewValues() *Values {
	return &Values{values: map[string]interface{}{}}
}

// Set assigns the value.
func (v *Values) Set(name string, value interface{}) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Get returns the value.
func (v *Values) Get(name string) (interface{}, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Delete removes the value.
func (v *Values) Delete(name string) {
	if _, ok := v.values[name]; !ok {
		return
	}
	delete(v.values, name)
	for i, n := range v.names {
		if n == name {
			v.names = append(v.names[:i], v.names[i+1:]...)
			break
		}
	}
}

// Names returns the names in assignment order.
func (v *Values) Names() []string {
	return append([]string{}, v.names...)
}

func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s) + "'"
}

// formatValue renders a value in Meson syntax.
func formatValue(value interface{}) string {
	switch val := value.(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case []string:
		parts := make([]string, 0, len(val))
		for _, s := range val {
			parts = append(parts, quote(s))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return quote(val)
	}
	return "''"
}

// Toolchain is the typed form of the Meson native or cross file.
type Toolchain struct {
	c *recipe.Conanfile
	// ProjectOptions are the -D options of the upstream meson_options.txt.
	ProjectOptions *Values
	Properties     *Values
	Binaries       *Values
	BuiltinOptions *Values

	ExtraCFlags   []string
	ExtraCxxFlags []string
	ExtraLDFlags  []string
	ExtraDefines  []string
}

var buildTypes = map[string]string{
	"Debug":          "debug",
	"Release":        "release",
	"RelWithDebInfo": "debugoptimized",
	"MinSizeRel":     "minsize",
}

// NewToolchain computes the toolchain of c.
func NewToolchain(c *recipe.Conanfile) *Toolchain {
	tc := &Toolchain{
		c:              c,
		ProjectOptions: NewValues(),
		Properties:     NewValues(),
		Binaries:       NewValues(),
		BuiltinOptions: NewValues(),
	}
	s := c.Settings
	opts := tc.BuiltinOptions
	if bt, ok := buildTypes[s.Get("build_type")]; ok {
		opts.Set("buildtype", bt)
	}
	if c.Options.Has("shared") {
		if c.Options.Bool("shared") {
			opts.Set("default_library", "shared")
		} else {
			opts.Set("default_library", "static")
		}
	}
	if c.Options.Has("fPIC") {
		opts.Set("b_staticpic", c.Options.Bool("fPIC"))
	}
	if std := s.Get("compiler.cppstd"); std != "" {
		opts.Set("cpp_std", languageStd("c++", std))
	}
	if std := s.Get("compiler.cstd"); std != "" {
		opts.Set("c_std", languageStd("c", std))
	}
	if crt := vscrt(s); crt != "" {
		opts.Set("b_vscrt", crt)
	}
	opts.Set("b_ndebug", "if-release")
	opts.Set("prefix", "/")
	opts.Set("bindir", "bin")
	opts.Set("sbindir", "bin")
	opts.Set("libexecdir", "bin")
	opts.Set("libdir", "lib")
	opts.Set("includedir", "include")
	opts.Set("datadir", "res")
	opts.Set("pkg_config_path", filepath.ToSlash(c.GeneratorsFolder()))

	executables := c.Conf.GetMap(recipe.ConfCompilerExecutables)
	for _, entry := range []struct{ key, binary string }{{"c", "c"}, {"cpp", "cpp"}, {"objc", "objc"}, {"objcpp", "objcpp"}} {
		if exe := executables[entry.key]; exe != "" {
			tc.Binaries.Set(entry.binary, filepath.ToSlash(exe))
		}
	}
	if !c.CanRun() {
		tc.Properties.Set("needs_exe_wrapper", true)
		if emulator := c.Conf.GetStrings(build.ConfEmulator); len(emulator) > 0 {
			tc.Binaries.Set("exe_wrapper", emulator)
		}
	}
	if libcxx := s.Get("compiler.libcxx"); libcxx == "libc++" && strings.Contains(s.Get("compiler"), "clang") {
		tc.ExtraCxxFlags = append(tc.ExtraCxxFlags, "-stdlib=libc++")
	}
	return tc
}

func languageStd(lang string, std string) string {
	if strings.HasPrefix(std, "gnu") {
		return "gnu" + strings.TrimPrefix(lang, "c") + strings.TrimPrefix(std, "gnu")
	}
	return lang + std
}

func vscrt(s *recipe.Settings) string {
	if !recipe.IsMSVC(s) {
		return ""
	}
	result := "md"
	if s.Get("compiler.runtime") == "static" {
		result = "mt"
	}
	debug := s.Get("compiler.runtime_type") == "Debug"
	if s.Get("compiler.runtime_type") == "" {
		debug = s.Get("build_type") == "Debug"
	}
	if debug {
		result += "d"
	}
	return result
}

// Machine describes a host or build machine in Meson terms.
type Machine struct {
	System    string
	CPUFamily string
	CPU       string
	Endian    string
}

var cpuFamilies = map[string]string{
	"x86":     "x86",
	"x86_64":  "x86_64",
	"armv8":   "aarch64",
	"armv7":   "arm",
	"armv7hf": "arm",
	"ppc64le": "ppc64",
	"ppc64":   "ppc64",
	"riscv64": "riscv64",
	"s390x":   "s390x",
	"wasm":    "wasm32",
}

var systems = map[string]string{
	recipe.OSLinux:   "linux",
	recipe.OSWindows: "windows",
	recipe.OSMacos:   "darwin",
	recipe.OSiOS:     "ios",
	recipe.OSAndroid: "android",
	recipe.OSFreeBSD: "freebsd",
}

// MachineFor translates the os and arch settings.
func MachineFor(s *recipe.Settings) Machine {
	arch := s.Get("arch")
	m := Machine{
		System:    systems[s.Get("os")],
		CPUFamily: cpuFamilies[arch],
		CPU:       arch,
		Endian:    "little",
	}
	if m.System == "" {
		m.System = strings.ToLower(s.Get("os"))
	}
	if m.CPUFamily == "" {
		m.CPUFamily = arch
	}
	if arch == "ppc64" || arch == "s390x" {
		m.Endian = "big"
	}
	return m
}

// FileName returns the name of the machine file: a cross file when
// cross-building, a native file otherwise.
func (tc *Toolchain) FileName() string {
	if tc.c.CrossBuilding() {
		return CrossFileName
	}
	return NativeFileName
}

func (tc *Toolchain) flags() {
	defines := []string{}
	for _, d := range tc.ExtraDefines {
		defines = append(defines, "-D"+d)
	}
	cArgs := append(append([]string{}, defines...), tc.ExtraCFlags...)
	cppArgs := append(append([]string{}, defines...), tc.ExtraCxxFlags...)
	for name, values := range map[string][]string{
		"c_args":        cArgs,
		"cpp_args":      cppArgs,
		"c_link_args":   tc.ExtraLDFlags,
		"cpp_link_args": tc.ExtraLDFlags,
	} {
		if len(values) > 0 {
			tc.BuiltinOptions.Set(name, values)
		}
	}
}

func addSection(f *ini.File, name string, values *Values) error {
	if len(values.names) == 0 {
		return nil
	}
	sec, err := f.NewSection(name)
	if err != nil {
		return err
	}
	for _, n := range values.names {
		if _, err := sec.NewKey(n, formatValue(values.values[n])); err != nil {
			return err
		}
	}
	return nil
}

func machineValues(m Machine) *Values {
	v := NewValues()
	v.Set("system", m.System)
	v.Set("cpu_family", m.CPUFamily)
	v.Set("cpu", m.CPU)
	v.Set("endian", m.Endian)
	return v
}

type section struct {
	name   string
	values *Values
}

// Content renders the machine file.
func (tc *Toolchain) Content() ([]byte, error) {
	tc.flags()
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, []byte{})
	if err != nil {
		return nil, err
	}
	sections := []section{
		{SectionBinaries, tc.Binaries},
		{SectionBuiltinOptions, sortedValues(tc.BuiltinOptions)},
		{SectionProjectOptions, tc.ProjectOptions},
		{SectionProperties, tc.Properties},
	}
	if tc.c.CrossBuilding() {
		sections = append(sections,
			section{SectionBuildMachine, machineValues(MachineFor(tc.c.SettingsBuild))},
			section{SectionHostMachine, machineValues(MachineFor(tc.c.Settings))})
	}
	for _, s := range sections {
		if err := addSection(f, s.name, s.values); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sortedValues orders the built-in options by name, so the flags
// computed from maps are deterministic.
func sortedValues(v *Values) *Values {
	names := v.Names()
	sort.Strings(names)
	result := NewValues()
	for _, n := range names {
		result.Set(n, v.values[n])
	}
	return result
}

// Generate writes the machine file into the generators folder.
func (tc *Toolchain) Generate() error {
	content, err := tc.Content()
	if err != nil {
		return err
	}
	folder := tc.c.GeneratorsFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, tc.FileName()), content, 0644)
}
