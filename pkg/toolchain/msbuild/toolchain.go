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

// Package msbuild generates the property sheets that inject the settings
// into Visual Studio projects, rewrites the toolset of vcxproj files, and
// drives msbuild.
package msbuild

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
	"github.com/toitlang/trecipe/pkg/set"
)

// PropsFileName is the property sheet that imports the sheets of every
// generated configuration.
const PropsFileName = "conantoolchain.props"

// ConfWinSDKVersion selects the Windows SDK of the projects.
const ConfWinSDKVersion = "tools.microsoft:winsdk_version"

var toolsets = map[string]string{
	"190": "v140",
	"191": "v141",
	"192": "v142",
	"193": "v143",
	"194": "v143",
}

// Toolset returns the platform toolset of the compiler settings, or ""
// when they don't select one.
func Toolset(s *recipe.Settings) string {
	switch s.Get("compiler") {
	case recipe.CompilerMSVC:
		if toolset := s.Get("compiler.toolset"); toolset != "" {
			return toolset
		}
		return toolsets[s.Get("compiler.version")]
	case recipe.CompilerClang:
		if s.Get("os") == recipe.OSWindows {
			return "ClangCL"
		}
	}
	return ""
}

// Platform returns the platform name of the arch used in project
// configurations.
func Platform(arch string) string {
	switch arch {
	case "x86":
		return "Win32"
	case "x86_64":
		return "x64"
	case "armv7":
		return "ARM"
	case "armv8":
		return "ARM64"
	}
	return arch
}

// SolutionPlatform returns the platform name of the arch used in
// solutions.
func SolutionPlatform(arch string) string {
	if arch == "x86" {
		return "x86"
	}
	return Platform(arch)
}

// RuntimeLibrary returns the ClCompile RuntimeLibrary value.
func RuntimeLibrary(s *recipe.Settings) string {
	result := "MultiThreaded"
	debug := s.Get("compiler.runtime_type") == "Debug"
	if s.Get("compiler.runtime_type") == "" {
		debug = s.Get("build_type") == "Debug"
	}
	if debug {
		result += "Debug"
	}
	if s.Get("compiler.runtime") != "static" {
		result += "DLL"
	}
	return result
}

// LanguageStandard returns the ClCompile LanguageStandard value.
func LanguageStandard(s *recipe.Settings) string {
	std := strings.TrimPrefix(s.Get("compiler.cppstd"), "gnu")
	switch std {
	case "":
		return ""
	case "98", "11", "14":
		return "stdcpp14"
	case "23", "26":
		return "stdcpplatest"
	}
	return "stdcpp" + std
}

// Toolchain writes the property sheet of the current configuration.
type Toolchain struct {
	c *recipe.Conanfile

	Configuration    string
	Platform         string
	Toolset          string
	Defines          []string
	CompileOptions   []string
	LinkOptions      []string
	RuntimeLibrary   string
	LanguageStandard string
	WinSDKVersion    string
}

// NewToolchain computes the property sheet of c.
func NewToolchain(c *recipe.Conanfile) *Toolchain {
	s := c.Settings
	tc := &Toolchain{
		c:                c,
		Configuration:    s.GetSafe("build_type", "Release"),
		Platform:         Platform(s.Get("arch")),
		Toolset:          Toolset(s),
		RuntimeLibrary:   RuntimeLibrary(s),
		LanguageStandard: LanguageStandard(s),
		WinSDKVersion:    c.Conf.GetString(ConfWinSDKVersion, ""),
	}
	if std := s.Get("compiler.cstd"); std != "" {
		tc.CompileOptions = append(tc.CompileOptions, "/std:c"+std)
	}
	return tc
}

// ConfigFileName returns the name of the property sheet of the current
// configuration.
func (tc *Toolchain) ConfigFileName() string {
	name := "conantoolchain_" + strings.ToLower(tc.Configuration) + "_" + strings.ToLower(tc.Platform) + ".props"
	return strings.ReplaceAll(name, " ", "_")
}

func (tc *Toolchain) condition() string {
	return "'$(Configuration)' == '" + tc.Configuration + "' And '$(Platform)' == '" + tc.Platform + "'"
}

var configTemplate = template.Must(template.New("config").Parse(`<?xml version="1.0" encoding="utf-8"?>
<Project xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ItemDefinitionGroup>
    <ClCompile>
      <PreprocessorDefinitions>{{range .Defines}}{{.}};{{end}}%(PreprocessorDefinitions)</PreprocessorDefinitions>
      <AdditionalOptions>{{range .CompileOptions}}{{.}} {{end}}%(AdditionalOptions)</AdditionalOptions>
      <RuntimeLibrary>{{.RuntimeLibrary}}</RuntimeLibrary>
{{- if .LanguageStandard}}
      <LanguageStandard>{{.LanguageStandard}}</LanguageStandard>
{{- end}}
      <MultiProcessorCompilation>True</MultiProcessorCompilation>
      <ProcessorNumber>{{.Jobs}}</ProcessorNumber>
    </ClCompile>
    <Link>
      <AdditionalOptions>{{range .LinkOptions}}{{.}} {{end}}%(AdditionalOptions)</AdditionalOptions>
    </Link>
  </ItemDefinitionGroup>
  <PropertyGroup Label="Configuration">
{{- if .Toolset}}
    <PlatformToolset>{{.Toolset}}</PlatformToolset>
{{- end}}
{{- if .WinSDKVersion}}
    <WindowsTargetPlatformVersion>{{.WinSDKVersion}}</WindowsTargetPlatformVersion>
{{- end}}
  </PropertyGroup>
</Project>
`))

var mainTemplate = template.Must(template.New("main").Parse(`<?xml version="1.0" encoding="utf-8"?>
<Project xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ImportGroup Label="PropertySheets">
{{- range .}}
    {{.}}
{{- end}}
  </ImportGroup>
  <PropertyGroup Label="TrecipeToolchain">
    <TrecipeToolchainGenerated>True</TrecipeToolchainGenerated>
  </PropertyGroup>
</Project>
`))

// ConfigContent renders the property sheet of the current configuration.
func (tc *Toolchain) ConfigContent() (string, error) {
	var buf bytes.Buffer
	data := struct {
		*Toolchain
		Jobs int
	}{tc, build.Jobs(tc.c)}
	if err := configTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var importPattern = regexp.MustCompile(`<Import Condition="[^"]*" Project="[^"]*" />`)

// MainContent renders the main property sheet. Imports of other
// configurations found in existing are kept.
func (tc *Toolchain) MainContent(existing string) (string, error) {
	imports := set.NewString(importPattern.FindAllString(existing, -1)...)
	imports.Add(`<Import Condition="` + tc.condition() + `" Project="` + tc.ConfigFileName() + `" />`)
	var buf bytes.Buffer
	if err := mainTemplate.Execute(&buf, imports.Sorted()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Generate writes both property sheets into the generators folder.
func (tc *Toolchain) Generate() error {
	folder := tc.c.GeneratorsFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	config, err := tc.ConfigContent()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(folder, tc.ConfigFileName()), []byte(config), 0644); err != nil {
		return err
	}
	mainPath := filepath.Join(folder, PropsFileName)
	existing, err := os.ReadFile(mainPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	content, err := tc.MainContent(string(existing))
	if err != nil {
		return err
	}
	return os.WriteFile(mainPath, []byte(content), 0644)
}
