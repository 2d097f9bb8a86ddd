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

package cmake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toitlang/trecipe/pkg/build"
	"github.com/toitlang/trecipe/pkg/recipe"
)

const (
	ToolchainFileName = "conan_toolchain.cmake"
	PresetsFileName   = "CMakePresets.json"
)

// Names of the blocks of the toolchain file, in emission order.
const (
	BlockGenericSystem = "generic_system"
	BlockAndroid       = "android_system"
	BlockAppleSystem   = "apple_system"
	BlockCompilers     = "compilers"
	BlockMSVCRuntime   = "msvc_runtime"
	BlockCppstd        = "cppstd"
	BlockFPIC          = "fpic"
	BlockShared        = "shared"
	BlockFlags         = "flags"
	BlockCrossEmulator = "cross_emulator"
	BlockFindPaths     = "find_paths"
	BlockOutputDirs    = "output_dirs"
	BlockUser          = "user"
)

// ConfAndroidNDK is the root of the Android NDK.
const ConfAndroidNDK = "tools.android:ndk_path"

// Block is a named section of the toolchain file.
// Recipes may change or remove blocks before the toolchain is generated.
type Block struct {
	Name      string
	Variables *Variables
	// Lines are emitted verbatim after the variables.
	Lines []string
}

// Toolchain is the typed form of conan_toolchain.cmake and
// CMakePresets.json.
// Everything in it is derived from the settings, options and conf of the
// recipe; recipes add upstream specific switches as cache variables.
type Toolchain struct {
	c         *recipe.Conanfile
	Generator string
	// CacheVariables are passed on the command line and in the presets.
	CacheVariables *Variables
	// PreprocessorDefinitions are added with add_compile_definitions.
	// An empty value defines the name without value.
	PreprocessorDefinitions *Variables

	ExtraCFlags          []string
	ExtraCxxFlags        []string
	ExtraSharedLinkFlags []string
	ExtraExeLinkFlags    []string

	blocks []*Block
}

// NewToolchain computes the toolchain of c.
func NewToolchain(c *recipe.Conanfile) *Toolchain {
	tc := &Toolchain{
		c:                       c,
		Generator:               Generator(c),
		CacheVariables:          NewVariables(),
		PreprocessorDefinitions: NewVariables(),
	}
	if !recipe.IsMultiConfig(c) {
		if bt := c.Settings.Get("build_type"); bt != "" {
			tc.CacheVariables.Set("CMAKE_BUILD_TYPE", bt)
		}
	}
	if recipe.IsMSVC(c.Settings) {
		tc.CacheVariables.Set("CMAKE_POLICY_DEFAULT_CMP0091", "NEW")
	}
	tc.genericSystem()
	tc.android()
	tc.appleSystem()
	tc.compilers()
	tc.msvcRuntime()
	tc.cppstd()
	tc.fpic()
	tc.shared()
	tc.flags()
	tc.crossEmulator()
	tc.findPaths()
	tc.outputDirs()
	return tc
}

// Block returns the named block, creating it at the end if it doesn't
// exist.
func (tc *Toolchain) Block(name string) *Block {
	for _, b := range tc.blocks {
		if b.Name == name {
			return b
		}
	}
	b := &Block{Name: name, Variables: NewVariables()}
	tc.blocks = append(tc.blocks, b)
	return b
}

// HasBlock returns whether the named block exists.
func (tc *Toolchain) HasBlock(name string) bool {
	for _, b := range tc.blocks {
		if b.Name == name {
			return true
		}
	}
	return false
}

// RemoveBlock drops the named block.
func (tc *Toolchain) RemoveBlock(name string) {
	for i, b := range tc.blocks {
		if b.Name == name {
			tc.blocks = append(tc.blocks[:i], tc.blocks[i+1:]...)
			return
		}
	}
}

// BlockNames returns the names of all blocks in emission order.
func (tc *Toolchain) BlockNames() []string {
	result := []string{}
	for _, b := range tc.blocks {
		result = append(result, b.Name)
	}
	return result
}

var systemNames = map[string]string{
	recipe.OSLinux:   "Linux",
	recipe.OSWindows: "Windows",
	recipe.OSMacos:   "Darwin",
	recipe.OSiOS:     "iOS",
	recipe.OSAndroid: "Android",
	recipe.OSFreeBSD: "FreeBSD",
}

func systemProcessor(hostOS string, arch string) string {
	switch arch {
	case "armv8":
		if recipe.IsApple(hostOS) {
			return "arm64"
		}
		return "aarch64"
	case "x86":
		return "i686"
	case "armv7", "armv7hf":
		return "armv7-a"
	case "x86_64":
		if hostOS == recipe.OSWindows {
			return "AMD64"
		}
	}
	return arch
}

func appleArch(arch string) string {
	switch arch {
	case "armv8":
		return "arm64"
	case "armv7":
		return "armv7"
	case "x86":
		return "i386"
	}
	return arch
}

func (tc *Toolchain) genericSystem() {
	c := tc.c
	if !c.CrossBuilding() {
		return
	}
	hostOS := c.Settings.Get("os")
	b := tc.Block(BlockGenericSystem)
	if name, ok := systemNames[hostOS]; ok {
		b.Variables.Set("CMAKE_SYSTEM_NAME", name)
	} else if hostOS != "" {
		b.Variables.Set("CMAKE_SYSTEM_NAME", hostOS)
	}
	if v := c.Settings.Get("os.version"); v != "" {
		b.Variables.Set("CMAKE_SYSTEM_VERSION", v)
	}
	if arch := c.Settings.Get("arch"); arch != "" {
		b.Variables.Set("CMAKE_SYSTEM_PROCESSOR", systemProcessor(hostOS, arch))
	}
}

var androidABIs = map[string]string{
	"armv8":  "arm64-v8a",
	"armv7":  "armeabi-v7a",
	"x86":    "x86",
	"x86_64": "x86_64",
}

func (tc *Toolchain) android() {
	c := tc.c
	if c.Settings.Get("os") != recipe.OSAndroid {
		return
	}
	b := tc.Block(BlockAndroid)
	if abi, ok := androidABIs[c.Settings.Get("arch")]; ok {
		b.Variables.Set("ANDROID_ABI", abi)
	}
	if level := c.Settings.Get("os.api_level"); level != "" {
		b.Variables.Set("ANDROID_PLATFORM", "android-"+level)
	}
	switch c.Settings.Get("compiler.libcxx") {
	case "c++_shared", "c++_static":
		b.Variables.Set("ANDROID_STL", c.Settings.Get("compiler.libcxx"))
	}
	if ndk := c.Conf.GetString(ConfAndroidNDK, ""); ndk != "" {
		toolchain := filepath.ToSlash(filepath.Join(ndk, "build", "cmake", "android.toolchain.cmake"))
		b.Lines = append(b.Lines, "include("+quote(toolchain)+")")
	}
}

func (tc *Toolchain) appleSystem() {
	c := tc.c
	if !recipe.IsApple(c.Settings.Get("os")) {
		return
	}
	b := tc.Block(BlockAppleSystem)
	if arch := c.Settings.Get("arch"); arch != "" {
		b.Variables.Set("CMAKE_OSX_ARCHITECTURES", appleArch(arch))
	}
	if v := c.Settings.Get("os.version"); v != "" {
		b.Variables.Set("CMAKE_OSX_DEPLOYMENT_TARGET", v)
	}
	if sdk := c.Settings.Get("os.sdk"); sdk != "" {
		b.Variables.Set("CMAKE_OSX_SYSROOT", sdk)
	}
}

func (tc *Toolchain) compilers() {
	executables := tc.c.Conf.GetMap(recipe.ConfCompilerExecutables)
	if len(executables) == 0 {
		return
	}
	b := tc.Block(BlockCompilers)
	for _, entry := range []struct{ key, lang string }{
		{"c", "C"}, {"cpp", "CXX"}, {"cuda", "CUDA"}, {"fortran", "Fortran"}, {"asm", "ASM"}, {"rc", "RC"},
	} {
		if exe := executables[entry.key]; exe != "" {
			b.Variables.Set("CMAKE_"+entry.lang+"_COMPILER", filepath.ToSlash(exe))
		}
	}
}

// MSVCRuntime returns the value of CMAKE_MSVC_RUNTIME_LIBRARY, or "" for
// other compilers.
func MSVCRuntime(s *recipe.Settings) string {
	if !recipe.IsMSVC(s) {
		return ""
	}
	runtime := s.GetSafe("compiler.runtime", "dynamic")
	suffix := ""
	if runtime == "dynamic" {
		suffix = "DLL"
	}
	switch s.Get("compiler.runtime_type") {
	case "Debug":
		return "MultiThreadedDebug" + suffix
	case "Release":
		return "MultiThreaded" + suffix
	}
	return "MultiThreaded$<$<CONFIG:Debug>:Debug>" + suffix
}

func (tc *Toolchain) msvcRuntime() {
	if runtime := MSVCRuntime(tc.c.Settings); runtime != "" {
		tc.Block(BlockMSVCRuntime).Variables.Set("CMAKE_MSVC_RUNTIME_LIBRARY", runtime)
	}
}

// splitStd splits "gnu17" into "17" and true.
func splitStd(std string) (string, bool) {
	if strings.HasPrefix(std, "gnu") {
		return strings.TrimPrefix(std, "gnu"), true
	}
	return std, false
}

func (tc *Toolchain) cppstd() {
	c := tc.c
	cppstd := c.Settings.Get("compiler.cppstd")
	cstd := c.Settings.Get("compiler.cstd")
	if cppstd == "" && cstd == "" {
		return
	}
	b := tc.Block(BlockCppstd)
	if cppstd != "" {
		std, ext := splitStd(cppstd)
		b.Variables.Set("CMAKE_CXX_STANDARD", std)
		b.Variables.Set("CMAKE_CXX_EXTENSIONS", ext)
		b.Variables.Set("CMAKE_CXX_STANDARD_REQUIRED", true)
	}
	if cstd != "" {
		std, ext := splitStd(cstd)
		b.Variables.Set("CMAKE_C_STANDARD", std)
		b.Variables.Set("CMAKE_C_EXTENSIONS", ext)
		b.Variables.Set("CMAKE_C_STANDARD_REQUIRED", true)
	}
}

func (tc *Toolchain) fpic() {
	c := tc.c
	if !c.Options.Has("fPIC") {
		return
	}
	tc.Block(BlockFPIC).Variables.Set("CMAKE_POSITION_INDEPENDENT_CODE", c.Options.Bool("fPIC"))
}

func (tc *Toolchain) shared() {
	c := tc.c
	if !c.Options.Has("shared") {
		return
	}
	tc.Block(BlockShared).Variables.Set("BUILD_SHARED_LIBS", c.Options.Bool("shared"))
}

// archFlag returns the flag that selects the word size for gcc-like
// compilers.
func archFlag(s *recipe.Settings) string {
	compiler := s.Get("compiler")
	if compiler != recipe.CompilerGCC && compiler != recipe.CompilerClang {
		return ""
	}
	if recipe.IsApple(s.Get("os")) || s.Get("os") == recipe.OSAndroid {
		return ""
	}
	switch s.Get("arch") {
	case "x86":
		return "-m32"
	case "x86_64":
		return "-m64"
	}
	return ""
}

// libcxxFlag returns the flag that selects the C++ standard library.
func libcxxFlag(s *recipe.Settings) string {
	compiler := s.Get("compiler")
	if compiler != recipe.CompilerClang && compiler != recipe.CompilerAppleClang {
		return ""
	}
	switch s.Get("compiler.libcxx") {
	case "libc++":
		return "-stdlib=libc++"
	case "libstdc++", "libstdc++11":
		return "-stdlib=libstdc++"
	}
	return ""
}

func (tc *Toolchain) flags() {
	s := tc.c.Settings
	if flag := archFlag(s); flag != "" {
		tc.ExtraCFlags = append(tc.ExtraCFlags, flag)
		tc.ExtraCxxFlags = append(tc.ExtraCxxFlags, flag)
		tc.ExtraSharedLinkFlags = append(tc.ExtraSharedLinkFlags, flag)
		tc.ExtraExeLinkFlags = append(tc.ExtraExeLinkFlags, flag)
	}
	if flag := libcxxFlag(s); flag != "" {
		tc.ExtraCxxFlags = append(tc.ExtraCxxFlags, flag)
	}
	if s.Get("compiler") == recipe.CompilerGCC && s.Get("compiler.libcxx") == "libstdc++" {
		tc.PreprocessorDefinitions.Set("_GLIBCXX_USE_CXX11_ABI", "0")
	}
	// Filled from the Extra fields when the toolchain is rendered.
	tc.Block(BlockFlags)
}

func (tc *Toolchain) crossEmulator() {
	c := tc.c
	if c.CanRun() {
		return
	}
	if emulator := c.Conf.GetStrings(build.ConfEmulator); len(emulator) > 0 {
		tc.Block(BlockCrossEmulator).Variables.Set("CMAKE_CROSSCOMPILING_EMULATOR", emulator)
	}
}

func (tc *Toolchain) findPaths() {
	c := tc.c
	b := tc.Block(BlockFindPaths)
	generators := filepath.ToSlash(c.GeneratorsFolder())
	b.Variables.Set("CMAKE_FIND_PACKAGE_PREFER_CONFIG", true)
	b.Lines = append(b.Lines,
		"list(PREPEND CMAKE_PREFIX_PATH "+quote(generators)+")",
		"list(PREPEND CMAKE_MODULE_PATH "+quote(generators)+")")
	programs := []string{}
	for _, d := range c.Dependencies.BuildList() {
		if d.CppInfo == nil || d.PackageFolder == "" {
			continue
		}
		for _, dir := range d.CppInfo.BinDirs {
			programs = append(programs, quote(absDir(d.PackageFolder, dir)))
		}
	}
	if len(programs) > 0 {
		b.Lines = append(b.Lines, "list(PREPEND CMAKE_PROGRAM_PATH "+strings.Join(programs, " ")+")")
	}
}

func (tc *Toolchain) outputDirs() {
	b := tc.Block(BlockOutputDirs)
	b.Variables.Set("CMAKE_INSTALL_BINDIR", "bin")
	b.Variables.Set("CMAKE_INSTALL_SBINDIR", "bin")
	b.Variables.Set("CMAKE_INSTALL_LIBEXECDIR", "bin")
	b.Variables.Set("CMAKE_INSTALL_LIBDIR", "lib")
	b.Variables.Set("CMAKE_INSTALL_INCLUDEDIR", "include")
	b.Variables.Set("CMAKE_INSTALL_OLDINCLUDEDIR", "include")
}

// absDir returns dir relative to the package folder, with forward slashes.
func absDir(packageFolder string, dir string) string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(packageFolder, dir)
	}
	return filepath.ToSlash(dir)
}

// Content renders conan_toolchain.cmake.
func (tc *Toolchain) Content() string {
	var sb strings.Builder
	sb.WriteString("# Generated by trecipe for " + tc.c.Ref.String() + ". Do not edit.\n")
	sb.WriteString("include_guard()\n")
	sb.WriteString("message(STATUS \"Using toolchain: ${CMAKE_CURRENT_LIST_FILE}\")\n")
	for _, b := range tc.blocks {
		vars := b.Variables
		lines := b.Lines
		if b.Name == BlockFlags {
			vars = tc.flagVariables(vars)
		}
		if vars.Len() == 0 && len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n########## %s ##########\n", b.Name)
		for _, name := range vars.Names() {
			value, _ := vars.Get(name)
			fmt.Fprintf(&sb, "set(%s %s)\n", name, quoteArg(value))
		}
		for _, line := range lines {
			sb.WriteString(line + "\n")
		}
	}
	if tc.PreprocessorDefinitions.Len() > 0 {
		sb.WriteString("\n########## preprocessor ##########\n")
		defs := []string{}
		for _, name := range tc.PreprocessorDefinitions.Names() {
			value := tc.PreprocessorDefinitions.String(name)
			if value == "" {
				defs = append(defs, quote(name))
			} else {
				defs = append(defs, quote(name+"="+value))
			}
		}
		sb.WriteString("add_compile_definitions(" + strings.Join(defs, " ") + ")\n")
	}
	return sb.String()
}

func (tc *Toolchain) flagVariables(vars *Variables) *Variables {
	result := NewVariables()
	for _, name := range vars.Names() {
		value, _ := vars.Get(name)
		result.Set(name, value)
	}
	for _, entry := range []struct {
		name  string
		flags []string
	}{
		{"CMAKE_C_FLAGS_INIT", tc.ExtraCFlags},
		{"CMAKE_CXX_FLAGS_INIT", tc.ExtraCxxFlags},
		{"CMAKE_SHARED_LINKER_FLAGS_INIT", tc.ExtraSharedLinkFlags},
		{"CMAKE_MODULE_LINKER_FLAGS_INIT", tc.ExtraSharedLinkFlags},
		{"CMAKE_EXE_LINKER_FLAGS_INIT", tc.ExtraExeLinkFlags},
	} {
		if len(entry.flags) > 0 {
			result.Set(entry.name, strings.Join(entry.flags, " "))
		}
	}
	return result
}

// Generate writes the toolchain file and the presets into the generators
// folder.
func (tc *Toolchain) Generate() error {
	folder := tc.c.GeneratorsFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(folder, ToolchainFileName), []byte(tc.Content()), 0644); err != nil {
		return err
	}
	presets, err := tc.Presets()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, PresetsFileName), presets, 0644)
}
