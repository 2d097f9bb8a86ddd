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

package subsystem

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Unix-like environments on Windows.
const (
	MSYS2  = "msys2"
	MSYS   = "msys"
	Cygwin = "cygwin"
	WSL    = "wsl"
)

// IsValid returns whether the subsystem is known.
func IsValid(subsystem string) bool {
	switch subsystem {
	case MSYS2, MSYS, Cygwin, WSL:
		return true
	}
	return false
}

var drivePattern = regexp.MustCompile(`^([a-zA-Z]):[\\/]`)

// UnixPath converts a Windows path to the path the subsystem uses for it.
// An empty subsystem leaves the path untouched.
//
//	C:\Users\Foo  msys2   /c/users/foo
//	C:\Users\Foo  cygwin  /cygdrive/c/users/foo
//	C:\Users\Foo  wsl     /mnt/c/Users/Foo
func UnixPath(path string, subsystem string) string {
	if subsystem == "" || path == "" {
		return path
	}
	path = strings.TrimPrefix(path, `\\?\`)
	path = drivePattern.ReplaceAllString(path, "/$1/")
	path = strings.ReplaceAll(path, `\`, "/")
	switch subsystem {
	case MSYS, MSYS2:
		return strings.ToLower(path)
	case Cygwin:
		return "/cygdrive" + strings.ToLower(path)
	case WSL:
		if len(path) >= 2 {
			return "/mnt" + strings.ToLower(path[0:2]) + path[2:]
		}
		return "/mnt" + path
	}
	return path
}

// URIPath is a url suitable as a '/' separated path.
// That is, the URL can be used as a path once the '/'s are translated to OS specific
// path-segment separators. Most importantly, such a URL does not contain any `:`.
// For example:
// the url 'host.com/c:/foo/bar' is legal, but we wouldn't be able to create
// a folder 'indexes/host.com/c:/foo/bar' on Windows, as ':' in paths are not
// allowed there.
// Segments that Windows can't use as file names (reserved device names,
// trailing dots, empty segments) get a '%' appended.
type URIPath string

var reservedNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])$`)

// ToURIPath takes a URL and converts it to an URIPath.
func ToURIPath(url string) URIPath {
	segments := strings.Split(strings.ReplaceAll(url, `\`, "/"), "/")
	for i, segment := range segments {
		segment = strings.ReplaceAll(segment, "%", "%25")
		segment = strings.ReplaceAll(segment, "+", "%2B")
		segment = strings.ReplaceAll(segment, ":", "%3A")
		if segment == "" || strings.HasSuffix(segment, ".") || reservedNames.MatchString(segment) {
			segment += "%"
		}
		segments[i] = segment
	}
	return URIPath(strings.Join(segments, "/"))
}

// URL undoes the escaping done in ToURIPath.
func (up URIPath) URL() string {
	segments := strings.Split(string(up), "/")
	for i, segment := range segments {
		segment = strings.TrimSuffix(segment, "%")
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segment = unescaped
		}
		segments[i] = segment
	}
	return strings.Join(segments, "/")
}

// FilePath returns the path with OS specific separators.
func (up URIPath) FilePath() string {
	return filepath.FromSlash(string(up))
}

// FilePathToURIPath encodes a file path as a URIPath.
func FilePathToURIPath(p string) URIPath {
	return ToURIPath(filepath.ToSlash(p))
}
