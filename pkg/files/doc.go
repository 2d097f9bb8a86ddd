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

// Package files provides the file helpers recipes use in their source and
// package stages.
//
// Sources are fetched with Get, GetEntry or GetSources. Downloads try every
// mirror in turn, are verified against their sha256 digest and optionally
// a detached OpenPGP signature, and are kept in a download cache keyed by the
// digest. Archives are extracted with Unzip. Patches from conandata.yml are
// applied with ApplyConanDataPatches, through an external patch program.
//
// ApplyPackagePolicy implements the cleanups every package folder gets after
// installation.
package files
