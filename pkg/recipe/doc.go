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

// Package recipe implements the execution contract of C/C++ package recipes.
//
// Key concepts:
// * Recipe: the description of one upstream package. It consists of static
//   metadata (name, license, package type, options, ...) and a set of handlers,
//   one per lifecycle stage, registered through a Builder.
// * Conanfile: a fresh instance of a recipe for exactly one binary identity.
//   Handlers receive the Conanfile and mutate it within the limits of their
//   stage. Once a stage has returned, its outputs are frozen.
// * Options: an immutable set of option descriptors plus a chain of rewrites
//   (defaults, profile overrides, deletions, pins). The current values are a
//   reduction over the chain.
// * Info: the identity vector (settings, options, requirements) from which the
//   package id is hashed. The package_id stage may only delete from it.
// * CppInfo: the consumer facing metadata (components, libraries, properties)
//   a package publishes in package_info.
// * Index: a place where the external data of recipes can be found
//   (config.yml, conandata.yml, patches). Indexes are local folders or git
//   repositories.
// * Graph: the expanded dependency graph, with version ranges resolved and
//   option values propagated from consumers to their dependencies.
// * Manager: drives every node of a graph through the lifecycle, building
//   missing binaries or consuming cached ones.
package recipe
