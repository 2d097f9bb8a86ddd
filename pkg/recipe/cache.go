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
	"sort"
	"strings"
)

// Cache handles all cache related functionality.
// It keeps track of where the caches are, and how to compute the folders
// of a reference.
//
// The layout of a reference is
//
//	<packages>/<name>/<version>/<user>/<channel>/
//	  e/          exported sources
//	  s/          sources, shared by all binaries
//	  b/<id>/     build folder of one binary
//	  p/<id>/     package folder of one binary
type Cache struct {
	ui      UI
	options *cacheOptions
}

type cacheOptions struct {
	packagesPath string
	// The locations where git indexes can be found.
	// The first path is used to install new git indexes.
	indexCachePaths []string
	downloadCache   string
}

func (o *cacheOptions) apply(options ...CacheOption) {
	for _, option := range options {
		option.applyCacheOption(o)
	}
}

// CacheOption defines the optional parameters for NewCache.
type CacheOption interface {
	applyCacheOption(*cacheOptions)
}

// WithIndexCachePath adds locations where git indexes can be found.
func WithIndexCachePath(paths ...string) CacheOption {
	return indexCachePaths(paths)
}

type indexCachePaths []string

func (p indexCachePaths) applyCacheOption(o *cacheOptions) {
	o.indexCachePaths = append(o.indexCachePaths, p...)
}

// WithDownloadCache sets the folder downloaded archives are kept in.
func WithDownloadCache(path string) CacheOption {
	return downloadCache(path)
}

type downloadCache string

func (p downloadCache) applyCacheOption(o *cacheOptions) {
	o.downloadCache = string(p)
}

// NewCache creates a new cache rooted at home.
func NewCache(home string, ui UI, options ...CacheOption) Cache {
	option := &cacheOptions{
		packagesPath:    filepath.Join(home, "p"),
		indexCachePaths: []string{filepath.Join(home, "indexes")},
		downloadCache:   filepath.Join(home, "downloads"),
	}
	option.apply(options...)
	return Cache{
		ui:      ui,
		options: option,
	}
}

func (c Cache) find(p string, paths []string) (string, error) {
	for _, cachePath := range paths {
		cachePath := filepath.Join(cachePath, p)
		info, err := os.Stat(cachePath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", c.ui.ReportError("Path %s exists but is not a directory", cachePath)
		}
		return cachePath, nil
	}
	return "", nil
}

// FindIndex searches for the checkout of the index with the given url.
// If it's not found returns "".
func (c Cache) FindIndex(url string) (string, error) {
	return c.find(urlToRelPath(url), c.options.indexCachePaths)
}

// PreferredIndexPath returns the preferred path for the given index url.
func (c Cache) PreferredIndexPath(url string) string {
	return filepath.Join(c.options.indexCachePaths[0], urlToRelPath(url))
}

// DownloadCachePath returns the folder of the download cache.
func (c Cache) DownloadCachePath() string {
	return c.options.downloadCache
}

// PackagesPath returns the root of the package storage.
func (c Cache) PackagesPath() string {
	return c.options.packagesPath
}

func orUnderscore(s string) string {
	if s == "" {
		return "_"
	}
	return s
}

// RefPath returns the root folder of the reference.
func (c Cache) RefPath(ref Ref) string {
	return filepath.Join(c.options.packagesPath, ref.Name, ref.Version, orUnderscore(ref.User), orUnderscore(ref.Channel))
}

// ExportPath returns the folder of the exported sources of the reference.
func (c Cache) ExportPath(ref Ref) string {
	return filepath.Join(c.RefPath(ref), "e")
}

// SourcePath returns the source folder of the reference.
func (c Cache) SourcePath(ref Ref) string {
	return filepath.Join(c.RefPath(ref), "s")
}

// BuildPath returns the build folder of the given binary.
func (c Cache) BuildPath(ref Ref, packageID string) string {
	return filepath.Join(c.RefPath(ref), "b", packageID)
}

// PackagePath returns the package folder of the given binary.
func (c Cache) PackagePath(ref Ref, packageID string) string {
	return filepath.Join(c.RefPath(ref), "p", packageID)
}

// HasPackage returns whether the binary was packaged completely.
func (c Cache) HasPackage(ref Ref, packageID string) (bool, error) {
	return isFile(filepath.Join(c.PackagePath(ref, packageID), ManifestFileName))
}

// PackageIDs returns the ids of all complete binaries of the reference.
func (c Cache) PackageIDs(ref Ref) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.RefPath(ref), "p"))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	result := []string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := c.HasPackage(ref, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, entry.Name())
		}
	}
	sort.Strings(result)
	return result, nil
}

// Refs returns all references with a folder in the cache.
func (c Cache) Refs() ([]Ref, error) {
	result := []Ref{}
	root := c.options.packagesPath
	names, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	fromUnderscore := func(s string) string {
		if s == "_" {
			return ""
		}
		return s
	}
	for _, name := range names {
		matches, err := filepath.Glob(filepath.Join(root, name.Name(), "*", "*", "*"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			rel, err := filepath.Rel(root, m)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			result = append(result, Ref{
				Name:    parts[0],
				Version: parts[1],
				User:    fromUnderscore(parts[2]),
				Channel: fromUnderscore(parts[3]),
			})
		}
	}
	return result, nil
}

// RemoveBuild deletes the build folder of the binary.
func (c Cache) RemoveBuild(ref Ref, packageID string) error {
	return os.RemoveAll(c.BuildPath(ref, packageID))
}

// Remove deletes all folders of the reference.
func (c Cache) Remove(ref Ref) error {
	return os.RemoveAll(c.RefPath(ref))
}

const readmeContent string = `# Recipe Cache Directory

This directory contains sources, build trees and packages that have been
produced by trecipe, as well as checkouts of recipe indexes and downloaded
archives.

Everything in this directory can be produced again. It is thus safe to
remove it.
`

// CreateCacheDir creates the package storage directory.
// If the directory doesn't exist yet, creates it, and writes a README
// explaining what the directory is for, and what is allowed to be done.
func (c Cache) CreateCacheDir(ui UI) error {
	dir := filepath.Dir(c.options.packagesPath)
	stat, err := os.Stat(dir)
	if err == nil && !stat.IsDir() {
		return ui.ReportError("Cache path already exists but is not a directory: '%s'", dir)
	}
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "README.md"), []byte(readmeContent), 0644)
}
