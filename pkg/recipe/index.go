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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/gobwas/glob"
	"github.com/toitlang/trecipe/pkg/git"
)

// IndexEntry is a recipe folder of an index: recipes/<name>/.
type IndexEntry struct {
	Name     string
	Path     string
	Versions *VersionsFile
}

// RecipeFolder returns the folder implementing the given version.
func (e *IndexEntry) RecipeFolder(version string) (string, error) {
	folder, err := e.Versions.Folder(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(e.Path, filepath.FromSlash(folder)), nil
}

// ConanData reads the external data of the given version.
func (e *IndexEntry) ConanData(version string) (*ConanData, error) {
	folder, err := e.RecipeFolder(version)
	if err != nil {
		return nil, err
	}
	return ReadConanData(filepath.Join(folder, ConanDataFileName))
}

type Indexes []Index

// Index is a source of recipe data.
type Index interface {
	// Name of the index.
	Name() string
	// Loads the index into memory.
	// Synchronizes the index first, if 'sync' is true.
	Load(ctx context.Context, sync bool, cache Cache, ui UI) error
	// Clears the cache, if there is any.
	ClearCache(ctx context.Context, cache Cache, ui UI) error
	// Describes this index.
	Describe() string
	// All the loaded entries. If the index hasn't been loaded yet returns nil.
	Entries() []*IndexEntry
	// Searches for recipes whose name contains the given string.
	SearchName(name string) []*IndexEntry
	// Returns the recipe with exactly the given name.
	MatchName(name string) (*IndexEntry, bool)
}

// IndexConfig can be used to load an index with Load.
type IndexConfig struct {
	Name string    `yaml:"name" mapstructure:"name"`
	Kind IndexKind `yaml:"kind" mapstructure:"kind"`
	Path string    `yaml:"path" mapstructure:"path"`
}

type IndexConfigs []IndexConfig

// IndexKind specifies how to load an index.
type IndexKind string

const (
	// IndexKindLocal is a simple folder.
	IndexKindLocal IndexKind = "local"
	// IndexKindGit is an index backed by a git-repository.
	IndexKindGit IndexKind = "git"
)

// IsValid returns whether the index kind is valid.
func (k IndexKind) IsValid() bool {
	return k == IndexKindLocal || k == IndexKindGit
}

// Load loads the index given by its configuration.
func (cfg IndexConfig) Load(ctx context.Context, sync bool, clearCache bool, cache Cache, ui UI) (Index, error) {
	if !cfg.Kind.IsValid() {
		return nil, ui.ReportError("Unexpected index kind '%v'", cfg.Kind)
	}
	var index Index
	if cfg.Kind == IndexKindLocal {
		index = NewLocalIndex(cfg.Name, cfg.Path)
	} else {
		var err error
		index, err = NewGitIndex(cfg.Name, cfg.Path, cache)
		if err != nil {
			return nil, err
		}
	}
	if clearCache {
		if err := index.ClearCache(ctx, cache, ui); err != nil {
			return nil, err
		}
	}
	if err := index.Load(ctx, sync, cache, ui); err != nil {
		return nil, err
	}
	return index, nil
}

// Load takes the index configurations and loads the corresponding indexes.
func (configs IndexConfigs) Load(ctx context.Context, sync bool, cache Cache, ui UI) (Indexes, error) {
	result := []Index{}
	for _, config := range configs {
		index, err := config.Load(ctx, sync, false, cache, ui)
		if err != nil {
			return nil, err
		}
		result = append(result, index)
	}
	return result, nil
}

type pathIndex struct {
	name    string
	path    string
	entries []*IndexEntry
}

type gitIndex struct {
	pathIndex
	url string
}

var (
	_ Index = (*pathIndex)(nil)
	_ Index = (*gitIndex)(nil)
)

func (p *pathIndex) Name() string {
	return p.name
}

func (p *pathIndex) Describe() string {
	if p.name == "" {
		return p.path
	}
	return fmt.Sprintf("%s: %s", p.name, p.path)
}

var blocklist = []glob.Glob{
	glob.MustCompile(".**", '/'), // Any hidden file or directory, including .git.
}

func isBlocked(name string) bool {
	for _, g := range blocklist {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (p *pathIndex) Load(_ context.Context, sync bool, _ Cache, ui UI) error {
	root := filepath.Join(p.path, RecipesDir)
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return ui.ReportError("Index '%s' has no '%s' folder", p.Describe(), RecipesDir)
	}
	if err != nil {
		return err
	}
	entries := []*IndexEntry{}
	for _, dir := range dirs {
		if !dir.IsDir() || isBlocked(dir.Name()) {
			continue
		}
		if !IsValidName(dir.Name()) {
			ui.ReportWarning("Skipping recipe folder with invalid name '%s'", dir.Name())
			continue
		}
		recipePath := filepath.Join(root, dir.Name())
		configPath := filepath.Join(recipePath, ConfigFileName)
		ok, err := isFile(configPath)
		if err != nil {
			return err
		}
		if !ok {
			ui.ReportWarning("Skipping recipe folder without %s: '%s'", ConfigFileName, recipePath)
			continue
		}
		versions, err := ReadVersionsFile(configPath, ui)
		if err != nil {
			return err
		}
		entries = append(entries, &IndexEntry{
			Name:     dir.Name(),
			Path:     recipePath,
			Versions: versions,
		})
	}
	p.entries = entries
	return nil
}

func (p *pathIndex) ClearCache(ctx context.Context, cache Cache, ui UI) error {
	return nil
}

func (p *pathIndex) Entries() []*IndexEntry {
	return p.entries
}

func (p *pathIndex) SearchName(name string) []*IndexEntry {
	result := []*IndexEntry{}
	for _, entry := range p.entries {
		if strings.Contains(strings.ToLower(entry.Name), strings.ToLower(name)) {
			result = append(result, entry)
		}
	}
	return result
}

func (p *pathIndex) MatchName(name string) (*IndexEntry, bool) {
	for _, entry := range p.entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return nil, false
}

// NewLocalIndex creates an index reading the folder at path.
func NewLocalIndex(name string, path string) Index {
	return &pathIndex{
		name: name,
		path: path,
	}
}

// NewGitIndex creates a new index that is backed by a git-repository.
// The data is fetched (cloned) during 'Load' when 'sync' is true.
func NewGitIndex(name string, url string, cache Cache) (Index, error) {
	p, err := cache.FindIndex(url)
	if err != nil {
		return nil, err
	}
	return &gitIndex{
		pathIndex: pathIndex{name: name, path: p},
		url:       url,
	}, nil
}

func (gi *gitIndex) Describe() string {
	return fmt.Sprintf("%s: %s", gi.name, gi.url)
}

// withFileLock makes sure only one process syncs the index at the same time.
func (gi *gitIndex) withFileLock(ctx context.Context, cache Cache, f func(path string) error) error {
	p := gi.path
	if gi.path == "" {
		p = cache.PreferredIndexPath(gi.url)
	}
	return withFileLock(ctx, filepath.Join(filepath.Dir(p), ".trecipe_sync.lock"), func() error {
		return f(p)
	})
}

// withFileLock runs f while holding the lock at lockPath.
// Gives up after three minutes.
func withFileLock(ctx context.Context, lockPath string, f func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}
	m, err := filemutex.New(lockPath)
	if err != nil {
		return err
	}

	unlocked := make(chan struct{})
	ctx, cancel := context.WithTimeout(ctx, time.Minute*3)
	defer cancel()

	// If the context is done between acquiring the lock and closing the
	// channel, the lock is never released by this process.
	go func() {
		m.Lock()
		select {
		case <-ctx.Done():
			m.Unlock()
		default:
			close(unlocked)
		}
	}()
	select {
	case <-unlocked:
		defer m.Unlock()
	case <-ctx.Done():
		return fmt.Errorf("unable to acquire lock %s", lockPath)
	}

	return f()
}

func (gi *gitIndex) Load(ctx context.Context, sync bool, cache Cache, ui UI) error {
	if sync {
		err := gi.withFileLock(ctx, cache, func(p string) error {
			info, err := os.Stat(p)
			exists := true
			if os.IsNotExist(err) {
				exists = false
			} else if err != nil {
				return err
			} else if !info.IsDir() {
				return ui.ReportError("Path %s exists but is not a directory", p)
			}

			if exists {
				return git.Pull(p, git.PullOptions{})
			}
			// Try the common default branches, the correct one first.
			var cloneErr error
			for _, branch := range []string{"main", "master", "trunk"} {
				_, branchErr := git.Clone(ctx, p, git.CloneOptions{
					URL:          gi.url,
					SingleBranch: true,
					Branch:       branch,
				})
				if branchErr == nil {
					cloneErr = nil
					break
				}
				if cloneErr == nil || !strings.Contains(branchErr.Error(), "couldn't find remote ref") {
					cloneErr = branchErr
				}
				os.RemoveAll(p)
			}
			if cloneErr != nil {
				return cloneErr
			}
			gi.path = p
			return nil
		})
		if err != nil {
			return err
		}
	}
	if gi.path == "" {
		// The repository was never cloned.
		return nil
	}
	return gi.pathIndex.Load(ctx, sync, cache, ui)
}

func (gi *gitIndex) ClearCache(ctx context.Context, cache Cache, ui UI) error {
	if gi.path == "" {
		return nil
	}
	return gi.withFileLock(ctx, cache, func(p string) error {
		return os.RemoveAll(p)
	})
}

// MatchName returns the entry of the first index that knows the recipe.
func (indexes Indexes) MatchName(name string) (*IndexEntry, Index, bool) {
	for _, index := range indexes {
		if entry, ok := index.MatchName(name); ok {
			return entry, index, true
		}
	}
	return nil, nil, false
}

// SearchName searches all indexes.
func (indexes Indexes) SearchName(name string) []*IndexEntry {
	result := []*IndexEntry{}
	for _, index := range indexes {
		result = append(result, index.SearchName(name)...)
	}
	return result
}
