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

package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/toitlang/trecipe/pkg/git"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// GetOptions parameterize Get.
type GetOptions struct {
	// Destination is relative to the source folder.
	Destination string
	StripRoot   bool
	// Filename overrides the name derived from the first URL. The name
	// decides how the file is extracted.
	Filename string
	Download DownloadOptions
}

// Get downloads the file and extracts it into the destination. Files that
// aren't archives are copied into the destination.
func Get(ctx context.Context, c *recipe.Conanfile, urls []string, opts GetOptions) error {
	if len(urls) == 0 {
		return recipe.NewFrameworkError("%s: no URL to download from", c.Ref)
	}
	filename := opts.Filename
	if filename == "" {
		filename = FilenameFromURL(urls[0])
	}
	destination := resolve(c.SourceFolder(), opts.Destination)

	tmpDir, err := os.MkdirTemp("", "trecipe-download")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)
	archive := filepath.Join(tmpDir, filename)
	if err := Download(ctx, c, urls, archive, opts.Download); err != nil {
		return err
	}
	if !IsArchive(filename) {
		return copyFile(archive, filepath.Join(destination, filename))
	}
	c.UI.ReportInfo("Extracting %s", filename)
	return Unzip(archive, destination, opts.StripRoot)
}

// GetEntry fetches the archive described by a conandata.yml source entry.
// strip_root defaults to true, since most upstream archives have a single
// root folder.
func GetEntry(ctx context.Context, c *recipe.Conanfile, entry *recipe.SourceEntry, destination string) error {
	if destination == "" {
		destination = entry.Destination
	}
	return Get(ctx, c, entry.URLs, GetOptions{
		Destination: destination,
		StripRoot:   entry.StripRootOr(true),
		Filename:    entry.Filename,
		Download: DownloadOptions{
			SHA256:       entry.SHA256,
			SignatureURL: entry.SignatureURL,
		},
	})
}

// GetSources fetches the sources of the recipe's version. The keys select
// nested entries, like the operating system and architecture.
func GetSources(ctx context.Context, c *recipe.Conanfile, keys ...string) error {
	if c.ConanData == nil {
		return recipe.NewFrameworkError("%s: no %s", c.Ref, recipe.ConanDataFileName)
	}
	entry, err := c.ConanData.Source(c.Version(), keys...)
	if err != nil {
		return err
	}
	return GetEntry(ctx, c, entry, "")
}

var hashRegexp = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GetGit clones the repository at url into the destination, and checks out
// the revision. A revision is a commit hash, a tag or a branch.
// Returns the checked out commit.
func GetGit(ctx context.Context, c *recipe.Conanfile, url string, revision string, destination string) (string, error) {
	dest := resolve(c.SourceFolder(), destination)
	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		return "", recipe.NewFrameworkError("%s: git destination '%s' is not empty", c.Ref, dest)
	}
	c.UI.ReportInfo("Cloning %s (%s)", url, revision)
	if hashRegexp.MatchString(revision) {
		hash, err := git.Clone(ctx, dest, git.CloneOptions{URL: url, Hash: revision})
		if err != nil {
			return "", recipe.WrapFrameworkError(err, "%s: cloning %s", c.Ref, url)
		}
		return hash, nil
	}
	hash, err := git.Clone(ctx, dest, git.CloneOptions{URL: url, Tag: revision, SingleBranch: true, Depth: 1})
	if err == nil {
		return hash, nil
	}
	os.RemoveAll(dest)
	hash, err = git.Clone(ctx, dest, git.CloneOptions{URL: url, Branch: revision, SingleBranch: true, Depth: 1})
	if err != nil {
		return "", recipe.WrapFrameworkError(err, "%s: cloning %s at '%s'", c.Ref, url, revision)
	}
	return hash, nil
}

// resolve joins relative paths to base.
func resolve(base string, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func copyFile(src string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
