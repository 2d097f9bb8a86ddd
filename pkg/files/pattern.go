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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// CopyOptions parameterize Copy.
type CopyOptions struct {
	// Flatten copies all matches directly into dst instead of keeping their
	// relative path.
	Flatten bool
	// Excludes are patterns of relative paths that are not copied.
	Excludes []string
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	result := []glob.Glob{}
	for _, p := range patterns {
		// Without separators '*' also matches '/', so "*.h" finds headers
		// in subfolders.
		g, err := glob.Compile(filepath.ToSlash(p))
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, nil
}

func matchesAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// Copy copies the files of src whose slash-separated relative path matches
// the pattern into dst. Returns the copied files, relative to dst.
// A missing src copies nothing.
func Copy(pattern string, src string, dst string, opts ...CopyOptions) ([]string, error) {
	opt := CopyOptions{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	globs, err := compileAll([]string{pattern})
	if err != nil {
		return nil, err
	}
	excludes, err := compileAll(opt.Excludes)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	}
	copied := []string{}
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		slashed := filepath.ToSlash(rel)
		if !matchesAny(globs, slashed) || matchesAny(excludes, slashed) {
			return nil
		}
		target := rel
		if opt.Flatten {
			target = filepath.Base(rel)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			linkname, err := os.Readlink(p)
			if err != nil {
				return err
			}
			dest := filepath.Join(dst, target)
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			os.Remove(dest)
			if err := os.Symlink(linkname, dest); err != nil {
				return err
			}
		} else if err := copyFile(p, filepath.Join(dst, target)); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(target))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// Rm removes the files in folder whose name matches the pattern.
// Recursive also looks into subfolders.
func Rm(pattern string, folder string, recursive bool) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	removed := []string{}
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return removed, nil
	}
	err = filepath.WalkDir(folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != folder && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !g.Match(d.Name()) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		rel, _ := filepath.Rel(folder, p)
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	return removed, err
}

// Rmdir removes the folder and its content. Missing folders are ignored.
func Rmdir(folder string) error {
	return os.RemoveAll(folder)
}

// Rename moves src to dst, replacing dst.
func Rename(src string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// MoveFolderContents moves the entries of src into dst, replacing existing
// entries, and removes src. src may be a sub folder of dst.
func MoveFolderContents(src string, dst string) error {
	tmp := src + ".trecipe-move"
	if err := Rename(src, tmp); err != nil {
		return err
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := Rename(filepath.Join(tmp, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return os.RemoveAll(tmp)
}
