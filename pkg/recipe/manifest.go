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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"
)

// Manifest describes a packaged binary. It is written last, so its
// presence marks a complete package folder.
type Manifest struct {
	path      string `yaml:"-"`
	Ref       string `yaml:"ref"`
	PackageID string `yaml:"package_id"`
	// Info is the identity text the package id was computed from.
	Info string `yaml:"info"`
	// Files maps the slash separated paths of all packaged files to their
	// sha256.
	Files map[string]string `yaml:"files"`
}

// ComputeManifest hashes all files of the package folder.
func ComputeManifest(folder string, ref Ref, info *Info) (*Manifest, error) {
	m := &Manifest{
		path:      filepath.Join(folder, ManifestFileName),
		Ref:       ref.String(),
		PackageID: info.PackageID(),
		Info:      info.Text(),
		Files:     map[string]string{},
	}
	files, err := hashFolder(folder)
	if err != nil {
		return nil, err
	}
	m.Files = files
	return m, nil
}

func hashFolder(folder string) (map[string]string, error) {
	result := map[string]string{}
	err := filepath.WalkDir(folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(folder, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestFileName {
			return nil
		}
		sum, err := hashFile(p, d)
		if err != nil {
			return err
		}
		result[rel] = sum
		return nil
	})
	return result, err
}

func hashFile(p string, d fs.DirEntry) (string, error) {
	h := sha256.New()
	if d.Type()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(p)
		if err != nil {
			return "", err
		}
		h.Write([]byte("symlink:" + filepath.ToSlash(target)))
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (m *Manifest) Parse(b []byte) error {
	if err := yaml.Unmarshal(b, m); err != nil {
		return WrapFrameworkError(err, "failed to parse %s", m.path)
	}
	if m.PackageID == "" {
		return NewFrameworkError("%s: missing package_id", m.path)
	}
	return nil
}

func (m *Manifest) ParseFile(filename string) error {
	m.path = filename
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return m.Parse(b)
}

// ReadManifest reads the manifest of the given package folder.
func ReadManifest(folder string) (*Manifest, error) {
	m := &Manifest{}
	if err := m.ParseFile(filepath.Join(folder, ManifestFileName)); err != nil {
		return nil, err
	}
	return m, nil
}

// Paths returns the packaged files, sorted.
func (m *Manifest) Paths() []string {
	return sortedKeys(m.Files)
}

// Verify compares the manifest with the package folder. Returns the paths
// that were modified, added or removed.
func (m *Manifest) Verify(folder string) ([]string, error) {
	actual, err := hashFolder(folder)
	if err != nil {
		return nil, err
	}
	diffs := []string{}
	for p, sum := range m.Files {
		if actual[p] != sum {
			diffs = append(diffs, p)
		}
	}
	for p := range actual {
		if _, ok := m.Files[p]; !ok {
			diffs = append(diffs, p)
		}
	}
	sort.Strings(diffs)
	return diffs, nil
}

func (m *Manifest) WriteYAML(writer io.Writer) error {
	return yaml.NewEncoder(writer).Encode(m)
}

func (m *Manifest) WriteToFile() (err error) {
	file, err := os.Create(m.path)
	if err != nil {
		return err
	}
	defer func() {
		e := file.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	return m.WriteYAML(file)
}
