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
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

type archiveKind int

const (
	notAnArchive archiveKind = iota
	tarArchive
	tarGzArchive
	tarBz2Archive
	tarXzArchive
	zipArchive
)

func kindOf(name string) archiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return tarGzArchive
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return tarBz2Archive
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return tarXzArchive
	case strings.HasSuffix(lower, ".tar"):
		return tarArchive
	case strings.HasSuffix(lower, ".zip"):
		return zipArchive
	}
	return notAnArchive
}

// IsArchive returns whether Unzip can extract the file with the given name.
func IsArchive(name string) bool {
	return kindOf(name) != notAnArchive
}

// Unzip extracts the archive into destination. With stripRoot, the single
// top-level directory all entries share is removed. It is an error if the
// entries don't share one.
func Unzip(archive string, destination string, stripRoot bool) error {
	kind := kindOf(archive)
	if kind == notAnArchive {
		return fmt.Errorf("unsupported archive '%s'", filepath.Base(archive))
	}
	if err := os.MkdirAll(destination, 0755); err != nil {
		return err
	}
	if kind == zipArchive {
		return unzip(archive, destination, stripRoot)
	}
	root := ""
	if stripRoot {
		names := []string{}
		err := walkTar(archive, kind, func(h *tar.Header, r io.Reader) error {
			names = append(names, h.Name)
			return nil
		})
		if err != nil {
			return err
		}
		if root, err = commonRoot(names); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(archive), err)
		}
	}
	return untar(archive, kind, destination, root)
}

func openTar(archive string, kind archiveKind) (*tar.Reader, io.Closer, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = f
	switch kind {
	case tarGzArchive:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		r = gz
	case tarBz2Archive:
		r = bzip2.NewReader(f)
	case tarXzArchive:
		x, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		r = x
	}
	return tar.NewReader(r), f, nil
}

func walkTar(archive string, kind archiveKind, f func(h *tar.Header, r io.Reader) error) error {
	tr, closer, err := openTar(archive, kind)
	if err != nil {
		return err
	}
	defer closer.Close()
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(archive), err)
		}
		if h.Typeflag == tar.TypeXGlobalHeader || h.Typeflag == tar.TypeXHeader {
			continue
		}
		if err := f(h, tr); err != nil {
			return err
		}
	}
}

// commonRoot returns the first path segment shared by all names.
func commonRoot(names []string) (string, error) {
	root := ""
	for _, name := range names {
		clean := strings.TrimPrefix(path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./")), "/")
		if clean == "." || clean == "" {
			continue
		}
		first := strings.SplitN(clean, "/", 2)[0]
		if root == "" {
			root = first
		} else if root != first {
			return "", fmt.Errorf("can't strip the root: entries '%s' and '%s' don't share a top-level directory", root, first)
		}
		if !strings.Contains(clean, "/") && !strings.HasSuffix(name, "/") && !isDirName(names, clean) {
			return "", fmt.Errorf("can't strip the root: file '%s' is at the top level", clean)
		}
	}
	if root == "" {
		return "", fmt.Errorf("can't strip the root of an empty archive")
	}
	return root, nil
}

// isDirName returns whether another name lives below dir.
func isDirName(names []string, dir string) bool {
	for _, n := range names {
		if strings.HasPrefix(strings.TrimPrefix(filepath.ToSlash(n), "./"), dir+"/") {
			return true
		}
	}
	return false
}

// targetPath maps an entry name to its extraction path. It returns "" for
// entries that are removed by stripping.
func targetPath(destination string, name string, root string) (string, error) {
	clean := strings.TrimPrefix(path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./")), "/")
	if root != "" {
		if clean == root {
			return "", nil
		}
		clean = strings.TrimPrefix(clean, root+"/")
	}
	if clean == "." || clean == "" {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	return filepath.Join(destination, filepath.FromSlash(clean)), nil
}

type pendingLink struct {
	target   string
	linkname string
	hard     bool
}

func untar(archive string, kind archiveKind, destination string, root string) error {
	links := []pendingLink{}
	err := walkTar(archive, kind, func(h *tar.Header, r io.Reader) error {
		target, err := targetPath(destination, h.Name, root)
		if err != nil || target == "" {
			return err
		}
		switch h.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeReg:
			return writeEntry(target, r, os.FileMode(h.Mode).Perm())
		case tar.TypeSymlink:
			links = append(links, pendingLink{target: target, linkname: h.Linkname})
		case tar.TypeLink:
			src, err := targetPath(destination, h.Linkname, root)
			if err != nil {
				return err
			}
			links = append(links, pendingLink{target: target, linkname: src, hard: true})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return createLinks(links)
}

// createLinks runs after all regular files exist. Hard links are copied.
func createLinks(links []pendingLink) error {
	for _, link := range links {
		if err := os.MkdirAll(filepath.Dir(link.target), 0755); err != nil {
			return err
		}
		os.Remove(link.target)
		if link.hard {
			if err := copyFile(link.linkname, link.target); err != nil {
				return err
			}
			continue
		}
		if err := os.Symlink(link.linkname, link.target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func unzip(archive string, destination string, stripRoot bool) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	root := ""
	if stripRoot {
		names := []string{}
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		if root, err = commonRoot(names); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(archive), err)
		}
	}

	links := []pendingLink{}
	for _, f := range zr.File {
		target, err := targetPath(destination, f.Name, root)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}
		mode := f.Mode()
		if mode.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		if mode&os.ModeSymlink != 0 {
			linkname, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			links = append(links, pendingLink{target: target, linkname: string(linkname)})
			continue
		}
		err = writeEntry(target, rc, mode.Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return createLinks(links)
}
