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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/toitlang/trecipe/pkg/recipe"
)

const (
	// ConfRetryWait is the number of seconds to wait between two attempts
	// of the same URL.
	ConfRetryWait = "tools.files.download:retry_wait"
	// ConfTrustedKeys is the path of an armored OpenPGP key ring. Sources
	// with a signature are only verified when it is set.
	ConfTrustedKeys = "tools.files.download:trusted_keys"

	// originURLs in core.sources:download_urls stands for the URLs of the
	// source entry.
	originURLs = "origin"

	defaultRetry     = 2
	defaultRetryWait = 5
)

// DownloadOptions parameterize Download.
type DownloadOptions struct {
	// SHA256 is the expected digest. Without it, the download cache is
	// not used.
	SHA256 string
	// SignatureURL points to a detached OpenPGP signature of the file.
	SignatureURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// notFoundError is not retried, but the next mirror is tried.
type notFoundError struct {
	url    string
	status int
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("download of '%s' failed with status %d", e.url, e.status)
}

// Download fetches the file to dest. The URLs are mirrors of the same file
// and are tried in order. A digest mismatch is fatal and stops the search.
//
// The backups of core.sources:download_urls are consulted in the order
// given. Their URLs are the backup base followed by the sha256 digest.
func Download(ctx context.Context, c *recipe.Conanfile, urls []string, dest string, opts DownloadOptions) error {
	if len(urls) == 0 {
		return recipe.NewFrameworkError("%s: no URL to download from", c.Ref)
	}
	candidates := downloadCandidates(c, urls, opts.SHA256)
	cacheDir := c.Conf.GetString(recipe.ConfDownloadCache, "")
	if cacheDir == "" || opts.SHA256 == "" {
		if err := downloadAny(ctx, c, candidates, dest, opts); err != nil {
			return err
		}
		return verifySignature(ctx, c, dest, opts)
	}

	cached := filepath.Join(cacheDir, "s", strings.ToLower(opts.SHA256))
	if err := os.MkdirAll(filepath.Dir(cached), 0755); err != nil {
		return err
	}
	err := withLock(cached+".lock", func() error {
		ok, err := hasDigest(cached, opts.SHA256)
		if err != nil {
			return err
		}
		if ok {
			c.UI.ReportInfo("Using cached download of %s", urls[0])
			return nil
		}
		return downloadAny(ctx, c, candidates, cached, opts)
	})
	if err != nil {
		return err
	}
	if err := copyFile(cached, dest); err != nil {
		return err
	}
	return verifySignature(ctx, c, dest, opts)
}

func downloadCandidates(c *recipe.Conanfile, urls []string, sha string) []string {
	sources := c.Conf.GetStrings(recipe.ConfDownloadURLs)
	if len(sources) == 0 || sha == "" {
		return urls
	}
	result := []string{}
	for _, s := range sources {
		if s == originURLs {
			result = append(result, urls...)
			continue
		}
		result = append(result, strings.TrimSuffix(s, "/")+"/"+strings.ToLower(sha))
	}
	return result
}

func downloadAny(ctx context.Context, c *recipe.Conanfile, urls []string, dest string, opts DownloadOptions) error {
	retry := c.Conf.GetInt(recipe.ConfDownloadRetry, defaultRetry)
	wait := time.Duration(c.Conf.GetInt(ConfRetryWait, defaultRetryWait)) * time.Second
	var errs []string
	for _, u := range urls {
		err := downloadWithRetry(ctx, c, u, dest, opts, retry, wait)
		if err == nil {
			return nil
		}
		if recipe.IsSourceIntegrity(err) || ctx.Err() != nil {
			return err
		}
		c.UI.ReportWarning("%v", err)
		errs = append(errs, err.Error())
	}
	return recipe.NewFrameworkError("%s: all downloads failed:\n  %s", c.Ref, strings.Join(errs, "\n  "))
}

func downloadWithRetry(ctx context.Context, c *recipe.Conanfile, u string, dest string, opts DownloadOptions, retry int, wait time.Duration) error {
	var err error
	for attempt := 0; attempt <= retry; attempt++ {
		if attempt > 0 {
			c.UI.ReportInfo("Retrying download of %s", u)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err = downloadOne(ctx, u, dest, opts)
		if err == nil {
			return nil
		}
		var notFound *notFoundError
		if errors.As(err, &notFound) || recipe.IsSourceIntegrity(err) {
			return err
		}
	}
	return err
}

// downloadOne writes to a temporary file next to dest, and only renames it
// once the digest is known to be correct.
func downloadOne(ctx context.Context, u string, dest string, opts DownloadOptions) error {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "trecipe")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return &notFoundError{url: u, status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of '%s' failed with status %d", u, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp := dest + "." + uuid.NewString() + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	hasher := sha256.New()
	writers := []io.Writer{out, hasher}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		writers = append(writers, progressbar.DefaultBytes(resp.ContentLength, "Downloading "+FilenameFromURL(u)))
	}
	if _, err := io.Copy(io.MultiWriter(writers...), resp.Body); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if opts.SHA256 != "" && !strings.EqualFold(actual, opts.SHA256) {
		return &recipe.SourceIntegrityError{URL: u, Expected: strings.ToLower(opts.SHA256), Actual: actual}
	}
	return os.Rename(tmp, dest)
}

// CheckSHA256 verifies the digest of the file at path.
func CheckSHA256(p string, expected string) error {
	actual, err := fileDigest(p)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return &recipe.SourceIntegrityError{URL: p, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}

func fileDigest(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// hasDigest returns false for missing files and for files whose content
// doesn't match.
func hasDigest(p string, expected string) (bool, error) {
	actual, err := fileDigest(p)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}

func withLock(lockPath string, f func() error) error {
	m, err := filemutex.New(lockPath)
	if err != nil {
		return err
	}
	if err := m.Lock(); err != nil {
		return err
	}
	defer m.Unlock()
	return f()
}

// FilenameFromURL returns the last path segment of the URL, without query.
func FilenameFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return path.Base(u)
	}
	return path.Base(parsed.Path)
}
