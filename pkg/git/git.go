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

package git

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

type CloneOptions struct {
	URL string
	// Order of preference: hash > branch > tag.
	Hash         string
	Branch       string
	Tag          string
	SingleBranch bool
	Depth        int
	SSHPath      string
}

// NormalizeURL adds the https scheme to URLs that have none.
// Local paths and scp-like addresses are kept as is.
func NormalizeURL(str string) string {
	if filepath.IsAbs(str) || strings.Contains(str, "://") {
		return str
	}
	if strings.HasPrefix(str, "git@") {
		return str
	}
	return "https://" + str
}

func convertURLToSSH(str string) (string, error) {
	u, err := url.Parse(str)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	path := strings.TrimSuffix(u.Path, ".git")
	return "ssh://git@" + u.Host + path + ".git", nil
}

// Clone clones the repository with the given [options] into [dir].
// Returns the checked out hash.
func Clone(ctx context.Context, dir string, options CloneOptions) (string, error) {
	url := NormalizeURL(options.URL)
	gogitOptions := &gogit.CloneOptions{
		URL:          url,
		SingleBranch: options.SingleBranch,
		Depth:        options.Depth,
	}

	// go-git can't fetch a single commit. Check out the branch or tag
	// first, and move to the hash afterwards.
	if options.Branch != "" {
		gogitOptions.ReferenceName = plumbing.NewBranchReferenceName(options.Branch)
	} else if options.Tag != "" {
		gogitOptions.ReferenceName = plumbing.NewTagReferenceName(options.Tag)
	}
	if options.Hash != "" {
		// A shallow clone might not contain the commit.
		gogitOptions.Depth = 0
	}

	if options.SSHPath != "" {
		sshURL, err := convertURLToSSH(url)
		if err != nil {
			return "", fmt.Errorf("invalid URL '%s': %v", url, err)
		}
		gogitOptions.URL = sshURL

		auth, err := ssh.NewPublicKeysFromFile("git", options.SSHPath, "")
		if err != nil {
			return "", err
		}
		gogitOptions.Auth = auth
	}

	repository, err := gogit.PlainCloneContext(ctx, dir, false, gogitOptions)
	if errors.Is(err, transport.ErrAuthenticationRequired) && options.SSHPath == "" {
		// Retry with ssh, using the agent for authentication.
		if sshURL, errURL := convertURLToSSH(url); errURL == nil {
			gogitOptions.URL = sshURL
			repository, err = gogit.PlainCloneContext(ctx, dir, false, gogitOptions)
		}
	}
	if err != nil && (gogit.NoMatchingRefSpecError{}).Is(err) && options.Hash != "" {
		// The branch/tag doesn't exist, but the hash might still be reachable.
		gogitOptions.ReferenceName = ""
		gogitOptions.NoCheckout = true
		gogitOptions.SingleBranch = false
		repository, err = gogit.PlainCloneContext(ctx, dir, false, gogitOptions)
	}
	if err != nil {
		return "", err
	}

	if options.Hash != "" {
		if err := checkoutHash(repository, options.Hash); err != nil {
			return "", err
		}
		return options.Hash, nil
	}
	head, err := repository.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

func checkoutHash(repository *gogit.Repository, hash string) error {
	h := plumbing.NewHash(hash)
	if _, err := repository.CommitObject(h); err != nil {
		return fmt.Errorf("commit %s not found: %w", hash, err)
	}
	w, err := repository.Worktree()
	if err != nil {
		return err
	}
	return w.Checkout(&gogit.CheckoutOptions{
		Hash:  h,
		Force: true,
	})
}

// Checkout moves the worktree at path to the given revision. The revision
// may be a hash, a branch or a tag.
func Checkout(path string, revision string) (string, error) {
	repository, err := gogit.PlainOpen(path)
	if err != nil {
		return "", err
	}
	h, err := repository.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("unknown revision '%s': %w", revision, err)
	}
	if err := checkoutHash(repository, h.String()); err != nil {
		return "", err
	}
	return h.String(), nil
}

// Head returns the hash of the checked out commit.
func Head(path string) (string, error) {
	repository, err := gogit.PlainOpen(path)
	if err != nil {
		return "", err
	}
	head, err := repository.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

type PullOptions struct {
	SSHPath string
}

func Pull(path string, options PullOptions) error {
	repository, err := gogit.PlainOpen(path)
	if err != nil {
		return err
	}
	wt, err := repository.Worktree()
	if err != nil {
		return err
	}

	pullOptions := &gogit.PullOptions{
		Force: true,
	}

	if options.SSHPath != "" {
		auth, err := ssh.NewPublicKeysFromFile("git", options.SSHPath, "")
		if err != nil {
			return err
		}
		pullOptions.Auth = auth
	}

	err = wt.Pull(pullOptions)
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}
