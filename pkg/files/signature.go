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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/toitlang/trecipe/pkg/recipe"
)

// Signatures are small. Anything bigger is not a detached signature.
const maxSignatureSize = 64 * 1024

const armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE-----"

// ReadKeyRing reads an armored or binary OpenPGP key ring.
func ReadKeyRing(p string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read key ring '%s': %w", p, err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys in '%s'", p)
	}
	return entities, nil
}

// VerifyDetachedSignature checks the signature of the file at p.
func VerifyDetachedSignature(keyring openpgp.KeyRing, p string, signature []byte) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if bytes.HasPrefix(bytes.TrimSpace(signature), []byte(armoredSignaturePrefix)) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, bytes.NewReader(signature), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, f, bytes.NewReader(signature), nil)
	}
	return err
}

func verifySignature(ctx context.Context, c *recipe.Conanfile, p string, opts DownloadOptions) error {
	if opts.SignatureURL == "" {
		return nil
	}
	keysPath := c.Conf.GetString(ConfTrustedKeys, "")
	if keysPath == "" {
		c.UI.ReportWarning("No trusted keys configured (%s), not verifying %s", ConfTrustedKeys, opts.SignatureURL)
		return nil
	}
	keyring, err := ReadKeyRing(keysPath)
	if err != nil {
		return recipe.WrapFrameworkError(err, "%s: signature check", c.Ref)
	}
	signature, err := fetchSignature(ctx, opts)
	if err != nil {
		return recipe.WrapFrameworkError(err, "%s: signature check", c.Ref)
	}
	if err := VerifyDetachedSignature(keyring, p, signature); err != nil {
		return &recipe.SourceIntegrityError{URL: opts.SignatureURL, Signature: err}
	}
	return nil
}

func fetchSignature(ctx context.Context, opts DownloadOptions) ([]byte, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.SignatureURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of '%s' failed with status %d", opts.SignatureURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSignatureSize))
}
