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
	"errors"
	"fmt"
	"strings"
)

// InvalidConfigurationError is raised by the validate stage when the
// selected settings and options are not supported.
// The identity is impossible and no build is attempted.
type InvalidConfigurationError struct {
	Message string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Message
}

// NewInvalidConfiguration creates an InvalidConfigurationError.
func NewInvalidConfiguration(format string, a ...interface{}) error {
	return &InvalidConfigurationError{Message: fmt.Sprintf(format, a...)}
}

// InvalidBuildError is raised by validate_build when this builder can't
// produce the binary. A cached binary may still be consumed.
type InvalidBuildError struct {
	Message string
}

func (e *InvalidBuildError) Error() string {
	return "invalid build: " + e.Message
}

// NewInvalidBuild creates an InvalidBuildError.
func NewInvalidBuild(format string, a ...interface{}) error {
	return &InvalidBuildError{Message: fmt.Sprintf(format, a...)}
}

// SourceIntegrityError signals a checksum mismatch of a fetched file.
type SourceIntegrityError struct {
	URL      string
	Expected string
	Actual   string
	// Signature is set when the detached signature, not the digest, failed.
	Signature error
}

func (e *SourceIntegrityError) Error() string {
	if e.Signature != nil {
		return fmt.Sprintf("signature verification of '%s' failed: %v", e.URL, e.Signature)
	}
	return fmt.Sprintf("checksum mismatch for '%s': expected %s, got %s", e.URL, e.Expected, e.Actual)
}

func (e *SourceIntegrityError) Unwrap() error {
	return e.Signature
}

// PatchError signals that a patch could not be applied.
type PatchError struct {
	Patch  string
	Output string
	Err    error
}

func (e *PatchError) Error() string {
	msg := fmt.Sprintf("failed to apply patch '%s'", e.Patch)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\n" + strings.TrimRight(e.Output, "\n")
	}
	return msg
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// ExternalToolError is a non-zero exit of an external program.
// The output is kept verbatim.
type ExternalToolError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("command '%s' failed with exit code %d", e.Command, e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\n" + strings.TrimRight(e.Output, "\n")
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// FrameworkError signals an unexpected internal state, like a missing
// conandata key or an unknown platform.
type FrameworkError struct {
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// NewFrameworkError creates a FrameworkError.
func NewFrameworkError(format string, a ...interface{}) error {
	return &FrameworkError{Message: fmt.Sprintf(format, a...)}
}

// WrapFrameworkError wraps err in a FrameworkError with the given message.
func WrapFrameworkError(err error, format string, a ...interface{}) error {
	return &FrameworkError{Message: fmt.Sprintf(format, a...), Err: err}
}

// ConflictError is returned by the graph expansion when two requirements of
// the same package resolve to different versions and none of them is forced.
type ConflictError struct {
	Name      string
	Existing  string
	Requested string
	Requirer  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict for '%s': '%s' requires '%s', but '%s' is already in the graph",
		e.Name, e.Requirer, e.Requested, e.Existing)
}

// LifecycleError attaches the recipe reference and the stage to an error
// raised by a handler.
type LifecycleError struct {
	Ref   string
	Stage Stage
	Err   error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Ref, e.Stage, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// Kind returns a short human readable name for the kind of err.
func Kind(err error) string {
	switch {
	case IsInvalidConfiguration(err):
		return "Invalid configuration"
	case IsInvalidBuild(err):
		return "Invalid build"
	case IsSourceIntegrity(err):
		return "Source integrity failure"
	case IsPatch(err):
		return "Patch failure"
	case IsExternalTool(err):
		return "External tool failure"
	case IsConflict(err):
		return "Version conflict"
	case IsFramework(err):
		return "Framework error"
	}
	return "Error"
}

func IsInvalidConfiguration(err error) bool {
	var e *InvalidConfigurationError
	return errors.As(err, &e)
}

func IsInvalidBuild(err error) bool {
	var e *InvalidBuildError
	return errors.As(err, &e)
}

func IsSourceIntegrity(err error) bool {
	var e *SourceIntegrityError
	return errors.As(err, &e)
}

func IsPatch(err error) bool {
	var e *PatchError
	return errors.As(err, &e)
}

func IsExternalTool(err error) bool {
	var e *ExternalToolError
	return errors.As(err, &e)
}

func IsFramework(err error) bool {
	var e *FrameworkError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
