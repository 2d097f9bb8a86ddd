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
	"log/slog"
)

type UI interface {
	// ReportError signals an error to the user.
	// The format string is currently compatible with fmt.Printf.
	// Returns ErrAlreadyReported.
	ReportError(format string, a ...interface{}) error

	// ReportWarning signals a warning to the user.
	// The format string is currently compatible with fmt.Printf.
	ReportWarning(format string, a ...interface{})

	// ReportInfo reports interesting information.
	ReportInfo(format string, a ...interface{})
}

type fmtUI struct{}

func (ui fmtUI) ReportError(format string, a ...interface{}) error {
	fmt.Printf("Error: "+format+"\n", a...)
	return ErrAlreadyReported
}

func (ui fmtUI) ReportWarning(format string, a ...interface{}) {
	fmt.Printf("Warning: "+format+"\n", a...)
}

func (ui fmtUI) ReportInfo(format string, a ...interface{}) {
	fmt.Printf("Info: "+format+"\n", a...)
}

type nullUI struct{}

func (ui nullUI) ReportError(format string, a ...interface{}) error {
	return ErrAlreadyReported
}

func (ui nullUI) ReportWarning(format string, a ...interface{}) {
}

func (ui nullUI) ReportInfo(format string, a ...interface{}) {
}

// logUI forwards all messages to a structured logger.
type logUI struct {
	logger *slog.Logger
}

// NewLogUI returns a UI that reports through the given logger.
// A nil logger uses slog.Default().
func NewLogUI(logger *slog.Logger) UI {
	if logger == nil {
		logger = slog.Default()
	}
	return logUI{logger: logger}
}

func (ui logUI) ReportError(format string, a ...interface{}) error {
	ui.logger.Log(context.Background(), slog.LevelError, fmt.Sprintf(format, a...))
	return ErrAlreadyReported
}

func (ui logUI) ReportWarning(format string, a ...interface{}) {
	ui.logger.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, a...))
}

func (ui logUI) ReportInfo(format string, a ...interface{}) {
	ui.logger.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, a...))
}

// scopedUI prefixes every message with the reference of the recipe that
// emits it.
type scopedUI struct {
	prefix string
	ui     UI
}

// ScopedUI returns a UI that prefixes all messages with the given scope,
// for example a recipe reference.
func ScopedUI(scope string, ui UI) UI {
	if ui == nil {
		ui = NullUI
	}
	return scopedUI{prefix: scope + ": ", ui: ui}
}

func (s scopedUI) ReportError(format string, a ...interface{}) error {
	return s.ui.ReportError(s.prefix+format, a...)
}

func (s scopedUI) ReportWarning(format string, a ...interface{}) {
	s.ui.ReportWarning(s.prefix+format, a...)
}

func (s scopedUI) ReportInfo(format string, a ...interface{}) {
	s.ui.ReportInfo(s.prefix+format, a...)
}

var (
	// ErrAlreadyReported can be used to signal that an error has
	// been reported, and that no further action needs to be taken.
	// In case the error gets printed anyway, we have a sensible error message
	// instead of "already reported" or similar.
	ErrAlreadyReported = fmt.Errorf("recipe error")

	// FmtUI is simple version of UI that uses 'fmt' to report warnings and errors.
	FmtUI UI = fmtUI{}

	// NullUI drops all messages.
	NullUI UI = nullUI{}
)

func IsErrAlreadyReported(e error) bool {
	return e == ErrAlreadyReported
}
