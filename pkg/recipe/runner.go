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
	"errors"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

// QuoteCommand renders the arguments so they can be pasted into a shell.
func QuoteCommand(args []string) string {
	quoted := []string{}
	for _, arg := range args {
		quoted = append(quoted, shellescape.Quote(arg))
	}
	return strings.Join(quoted, " ")
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	UI UI
	// Verbose reports every command before it runs.
	Verbose bool
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", NewFrameworkError("empty command")
	}
	if r.Verbose && r.UI != nil {
		r.UI.ReportInfo("Running (in %s): %s", cmd.Dir, QuoteCommand(cmd.Args))
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	out, err := c.CombinedOutput()
	if err != nil {
		exitCode := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return string(out), &ExternalToolError{
			Command:  QuoteCommand(cmd.Args),
			ExitCode: exitCode,
			Output:   string(out),
			Err:      err,
		}
	}
	return string(out), nil
}
