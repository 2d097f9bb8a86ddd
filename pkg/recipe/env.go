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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// EnvOpKind is the kind of an environment mutation.
type EnvOpKind int

const (
	EnvDefine EnvOpKind = iota
	EnvDefinePath
	EnvAppend
	EnvPrepend
	EnvAppendPath
	EnvPrependPath
	EnvUnset
)

func (k EnvOpKind) String() string {
	switch k {
	case EnvDefine:
		return "define"
	case EnvDefinePath:
		return "define_path"
	case EnvAppend:
		return "append"
	case EnvPrepend:
		return "prepend"
	case EnvAppendPath:
		return "append_path"
	case EnvPrependPath:
		return "prepend_path"
	case EnvUnset:
		return "unset"
	}
	return fmt.Sprintf("envop(%d)", int(k))
}

func (k EnvOpKind) isPath() bool {
	return k == EnvDefinePath || k == EnvAppendPath || k == EnvPrependPath
}

// EnvOp is a single typed mutation of an environment variable.
type EnvOp struct {
	Kind  EnvOpKind
	Name  string
	Value string
	// Separator for append and prepend. Path operations use the path list
	// separator of the target platform.
	Separator string
}

// EnvOverlay is an ordered log of environment mutations.
// Overlays are applied to a base environment, or rendered as scripts.
type EnvOverlay struct {
	ops []EnvOp
}

// NewEnvOverlay creates an empty overlay.
func NewEnvOverlay() *EnvOverlay {
	return &EnvOverlay{}
}

func (e *EnvOverlay) add(op EnvOp) {
	e.ops = append(e.ops, op)
}

// Define sets the variable, discarding any previous value.
func (e *EnvOverlay) Define(name string, value string) {
	e.add(EnvOp{Kind: EnvDefine, Name: name, Value: value})
}

// DefinePath sets the variable to a path.
func (e *EnvOverlay) DefinePath(name string, value string) {
	e.add(EnvOp{Kind: EnvDefinePath, Name: name, Value: value})
}

// Append appends the value, separated by sep (default " ").
func (e *EnvOverlay) Append(name string, value string, sep string) {
	if sep == "" {
		sep = " "
	}
	e.add(EnvOp{Kind: EnvAppend, Name: name, Value: value, Separator: sep})
}

// Prepend prepends the value, separated by sep (default " ").
func (e *EnvOverlay) Prepend(name string, value string, sep string) {
	if sep == "" {
		sep = " "
	}
	e.add(EnvOp{Kind: EnvPrepend, Name: name, Value: value, Separator: sep})
}

// AppendPath appends a path to a path list variable.
func (e *EnvOverlay) AppendPath(name string, value string) {
	e.add(EnvOp{Kind: EnvAppendPath, Name: name, Value: value})
}

// PrependPath prepends a path to a path list variable.
func (e *EnvOverlay) PrependPath(name string, value string) {
	e.add(EnvOp{Kind: EnvPrependPath, Name: name, Value: value})
}

// Unset removes the variable.
func (e *EnvOverlay) Unset(name string) {
	e.add(EnvOp{Kind: EnvUnset, Name: name})
}

// Ops returns the mutation log.
func (e *EnvOverlay) Ops() []EnvOp {
	if e == nil {
		return nil
	}
	return append([]EnvOp{}, e.ops...)
}

// IsEmpty returns whether the overlay has no mutations.
func (e *EnvOverlay) IsEmpty() bool {
	return e == nil || len(e.ops) == 0
}

// Compose concatenates overlays. Later overlays are applied after earlier
// ones, so callers pass them in dependency order.
func Compose(overlays ...*EnvOverlay) *EnvOverlay {
	result := NewEnvOverlay()
	for _, o := range overlays {
		if o == nil {
			continue
		}
		result.ops = append(result.ops, o.ops...)
	}
	return result
}

// Apply evaluates the overlay against the base environment.
// pathSep is the path list separator of the platform (":" or ";").
func (e *EnvOverlay) Apply(base map[string]string, pathSep string) map[string]string {
	result := map[string]string{}
	for k, v := range base {
		result[k] = v
	}
	if e == nil {
		return result
	}
	join := func(a, b, sep string) string {
		if a == "" {
			return b
		}
		if b == "" {
			return a
		}
		return a + sep + b
	}
	for _, op := range e.ops {
		sep := op.Separator
		if op.Kind.isPath() {
			sep = pathSep
		}
		switch op.Kind {
		case EnvDefine, EnvDefinePath:
			result[op.Name] = op.Value
		case EnvAppend, EnvAppendPath:
			result[op.Name] = join(result[op.Name], op.Value, sep)
		case EnvPrepend, EnvPrependPath:
			result[op.Name] = join(op.Value, result[op.Name], sep)
		case EnvUnset:
			delete(result, op.Name)
		}
	}
	return result
}

// Environ applies the overlay to a base of the form "KEY=value", as
// returned by os.Environ, and returns the same form, sorted.
func (e *EnvOverlay) Environ(base []string, pathSep string) []string {
	m := map[string]string{}
	for _, kv := range base {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	applied := e.Apply(m, pathSep)
	result := make([]string, 0, len(applied))
	for k, v := range applied {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// RenderSh writes a POSIX shell script that applies the overlay.
func (e *EnvOverlay) RenderSh(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "# Generated environment script."); err != nil {
		return err
	}
	for _, op := range e.Ops() {
		var line string
		value := shellescape.Quote(op.Value)
		switch op.Kind {
		case EnvDefine, EnvDefinePath:
			line = fmt.Sprintf("export %s=%s", op.Name, value)
		case EnvAppend:
			line = fmt.Sprintf("export %s=\"${%s:+$%s%s}\"%s", op.Name, op.Name, op.Name, op.Separator, value)
		case EnvPrepend:
			line = fmt.Sprintf("export %s=%s\"${%s:+%s$%s}\"", op.Name, value, op.Name, op.Separator, op.Name)
		case EnvAppendPath:
			line = fmt.Sprintf("export %s=\"${%s:+$%s:}\"%s", op.Name, op.Name, op.Name, value)
		case EnvPrependPath:
			line = fmt.Sprintf("export %s=%s\"${%s:+:$%s}\"", op.Name, value, op.Name, op.Name)
		case EnvUnset:
			line = fmt.Sprintf("unset %s", op.Name)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderBat writes a Windows batch file that applies the overlay.
func (e *EnvOverlay) RenderBat(w io.Writer) error {
	if _, err := fmt.Fprint(w, "@echo off\r\nrem Generated environment script.\r\n"); err != nil {
		return err
	}
	for _, op := range e.Ops() {
		var line string
		switch op.Kind {
		case EnvDefine, EnvDefinePath:
			line = fmt.Sprintf("set \"%s=%s\"", op.Name, op.Value)
		case EnvAppend:
			line = fmt.Sprintf("set \"%s=%%%s%%%s%s\"", op.Name, op.Name, op.Separator, op.Value)
		case EnvPrepend:
			line = fmt.Sprintf("set \"%s=%s%s%%%s%%\"", op.Name, op.Value, op.Separator, op.Name)
		case EnvAppendPath:
			line = fmt.Sprintf("set \"%s=%%%s%%;%s\"", op.Name, op.Name, op.Value)
		case EnvPrependPath:
			line = fmt.Sprintf("set \"%s=%s;%%%s%%\"", op.Name, op.Value, op.Name)
		case EnvUnset:
			line = fmt.Sprintf("set %s=", op.Name)
		}
		if _, err := fmt.Fprint(w, line+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}
