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

// Package tracking defines the usage events reported by the commands.
package tracking

import (
	"context"
	"io"
	"text/template"
)

// Event is a named usage event.
type Event struct {
	Name       string
	Properties map[string]string
}

// Track reports an event.
type Track func(ctx context.Context, e *Event) error

// Nop drops all events.
func Nop(ctx context.Context, e *Event) error {
	return nil
}

var eventTemplate = template.Must(template.New("tracking").Parse(`Name: {{.Name}}
{{if .Properties }}Properties:{{ range $field, $value := .Properties }}
  {{$field}}: {{$value}}{{end}}{{end}}
`))

// NewPrinter returns a Track that writes the events to w.
// Properties are printed in sorted order.
func NewPrinter(w io.Writer) Track {
	return func(ctx context.Context, e *Event) error {
		return eventTemplate.Execute(w, e)
	}
}
