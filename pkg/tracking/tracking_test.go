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

package tracking

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Printer(t *testing.T) {
	var out bytes.Buffer
	track := NewPrinter(&out)
	require.NoError(t, track(context.Background(), &Event{
		Name: "trecipe create",
		Properties: map[string]string{
			"ref":    "eigen/3.4.0",
			"policy": "missing",
		},
	}))
	assert.Equal(t, "Name: trecipe create\nProperties:\n  policy: missing\n  ref: eigen/3.4.0\n", out.String())

	out.Reset()
	require.NoError(t, track(context.Background(), &Event{Name: "trecipe index list"}))
	assert.Equal(t, "Name: trecipe index list\n\n", out.String())

	assert.NoError(t, Nop(context.Background(), &Event{Name: "x"}))
}
