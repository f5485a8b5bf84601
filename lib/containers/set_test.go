// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/containers"
)

func TestSetInsertHasDelete(t *testing.T) {
	s := containers.NewSet(1, 2, 3)
	assert.True(t, s.Has(2))
	s.Delete(2)
	assert.False(t, s.Has(2))
	assert.Equal(t, 2, len(s))
}

func TestSetHasAnyAndIntersection(t *testing.T) {
	a := containers.NewSet("x", "y")
	b := containers.NewSet("y", "z")
	assert.True(t, a.HasAny(b))
	assert.Equal(t, containers.NewSet("y"), a.Intersection(b))
}

// TestSetEncodeJSONRoundTrips exercises the int branch of
// EncodeJSON's type switch (sorting the set's members before encoding
// rather than relying on random map iteration order) and confirms
// DecodeJSON recovers the same set.
func TestSetEncodeJSONRoundTrips(t *testing.T) {
	s := containers.NewSet(3, 1, 2)
	var buf bytes.Buffer
	require.NoError(t, s.EncodeJSON(&buf))

	var out containers.Set[int]
	require.NoError(t, out.DecodeJSON(bufio.NewReader(&buf)))
	assert.Equal(t, s, out)
}
