// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/indexer"
)

func TestParseSymbolsBasic(t *testing.T) {
	in := "0x1000 main\n0X2000 helper\n\n  0x3000   spaced_name  \n"
	out, err := indexer.ParseSymbols(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "main", out[0x1000])
	assert.Equal(t, "helper", out[0x2000])
	assert.Equal(t, "spaced_name", out[0x3000])
	assert.Len(t, out, 3)
}

func TestParseSymbolsSkipsUnrecognizedLines(t *testing.T) {
	in := "not a symbol line\n0x100\njunk 0xdead\n"
	out, err := indexer.ParseSymbols(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, out, 1)
	_, ok := out[0x100]
	assert.True(t, ok)
}

func TestParseSymbolsWithoutName(t *testing.T) {
	out, err := indexer.ParseSymbols(strings.NewReader("0xabc"))
	require.NoError(t, err)
	name, ok := out[0xabc]
	require.True(t, ok)
	assert.Equal(t, "", name)
}
