// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/poi"
)

func TestIndexStringsFindsRunAtMinLength(t *testing.T) {
	img := append([]byte{0x00, 0x00}, []byte("ABCDEFGH")...) // exactly StrMinSize
	list := &poi.List{}
	indexer.IndexStrings(img, list)
	require.Equal(t, 1, list.Count())
	p := list.Head()
	assert.Equal(t, uint64(2), p.Offset)
	assert.Equal(t, uint64(8), p.Count)
	assert.Equal(t, poi.String, p.Type)
}

func TestIndexStringsSkipsShortRuns(t *testing.T) {
	img := []byte("ABC") // shorter than StrMinSize
	list := &poi.List{}
	indexer.IndexStrings(img, list)
	assert.Equal(t, 0, list.Count())
}

func TestIndexStringsFindsRunAtEndOfBuffer(t *testing.T) {
	img := append([]byte{0x00}, []byte("12345678")...)
	list := &poi.List{}
	indexer.IndexStrings(img, list)
	require.Equal(t, 1, list.Count())
	assert.Equal(t, uint64(1), list.Head().Offset)
}

func TestIndexStringsFindsMultipleRuns(t *testing.T) {
	img := append(append([]byte("AAAAAAAA"), 0x00), []byte("BBBBBBBB")...)
	list := &poi.List{}
	indexer.IndexStrings(img, list)
	assert.Equal(t, 2, list.Count())
}
