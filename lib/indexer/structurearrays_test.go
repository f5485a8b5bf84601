// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/poi"
)

func TestIndexStructureArraysFindsRepeatingRowWidth(t *testing.T) {
	img := make([]byte, 64)
	list := &poi.List{}
	// Four rows of a 3-member (12-byte) structure, one GenericPointer
	// POI marking the head of each row.
	for _, off := range []uint64{0, 12, 24, 36} {
		list.Add(off, 1, poi.GenericPointer)
	}

	indexer.IndexStructureArrays(img, binbuf.Arch32, binbuf.EndianLE, 0, list)

	found := list.FindType(0, poi.StructurePointer)
	require.NotNil(t, found)
	assert.Equal(t, 3, found.NBMembers)
	assert.Equal(t, uint64(4), found.Count)
	assert.Len(t, found.Signature, 3)
}

func TestIndexStructureArraysIgnoresShortRuns(t *testing.T) {
	img := make([]byte, 64)
	list := &poi.List{}
	list.Add(0, 1, poi.GenericPointer)
	list.Add(12, 1, poi.GenericPointer)

	indexer.IndexStructureArrays(img, binbuf.Arch32, binbuf.EndianLE, 0, list)
	assert.Nil(t, list.FindType(0, poi.StructurePointer))
}
