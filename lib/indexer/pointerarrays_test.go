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

func TestIndexPointerArraysFindsContiguousRun(t *testing.T) {
	list := &poi.List{}
	n := indexer.PointerArrayMinLen + 2
	for i := 0; i < n; i++ {
		list.Add(uint64(i*4), 1, poi.GenericPointer)
	}
	preExisting := list.Count()
	indexer.IndexPointerArrays(list, binbuf.Arch32)
	require.Equal(t, preExisting+1, list.Count())

	var found *poi.POI
	for i, p := 0, list.Head(); p != nil; p = p.Next() {
		if i >= preExisting {
			found = p
		}
		i++
	}
	require.NotNil(t, found)
	assert.Equal(t, poi.ArrayPointer, found.Type)
	assert.Equal(t, uint64(n), found.Count)
}

func TestIndexPointerArraysIgnoresNonContiguous(t *testing.T) {
	list := &poi.List{}
	list.Add(0, 1, poi.GenericPointer)
	list.Add(100, 1, poi.GenericPointer)
	list.Add(200, 1, poi.GenericPointer)
	before := list.Count()
	indexer.IndexPointerArrays(list, binbuf.Arch32)
	assert.Equal(t, before, list.Count())
}

func TestIndexPointerArraysRequiresSameType(t *testing.T) {
	list := &poi.List{}
	n := indexer.PointerArrayMinLen + 2
	for i := 0; i < n; i++ {
		typ := poi.GenericPointer
		if i == n/2 {
			typ = poi.FunctionPointer
		}
		list.Add(uint64(i*4), 1, typ)
	}
	before := list.Count()
	indexer.IndexPointerArrays(list, binbuf.Arch32)
	assert.Equal(t, before, list.Count()) // both halves fall below the minimum run length
}
