// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/poi"
)

func le32img(values ...uint32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func TestIndexArraysFindsRunOfCloseValues(t *testing.T) {
	values := make([]uint32, indexer.ArrayMinLen+2)
	for i := range values {
		values[i] = uint32(0x1000 + i*0x10)
	}
	img := le32img(values...)
	list := &poi.List{}
	indexer.IndexArrays(img, binbuf.Arch32, binbuf.EndianLE, list)
	require.Equal(t, 1, list.Count())
	assert.Equal(t, poi.Array, list.Head().Type)
	assert.Equal(t, uint64(len(values)), list.Head().Count)
}

func TestIndexArraysSkipsShortRuns(t *testing.T) {
	img := le32img(0x1000, 0x1010, 0x1020)
	list := &poi.List{}
	indexer.IndexArrays(img, binbuf.Arch32, binbuf.EndianLE, list)
	assert.Equal(t, 0, list.Count())
}

func TestIndexArraysBreaksOnLargeJump(t *testing.T) {
	values := make([]uint32, indexer.ArrayMinLen+2)
	for i := range values {
		values[i] = uint32(0x1000 + i*0x10)
	}
	values[len(values)/2] = 0x7fffffff // breaks the run
	img := le32img(values...)
	list := &poi.List{}
	indexer.IndexArrays(img, binbuf.Arch32, binbuf.EndianLE, list)
	for p := list.Head(); p != nil; p = p.Next() {
		assert.Less(t, p.Count, uint64(len(values)))
	}
}

func TestIndexArraysSkipsZeroAndAllOnes(t *testing.T) {
	img := le32img(0, 0xffffffff, 0, 0xffffffff)
	list := &poi.List{}
	indexer.IndexArrays(img, binbuf.Arch32, binbuf.EndianLE, list)
	assert.Equal(t, 0, list.Count())
}
