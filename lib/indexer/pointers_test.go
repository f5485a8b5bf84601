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
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// buildImage lays out a small image: [0,16) is CODE, [16,32) is
// INIT_DATA, [32,48) is UNINIT_DATA and [48,64) is UNKNOWN, with
// pointers at offsets 0, 4 and 8 into the CODE, INIT_DATA and
// UNINIT_DATA regions, plus one at offset 12 whose target lies past
// the end of the image. The UNINIT_DATA and out-of-image targets are
// both expected to be rejected by the pointer indexer.
func buildImage(t *testing.T, base uint64) ([]byte, *memregion.Table) {
	t.Helper()
	img := make([]byte, 64)
	put := func(off int, v uint64) {
		img[off] = byte(v)
		img[off+1] = byte(v >> 8)
		img[off+2] = byte(v >> 16)
		img[off+3] = byte(v >> 24)
	}
	put(0, base+4)  // -> CODE target
	put(4, base+20) // -> INIT_DATA target
	put(8, base+36) // -> UNINIT_DATA target
	put(12, base+1000)

	regions := []memregion.Region{
		{Offset: 0, Size: 16, Kind: memregion.Code},
		{Offset: 16, Size: 16, Kind: memregion.InitData},
		{Offset: 32, Size: 16, Kind: memregion.UninitData},
		{Offset: 48, Size: 16, Kind: memregion.Unknown},
	}
	return img, memregion.NewTable(regions)
}

func TestIndexPointersClassifiesByRegion(t *testing.T) {
	base := uint64(0x8000)
	img, table := buildImage(t, base)
	list := &poi.List{}
	n := indexer.IndexPointers(img, binbuf.Arch32, binbuf.EndianLE, base, table, nil, list)
	require.Equal(t, 2, n) // the UNINIT_DATA target (offset 8) and the out-of-range pointer (offset 12) are both rejected
	assert.NotNil(t, list.FindType(0, poi.FunctionPointer))
	assert.NotNil(t, list.FindType(4, poi.GenericPointer))
	assert.Nil(t, list.Find(8))
	assert.Nil(t, list.Find(12))
}

func TestIndexPointersKnownSymbolWinsOverRegion(t *testing.T) {
	base := uint64(0x8000)
	img, table := buildImage(t, base)
	symbols := map[uint64]string{20: "init_fn"} // target of offset 4, normally INIT_DATA
	list := &poi.List{}
	indexer.IndexPointers(img, binbuf.Arch32, binbuf.EndianLE, base, table, symbols, list)
	assert.NotNil(t, list.FindType(4, poi.FunctionPointer))
}

func TestCountPointersAgreesWithIndexPointers(t *testing.T) {
	base := uint64(0x8000)
	img, table := buildImage(t, base)
	list := &poi.List{}
	n := indexer.IndexPointers(img, binbuf.Arch32, binbuf.EndianLE, base, table, nil, list)

	count, scratch := indexer.CountPointers(img, binbuf.Arch32, binbuf.EndianLE, base, table, nil, nil)
	assert.Equal(t, n, count)
	assert.Len(t, scratch, count)
}

func TestCountPointersReusesScratchBuffer(t *testing.T) {
	base := uint64(0x8000)
	img, table := buildImage(t, base)
	buf := make([]uint64, 0, 64)
	_, scratch := indexer.CountPointers(img, binbuf.Arch32, binbuf.EndianLE, base, table, nil, buf)
	assert.True(t, cap(scratch) >= cap(buf))
}
