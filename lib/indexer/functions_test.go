// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
)

func TestIndexFunctionsUsesSymbolsWhenPresent(t *testing.T) {
	img := make([]byte, 64)
	table := memregion.NewTable([]memregion.Region{{Offset: 0, Size: 64, Kind: memregion.Code}})
	symbols := map[uint64]string{0x10: "foo", 0x20: "bar"}
	list := &poi.List{}
	indexer.IndexFunctions(img, binbuf.Arch32, table, symbols, list)
	assert.Equal(t, 2, list.Count())
	assert.NotNil(t, list.FindType(0x10, poi.Function))
	assert.NotNil(t, list.FindType(0x20, poi.Function))
}

func TestIndexFunctionsFallsBackToCodeRegions(t *testing.T) {
	img := make([]byte, 16)
	table := memregion.NewTable([]memregion.Region{{Offset: 0, Size: 16, Kind: memregion.Code}})
	list := &poi.List{}
	indexer.IndexFunctions(img, binbuf.Arch32, table, nil, list)
	assert.Equal(t, 4, list.Count()) // 16 bytes / 4-byte stride
}

func TestIndexFunctionsSkipsNonCodeRegions(t *testing.T) {
	img := make([]byte, 16)
	table := memregion.NewTable([]memregion.Region{{Offset: 0, Size: 16, Kind: memregion.InitData}})
	list := &poi.List{}
	indexer.IndexFunctions(img, binbuf.Arch32, table, nil, list)
	assert.Equal(t, 0, list.Count())
}
