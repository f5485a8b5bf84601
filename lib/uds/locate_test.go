// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package uds_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/poi"
	"github.com/binbloom-go/binbloom/lib/uds"
)

func TestIsValidRID(t *testing.T) {
	valid := []byte{0x10, 0x11, 0x14, 0x19, 0x27, 0x28, 0x29, 0x3E, 0x83, 0x87, 0x22, 0x2A, 0x31, 0x34, 0x38}
	for _, v := range valid {
		assert.Truef(t, uds.IsValidRID(v), "expected %#x to be a valid RID", v)
	}
	invalid := []byte{0x00, 0x01, 0x12, 0x20, 0x30, 0xFF}
	for _, v := range invalid {
		assert.Falsef(t, uds.IsValidRID(v), "expected %#x to not be a valid RID", v)
	}
}

// TestLocateStopsRunOnRepeat builds a 4-row structure array whose first
// column holds three distinct valid RIDs followed by a repeat of the
// first one, and checks that the repeat both ends and is excluded from
// the winning run.
func TestLocateStopsRunOnRepeat(t *testing.T) {
	const rowWidth = 8 // NBMembers=2 * Arch32 size(4)
	img := make([]byte, 4*rowWidth)
	img[0*rowWidth] = 0x10
	img[1*rowWidth] = 0x11
	img[2*rowWidth] = 0x14
	img[3*rowWidth] = 0x10 // repeats row 0's RID

	p := &poi.POI{Type: poi.StructurePointer, NBMembers: 2, Offset: 0}
	list := &poi.List{}
	list.Append(p)

	result := uds.Locate(img, binbuf.Arch32, list)
	require.True(t, result.OK)
	assert.Equal(t, 0, result.Val.ByteColumn)
	assert.Equal(t, 0, result.Val.StartRow)
	assert.Equal(t, 3, result.Val.Count)
	assert.Equal(t, uint64(0x1000), result.Val.Address(binbuf.Arch32, 0x1000))
}

// TestLocateChecksFinalRunAfterArrayEnds exercises the deliberate fix
// over the original tool: a run of valid, non-repeating RIDs that
// reaches the very last row of the array (so it's never closed by an
// invalid byte or a repeat) must still be considered.
func TestLocateChecksFinalRunAfterArrayEnds(t *testing.T) {
	const rowWidth = 4 // NBMembers=1 * Arch32 size(4)
	img := make([]byte, 3*rowWidth)
	img[0*rowWidth] = 0x10
	img[1*rowWidth] = 0x27
	img[2*rowWidth] = 0x29

	p := &poi.POI{Type: poi.StructurePointer, NBMembers: 1, Offset: 0}
	list := &poi.List{}
	list.Append(p)

	result := uds.Locate(img, binbuf.Arch32, list)
	require.True(t, result.OK)
	assert.Equal(t, 0, result.Val.StartRow)
	assert.Equal(t, 3, result.Val.Count)
}

func TestLocateNoStructurePointersFindsNothing(t *testing.T) {
	result := uds.Locate(make([]byte, 32), binbuf.Arch32, &poi.List{})
	assert.False(t, result.OK)
}

func TestDeclareRendersMemberSignature(t *testing.T) {
	p := &poi.POI{Signature: []poi.Type{poi.String, poi.GenericPointer, poi.FunctionPointer}}
	out := uds.Declare(p, binbuf.Arch32)
	assert.Contains(t, out, "string Field0")
	assert.Contains(t, out, "unsafe.Pointer Field1")
	assert.Contains(t, out, "uintptr /* code */ Field2")
}
