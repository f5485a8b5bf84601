// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer populates a poi.List with points of interest found
// by scanning a firmware image: strings, value arrays, pointers,
// pointer arrays, and structure arrays.
package indexer

// StrMinSize is the minimum length of a printable-byte run that is
// recorded as a STRING POI.
const StrMinSize = 8

// ArrayDelta is the maximum allowed difference between successive
// values for a value-array run to continue.
const ArrayDelta = 0x1000

// ArrayMinLen is the run length (in elements) that a value array must
// exceed to be recorded as an ARRAY POI.
const ArrayMinLen = 8

// PointerArrayMinLen is the run length that a sequence of like-typed,
// contiguously-spaced pointer POIs must exceed to be recorded as an
// ARRAY_POINTER POI.
const PointerArrayMinLen = 4

// MaxStructMembers bounds the candidate structure widths tried by the
// structure-array indexer.
const MaxStructMembers = 12

// StructureArrayMinLen is the run length (in elements) that a
// structure array must exceed to be recorded.
const StructureArrayMinLen = 3

// DefaultMemAlign is the default candidate memory alignment (the
// `-m` flag's default).
const DefaultMemAlign = 0x1000

func isPrintable(c byte) bool {
	return (c >= 0x20 && c <= 0x7e) || c == '\t'
}

func isAllOnes(v uint64, size int) bool {
	switch size {
	case 4:
		return uint32(v) == 0xffffffff
	default:
		return v == 0xffffffffffffffff
	}
}
