// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// IndexPointers walks img in pointer-size strides and appends a
// pointer-kind POI to list for every value that looks like a valid
// intra-image pointer under base.
//
// A value v qualifies iff base <= v < base+len(img) and v != 0.
// Unless symbols names v-base as a known function offset (in which
// case it is classified FUNCTION_POINTER unconditionally), the POI
// type follows the region covering offset (v-base): CODE yields
// FUNCTION_POINTER and INIT_DATA yields GENERIC_POINTER; a target
// falling in UNINIT_DATA or no known region at all is rejected.
//
// It returns the number of pointer POIs appended, used by the
// refiner's pointer-density score.
func IndexPointers(img []byte, arch binbuf.Arch, endian binbuf.Endianness, base uint64, regions *memregion.Table, symbols map[uint64]string, list *poi.List) int {
	size := arch.Size()
	n := uint64(len(img))
	count := 0

	for off := 0; off+size <= len(img); off += size {
		v, err := binbuf.ReadPointer(img, off, arch, endian)
		if err != nil {
			break
		}
		if v == 0 || v < base || v-base >= n {
			continue
		}
		target := v - base

		if _, known := symbols[target]; known {
			list.Add(uint64(off), 1, poi.FunctionPointer)
			count++
			continue
		}

		switch regions.TypeAt(target) {
		case memregion.Code:
			list.Add(uint64(off), 1, poi.FunctionPointer)
			count++
		case memregion.InitData:
			list.Add(uint64(off), 1, poi.GenericPointer)
			count++
		default:
			// UNINIT_DATA and UNKNOWN targets are rejected.
		}
	}
	return count
}

// CountPointers re-runs the same classification as IndexPointers, but
// only counts matches instead of allocating a POI per hit — this is
// the pointer-density re-scan the candidate refiner performs at every
// trial base, where only the count is needed and the outer POI list
// must not be touched. buf is truncated to length 0 and reused as the
// backing array of the returned scratch slice, which holds the target
// offset of every counted pointer, so that repeated calls across
// refinement workers don't each allocate their own scratch array.
func CountPointers(img []byte, arch binbuf.Arch, endian binbuf.Endianness, base uint64, regions *memregion.Table, symbols map[uint64]string, buf []uint64) (count int, scratch []uint64) {
	size := arch.Size()
	n := uint64(len(img))
	scratch = buf[:0]

	for off := 0; off+size <= len(img); off += size {
		v, err := binbuf.ReadPointer(img, off, arch, endian)
		if err != nil {
			break
		}
		if v == 0 || v < base || v-base >= n {
			continue
		}
		target := v - base

		if _, known := symbols[target]; known {
			count++
			scratch = append(scratch, target)
			continue
		}
		switch regions.TypeAt(target) {
		case memregion.Code, memregion.InitData:
			count++
			scratch = append(scratch, target)
		}
	}
	return count, scratch
}
