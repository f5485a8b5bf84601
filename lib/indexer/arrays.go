// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// IndexArrays walks img in pointer-size strides, tracking runs of
// values that stay within ArrayDelta of their predecessor, and
// appends an ARRAY POI to list for every run of more than
// ArrayMinLen elements.
func IndexArrays(img []byte, arch binbuf.Arch, endian binbuf.Endianness, list *poi.List) {
	size := arch.Size()
	runStart := -1
	var prev uint64
	count := 0

	flush := func() {
		if runStart >= 0 && count > ArrayMinLen {
			list.Add(uint64(runStart), uint64(count), poi.Array)
		}
		runStart = -1
		count = 0
	}

	for off := 0; off+size <= len(img); off += size {
		v, err := binbuf.ReadPointer(img, off, arch, endian)
		if err != nil {
			break
		}
		inArray := runStart >= 0
		if !inArray {
			if v != 0 && !isAllOnes(v, size) {
				runStart = off
				count = 1
				prev = v
			}
			continue
		}
		delta := int64(v) - int64(prev)
		if delta < 0 {
			delta = -delta
		}
		if delta <= ArrayDelta {
			count++
			prev = v
			continue
		}
		flush()
		if v != 0 && !isAllOnes(v, size) {
			runStart = off
			count = 1
			prev = v
		}
	}
	flush()
}
