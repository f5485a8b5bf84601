// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// IndexFunctions records FUNCTION POIs used by the base-address
// candidate generator's fallback pairing mode (used when no STRING
// POI was found).
//
// When symbols is non-empty, every symbol offset becomes a FUNCTION
// POI directly. Otherwise, every pointer-size-aligned offset inside a
// CODE region is treated as a plausible function entry — the
// generator only reaches this path when no strings exist to pair
// against, so a coarse code-region-based fallback is enough to give
// it *something* to vote on.
func IndexFunctions(img []byte, arch binbuf.Arch, regions *memregion.Table, symbols map[uint64]string, list *poi.List) {
	if len(symbols) > 0 {
		for offset := range symbols {
			if int(offset) >= 0 && int(offset) < len(img) {
				list.AddUnique(offset, 1, poi.Function)
			}
		}
		return
	}

	size := uint64(arch.Size())
	for _, r := range regions.Regions() {
		if r.Kind != memregion.Code {
			continue
		}
		for off := r.Offset; off+size <= r.Offset+r.Size; off += size {
			list.AddUnique(off, 1, poi.Function)
		}
	}
}
