// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// IndexPointerArrays walks the pointer-kind POIs in list (in offset
// order) and appends an ARRAY_POINTER POI for every run of more than
// PointerArrayMinLen POIs that are exactly one pointer-width apart and
// share the same type.
func IndexPointerArrays(list *poi.List, arch binbuf.Arch) {
	size := uint64(arch.Size())

	var ptrs []*poi.POI
	for p := list.Head(); p != nil; p = p.Next() {
		if p.Type.IsPointerKind() {
			ptrs = append(ptrs, p)
		}
	}

	var pending []*poi.POI
	flush := func() {
		if len(pending) > PointerArrayMinLen {
			list.Add(pending[0].Offset, uint64(len(pending)), poi.ArrayPointer)
		}
		pending = nil
	}

	for _, p := range ptrs {
		if len(pending) == 0 {
			pending = append(pending, p)
			continue
		}
		last := pending[len(pending)-1]
		if p.Offset == last.Offset+size && p.Type == last.Type {
			pending = append(pending, p)
			continue
		}
		flush()
		pending = append(pending, p)
	}
	flush()
}
