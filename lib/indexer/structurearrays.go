// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/containers"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// poiCache memoizes the by-offset POI lookups made while classifying
// structure members for a signature; a miss just falls back to the
// list's linear scan, so this changes nothing about correctness. The
// run-length search over candidate widths queries the list directly.
type poiCache struct {
	list  *poi.List
	cache *containers.LRUCache[uint64, *poi.POI]
}

func newPOICache(list *poi.List) *poiCache {
	return &poiCache{list: list, cache: containers.NewLRUCache[uint64, *poi.POI](4096)}
}

func (c *poiCache) find(offset uint64) *poi.POI {
	if v, ok := c.cache.Get(offset); ok {
		return v
	}
	v := c.list.Find(offset)
	c.cache.Add(offset, v)
	return v
}

// IndexStructureArrays tries, for each pointer-kind POI p, candidate
// structure widths of 2..MaxStructMembers pointer-sized members,
// counting how many successive same-typed pointer POIs appear at
// stride k*width starting from p.Offset. The longest run found (the
// narrowest width wins a tie; the run must have more than
// StructureArrayMinLen elements and at least 2 members)
// is recorded as a StructurePointer POI with a member-type signature,
// and the scan skips past the emitted span to avoid overlapping
// emissions.
func IndexStructureArrays(img []byte, arch binbuf.Arch, endian binbuf.Endianness, base uint64, list *poi.List) {
	size := uint64(arch.Size())
	cache := newPOICache(list)

	var ptrs []*poi.POI
	for p := list.Head(); p != nil; p = p.Next() {
		if p.Type.IsPointerKind() {
			ptrs = append(ptrs, p)
		}
	}

	// Structure arrays are collected apart from list, whose pointer
	// POIs already occupy the same offsets, and appended to it once
	// the scan is done.
	found := &poi.List{}
	var minOffset uint64
	for _, p := range ptrs {
		if p.Offset < minOffset {
			continue
		}

		var bestCount int
		var bestWidth uint64
		for members := 2; members <= MaxStructMembers; members++ {
			width := uint64(members) * size
			count := runLength(list, p.Offset, width, p.Type, len(img))
			if count > bestCount {
				bestCount = count
				bestWidth = width
			}
		}

		members := 0
		if bestWidth > 0 {
			members = int(bestWidth / size)
		}
		if bestCount <= StructureArrayMinLen || members < 2 {
			continue
		}

		signature := buildSignature(img, arch, endian, base, cache, p.Offset, size, members)
		if added := found.AddStructureArray(p.Offset, uint64(bestCount), members, signature); added != nil {
			minOffset = p.Offset + uint64(bestCount)*bestWidth
		}
	}
	for s := found.Head(); s != nil; {
		next := s.Next()
		list.Append(s)
		s = next
	}
}

func runLength(list *poi.List, start, width uint64, typ poi.Type, imgLen int) int {
	count := 0
	for k := uint64(0); ; k++ {
		headOffset := start + k*width
		if int(headOffset) >= imgLen {
			break
		}
		hp := list.FindType(headOffset, typ)
		if hp == nil {
			break
		}
		count++
	}
	return count
}

func buildSignature(img []byte, arch binbuf.Arch, endian binbuf.Endianness, base uint64, cache *poiCache, rowOffset, size uint64, members int) []poi.Type {
	sig := make([]poi.Type, members)
	for m := 0; m < members; m++ {
		memberOffset := rowOffset + uint64(m)*size
		v, err := binbuf.ReadPointer(img, int(memberOffset), arch, endian)
		if err != nil {
			sig[m] = poi.Unknown
			continue
		}
		sig[m] = classifyMember(v, base, uint64(len(img)), cache, memberOffset, size)
	}
	return sig
}

// classifyMember preserves the original tool's check order: a
// pointer-to-pointer or pointer-to-string classification is tried
// before falling back to "this offset is already a typed pointer POI"
// — so a member that is simultaneously a known typed pointer AND
// happens to point at another pointer is reported as POINTER_POINTER,
// not as its own typed-pointer kind.
func classifyMember(v, base, imgLen uint64, cache *poiCache, memberOffset, size uint64) poi.Type {
	if v != 0 && v >= base && v-base < imgLen {
		target := v - base
		if tp := cache.find(target); tp != nil {
			if tp.Type.IsPointerKind() {
				return poi.PointerPointer
			}
			if tp.Type == poi.String {
				return poi.StringPointer
			}
		}
	}
	if existing := cache.find(memberOffset); existing != nil && existing.Type.IsPointerKind() {
		return existing.Type
	}
	if v == 0 || isAllOnes(v, int(size)) {
		return poi.NullptrOrValue
	}
	return poi.Unknown
}
