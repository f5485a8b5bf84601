// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package uds locates a UDS (ISO 14229 unified diagnostic services)
// request-ID table among the structure arrays already identified by
// the indexer, and renders a synthesized Go-style declaration of the
// winning structure.
package uds

import (
	"fmt"
	"strings"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/containers"
	"github.com/binbloom-go/binbloom/lib/poi"
)

// IsValidRID reports whether v is one of the 26 single-byte UDS
// service/request identifiers this tool recognizes.
func IsValidRID(v byte) bool {
	switch {
	case v == 0x10, v == 0x11, v == 0x14, v == 0x19:
		return true
	case v >= 0x27 && v <= 0x29:
		return true
	case v == 0x3E:
		return true
	case v >= 0x83 && v <= 0x87:
		return true
	case v >= 0x22 && v <= 0x24:
		return true
	case v == 0x2A, v == 0x2C, v == 0x2E, v == 0x2F, v == 0x31:
		return true
	case v >= 0x34 && v <= 0x38:
		return true
	default:
		return false
	}
}

// Finding is a candidate UDS table location: a byte column within a
// STRUCTURE_POINTER POI's repeating element, and the run of rows
// (array elements) starting at StartRow in which that column held
// Count distinct, non-repeating valid RIDs.
type Finding struct {
	Struct     *poi.POI
	ByteColumn int
	StartRow   int
	Count      int
}

// Address returns the absolute address of Finding's first byte.
func (f Finding) Address(arch binbuf.Arch, base uint64) uint64 {
	rowWidth := uint64(f.Struct.NBMembers) * uint64(arch.Size())
	return base + f.Struct.Offset + uint64(f.ByteColumn) + uint64(f.StartRow)*rowWidth
}

// Locate scans every STRUCTURE_POINTER POI in list, column by column,
// for the longest run of array elements whose byte at that column is a
// valid, non-repeating UDS RID, and returns the best one found.
//
// "Non-repeating" means a run ends as soon as a RID already seen
// earlier in the run recurs — the table is assumed to hold each RID at
// most once, so a repeat marks either the end of the real table or a
// coincidental match. The repeated byte is not part of any run; a new
// run can begin at the next row holding a valid RID.
func Locate(img []byte, arch binbuf.Arch, list *poi.List) containers.Optional[Finding] {
	var best Finding
	found := false

	for p := list.Head(); p != nil; p = p.Next() {
		if p.Type != poi.StructurePointer || p.NBMembers == 0 {
			continue
		}
		rowWidth := uint64(p.NBMembers) * uint64(arch.Size())

		for col := uint64(0); col < rowWidth; col++ {
			var seen [256]bool
			inSeq := false
			count := 0
			start := uint64(0)

			consider := func() {
				if count > best.Count {
					best = Finding{Struct: p, ByteColumn: int(col), StartRow: int(start), Count: count}
					found = true
				}
			}

			for row := uint64(0); ; row++ {
				off := p.Offset + row*rowWidth + col
				if int(off) >= len(img) {
					break
				}
				b := img[off]
				switch {
				case !IsValidRID(b):
					inSeq = false
					consider()
				case !inSeq:
					seen = [256]bool{}
					seen[b] = true
					inSeq = true
					start = row
					count = 1
				case !seen[b]:
					seen[b] = true
					count++
				default:
					inSeq = false
					consider()
				}
			}
			// A run reaching the end of the array is never closed
			// by an invalid byte or a repeat, so it must be
			// checked once more after the scan — the original
			// tool's column scan omits this, silently dropping a
			// table that happens to end exactly at the last
			// element.
			consider()
		}
	}

	return containers.Optional[Finding]{OK: found, Val: best}
}

// fieldCType names the synthesized Go-style field type for a member
// classification, mirroring the original tool's C struct declaration
// dump.
func fieldCType(t poi.Type, arch binbuf.Arch) string {
	switch t {
	case poi.String, poi.StringPointer:
		return "string"
	case poi.PointerPointer, poi.StructurePointer, poi.GenericPointer:
		return "unsafe.Pointer"
	case poi.FunctionPointer:
		return "uintptr /* code */"
	case poi.DataPointer, poi.UninitDataPointer:
		return "unsafe.Pointer /* data */"
	default:
		if arch == binbuf.Arch32 {
			return "uint32"
		}
		return "uint64"
	}
}

// Declare renders a synthesized struct declaration for p's member
// signature, in the same spirit as the original tool's field dump.
func Declare(p *poi.POI, arch binbuf.Arch) string {
	var b strings.Builder
	b.WriteString("struct {\n")
	for i, t := range p.Signature {
		fmt.Fprintf(&b, "\t%s Field%d\n", fieldCType(t, arch), i)
	}
	b.WriteString("}")
	return b.String()
}
