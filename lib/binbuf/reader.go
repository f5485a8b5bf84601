// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binbuf reads fixed-width integer values out of an
// in-memory firmware image at arbitrary byte offsets, under a
// caller-chosen architecture and endianness.
package binbuf

import (
	"fmt"

	"github.com/binbloom-go/binbloom/lib/binstruct"
)

// Arch is the native pointer width of the firmware's target.
type Arch int

const (
	Arch32 Arch = 32
	Arch64 Arch = 64
)

// Size returns the pointer width, in bytes, for the architecture.
func (a Arch) Size() int {
	if a == Arch64 {
		return 8
	}
	return 4
}

func (a Arch) String() string {
	switch a {
	case Arch32:
		return "32-bit"
	case Arch64:
		return "64-bit"
	default:
		return fmt.Sprintf("Arch(%d)", int(a))
	}
}

// Endianness is the byte order used to interpret multi-byte values.
type Endianness int

const (
	EndianUnknown Endianness = iota
	EndianLE
	EndianBE
)

func (e Endianness) String() string {
	switch e {
	case EndianLE:
		return "LE"
	case EndianBE:
		return "BE"
	default:
		return "unknown"
	}
}

// ReadPointer reads a pointer-width value from b at offset, under
// the given architecture and endianness.  It returns an error if the
// read would run past the end of b.
func ReadPointer(b []byte, offset int, arch Arch, endian Endianness) (uint64, error) {
	size := arch.Size()
	if offset < 0 || offset+size > len(b) {
		return 0, fmt.Errorf("binbuf: read of %d bytes at offset %d out of bounds (len=%d)", size, offset, len(b))
	}
	return readAt(b[offset:offset+size], endian), nil
}

// MustReadPointer is like ReadPointer, but for call sites that have
// already bound-checked offset; it returns 0
// for an out-of-bounds read instead of panicking, since callers treat
// 0 as "no value" uniformly.
func MustReadPointer(b []byte, offset int, arch Arch, endian Endianness) uint64 {
	v, err := ReadPointer(b, offset, arch, endian)
	if err != nil {
		return 0
	}
	return v
}

func readAt(b []byte, endian Endianness) uint64 {
	switch len(b) {
	case 4:
		var v binstruct.U32le
		if endian == EndianBE {
			var vbe binstruct.U32be
			_, _ = vbe.UnmarshalBinary(b)
			return uint64(vbe)
		}
		_, _ = v.UnmarshalBinary(b)
		return uint64(v)
	case 8:
		var v binstruct.U64le
		if endian == EndianBE {
			var vbe binstruct.U64be
			_, _ = vbe.UnmarshalBinary(b)
			return uint64(vbe)
		}
		_, _ = v.UnmarshalBinary(b)
		return uint64(v)
	default:
		panic(fmt.Errorf("binbuf: unsupported pointer size %d", len(b)))
	}
}

// ByteSwap reverses the byte order of a pointer-width value, as if it
// had been read under the opposite endianness.  It is the relation
// that TESTABLE PROPERTY 4 (read_ptr(LE) and read_ptr(BE) are
// byteswap-related) exercises.
func ByteSwap(v uint64, arch Arch) uint64 {
	switch arch {
	case Arch32:
		v32 := uint32(v)
		return uint64(uint32(v32>>24) | uint32(v32>>8)&0xff00 | uint32(v32<<8)&0xff0000 | uint32(v32<<24))
	default:
		return (v&0x00000000000000ff)<<56 |
			(v&0x000000000000ff00)<<40 |
			(v&0x0000000000ff0000)<<24 |
			(v&0x00000000ff000000)<<8 |
			(v&0x000000ff00000000)>>8 |
			(v&0x0000ff0000000000)>>24 |
			(v&0x00ff000000000000)>>40 |
			(v&0xff00000000000000)>>56
	}
}
