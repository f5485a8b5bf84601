// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binaddr provides the address and delta types shared by the
// address trie, the POI index, and the candidate generator.
package binaddr

import (
	"fmt"

	"github.com/binbloom-go/binbloom/lib/fmtutil"
)

// Address is an absolute offset into, or a memory address mapped
// from, a firmware image.  It is always represented with 64 bits,
// even for ARCH32 images, where it occupies only the low 32 bits.
type Address uint64

// Delta is the difference between two Addresses; in particular, the
// offset between a candidate base address and the offset of the POI
// that produced it.
type Delta int64

func formatAddr(addr uint64, f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		str := fmt.Sprintf("%#016x", addr)
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), str)
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), addr)
	}
}

// Format implements fmt.Formatter.
func (a Address) Format(f fmt.State, verb rune) { formatAddr(uint64(a), f, verb) }

// Format implements fmt.Formatter.
func (d Delta) Format(f fmt.State, verb rune) { formatAddr(uint64(d), f, verb) }

// Add returns a+d.
func (a Address) Add(d Delta) Address { return Address(int64(a) + int64(d)) }

// Sub returns a-b as a Delta.
func (a Address) Sub(b Address) Delta { return Delta(int64(a) - int64(b)) }

// OffsetOf returns the candidate base address that would place
// poiOffset at the absolute address v, i.e. the delta d such that
// v == Address(poiOffset).Add(d).
func OffsetOf(v Address, poiOffset uint64) Delta {
	return Delta(int64(v) - int64(poiOffset))
}
