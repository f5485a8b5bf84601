// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package memregion classifies a firmware image into regions of
// code, initialized data, or uninitialized data, based on the
// Shannon entropy of fixed-size windows.
package memregion

import "math"

// WindowSize is the size, in bytes, of the windows entropy is
// computed over before adjacent same-kind windows are merged into a
// Region.
const WindowSize = 1024

// Kind classifies a Region's contents.
type Kind int

const (
	Unknown Kind = iota
	Code
	InitData
	UninitData
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "CODE"
	case InitData:
		return "INIT_DATA"
	case UninitData:
		return "UNINIT_DATA"
	default:
		return "UNKNOWN"
	}
}

// Thresholds gives the three non-overlapping entropy bands used to
// classify a window, expressed as [Min, Max) on normalized Shannon
// entropy.  DefaultThresholds holds the "default" architecture profile
// from the original tool; the zero value classifies every window as
// Unknown.
type Thresholds struct {
	UninitMax float64 // UNINIT_DATA is [0, UninitMax)
	InitMax   float64 // INIT_DATA is [UninitMax, InitMax)
	CodeMax   float64 // CODE is [InitMax, CodeMax)
}

// DefaultThresholds is the sole architecture profile carried over
// from the original tool, which only ever registered one profile.
var DefaultThresholds = Thresholds{
	UninitMax: 0.05,
	InitMax:   0.60,
	CodeMax:   0.90,
}

func (th Thresholds) classify(entropy float64) Kind {
	switch {
	case entropy < th.UninitMax:
		return UninitData
	case entropy < th.InitMax:
		return InitData
	case entropy < th.CodeMax:
		return Code
	default:
		return Unknown
	}
}

// Region is a maximal run of same-Kind windows, possibly merged from
// several adjacent WindowSize-sized windows (or a single shorter
// trailing window).
type Region struct {
	Offset  uint64
	Size    uint64
	Entropy float64
	Kind    Kind
}

// Entropy computes the normalized Shannon entropy of b: the
// histogram-based entropy divided by 8 so the result always falls in
// [0, 1].
func Entropy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var hist [256]int
	for _, c := range b {
		hist[c]++
	}
	n := float64(len(b))
	var h float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h / 8
}

// Classify splits b into WindowSize windows (the trailing window may
// be shorter), classifies each by entropy under th, and coalesces
// adjacent same-Kind windows into Regions tiling [0, len(b)) in
// ascending offset order with no gaps.
func Classify(b []byte, th Thresholds) []Region {
	var regions []Region
	for off := 0; off < len(b); off += WindowSize {
		end := off + WindowSize
		if end > len(b) {
			end = len(b)
		}
		window := b[off:end]
		kind := th.classify(Entropy(window))

		if n := len(regions); n > 0 && regions[n-1].Kind == kind {
			regions[n-1].Size += uint64(len(window))
			continue
		}
		regions = append(regions, Region{
			Offset: uint64(off),
			Size:   uint64(len(window)),
			Kind:   kind,
		})
	}
	for i := range regions {
		span := b[regions[i].Offset : regions[i].Offset+regions[i].Size]
		regions[i].Entropy = Entropy(span)
	}
	return regions
}

// Table answers memory_get_type queries against a classified region
// list.
type Table struct {
	regions []Region
}

// NewTable builds a lookup table over a classified region list.
func NewTable(regions []Region) *Table {
	return &Table{regions: regions}
}

// TypeAt returns the Kind of the region containing offset, or Unknown
// if offset falls outside every region.
func (t *Table) TypeAt(offset uint64) Kind {
	// Regions tile [0, end) in ascending order with no gaps, so a
	// binary search would work; linear scan mirrors the original
	// and the region counts here (image_size/1024) are small
	// enough that it isn't worth the complexity.
	for _, r := range t.regions {
		if offset >= r.Offset && offset < r.Offset+r.Size {
			return r.Kind
		}
	}
	return Unknown
}

// Regions returns the classified region list.
func (t *Table) Regions() []Region { return t.regions }
