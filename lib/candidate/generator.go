// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package candidate implements the base-address candidate generator
// and the parallel candidate refiner.
package candidate

import (
	"context"
	"math"

	"github.com/datawire/dlib/dlog"

	"github.com/binbloom-go/binbloom/lib/addrtrie"
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/poi"
	"github.com/binbloom-go/binbloom/lib/util"
)

// memCapBytes is the soft memory cap (approximated as trie-node
// memory) that triggers a halving filter during candidate generation.
const memCapBytes = 4_000_000_000

// minWorkingSet is the minimum number of candidates kept after
// trimming, unless deep mode is requested.
const minWorkingSet = 30

// filterCheckStride bounds how often (in outer-loop iterations) the
// memory cap is checked, trading a little precision for not re-
// computing MemSize on every single offset.
const filterCheckStride = 4096

// GeneratorConfig parameterizes candidate generation.
type GeneratorConfig struct {
	Arch   binbuf.Arch
	Endian binbuf.Endianness
	// Align is the candidate memory alignment (MEM_ALIGN, the -m
	// flag); a candidate base is only accepted if it preserves the
	// low Align-1 bits of the pairing POI's offset.
	Align uint64
	// PtrAligned additionally requires v to be a multiple of the
	// pointer size; always on, since no flag in the external
	// interface exposes disabling it.
	PtrAligned bool
	Deep       bool
}

// Candidate is one base-address hypothesis with its accumulated
// votes.
type Candidate struct {
	Address uint64
	Votes   int64
}

func allPrintable(v uint64, size int) bool {
	for i := 0; i < size; i++ {
		b := byte(v >> (8 * i))
		if !isPrintable(b) {
			return false
		}
	}
	return true
}

func isPrintable(c byte) bool {
	return (c >= 0x20 && c <= 0x7e) || c == '\t'
}

// ComputeCandidates votes candidate base addresses from (POI,
// occurrence-of-a-value) pairs. It pairs against STRING POIs if any
// exist in poiList, else against FUNCTION POIs, per §4.7.
func ComputeCandidates(ctx context.Context, img []byte, cfg GeneratorConfig, poiList *poi.List) []Candidate {
	pairType := poi.Function
	var pairPOIs []*poi.POI
	for p := poiList.Head(); p != nil; p = p.Next() {
		if p.Type == poi.String {
			pairType = poi.String
			break
		}
	}
	for p := poiList.Head(); p != nil; p = p.Next() {
		if p.Type == pairType {
			pairPOIs = append(pairPOIs, p)
		}
	}

	size := cfg.Arch.Size()
	align := cfg.Align
	if align == 0 {
		align = 1
	}
	alignMask := align - 1
	n := uint64(len(img))

	trie := addrtrie.New()
	iterations := 0
	for off := 0; off+size <= len(img); off += 4 {
		iterations++
		v, err := binbuf.ReadPointer(img, off, cfg.Arch, cfg.Endian)
		if err != nil {
			break
		}
		if v == 0 {
			continue
		}
		if cfg.PtrAligned && v%uint64(size) != 0 {
			continue
		}
		if allPrintable(v, size) {
			continue
		}
		for _, p := range pairPOIs {
			if v < p.Offset {
				continue
			}
			delta := v - p.Offset
			// Equivalent to the original's v&mask == offset&mask
			// low-bit comparison: the candidate base must
			// preserve the pairing POI's alignment class.
			if delta&alignMask != 0 {
				continue
			}
			if math.MaxUint64-delta+1 < n {
				continue
			}
			trie.Insert(delta)
		}

		if iterations%filterCheckStride == 0 {
			if trie.MemSize() > memCapBytes {
				if v := trie.MaxVote(); v > 0 {
					trie.Filter(v / 2)
				}
			}
		}
	}

	leaves := trie.Collect()
	candidates := make([]Candidate, 0, len(leaves))
	for _, l := range leaves {
		if l.Votes <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Address: l.Addr, Votes: l.Votes})
	}

	sortByVotesDesc(candidates)

	if !cfg.Deep {
		candidates = trimWorkingSet(candidates, minWorkingSet)
	}

	dlog.Infof(ctx, "candidate generation: %d candidates after trimming (pairing on %v POIs)", len(candidates), pairType)
	return candidates
}

func sortByVotesDesc(c []Candidate) {
	// insertion sort is adequate: the working set is trimmed to a
	// small constant in non-deep mode, and deep mode is an
	// explicit opt-in to more work.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].Votes > c[j-1].Votes; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

// trimWorkingSet keeps candidates with the highest vote counts,
// lowering the vote threshold until at least min candidates qualify —
// and then keeps every candidate tied at that threshold, not just the
// first min of them, so a true-base candidate tied at the boundary is
// never silently dropped.
func trimWorkingSet(sorted []Candidate, min int) []Candidate {
	end := util.Min(len(sorted), min)
	if end == 0 {
		return sorted[:end]
	}
	threshold := sorted[end-1].Votes
	for end < len(sorted) && sorted[end].Votes >= threshold {
		end++
	}
	return sorted[:end]
}
