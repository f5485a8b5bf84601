// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package endian implements the endianness detector: an unaligned
// scan of the firmware image that races a little-endian trie against
// a big-endian trie and reports whichever accumulated the larger
// maximum vote.
package endian

import (
	"context"
	"math"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/binbloom-go/binbloom/lib/addrtrie"
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/textui"
	"github.com/binbloom-go/binbloom/lib/util"
)

// filterInterval is how many scan iterations elapse between memory-
// bounding halving filters on each candidate trie.
const filterInterval = 0x10000

// Result is the verdict of Detect.
type Result struct {
	Endian binbuf.Endianness
	// PtrBase is an advisory hint at the image's most likely
	// pointer base, reconstructed from half the candidate trie's
	// pointer width; per the original tool's design notes, it is
	// not a constraint that candidate generation must honor.
	PtrBase uint64
	Mask    uint64
}

type scanStats struct {
	done, total int
}

func (s scanStats) String() string {
	return textui.Portion[int]{N: s.done, D: s.total}.String()
}

// highMask computes 0xFFFFFFFFFFFFFFFF << (ceil(log2(n)) - 1),
// clamped to a sane shift range for degenerate (tiny or huge) n.
func highMask(n int) uint64 {
	if n < 2 {
		return ^uint64(0)
	}
	shift := util.Max(int(math.Ceil(math.Log2(float64(n))))-1, 0)
	shift = util.Min(shift, 63)
	return ^uint64(0) << shift
}

// Detect scans b for the byte order that gives the larger maximum
// vote on masked, word-aligned non-zero values; ties are resolved to
// little-endian.
func Detect(ctx context.Context, b []byte, arch binbuf.Arch) Result {
	size := arch.Size()
	mask := highMask(len(b))

	leTrie := addrtrie.New()
	beTrie := addrtrie.New()

	total := len(b) - size
	if total < 0 {
		total = 0
	}

	progress := textui.NewProgress[scanStats](ctx, dlog.LogLevelInfo, 1*time.Second)
	defer progress.Done()

	iterations := 0
	for i := 0; i+size <= len(b); i++ {
		iterations++
		le, _ := binbuf.ReadPointer(b, i, arch, binbuf.EndianLE)
		be, _ := binbuf.ReadPointer(b, i, arch, binbuf.EndianBE)

		if le != 0 && le%4 == 0 {
			leTrie.Insert(le & mask)
		}
		if be != 0 && be%4 == 0 {
			beTrie.Insert(be & mask)
		}

		if iterations%filterInterval == 0 {
			if v := leTrie.MaxVote(); v > 0 {
				leTrie.Filter(v / 2)
			}
			if v := beTrie.MaxVote(); v > 0 {
				beTrie.Filter(v / 2)
			}
			progress.Set(scanStats{done: i, total: total})
		}
	}
	progress.Set(scanStats{done: total, total: total})

	maxLE := leTrie.MaxVote()
	maxBE := beTrie.MaxVote()

	winner := leTrie
	result := Result{Endian: binbuf.EndianLE}
	if maxBE > maxLE {
		winner = beTrie
		result.Endian = binbuf.EndianBE
	}

	prefix, _ := winner.GreedyPrefix(size / 2)
	result.PtrBase = prefix

	bits := size * 8
	result.Mask = uint64(0xffff) << (bits - 16)

	dlog.Infof(ctx, "endianness scan: LE max vote=%d, BE max vote=%d, verdict=%v", maxLE, maxBE, result.Endian)

	return result
}
