// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package candidate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/binbloom-go/binbloom/lib/addrtrie"
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/containers"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/memregion"
	"github.com/binbloom-go/binbloom/lib/poi"
	"github.com/binbloom-go/binbloom/lib/textui"
)

// maxRunnersUp bounds how many non-winning candidates are reported
// alongside the winner.
const maxRunnersUp = 30

// minArraySpan is the smallest POI.Count an ARRAY POI needs before it
// is considered for the valid-array test; shorter spans
// don't carry enough samples to distinguish a real array of pointers
// from coincidence.
const minArraySpan = 10

// RefinerConfig parameterizes Refine.
type RefinerConfig struct {
	Arch    binbuf.Arch
	Endian  binbuf.Endianness
	Regions *memregion.Table
	Symbols map[uint64]string
	// Workers is the number of goroutines that split the candidate
	// list into disjoint index ranges; each candidate is scored by
	// exactly one worker, so score table writes need no locking.
	Workers int
}

// Refined is one candidate after scoring.
type Refined struct {
	Candidate     Candidate
	PointerCount  int
	ArrayScore    int64
	HasValidArray bool
	Score         int64
}

// RunnerUp is a non-winning candidate, with its score expressed as a
// fraction of the winner's.
type RunnerUp struct {
	Refined
	Normalized float64
}

// Result is the refiner's verdict.
type Result struct {
	Winner Refined
	// Confident is set when the winner also holds the most votes
	// among the input candidates — i.e. the pointer-density/array
	// evidence agrees with the raw vote count, rather than
	// overriding it.
	Confident bool
	RunnersUp []RunnerUp
}

type refineStats struct {
	done, total int
}

func (s refineStats) String() string {
	return textui.Portion[int]{N: s.done, D: s.total}.String()
}

// Refine re-examines each candidate base address with two independent
// signals that the cheap vote-based generator couldn't afford to
// compute for every scanned offset: a re-scan of pointer density under
// that base, and a "valid array" test that checks whether
// reinterpreting a long ARRAY POI's span as pointers under that
// base yields many distinct, plausible targets.
//
// Work is split into Workers disjoint index ranges over candidates, so
// each worker only ever writes its own slots of the score table; the
// only shared mutable state is a progress counter.
func Refine(ctx context.Context, img []byte, candidates []Candidate, poiList *poi.List, cfg RefinerConfig) Result {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	scored := make([]Refined, len(candidates))

	// arrayPOIs holds the ARRAY POIs long enough to be worth a
	// valid-array test; targets holds every STRING/ARRAY POI's offset
	// (regardless of length), since that's the full set a pointer-sized
	// slot can legitimately resolve to.
	var arrayPOIs []*poi.POI
	targets := containers.NewSet[uint64]()
	for p := poiList.Head(); p != nil; p = p.Next() {
		if p.Type == poi.String || p.Type == poi.Array {
			targets.Insert(p.Offset)
		}
		if p.Type == poi.Array && p.Count >= minArraySpan {
			arrayPOIs = append(arrayPOIs, p)
		}
	}

	var progressCount containers.SyncValue[int]
	progressCount.Store(0) // CompareAndSwap fails until a value is stored
	progress := textui.NewProgress[refineStats](ctx, dlog.LogLevelInfo, 1*time.Second)
	defer progress.Done()

	var pool containers.SlicePool[uint64]

	var wg sync.WaitGroup
	if workers > 0 {
		for w := 0; w < workers; w++ {
			w := w
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := w; i < len(candidates); i += workers {
					scored[i] = scoreCandidate(img, candidates[i], arrayPOIs, targets, cfg, &pool)

					done := incrCounter(&progressCount)
					progress.Set(refineStats{done: done, total: len(candidates)})
				}
			}()
		}
	}
	wg.Wait()

	winnerIdx := pickWinner(scored)
	winner := scored[winnerIdx]

	topVotesIdx := 0
	for i, c := range candidates {
		if c.Votes > candidates[topVotesIdx].Votes {
			topVotesIdx = i
		}
	}

	runnersUp := make([]RunnerUp, 0, len(scored)-1)
	for i, r := range scored {
		if i == winnerIdx {
			continue
		}
		runnersUp = append(runnersUp, RunnerUp{Refined: r})
	}
	sort.Slice(runnersUp, func(i, j int) bool { return runnersUp[i].Score > runnersUp[j].Score })
	if len(runnersUp) > maxRunnersUp {
		runnersUp = runnersUp[:maxRunnersUp]
	}
	for i := range runnersUp {
		if winner.Score > 0 {
			runnersUp[i].Normalized = float64(runnersUp[i].Score) / float64(winner.Score)
		}
	}

	dlog.Infof(ctx, "candidate refinement: winner=0x%x score=%d valid_array=%v", winner.Candidate.Address, winner.Score, winner.HasValidArray)

	return Result{
		Winner:    winner,
		Confident: winnerIdx == topVotesIdx,
		RunnersUp: runnersUp,
	}
}

// pickWinner applies the §4.8 tie-break rule: if exactly one candidate
// passed the valid-array test, it wins outright regardless of score;
// otherwise (zero or several such candidates) the highest composite
// score wins.
func pickWinner(scored []Refined) int {
	validIdx := -1
	validCount := 0
	for i, r := range scored {
		if r.HasValidArray {
			validCount++
			validIdx = i
		}
	}
	if validCount == 1 {
		return validIdx
	}

	best := 0
	for i, r := range scored {
		if r.Score > scored[best].Score {
			best = i
		}
	}
	return best
}

func scoreCandidate(img []byte, c Candidate, arrayPOIs []*poi.POI, targets containers.Set[uint64], cfg RefinerConfig, pool *containers.SlicePool[uint64]) Refined {
	size := cfg.Arch.Size()

	var arrayScore int64 = 1
	var hasValidArray bool
	for _, p := range arrayPOIs {
		unique := countUniqueTargets(img, p, c.Address, cfg.Arch, cfg.Endian, size, targets)
		arrayScore += unique
		if float64(unique)*3 >= float64(p.Count) {
			hasValidArray = true
		}
	}

	buf := pool.Get(1024)
	cnt, buf := indexer.CountPointers(img, cfg.Arch, cfg.Endian, c.Address, cfg.Regions, cfg.Symbols, buf)
	pool.Put(buf)

	return Refined{
		Candidate:     c,
		PointerCount:  cnt,
		ArrayScore:    arrayScore,
		HasValidArray: hasValidArray,
		Score:         int64(cnt) * c.Votes * arrayScore,
	}
}

// countUniqueTargets scans p's p.Count pointer-sized elements,
// reinterpreting each as a pointer under base, and returns the number
// of distinct elements whose target (v - base) lands exactly on the
// offset of some STRING or ARRAY POI in targets — a pointer into the
// middle of a string or array doesn't count, only one landing on its
// head. Distinct targets are recorded via an auxiliary trie rather
// than a map, matching the rest of the package's vote-counting idiom.
func countUniqueTargets(img []byte, p *poi.POI, base uint64, arch binbuf.Arch, endian binbuf.Endianness, size int, targets containers.Set[uint64]) int64 {
	aux := addrtrie.New()
	for k := uint64(0); k < p.Count; k++ {
		off := p.Offset + k*uint64(size)
		if int(off)+size > len(img) {
			break
		}
		v, err := binbuf.ReadPointer(img, int(off), arch, endian)
		if err != nil {
			break
		}
		if v == 0 || v < base {
			continue
		}
		target := v - base
		if !targets.Has(target) {
			continue
		}
		aux.Insert(target)
	}
	return aux.CountNodes()
}

// incrCounter atomically increments sv and returns the new value,
// using a compare-and-swap retry loop since SyncValue only exposes
// Load/Store/Swap/CompareAndSwap, not a fetch-and-add.
func incrCounter(sv *containers.SyncValue[int]) int {
	for {
		old, _ := sv.Load()
		if sv.CompareAndSwap(old, old+1) {
			return old + 1
		}
	}
}
