// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTrimWorkingSetKeepsTiesAtTheBoundary builds a vote distribution
// where the min'th and (min+1)'th candidates are tied — the threshold
// vote value occurs more than once at the cutoff — and checks that
// every tied candidate survives, not just the first min of them.
func TestTrimWorkingSetKeepsTiesAtTheBoundary(t *testing.T) {
	// 29 candidates with strictly descending votes, then three tied
	// at the boundary value 5, then one more candidate below that.
	sorted := make([]Candidate, 0, 33)
	for i := 0; i < 29; i++ {
		sorted = append(sorted, Candidate{Address: uint64(i), Votes: int64(100 - i)})
	}
	sorted = append(sorted,
		Candidate{Address: 0x1000, Votes: 5},
		Candidate{Address: 0x2000, Votes: 5},
		Candidate{Address: 0x3000, Votes: 5},
		Candidate{Address: 0x4000, Votes: 1},
	)

	trimmed := trimWorkingSet(sorted, 30)

	assert.Len(t, trimmed, 32) // 29 + all three tied at the threshold
	for _, want := range []uint64{0x1000, 0x2000, 0x3000} {
		var found bool
		for _, c := range trimmed {
			if c.Address == want {
				found = true
			}
		}
		assert.True(t, found, "tied candidate %#x was dropped", want)
	}
	for _, c := range trimmed {
		assert.NotEqual(t, uint64(0x4000), c.Address, "candidate below the threshold should not survive")
	}
}

// TestTrimWorkingSetNoTies exercises the plain case: no ties at the
// boundary, so the cut lands exactly at min.
func TestTrimWorkingSetNoTies(t *testing.T) {
	sorted := make([]Candidate, 0, 32)
	for i := 0; i < 32; i++ {
		sorted = append(sorted, Candidate{Address: uint64(i), Votes: int64(100 - i)})
	}
	trimmed := trimWorkingSet(sorted, 30)
	assert.Len(t, trimmed, 30)
}
