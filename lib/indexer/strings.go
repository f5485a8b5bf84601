// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import "github.com/binbloom-go/binbloom/lib/poi"

// IndexStrings scans img byte-by-byte, tracking runs of printable
// bytes (the common ASCII range plus tab), and appends a STRING POI
// to list for every run of at least StrMinSize bytes.
func IndexStrings(img []byte, list *poi.List) {
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if n := end - runStart; n >= StrMinSize {
			list.Add(uint64(runStart), uint64(end-runStart), poi.String)
		}
		runStart = -1
	}
	for i, c := range img {
		if isPrintable(c) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(img))
}
