// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseSymbols reads a symbols file: lines of the form
// "0x<hex>[ <name>]", tolerant of arbitrary leading whitespace. Lines
// that don't start (after trimming) with a hex-prefixed address are
// silently skipped, matching the original tool's best-effort parser.
// The returned map is keyed by offset, with the symbol's name (empty
// when the line has none) as the value; only the offsets feed FUNCTION
// POI indexing.
func ParseSymbols(r io.Reader) (map[uint64]string, error) {
	out := make(map[uint64]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		addrField := fields[0]
		if !strings.HasPrefix(addrField, "0x") && !strings.HasPrefix(addrField, "0X") {
			continue
		}
		addr, err := strconv.ParseUint(addrField[2:], 16, 64)
		if err != nil {
			continue
		}
		name := ""
		if len(fields) > 1 {
			name = strings.TrimSpace(fields[1])
		}
		out[addr] = name
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
