// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package endian_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/endian"
)

// TestDetectPrefersLittleEndian builds a single 8-byte window (so the
// scan only ever considers one candidate value per byte order) whose
// low byte is 0 when read LE but whose low byte (the window's last
// byte) is odd when read BE — the BE reading is therefore never
// 4-byte aligned and never votes, while the LE reading does.
func TestDetectPrefersLittleEndian(t *testing.T) {
	img := []byte{0x00, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	res := endian.Detect(context.Background(), img, binbuf.Arch64)
	assert.Equal(t, binbuf.EndianLE, res.Endian)
}

func TestDetectOnEmptyBufferDoesNotPanic(t *testing.T) {
	res := endian.Detect(context.Background(), nil, binbuf.Arch32)
	assert.Equal(t, binbuf.EndianLE, res.Endian) // ties resolve to LE
}
