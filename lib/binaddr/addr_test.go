// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binaddr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binbloom-go/binbloom/lib/binaddr"
)

func TestAddAndSub(t *testing.T) {
	a := binaddr.Address(0x1000)
	d := binaddr.Delta(0x10)
	assert.Equal(t, binaddr.Address(0x1010), a.Add(d))
	assert.Equal(t, d, a.Add(d).Sub(a))
}

func TestSubNegativeDelta(t *testing.T) {
	a := binaddr.Address(0x1000)
	b := binaddr.Address(0x1010)
	assert.Equal(t, binaddr.Delta(-0x10), a.Sub(b))
}

func TestOffsetOf(t *testing.T) {
	// OffsetOf finds the base that would place poiOffset at v.
	delta := binaddr.OffsetOf(binaddr.Address(0x9000), 0x1000)
	assert.Equal(t, binaddr.Delta(0x8000), delta)
}

func TestFormat(t *testing.T) {
	a := binaddr.Address(0xdeadbeef)
	assert.Equal(t, "0x00000000deadbeef", fmt.Sprintf("%v", a))
}
