// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binbloom-go/binbloom/lib/util"
)

func TestMaxMin(t *testing.T) {
	assert.Equal(t, 5, util.Max(5, 3))
	assert.Equal(t, 3, util.Max(3, 3))
	assert.Equal(t, 3, util.Min(5, 3))
	assert.Equal(t, 3, util.Min(3, 3))
}
