// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeToClassCoversEveryClass(t *testing.T) {
	for i, sz := range classToSize {
		cls := sizeToClass(int(sz))
		assert.Equal(t, i, cls, "size %d should map to its own class", sz)
	}
}

func TestSizeToClassRoundsUpWithinClass(t *testing.T) {
	// One byte past a class boundary must round up into the next class,
	// not stay in the one below it.
	assert.Equal(t, 1, sizeToClass(9))  // class 1 is 16 bytes
	assert.Equal(t, 0, sizeToClass(8))  // exactly class 0
	assert.Equal(t, 0, sizeToClass(1))
}

func TestSizeToClassRejectsOversize(t *testing.T) {
	assert.Equal(t, -1, sizeToClass(maxSmallSize+1))
	assert.Equal(t, numSizeClasses-1, sizeToClass(maxSmallSize))
}

// TestBigObjectCutoffBoundary is spec.md §8's boundary behavior:
// "Allocation request for size = GC_MAX_SZCLASS goes through the
// big-object path iff size + header > 2032 + word_size."
func TestBigObjectCutoffBoundary(t *testing.T) {
	assert.False(t, isBig(maxSmallSize))
	assert.True(t, isBig(maxSmallSize+1))

	cutoff := maxSmallSize + int(wordSize)
	assert.Equal(t, cutoff, bigObjectCutoff)
	// isBig reasons about size+header directly against the cutoff.
	assert.False(t, isBig(maxSmallSize))
	assert.True(t, isBig(maxSmallSize+int(wordSize)))
}
