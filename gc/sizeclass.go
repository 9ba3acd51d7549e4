// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Pool size classes.
//
// See pages.go for the page manager these pools are carved out of.
// Unlike the teacher's InitSizes (src/runtime/msize.go), which computes
// its table at init time to minimize rounding waste, spec.md §6 fixes
// the 41 size classes exactly, so the table here is a literal rather
// than a generated one; sizeToClass still uses the teacher's two-level
// lookup-array idiom to stay O(1) without a table the size of
// MaxSmallSize.
package gc

const (
	numSizeClasses = 41
	maxSmallSize   = 2032
	bigObjectCutoff = maxSmallSize + int(wordSize)
)

var classToSize = [numSizeClasses]int32{
	8, 16, 32, 48, 64, 80, 96, 112, 128, 144,
	160, 176, 192, 208, 224, 240, 256, 272, 288, 304,
	336, 368, 400, 448, 496, 544, 576, 624, 672, 736,
	816, 896, 1008, 1088, 1168, 1248, 1360, 1488, 1632, 1808,
	2032,
}

// sizeToClass8/128 are filled in by init, following the teacher's
// split-granularity lookup: sizes up to and including 512 are looked up
// 8 bytes at a time, larger sizes 16 bytes at a time (our classes space out
// faster than the teacher's once above 672, so 16 is fine granularity
// rather than the teacher's 128).
var (
	sizeToClassFine   [512/8 + 1]int8
	sizeToClassCoarse [(maxSmallSize-512)/16 + 2]int8
)

func init() {
	fillSizeClassTables()
}

func fillSizeClassTables() {
	cls := 0
	for size := 0; size <= maxSmallSize; size++ {
		for cls < numSizeClasses-1 && int(classToSize[cls]) < size {
			cls++
		}
		idx := int8(cls + 1) // 1-based: 0 means "no class"
		if size <= 512 {
			sizeToClassFine[(size+7)/8] = idx
		}
		if size >= 512 {
			sizeToClassCoarse[(size-512+15)/16] = idx
		}
	}
}

// sizeToClass returns the 0-based index into classToSize for an
// allocation request of size payload bytes (excluding the header word),
// or -1 if size exceeds the largest pool size class and must go
// through the big-object allocator.
func sizeToClass(size int) int {
	if size > maxSmallSize {
		return -1
	}
	var idx int8
	if size <= 512 {
		idx = sizeToClassFine[(size+7)/8]
	} else {
		idx = sizeToClassCoarse[(size-512+15)/16]
	}
	return int(idx) - 1
}

// classSize returns the object size in bytes for pool size class cls.
func classSize(cls int) int { return int(classToSize[cls]) }

// isBig reports whether an allocation request of size payload bytes
// (excluding the header word) must use the big-object allocator,
// per spec.md §6: "Objects whose size (including header) exceeds
// 2032 + word_size go to the big allocator."
func isBig(size int) bool {
	return size+int(wordSize) > bigObjectCutoff
}
