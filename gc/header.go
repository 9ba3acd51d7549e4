// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Tagged object headers.
//
// Every managed value is preceded in memory by exactly one machine word,
// the header. The low two bits of that word hold the object's GC color;
// the remaining bits are a (16-byte aligned, so low-4-bits-zero) pointer
// into the process-wide type table. See sizeclass.go for the size
// classes a header's object can belong to and bigobj.go for the big
// object path.
package gc

import (
	"sync/atomic"
	"unsafe"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// Color is the two low bits of a header word.
type Color uint8

const (
	CLEAN      Color = 0
	MARKED     Color = 1
	OLD        Color = 2
	OLDMARKED  Color = 3
	colorMask  uintptr = 0x3
	typeMask   uintptr = ^uintptr(0x3)
)

func (c Color) String() string {
	switch c {
	case CLEAN:
		return "clean"
	case MARKED:
		return "marked"
	case OLD:
		return "old"
	case OLDMARKED:
		return "old-marked"
	default:
		return "invalid-color"
	}
}

func (c Color) young() bool { return c == CLEAN || c == MARKED }
func (c Color) isMarked() bool { return c == MARKED || c == OLDMARKED }

// header is the one-word tagged field preceding every managed object.
//
// All accesses go through the atomic word, even on paths the original
// design treats as single-threaded (see DESIGN.md's Open Question on
// "yolo" reads): this module cannot truly stop the world, it can only
// ask the host to, so the relaxed/atomic distinction buys nothing and
// costs little.
type header struct {
	word atomic.Uintptr
}

func packHeader(color Color, typePtr uintptr) uintptr {
	return (typePtr &^ colorMask) | uintptr(color)
}

func (h *header) load() uintptr { return h.word.Load() }

func (h *header) color() Color { return Color(h.load() & colorMask) }

func (h *header) setColor(c Color) {
	for {
		old := h.load()
		nw := (old &^ colorMask) | uintptr(c)
		if h.word.CompareAndSwap(old, nw) {
			return
		}
	}
}

func (h *header) marked() bool { return h.color().isMarked() }

// clear zeroes the header word entirely: color CLEAN (0) and a zero
// type pointer, so a cell freed back to a pool free list carries no
// dangling type reference (spec.md §8's pool free-list invariant).
func (h *header) clear() { h.word.Store(0) }

func (h *header) old() bool {
	c := h.color()
	return c == OLD || c == OLDMARKED
}

func (h *header) setMarked(v bool) {
	c := h.color()
	old := c == OLD || c == OLDMARKED
	h.setColorBits(v, old)
}

func (h *header) setOld(v bool) {
	c := h.color()
	marked := c == MARKED || c == OLDMARKED
	h.setColorBits(marked, v)
}

func (h *header) setColorBits(marked, old bool) {
	var c Color
	switch {
	case marked && old:
		c = OLDMARKED
	case marked:
		c = MARKED
	case old:
		c = OLD
	default:
		c = CLEAN
	}
	h.setColor(c)
}

// typePointer returns the header's type-table pointer with the two GC
// bits masked off.
func (h *header) typePointer() uintptr { return h.load() & typeMask }

func (h *header) typeDescriptor(t *typeTable) TypeDescriptor {
	return t.lookup(h.typePointer())
}

func (h *header) init(c Color, td TypeDescriptor, t *typeTable) {
	h.word.Store(packHeader(c, t.intern(td)))
}

// swapHeader atomically exchanges the header word, returning the
// previous value. Mark uses this with release ordering semantics (Go's
// atomic.Uintptr.Swap is a full fence) to claim an object: if the swap
// reveals the object was already marked, the caller lost the race and
// must not re-enqueue children.
func (h *header) swapHeader(newWord uintptr) uintptr {
	return h.word.Swap(newWord)
}

// headerOf returns the header immediately preceding v's payload.
func headerOf(v Value) *header {
	return (*header)(unsafe.Pointer(uintptr(v) - wordSize))
}

// valueOf returns the payload Value immediately following h.
func valueOf(h *header) Value {
	return Value(unsafe.Pointer(uintptr(unsafe.Pointer(h)) + wordSize))
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
