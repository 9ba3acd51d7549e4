// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Per-thread heap: one per mutator thread, owning a pool per size
// class, the thread's weak-ref/malloc-array/big-object/rem-binding
// lists, the rotating remembered set, and a mark cache. Grounded on
// spec.md §4.D and the teacher's per-P mcache (src/runtime/mcache.go),
// generalized from a fixed-size-class cache over the runtime's own heap
// to the host-value heap this module manages.
package gc

// sizeClassPool is one size class's free list on one thread, spec.md
// §3/§4.D.
type sizeClassPool struct {
	size     int
	freeList []*header
	pages    []*page
	pageMeta []*PageMetadata
}

func (p *sizeClassPool) pop() *header {
	n := len(p.freeList)
	if n == 0 {
		return nil
	}
	h := p.freeList[n-1]
	p.freeList = p.freeList[:n-1]
	return h
}

func (p *sizeClassPool) push(h *header) {
	p.freeList = append(p.freeList, h)
}

// weakRefEntry tracks a weak-ref object alongside the raw (unmanaged)
// pointer at its value slot, so sweep.go can invalidate it without
// re-deriving the slot's memory layout (spec.md's "Weak ref" lifecycle).
type weakRefEntry struct {
	ref Value
	td  WeakRefType
}

// mallocArrayEntry is a malloc-backed array buffer tracked by the owning
// object's Value so sweep.go can free it if the object dies, per
// spec.md §4.F's malloc-array sweep.
type mallocArrayEntry struct {
	owner  Value
	buffer []byte
}

// rembinding is a remembered write-barrier-tracked binding (as opposed
// to a remembered value), spec.md §3/§4.G.
type rembinding struct {
	parent Value
}

// perThreadHeap is spec.md §4.D's per-mutator-thread state. No
// operation on it blocks; concurrent access from collector agents is
// bounded to the mark/sweep phases while the world is stopped (spec.md
// §5).
type perThreadHeap struct {
	threadID int

	pools [numSizeClasses]sizeClassPool

	weakRefs    []weakRefEntry
	mallocArrs  []mallocArrayEntry
	bigObjects  []*bigObjectRecord
	remBindings []rembinding

	finalizers []finalizerPair

	remset     []Value
	lastRemset []Value
	remsetNptr int64

	cache markCache

	allocd int64 // bytes allocated since last sweep, for the safepoint trigger
}

func newPerThreadHeap(threadID int) *perThreadHeap {
	h := &perThreadHeap{threadID: threadID}
	for i := range h.pools {
		h.pools[i].size = classSize(i)
	}
	return h
}

// rotateRemset swaps remset and lastRemset and clears the new (now
// empty) remset, spec.md §4.I's Premark step.
func (h *perThreadHeap) rotateRemset() {
	h.remset, h.lastRemset = h.lastRemset, h.remset
	h.remset = h.remset[:0]
	h.remsetNptr = 0
}
