// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Write barrier: the remembered-set append + color downgrade protocol
// that lets a quick (young-only) sweep find old objects referencing
// young ones without rescanning the whole old generation. Grounded on
// spec.md §4.G/§9 and the teacher's mbarrier.go, generalized from the
// teacher's Yuasa/Dijkstra shade barrier (this collector has no
// concurrent mark phase to shade for) to the generational remset model:
// "a per-thread append-only list plus a color bit on the parent to
// avoid duplicate enqueues" (spec.md §9).
package gc

// WriteBarrierValue must be called by the mutator whenever it stores a
// pointer into parent's fields. If parent is currently OLD_MARKED, the
// barrier forces it back to MARKED and appends it to the owning
// thread's remset, conservatively counting it as one pointer cell
// against remsetNptr.
func (h *perThreadHeap) WriteBarrierValue(parent Value) {
	hdr := headerOf(parent)
	if hdr.color() != OLDMARKED {
		return
	}
	hdr.setColor(MARKED)
	h.remset = append(h.remset, parent)
	h.remsetNptr++
}

// WriteBarrierBinding is WriteBarrierValue's twin for module bindings,
// spec.md §4.G: same contract, dedicated binding remset list.
func (h *perThreadHeap) WriteBarrierBinding(binding Value) {
	hdr := headerOf(binding)
	if hdr.color() != OLDMARKED {
		return
	}
	hdr.setColor(MARKED)
	h.remBindings = append(h.remBindings, rembinding{parent: binding})
	h.remsetNptr++
}
