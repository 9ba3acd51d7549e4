// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sweep engine: pool (page) sweep, big-object sweep, malloc-array
// sweep, weak-ref invalidation, and remset rotation. Grounded on
// spec.md §4.F and the teacher's sweepone/mspan-sweep machinery
// (src/runtime/mcache.go, mcentral.go lineage), generalized from the
// runtime's single-generation span sweep to the quick-vs-full,
// color-aware generational sweep spec.md describes.
package gc

import (
	"sync"
	"unsafe"
)

// sweepStats accumulates the byte counters the driver folds into its
// quick-vs-full decision for the next cycle (spec.md §4.I).
type sweepStats struct {
	freedBytes    int64
	promotedBytes int64
	liveBytes     int64
}

func (a *sweepStats) add(b sweepStats) {
	a.freedBytes += b.freedBytes
	a.promotedBytes += b.promotedBytes
	a.liveBytes += b.liveBytes
}

// cellPointer returns the address of the header preceding the cellOff'th
// object slot in page p.
func cellPointer(p *page, cellOff int) unsafe.Pointer {
	return unsafe.Pointer(&(*p)[cellOff])
}

// sweepPage sweeps one page's cells in offset order, per spec.md §4.F's
// numbered steps. full selects whether a marked old object is demoted
// back to OLD (full sweep) or kept OLD_MARKED (quick sweep, since its
// remset entry is about to be restored by rotateRemsets anyway).
// freePool returns a freed cell's header to its owning pool free list.
func sweepPage(p *page, meta *PageMetadata, full bool, freePool func(h *header)) sweepStats {
	var st sweepStats
	if meta.objSize == 0 || !meta.inUse {
		return st
	}
	cellSize := int(meta.objSize)
	// Byte counters use the size class (the cell minus its header word),
	// the same amount AllocPool adds to the allocation counters.
	objBytes := int64(cellSize - int(wordSize))
	meta.nObj = int32(len(*p) / cellSize)
	// Only cells below nextFreeIdx have ever been bump-allocated
	// (see AllocPool's bumpAlloc); cells above it carry no header worth
	// reading and need no sweep bookkeeping.
	n := int(meta.nextFreeIdx)
	meta.nFree = 0
	anyYoungSurvived := false

	for i := 0; i < n; i++ {
		h := (*header)(cellPointer(p, i*cellSize))
		c := h.color()
		if c.isMarked() {
			isOld := c == OLD || c == OLDMARKED
			ageBit := meta.ageBit(int32(i))
			if ageBit || isOld {
				if full {
					h.setColor(OLD)
				} else {
					h.setColor(OLDMARKED)
				}
				meta.nOld++
				st.promotedBytes += objBytes
			} else {
				h.setColor(CLEAN)
				meta.setAgeBit(int32(i), true)
				anyYoungSurvived = true
			}
			st.liveBytes += objBytes
			continue
		}
		// A zero header is a cell freed by an earlier sweep and already on
		// the free list (live headers always carry a type id), so it is
		// counted as free without being pushed again.
		if h.load() == 0 {
			meta.nFree++
			continue
		}
		// Unmarked: return the cell to its pool free list with its
		// header zeroed, so no dangling type reference survives reuse.
		h.clear()
		freePool(h)
		meta.nFree++
		st.freedBytes += objBytes
	}

	meta.hasYoung.set(anyYoungSurvived)
	meta.hasMarked.set(meta.nFree != meta.nObj)
	return st
}

// sweepPoolsSequential walks every backed region's allocation bitmap and
// sweeps each allocated page whose has_young bit is set, or every page
// regardless when full is true, per spec.md §4.F. freePool is handed
// the page's owning thread id and size class so the caller can route
// the freed header back into the right perThreadHeap's pool. It returns
// pages on which every cell handed out so far (nextFreeIdx of them) is
// now free, for release back to the page manager.
func sweepPoolsSequential(pm *pageManager, full bool, freePool func(threadID int32, cls int, h *header)) ([]*page, sweepStats) {
	var total sweepStats
	var toRelease []*page

	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, r := range pm.regions {
		if r == nil {
			continue
		}
		for idx := 0; idx < r.pageCount; idx++ {
			if !r.bitSet(idx) {
				continue
			}
			meta := &r.meta[idx]
			if !meta.inUse {
				continue
			}
			if !full && !meta.hasYoung.get() {
				continue
			}
			tid := meta.thread
			cls := int(meta.pool)
			st := sweepPage(&r.pages[idx], meta, full, func(h *header) {
				if cls >= 0 {
					freePool(tid, cls, h)
				}
			})
			total.add(st)
			if meta.nextFreeIdx > 0 && meta.nFree == meta.nextFreeIdx {
				toRelease = append(toRelease, &r.pages[idx])
			}
		}
	}
	return toRelease, total
}

// sweepBig walks heap's big-object list, freeing unmarked records and
// promoting marked ones, per spec.md §4.F's Big sweep. On a full sweep
// it additionally walks the shared old-survivor list (guarded by
// sharedMu) and moves every survivor found there back onto heap's own
// list, matching "at the end move all survivors back onto the calling
// thread's big list".
func sweepBig(heap *perThreadHeap, sharedOld *[]*bigObjectRecord, sharedMu *sync.Mutex, full bool) sweepStats {
	var st sweepStats

	sweepList := func(list *[]*bigObjectRecord, demoteFull bool) {
		objs := *list
		i := 0
		for i < len(objs) {
			rec := objs[i]
			hdr := bigHeaderOf(bigValueOf(rec))
			c := hdr.color()
			if c.isMarked() {
				if rec.age() >= promoteAgeBig || c == OLDMARKED {
					if demoteFull {
						hdr.setColor(OLD)
					} else {
						hdr.setColor(OLDMARKED)
					}
				} else {
					rec.setAge(rec.age() + 1)
					hdr.setColor(CLEAN)
				}
				st.liveBytes += int64(rec.size())
				i++
				continue
			}
			unlinkFrom(list, rec)
			objs = *list
			st.freedBytes += int64(freeBig(rec))
		}
	}

	sweepList(&heap.bigObjects, full)

	if full && sharedOld != nil {
		sharedMu.Lock()
		sweepList(sharedOld, true)
		survivors := *sharedOld
		*sharedOld = (*sharedOld)[:0]
		sharedMu.Unlock()
		for _, rec := range survivors {
			rec.tid = int32(heap.threadID)
			rec.slot = len(heap.bigObjects)
			heap.bigObjects = append(heap.bigObjects, rec)
		}
	}

	return st
}

// sweepMallocArrays frees the backing buffer of any malloc-array entry
// whose owning object did not survive, spec.md §4.F's Malloc-array
// sweep.
func sweepMallocArrays(heap *perThreadHeap) {
	kept := heap.mallocArrs[:0]
	for _, e := range heap.mallocArrs {
		if headerOf(e.owner).marked() {
			kept = append(kept, e)
			continue
		}
		// e.buffer is an ordinary Go slice; dropping the last reference
		// is this module's equivalent of an explicit free (see bigobj.go).
	}
	heap.mallocArrs = kept
}

// sweepWeakRefs removes dead weak-ref objects and nils out the value
// slot of any live weak-ref whose target did not survive, spec.md
// §4.F's Weak-ref sweep.
func sweepWeakRefs(heap *perThreadHeap, host Host) {
	kept := heap.weakRefs[:0]
	for _, e := range heap.weakRefs {
		if !headerOf(e.ref).marked() {
			continue
		}
		target := e.td.Target(e.ref)
		if target != nil && !headerOf(target).marked() {
			e.td.SetTarget(e.ref, host.Nothing())
		}
		kept = append(kept, e)
	}
	heap.weakRefs = kept
}

// rotateRemsets applies spec.md §4.F's Remset rotation: on a quick
// sweep every pointer in the just-swept young remset (now last_remset)
// is forced back to MARKED; on a full sweep both remsets are cleared.
func rotateRemsets(heap *perThreadHeap, full bool) {
	if full {
		heap.lastRemset = heap.lastRemset[:0]
		heap.remBindings = heap.remBindings[:0]
		return
	}
	for _, v := range heap.lastRemset {
		headerOf(v).setColor(MARKED)
	}
	for _, b := range heap.remBindings {
		headerOf(b.parent).setColor(MARKED)
	}
}
