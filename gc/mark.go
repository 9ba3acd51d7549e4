// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Mark engine: the depth-bounded recursive scan protocol, its
// overflow-stack fallback, and parallel draining. Grounded on spec.md
// §4.E and the teacher's gcDrain/scanobject pair (src/runtime/mgcmark.go),
// generalized from the runtime's internal object layout (ptrdata bitmaps)
// to dispatch on the host's TypeDescriptor.Kind() instead.
package gc

import (
	"context"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

const maxMarkDepth = 40
const bigArrayDeferElems = 100000

// marker is one marking agent's view of shared collector state: the
// type table to resolve a header's type pointer, the page manager to
// tell pool objects from big objects, the process-wide overflow stack,
// and the agent's own mark cache for scanned-byte and remset bookkeeping
// (spec.md §4.E's "per-thread-heap and per-GC-worker scratch state").
type marker struct {
	types    *typeTable
	pages    *pageManager
	overflow *markOverflowStack
	cache    *markCache
}

func newMarker(types *typeTable, pages *pageManager, overflow *markOverflowStack, cache *markCache) *marker {
	return &marker{types: types, pages: pages, overflow: overflow, cache: cache}
}

// markValue is the scan protocol's steps 1-2 (claim) plus a call into
// the shared step 3-6 logic. v must not already have been claimed by
// this call site; roots and write-barrier-queued values enter here.
func (m *marker) markValue(v Value, depth int) {
	if v == nil {
		return
	}
	hdr := headerOf(v)
	loaded := hdr.load()
	c := Color(loaded & colorMask)
	if c.isMarked() {
		return
	}
	wasOld := c == OLD || c == OLDMARKED
	newColor := MARKED
	if wasOld {
		newColor = OLDMARKED
	}
	newWord := (loaded &^ colorMask) | uintptr(newColor)
	prev := hdr.swapHeader(newWord)
	if Color(prev&colorMask).isMarked() {
		return // lost the race to another agent; it will scan the children
	}
	m.scanClaimed(v, loaded, wasOld, depth)
}

// scanClaimed runs steps 3-6 on an object markValue just won the claim
// race for: step 3's byte accounting runs exactly once here, then
// control passes to enqueueChildren for steps 4-6.
func (m *marker) scanClaimed(v Value, headerWord uintptr, wasOld bool, depth int) {
	m.accountScan(v, wasOld)
	m.enqueueChildren(v, headerWord, wasOld, depth)
}

// enqueueChildren runs steps 4-6 alone: the depth-bounded scan (or
// overflow defer) and the step-6 remset bookkeeping. It does not call
// accountScan, so it is safe to call for an object that was already
// accounted once when it was first claimed and pushed onto the overflow
// stack. spec.md §4.E: "the object has already been claimed; the scan
// only enqueues children".
func (m *marker) enqueueChildren(v Value, headerWord uintptr, wasOld bool, depth int) {
	if depth >= maxMarkDepth {
		m.overflow.push(v)
		return
	}

	td := m.types.lookup(headerWord & typeMask)
	anyYoung := m.scanChildren(v, td, depth)
	if wasOld && anyYoung {
		m.cache.recordRemset(v)
	}
}

// scanOverflowed resumes a pointer popped off the overflow stack: no
// claim step, no re-accounting (accountScan already ran when v was
// first pushed), depth reset to 0.
func (m *marker) scanOverflowed(v Value) {
	hdr := headerOf(v)
	loaded := hdr.load()
	wasOld := Color(loaded & colorMask).old()
	m.enqueueChildren(v, loaded, wasOld, 0)
}

func (c Color) old() bool { return c == OLD || c == OLDMARKED }

// pushChild marks a child pointer and reports whether it was young
// before being claimed, for the parent's step-6 remset bookkeeping.
func (m *marker) pushChild(v Value, depth int) bool {
	if v == nil {
		return false
	}
	wasYoung := Color(headerOf(v).load()&colorMask).young()
	m.markValue(v, depth+1)
	return wasYoung
}

// scanChildren dispatches step 5 of the scan protocol by runtime kind
// and reports whether any child pointer was young (step 6).
func (m *marker) scanChildren(v Value, td TypeDescriptor, depth int) bool {
	if td == nil {
		return false
	}
	any := false
	switch td.Kind() {
	case KindSymbol:
		// Permanent; no children to scan.
	case KindWeakRef:
		// Handled at sweep, not during mark.
	case KindSimpleVector:
		svec := td.(SimpleVectorType)
		n := svec.Len(v)
		for i := 0; i < n; i++ {
			if m.pushChild(svec.Elem(v, i), depth) {
				any = true
			}
		}
	case KindArray:
		arr := td.(ArrayType)
		n := arr.Len(v)
		if n > bigArrayDeferElems && depth >= maxMarkDepth-1 {
			m.overflow.push(v)
			return false
		}
		for i := 0; i < n; i++ {
			if m.pushChild(arr.Elem(v, i), depth) {
				any = true
			}
		}
	case KindModule:
		mod := td.(ModuleType)
		for _, b := range mod.Bindings(v) {
			if m.pushChild(b, depth) {
				any = true
			}
		}
		for _, g := range mod.GlobalRefs(v) {
			if m.pushChild(g, depth) {
				any = true
			}
		}
		for _, u := range mod.Usings(v) {
			if m.pushChild(u, depth) {
				any = true
			}
		}
		if m.pushChild(mod.Parent(v), depth) {
			any = true
		}
	case KindTask:
		task := td.(TaskType)
		for _, f := range task.Fields(v) {
			if m.pushChild(f, depth) {
				any = true
			}
		}
		for _, s := range task.StackValues(v) {
			if m.pushChild(s, depth) {
				any = true
			}
		}
		for _, frame := range task.Frames(v) {
			for _, fv := range frame {
				if m.pushChild(fv, depth) {
					any = true
				}
			}
		}
	default: // KindGeneric
		n := td.NumFields()
		for i := 0; i < n; i++ {
			if !td.FieldIsPtr(i) {
				continue
			}
			child := loadPointer(v, td.FieldOffset(i))
			if m.pushChild(child, depth) {
				any = true
			}
		}
	}
	return any
}

// accountScan is step 3: fold the scanned object's size into the
// agent's young/old scan-byte counters, and for big objects stage the
// record for list reassignment at sync time (spec.md §4.E1).
func (m *marker) accountScan(v Value, wasOld bool) {
	if meta := m.pages.findPageMetadata(unsafe.Pointer(v)); meta != nil {
		sz := int64(meta.objSize)
		if wasOld {
			m.cache.oldScanBytes += sz
		} else {
			m.cache.youngScanBytes += sz
		}
		return
	}
	rec := bigRecordOf(v)
	sz := int64(rec.size())
	if wasOld {
		m.cache.oldScanBytes += sz
	} else {
		m.cache.youngScanBytes += sz
	}
	m.cache.stageBig(rec, wasOld || rec.age() >= promoteAgeBig)
}

// drainOverflow runs spec.md §4.E's "scoped parallel section that
// drains the overflow stack until empty... repeated until it remains
// empty across a join boundary". workers is clamped to at least 1;
// Config.Workers (NEPTUNE_THREADS) sizes the pool (spec.md §5).
func drainOverflow(ctx context.Context, workers int, overflow *markOverflowStack, newAgentCache func() *marker) error {
	if workers < 1 {
		workers = 1
	}
	for {
		if overflow.empty() {
			return nil
		}
		g, _ := errgroup.WithContext(ctx)
		for i := 0; i < workers; i++ {
			agent := newAgentCache()
			g.Go(func() error {
				for {
					v, ok := overflow.pop()
					if !ok {
						return nil
					}
					agent.scanOverflowed(v)
				}
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if overflow.empty() {
			return nil
		}
		// A worker may have pushed new entries after another observed
		// the stack empty; loop for another scoped section.
	}
}
