// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Root enumeration: global host roots, per-thread roots, and the
// remembered-set roots a premark rotation exposes. Grounded on spec.md
// §4.E/§4.I and the teacher's gcMarkRootPrepare/markroot dispatch
// (src/runtime/mgcmark.go), generalized from the runtime's fixed root
// kinds (goroutine stacks, globals, finalizer queue) to the host's
// module/task/symbol-table root set (spec.md §4.E).
package gc

// walkRoots marks, at depth 0, the host's global roots and every known
// thread's thread-local roots. Remset roots are walked separately by
// walkRemsetRoots.
func (m *marker) walkRoots(host Host, heaps []*perThreadHeap) {
	for _, v := range host.Roots() {
		m.markValue(v, 0)
	}
	for _, h := range heaps {
		for _, v := range host.ThreadRoots(h.threadID) {
			m.markValue(v, 0)
		}
	}
}

// walkRemsetRoots walks last_remset (downgraded to OLD_MARKED by
// Premark) as roots, and filters rem_bindings down to entries whose
// parent is still OLD_MARKED, walking those parents as roots too, per
// spec.md §4.I's Mark step.
//
// These objects are already claimed — Premark forced their color to
// OLD_MARKED directly, not through the ordinary CLEAN/OLD→MARKED swap —
// so this can't go through markValue: its claim check would see the
// OLD_MARKED color and treat them as already scanned this cycle,
// silently skipping their children. Each entry's step-3 accounting is
// run exactly once here, then pushed straight onto the overflow stack;
// the parallel drain resumes it through scanOverflowed, which performs
// steps 4-6 only and must not re-run accountScan (spec.md §4.E's
// overflow re-entry point).
func (m *marker) walkRemsetRoots(heaps []*perThreadHeap) {
	for _, h := range heaps {
		for _, v := range h.lastRemset {
			if v == nil {
				continue
			}
			m.accountScan(v, true)
			m.overflow.push(v)
		}
		kept := h.remBindings[:0]
		for _, b := range h.remBindings {
			hdr := headerOf(b.parent)
			if hdr.color() == OLDMARKED {
				m.accountScan(b.parent, true)
				m.overflow.push(b.parent)
				kept = append(kept, b)
			}
		}
		h.remBindings = kept
	}
}
