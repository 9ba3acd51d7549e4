// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Finalizer manager: registration, per-cycle promotion across the
// three finalizer lists, and native-vs-managed dispatch. Grounded on
// spec.md §3/§4.H and the teacher's mfinal.go (SetFinalizer, finq,
// runfinq), generalized from the teacher's single process-wide queue
// drained by one dedicated goroutine to the three-list (per-thread
// finalizers / finalizer_list_marked / to_finalize) protocol this
// generational collector needs so finalizers survive exactly one extra
// cycle before running (spec.md invariant 9).
package gc

import "unsafe"

// finalizerPair is spec.md §3's (object, action) pair. action.Native is
// the Go stand-in for "low bit of the object pointer flags a native finalizer"
// (see SPEC_FULL.md §4.H).
type finalizerPair struct {
	obj    Value
	action FinalizerAction
}

// finalizerManager owns the two process-wide lists spec.md §3 names:
// finalizer_list_marked (finalizers for objects that survived until
// finalization) and to_finalize (scheduled for execution).
type finalizerManager struct {
	markedList []finalizerPair
	toFinalize []finalizerPair
}

// registerFinalizer appends (obj, action) to threadHeap's per-thread
// finalizers list, spec.md §4.H's Registration step.
func (h *perThreadHeap) registerFinalizer(obj Value, action FinalizerAction) {
	h.finalizers = append(h.finalizers, finalizerPair{obj: obj, action: action})
}

// processCycle runs spec.md §4.H's three steps. It must run after the
// initial mark walk finishes and before sweep, while the world is
// stopped. heaps is every thread heap the driver knows about;
// previousWasFull selects whether finalizer_list_marked is also rescanned
// (step 2); markRoot is called on every to_finalize referent for step 3.
// The caller drains the overflow stack after processCycle returns.
func (fm *finalizerManager) processCycle(heaps []*perThreadHeap, previousWasFull bool, markRoot func(Value, int)) []finalizerPair {
	var toRun []finalizerPair

	processList := func(list []finalizerPair) []finalizerPair {
		kept := list[:0]
		for _, pair := range list {
			if pair.obj == nil {
				continue // object pointer null: splice out
			}
			hdr := headerOf(pair.obj)
			switch {
			case !hdr.marked():
				if pair.action.Native {
					toRun = append(toRun, pair) // dispatched immediately by the caller
				} else {
					fm.toFinalize = append(fm.toFinalize, pair)
				}
			case hdr.color() == OLDMARKED:
				fm.markedList = append(fm.markedList, pair)
			default:
				kept = append(kept, pair)
			}
		}
		return kept
	}

	for _, h := range heaps {
		h.finalizers = processList(h.finalizers)
	}
	if previousWasFull {
		// processList appends OLD_MARKED pairs to fm.markedList, so the
		// list being rescanned is detached first and its kept pairs are
		// appended after them.
		rescanned := fm.markedList
		fm.markedList = nil
		kept := processList(rescanned)
		fm.markedList = append(fm.markedList, kept...)
	}

	// Step 3: re-mark every finalizer referent queued this cycle so it
	// survives sweep long enough for its action to run. markRoot is
	// passed an age argument of 0; no age override is applied, and the
	// overflow stack is drained by the caller, not by markRoot.
	for _, pair := range fm.toFinalize {
		markRoot(pair.obj, 0)
	}

	return toRun
}

// dispatch runs every pending to_finalize entry's action exactly once
// and empties the list, spec.md §4.H's "action runs once, pair removed".
// Managed finalizers are run through host.CallFinalizer; native ones
// were already invoked synchronously by processCycle's caller for the
// pairs it returned, so dispatch here only handles entries that made it
// onto toFinalize (i.e. managed ones, since native ones never enter that
// list per spec.md step 1).
func (fm *finalizerManager) dispatch(host Host) {
	pending := fm.toFinalize
	fm.toFinalize = nil
	for _, pair := range pending {
		host.CallFinalizer(pair.action, unsafe.Pointer(pair.obj))
	}
}

// noTaggedPointers is the spec.md §4.H invariant check: "to_finalize
// never contains tagged pointers". Since this module stores obj as an
// untagged Value (a real pointer, never a tagged integer), the check is
// vacuous here; it exists so a debug build can still assert it if a
// future embedding scheme starts tagging object pointers.
func (fm *finalizerManager) noTaggedPointers() bool {
	for _, pair := range fm.toFinalize {
		if uintptr(pair.obj)&0x1 != 0 {
			return false
		}
	}
	return true
}
