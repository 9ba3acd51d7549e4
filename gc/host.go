// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Host boundary: the narrow interface spec.md §1/§6 says the collector
// depends on from its embedding language runtime (type system, stack
// walker, safepoints, symbol/module tables, boot-time globals). This
// module expresses that boundary as the Host interface, plus a minimal
// SimpleHost reference implementation used by the test suite and
// cmd/neptunebench.
package gc

import (
	"context"
	"unsafe"
)

// FinalizerAction is the action half of a registered (object, action)
// finalizer pair (spec.md §3/§4.H). Exactly one of NativeFn/ManagedFn is
// set, mirroring the spec's "low bit of the object pointer flags a
// native finalizer" — carried here as an explicit Native flag since Go
// function values can't be tagged the way a raw pointer can (see
// SPEC_FULL.md §4.H).
type FinalizerAction struct {
	Native    bool
	NativeFn  func(unsafe.Pointer)
	ManagedFn func(Value)
}

// Host is the narrow boundary the collector calls back through. A real
// embedding runtime implements every method; SimpleHost below is a
// reference implementation sufficient to drive the collector from
// cmd/neptunebench and from this package's tests.
type Host interface {
	// Roots returns the process-wide root set: host main module,
	// internal main module, empty-any vector, module init order,
	// cfunction list, any-tuple type root, method call cache, and the
	// other global roots spec.md §4.E enumerates.
	Roots() []Value
	// ThreadRoots returns a mutator thread's local roots: current
	// module, current task, root task, in-transit exception/argument,
	// and its stack frame chain flattened to pointer Values.
	ThreadRoots(threadID int) []Value

	// StopTheWorld asks the host to suspend all mutator threads at
	// their next safepoint. The collector trusts but cannot enforce
	// this contract (spec.md §5, §9).
	StopTheWorld(ctx context.Context) error
	StartTheWorld()
	// SafepointPoll is called by the allocation path; a real host uses
	// it to let a suspended thread park until StartTheWorld.
	SafepointPoll(threadID int)

	CallFinalizer(action FinalizerAction, obj unsafe.Pointer)

	// Nothing is the host's "nothing" sentinel value, substituted into
	// a weak ref's value slot when its referent is collected.
	Nothing() Value

	HRTime() int64

	// Fatal reports a process-fatal condition (OOM, corruption,
	// environment parse error, allocator overflow — spec.md §7). The
	// collector never recovers from these itself.
	Fatal(err error)
}

// SimpleHost is a minimal, single-process Host good enough to exercise
// every operation in this package without a real embedding language
// runtime. It has no real mutator threads to suspend, so
// StopTheWorld/StartTheWorld are no-ops: the caller is expected to only
// call into the collector from one goroutine at a time, which is true
// of the test suite and cmd/neptunebench.
type SimpleHost struct {
	GlobalRoots []Value
	Threads     map[int][]Value
	NothingVal  Value
	OnFatal     func(error)
}

func NewSimpleHost() *SimpleHost {
	return &SimpleHost{Threads: make(map[int][]Value)}
}

func (h *SimpleHost) Roots() []Value { return h.GlobalRoots }

func (h *SimpleHost) ThreadRoots(threadID int) []Value { return h.Threads[threadID] }

func (h *SimpleHost) StopTheWorld(ctx context.Context) error { return nil }

func (h *SimpleHost) StartTheWorld() {}

func (h *SimpleHost) SafepointPoll(threadID int) {}

func (h *SimpleHost) CallFinalizer(action FinalizerAction, obj unsafe.Pointer) {
	if action.Native {
		if action.NativeFn != nil {
			action.NativeFn(obj)
		}
		return
	}
	if action.ManagedFn != nil {
		action.ManagedFn(Value(obj))
	}
}

func (h *SimpleHost) Nothing() Value { return h.NothingVal }

func (h *SimpleHost) HRTime() int64 { return nowFunc() }

func (h *SimpleHost) Fatal(err error) {
	if h.OnFatal != nil {
		h.OnFatal(err)
		return
	}
	panic(err)
}
