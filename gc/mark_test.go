// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"context"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarker(g *GC) *marker {
	return newMarker(g.types, g.pages, &markOverflowStack{}, &markCache{})
}

func TestMarkValueClaimsAndSkipsAlreadyMarked(t *testing.T) {
	g, heap, _ := newTestGC(t)
	v := mustAlloc(t, g, heap, int(wordSize), ref1)
	m := newTestMarker(g)

	m.markValue(v, 0)
	assert.True(t, headerOf(v).marked())

	// A second call must not re-enqueue or re-account; there is nothing
	// observable to assert except that it does not panic or double count.
	before := m.cache.youngScanBytes
	m.markValue(v, 0)
	assert.Equal(t, before, m.cache.youngScanBytes)
}

func TestMarkValuePromotesOldColor(t *testing.T) {
	g, heap, _ := newTestGC(t)
	v := mustAlloc(t, g, heap, int(wordSize), ref1)
	headerOf(v).setColor(OLD)

	m := newTestMarker(g)
	m.markValue(v, 0)
	assert.Equal(t, OLDMARKED, headerOf(v).color())
}

func TestScanChildrenGenericDispatch(t *testing.T) {
	g, heap, _ := newTestGC(t)
	child := mustAlloc(t, g, heap, int(wordSize), ref1)
	parent := mustAlloc(t, g, heap, int(wordSize), ref1)
	setChild(parent, 0, child)

	m := newTestMarker(g)
	m.markValue(parent, 0)

	assert.True(t, headerOf(parent).marked())
	assert.True(t, headerOf(child).marked(), "scanning a generic object must mark its pointer fields")
}

func TestScanChildrenSkipsNonPointerFields(t *testing.T) {
	g, heap, _ := newTestGC(t)
	parent := mustAlloc(t, g, heap, int(wordSize), theLeaf)

	m := newTestMarker(g)
	m.markValue(parent, 0)
	assert.True(t, headerOf(parent).marked())
}

func TestScanChildrenSimpleVector(t *testing.T) {
	g, heap, _ := newTestGC(t)
	e0 := mustAlloc(t, g, heap, int(wordSize), ref1)
	e1 := mustAlloc(t, g, heap, int(wordSize), ref1)
	vec := mustAlloc(t, g, heap, arraySize(2), theSvec)
	setArrayLen(vec, 2)
	setArrayElem(vec, 0, e0)
	setArrayElem(vec, 1, e1)

	m := newTestMarker(g)
	m.markValue(vec, 0)

	assert.True(t, headerOf(e0).marked())
	assert.True(t, headerOf(e1).marked())
}

func TestScanChildrenModule(t *testing.T) {
	g, heap, _ := newTestGC(t)
	binding := mustAlloc(t, g, heap, int(wordSize), ref1)
	global := mustAlloc(t, g, heap, int(wordSize), ref1)
	using := mustAlloc(t, g, heap, int(wordSize), ref1)
	parentMod := mustAlloc(t, g, heap, moduleObjectSize, theModule)
	mod := mustAlloc(t, g, heap, moduleObjectSize, theModule)
	setModuleSlot(mod, 0, []Value{binding})
	setModuleSlot(mod, 1, []Value{global})
	setModuleSlot(mod, 2, []Value{using})
	setModuleParent(mod, parentMod)

	m := newTestMarker(g)
	m.markValue(mod, 0)

	assert.True(t, headerOf(binding).marked())
	assert.True(t, headerOf(global).marked())
	assert.True(t, headerOf(using).marked())
	assert.True(t, headerOf(parentMod).marked())
}

func TestScanChildrenTask(t *testing.T) {
	g, heap, _ := newTestGC(t)
	field := mustAlloc(t, g, heap, int(wordSize), ref1)
	stackVal := mustAlloc(t, g, heap, int(wordSize), ref1)
	task := mustAlloc(t, g, heap, taskObjectSize, theTask)
	setModuleSlot(task, 0, []Value{field})
	setModuleSlot(task, 1, []Value{stackVal})

	m := newTestMarker(g)
	m.markValue(task, 0)

	assert.True(t, headerOf(field).marked())
	assert.True(t, headerOf(stackVal).marked())
}

func TestScanChildrenWeakRefDoesNotChaseTarget(t *testing.T) {
	g, heap, _ := newTestGC(t)
	target := mustAlloc(t, g, heap, int(wordSize), ref1)
	ref := mustAlloc(t, g, heap, int(wordSize), theWeakRef)
	theWeakRef.SetTarget(ref, target)

	m := newTestMarker(g)
	m.markValue(ref, 0)

	assert.True(t, headerOf(ref).marked())
	assert.False(t, headerOf(target).marked(), "mark must not treat a weak-ref target as a strong child")
}

// TestArrayDefersAtNearMaxDepth is spec.md §8's boundary behavior: "An
// array pointer-element chain of length 100001 at near-max depth must
// defer into the overflow stack rather than blow recursion."
func TestArrayDefersAtNearMaxDepth(t *testing.T) {
	g, heap, _ := newTestGC(t)
	n := bigArrayDeferElems + 1
	arr := mustAlloc(t, g, heap, arraySize(n), theArray)
	setArrayLen(arr, n)

	overflow := &markOverflowStack{}
	m := newMarker(g.types, g.pages, overflow, &markCache{})

	any := m.scanChildren(arr, theArray, maxMarkDepth-1)
	assert.False(t, any)
	assert.False(t, overflow.empty())
	popped, ok := overflow.pop()
	require.True(t, ok)
	assert.Equal(t, arr, popped)
}

func TestArrayDoesNotDeferAtShallowDepth(t *testing.T) {
	g, heap, _ := newTestGC(t)
	n := bigArrayDeferElems + 1
	arr := mustAlloc(t, g, heap, arraySize(n), theArray)
	setArrayLen(arr, n)
	child := mustAlloc(t, g, heap, int(wordSize), ref1)
	setArrayElem(arr, 0, child)

	overflow := &markOverflowStack{}
	m := newMarker(g.types, g.pages, overflow, &markCache{})

	m.scanChildren(arr, theArray, 0)
	assert.True(t, overflow.empty(), "a long array scanned far from max depth iterates rather than deferring")
	assert.True(t, headerOf(child).marked())
}

func TestAccountScanStagesBigObjects(t *testing.T) {
	g, heap, _ := newTestGC(t)
	big := mustAlloc(t, g, heap, bigObjectCutoff+1, theLeaf)

	m := newTestMarker(g)
	m.accountScan(big, false)

	assert.Equal(t, int64(bigObjectCutoff+1), m.cache.youngScanBytes)
	var staged []stagedBig
	m.cache.stagedBigObjects(func(s stagedBig) { staged = append(staged, s) })
	require.Len(t, staged, 1)
	assert.Same(t, bigRecordOf(big), staged[0].rec)
	assert.False(t, staged[0].toOld)
}

func TestDrainOverflowProcessesPushedEntries(t *testing.T) {
	g, heap, _ := newTestGC(t)
	child := mustAlloc(t, g, heap, int(wordSize), ref1)
	parent := mustAlloc(t, g, heap, int(wordSize), ref1)
	// Claim parent but leave its child scan for the overflow stack, the
	// same state scanChildren's defer path leaves behind.
	headerOf(parent).setColor(MARKED)

	overflow := &markOverflowStack{}
	overflow.push(parent)
	setChild(parent, 0, child)

	err := drainOverflow(context.Background(), 2, overflow, func() *marker {
		return newMarker(g.types, g.pages, overflow, &markCache{})
	})
	require.NoError(t, err)
	assert.True(t, overflow.empty())
	assert.True(t, headerOf(child).marked())
}

func TestMarkOverflowStackPushPopOrder(t *testing.T) {
	s := &markOverflowStack{}
	assert.True(t, s.empty())

	// The stack only ever stores and returns these pointers; it never
	// dereferences them, so arbitrary non-nil sentinels are safe here.
	v1, v2 := Value(unsafe.Pointer(uintptr(1))), Value(unsafe.Pointer(uintptr(2)))
	s.push(v1)
	s.push(v2)
	assert.EqualValues(t, 2, s.approxLen())

	got, ok := s.pop()
	require.True(t, ok)
	assert.Equal(t, v2, got)

	got, ok = s.pop()
	require.True(t, ok)
	assert.Equal(t, v1, got)

	_, ok = s.pop()
	assert.False(t, ok)
}
