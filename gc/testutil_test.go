// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// leafType is a pointer-free generic object, the smallest fixture for
// exercising the allocator and sweep without any mark-engine traversal.
type leafType struct{}

func (leafType) Kind() Kind           { return KindGeneric }
func (leafType) NumFields() int       { return 0 }
func (leafType) FieldIsPtr(int) bool  { return false }
func (leafType) FieldOffset(int) uintptr { return 0 }

var theLeaf = leafType{}

// refType is a generic object with n consecutive pointer fields, one
// word apart, for building small object graphs in the mark-engine and
// barrier tests.
type refType struct{ n int }

func (r refType) Kind() Kind          { return KindGeneric }
func (r refType) NumFields() int      { return r.n }
func (r refType) FieldIsPtr(int) bool { return true }
func (r refType) FieldOffset(i int) uintptr { return wordSize * uintptr(i) }

var ref1 = refType{n: 1}
var ref2 = refType{n: 2}

func setChild(v Value, i int, child Value) { storePointer(v, wordSize*uintptr(i), child) }
func getChild(v Value, i int) Value        { return loadPointer(v, wordSize*uintptr(i)) }

// weakRefTD is a minimal WeakRefType: the target pointer lives in the
// object's single payload word.
type weakRefTD struct{}

func (weakRefTD) Kind() Kind             { return KindWeakRef }
func (weakRefTD) NumFields() int         { return 0 }
func (weakRefTD) FieldIsPtr(int) bool    { return false }
func (weakRefTD) FieldOffset(int) uintptr { return 0 }
func (weakRefTD) Target(v Value) Value   { return loadPointer(v, 0) }
func (weakRefTD) SetTarget(v Value, target Value) { storePointer(v, 0, target) }

var theWeakRef = weakRefTD{}

// countedArrayType is an ArrayType whose object payload stores its own
// element count in word 0 followed by n pointer-sized elements, so
// tests can build arrays of arbitrary length without a richer host.
type countedArrayType struct{}

func (countedArrayType) Kind() Kind             { return KindArray }
func (countedArrayType) NumFields() int         { return 0 }
func (countedArrayType) FieldIsPtr(int) bool    { return false }
func (countedArrayType) FieldOffset(int) uintptr { return 0 }
func (countedArrayType) Style(Value) ArrayStyle { return ArrayInlined }
func (countedArrayType) Len(v Value) int {
	return int(*(*uintptr)(unsafe.Pointer(v)))
}
func (countedArrayType) Elem(v Value, i int) Value {
	return loadPointer(v, wordSize*uintptr(1+i))
}

var theArray = countedArrayType{}

func setArrayLen(v Value, n int) { *(*uintptr)(unsafe.Pointer(v)) = uintptr(n) }
func setArrayElem(v Value, i int, child Value) {
	storePointer(v, wordSize*uintptr(1+i), child)
}

// arraySize returns the payload byte size an n-element counted array
// needs: one word for the length, n words for elements.
func arraySize(n int) int { return int(wordSize) * (1 + n) }

// svecType is a SimpleVectorType backed by the same counted-array
// layout countedArrayType uses (length in word 0, elements following).
type svecType struct{}

func (svecType) Kind() Kind             { return KindSimpleVector }
func (svecType) NumFields() int         { return 0 }
func (svecType) FieldIsPtr(int) bool    { return false }
func (svecType) FieldOffset(int) uintptr { return 0 }
func (svecType) Len(v Value) int        { return int(*(*uintptr)(unsafe.Pointer(v))) }
func (svecType) Elem(v Value, i int) Value {
	return loadPointer(v, wordSize*uintptr(1+i))
}

var theSvec = svecType{}

// moduleType models a module object as three consecutive pointer-vector
// slots (bindings, global refs, usings) plus a parent pointer in a fourth
// slot, each vector holding up to maxModuleSlot entries; tests only ever populate a
// handful, so a fixed small capacity keeps allocation sizes modest.
const maxModuleSlot = 4

type moduleType struct{}

func (moduleType) Kind() Kind             { return KindModule }
func (moduleType) NumFields() int         { return 0 }
func (moduleType) FieldIsPtr(int) bool    { return false }
func (moduleType) FieldOffset(int) uintptr { return 0 }

func moduleSlotOffset(slot int) uintptr {
	return wordSize * uintptr(slot*(maxModuleSlot+1))
}
func moduleSlotValues(v Value, slot int) []Value {
	base := moduleSlotOffset(slot)
	n := int(uintptr(loadPointer(v, base)))
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i] = loadPointer(v, base+wordSize*uintptr(1+i))
	}
	return out
}
func setModuleSlot(v Value, slot int, values []Value) {
	base := moduleSlotOffset(slot)
	storePointer(v, base, Value(unsafe.Pointer(uintptr(len(values)))))
	for i, c := range values {
		storePointer(v, base+wordSize*uintptr(1+i), c)
	}
}

func (moduleType) Bindings(v Value) []Value   { return moduleSlotValues(v, 0) }
func (moduleType) GlobalRefs(v Value) []Value { return moduleSlotValues(v, 1) }
func (moduleType) Usings(v Value) []Value     { return moduleSlotValues(v, 2) }
func (moduleType) Parent(v Value) Value {
	return loadPointer(v, moduleSlotOffset(3))
}

var theModule = moduleType{}

// moduleObjectSize is the payload size a moduleType object needs: four
// slots of (count word + maxModuleSlot element words), the parent
// pointer reusing slot 3's first word.
const moduleObjectSize = int(wordSize) * 4 * (maxModuleSlot + 1)

func setModuleParent(v Value, parent Value) {
	storePointer(v, moduleSlotOffset(3), parent)
}

// taskType models a task as a fixed Fields vector plus one stack-value
// slot and zero frames, sufficient to exercise KindTask's scan dispatch.
type taskType struct{}

func (taskType) Kind() Kind             { return KindTask }
func (taskType) NumFields() int         { return 0 }
func (taskType) FieldIsPtr(int) bool    { return false }
func (taskType) FieldOffset(int) uintptr { return 0 }
func (taskType) Fields(v Value) []Value {
	return moduleSlotValues(v, 0)
}
func (taskType) StackValues(v Value) []Value {
	return moduleSlotValues(v, 1)
}
func (taskType) Frames(v Value) [][]Value { return nil }

var theTask = taskType{}

const taskObjectSize = int(wordSize) * 2 * (maxModuleSlot + 1)

// newTestGC builds a collector with small, mmap-friendly regions (one
// 16 KiB page class region is 1 MiB rather than the 2 GiB production
// default) bound to a fresh SimpleHost.
func newTestGC(t *testing.T) (*GC, *perThreadHeap, *SimpleHost) {
	t.Helper()
	host := NewSimpleHost()
	cfg := DefaultConfig()
	cfg.RegionPages = 64 // 64 * 16 KiB = 1 MiB per region
	g := InitCollector(host, cfg)
	heap := g.InitThreadHeap(0)
	return g, heap, host
}

func mustAlloc(t *testing.T, g *GC, h *perThreadHeap, size int, td TypeDescriptor) Value {
	t.Helper()
	v, err := g.Alloc(h, size, td)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}
