// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"sync"
	"unsafe"
)

// Value is the address of a managed object's payload, i.e. the address
// immediately following its header word. It is the pointer mutators and
// the host pass across the gc boundary.
type Value unsafe.Pointer

// Kind is the runtime type tag the mark engine dispatches the scan
// protocol on (spec.md §4.E step 5).
type Kind int

const (
	KindSymbol Kind = iota
	KindWeakRef
	KindSimpleVector
	KindArray
	KindModule
	KindTask
	KindGeneric
)

// TypeDescriptor is the host's runtime type object. A header's type
// pointer, once unpacked from the type table, resolves to one of these.
// Generic (non-specialized) types are scanned field-by-field using
// FieldIsPtr/FieldOffset, mirroring the host imports svec_data/
// field_isptr/field_offset from spec.md §6.
type TypeDescriptor interface {
	Kind() Kind
	NumFields() int
	FieldIsPtr(i int) bool
	FieldOffset(i int) uintptr
}

// SimpleVectorType is implemented by the KindSimpleVector descriptor.
type SimpleVectorType interface {
	TypeDescriptor
	Len(v Value) int
	Elem(v Value, i int) Value
}

// ArrayStyle enumerates the four allocation styles spec.md §4.E names
// for array objects.
type ArrayStyle int

const (
	ArrayInlined ArrayStyle = iota
	ArrayBuffered
	ArrayMallocBacked
	ArrayOwnedByOther
)

// ArrayType is implemented by the KindArray descriptor.
type ArrayType interface {
	TypeDescriptor
	Style(v Value) ArrayStyle
	Len(v Value) int
	Elem(v Value, i int) Value
}

// ModuleType is implemented by the KindModule descriptor.
type ModuleType interface {
	TypeDescriptor
	Bindings(v Value) []Value
	GlobalRefs(v Value) []Value
	Usings(v Value) []Value
	Parent(v Value) Value
}

// TaskType is implemented by the KindTask descriptor.
type TaskType interface {
	TypeDescriptor
	// Fields returns the task's direct pointer fields in the order
	// spec.md §4.E lists them: parent, tls, consumers, donenotify,
	// exception, backtrace, start, result.
	Fields(v Value) []Value
	StackValues(v Value) []Value
	// Frames returns the pointer-bearing values in each gc-stack frame,
	// outermost first.
	Frames(v Value) [][]Value
}

// WeakRefType is implemented by the KindWeakRef descriptor.
type WeakRefType interface {
	TypeDescriptor
	Target(v Value) Value
	SetTarget(v Value, target Value)
}

// typeTable interns TypeDescriptors into 16-byte-aligned integer ids so
// a header's type pointer stays a single machine word (spec.md §3's
// "low 4 bits are always zero in a valid type pointer").
type typeTable struct {
	mu     sync.Mutex
	byID   []TypeDescriptor
	byType map[TypeDescriptor]uintptr
}

func newTypeTable() *typeTable {
	t := &typeTable{byType: make(map[TypeDescriptor]uintptr)}
	// Reserve index 0 so a zero type pointer is never valid.
	t.byID = append(t.byID, nil)
	return t
}

func (t *typeTable) intern(td TypeDescriptor) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byType[td]; ok {
		return id
	}
	idx := uintptr(len(t.byID))
	t.byID = append(t.byID, td)
	ptr := idx << 4
	t.byType[td] = ptr
	return ptr
}

func (t *typeTable) lookup(typePtr uintptr) TypeDescriptor {
	idx := typePtr >> 4
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx == 0 || int(idx) >= len(t.byID) {
		return nil
	}
	return t.byID[idx]
}

func pointerAt(base Value, offset uintptr) Value {
	return Value(unsafe.Pointer(uintptr(base) + offset))
}

func loadPointer(base Value, offset uintptr) Value {
	return *(*Value)(unsafe.Pointer(uintptr(base) + offset))
}

func storePointer(base Value, offset uintptr, v Value) {
	*(*Value)(unsafe.Pointer(uintptr(base) + offset)) = v
}
