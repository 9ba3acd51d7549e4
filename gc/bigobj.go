// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Big-object allocator: objects larger than the largest pool size class
// (2032 bytes) are allocated directly and tracked in intrusive,
// swap-remove lists rather than pool free lists. Grounded on spec.md
// §4.C and the teacher's large-object path in malloc.go (the
// "largeAlloc" case), generalized to the record-prefixed layout spec.md
// §3 describes.
package gc

import (
	"unsafe"

	"github.com/pkg/errors"
)

const cacheLineSize = 64

// bigObjectRecord is the intrusive prefix of every big allocation,
// exactly spec.md §3's layout: packed size+age, owning thread id (-1 =
// shared old-survivor list, -2 = mark-cache staging list), an in_list
// flag, and a slot index into whichever list currently holds it.
type bigObjectRecord struct {
	szOrAge uintptr // size in upper bits, age in low two bits
	tid     int32
	inList  bool
	slot    int
}

const (
	sharedOldList = -1
	stagingList   = -2
	promoteAgeBig = 1
)

var bigRecordSize = alignUp(unsafe.Sizeof(bigObjectRecord{}), wordSize)

func (r *bigObjectRecord) size() uintptr { return r.szOrAge >> 2 }
func (r *bigObjectRecord) age() uintptr  { return r.szOrAge & 0x3 }
func (r *bigObjectRecord) setAge(a uintptr) {
	r.szOrAge = (r.size() << 2) | (a & 0x3)
}

func bigRecordOf(v Value) *bigObjectRecord {
	off := bigRecordSize + wordSize
	return (*bigObjectRecord)(unsafe.Pointer(uintptr(v) - off))
}

func bigHeaderOf(v Value) *header {
	return headerOf(v)
}

// bigValueOf is bigRecordOf's inverse: recovers the payload Value from
// its prefix record, used by sweep.go when it only has the record (e.g.
// while walking a big list) and needs the object's header/value.
func bigValueOf(rec *bigObjectRecord) Value {
	base := uintptr(unsafe.Pointer(rec))
	return Value(unsafe.Pointer(base + bigRecordSize + wordSize))
}

// allocateBig computes the raw allocation size (record + header +
// payload), rounds up to 64-byte cache-line alignment, and hands back
// the payload address after appending the new record to the caller's
// big list.
//
// We stand in for the host's "unmanaged allocator" with a plain Go
// byte slice: per-object OS mmap calls below page granularity are
// neither idiomatic nor efficient, and a pointer into the slice's
// backing array keeps the whole allocation alive for as long as any
// list references the record, which is all the lifetime guarantee this
// path needs.
func (h *perThreadHeap) allocateBig(size uintptr, td TypeDescriptor, types *typeTable) (Value, error) {
	if size == 0 {
		return nil, errors.New("neptune: allocateBig: zero-size allocation")
	}
	raw := bigRecordSize + wordSize + size
	if raw < size {
		return nil, errors.New("neptune: allocateBig: size overflow")
	}
	raw = alignUp(raw, cacheLineSize)

	buf := make([]byte, raw)
	rec := (*bigObjectRecord)(unsafe.Pointer(&buf[0]))
	rec.szOrAge = size << 2
	rec.tid = int32(h.threadID)
	rec.inList = true
	rec.slot = len(h.bigObjects)

	hdr := (*header)(unsafe.Pointer(&buf[bigRecordSize]))
	hdr.init(CLEAN, td, types)

	v := Value(unsafe.Pointer(&buf[bigRecordSize+wordSize]))
	h.bigObjects = append(h.bigObjects, rec)
	return v, nil
}

// unlinkFrom performs an O(1) swap-remove of rec out of list, fixing up
// the swap target's slot. Callers are responsible for holding whatever
// lock guards list (none, for a per-thread list only its owner touches;
// GC.sharedOldMu for the shared old-survivor list).
func unlinkFrom(list *[]*bigObjectRecord, rec *bigObjectRecord) {
	if !rec.inList {
		return
	}
	objs := *list
	last := len(objs) - 1
	objs[rec.slot] = objs[last]
	objs[rec.slot].slot = rec.slot
	*list = objs[:last]
	rec.inList = false
}

// freeBig deallocates a big object. Since the backing store is an
// ordinary Go slice (see allocateBig), "deallocation" is dropping the
// last live reference to it; Go's own allocator reclaims the bytes.
// The function exists, and sweep.go calls it, so the size accounting
// (spec.md's "deallocates with the recorded allocation size") stays
// centralized and auditable even though there's no explicit free call.
func freeBig(rec *bigObjectRecord) uintptr {
	return alignUp(bigRecordSize+wordSize+rec.size(), cacheLineSize)
}
