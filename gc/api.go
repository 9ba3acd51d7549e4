// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Boundary glue: the collector's exposed entry points. Grounded on
// spec.md §4.J's "init_collector / init_thread_heap / alloc / alloc_pool
// / alloc_big / track_malloc_array / queue_value / queue_binding /
// register_finalizer / collect / mark_concurrent" and the teacher's
// mallocgc/newobject pair (src/runtime/malloc.go lineage reflected in
// mcache.go here), generalized to dispatch through a TypeDescriptor
// instead of a compiled-in *_type.
package gc

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GC is one collector instance: the page manager, type table, metrics,
// per-thread heaps, the shared old-survivor big-object list, the
// finalizer manager, and the driver's phase/stat state. The zero value
// is not usable; construct with InitCollector.
type GC struct {
	mu    sync.Mutex
	heaps map[int]*perThreadHeap

	host    Host
	types   *typeTable
	pages   *pageManager
	metrics *Metrics
	log     *zap.SugaredLogger
	config  Config

	sharedOldBig []*bigObjectRecord
	sharedOldMu  sync.Mutex

	finalizers finalizerManager

	phase       driverPhase
	stats       driverStats
	interval    int64
	lastWasFull bool

	// drainCaches accumulates every marking agent's cache across a
	// cycle's root walk, overflow drain, and finalizer re-mark, so
	// syncCaches can fold them all in one pass (spec.md §4.E).
	drainCaches []*markCache
}

// InitCollector constructs a collector bound to host, configured by cfg
// (spec.md §4.J's init_collector(num_workers); num_workers arrives
// through cfg.Workers, sourced from NEPTUNE_THREADS via LoadConfig).
func InitCollector(host Host, cfg Config) *GC {
	return &GC{
		heaps:    make(map[int]*perThreadHeap),
		host:     host,
		types:    newTypeTable(),
		pages:    newPageManager(cfg.regionPages()),
		metrics:  cfg.Metrics,
		log:      cfg.logger(),
		config:   cfg,
		interval: defaultCollectInterval,
	}
}

// InitThreadHeap registers a new mutator thread with the collector and
// returns its per-thread heap (spec.md §4.J's init_thread_heap).
func (gc *GC) InitThreadHeap(threadID int) *perThreadHeap {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	h := newPerThreadHeap(threadID)
	gc.heaps[threadID] = h
	return h
}

// Alloc dispatches to the pool or big-object path by size, spec.md
// §4.J's alloc(gc, size, type_ptr). A request of size zero or less is
// rejected in every build: it is passed to the host's Fatal hook and
// also returned as an error.
func (gc *GC) Alloc(h *perThreadHeap, size int, td TypeDescriptor) (Value, error) {
	if size <= 0 {
		err := errors.Errorf("neptune: Alloc: size %d is not allowed", size)
		gc.fatal(err)
		return nil, err
	}
	if isBig(size) {
		return gc.AllocBig(h, size, td)
	}
	return gc.AllocPool(h, size, td)
}

// AllocPool allocates a pool (small-object) cell, refilling the size
// class's free list from the page manager when empty.
func (gc *GC) AllocPool(h *perThreadHeap, size int, td TypeDescriptor) (Value, error) {
	cls := sizeToClass(size)
	if cls < 0 {
		return nil, errors.Errorf("neptune: AllocPool: size %d exceeds max pool size", size)
	}
	pool := &h.pools[cls]

	// Prefer a cell a previous sweep already freed (tracked in the
	// pool's free list); otherwise bump-allocate the next never-touched
	// cell from one of the pool's pages, growing the pool with a fresh
	// page only when every existing page's capacity is exhausted. This
	// way sweep.go only ever needs to look at cells that were actually
	// handed out at least once (see sweepPage's nextFreeIdx bound).
	hdr := pool.pop()
	if hdr == nil {
		var err error
		hdr, err = gc.bumpAlloc(h, pool, cls)
		if err != nil {
			return nil, err
		}
	}
	hdr.init(CLEAN, td, gc.types)
	// The page now holds a young object, so the next quick sweep visits it.
	if meta := gc.pages.findPageMetadata(unsafe.Pointer(hdr)); meta != nil {
		meta.hasYoung.set(true)
	}
	v := valueOf(hdr)
	gc.metrics.observeAlloc(int64(pool.size))
	h.allocd += int64(pool.size)
	gc.stats.actualAllocd += int64(pool.size)
	return v, nil
}

// bumpAlloc returns the next never-issued cell from one of pool's
// existing pages, calling refillPool for a fresh page only when none
// has room left, per spec.md §4.B/§4.D.
func (gc *GC) bumpAlloc(h *perThreadHeap, pool *sizeClassPool, cls int) (*header, error) {
	stride := int(wordSize) + classSize(cls)
	for i, p := range pool.pages {
		meta := pool.pageMeta[i]
		if meta.nextFreeIdx < meta.nObj {
			idx := meta.nextFreeIdx
			meta.nextFreeIdx++
			return (*header)(cellPointer(p, int(idx)*stride)), nil
		}
	}
	if err := gc.refillPool(h, cls); err != nil {
		return nil, err
	}
	last := len(pool.pages) - 1
	meta := pool.pageMeta[last]
	idx := meta.nextFreeIdx
	meta.nextFreeIdx++
	return (*header)(cellPointer(pool.pages[last], int(idx)*stride)), nil
}

// refillPool requests a fresh page from the page manager and registers
// it on h's pool, per spec.md §4.B/§4.D. Cells are bump-allocated
// lazily by bumpAlloc rather than pre-populated onto the free list.
func (gc *GC) refillPool(h *perThreadHeap, cls int) error {
	stride := int(wordSize) + classSize(cls)
	p, meta, err := gc.pages.allocatePage(int32(cls), int32(h.threadID), int32(stride))
	if err != nil {
		return err
	}
	pool := &h.pools[cls]
	pool.pages = append(pool.pages, p)
	pool.pageMeta = append(pool.pageMeta, meta)

	n := len(*p) / stride
	meta.nObj = int32(n)
	meta.nFree = 0
	meta.nextFreeIdx = 0
	return nil
}

// AllocBig allocates a big object directly, bypassing the pool path,
// spec.md §4.J's alloc_big(gc, size).
func (gc *GC) AllocBig(h *perThreadHeap, size int, td TypeDescriptor) (Value, error) {
	v, err := h.allocateBig(uintptr(size), td, gc.types)
	if err != nil {
		return nil, err
	}
	gc.metrics.observeAlloc(int64(size))
	h.allocd += int64(size)
	gc.stats.actualAllocd += int64(size)
	return v, nil
}

// TrackMallocArray records a malloc-backed array buffer so sweep can
// free it if owner does not survive, spec.md §4.J's
// track_malloc_array(gc, array).
func (gc *GC) TrackMallocArray(h *perThreadHeap, owner Value, buffer []byte) {
	h.mallocArrs = append(h.mallocArrs, mallocArrayEntry{owner: owner, buffer: buffer})
}

// TrackWeakRef records a weak-ref object so sweep can invalidate it
// when its target dies (spec.md's weak-ref lifecycle, §4.F).
func (gc *GC) TrackWeakRef(h *perThreadHeap, ref Value, td WeakRefType) {
	h.weakRefs = append(h.weakRefs, weakRefEntry{ref: ref, td: td})
}

// QueueValue is the write barrier entry point for value stores, spec.md
// §4.J's queue_value(gc, value).
func (gc *GC) QueueValue(h *perThreadHeap, parent Value) {
	h.WriteBarrierValue(parent)
}

// QueueBinding is the write barrier entry point for module bindings,
// spec.md §4.J's queue_binding(gc, binding).
func (gc *GC) QueueBinding(h *perThreadHeap, binding Value) {
	h.WriteBarrierBinding(binding)
}

// RegisterFinalizer is spec.md §4.J's register_finalizer(gc, obj,
// action).
func (gc *GC) RegisterFinalizer(h *perThreadHeap, obj Value, action FinalizerAction) {
	h.registerFinalizer(obj, action)
}

// MarkConcurrent performs only the header atomic claim, with no child
// scan, for a host that wants to mark a value outside the stop-the-world
// window (spec.md §4.J's mark_concurrent(gc, value): "only the header
// atomic operation is performed").
func (gc *GC) MarkConcurrent(v Value) {
	if v == nil {
		return
	}
	hdr := headerOf(v)
	for {
		old := hdr.load()
		c := Color(old & colorMask)
		if c.isMarked() {
			return
		}
		nc := MARKED
		if c == OLD {
			nc = OLDMARKED
		}
		nw := (old &^ colorMask) | uintptr(nc)
		if hdr.word.CompareAndSwap(old, nw) {
			return
		}
	}
}

// Stats is an exported, JSON-friendly snapshot of the driver's published
// per-cycle counters (spec.md §9's "small struct of atomic counters").
type Stats struct {
	LiveBytes        int64 `json:"liveBytes"`
	ScannedBytes     int64 `json:"scannedBytes"`
	PermScannedBytes int64 `json:"permScannedBytes"`
	PromotedBytes    int64 `json:"promotedBytes"`
	FreedThisCycle   int64 `json:"freedThisCycle"`
	Nptr             int64 `json:"nptr"`
	ActualAllocd     int64 `json:"actualAllocd"`
	Interval         int64 `json:"interval"`
}

// Stats returns a snapshot of the most recently published driver
// counters (component K's metrics source of truth besides Prometheus).
func (gc *GC) Stats() Stats {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	s := gc.stats
	return Stats{
		LiveBytes:        s.liveBytes,
		ScannedBytes:     s.scannedBytes,
		PermScannedBytes: s.permScannedBytes,
		PromotedBytes:    s.promotedBytes,
		FreedThisCycle:   s.freedThisCycle,
		Nptr:             s.nptr,
		ActualAllocd:     s.actualAllocd,
		Interval:         s.interval,
	}
}
