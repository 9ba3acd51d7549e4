// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Collection driver: the Idle→Premark→Mark→Finalize→Sync→Sweep state
// machine, and the quick-vs-full promotion heuristic that decides the
// next cycle's scope and interval. Grounded on spec.md §4.I and the
// teacher's gcStart/gcMarkDone/gcSweep sequencing (src/runtime/mgc.go),
// generalized from the runtime's background-concurrent GC goroutine to
// a synchronous, caller-invoked Collect driven entirely within one
// stop-the-world window (spec.md §5).
package gc

import (
	"context"
	"unsafe"
)

type driverPhase int

const (
	phaseIdle driverPhase = iota
	phasePremark
	phaseMark
	phaseFinalize
	phaseSync
	phaseSweep
)

func (p driverPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phasePremark:
		return "premark"
	case phaseMark:
		return "mark"
	case phaseFinalize:
		return "finalize"
	case phaseSync:
		return "sync"
	case phaseSweep:
		return "sweep"
	default:
		return "invalid-phase"
	}
}

// defaultCollectInterval is spec.md §4.I's DEFAULT_COLLECT_INTERVAL,
// "≈44 MiB".
const defaultCollectInterval int64 = 44 << 20

// maxCollectInterval bounds the growth-ratchet spec.md §4.I describes
// but does not give an exact value for; the teacher's GOGC-driven next_gc
// computation has no fixed ceiling either, so this module picks a round
// multiple (8x) of the default as a conservative cap.
const maxCollectInterval int64 = 8 * defaultCollectInterval

// driverStats is the published, per-cycle counter snapshot spec.md §9
// describes as "a small struct of atomic counters, owned by the driver,
// published after sync and consumed read-only elsewhere".
type driverStats struct {
	liveBytes        int64
	scannedBytes     int64
	permScannedBytes int64
	promotedBytes    int64
	freedThisCycle   int64
	nptr             int64
	actualAllocd     int64
	interval         int64
}

// Collect runs one collection cycle: full forces a full sweep; the
// driver may additionally decide a full sweep is needed on its own
// (spec.md §4.I's promotion conditions). It returns whether the host
// should immediately trigger a second cycle (recollect).
func (gc *GC) Collect(ctx context.Context, full bool) (bool, error) {
	decided := full || gc.shouldPromoteToFull()
	gc.log.Infow("collect start", "requestedFull", full, "decidedFull", decided)

	if err := gc.host.StopTheWorld(ctx); err != nil {
		return false, err
	}
	defer gc.host.StartTheWorld()

	heaps := gc.heapSlice()

	gc.phase = phasePremark
	gc.logPhase(phasePremark)
	gc.premark(heaps)

	gc.phase = phaseMark
	gc.logPhase(phaseMark)
	if err := gc.mark(ctx, heaps); err != nil {
		return false, err
	}

	gc.phase = phaseFinalize
	gc.logPhase(phaseFinalize)
	toRun := gc.finalize(ctx, heaps)
	// Native actions run immediately, still within this stop-the-world
	// window and before Sync/Sweep can free anything: spec.md §4.H step 1
	// ("if native, invoke the action immediately") and §8 scenario 5's
	// "O must not have been freed before F ran". toRun's objects were
	// never added to the re-mark set (only managed ones were), so a
	// native target left for Sweep would be reclaimed before its callback
	// fires.
	for _, pair := range toRun {
		if pair.action.Native && pair.action.NativeFn != nil {
			pair.action.NativeFn(unsafe.Pointer(pair.obj))
		}
	}

	gc.phase = phaseSync
	gc.logPhase(phaseSync)
	gc.syncCaches(heaps)

	gc.phase = phaseSweep
	gc.logPhase(phaseSweep)
	st := gc.sweep(heaps, decided)

	gc.finalizers.dispatch(gc.host)

	recollect := gc.finishCycle(decided, st)
	gc.phase = phaseIdle
	return recollect, nil
}

func (gc *GC) heapSlice() []*perThreadHeap {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	heaps := make([]*perThreadHeap, 0, len(gc.heaps))
	for _, h := range gc.heaps {
		heaps = append(heaps, h)
	}
	return heaps
}

// premark is spec.md §4.I's Premark step.
func (gc *GC) premark(heaps []*perThreadHeap) {
	for _, h := range heaps {
		h.rotateRemset()
	}
	for _, h := range heaps {
		for _, v := range h.lastRemset {
			headerOf(v).setColor(OLDMARKED)
		}
		for i := range h.remBindings {
			headerOf(h.remBindings[i].parent).setColor(OLDMARKED)
		}
	}
}

// mark is spec.md §4.I's Mark step: remset roots, thread/global roots,
// then drain the overflow stack to a fixed point.
func (gc *GC) mark(ctx context.Context, heaps []*perThreadHeap) error {
	overflow := &markOverflowStack{}
	rootAgent := newMarker(gc.types, gc.pages, overflow, &markCache{})

	rootAgent.walkRemsetRoots(heaps)
	rootAgent.walkRoots(gc.host, heaps)

	gc.drainCaches = append(gc.drainCaches[:0], rootAgent.cache)
	return drainOverflow(ctx, gc.config.Workers, overflow, func() *marker {
		c := &markCache{}
		gc.drainCaches = append(gc.drainCaches, c)
		return newMarker(gc.types, gc.pages, overflow, c)
	})
}

// finalize is spec.md §4.I's Finalize step: §4.H processing, re-marking
// finalizer referents through the same overflow machinery mark used.
func (gc *GC) finalize(ctx context.Context, heaps []*perThreadHeap) []finalizerPair {
	overflow := &markOverflowStack{}
	cache := &markCache{}
	agent := newMarker(gc.types, gc.pages, overflow, cache)
	toRun := gc.finalizers.processCycle(heaps, gc.lastWasFull, func(v Value, resetAge int) {
		agent.markValue(v, 0)
	})
	gc.drainCaches = append(gc.drainCaches, cache)
	_ = drainOverflow(ctx, gc.config.Workers, overflow, func() *marker {
		c := &markCache{}
		gc.drainCaches = append(gc.drainCaches, c)
		return newMarker(gc.types, gc.pages, overflow, c)
	})
	return toRun
}

// syncCaches is spec.md §4.E's mark-cache synchronization: fold every
// agent's scanned-byte counters into the driver's published stats, and
// move staged big-object records to their decided destination list.
func (gc *GC) syncCaches(heaps []*perThreadHeap) {
	owners := make(map[int32]*perThreadHeap, len(heaps))
	for _, h := range heaps {
		owners[int32(h.threadID)] = h
	}

	var young, old int64
	for _, c := range gc.drainCaches {
		young += c.youngScanBytes
		old += c.oldScanBytes
		c.stagedBigObjects(func(s stagedBig) {
			owner := owners[s.rec.tid]
			if owner != nil {
				unlinkFrom(&owner.bigObjects, s.rec)
			}
			if s.toOld {
				gc.sharedOldMu.Lock()
				s.rec.tid = sharedOldList
				s.rec.inList = true
				s.rec.slot = len(gc.sharedOldBig)
				gc.sharedOldBig = append(gc.sharedOldBig, s.rec)
				gc.sharedOldMu.Unlock()
			} else if owner != nil {
				s.rec.inList = true
				s.rec.slot = len(owner.bigObjects)
				owner.bigObjects = append(owner.bigObjects, s.rec)
			}
		})
	}
	gc.drainCaches = gc.drainCaches[:0]
	gc.stats.scannedBytes = young
	gc.stats.permScannedBytes = old
}

// sweep is spec.md §4.I's Sweep step, conditioned on quick vs full.
func (gc *GC) sweep(heaps []*perThreadHeap, full bool) sweepStats {
	var total sweepStats

	// Malloc-array and weak-ref sweeps read mark bits, so they run before
	// the pool and big-object sweeps reset survivors to CLEAN/OLD.
	for _, h := range heaps {
		sweepMallocArrays(h)
		sweepWeakRefs(h, gc.host)
	}

	released, poolStats := sweepPoolsSequential(gc.pages, full, func(threadID int32, cls int, h *header) {
		gc.mu.Lock()
		owner := gc.heaps[int(threadID)]
		gc.mu.Unlock()
		if owner != nil {
			owner.pools[cls].push(h)
		}
	})
	total.add(poolStats)
	for _, p := range released {
		_ = gc.pages.freePage(p)
	}

	for _, h := range heaps {
		total.add(sweepBig(h, &gc.sharedOldBig, &gc.sharedOldMu, full))
		rotateRemsets(h, full)
	}

	return total
}

// shouldPromoteToFull implements spec.md §4.I's quick-vs-full decision
// for a cycle the caller did not already force full.
func (gc *GC) shouldPromoteToFull() bool {
	notFreedEnough := gc.stats.freedThisCycle < (gc.stats.actualAllocd*7)/10
	largeFrontier := gc.stats.nptr*int64(wordSize) >= defaultCollectInterval
	promotedEnough := gc.stats.promotedBytes >= gc.stats.interval
	bigPromotion := gc.stats.promotedBytes >= defaultCollectInterval
	return largeFrontier || ((notFreedEnough || promotedEnough) && (bigPromotion || gc.lastWasFull))
}

// finishCycle folds this cycle's sweep stats into the published
// counters, computes the next interval, and reports whether the host
// should immediately recollect.
func (gc *GC) finishCycle(full bool, st sweepStats) bool {
	gc.stats.freedThisCycle = st.freedBytes
	gc.stats.promotedBytes += st.promotedBytes
	gc.stats.liveBytes = st.liveBytes

	if full {
		gc.stats.permScannedBytes = 0
		grow := gc.stats.freedThisCycle < (gc.stats.actualAllocd*7)/10 ||
			gc.stats.nptr*int64(wordSize) >= defaultCollectInterval
		next := gc.interval
		if grow {
			next = int64(float64(gc.interval) * 2.5)
		}
		if next < defaultCollectInterval {
			next = defaultCollectInterval
		}
		if next > maxCollectInterval {
			next = maxCollectInterval
		}
		gc.interval = next
	} else {
		gc.interval = defaultCollectInterval / 2
	}
	gc.stats.actualAllocd = 0
	gc.stats.interval = gc.interval
	gc.stats.promotedBytes = 0
	gc.stats.nptr = 0
	for _, h := range gc.heapSlice() {
		gc.stats.nptr += h.remsetNptr
	}

	gc.lastWasFull = full
	gc.metrics.observeCycle(full, &gc.stats)

	return full && gc.shouldPromoteToFull()
}
