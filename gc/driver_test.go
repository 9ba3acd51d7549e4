// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverPhaseString(t *testing.T) {
	cases := map[driverPhase]string{
		phaseIdle:     "idle",
		phasePremark:  "premark",
		phaseMark:     "mark",
		phaseFinalize: "finalize",
		phaseSync:     "sync",
		phaseSweep:    "sweep",
		driverPhase(99): "invalid-phase",
	}
	for phase, want := range cases {
		assert.Equal(t, want, phase.String())
	}
}

// TestPremarkForcesLastRemsetToOldMarked covers spec.md §4.I's Premark
// step: every entry rotated into last_remset (and every still-live
// rem_binding parent) is forced directly to OLD_MARKED ahead of mark.
func TestPremarkForcesLastRemsetToOldMarked(t *testing.T) {
	g, heap, _ := newTestGC(t)
	v := mustAlloc(t, g, heap, int(wordSize), ref1)
	heap.remset = []Value{v}
	b := mustAlloc(t, g, heap, int(wordSize), ref1)
	heap.remBindings = []rembinding{{parent: b}}

	g.premark([]*perThreadHeap{heap})

	assert.Empty(t, heap.remset, "rotateRemset must leave the new remset empty")
	require.Len(t, heap.lastRemset, 1)
	assert.Equal(t, OLDMARKED, headerOf(v).color())
	assert.Equal(t, OLDMARKED, headerOf(b).color())
}

// TestShouldPromoteToFullLargeFrontier covers spec.md §4.I's
// large-frontier promotion condition on its own, independent of the
// freed/promoted thresholds.
func TestShouldPromoteToFullLargeFrontier(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.stats.nptr = defaultCollectInterval/int64(wordSize) + 1
	assert.True(t, g.shouldPromoteToFull())
}

func TestShouldPromoteToFullNotFreedEnoughAndBigPromotion(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.stats.actualAllocd = 1000
	g.stats.freedThisCycle = 100 // well under 70%
	g.stats.promotedBytes = defaultCollectInterval
	assert.True(t, g.shouldPromoteToFull())
}

func TestShouldPromoteToFullFalseWhenNothingTriggers(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.stats.actualAllocd = 1000
	g.stats.freedThisCycle = 900
	g.stats.promotedBytes = 0
	g.stats.nptr = 0
	assert.False(t, g.shouldPromoteToFull())
}

// TestFinishCycleQuickSetsHalfInterval covers spec.md §4.I: a quick
// cycle always resets the interval to half the default, regardless of
// how much was freed.
func TestFinishCycleQuickSetsHalfInterval(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.finishCycle(false, sweepStats{freedBytes: 10, promotedBytes: 5, liveBytes: 1})
	assert.Equal(t, defaultCollectInterval/2, g.interval)
	assert.False(t, g.lastWasFull)
}

// TestFinishCycleFullGrowsIntervalOnPoorYield covers the ×2.5
// growth-ratchet, triggered here through a large remset frontier (nptr);
// the cap at maxCollectInterval is covered by the next test.
func TestFinishCycleFullGrowsIntervalOnPoorYield(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.interval = defaultCollectInterval
	g.stats.nptr = defaultCollectInterval/int64(wordSize) + 1 // forces grow=true
	g.finishCycle(true, sweepStats{freedBytes: 0})
	assert.Greater(t, g.interval, defaultCollectInterval)
	assert.True(t, g.lastWasFull)
}

func TestFinishCycleFullIntervalNeverExceedsCap(t *testing.T) {
	g, _, _ := newTestGC(t)
	g.interval = maxCollectInterval
	g.stats.nptr = defaultCollectInterval/int64(wordSize) + 1
	g.finishCycle(true, sweepStats{})
	assert.Equal(t, maxCollectInterval, g.interval)
}

// TestCollectYoungGenScenario is spec.md §8 scenario 1: a rooted object
// graph with a young unreachable sibling survives a quick collect only
// where reachable.
func TestCollectYoungGenScenario(t *testing.T) {
	g, heap, host := newTestGC(t)
	root := mustAlloc(t, g, heap, int(wordSize), ref1)
	reachable := mustAlloc(t, g, heap, int(wordSize), ref1)
	setChild(root, 0, reachable)
	unreachable := mustAlloc(t, g, heap, int(wordSize), ref1)
	host.GlobalRoots = []Value{root}

	_, err := g.Collect(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, CLEAN, headerOf(root).color())
	assert.Equal(t, CLEAN, headerOf(reachable).color())
	// unreachable's header was zeroed and its cell returned to the free
	// list; re-allocating the same size class should reuse it.
	again := mustAlloc(t, g, heap, int(wordSize), ref1)
	assert.Equal(t, unreachable, again, "the freed cell must come back off the pool free list")
}

// TestCollectPromotionScenario is spec.md §8 scenario 2: an object
// surviving two consecutive quick collections is promoted on the second;
// since neither cycle is a full sweep, the quick path's promotion branch
// leaves it OLD_MARKED rather than plain OLD.
func TestCollectPromotionScenario(t *testing.T) {
	g, heap, host := newTestGC(t)
	v := mustAlloc(t, g, heap, int(wordSize), ref1)
	host.GlobalRoots = []Value{v}

	_, err := g.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, CLEAN, headerOf(v).color())

	_, err = g.Collect(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, OLDMARKED, headerOf(v).color())
}

// TestCollectBigObjectSweepAcrossThreads is spec.md §8 scenario 6: a
// big object allocated on one thread and reachable only from another
// thread's roots survives a full collect, and the thread-local big
// list it ends up on still satisfies the slot invariant.
func TestCollectBigObjectSweepAcrossThreads(t *testing.T) {
	g, heap0, host := newTestGC(t)
	heap1 := g.InitThreadHeap(1)

	big, err := g.AllocBig(heap1, bigObjectCutoff+1, theLeaf)
	require.NoError(t, err)
	host.Threads[0] = []Value{big}
	_ = heap0

	_, err = g.Collect(context.Background(), true)
	require.NoError(t, err)

	found := false
	for _, h := range []*perThreadHeap{heap0, heap1} {
		for _, rec := range h.bigObjects {
			if bigValueOf(rec) == big {
				found = true
				assert.Same(t, rec, h.bigObjects[rec.slot])
			}
		}
	}
	assert.True(t, found, "the big object must survive a full collect when reachable from another thread's roots")
}

func TestSyncCachesFoldsScannedBytesAndStagesBigObjects(t *testing.T) {
	g, heap, _ := newTestGC(t)
	big := mustAlloc(t, g, heap, bigObjectCutoff+1, theLeaf)
	rec := bigRecordOf(big)

	cache := &markCache{}
	cache.youngScanBytes = 100
	cache.oldScanBytes = 50
	cache.stageBig(rec, true)
	g.drainCaches = []*markCache{cache}

	g.syncCaches([]*perThreadHeap{heap})

	assert.EqualValues(t, 100, g.stats.scannedBytes)
	assert.EqualValues(t, 50, g.stats.permScannedBytes)
	assert.Empty(t, heap.bigObjects, "a staged-to-old record must be unlinked from its owner's list")
	require.Len(t, g.sharedOldBig, 1)
	assert.Same(t, rec, g.sharedOldBig[0])
	assert.Empty(t, g.drainCaches)
}
