// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Page manager: allocates fixed-size pages from OS-aligned regions and
// maintains per-page metadata and a per-region allocation bitmap.
//
// Grounded on the teacher's mheap/sysAlloc split (src/runtime/malloc.go,
// mcentral.go) generalized from the runtime's private arena to an
// explicit array of lazily-mmap'd regions, per spec.md §4.B.
package gc

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned to the caller (wrapped) when the
// region-shrink retry ladder in growRegion bottoms out or no region has a
// free page. The collector does not pass it to the host's Fatal hook.
var ErrOutOfMemory = errors.New("neptune: out of memory")

// pageManager owns regionCount regions and lazily backs them with OS
// memory on first use. Allocation is guarded by a single mutex: it is
// not performance-critical compared to pool allocation, which amortizes
// one page allocation over many cell allocations (spec.md §4.B).
type pageManager struct {
	mu             sync.Mutex
	regions        [regionCount]*region
	regionPages    int // pages per region; defaultRegionPageCount unless overridden for tests
	nextEmptyIdx   int
	allocatedPages uint64
}

func newPageManager(regionPages int) *pageManager {
	return &pageManager{regionPages: regionPages}
}

func newDefaultPageManager() *pageManager {
	return newPageManager(defaultRegionPageCount)
}

// allocatePage scans regions in order starting at the last known
// non-full region, lazily mmap'ing the first region with no backing
// memory, then returns the first clear bit in its allocation bitmap.
func (pm *pageManager) allocatePage(pool, thread int32, objSize int32) (*page, *PageMetadata, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i := pm.nextEmptyIdx; i < regionCount; i++ {
		r := pm.regions[i]
		if r == nil {
			r, err := pm.growRegion()
			if err != nil {
				return nil, nil, err
			}
			pm.regions[i] = r
		}
		r = pm.regions[i]
		if idx, ok := r.findClearBit(); ok {
			r.setBit(idx)
			r.meta[idx] = PageMetadata{pool: pool, thread: thread, objSize: objSize, inUse: true}
			r.meta[idx].nFree = pageSize / objSize
			r.lb = idx
			pm.allocatedPages++
			return &r.pages[idx], &r.meta[idx], nil
		}
		// Region full; advance the search hint past it.
		if i == pm.nextEmptyIdx {
			pm.nextEmptyIdx = i + 1
		}
	}
	return nil, nil, errors.Wrap(ErrOutOfMemory, "no region had a free page")
}

// growRegion mmaps a new region, retrying with exponentially smaller
// sizes down to a 1 MiB floor before giving up, per spec.md §7's OOM
// retry ladder.
func (pm *pageManager) growRegion() (*region, error) {
	pages := pm.regionPages
	const floorBytes = 1 << 20
	for {
		r := newRegion(pages)
		if err := r.ensureBacked(); err == nil {
			return r, nil
		}
		if uintptr(pages)*pageSize <= floorBytes {
			return nil, errors.Wrap(ErrOutOfMemory, "region allocation exhausted retry ladder")
		}
		pages /= 2
	}
}

func (r *region) findClearBit() (int, bool) {
	nWords := len(r.allocmap)
	start := r.lb / 32
	for w := start; w < nWords; w++ {
		if r.allocmap[w] != ^uint32(0) {
			for b := 0; b < 32; b++ {
				idx := w*32 + b
				if idx >= r.pageCount {
					break
				}
				if !r.bitSet(idx) {
					return idx, true
				}
			}
		}
	}
	for w := 0; w < start; w++ {
		if r.allocmap[w] != ^uint32(0) {
			for b := 0; b < 32; b++ {
				idx := w*32 + b
				if idx >= r.pageCount {
					break
				}
				if !r.bitSet(idx) {
					return idx, true
				}
			}
		}
	}
	return 0, false
}

// freePage clears the page's bit, drops its age array, updates the
// region's lower-bound hint, and decrements the global page count. The
// page's memory is not decommitted: it stays mapped for reuse.
func (pm *pageManager) freePage(p *page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	r, idx := pm.findRegionContaining(unsafe.Pointer(&(*p)[0]))
	if r == nil {
		return errors.New("neptune: freePage: pointer not in any region")
	}
	r.clearBit(idx)
	r.meta[idx] = PageMetadata{}
	r.lb = idx
	pm.allocatedPages--
	return nil
}

// findPageMetadata walks regions (skipping unbacked ones) and returns
// the metadata for the page containing ptr, or nil if ptr is not inside
// any region this manager owns.
func (pm *pageManager) findPageMetadata(ptr unsafe.Pointer) *PageMetadata {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	r, idx := pm.findRegionContaining(ptr)
	if r == nil {
		return nil
	}
	return &r.meta[idx]
}

func (pm *pageManager) findRegionContaining(ptr unsafe.Pointer) (*region, int) {
	for _, r := range pm.regions {
		if r == nil {
			continue
		}
		if r.contains(ptr) {
			return r, r.pageIndex(ptr)
		}
	}
	return nil, 0
}

// stats returns the current allocated-page count. The driver's metrics
// do not read it; the tests do.
func (pm *pageManager) stats() (allocated uint64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.allocatedPages
}
