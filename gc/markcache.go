// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Mark cache: per-marking-agent scratch state, synchronized into
// per-thread heaps at the end of mark. Grounded on spec.md §3/§4.E and
// the teacher's per-P gcWork cache (src/runtime/mgc.go's gcw field),
// generalized from byte-scanned accounting alone to also stage
// big-object list migrations, since this collector (unlike the
// teacher's) has a generational big-object list to reassign.
//
// Per DESIGN.md's Open Question resolution, this module keeps exactly
// one mark-agent concept: the same markCache type is used by the single
// root agent that walks every heap's roots, by each worker draining the
// overflow stack, and by the finalizer re-mark agent.
package gc

const bigStageRingSize = 1024

type stagedBig struct {
	rec   *bigObjectRecord
	toOld bool // destination: shared old-survivor list vs owner's big list
}

type markCache struct {
	youngScanBytes int64
	oldScanBytes   int64

	bigRing    [bigStageRingSize]stagedBig
	bigRingLen int
	bigOverflow []stagedBig

	remsetBuf []Value
}

func (c *markCache) reset() {
	c.youngScanBytes = 0
	c.oldScanBytes = 0
	c.bigRingLen = 0
	c.bigOverflow = c.bigOverflow[:0]
	c.remsetBuf = c.remsetBuf[:0]
}

func (c *markCache) stageBig(rec *bigObjectRecord, toOld bool) {
	if c.bigRingLen < bigStageRingSize {
		c.bigRing[c.bigRingLen] = stagedBig{rec: rec, toOld: toOld}
		c.bigRingLen++
		return
	}
	c.bigOverflow = append(c.bigOverflow, stagedBig{rec: rec, toOld: toOld})
}

func (c *markCache) stagedBigObjects(yield func(stagedBig)) {
	for i := 0; i < c.bigRingLen; i++ {
		yield(c.bigRing[i])
	}
	for _, s := range c.bigOverflow {
		yield(s)
	}
}

func (c *markCache) recordRemset(v Value) {
	c.remsetBuf = append(c.remsetBuf, v)
}
