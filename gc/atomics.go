// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "sync/atomic"

func loadU32(p *uint32) uint32    { return atomic.LoadUint32(p) }
func storeU32(p *uint32, v uint32) { atomic.StoreUint32(p, v) }
func addU64(p *uint64, delta uint64) uint64 { return atomic.AddUint64(p, delta) }
func loadU64(p *uint64) uint64    { return atomic.LoadUint64(p) }
func storeU64(p *uint64, v uint64) { atomic.StoreUint64(p, v) }
