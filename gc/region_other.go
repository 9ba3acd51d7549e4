// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package gc

// On non-unix platforms this module falls back to a plain zeroed slice
// for region backing storage: there is no portable anonymous-mmap
// syscall to reach for, and the region manager only needs a stable,
// page-aligned backing array, not a true OS mapping.
func mmapRegion(n uintptr) ([]byte, error) {
	return make([]byte, n), nil
}

func munmapRegion(b []byte) error { return nil }

func madviseDecommit(b []byte) error { return nil }
