// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package gc

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// mmapRegion reserves and commits n bytes of anonymous, zeroed memory
// for a region's backing store, grounded on
// SeleniaProject-Orizon's region_alloc.go ("avoids C standard library
// dependencies by using direct system calls") and the teacher's own
// sysAlloc/sysReserve (src/runtime/malloc.go), which this module cannot
// call directly since those are runtime-internal.
func mmapRegion(n uintptr) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "neptune: mmap region")
	}
	return b, nil
}

func munmapRegion(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return errors.Wrap(unix.Munmap(b), "neptune: munmap region")
}

// madviseDecommit returns a sub-span of a region's backing store to the
// OS without unmapping it. Nothing in this module calls it: freePage
// leaves freed pages mapped.
func madviseDecommit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return errors.Wrap(unix.Madvise(b, unix.MADV_DONTNEED), "neptune: madvise decommit")
}
