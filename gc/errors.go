// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Error handling: the teacher calls runtime.throw(); a library can't, so
// errors are wrapped with github.com/pkg/errors for a stack trace. Only
// Alloc's rejected-size check hands its error to Host.Fatal (through
// fatal below). Out-of-memory (ErrOutOfMemory), environment parse errors
// and size-overflow errors are returned to the caller; the collector
// does not pass them to Host.Fatal.
package gc

import "github.com/pkg/errors"

// ErrCorruption is wrapped around any debug-mode invariant violation
// (spec.md §7: mismatched page-metadata object size, uncleared age
// bits, a tagged pointer inside to_finalize, etc).
var ErrCorruption = errors.New("neptune: heap corruption detected")

func (gc *GC) fatal(err error) {
	gc.log.Errorw("fatal collector error", "error", err)
	gc.host.Fatal(err)
}

func (gc *GC) fatalf(format string, args ...interface{}) {
	gc.fatal(errors.Errorf(format, args...))
}
