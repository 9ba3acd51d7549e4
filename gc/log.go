// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Structured logging for the collection driver's phase transitions.
// Silent by default (a zap.NewNop() sugared logger), matching the
// teacher's debug.gctrace being off unless asked for.
package gc

func (gc *GC) logPhase(phase driverPhase, fields ...interface{}) {
	gc.log.Infow("gc phase", append([]interface{}{"phase", phase.String()}, fields...)...)
}
