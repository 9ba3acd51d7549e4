// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import "time"

// nowFunc is a seam so tests can freeze time; it stands in for the
// host's hrtime() import (spec.md §6).
var nowFunc = func() int64 { return time.Now().UnixNano() }
