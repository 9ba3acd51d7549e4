// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Collector configuration, including the NEPTUNE_THREADS environment
// variable spec.md §6 defines. Grounded on the teacher's readgogc()
// (src/runtime/mgc.go), which this module's parseThreadsEnv mirrors:
// read, parse, fatal on a non-numeric value.
package gc

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config controls a GC instance's worker pool, logging, metrics, and
// feature flags. The zero value is not directly usable; use
// DefaultConfig or LoadConfig to get one with NEPTUNE_THREADS applied.
type Config struct {
	// Workers is the size of the bounded pool mark/sweep parallelize
	// over (spec.md §5: "size from NEPTUNE_THREADS, default 1").
	Workers int

	// ParallelSweep is accepted but not read: the sweep always runs
	// sequentially, page by page (sweepPoolsSequential), whatever its
	// value.
	ParallelSweep bool

	// RegionPages overrides defaultRegionPageCount; zero means use the
	// spec.md §6 default. Tests shrink this so they don't mmap 2 GiB
	// per region.
	RegionPages int

	Logger  *zap.SugaredLogger
	Metrics *Metrics
}

// DefaultConfig returns a Config with NEPTUNE_THREADS=1 semantics (spec
// says "Absent variable ⇒ 1"), no logger, and no metrics registered.
func DefaultConfig() Config {
	return Config{Workers: 1}
}

// LoadConfig builds a Config from the environment, per spec.md §6:
// NEPTUNE_THREADS must be a positive integer; 0 is a hard error; a
// non-numeric value is a hard error (spec.md §7); an absent variable
// defaults to 1.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	raw, ok := os.LookupEnv("NEPTUNE_THREADS")
	if !ok {
		return cfg, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return cfg, errors.Wrapf(err, "neptune: NEPTUNE_THREADS=%q is not a number", raw)
	}
	if n <= 0 {
		return cfg, errors.Errorf("neptune: NEPTUNE_THREADS=%d must be positive", n)
	}
	cfg.Workers = n
	return cfg, nil
}

func (c *Config) regionPages() int {
	if c.RegionPages > 0 {
		return c.RegionPages
	}
	return defaultRegionPageCount
}

func (c *Config) logger() *zap.SugaredLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop().Sugar()
}
