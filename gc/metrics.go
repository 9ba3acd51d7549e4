// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Collection driver metrics: the "small struct of atomic counters,
// owned by the driver, published after sync and consumed read-only
// elsewhere" spec.md §9 describes, backed by Prometheus gauges and
// counters rather than hand-rolled atomics, since this is exactly a
// prometheus.Registerer's contract. Grounded on the manifests for
// ghjramos-aistore and ClusterCockpit-cc-backend, both of which ship
// github.com/prometheus/client_golang for comparable process-wide
// counters.
package gc

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a set of Prometheus collectors describing the collection
// driver's published counters. Construct one with NewMetrics and
// register it with whatever prometheus.Registerer the host uses;
// passing a nil *Metrics into Config disables metrics entirely.
type Metrics struct {
	HeapLiveBytes     prometheus.Gauge
	ScannedBytes       prometheus.Gauge
	PermScannedBytes   prometheus.Gauge
	PromotedBytes      prometheus.Gauge
	NextIntervalBytes  prometheus.Gauge
	Collections        *prometheus.CounterVec
	BytesFreed         prometheus.Counter
	BytesAllocated     prometheus.Counter
}

// NewMetrics constructs and registers a Metrics set with reg. Pass
// prometheus.NewRegistry() (or prometheus.DefaultRegisterer) from the
// host application.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HeapLiveBytes:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "neptune_heap_live_bytes"}),
		ScannedBytes:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "neptune_scanned_bytes"}),
		PermScannedBytes: prometheus.NewGauge(prometheus.GaugeOpts{Name: "neptune_permanent_scanned_bytes"}),
		PromotedBytes:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "neptune_promoted_bytes"}),
		NextIntervalBytes: prometheus.NewGauge(prometheus.GaugeOpts{Name: "neptune_next_interval_bytes"}),
		Collections: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "neptune_collections_total"}, []string{"full"}),
		BytesFreed:     prometheus.NewCounter(prometheus.CounterOpts{Name: "neptune_bytes_freed_total"}),
		BytesAllocated: prometheus.NewCounter(prometheus.CounterOpts{Name: "neptune_bytes_allocated_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.HeapLiveBytes, m.ScannedBytes, m.PermScannedBytes, m.PromotedBytes,
			m.NextIntervalBytes, m.Collections, m.BytesFreed, m.BytesAllocated)
	}
	return m
}

func (m *Metrics) observeCycle(full bool, d *driverStats) {
	if m == nil {
		return
	}
	m.HeapLiveBytes.Set(float64(d.liveBytes))
	m.ScannedBytes.Set(float64(d.scannedBytes))
	m.PermScannedBytes.Set(float64(d.permScannedBytes))
	m.PromotedBytes.Set(float64(d.promotedBytes))
	m.NextIntervalBytes.Set(float64(d.interval))
	label := "false"
	if full {
		label = "true"
	}
	m.Collections.WithLabelValues(label).Inc()
	m.BytesFreed.Add(float64(d.freedThisCycle))
}

func (m *Metrics) observeAlloc(n int64) {
	if m == nil {
		return
	}
	m.BytesAllocated.Add(float64(n))
}
