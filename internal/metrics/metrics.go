// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the process-wide Prometheus collectors shared by the
// buffer cache, free-map allocator, and inode layer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

var (
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "buffercache",
		Name:      "hits_total",
		Help:      "Number of Read/Write calls served by an already-cached frame.",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "buffercache",
		Name:      "misses_total",
		Help:      "Number of Read/Write calls that required loading a sector from disk.",
	})
	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "buffercache",
		Name:      "evictions_total",
		Help:      "Number of dirty frames flushed to disk to make room for a victim.",
	})

	FreeSectors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "filesys",
		Subsystem: "freemap",
		Name:      "free_sectors",
		Help:      "Number of sectors currently marked free in the bitmap.",
	})
	SectorAllocations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "freemap",
		Name:      "allocations_total",
		Help:      "Number of sector runs allocated from the free map.",
	})
	SectorAllocationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "freemap",
		Name:      "allocation_failures_total",
		Help:      "Number of allocation requests that found no contiguous run of free sectors.",
	})
)

// Register adds all collectors in this package to the default registry. It
// is safe to call more than once; registration only happens the first time.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheHits, CacheMisses, CacheEvictions,
			FreeSectors, SectorAllocations, SectorAllocationFailures,
		)
	})
}
