/*
 * Copyright 2024 The Strata Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics implements prometheus metrics and exposes the metrics HTTP listener
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
)

const (
	metricNamespace      = "strata"
	cacheSubsystem       = "cache"
	replicationSubsystem = "replication"
)

// CacheObjectOperations is a Counter of operations (in # of objects) performed on a Strata tier
var CacheObjectOperations *prometheus.CounterVec

// CacheByteOperations is a Counter of operations (in # of bytes) performed on a Strata tier
var CacheByteOperations *prometheus.CounterVec

// CacheEvents is a Counter of events occurring on a Strata tier
var CacheEvents *prometheus.CounterVec

// CacheObjects is a Gauge representing the number of objects in a Strata tier
var CacheObjects *prometheus.GaugeVec

// CacheBytes is a Gauge representing the number of bytes in a Strata tier
var CacheBytes *prometheus.GaugeVec

// CacheMaxObjects is a Gauge for a tier's max object threshold for triggering an eviction exercise
var CacheMaxObjects *prometheus.GaugeVec

// CacheMaxBytes is a Gauge for a tier's max byte threshold for triggering an eviction exercise
var CacheMaxBytes *prometheus.GaugeVec

// ReplicationOperations is a Counter of replication operations performed by the manager
var ReplicationOperations *prometheus.CounterVec

// ReplicationPendingRequests is a Gauge of replication requests awaiting external confirmation
var ReplicationPendingRequests prometheus.Gauge

// ReplicationRedundancy is a Histogram of the final redundancy reached by replication exercises
var ReplicationRedundancy prometheus.Histogram

func init() {

	CacheObjectOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_objects_total",
			Help:      "Count of object operations performed on a Strata tier",
		},
		[]string{"tier", "provider", "operation", "status"},
	)

	CacheByteOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_bytes_total",
			Help:      "Count of bytes moved by operations performed on a Strata tier",
		},
		[]string{"tier", "provider", "operation", "status"},
	)

	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "events_total",
			Help:      "Count of events occurring on a Strata tier",
		},
		[]string{"tier", "provider", "event", "reason"},
	)

	CacheObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "objects",
			Help:      "Number of objects in a Strata tier",
		},
		[]string{"tier", "provider"},
	)

	CacheBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "bytes",
			Help:      "Number of bytes in a Strata tier",
		},
		[]string{"tier", "provider"},
	)

	CacheMaxObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "max_objects",
			Help:      "Max object threshold for triggering a tier eviction exercise",
		},
		[]string{"tier", "provider"},
	)

	CacheMaxBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "max_bytes",
			Help:      "Max byte threshold for triggering a tier eviction exercise",
		},
		[]string{"tier", "provider"},
	)

	ReplicationOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: replicationSubsystem,
			Name:      "operations_total",
			Help:      "Count of replication operations performed by the Strata manager",
		},
		[]string{"operation", "status"},
	)

	ReplicationPendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: replicationSubsystem,
			Name:      "pending_requests",
			Help:      "Number of replication requests awaiting external confirmation",
		},
	)

	ReplicationRedundancy = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: replicationSubsystem,
			Name:      "final_redundancy",
			Help:      "Final redundancy reached by replication exercises",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	prometheus.MustRegister(
		CacheObjectOperations,
		CacheByteOperations,
		CacheEvents,
		CacheObjects,
		CacheBytes,
		CacheMaxObjects,
		CacheMaxBytes,
		ReplicationOperations,
		ReplicationPendingRequests,
		ReplicationRedundancy,
	)
}

// Handler returns the HTTP handler for the prometheus metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// ListenAndServe serves the metrics endpoint on the provided address until
// the server fails; it is intended to run in its own goroutine
func ListenAndServe(address string) error {
	logger.Info("metrics http endpoint starting",
		logging.Pairs{"address": address, "path": "/metrics"})
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
