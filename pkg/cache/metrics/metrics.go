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

// Package metrics provides helpers for observing tier operations
package metrics

import (
	"github.com/stratacache/strata/pkg/observability/metrics"
)

// ObserveCacheMiss records a tier miss event
func ObserveCacheMiss(tier, provider string) {
	ObserveCacheOperation(tier, provider, "get", "miss", 0)
}

// ObserveCacheDel records a tier deletion event
func ObserveCacheDel(tier, provider string, count float64) {
	ObserveCacheOperation(tier, provider, "del", "none", count)
}

// ObserveCacheOperation increments counters as tier operations occur
func ObserveCacheOperation(tier, provider, operation, status string, bytes float64) {
	metrics.CacheObjectOperations.WithLabelValues(tier, provider, operation, status).Inc()
	if bytes > 0 {
		metrics.CacheByteOperations.WithLabelValues(tier, provider, operation, status).Add(bytes)
	}
}

// ObserveCacheEvent increments counters as tier events occur
func ObserveCacheEvent(tier, provider, event, reason string) {
	metrics.CacheEvents.WithLabelValues(tier, provider, event, reason).Inc()
}

// ObserveCacheSizeChange adjusts gauges as the tier size changes due to object operations
func ObserveCacheSizeChange(tier, provider string, byteCount, objectCount int64) {
	metrics.CacheObjects.WithLabelValues(tier, provider).Set(float64(objectCount))
	metrics.CacheBytes.WithLabelValues(tier, provider).Set(float64(byteCount))
}
