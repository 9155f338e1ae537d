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

// Package memory is the memory implementation of the Strata tier, using an
// adaptive replacement (ARC-style) eviction policy so that entries that are
// both recently and frequently accessed survive longer than entries that
// are only one or the other.
package memory

import (
	"sync"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metrics"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
	serr "github.com/stratacache/strata/pkg/errors"
)

// Cache implements the cache.Client interface
var _ cache.Client = &Cache{}

const provider = "memory"

// Cache defines a Memory tier client that conforms to the cache.Client interface
type Cache struct {
	Name   string
	Config *options.Options

	mtx sync.Mutex
	arc *arc
}

// New returns a new memory tier client
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	return &Cache{
		Name:   name,
		Config: cfg,
	}
}

// Connect initializes the Cache
func (c *Cache) Connect() error {
	c.mtx.Lock()
	c.arc = newARC(c.Config.Memory.MaxSizeBytes, c.Config.Memory.MaxSizeObjects)
	c.mtx.Unlock()
	return nil
}

// Store places an object in the cache using the specified key, evicting
// lowest-ranked entries as needed to remain within the tier's byte budget
func (c *Cache) Store(cacheKey string, data []byte) error {
	if cacheKey == "" {
		return serr.ErrInvalidKey
	}
	size := int64(len(data))
	if size > c.Config.Memory.MaxSizeBytes {
		return &serr.CapacityError{Key: cacheKey, Size: size,
			Limit: c.Config.Memory.MaxSizeBytes}
	}
	c.mtx.Lock()
	evicted := c.arc.put(cacheKey, data)
	bytes, objects := c.arc.size, c.arc.objects
	c.mtx.Unlock()
	if evicted > 0 {
		metrics.ObserveCacheEvent(c.Name, provider, "eviction", "size_adaptive")
	}
	metrics.ObserveCacheOperation(c.Name, provider, "set", "none", float64(size))
	metrics.ObserveCacheSizeChange(c.Name, provider, bytes, objects)
	return nil
}

// Retrieve looks for an object in cache and returns it (or an error if not
// found); a hit updates the entry's recency/frequency ranking
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	c.mtx.Lock()
	data, ok := c.arc.get(cacheKey)
	c.mtx.Unlock()
	if !ok {
		metrics.ObserveCacheMiss(c.Name, provider)
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	metrics.ObserveCacheOperation(c.Name, provider, "get", "hit", float64(len(data)))
	return data, status.LookupStatusHit, nil
}

// Contains reports whether the key is resident without disturbing its ranking
func (c *Cache) Contains(cacheKey string) bool {
	c.mtx.Lock()
	ok := c.arc.contains(cacheKey)
	c.mtx.Unlock()
	return ok
}

// Remove deletes the provided keys from the cache
func (c *Cache) Remove(cacheKeys ...string) error {
	c.mtx.Lock()
	for _, k := range cacheKeys {
		if size, ok := c.arc.remove(k); ok {
			metrics.ObserveCacheDel(c.Name, provider, float64(size))
		}
	}
	bytes, objects := c.arc.size, c.arc.objects
	c.mtx.Unlock()
	metrics.ObserveCacheSizeChange(c.Name, provider, bytes, objects)
	return nil
}

// Size returns the tier's resident byte and object counts
func (c *Cache) Size() (int64, int64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.arc.size, c.arc.objects
}

// Configuration returns the tier's configuration
func (c *Cache) Configuration() *options.Options {
	return c.Config
}

// Close discards the cache contents
func (c *Cache) Close() error {
	c.mtx.Lock()
	c.arc = newARC(c.Config.Memory.MaxSizeBytes, c.Config.Memory.MaxSizeObjects)
	c.mtx.Unlock()
	return nil
}
