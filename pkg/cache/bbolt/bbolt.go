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

// Package bbolt is the bbolt implementation of the Strata disk tier.
// bbolt transactions give the tier its crash safety: a value is either
// fully committed or absent.
package bbolt

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metrics"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
	serr "github.com/stratacache/strata/pkg/errors"
)

// Cache implements the cache.Client interface
var _ cache.Client = &Cache{}

const provider = "bbolt"

// Cache describes a BBolt tier client
type Cache struct {
	Name   string
	Config *options.Options
	dbh    *bbolt.DB

	mtx     sync.Mutex
	access  map[string]accessRecord
	size    int64
	objects int64
}

type accessRecord struct {
	size       int64
	lastAccess time.Time
}

// New returns a new bbolt tier client
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	return &Cache{
		Name:   name,
		Config: cfg,
	}
}

// Connect opens the configured bbolt database, creates the bucket if needed
// and rebuilds the access index from the entries already committed
func (c *Cache) Connect() error {
	var err error
	c.dbh, err = bbolt.Open(c.Config.BBolt.Filename, 0o644,
		&bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	err = c.dbh.Update(func(tx *bbolt.Tx) error {
		_, err2 := tx.CreateBucketIfNotExists([]byte(c.Config.BBolt.Bucket))
		if err2 != nil {
			return fmt.Errorf("create bucket: %w", err2)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.access = make(map[string]accessRecord)
	c.size = 0
	c.objects = 0
	err = c.dbh.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		return b.ForEach(func(k, v []byte) error {
			c.access[string(k)] = accessRecord{size: int64(len(v))}
			c.size += int64(len(v))
			c.objects++
			return nil
		})
	})
	if err != nil {
		return err
	}
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
	return nil
}

// Store places an object in the tier using the specified key, evicting
// least-recently-accessed entries as needed to remain within the budget
func (c *Cache) Store(cacheKey string, data []byte) error {
	if cacheKey == "" {
		return serr.ErrInvalidKey
	}
	size := int64(len(data))
	if size > c.Config.BBolt.MaxSizeBytes {
		return &serr.CapacityError{Key: cacheKey, Size: size,
			Limit: c.Config.BBolt.MaxSizeBytes}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.evictLocked(size, cacheKey); err != nil {
		return err
	}
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		return b.Put([]byte(cacheKey), data)
	})
	if err != nil {
		return serr.NewStorageError(c.Name, "store", err)
	}
	if old, ok := c.access[cacheKey]; ok {
		c.size -= old.size
		c.objects--
	}
	c.access[cacheKey] = accessRecord{size: size, lastAccess: time.Now()}
	c.size += size
	c.objects++
	metrics.ObserveCacheOperation(c.Name, provider, "set", "none", float64(size))
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
	return nil
}

// Retrieve gets data from the tier using the provided key
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	var data []byte
	err := c.dbh.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		v := b.Get([]byte(cacheKey))
		if v == nil {
			return cache.ErrKNF
		}
		// the slice returned by Get is only valid inside the transaction
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		metrics.ObserveCacheMiss(c.Name, provider)
		return nil, status.LookupStatusKeyMiss, err
	}
	c.mtx.Lock()
	if ar, ok := c.access[cacheKey]; ok {
		ar.lastAccess = time.Now()
		c.access[cacheKey] = ar
	}
	c.mtx.Unlock()
	metrics.ObserveCacheOperation(c.Name, provider, "get", "hit", float64(len(data)))
	return data, status.LookupStatusHit, nil
}

// Contains reports whether the key is present without refreshing its access time
func (c *Cache) Contains(cacheKey string) bool {
	var ok bool
	c.dbh.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		ok = b.Get([]byte(cacheKey)) != nil
		return nil
	})
	return ok
}

// Remove deletes the provided keys from the tier
func (c *Cache) Remove(cacheKeys ...string) error {
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		for _, cacheKey := range cacheKeys {
			if err := b.Delete([]byte(cacheKey)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return serr.NewStorageError(c.Name, "remove", err)
	}
	c.mtx.Lock()
	for _, cacheKey := range cacheKeys {
		if ar, ok := c.access[cacheKey]; ok {
			c.size -= ar.size
			c.objects--
			delete(c.access, cacheKey)
			metrics.ObserveCacheDel(c.Name, provider, float64(ar.size))
		}
	}
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
	c.mtx.Unlock()
	return nil
}

// Size returns the tier's resident byte and object counts
func (c *Cache) Size() (int64, int64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.size, c.objects
}

// Configuration returns the tier's configuration
func (c *Cache) Configuration() *options.Options {
	return c.Config
}

func (c *Cache) Close() error {
	if c.dbh == nil {
		return nil
	}
	return c.dbh.Close()
}

// evictLocked removes least-recently-accessed entries until the incoming
// value fits within the byte and object budgets; called under c.mtx
func (c *Cache) evictLocked(incoming int64, incomingKey string) error {
	overBytes := c.size+incoming > c.Config.BBolt.MaxSizeBytes
	overObjects := c.Config.BBolt.MaxSizeObjects > 0 &&
		c.objects+1 > c.Config.BBolt.MaxSizeObjects
	if !overBytes && !overObjects {
		return nil
	}

	type keyed struct {
		key string
		ar  accessRecord
	}
	remainders := make([]keyed, 0, len(c.access))
	for k, ar := range c.access {
		if k == incomingKey {
			continue
		}
		remainders = append(remainders, keyed{k, ar})
	}
	sort.Slice(remainders, func(i, j int) bool {
		return remainders[i].ar.lastAccess.Before(remainders[j].ar.lastAccess)
	})

	removals := make([]string, 0)
	size, objects := c.size, c.objects
	for _, r := range remainders {
		if size+incoming <= c.Config.BBolt.MaxSizeBytes &&
			(c.Config.BBolt.MaxSizeObjects == 0 ||
				objects+1 <= c.Config.BBolt.MaxSizeObjects) {
			break
		}
		removals = append(removals, r.key)
		size -= r.ar.size
		objects--
	}
	if len(removals) == 0 {
		return nil
	}
	err := c.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		for _, k := range removals {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return serr.NewStorageError(c.Name, "evict", err)
	}
	for _, k := range removals {
		if ar, ok := c.access[k]; ok {
			c.size -= ar.size
			c.objects--
			delete(c.access, k)
		}
	}
	metrics.ObserveCacheEvent(c.Name, provider, "eviction", "size_lru")
	return nil
}
