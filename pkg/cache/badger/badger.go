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

// Package badger is the BadgerDB implementation of the Strata disk tier.
// Badger manages its own on-disk compaction; the tier enforces the logical
// byte budget with a least-recently-accessed sweep.
package badger

import (
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metrics"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
	serr "github.com/stratacache/strata/pkg/errors"
)

// Cache implements the cache.Client interface
var _ cache.Client = &Cache{}

const provider = "badger"

// Cache describes a Badger tier client
type Cache struct {
	Name   string
	Config *options.Options
	dbh    *badger.DB

	mtx     sync.Mutex
	access  map[string]accessRecord
	size    int64
	objects int64
}

type accessRecord struct {
	size       int64
	lastAccess time.Time
}

// New returns a new badger tier client
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	return &Cache{
		Name:   name,
		Config: cfg,
	}
}

// Connect opens the configured Badger key-value store and rebuilds the
// access index from the entries already committed
func (c *Cache) Connect() error {
	opts := badger.DefaultOptions(c.Config.Badger.Directory)
	if c.Config.Badger.ValueDirectory != "" {
		opts.ValueDir = c.Config.Badger.ValueDirectory
	}
	opts.Logger = nil

	var err error
	c.dbh, err = badger.Open(opts)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.access = make(map[string]accessRecord)
	c.size = 0
	c.objects = 0
	err = c.dbh.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		it := txn.NewIterator(iopts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			size := item.EstimatedSize()
			c.access[string(item.KeyCopy(nil))] = accessRecord{size: size}
			c.size += size
			c.objects++
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
	return nil
}

// Store places the data into the Badger tier using the provided key,
// evicting least-recently-accessed entries as needed to remain within the
// budget
func (c *Cache) Store(cacheKey string, data []byte) error {
	if cacheKey == "" {
		return serr.ErrInvalidKey
	}
	size := int64(len(data))
	if size > c.Config.Badger.MaxSizeBytes {
		return &serr.CapacityError{Key: cacheKey, Size: size,
			Limit: c.Config.Badger.MaxSizeBytes}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.evictLocked(size, cacheKey); err != nil {
		return err
	}
	err := c.dbh.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cacheKey), data)
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

// Retrieve gets data from the Badger tier using the provided key
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	var data []byte
	err := c.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == nil {
		c.mtx.Lock()
		if ar, ok := c.access[cacheKey]; ok {
			ar.lastAccess = time.Now()
			c.access[cacheKey] = ar
		}
		c.mtx.Unlock()
		metrics.ObserveCacheOperation(c.Name, provider, "get", "hit", float64(len(data)))
		return data, status.LookupStatusHit, nil
	}
	if err == badger.ErrKeyNotFound {
		metrics.ObserveCacheMiss(c.Name, provider)
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	return nil, status.LookupStatusError, serr.NewStorageError(c.Name, "retrieve", err)
}

// Contains reports whether the key is present without refreshing its access time
func (c *Cache) Contains(cacheKey string) bool {
	err := c.dbh.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(cacheKey))
		return err
	})
	return err == nil
}

// Remove deletes the provided keys from the tier
func (c *Cache) Remove(cacheKeys ...string) error {
	err := c.dbh.Update(func(txn *badger.Txn) error {
		for _, cacheKey := range cacheKeys {
			if err := txn.Delete([]byte(cacheKey)); err != nil {
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
	overBytes := c.size+incoming > c.Config.Badger.MaxSizeBytes
	overObjects := c.Config.Badger.MaxSizeObjects > 0 &&
		c.objects+1 > c.Config.Badger.MaxSizeObjects
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
		if size+incoming <= c.Config.Badger.MaxSizeBytes &&
			(c.Config.Badger.MaxSizeObjects == 0 ||
				objects+1 <= c.Config.Badger.MaxSizeObjects) {
			break
		}
		removals = append(removals, r.key)
		size -= r.ar.size
		objects--
	}
	if len(removals) == 0 {
		return nil
	}
	err := c.dbh.Update(func(txn *badger.Txn) error {
		for _, k := range removals {
			if err := txn.Delete([]byte(k)); err != nil {
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
