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

// Package filesystem is the directory-backed disk implementation of the
// Strata tier. Values are written to a temp file and renamed into place so
// a torn write is never served, and the tier's contents survive restarts.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metrics"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
	serr "github.com/stratacache/strata/pkg/errors"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
)

// Cache implements the cache.Client interface
var _ cache.Client = &Cache{}

const provider = "filesystem"

const dataSuffix = ".data"

var keyReplacer = strings.NewReplacer("/", "~1", "\\", "~2", "..", "~3", ".", "~4")

// Cache describes a filesystem tier client
type Cache struct {
	Name   string
	Config *options.Options

	mtx     sync.Mutex
	index   map[string]*fileEntry
	size    int64
	objects int64
}

type fileEntry struct {
	size       int64
	lastAccess time.Time
}

// New returns a new filesystem tier client
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	return &Cache{
		Name:   name,
		Config: cfg,
	}
}

// Connect verifies the cache path is writable and rebuilds the access index
// from the entries already on disk
func (c *Cache) Connect() error {
	if err := makeDirectory(c.Config.Filesystem.CachePath); err != nil {
		return err
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.index = make(map[string]*fileEntry)
	c.size = 0
	c.objects = 0
	entries, err := os.ReadDir(c.Config.Filesystem.CachePath)
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, dataSuffix) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		c.index[name[:len(name)-len(dataSuffix)]] = &fileEntry{
			size:       fi.Size(),
			lastAccess: fi.ModTime(),
		}
		c.size += fi.Size()
		c.objects++
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
	if size > c.Config.Filesystem.MaxSizeBytes {
		return &serr.CapacityError{Key: cacheKey, Size: size,
			Limit: c.Config.Filesystem.MaxSizeBytes}
	}
	if c.Config.Filesystem.UseCompression {
		data = snappy.Encode(nil, data)
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.evictLocked(int64(len(data)), cacheKey)

	if err := c.writeFile(cacheKey, data); err != nil {
		return err
	}
	if old, ok := c.index[c.escape(cacheKey)]; ok {
		c.size -= old.size
		c.objects--
	}
	c.index[c.escape(cacheKey)] = &fileEntry{
		size:       int64(len(data)),
		lastAccess: time.Now(),
	}
	c.size += int64(len(data))
	c.objects++
	metrics.ObserveCacheOperation(c.Name, provider, "set", "none", float64(size))
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
	return nil
}

// writeFile writes data to a temp file in the cache path and renames it
// over the destination, so readers never observe a partial value
func (c *Cache) writeFile(cacheKey string, data []byte) error {
	f, err := os.CreateTemp(c.Config.Filesystem.CachePath, ".strata.*.tmp")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, c.getFileName(cacheKey)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Retrieve looks for an object in the tier and returns it (or an error if
// not found); a hit refreshes the entry's access time
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	data, err := os.ReadFile(c.getFileName(cacheKey))
	if err != nil {
		metrics.ObserveCacheMiss(c.Name, provider)
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	if c.Config.Filesystem.UseCompression {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, status.LookupStatusError, serr.NewStorageError(c.Name, "retrieve", err)
		}
	}
	c.mtx.Lock()
	if fe, ok := c.index[c.escape(cacheKey)]; ok {
		fe.lastAccess = time.Now()
	}
	c.mtx.Unlock()
	metrics.ObserveCacheOperation(c.Name, provider, "get", "hit", float64(len(data)))
	return data, status.LookupStatusHit, nil
}

// Contains reports whether the key is present without refreshing its access time
func (c *Cache) Contains(cacheKey string) bool {
	c.mtx.Lock()
	_, ok := c.index[c.escape(cacheKey)]
	c.mtx.Unlock()
	if ok {
		return true
	}
	_, err := os.Stat(c.getFileName(cacheKey))
	return err == nil
}

// Remove deletes the provided keys from the tier
func (c *Cache) Remove(cacheKeys ...string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, cacheKey := range cacheKeys {
		if err := os.Remove(c.getFileName(cacheKey)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return serr.NewStorageError(c.Name, "remove", err)
		}
		if fe, ok := c.index[c.escape(cacheKey)]; ok {
			c.size -= fe.size
			c.objects--
			delete(c.index, c.escape(cacheKey))
			metrics.ObserveCacheDel(c.Name, provider, float64(fe.size))
		}
	}
	metrics.ObserveCacheSizeChange(c.Name, provider, c.size, c.objects)
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
	return nil
}

// evictLocked removes least-recently-accessed entries until the incoming
// value fits within the byte and object budgets; called under c.mtx
func (c *Cache) evictLocked(incoming int64, incomingKey string) {
	overBytes := c.size+incoming > c.Config.Filesystem.MaxSizeBytes
	overObjects := c.Config.Filesystem.MaxSizeObjects > 0 &&
		c.objects+1 > c.Config.Filesystem.MaxSizeObjects
	if !overBytes && !overObjects {
		return
	}

	type keyed struct {
		key string
		fe  *fileEntry
	}
	remainders := make([]keyed, 0, len(c.index))
	escaped := c.escape(incomingKey)
	for k, fe := range c.index {
		if k == escaped {
			continue
		}
		remainders = append(remainders, keyed{k, fe})
	}
	sort.Slice(remainders, func(i, j int) bool {
		return remainders[i].fe.lastAccess.Before(remainders[j].fe.lastAccess)
	})

	logger.Debug("max cache size reached. evicting least-recently-accessed records",
		logging.Pairs{"tier": c.Name, "cacheSizeBytes": c.size,
			"maxSizeBytes": c.Config.Filesystem.MaxSizeBytes})

	var evictions int
	for _, r := range remainders {
		if c.size+incoming <= c.Config.Filesystem.MaxSizeBytes &&
			(c.Config.Filesystem.MaxSizeObjects == 0 ||
				c.objects+1 <= c.Config.Filesystem.MaxSizeObjects) {
			break
		}
		os.Remove(filepath.Join(c.Config.Filesystem.CachePath, r.key+dataSuffix))
		c.size -= r.fe.size
		c.objects--
		delete(c.index, r.key)
		evictions++
	}
	if evictions > 0 {
		metrics.ObserveCacheEvent(c.Name, provider, "eviction", "size_lru")
	}
}

func (c *Cache) escape(cacheKey string) string {
	return keyReplacer.Replace(cacheKey)
}

func (c *Cache) getFileName(cacheKey string) string {
	return filepath.Join(c.Config.Filesystem.CachePath, c.escape(cacheKey)+dataSuffix)
}

// makeDirectory creates a directory on the filesystem and returns the error
// in the event of a failure
func makeDirectory(path string) error {
	err := os.MkdirAll(path, 0o755)
	if err == nil {
		// verify writability by attempting to touch a test file in the cache path
		tf := filepath.Join(path, ".test."+strconv.FormatInt(time.Now().Unix(), 10))
		err = os.WriteFile(tf, []byte(""), 0o600)
		if err == nil {
			os.Remove(tf)
		}
	}
	if err != nil {
		return fmt.Errorf("[%s] directory is not writeable by strata: %w", path, err)
	}
	return nil
}
