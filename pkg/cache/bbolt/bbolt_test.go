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

package bbolt

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratacache/strata/pkg/cache"
	co "github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	"github.com/stratacache/strata/pkg/cache/status"
)

const cacheKey = "cacheKey"

func newCacheClient(t *testing.T, filename string, maxBytes int64) *Cache {
	t.Helper()
	cfg := co.New()
	cfg.Provider = "bbolt"
	cfg.ProviderID = providers.BBolt
	cfg.BBolt.Filename = filename
	if maxBytes > 0 {
		cfg.BBolt.MaxSizeBytes = maxBytes
	}
	c := New("test", cfg)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCacheStoreRetrieve(t *testing.T) {
	c := newCacheClient(t, filepath.Join(t.TempDir(), "strata.db"), 0)
	defer c.Close()

	if err := c.Store(cacheKey, []byte("data")); err != nil {
		t.Error(err)
	}
	data, ls, err := c.Retrieve(cacheKey)
	if err != nil {
		t.Error(err)
	}
	if ls != status.LookupStatusHit {
		t.Errorf("expected %s got %s", status.LookupStatusHit, ls)
	}
	if !bytes.Equal(data, []byte("data")) {
		t.Errorf("wanted \"data\". got \"%s\"", data)
	}
}

func TestCacheMiss(t *testing.T) {
	c := newCacheClient(t, filepath.Join(t.TempDir(), "strata.db"), 0)
	defer c.Close()

	_, ls, err := c.Retrieve("missing")
	if err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}
	if ls != status.LookupStatusKeyMiss {
		t.Errorf("expected %s got %s", status.LookupStatusKeyMiss, ls)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "strata.db")
	c := newCacheClient(t, filename, 0)
	if err := c.Store(cacheKey, []byte("durable")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := newCacheClient(t, filename, 0)
	defer c2.Close()
	data, _, err := c2.Retrieve(cacheKey)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "durable" {
		t.Errorf("wanted \"durable\" got %q", data)
	}
	bytes, objects := c2.Size()
	if objects != 1 || bytes == 0 {
		t.Errorf("index not rebuilt: %d bytes, %d objects", bytes, objects)
	}
}

func TestCacheRemove(t *testing.T) {
	c := newCacheClient(t, filepath.Join(t.TempDir(), "strata.db"), 0)
	defer c.Close()

	if err := c.Store(cacheKey, []byte("data")); err != nil {
		t.Error(err)
	}
	if err := c.Remove(cacheKey); err != nil {
		t.Error(err)
	}
	if c.Contains(cacheKey) {
		t.Error("expected key to be removed")
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	c := newCacheClient(t, filepath.Join(t.TempDir(), "strata.db"), 100)
	defer c.Close()

	for i := 0; i < 5; i++ {
		if err := c.Store(fmt.Sprintf("key%d", i), make([]byte, 20)); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, err := c.Retrieve("key0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("key5", make([]byte, 20)); err != nil {
		t.Fatal(err)
	}

	bytes, _ := c.Size()
	if bytes > 100 {
		t.Errorf("byte budget exceeded: %d", bytes)
	}
	if !c.Contains("key0") {
		t.Error("expected recently accessed key to survive")
	}
	if c.Contains("key1") {
		t.Error("expected least-recently-accessed key to be evicted")
	}
}
