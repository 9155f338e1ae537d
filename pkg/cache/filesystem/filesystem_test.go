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

package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratacache/strata/pkg/cache"
	co "github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	"github.com/stratacache/strata/pkg/cache/status"
)

const cacheKey = "cacheKey"

func newCacheClient(t *testing.T, path string, compress bool) *Cache {
	t.Helper()
	cfg := co.New()
	cfg.Provider = "filesystem"
	cfg.ProviderID = providers.Filesystem
	cfg.Filesystem.CachePath = path
	cfg.Filesystem.UseCompression = compress
	c := New("test", cfg)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCacheStoreRetrieve(t *testing.T) {
	c := newCacheClient(t, t.TempDir(), false)
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

func TestCacheCompression(t *testing.T) {
	c := newCacheClient(t, t.TempDir(), true)
	payload := bytes.Repeat([]byte("strata"), 256)
	if err := c.Store(cacheKey, payload); err != nil {
		t.Error(err)
	}
	data, _, err := c.Retrieve(cacheKey)
	if err != nil {
		t.Error(err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("decompressed payload mismatch")
	}
	// the on-disk file should be smaller than the repetitive payload
	fi, err := os.Stat(c.getFileName(cacheKey))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() >= int64(len(payload)) {
		t.Errorf("expected compressed file, got %d bytes for a %d byte payload",
			fi.Size(), len(payload))
	}
}

func TestCacheMiss(t *testing.T) {
	c := newCacheClient(t, t.TempDir(), false)
	_, ls, err := c.Retrieve("missing")
	if err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}
	if ls != status.LookupStatusKeyMiss {
		t.Errorf("expected %s got %s", status.LookupStatusKeyMiss, ls)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c := newCacheClient(t, dir, false)
	if err := c.Store(cacheKey, []byte("durable")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2 := newCacheClient(t, dir, false)
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

// a leftover temp file from an interrupted write must never be served
func TestTornWriteNotVisible(t *testing.T) {
	dir := t.TempDir()
	c := newCacheClient(t, dir, false)
	if err := os.WriteFile(filepath.Join(dir, ".strata.12345.tmp"),
		[]byte("torn"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Retrieve(cacheKey); err != cache.ErrKNF {
		t.Errorf("expected %v got %v", cache.ErrKNF, err)
	}
	// a reopen must not index the temp file either
	c2 := newCacheClient(t, dir, false)
	if _, objects := c2.Size(); objects != 0 {
		t.Errorf("expected empty index got %d objects", objects)
	}
}

func TestKeyEscaping(t *testing.T) {
	c := newCacheClient(t, t.TempDir(), false)
	dirty := "a/b\\c../d.e"
	if err := c.Store(dirty, []byte("data")); err != nil {
		t.Fatal(err)
	}
	data, _, err := c.Retrieve(dirty)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "data" {
		t.Errorf("wanted \"data\" got %q", data)
	}
	if !c.Contains(dirty) {
		t.Error("expected escaped key to be found")
	}
}

func TestCacheRemove(t *testing.T) {
	c := newCacheClient(t, t.TempDir(), false)
	if err := c.Store(cacheKey, []byte("data")); err != nil {
		t.Error(err)
	}
	if err := c.Remove(cacheKey); err != nil {
		t.Error(err)
	}
	if c.Contains(cacheKey) {
		t.Error("expected key to be removed")
	}
	// removing an absent key is not an error
	if err := c.Remove("missing"); err != nil {
		t.Error(err)
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	cfg := co.New()
	cfg.Provider = "filesystem"
	cfg.ProviderID = providers.Filesystem
	cfg.Filesystem.CachePath = t.TempDir()
	cfg.Filesystem.MaxSizeBytes = 100
	c := New("test", cfg)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := c.Store(fmt.Sprintf("key%d", i), make([]byte, 20)); err != nil {
			t.Fatal(err)
		}
	}
	// refresh key0 so key1 becomes the eviction candidate
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
