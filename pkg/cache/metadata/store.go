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

package metadata

import (
	"sync"
	"time"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metadata/options"
	"github.com/stratacache/strata/pkg/errors"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
)

// SnapshotCacheKey is the reserved key under which the store persists its
// snapshot in the durable tier; user data must never be stored under it
const SnapshotCacheKey = "strata.metadata.snapshot"

// Store is the single source of truth for per-key metadata. All tier
// membership updates are merged under the store's lock, never blindly
// overwritten, so concurrent replication of the same key into different
// tiers cannot lose a tier from the replicated set.
type Store struct {
	name    string
	options *options.Options

	mtx     sync.RWMutex
	entries Snapshot

	flushClient cache.Client
	flusherExit chan bool
}

// NewStore returns a metadata store. When flushClient is non-nil, the store
// reloads its last snapshot from the client and flushes periodically per
// the configured interval until Close is called.
func NewStore(name string, o *options.Options, flushClient cache.Client) *Store {
	if o == nil {
		o = options.New()
	}
	s := &Store{
		name:        name,
		options:     o,
		entries:     make(Snapshot),
		flushClient: flushClient,
	}
	if flushClient != nil {
		s.load()
		if o.FlushInterval > 0 {
			s.flusherExit = make(chan bool)
			go s.flusher()
		}
	}
	return s
}

// GetMetadata returns a copy of the entry for the key, or ErrNotFound
func (s *Store) GetMetadata(key string) (*Entry, error) {
	s.mtx.RLock()
	e, ok := s.entries[key]
	s.mtx.RUnlock()
	if !ok {
		return nil, errors.ErrNotFound
	}
	return e.Clone(), nil
}

// UpdateMetadata replaces the entry for the key. The replicated tier set is
// merged with the existing entry's set rather than overwritten, so a caller
// holding a stale read cannot erase another writer's tier registration.
func (s *Store) UpdateMetadata(key string, entry *Entry) {
	e := entry.Clone()
	e.Key = key
	s.mtx.Lock()
	if prev, ok := s.entries[key]; ok {
		e.Replication.MergeTiers(prev.Replication.ReplicatedTiers)
	}
	e.Replication.CurrentRedundancy = len(e.Replication.ReplicatedTiers)
	s.entries[key] = e
	s.mtx.Unlock()
}

// ReplaceMetadata overwrites the entry for the key without merging the
// previous replicated tier set. This is the rewrite path: copies made of a
// previous value are stale and must not carry over into the new entry's
// redundancy.
func (s *Store) ReplaceMetadata(key string, entry *Entry) {
	e := entry.Clone()
	e.Key = key
	e.Replication.CurrentRedundancy = len(e.Replication.ReplicatedTiers)
	s.mtx.Lock()
	s.entries[key] = e
	s.mtx.Unlock()
}

// BatchGetMetadata returns copies of the entries for the provided keys;
// unknown keys are omitted from the result
func (s *Store) BatchGetMetadata(keys ...string) map[string]*Entry {
	out := make(map[string]*Entry, len(keys))
	s.mtx.RLock()
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out[k] = e.Clone()
		}
	}
	s.mtx.RUnlock()
	return out
}

// RecordAccess updates the entry's access bookkeeping and heat score
func (s *Store) RecordAccess(key string) {
	s.mtx.Lock()
	if e, ok := s.entries[key]; ok {
		e.RecordAccess(time.Now(), s.options.HeatHalfLife)
	}
	s.mtx.Unlock()
}

// RemoveTier drops the named tier from the entry's replicated set and
// returns the remaining redundancy; when no tier holds the key any longer
// the entry itself is removed so no orphan metadata is left behind
func (s *Store) RemoveTier(key, tier string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0
	}
	e.Replication.RemoveTier(tier)
	e.Replication.CurrentRedundancy = len(e.Replication.ReplicatedTiers)
	if e.Replication.CurrentRedundancy == 0 {
		delete(s.entries, key)
		return 0
	}
	return e.Replication.CurrentRedundancy
}

// Remove deletes the entries for the provided keys
func (s *Store) Remove(keys ...string) {
	s.mtx.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mtx.Unlock()
}

// Keys returns all keys currently present in the store
func (s *Store) Keys() []string {
	s.mtx.RLock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	s.mtx.RUnlock()
	return out
}

// Len returns the entry count
func (s *Store) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.entries)
}

// Close stops the background flusher and writes a final snapshot
func (s *Store) Close() error {
	if s.flusherExit != nil {
		close(s.flusherExit)
		s.flusherExit = nil
	}
	if s.flushClient != nil {
		return s.flushOnce()
	}
	return nil
}

func (s *Store) flusher() {
	ticker := time.NewTicker(s.options.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.flusherExit:
			return
		case <-ticker.C:
			if err := s.flushOnce(); err != nil {
				logger.Warn("unable to flush metadata snapshot",
					logging.Pairs{"name": s.name, "detail": err.Error()})
			}
		}
	}
}

func (s *Store) flushOnce() error {
	s.mtx.RLock()
	b, err := s.entries.MarshalMsg(nil)
	s.mtx.RUnlock()
	if err != nil {
		return err
	}
	return s.flushClient.Store(SnapshotCacheKey, b)
}

func (s *Store) load() {
	b, _, err := s.flushClient.Retrieve(SnapshotCacheKey)
	if err != nil {
		if err != cache.ErrKNF {
			logger.Warn("unable to load metadata snapshot",
				logging.Pairs{"name": s.name, "detail": err.Error()})
		}
		return
	}
	snap := make(Snapshot)
	if _, err = snap.UnmarshalMsg(b); err != nil {
		logger.Warn("corrupt metadata snapshot ignored",
			logging.Pairs{"name": s.name, "detail": err.Error()})
		return
	}
	s.mtx.Lock()
	s.entries = snap
	s.mtx.Unlock()
}
