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

// Package replication implements the tiered cache manager and its
// redundancy-aware replication policy engine. The manager owns the tier
// walk order, per-key metadata bookkeeping and the hand-off to external
// disaster recovery collaborators.
package replication

import (
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metadata"
	"github.com/stratacache/strata/pkg/cache/providers"
	"github.com/stratacache/strata/pkg/cache/status"
	"github.com/stratacache/strata/pkg/dr"
	"github.com/stratacache/strata/pkg/errors"
	"github.com/stratacache/strata/pkg/locks"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
	"github.com/stratacache/strata/pkg/observability/metrics"
	"github.com/stratacache/strata/pkg/replication/health"
	"github.com/stratacache/strata/pkg/replication/options"
)

// DefaultExternalTier receives pending replication requests when a target
// cannot be met locally and the policy names no external tier of its own
const DefaultExternalTier = "ipfs"

// Result describes the outcome of an EnsureReplication call. Success is
// true whenever the call completed without an internal error, even when
// the target redundancy was not reached locally; the shortfall is visible
// through Pending, not through failure.
type Result struct {
	Success           bool
	InitialRedundancy int
	FinalRedundancy   int
	TargetRedundancy  int
	Pending           []metadata.PendingRequest
}

// Manager is the tiered cache manager
type Manager struct {
	options *options.Options
	tiers   map[string]cache.Client
	order   []options.TierOptions
	primary string
	meta    *metadata.Store
	locker  locks.NamedLocker
	bridge  *dr.Bridge
	group   singleflight.Group
}

// New returns a Manager over the provided tier clients. The policy is
// validated at construction; an unknown tier name fails here, not at
// first use.
func New(o *options.Options, tiers map[string]cache.Client,
	meta *metadata.Store) (*Manager, error) {
	if o == nil {
		o = options.New()
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, errors.ErrNoTiers
	}
	for _, t := range o.OrderedTiers() {
		if _, ok := tiers[t.Tier]; !ok && !providers.IsExternalName(t.Tier) {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownTier, t.Tier)
		}
	}
	m := &Manager{
		options: o,
		tiers:   tiers,
		meta:    meta,
		locker:  locks.NewNamedLocker(),
		bridge:  dr.NewBridge(),
	}
	m.order = m.walkOrder()
	for _, t := range m.order {
		if _, ok := tiers[t.Tier]; ok {
			m.primary = t.Tier
			break
		}
	}
	if m.primary == "" {
		return nil, errors.ErrNoTiers
	}
	return m, nil
}

// walkOrder returns the tier walk order: the policy's ordered tiers when
// configured, otherwise every constructed tier with memory first
func (m *Manager) walkOrder() []options.TierOptions {
	ordered := m.options.OrderedTiers()
	if len(ordered) > 0 {
		return ordered
	}
	out := make([]options.TierOptions, 0, len(m.tiers))
	if _, ok := m.tiers["memory"]; ok {
		out = append(out, options.TierOptions{Tier: "memory", Redundancy: 1})
	}
	for name := range m.tiers {
		if name == "memory" {
			continue
		}
		out = append(out, options.TierOptions{Tier: name, Redundancy: 1,
			Priority: len(out)})
	}
	return out
}

// Put writes the value to the primary tier and creates or refreshes the
// key's metadata with a redundancy of one. Policy enforcement is explicit
// via EnsureReplication, never implicit on write.
func (m *Manager) Put(key string, value []byte) error {
	if key == "" || key == metadata.SnapshotCacheKey {
		return errors.ErrInvalidKey
	}
	nl, _ := m.locker.Acquire(key)
	defer nl.Release()

	c := m.tiers[m.primary]
	if err := c.Store(key, value); err != nil {
		metrics.ReplicationOperations.WithLabelValues("put", "failed").Inc()
		return err
	}
	e := metadata.NewEntry(key, int64(len(value)), m.primary)
	e.Replication.Policy = string(m.options.Mode)
	e.Replication.TargetRedundancy = m.options.MinRedundancy
	if prev, err := m.meta.GetMetadata(key); err == nil {
		// a rewrite keeps the key's access history, but every copy of the
		// previous value is now stale: drop the replicas from the other
		// tiers and restart redundancy from the primary alone
		e.AddedTime = prev.AddedTime
		e.AccessCount = prev.AccessCount + 1
		for _, tier := range prev.Replication.ReplicatedTiers {
			if tier == m.primary {
				continue
			}
			if c, ok := m.tiers[tier]; ok {
				if err := c.Remove(key); err != nil {
					logger.Warn("stale replica removal failed",
						logging.Pairs{"key": key, "tier": tier, "detail": err.Error()})
				}
			}
		}
		for _, p := range prev.PendingReplication {
			if p.Status == metadata.RequestStatusPending {
				metrics.ReplicationPendingRequests.Dec()
			}
		}
		m.meta.ReplaceMetadata(key, e)
	} else {
		m.meta.UpdateMetadata(key, e)
	}
	metrics.ReplicationOperations.WithLabelValues("put", "success").Inc()
	return nil
}

// Get walks the tiers in priority order and returns the first copy found.
// A hit in a non-primary tier promotes the value into the primary tier so
// subsequent reads are served from the fastest tier holding it.
func (m *Manager) Get(key string) ([]byte, status.LookupStatus, error) {
	for _, t := range m.order {
		c, ok := m.tiers[t.Tier]
		if !ok {
			continue
		}
		data, _, err := c.Retrieve(key)
		if err != nil {
			continue
		}
		m.meta.RecordAccess(key)
		if t.Tier == m.primary {
			return data, status.LookupStatusHit, nil
		}
		m.promote(key, data)
		return data, status.LookupStatusPromoted, nil
	}
	return nil, status.LookupStatusKeyMiss, errors.ErrNotFound
}

// promote copies a non-primary hit into the primary tier; concurrent
// promotions of the same key collapse into one write
func (m *Manager) promote(key string, data []byte) {
	m.group.Do(key, func() (any, error) {
		if err := m.tiers[m.primary].Store(key, data); err != nil {
			logger.Warn("tier promotion failed",
				logging.Pairs{"key": key, "tier": m.primary, "detail": err.Error()})
			return nil, err
		}
		if e, err := m.meta.GetMetadata(key); err == nil {
			e.Replication.AddTier(m.primary)
			m.meta.UpdateMetadata(key, e)
		}
		return nil, nil
	})
}

// GetMetadata returns the key's metadata with replication state recomputed
// from live tier membership. A key no longer present in any tier has its
// metadata removed and reports ErrNotFound, never an orphan record.
func (m *Manager) GetMetadata(key string) (*metadata.Entry, error) {
	e, err := m.meta.GetMetadata(key)
	if err != nil {
		return nil, err
	}
	if m.augment(key, e) == 0 {
		m.meta.Remove(key)
		return nil, errors.ErrNotFound
	}
	return e, nil
}

// BatchGetMetadata returns metadata for each known key with the same live
// replication augmentation as GetMetadata; unknown keys are omitted
func (m *Manager) BatchGetMetadata(keys []string) map[string]*metadata.Entry {
	out := m.meta.BatchGetMetadata(keys...)
	for key, e := range out {
		if m.augment(key, e) == 0 {
			m.meta.Remove(key)
			delete(out, key)
		}
	}
	return out
}

// UpdateMetadata replaces the key's metadata record; callers read, modify
// and write back. The metadata store is the source of truth, so forced
// bookkeeping is visible on the next GetMetadata.
func (m *Manager) UpdateMetadata(key string, e *metadata.Entry) error {
	if key == "" || key == metadata.SnapshotCacheKey {
		return errors.ErrInvalidKey
	}
	nl, _ := m.locker.Acquire(key)
	defer nl.Release()
	m.meta.UpdateMetadata(key, e)
	return nil
}

// augment recomputes the entry's replicated tier set from live Contains
// probes on local tiers. Confirmed external tiers are retained; they have
// no local client to probe. Returns the recomputed redundancy.
func (m *Manager) augment(key string, e *metadata.Entry) int {
	live := make([]string, 0, len(m.tiers))
	for name, c := range m.tiers {
		if c.Contains(key) {
			live = append(live, name)
		}
	}
	for _, t := range e.Replication.ReplicatedTiers {
		if providers.IsExternalName(t) {
			live = append(live, t)
		}
	}
	e.Replication.ReplicatedTiers = nil
	e.Replication.MergeTiers(live)
	e.Replication.CurrentRedundancy = len(e.Replication.ReplicatedTiers)
	if e.Replication.Policy == "" {
		e.Replication.Policy = string(m.options.Mode)
	}
	if e.Replication.TargetRedundancy == 0 {
		e.Replication.TargetRedundancy = m.options.MinRedundancy
	}
	e.Replication.Health = health.ForRedundancy(e.Replication.CurrentRedundancy,
		m.options.MinRedundancy, m.options.MaxRedundancy,
		m.options.CriticalRedundancy)
	return e.Replication.CurrentRedundancy
}

// targetFor derives the effective replication target: a positive per-call
// override wins; otherwise the policy mode decides
func (m *Manager) targetFor(override []int) int {
	if len(override) > 0 && override[0] > 0 {
		return override[0]
	}
	switch m.options.Mode {
	case options.ModeNone:
		return 1
	case options.ModeAll:
		return len(m.order)
	default:
		return m.options.MinRedundancy
	}
}

// EnsureReplication copies the key's value into additional tiers, in
// priority order, until the target redundancy is met or local tiers are
// exhausted. Unreached targets are recorded as pending requests against
// external tiers and forwarded to the disaster recovery bridge when one is
// attached; the call never blocks on external completion. Calls for the
// same key are serialized by a per-key lock.
func (m *Manager) EnsureReplication(key string, targetRedundancy ...int) (*Result, error) {
	if key == "" {
		return nil, errors.ErrInvalidKey
	}
	nl, _ := m.locker.Acquire(key)
	defer nl.Release()

	e, err := m.meta.GetMetadata(key)
	if err != nil {
		metrics.ReplicationOperations.WithLabelValues("ensure", "not_found").Inc()
		return nil, err
	}
	initial := m.augment(key, e)
	if initial == 0 {
		m.meta.Remove(key)
		metrics.ReplicationOperations.WithLabelValues("ensure", "not_found").Inc()
		return nil, errors.ErrNotFound
	}
	target := m.targetFor(targetRedundancy)

	var value []byte
	var fetched bool
	final := initial
	for _, t := range m.order {
		if final >= target {
			break
		}
		c, ok := m.tiers[t.Tier]
		if !ok || e.Replication.HasTier(t.Tier) {
			continue
		}
		if !fetched {
			if value, fetched = m.fetch(key); !fetched {
				m.meta.Remove(key)
				return nil, errors.ErrNotFound
			}
		}
		if err := c.Store(key, value); err != nil {
			// a subset of tiers being unavailable degrades the result,
			// it does not fail the call
			logger.Warn("replication into tier failed",
				logging.Pairs{"key": key, "tier": t.Tier, "detail": err.Error()})
			continue
		}
		e.Replication.AddTier(t.Tier)
		final++
	}

	if final < target {
		m.recordPending(key, e, target)
	}
	e.Replication.CurrentRedundancy = final
	e.Replication.TargetRedundancy = target
	e.Replication.Health = health.ForRedundancy(final, m.options.MinRedundancy,
		m.options.MaxRedundancy, m.options.CriticalRedundancy)
	m.meta.UpdateMetadata(key, e)

	metrics.ReplicationOperations.WithLabelValues("ensure", "success").Inc()
	metrics.ReplicationRedundancy.Observe(float64(final))
	return &Result{
		Success:           true,
		InitialRedundancy: initial,
		FinalRedundancy:   final,
		TargetRedundancy:  target,
		Pending:           append([]metadata.PendingRequest(nil), e.PendingReplication...),
	}, nil
}

// fetch returns the key's value from the highest-priority tier holding it.
// The boolean result distinguishes a miss from a legitimately empty value.
func (m *Manager) fetch(key string) ([]byte, bool) {
	for _, t := range m.order {
		c, ok := m.tiers[t.Tier]
		if !ok {
			continue
		}
		if data, _, err := c.Retrieve(key); err == nil {
			return data, true
		}
	}
	return nil, false
}

// recordPending registers a pending request for each external tier the
// policy names (falling back to the default external tier when it names
// none) and notifies the disaster recovery bridge
func (m *Manager) recordPending(key string, e *metadata.Entry, target int) {
	externals := make([]string, 0, 2)
	for _, t := range m.order {
		if providers.IsExternalName(t.Tier) && !e.Replication.HasTier(t.Tier) {
			externals = append(externals, t.Tier)
		}
	}
	if len(externals) == 0 {
		externals = append(externals, DefaultExternalTier)
	}
	now := time.Now()
	for _, tier := range externals {
		if p := e.PendingFor(tier); p != nil && p.Status == metadata.RequestStatusPending {
			continue
		}
		e.PendingReplication = append(e.PendingReplication, metadata.PendingRequest{
			Tier:        tier,
			RequestedAt: now,
			Status:      metadata.RequestStatusPending,
		})
		metrics.ReplicationPendingRequests.Inc()
		if m.bridge.Integrated() {
			m.bridge.NotifyPending(key, tier, now)
		}
	}
}

// ConfirmReplication marks an external tier's pending request completed,
// adds the tier to the replicated set and pins the entry once a durable
// tier holds a copy. ErrUnknownTier is returned when no pending request
// targets the named tier.
func (m *Manager) ConfirmReplication(key, tier string) error {
	nl, _ := m.locker.Acquire(key)
	defer nl.Release()

	e, err := m.meta.GetMetadata(key)
	if err != nil {
		return err
	}
	p := e.PendingFor(tier)
	if p == nil {
		return errors.ErrUnknownTier
	}
	wasPending := p.Status == metadata.RequestStatusPending
	p.Status = metadata.RequestStatusCompleted
	e.Replication.AddTier(tier)
	e.Replication.CurrentRedundancy = len(e.Replication.ReplicatedTiers)
	if pid, ok := providers.Names[tier]; ok && providers.IsDurable(pid) {
		e.IsPinned = true
	}
	e.Replication.Health = health.ForRedundancy(e.Replication.CurrentRedundancy,
		m.options.MinRedundancy, m.options.MaxRedundancy,
		m.options.CriticalRedundancy)
	m.meta.UpdateMetadata(key, e)
	if wasPending {
		metrics.ReplicationPendingRequests.Dec()
	}
	metrics.ReplicationOperations.WithLabelValues("confirm", "success").Inc()
	return nil
}

// Remove deletes the key from every tier and drops its metadata
func (m *Manager) Remove(key string) error {
	nl, _ := m.locker.Acquire(key)
	defer nl.Release()
	for name, c := range m.tiers {
		if err := c.Remove(key); err != nil {
			logger.Warn("tier removal failed",
				logging.Pairs{"key": key, "tier": name, "detail": err.Error()})
		}
	}
	m.meta.Remove(key)
	metrics.ReplicationOperations.WithLabelValues("remove", "success").Inc()
	return nil
}

// IntegrateWithDisasterRecovery attaches the journal and write-ahead-log
// collaborators and records the attachment in the live policy options.
// Returns true on success or on an identical re-attachment; a conflicting
// second attachment is refused and logged.
func (m *Manager) IntegrateWithDisasterRecovery(journal dr.JournalHandle,
	wal dr.WALHandle) bool {
	if err := m.bridge.Integrate(journal, wal); err != nil {
		logger.Warn("disaster recovery integration refused",
			logging.Pairs{"detail": err.Error()})
		return false
	}
	m.options.DisasterRecovery.Enabled = true
	m.options.DisasterRecovery.WALIntegration = wal != nil
	m.options.DisasterRecovery.JournalIntegration = journal != nil
	logger.Info("disaster recovery integrated",
		logging.Pairs{"wal": wal != nil, "journal": journal != nil})
	return true
}

// Configuration returns the live replication policy options
func (m *Manager) Configuration() *options.Options {
	return m.options
}

// Close closes the metadata store and every tier client
func (m *Manager) Close() error {
	var lastErr error
	if err := m.meta.Close(); err != nil {
		lastErr = err
	}
	for _, c := range m.tiers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
