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

package replication

import (
	"bytes"
	goerrors "errors"
	"testing"
	"time"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/filesystem"
	"github.com/stratacache/strata/pkg/cache/memory"
	"github.com/stratacache/strata/pkg/cache/metadata"
	mo "github.com/stratacache/strata/pkg/cache/metadata/options"
	co "github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	"github.com/stratacache/strata/pkg/cache/status"
	"github.com/stratacache/strata/pkg/errors"
	"github.com/stratacache/strata/pkg/replication/health"
	ro "github.com/stratacache/strata/pkg/replication/options"
)

func testTiers(t *testing.T) map[string]cache.Client {
	t.Helper()
	mcfg := co.New()
	mc := memory.New("memory", mcfg)
	if err := mc.Connect(); err != nil {
		t.Fatal(err)
	}
	fcfg := co.New()
	fcfg.Provider = "filesystem"
	fcfg.ProviderID = providers.Filesystem
	fcfg.Filesystem.CachePath = t.TempDir()
	fc := filesystem.New("filesystem", fcfg)
	if err := fc.Connect(); err != nil {
		t.Fatal(err)
	}
	return map[string]cache.Client{"memory": mc, "filesystem": fc}
}

func testManager(t *testing.T, policy *ro.Options) *Manager {
	t.Helper()
	if policy == nil {
		policy = ro.New()
		policy.Backends = []string{"memory", "filesystem"}
	}
	m, err := New(policy, testTiers(t), metadata.NewStore("test", mo.New(), nil))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPutCreatesMetadata(t *testing.T) {
	policy := ro.New()
	policy.MinRedundancy = 2
	policy.MaxRedundancy = 3
	policy.CriticalRedundancy = 4
	policy.Backends = []string{"memory", "filesystem"}
	m := testManager(t, policy)

	if err := m.Put("cid1", []byte("x")); err != nil {
		t.Fatal(err)
	}
	e, err := m.GetMetadata("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Replication.CurrentRedundancy != 1 {
		t.Errorf("expected redundancy 1 got %d", e.Replication.CurrentRedundancy)
	}
	if len(e.Replication.ReplicatedTiers) != 1 ||
		e.Replication.ReplicatedTiers[0] != "memory" {
		t.Errorf("expected tiers [memory] got %v", e.Replication.ReplicatedTiers)
	}
}

func TestEnsureReplicationDefault(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r, err := m.EnsureReplication("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Success {
		t.Error("expected success")
	}
	if r.InitialRedundancy != 1 {
		t.Errorf("expected initial redundancy 1 got %d", r.InitialRedundancy)
	}
	if r.FinalRedundancy < 2 {
		t.Errorf("expected final redundancy >= 2 got %d", r.FinalRedundancy)
	}
	if !m.tiers["filesystem"].Contains("cid1") {
		t.Error("expected filesystem tier to hold the key after replication")
	}
}

func TestEnsureReplicationExplicitTarget(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r, err := m.EnsureReplication("cid1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if r.TargetRedundancy != 2 {
		t.Errorf("expected target 2 got %d", r.TargetRedundancy)
	}
	if r.FinalRedundancy < 2 {
		t.Errorf("expected final >= 2 got %d", r.FinalRedundancy)
	}
}

func TestEnsureReplicationIdempotent(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r1, err := m.EnsureReplication("cid1")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := m.EnsureReplication("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if r2.InitialRedundancy != r1.FinalRedundancy {
		t.Errorf("expected second call to start at %d got %d",
			r1.FinalRedundancy, r2.InitialRedundancy)
	}
	if r2.FinalRedundancy != r1.FinalRedundancy {
		t.Errorf("expected stable redundancy, got %d then %d",
			r1.FinalRedundancy, r2.FinalRedundancy)
	}
	e, _ := m.GetMetadata("cid1")
	if e.Replication.CurrentRedundancy != len(e.Replication.ReplicatedTiers) {
		t.Error("redundancy count does not match replicated tier set")
	}
}

// rewriting a key restarts redundancy from the primary tier so a stale
// disk copy of the previous value is neither counted nor served
func TestPutRewriteInvalidatesReplicas(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnsureReplication("cid1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("cid1", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if m.tiers["filesystem"].Contains("cid1") {
		t.Error("expected the stale filesystem copy removed on rewrite")
	}
	e, err := m.GetMetadata("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Replication.CurrentRedundancy != 1 {
		t.Errorf("expected redundancy 1 after rewrite got %d",
			e.Replication.CurrentRedundancy)
	}
	r, err := m.EnsureReplication("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if r.InitialRedundancy != 1 || r.FinalRedundancy < 2 {
		t.Errorf("expected re-replication from 1, got initial=%d final=%d",
			r.InitialRedundancy, r.FinalRedundancy)
	}
	// every tier now serves the new value, even after primary eviction
	if err = m.tiers["memory"].Remove("cid1"); err != nil {
		t.Fatal(err)
	}
	data, _, err := m.Get("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("v2")) {
		t.Errorf("wanted \"v2\" got %q", data)
	}
}

func TestRoundTripEmptyValue(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("empty", []byte{}); err != nil {
		t.Fatal(err)
	}
	data, ls, err := m.Get("empty")
	if err != nil {
		t.Fatal(err)
	}
	if ls != status.LookupStatusHit {
		t.Errorf("expected %s got %s", status.LookupStatusHit, ls)
	}
	if len(data) != 0 {
		t.Errorf("expected empty value got %d bytes", len(data))
	}
	r, err := m.EnsureReplication("empty")
	if err != nil {
		t.Fatal(err)
	}
	if r.FinalRedundancy < 2 {
		t.Errorf("expected the empty value replicated, got final %d",
			r.FinalRedundancy)
	}
	// the empty value survives primary eviction
	if err = m.tiers["memory"].Remove("empty"); err != nil {
		t.Fatal(err)
	}
	if data, _, err = m.Get("empty"); err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty value from disk got %d bytes", len(data))
	}
}

func TestRoundTripValueAtTierCapacity(t *testing.T) {
	mcfg := co.New()
	mcfg.Memory.MaxSizeBytes = 64
	mc := memory.New("memory", mcfg)
	if err := mc.Connect(); err != nil {
		t.Fatal(err)
	}
	fcfg := co.New()
	fcfg.Provider = "filesystem"
	fcfg.ProviderID = providers.Filesystem
	fcfg.Filesystem.CachePath = t.TempDir()
	fc := filesystem.New("filesystem", fcfg)
	if err := fc.Connect(); err != nil {
		t.Fatal(err)
	}
	policy := ro.New()
	policy.Backends = []string{"memory", "filesystem"}
	m, err := New(policy, map[string]cache.Client{"memory": mc, "filesystem": fc},
		metadata.NewStore("test", mo.New(), nil))
	if err != nil {
		t.Fatal(err)
	}

	value := make([]byte, 64)
	if err = m.Put("cid1", value); err != nil {
		t.Fatal(err)
	}
	data, _, err := m.Get("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, value) {
		t.Error("value at the primary tier's byte budget should round trip")
	}
	if _, err = m.EnsureReplication("cid1"); err != nil {
		t.Fatal(err)
	}
	if !m.tiers["filesystem"].Contains("cid1") {
		t.Error("expected the budget-sized value replicated to disk")
	}
}

func TestNewRejectsUnknownTier(t *testing.T) {
	policy := ro.New()
	policy.Backends = []string{"memory", "quantum"}
	_, err := New(policy, testTiers(t), metadata.NewStore("test", mo.New(), nil))
	if !goerrors.Is(err, errors.ErrUnknownTier) {
		t.Errorf("expected %v got %v", errors.ErrUnknownTier, err)
	}
}

func TestEnsureReplicationUnknownKey(t *testing.T) {
	m := testManager(t, nil)
	if _, err := m.EnsureReplication("nope"); err != errors.ErrNotFound {
		t.Errorf("expected %v got %v", errors.ErrNotFound, err)
	}
}

func TestEnsureReplicationUnmetTargetPends(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	// only two local tiers exist; a target of five cannot be met locally
	r, err := m.EnsureReplication("cid1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Success {
		t.Error("an unmet target is a degraded success, not a failure")
	}
	if len(r.Pending) == 0 {
		t.Error("expected pending replication to be recorded")
	}
	for _, p := range r.Pending {
		if p.Status != metadata.RequestStatusPending {
			t.Errorf("expected pending status got %s", p.Status)
		}
		if p.RequestedAt.IsZero() {
			t.Error("expected a requested_at timestamp")
		}
	}
}

func TestEnsureReplicationExternalTierPends(t *testing.T) {
	policy := ro.New()
	policy.Tiers = []ro.TierOptions{
		{Tier: "memory", Redundancy: 1, Priority: 0},
		{Tier: "filesystem", Redundancy: 1, Priority: 1},
		{Tier: "ipfs", Redundancy: 1, Priority: 2},
	}
	m, err := New(policy, testTiers(t), metadata.NewStore("test", mo.New(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if err = m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r, err := m.EnsureReplication("cid1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if r.FinalRedundancy != 2 {
		t.Errorf("expected final redundancy 2 got %d", r.FinalRedundancy)
	}
	if len(r.Pending) != 1 || r.Pending[0].Tier != "ipfs" {
		t.Errorf("expected one pending request for ipfs, got %v", r.Pending)
	}
}

func TestConfirmReplication(t *testing.T) {
	policy := ro.New()
	policy.Tiers = []ro.TierOptions{
		{Tier: "memory", Redundancy: 1, Priority: 0},
		{Tier: "filesystem", Redundancy: 1, Priority: 1},
		{Tier: "ipfs", Redundancy: 1, Priority: 2},
	}
	m, err := New(policy, testTiers(t), metadata.NewStore("test", mo.New(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if err = m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err = m.EnsureReplication("cid1", 3); err != nil {
		t.Fatal(err)
	}
	if err = m.ConfirmReplication("cid1", "ipfs"); err != nil {
		t.Fatal(err)
	}
	e, err := m.GetMetadata("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Replication.CurrentRedundancy != 3 {
		t.Errorf("expected redundancy 3 got %d", e.Replication.CurrentRedundancy)
	}
	if !e.IsPinned {
		t.Error("expected entry pinned after durable confirmation")
	}
	if e.Replication.Health != health.HealthExcellent {
		t.Errorf("expected excellent got %s", e.Replication.Health)
	}
}

// a completed request for a tier must not shadow a newer pending request
// for the same tier
func TestConfirmAfterRenewedPending(t *testing.T) {
	policy := ro.New()
	policy.Tiers = []ro.TierOptions{
		{Tier: "memory", Redundancy: 1, Priority: 0},
		{Tier: "filesystem", Redundancy: 1, Priority: 1},
		{Tier: "ipfs", Redundancy: 1, Priority: 2},
	}
	m, err := New(policy, testTiers(t), metadata.NewStore("test", mo.New(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if err = m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err = m.EnsureReplication("cid1", 3); err != nil {
		t.Fatal(err)
	}
	if err = m.ConfirmReplication("cid1", "ipfs"); err != nil {
		t.Fatal(err)
	}
	// a further shortfall records a fresh pending request for the same tier
	if _, err = m.EnsureReplication("cid1", 4); err != nil {
		t.Fatal(err)
	}
	e, err := m.GetMetadata("cid1")
	if err != nil {
		t.Fatal(err)
	}
	p := e.PendingFor("ipfs")
	if p == nil || p.Status != metadata.RequestStatusPending {
		t.Fatalf("expected a live pending request, got %+v", p)
	}
	if err = m.ConfirmReplication("cid1", "ipfs"); err != nil {
		t.Fatal(err)
	}
	e, err = m.GetMetadata("cid1")
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range e.PendingReplication {
		if q.Status == metadata.RequestStatusPending {
			t.Errorf("expected no pending requests after confirmation, got %+v", q)
		}
	}
}

func TestConfirmReplicationUnknownTier(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmReplication("cid1", "ipfs"); err != errors.ErrUnknownTier {
		t.Errorf("expected %v got %v", errors.ErrUnknownTier, err)
	}
}

func TestBatchGetMetadata(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("b", []byte("2")); err != nil {
		t.Fatal(err)
	}
	out := m.BatchGetMetadata([]string{"a", "b", "c"})
	if len(out) != 2 {
		t.Fatalf("expected 2 results got %d", len(out))
	}
	if _, ok := out["c"]; ok {
		t.Error("unknown key should be omitted")
	}
	for k, e := range out {
		if e.Replication.CurrentRedundancy != len(e.Replication.ReplicatedTiers) {
			t.Errorf("key %s: redundancy does not match tier set", k)
		}
		if e.Replication.Health == health.HealthPoor {
			t.Errorf("key %s: expected populated replication health", k)
		}
	}
}

func TestGetPromotesToPrimary(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnsureReplication("cid1"); err != nil {
		t.Fatal(err)
	}
	// drop the primary copy so the next read must come from disk
	if err := m.tiers["memory"].Remove("cid1"); err != nil {
		t.Fatal(err)
	}
	data, ls, err := m.Get("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if ls != status.LookupStatusPromoted {
		t.Errorf("expected %s got %s", status.LookupStatusPromoted, ls)
	}
	if !bytes.Equal(data, []byte("value")) {
		t.Errorf("wanted \"value\" got %q", data)
	}
	if !m.tiers["memory"].Contains("cid1") {
		t.Error("expected promotion into the memory tier")
	}
}

func TestGetMiss(t *testing.T) {
	m := testManager(t, nil)
	if _, _, err := m.Get("nope"); err != errors.ErrNotFound {
		t.Errorf("expected %v got %v", errors.ErrNotFound, err)
	}
}

func TestHealthReflectsLiveMembership(t *testing.T) {
	policy := ro.New()
	policy.MinRedundancy = 2
	policy.MaxRedundancy = 3
	policy.CriticalRedundancy = 3
	policy.Backends = []string{"memory", "filesystem"}
	m := testManager(t, policy)

	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	e, _ := m.GetMetadata("cid1")
	if e.Replication.Health != health.HealthFair {
		t.Errorf("redundancy 1: expected fair got %s", e.Replication.Health)
	}

	if _, err := m.EnsureReplication("cid1"); err != nil {
		t.Fatal(err)
	}
	e, _ = m.GetMetadata("cid1")
	if e.Replication.Health != health.HealthGood {
		t.Errorf("redundancy 2: expected good got %s", e.Replication.Health)
	}

	// an out-of-band tier change is reflected on the very next read
	if err := m.tiers["filesystem"].Remove("cid1"); err != nil {
		t.Fatal(err)
	}
	e, _ = m.GetMetadata("cid1")
	if e.Replication.CurrentRedundancy != 1 {
		t.Errorf("expected live redundancy 1 got %d", e.Replication.CurrentRedundancy)
	}
	if e.Replication.Health != health.HealthFair {
		t.Errorf("expected fair after tier loss got %s", e.Replication.Health)
	}
}

func TestUpdateMetadataIsVisible(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	e, _ := m.GetMetadata("cid1")
	e.PendingReplication = []metadata.PendingRequest{
		{Tier: "ipfs_cluster", RequestedAt: time.Now(),
			Status: metadata.RequestStatusPending},
	}
	if err := m.UpdateMetadata("cid1", e); err != nil {
		t.Fatal(err)
	}
	e2, _ := m.GetMetadata("cid1")
	if len(e2.PendingReplication) != 1 ||
		e2.PendingReplication[0].Tier != "ipfs_cluster" {
		t.Errorf("forced pending bookkeeping not visible: %v", e2.PendingReplication)
	}
}

func TestRemove(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnsureReplication("cid1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("cid1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetMetadata("cid1"); err != errors.ErrNotFound {
		t.Errorf("expected %v got %v", errors.ErrNotFound, err)
	}
	for name, c := range m.tiers {
		if c.Contains("cid1") {
			t.Errorf("tier %s still holds the removed key", name)
		}
	}
}

func TestOrphanMetadataRemoved(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	// evict from every tier behind the manager's back
	for _, c := range m.tiers {
		c.Remove("cid1")
	}
	if _, err := m.GetMetadata("cid1"); err != errors.ErrNotFound {
		t.Errorf("expected %v got %v", errors.ErrNotFound, err)
	}
}

type drHandle struct{ notified int }

func (h *drHandle) NotifyPendingReplication(_, _ string, _ time.Time) error {
	h.notified++
	return nil
}

func TestIntegrateWithDisasterRecovery(t *testing.T) {
	m := testManager(t, nil)
	j, w := &drHandle{}, &drHandle{}
	if !m.IntegrateWithDisasterRecovery(j, w) {
		t.Fatal("expected integration to succeed")
	}
	cfg := m.Configuration()
	if !cfg.DisasterRecovery.WALIntegration || !cfg.DisasterRecovery.JournalIntegration {
		t.Error("expected wal and journal integration recorded")
	}
	// identical re-attachment is idempotent
	if !m.IntegrateWithDisasterRecovery(j, w) {
		t.Error("expected idempotent re-attachment to succeed")
	}
	// conflicting handles are refused
	if m.IntegrateWithDisasterRecovery(&drHandle{}, w) {
		t.Error("expected conflicting re-attachment to be refused")
	}

	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnsureReplication("cid1", 5); err != nil {
		t.Fatal(err)
	}
	if j.notified == 0 || w.notified == 0 {
		t.Error("expected pending replication forwarded to both handles")
	}
}

func TestPutReservedKey(t *testing.T) {
	m := testManager(t, nil)
	if err := m.Put(metadata.SnapshotCacheKey, []byte("x")); err != errors.ErrInvalidKey {
		t.Errorf("expected %v got %v", errors.ErrInvalidKey, err)
	}
	if err := m.Put("", []byte("x")); err != errors.ErrInvalidKey {
		t.Errorf("expected %v got %v", errors.ErrInvalidKey, err)
	}
}

func TestModeTargets(t *testing.T) {
	policy := ro.New()
	policy.Mode = ro.ModeNone
	policy.Backends = []string{"memory", "filesystem"}
	m := testManager(t, policy)
	if err := m.Put("cid1", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r, err := m.EnsureReplication("cid1")
	if err != nil {
		t.Fatal(err)
	}
	if r.TargetRedundancy != 1 {
		t.Errorf("mode none: expected target 1 got %d", r.TargetRedundancy)
	}

	policy2 := ro.New()
	policy2.Mode = ro.ModeAll
	policy2.Backends = []string{"memory", "filesystem"}
	m2 := testManager(t, policy2)
	if err = m2.Put("cid2", []byte("value")); err != nil {
		t.Fatal(err)
	}
	r, err = m2.EnsureReplication("cid2")
	if err != nil {
		t.Fatal(err)
	}
	if r.TargetRedundancy != 2 {
		t.Errorf("mode all: expected target 2 got %d", r.TargetRedundancy)
	}
	if r.FinalRedundancy != 2 {
		t.Errorf("mode all: expected final 2 got %d", r.FinalRedundancy)
	}
}
