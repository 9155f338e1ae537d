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

// Package metadata implements the per-key bookkeeping shared by all tiers:
// sizes, access statistics, heat scores and replication state
package metadata

import (
	"strings"
	"time"

	"github.com/stratacache/strata/pkg/replication/health"
	"github.com/stratacache/strata/pkg/util/sets"
)

// RequestStatus defines the lifecycle state of a pending replication request
type RequestStatus int

const (
	// RequestStatusPending indicates the external copy has been requested
	// but not yet confirmed
	RequestStatusPending = RequestStatus(iota)
	// RequestStatusCompleted indicates the external copy was confirmed
	RequestStatusCompleted
	// RequestStatusFailed indicates the external copy was reported failed
	RequestStatusFailed
)

var requestStatusNames = map[RequestStatus]string{
	RequestStatusPending:   "pending",
	RequestStatusCompleted: "completed",
	RequestStatusFailed:    "failed",
}

func (s RequestStatus) String() string {
	if n, ok := requestStatusNames[s]; ok {
		return n
	}
	return "pending"
}

// PendingRequest records a not-yet-confirmed request to copy a value into
// an external tier
type PendingRequest struct {
	Tier        string        `yaml:"tier"`
	RequestedAt time.Time     `yaml:"requested_at"`
	Status      RequestStatus `yaml:"status"`
}

// ReplicationInfo describes the replication state of a cached key
type ReplicationInfo struct {
	Policy            string        `yaml:"policy"`
	CurrentRedundancy int           `yaml:"current_redundancy"`
	TargetRedundancy  int           `yaml:"target_redundancy"`
	ReplicatedTiers   []string      `yaml:"replicated_tiers"`
	Health            health.Health `yaml:"health"`
}

// HasTier reports whether the named tier is in the replicated set
func (ri *ReplicationInfo) HasTier(tier string) bool {
	for _, t := range ri.ReplicatedTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// AddTier adds the named tier to the replicated set; the set stays sorted
// and duplicate-free
func (ri *ReplicationInfo) AddTier(tier string) {
	s := sets.New(ri.ReplicatedTiers)
	s.Add(tier)
	ri.ReplicatedTiers = s.Sorted(strings.Compare)
}

// RemoveTier removes the named tier from the replicated set
func (ri *ReplicationInfo) RemoveTier(tier string) {
	s := sets.New(ri.ReplicatedTiers)
	s.Remove(tier)
	ri.ReplicatedTiers = s.Sorted(strings.Compare)
}

// MergeTiers adds every tier in the provided set to the replicated set
func (ri *ReplicationInfo) MergeTiers(tiers []string) {
	s := sets.New(ri.ReplicatedTiers)
	for _, t := range tiers {
		s.Add(t)
	}
	ri.ReplicatedTiers = s.Sorted(strings.Compare)
}

// Entry is the metadata record for a single cached key
type Entry struct {
	Key                string           `yaml:"key"`
	Size               int64            `yaml:"size"`
	AddedTime          time.Time        `yaml:"added_time"`
	LastAccess         time.Time        `yaml:"last_access"`
	AccessCount        int64            `yaml:"access_count"`
	HeatScore          float64          `yaml:"heat_score"`
	StorageTier        string           `yaml:"storage_tier"`
	IsPinned           bool             `yaml:"is_pinned"`
	Replication        ReplicationInfo  `yaml:"replication"`
	PendingReplication []PendingRequest `yaml:"pending_replication,omitempty"`
}

// NewEntry returns a metadata record for a key first written to the
// named tier
func NewEntry(key string, size int64, tier string) *Entry {
	now := time.Now()
	e := &Entry{
		Key:         key,
		Size:        size,
		AddedTime:   now,
		LastAccess:  now,
		AccessCount: 1,
		StorageTier: tier,
	}
	e.Replication.ReplicatedTiers = []string{tier}
	return e
}

// Clone returns an exact copy of the Entry that shares no memory
// with the source
func (e *Entry) Clone() *Entry {
	e2 := *e
	e2.Replication.ReplicatedTiers = append([]string(nil), e.Replication.ReplicatedTiers...)
	if e.PendingReplication != nil {
		e2.PendingReplication = append([]PendingRequest(nil), e.PendingReplication...)
	}
	return &e2
}

// RecordAccess updates access bookkeeping and recomputes the heat score
func (e *Entry) RecordAccess(now time.Time, halfLife time.Duration) {
	e.AccessCount++
	e.LastAccess = now
	e.UpdateHeat(now, halfLife)
}

// UpdateHeat recomputes the heat score: the access count decayed by the
// entry's age in half-lives, so a frequently accessed old entry can still
// outrank a once-touched new one
func (e *Entry) UpdateHeat(now time.Time, halfLife time.Duration) {
	if halfLife <= 0 {
		e.HeatScore = float64(e.AccessCount)
		return
	}
	age := now.Sub(e.AddedTime)
	if age < 0 {
		age = 0
	}
	e.HeatScore = float64(e.AccessCount) /
		(1 + age.Seconds()/halfLife.Seconds())
}

// PendingFor returns the request targeting the named tier, preferring a
// live pending request over completed or failed history for the same tier
func (e *Entry) PendingFor(tier string) *PendingRequest {
	var found *PendingRequest
	for i := range e.PendingReplication {
		if e.PendingReplication[i].Tier != tier {
			continue
		}
		if e.PendingReplication[i].Status == RequestStatusPending {
			return &e.PendingReplication[i]
		}
		if found == nil {
			found = &e.PendingReplication[i]
		}
	}
	return found
}
