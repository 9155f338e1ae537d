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

// Package dr bridges the cache to external disaster recovery collaborators.
// The bridge only records the hand-off and forwards pending-replication
// notifications; journal and write-ahead-log durability semantics belong to
// the collaborators themselves.
package dr

import (
	"sync"
	"time"

	"github.com/stratacache/strata/pkg/errors"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
)

// JournalHandle is the filesystem journal collaborator contract
type JournalHandle interface {
	// NotifyPendingReplication informs the journal that a copy of the key
	// into the named tier has been requested but not yet confirmed
	NotifyPendingReplication(key, tier string, requestedAt time.Time) error
}

// WALHandle is the write-ahead-log collaborator contract
type WALHandle interface {
	NotifyPendingReplication(key, tier string, requestedAt time.Time) error
}

// Bridge holds the attached disaster recovery collaborators. Attachment
// happens at most once; re-attaching the same handles is a no-op and
// attaching different handles is an error.
type Bridge struct {
	mtx     sync.Mutex
	journal JournalHandle
	wal     WALHandle
}

// NewBridge returns an unattached Bridge
func NewBridge() *Bridge {
	return &Bridge{}
}

// Integrate stores references to the provided collaborators. A repeat call
// with the same handles is idempotent; a repeat call with different handles
// returns ErrAlreadyIntegrated so references are never silently duplicated.
func (b *Bridge) Integrate(journal JournalHandle, wal WALHandle) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.journal != nil || b.wal != nil {
		if b.journal == journal && b.wal == wal {
			return nil
		}
		return errors.ErrAlreadyIntegrated
	}
	b.journal = journal
	b.wal = wal
	return nil
}

// Integrated reports whether collaborators are attached
func (b *Bridge) Integrated() bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.journal != nil || b.wal != nil
}

// NotifyPending forwards a pending-replication notification to both
// collaborators. Collaborator errors are logged, not propagated; a
// notification failure must not fail the cache operation that raised it.
func (b *Bridge) NotifyPending(key, tier string, requestedAt time.Time) {
	b.mtx.Lock()
	journal, wal := b.journal, b.wal
	b.mtx.Unlock()
	if journal != nil {
		if err := journal.NotifyPendingReplication(key, tier, requestedAt); err != nil {
			logger.Warn("journal pending-replication notification failed",
				logging.Pairs{"key": key, "tier": tier, "detail": err.Error()})
		}
	}
	if wal != nil {
		if err := wal.NotifyPendingReplication(key, tier, requestedAt); err != nil {
			logger.Warn("wal pending-replication notification failed",
				logging.Pairs{"key": key, "tier": tier, "detail": err.Error()})
		}
	}
}
