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
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/stratacache/strata/pkg/replication/health"
)

// MessagePack layout versions. Entries are written as positional arrays,
// so any field change requires a version bump.
const snapshotVersion = 1

const (
	entryFields       = 10
	replicationFields = 5
	pendingFields     = 3
)

// Snapshot is the serializable form of the metadata store's contents
type Snapshot map[string]*Entry

// MarshalMsg appends the msgpack encoding of the Snapshot to b
func (s Snapshot) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendInt64(b, snapshotVersion)
	o = msgp.AppendMapHeader(o, uint32(len(s)))
	for k, e := range s {
		o = msgp.AppendString(o, k)
		var err error
		o, err = e.MarshalMsg(o)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// UnmarshalMsg decodes a msgpack-encoded Snapshot from bts
func (s *Snapshot) UnmarshalMsg(bts []byte) ([]byte, error) {
	version, o, err := msgp.ReadInt64Bytes(bts)
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported metadata snapshot version: %d", version)
	}
	sz, o, err := msgp.ReadMapHeaderBytes(o)
	if err != nil {
		return nil, err
	}
	out := make(Snapshot, sz)
	for i := uint32(0); i < sz; i++ {
		var k string
		k, o, err = msgp.ReadStringBytes(o)
		if err != nil {
			return nil, err
		}
		e := &Entry{}
		o, err = e.UnmarshalMsg(o)
		if err != nil {
			return nil, err
		}
		out[k] = e
	}
	*s = out
	return o, nil
}

// MarshalMsg appends the msgpack encoding of the Entry to b
func (e *Entry) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendArrayHeader(b, entryFields)
	o = msgp.AppendString(o, e.Key)
	o = msgp.AppendInt64(o, e.Size)
	o = msgp.AppendTime(o, e.AddedTime)
	o = msgp.AppendTime(o, e.LastAccess)
	o = msgp.AppendInt64(o, e.AccessCount)
	o = msgp.AppendFloat64(o, e.HeatScore)
	o = msgp.AppendString(o, e.StorageTier)
	o = msgp.AppendBool(o, e.IsPinned)

	o = msgp.AppendArrayHeader(o, replicationFields)
	o = msgp.AppendString(o, e.Replication.Policy)
	o = msgp.AppendInt64(o, int64(e.Replication.CurrentRedundancy))
	o = msgp.AppendInt64(o, int64(e.Replication.TargetRedundancy))
	o = msgp.AppendArrayHeader(o, uint32(len(e.Replication.ReplicatedTiers)))
	for _, t := range e.Replication.ReplicatedTiers {
		o = msgp.AppendString(o, t)
	}
	o = msgp.AppendInt64(o, int64(e.Replication.Health))

	o = msgp.AppendArrayHeader(o, uint32(len(e.PendingReplication)))
	for i := range e.PendingReplication {
		p := &e.PendingReplication[i]
		o = msgp.AppendArrayHeader(o, pendingFields)
		o = msgp.AppendString(o, p.Tier)
		o = msgp.AppendTime(o, p.RequestedAt)
		o = msgp.AppendInt64(o, int64(p.Status))
	}
	return o, nil
}

// UnmarshalMsg decodes a msgpack-encoded Entry from bts
func (e *Entry) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	if sz != entryFields {
		return nil, fmt.Errorf("unexpected entry field count: %d", sz)
	}
	if e.Key, o, err = msgp.ReadStringBytes(o); err != nil {
		return nil, err
	}
	if e.Size, o, err = msgp.ReadInt64Bytes(o); err != nil {
		return nil, err
	}
	if e.AddedTime, o, err = msgp.ReadTimeBytes(o); err != nil {
		return nil, err
	}
	if e.LastAccess, o, err = msgp.ReadTimeBytes(o); err != nil {
		return nil, err
	}
	if e.AccessCount, o, err = msgp.ReadInt64Bytes(o); err != nil {
		return nil, err
	}
	if e.HeatScore, o, err = msgp.ReadFloat64Bytes(o); err != nil {
		return nil, err
	}
	if e.StorageTier, o, err = msgp.ReadStringBytes(o); err != nil {
		return nil, err
	}
	if e.IsPinned, o, err = msgp.ReadBoolBytes(o); err != nil {
		return nil, err
	}

	if sz, o, err = msgp.ReadArrayHeaderBytes(o); err != nil {
		return nil, err
	}
	if sz != replicationFields {
		return nil, fmt.Errorf("unexpected replication field count: %d", sz)
	}
	if e.Replication.Policy, o, err = msgp.ReadStringBytes(o); err != nil {
		return nil, err
	}
	var i64 int64
	if i64, o, err = msgp.ReadInt64Bytes(o); err != nil {
		return nil, err
	}
	e.Replication.CurrentRedundancy = int(i64)
	if i64, o, err = msgp.ReadInt64Bytes(o); err != nil {
		return nil, err
	}
	e.Replication.TargetRedundancy = int(i64)
	var n uint32
	if n, o, err = msgp.ReadArrayHeaderBytes(o); err != nil {
		return nil, err
	}
	if n > 0 {
		e.Replication.ReplicatedTiers = make([]string, n)
		for i := uint32(0); i < n; i++ {
			if e.Replication.ReplicatedTiers[i], o, err = msgp.ReadStringBytes(o); err != nil {
				return nil, err
			}
		}
	}
	if i64, o, err = msgp.ReadInt64Bytes(o); err != nil {
		return nil, err
	}
	e.Replication.Health = health.Health(i64)

	if n, o, err = msgp.ReadArrayHeaderBytes(o); err != nil {
		return nil, err
	}
	if n > 0 {
		e.PendingReplication = make([]PendingRequest, n)
		for i := uint32(0); i < n; i++ {
			if sz, o, err = msgp.ReadArrayHeaderBytes(o); err != nil {
				return nil, err
			}
			if sz != pendingFields {
				return nil, fmt.Errorf("unexpected pending field count: %d", sz)
			}
			p := &e.PendingReplication[i]
			if p.Tier, o, err = msgp.ReadStringBytes(o); err != nil {
				return nil, err
			}
			if p.RequestedAt, o, err = msgp.ReadTimeBytes(o); err != nil {
				return nil, err
			}
			if i64, o, err = msgp.ReadInt64Bytes(o); err != nil {
				return nil, err
			}
			p.Status = RequestStatus(i64)
		}
	}
	return o, nil
}
