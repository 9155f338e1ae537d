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

// Package providers enumerates the supported tier providers. Tier
// implementations are registered here at compile time, so a policy
// referencing a tier name is checked against this list at construction
// rather than probed at runtime.
package providers

import "strconv"

// Provider enumerates the distinct storage backends capable of holding a
// copy of a cached value
type Provider int

const (
	// Memory is the in-memory tier provider
	Memory = Provider(iota)
	// Filesystem is the directory-backed disk tier provider
	Filesystem
	// BBolt is the bbolt file-backed disk tier provider
	BBolt
	// Badger is the BadgerDB disk tier provider
	Badger
	// Redis is the redis network tier provider
	Redis
	// IPFS is the external IPFS durable tier; copies are confirmed
	// asynchronously and are pending until then
	IPFS
	// IPFSCluster is the external IPFS Cluster durable tier
	IPFSCluster
)

// Names is the lookup of provider names to their internal id
var Names = map[string]Provider{
	"memory":       Memory,
	"filesystem":   Filesystem,
	"bbolt":        BBolt,
	"badger":       Badger,
	"redis":        Redis,
	"ipfs":         IPFS,
	"ipfs_cluster": IPFSCluster,
}

var values = map[Provider]string{
	Memory:      "memory",
	Filesystem:  "filesystem",
	BBolt:       "bbolt",
	Badger:      "badger",
	Redis:       "redis",
	IPFS:        "ipfs",
	IPFSCluster: "ipfs_cluster",
}

func (p Provider) String() string {
	if v, ok := values[p]; ok {
		return v
	}
	return strconv.Itoa(int(p))
}

// IsValidName returns true if the provided name is a registered provider
func IsValidName(name string) bool {
	_, ok := Names[name]
	return ok
}

// IsExternal returns true for tiers whose writes complete out-of-band and
// must not contribute to redundancy until explicitly confirmed
func IsExternal(p Provider) bool {
	return p == IPFS || p == IPFSCluster
}

// IsExternalName is the name-keyed convenience form of IsExternal
func IsExternalName(name string) bool {
	p, ok := Names[name]
	return ok && IsExternal(p)
}

// IsDurable returns true for tiers that survive a process restart
func IsDurable(p Provider) bool {
	switch p {
	case Filesystem, BBolt, Badger, IPFS, IPFSCluster:
		return true
	}
	return false
}
