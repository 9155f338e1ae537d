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

// Package status governs the possible Cache Lookup Status values
package status

import "strconv"

// LookupStatus defines the possible status of a cache lookup
type LookupStatus int

const (
	// LookupStatusHit indicates a cache hit on lookup
	LookupStatusHit = LookupStatus(iota)
	// LookupStatusKeyMiss indicates a full key miss (cache key does not exist) on lookup
	LookupStatusKeyMiss
	// LookupStatusPromoted indicates a hit in a lower tier that was promoted
	// into the primary tier as part of the lookup
	LookupStatusPromoted
	// LookupStatusError indicates that there was an error looking up the object in the cache
	LookupStatusError
)

var lookupStatusNames = map[string]LookupStatus{
	"hit":      LookupStatusHit,
	"kmiss":    LookupStatusKeyMiss,
	"promoted": LookupStatusPromoted,
	"error":    LookupStatusError,
}

var lookupStatusValues = map[LookupStatus]string{
	LookupStatusHit:      "hit",
	LookupStatusKeyMiss:  "kmiss",
	LookupStatusPromoted: "promoted",
	LookupStatusError:    "error",
}

func (s LookupStatus) String() string {
	if v, ok := lookupStatusValues[s]; ok {
		return v
	}
	return strconv.Itoa(int(s))
}

// FromName returns the LookupStatus associated with the provided name
func FromName(name string) (LookupStatus, bool) {
	s, ok := lookupStatusNames[name]
	return s, ok
}
