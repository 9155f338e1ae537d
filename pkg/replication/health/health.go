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

// Package health classifies a key's replication state relative to the
// configured redundancy thresholds
package health

// Health defines the redundancy health classification for a cached key
type Health int

const (
	// HealthPoor indicates the key is not present in any tier
	HealthPoor = Health(iota)
	// HealthFair indicates the key is below the minimum redundancy target
	HealthFair
	// HealthGood indicates the key meets the minimum redundancy target
	HealthGood
	// HealthExcellent indicates the key meets the critical redundancy target
	HealthExcellent
)

var healthNames = map[Health]string{
	HealthPoor:      "poor",
	HealthFair:      "fair",
	HealthGood:      "good",
	HealthExcellent: "excellent",
}

var healthValues = map[string]Health{
	"poor":      HealthPoor,
	"fair":      HealthFair,
	"good":      HealthGood,
	"excellent": HealthExcellent,
}

func (h Health) String() string {
	if n, ok := healthNames[h]; ok {
		return n
	}
	return "poor"
}

// FromName returns the Health corresponding to the provided name,
// defaulting to HealthPoor for an unrecognized name
func FromName(name string) Health {
	if h, ok := healthValues[name]; ok {
		return h
	}
	return HealthPoor
}

// ForRedundancy derives the classification from the current redundancy and
// the configured thresholds. A floor of 2 is applied to the minimum so a
// single copy is never classified better than fair.
func ForRedundancy(current, minRedundancy, maxRedundancy, criticalRedundancy int) Health {
	if current <= 0 {
		return HealthPoor
	}
	if minRedundancy < 2 {
		minRedundancy = 2
	}
	switch {
	case current >= criticalRedundancy:
		return HealthExcellent
	case current >= minRedundancy:
		return HealthGood
	default:
		return HealthFair
	}
}
