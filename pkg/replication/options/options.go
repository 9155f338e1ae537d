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

package options

import (
	"fmt"
	"slices"
)

// Mode enumerates the replication modes
type Mode string

const (
	// ModeSelective replicates keys on demand up to the policy targets
	ModeSelective = Mode("selective")
	// ModeAll replicates every key into every configured backend
	ModeAll = Mode("all")
	// ModeNone disables replication beyond the primary tier
	ModeNone = Mode("none")
)

// Default redundancy thresholds
const (
	DefaultMinRedundancy      = 2
	DefaultMaxRedundancy      = 3
	DefaultCriticalRedundancy = 3
)

// TierOptions defines one tier's participation in the replication policy
type TierOptions struct {
	// Tier is the tier name as configured in the caches section
	Tier string `yaml:"tier"`
	// Redundancy is how many copies this tier contributes (1 for local tiers)
	Redundancy int `yaml:"redundancy,omitempty"`
	// Priority orders placement; lower is preferred first
	Priority int `yaml:"priority,omitempty"`
}

// DROptions defines the disaster recovery integration flags
type DROptions struct {
	Enabled            bool `yaml:"enabled,omitempty"`
	WALIntegration     bool `yaml:"wal_integration,omitempty"`
	JournalIntegration bool `yaml:"journal_integration,omitempty"`
}

// Options defines the replication policy configuration
type Options struct {
	Mode               Mode          `yaml:"mode,omitempty"`
	MinRedundancy      int           `yaml:"min_redundancy,omitempty"`
	MaxRedundancy      int           `yaml:"max_redundancy,omitempty"`
	CriticalRedundancy int           `yaml:"critical_redundancy,omitempty"`
	Backends           []string      `yaml:"backends,omitempty"`
	Tiers              []TierOptions `yaml:"replication_tiers,omitempty"`
	DisasterRecovery   DROptions     `yaml:"disaster_recovery,omitempty"`
}

// New returns a new replication policy Options reference with default values set
func New() *Options {
	return &Options{
		Mode:               ModeSelective,
		MinRedundancy:      DefaultMinRedundancy,
		MaxRedundancy:      DefaultMaxRedundancy,
		CriticalRedundancy: DefaultCriticalRedundancy,
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	o2 := &Options{
		Mode:               o.Mode,
		MinRedundancy:      o.MinRedundancy,
		MaxRedundancy:      o.MaxRedundancy,
		CriticalRedundancy: o.CriticalRedundancy,
		DisasterRecovery:   o.DisasterRecovery,
	}
	o2.Backends = append([]string(nil), o.Backends...)
	o2.Tiers = append([]TierOptions(nil), o.Tiers...)
	return o2
}

// Equal returns true if all members of the subject and provided Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.Mode == o2.Mode &&
		o.MinRedundancy == o2.MinRedundancy &&
		o.MaxRedundancy == o2.MaxRedundancy &&
		o.CriticalRedundancy == o2.CriticalRedundancy &&
		o.DisasterRecovery == o2.DisasterRecovery &&
		slices.Equal(o.Backends, o2.Backends) &&
		slices.Equal(o.Tiers, o2.Tiers)
}

// Validate checks the Options for misconfigurations. Thresholds must be
// positive and min <= max <= critical; max == critical is tolerated. Tier
// names are resolved against the configured tier set by the consumer, since
// this package cannot see it.
func (o *Options) Validate() error {
	switch o.Mode {
	case ModeSelective, ModeAll, ModeNone:
	default:
		return fmt.Errorf("invalid replication mode: %s", o.Mode)
	}
	if o.MinRedundancy < 1 || o.MaxRedundancy < o.MinRedundancy ||
		o.CriticalRedundancy < o.MaxRedundancy {
		return fmt.Errorf("invalid redundancy thresholds: min=%d max=%d critical=%d",
			o.MinRedundancy, o.MaxRedundancy, o.CriticalRedundancy)
	}
	for _, t := range o.Tiers {
		if t.Tier == "" {
			return fmt.Errorf("replication tier with empty name")
		}
	}
	return nil
}

// OrderedTiers returns the replication tiers sorted by ascending priority,
// falling back to the Backends list when no tiers are configured
func (o *Options) OrderedTiers() []TierOptions {
	if len(o.Tiers) == 0 {
		out := make([]TierOptions, len(o.Backends))
		for i, b := range o.Backends {
			out[i] = TierOptions{Tier: b, Redundancy: 1, Priority: i}
		}
		return out
	}
	out := append([]TierOptions(nil), o.Tiers...)
	slices.SortStableFunc(out, func(a, b TierOptions) int {
		return a.Priority - b.Priority
	})
	return out
}
