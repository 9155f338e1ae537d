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

import "time"

// DefaultFlushInterval is how often the metadata store snapshots itself to
// its durable client when flushing is enabled
const DefaultFlushInterval = 5 * time.Second

// DefaultHeatHalfLife is the recency half-life used when computing an
// entry's heat score
const DefaultHeatHalfLife = 15 * time.Minute

// Options defines the operation of the Metadata Store
type Options struct {
	// FlushInterval sets how often the store saves its snapshot to the
	// durable tier from application memory; 0 disables flushing
	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
	// HeatHalfLife governs how quickly an entry's heat score decays as
	// time passes since its last access
	HeatHalfLife time.Duration `yaml:"heat_half_life,omitempty"`
	// FlushTier names the configured tier that receives the snapshot;
	// empty disables snapshot persistence
	FlushTier string `yaml:"flush_tier,omitempty"`
}

// New returns a new metadata store Options reference with default values set
func New() *Options {
	return &Options{
		FlushInterval: DefaultFlushInterval,
		HeatHalfLife:  DefaultHeatHalfLife,
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	return &Options{
		FlushInterval: o.FlushInterval,
		HeatHalfLife:  o.HeatHalfLife,
		FlushTier:     o.FlushTier,
	}
}

// Equal returns true if all members of the subject and provided Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.FlushInterval == o2.FlushInterval &&
		o.HeatHalfLife == o2.HeatHalfLife &&
		o.FlushTier == o2.FlushTier
}
