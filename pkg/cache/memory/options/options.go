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

// DefaultMaxSizeBytes is the default byte budget for the memory tier
const DefaultMaxSizeBytes = 256 * 1024 * 1024

// Options defines the operation of the Memory Tier
type Options struct {
	// MaxSizeBytes indicates how large the tier can grow in bytes before
	// the adaptive eviction policy removes lowest-ranked entries
	MaxSizeBytes int64 `yaml:"max_size_bytes,omitempty"`
	// MaxSizeObjects indicates how many objects the tier can hold before
	// eviction; 0 means unlimited object count
	MaxSizeObjects int64 `yaml:"max_size_objects,omitempty"`
}

// New returns a new memory tier Options reference with default values set
func New() *Options {
	return &Options{
		MaxSizeBytes: DefaultMaxSizeBytes,
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	return &Options{
		MaxSizeBytes:   o.MaxSizeBytes,
		MaxSizeObjects: o.MaxSizeObjects,
	}
}

// Equal returns true if all members of the subject and provided Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.MaxSizeBytes == o2.MaxSizeBytes &&
		o.MaxSizeObjects == o2.MaxSizeObjects
}
