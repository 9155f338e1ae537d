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
	"errors"
	"strings"

	badger "github.com/stratacache/strata/pkg/cache/badger/options"
	bbolt "github.com/stratacache/strata/pkg/cache/bbolt/options"
	filesystem "github.com/stratacache/strata/pkg/cache/filesystem/options"
	memory "github.com/stratacache/strata/pkg/cache/memory/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	redis "github.com/stratacache/strata/pkg/cache/redis/options"
)

// Lookup is a map of tier Options keyed by tier name
type Lookup map[string]*Options

// ErrInvalidName is returned when a tier is configured with a reserved name
var ErrInvalidName = errors.New("invalid tier name")

// ErrInvalidProvider is returned when a tier references an unregistered provider
var ErrInvalidProvider = errors.New("invalid tier provider")

var restrictedNames = map[string]struct{}{"": {}, "none": {}}

// Options is a collection defining a single tier's behavior
type Options struct {
	// Name is the name of the tier, taken from the key in the Tiers map
	Name string `yaml:"-"`
	// Provider represents the type of tier: "memory", "filesystem",
	// "bbolt", "badger" or "redis"
	Provider string `yaml:"provider,omitempty"`
	// Memory provides options for the memory tier
	Memory *memory.Options `yaml:"memory,omitempty"`
	// Filesystem provides options for the filesystem tier
	Filesystem *filesystem.Options `yaml:"filesystem,omitempty"`
	// BBolt provides options for the bbolt tier
	BBolt *bbolt.Options `yaml:"bbolt,omitempty"`
	// Badger provides options for the badger tier
	Badger *badger.Options `yaml:"badger,omitempty"`
	// Redis provides options for the redis tier
	Redis *redis.Options `yaml:"redis,omitempty"`

	// Synthetic Values

	// ProviderID represents the internal constant for the provided
	// Provider string and is automatically populated at startup
	ProviderID providers.Provider `yaml:"-"`
}

// New will return a pointer to a tier Options with the default configuration settings
func New() *Options {
	return &Options{
		Provider:   "memory",
		ProviderID: providers.Memory,
		Memory:     memory.New(),
		Filesystem: filesystem.New(),
		BBolt:      bbolt.New(),
		Badger:     badger.New(),
		Redis:      redis.New(),
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	out := &Options{
		Name:       o.Name,
		Provider:   o.Provider,
		ProviderID: o.ProviderID,
	}
	if o.Memory != nil {
		out.Memory = o.Memory.Clone()
	}
	if o.Filesystem != nil {
		out.Filesystem = o.Filesystem.Clone()
	}
	if o.BBolt != nil {
		out.BBolt = o.BBolt.Clone()
	}
	if o.Badger != nil {
		out.Badger = o.Badger.Clone()
	}
	if o.Redis != nil {
		out.Redis = o.Redis.Clone()
	}
	return out
}

// Equal returns true if the subject and provided Options describe the same tier
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.Name == o2.Name &&
		o.Provider == o2.Provider &&
		o.ProviderID == o2.ProviderID
}

// Initialize sets up the tier Options with default values and overlays any
// values that were set during YAML unmarshaling
func (o *Options) Initialize(name string) error {
	o.Name = name
	if o.Provider != "" {
		o.Provider = strings.ToLower(o.Provider)
		if p, ok := providers.Names[o.Provider]; ok {
			o.ProviderID = p
		} else {
			return ErrInvalidProvider
		}
	}
	if o.Memory == nil {
		o.Memory = memory.New()
	}
	if o.Filesystem == nil {
		o.Filesystem = filesystem.New()
	}
	if o.BBolt == nil {
		o.BBolt = bbolt.New()
	}
	if o.Badger == nil {
		o.Badger = badger.New()
	}
	if o.Redis == nil {
		o.Redis = redis.New()
	}
	return nil
}

// Validate checks the tier Options for configuration errors
func (o *Options) Validate() error {
	if _, ok := restrictedNames[o.Name]; ok {
		return ErrInvalidName
	}
	if !providers.IsValidName(o.Provider) {
		return ErrInvalidProvider
	}
	return nil
}

// Initialize initializes all tier options in the lookup with default values
// and overlays any values that were set during YAML unmarshaling
func (l Lookup) Initialize() error {
	for k, v := range l {
		if err := v.Initialize(k); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks each tier in the lookup for configuration errors
func (l Lookup) Validate() error {
	for k, o := range l {
		o.Name = k
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}
