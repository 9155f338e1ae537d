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

// Package config defines the full configuration graph and its yaml loader
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	mdopt "github.com/stratacache/strata/pkg/cache/metadata/options"
	co "github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	lo "github.com/stratacache/strata/pkg/observability/logging/options"
	ro "github.com/stratacache/strata/pkg/replication/options"
)

// MainConfig is the main process configuration
type MainConfig struct {
	// InstanceID distinguishes multiple processes on the same host
	InstanceID int `yaml:"instance_id,omitempty"`
	// PidFile is the path at which the process writes its pid
	PidFile string `yaml:"pid_file,omitempty"`
}

// MetricsConfig is the configuration for the metrics listener
type MetricsConfig struct {
	// ListenAddress is the address:port the /metrics endpoint binds to;
	// empty disables the listener
	ListenAddress string `yaml:"listen_address,omitempty"`
}

// Config is the root configuration object
type Config struct {
	Main        *MainConfig    `yaml:"main,omitempty"`
	Logging     *lo.Options    `yaml:"logging,omitempty"`
	Metrics     *MetricsConfig `yaml:"metrics,omitempty"`
	Tiers       co.Lookup      `yaml:"tiers,omitempty"`
	Metadata    *mdopt.Options `yaml:"metadata,omitempty"`
	Replication *ro.Options    `yaml:"replication,omitempty"`
}

// New returns a Config with defaults: a single memory tier and the default
// selective replication policy
func New() *Config {
	return &Config{
		Main:        &MainConfig{},
		Logging:     lo.New(),
		Metrics:     &MetricsConfig{},
		Tiers:       co.Lookup{"memory": co.New()},
		Metadata:    mdopt.New(),
		Replication: ro.New(),
	}
}

// Load reads, parses and validates a yaml configuration file
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := New()
	c.Tiers = co.Lookup{}
	if err = yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if len(c.Tiers) == 0 {
		c.Tiers = co.Lookup{"memory": co.New()}
	}
	if err = c.Process(); err != nil {
		return nil, err
	}
	return c, nil
}

// Process initializes and validates the full configuration graph,
// including the cross-references between sections
func (c *Config) Process() error {
	if c.Main == nil {
		c.Main = &MainConfig{}
	}
	if c.Logging == nil {
		c.Logging = lo.New()
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metadata == nil {
		c.Metadata = mdopt.New()
	}
	if c.Replication == nil {
		c.Replication = ro.New()
	}
	if err := c.Tiers.Initialize(); err != nil {
		return err
	}
	if err := c.Tiers.Validate(); err != nil {
		return err
	}
	if err := c.Replication.Validate(); err != nil {
		return err
	}
	// replication tier names must resolve to a configured tier, except for
	// external tiers which have no local configuration
	for _, t := range c.Replication.Tiers {
		if providers.IsExternalName(t.Tier) {
			continue
		}
		if _, ok := c.Tiers[t.Tier]; !ok {
			return fmt.Errorf("replication tier is not configured: %s", t.Tier)
		}
	}
	for _, b := range c.Replication.Backends {
		if providers.IsExternalName(b) {
			continue
		}
		if _, ok := c.Tiers[b]; !ok {
			return fmt.Errorf("replication backend is not configured: %s", b)
		}
	}
	if c.Metadata.FlushTier != "" {
		o, ok := c.Tiers[c.Metadata.FlushTier]
		if !ok {
			return fmt.Errorf("metadata flush tier is not configured: %s",
				c.Metadata.FlushTier)
		}
		if !providers.IsDurable(o.ProviderID) {
			return fmt.Errorf("metadata flush tier is not durable: %s",
				c.Metadata.FlushTier)
		}
	}
	return nil
}
