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

// Package registry instantiates tier clients from their configurations
package registry

import (
	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/badger"
	"github.com/stratacache/strata/pkg/cache/bbolt"
	"github.com/stratacache/strata/pkg/cache/filesystem"
	"github.com/stratacache/strata/pkg/cache/memory"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/providers"
	"github.com/stratacache/strata/pkg/cache/redis"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
)

// NewCacheClient returns a connected tier client for the provided Options.
// External providers (ipfs, ipfs_cluster) have no local client and return
// ErrInvalidProvider; they participate through pending replication only.
func NewCacheClient(name string, o *options.Options) (cache.Client, error) {
	var c cache.Client
	switch o.ProviderID {
	case providers.Memory:
		c = memory.New(name, o)
	case providers.Filesystem:
		c = filesystem.New(name, o)
	case providers.BBolt:
		c = bbolt.New(name, o)
	case providers.Badger:
		c = badger.New(name, o)
	case providers.Redis:
		c = redis.New(name, o)
	default:
		return nil, options.ErrInvalidProvider
	}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	logger.Info("tier client connected",
		logging.Pairs{"tier": name, "provider": o.Provider})
	return c, nil
}

// LoadCachesFromConfig returns a connected client for every local tier in
// the lookup, keyed by tier name
func LoadCachesFromConfig(l options.Lookup) (map[string]cache.Client, error) {
	clients := make(map[string]cache.Client, len(l))
	for name, o := range l {
		if providers.IsExternal(o.ProviderID) {
			continue
		}
		c, err := NewCacheClient(name, o)
		if err != nil {
			for _, open := range clients {
				open.Close()
			}
			return nil, err
		}
		clients[name] = c
	}
	return clients, nil
}
