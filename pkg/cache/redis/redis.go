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

// Package redis is the redis implementation of the Strata network tier and
// supports Standalone and Sentinel deployments. Redis manages its own memory
// budget and eviction, so the tier does not maintain a local access index.
package redis

import (
	"errors"
	"fmt"

	"github.com/go-redis/redis"

	"github.com/stratacache/strata/pkg/cache"
	"github.com/stratacache/strata/pkg/cache/metrics"
	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
	serr "github.com/stratacache/strata/pkg/errors"
)

// Cache implements the cache.Client interface
var _ cache.Client = &Cache{}

const provider = "redis"

// ErrInvalidEndpointsConfig is returned when the sentinel client type is
// selected without any endpoints
var ErrInvalidEndpointsConfig = errors.New("invalid 'endpoints' config")

// ErrInvalidSentinelMasterConfig is returned when the sentinel client type is
// selected without a master name
var ErrInvalidSentinelMasterConfig = errors.New("invalid 'sentinel_master' config")

// Cache represents a redis tier client that conforms to the cache.Client interface
type Cache struct {
	Name   string
	Config *options.Options
	client redis.Cmdable
	closer func() error
}

// New returns a new redis tier client
func New(name string, cfg *options.Options) *Cache {
	if cfg == nil {
		cfg = options.New()
	}
	return &Cache{
		Name:   name,
		Config: cfg,
	}
}

// Connect connects to the configured Redis endpoint
func (c *Cache) Connect() error {
	switch c.Config.Redis.ClientType {
	case "sentinel":
		opts, err := c.sentinelOpts()
		if err != nil {
			return err
		}
		client := redis.NewFailoverClient(opts)
		c.closer = client.Close
		c.client = client
	default:
		opts, err := c.clientOpts()
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		c.closer = client.Close
		c.client = client
	}
	return c.client.Ping().Err()
}

// Store places the data into the Redis tier using the provided key
func (c *Cache) Store(cacheKey string, data []byte) error {
	if cacheKey == "" {
		return serr.ErrInvalidKey
	}
	if err := c.client.Set(cacheKey, data, 0).Err(); err != nil {
		return serr.NewStorageError(c.Name, "store", err)
	}
	metrics.ObserveCacheOperation(c.Name, provider, "set", "none", float64(len(data)))
	return nil
}

// Retrieve gets data from the Redis tier using the provided key
func (c *Cache) Retrieve(cacheKey string) ([]byte, status.LookupStatus, error) {
	res, err := c.client.Get(cacheKey).Result()
	if err == nil {
		data := []byte(res)
		metrics.ObserveCacheOperation(c.Name, provider, "get", "hit", float64(len(data)))
		return data, status.LookupStatusHit, nil
	}
	if err == redis.Nil {
		metrics.ObserveCacheMiss(c.Name, provider)
		return nil, status.LookupStatusKeyMiss, cache.ErrKNF
	}
	return nil, status.LookupStatusError, serr.NewStorageError(c.Name, "retrieve", err)
}

// Contains reports whether the key is present in the Redis tier
func (c *Cache) Contains(cacheKey string) bool {
	n, err := c.client.Exists(cacheKey).Result()
	return err == nil && n > 0
}

// Remove deletes the provided keys from the tier
func (c *Cache) Remove(cacheKeys ...string) error {
	if err := c.client.Del(cacheKeys...).Err(); err != nil {
		return serr.NewStorageError(c.Name, "remove", err)
	}
	for range cacheKeys {
		metrics.ObserveCacheDel(c.Name, provider, 0)
	}
	return nil
}

// Size returns the tier's object count; byte usage is managed by the
// redis server and reported as zero
func (c *Cache) Size() (int64, int64) {
	objects, err := c.client.DBSize().Result()
	if err != nil {
		return 0, 0
	}
	return 0, objects
}

// Configuration returns the tier's configuration
func (c *Cache) Configuration() *options.Options {
	return c.Config
}

func (c *Cache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Cache) clientOpts() (*redis.Options, error) {
	if c.Config.Redis.Endpoint == "" {
		return nil, fmt.Errorf("invalid endpoint: %s", c.Config.Redis.Endpoint)
	}
	o := &redis.Options{
		Addr: c.Config.Redis.Endpoint,
	}
	if c.Config.Redis.Password != "" {
		o.Password = c.Config.Redis.Password
	}
	if c.Config.Redis.DB != 0 {
		o.DB = c.Config.Redis.DB
	}
	return o, nil
}

func (c *Cache) sentinelOpts() (*redis.FailoverOptions, error) {
	if len(c.Config.Redis.Endpoints) == 0 {
		return nil, ErrInvalidEndpointsConfig
	}
	if c.Config.Redis.SentinelMaster == "" {
		return nil, ErrInvalidSentinelMasterConfig
	}
	o := &redis.FailoverOptions{
		SentinelAddrs: c.Config.Redis.Endpoints,
		MasterName:    c.Config.Redis.SentinelMaster,
	}
	if c.Config.Redis.Password != "" {
		o.Password = c.Config.Redis.Password
	}
	if c.Config.Redis.DB != 0 {
		o.DB = c.Config.Redis.DB
	}
	return o, nil
}
