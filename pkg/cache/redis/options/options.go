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

// DefaultEndpoint is the default redis endpoint for the redis tier
const DefaultEndpoint = "redis:6379"

// DefaultClientType is the default redis client type
const DefaultClientType = "standard"

// Options defines the operation of the Redis Tier
type Options struct {
	// ClientType defines the type of Redis Client ("standard", "sentinel")
	ClientType string `yaml:"client_type,omitempty"`
	// Endpoint represents the host:port of the Redis endpoint
	Endpoint string `yaml:"endpoint,omitempty"`
	// Endpoints represents the list of host:ports used by the sentinel client
	Endpoints []string `yaml:"endpoints,omitempty"`
	// SentinelMaster should be set when using a sentinel client type
	SentinelMaster string `yaml:"sentinel_master,omitempty"`
	// Password provides the redis password
	Password string `yaml:"password,omitempty"`
	// DB is the Database to be selected after connecting to the server
	DB int `yaml:"db,omitempty"`
}

// New returns a new redis tier Options reference with default values set
func New() *Options {
	return &Options{
		ClientType: DefaultClientType,
		Endpoint:   DefaultEndpoint,
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	out := &Options{
		ClientType:     o.ClientType,
		Endpoint:       o.Endpoint,
		SentinelMaster: o.SentinelMaster,
		Password:       o.Password,
		DB:             o.DB,
	}
	if o.Endpoints != nil {
		out.Endpoints = make([]string, len(o.Endpoints))
		copy(out.Endpoints, o.Endpoints)
	}
	return out
}

// Equal returns true if all scalar members of the subject and provided
// Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.ClientType == o2.ClientType &&
		o.Endpoint == o2.Endpoint &&
		o.SentinelMaster == o2.SentinelMaster &&
		o.Password == o2.Password &&
		o.DB == o2.DB
}
