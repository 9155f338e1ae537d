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

// Package cache defines the Strata tier client interface and provides
// general cache functionality
package cache

import (
	"errors"

	"github.com/stratacache/strata/pkg/cache/options"
	"github.com/stratacache/strata/pkg/cache/status"
)

// ErrKNF represents the error "key not found in cache"
var ErrKNF = errors.New("key not found in cache")

// Client is the interface for the supported tier providers.
// When making new tier providers, Retrieve() must return ErrKNF on a miss.
type Client interface {
	Connect() error
	Store(cacheKey string, data []byte) error
	Retrieve(cacheKey string) ([]byte, status.LookupStatus, error)
	Contains(cacheKey string) bool
	Remove(cacheKeys ...string) error
	Size() (bytes int64, objects int64)
	Close() error
	Configuration() *options.Options
}
