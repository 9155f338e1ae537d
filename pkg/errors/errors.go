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

// Package errors provides the error values shared across the Strata packages
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key is absent from all configured tiers
var ErrNotFound = errors.New("key not found in any tier")

// ErrInvalidKey is returned when an empty or reserved key is provided
var ErrInvalidKey = errors.New("invalid cache key")

// ErrUnknownTier is returned when a replication policy references a tier
// name that is not configured
var ErrUnknownTier = errors.New("unknown tier name")

// ErrAlreadyIntegrated is returned when disaster recovery integration is
// attempted a second time with conflicting handles
var ErrAlreadyIntegrated = errors.New("disaster recovery already integrated")

// ErrNoTiers is returned when a manager is constructed without any tiers
var ErrNoTiers = errors.New("no tiers configured")

// CapacityError is returned when a single value exceeds a tier's byte budget.
// The value is never partially written.
type CapacityError struct {
	Key   string
	Size  int64
	Limit int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("value for key [%s] is %d bytes, exceeding the %d-byte tier budget",
		e.Key, e.Size, e.Limit)
}

// StorageError wraps an underlying tier failure with the tier name and the
// operation that failed
type StorageError struct {
	Tier string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("tier [%s] %s failed: %s", e.Tier, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError returns a StorageError wrapping err
func NewStorageError(tier, op string, err error) error {
	return &StorageError{Tier: tier, Op: op, Err: err}
}
