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

// Package sets provides a generic set collection
package sets

import (
	"maps"
	"slices"
)

// Set is a collection of unique elements
type Set[T comparable] map[T]struct{}

// New creates a new Set from a slice of keys.
func New[T comparable](keys []T) Set[T] {
	s := make(Set[T], len(keys))
	for _, key := range keys {
		s[key] = struct{}{}
	}
	return s
}

// NewStringSet returns a new Set[string]
func NewStringSet() Set[string] {
	return make(Set[string])
}

// Add inserts a value into the set.
func (s Set[T]) Add(val T) {
	s[val] = struct{}{}
}

// Remove deletes a value from the set.
func (s Set[T]) Remove(val T) {
	delete(s, val)
}

// Contains checks if a value is in the set.
func (s Set[T]) Contains(val T) bool {
	_, ok := s[val]
	return ok
}

// Keys returns the set elements as a slice in an unpredictable order.
func (s Set[T]) Keys() []T {
	out := make([]T, len(s))
	var i int
	for key := range s {
		out[i] = key
		i++
	}
	return out
}

// Sorted returns the set elements as a sorted slice.
func (s Set[T]) Sorted(less func(a, b T) int) []T {
	out := s.Keys()
	slices.SortFunc(out, less)
	return out
}

// Clone returns a new independent copy of the set.
func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

// Merge adds all elements from another set into this one.
func (s Set[T]) Merge(other Set[T]) {
	maps.Copy(s, other)
}
