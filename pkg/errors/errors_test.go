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

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCapacityError(t *testing.T) {
	err := &CapacityError{Key: "k", Size: 100, Limit: 50}
	if err.Error() == "" {
		t.Error("expected a message")
	}
	var ce *CapacityError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &ce) {
		t.Error("expected errors.As to find CapacityError")
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewStorageError("filesystem", "store", cause)
	if !errors.Is(err, cause) {
		t.Error("expected unwrap to reach the cause")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatal("expected StorageError")
	}
	if se.Tier != "filesystem" || se.Op != "store" {
		t.Errorf("unexpected fields: %+v", se)
	}
}
