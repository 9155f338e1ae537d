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

package health

import "testing"

func TestForRedundancy(t *testing.T) {
	tests := []struct {
		current, min, max, critical int
		expected                    Health
	}{
		{0, 2, 3, 3, HealthPoor},
		{1, 2, 3, 3, HealthFair},
		{2, 2, 3, 3, HealthGood},
		{3, 2, 3, 3, HealthExcellent},
		{4, 2, 3, 3, HealthExcellent},
		// min below the floor of 2 still requires two copies for good
		{1, 1, 2, 4, HealthFair},
		{2, 1, 2, 4, HealthGood},
		{1, 2, 3, 4, HealthFair},
		{3, 2, 3, 4, HealthGood},
		{4, 2, 3, 4, HealthExcellent},
	}
	for i, test := range tests {
		h := ForRedundancy(test.current, test.min, test.max, test.critical)
		if h != test.expected {
			t.Errorf("test %d: expected %s got %s", i, test.expected, h)
		}
	}
}

func TestString(t *testing.T) {
	if HealthGood.String() != "good" {
		t.Errorf("expected good got %s", HealthGood.String())
	}
	if Health(99).String() != "poor" {
		t.Errorf("expected poor got %s", Health(99).String())
	}
}

func TestFromName(t *testing.T) {
	if FromName("excellent") != HealthExcellent {
		t.Error("expected HealthExcellent")
	}
	if FromName("nonsense") != HealthPoor {
		t.Error("expected HealthPoor for unrecognized name")
	}
}
