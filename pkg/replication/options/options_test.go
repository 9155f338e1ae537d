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
	"testing"
)

func TestValidate(t *testing.T) {
	o := New()
	if err := o.Validate(); err != nil {
		t.Error(err)
	}

	o.Mode = "bogus"
	if err := o.Validate(); err == nil {
		t.Error("expected error for invalid mode")
	}
	o.Mode = ModeSelective

	o.MinRedundancy = 3
	o.MaxRedundancy = 2
	if err := o.Validate(); err == nil {
		t.Error("expected error for min > max")
	}
	o.MinRedundancy = 2
	o.MaxRedundancy = 3
	o.CriticalRedundancy = 3 // max == critical is tolerated
	if err := o.Validate(); err != nil {
		t.Error(err)
	}
}

func TestValidateEmptyTierName(t *testing.T) {
	o := New()
	o.Tiers = []TierOptions{{Tier: ""}}
	if err := o.Validate(); err == nil {
		t.Error("expected error for empty tier name")
	}
}

func TestOrderedTiers(t *testing.T) {
	o := New()
	o.Tiers = []TierOptions{
		{Tier: "ipfs", Priority: 2},
		{Tier: "memory", Priority: 0},
		{Tier: "filesystem", Priority: 1},
	}
	ordered := o.OrderedTiers()
	if ordered[0].Tier != "memory" || ordered[1].Tier != "filesystem" ||
		ordered[2].Tier != "ipfs" {
		t.Errorf("unexpected order: %v", ordered)
	}
}

func TestOrderedTiersFromBackends(t *testing.T) {
	o := New()
	o.Backends = []string{"memory", "filesystem"}
	ordered := o.OrderedTiers()
	if len(ordered) != 2 || ordered[0].Tier != "memory" {
		t.Errorf("unexpected order: %v", ordered)
	}
	if ordered[1].Priority != 1 || ordered[1].Redundancy != 1 {
		t.Errorf("unexpected synthesized tier: %+v", ordered[1])
	}
}

func TestCloneEqual(t *testing.T) {
	o := New()
	o.Backends = []string{"memory"}
	o.Tiers = []TierOptions{{Tier: "memory"}}
	o2 := o.Clone()
	if !o.Equal(o2) {
		t.Error("expected clone equal")
	}
	o2.CriticalRedundancy++
	if o.Equal(o2) {
		t.Error("expected inequality after mutation")
	}
	if o.Equal(nil) {
		t.Error("expected inequality with nil")
	}
}
