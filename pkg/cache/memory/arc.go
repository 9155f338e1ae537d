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

package memory

import "container/list"

// arc holds the adaptive replacement state: two resident queues (t1 holds
// entries seen once, t2 holds entries seen more than once) and two ghost
// queues (b1/b2) remembering the keys recently evicted from each. A hit on
// a ghost grows the target share (p) of the queue it was evicted from, so
// the split between recency and frequency adapts to the workload.
//
// All methods are called under the owning Cache's mutex.
type arc struct {
	maxBytes   int64
	maxObjects int64
	p          int64 // adaptive byte target for t1

	t1, t2 *list.List // resident; MRU at Front
	b1, b2 *list.List // ghosts (keys only); MRU at Front

	resident map[string]*list.Element // element.Value is *residentEntry
	ghosts   map[string]*list.Element // element.Value is *ghostEntry

	size    int64 // resident bytes
	objects int64

	t1bytes, t2bytes int64
	b1bytes, b2bytes int64
}

type residentEntry struct {
	key  string
	data []byte
	size int64
	inT2 bool
}

type ghostEntry struct {
	key    string
	size   int64
	fromT1 bool
}

func newARC(maxBytes, maxObjects int64) *arc {
	return &arc{
		maxBytes:   maxBytes,
		maxObjects: maxObjects,
		t1:         list.New(),
		t2:         list.New(),
		b1:         list.New(),
		b2:         list.New(),
		resident:   make(map[string]*list.Element),
		ghosts:     make(map[string]*list.Element),
	}
}

func (a *arc) contains(key string) bool {
	_, ok := a.resident[key]
	return ok
}

func (a *arc) get(key string) ([]byte, bool) {
	el, ok := a.resident[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*residentEntry)
	a.promote(el, e)
	return e.data, true
}

// promote moves a hit entry to the frequency queue's MRU position
func (a *arc) promote(el *list.Element, e *residentEntry) {
	if e.inT2 {
		a.t2.MoveToFront(el)
		return
	}
	a.t1.Remove(el)
	a.t1bytes -= e.size
	e.inT2 = true
	a.resident[e.key] = a.t2.PushFront(e)
	a.t2bytes += e.size
}

// put inserts or updates an entry, evicting as needed to stay within the
// byte and object budgets; it returns the count of entries evicted
func (a *arc) put(key string, data []byte) int {
	size := int64(len(data))

	if el, ok := a.resident[key]; ok {
		e := el.Value.(*residentEntry)
		a.size += size - e.size
		if e.inT2 {
			a.t2bytes += size - e.size
		} else {
			a.t1bytes += size - e.size
		}
		e.data = data
		e.size = size
		a.promote(el, e)
		return a.enforceBudgets(0)
	}

	var toT2 bool
	if gel, ok := a.ghosts[key]; ok {
		// ghost hit: adapt p toward the queue the key was evicted from,
		// then admit directly into the frequency queue
		g := gel.Value.(*ghostEntry)
		if g.fromT1 {
			a.p = min(a.maxBytes, a.p+max(g.size, a.b2bytes/max(1, int64(a.b1.Len()))))
			a.b1.Remove(gel)
			a.b1bytes -= g.size
		} else {
			a.p = max(0, a.p-max(g.size, a.b1bytes/max(1, int64(a.b2.Len()))))
			a.b2.Remove(gel)
			a.b2bytes -= g.size
		}
		delete(a.ghosts, key)
		toT2 = true
	}

	var evictions int
	for a.size+size > a.maxBytes ||
		(a.maxObjects > 0 && a.objects+1 > a.maxObjects) {
		if !a.replace(toT2) {
			break
		}
		evictions++
	}

	e := &residentEntry{key: key, data: data, size: size, inT2: toT2}
	if toT2 {
		a.resident[key] = a.t2.PushFront(e)
		a.t2bytes += size
	} else {
		a.resident[key] = a.t1.PushFront(e)
		a.t1bytes += size
	}
	a.size += size
	a.objects++
	return evictions
}

func (a *arc) enforceBudgets(evictions int) int {
	for a.size > a.maxBytes ||
		(a.maxObjects > 0 && a.objects > a.maxObjects) {
		if !a.replace(false) {
			break
		}
		evictions++
	}
	return evictions
}

// replace evicts one entry: from t1 when it exceeds its adaptive target,
// otherwise from t2. The evicted key is remembered in the matching ghost
// queue. Returns false when nothing is resident.
func (a *arc) replace(ghostHitInB2 bool) bool {
	fromT1 := a.t1.Len() > 0 &&
		(a.t1bytes > a.p || (ghostHitInB2 && a.t1bytes == a.p))
	if !fromT1 && a.t2.Len() == 0 {
		fromT1 = a.t1.Len() > 0
	}

	var el *list.Element
	if fromT1 {
		el = a.t1.Back()
	} else {
		el = a.t2.Back()
	}
	if el == nil {
		return false
	}
	e := el.Value.(*residentEntry)

	if fromT1 {
		a.t1.Remove(el)
		a.t1bytes -= e.size
		a.ghosts[e.key] = a.b1.PushFront(&ghostEntry{key: e.key, size: e.size, fromT1: true})
		a.b1bytes += e.size
	} else {
		a.t2.Remove(el)
		a.t2bytes -= e.size
		a.ghosts[e.key] = a.b2.PushFront(&ghostEntry{key: e.key, size: e.size, fromT1: false})
		a.b2bytes += e.size
	}
	delete(a.resident, e.key)
	a.size -= e.size
	a.objects--
	a.trimGhosts()
	return true
}

// trimGhosts bounds each ghost queue to the tier's byte budget
func (a *arc) trimGhosts() {
	for a.b1bytes > a.maxBytes {
		el := a.b1.Back()
		if el == nil {
			break
		}
		g := el.Value.(*ghostEntry)
		a.b1.Remove(el)
		a.b1bytes -= g.size
		delete(a.ghosts, g.key)
	}
	for a.b2bytes > a.maxBytes {
		el := a.b2.Back()
		if el == nil {
			break
		}
		g := el.Value.(*ghostEntry)
		a.b2.Remove(el)
		a.b2bytes -= g.size
		delete(a.ghosts, g.key)
	}
}

func (a *arc) remove(key string) (int64, bool) {
	el, ok := a.resident[key]
	if !ok {
		return 0, false
	}
	e := el.Value.(*residentEntry)
	if e.inT2 {
		a.t2.Remove(el)
		a.t2bytes -= e.size
	} else {
		a.t1.Remove(el)
		a.t1bytes -= e.size
	}
	delete(a.resident, key)
	a.size -= e.size
	a.objects--
	return e.size, true
}
