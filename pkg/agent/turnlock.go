// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import "sync"

// turnLocks serializes chat turns per conversation. Entries are reference
// counted and removed once the last holder releases them.
type turnLocks struct {
	mu    sync.Mutex
	locks map[string]*turnLock
}

type turnLock struct {
	mu       sync.Mutex
	refCount int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{locks: make(map[string]*turnLock)}
}

// lock blocks until the conversation is free and returns its release func.
func (t *turnLocks) lock(id string) func() {
	t.mu.Lock()
	entry, ok := t.locks[id]
	if !ok {
		entry = &turnLock{}
		t.locks[id] = entry
	}
	entry.refCount++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		t.mu.Lock()
		entry.refCount--
		if entry.refCount <= 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

func (t *turnLocks) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
