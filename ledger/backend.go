/*
 * WasmHost - The WASM smart contract host runtime
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"sort"
	"sync"
)

// Backend is the read side of the external ledger snapshot.
type Backend interface {
	// Load returns the entry for the given key, if present.
	Load(key Key) (entry []byte, ok bool, err error)
}

// Write is a single change of a committed write set.
type Write struct {
	Key     Key
	Entry   []byte
	Deleted bool
}

// Committer receives the full post-transaction write set of a committed transaction.
// Writes are ordered by key.
type Committer interface {
	Apply(writes []Write) error
}

// Store is a backend which also accepts commits.
type Store interface {
	Backend
	Committer
}

// SortWrites orders writes by key.
func SortWrites(writes []Write) {
	sort.Slice(writes, func(i, j int) bool {
		return writes[i].Key.Compare(writes[j].Key) < 0
	})
}

// MemoryBackend is an in-memory Store.
// It is safe for concurrent use by independent hosts.
type MemoryBackend struct {
	entries map[string][]byte
	mu      sync.RWMutex
}

var _ Store = &MemoryBackend{}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: map[string][]byte{},
	}
}

func (b *MemoryBackend) Load(key Key) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[string(key.Encode())]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), entry...), true, nil
}

// Set stores an entry directly, bypassing transactions. It is intended for seeding.
func (b *MemoryBackend) Set(key Key, entry []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[string(key.Encode())] = append([]byte(nil), entry...)
}

func (b *MemoryBackend) Apply(writes []Write) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, write := range writes {
		encoded := string(write.Key.Encode())
		if write.Deleted {
			delete(b.entries, encoded)
		} else {
			b.entries[encoded] = append([]byte(nil), write.Entry...)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}
