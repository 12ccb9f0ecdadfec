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

package storage

import (
	"fmt"
	"sort"

	"github.com/onflow/wasmhost/ledger"
)

// Access is the declared access mode of a footprint key.
type Access uint8

const (
	AccessReadOnly Access = iota
	AccessReadWrite
)

func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "read-only"
	case AccessReadWrite:
		return "read-write"
	}
	return fmt.Sprintf("Access(%d)", uint8(a))
}

// Footprint is the declared set of ledger keys a transaction may access.
type Footprint struct {
	keys map[string]Access
}

func NewFootprint() *Footprint {
	return &Footprint{
		keys: map[string]Access{},
	}
}

// Add declares the key. Declaring a key twice keeps the wider access.
func (f *Footprint) Add(key ledger.Key, access Access) {
	encoded := string(key.Encode())
	existing, ok := f.keys[encoded]
	if ok && existing >= access {
		return
	}
	f.keys[encoded] = access
}

// AddReadOnly declares the keys as read-only.
func (f *Footprint) AddReadOnly(keys ...ledger.Key) *Footprint {
	for _, key := range keys {
		f.Add(key, AccessReadOnly)
	}
	return f
}

// AddReadWrite declares the keys as read-write.
func (f *Footprint) AddReadWrite(keys ...ledger.Key) *Footprint {
	for _, key := range keys {
		f.Add(key, AccessReadWrite)
	}
	return f
}

// Access returns the declared access of the key.
func (f *Footprint) Access(key ledger.Key) (Access, bool) {
	access, ok := f.keys[string(key.Encode())]
	return access, ok
}

func (f *Footprint) Len() int {
	return len(f.keys)
}

// Keys returns the declared keys in key order.
func (f *Footprint) Keys() []ledger.Key {
	encodedKeys := make([]string, 0, len(f.keys))
	for encoded := range f.keys {
		encodedKeys = append(encodedKeys, encoded)
	}
	sort.Strings(encodedKeys)

	keys := make([]ledger.Key, 0, len(encodedKeys))
	for _, encoded := range encodedKeys {
		key, err := ledger.DecodeKey([]byte(encoded))
		if err != nil {
			// only valid encodings are ever added
			panic(err)
		}
		keys = append(keys, key)
	}
	return keys
}
