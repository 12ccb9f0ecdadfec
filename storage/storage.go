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
	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
)

// slot is the state of a loaded key. Slots are immutable.
type slot struct {
	key     ledger.Key
	entry   []byte
	present bool
	// dirty is true if the slot was written in this transaction
	dirty bool
}

// Snapshot is a checkpoint of the storage state.
// Taking and restoring snapshots is O(1), as the state is a persistent tree.
type Snapshot struct {
	tree *iradix.Tree
}

// Storage mediates all ledger access of a transaction.
//
// Every access is checked against the footprint and charged.
// Entries are loaded lazily from the backend on first access;
// writes are buffered until the transaction commits.
type Storage struct {
	backend   ledger.Backend
	footprint *Footprint
	meter     common.Meter
	tree      *iradix.Tree
}

func NewStorage(backend ledger.Backend, footprint *Footprint, meter common.Meter) *Storage {
	if footprint == nil {
		footprint = NewFootprint()
	}
	return &Storage{
		backend:   backend,
		footprint: footprint,
		meter:     meter,
		tree:      iradix.New(),
	}
}

func (s *Storage) Footprint() *Footprint {
	return s.footprint
}

func (s *Storage) Snapshot() Snapshot {
	return Snapshot{tree: s.tree}
}

// Restore discards every change made after the snapshot was taken.
func (s *Storage) Restore(snapshot Snapshot) {
	s.tree = snapshot.tree
}

func (s *Storage) checkAccess(key ledger.Key, write bool) error {
	access, ok := s.footprint.Access(key)
	if !ok || (write && access != AccessReadWrite) {
		return errors.NewFootprintViolationError(key)
	}
	return nil
}

func (s *Storage) load(key ledger.Key, encoded []byte) (*slot, error) {
	existing, ok := s.tree.Get(encoded)
	if ok {
		return existing.(*slot), nil
	}

	entry, present, err := s.backend.Load(key)
	if err != nil {
		return nil, errors.NewExternalError(err)
	}
	loaded := &slot{
		key:     key,
		entry:   entry,
		present: present,
	}
	s.tree, _, _ = s.tree.Insert(encoded, loaded)
	return loaded, nil
}

// Get returns the entry for the key.
// An absent entry is not an error: ok is false.
//
// The key is charged before the entry is loaded,
// the size of the loaded entry is charged after.
func (s *Storage) Get(key ledger.Key) (entry []byte, ok bool, err error) {
	err = s.checkAccess(key, false)
	if err != nil {
		return nil, false, err
	}

	err = s.meter.Charge(common.CostTypeReadLedgerEntry, key.Size())
	if err != nil {
		return nil, false, err
	}

	current, err := s.load(key, key.Encode())
	if err != nil {
		return nil, false, err
	}

	if len(current.entry) > 0 {
		err = s.meter.Charge(
			common.CostTypeReadLedgerEntry,
			uint64(len(current.entry)),
		)
		if err != nil {
			return nil, false, err
		}
	}

	if !current.present {
		return nil, false, nil
	}
	return current.entry, true, nil
}

// Has returns true if an entry exists for the key.
func (s *Storage) Has(key ledger.Key) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// Put buffers a write of the entry for the key.
// The key must be declared read-write.
func (s *Storage) Put(key ledger.Key, entry []byte) error {
	err := s.checkAccess(key, true)
	if err != nil {
		return err
	}

	err = s.meter.Charge(
		common.CostTypeWriteLedgerEntry,
		key.Size()+uint64(len(entry)),
	)
	if err != nil {
		return err
	}

	s.tree, _, _ = s.tree.Insert(key.Encode(), &slot{
		key:     key,
		entry:   append([]byte(nil), entry...),
		present: true,
		dirty:   true,
	})
	return nil
}

// Delete buffers a deletion of the entry for the key.
// The key must be declared read-write.
func (s *Storage) Delete(key ledger.Key) error {
	err := s.checkAccess(key, true)
	if err != nil {
		return err
	}

	err = s.meter.Charge(common.CostTypeWriteLedgerEntry, key.Size())
	if err != nil {
		return err
	}

	s.tree, _, _ = s.tree.Insert(key.Encode(), &slot{
		key:   key,
		dirty: true,
	})
	return nil
}

// WriteSet returns the buffered writes, in key order.
func (s *Storage) WriteSet() []ledger.Write {
	var writes []ledger.Write
	s.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		current := v.(*slot)
		if current.dirty {
			writes = append(writes, ledger.Write{
				Key:     current.key,
				Entry:   current.entry,
				Deleted: !current.present,
			})
		}
		return false
	})
	return writes
}

// Len returns the number of keys accessed so far.
func (s *Storage) Len() int {
	return s.tree.Len()
}
