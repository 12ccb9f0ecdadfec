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
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBBackend is a Store persisted in a LevelDB database.
// Keys are stored in their canonical encoding.
type LevelDBBackend struct {
	db *leveldb.DB
}

var _ Store = &LevelDBBackend{}

func NewLevelDBBackend(db *leveldb.DB) *LevelDBBackend {
	return &LevelDBBackend{
		db: db,
	}
}

// OpenLevelDBBackend opens or creates the database at the given path.
func OpenLevelDBBackend(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return NewLevelDBBackend(db), nil
}

func (b *LevelDBBackend) Load(key Key) ([]byte, bool, error) {
	entry, err := b.db.Get(key.Encode(), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry, true, nil
}

// Apply writes the whole write set atomically.
func (b *LevelDBBackend) Apply(writes []Write) error {
	batch := new(leveldb.Batch)
	for _, write := range writes {
		if write.Deleted {
			batch.Delete(write.Key.Encode())
		} else {
			batch.Put(write.Key.Encode(), write.Entry)
		}
	}
	return b.db.Write(batch, nil)
}

func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}
