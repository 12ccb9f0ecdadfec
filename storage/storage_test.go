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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/wasmhost/budget"
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
)

var testContract = common.MustContractAddress(1)

func dataKey(name string) ledger.Key {
	return ledger.ContractDataKey(testContract, ledger.DurabilityPersistent, []byte(name))
}

func newTestBudget() *budget.Budget {
	return budget.NewBudget(
		budget.DefaultCostModel(),
		budget.Limits{CPU: 1_000_000_000, Memory: 1_000_000_000},
	)
}

type failingBackend struct{}

func (failingBackend) Load(_ ledger.Key) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("backend unavailable")
}

func TestStorageFootprint(t *testing.T) {

	t.Parallel()

	t.Run("undeclared read", func(t *testing.T) {
		t.Parallel()

		b := newTestBudget()
		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, b)

		_, _, err := storage.Get(dataKey("k2"))
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindFootprintViolation))
		assert.False(t, errors.IsFatal(err))

		assert.Equal(t, uint64(0), b.CPU())
		assert.Equal(t, uint64(0), b.Memory())
	})

	t.Run("write to read-only", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, newTestBudget())

		err := storage.Put(dataKey("k1"), []byte{1})
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindFootprintViolation))

		err = storage.Delete(dataKey("k1"))
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindFootprintViolation))
	})

	t.Run("wider access wins", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().
			AddReadWrite(dataKey("k1")).
			AddReadOnly(dataKey("k1"))

		access, ok := footprint.Access(dataKey("k1"))
		require.True(t, ok)
		assert.Equal(t, AccessReadWrite, access)
		assert.Equal(t, 1, footprint.Len())
	})
}

func TestStorageAccess(t *testing.T) {

	t.Parallel()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, newTestBudget())

		entry, ok, err := storage.Get(dataKey("k1"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, entry)
	})

	t.Run("load from backend", func(t *testing.T) {
		t.Parallel()

		backend := ledger.NewMemoryBackend()
		backend.Set(dataKey("k1"), []byte("v1"))

		b := newTestBudget()
		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(backend, footprint, b)

		entry, ok, err := storage.Get(dataKey("k1"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), entry)

		// the key, then the entry
		tracker := b.Tracker(common.CostTypeReadLedgerEntry)
		assert.Equal(t, uint64(2), tracker.Count)
		assert.Equal(t, dataKey("k1").Size()+2, tracker.Input)
	})

	t.Run("charged before load", func(t *testing.T) {
		t.Parallel()

		b := budget.NewBudget(budget.DefaultCostModel(), budget.Limits{CPU: 10, Memory: 10})
		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(failingBackend{}, footprint, b)

		// the backend is never reached
		_, _, err := storage.Get(dataKey("k1"))
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindBudgetExceeded))

		tracker := b.Tracker(common.CostTypeReadLedgerEntry)
		assert.Equal(t, uint64(1), tracker.Count)
		assert.Equal(t, dataKey("k1").Size(), tracker.Input)
	})

	t.Run("put, has, delete", func(t *testing.T) {
		t.Parallel()

		backend := ledger.NewMemoryBackend()
		footprint := NewFootprint().AddReadWrite(dataKey("k1"))
		storage := NewStorage(backend, footprint, newTestBudget())

		require.NoError(t, storage.Put(dataKey("k1"), []byte{1}))

		ok, err := storage.Has(dataKey("k1"))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, storage.Delete(dataKey("k1")))

		ok, err = storage.Has(dataKey("k1"))
		require.NoError(t, err)
		assert.False(t, ok)

		// writes are buffered
		assert.Equal(t, 0, backend.Len())
	})

	t.Run("backend failure is fatal", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadOnly(dataKey("k1"))
		storage := NewStorage(failingBackend{}, footprint, newTestBudget())

		_, _, err := storage.Get(dataKey("k1"))
		require.Error(t, err)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("budget exceeded", func(t *testing.T) {
		t.Parallel()

		b := budget.NewBudget(budget.DefaultCostModel(), budget.Limits{CPU: 10, Memory: 10})
		footprint := NewFootprint().AddReadWrite(dataKey("k1"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, b)

		err := storage.Put(dataKey("k1"), make([]byte, 100))
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindBudgetExceeded))
		assert.Empty(t, storage.WriteSet())
	})
}

func TestStorageSnapshot(t *testing.T) {

	t.Parallel()

	t.Run("restore discards writes", func(t *testing.T) {
		t.Parallel()

		backend := ledger.NewMemoryBackend()
		backend.Set(dataKey("k2"), []byte("old"))

		footprint := NewFootprint().AddReadWrite(dataKey("k1"), dataKey("k2"))
		storage := NewStorage(backend, footprint, newTestBudget())

		require.NoError(t, storage.Put(dataKey("k1"), []byte("a")))
		snapshot := storage.Snapshot()

		require.NoError(t, storage.Put(dataKey("k1"), []byte("b")))
		require.NoError(t, storage.Delete(dataKey("k2")))

		storage.Restore(snapshot)

		entry, ok, err := storage.Get(dataKey("k1"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("a"), entry)

		entry, ok, err = storage.Get(dataKey("k2"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("old"), entry)
	})

	t.Run("restore before any mutation", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadWrite(dataKey("a"), dataKey("b"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, newTestBudget())

		snapshot := storage.Snapshot()
		require.NoError(t, storage.Put(dataKey("b"), []byte{2}))
		require.NoError(t, storage.Put(dataKey("a"), []byte{1}))
		storage.Restore(snapshot)

		assert.Empty(t, storage.WriteSet())
		assert.Equal(t, 0, storage.Len())
	})

	t.Run("write set is ordered", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadWrite(dataKey("c"), dataKey("a"), dataKey("b"))
		storage := NewStorage(ledger.NewMemoryBackend(), footprint, newTestBudget())

		require.NoError(t, storage.Put(dataKey("c"), []byte{3}))
		require.NoError(t, storage.Delete(dataKey("b")))
		require.NoError(t, storage.Put(dataKey("a"), []byte{1}))

		_, _, err := storage.Get(dataKey("a"))
		require.NoError(t, err)

		assert.Equal(t,
			[]ledger.Write{
				{Key: dataKey("a"), Entry: []byte{1}},
				{Key: dataKey("b"), Deleted: true},
				{Key: dataKey("c"), Entry: []byte{3}},
			},
			storage.WriteSet(),
		)
	})

	t.Run("footprint keys are ordered", func(t *testing.T) {
		t.Parallel()

		footprint := NewFootprint().AddReadOnly(dataKey("z"), dataKey("m"), dataKey("a"))

		assert.Equal(t,
			[]ledger.Key{dataKey("a"), dataKey("m"), dataKey("z")},
			footprint.Keys(),
		)
	})
}
