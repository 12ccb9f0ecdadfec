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

package objects

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

func TestCompare(t *testing.T) {

	t.Parallel()

	store := newTestStore()

	u64 := func(u uint64) values.Val {
		v, err := store.U64Val(u)
		require.NoError(t, err)
		return v
	}
	bytesVal := func(b ...byte) values.Val {
		v, err := store.BytesVal(b)
		require.NoError(t, err)
		return v
	}
	vec := func(elements ...values.Val) values.Val {
		v, err := store.NewVec(elements)
		require.NoError(t, err)
		return v
	}

	// ascending
	ordered := []values.Val{
		values.False,
		values.True,
		values.Void,
		values.FromU32(0),
		values.FromU32(7),
		values.FromI32(-3),
		u64(1),
		u64(values.MaxSmallUnsigned),
		u64(values.MaxSmallUnsigned + 1),
		bytesVal(),
		bytesVal(1),
		bytesVal(1, 0),
		bytesVal(2),
		vec(),
		vec(values.FromU32(1)),
		vec(values.FromU32(1), values.FromU32(0)),
		vec(values.FromU32(2)),
	}

	for i, a := range ordered {
		for j, b := range ordered {
			c, err := store.Compare(a, b)
			require.NoError(t, err)

			switch {
			case i < j:
				assert.Equal(t, -1, c, "%s < %s", a, b)
			case i > j:
				assert.Equal(t, 1, c, "%s > %s", a, b)
			default:
				assert.Equal(t, 0, c, "%s == %s", a, b)
			}
		}
	}
}

func TestCompareStructural(t *testing.T) {

	t.Parallel()

	store := newTestStore()

	a, err := store.BytesVal([]byte("same"))
	require.NoError(t, err)
	b, err := store.BytesVal([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	equal, err := store.Equal(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestCompareDanglingHandle(t *testing.T) {

	t.Parallel()

	t.Run("stale", func(t *testing.T) {
		t.Parallel()

		store := newTestStore()

		stale, err := store.BytesVal([]byte("old"))
		require.NoError(t, err)

		store.Reset()

		_, err = store.Compare(stale, stale)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))

		_, err = store.Equal(stale, stale)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		store := newTestStore()

		unknown := values.NewObjectHandle(values.TagBytesObject, 7, 0)

		_, err := store.Compare(unknown, unknown)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))

		_, err = store.Compare(values.FromU32(1), unknown)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))
	})
}

func TestCompareCharged(t *testing.T) {

	t.Parallel()

	meter := &countingMeter{}
	store := NewStore(meter, DefaultLimits())

	a, err := store.BytesVal(make([]byte, 10))
	require.NoError(t, err)
	b, err := store.BytesVal(make([]byte, 20))
	require.NoError(t, err)

	meter.counts = map[common.CostType]uint64{}

	_, err = store.Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), meter.counts[common.CostTypeVisitObject])
	assert.Equal(t, uint64(10), meter.counts[common.CostTypeHostMemCmp])
}

type countingMeter struct {
	counts map[common.CostType]uint64
}

func (m *countingMeter) Charge(ty common.CostType, input uint64) error {
	if m.counts == nil {
		m.counts = map[common.CostType]uint64{}
	}
	m.counts[ty] += input
	return nil
}

func TestMapOrder(t *testing.T) {

	t.Parallel()

	properties := gopter.NewProperties(nil)

	properties.Property("insertion order does not matter", prop.ForAll(
		func(keys []uint32, seed int64) bool {
			store := newTestStore()

			unique := map[uint32]struct{}{}
			var entries []MapEntry
			for _, key := range keys {
				if _, ok := unique[key]; ok {
					continue
				}
				unique[key] = struct{}{}
				bytesKey, err := store.BytesVal([]byte{byte(key >> 8), byte(key)})
				if err != nil {
					return false
				}
				entries = append(entries, MapEntry{
					Key:   bytesKey,
					Value: values.FromU32(key),
				})
			}

			permuted := make([]MapEntry, len(entries))
			copy(permuted, entries)
			random := rand.New(rand.NewSource(seed))
			random.Shuffle(len(permuted), func(i, j int) {
				permuted[i], permuted[j] = permuted[j], permuted[i]
			})

			first, err := store.NewMap(entries)
			if err != nil {
				return false
			}

			// insert one by one, in permuted order
			second, err := store.NewMap(nil)
			if err != nil {
				return false
			}
			for _, entry := range permuted {
				second, err = store.MapPut(second, entry.Key, entry.Value)
				if err != nil {
					return false
				}
			}

			firstMap, err := store.Map(first)
			if err != nil {
				return false
			}
			secondMap, err := store.Map(second)
			if err != nil || len(firstMap) != len(secondMap) {
				return false
			}
			for i := range firstMap {
				if firstMap[i].Value != secondMap[i].Value {
					return false
				}
				if i > 0 {
					c, err := store.Compare(firstMap[i-1].Key, firstMap[i].Key)
					if err != nil || c >= 0 {
						return false
					}
				}
			}

			equal, err := store.Equal(first, second)
			return err == nil && equal
		},
		gen.SliceOf(gen.UInt32Range(0, 1000)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestMapOperations(t *testing.T) {

	t.Parallel()

	store := newTestStore()

	one := values.FromU32(1)
	two := values.FromU32(2)

	_, err := store.NewMap([]MapEntry{
		{Key: one, Value: values.True},
		{Key: one, Value: values.False},
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	m, err := store.NewMap([]MapEntry{
		{Key: two, Value: values.True},
		{Key: one, Value: values.False},
	})
	require.NoError(t, err)

	updated, err := store.MapPut(m, one, values.Void)
	require.NoError(t, err)

	// functional update: the original map is unchanged

	v, ok, err := store.MapGet(m, one)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, values.False, v)

	v, ok, err = store.MapGet(updated, one)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, values.Void, v)

	deleted, err := store.MapDel(updated, two)
	require.NoError(t, err)

	_, ok, err = store.MapGet(deleted, two)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.MapDel(deleted, two)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMissingValue))
}
