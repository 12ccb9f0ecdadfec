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
	"slices"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// NewVec allocates a vec of the given elements.
func (s *Store) NewVec(elements []values.Val) (values.Val, error) {
	return s.Allocate(VecObject(elements))
}

// ChargeVecCopy charges copying count vec elements.
// Callers charge before making the copy.
func (s *Store) ChargeVecCopy(count int) error {
	return s.meter.Charge(common.CostTypeHostMemCpy, uint64(count)*valSize)
}

func (s *Store) chargeMapCopy(count int) error {
	return s.meter.Charge(common.CostTypeHostMemCpy, uint64(count)*mapEntrySize)
}

// NewMap allocates a map of the given entries.
// The entries are put into key order. Duplicate keys are rejected.
func (s *Store) NewMap(entries []MapEntry) (values.Val, error) {
	sorted, err := s.SortMapEntries(entries)
	if err != nil {
		return 0, err
	}
	return s.Allocate(sorted)
}

// SortMapEntries returns a copy of the entries in key order.
func (s *Store) SortMapEntries(entries []MapEntry) (MapObject, error) {
	err := s.chargeMapCopy(len(entries))
	if err != nil {
		return nil, err
	}

	sorted := make(MapObject, len(entries))
	copy(sorted, entries)

	var sortErr error
	slices.SortStableFunc(sorted, func(a, b MapEntry) int {
		if sortErr != nil {
			return 0
		}
		c, err := s.Compare(a.Key, b.Key)
		if err != nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, sortErr
	}

	for i := 1; i < len(sorted); i++ {
		equal, err := s.Equal(sorted[i-1].Key, sorted[i].Key)
		if err != nil {
			return nil, err
		}
		if equal {
			return nil, errors.NewInvalidInputError("duplicate map key %s", sorted[i].Key)
		}
	}

	return sorted, nil
}

// MapFind returns the position of the key in the map,
// or the position at which it would be inserted.
func (s *Store) MapFind(m MapObject, key values.Val) (index int, found bool, err error) {
	low, high := 0, len(m)
	for low < high {
		err = s.meter.Charge(common.CostTypeMapEntry, 1)
		if err != nil {
			return 0, false, err
		}
		mid := int(uint(low+high) >> 1)
		c, err := s.Compare(m[mid].Key, key)
		if err != nil {
			return 0, false, err
		}
		switch {
		case c == 0:
			return mid, true, nil
		case c < 0:
			low = mid + 1
		default:
			high = mid
		}
	}
	return low, false, nil
}

// MapGet returns the value for the key.
func (s *Store) MapGet(mapVal values.Val, key values.Val) (values.Val, bool, error) {
	m, err := s.Map(mapVal)
	if err != nil {
		return 0, false, err
	}
	index, found, err := s.MapFind(m, key)
	if err != nil || !found {
		return 0, false, err
	}
	return m[index].Value, true, nil
}

// MapPut returns a new map with the key set to the value.
func (s *Store) MapPut(mapVal values.Val, key values.Val, value values.Val) (values.Val, error) {
	m, err := s.Map(mapVal)
	if err != nil {
		return 0, err
	}
	if err := s.Validate(key); err != nil {
		return 0, err
	}
	index, found, err := s.MapFind(m, key)
	if err != nil {
		return 0, err
	}

	length := len(m)
	if !found {
		length++
	}
	err = s.chargeMapCopy(length)
	if err != nil {
		return 0, err
	}

	var result MapObject
	if found {
		result = slices.Clone(m)
		result[index].Value = value
	} else {
		result = make(MapObject, 0, len(m)+1)
		result = append(result, m[:index]...)
		result = append(result, MapEntry{Key: key, Value: value})
		result = append(result, m[index:]...)
	}
	return s.Allocate(result)
}

// MapDel returns a new map without the key.
// It fails with KindMissingValue if the key is absent.
func (s *Store) MapDel(mapVal values.Val, key values.Val) (values.Val, error) {
	m, err := s.Map(mapVal)
	if err != nil {
		return 0, err
	}
	index, found, err := s.MapFind(m, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.NewHostError(errors.KindMissingValue, "map key not found: %s", key)
	}

	err = s.chargeMapCopy(len(m) - 1)
	if err != nil {
		return 0, err
	}

	result := make(MapObject, 0, len(m)-1)
	result = append(result, m[:index]...)
	result = append(result, m[index+1:]...)
	return s.Allocate(result)
}
