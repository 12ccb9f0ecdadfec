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
	"github.com/holiman/uint256"

	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// Numbers are always canonical: the immediate form is used whenever the value fits,
// so that equal numbers have equal Vals and compare equal without resolution.

func (s *Store) U64Val(u uint64) (values.Val, error) {
	if v, ok := values.TrySmallUnsigned(values.TagU64Small, u); ok {
		return v, nil
	}
	return s.Allocate(U64Object(u))
}

func (s *Store) I64Val(i int64) (values.Val, error) {
	if v, ok := values.TrySmallSigned(values.TagI64Small, i); ok {
		return v, nil
	}
	return s.Allocate(I64Object(i))
}

func (s *Store) TimepointVal(u uint64) (values.Val, error) {
	if v, ok := values.TrySmallUnsigned(values.TagTimepointSmall, u); ok {
		return v, nil
	}
	return s.Allocate(TimepointObject(u))
}

func (s *Store) DurationVal(u uint64) (values.Val, error) {
	if v, ok := values.TrySmallUnsigned(values.TagDurationSmall, u); ok {
		return v, nil
	}
	return s.Allocate(DurationObject(u))
}

func (s *Store) U128Val(hi, lo uint64) (values.Val, error) {
	if hi == 0 {
		if v, ok := values.TrySmallUnsigned(values.TagU128Small, lo); ok {
			return v, nil
		}
	}
	return s.Allocate(U128Object{Hi: hi, Lo: lo})
}

func (s *Store) I128Val(hi int64, lo uint64) (values.Val, error) {
	// the value fits 64 bits if the high half is the sign extension of the low half
	if hi == int64(lo)>>63 {
		if v, ok := values.TrySmallSigned(values.TagI128Small, int64(lo)); ok {
			return v, nil
		}
	}
	return s.Allocate(I128Object{Hi: hi, Lo: lo})
}

func (s *Store) U256Val(u *uint256.Int) (values.Val, error) {
	if u.IsUint64() {
		if v, ok := values.TrySmallUnsigned(values.TagU256Small, u.Uint64()); ok {
			return v, nil
		}
	}
	return s.Allocate(U256Object{Value: *u})
}

// I256Val returns the canonical Val of the two's complement 256-bit integer.
func (s *Store) I256Val(i *uint256.Int) (values.Val, error) {
	if small, ok := int256ToInt64(i); ok {
		if v, ok := values.TrySmallSigned(values.TagI256Small, small); ok {
			return v, nil
		}
	}
	return s.Allocate(I256Object{Value: *i})
}

func int256ToInt64(i *uint256.Int) (int64, bool) {
	if i.Sign() >= 0 {
		if !i.IsUint64() || i.Uint64() > 1<<63-1 {
			return 0, false
		}
		return int64(i.Uint64()), true
	}
	var abs uint256.Int
	abs.Neg(i)
	if !abs.IsUint64() || abs.Uint64() > 1<<63 {
		return 0, false
	}
	return int64(-abs.Uint64()), true
}

func numberTypeMismatch(expected values.Tag, v values.Val) error {
	return errors.NewTypeMismatchError(expected, v.Tag())
}

func (s *Store) U64(v values.Val) (uint64, error) {
	switch v.Tag() {
	case values.TagU64Small:
		return v.SmallUnsigned(values.TagU64Small)
	case values.TagU64Object:
		o, err := ResolveAs[U64Object](s, v)
		return uint64(o), err
	}
	return 0, numberTypeMismatch(values.TagU64Object, v)
}

func (s *Store) I64(v values.Val) (int64, error) {
	switch v.Tag() {
	case values.TagI64Small:
		return v.SmallSigned(values.TagI64Small)
	case values.TagI64Object:
		o, err := ResolveAs[I64Object](s, v)
		return int64(o), err
	}
	return 0, numberTypeMismatch(values.TagI64Object, v)
}

func (s *Store) Timepoint(v values.Val) (uint64, error) {
	switch v.Tag() {
	case values.TagTimepointSmall:
		return v.SmallUnsigned(values.TagTimepointSmall)
	case values.TagTimepointObject:
		o, err := ResolveAs[TimepointObject](s, v)
		return uint64(o), err
	}
	return 0, numberTypeMismatch(values.TagTimepointObject, v)
}

func (s *Store) Duration(v values.Val) (uint64, error) {
	switch v.Tag() {
	case values.TagDurationSmall:
		return v.SmallUnsigned(values.TagDurationSmall)
	case values.TagDurationObject:
		o, err := ResolveAs[DurationObject](s, v)
		return uint64(o), err
	}
	return 0, numberTypeMismatch(values.TagDurationObject, v)
}

func (s *Store) U128(v values.Val) (hi uint64, lo uint64, err error) {
	switch v.Tag() {
	case values.TagU128Small:
		lo, err = v.SmallUnsigned(values.TagU128Small)
		return 0, lo, err
	case values.TagU128Object:
		o, err := ResolveAs[U128Object](s, v)
		return o.Hi, o.Lo, err
	}
	return 0, 0, numberTypeMismatch(values.TagU128Object, v)
}

func (s *Store) I128(v values.Val) (hi int64, lo uint64, err error) {
	switch v.Tag() {
	case values.TagI128Small:
		small, err := v.SmallSigned(values.TagI128Small)
		return small >> 63, uint64(small), err
	case values.TagI128Object:
		o, err := ResolveAs[I128Object](s, v)
		return o.Hi, o.Lo, err
	}
	return 0, 0, numberTypeMismatch(values.TagI128Object, v)
}

func (s *Store) U256(v values.Val) (*uint256.Int, error) {
	switch v.Tag() {
	case values.TagU256Small:
		small, err := v.SmallUnsigned(values.TagU256Small)
		return uint256.NewInt(small), err
	case values.TagU256Object:
		o, err := ResolveAs[U256Object](s, v)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Set(&o.Value), nil
	}
	return nil, numberTypeMismatch(values.TagU256Object, v)
}

// I256 returns the two's complement 256-bit integer of the value.
func (s *Store) I256(v values.Val) (*uint256.Int, error) {
	switch v.Tag() {
	case values.TagI256Small:
		small, err := v.SmallSigned(values.TagI256Small)
		if err != nil {
			return nil, err
		}
		return Int64ToInt256(small), nil
	case values.TagI256Object:
		o, err := ResolveAs[I256Object](s, v)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Set(&o.Value), nil
	}
	return nil, numberTypeMismatch(values.TagI256Object, v)
}

// Int64ToInt256 returns the two's complement 256-bit representation of i.
func Int64ToInt256(i int64) *uint256.Int {
	if i >= 0 {
		return uint256.NewInt(uint64(i))
	}
	result := uint256.NewInt(uint64(-i))
	return result.Neg(result)
}
