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
	"bytes"
	"cmp"
	"strings"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/values"
)

// Compare is the total order over values.
//
// Values are ordered by type class first, then by value.
// Objects are compared structurally, never by handle,
// so the order is independent of allocation order.
// Every object visited is charged.
// Object handles are validated even when identical.
func (s *Store) Compare(a, b values.Val) (int, error) {
	if err := s.Validate(a); err != nil {
		return 0, err
	}
	if err := s.Validate(b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	classA, classB := a.Tag().Class(), b.Tag().Class()
	if classA != classB {
		return cmp.Compare(classA, classB), nil
	}

	switch classA {
	case values.ClassBool:
		return cmp.Compare(a.Tag(), b.Tag()), nil

	case values.ClassVoid:
		return 0, nil

	case values.ClassError:
		kindA, codeA, _ := a.ErrorParts()
		kindB, codeB, _ := b.ErrorParts()
		if c := cmp.Compare(kindA, kindB); c != 0 {
			return c, nil
		}
		return cmp.Compare(codeA, codeB), nil

	case values.ClassU32:
		x, _ := a.U32()
		y, _ := b.U32()
		return cmp.Compare(x, y), nil

	case values.ClassI32:
		x, _ := a.I32()
		y, _ := b.I32()
		return cmp.Compare(x, y), nil

	case values.ClassU64:
		return compareWith(s, a, b, s.U64)

	case values.ClassI64:
		return compareWith(s, a, b, s.I64)

	case values.ClassTimepoint:
		return compareWith(s, a, b, s.Timepoint)

	case values.ClassDuration:
		return compareWith(s, a, b, s.Duration)

	case values.ClassU128:
		if err := s.chargeVisits(a, b); err != nil {
			return 0, err
		}
		hiA, loA, err := s.U128(a)
		if err != nil {
			return 0, err
		}
		hiB, loB, err := s.U128(b)
		if err != nil {
			return 0, err
		}
		if c := cmp.Compare(hiA, hiB); c != 0 {
			return c, nil
		}
		return cmp.Compare(loA, loB), nil

	case values.ClassI128:
		if err := s.chargeVisits(a, b); err != nil {
			return 0, err
		}
		hiA, loA, err := s.I128(a)
		if err != nil {
			return 0, err
		}
		hiB, loB, err := s.I128(b)
		if err != nil {
			return 0, err
		}
		if c := cmp.Compare(hiA, hiB); c != 0 {
			return c, nil
		}
		return cmp.Compare(loA, loB), nil

	case values.ClassU256:
		if err := s.chargeVisits(a, b); err != nil {
			return 0, err
		}
		x, err := s.U256(a)
		if err != nil {
			return 0, err
		}
		y, err := s.U256(b)
		if err != nil {
			return 0, err
		}
		return x.Cmp(y), nil

	case values.ClassI256:
		if err := s.chargeVisits(a, b); err != nil {
			return 0, err
		}
		x, err := s.I256(a)
		if err != nil {
			return 0, err
		}
		y, err := s.I256(b)
		if err != nil {
			return 0, err
		}
		switch {
		case x.Slt(y):
			return -1, nil
		case x.Sgt(y):
			return 1, nil
		}
		return 0, nil

	case values.ClassSymbol:
		x, err := s.Symbol(a)
		if err != nil {
			return 0, err
		}
		y, err := s.Symbol(b)
		if err != nil {
			return 0, err
		}
		err = s.meter.Charge(common.CostTypeHostMemCmp, uint64(min(len(x), len(y))))
		if err != nil {
			return 0, err
		}
		return strings.Compare(x, y), nil
	}

	// all remaining classes only have object forms

	if err := s.chargeVisits(a, b); err != nil {
		return 0, err
	}
	objectA, err := s.Resolve(a)
	if err != nil {
		return 0, err
	}
	objectB, err := s.Resolve(b)
	if err != nil {
		return 0, err
	}

	switch objectA := objectA.(type) {
	case BytesObject:
		objectB := objectB.(BytesObject)
		err := s.meter.Charge(common.CostTypeHostMemCmp, uint64(min(len(objectA), len(objectB))))
		if err != nil {
			return 0, err
		}
		return bytes.Compare(objectA, objectB), nil

	case StringObject:
		objectB := objectB.(StringObject)
		err := s.meter.Charge(common.CostTypeHostMemCmp, uint64(min(len(objectA), len(objectB))))
		if err != nil {
			return 0, err
		}
		return strings.Compare(string(objectA), string(objectB)), nil

	case VecObject:
		return s.compareVecs(objectA, objectB.(VecObject))

	case MapObject:
		return s.compareMaps(objectA, objectB.(MapObject))

	case AddressObject:
		return common.Address(objectA).Compare(common.Address(objectB.(AddressObject))), nil

	case ExecutableObject:
		return ledger.Executable(objectA).Compare(ledger.Executable(objectB.(ExecutableObject))), nil

	case LedgerKeyObject:
		return ledger.Key(objectA).Compare(ledger.Key(objectB.(LedgerKeyObject))), nil
	}

	return 0, errors.NewUnreachableError()
}

// Equal returns true if the values compare equal.
func (s *Store) Equal(a, b values.Val) (bool, error) {
	c, err := s.Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func compareWith[T cmp.Ordered](s *Store, a, b values.Val, get func(values.Val) (T, error)) (int, error) {
	if err := s.chargeVisits(a, b); err != nil {
		return 0, err
	}
	x, err := get(a)
	if err != nil {
		return 0, err
	}
	y, err := get(b)
	if err != nil {
		return 0, err
	}
	return cmp.Compare(x, y), nil
}

func (s *Store) chargeVisits(vals ...values.Val) error {
	for _, v := range vals {
		if !v.IsObject() {
			continue
		}
		err := s.meter.Charge(common.CostTypeVisitObject, 1)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) compareVecs(a, b VecObject) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		err := s.meter.Charge(common.CostTypeVecEntry, 1)
		if err != nil {
			return 0, err
		}
		c, err := s.Compare(a[i], b[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmp.Compare(len(a), len(b)), nil
}

func (s *Store) compareMaps(a, b MapObject) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		err := s.meter.Charge(common.CostTypeMapEntry, 1)
		if err != nil {
			return 0, err
		}
		c, err := s.Compare(a[i].Key, b[i].Key)
		if err != nil || c != 0 {
			return c, err
		}
		c, err = s.Compare(a[i].Value, b[i].Value)
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmp.Compare(len(a), len(b)), nil
}
