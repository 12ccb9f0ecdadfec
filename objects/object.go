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

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/values"
)

// Object is a heap-resident value referenced by a handle.
//
// Objects are immutable once allocated: operations which "modify" an object
// allocate a new one and return a new handle.
type Object interface {
	isObject()
	Tag() values.Tag
	// ShallowSize is the size of the object, excluding referenced objects.
	ShallowSize() uint64
	// Children returns the values referenced by the object.
	Children() []values.Val
}

// objectHeaderSize is the fixed accounting overhead of every object.
const objectHeaderSize = 16

const valSize = 8

const mapEntrySize = 2 * valSize

type U64Object uint64

var _ Object = U64Object(0)

func (U64Object) isObject()              {}
func (U64Object) Tag() values.Tag        { return values.TagU64Object }
func (U64Object) ShallowSize() uint64    { return objectHeaderSize + 8 }
func (U64Object) Children() []values.Val { return nil }

type I64Object int64

var _ Object = I64Object(0)

func (I64Object) isObject()              {}
func (I64Object) Tag() values.Tag        { return values.TagI64Object }
func (I64Object) ShallowSize() uint64    { return objectHeaderSize + 8 }
func (I64Object) Children() []values.Val { return nil }

type TimepointObject uint64

var _ Object = TimepointObject(0)

func (TimepointObject) isObject()              {}
func (TimepointObject) Tag() values.Tag        { return values.TagTimepointObject }
func (TimepointObject) ShallowSize() uint64    { return objectHeaderSize + 8 }
func (TimepointObject) Children() []values.Val { return nil }

type DurationObject uint64

var _ Object = DurationObject(0)

func (DurationObject) isObject()              {}
func (DurationObject) Tag() values.Tag        { return values.TagDurationObject }
func (DurationObject) ShallowSize() uint64    { return objectHeaderSize + 8 }
func (DurationObject) Children() []values.Val { return nil }

type U128Object struct {
	Hi uint64
	Lo uint64
}

var _ Object = U128Object{}

func (U128Object) isObject()              {}
func (U128Object) Tag() values.Tag        { return values.TagU128Object }
func (U128Object) ShallowSize() uint64    { return objectHeaderSize + 16 }
func (U128Object) Children() []values.Val { return nil }

// I128Object is a two's complement 128-bit integer.
type I128Object struct {
	Hi int64
	Lo uint64
}

var _ Object = I128Object{}

func (I128Object) isObject()              {}
func (I128Object) Tag() values.Tag        { return values.TagI128Object }
func (I128Object) ShallowSize() uint64    { return objectHeaderSize + 16 }
func (I128Object) Children() []values.Val { return nil }

type U256Object struct {
	Value uint256.Int
}

var _ Object = U256Object{}

func (U256Object) isObject()              {}
func (U256Object) Tag() values.Tag        { return values.TagU256Object }
func (U256Object) ShallowSize() uint64    { return objectHeaderSize + 32 }
func (U256Object) Children() []values.Val { return nil }

// I256Object is a two's complement 256-bit integer.
type I256Object struct {
	Value uint256.Int
}

var _ Object = I256Object{}

func (I256Object) isObject()              {}
func (I256Object) Tag() values.Tag        { return values.TagI256Object }
func (I256Object) ShallowSize() uint64    { return objectHeaderSize + 32 }
func (I256Object) Children() []values.Val { return nil }

type BytesObject []byte

var _ Object = BytesObject(nil)

func (BytesObject) isObject()              {}
func (BytesObject) Tag() values.Tag        { return values.TagBytesObject }
func (o BytesObject) ShallowSize() uint64  { return objectHeaderSize + uint64(len(o)) }
func (BytesObject) Children() []values.Val { return nil }

// StringObject is a valid UTF-8 string.
type StringObject string

var _ Object = StringObject("")

func (StringObject) isObject()              {}
func (StringObject) Tag() values.Tag        { return values.TagStringObject }
func (o StringObject) ShallowSize() uint64  { return objectHeaderSize + uint64(len(o)) }
func (StringObject) Children() []values.Val { return nil }

// SymbolObject is a symbol too long for an immediate.
type SymbolObject string

var _ Object = SymbolObject("")

func (SymbolObject) isObject()              {}
func (SymbolObject) Tag() values.Tag        { return values.TagSymbolObject }
func (o SymbolObject) ShallowSize() uint64  { return objectHeaderSize + uint64(len(o)) }
func (SymbolObject) Children() []values.Val { return nil }

type VecObject []values.Val

var _ Object = VecObject(nil)

func (VecObject) isObject()                {}
func (VecObject) Tag() values.Tag          { return values.TagVecObject }
func (o VecObject) ShallowSize() uint64    { return objectHeaderSize + valSize*uint64(len(o)) }
func (o VecObject) Children() []values.Val { return o }

type MapEntry struct {
	Key   values.Val
	Value values.Val
}

// MapObject is a mapping with unique keys, ordered by Store.Compare.
type MapObject []MapEntry

var _ Object = MapObject(nil)

func (MapObject) isObject()             {}
func (MapObject) Tag() values.Tag       { return values.TagMapObject }
func (o MapObject) ShallowSize() uint64 { return objectHeaderSize + mapEntrySize*uint64(len(o)) }

func (o MapObject) Children() []values.Val {
	children := make([]values.Val, 0, 2*len(o))
	for _, entry := range o {
		children = append(children, entry.Key, entry.Value)
	}
	return children
}

type AddressObject common.Address

var _ Object = AddressObject{}

func (AddressObject) isObject()              {}
func (AddressObject) Tag() values.Tag        { return values.TagAddressObject }
func (AddressObject) ShallowSize() uint64    { return objectHeaderSize + 1 + common.AddressLength }
func (AddressObject) Children() []values.Val { return nil }

type ExecutableObject ledger.Executable

var _ Object = ExecutableObject{}

func (ExecutableObject) isObject()       {}
func (ExecutableObject) Tag() values.Tag { return values.TagExecutableObject }

func (o ExecutableObject) ShallowSize() uint64 {
	return objectHeaderSize + 1 + 32 + uint64(len(o.Native))
}

func (ExecutableObject) Children() []values.Val { return nil }

type LedgerKeyObject ledger.Key

var _ Object = LedgerKeyObject{}

func (LedgerKeyObject) isObject()              {}
func (LedgerKeyObject) Tag() values.Tag        { return values.TagLedgerKeyObject }
func (o LedgerKeyObject) ShallowSize() uint64  { return objectHeaderSize + ledger.Key(o).Size() }
func (LedgerKeyObject) Children() []values.Val { return nil }
