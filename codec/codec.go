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

// Package codec implements the deterministic CBOR encoding of values.
//
// A value is encoded as the array [tag, body]. Numbers and symbols are
// encoded under the tag of their object form, independent of whether they
// are held as an immediate, so equal values have equal encodings.
package codec

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

// MaxDepth is the maximum nesting depth of an encoded value.
const MaxDepth = 64

// encodedValSize is the size bound charged for each value in addition to its deep size.
const encodedValSize = 8

type encodedVal struct {
	_    struct{} `cbor:",toarray"`
	Tag  values.Tag
	Body cbor.RawMessage
}

type errorBody struct {
	_    struct{} `cbor:",toarray"`
	Kind errors.Kind
	Code uint32
}

type u128Body struct {
	_  struct{} `cbor:",toarray"`
	Hi uint64
	Lo uint64
}

type i128Body struct {
	_  struct{} `cbor:",toarray"`
	Hi int64
	Lo uint64
}

type mapEntryBody struct {
	_     struct{} `cbor:",toarray"`
	Key   encodedVal
	Value encodedVal
}

type addressBody struct {
	_    struct{} `cbor:",toarray"`
	ID   []byte
	Kind common.AddressKind
}

var encMode = ledger.CBOREncMode

var decMode = func() cbor.DecMode {
	decMode, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  4*MaxDepth + 4,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return decMode
}()

// Encode returns the encoding of the value.
//
// The encoding is charged upfront, bounded by the deep size of the value.
func Encode(store *objects.Store, v values.Val) ([]byte, error) {
	size, err := store.DeepSize(v)
	if err != nil {
		return nil, err
	}
	err = store.Meter().Charge(common.CostTypeValSer, size+encodedValSize)
	if err != nil {
		return nil, err
	}

	node, err := encodeVal(store, v, 0)
	if err != nil {
		return nil, err
	}
	return marshal(node)
}

func marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, errors.NewUnexpectedErrorFromCause(err)
	}
	return data, nil
}

func encodeBody(tag values.Tag, body any) (encodedVal, error) {
	data, err := marshal(body)
	if err != nil {
		return encodedVal{}, err
	}
	return encodedVal{
		Tag:  tag,
		Body: data,
	}, nil
}

func encodeVal(store *objects.Store, v values.Val, depth int) (encodedVal, error) {
	if depth >= MaxDepth {
		return encodedVal{}, errors.NewResourceExceededError("value nesting exceeds %d", MaxDepth)
	}

	tag := v.Tag()

	switch tag {
	case values.TagFalse, values.TagTrue, values.TagVoid:
		return encodedVal{Tag: tag}, nil

	case values.TagError:
		kind, code, _ := v.ErrorParts()
		return encodeBody(tag, errorBody{Kind: kind, Code: code})

	case values.TagU32:
		u, _ := v.U32()
		return encodeBody(tag, u)

	case values.TagI32:
		i, _ := v.I32()
		return encodeBody(tag, i)

	case values.TagU64Small, values.TagU64Object:
		u, err := store.U64(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagU64Object, u)

	case values.TagI64Small, values.TagI64Object:
		i, err := store.I64(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagI64Object, i)

	case values.TagTimepointSmall, values.TagTimepointObject:
		u, err := store.Timepoint(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagTimepointObject, u)

	case values.TagDurationSmall, values.TagDurationObject:
		u, err := store.Duration(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagDurationObject, u)

	case values.TagU128Small, values.TagU128Object:
		hi, lo, err := store.U128(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagU128Object, u128Body{Hi: hi, Lo: lo})

	case values.TagI128Small, values.TagI128Object:
		hi, lo, err := store.I128(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagI128Object, i128Body{Hi: hi, Lo: lo})

	case values.TagU256Small, values.TagU256Object:
		u, err := store.U256(v)
		if err != nil {
			return encodedVal{}, err
		}
		b := u.Bytes32()
		return encodeBody(values.TagU256Object, b[:])

	case values.TagI256Small, values.TagI256Object:
		i, err := store.I256(v)
		if err != nil {
			return encodedVal{}, err
		}
		b := i.Bytes32()
		return encodeBody(values.TagI256Object, b[:])

	case values.TagSymbolSmall, values.TagSymbolObject:
		s, err := store.Symbol(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(values.TagSymbolObject, s)

	case values.TagBytesObject:
		b, err := store.Bytes(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(tag, []byte(b))

	case values.TagStringObject:
		s, err := store.String(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(tag, s)

	case values.TagVecObject:
		vec, err := store.Vec(v)
		if err != nil {
			return encodedVal{}, err
		}
		elements := make([]encodedVal, 0, len(vec))
		for _, element := range vec {
			encoded, err := encodeVal(store, element, depth+1)
			if err != nil {
				return encodedVal{}, err
			}
			elements = append(elements, encoded)
		}
		return encodeBody(tag, elements)

	case values.TagMapObject:
		m, err := store.Map(v)
		if err != nil {
			return encodedVal{}, err
		}
		entries := make([]mapEntryBody, 0, len(m))
		for _, entry := range m {
			key, err := encodeVal(store, entry.Key, depth+1)
			if err != nil {
				return encodedVal{}, err
			}
			value, err := encodeVal(store, entry.Value, depth+1)
			if err != nil {
				return encodedVal{}, err
			}
			entries = append(entries, mapEntryBody{Key: key, Value: value})
		}
		return encodeBody(tag, entries)

	case values.TagAddressObject:
		address, err := store.Address(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(tag, addressBody{Kind: address.Kind, ID: address.Bytes()})

	case values.TagExecutableObject:
		executable, err := store.Executable(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(tag, executable)

	case values.TagLedgerKeyObject:
		key, err := store.LedgerKey(v)
		if err != nil {
			return encodedVal{}, err
		}
		return encodeBody(tag, key.Encode())
	}

	return encodedVal{}, errors.NewTypeMismatchError(values.TagVoid, tag)
}

// Decode decodes a value into the store.
//
// The decoding is charged upfront by the input length;
// the decoded objects are charged by the store.
func Decode(store *objects.Store, data []byte) (values.Val, error) {
	err := store.Meter().Charge(common.CostTypeValDeser, uint64(len(data)))
	if err != nil {
		return 0, err
	}

	var node encodedVal
	err = unmarshal(data, &node)
	if err != nil {
		return 0, err
	}
	return decodeVal(store, node, 0)
}

func unmarshal(data []byte, v any) error {
	err := decMode.Unmarshal(data, v)
	if err != nil {
		return errors.WrapHostError(errors.KindInvalidInput, err)
	}
	return nil
}

func decodeVal(store *objects.Store, node encodedVal, depth int) (values.Val, error) {
	if depth >= MaxDepth {
		return 0, errors.NewResourceExceededError("value nesting exceeds %d", MaxDepth)
	}

	switch node.Tag {
	case values.TagFalse, values.TagTrue, values.TagVoid:
		return values.Val(node.Tag), nil

	case values.TagError:
		var body errorBody
		if err := unmarshal(node.Body, &body); err != nil {
			return 0, err
		}
		if body.Kind > values.MaxEpoch {
			return 0, errors.NewInvalidInputError("invalid error kind %d", body.Kind)
		}
		return values.FromError(body.Kind, body.Code), nil

	case values.TagU32:
		var u uint32
		if err := unmarshal(node.Body, &u); err != nil {
			return 0, err
		}
		return values.FromU32(u), nil

	case values.TagI32:
		var i int32
		if err := unmarshal(node.Body, &i); err != nil {
			return 0, err
		}
		return values.FromI32(i), nil

	case values.TagU64Object, values.TagTimepointObject, values.TagDurationObject:
		var u uint64
		if err := unmarshal(node.Body, &u); err != nil {
			return 0, err
		}
		switch node.Tag {
		case values.TagTimepointObject:
			return store.TimepointVal(u)
		case values.TagDurationObject:
			return store.DurationVal(u)
		}
		return store.U64Val(u)

	case values.TagI64Object:
		var i int64
		if err := unmarshal(node.Body, &i); err != nil {
			return 0, err
		}
		return store.I64Val(i)

	case values.TagU128Object:
		var body u128Body
		if err := unmarshal(node.Body, &body); err != nil {
			return 0, err
		}
		return store.U128Val(body.Hi, body.Lo)

	case values.TagI128Object:
		var body i128Body
		if err := unmarshal(node.Body, &body); err != nil {
			return 0, err
		}
		return store.I128Val(body.Hi, body.Lo)

	case values.TagU256Object, values.TagI256Object:
		var b []byte
		if err := unmarshal(node.Body, &b); err != nil {
			return 0, err
		}
		if len(b) != 32 {
			return 0, errors.NewInvalidInputError("invalid 256-bit integer length %d", len(b))
		}
		i := new(uint256.Int).SetBytes32(b)
		if node.Tag == values.TagI256Object {
			return store.I256Val(i)
		}
		return store.U256Val(i)

	case values.TagSymbolObject:
		var s string
		if err := unmarshal(node.Body, &s); err != nil {
			return 0, err
		}
		return store.SymbolVal(s)

	case values.TagBytesObject:
		var b []byte
		if err := unmarshal(node.Body, &b); err != nil {
			return 0, err
		}
		return store.BytesVal(b)

	case values.TagStringObject:
		var s string
		if err := unmarshal(node.Body, &s); err != nil {
			return 0, err
		}
		return store.StringVal(s)

	case values.TagVecObject:
		var elements []encodedVal
		if err := unmarshal(node.Body, &elements); err != nil {
			return 0, err
		}
		vec := make([]values.Val, 0, len(elements))
		for _, element := range elements {
			v, err := decodeVal(store, element, depth+1)
			if err != nil {
				return 0, err
			}
			vec = append(vec, v)
		}
		return store.NewVec(vec)

	case values.TagMapObject:
		var entries []mapEntryBody
		if err := unmarshal(node.Body, &entries); err != nil {
			return 0, err
		}
		m := make([]objects.MapEntry, 0, len(entries))
		for _, entry := range entries {
			key, err := decodeVal(store, entry.Key, depth+1)
			if err != nil {
				return 0, err
			}
			value, err := decodeVal(store, entry.Value, depth+1)
			if err != nil {
				return 0, err
			}
			m = append(m, objects.MapEntry{Key: key, Value: value})
		}
		return store.NewMap(m)

	case values.TagAddressObject:
		var body addressBody
		if err := unmarshal(node.Body, &body); err != nil {
			return 0, err
		}
		if body.Kind > common.AddressKindContract {
			return 0, errors.NewInvalidInputError("invalid address kind %d", body.Kind)
		}
		address, err := common.NewAddress(body.Kind, body.ID)
		if err != nil {
			return 0, errors.WrapHostError(errors.KindInvalidInput, err)
		}
		return store.AddressVal(address)

	case values.TagExecutableObject:
		var executable ledger.Executable
		if err := unmarshal(node.Body, &executable); err != nil {
			return 0, err
		}
		return store.ExecutableVal(executable)

	case values.TagLedgerKeyObject:
		var encoded []byte
		if err := unmarshal(node.Body, &encoded); err != nil {
			return 0, err
		}
		key, err := ledger.DecodeKey(encoded)
		if err != nil {
			return 0, errors.WrapHostError(errors.KindInvalidInput, err)
		}
		return store.LedgerKeyVal(key)
	}

	return 0, errors.NewInvalidInputError("invalid encoded tag %s", node.Tag)
}
