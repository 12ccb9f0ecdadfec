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

package values

import (
	"fmt"
)

// Tag is the low byte of a Val. It fully determines how the body is interpreted.
type Tag uint8

const (
	TagFalse Tag = iota
	TagTrue
	TagVoid
	TagError
	TagU32
	TagI32
	TagU64Small
	TagI64Small
	TagTimepointSmall
	TagDurationSmall
	TagU128Small
	TagI128Small
	TagU256Small
	TagI256Small
	TagSymbolSmall

	// NOTE: must be last small tag
	tagSmallUpperBound
)

const (
	TagU64Object Tag = iota + 64
	TagI64Object
	TagTimepointObject
	TagDurationObject
	TagU128Object
	TagI128Object
	TagU256Object
	TagI256Object
	TagBytesObject
	TagStringObject
	TagSymbolObject
	TagVecObject
	TagMapObject
	TagAddressObject
	TagExecutableObject
	TagLedgerKeyObject

	// NOTE: must be last object tag
	tagObjectUpperBound
)

const tagObjectLowerBound = TagU64Object

var tagNames = map[Tag]string{
	TagFalse:            "False",
	TagTrue:             "True",
	TagVoid:             "Void",
	TagError:            "Error",
	TagU32:              "U32",
	TagI32:              "I32",
	TagU64Small:         "U64Small",
	TagI64Small:         "I64Small",
	TagTimepointSmall:   "TimepointSmall",
	TagDurationSmall:    "DurationSmall",
	TagU128Small:        "U128Small",
	TagI128Small:        "I128Small",
	TagU256Small:        "U256Small",
	TagI256Small:        "I256Small",
	TagSymbolSmall:      "SymbolSmall",
	TagU64Object:        "U64Object",
	TagI64Object:        "I64Object",
	TagTimepointObject:  "TimepointObject",
	TagDurationObject:   "DurationObject",
	TagU128Object:       "U128Object",
	TagI128Object:       "I128Object",
	TagU256Object:       "U256Object",
	TagI256Object:       "I256Object",
	TagBytesObject:      "BytesObject",
	TagStringObject:     "StringObject",
	TagSymbolObject:     "SymbolObject",
	TagVecObject:        "VecObject",
	TagMapObject:        "MapObject",
	TagAddressObject:    "AddressObject",
	TagExecutableObject: "ExecutableObject",
	TagLedgerKeyObject:  "LedgerKeyObject",
}

func (t Tag) String() string {
	name, ok := tagNames[t]
	if ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Valid returns true if the tag is assigned.
func (t Tag) Valid() bool {
	return t < tagSmallUpperBound ||
		(t >= tagObjectLowerBound && t < tagObjectUpperBound)
}

// IsObject returns true if values with this tag are object handles.
func (t Tag) IsObject() bool {
	return t >= tagObjectLowerBound && t < tagObjectUpperBound
}

// ObjectTag returns the object form of a numeric or symbol small tag.
// Tags without an object form are returned unchanged.
func (t Tag) ObjectTag() Tag {
	switch t {
	case TagU64Small:
		return TagU64Object
	case TagI64Small:
		return TagI64Object
	case TagTimepointSmall:
		return TagTimepointObject
	case TagDurationSmall:
		return TagDurationObject
	case TagU128Small:
		return TagU128Object
	case TagI128Small:
		return TagI128Object
	case TagU256Small:
		return TagU256Object
	case TagI256Small:
		return TagI256Object
	case TagSymbolSmall:
		return TagSymbolObject
	}
	return t
}

// Class is the comparison class of a tag.
// Small and object forms of the same type share a class,
// and values are ordered by class first.
type Class uint8

const (
	ClassBool Class = iota
	ClassVoid
	ClassError
	ClassU32
	ClassI32
	ClassU64
	ClassI64
	ClassTimepoint
	ClassDuration
	ClassU128
	ClassI128
	ClassU256
	ClassI256
	ClassBytes
	ClassString
	ClassSymbol
	ClassVec
	ClassMap
	ClassAddress
	ClassExecutable
	ClassLedgerKey
	ClassInvalid
)

func (t Tag) Class() Class {
	switch t.ObjectTag() {
	case TagFalse, TagTrue:
		return ClassBool
	case TagVoid:
		return ClassVoid
	case TagError:
		return ClassError
	case TagU32:
		return ClassU32
	case TagI32:
		return ClassI32
	case TagU64Object:
		return ClassU64
	case TagI64Object:
		return ClassI64
	case TagTimepointObject:
		return ClassTimepoint
	case TagDurationObject:
		return ClassDuration
	case TagU128Object:
		return ClassU128
	case TagI128Object:
		return ClassI128
	case TagU256Object:
		return ClassU256
	case TagI256Object:
		return ClassI256
	case TagBytesObject:
		return ClassBytes
	case TagStringObject:
		return ClassString
	case TagSymbolObject:
		return ClassSymbol
	case TagVecObject:
		return ClassVec
	case TagMapObject:
		return ClassMap
	case TagAddressObject:
		return ClassAddress
	case TagExecutableObject:
		return ClassExecutable
	case TagLedgerKeyObject:
		return ClassLedgerKey
	}
	return ClassInvalid
}
