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

	"golang.org/x/xerrors"

	"github.com/onflow/wasmhost/errors"
)

// Val is the 64-bit tagged scalar shared between host and guest.
//
// The low 8 bits hold the Tag, the upper 56 bits hold the body.
// For object handles the body is the object index (upper 32 bits)
// followed by the 24-bit epoch of the store at allocation time.
//
// Vals carry no ownership. A handle is meaningless outside the host which minted it.
type Val uint64

const (
	tagBits  = 8
	bodyBits = 64 - tagBits
	tagMask  = 1<<tagBits - 1

	// MaxSmallUnsigned is the largest unsigned integer which fits the body.
	MaxSmallUnsigned = 1<<bodyBits - 1
	// MaxSmallSigned is the largest signed integer which fits the body.
	MaxSmallSigned = 1<<(bodyBits-1) - 1
	// MinSmallSigned is the smallest signed integer which fits the body.
	MinSmallSigned = -(1 << (bodyBits - 1))

	epochBits = 24
	// MaxEpoch is the largest epoch an object handle can carry.
	MaxEpoch = 1<<epochBits - 1
)

const (
	False = Val(TagFalse)
	True  = Val(TagTrue)
	Void  = Val(TagVoid)
)

func fromBody(tag Tag, body uint64) Val {
	return Val(body<<tagBits | uint64(tag))
}

func (v Val) Tag() Tag {
	return Tag(v & tagMask)
}

func (v Val) body() uint64 {
	return uint64(v) >> tagBits
}

func (v Val) signedBody() int64 {
	return int64(v) >> tagBits
}

func (v Val) IsObject() bool {
	return v.Tag().IsObject()
}

// Raw returns the native 64-bit representation used by the guest.
func (v Val) Raw() uint64 {
	return uint64(v)
}

// FromRaw converts a guest-supplied 64-bit value into a Val,
// rejecting unassigned tags and non-canonical bodies.
func FromRaw(raw uint64) (Val, error) {
	v := Val(raw)
	tag := v.Tag()
	if !tag.Valid() {
		return 0, errors.NewHostError(errors.KindTypeMismatch, "invalid tag %d", uint8(tag))
	}

	switch tag {
	case TagFalse, TagTrue, TagVoid:
		if v.body() != 0 {
			return 0, errors.NewHostError(errors.KindTypeMismatch, "non-zero body for %s", tag)
		}
	case TagU32, TagI32:
		if v.body()>>32 != 0 {
			return 0, errors.NewHostError(errors.KindTypeMismatch, "non-zero upper body for %s", tag)
		}
	case TagSymbolSmall:
		if !validSymbolBody(v.body()) {
			return 0, errors.NewHostError(errors.KindTypeMismatch, "invalid small symbol")
		}
	}

	return v, nil
}

func (v Val) checkTag(expected Tag) error {
	actual := v.Tag()
	if actual != expected {
		return errors.NewTypeMismatchError(expected, actual)
	}
	return nil
}

func FromBool(b bool) Val {
	if b {
		return True
	}
	return False
}

func (v Val) Bool() (bool, error) {
	switch v.Tag() {
	case TagTrue:
		return true, nil
	case TagFalse:
		return false, nil
	}
	return false, errors.NewTypeMismatchError(TagTrue, v.Tag())
}

func (v Val) IsVoid() bool {
	return v == Void
}

func FromU32(u uint32) Val {
	return fromBody(TagU32, uint64(u))
}

func (v Val) U32() (uint32, error) {
	if err := v.checkTag(TagU32); err != nil {
		return 0, err
	}
	return uint32(v.body()), nil
}

func FromI32(i int32) Val {
	return fromBody(TagI32, uint64(uint32(i)))
}

func (v Val) I32() (int32, error) {
	if err := v.checkTag(TagI32); err != nil {
		return 0, err
	}
	return int32(uint32(v.body())), nil
}

// TrySmallUnsigned returns an immediate with the given small tag,
// if u fits into the body.
func TrySmallUnsigned(tag Tag, u uint64) (Val, bool) {
	if u > MaxSmallUnsigned {
		return 0, false
	}
	return fromBody(tag, u), true
}

// TrySmallSigned returns an immediate with the given small tag,
// if i fits into the body.
func TrySmallSigned(tag Tag, i int64) (Val, bool) {
	if i < MinSmallSigned || i > MaxSmallSigned {
		return 0, false
	}
	return fromBody(tag, uint64(i)&MaxSmallUnsigned), true
}

// SmallUnsigned returns the body of an unsigned small immediate with the given tag.
func (v Val) SmallUnsigned(tag Tag) (uint64, error) {
	if err := v.checkTag(tag); err != nil {
		return 0, err
	}
	return v.body(), nil
}

// SmallSigned returns the sign-extended body of a signed small immediate with the given tag.
func (v Val) SmallSigned(tag Tag) (int64, error) {
	if err := v.checkTag(tag); err != nil {
		return 0, err
	}
	return v.signedBody(), nil
}

// IsSigned returns true if the tag is a signed integer type.
func (t Tag) IsSigned() bool {
	switch t {
	case TagI32, TagI64Small, TagI128Small, TagI256Small:
		return true
	}
	return false
}

// FromError returns an error value.
func FromError(kind errors.Kind, code uint32) Val {
	return fromBody(TagError, uint64(code)<<epochBits|uint64(kind)&MaxEpoch)
}

// FromHostError returns the error value reported to contracts for err.
func FromHostError(err error) Val {
	kind, ok := errors.KindOf(err)
	if !ok {
		return FromError(errors.KindUnknown, 0)
	}
	var code uint32
	var hostErr *errors.HostError
	if xerrors.As(err, &hostErr) {
		code = hostErr.Code
	}
	return FromError(kind, code)
}

// ErrorParts returns the kind and the code of an error value.
func (v Val) ErrorParts() (errors.Kind, uint32, error) {
	if err := v.checkTag(TagError); err != nil {
		return 0, 0, err
	}
	body := v.body()
	return errors.Kind(body & MaxEpoch), uint32(body >> epochBits), nil
}

// NewObjectHandle mints a handle.
//
// NOTE: only the object store may mint handles.
func NewObjectHandle(tag Tag, index uint32, epoch uint32) Val {
	if !tag.IsObject() {
		panic(errors.NewUnexpectedError("not an object tag: %s", tag))
	}
	return fromBody(tag, uint64(index)<<epochBits|uint64(epoch&MaxEpoch))
}

// ObjectIndex returns the index of an object handle.
func (v Val) ObjectIndex() uint32 {
	return uint32(v >> 32)
}

// ObjectEpoch returns the epoch of an object handle.
func (v Val) ObjectEpoch() uint32 {
	return uint32(v.body()) & MaxEpoch
}

func (v Val) String() string {
	tag := v.Tag()
	switch {
	case tag == TagFalse:
		return "false"
	case tag == TagTrue:
		return "true"
	case tag == TagVoid:
		return "void"
	case tag == TagError:
		kind, code, _ := v.ErrorParts()
		return fmt.Sprintf("Error(%s, %d)", kind, code)
	case tag == TagU32:
		return fmt.Sprintf("%du32", uint32(v.body()))
	case tag == TagI32:
		return fmt.Sprintf("%di32", int32(uint32(v.body())))
	case tag == TagSymbolSmall:
		return fmt.Sprintf("Symbol(%s)", decodeSymbolBody(v.body()))
	case tag.IsObject():
		return fmt.Sprintf("%s(#%d@%d)", tag, v.ObjectIndex(), v.ObjectEpoch())
	case tag.IsSigned():
		return fmt.Sprintf("%s(%d)", tag, v.signedBody())
	case tag.Valid():
		return fmt.Sprintf("%s(%d)", tag, v.body())
	}
	return fmt.Sprintf("Val(%#x)", uint64(v))
}
