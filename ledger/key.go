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
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/onflow/wasmhost/common"
)

// KeyKind is the kind of ledger entry a key addresses.
type KeyKind uint8

const (
	KeyKindContractData KeyKind = iota
	KeyKindContractInstance
	KeyKindContractCode
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindContractData:
		return "data"
	case KeyKindContractInstance:
		return "instance"
	case KeyKindContractCode:
		return "code"
	}
	return fmt.Sprintf("KeyKind(%d)", uint8(k))
}

// Durability is the lifetime class of a contract data entry.
type Durability uint8

const (
	DurabilityPersistent Durability = iota
	DurabilityTemporary
)

func (d Durability) String() string {
	switch d {
	case DurabilityPersistent:
		return "persistent"
	case DurabilityTemporary:
		return "temporary"
	}
	return fmt.Sprintf("Durability(%d)", uint8(d))
}

// Key addresses a ledger entry.
//
// For contract data, Body is the canonical encoding of the key value.
// For contract code, Body is the code hash and Contract is the zero address.
type Key struct {
	Contract   common.Address
	Body       string
	Kind       KeyKind
	Durability Durability
}

func ContractDataKey(contract common.Address, durability Durability, body []byte) Key {
	return Key{
		Kind:       KeyKindContractData,
		Contract:   contract,
		Durability: durability,
		Body:       string(body),
	}
}

func ContractInstanceKey(contract common.Address) Key {
	return Key{
		Kind:     KeyKindContractInstance,
		Contract: contract,
	}
}

func ContractCodeKey(hash [32]byte) Key {
	return Key{
		Kind: KeyKindContractCode,
		Body: string(hash[:]),
	}
}

const encodedKeyHeaderLength = 3 + common.AddressLength

// Encode returns the canonical byte encoding of the key.
// The byte order of encodings is the order of keys.
func (k Key) Encode() []byte {
	encoded := make([]byte, 0, encodedKeyHeaderLength+len(k.Body))
	encoded = append(encoded, byte(k.Kind), byte(k.Durability), byte(k.Contract.Kind))
	encoded = append(encoded, k.Contract.ID[:]...)
	encoded = append(encoded, k.Body...)
	return encoded
}

// DecodeKey decodes a key encoded with Key.Encode.
func DecodeKey(encoded []byte) (Key, error) {
	if len(encoded) < encodedKeyHeaderLength {
		return Key{}, fmt.Errorf("invalid encoded key length: %d", len(encoded))
	}
	key := Key{
		Kind:       KeyKind(encoded[0]),
		Durability: Durability(encoded[1]),
		Body:       string(encoded[encodedKeyHeaderLength:]),
	}
	key.Contract.Kind = common.AddressKind(encoded[2])
	copy(key.Contract.ID[:], encoded[3:encodedKeyHeaderLength])
	return key, nil
}

// Size is the encoded size of the key, used for metering.
func (k Key) Size() uint64 {
	return uint64(encodedKeyHeaderLength + len(k.Body))
}

func (k Key) Compare(other Key) int {
	return bytes.Compare(k.Encode(), other.Encode())
}

func (k Key) String() string {
	switch k.Kind {
	case KeyKindContractCode:
		return fmt.Sprintf("code(%s)", hex.EncodeToString([]byte(k.Body)))
	case KeyKindContractInstance:
		return fmt.Sprintf("instance(%s)", k.Contract)
	}
	return fmt.Sprintf(
		"data(%s, %s, %s)",
		k.Contract,
		k.Durability,
		hex.EncodeToString([]byte(k.Body)),
	)
}
