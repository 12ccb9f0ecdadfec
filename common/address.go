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

package common

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const AddressLength = 32

// AddressKind distinguishes accounts from contracts.
type AddressKind uint8

const (
	AddressKindAccount AddressKind = iota
	AddressKindContract
)

func (k AddressKind) String() string {
	switch k {
	case AddressKindAccount:
		return "account"
	case AddressKindContract:
		return "contract"
	}
	return fmt.Sprintf("AddressKind(%d)", uint8(k))
}

// Address identifies an account or a contract.
type Address struct {
	ID   [AddressLength]byte
	Kind AddressKind
}

// NewAddress returns an address of the given kind,
// or an error if the identifier does not have exactly AddressLength bytes.
func NewAddress(kind AddressKind, id []byte) (Address, error) {
	if len(id) != AddressLength {
		return Address{}, fmt.Errorf(
			"invalid address length: expected %d, got %d",
			AddressLength,
			len(id),
		)
	}
	address := Address{Kind: kind}
	copy(address.ID[:], id)
	return address, nil
}

// MustContractAddress returns a contract address for the given seed.
// The seed is right-aligned in the identifier. It is intended for tests and tools.
func MustContractAddress(seed ...byte) Address {
	if len(seed) > AddressLength {
		panic(fmt.Errorf("address seed too long: %d", len(seed)))
	}
	address := Address{Kind: AddressKindContract}
	copy(address.ID[AddressLength-len(seed):], seed)
	return address
}

// MustAccountAddress is like MustContractAddress, but for accounts.
func MustAccountAddress(seed ...byte) Address {
	address := MustContractAddress(seed...)
	address.Kind = AddressKindAccount
	return address
}

func (a Address) Bytes() []byte {
	return a.ID[:]
}

// Compare orders addresses by kind first, then by identifier.
func (a Address) Compare(other Address) int {
	switch {
	case a.Kind < other.Kind:
		return -1
	case a.Kind > other.Kind:
		return 1
	}
	return bytes.Compare(a.ID[:], other.ID[:])
}

func (a Address) String() string {
	return a.Kind.String() + ":" + hex.EncodeToString(a.ID[:])
}
