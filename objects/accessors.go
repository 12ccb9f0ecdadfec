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
	"unicode/utf8"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/values"
)

// SymbolVal returns the canonical Val of the symbol:
// the immediate form if it fits, an object otherwise.
func (s *Store) SymbolVal(symbol string) (values.Val, error) {
	err := values.ValidateSymbol(symbol)
	if err != nil {
		return 0, err
	}
	if len(symbol) <= values.MaxSmallSymbolLength {
		return values.NewSymbolSmall(symbol)
	}
	return s.Allocate(SymbolObject(symbol))
}

// Symbol returns the string of a small or object symbol.
func (s *Store) Symbol(v values.Val) (string, error) {
	switch v.Tag() {
	case values.TagSymbolSmall:
		return v.SymbolSmall()
	case values.TagSymbolObject:
		o, err := ResolveAs[SymbolObject](s, v)
		return string(o), err
	}
	return "", errors.NewTypeMismatchError(values.TagSymbolObject, v.Tag())
}

func (s *Store) BytesVal(b []byte) (values.Val, error) {
	return s.Allocate(BytesObject(b))
}

// Bytes returns the content of a bytes object.
// The returned slice must not be modified.
func (s *Store) Bytes(v values.Val) ([]byte, error) {
	o, err := ResolveAs[BytesObject](s, v)
	return o, err
}

func (s *Store) StringVal(str string) (values.Val, error) {
	if !utf8.ValidString(str) {
		return 0, errors.NewInvalidInputError("invalid UTF-8 string")
	}
	return s.Allocate(StringObject(str))
}

func (s *Store) String(v values.Val) (string, error) {
	o, err := ResolveAs[StringObject](s, v)
	return string(o), err
}

// Vec returns the elements of a vec object.
// The returned slice must not be modified.
func (s *Store) Vec(v values.Val) (VecObject, error) {
	return ResolveAs[VecObject](s, v)
}

// Map returns the entries of a map object, in key order.
// The returned slice must not be modified.
func (s *Store) Map(v values.Val) (MapObject, error) {
	return ResolveAs[MapObject](s, v)
}

func (s *Store) AddressVal(address common.Address) (values.Val, error) {
	return s.Allocate(AddressObject(address))
}

func (s *Store) Address(v values.Val) (common.Address, error) {
	o, err := ResolveAs[AddressObject](s, v)
	return common.Address(o), err
}

// ContractAddress is like Address, but additionally requires a contract address.
func (s *Store) ContractAddress(v values.Val) (common.Address, error) {
	address, err := s.Address(v)
	if err != nil {
		return common.Address{}, err
	}
	if address.Kind != common.AddressKindContract {
		return common.Address{}, errors.NewInvalidInputError("not a contract address: %s", address)
	}
	return address, nil
}

func (s *Store) ExecutableVal(executable ledger.Executable) (values.Val, error) {
	return s.Allocate(ExecutableObject(executable))
}

func (s *Store) Executable(v values.Val) (ledger.Executable, error) {
	o, err := ResolveAs[ExecutableObject](s, v)
	return ledger.Executable(o), err
}

func (s *Store) LedgerKeyVal(key ledger.Key) (values.Val, error) {
	return s.Allocate(LedgerKeyObject(key))
}

func (s *Store) LedgerKey(v values.Val) (ledger.Key, error) {
	o, err := ResolveAs[LedgerKeyObject](s, v)
	return ledger.Key(o), err
}
