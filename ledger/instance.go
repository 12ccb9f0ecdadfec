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
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ExecutableKind distinguishes WASM code from host-native contracts.
type ExecutableKind uint8

const (
	ExecutableKindWasm ExecutableKind = iota
	ExecutableKindNative
)

func (k ExecutableKind) String() string {
	switch k {
	case ExecutableKindWasm:
		return "wasm"
	case ExecutableKindNative:
		return "native"
	}
	return fmt.Sprintf("ExecutableKind(%d)", uint8(k))
}

// Executable references the code of a contract.
// WASM executables are referenced by the SHA-256 hash of their code,
// native executables by their registered name.
type Executable struct {
	_        struct{} `cbor:",toarray"`
	Native   string
	WasmHash [32]byte
	Kind     ExecutableKind
}

func WasmExecutable(code []byte) Executable {
	return Executable{
		Kind:     ExecutableKindWasm,
		WasmHash: sha256.Sum256(code),
	}
}

func NativeExecutable(name string) Executable {
	return Executable{
		Kind:   ExecutableKindNative,
		Native: name,
	}
}

func (e Executable) Compare(other Executable) int {
	switch {
	case e.Kind < other.Kind:
		return -1
	case e.Kind > other.Kind:
		return 1
	}
	if c := bytes.Compare(e.WasmHash[:], other.WasmHash[:]); c != 0 {
		return c
	}
	return strings.Compare(e.Native, other.Native)
}

func (e Executable) String() string {
	if e.Kind == ExecutableKindNative {
		return fmt.Sprintf("native(%s)", e.Native)
	}
	return fmt.Sprintf("wasm(%x)", e.WasmHash)
}

// ContractInstance is the ledger entry stored under a contract's instance key.
type ContractInstance struct {
	_          struct{} `cbor:",toarray"`
	Executable Executable
}

// CBOREncMode is the deterministic encoding used for ledger entries owned by the host.
var CBOREncMode = func() cbor.EncMode {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return encMode
}()

var CBORDecMode = func() cbor.DecMode {
	decMode, err := cbor.DecOptions{
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return decMode
}()

func EncodeContractInstance(instance ContractInstance) ([]byte, error) {
	return CBOREncMode.Marshal(instance)
}

func DecodeContractInstance(data []byte) (ContractInstance, error) {
	var instance ContractInstance
	err := CBORDecMode.Unmarshal(data, &instance)
	if err != nil {
		return ContractInstance{}, fmt.Errorf("invalid contract instance: %w", err)
	}
	return instance, nil
}
