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
	"fmt"
)

// CostType identifies a category of chargeable work.
// Each category has its own coefficients in the cost model.
type CostType uint8

const (
	// CostTypeWasmInsnExec is charged per guest instruction executed.
	CostTypeWasmInsnExec CostType = iota
	// CostTypeWasmMemAlloc is charged per byte of guest linear memory grown.
	CostTypeWasmMemAlloc
	// CostTypeHostMemAlloc is charged per byte of object allocated in the object store.
	CostTypeHostMemAlloc
	// CostTypeHostMemCpy is charged per byte copied between host buffers or linear memory.
	CostTypeHostMemCpy
	// CostTypeHostMemCmp is charged per byte compared.
	CostTypeHostMemCmp
	// CostTypeDispatchHostFunction is charged once per host function call.
	CostTypeDispatchHostFunction
	// CostTypeVisitObject is charged per object visited during a deep traversal.
	CostTypeVisitObject
	// CostTypeValSer is charged per byte of serialized value bound.
	CostTypeValSer
	// CostTypeValDeser is charged per byte of input to deserialize.
	CostTypeValDeser
	CostTypeComputeSha256Hash
	CostTypeComputeKeccak256Hash
	CostTypeComputeEd25519PubKey
	CostTypeVerifyEd25519Sig
	CostTypeRecoverEcdsaSecp256k1Key
	CostTypeDecodeEcdsaCurve256Sig
	CostTypeInt256AddSub
	CostTypeInt256Mul
	CostTypeInt256Div
	CostTypeInt256Pow
	CostTypeInt256Shift
	CostTypeChaCha20DrawBytes
	// CostTypeVmInstantiation is charged per byte of module code instantiated.
	CostTypeVmInstantiation
	// CostTypeInvokeVmFunction is charged once per call into a guest export.
	CostTypeInvokeVmFunction
	// CostTypeReadLedgerEntry is charged per byte of ledger entry loaded.
	CostTypeReadLedgerEntry
	// CostTypeWriteLedgerEntry is charged per byte of ledger entry written.
	CostTypeWriteLedgerEntry
	// CostTypeMapEntry is charged per map entry scanned.
	CostTypeMapEntry
	// CostTypeVecEntry is charged per vector element scanned.
	CostTypeVecEntry

	// NOTE: must be last
	CostTypeCount
)

var costTypeNames = [...]string{
	CostTypeWasmInsnExec:             "WasmInsnExec",
	CostTypeWasmMemAlloc:             "WasmMemAlloc",
	CostTypeHostMemAlloc:             "HostMemAlloc",
	CostTypeHostMemCpy:               "HostMemCpy",
	CostTypeHostMemCmp:               "HostMemCmp",
	CostTypeDispatchHostFunction:     "DispatchHostFunction",
	CostTypeVisitObject:              "VisitObject",
	CostTypeValSer:                   "ValSer",
	CostTypeValDeser:                 "ValDeser",
	CostTypeComputeSha256Hash:        "ComputeSha256Hash",
	CostTypeComputeKeccak256Hash:     "ComputeKeccak256Hash",
	CostTypeComputeEd25519PubKey:     "ComputeEd25519PubKey",
	CostTypeVerifyEd25519Sig:         "VerifyEd25519Sig",
	CostTypeRecoverEcdsaSecp256k1Key: "RecoverEcdsaSecp256k1Key",
	CostTypeDecodeEcdsaCurve256Sig:   "DecodeEcdsaCurve256Sig",
	CostTypeInt256AddSub:             "Int256AddSub",
	CostTypeInt256Mul:                "Int256Mul",
	CostTypeInt256Div:                "Int256Div",
	CostTypeInt256Pow:                "Int256Pow",
	CostTypeInt256Shift:              "Int256Shift",
	CostTypeChaCha20DrawBytes:        "ChaCha20DrawBytes",
	CostTypeVmInstantiation:          "VmInstantiation",
	CostTypeInvokeVmFunction:         "InvokeVmFunction",
	CostTypeReadLedgerEntry:          "ReadLedgerEntry",
	CostTypeWriteLedgerEntry:         "WriteLedgerEntry",
	CostTypeMapEntry:                 "MapEntry",
	CostTypeVecEntry:                 "VecEntry",
}

func (t CostType) String() string {
	if t < CostTypeCount {
		return costTypeNames[t]
	}
	return fmt.Sprintf("CostType(%d)", uint8(t))
}

// CostTypeByName returns the cost type with the given name.
func CostTypeByName(name string) (CostType, bool) {
	for i, n := range costTypeNames {
		if n == name {
			return CostType(i), true
		}
	}
	return 0, false
}

// Meter is implemented by everything that can be charged for work.
//
// Charge must be called before the work is performed.
// A failed charge means the work must not be performed.
type Meter interface {
	Charge(kind CostType, input uint64) error
}

// NopMeter is a meter which never fails. It is used by tooling, never by a transaction.
type NopMeter struct{}

var _ Meter = NopMeter{}

func (NopMeter) Charge(_ CostType, _ uint64) error {
	return nil
}
