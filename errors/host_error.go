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

package errors

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Kind is the category of a host error.
// Kinds are part of the contract-facing ABI: their numeric values
// are observable by contracts through error values and must never change.
type Kind uint32

const (
	KindUnknown Kind = iota
	// KindContract is an error raised explicitly by a contract (fail_with_error).
	KindContract
	KindTypeMismatch
	KindInvalidHandle
	KindResourceExceeded
	KindBudgetExceeded
	KindFootprintViolation
	KindCallDepthExceeded
	KindUnknownImport
	KindOverflow
	KindContractTrap
	KindIndexBounds
	KindInvalidInput
	KindAuth
	KindCrypto
	KindMissingValue
	KindInternal

	// NOTE: must be last
	KindCount
)

var kindNames = [...]string{
	KindUnknown:            "Unknown",
	KindContract:           "Contract",
	KindTypeMismatch:       "TypeMismatch",
	KindInvalidHandle:      "InvalidHandle",
	KindResourceExceeded:   "ResourceExceeded",
	KindBudgetExceeded:     "BudgetExceeded",
	KindFootprintViolation: "FootprintViolation",
	KindCallDepthExceeded:  "CallDepthExceeded",
	KindUnknownImport:      "UnknownImport",
	KindOverflow:           "Overflow",
	KindContractTrap:       "ContractTrap",
	KindIndexBounds:        "IndexBounds",
	KindInvalidInput:       "InvalidInput",
	KindAuth:               "Auth",
	KindCrypto:             "Crypto",
	KindMissingValue:       "MissingValue",
	KindInternal:           "Internal",
}

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Fatal returns true if errors of this kind unwind to the root frame
// and abort the transaction, instead of being reported to the calling contract.
func (k Kind) Fatal() bool {
	switch k {
	case KindBudgetExceeded, KindUnknownImport, KindInternal:
		return true
	}
	return false
}

// HostError is the typed result of a failing host operation.
type HostError struct {
	Err     error
	Message string
	Kind    Kind
	Code    uint32
}

var _ UserError = &HostError{}

func NewHostError(kind Kind, message string, arg ...any) *HostError {
	return &HostError{
		Kind:    kind,
		Message: fmt.Sprintf(message, arg...),
	}
}

// NewContractError returns the error a contract raises with an explicit code.
func NewContractError(code uint32) *HostError {
	return &HostError{
		Kind:    KindContract,
		Code:    code,
		Message: fmt.Sprintf("contract error %d", code),
	}
}

// WrapHostError returns a host error of the given kind caused by err.
func WrapHostError(kind Kind, err error) *HostError {
	return &HostError{
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	}
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

func (*HostError) IsUserError() {}

// Is reports whether target is a host error of the same kind and code,
// so that sentinel comparisons work with xerrors.Is.
func (e *HostError) Is(target error) bool {
	other, ok := target.(*HostError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind && e.Code == other.Code
}

func NewTypeMismatchError(expected, actual fmt.Stringer) *HostError {
	return NewHostError(KindTypeMismatch, "expected %s, got %s", expected, actual)
}

func NewInvalidHandleError(message string, arg ...any) *HostError {
	return NewHostError(KindInvalidHandle, message, arg...)
}

func NewResourceExceededError(message string, arg ...any) *HostError {
	return NewHostError(KindResourceExceeded, message, arg...)
}

func NewBudgetExceededError(message string, arg ...any) *HostError {
	return NewHostError(KindBudgetExceeded, message, arg...)
}

func NewFootprintViolationError(key fmt.Stringer) *HostError {
	return NewHostError(KindFootprintViolation, "key outside footprint: %s", key)
}

func NewOverflowError(operation string) *HostError {
	return NewHostError(KindOverflow, "overflow in %s", operation)
}

func NewIndexBoundsError(index, length uint64) *HostError {
	return NewHostError(KindIndexBounds, "index %d out of bounds for length %d", index, length)
}

func NewInvalidInputError(message string, arg ...any) *HostError {
	return NewHostError(KindInvalidInput, message, arg...)
}

// KindOf returns the kind of the host error in the chain of err.
// Internal errors which are not host errors are reported as KindInternal.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return KindUnknown, false
	}
	var hostErr *HostError
	if xerrors.As(err, &hostErr) {
		return hostErr.Kind, true
	}
	if IsInternalError(err) {
		return KindInternal, true
	}
	return KindUnknown, false
}

// IsKind reports whether err has a host error of the given kind in its chain.
func IsKind(err error, kind Kind) bool {
	actual, ok := KindOf(err)
	return ok && actual == kind
}
