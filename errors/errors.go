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
	"runtime/debug"

	"golang.org/x/xerrors"
)

// InternalError is an implementation error of the host, e.g. an unreachable code path.
//
// InternalErrors must never be caught by a contract. They always abort the transaction.
type InternalError interface {
	error
	IsInternalError()
}

// UserError is an error caused by a contract or its inputs, e.g. a type mismatch.
type UserError interface {
	error
	IsUserError()
}

// FatalError is an error which unwinds every frame and aborts the transaction,
// e.g. an exhausted budget.
type FatalError interface {
	error
	IsFatalError()
}

// UnreachableError is an internal error in the host which should have never occurred.
type UnreachableError struct {
	Stack []byte
}

var _ InternalError = UnreachableError{}

func (e UnreachableError) Error() string {
	return fmt.Sprintf("unreachable\n%s", e.Stack)
}

func (e UnreachableError) IsInternalError() {}

func NewUnreachableError() *UnreachableError {
	return &UnreachableError{Stack: debug.Stack()}
}

// UnexpectedError wraps an implementation error.
type UnexpectedError struct {
	Err error
}

var _ InternalError = UnexpectedError{}

func NewUnexpectedError(message string, arg ...any) UnexpectedError {
	return UnexpectedError{
		Err: fmt.Errorf(message, arg...),
	}
}

func NewUnexpectedErrorFromCause(err error) UnexpectedError {
	return UnexpectedError{
		Err: err,
	}
}

func (e UnexpectedError) Unwrap() error {
	return e.Err
}

func (e UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %s", e.Err.Error())
}

func (e UnexpectedError) IsInternalError() {}

// ExternalError is an error returned by an external collaborator,
// e.g. the ledger backend. It is fatal to the transaction.
type ExternalError struct {
	Err error
}

var _ FatalError = ExternalError{}

func NewExternalError(err error) ExternalError {
	return ExternalError{
		Err: err,
	}
}

func (e ExternalError) Unwrap() error {
	return e.Err
}

func (e ExternalError) Error() string {
	return fmt.Sprintf("external error: %s", e.Err.Error())
}

func (e ExternalError) IsFatalError() {}

// IsInternalError checks whether the given error has an InternalError in its chain.
func IsInternalError(err error) bool {
	switch err := err.(type) {
	case InternalError:
		return true
	case xerrors.Wrapper:
		return IsInternalError(err.Unwrap())
	default:
		return false
	}
}

// IsUserError checks whether the given error has a UserError in its chain.
func IsUserError(err error) bool {
	switch err := err.(type) {
	case UserError:
		return true
	case xerrors.Wrapper:
		return IsUserError(err.Unwrap())
	default:
		return false
	}
}

// IsFatal checks whether the given error must abort the whole transaction.
// Internal errors are always fatal.
func IsFatal(err error) bool {
	switch err := err.(type) {
	case nil:
		return false
	case *HostError:
		if err.Kind.Fatal() {
			return true
		}
		if err.Err != nil {
			return IsFatal(err.Err)
		}
		return false
	case FatalError:
		return true
	case InternalError:
		return true
	case xerrors.Wrapper:
		return IsFatal(err.Unwrap())
	default:
		return false
	}
}
