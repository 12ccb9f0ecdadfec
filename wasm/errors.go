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

package wasm

import (
	"fmt"
)

// InvalidMagicError is returned when the WASM binary does not start with the magic byte sequence
type InvalidMagicError struct {
	ReadError error
	Offset    int
}

func (e InvalidMagicError) Error() string {
	return fmt.Sprintf(
		"invalid magic at offset %d",
		e.Offset,
	)
}

func (e InvalidMagicError) Unwrap() error {
	return e.ReadError
}

// InvalidVersionError is returned when the WASM binary has an unsupported version
type InvalidVersionError struct {
	ReadError error
	Offset    int
}

func (e InvalidVersionError) Error() string {
	return fmt.Sprintf(
		"invalid version at offset %d",
		e.Offset,
	)
}

func (e InvalidVersionError) Unwrap() error {
	return e.ReadError
}

// InvalidSectionIDError is returned when the WASM binary specifies an invalid section ID
type InvalidSectionIDError struct {
	ReadError error
	Offset    int
	SectionID sectionID
}

func (e InvalidSectionIDError) Error() string {
	return fmt.Sprintf(
		"invalid section ID %d at offset %d",
		e.SectionID,
		e.Offset,
	)
}

func (e InvalidSectionIDError) Unwrap() error {
	return e.ReadError
}

// InvalidSectionOrderError is returned when a section is out of order
type InvalidSectionOrderError struct {
	Offset    int
	SectionID sectionID
}

func (e InvalidSectionOrderError) Error() string {
	return fmt.Sprintf(
		"out-of-order section with ID %d at offset %d",
		e.SectionID,
		e.Offset,
	)
}

// InvalidDuplicateSectionError is returned when a section appears more than once
type InvalidDuplicateSectionError struct {
	Offset    int
	SectionID sectionID
}

func (e InvalidDuplicateSectionError) Error() string {
	return fmt.Sprintf(
		"duplicate section with ID %d at offset %d",
		e.SectionID,
		e.Offset,
	)
}

// InvalidSectionSizeError is returned when the size of a section is invalid,
// or does not match the size of its contents
type InvalidSectionSizeError struct {
	ReadError error
	Offset    int
	SectionID sectionID
}

func (e InvalidSectionSizeError) Error() string {
	return fmt.Sprintf(
		"invalid size of section with ID %d at offset %d",
		e.SectionID,
		e.Offset,
	)
}

func (e InvalidSectionSizeError) Unwrap() error {
	return e.ReadError
}

// InvalidIntegerError is returned when an integer, like a count or an index, cannot be read
type InvalidIntegerError struct {
	ReadError error
	Name      string
	Offset    int
}

func (e InvalidIntegerError) Error() string {
	return fmt.Sprintf(
		"invalid %s at offset %d",
		e.Name,
		e.Offset,
	)
}

func (e InvalidIntegerError) Unwrap() error {
	return e.ReadError
}

// InvalidIndicatorError is returned when a byte indicating the kind of a definition is invalid
type InvalidIndicatorError struct {
	ReadError error
	Name      string
	Offset    int
	Indicator byte
}

func (e InvalidIndicatorError) Error() string {
	return fmt.Sprintf(
		"invalid %s indicator 0x%x at offset %d",
		e.Name,
		e.Indicator,
		e.Offset,
	)
}

func (e InvalidIndicatorError) Unwrap() error {
	return e.ReadError
}

// InvalidValTypeError is returned when a value type is invalid
type InvalidValTypeError struct {
	ReadError error
	Offset    int
	ValType   ValueType
}

func (e InvalidValTypeError) Error() string {
	return fmt.Sprintf(
		"invalid value type 0x%x at offset %d",
		byte(e.ValType),
		e.Offset,
	)
}

func (e InvalidValTypeError) Unwrap() error {
	return e.ReadError
}

// InvalidNameError is returned when a name cannot be read
type InvalidNameError struct {
	ReadError error
	Offset    int
}

func (e InvalidNameError) Error() string {
	return fmt.Sprintf(
		"invalid name at offset %d",
		e.Offset,
	)
}

func (e InvalidNameError) Unwrap() error {
	return e.ReadError
}

// InvalidOpcodeError is returned when an instruction is invalid or not supported
type InvalidOpcodeError struct {
	ReadError error
	Offset    int
	Opcode    byte
}

func (e InvalidOpcodeError) Error() string {
	return fmt.Sprintf(
		"invalid or unsupported opcode 0x%x at offset %d",
		e.Opcode,
		e.Offset,
	)
}

func (e InvalidOpcodeError) Unwrap() error {
	return e.ReadError
}

// InvalidBlockNestingError is returned when blocks are nested too deeply
type InvalidBlockNestingError struct {
	Offset int
}

func (e InvalidBlockNestingError) Error() string {
	return fmt.Sprintf(
		"blocks nested deeper than %d at offset %d",
		maxBlockNesting,
		e.Offset,
	)
}

// InvalidElseError is returned when an else instruction does not belong to an if instruction
type InvalidElseError struct {
	Offset int
}

func (e InvalidElseError) Error() string {
	return fmt.Sprintf(
		"unexpected else at offset %d",
		e.Offset,
	)
}

// InvalidLocalsError is returned when a function declares too many locals
type InvalidLocalsError struct {
	Offset int
	Count  uint64
}

func (e InvalidLocalsError) Error() string {
	return fmt.Sprintf(
		"invalid local count %d at offset %d",
		e.Count,
		e.Offset,
	)
}

// InvalidCodeSizeError is returned when the size of a function body does not match its contents
type InvalidCodeSizeError struct {
	Offset int
	Size   uint32
}

func (e InvalidCodeSizeError) Error() string {
	return fmt.Sprintf(
		"invalid code size %d at offset %d",
		e.Size,
		e.Offset,
	)
}

// FunctionCountMismatchError is returned when the function and code sections
// declare a different number of functions
type FunctionCountMismatchError struct {
	Offset int
}

func (e FunctionCountMismatchError) Error() string {
	return fmt.Sprintf(
		"function and code section have inconsistent lengths at offset %d",
		e.Offset,
	)
}

// InvalidNonUTF8NameError is returned when a name is not valid UTF-8
type InvalidNonUTF8NameError struct {
	Name   string
	Offset int
}

func (e InvalidNonUTF8NameError) Error() string {
	return fmt.Sprintf(
		"invalid non-UTF-8 string at offset %d: %s",
		e.Offset,
		e.Name,
	)
}
