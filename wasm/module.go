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

// Module represents a module
type Module struct {
	Types     []*FunctionType
	Imports   []*Import
	Functions []*Function
	Tables    []*Table
	Memories  []*Memory
	Globals   []*Global
	Exports   []*Export
	// StartFunctionIndex is optional
	StartFunctionIndex *uint32
	Elements           []*Element
	// DataCount is optional, it is required by bulk memory instructions
	DataCount *uint32
	Data      []*Data
}

// ImportedFunctionCount returns the number of function imports.
// Function indices start with the imported functions
func (m *Module) ImportedFunctionCount() uint32 {
	var count uint32
	for _, im := range m.Imports {
		if _, ok := im.Descriptor.(FunctionImport); ok {
			count++
		}
	}
	return count
}

// ValueType is the type of a value
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7F
	ValueTypeI64       ValueType = 0x7E
	ValueTypeF32       ValueType = 0x7D
	ValueTypeF64       ValueType = 0x7C
	ValueTypeV128      ValueType = 0x7B
	ValueTypeFuncRef   ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6F
)

// AsValueType returns the value type for the given byte,
// or 0 if the byte is not a valid value type
func AsValueType(b byte) ValueType {
	switch ValueType(b) {
	case ValueTypeI32,
		ValueTypeI64,
		ValueTypeF32,
		ValueTypeF64,
		ValueTypeV128,
		ValueTypeFuncRef,
		ValueTypeExternRef:

		return ValueType(b)
	}
	return 0
}

// IsReferenceType returns true if the value type is a reference type
func (t ValueType) IsReferenceType() bool {
	return t == ValueTypeFuncRef || t == ValueTypeExternRef
}

// FunctionType is the type of a function
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// functionTypeIndicator is the byte used to indicate a function type in the WASM binary
const functionTypeIndicator = 0x60

// Import represents an import
type Import struct {
	Module     string
	Name       string
	Descriptor ImportDescriptor
}

// ImportDescriptor is the imported definition
type ImportDescriptor interface {
	isImportDescriptor()
}

type FunctionImport struct {
	TypeIndex uint32
}

func (FunctionImport) isImportDescriptor() {}

type TableImport struct {
	Table Table
}

func (TableImport) isImportDescriptor() {}

type MemoryImport struct {
	Memory Memory
}

func (MemoryImport) isImportDescriptor() {}

type GlobalImport struct {
	Type    ValueType
	Mutable bool
}

func (GlobalImport) isImportDescriptor() {}

// importIndicator is the byte used to indicate the kind of import in the WASM binary
type importIndicator byte

const (
	importIndicatorFunction importIndicator = 0x0
	importIndicatorTable    importIndicator = 0x1
	importIndicatorMemory   importIndicator = 0x2
	importIndicatorGlobal   importIndicator = 0x3
)

// Function represents a function defined in the module
type Function struct {
	Code *Code
	// Name is not written, it is only used by the builder
	Name      string
	TypeIndex uint32
}

// Code represents the body of a function
type Code struct {
	Locals []ValueType
	// Instructions do not include the final end instruction
	Instructions []Instruction
}

// Table represents a table of references
type Table struct {
	// maximum number of elements. optional, unlimited if nil
	Max         *uint32
	Min         uint32
	ElementType ValueType
}

// MemoryPageSize is the size of a memory page: 64KiB
const MemoryPageSize = 64 * 1024

// Memory represents a memory
type Memory struct {
	// maximum number of pages (each one is 64KiB in size). optional, unlimited if nil
	Max *uint32
	// minimum number of pages (each one is 64KiB in size)
	Min uint32
}

// limitIndicator is the byte used to indicate the kind of limit in the WASM binary
type limitIndicator byte

const (
	limitIndicatorNoMax limitIndicator = 0x0
	limitIndicatorMax   limitIndicator = 0x1
)

// Global represents a global variable
type Global struct {
	// Init is a constant expression, without the final end instruction
	Init    []Instruction
	Type    ValueType
	Mutable bool
}

// mutabilityIndicator is the byte used to indicate the mutability of a global in the WASM binary
type mutabilityIndicator byte

const (
	mutabilityIndicatorConst mutabilityIndicator = 0x0
	mutabilityIndicatorVar   mutabilityIndicator = 0x1
)

// Export represents an export
type Export struct {
	Descriptor ExportDescriptor
	Name       string
}

// ExportDescriptor is the exported definition
type ExportDescriptor interface {
	isExportDescriptor()
}

type FunctionExport struct {
	FunctionIndex uint32
}

func (FunctionExport) isExportDescriptor() {}

type TableExport struct {
	TableIndex uint32
}

func (TableExport) isExportDescriptor() {}

type MemoryExport struct {
	MemoryIndex uint32
}

func (MemoryExport) isExportDescriptor() {}

type GlobalExport struct {
	GlobalIndex uint32
}

func (GlobalExport) isExportDescriptor() {}

// exportIndicator is the byte used to indicate the kind of export in the WASM binary
type exportIndicator byte

const (
	exportIndicatorFunction exportIndicator = 0x0
	exportIndicatorTable    exportIndicator = 0x1
	exportIndicatorMemory   exportIndicator = 0x2
	exportIndicatorGlobal   exportIndicator = 0x3
)

// ElementMode is the mode of an element segment
type ElementMode uint8

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// Element represents an element segment, which initializes tables.
// The elements are given either as function indices,
// or as constant expressions
type Element struct {
	// Offset is a constant expression, without the final end instruction.
	// Only active segments have an offset
	Offset          []Instruction
	FunctionIndices []uint32
	// Expressions are constant expressions, without the final end instruction
	Expressions [][]Instruction
	TableIndex  uint32
	Mode        ElementMode
	// Type is the reference type of the elements.
	// Segments with function indices always have type funcref
	Type ValueType
	// UsesExpressions is true if the elements are given as constant expressions
	UsesExpressions bool
}

// element segment flags in the WASM binary
const (
	elementFlagPassiveOrDeclarative = 0x1
	elementFlagExplicitTableIndex   = 0x2
	elementFlagDeclarative          = 0x2
	elementFlagExpressions          = 0x4
)

// elementKindFunction is the only element kind
const elementKindFunction = 0x0

// Data represents a data segment, which initializes memory
type Data struct {
	// Offset is a constant expression, without the final end instruction.
	// Passive segments have no offset
	Offset      []Instruction
	Init        []byte
	MemoryIndex uint32
	Passive     bool
}

// data segment flags in the WASM binary
const (
	dataFlagActive            = 0x0
	dataFlagPassive           = 0x1
	dataFlagActiveMemoryIndex = 0x2
)

// sectionID is the ID of a section in the WASM binary
type sectionID byte

const (
	sectionIDCustom    sectionID = 0
	sectionIDType      sectionID = 1
	sectionIDImport    sectionID = 2
	sectionIDFunction  sectionID = 3
	sectionIDTable     sectionID = 4
	sectionIDMemory    sectionID = 5
	sectionIDGlobal    sectionID = 6
	sectionIDExport    sectionID = 7
	sectionIDStart     sectionID = 8
	sectionIDElement   sectionID = 9
	sectionIDCode      sectionID = 10
	sectionIDData      sectionID = 11
	sectionIDDataCount sectionID = 12
)

// sectionOrder returns the position of a non-custom section in the WASM binary.
// The data count section comes before the code section
func sectionOrder(id sectionID) int {
	switch id {
	case sectionIDDataCount:
		return int(sectionIDElement) + 1
	case sectionIDCode, sectionIDData:
		return int(id) + 1
	}
	return int(id)
}
