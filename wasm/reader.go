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
	"errors"
	"io"
	"math"
	"unicode/utf8"
)

// maxBlockNesting is the maximum depth of nested blocks, loops and ifs
const maxBlockNesting = 1024

// maxFunctionLocals is the maximum number of locals of a function
const maxFunctionLocals = 50_000

// WASMReader allows reading WASM binaries
type WASMReader struct {
	buf              *Buffer
	Module           Module
	lastSectionOrder int
	didReadFunctions bool
	didReadCode      bool
}

func NewWASMReader(buf *Buffer) *WASMReader {
	return &WASMReader{
		buf: buf,
	}
}

// DecodeModule reads the given WASM binary
func DecodeModule(code []byte) (*Module, error) {
	r := NewWASMReader(NewBuffer(code))
	err := r.ReadModule()
	if err != nil {
		return nil, err
	}
	return &r.Module, nil
}

func (r *WASMReader) ReadModule() error {
	if err := r.readMagicAndVersion(); err != nil {
		return err
	}

	for {
		_, err := r.buf.PeekByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		if err = r.readSection(); err != nil {
			return err
		}
	}

	// functions declared without code, or code without functions
	if r.didReadFunctions != r.didReadCode {
		return FunctionCountMismatchError{
			Offset: int(r.buf.offset),
		}
	}

	return nil
}

// readMagicAndVersion reads the magic byte sequence and version at the beginning of the WASM binary
func (r *WASMReader) readMagicAndVersion() error {

	// Read the magic
	equal, err := r.buf.ReadBytesEqual(wasmMagic)
	if err != nil || !equal {
		return InvalidMagicError{
			Offset:    int(r.buf.offset),
			ReadError: err,
		}
	}

	// Read the version
	equal, err = r.buf.ReadBytesEqual(wasmVersion)
	if err != nil || !equal {
		return InvalidVersionError{
			Offset:    int(r.buf.offset),
			ReadError: err,
		}
	}

	return nil
}

// readSection reads a section in the WASM binary
func (r *WASMReader) readSection() error {
	// read the section ID
	sectionIDOffset := r.buf.offset
	b, err := r.buf.ReadByte()

	sectionID := sectionID(b)

	if err != nil || sectionID > sectionIDDataCount {
		return InvalidSectionIDError{
			SectionID: sectionID,
			Offset:    int(sectionIDOffset),
			ReadError: err,
		}
	}

	// "Custom sections may be inserted at any place in this sequence,
	// while other sections must occur at most once and in the prescribed order."

	if sectionID != sectionIDCustom {
		order := sectionOrder(sectionID)
		if order == r.lastSectionOrder {
			return InvalidDuplicateSectionError{
				SectionID: sectionID,
				Offset:    int(sectionIDOffset),
			}
		}
		if order < r.lastSectionOrder {
			return InvalidSectionOrderError{
				SectionID: sectionID,
				Offset:    int(sectionIDOffset),
			}
		}
		r.lastSectionOrder = order
	}

	// read the size
	sizeOffset := r.buf.offset
	size, err := r.buf.readUint32LEB128()
	if err == nil && int(size) > r.buf.remaining() {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return InvalidSectionSizeError{
			SectionID: sectionID,
			Offset:    int(sizeOffset),
			ReadError: err,
		}
	}

	end := r.buf.offset + offset(size)

	switch sectionID {
	case sectionIDCustom:
		// custom sections, including names, are not kept
		r.buf.offset = end
	case sectionIDType:
		err = r.readTypeSection()
	case sectionIDImport:
		err = r.readImportSection()
	case sectionIDFunction:
		err = r.readFunctionSection()
		r.didReadFunctions = true
	case sectionIDTable:
		err = r.readTableSection()
	case sectionIDMemory:
		err = r.readMemorySection()
	case sectionIDGlobal:
		err = r.readGlobalSection()
	case sectionIDExport:
		err = r.readExportSection()
	case sectionIDStart:
		err = r.readStartSection()
	case sectionIDElement:
		err = r.readElementSection()
	case sectionIDCode:
		err = r.readCodeSection()
		r.didReadCode = true
	case sectionIDData:
		err = r.readDataSection()
	case sectionIDDataCount:
		err = r.readDataCountSection()
	}
	if err != nil {
		return err
	}

	// the contents must fill the section exactly
	if r.buf.offset != end {
		return InvalidSectionSizeError{
			SectionID: sectionID,
			Offset:    int(sizeOffset),
		}
	}

	return nil
}

// readUint32 reads a uint32 in LEB128 format
func (r *WASMReader) readUint32(name string) (uint32, error) {
	off := r.buf.offset
	v, err := r.buf.readUint32LEB128()
	if err != nil {
		return 0, InvalidIntegerError{
			Name:      name,
			Offset:    int(off),
			ReadError: err,
		}
	}
	return v, nil
}

// readCount reads the number of elements of a vector.
// Each element takes at least one byte, so the count is bounded by the remaining input
func (r *WASMReader) readCount(name string) (uint32, error) {
	off := r.buf.offset
	count, err := r.readUint32(name)
	if err != nil {
		return 0, err
	}
	if int(count) > r.buf.remaining() {
		return 0, InvalidIntegerError{
			Name:      name,
			Offset:    int(off),
			ReadError: io.ErrUnexpectedEOF,
		}
	}
	return count, nil
}

// readVector reads the count, followed by each element
func readVector[T any](r *WASMReader, name string, readElement func() (T, error)) ([]T, error) {
	count, err := r.readCount(name)
	if err != nil {
		return nil, err
	}
	elements := make([]T, count)
	for i := range elements {
		elements[i], err = readElement()
		if err != nil {
			return nil, err
		}
	}
	return elements, nil
}

// readTypeSection reads the section that declares all function types
// so they can be referenced by index
func (r *WASMReader) readTypeSection() error {
	funcTypes, err := readVector(r, "type count", r.readFuncType)
	if err != nil {
		return err
	}
	r.Module.Types = funcTypes
	return nil
}

// readFuncType reads a function type
func (r *WASMReader) readFuncType() (*FunctionType, error) {
	// read the function type indicator
	indicatorOffset := r.buf.offset
	indicator, err := r.buf.ReadByte()
	if err != nil || indicator != functionTypeIndicator {
		return nil, InvalidIndicatorError{
			Name:      "function type",
			Offset:    int(indicatorOffset),
			Indicator: indicator,
			ReadError: err,
		}
	}

	params, err := readVector(r, "parameter count", r.readValType)
	if err != nil {
		return nil, err
	}

	results, err := readVector(r, "result count", r.readValType)
	if err != nil {
		return nil, err
	}

	funcType := &FunctionType{}
	if len(params) > 0 {
		funcType.Params = params
	}
	if len(results) > 0 {
		funcType.Results = results
	}
	return funcType, nil
}

// readValType reads a value type
func (r *WASMReader) readValType() (ValueType, error) {
	valTypeOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, InvalidValTypeError{
			Offset:    int(valTypeOffset),
			ValType:   ValueType(b),
			ReadError: err,
		}
	}

	valType := AsValueType(b)
	if valType == 0 {
		return 0, InvalidValTypeError{
			Offset:  int(valTypeOffset),
			ValType: ValueType(b),
		}
	}

	return valType, nil
}

// readRefType reads a reference type
func (r *WASMReader) readRefType() (ValueType, error) {
	refTypeOffset := r.buf.offset
	valType, err := r.readValType()
	if err != nil {
		return 0, err
	}
	if !valType.IsReferenceType() {
		return 0, InvalidValTypeError{
			Offset:  int(refTypeOffset),
			ValType: valType,
		}
	}
	return valType, nil
}

// readImportSection reads the section that declares the imports
func (r *WASMReader) readImportSection() error {
	imports, err := readVector(r, "import count", r.readImport)
	if err != nil {
		return err
	}
	r.Module.Imports = imports
	return nil
}

// readImport reads an import in the import section
func (r *WASMReader) readImport() (*Import, error) {

	// read the module
	module, err := r.readName()
	if err != nil {
		return nil, err
	}

	// read the name
	name, err := r.readName()
	if err != nil {
		return nil, err
	}

	// read the type indicator
	indicatorOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return nil, InvalidIndicatorError{
			Name:      "import",
			Offset:    int(indicatorOffset),
			ReadError: err,
		}
	}

	var descriptor ImportDescriptor

	switch importIndicator(b) {
	case importIndicatorFunction:
		typeIndex, err := r.readUint32("import type index")
		if err != nil {
			return nil, err
		}
		descriptor = FunctionImport{
			TypeIndex: typeIndex,
		}

	case importIndicatorTable:
		table, err := r.readTable()
		if err != nil {
			return nil, err
		}
		descriptor = TableImport{
			Table: *table,
		}

	case importIndicatorMemory:
		memory, err := r.readMemory()
		if err != nil {
			return nil, err
		}
		descriptor = MemoryImport{
			Memory: *memory,
		}

	case importIndicatorGlobal:
		valType, mutable, err := r.readGlobalType()
		if err != nil {
			return nil, err
		}
		descriptor = GlobalImport{
			Type:    valType,
			Mutable: mutable,
		}

	default:
		return nil, InvalidIndicatorError{
			Name:      "import",
			Offset:    int(indicatorOffset),
			Indicator: b,
		}
	}

	return &Import{
		Module:     module,
		Name:       name,
		Descriptor: descriptor,
	}, nil
}

// readFunctionSection reads the section that declares the types of functions.
// The bodies of these functions will later be provided in the code section
func (r *WASMReader) readFunctionSection() error {
	typeIndices, err := readVector(r, "function count", func() (uint32, error) {
		return r.readUint32("function type index")
	})
	if err != nil {
		return err
	}

	if !r.ensureModuleFunctions(len(typeIndices)) {
		return FunctionCountMismatchError{
			Offset: int(r.buf.offset),
		}
	}

	for i, typeIndex := range typeIndices {
		r.Module.Functions[i].TypeIndex = typeIndex
	}

	return nil
}

func (r *WASMReader) ensureModuleFunctions(count int) bool {
	if r.Module.Functions != nil {
		return len(r.Module.Functions) == count
	}

	r.Module.Functions = make([]*Function, count)
	for i := 0; i < count; i++ {
		r.Module.Functions[i] = &Function{}
	}

	return true
}

// readTableSection reads the section that declares the tables
func (r *WASMReader) readTableSection() error {
	tables, err := readVector(r, "table count", r.readTable)
	if err != nil {
		return err
	}
	r.Module.Tables = tables
	return nil
}

// readTable reads a table type
func (r *WASMReader) readTable() (*Table, error) {
	elementType, err := r.readRefType()
	if err != nil {
		return nil, err
	}

	min, max, err := r.readLimit()
	if err != nil {
		return nil, err
	}

	return &Table{
		ElementType: elementType,
		Min:         min,
		Max:         max,
	}, nil
}

// readMemorySection reads the section that declares the memories
func (r *WASMReader) readMemorySection() error {
	memories, err := readVector(r, "memory count", r.readMemory)
	if err != nil {
		return err
	}
	r.Module.Memories = memories
	return nil
}

// readMemory reads a memory type
func (r *WASMReader) readMemory() (*Memory, error) {
	min, max, err := r.readLimit()
	if err != nil {
		return nil, err
	}

	return &Memory{
		Min: min,
		Max: max,
	}, nil
}

// readLimit reads a limit
func (r *WASMReader) readLimit() (min uint32, max *uint32, err error) {
	// read the limit indicator
	indicatorOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, nil, InvalidIndicatorError{
			Name:      "limit",
			Offset:    int(indicatorOffset),
			ReadError: err,
		}
	}

	var readMax bool

	switch limitIndicator(b) {
	case limitIndicatorNoMax:
		readMax = false
	case limitIndicatorMax:
		readMax = true
	default:
		return 0, nil, InvalidIndicatorError{
			Name:      "limit",
			Offset:    int(indicatorOffset),
			Indicator: b,
		}
	}

	min, err = r.readUint32("limit minimum")
	if err != nil {
		return 0, nil, err
	}

	if readMax {
		maximum, err := r.readUint32("limit maximum")
		if err != nil {
			return 0, nil, err
		}
		max = &maximum
	}

	return min, max, nil
}

// readGlobalSection reads the section that declares the globals
func (r *WASMReader) readGlobalSection() error {
	globals, err := readVector(r, "global count", r.readGlobal)
	if err != nil {
		return err
	}
	r.Module.Globals = globals
	return nil
}

// readGlobal reads a global in the global section
func (r *WASMReader) readGlobal() (*Global, error) {
	valType, mutable, err := r.readGlobalType()
	if err != nil {
		return nil, err
	}

	init, err := r.readConstantExpression()
	if err != nil {
		return nil, err
	}

	return &Global{
		Type:    valType,
		Mutable: mutable,
		Init:    init,
	}, nil
}

// readGlobalType reads the type and mutability of a global
func (r *WASMReader) readGlobalType() (ValueType, bool, error) {
	valType, err := r.readValType()
	if err != nil {
		return 0, false, err
	}

	indicatorOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, false, InvalidIndicatorError{
			Name:      "mutability",
			Offset:    int(indicatorOffset),
			ReadError: err,
		}
	}

	switch mutabilityIndicator(b) {
	case mutabilityIndicatorConst:
		return valType, false, nil
	case mutabilityIndicatorVar:
		return valType, true, nil
	}

	return 0, false, InvalidIndicatorError{
		Name:      "mutability",
		Offset:    int(indicatorOffset),
		Indicator: b,
	}
}

// readExportSection reads the section that declares the exports
func (r *WASMReader) readExportSection() error {
	exports, err := readVector(r, "export count", r.readExport)
	if err != nil {
		return err
	}
	r.Module.Exports = exports
	return nil
}

// readExport reads an export in the export section
func (r *WASMReader) readExport() (*Export, error) {

	// read the name
	name, err := r.readName()
	if err != nil {
		return nil, err
	}

	// read the type indicator
	indicatorOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return nil, InvalidIndicatorError{
			Name:      "export",
			Offset:    int(indicatorOffset),
			ReadError: err,
		}
	}

	// read the index
	index, err := r.readUint32("export index")
	if err != nil {
		return nil, err
	}

	var descriptor ExportDescriptor

	switch exportIndicator(b) {
	case exportIndicatorFunction:
		descriptor = FunctionExport{
			FunctionIndex: index,
		}

	case exportIndicatorTable:
		descriptor = TableExport{
			TableIndex: index,
		}

	case exportIndicatorMemory:
		descriptor = MemoryExport{
			MemoryIndex: index,
		}

	case exportIndicatorGlobal:
		descriptor = GlobalExport{
			GlobalIndex: index,
		}

	default:
		return nil, InvalidIndicatorError{
			Name:      "export",
			Offset:    int(indicatorOffset),
			Indicator: b,
		}
	}

	return &Export{
		Name:       name,
		Descriptor: descriptor,
	}, nil
}

// readStartSection reads the section that declares the start function
func (r *WASMReader) readStartSection() error {
	functionIndex, err := r.readUint32("start function index")
	if err != nil {
		return err
	}

	r.Module.StartFunctionIndex = &functionIndex

	return nil
}

// readElementSection reads the section that declares the element segments
func (r *WASMReader) readElementSection() error {
	elements, err := readVector(r, "element segment count", r.readElement)
	if err != nil {
		return err
	}
	r.Module.Elements = elements
	return nil
}

// readElement reads an element segment.
// The flags select the mode, whether the table index is explicit,
// and whether the elements are function indices or expressions
func (r *WASMReader) readElement() (*Element, error) {
	flagsOffset := r.buf.offset
	flags, err := r.readUint32("element segment flags")
	if err != nil {
		return nil, err
	}
	if flags > 7 {
		return nil, InvalidIndicatorError{
			Name:      "element segment",
			Offset:    int(flagsOffset),
			Indicator: byte(flags),
		}
	}

	element := &Element{
		Type:            ValueTypeFuncRef,
		UsesExpressions: flags&elementFlagExpressions != 0,
	}

	explicitType := true

	switch {
	case flags&elementFlagPassiveOrDeclarative == 0:
		element.Mode = ElementModeActive

		if flags&elementFlagExplicitTableIndex != 0 {
			element.TableIndex, err = r.readUint32("element table index")
			if err != nil {
				return nil, err
			}
		} else {
			explicitType = false
		}

		element.Offset, err = r.readConstantExpression()
		if err != nil {
			return nil, err
		}

	case flags&elementFlagDeclarative != 0:
		element.Mode = ElementModeDeclarative

	default:
		element.Mode = ElementModePassive
	}

	if explicitType {
		if element.UsesExpressions {
			element.Type, err = r.readRefType()
			if err != nil {
				return nil, err
			}
		} else {
			kindOffset := r.buf.offset
			kind, err := r.buf.ReadByte()
			if err != nil || kind != elementKindFunction {
				return nil, InvalidIndicatorError{
					Name:      "element kind",
					Offset:    int(kindOffset),
					Indicator: kind,
					ReadError: err,
				}
			}
		}
	}

	if element.UsesExpressions {
		element.Expressions, err = readVector(r, "element count", r.readConstantExpression)
	} else {
		element.FunctionIndices, err = readVector(r, "element count", func() (uint32, error) {
			return r.readUint32("element function index")
		})
	}
	if err != nil {
		return nil, err
	}

	return element, nil
}

// readCodeSection reads the section that provides the function bodies for the functions
// declared by the function section (which only provides the function types)
func (r *WASMReader) readCodeSection() error {
	functionBodies, err := readVector(r, "code count", r.readFunctionBody)
	if err != nil {
		return err
	}

	if !r.ensureModuleFunctions(len(functionBodies)) {
		return FunctionCountMismatchError{
			Offset: int(r.buf.offset),
		}
	}

	for i, functionBody := range functionBodies {
		r.Module.Functions[i].Code = functionBody
	}

	return nil
}

// readFunctionBody reads the body (locals and instruction) of one function in the code section
func (r *WASMReader) readFunctionBody() (*Code, error) {

	// read the size
	sizeOffset := r.buf.offset
	size, err := r.readUint32("code size")
	if err != nil {
		return nil, err
	}
	if int(size) > r.buf.remaining() {
		return nil, InvalidCodeSizeError{
			Offset: int(sizeOffset),
			Size:   size,
		}
	}
	end := r.buf.offset + offset(size)

	// read the locals
	locals, err := r.readLocals()
	if err != nil {
		return nil, err
	}

	// read the instructions
	instructions, _, err := r.readInstructions(false, 0)
	if err != nil {
		return nil, err
	}

	if r.buf.offset != end {
		return nil, InvalidCodeSizeError{
			Offset: int(sizeOffset),
			Size:   size,
		}
	}

	return &Code{
		Locals:       locals,
		Instructions: instructions,
	}, nil
}

// readLocals reads the locals for one function in the code sections.
// Locals are given in groups of the same type
func (r *WASMReader) readLocals() ([]ValueType, error) {
	groupCount, err := r.readCount("local group count")
	if err != nil {
		return nil, err
	}

	var locals []ValueType
	var total uint64

	for i := uint32(0); i < groupCount; i++ {
		countOffset := r.buf.offset
		count, err := r.readUint32("local count")
		if err != nil {
			return nil, err
		}

		total += uint64(count)
		if total > maxFunctionLocals {
			return nil, InvalidLocalsError{
				Offset: int(countOffset),
				Count:  total,
			}
		}

		localType, err := r.readValType()
		if err != nil {
			return nil, err
		}

		for j := uint32(0); j < count; j++ {
			locals = append(locals, localType)
		}
	}

	return locals, nil
}

// readConstantExpression reads the instructions of a constant expression, up to the final end
func (r *WASMReader) readConstantExpression() ([]Instruction, error) {
	instructions, _, err := r.readInstructions(false, 0)
	return instructions, err
}

// readInstructions reads instructions up to the end instruction,
// or up to an else instruction, if allowed.
// It reports whether the instructions ended with an else instruction
func (r *WASMReader) readInstructions(allowElse bool, depth int) (instructions []Instruction, sawElse bool, err error) {
	for {
		opcodeOffset := r.buf.offset
		b, err := r.buf.PeekByte()
		if err != nil {
			return nil, false, InvalidOpcodeError{
				Offset:    int(opcodeOffset),
				ReadError: err,
			}
		}

		switch opcode(b) {
		case opcodeEnd:
			r.buf.offset++
			return instructions, false, nil

		case opcodeElse:
			if !allowElse {
				return nil, false, InvalidElseError{
					Offset: int(opcodeOffset),
				}
			}
			r.buf.offset++
			return instructions, true, nil
		}

		instruction, err := r.readInstruction(depth)
		if err != nil {
			return nil, false, err
		}

		instructions = append(instructions, instruction)
	}
}

// readBlockInstructionArgument reads the block type and the nested instructions
// of a block, loop or if instruction
func (r *WASMReader) readBlockInstructionArgument(allowElse bool, depth int) (Block, error) {
	if depth > maxBlockNesting {
		return Block{}, InvalidBlockNestingError{
			Offset: int(r.buf.offset),
		}
	}

	blockType, err := r.readBlockType()
	if err != nil {
		return Block{}, err
	}

	instructions1, sawElse, err := r.readInstructions(allowElse, depth)
	if err != nil {
		return Block{}, err
	}

	var instructions2 []Instruction
	if sawElse {
		instructions2, _, err = r.readInstructions(false, depth)
		if err != nil {
			return Block{}, err
		}
		// an empty else branch is still written
		if instructions2 == nil {
			instructions2 = []Instruction{}
		}
	}

	return Block{
		BlockType:     blockType,
		Instructions1: instructions1,
		Instructions2: instructions2,
	}, nil
}

// readBlockType reads a block type:
// the empty block type, a value type, or a type index
func (r *WASMReader) readBlockType() (BlockType, error) {
	blockTypeOffset := r.buf.offset
	b, err := r.buf.PeekByte()
	if err != nil {
		return nil, InvalidIntegerError{
			Name:      "block type",
			Offset:    int(blockTypeOffset),
			ReadError: err,
		}
	}

	if b == emptyBlockType {
		r.buf.offset++
		return nil, nil
	}

	if valueType := AsValueType(b); valueType != 0 {
		r.buf.offset++
		return valueType, nil
	}

	// the block type is not a value type,
	// it must be a type index, encoded as a signed 33-bit integer
	typeIndex, err := r.buf.readInt64LEB128()
	if err == nil && (typeIndex < 0 || typeIndex > math.MaxUint32) {
		err = errLEB128Overflow
	}
	if err != nil {
		return nil, InvalidIntegerError{
			Name:      "block type",
			Offset:    int(blockTypeOffset),
			ReadError: err,
		}
	}

	return TypeIndexBlockType{
		TypeIndex: uint32(typeIndex),
	}, nil
}

// simpleInstructions are the instructions without immediates
// which are decoded into their own types
var simpleInstructions = map[opcode]Instruction{
	opcodeUnreachable:   InstructionUnreachable{},
	opcodeNop:           InstructionNop{},
	opcodeReturn:        InstructionReturn{},
	opcodeDrop:          InstructionDrop{},
	opcodeI64Eqz:        InstructionI64Eqz{},
	opcodeI64Eq:         InstructionI64Eq{},
	opcodeI64Ne:         InstructionI64Ne{},
	opcodeI64LtU:        InstructionI64LtU{},
	opcodeI64GtU:        InstructionI64GtU{},
	opcodeI32Add:        InstructionI32Add{},
	opcodeI64Add:        InstructionI64Add{},
	opcodeI64Sub:        InstructionI64Sub{},
	opcodeI64Mul:        InstructionI64Mul{},
	opcodeI64DivU:       InstructionI64DivU{},
	opcodeI64And:        InstructionI64And{},
	opcodeI64Or:         InstructionI64Or{},
	opcodeI64Shl:        InstructionI64Shl{},
	opcodeI64ShrU:       InstructionI64ShrU{},
	opcodeI32WrapI64:    InstructionI32WrapI64{},
	opcodeI64ExtendI32U: InstructionI64ExtendI32U{},
}

// readInstruction reads one instruction, including nested instructions
func (r *WASMReader) readInstruction(depth int) (Instruction, error) {
	opcodeOffset := r.buf.offset
	b, err := r.buf.ReadByte()
	if err != nil {
		return nil, InvalidOpcodeError{
			Offset:    int(opcodeOffset),
			ReadError: err,
		}
	}

	op := opcode(b)

	if instruction, ok := simpleInstructions[op]; ok {
		return instruction, nil
	}

	switch op {
	case opcodeBlock:
		block, err := r.readBlockInstructionArgument(false, depth+1)
		if err != nil {
			return nil, err
		}
		return InstructionBlock{Block: block}, nil

	case opcodeLoop:
		block, err := r.readBlockInstructionArgument(false, depth+1)
		if err != nil {
			return nil, err
		}
		return InstructionLoop{Block: block}, nil

	case opcodeIf:
		block, err := r.readBlockInstructionArgument(true, depth+1)
		if err != nil {
			return nil, err
		}
		return InstructionIf{Block: block}, nil

	case opcodeBr:
		labelIndex, err := r.readUint32("label index")
		if err != nil {
			return nil, err
		}
		return InstructionBr{LabelIndex: labelIndex}, nil

	case opcodeBrIf:
		labelIndex, err := r.readUint32("label index")
		if err != nil {
			return nil, err
		}
		return InstructionBrIf{LabelIndex: labelIndex}, nil

	case opcodeCall:
		funcIndex, err := r.readUint32("function index")
		if err != nil {
			return nil, err
		}
		return InstructionCall{FuncIndex: funcIndex}, nil

	case opcodeRefFunc:
		funcIndex, err := r.readUint32("function index")
		if err != nil {
			return nil, err
		}
		return InstructionRefFunc{FuncIndex: funcIndex}, nil

	case opcodeLocalGet, opcodeLocalSet, opcodeLocalTee:
		localIndex, err := r.readUint32("local index")
		if err != nil {
			return nil, err
		}
		switch op {
		case opcodeLocalGet:
			return InstructionLocalGet{LocalIndex: localIndex}, nil
		case opcodeLocalSet:
			return InstructionLocalSet{LocalIndex: localIndex}, nil
		default:
			return InstructionLocalTee{LocalIndex: localIndex}, nil
		}

	case opcodeI64Load, opcodeI64Store:
		align, err := r.readUint32("memory alignment")
		if err != nil {
			return nil, err
		}
		memoryOffset, err := r.readUint32("memory offset")
		if err != nil {
			return nil, err
		}
		if op == opcodeI64Load {
			return InstructionI64Load{Align: align, Offset: memoryOffset}, nil
		}
		return InstructionI64Store{Align: align, Offset: memoryOffset}, nil

	case opcodeMemorySize, opcodeMemoryGrow:
		memoryIndex, err := r.readUint32("memory index")
		if err != nil {
			return nil, err
		}
		if memoryIndex != 0 {
			return r.rawInstruction(opcodeOffset), nil
		}
		if op == opcodeMemorySize {
			return InstructionMemorySize{}, nil
		}
		return InstructionMemoryGrow{}, nil

	case opcodeI32Const:
		valueOffset := r.buf.offset
		value, err := r.buf.readInt32LEB128()
		if err != nil {
			return nil, InvalidIntegerError{
				Name:      "i32 constant",
				Offset:    int(valueOffset),
				ReadError: err,
			}
		}
		return InstructionI32Const{Value: value}, nil

	case opcodeI64Const:
		valueOffset := r.buf.offset
		value, err := r.buf.readInt64LEB128()
		if err != nil {
			return nil, InvalidIntegerError{
				Name:      "i64 constant",
				Offset:    int(valueOffset),
				ReadError: err,
			}
		}
		return InstructionI64Const{Value: value}, nil
	}

	err = r.skipImmediates(b)
	if err != nil {
		return nil, InvalidOpcodeError{
			Offset:    int(opcodeOffset),
			Opcode:    b,
			ReadError: err,
		}
	}

	return r.rawInstruction(opcodeOffset), nil
}

// rawInstruction returns the instruction read since the given offset
func (r *WASMReader) rawInstruction(start offset) RawInstruction {
	return RawInstruction{
		Bytes: append([]byte(nil), r.buf.data[start:r.buf.offset]...),
	}
}

// errUnsupportedOpcode is returned for opcodes which are not part of the supported feature set,
// like SIMD, tail calls and exceptions
var errUnsupportedOpcode = errors.New("unsupported opcode")

// skipImmediates reads the immediates of an instruction which has no nested instructions
func (r *WASMReader) skipImmediates(b byte) error {
	skipIndices := func(count int) error {
		for i := 0; i < count; i++ {
			_, err := r.buf.readUint32LEB128()
			if err != nil {
				return err
			}
		}
		return nil
	}

	skipBytes := func(count int) error {
		if r.buf.remaining() < count {
			return io.ErrUnexpectedEOF
		}
		r.buf.offset += offset(count)
		return nil
	}

	switch {
	// br_table: label vector, default label
	case b == 0x0E:
		count, err := r.buf.readUint32LEB128()
		if err != nil {
			return err
		}
		if int(count) > r.buf.remaining() {
			return io.ErrUnexpectedEOF
		}
		return skipIndices(int(count) + 1)

	// call_indirect: type index, table index
	case b == 0x11:
		return skipIndices(2)

	// select
	case b == 0x1B:
		return nil

	// select with value types
	case b == 0x1C:
		count, err := r.buf.readUint32LEB128()
		if err != nil {
			return err
		}
		return skipBytes(int(count))

	// global.get, global.set, table.get, table.set
	case b >= 0x23 && b <= 0x26:
		return skipIndices(1)

	// loads and stores: alignment, offset
	case b >= 0x28 && b <= 0x3E:
		return skipIndices(2)

	// i32.const
	case b == 0x41:
		_, err := r.buf.readInt32LEB128()
		return err

	// i64.const
	case b == 0x42:
		_, err := r.buf.readInt64LEB128()
		return err

	// f32.const
	case b == 0x43:
		return skipBytes(4)

	// f64.const
	case b == 0x44:
		return skipBytes(8)

	// numeric instructions, including sign extension
	case b >= 0x45 && b <= 0xC4:
		return nil

	// ref.null: reference type
	case b == 0xD0:
		return skipBytes(1)

	// ref.is_null
	case b == 0xD1:
		return nil

	// saturating truncation, bulk memory and table instructions
	case b == 0xFC:
		subOpcode, err := r.buf.readUint32LEB128()
		if err != nil {
			return err
		}
		switch {
		case subOpcode <= 7:
			return nil
		// memory.init, memory.copy, table.init, table.copy
		case subOpcode == 8, subOpcode == 10, subOpcode == 12, subOpcode == 14:
			return skipIndices(2)
		// data.drop, memory.fill, elem.drop, table.grow, table.size, table.fill
		case subOpcode == 9, subOpcode == 11, subOpcode == 13, subOpcode >= 15 && subOpcode <= 17:
			return skipIndices(1)
		}
	}

	return errUnsupportedOpcode
}

// readName reads a name
func (r *WASMReader) readName() (string, error) {

	// read the length
	length, err := r.readUint32("name length")
	if err != nil {
		return "", err
	}

	// read the name
	nameOffset := r.buf.offset
	if int(length) > r.buf.remaining() {
		return "", InvalidNameError{
			Offset:    int(nameOffset),
			ReadError: io.ErrUnexpectedEOF,
		}
	}
	name := make([]byte, length)
	_, _ = r.buf.Read(name)

	// ensure the name is valid UTF-8
	if !utf8.Valid(name) {
		return "", InvalidNonUTF8NameError{
			Offset: int(nameOffset),
			Name:   string(name),
		}
	}

	return string(name), nil
}

// readDataSection reads the section that declares the data segments
func (r *WASMReader) readDataSection() error {
	segments, err := readVector(r, "data segment count", r.readDataSegment)
	if err != nil {
		return err
	}
	r.Module.Data = segments
	return nil
}

// readDataSegment reads a segment in the data section
func (r *WASMReader) readDataSegment() (*Data, error) {
	flagsOffset := r.buf.offset
	flags, err := r.readUint32("data segment flags")
	if err != nil {
		return nil, err
	}

	segment := &Data{}

	switch flags {
	case dataFlagActive:
		break

	case dataFlagPassive:
		segment.Passive = true

	case dataFlagActiveMemoryIndex:
		segment.MemoryIndex, err = r.readUint32("data memory index")
		if err != nil {
			return nil, err
		}

	default:
		return nil, InvalidIndicatorError{
			Name:      "data segment",
			Offset:    int(flagsOffset),
			Indicator: byte(flags),
		}
	}

	if !segment.Passive {
		segment.Offset, err = r.readConstantExpression()
		if err != nil {
			return nil, err
		}
	}

	// read the init bytes
	count, err := r.readCount("data byte count")
	if err != nil {
		return nil, err
	}

	segment.Init = make([]byte, count)
	_, _ = r.buf.Read(segment.Init)

	return segment, nil
}

// readDataCountSection reads the section that declares the number of data segments
func (r *WASMReader) readDataCountSection() error {
	count, err := r.readUint32("data count")
	if err != nil {
		return err
	}

	r.Module.DataCount = &count

	return nil
}
