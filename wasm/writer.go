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
	"unicode/utf8"
)

// WASMWriter allows writing WASM binaries
type WASMWriter struct {
	buf *Buffer
}

func NewWASMWriter(buf *Buffer) *WASMWriter {
	return &WASMWriter{
		buf: buf,
	}
}

// WriteModule writes a module
func (w *WASMWriter) WriteModule(module *Module) error {
	err := w.writeMagicAndVersion()
	if err != nil {
		return err
	}

	if len(module.Types) > 0 {
		err = w.writeTypeSection(module.Types)
		if err != nil {
			return err
		}
	}

	if len(module.Imports) > 0 {
		err = w.writeImportSection(module.Imports)
		if err != nil {
			return err
		}
	}

	if len(module.Functions) > 0 {
		err = w.writeFunctionSection(module.Functions)
		if err != nil {
			return err
		}
	}

	if len(module.Tables) > 0 {
		err = w.writeTableSection(module.Tables)
		if err != nil {
			return err
		}
	}

	if len(module.Memories) > 0 {
		err = w.writeMemorySection(module.Memories)
		if err != nil {
			return err
		}
	}

	if len(module.Globals) > 0 {
		err = w.writeGlobalSection(module.Globals)
		if err != nil {
			return err
		}
	}

	if len(module.Exports) > 0 {
		err = w.writeExportSection(module.Exports)
		if err != nil {
			return err
		}
	}

	if module.StartFunctionIndex != nil {
		err = w.writeStartSection(*module.StartFunctionIndex)
		if err != nil {
			return err
		}
	}

	if len(module.Elements) > 0 {
		err = w.writeElementSection(module.Elements)
		if err != nil {
			return err
		}
	}

	if module.DataCount != nil {
		err = w.writeDataCountSection(*module.DataCount)
		if err != nil {
			return err
		}
	}

	if len(module.Functions) > 0 {
		err = w.writeCodeSection(module.Functions)
		if err != nil {
			return err
		}
	}

	if len(module.Data) > 0 {
		err = w.writeDataSection(module.Data)
		if err != nil {
			return err
		}
	}

	return nil
}

// EncodeModule writes the module in binary format
func EncodeModule(module *Module) ([]byte, error) {
	var buf Buffer
	err := NewWASMWriter(&buf).WriteModule(module)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WASM binary format magic and version
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

func (w *WASMWriter) writeMagicAndVersion() error {
	err := w.buf.WriteBytes(wasmMagic)
	if err != nil {
		return err
	}
	return w.buf.WriteBytes(wasmVersion)
}

// writeSection writes a section with the given ID.
// The size of the section is written after its contents, in fixed-size format
func (w *WASMWriter) writeSection(id sectionID, writeContents func() error) error {
	err := w.buf.WriteByte(byte(id))
	if err != nil {
		return err
	}

	sizeOffset, err := w.buf.writeFixedUint32LEB128Space()
	if err != nil {
		return err
	}

	err = writeContents()
	if err != nil {
		return err
	}

	return w.buf.writeUint32LEB128SizeAt(sizeOffset)
}

// writeVector writes the count, followed by each element
func writeVector[T any](w *WASMWriter, elements []T, writeElement func(T) error) error {
	err := w.buf.writeUint32LEB128(uint32(len(elements)))
	if err != nil {
		return err
	}
	for _, element := range elements {
		err = writeElement(element)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *WASMWriter) writeTypeSection(funcTypes []*FunctionType) error {
	return w.writeSection(sectionIDType, func() error {
		return writeVector(w, funcTypes, w.writeFuncType)
	})
}

func (w *WASMWriter) writeFuncType(funcType *FunctionType) error {
	err := w.buf.WriteByte(functionTypeIndicator)
	if err != nil {
		return err
	}
	err = writeVector(w, funcType.Params, w.writeValueType)
	if err != nil {
		return err
	}
	return writeVector(w, funcType.Results, w.writeValueType)
}

func (w *WASMWriter) writeValueType(valueType ValueType) error {
	return w.buf.WriteByte(byte(valueType))
}

func (w *WASMWriter) writeImportSection(imports []*Import) error {
	return w.writeSection(sectionIDImport, func() error {
		return writeVector(w, imports, w.writeImport)
	})
}

func (w *WASMWriter) writeImport(im *Import) error {
	err := w.writeName(im.Module)
	if err != nil {
		return err
	}
	err = w.writeName(im.Name)
	if err != nil {
		return err
	}

	switch descriptor := im.Descriptor.(type) {
	case FunctionImport:
		err = w.buf.WriteByte(byte(importIndicatorFunction))
		if err != nil {
			return err
		}
		return w.buf.writeUint32LEB128(descriptor.TypeIndex)

	case TableImport:
		err = w.buf.WriteByte(byte(importIndicatorTable))
		if err != nil {
			return err
		}
		return w.writeTable(&descriptor.Table)

	case MemoryImport:
		err = w.buf.WriteByte(byte(importIndicatorMemory))
		if err != nil {
			return err
		}
		return w.writeLimit(descriptor.Memory.Min, descriptor.Memory.Max)

	case GlobalImport:
		err = w.buf.WriteByte(byte(importIndicatorGlobal))
		if err != nil {
			return err
		}
		return w.writeGlobalType(descriptor.Type, descriptor.Mutable)

	default:
		return fmt.Errorf("unsupported import descriptor: %T", descriptor)
	}
}

func (w *WASMWriter) writeFunctionSection(functions []*Function) error {
	return w.writeSection(sectionIDFunction, func() error {
		return writeVector(w, functions, func(function *Function) error {
			return w.buf.writeUint32LEB128(function.TypeIndex)
		})
	})
}

func (w *WASMWriter) writeTableSection(tables []*Table) error {
	return w.writeSection(sectionIDTable, func() error {
		return writeVector(w, tables, w.writeTable)
	})
}

func (w *WASMWriter) writeTable(table *Table) error {
	err := w.writeValueType(table.ElementType)
	if err != nil {
		return err
	}
	return w.writeLimit(table.Min, table.Max)
}

func (w *WASMWriter) writeMemorySection(memories []*Memory) error {
	return w.writeSection(sectionIDMemory, func() error {
		return writeVector(w, memories, func(memory *Memory) error {
			return w.writeLimit(memory.Min, memory.Max)
		})
	})
}

func (w *WASMWriter) writeLimit(min uint32, max *uint32) error {
	if max == nil {
		err := w.buf.WriteByte(byte(limitIndicatorNoMax))
		if err != nil {
			return err
		}
		return w.buf.writeUint32LEB128(min)
	}

	err := w.buf.WriteByte(byte(limitIndicatorMax))
	if err != nil {
		return err
	}
	err = w.buf.writeUint32LEB128(min)
	if err != nil {
		return err
	}
	return w.buf.writeUint32LEB128(*max)
}

func (w *WASMWriter) writeGlobalSection(globals []*Global) error {
	return w.writeSection(sectionIDGlobal, func() error {
		return writeVector(w, globals, func(global *Global) error {
			err := w.writeGlobalType(global.Type, global.Mutable)
			if err != nil {
				return err
			}
			return w.writeConstantExpression(global.Init)
		})
	})
}

func (w *WASMWriter) writeGlobalType(valueType ValueType, mutable bool) error {
	err := w.writeValueType(valueType)
	if err != nil {
		return err
	}
	indicator := mutabilityIndicatorConst
	if mutable {
		indicator = mutabilityIndicatorVar
	}
	return w.buf.WriteByte(byte(indicator))
}

func (w *WASMWriter) writeExportSection(exports []*Export) error {
	return w.writeSection(sectionIDExport, func() error {
		return writeVector(w, exports, w.writeExport)
	})
}

func (w *WASMWriter) writeExport(export *Export) error {
	err := w.writeName(export.Name)
	if err != nil {
		return err
	}

	var indicator exportIndicator
	var index uint32

	switch descriptor := export.Descriptor.(type) {
	case FunctionExport:
		indicator = exportIndicatorFunction
		index = descriptor.FunctionIndex
	case TableExport:
		indicator = exportIndicatorTable
		index = descriptor.TableIndex
	case MemoryExport:
		indicator = exportIndicatorMemory
		index = descriptor.MemoryIndex
	case GlobalExport:
		indicator = exportIndicatorGlobal
		index = descriptor.GlobalIndex
	default:
		return fmt.Errorf("unsupported export descriptor: %T", descriptor)
	}

	err = w.buf.WriteByte(byte(indicator))
	if err != nil {
		return err
	}
	return w.buf.writeUint32LEB128(index)
}

func (w *WASMWriter) writeStartSection(funcIndex uint32) error {
	return w.writeSection(sectionIDStart, func() error {
		return w.buf.writeUint32LEB128(funcIndex)
	})
}

func (w *WASMWriter) writeElementSection(elements []*Element) error {
	return w.writeSection(sectionIDElement, func() error {
		return writeVector(w, elements, w.writeElement)
	})
}

// writeElement writes an element segment.
// The flags are derived from the mode, the table index and the kind of elements
func (w *WASMWriter) writeElement(element *Element) error {
	var flags uint32
	if element.UsesExpressions {
		flags |= elementFlagExpressions
	}

	explicitType := true

	switch element.Mode {
	case ElementModeActive:
		// the implicit form is restricted to table 0 and funcref elements
		if element.TableIndex != 0 ||
			(element.UsesExpressions && element.Type != ValueTypeFuncRef) {

			flags |= elementFlagExplicitTableIndex
		} else {
			explicitType = false
		}

	case ElementModePassive:
		flags |= elementFlagPassiveOrDeclarative

	case ElementModeDeclarative:
		flags |= elementFlagPassiveOrDeclarative | elementFlagDeclarative

	default:
		return fmt.Errorf("unsupported element segment mode: %d", element.Mode)
	}

	err := w.buf.writeUint32LEB128(flags)
	if err != nil {
		return err
	}

	if element.Mode == ElementModeActive {
		if flags&elementFlagExplicitTableIndex != 0 {
			err = w.buf.writeUint32LEB128(element.TableIndex)
			if err != nil {
				return err
			}
		}
		err = w.writeConstantExpression(element.Offset)
		if err != nil {
			return err
		}
	}

	if explicitType {
		if element.UsesExpressions {
			err = w.writeValueType(element.Type)
		} else {
			err = w.buf.WriteByte(elementKindFunction)
		}
		if err != nil {
			return err
		}
	}

	if element.UsesExpressions {
		return writeVector(w, element.Expressions, w.writeConstantExpression)
	}
	return writeVector(w, element.FunctionIndices, w.buf.writeUint32LEB128)
}

func (w *WASMWriter) writeDataCountSection(count uint32) error {
	return w.writeSection(sectionIDDataCount, func() error {
		return w.buf.writeUint32LEB128(count)
	})
}

func (w *WASMWriter) writeCodeSection(functions []*Function) error {
	return w.writeSection(sectionIDCode, func() error {
		return writeVector(w, functions, func(function *Function) error {
			return w.writeFunctionBody(function.Code)
		})
	})
}

// writeFunctionBody writes the size of the body, the locals and the instructions.
// Consecutive locals of the same type are written as one group
func (w *WASMWriter) writeFunctionBody(code *Code) error {
	sizeOffset, err := w.buf.writeFixedUint32LEB128Space()
	if err != nil {
		return err
	}

	type localGroup struct {
		count     uint32
		valueType ValueType
	}

	var groups []localGroup
	for _, local := range code.Locals {
		last := len(groups) - 1
		if last >= 0 && groups[last].valueType == local {
			groups[last].count++
			continue
		}
		groups = append(groups, localGroup{count: 1, valueType: local})
	}

	err = writeVector(w, groups, func(group localGroup) error {
		err := w.buf.writeUint32LEB128(group.count)
		if err != nil {
			return err
		}
		return w.writeValueType(group.valueType)
	})
	if err != nil {
		return err
	}

	err = w.writeInstructions(code.Instructions)
	if err != nil {
		return err
	}
	err = w.writeOpcode(opcodeEnd)
	if err != nil {
		return err
	}

	return w.buf.writeUint32LEB128SizeAt(sizeOffset)
}

func (w *WASMWriter) writeInstructions(instructions []Instruction) error {
	for _, instruction := range instructions {
		err := instruction.write(w)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeConstantExpression writes the instructions of a constant expression and the final end
func (w *WASMWriter) writeConstantExpression(instructions []Instruction) error {
	err := w.writeInstructions(instructions)
	if err != nil {
		return err
	}
	return w.writeOpcode(opcodeEnd)
}

func (w *WASMWriter) writeOpcode(op opcode) error {
	return w.buf.WriteByte(byte(op))
}

func (w *WASMWriter) writeDataSection(segments []*Data) error {
	return w.writeSection(sectionIDData, func() error {
		return writeVector(w, segments, w.writeDataSegment)
	})
}

func (w *WASMWriter) writeDataSegment(segment *Data) error {
	var err error
	switch {
	case segment.Passive:
		err = w.buf.writeUint32LEB128(dataFlagPassive)

	case segment.MemoryIndex == 0:
		err = w.buf.writeUint32LEB128(dataFlagActive)

	default:
		err = w.buf.writeUint32LEB128(dataFlagActiveMemoryIndex)
		if err != nil {
			return err
		}
		err = w.buf.writeUint32LEB128(segment.MemoryIndex)
	}
	if err != nil {
		return err
	}

	if !segment.Passive {
		err = w.writeConstantExpression(segment.Offset)
		if err != nil {
			return err
		}
	}

	err = w.buf.writeUint32LEB128(uint32(len(segment.Init)))
	if err != nil {
		return err
	}
	return w.buf.WriteBytes(segment.Init)
}

// writeName writes a name, which must be valid UTF-8
func (w *WASMWriter) writeName(name string) error {
	if !utf8.ValidString(name) {
		return InvalidNonUTF8NameError{
			Name:   name,
			Offset: int(w.buf.offset),
		}
	}

	err := w.buf.writeUint32LEB128(uint32(len(name)))
	if err != nil {
		return err
	}
	return w.buf.WriteBytes([]byte(name))
}
