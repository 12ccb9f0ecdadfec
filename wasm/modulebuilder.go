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
)

// ModuleBuilder allows building modules
type ModuleBuilder struct {
	functionImports    []*Import
	types              []*FunctionType
	functions          []*Function
	data               []*Data
	exports            []*Export
	maxMemoryPages     *uint32
	requiredMemorySize uint32
}

// AddFunction adds a function and returns its index.
// Function indices include function imports
func (b *ModuleBuilder) AddFunction(name string, functionType *FunctionType, code *Code) uint32 {
	typeIndex := b.addType(functionType)
	funcIndex := uint32(len(b.functionImports) + len(b.functions))
	b.functions = append(
		b.functions,
		&Function{
			Name:      name,
			TypeIndex: typeIndex,
			Code:      code,
		},
	)
	return funcIndex
}

// AddExportedFunction adds a function and exports it under its name
func (b *ModuleBuilder) AddExportedFunction(name string, functionType *FunctionType, code *Code) uint32 {
	funcIndex := b.AddFunction(name, functionType, code)
	b.AddExport(&Export{
		Name: name,
		Descriptor: FunctionExport{
			FunctionIndex: funcIndex,
		},
	})
	return funcIndex
}

func (b *ModuleBuilder) AddFunctionImport(module string, name string, functionType *FunctionType) (uint32, error) {
	if len(b.functions) > 0 {
		return 0, errors.New("cannot add function imports after adding functions")
	}

	typeIndex := b.addType(functionType)
	funcIndex := uint32(len(b.functionImports))
	b.functionImports = append(
		b.functionImports,
		&Import{
			Module: module,
			Name:   name,
			Descriptor: FunctionImport{
				TypeIndex: typeIndex,
			},
		},
	)

	return funcIndex, nil
}

func (b *ModuleBuilder) addType(functionType *FunctionType) uint32 {
	typeIndex := uint32(len(b.types))
	b.types = append(b.types, functionType)
	return typeIndex
}

// RequireMemory reserves the given number of bytes of memory and returns their offset
func (b *ModuleBuilder) RequireMemory(size uint32) uint32 {
	offset := b.requiredMemorySize
	b.requiredMemorySize += size
	return offset
}

// LimitMemory sets the maximum number of memory pages
func (b *ModuleBuilder) LimitMemory(maxPages uint32) {
	b.maxMemoryPages = &maxPages
}

// AddData reserves memory for the given value and initializes it.
// It returns the offset of the value
func (b *ModuleBuilder) AddData(value []byte) uint32 {
	offset := b.RequireMemory(uint32(len(value)))
	b.data = append(b.data, &Data{
		// NOTE: currently only one memory is supported
		MemoryIndex: 0,
		Offset: []Instruction{
			InstructionI32Const{Value: int32(offset)},
		},
		Init: value,
	})
	return offset
}

func (b *ModuleBuilder) ExportMemory(name string) {
	b.AddExport(&Export{
		Name: name,
		Descriptor: MemoryExport{
			MemoryIndex: 0,
		},
	})
}

func (b *ModuleBuilder) AddExport(export *Export) {
	b.exports = append(b.exports, export)
}

func (b *ModuleBuilder) Build() *Module {
	minPages := (b.requiredMemorySize + MemoryPageSize - 1) / MemoryPageSize

	// NOTE: currently only one memory is supported
	memories := []*Memory{
		{
			Min: minPages,
			Max: b.maxMemoryPages,
		},
	}

	return &Module{
		Types:     b.types,
		Imports:   b.functionImports,
		Functions: b.functions,
		Memories:  memories,
		Data:      b.data,
		Exports:   b.exports,
	}
}

// Encode builds the module and writes it in binary format
func (b *ModuleBuilder) Encode() ([]byte, error) {
	return EncodeModule(b.Build())
}
