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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFunctionModule(t *testing.T, code *Code) []byte {
	var b ModuleBuilder
	b.AddExportedFunction("f", &FunctionType{}, code)
	data, err := b.Encode()
	require.NoError(t, err)
	return data
}

func TestWASMReader_BuilderRoundTrip(t *testing.T) {

	t.Parallel()

	var b ModuleBuilder

	logIndex, err := b.AddFunctionImport(
		"env",
		"log",
		&FunctionType{
			Params: []ValueType{ValueTypeI64},
		},
	)
	require.NoError(t, err)

	b.AddData([]byte("hello"))
	b.ExportMemory("memory")

	b.AddExportedFunction(
		"run",
		&FunctionType{
			Params:  []ValueType{ValueTypeI64},
			Results: []ValueType{ValueTypeI64},
		},
		&Code{
			Locals: []ValueType{ValueTypeI64, ValueTypeI64, ValueTypeI32},
			Instructions: []Instruction{
				InstructionLoop{
					Block: Block{
						Instructions1: []Instruction{
							InstructionLocalGet{LocalIndex: 0},
							InstructionI64Eqz{},
							InstructionIf{
								Block: Block{
									Instructions1: []Instruction{
										InstructionLocalGet{LocalIndex: 1},
										InstructionReturn{},
									},
									Instructions2: []Instruction{
										InstructionLocalGet{LocalIndex: 0},
										InstructionCall{FuncIndex: logIndex},
									},
								},
							},
							InstructionLocalGet{LocalIndex: 0},
							InstructionI64Const{Value: -1},
							InstructionI64Add{},
							InstructionLocalSet{LocalIndex: 0},
							InstructionBr{LabelIndex: 0},
						},
					},
				},
				InstructionUnreachable{},
			},
		},
	)

	encoded, err := b.Encode()
	require.NoError(t, err)

	module, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Len(t, module.Imports, 1)
	assert.Equal(t,
		&Import{
			Module: "env",
			Name:   "log",
			Descriptor: FunctionImport{
				TypeIndex: 0,
			},
		},
		module.Imports[0],
	)
	assert.Equal(t, uint32(1), module.ImportedFunctionCount())

	require.Len(t, module.Functions, 1)
	assert.Equal(t,
		[]ValueType{ValueTypeI64, ValueTypeI64, ValueTypeI32},
		module.Functions[0].Code.Locals,
	)

	reencoded, err := EncodeModule(module)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestWASMReader_ModuleRoundTrip(t *testing.T) {

	t.Parallel()

	tableMax := uint32(10)
	memoryMax := uint32(2)
	start := uint32(1)
	dataCount := uint32(3)

	module := &Module{
		Types: []*FunctionType{
			{},
			{
				Params:  []ValueType{ValueTypeI32, ValueTypeF64},
				Results: []ValueType{ValueTypeI64},
			},
		},
		Imports: []*Import{
			{
				Module:     "env",
				Name:       "f",
				Descriptor: FunctionImport{TypeIndex: 1},
			},
			{
				Module: "env",
				Name:   "table",
				Descriptor: TableImport{
					Table: Table{
						ElementType: ValueTypeExternRef,
						Min:         1,
					},
				},
			},
			{
				Module: "env",
				Name:   "memory",
				Descriptor: MemoryImport{
					Memory: Memory{
						Min: 1,
						Max: &memoryMax,
					},
				},
			},
			{
				Module: "env",
				Name:   "global",
				Descriptor: GlobalImport{
					Type:    ValueTypeF32,
					Mutable: true,
				},
			},
		},
		Functions: []*Function{
			{
				TypeIndex: 0,
				Code: &Code{
					Instructions: []Instruction{
						InstructionBlock{
							Block: Block{
								BlockType: ValueTypeI64,
								Instructions1: []Instruction{
									InstructionI64Const{Value: 1},
								},
							},
						},
						InstructionDrop{},
						InstructionLoop{
							Block: Block{
								BlockType: TypeIndexBlockType{TypeIndex: 0},
								Instructions1: []Instruction{
									InstructionNop{},
								},
							},
						},
						InstructionI32Const{Value: 1},
						InstructionIf{
							Block: Block{
								Instructions1: []Instruction{
									InstructionNop{},
								},
								Instructions2: []Instruction{},
							},
						},
						// f64.const 1.0
						RawInstruction{Bytes: []byte{0x44, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
						InstructionDrop{},
						// global.get 0
						RawInstruction{Bytes: []byte{0x23, 0x00}},
						InstructionDrop{},
						InstructionI32Const{Value: 0},
						// i32.extend8_s
						RawInstruction{Bytes: []byte{0xC0}},
						InstructionDrop{},
						InstructionI32Const{Value: 0},
						InstructionI32Const{Value: 0},
						InstructionI32Const{Value: 0},
						// memory.fill 0
						RawInstruction{Bytes: []byte{0xFC, 0x0B, 0x00}},
						InstructionI32Const{Value: 0},
						// br_table 0 0 0
						RawInstruction{Bytes: []byte{0x0E, 0x02, 0x00, 0x00, 0x00}},
					},
				},
			},
			{
				TypeIndex: 1,
				Code: &Code{
					Locals: []ValueType{ValueTypeI64, ValueTypeI64, ValueTypeF32},
					Instructions: []Instruction{
						InstructionCall{FuncIndex: 0},
						InstructionRefFunc{FuncIndex: 1},
						InstructionDrop{},
						InstructionMemorySize{},
						InstructionMemoryGrow{},
						InstructionDrop{},
						InstructionLocalGet{LocalIndex: 2},
						InstructionLocalTee{LocalIndex: 2},
						InstructionI64Load{Align: 3, Offset: 8},
						InstructionReturn{},
					},
				},
			},
		},
		Tables: []*Table{
			{
				ElementType: ValueTypeFuncRef,
				Min:         2,
				Max:         &tableMax,
			},
		},
		Memories: []*Memory{
			{Min: 1},
		},
		Globals: []*Global{
			{
				Type:    ValueTypeI64,
				Mutable: true,
				Init: []Instruction{
					InstructionI64Const{Value: 42},
				},
			},
			{
				Type: ValueTypeFuncRef,
				Init: []Instruction{
					InstructionRefFunc{FuncIndex: 2},
				},
			},
		},
		Exports: []*Export{
			{Name: "f", Descriptor: FunctionExport{FunctionIndex: 1}},
			{Name: "t", Descriptor: TableExport{TableIndex: 1}},
			{Name: "m", Descriptor: MemoryExport{MemoryIndex: 0}},
			{Name: "g", Descriptor: GlobalExport{GlobalIndex: 1}},
		},
		StartFunctionIndex: &start,
		Elements: []*Element{
			// flags 0
			{
				Mode: ElementModeActive,
				Type: ValueTypeFuncRef,
				Offset: []Instruction{
					InstructionI32Const{Value: 0},
				},
				FunctionIndices: []uint32{1, 2},
			},
			// flags 1
			{
				Mode:            ElementModePassive,
				Type:            ValueTypeFuncRef,
				FunctionIndices: []uint32{2},
			},
			// flags 2
			{
				Mode:       ElementModeActive,
				Type:       ValueTypeFuncRef,
				TableIndex: 1,
				Offset: []Instruction{
					InstructionI32Const{Value: 1},
				},
				FunctionIndices: []uint32{0},
			},
			// flags 3
			{
				Mode:            ElementModeDeclarative,
				Type:            ValueTypeFuncRef,
				FunctionIndices: []uint32{1},
			},
			// flags 5
			{
				Mode:            ElementModePassive,
				Type:            ValueTypeFuncRef,
				UsesExpressions: true,
				Expressions: [][]Instruction{
					{InstructionRefFunc{FuncIndex: 1}},
					// ref.null func
					{RawInstruction{Bytes: []byte{0xD0, 0x70}}},
				},
			},
		},
		DataCount: &dataCount,
		Data: []*Data{
			{
				Offset: []Instruction{
					InstructionI32Const{Value: 16},
				},
				Init: []byte{1, 2, 3},
			},
			{
				Passive: true,
				Init:    []byte{4},
			},
			{
				MemoryIndex: 1,
				Offset: []Instruction{
					InstructionI32Const{Value: 0},
				},
				Init: []byte{5, 6},
			},
		},
	}

	encoded, err := EncodeModule(module)
	require.NoError(t, err)

	decoded, err := DecodeModule(encoded)
	require.NoError(t, err)

	require.Equal(t, module, decoded)

	reencoded, err := EncodeModule(decoded)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestWASMReader_SkipsCustomSections(t *testing.T) {

	t.Parallel()

	encoded := encodeFunctionModule(t, &Code{
		Instructions: []Instruction{
			InstructionNop{},
		},
	})

	// insert a custom section named "x" after the header
	custom := []byte{0x0, 0x3, 0x1, 'x', 0xff}
	withCustom := append(append(append([]byte{}, encoded[:8]...), custom...), encoded[8:]...)

	module, err := DecodeModule(withCustom)
	require.NoError(t, err)

	reencoded, err := EncodeModule(module)
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestWASMReader_Errors(t *testing.T) {

	t.Parallel()

	header := []byte{0x0, 0x61, 0x73, 0x6d, 0x1, 0x0, 0x0, 0x0}

	withHeader := func(sections ...byte) []byte {
		return append(append([]byte{}, header...), sections...)
	}

	t.Run("magic", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule([]byte{0x0, 0x61, 0x73, 0x6e, 0x1, 0x0, 0x0, 0x0})
		var magicErr InvalidMagicError
		require.ErrorAs(t, err, &magicErr)

		_, err = DecodeModule([]byte{0x0, 0x61})
		require.ErrorAs(t, err, &magicErr)
	})

	t.Run("version", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule([]byte{0x0, 0x61, 0x73, 0x6d, 0x2, 0x0, 0x0, 0x0})
		var versionErr InvalidVersionError
		require.ErrorAs(t, err, &versionErr)
	})

	t.Run("section ID", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule(withHeader(0x0D, 0x0))
		var sectionIDErr InvalidSectionIDError
		require.ErrorAs(t, err, &sectionIDErr)
	})

	t.Run("section order", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule(withHeader(
			// function section, no functions
			0x3, 0x1, 0x0,
			// type section, no types
			0x1, 0x1, 0x0,
		))
		var orderErr InvalidSectionOrderError
		require.ErrorAs(t, err, &orderErr)
	})

	t.Run("duplicate section", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule(withHeader(
			0x1, 0x1, 0x0,
			0x1, 0x1, 0x0,
		))
		var duplicateErr InvalidDuplicateSectionError
		require.ErrorAs(t, err, &duplicateErr)
	})

	t.Run("section size", func(t *testing.T) {

		t.Parallel()

		var sizeErr InvalidSectionSizeError

		// larger than the input
		_, err := DecodeModule(withHeader(0x1, 0x5, 0x0))
		require.ErrorAs(t, err, &sizeErr)

		// larger than the contents
		_, err = DecodeModule(withHeader(0x1, 0x2, 0x0, 0x0))
		require.ErrorAs(t, err, &sizeErr)
	})

	t.Run("count larger than input", func(t *testing.T) {

		t.Parallel()

		// type section claiming 100 types
		_, err := DecodeModule(withHeader(0x1, 0x1, 0x64))
		var integerErr InvalidIntegerError
		require.ErrorAs(t, err, &integerErr)
	})

	t.Run("functions without code", func(t *testing.T) {

		t.Parallel()

		_, err := DecodeModule(withHeader(
			// type section: () -> ()
			0x1, 0x4, 0x1, 0x60, 0x0, 0x0,
			// function section: one function of type 0
			0x3, 0x2, 0x1, 0x0,
		))
		var mismatchErr FunctionCountMismatchError
		require.ErrorAs(t, err, &mismatchErr)
	})

	t.Run("unsupported opcode", func(t *testing.T) {

		t.Parallel()

		encoded := encodeFunctionModule(t, &Code{
			Instructions: []Instruction{
				// v128.const
				RawInstruction{Bytes: []byte{0xFD, 0x0C}},
			},
		})

		_, err := DecodeModule(encoded)
		var opcodeErr InvalidOpcodeError
		require.ErrorAs(t, err, &opcodeErr)
		assert.Equal(t, byte(0xFD), opcodeErr.Opcode)
		require.ErrorIs(t, err, errUnsupportedOpcode)
	})

	t.Run("else outside of if", func(t *testing.T) {

		t.Parallel()

		encoded := encodeFunctionModule(t, &Code{
			Instructions: []Instruction{
				RawInstruction{Bytes: []byte{byte(opcodeElse)}},
			},
		})

		_, err := DecodeModule(encoded)
		var elseErr InvalidElseError
		require.ErrorAs(t, err, &elseErr)
	})

	t.Run("block nesting", func(t *testing.T) {

		t.Parallel()

		var instructions []Instruction
		for i := 0; i < maxBlockNesting+10; i++ {
			instructions = []Instruction{
				InstructionBlock{
					Block: Block{
						Instructions1: instructions,
					},
				},
			}
		}

		encoded := encodeFunctionModule(t, &Code{
			Instructions: instructions,
		})

		_, err := DecodeModule(encoded)
		var nestingErr InvalidBlockNestingError
		require.ErrorAs(t, err, &nestingErr)
	})

	t.Run("too many locals", func(t *testing.T) {

		t.Parallel()

		locals := make([]ValueType, maxFunctionLocals+1)
		for i := range locals {
			locals[i] = ValueTypeI64
		}

		encoded := encodeFunctionModule(t, &Code{
			Locals: locals,
		})

		_, err := DecodeModule(encoded)
		var localsErr InvalidLocalsError
		require.ErrorAs(t, err, &localsErr)
		assert.Equal(t, uint64(maxFunctionLocals+1), localsErr.Count)
	})

	t.Run("truncated", func(t *testing.T) {

		t.Parallel()

		encoded := encodeFunctionModule(t, &Code{
			Instructions: []Instruction{
				InstructionI64Const{Value: 1},
				InstructionDrop{},
			},
		})

		// the code section is the last section
		for i := len(encoded) - 10; i < len(encoded); i++ {
			_, err := DecodeModule(encoded[:i])
			require.Error(t, err, "length %d", i)
		}
	})
}
