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

package vm

import (
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/wasm"
)

// meteringHookType is the type of the metering hook: (i64) -> ()
var meteringHookType = &wasm.FunctionType{
	Params: []wasm.ValueType{wasm.ValueTypeI64},
}

// checkImports rejects imports of the metering module,
// and imports other than functions
func checkImports(module *wasm.Module) error {
	for _, im := range module.Imports {
		if im.Module == MeteringModule {
			return errors.NewHostError(
				errors.KindUnknownImport,
				"import %s.%s is reserved",
				im.Module,
				im.Name,
			)
		}
		if _, ok := im.Descriptor.(wasm.FunctionImport); !ok {
			return errors.NewHostError(
				errors.KindUnknownImport,
				"unsupported import %s.%s: only functions can be imported",
				im.Module,
				im.Name,
			)
		}
	}
	return nil
}

// instrument makes the module charge for the instructions it executes.
//
// The metering hook is imported as the last function import,
// and all functions defined by the module move up by one index.
// Every function body, and every block, loop, if and else body,
// starts with a call of the hook with the number of instructions of the body.
// A loop body is charged again on each iteration.
//
// All imports must be function imports, see checkImports
func instrument(module *wasm.Module) {
	hookIndex := uint32(len(module.Imports))

	typeIndex := uint32(len(module.Types))
	module.Types = append(module.Types, meteringHookType)

	module.Imports = append(module.Imports, &wasm.Import{
		Module: MeteringModule,
		Name:   ConsumeInstructionsFunction,
		Descriptor: wasm.FunctionImport{
			TypeIndex: typeIndex,
		},
	})

	m := meter{
		hookIndex: hookIndex,
	}

	for _, function := range module.Functions {
		if function.Code == nil {
			continue
		}
		function.Code.Instructions = m.body(function.Code.Instructions)
	}

	for _, global := range module.Globals {
		global.Init = m.expression(global.Init)
	}

	for _, element := range module.Elements {
		element.Offset = m.expression(element.Offset)
		for i, expression := range element.Expressions {
			element.Expressions[i] = m.expression(expression)
		}
		for i, functionIndex := range element.FunctionIndices {
			element.FunctionIndices[i] = m.functionIndex(functionIndex)
		}
	}

	for _, export := range module.Exports {
		if descriptor, ok := export.Descriptor.(wasm.FunctionExport); ok {
			export.Descriptor = wasm.FunctionExport{
				FunctionIndex: m.functionIndex(descriptor.FunctionIndex),
			}
		}
	}

	if module.StartFunctionIndex != nil {
		start := m.functionIndex(*module.StartFunctionIndex)
		module.StartFunctionIndex = &start
	}
}

type meter struct {
	hookIndex uint32
}

// functionIndex returns the index of the function after the hook was imported
func (m meter) functionIndex(index uint32) uint32 {
	if index >= m.hookIndex {
		return index + 1
	}
	return index
}

// body returns the instructions, preceded by the charge for them
func (m meter) body(instructions []wasm.Instruction) []wasm.Instruction {
	count := len(instructions)
	if count == 0 {
		count = 1
	}

	result := make([]wasm.Instruction, 0, len(instructions)+2)
	result = append(
		result,
		wasm.InstructionI64Const{Value: int64(count)},
		wasm.InstructionCall{FuncIndex: m.hookIndex},
	)
	for _, instruction := range instructions {
		result = append(result, m.instruction(instruction))
	}
	return result
}

// expression rewrites the function indices of a constant expression.
// Constant expressions cannot call functions, so they are not charged
func (m meter) expression(instructions []wasm.Instruction) []wasm.Instruction {
	for i, instruction := range instructions {
		instructions[i] = m.instruction(instruction)
	}
	return instructions
}

func (m meter) instruction(instruction wasm.Instruction) wasm.Instruction {
	switch instruction := instruction.(type) {
	case wasm.InstructionCall:
		instruction.FuncIndex = m.functionIndex(instruction.FuncIndex)
		return instruction

	case wasm.InstructionRefFunc:
		instruction.FuncIndex = m.functionIndex(instruction.FuncIndex)
		return instruction

	case wasm.InstructionBlock:
		instruction.Block = m.block(instruction.Block)
		return instruction

	case wasm.InstructionLoop:
		instruction.Block = m.block(instruction.Block)
		return instruction

	case wasm.InstructionIf:
		instruction.Block = m.block(instruction.Block)
		return instruction
	}

	return instruction
}

func (m meter) block(block wasm.Block) wasm.Block {
	block.Instructions1 = m.body(block.Instructions1)
	if block.Instructions2 != nil {
		block.Instructions2 = m.body(block.Instructions2)
	}
	return block
}
