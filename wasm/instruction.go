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

// Instruction is an instruction of a function body or constant expression
type Instruction interface {
	write(w *WASMWriter) error
}

type opcode byte

const (
	opcodeUnreachable   opcode = 0x00
	opcodeNop           opcode = 0x01
	opcodeBlock         opcode = 0x02
	opcodeLoop          opcode = 0x03
	opcodeIf            opcode = 0x04
	opcodeElse          opcode = 0x05
	opcodeEnd           opcode = 0x0B
	opcodeBr            opcode = 0x0C
	opcodeBrIf          opcode = 0x0D
	opcodeReturn        opcode = 0x0F
	opcodeCall          opcode = 0x10
	opcodeDrop          opcode = 0x1A
	opcodeLocalGet      opcode = 0x20
	opcodeLocalSet      opcode = 0x21
	opcodeLocalTee      opcode = 0x22
	opcodeI64Load       opcode = 0x29
	opcodeI64Store      opcode = 0x37
	opcodeMemorySize    opcode = 0x3F
	opcodeMemoryGrow    opcode = 0x40
	opcodeI32Const      opcode = 0x41
	opcodeI64Const      opcode = 0x42
	opcodeI64Eqz        opcode = 0x50
	opcodeI64Eq         opcode = 0x51
	opcodeI64Ne         opcode = 0x52
	opcodeI64LtU        opcode = 0x54
	opcodeI64GtU        opcode = 0x56
	opcodeI32Add        opcode = 0x6A
	opcodeI64Add        opcode = 0x7C
	opcodeI64Sub        opcode = 0x7D
	opcodeI64Mul        opcode = 0x7E
	opcodeI64DivU       opcode = 0x80
	opcodeI64And        opcode = 0x83
	opcodeI64Or         opcode = 0x84
	opcodeI64Shl        opcode = 0x86
	opcodeI64ShrU       opcode = 0x88
	opcodeI32WrapI64    opcode = 0xA7
	opcodeI64ExtendI32U opcode = 0xAD
	opcodeRefFunc       opcode = 0xD2
)

// BlockType is the type of a block: empty, a single result, or a function type
type BlockType interface {
	write(w *WASMWriter) error
}

// emptyBlockType is the byte used to indicate an empty block type in the WASM binary
const emptyBlockType = 0x40

type EmptyBlockType struct{}

func (EmptyBlockType) write(w *WASMWriter) error {
	return w.buf.WriteByte(emptyBlockType)
}

func (t ValueType) write(w *WASMWriter) error {
	return w.buf.WriteByte(byte(t))
}

// TypeIndexBlockType is a block type given by a function type index
type TypeIndexBlockType struct {
	TypeIndex uint32
}

func (t TypeIndexBlockType) write(w *WASMWriter) error {
	// the type index is encoded as a positive signed 33-bit integer
	return w.buf.writeInt64LEB128(int64(t.TypeIndex))
}

// Block is the body of a block, loop or if instruction.
// Instructions2 is the else branch of an if instruction
type Block struct {
	BlockType     BlockType
	Instructions1 []Instruction
	Instructions2 []Instruction
}

func (b Block) write(w *WASMWriter, allowElse bool) error {
	blockType := b.BlockType
	if blockType == nil {
		blockType = EmptyBlockType{}
	}
	err := blockType.write(w)
	if err != nil {
		return err
	}
	err = w.writeInstructions(b.Instructions1)
	if err != nil {
		return err
	}
	if allowElse && b.Instructions2 != nil {
		err = w.writeOpcode(opcodeElse)
		if err != nil {
			return err
		}
		err = w.writeInstructions(b.Instructions2)
		if err != nil {
			return err
		}
	}
	return w.writeOpcode(opcodeEnd)
}

// simpleInstruction writes an instruction without arguments
func simpleInstruction(w *WASMWriter, op opcode) error {
	return w.writeOpcode(op)
}

func indexInstruction(w *WASMWriter, op opcode, index uint32) error {
	err := w.writeOpcode(op)
	if err != nil {
		return err
	}
	return w.buf.writeUint32LEB128(index)
}

func memoryInstruction(w *WASMWriter, op opcode, align uint32, offset uint32) error {
	err := w.writeOpcode(op)
	if err != nil {
		return err
	}
	err = w.buf.writeUint32LEB128(align)
	if err != nil {
		return err
	}
	return w.buf.writeUint32LEB128(offset)
}

// InstructionUnreachable is the 'unreachable' instruction
type InstructionUnreachable struct{}

func (InstructionUnreachable) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeUnreachable)
}

// InstructionNop is the 'nop' instruction
type InstructionNop struct{}

func (InstructionNop) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeNop)
}

// InstructionBlock is the 'block' instruction
type InstructionBlock struct {
	Block Block
}

func (i InstructionBlock) write(w *WASMWriter) error {
	err := w.writeOpcode(opcodeBlock)
	if err != nil {
		return err
	}
	return i.Block.write(w, false)
}

// InstructionLoop is the 'loop' instruction
type InstructionLoop struct {
	Block Block
}

func (i InstructionLoop) write(w *WASMWriter) error {
	err := w.writeOpcode(opcodeLoop)
	if err != nil {
		return err
	}
	return i.Block.write(w, false)
}

// InstructionIf is the 'if' instruction
type InstructionIf struct {
	Block Block
}

func (i InstructionIf) write(w *WASMWriter) error {
	err := w.writeOpcode(opcodeIf)
	if err != nil {
		return err
	}
	return i.Block.write(w, true)
}

// InstructionBr is the 'br' instruction
type InstructionBr struct {
	LabelIndex uint32
}

func (i InstructionBr) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeBr, i.LabelIndex)
}

// InstructionBrIf is the 'br_if' instruction
type InstructionBrIf struct {
	LabelIndex uint32
}

func (i InstructionBrIf) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeBrIf, i.LabelIndex)
}

// InstructionReturn is the 'return' instruction
type InstructionReturn struct{}

func (InstructionReturn) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeReturn)
}

// InstructionCall is the 'call' instruction
type InstructionCall struct {
	FuncIndex uint32
}

func (i InstructionCall) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeCall, i.FuncIndex)
}

// InstructionDrop is the 'drop' instruction
type InstructionDrop struct{}

func (InstructionDrop) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeDrop)
}

// InstructionLocalGet is the 'local.get' instruction
type InstructionLocalGet struct {
	LocalIndex uint32
}

func (i InstructionLocalGet) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeLocalGet, i.LocalIndex)
}

// InstructionLocalSet is the 'local.set' instruction
type InstructionLocalSet struct {
	LocalIndex uint32
}

func (i InstructionLocalSet) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeLocalSet, i.LocalIndex)
}

// InstructionLocalTee is the 'local.tee' instruction
type InstructionLocalTee struct {
	LocalIndex uint32
}

func (i InstructionLocalTee) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeLocalTee, i.LocalIndex)
}

// InstructionI64Load is the 'i64.load' instruction
type InstructionI64Load struct {
	Align  uint32
	Offset uint32
}

func (i InstructionI64Load) write(w *WASMWriter) error {
	return memoryInstruction(w, opcodeI64Load, i.Align, i.Offset)
}

// InstructionI64Store is the 'i64.store' instruction
type InstructionI64Store struct {
	Align  uint32
	Offset uint32
}

func (i InstructionI64Store) write(w *WASMWriter) error {
	return memoryInstruction(w, opcodeI64Store, i.Align, i.Offset)
}

// InstructionMemorySize is the 'memory.size' instruction
type InstructionMemorySize struct{}

func (InstructionMemorySize) write(w *WASMWriter) error {
	// memory index 0
	return indexInstruction(w, opcodeMemorySize, 0)
}

// InstructionMemoryGrow is the 'memory.grow' instruction
type InstructionMemoryGrow struct{}

func (InstructionMemoryGrow) write(w *WASMWriter) error {
	// memory index 0
	return indexInstruction(w, opcodeMemoryGrow, 0)
}

// InstructionI32Const is the 'i32.const' instruction
type InstructionI32Const struct {
	Value int32
}

func (i InstructionI32Const) write(w *WASMWriter) error {
	err := w.writeOpcode(opcodeI32Const)
	if err != nil {
		return err
	}
	return w.buf.writeInt32LEB128(i.Value)
}

// InstructionI64Const is the 'i64.const' instruction
type InstructionI64Const struct {
	Value int64
}

func (i InstructionI64Const) write(w *WASMWriter) error {
	err := w.writeOpcode(opcodeI64Const)
	if err != nil {
		return err
	}
	return w.buf.writeInt64LEB128(i.Value)
}

type InstructionI64Eqz struct{}

func (InstructionI64Eqz) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Eqz)
}

type InstructionI64Eq struct{}

func (InstructionI64Eq) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Eq)
}

type InstructionI64Ne struct{}

func (InstructionI64Ne) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Ne)
}

type InstructionI64LtU struct{}

func (InstructionI64LtU) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64LtU)
}

type InstructionI64GtU struct{}

func (InstructionI64GtU) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64GtU)
}

type InstructionI32Add struct{}

func (InstructionI32Add) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI32Add)
}

type InstructionI64Add struct{}

func (InstructionI64Add) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Add)
}

type InstructionI64Sub struct{}

func (InstructionI64Sub) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Sub)
}

type InstructionI64Mul struct{}

func (InstructionI64Mul) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Mul)
}

type InstructionI64DivU struct{}

func (InstructionI64DivU) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64DivU)
}

type InstructionI64And struct{}

func (InstructionI64And) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64And)
}

type InstructionI64Or struct{}

func (InstructionI64Or) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Or)
}

type InstructionI64Shl struct{}

func (InstructionI64Shl) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64Shl)
}

type InstructionI64ShrU struct{}

func (InstructionI64ShrU) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64ShrU)
}

type InstructionI32WrapI64 struct{}

func (InstructionI32WrapI64) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI32WrapI64)
}

type InstructionI64ExtendI32U struct{}

func (InstructionI64ExtendI32U) write(w *WASMWriter) error {
	return simpleInstruction(w, opcodeI64ExtendI32U)
}

// InstructionRefFunc is the 'ref.func' instruction
type InstructionRefFunc struct {
	FuncIndex uint32
}

func (i InstructionRefFunc) write(w *WASMWriter) error {
	return indexInstruction(w, opcodeRefFunc, i.FuncIndex)
}

// RawInstruction is an instruction which is written as read:
// the opcode and its immediates, without any nested instructions
type RawInstruction struct {
	Bytes []byte
}

func (i RawInstruction) write(w *WASMWriter) error {
	return w.buf.WriteBytes(i.Bytes)
}
