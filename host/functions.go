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

package host

import (
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

var (
	tVal = ValueTypeVal
	tU64 = ValueTypeU64
	tI64 = ValueTypeI64
)

func params(types ...ValueType) []ValueType {
	return types
}

func charge(ty common.CostType, input uint64) []Cost {
	return []Cost{{Type: ty, Input: input}}
}

func (inv Invocation) objects() *objects.Store {
	return inv.Host.objects
}

func (inv Invocation) charge(ty common.CostType, input uint64) error {
	return inv.Host.budget.Charge(ty, input)
}

func (inv Invocation) u32Arg(index int) (uint32, error) {
	return inv.Arguments[index].U32()
}

func (inv Invocation) boolArg(index int) (bool, error) {
	return inv.Arguments[index].Bool()
}

func (inv Invocation) u64Arg(index int) (uint64, error) {
	return inv.objects().U64(inv.Arguments[index])
}

func (inv Invocation) i64Arg(index int) (int64, error) {
	return inv.objects().I64(inv.Arguments[index])
}

func (inv Invocation) vecArg(index int) (objects.VecObject, error) {
	return inv.objects().Vec(inv.Arguments[index])
}

func (inv Invocation) mapArg(index int) (objects.MapObject, error) {
	return inv.objects().Map(inv.Arguments[index])
}

func (inv Invocation) bytesArg(index int) ([]byte, error) {
	return inv.objects().Bytes(inv.Arguments[index])
}

func (inv Invocation) symbolArg(index int) (string, error) {
	return inv.objects().Symbol(inv.Arguments[index])
}

func (inv Invocation) addressArg(index int) (common.Address, error) {
	return inv.objects().Address(inv.Arguments[index])
}

func (inv Invocation) contractAddressArg(index int) (common.Address, error) {
	return inv.objects().ContractAddress(inv.Arguments[index])
}

func (inv Invocation) linearMemory() (LinearMemory, error) {
	if inv.Memory == nil {
		return nil, errors.NewHostError(
			errors.KindInvalidInput,
			"%s requires the linear memory of a guest",
			inv.Function.QualifiedName(),
		)
	}
	return inv.Memory, nil
}

// readMemory copies a range of the guest's linear memory.
// The position and the length are the U32 arguments at the given indices.
func (inv Invocation) readMemory(positionIndex, lengthIndex int) ([]byte, error) {
	position, err := inv.u32Arg(positionIndex)
	if err != nil {
		return nil, err
	}
	length, err := inv.u32Arg(lengthIndex)
	if err != nil {
		return nil, err
	}
	return inv.readMemoryAt(position, length)
}

func (inv Invocation) readMemoryAt(position, length uint32) ([]byte, error) {
	memory, err := inv.linearMemory()
	if err != nil {
		return nil, err
	}
	err = inv.charge(common.CostTypeHostMemCpy, uint64(length))
	if err != nil {
		return nil, err
	}
	data, ok := memory.Read(position, length)
	if !ok {
		return nil, errors.NewIndexBoundsError(uint64(position)+uint64(length), 0)
	}
	// the returned slice aliases the guest memory
	return append([]byte(nil), data...), nil
}

func (inv Invocation) writeMemoryAt(position uint32, data []byte) error {
	memory, err := inv.linearMemory()
	if err != nil {
		return err
	}
	err = inv.charge(common.CostTypeHostMemCpy, uint64(len(data)))
	if err != nil {
		return err
	}
	if !memory.Write(position, data) {
		return errors.NewIndexBoundsError(uint64(position)+uint64(len(data)), 0)
	}
	return nil
}

// checkRange checks that start <= end <= length.
func checkRange(start, end uint32, length int) error {
	if start > end {
		return errors.NewInvalidInputError("invalid range: start %d is greater than end %d", start, end)
	}
	if int(end) > length {
		return errors.NewIndexBoundsError(uint64(end), uint64(length))
	}
	return nil
}

func checkIndex(index uint32, length int) error {
	if int(index) >= length {
		return errors.NewIndexBoundsError(uint64(index), uint64(length))
	}
	return nil
}

func u32Result(n int) (values.Val, error) {
	if uint64(n) > uint64(^uint32(0)) {
		return 0, errors.NewOverflowError("length")
	}
	return values.FromU32(uint32(n)), nil
}
