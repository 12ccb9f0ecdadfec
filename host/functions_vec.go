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
	"encoding/binary"
	"slices"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

const vecModule = "vec"

func (inv Invocation) newVec(elements []values.Val) (values.Val, error) {
	return inv.objects().NewVec(elements)
}

// buildVec charges copying length elements, then builds and allocates the vec
func (inv Invocation) buildVec(length int, build func() []values.Val) (values.Val, error) {
	err := inv.objects().ChargeVecCopy(length)
	if err != nil {
		return 0, err
	}
	return inv.newVec(build())
}

// indexOf scans the vec for the first element equal to x, in the given direction.
func (inv Invocation) indexOf(vec objects.VecObject, x values.Val, reverse bool) (values.Val, error) {
	for n := 0; n < len(vec); n++ {
		i := n
		if reverse {
			i = len(vec) - 1 - n
		}
		err := inv.charge(common.CostTypeVecEntry, 1)
		if err != nil {
			return 0, err
		}
		equal, err := inv.objects().Equal(vec[i], x)
		if err != nil {
			return 0, err
		}
		if equal {
			return values.FromU32(uint32(i)), nil
		}
	}
	return values.Void, nil
}

var vecFunctions = []HostFunction{
	{
		Module: vecModule,
		Name:   "vec_new",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.newVec(nil)
		},
	},
	{
		Module: vecModule,
		Name:   "vec_put",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(vec)); err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec), func() []values.Val {
				result := slices.Clone(vec)
				result[index] = inv.Arguments[2]
				return result
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_get",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(vec)); err != nil {
				return 0, err
			}
			return vec[index], nil
		},
	},
	{
		Module: vecModule,
		Name:   "vec_del",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(vec)); err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)-1, func() []values.Val {
				return slices.Delete(slices.Clone(vec), int(index), int(index)+1)
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_len",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			return u32Result(len(vec))
		},
	},
	{
		Module: vecModule,
		Name:   "vec_push_front",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)+1, func() []values.Val {
				return slices.Insert(slices.Clone(vec), 0, inv.Arguments[1])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_pop_front",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(vec)); err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)-1, func() []values.Val {
				return slices.Clone(vec[1:])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_push_back",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)+1, func() []values.Val {
				return append(slices.Clone(vec), inv.Arguments[1])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_pop_back",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(vec)); err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)-1, func() []values.Val {
				return slices.Clone(vec[:len(vec)-1])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_front",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(vec)); err != nil {
				return 0, err
			}
			return vec[0], nil
		},
	},
	{
		Module: vecModule,
		Name:   "vec_back",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(vec)); err != nil {
				return 0, err
			}
			return vec[len(vec)-1], nil
		},
	},
	{
		Module: vecModule,
		Name:   "vec_insert",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			// inserting at the end is allowed
			if err := checkIndex(index, len(vec)+1); err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)+1, func() []values.Val {
				return slices.Insert(slices.Clone(vec), int(index), inv.Arguments[2])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_append",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			other, err := inv.vecArg(1)
			if err != nil {
				return 0, err
			}
			return inv.buildVec(len(vec)+len(other), func() []values.Val {
				return slices.Concat(vec, other)
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_slice",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			start, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			end, err := inv.u32Arg(2)
			if err != nil {
				return 0, err
			}
			if err := checkRange(start, end, len(vec)); err != nil {
				return 0, err
			}
			return inv.buildVec(int(end-start), func() []values.Val {
				return slices.Clone(vec[start:end])
			})
		},
	},
	{
		Module: vecModule,
		Name:   "vec_first_index_of",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			return inv.indexOf(vec, inv.Arguments[1], false)
		},
	},
	{
		Module: vecModule,
		Name:   "vec_last_index_of",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			return inv.indexOf(vec, inv.Arguments[1], true)
		},
	},
	{
		// vec_binary_search returns a u64 whose high 32 bits are 1 if the element was found,
		// and whose low 32 bits are the index of the element,
		// or the index at which it would have to be inserted
		Module: vecModule,
		Name:   "vec_binary_search",
		Params: params(tVal, tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			x := inv.Arguments[1]

			low, high := 0, len(vec)
			found := false
			for low < high {
				err := inv.charge(common.CostTypeVecEntry, 1)
				if err != nil {
					return 0, err
				}
				mid := int(uint(low+high) >> 1)
				c, err := inv.objects().Compare(vec[mid], x)
				if err != nil {
					return 0, err
				}
				switch {
				case c < 0:
					low = mid + 1
				case c > 0:
					high = mid
				default:
					low = mid
					high = mid
					found = true
				}
			}

			result := uint64(low)
			if found {
				result |= 1 << 32
			}
			return inv.objects().U64Val(result)
		},
	},
	{
		Module: vecModule,
		Name:   "vec_new_from_linear_memory",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			position, err := inv.u32Arg(0)
			if err != nil {
				return 0, err
			}
			length, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if uint64(length)*8 > uint64(^uint32(0)) {
				return 0, errors.NewOverflowError("vec_new_from_linear_memory")
			}
			data, err := inv.readMemoryAt(position, length*8)
			if err != nil {
				return 0, err
			}
			elements := make([]values.Val, length)
			for i := range elements {
				v, err := values.FromRaw(binary.LittleEndian.Uint64(data[i*8:]))
				if err != nil {
					return 0, err
				}
				err = inv.objects().Validate(v)
				if err != nil {
					return 0, err
				}
				elements[i] = v
			}
			return inv.newVec(elements)
		},
	},
	{
		Module: vecModule,
		Name:   "vec_unpack_to_linear_memory",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			position, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			length, err := inv.u32Arg(2)
			if err != nil {
				return 0, err
			}
			if int(length) != len(vec) {
				return 0, errors.NewInvalidInputError(
					"vec length %d does not match expected length %d",
					len(vec),
					length,
				)
			}
			data := make([]byte, 8*len(vec))
			for i, v := range vec {
				binary.LittleEndian.PutUint64(data[i*8:], v.Raw())
			}
			err = inv.writeMemoryAt(position, data)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
}
