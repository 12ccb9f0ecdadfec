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
	"slices"

	"github.com/onflow/wasmhost/codec"
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

const bufModule = "buf"

func (inv Invocation) byteArg(index int) (byte, error) {
	u, err := inv.u32Arg(index)
	if err != nil {
		return 0, err
	}
	if u > 0xff {
		return 0, errors.NewInvalidInputError("value %d does not fit a byte", u)
	}
	return byte(u), nil
}

func (inv Invocation) newBytes(b []byte) (values.Val, error) {
	return inv.buildBytes(len(b), func() []byte {
		return b
	})
}

// buildBytes charges copying length bytes, then builds and allocates the bytes
func (inv Invocation) buildBytes(length int, build func() []byte) (values.Val, error) {
	err := inv.charge(common.CostTypeHostMemCpy, uint64(length))
	if err != nil {
		return 0, err
	}
	return inv.objects().BytesVal(build())
}

// copyToMemory copies the range of the buffer starting at the U32 argument at index
// into the linear memory, at the position given by the argument at index+1,
// for the length given by the argument at index+2.
func (inv Invocation) copyToMemory(buffer []byte, index int) error {
	start, err := inv.u32Arg(index)
	if err != nil {
		return err
	}
	position, err := inv.u32Arg(index + 1)
	if err != nil {
		return err
	}
	length, err := inv.u32Arg(index + 2)
	if err != nil {
		return err
	}
	end := uint64(start) + uint64(length)
	if end > uint64(len(buffer)) {
		return errors.NewIndexBoundsError(end, uint64(len(buffer)))
	}
	return inv.writeMemoryAt(position, buffer[start:end])
}

var bufFunctions = []HostFunction{
	{
		Module: bufModule,
		Name:   "bytes_new",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.newBytes(nil)
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_put",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			value, err := inv.byteArg(2)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(b)); err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b), func() []byte {
				result := slices.Clone(b)
				result[index] = value
				return result
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_get",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(b)); err != nil {
				return 0, err
			}
			return values.FromU32(uint32(b[index])), nil
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_del",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(b)); err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b)-1, func() []byte {
				return slices.Delete(slices.Clone(b), int(index), int(index)+1)
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_len",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			return u32Result(len(b))
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_push",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			value, err := inv.byteArg(1)
			if err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b)+1, func() []byte {
				return append(slices.Clone(b), value)
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_pop",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(b)); err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b)-1, func() []byte {
				return slices.Clone(b[:len(b)-1])
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_front",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(b)); err != nil {
				return 0, err
			}
			return values.FromU32(uint32(b[0])), nil
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_back",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(0, len(b)); err != nil {
				return 0, err
			}
			return values.FromU32(uint32(b[len(b)-1])), nil
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_insert",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			index, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			value, err := inv.byteArg(2)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(index, len(b)+1); err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b)+1, func() []byte {
				return slices.Insert(slices.Clone(b), int(index), value)
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_append",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			other, err := inv.bytesArg(1)
			if err != nil {
				return 0, err
			}
			return inv.buildBytes(len(b)+len(other), func() []byte {
				return slices.Concat(b, other)
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_slice",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
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
			if err := checkRange(start, end, len(b)); err != nil {
				return 0, err
			}
			return inv.buildBytes(int(end-start), func() []byte {
				return slices.Clone(b[start:end])
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_new_from_linear_memory",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			data, err := inv.readMemory(0, 1)
			if err != nil {
				return 0, err
			}
			return inv.objects().BytesVal(data)
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_copy_to_linear_memory",
		Params: params(tVal, tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.copyToMemory(b, 1)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		// bytes_copy_from_linear_memory returns a copy of the bytes
		// with the range starting at the given position replaced by the memory range,
		// growing the bytes as needed
		Module: bufModule,
		Name:   "bytes_copy_from_linear_memory",
		Params: params(tVal, tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			start, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			if err := checkIndex(start, len(b)+1); err != nil {
				return 0, err
			}
			data, err := inv.readMemory(2, 3)
			if err != nil {
				return 0, err
			}
			end := int(start) + len(data)
			return inv.buildBytes(max(end, len(b)), func() []byte {
				result := slices.Clone(b)
				if end > len(result) {
					result = slices.Grow(result, end-len(result))[:end]
				}
				copy(result[start:], data)
				return result
			})
		},
	},
	{
		Module: bufModule,
		Name:   "string_new_from_linear_memory",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			data, err := inv.readMemory(0, 1)
			if err != nil {
				return 0, err
			}
			return inv.objects().StringVal(string(data))
		},
	},
	{
		Module: bufModule,
		Name:   "string_copy_to_linear_memory",
		Params: params(tVal, tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			s, err := inv.objects().String(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			err = inv.copyToMemory([]byte(s), 1)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: bufModule,
		Name:   "string_len",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			s, err := inv.objects().String(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return u32Result(len(s))
		},
	},
	{
		Module: bufModule,
		Name:   "symbol_new_from_linear_memory",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			data, err := inv.readMemory(0, 1)
			if err != nil {
				return 0, err
			}
			return inv.objects().SymbolVal(string(data))
		},
	},
	{
		Module: bufModule,
		Name:   "symbol_copy_to_linear_memory",
		Params: params(tVal, tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			s, err := inv.symbolArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.copyToMemory([]byte(s), 1)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: bufModule,
		Name:   "symbol_len",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			s, err := inv.symbolArg(0)
			if err != nil {
				return 0, err
			}
			return u32Result(len(s))
		},
	},
	{
		Module: bufModule,
		Name:   "string_to_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			s, err := inv.objects().String(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.buildBytes(len(s), func() []byte {
				return []byte(s)
			})
		},
	},
	{
		Module: bufModule,
		Name:   "bytes_to_string",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.charge(common.CostTypeHostMemCpy, uint64(len(b)))
			if err != nil {
				return 0, err
			}
			return inv.objects().StringVal(string(b))
		},
	},
	{
		Module: bufModule,
		Name:   "serialize_to_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			encoded, err := codec.Encode(inv.objects(), inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().BytesVal(encoded)
		},
	},
	{
		Module: bufModule,
		Name:   "deserialize_from_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			return codec.Decode(inv.objects(), b)
		},
	},
}
