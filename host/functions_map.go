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
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

const mapModule = "map"

func mapEntryAt(m objects.MapObject, inv Invocation) (objects.MapEntry, error) {
	index, err := inv.u32Arg(1)
	if err != nil {
		return objects.MapEntry{}, err
	}
	if err := checkIndex(index, len(m)); err != nil {
		return objects.MapEntry{}, err
	}
	return m[index], nil
}

var mapFunctions = []HostFunction{
	{
		Module: mapModule,
		Name:   "map_new",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.objects().NewMap(nil)
		},
	},
	{
		Module: mapModule,
		Name:   "map_put",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.objects().MapPut(inv.Arguments[0], inv.Arguments[1], inv.Arguments[2])
		},
	},
	{
		Module: mapModule,
		Name:   "map_get",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			value, found, err := inv.objects().MapGet(inv.Arguments[0], inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			if !found {
				return 0, errors.NewHostError(errors.KindMissingValue, "map key not found: %s", inv.Arguments[1])
			}
			return value, nil
		},
	},
	{
		Module: mapModule,
		Name:   "map_del",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.objects().MapDel(inv.Arguments[0], inv.Arguments[1])
		},
	},
	{
		Module: mapModule,
		Name:   "map_len",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			m, err := inv.mapArg(0)
			if err != nil {
				return 0, err
			}
			return u32Result(len(m))
		},
	},
	{
		Module: mapModule,
		Name:   "map_has",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			_, found, err := inv.objects().MapGet(inv.Arguments[0], inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			return values.FromBool(found), nil
		},
	},
	{
		Module: mapModule,
		Name:   "map_key_by_pos",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			m, err := inv.mapArg(0)
			if err != nil {
				return 0, err
			}
			entry, err := mapEntryAt(m, inv)
			if err != nil {
				return 0, err
			}
			return entry.Key, nil
		},
	},
	{
		Module: mapModule,
		Name:   "map_val_by_pos",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			m, err := inv.mapArg(0)
			if err != nil {
				return 0, err
			}
			entry, err := mapEntryAt(m, inv)
			if err != nil {
				return 0, err
			}
			return entry.Value, nil
		},
	},
	{
		Module: mapModule,
		Name:   "map_keys",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			m, err := inv.mapArg(0)
			if err != nil {
				return 0, err
			}
			return inv.buildVec(len(m), func() []values.Val {
				keys := make([]values.Val, len(m))
				for i, entry := range m {
					keys[i] = entry.Key
				}
				return keys
			})
		},
	},
	{
		Module: mapModule,
		Name:   "map_values",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			m, err := inv.mapArg(0)
			if err != nil {
				return 0, err
			}
			return inv.buildVec(len(m), func() []values.Val {
				vals := make([]values.Val, len(m))
				for i, entry := range m {
					vals[i] = entry.Value
				}
				return vals
			})
		},
	},
}
