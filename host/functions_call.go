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

	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

const callModule = "call"

func (inv Invocation) callArgs() (values.Val, error) {
	contract, err := inv.contractAddressArg(0)
	if err != nil {
		return 0, err
	}
	function, err := inv.symbolArg(1)
	if err != nil {
		return 0, err
	}
	args, err := inv.vecArg(2)
	if err != nil {
		return 0, err
	}
	return inv.Host.callContract(inv.Context, contract, function, slices.Clone(args))
}

var callFunctions = []HostFunction{
	{
		// call fails if the callee fails, after the callee's frame was rolled back
		Module: callModule,
		Name:   "call",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.callArgs()
		},
	},
	{
		// try_call returns the error value of a failing callee, after its frame was rolled back.
		// Fatal errors are never caught.
		Module: callModule,
		Name:   "try_call",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			result, err := inv.callArgs()
			if err != nil {
				if errors.IsFatal(err) {
					return 0, err
				}
				return values.FromHostError(err), nil
			}
			return result, nil
		},
	},
}
