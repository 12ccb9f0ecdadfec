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
	"github.com/onflow/wasmhost/values"
)

const addressModule = "address"

// authorized returns true if the address signed the transaction,
// or if it is the contract which invoked the current frame.
func (h *Host) authorized(address common.Address) bool {
	for _, signer := range h.transaction.Signers {
		if signer == address {
			return true
		}
	}
	invoker, ok := h.invoker()
	return ok && invoker == address
}

func addressFromBytesFunction(name string, kind common.AddressKind) HostFunction {
	return HostFunction{
		Module: addressModule,
		Name:   name,
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			address, err := common.NewAddress(kind, b)
			if err != nil {
				return 0, errors.WrapHostError(errors.KindInvalidInput, err)
			}
			return inv.objects().AddressVal(address)
		},
	}
}

var addressFunctions = []HostFunction{
	{
		Module: addressModule,
		Name:   "require_auth",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			address, err := inv.addressArg(0)
			if err != nil {
				return 0, err
			}
			if !inv.Host.authorized(address) {
				return 0, errors.NewHostError(errors.KindAuth, "%s is not authorized", address)
			}
			return values.Void, nil
		},
	},
	{
		Module: addressModule,
		Name:   "address_to_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			address, err := inv.addressArg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().BytesVal(address.Bytes())
		},
	},
	addressFromBytesFunction("contract_address_from_bytes", common.AddressKindContract),
	addressFromBytesFunction("account_address_from_bytes", common.AddressKindAccount),
}
