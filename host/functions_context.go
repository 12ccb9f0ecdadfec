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
	"github.com/onflow/wasmhost/values"
)

const contextModule = "context"

var contextFunctions = []HostFunction{
	{
		Module:     contextModule,
		Name:       "log_diagnostic",
		Params:     params(tVal, tVal),
		Result:     tVal,
		Diagnostic: true,
		Impl: func(inv Invocation) (values.Val, error) {
			err := inv.Host.recordDiagnostic(inv.Arguments[0], inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: contextModule,
		Name:   "contract_event",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			err := inv.Host.emitEvent(inv.Arguments[0], inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: contextModule,
		Name:   "get_ledger_sequence",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return values.FromU32(inv.Host.transaction.Ledger.Sequence), nil
		},
	},
	{
		Module: contextModule,
		Name:   "get_ledger_timestamp",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			return inv.objects().TimepointVal(inv.Host.transaction.Ledger.Timestamp)
		},
	},
	{
		Module: contextModule,
		Name:   "get_ledger_network_id",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			networkID := inv.Host.transaction.Ledger.NetworkID
			return inv.objects().BytesVal(networkID[:])
		},
	},
	{
		Module: contextModule,
		Name:   "get_current_contract_address",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			frame, err := inv.Host.currentFrame()
			if err != nil {
				return 0, err
			}
			return inv.objects().AddressVal(frame.Contract)
		},
	},
	{
		Module: contextModule,
		Name:   "get_invoking_contract",
		Params: params(),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			invoker, ok := inv.Host.invoker()
			if !ok {
				return values.Void, nil
			}
			return inv.objects().AddressVal(invoker)
		},
	},
	{
		Module: contextModule,
		Name:   "obj_cmp",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			c, err := inv.objects().Compare(inv.Arguments[0], inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			result, _ := values.TrySmallSigned(values.TagI64Small, int64(c))
			return result, nil
		},
	},
	{
		Module: contextModule,
		Name:   "fail_with_error",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			kind, code, err := inv.Arguments[0].ErrorParts()
			if err != nil {
				return 0, err
			}
			if kind != errors.KindContract {
				return 0, errors.NewInvalidInputError(
					"contracts can only fail with contract errors, got %s",
					kind,
				)
			}
			return 0, errors.NewContractError(code)
		},
	},
}
