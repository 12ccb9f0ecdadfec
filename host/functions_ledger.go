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
	"github.com/onflow/wasmhost/codec"
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

const ledgerModule = "ledger"

// MissingValue is the result of get_contract_data for an absent entry.
var MissingValue = values.FromError(errors.KindMissingValue, 0)

// ContractDataKey returns the ledger key of the contract's data entry for the key value.
// The key body is the canonical encoding of the value.
func ContractDataKey(
	store *objects.Store,
	contract common.Address,
	durability ledger.Durability,
	key values.Val,
) (ledger.Key, error) {
	body, err := codec.Encode(store, key)
	if err != nil {
		return ledger.Key{}, err
	}
	return ledger.ContractDataKey(contract, durability, body), nil
}

func durabilityFromVal(v values.Val) (ledger.Durability, error) {
	u, err := v.U32()
	if err != nil {
		return 0, err
	}
	durability := ledger.Durability(u)
	switch durability {
	case ledger.DurabilityPersistent, ledger.DurabilityTemporary:
		return durability, nil
	}
	return 0, errors.NewInvalidInputError("invalid durability %d", u)
}

// dataKey returns the ledger key of the current contract for the key argument at index,
// and the durability argument at durabilityIndex.
func (inv Invocation) dataKey(index, durabilityIndex int) (ledger.Key, error) {
	frame, err := inv.Host.currentFrame()
	if err != nil {
		return ledger.Key{}, err
	}
	durability, err := durabilityFromVal(inv.Arguments[durabilityIndex])
	if err != nil {
		return ledger.Key{}, err
	}
	return ContractDataKey(inv.objects(), frame.Contract, durability, inv.Arguments[index])
}

var ledgerFunctions = []HostFunction{
	{
		Module: ledgerModule,
		Name:   "put_contract_data",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			key, err := inv.dataKey(0, 2)
			if err != nil {
				return 0, err
			}
			entry, err := codec.Encode(inv.objects(), inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			err = inv.Host.storage.Put(key, entry)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: ledgerModule,
		Name:   "has_contract_data",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			key, err := inv.dataKey(0, 1)
			if err != nil {
				return 0, err
			}
			ok, err := inv.Host.storage.Has(key)
			if err != nil {
				return 0, err
			}
			return values.FromBool(ok), nil
		},
	},
	{
		// get_contract_data returns MissingValue for an absent entry
		Module: ledgerModule,
		Name:   "get_contract_data",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			key, err := inv.dataKey(0, 1)
			if err != nil {
				return 0, err
			}
			entry, ok, err := inv.Host.storage.Get(key)
			if err != nil {
				return 0, err
			}
			if !ok {
				return MissingValue, nil
			}
			return codec.Decode(inv.objects(), entry)
		},
	},
	{
		Module: ledgerModule,
		Name:   "del_contract_data",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			key, err := inv.dataKey(0, 1)
			if err != nil {
				return 0, err
			}
			err = inv.Host.storage.Delete(key)
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: ledgerModule,
		Name:   "contract_data_key",
		Params: params(tVal, tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			key, err := inv.dataKey(0, 1)
			if err != nil {
				return 0, err
			}
			return inv.objects().LedgerKeyVal(key)
		},
	},
}
