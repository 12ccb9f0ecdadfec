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
	"context"
	"time"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/values"
)

// Executor runs the exported function of WASM contract code.
//
// Host functions called by the code are dispatched through Host.DispatchNative.
type Executor interface {
	Execute(
		ctx context.Context,
		host *Host,
		code []byte,
		function string,
		args []values.Val,
	) (values.Val, error)
}

// NativeFunction is a function of a contract implemented by the host.
// It operates on the host through the same host functions a WASM contract calls,
// see Host.Dispatch.
type NativeFunction func(ctx context.Context, host *Host, args []values.Val) (values.Val, error)

// NativeContract is a contract implemented by the host, by function name.
type NativeContract map[string]NativeFunction

// RegisterNativeContract makes the native contract available
// to instances with a native executable of the given name.
func (h *Host) RegisterNativeContract(name string, contract NativeContract) {
	h.natives[name] = contract
}

// ContractFootprintKeys returns the keys which must be in the footprint
// to invoke the contract with the given executable.
func ContractFootprintKeys(contract common.Address, executable ledger.Executable) []ledger.Key {
	keys := []ledger.Key{
		ledger.ContractInstanceKey(contract),
	}
	if executable.Kind == ledger.ExecutableKindWasm {
		keys = append(keys, ledger.ContractCodeKey(executable.WasmHash))
	}
	return keys
}

// Deploy returns the ledger writes which install the contract.
// For WASM executables, code is the module, for native executables it is ignored.
func Deploy(contract common.Address, executable ledger.Executable, code []byte) ([]ledger.Write, error) {
	instance, err := ledger.EncodeContractInstance(ledger.ContractInstance{
		Executable: executable,
	})
	if err != nil {
		return nil, err
	}

	writes := []ledger.Write{
		{
			Key:   ledger.ContractInstanceKey(contract),
			Entry: instance,
		},
	}
	if executable.Kind == ledger.ExecutableKindWasm {
		if ledger.WasmExecutable(code).WasmHash != executable.WasmHash {
			return nil, errors.NewInvalidInputError("code does not match executable %s", executable)
		}
		writes = append(writes, ledger.Write{
			Key:   ledger.ContractCodeKey(executable.WasmHash),
			Entry: code,
		})
	}
	ledger.SortWrites(writes)
	return writes, nil
}

func (h *Host) loadExecutable(contract common.Address) (ledger.Executable, error) {
	key := ledger.ContractInstanceKey(contract)
	entry, ok, err := h.storage.Get(key)
	if err != nil {
		return ledger.Executable{}, err
	}
	if !ok {
		return ledger.Executable{}, errors.NewHostError(
			errors.KindMissingValue,
			"contract %s does not exist",
			contract,
		)
	}
	instance, err := ledger.DecodeContractInstance(entry)
	if err != nil {
		return ledger.Executable{}, errors.NewUnexpectedErrorFromCause(err)
	}
	return instance.Executable, nil
}

func (h *Host) loadCode(executable ledger.Executable) ([]byte, error) {
	key := ledger.ContractCodeKey(executable.WasmHash)
	code, ok, err := h.storage.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewHostError(
			errors.KindMissingValue,
			"contract code %x does not exist",
			executable.WasmHash,
		)
	}
	return code, nil
}

// callContract pushes a frame for the invocation, runs the contract's function,
// and pops the frame, rolling it back on failure.
func (h *Host) callContract(
	ctx context.Context,
	contract common.Address,
	function string,
	args []values.Val,
) (result values.Val, err error) {
	frame, err := h.pushFrame(contract, function)
	if err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			// the frame must be popped before the panic continues unwinding,
			// so the outer frames still see a consistent stack
			_ = h.popFrame(frame, errors.NewUnexpectedError("%v", r))
			panic(r)
		}
	}()

	result, err = h.runContract(ctx, contract, function, args)
	if err == nil {
		// the result must not reference objects of an invalid epoch
		err = h.objects.Validate(result)
	}
	if err != nil {
		return 0, h.popFrame(frame, err)
	}

	return result, h.popFrame(frame, nil)
}

func (h *Host) runContract(
	ctx context.Context,
	contract common.Address,
	function string,
	args []values.Val,
) (values.Val, error) {
	executable, err := h.loadExecutable(contract)
	if err != nil {
		return 0, err
	}

	err = h.budget.Charge(common.CostTypeInvokeVmFunction, 1)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	defer func() {
		h.logger.Trace("contract function returned",
			"contract", contract,
			"function", function,
			"executable", executable,
			"duration", time.Since(start),
		)
	}()

	switch executable.Kind {
	case ledger.ExecutableKindNative:
		native, ok := h.natives[executable.Native]
		if !ok {
			return 0, errors.NewHostError(
				errors.KindMissingValue,
				"native contract %s is not registered",
				executable.Native,
			)
		}
		nativeFunction, ok := native[function]
		if !ok {
			return 0, errors.NewHostError(
				errors.KindMissingValue,
				"function %s of contract %s does not exist",
				function,
				contract,
			)
		}
		return nativeFunction(ctx, h, args)

	case ledger.ExecutableKindWasm:
		if h.config.Executor == nil {
			return 0, errors.NewUnexpectedError("no executor configured for WASM contracts")
		}
		code, err := h.loadCode(executable)
		if err != nil {
			return 0, err
		}
		return h.config.Executor.Execute(ctx, h, code, function, args)
	}

	return 0, errors.NewUnexpectedError("unknown executable kind %s", executable.Kind)
}
