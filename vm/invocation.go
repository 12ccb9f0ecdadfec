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

package vm

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/host"
)

// invocation is the state of one execution of a guest.
// Host functions find it in the context of the call.
type invocation struct {
	host *host.Host
	// err is the first error raised by a host function.
	// The guest is trapped when it is set, so it can never suppress it
	err error
	// memorySize is the size of the linear memory which was charged, in bytes
	memorySize uint64
}

type invocationKey struct{}

func withInvocation(ctx context.Context, inv *invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

func invocationFromContext(ctx context.Context) *invocation {
	inv, ok := ctx.Value(invocationKey{}).(*invocation)
	if !ok {
		// host modules are only called by guests instantiated in Execute
		panic(errors.NewUnreachableError())
	}
	return inv
}

// hostTrap is the panic value which traps the guest after a host error
type hostTrap struct {
	err error
}

// run calls the host function body.
// On failure the error is recorded and the guest is trapped
func (inv *invocation) run(f func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.NewUnexpectedError("host function panicked: %v", r)
			}
		}()
		return f()
	}()
	if err == nil {
		return
	}
	if inv.err == nil {
		inv.err = err
	}
	panic(hostTrap{err: err})
}

// failure returns the error of a failed instantiation or call:
// the recorded host error, or a trap of the guest
func (inv *invocation) failure(function string, err error) error {
	if inv.err != nil {
		return inv.err
	}
	return errors.NewHostError(
		errors.KindContractTrap,
		"contract function %s trapped: %s",
		function,
		err,
	)
}

// chargeMemoryGrowth charges the growth of the linear memory since the last charge
func (inv *invocation) chargeMemoryGrowth(memory api.Memory) error {
	if memory == nil {
		return nil
	}
	size := uint64(memory.Size())
	if size <= inv.memorySize {
		return nil
	}
	grown := size - inv.memorySize
	inv.memorySize = size
	return inv.host.Charge(common.CostTypeWasmMemAlloc, grown)
}
