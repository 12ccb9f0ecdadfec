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

const prngModule = "prng"

var prngFunctions = []HostFunction{
	{
		Module: prngModule,
		Name:   "prng_reseed",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.fixedBytesArg(0, SeedLength)
			if err != nil {
				return 0, err
			}
			prng, err := inv.Host.framePRNG()
			if err != nil {
				return 0, err
			}
			err = prng.Reseed([SeedLength]byte(b))
			if err != nil {
				return 0, err
			}
			return values.Void, nil
		},
	},
	{
		Module: prngModule,
		Name:   "prng_bytes_new",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			length, err := inv.u32Arg(0)
			if err != nil {
				return 0, err
			}
			if uint64(length) > inv.objects().Limits().MaxObjectSize {
				return 0, errors.NewResourceExceededError("random bytes length %d exceeds object size limit", length)
			}
			prng, err := inv.Host.framePRNG()
			if err != nil {
				return 0, err
			}
			b, err := prng.Bytes(length)
			if err != nil {
				return 0, err
			}
			return inv.objects().BytesVal(b)
		},
	},
	{
		Module: prngModule,
		Name:   "prng_u64_in_inclusive_range",
		Params: params(tU64, tU64),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			low, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			high, err := inv.u64Arg(1)
			if err != nil {
				return 0, err
			}
			prng, err := inv.Host.framePRNG()
			if err != nil {
				return 0, err
			}
			u, err := prng.Uint64InInclusiveRange(low, high)
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u)
		},
	},
	{
		Module: prngModule,
		Name:   "prng_vec_shuffle",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			vec, err := inv.vecArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.objects().ChargeVecCopy(len(vec))
			if err != nil {
				return 0, err
			}
			prng, err := inv.Host.framePRNG()
			if err != nil {
				return 0, err
			}
			shuffled, err := prng.Shuffle(vec)
			if err != nil {
				return 0, err
			}
			return inv.newVec(shuffled)
		},
	},
}
