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
	"math/big"

	"github.com/holiman/uint256"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

const intModule = "int"

// the bound of the exponent beyond which every base other than -1, 0 and 1 overflows
const maxNonTrivialExponent = 256

var (
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
)

var errDivisionByZero = errors.NewInvalidInputError("division by zero")

func int256ToBig(i *uint256.Int) *big.Int {
	if i.Sign() >= 0 {
		return i.ToBig()
	}
	var abs uint256.Int
	abs.Neg(i)
	result := abs.ToBig()
	return result.Neg(result)
}

func bigToInt256(b *big.Int, operation string) (*uint256.Int, error) {
	if b.Cmp(minInt256) < 0 || b.Cmp(maxInt256) > 0 {
		return nil, errors.NewOverflowError(operation)
	}
	result, _ := uint256.FromBig(new(big.Int).Abs(b))
	if b.Sign() < 0 {
		result.Neg(result)
	}
	return result, nil
}

func u256BinaryFunction(
	name string,
	cost common.CostType,
	op func(a, b *uint256.Int) (*uint256.Int, error),
) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal, tVal),
		Result: tVal,
		Costs:  charge(cost, 1),
		Impl: func(inv Invocation) (values.Val, error) {
			a, err := inv.objects().U256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			b, err := inv.objects().U256(inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			result, err := op(a, b)
			if err != nil {
				return 0, err
			}
			return inv.objects().U256Val(result)
		},
	}
}

func u256ExponentFunction(
	name string,
	cost common.CostType,
	op func(a *uint256.Int, exponent uint32) (*uint256.Int, error),
) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal, tVal),
		Result: tVal,
		Costs:  charge(cost, 1),
		Impl: func(inv Invocation) (values.Val, error) {
			a, err := inv.objects().U256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			exponent, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			result, err := op(a, exponent)
			if err != nil {
				return 0, err
			}
			return inv.objects().U256Val(result)
		},
	}
}

func i256BinaryFunction(
	name string,
	cost common.CostType,
	op func(a, b *big.Int) (*big.Int, error),
) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal, tVal),
		Result: tVal,
		Costs:  charge(cost, 1),
		Impl: func(inv Invocation) (values.Val, error) {
			a, err := inv.objects().I256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			b, err := inv.objects().I256(inv.Arguments[1])
			if err != nil {
				return 0, err
			}
			result, err := op(int256ToBig(a), int256ToBig(b))
			if err != nil {
				return 0, err
			}
			i, err := bigToInt256(result, name)
			if err != nil {
				return 0, err
			}
			return inv.objects().I256Val(i)
		},
	}
}

func i256ExponentFunction(
	name string,
	cost common.CostType,
	op func(a *uint256.Int, exponent uint32) (*uint256.Int, error),
) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal, tVal),
		Result: tVal,
		Costs:  charge(cost, 1),
		Impl: func(inv Invocation) (values.Val, error) {
			a, err := inv.objects().I256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			exponent, err := inv.u32Arg(1)
			if err != nil {
				return 0, err
			}
			result, err := op(a, exponent)
			if err != nil {
				return 0, err
			}
			return inv.objects().I256Val(result)
		},
	}
}

func checkShift(bits uint32, operation string) error {
	if bits >= 256 {
		return errors.NewOverflowError(operation)
	}
	return nil
}

func u256Pow(a *uint256.Int, exponent uint32) (*uint256.Int, error) {
	result := uint256.NewInt(1)
	base := new(uint256.Int).Set(a)
	for exponent > 0 {
		var overflow bool
		if exponent&1 == 1 {
			result, overflow = new(uint256.Int).MulOverflow(result, base)
			if overflow {
				return nil, errors.NewOverflowError("u256_pow")
			}
		}
		exponent >>= 1
		if exponent > 0 {
			base, overflow = new(uint256.Int).MulOverflow(base, base)
			if overflow {
				return nil, errors.NewOverflowError("u256_pow")
			}
		}
	}
	return result, nil
}

func i256Pow(a *uint256.Int, exponent uint32) (*uint256.Int, error) {
	base := int256ToBig(a)
	if base.CmpAbs(big.NewInt(1)) > 0 && exponent >= maxNonTrivialExponent {
		return nil, errors.NewOverflowError("i256_pow")
	}
	result := new(big.Int).Exp(base, big.NewInt(int64(exponent)), nil)
	return bigToInt256(result, "i256_pow")
}

var intFunctions = []HostFunction{
	{
		Module: intModule,
		Name:   "obj_from_u64",
		Params: params(tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_u64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u)
		},
	},
	{
		Module: intModule,
		Name:   "obj_from_i64",
		Params: params(tI64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := inv.i64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().I64Val(i)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_i64",
		Params: params(tVal),
		Result: tI64,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := inv.i64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().I64Val(i)
		},
	},
	{
		Module: intModule,
		Name:   "timepoint_obj_from_u64",
		Params: params(tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().TimepointVal(u)
		},
	},
	{
		Module: intModule,
		Name:   "timepoint_obj_to_u64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.objects().Timepoint(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u)
		},
	},
	{
		Module: intModule,
		Name:   "duration_obj_from_u64",
		Params: params(tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			return inv.objects().DurationVal(u)
		},
	},
	{
		Module: intModule,
		Name:   "duration_obj_to_u64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.objects().Duration(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u)
		},
	},
	{
		Module: intModule,
		Name:   "obj_from_u128_pieces",
		Params: params(tU64, tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			hi, err := inv.u64Arg(0)
			if err != nil {
				return 0, err
			}
			lo, err := inv.u64Arg(1)
			if err != nil {
				return 0, err
			}
			return inv.objects().U128Val(hi, lo)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_u128_lo64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			_, lo, err := inv.objects().U128(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(lo)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_u128_hi64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			hi, _, err := inv.objects().U128(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(hi)
		},
	},
	{
		Module: intModule,
		Name:   "obj_from_i128_pieces",
		Params: params(tI64, tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			hi, err := inv.i64Arg(0)
			if err != nil {
				return 0, err
			}
			lo, err := inv.u64Arg(1)
			if err != nil {
				return 0, err
			}
			return inv.objects().I128Val(hi, lo)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_i128_lo64",
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			_, lo, err := inv.objects().I128(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(lo)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_i128_hi64",
		Params: params(tVal),
		Result: tI64,
		Impl: func(inv Invocation) (values.Val, error) {
			hi, _, err := inv.objects().I128(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().I64Val(hi)
		},
	},
	{
		Module: intModule,
		Name:   "obj_from_u256_pieces",
		Params: params(tU64, tU64, tU64, tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			limbs, err := u256Limbs(inv)
			if err != nil {
				return 0, err
			}
			return inv.objects().U256Val(limbs)
		},
	},
	u256PieceFunction("obj_to_u256_hi_hi", 3),
	u256PieceFunction("obj_to_u256_hi_lo", 2),
	u256PieceFunction("obj_to_u256_lo_hi", 1),
	u256PieceFunction("obj_to_u256_lo_lo", 0),
	{
		Module: intModule,
		Name:   "u256_val_from_be_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := int256FromBytes(inv)
			if err != nil {
				return 0, err
			}
			return inv.objects().U256Val(u)
		},
	},
	{
		Module: intModule,
		Name:   "u256_val_to_be_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.objects().U256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			b := u.Bytes32()
			return inv.objects().BytesVal(b[:])
		},
	},
	{
		Module: intModule,
		Name:   "obj_from_i256_pieces",
		Params: params(tI64, tU64, tU64, tU64),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			limbs, err := u256Limbs(inv)
			if err != nil {
				return 0, err
			}
			return inv.objects().I256Val(limbs)
		},
	},
	{
		Module: intModule,
		Name:   "obj_to_i256_hi_hi",
		Params: params(tVal),
		Result: tI64,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := inv.objects().I256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().I64Val(int64(i[3]))
		},
	},
	i256PieceFunction("obj_to_i256_hi_lo", 2),
	i256PieceFunction("obj_to_i256_lo_hi", 1),
	i256PieceFunction("obj_to_i256_lo_lo", 0),
	{
		Module: intModule,
		Name:   "i256_val_from_be_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := int256FromBytes(inv)
			if err != nil {
				return 0, err
			}
			return inv.objects().I256Val(i)
		},
	},
	{
		Module: intModule,
		Name:   "i256_val_to_be_bytes",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := inv.objects().I256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			b := i.Bytes32()
			return inv.objects().BytesVal(b[:])
		},
	},

	u256BinaryFunction("u256_add", common.CostTypeInt256AddSub, func(a, b *uint256.Int) (*uint256.Int, error) {
		result, overflow := new(uint256.Int).AddOverflow(a, b)
		if overflow {
			return nil, errors.NewOverflowError("u256_add")
		}
		return result, nil
	}),
	u256BinaryFunction("u256_sub", common.CostTypeInt256AddSub, func(a, b *uint256.Int) (*uint256.Int, error) {
		result, underflow := new(uint256.Int).SubOverflow(a, b)
		if underflow {
			return nil, errors.NewOverflowError("u256_sub")
		}
		return result, nil
	}),
	u256BinaryFunction("u256_mul", common.CostTypeInt256Mul, func(a, b *uint256.Int) (*uint256.Int, error) {
		result, overflow := new(uint256.Int).MulOverflow(a, b)
		if overflow {
			return nil, errors.NewOverflowError("u256_mul")
		}
		return result, nil
	}),
	u256BinaryFunction("u256_div", common.CostTypeInt256Div, func(a, b *uint256.Int) (*uint256.Int, error) {
		if b.IsZero() {
			return nil, errDivisionByZero
		}
		return new(uint256.Int).Div(a, b), nil
	}),
	u256BinaryFunction("u256_rem_euclid", common.CostTypeInt256Div, func(a, b *uint256.Int) (*uint256.Int, error) {
		if b.IsZero() {
			return nil, errDivisionByZero
		}
		return new(uint256.Int).Mod(a, b), nil
	}),
	u256ExponentFunction("u256_pow", common.CostTypeInt256Pow, u256Pow),
	u256ExponentFunction("u256_shl", common.CostTypeInt256Shift, func(a *uint256.Int, bits uint32) (*uint256.Int, error) {
		if err := checkShift(bits, "u256_shl"); err != nil {
			return nil, err
		}
		return new(uint256.Int).Lsh(a, uint(bits)), nil
	}),
	u256ExponentFunction("u256_shr", common.CostTypeInt256Shift, func(a *uint256.Int, bits uint32) (*uint256.Int, error) {
		if err := checkShift(bits, "u256_shr"); err != nil {
			return nil, err
		}
		return new(uint256.Int).Rsh(a, uint(bits)), nil
	}),
	u256BinaryFunction("u256_wrapping_add", common.CostTypeInt256AddSub, func(a, b *uint256.Int) (*uint256.Int, error) {
		return new(uint256.Int).Add(a, b), nil
	}),
	u256BinaryFunction("u256_wrapping_sub", common.CostTypeInt256AddSub, func(a, b *uint256.Int) (*uint256.Int, error) {
		return new(uint256.Int).Sub(a, b), nil
	}),
	u256BinaryFunction("u256_wrapping_mul", common.CostTypeInt256Mul, func(a, b *uint256.Int) (*uint256.Int, error) {
		return new(uint256.Int).Mul(a, b), nil
	}),

	i256BinaryFunction("i256_add", common.CostTypeInt256AddSub, func(a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Add(a, b), nil
	}),
	i256BinaryFunction("i256_sub", common.CostTypeInt256AddSub, func(a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Sub(a, b), nil
	}),
	i256BinaryFunction("i256_mul", common.CostTypeInt256Mul, func(a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Mul(a, b), nil
	}),
	i256BinaryFunction("i256_div", common.CostTypeInt256Div, func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, errDivisionByZero
		}
		// truncated division; MIN / -1 is out of range
		return new(big.Int).Quo(a, b), nil
	}),
	i256BinaryFunction("i256_rem_euclid", common.CostTypeInt256Div, func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, errDivisionByZero
		}
		if a.Cmp(minInt256) == 0 && b.Cmp(big.NewInt(-1)) == 0 {
			return nil, errors.NewOverflowError("i256_rem_euclid")
		}
		// Mod is the Euclidean modulus
		return new(big.Int).Mod(a, b), nil
	}),
	i256ExponentFunction("i256_pow", common.CostTypeInt256Pow, i256Pow),
	i256ExponentFunction("i256_shl", common.CostTypeInt256Shift, func(a *uint256.Int, bits uint32) (*uint256.Int, error) {
		if err := checkShift(bits, "i256_shl"); err != nil {
			return nil, err
		}
		return new(uint256.Int).Lsh(a, uint(bits)), nil
	}),
	i256ExponentFunction("i256_shr", common.CostTypeInt256Shift, func(a *uint256.Int, bits uint32) (*uint256.Int, error) {
		if err := checkShift(bits, "i256_shr"); err != nil {
			return nil, err
		}
		return new(uint256.Int).SRsh(a, uint(bits)), nil
	}),
}

// u256Limbs returns the 256-bit integer of the four 64-bit pieces, most significant first.
func u256Limbs(inv Invocation) (*uint256.Int, error) {
	var result uint256.Int
	for i := 0; i < 4; i++ {
		var limb uint64
		var err error
		if inv.Function.Params[i] == tI64 {
			var signed int64
			signed, err = inv.i64Arg(i)
			limb = uint64(signed)
		} else {
			limb, err = inv.u64Arg(i)
		}
		if err != nil {
			return nil, err
		}
		result[3-i] = limb
	}
	return &result, nil
}

func u256PieceFunction(name string, limb int) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			u, err := inv.objects().U256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(u[limb])
		},
	}
}

func i256PieceFunction(name string, limb int) HostFunction {
	return HostFunction{
		Module: intModule,
		Name:   name,
		Params: params(tVal),
		Result: tU64,
		Impl: func(inv Invocation) (values.Val, error) {
			i, err := inv.objects().I256(inv.Arguments[0])
			if err != nil {
				return 0, err
			}
			return inv.objects().U64Val(i[limb])
		},
	}
}

func int256FromBytes(inv Invocation) (*uint256.Int, error) {
	b, err := inv.bytesArg(0)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.NewInvalidInputError("expected 32 bytes, got %d", len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}
