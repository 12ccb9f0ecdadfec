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
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/values"
)

// runInContract runs the body as the root frame of a transaction
func runInContract(t *testing.T, config Config, body func(h *Host)) TransactionResult {
	t.Helper()

	env := newTestEnv(t, config)
	env.deploy(t, contractA, "test", NativeContract{
		"run": func(_ context.Context, h *Host, _ []values.Val) (values.Val, error) {
			body(h)
			return values.Void, nil
		},
	})

	result := env.host.Execute(context.Background(), env.transaction(), ContractCall{
		Contract: contractA,
		Function: "run",
	})
	require.NoError(t, result.Err)
	return result
}

type testMemory []byte

var _ LinearMemory = testMemory{}

func (m testMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(m)) {
		return nil, false
	}
	return m[offset:end], true
}

func (m testMemory) Write(offset uint32, data []byte) bool {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m)) {
		return false
	}
	copy(m[offset:], data)
	return true
}

func TestDispatchTable(t *testing.T) {

	t.Parallel()

	table := NewDispatchTable()

	assert.Equal(t,
		[]string{
			addressModule,
			bufModule,
			callModule,
			contextModule,
			cryptoModule,
			intModule,
			ledgerModule,
			mapModule,
			prngModule,
			vecModule,
		},
		table.Modules(),
	)

	function, ok := table.Lookup(vecModule, "vec_len")
	require.True(t, ok)
	assert.Equal(t, 1, function.Arity())
	assert.Equal(t, "vec.vec_len", function.QualifiedName())

	_, ok = table.Lookup(vecModule, "vec_length")
	assert.False(t, ok)

	functions := table.Functions(mapModule)
	require.NotEmpty(t, functions)
	for i := 1; i < len(functions); i++ {
		assert.Less(t, functions[i-1].Name, functions[i].Name)
	}

	err := table.Register(*function)
	require.Error(t, err)

	err = table.Register(HostFunction{Module: "test", Name: "nil"})
	require.Error(t, err)
}

func TestDispatch(t *testing.T) {

	t.Parallel()

	t.Run("unknown import", func(t *testing.T) {
		t.Parallel()

		runInContract(t, DefaultConfig(), func(h *Host) {
			_, err := dispatch(h, intModule, "u512_add")
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindUnknownImport))
			assert.True(t, errors.IsFatal(err))

			_, err = h.DispatchNative(context.Background(), nil, "unknown", "vec_len", []uint64{0})
			assert.True(t, errors.IsKind(err, errors.KindUnknownImport))
		})
	})

	t.Run("arity mismatch", func(t *testing.T) {
		t.Parallel()

		runInContract(t, DefaultConfig(), func(h *Host) {
			_, err := dispatch(h, vecModule, "vec_len")
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))

			_, err = h.DispatchNative(context.Background(), nil, vecModule, "vec_len", []uint64{1, 2})
			assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))
		})
	})

	t.Run("argument type mismatch", func(t *testing.T) {
		t.Parallel()

		runInContract(t, DefaultConfig(), func(h *Host) {
			_, err := dispatch(h, vecModule, "vec_len", values.FromU32(1))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))
			assert.False(t, errors.IsFatal(err))
		})
	})

	t.Run("outside of frame", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, DefaultConfig())
		env.begin(t)

		_, err := dispatch(env.host, vecModule, "vec_new")
		require.Error(t, err)
		assert.True(t, errors.IsInternalError(err))
	})

	t.Run("charges", func(t *testing.T) {
		t.Parallel()

		runInContract(t, DefaultConfig(), func(h *Host) {
			cpu := h.Budget().CPU()
			mustDispatch(t, h, contextModule, "get_ledger_sequence")
			assert.Greater(t, h.Budget().CPU(), cpu)
		})
	})

	t.Run("native conversions", func(t *testing.T) {
		t.Parallel()

		runInContract(t, DefaultConfig(), func(h *Host) {
			ctx := context.Background()

			raw, err := h.DispatchNative(ctx, nil, intModule, "obj_from_u64", []uint64{^uint64(0)})
			require.NoError(t, err)

			v, err := values.FromRaw(raw)
			require.NoError(t, err)
			assert.Equal(t, values.TagU64Object, v.Tag())

			result, err := h.DispatchNative(ctx, nil, intModule, "obj_to_u64", []uint64{raw})
			require.NoError(t, err)
			assert.Equal(t, ^uint64(0), result)

			minusOne := int64(-1)
			raw, err = h.DispatchNative(ctx, nil, intModule, "obj_from_i64", []uint64{uint64(minusOne)})
			require.NoError(t, err)

			result, err = h.DispatchNative(ctx, nil, intModule, "obj_to_i64", []uint64{raw})
			require.NoError(t, err)
			assert.Equal(t, minusOne, int64(result))

			// an invalid tag is rejected before the function runs
			_, err = h.DispatchNative(ctx, nil, vecModule, "vec_len", []uint64{0xff})
			require.Error(t, err)

			// a dangling handle is rejected before the function runs
			dangling := values.NewObjectHandle(values.TagVecObject, 1000, 0)
			_, err = h.DispatchNative(ctx, nil, vecModule, "vec_len", []uint64{dangling.Raw()})
			assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))
		})
	})
}

func TestContextFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		assert.Equal(t,
			values.FromU32(42),
			mustDispatch(t, h, contextModule, "get_ledger_sequence"),
		)

		timestamp, err := h.Objects().Timepoint(mustDispatch(t, h, contextModule, "get_ledger_timestamp"))
		require.NoError(t, err)
		assert.Equal(t, uint64(1_700_000_000), timestamp)

		address, err := h.Objects().Address(mustDispatch(t, h, contextModule, "get_current_contract_address"))
		require.NoError(t, err)
		assert.Equal(t, contractA, address)

		networkID, err := h.Objects().Bytes(mustDispatch(t, h, contextModule, "get_ledger_network_id"))
		require.NoError(t, err)
		assert.Len(t, networkID, 32)

		c, err := h.Objects().I64(mustDispatch(t, h, contextModule, "obj_cmp", values.FromU32(1), values.FromU32(2)))
		require.NoError(t, err)
		assert.Equal(t, int64(-1), c)

		_, err = dispatch(h, contextModule, "fail_with_error", values.FromError(errors.KindAuth, 1))
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		topics := make([]values.Val, MaxEventTopics+1)
		for i := range topics {
			topics[i] = values.FromU32(uint32(i))
		}
		_, err = dispatch(h, contextModule, "contract_event", mustVec(t, h, topics...), values.Void)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	})
}

func TestIntFunctions(t *testing.T) {

	t.Parallel()

	minI256 := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	maxI256 := new(uint256.Int).Sub(minI256, uint256.NewInt(1))
	maxU256 := new(uint256.Int).SetAllOne()

	u256 := func(h *Host, u *uint256.Int) values.Val {
		v, err := h.Objects().U256Val(u)
		require.NoError(t, err)
		return v
	}
	u := func(h *Host, n uint64) values.Val {
		return u256(h, uint256.NewInt(n))
	}
	i256 := func(h *Host, i *uint256.Int) values.Val {
		v, err := h.Objects().I256Val(i)
		require.NoError(t, err)
		return v
	}
	i := func(h *Host, n int64) values.Val {
		return i256(h, objects.Int64ToInt256(n))
	}

	type testCase struct {
		name     string
		function string
		args     func(h *Host) []values.Val
		expected func(h *Host) values.Val
		kind     errors.Kind
	}

	testCases := []testCase{
		{
			name:     "u256 add",
			function: "u256_add",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 2), u(h, 3)} },
			expected: func(h *Host) values.Val { return u(h, 5) },
		},
		{
			name:     "u256 add overflow",
			function: "u256_add",
			args:     func(h *Host) []values.Val { return []values.Val{u256(h, maxU256), u(h, 1)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "u256 sub underflow",
			function: "u256_sub",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 0), u(h, 1)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "u256 mul overflow",
			function: "u256_mul",
			args:     func(h *Host) []values.Val { return []values.Val{u256(h, minI256), u(h, 2)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "u256 div by zero",
			function: "u256_div",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 1), u(h, 0)} },
			kind:     errors.KindInvalidInput,
		},
		{
			name:     "u256 rem euclid",
			function: "u256_rem_euclid",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 7), u(h, 3)} },
			expected: func(h *Host) values.Val { return u(h, 1) },
		},
		{
			name:     "u256 pow",
			function: "u256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 2), values.FromU32(255)} },
			expected: func(h *Host) values.Val { return u256(h, minI256) },
		},
		{
			name:     "u256 pow overflow",
			function: "u256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 2), values.FromU32(256)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "u256 pow of one",
			function: "u256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 1), values.FromU32(1 << 31)} },
			expected: func(h *Host) values.Val { return u(h, 1) },
		},
		{
			name:     "u256 shl",
			function: "u256_shl",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 1), values.FromU32(255)} },
			expected: func(h *Host) values.Val { return u256(h, minI256) },
		},
		{
			name:     "u256 shl overflow",
			function: "u256_shl",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 1), values.FromU32(256)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "u256 shr",
			function: "u256_shr",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 8), values.FromU32(2)} },
			expected: func(h *Host) values.Val { return u(h, 2) },
		},
		{
			name:     "u256 wrapping add",
			function: "u256_wrapping_add",
			args:     func(h *Host) []values.Val { return []values.Val{u256(h, maxU256), u(h, 2)} },
			expected: func(h *Host) values.Val { return u(h, 1) },
		},
		{
			name:     "u256 wrapping sub",
			function: "u256_wrapping_sub",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 0), u(h, 1)} },
			expected: func(h *Host) values.Val { return u256(h, maxU256) },
		},
		{
			name:     "i256 add overflow",
			function: "i256_add",
			args:     func(h *Host) []values.Val { return []values.Val{i256(h, maxI256), i(h, 1)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "i256 sub",
			function: "i256_sub",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, 2), i(h, 5)} },
			expected: func(h *Host) values.Val { return i(h, -3) },
		},
		{
			name:     "i256 mul",
			function: "i256_mul",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -4), i(h, 5)} },
			expected: func(h *Host) values.Val { return i(h, -20) },
		},
		{
			name:     "i256 div truncates",
			function: "i256_div",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -7), i(h, 2)} },
			expected: func(h *Host) values.Val { return i(h, -3) },
		},
		{
			name:     "i256 div overflow",
			function: "i256_div",
			args:     func(h *Host) []values.Val { return []values.Val{i256(h, minI256), i(h, -1)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "i256 div by zero",
			function: "i256_div",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, 1), i(h, 0)} },
			kind:     errors.KindInvalidInput,
		},
		{
			name:     "i256 rem euclid of negative",
			function: "i256_rem_euclid",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -7), i(h, 3)} },
			expected: func(h *Host) values.Val { return i(h, 2) },
		},
		{
			name:     "i256 rem euclid by negative",
			function: "i256_rem_euclid",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, 7), i(h, -3)} },
			expected: func(h *Host) values.Val { return i(h, 1) },
		},
		{
			name:     "i256 rem euclid overflow",
			function: "i256_rem_euclid",
			args:     func(h *Host) []values.Val { return []values.Val{i256(h, minI256), i(h, -1)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "i256 pow to min",
			function: "i256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -2), values.FromU32(255)} },
			expected: func(h *Host) values.Val { return i256(h, minI256) },
		},
		{
			name:     "i256 pow overflow",
			function: "i256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, 2), values.FromU32(255)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "i256 pow of minus one",
			function: "i256_pow",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -1), values.FromU32(1001)} },
			expected: func(h *Host) values.Val { return i(h, -1) },
		},
		{
			name:     "i256 shr is arithmetic",
			function: "i256_shr",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -8), values.FromU32(1)} },
			expected: func(h *Host) values.Val { return i(h, -4) },
		},
		{
			name:     "i256 shl",
			function: "i256_shl",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, -1), values.FromU32(4)} },
			expected: func(h *Host) values.Val { return i(h, -16) },
		},
		{
			name:     "i256 shl overflow",
			function: "i256_shl",
			args:     func(h *Host) []values.Val { return []values.Val{i(h, 1), values.FromU32(300)} },
			kind:     errors.KindOverflow,
		},
		{
			name:     "mismatched argument",
			function: "u256_add",
			args:     func(h *Host) []values.Val { return []values.Val{u(h, 1), i(h, 1)} },
			kind:     errors.KindTypeMismatch,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			runInContract(t, DefaultConfig(), func(h *Host) {
				result, err := dispatch(h, intModule, testCase.function, testCase.args(h)...)
				if testCase.expected == nil {
					require.Error(t, err)
					assert.True(t, errors.IsKind(err, testCase.kind), err.Error())
					return
				}
				require.NoError(t, err)

				equal, err := h.Objects().Equal(testCase.expected(h), result)
				require.NoError(t, err)
				assert.True(t, equal)
			})
		})
	}
}

func TestIntPieces(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		u64 := func(v uint64) values.Val {
			val, err := h.Objects().U64Val(v)
			require.NoError(t, err)
			return val
		}
		i64 := func(v int64) values.Val {
			val, err := h.Objects().I64Val(v)
			require.NoError(t, err)
			return val
		}
		getU64 := func(v values.Val) uint64 {
			u, err := h.Objects().U64(v)
			require.NoError(t, err)
			return u
		}
		getI64 := func(v values.Val) int64 {
			i, err := h.Objects().I64(v)
			require.NoError(t, err)
			return i
		}

		u128 := mustDispatch(t, h, intModule, "obj_from_u128_pieces", u64(1), u64(2))
		assert.Equal(t, values.TagU128Object, u128.Tag())
		assert.Equal(t, uint64(1), getU64(mustDispatch(t, h, intModule, "obj_to_u128_hi64", u128)))
		assert.Equal(t, uint64(2), getU64(mustDispatch(t, h, intModule, "obj_to_u128_lo64", u128)))

		i128 := mustDispatch(t, h, intModule, "obj_from_i128_pieces", i64(-1), u64(^uint64(0)))
		assert.Equal(t, values.TagI128Small, i128.Tag())
		assert.Equal(t, int64(-1), getI64(mustDispatch(t, h, intModule, "obj_to_i128_hi64", i128)))
		assert.Equal(t, ^uint64(0), getU64(mustDispatch(t, h, intModule, "obj_to_i128_lo64", i128)))

		u256 := mustDispatch(t, h, intModule, "obj_from_u256_pieces", u64(1), u64(2), u64(3), u64(4))
		assert.Equal(t, uint64(1), getU64(mustDispatch(t, h, intModule, "obj_to_u256_hi_hi", u256)))
		assert.Equal(t, uint64(2), getU64(mustDispatch(t, h, intModule, "obj_to_u256_hi_lo", u256)))
		assert.Equal(t, uint64(3), getU64(mustDispatch(t, h, intModule, "obj_to_u256_lo_hi", u256)))
		assert.Equal(t, uint64(4), getU64(mustDispatch(t, h, intModule, "obj_to_u256_lo_lo", u256)))

		encoded, err := h.Objects().Bytes(mustDispatch(t, h, intModule, "u256_val_to_be_bytes", u256))
		require.NoError(t, err)
		require.Len(t, encoded, 32)
		for piece := 0; piece < 4; piece++ {
			assert.Equal(t, uint64(piece+1), binary.BigEndian.Uint64(encoded[piece*8:]))
		}

		bytesVal, err := h.Objects().BytesVal(encoded)
		require.NoError(t, err)
		decoded := mustDispatch(t, h, intModule, "u256_val_from_be_bytes", bytesVal)
		equal, err := h.Objects().Equal(u256, decoded)
		require.NoError(t, err)
		assert.True(t, equal)

		short, err := h.Objects().BytesVal(encoded[:31])
		require.NoError(t, err)
		_, err = dispatch(h, intModule, "u256_val_from_be_bytes", short)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		i256 := mustDispatch(t, h, intModule, "obj_from_i256_pieces", i64(-1), u64(^uint64(0)), u64(^uint64(0)), u64(^uint64(0)-1))
		assert.Equal(t, values.TagI256Small, i256.Tag())
		assert.Equal(t, int64(-1), getI64(mustDispatch(t, h, intModule, "obj_to_i256_hi_hi", i256)))
		assert.Equal(t, ^uint64(0)-1, getU64(mustDispatch(t, h, intModule, "obj_to_i256_lo_lo", i256)))

		encoded, err = h.Objects().Bytes(mustDispatch(t, h, intModule, "i256_val_to_be_bytes", i256))
		require.NoError(t, err)
		assert.Equal(t, byte(0xff), encoded[0])
		assert.Equal(t, byte(0xfe), encoded[31])

		timepoint := mustDispatch(t, h, intModule, "timepoint_obj_from_u64", u64(^uint64(0)))
		assert.Equal(t, values.TagTimepointObject, timepoint.Tag())
		assert.Equal(t, ^uint64(0), getU64(mustDispatch(t, h, intModule, "timepoint_obj_to_u64", timepoint)))

		duration := mustDispatch(t, h, intModule, "duration_obj_from_u64", u64(10))
		assert.Equal(t, values.TagDurationSmall, duration.Tag())
		assert.Equal(t, uint64(10), getU64(mustDispatch(t, h, intModule, "duration_obj_to_u64", duration)))

		_, err = dispatch(h, intModule, "duration_obj_to_u64", timepoint)
		assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))
	})
}

func TestVecFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		n := values.FromU32

		vec := mustDispatch(t, h, vecModule, "vec_new")
		for _, element := range []uint32{1, 3, 5} {
			vec = mustDispatch(t, h, vecModule, "vec_push_back", vec, n(element))
		}
		assert.Equal(t, n(3), mustDispatch(t, h, vecModule, "vec_len", vec))
		assert.Equal(t, n(3), mustDispatch(t, h, vecModule, "vec_get", vec, n(1)))
		assert.Equal(t, n(1), mustDispatch(t, h, vecModule, "vec_front", vec))
		assert.Equal(t, n(5), mustDispatch(t, h, vecModule, "vec_back", vec))

		search := func(x uint32) uint64 {
			result, err := h.Objects().U64(mustDispatch(t, h, vecModule, "vec_binary_search", vec, n(x)))
			require.NoError(t, err)
			return result
		}
		assert.Equal(t, uint64(1<<32|1), search(3))
		assert.Equal(t, uint64(2), search(4))
		assert.Equal(t, uint64(0), search(0))
		assert.Equal(t, uint64(3), search(9))

		assert.Equal(t, n(2), mustDispatch(t, h, vecModule, "vec_first_index_of", vec, n(5)))
		assert.Equal(t, values.Void, mustDispatch(t, h, vecModule, "vec_first_index_of", vec, n(4)))

		doubled := mustDispatch(t, h, vecModule, "vec_append", vec, vec)
		assert.Equal(t, n(6), mustDispatch(t, h, vecModule, "vec_len", doubled))
		assert.Equal(t, n(0), mustDispatch(t, h, vecModule, "vec_first_index_of", doubled, n(1)))
		assert.Equal(t, n(3), mustDispatch(t, h, vecModule, "vec_last_index_of", doubled, n(1)))

		updated := mustDispatch(t, h, vecModule, "vec_put", vec, n(0), n(7))
		assert.Equal(t, n(7), mustDispatch(t, h, vecModule, "vec_front", updated))
		// vecs are immutable
		assert.Equal(t, n(1), mustDispatch(t, h, vecModule, "vec_front", vec))

		inserted := mustDispatch(t, h, vecModule, "vec_insert", vec, n(3), n(9))
		assert.Equal(t, n(9), mustDispatch(t, h, vecModule, "vec_back", inserted))
		_, err := dispatch(h, vecModule, "vec_insert", vec, n(4), n(9))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		front := mustDispatch(t, h, vecModule, "vec_push_front", vec, n(0))
		assert.Equal(t, n(0), mustDispatch(t, h, vecModule, "vec_front", front))
		popped := mustDispatch(t, h, vecModule, "vec_pop_front", front)
		equal, err := h.Objects().Equal(vec, popped)
		require.NoError(t, err)
		assert.True(t, equal)

		popped = mustDispatch(t, h, vecModule, "vec_pop_back", vec)
		assert.Equal(t, n(2), mustDispatch(t, h, vecModule, "vec_len", popped))

		deleted := mustDispatch(t, h, vecModule, "vec_del", vec, n(1))
		assert.Equal(t, n(5), mustDispatch(t, h, vecModule, "vec_back", deleted))

		slice := mustDispatch(t, h, vecModule, "vec_slice", vec, n(1), n(3))
		assert.Equal(t, n(2), mustDispatch(t, h, vecModule, "vec_len", slice))

		_, err = dispatch(h, vecModule, "vec_slice", vec, n(1), n(4))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))
		_, err = dispatch(h, vecModule, "vec_slice", vec, n(2), n(1))
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
		_, err = dispatch(h, vecModule, "vec_get", vec, n(3))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		empty := mustDispatch(t, h, vecModule, "vec_new")
		_, err = dispatch(h, vecModule, "vec_pop_front", empty)
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))
		_, err = dispatch(h, vecModule, "vec_back", empty)
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))
	})
}

func TestVecLinearMemory(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		ctx := context.Background()
		n := values.FromU32

		memory := make(testMemory, 64)
		for i, v := range []values.Val{n(1), values.True, n(3)} {
			binary.LittleEndian.PutUint64(memory[8+i*8:], v.Raw())
		}

		vec, err := h.Dispatch(ctx, memory, vecModule, "vec_new_from_linear_memory", []values.Val{n(8), n(3)})
		require.NoError(t, err)
		assert.Equal(t, n(3), mustDispatch(t, h, vecModule, "vec_len", vec))
		assert.Equal(t, values.True, mustDispatch(t, h, vecModule, "vec_get", vec, n(1)))

		_, err = h.Dispatch(ctx, memory, vecModule, "vec_unpack_to_linear_memory", []values.Val{vec, n(40), n(3)})
		require.NoError(t, err)
		assert.Equal(t, []byte(memory[8:32]), []byte(memory[40:64]))

		_, err = h.Dispatch(ctx, memory, vecModule, "vec_unpack_to_linear_memory", []values.Val{vec, n(48), n(3)})
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		_, err = h.Dispatch(ctx, memory, vecModule, "vec_unpack_to_linear_memory", []values.Val{vec, n(0), n(2)})
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		// a dangling handle in memory is rejected
		binary.LittleEndian.PutUint64(memory[0:], values.NewObjectHandle(values.TagBytesObject, 999, 0).Raw())
		_, err = h.Dispatch(ctx, memory, vecModule, "vec_new_from_linear_memory", []values.Val{n(0), n(1)})
		assert.True(t, errors.IsKind(err, errors.KindInvalidHandle))

		// native callers have no linear memory
		_, err = dispatch(h, vecModule, "vec_new_from_linear_memory", n(0), n(1))
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	})
}

func TestMapFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		n := values.FromU32

		m := mustDispatch(t, h, mapModule, "map_new")
		for _, key := range []uint32{3, 1, 2} {
			m = mustDispatch(t, h, mapModule, "map_put", m, n(key), n(key*10))
		}
		assert.Equal(t, n(3), mustDispatch(t, h, mapModule, "map_len", m))
		assert.Equal(t, n(20), mustDispatch(t, h, mapModule, "map_get", m, n(2)))
		assert.Equal(t, values.True, mustDispatch(t, h, mapModule, "map_has", m, n(1)))
		assert.Equal(t, values.False, mustDispatch(t, h, mapModule, "map_has", m, n(4)))

		_, err := dispatch(h, mapModule, "map_get", m, n(4))
		assert.True(t, errors.IsKind(err, errors.KindMissingValue))

		// entries are in key order
		assert.Equal(t, n(1), mustDispatch(t, h, mapModule, "map_key_by_pos", m, n(0)))
		assert.Equal(t, n(30), mustDispatch(t, h, mapModule, "map_val_by_pos", m, n(2)))
		_, err = dispatch(h, mapModule, "map_key_by_pos", m, n(3))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		keys, err := h.Objects().Vec(mustDispatch(t, h, mapModule, "map_keys", m))
		require.NoError(t, err)
		assert.Equal(t, []values.Val{n(1), n(2), n(3)}, []values.Val(keys))

		vals, err := h.Objects().Vec(mustDispatch(t, h, mapModule, "map_values", m))
		require.NoError(t, err)
		assert.Equal(t, []values.Val{n(10), n(20), n(30)}, []values.Val(vals))

		replaced := mustDispatch(t, h, mapModule, "map_put", m, n(2), n(0))
		assert.Equal(t, n(3), mustDispatch(t, h, mapModule, "map_len", replaced))
		assert.Equal(t, n(0), mustDispatch(t, h, mapModule, "map_get", replaced, n(2)))

		deleted := mustDispatch(t, h, mapModule, "map_del", m, n(2))
		assert.Equal(t, n(2), mustDispatch(t, h, mapModule, "map_len", deleted))
		_, err = dispatch(h, mapModule, "map_del", deleted, n(2))
		assert.True(t, errors.IsKind(err, errors.KindMissingValue))
	})
}

func TestBufFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		n := values.FromU32
		bytesOf := func(v values.Val) []byte {
			b, err := h.Objects().Bytes(v)
			require.NoError(t, err)
			return b
		}

		b := mustDispatch(t, h, bufModule, "bytes_new")
		for _, c := range []byte("abc") {
			b = mustDispatch(t, h, bufModule, "bytes_push", b, n(uint32(c)))
		}
		assert.Equal(t, []byte("abc"), bytesOf(b))
		assert.Equal(t, n(3), mustDispatch(t, h, bufModule, "bytes_len", b))
		assert.Equal(t, n('b'), mustDispatch(t, h, bufModule, "bytes_get", b, n(1)))
		assert.Equal(t, n('a'), mustDispatch(t, h, bufModule, "bytes_front", b))
		assert.Equal(t, n('c'), mustDispatch(t, h, bufModule, "bytes_back", b))

		assert.Equal(t, []byte("axc"), bytesOf(mustDispatch(t, h, bufModule, "bytes_put", b, n(1), n('x'))))
		assert.Equal(t, []byte("ac"), bytesOf(mustDispatch(t, h, bufModule, "bytes_del", b, n(1))))
		assert.Equal(t, []byte("ab"), bytesOf(mustDispatch(t, h, bufModule, "bytes_pop", b)))
		assert.Equal(t, []byte("abcd"), bytesOf(mustDispatch(t, h, bufModule, "bytes_insert", b, n(3), n('d'))))
		assert.Equal(t, []byte("abcabc"), bytesOf(mustDispatch(t, h, bufModule, "bytes_append", b, b)))
		assert.Equal(t, []byte("bc"), bytesOf(mustDispatch(t, h, bufModule, "bytes_slice", b, n(1), n(3))))

		_, err := dispatch(h, bufModule, "bytes_push", b, n(256))
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
		_, err = dispatch(h, bufModule, "bytes_get", b, n(3))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		s := mustDispatch(t, h, bufModule, "bytes_to_string", b)
		assert.Equal(t, n(3), mustDispatch(t, h, bufModule, "string_len", s))
		assert.Equal(t, []byte("abc"), bytesOf(mustDispatch(t, h, bufModule, "string_to_bytes", s)))

		invalid, err := h.Objects().BytesVal([]byte{0xff, 0xfe})
		require.NoError(t, err)
		_, err = dispatch(h, bufModule, "bytes_to_string", invalid)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		vec := mustVec(t, h, b, s, n(1))
		serialized := mustDispatch(t, h, bufModule, "serialize_to_bytes", vec)
		deserialized := mustDispatch(t, h, bufModule, "deserialize_from_bytes", serialized)
		equal, err := h.Objects().Equal(vec, deserialized)
		require.NoError(t, err)
		assert.True(t, equal)
	})
}

func TestBufLinearMemory(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		ctx := context.Background()
		n := values.FromU32
		call := func(name string, args ...values.Val) (values.Val, error) {
			return h.Dispatch(ctx, testMemoryFixture(), bufModule, name, args)
		}

		b, err := call("bytes_new_from_linear_memory", n(2), n(3))
		require.NoError(t, err)
		bytes, err := h.Objects().Bytes(b)
		require.NoError(t, err)
		assert.Equal(t, []byte("cde"), bytes)

		_, err = call("bytes_new_from_linear_memory", n(6), n(3))
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		memory := testMemoryFixture()
		xyz, err := h.Objects().BytesVal([]byte("xyz"))
		require.NoError(t, err)
		_, err = h.Dispatch(ctx, memory, bufModule, "bytes_copy_to_linear_memory", []values.Val{xyz, n(1), n(0), n(2)})
		require.NoError(t, err)
		assert.Equal(t, "yzcdefgh", string(memory))

		_, err = h.Dispatch(ctx, memory, bufModule, "bytes_copy_to_linear_memory", []values.Val{xyz, n(2), n(0), n(2)})
		assert.True(t, errors.IsKind(err, errors.KindIndexBounds))

		ab, err := h.Objects().BytesVal([]byte("ab"))
		require.NoError(t, err)
		grown, err := call("bytes_copy_from_linear_memory", ab, n(1), n(0), n(3))
		require.NoError(t, err)
		bytes, err = h.Objects().Bytes(grown)
		require.NoError(t, err)
		assert.Equal(t, []byte("aabc"), bytes)

		s, err := call("string_new_from_linear_memory", n(0), n(4))
		require.NoError(t, err)
		str, err := h.Objects().String(s)
		require.NoError(t, err)
		assert.Equal(t, "abcd", str)

		_, err = h.Dispatch(ctx, memory, bufModule, "string_copy_to_linear_memory", []values.Val{s, n(0), n(4), n(4)})
		require.NoError(t, err)
		assert.Equal(t, "yzcdabcd", string(memory))

		symbol, err := call("symbol_new_from_linear_memory", n(0), n(5))
		require.NoError(t, err)
		assert.Equal(t, values.MustSymbolSmall("abcde"), symbol)
		assert.Equal(t, n(5), mustDispatch(t, h, bufModule, "symbol_len", symbol))

		_, err = h.Dispatch(ctx, memory, bufModule, "symbol_copy_to_linear_memory", []values.Val{symbol, n(0), n(0), n(5)})
		require.NoError(t, err)
		assert.Equal(t, "abcdebcd", string(memory))

		invalidSymbol := testMemory("a-b")
		_, err = h.Dispatch(ctx, invalidSymbol, bufModule, "symbol_new_from_linear_memory", []values.Val{n(0), n(3)})
		require.Error(t, err)
	})
}

func testMemoryFixture() testMemory {
	return testMemory("abcdefgh")
}

func TestCryptoFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		bytesVal := func(b []byte) values.Val {
			v, err := h.Objects().BytesVal(b)
			require.NoError(t, err)
			return v
		}
		bytesOf := func(v values.Val) []byte {
			b, err := h.Objects().Bytes(v)
			require.NoError(t, err)
			return b
		}

		sha := bytesOf(mustDispatch(t, h, cryptoModule, "compute_hash_sha256", bytesVal([]byte("abc"))))
		assert.Equal(t,
			"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			hex.EncodeToString(sha),
		)

		keccak := bytesOf(mustDispatch(t, h, cryptoModule, "compute_hash_keccak256", bytesVal(nil)))
		assert.Equal(t,
			"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
			hex.EncodeToString(keccak),
		)

		// ed25519
		privateKey := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
		publicKey := privateKey.Public().(ed25519.PublicKey)
		message := []byte("message")
		signature := ed25519.Sign(privateKey, message)

		result, err := dispatch(h, cryptoModule, "verify_sig_ed25519",
			bytesVal(publicKey), bytesVal(message), bytesVal(signature))
		require.NoError(t, err)
		assert.Equal(t, values.Void, result)

		_, err = dispatch(h, cryptoModule, "verify_sig_ed25519",
			bytesVal(publicKey), bytesVal([]byte("tampered")), bytesVal(signature))
		assert.True(t, errors.IsKind(err, errors.KindCrypto))

		_, err = dispatch(h, cryptoModule, "verify_sig_ed25519",
			bytesVal(publicKey[:31]), bytesVal(message), bytesVal(signature))
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		// secp256k1
		secpKey := secp256k1.PrivKeyFromBytes(sha)
		digest := sha256.Sum256(message)
		compact := ecdsa.SignCompact(secpKey, digest[:], false)
		recoveryID := uint32(compact[0] - compactSignatureHeader)

		recovered := bytesOf(mustDispatch(t, h, cryptoModule, "recover_key_ecdsa_secp256k1",
			bytesVal(digest[:]), bytesVal(compact[1:]), values.FromU32(recoveryID)))
		assert.Equal(t, secpKey.PubKey().SerializeUncompressed(), recovered)

		_, err = dispatch(h, cryptoModule, "recover_key_ecdsa_secp256k1",
			bytesVal(digest[:]), bytesVal(compact[1:]), values.FromU32(4))
		assert.True(t, errors.IsKind(err, errors.KindCrypto))

		// a high s value is rejected
		var s secp256k1.ModNScalar
		s.SetByteSlice(compact[33:])
		s.Negate()
		highS := append([]byte(nil), compact[1:33]...)
		sBytes := s.Bytes()
		highS = append(highS, sBytes[:]...)

		_, err = dispatch(h, cryptoModule, "recover_key_ecdsa_secp256k1",
			bytesVal(digest[:]), bytesVal(highS), values.FromU32(recoveryID^1))
		assert.True(t, errors.IsKind(err, errors.KindCrypto))
	})
}

func TestAddressFunctions(t *testing.T) {

	t.Parallel()

	runInContract(t, DefaultConfig(), func(h *Host) {
		address, err := h.Objects().AddressVal(contractB)
		require.NoError(t, err)

		id := mustDispatch(t, h, addressModule, "address_to_bytes", address)
		roundTripped := mustDispatch(t, h, addressModule, "contract_address_from_bytes", id)
		equal, err := h.Objects().Equal(address, roundTripped)
		require.NoError(t, err)
		assert.True(t, equal)

		account := mustDispatch(t, h, addressModule, "account_address_from_bytes", id)
		equal, err = h.Objects().Equal(address, account)
		require.NoError(t, err)
		assert.False(t, equal)

		short, err := h.Objects().BytesVal([]byte{1, 2, 3})
		require.NoError(t, err)
		_, err = dispatch(h, addressModule, "account_address_from_bytes", short)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

		// only contract addresses can be called
		args := callArgs(t, h, signer, "run")
		_, err = dispatch(h, callModule, "call", args...)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	})
}
