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

package wasm

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuf_Uint32LEB128(t *testing.T) {

	t.Parallel()

	t.Run("DWARF examples + more", func(t *testing.T) {

		t.Parallel()

		// DWARF Debugging Information Format, Version 3, page 140

		for v, expected := range map[uint32][]byte{
			0:     {0x00},
			1:     {0x01},
			2:     {2},
			63:    {0x3f},
			64:    {0x40},
			127:   {127},
			128:   {0 + 0x80, 1},
			129:   {1 + 0x80, 1},
			130:   {2 + 0x80, 1},
			0x90:  {0x90, 0x01},
			0x100: {0x80, 0x02},
			0x101: {0x81, 0x02},
			0xff:  {0xff, 0x01},
			12857: {57 + 0x80, 100},
		} {
			var b Buffer
			err := b.writeUint32LEB128(v)
			require.NoError(t, err)
			require.Equal(t, expected, b.data)

			actual, err := NewBuffer(expected).readUint32LEB128()
			require.NoError(t, err)
			require.Equal(t, v, actual)
		}
	})

	t.Run("max byte count", func(t *testing.T) {

		t.Parallel()

		var b Buffer
		err := b.writeUint32LEB128(math.MaxUint32)
		require.NoError(t, err)
		require.Equal(t, max32bitLEB128ByteCount, len(b.data))

		actual, err := NewBuffer(b.data).readUint32LEB128()
		require.NoError(t, err)
		require.Equal(t, uint32(math.MaxUint32), actual)
	})

	t.Run("invalid", func(t *testing.T) {

		t.Parallel()

		_, err := NewBuffer([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).readUint32LEB128()
		require.ErrorIs(t, err, errLEB128TooLong)

		// the fifth byte may only use four bits
		_, err = NewBuffer([]byte{0xff, 0xff, 0xff, 0xff, 0x1f}).readUint32LEB128()
		require.ErrorIs(t, err, errLEB128Overflow)

		_, err = NewBuffer([]byte{0x80}).readUint32LEB128()
		require.ErrorIs(t, err, io.EOF)
	})
}

func TestBuf_Int64LEB128(t *testing.T) {

	t.Parallel()

	for v, expected := range map[int64][]byte{
		0:    {0x00},
		1:    {0x01},
		2:    {2},
		-1:   {0x7f},
		-2:   {0x7e},
		63:   {0x3f},
		-64:  {0x40},
		64:   {0xc0, 0x00},
		-65:  {0xbf, 0x7f},
		127:  {127 + 0x80, 0},
		-127: {1 + 0x80, 0x7f},
		128:  {0 + 0x80, 1},
		-128: {0 + 0x80, 0x7f},
		129:  {1 + 0x80, 1},
		-129: {0x7f + 0x80, 0x7e},
	} {
		var b Buffer
		err := b.writeInt64LEB128(v)
		require.NoError(t, err)
		require.Equal(t, expected, b.data, "%d", v)

		var b32 Buffer
		err = b32.writeInt32LEB128(int32(v))
		require.NoError(t, err)
		require.Equal(t, expected, b32.data, "%d", v)

		actual, err := NewBuffer(expected).readInt64LEB128()
		require.NoError(t, err)
		require.Equal(t, v, actual)

		actual32, err := NewBuffer(expected).readInt32LEB128()
		require.NoError(t, err)
		require.Equal(t, int32(v), actual32)
	}
}

func TestBuf_ReadInt32LEB128Overflow(t *testing.T) {

	t.Parallel()

	var b Buffer
	err := b.writeInt64LEB128(math.MaxInt32 + 1)
	require.NoError(t, err)

	_, err = NewBuffer(b.data).readInt32LEB128()
	require.ErrorIs(t, err, errLEB128Overflow)

	actual, err := NewBuffer(b.data).readInt64LEB128()
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt32+1), actual)

	for _, v := range []int64{math.MinInt64, math.MaxInt64} {
		var b Buffer
		err := b.writeInt64LEB128(v)
		require.NoError(t, err)
		require.Len(t, b.data, max64bitLEB128ByteCount)

		actual, err := NewBuffer(b.data).readInt64LEB128()
		require.NoError(t, err)
		require.Equal(t, v, actual)
	}
}

func TestBuf_WriteFixedLength(t *testing.T) {

	t.Parallel()

	var b Buffer
	err := b.writeUint32LEB128FixedLength(3, 5)
	require.NoError(t, err)
	require.Equal(t, []byte{0x83, 0x80, 0x80, 0x80, 0x0}, b.data)

	var short Buffer
	err = short.writeUint32LEB128FixedLength(1000, 1)
	require.Error(t, err)
}

func TestBuf_WriteSpaceAndSize(t *testing.T) {

	t.Parallel()

	var b Buffer

	err := b.WriteByte(101)
	require.NoError(t, err)
	err = b.WriteByte(102)
	require.NoError(t, err)

	off, err := b.writeFixedUint32LEB128Space()
	require.NoError(t, err)
	require.Equal(t, offset(2), off)
	require.Equal(t,
		[]byte{
			101, 102,
			0, 0, 0, 0, 0,
		},
		b.data,
	)

	err = b.WriteBytes([]byte{104, 105, 106})
	require.NoError(t, err)

	err = b.writeUint32LEB128SizeAt(off)
	require.NoError(t, err)
	require.Equal(t,
		[]byte{
			101, 102,
			0x83, 0x80, 0x80, 0x80, 0,
			104, 105, 106,
		},
		b.data,
	)

	err = b.writeUint32LEB128SizeAt(offset(b.Len()))
	require.Error(t, err)
}
