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
	"errors"
	"fmt"
	"math"
)

// max32bitLEB128ByteCount is the maximum number of bytes a 32-bit integer
// (signed or unsigned) may be encoded as, ceil(32/7)
const max32bitLEB128ByteCount = 5

// max64bitLEB128ByteCount is the maximum number of bytes a 64-bit integer
// (signed or unsigned) may be encoded as, ceil(64/7)
const max64bitLEB128ByteCount = 10

var errLEB128TooLong = errors.New("LEB128 encoding too long")
var errLEB128Overflow = errors.New("LEB128 encoding overflows")

// writeUint32LEB128 encodes and writes the given unsigned 32-bit integer
// in canonical (with the fewest bytes possible) unsigned little endian base 128 format
func (buf *Buffer) writeUint32LEB128(v uint32) error {
	for {
		// low order 7 bits of value
		c := uint8(v & 0x7f)
		v >>= 7
		if v != 0 {
			// more bits to come
			c |= 0x80
		}
		err := buf.WriteByte(c)
		if err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}

// writeUint32LEB128FixedLength encodes and writes the given unsigned 32-bit integer
// in non-canonical (fixed-size, instead of with the fewest bytes possible)
// unsigned little endian base 128 format
func (buf *Buffer) writeUint32LEB128FixedLength(v uint32, length int) error {
	for i := 0; i < length; i++ {
		c := uint8(v & 0x7f)
		v >>= 7
		if i < length-1 {
			c |= 0x80
		}
		err := buf.WriteByte(c)
		if err != nil {
			return err
		}
	}
	if v != 0 {
		return fmt.Errorf("writeUint32LEB128FixedLength: length too small: %d", length)
	}
	return nil
}

// readUint32LEB128 reads and decodes an unsigned 32-bit integer
func (buf *Buffer) readUint32LEB128() (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < max32bitLEB128ByteCount; i++ {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, err
		}
		// the last byte may only provide the remaining 4 bits
		if i == max32bitLEB128ByteCount-1 && b&0x70 != 0 {
			return 0, errLEB128Overflow
		}
		result |= uint32(b&0x7F) << shift
		// check high order bit of byte
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, errLEB128TooLong
}

// readInt64LEB128 reads and decodes a signed 64-bit integer
func (buf *Buffer) readInt64LEB128() (int64, error) {
	var result int64
	var shift uint
	for i := 0; i < max64bitLEB128ByteCount; i++ {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			// sign extend
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
	return 0, errLEB128TooLong
}

// readInt32LEB128 reads and decodes a signed 32-bit integer
func (buf *Buffer) readInt32LEB128() (int32, error) {
	start := buf.offset
	v, err := buf.readInt64LEB128()
	if err != nil {
		return 0, err
	}
	if buf.offset-start > max32bitLEB128ByteCount {
		return 0, errLEB128TooLong
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errLEB128Overflow
	}
	return int32(v), nil
}

// writeInt32LEB128 encodes and writes the given signed 32-bit integer
// in canonical signed little endian base 128 format
func (buf *Buffer) writeInt32LEB128(v int32) error {
	return buf.writeInt64LEB128(int64(v))
}

// writeInt64LEB128 encodes and writes the given signed 64-bit integer
// in canonical signed little endian base 128 format
func (buf *Buffer) writeInt64LEB128(v int64) error {
	more := true
	for more {
		// low order 7 bits of value
		c := uint8(v & 0x7f)
		sign := uint8(v & 0x40)
		v >>= 7
		more = !((v == 0 && sign == 0) || (v == -1 && sign != 0))
		if more {
			c |= 0x80
		}
		err := buf.WriteByte(c)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeFixedUint32LEB128Space writes a non-canonical 5-byte fixed-size space
// which is later filled by writeUint32LEB128SizeAt
func (buf *Buffer) writeFixedUint32LEB128Space() (offset, error) {
	off := buf.offset
	for i := 0; i < max32bitLEB128ByteCount; i++ {
		err := buf.WriteByte(0)
		if err != nil {
			return 0, err
		}
	}
	return off, nil
}

// writeUint32LEB128SizeAt writes the number of bytes between the given offset
// and the current offset, in non-canonical 5-byte fixed-size format,
// into the space reserved at the given offset
func (buf *Buffer) writeUint32LEB128SizeAt(off offset) error {
	currentOff := buf.offset
	if currentOff < max32bitLEB128ByteCount || currentOff-max32bitLEB128ByteCount < off {
		return fmt.Errorf("writeUint32LEB128SizeAt: invalid offset: %d", off)
	}
	size := uint32(currentOff - off - max32bitLEB128ByteCount)
	buf.offset = off
	defer func() {
		buf.offset = currentOff
	}()
	return buf.writeUint32LEB128FixedLength(size, max32bitLEB128ByteCount)
}
