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
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// SeedLength is the length of a PRNG seed.
const SeedLength = chacha20.KeySize

// PRNG is a deterministic pseudo-random number generator: a ChaCha20 key stream.
// Every draw is charged to the meter before the bytes are produced.
type PRNG struct {
	cipher *chacha20.Cipher
	meter  common.Meter
}

func NewPRNG(seed [SeedLength]byte, meter common.Meter) (*PRNG, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(
		seed[:],
		make([]byte, chacha20.NonceSize),
	)
	if err != nil {
		return nil, errors.NewUnexpectedErrorFromCause(err)
	}
	return &PRNG{
		cipher: cipher,
		meter:  meter,
	}, nil
}

// Fill fills the buffer with random bytes.
func (p *PRNG) Fill(buf []byte) error {
	err := p.meter.Charge(common.CostTypeChaCha20DrawBytes, uint64(len(buf)))
	if err != nil {
		return err
	}
	clear(buf)
	p.cipher.XORKeyStream(buf, buf)
	return nil
}

func (p *PRNG) Bytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	err := p.Fill(buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *PRNG) Uint64() (uint64, error) {
	var buf [8]byte
	err := p.Fill(buf[:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Uint64InInclusiveRange returns a uniformly distributed integer in [low, high].
func (p *PRNG) Uint64InInclusiveRange(low, high uint64) (uint64, error) {
	if low > high {
		return 0, errors.NewInvalidInputError("empty range [%d, %d]", low, high)
	}

	span := high - low
	if span == math.MaxUint64 {
		return p.Uint64()
	}

	n := span + 1
	// draws below the threshold are rejected, so the accepted draws are a multiple of n
	threshold := -n % n
	for {
		r, err := p.Uint64()
		if err != nil {
			return 0, err
		}
		if r >= threshold {
			return low + r%n, nil
		}
	}
}

// Shuffle returns a shuffled copy of the values.
func (p *PRNG) Shuffle(vals []values.Val) ([]values.Val, error) {
	shuffled := make([]values.Val, len(vals))
	copy(shuffled, vals)

	for i := len(shuffled) - 1; i > 0; i-- {
		j, err := p.Uint64InInclusiveRange(0, uint64(i))
		if err != nil {
			return nil, err
		}
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled, nil
}

// Reseed replaces the key stream.
func (p *PRNG) Reseed(seed [SeedLength]byte) error {
	reseeded, err := NewPRNG(seed, p.meter)
	if err != nil {
		return err
	}
	p.cipher = reseeded.cipher
	return nil
}

// framePRNG returns the PRNG of the current frame.
//
// The root frame's PRNG is seeded with the transaction seed,
// every other frame's PRNG is seeded from its parent's PRNG on first use.
func (h *Host) framePRNG() (*PRNG, error) {
	if len(h.frames) == 0 {
		return nil, errors.NewUnexpectedError("no frame on the stack")
	}
	return h.prngAt(len(h.frames) - 1)
}

func (h *Host) prngAt(index int) (*PRNG, error) {
	frame := h.frames[index]
	if frame.prng != nil {
		return frame.prng, nil
	}

	var seed [SeedLength]byte
	if index == 0 {
		seed = h.transaction.PRNGSeed
	} else {
		parent, err := h.prngAt(index - 1)
		if err != nil {
			return nil, err
		}
		err = parent.Fill(seed[:])
		if err != nil {
			return nil, err
		}
	}

	prng, err := NewPRNG(seed, h.budget)
	if err != nil {
		return nil, err
	}
	frame.prng = prng
	return prng, nil
}
