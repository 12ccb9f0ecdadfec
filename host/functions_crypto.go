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
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

const cryptoModule = "crypto"

const (
	secp256k1SignatureLength = 64
	secp256k1DigestLength    = 32
	// the header of a compact signature is 27 plus the recovery ID
	compactSignatureHeader = 27
	maxRecoveryID          = 3
)

func (inv Invocation) fixedBytesArg(index int, length int) ([]byte, error) {
	b, err := inv.bytesArg(index)
	if err != nil {
		return nil, err
	}
	if len(b) != length {
		return nil, errors.NewInvalidInputError("expected %d bytes, got %d", length, len(b))
	}
	return b, nil
}

// RecoverSecp256k1Key recovers the uncompressed public key from a 32-byte digest,
// a 64-byte signature (r || s) with a low s value, and a recovery ID.
func RecoverSecp256k1Key(digest []byte, signature []byte, recoveryID uint32) ([]byte, error) {
	if len(digest) != secp256k1DigestLength {
		return nil, errors.NewInvalidInputError("invalid digest length %d", len(digest))
	}
	if len(signature) != secp256k1SignatureLength {
		return nil, errors.NewInvalidInputError("invalid signature length %d", len(signature))
	}
	if recoveryID > maxRecoveryID {
		return nil, errors.NewHostError(errors.KindCrypto, "invalid recovery ID %d", recoveryID)
	}

	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(signature[32:]); overflow {
		return nil, errors.NewHostError(errors.KindCrypto, "signature s value overflows")
	}
	if s.IsOverHalfOrder() {
		return nil, errors.NewHostError(errors.KindCrypto, "signature s value is not normalized")
	}

	compact := make([]byte, 0, 1+secp256k1SignatureLength)
	compact = append(compact, byte(compactSignatureHeader+recoveryID))
	compact = append(compact, signature...)

	key, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, errors.WrapHostError(errors.KindCrypto, err)
	}
	return key.SerializeUncompressed(), nil
}

var cryptoFunctions = []HostFunction{
	{
		Module: cryptoModule,
		Name:   "compute_hash_sha256",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.charge(common.CostTypeComputeSha256Hash, uint64(len(b)))
			if err != nil {
				return 0, err
			}
			hash := sha256.Sum256(b)
			return inv.objects().BytesVal(hash[:])
		},
	},
	{
		Module: cryptoModule,
		Name:   "compute_hash_keccak256",
		Params: params(tVal),
		Result: tVal,
		Impl: func(inv Invocation) (values.Val, error) {
			b, err := inv.bytesArg(0)
			if err != nil {
				return 0, err
			}
			err = inv.charge(common.CostTypeComputeKeccak256Hash, uint64(len(b)))
			if err != nil {
				return 0, err
			}
			hasher := sha3.NewLegacyKeccak256()
			hasher.Write(b)
			return inv.objects().BytesVal(hasher.Sum(nil))
		},
	},
	{
		Module: cryptoModule,
		Name:   "verify_sig_ed25519",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Costs:  charge(common.CostTypeComputeEd25519PubKey, 1),
		Impl: func(inv Invocation) (values.Val, error) {
			publicKey, err := inv.fixedBytesArg(0, ed25519.PublicKeySize)
			if err != nil {
				return 0, err
			}
			message, err := inv.bytesArg(1)
			if err != nil {
				return 0, err
			}
			signature, err := inv.fixedBytesArg(2, ed25519.SignatureSize)
			if err != nil {
				return 0, err
			}
			err = inv.charge(common.CostTypeVerifyEd25519Sig, uint64(len(message)))
			if err != nil {
				return 0, err
			}
			if !ed25519.Verify(publicKey, message, signature) {
				return 0, errors.NewHostError(errors.KindCrypto, "invalid ed25519 signature")
			}
			return values.Void, nil
		},
	},
	{
		Module: cryptoModule,
		Name:   "recover_key_ecdsa_secp256k1",
		Params: params(tVal, tVal, tVal),
		Result: tVal,
		Costs: []Cost{
			{Type: common.CostTypeDecodeEcdsaCurve256Sig, Input: 1},
			{Type: common.CostTypeRecoverEcdsaSecp256k1Key, Input: 1},
		},
		Impl: func(inv Invocation) (values.Val, error) {
			digest, err := inv.fixedBytesArg(0, secp256k1DigestLength)
			if err != nil {
				return 0, err
			}
			signature, err := inv.fixedBytesArg(1, secp256k1SignatureLength)
			if err != nil {
				return 0, err
			}
			recoveryID, err := inv.u32Arg(2)
			if err != nil {
				return 0, err
			}
			key, err := RecoverSecp256k1Key(digest, signature, recoveryID)
			if err != nil {
				return 0, err
			}
			return inv.objects().BytesVal(key)
		},
	},
}
