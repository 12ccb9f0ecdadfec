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

package ledger

import (
	"github.com/onflow/atree"
)

// AtreeBackend adapts a register-based atree.Ledger.
//
// The register owner is the contract identifier and the register key is
// the remainder of the canonical key encoding.
// An empty register value denotes an absent entry, so deletions are written as empty values.
type AtreeBackend struct {
	ledger atree.Ledger
}

var _ Store = &AtreeBackend{}

func NewAtreeBackend(ledger atree.Ledger) *AtreeBackend {
	return &AtreeBackend{
		ledger: ledger,
	}
}

func registerID(key Key) (owner []byte, register []byte) {
	encoded := key.Encode()
	owner = append([]byte(nil), key.Contract.ID[:]...)
	register = make([]byte, 0, len(encoded)-len(owner))
	register = append(register, encoded[:3]...)
	register = append(register, key.Body...)
	return owner, register
}

func (b *AtreeBackend) Load(key Key) ([]byte, bool, error) {
	owner, register := registerID(key)
	value, err := b.ledger.GetValue(owner, register)
	if err != nil {
		return nil, false, err
	}
	if len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

func (b *AtreeBackend) Apply(writes []Write) error {
	for _, write := range writes {
		owner, register := registerID(write.Key)
		var value []byte
		if !write.Deleted {
			value = write.Entry
		}
		err := b.ledger.SetValue(owner, register, value)
		if err != nil {
			return err
		}
	}
	return nil
}
