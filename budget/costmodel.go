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

package budget

import (
	"fmt"
	"math/bits"

	"github.com/goccy/go-yaml"

	"github.com/onflow/wasmhost/common"
)

// CostParams is a linear cost function: Const + Linear * input.
type CostParams struct {
	Const  uint64 `yaml:"const"`
	Linear uint64 `yaml:"linear"`
}

// Evaluate returns the cost for the given input, saturating at the maximum uint64.
func (p CostParams) Evaluate(input uint64) uint64 {
	hi, product := bits.Mul64(p.Linear, input)
	if hi != 0 {
		return saturated
	}
	return saturatingAdd(p.Const, product)
}

const saturated = ^uint64(0)

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return saturated
	}
	return sum
}

// CostModel holds the CPU and memory cost functions of every cost type.
type CostModel struct {
	CPU    [common.CostTypeCount]CostParams
	Memory [common.CostTypeCount]CostParams
}

// DefaultCostModel returns the built-in calibration.
func DefaultCostModel() CostModel {
	var model CostModel

	set := func(ty common.CostType, cpu CostParams, mem CostParams) {
		model.CPU[ty] = cpu
		model.Memory[ty] = mem
	}

	set(common.CostTypeWasmInsnExec, CostParams{Linear: 4}, CostParams{})
	set(common.CostTypeWasmMemAlloc, CostParams{}, CostParams{Linear: 1})
	set(common.CostTypeHostMemAlloc, CostParams{Const: 434, Linear: 1}, CostParams{Const: 16, Linear: 1})
	set(common.CostTypeHostMemCpy, CostParams{Const: 42, Linear: 1}, CostParams{})
	set(common.CostTypeHostMemCmp, CostParams{Const: 44, Linear: 1}, CostParams{})
	set(common.CostTypeDispatchHostFunction, CostParams{Const: 310}, CostParams{})
	set(common.CostTypeVisitObject, CostParams{Const: 61}, CostParams{})
	set(common.CostTypeValSer, CostParams{Const: 230, Linear: 29}, CostParams{Const: 242, Linear: 3})
	set(common.CostTypeValDeser, CostParams{Const: 59052, Linear: 4001}, CostParams{Const: 0, Linear: 3})
	set(common.CostTypeComputeSha256Hash, CostParams{Const: 3738, Linear: 7012}, CostParams{})
	set(common.CostTypeComputeKeccak256Hash, CostParams{Const: 3766, Linear: 5969}, CostParams{})
	set(common.CostTypeComputeEd25519PubKey, CostParams{Const: 40253}, CostParams{})
	set(common.CostTypeVerifyEd25519Sig, CostParams{Const: 377524, Linear: 4068}, CostParams{})
	set(common.CostTypeRecoverEcdsaSecp256k1Key, CostParams{Const: 1667837}, CostParams{Const: 201})
	set(common.CostTypeDecodeEcdsaCurve256Sig, CostParams{Const: 710}, CostParams{})
	set(common.CostTypeInt256AddSub, CostParams{Const: 4404}, CostParams{Const: 99})
	set(common.CostTypeInt256Mul, CostParams{Const: 4947}, CostParams{Const: 99})
	set(common.CostTypeInt256Div, CostParams{Const: 4911}, CostParams{Const: 99})
	set(common.CostTypeInt256Pow, CostParams{Const: 4286}, CostParams{Const: 99})
	set(common.CostTypeInt256Shift, CostParams{Const: 913}, CostParams{Const: 99})
	set(common.CostTypeChaCha20DrawBytes, CostParams{Const: 1058, Linear: 501}, CostParams{})
	set(common.CostTypeVmInstantiation, CostParams{Const: 451626, Linear: 45405}, CostParams{Const: 130065, Linear: 5064})
	set(common.CostTypeInvokeVmFunction, CostParams{Const: 1948}, CostParams{Const: 14})
	set(common.CostTypeReadLedgerEntry, CostParams{Const: 1000, Linear: 4}, CostParams{Linear: 1})
	set(common.CostTypeWriteLedgerEntry, CostParams{Const: 1000, Linear: 8}, CostParams{Linear: 1})
	set(common.CostTypeMapEntry, CostParams{Const: 59}, CostParams{})
	set(common.CostTypeVecEntry, CostParams{Const: 14}, CostParams{})

	return model
}

// Evaluate returns the CPU and memory cost of the given work.
func (m *CostModel) Evaluate(ty common.CostType, input uint64) (cpu uint64, memory uint64) {
	if ty >= common.CostTypeCount {
		return 0, 0
	}
	return m.CPU[ty].Evaluate(input), m.Memory[ty].Evaluate(input)
}

// CostModelOverrides replace the cost functions of the named cost types.
type CostModelOverrides struct {
	CPU    map[string]CostParams `yaml:"cpu"`
	Memory map[string]CostParams `yaml:"memory"`
}

// ParseCostModel parses YAML overrides on top of the default cost model.
// Cost types are named as in common.CostType, e.g.:
//
//	cpu:
//	  WasmInsnExec: {const: 0, linear: 4}
//	memory:
//	  HostMemAlloc: {const: 16, linear: 1}
func ParseCostModel(data []byte) (CostModel, error) {
	model := DefaultCostModel()

	var overrides CostModelOverrides
	err := yaml.Unmarshal(data, &overrides)
	if err != nil {
		return CostModel{}, fmt.Errorf("failed to parse cost model: %w", err)
	}

	err = model.Apply(overrides)
	if err != nil {
		return CostModel{}, err
	}

	return model, nil
}

// Apply replaces the cost functions named in the overrides.
func (m *CostModel) Apply(overrides CostModelOverrides) error {
	for name, params := range overrides.CPU {
		ty, ok := common.CostTypeByName(name)
		if !ok {
			return fmt.Errorf("unknown cost type: %s", name)
		}
		m.CPU[ty] = params
	}
	for name, params := range overrides.Memory {
		ty, ok := common.CostTypeByName(name)
		if !ok {
			return fmt.Errorf("unknown cost type: %s", name)
		}
		m.Memory[ty] = params
	}
	return nil
}

// ZeroCostModel returns a model where nothing costs anything.
// Tests use it as a base to isolate a single cost type.
func ZeroCostModel() CostModel {
	return CostModel{}
}
