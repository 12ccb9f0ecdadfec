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
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
)

// Limits are the hard limits of a transaction.
type Limits struct {
	CPU    uint64 `yaml:"cpu"`
	Memory uint64 `yaml:"memory"`
}

// Tracker accumulates the charges of a single cost type, for diagnostics.
type Tracker struct {
	Count  uint64
	Input  uint64
	CPU    uint64
	Memory uint64
}

// Budget is the transaction-wide resource ledger.
//
// Counters are monotonically non-decreasing until Reset.
// Once a limit is exceeded the budget is exhausted and every further charge fails.
type Budget struct {
	model     CostModel
	limits    Limits
	cpu       uint64
	memory    uint64
	trackers  [common.CostTypeCount]Tracker
	exhausted error
}

var _ common.Meter = &Budget{}

func NewBudget(model CostModel, limits Limits) *Budget {
	return &Budget{
		model:  model,
		limits: limits,
	}
}

// Charge adds the cost of the given work to the counters.
// It must be called before the work is performed.
func (b *Budget) Charge(ty common.CostType, input uint64) error {
	if b.exhausted != nil {
		return b.exhausted
	}

	cpuCost, memoryCost := b.model.Evaluate(ty, input)

	if ty < common.CostTypeCount {
		tracker := &b.trackers[ty]
		tracker.Count++
		tracker.Input = saturatingAdd(tracker.Input, input)
		tracker.CPU = saturatingAdd(tracker.CPU, cpuCost)
		tracker.Memory = saturatingAdd(tracker.Memory, memoryCost)
	}

	cpu := saturatingAdd(b.cpu, cpuCost)
	memory := saturatingAdd(b.memory, memoryCost)

	switch {
	case cpu > b.limits.CPU:
		b.exhausted = errors.NewBudgetExceededError(
			"cpu limit %d exceeded by %s",
			b.limits.CPU,
			ty,
		)
	case memory > b.limits.Memory:
		b.exhausted = errors.NewBudgetExceededError(
			"memory limit %d exceeded by %s",
			b.limits.Memory,
			ty,
		)
	}

	b.cpu = min(cpu, b.limits.CPU)
	b.memory = min(memory, b.limits.Memory)

	return b.exhausted
}

// Reset prepares the budget for a new transaction.
func (b *Budget) Reset(limits Limits) {
	b.limits = limits
	b.cpu = 0
	b.memory = 0
	b.trackers = [common.CostTypeCount]Tracker{}
	b.exhausted = nil
}

// CPU returns the consumed CPU instructions. It never exceeds the limit.
func (b *Budget) CPU() uint64 {
	return b.cpu
}

// Memory returns the consumed memory bytes. It never exceeds the limit.
func (b *Budget) Memory() uint64 {
	return b.memory
}

func (b *Budget) Limits() Limits {
	return b.limits
}

func (b *Budget) RemainingCPU() uint64 {
	return b.limits.CPU - b.cpu
}

func (b *Budget) RemainingMemory() uint64 {
	return b.limits.Memory - b.memory
}

// Exhausted returns the error which exhausted the budget, if any.
func (b *Budget) Exhausted() error {
	return b.exhausted
}

// Tracker returns the accumulated charges of the given cost type.
func (b *Budget) Tracker(ty common.CostType) Tracker {
	if ty >= common.CostTypeCount {
		return Tracker{}
	}
	return b.trackers[ty]
}

func (b *Budget) Model() *CostModel {
	return &b.model
}
