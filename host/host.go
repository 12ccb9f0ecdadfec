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
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/onflow/wasmhost/budget"
	"github.com/onflow/wasmhost/codec"
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/metrics"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/storage"
	"github.com/onflow/wasmhost/values"
)

// LedgerInfo describes the ledger the transaction is applied to.
type LedgerInfo struct {
	NetworkID [32]byte
	Timestamp uint64
	Sequence  uint32
}

// Transaction is the input of a transaction.
type Transaction struct {
	Footprint *storage.Footprint
	// Signers are the addresses which authorized the transaction
	Signers  []common.Address
	Ledger   LedgerInfo
	Limits   budget.Limits
	PRNGSeed [SeedLength]byte
}

// ContractCall is the top-level invocation of a transaction.
type ContractCall struct {
	Function string
	// Args are the encoded arguments (see package codec)
	Args     [][]byte
	Contract common.Address
}

// Host executes the transactions.
//
// A host is not safe for concurrent use:
// independent transactions are isolated by using independent hosts.
type Host struct {
	config       Config
	logger       hclog.Logger
	metrics      *metrics.Metrics
	table        *DispatchTable
	backend      ledger.Backend
	natives      map[string]NativeContract
	budget       *budget.Budget
	objects      *objects.Store
	storage      *storage.Storage
	transaction  *Transaction
	start        time.Time
	frames       []*Frame
	events       []Event
	diagnostics  []DiagnosticEvent
	framesPushed int
}

func New(config Config, backend ledger.Backend) *Host {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	m := config.Metrics
	if m == nil {
		m = metrics.NilMetrics()
	}
	if config.MaxCallDepth <= 0 {
		config.MaxCallDepth = DefaultMaxCallDepth
	}
	if config.MaxFrames <= 0 {
		config.MaxFrames = DefaultMaxFrames
	}
	if config.ObjectLimits == (objects.Limits{}) {
		config.ObjectLimits = objects.DefaultLimits()
	}

	b := budget.NewBudget(config.CostModel, budget.Limits{})

	return &Host{
		config:  config,
		logger:  logger.Named("host"),
		metrics: m,
		table:   NewDispatchTable(),
		backend: backend,
		natives: map[string]NativeContract{},
		budget:  b,
		objects: objects.NewStore(b, config.ObjectLimits),
		storage: storage.NewStorage(backend, nil, b),
	}
}

func (h *Host) Logger() hclog.Logger {
	return h.logger
}

func (h *Host) DispatchTable() *DispatchTable {
	return h.table
}

func (h *Host) Budget() *budget.Budget {
	return h.budget
}

// Objects returns the object store of the host.
func (h *Host) Objects() *objects.Store {
	return h.objects
}

// Storage returns the storage of the current transaction.
func (h *Host) Storage() *storage.Storage {
	return h.storage
}

// Charge charges the budget of the current transaction.
func (h *Host) Charge(ty common.CostType, input uint64) error {
	return h.budget.Charge(ty, input)
}

// InTransaction returns true between BeginTransaction and Commit or Abort.
func (h *Host) InTransaction() bool {
	return h.transaction != nil
}

// BeginTransaction resets the budget, the object store and the storage for the transaction.
// The object store of the host is reused with a new epoch,
// so handles of earlier transactions are stale
func (h *Host) BeginTransaction(transaction Transaction) error {
	if h.transaction != nil {
		return fmt.Errorf("transaction already in progress")
	}

	h.budget.Reset(transaction.Limits)
	h.objects.Reset()
	h.storage = storage.NewStorage(h.backend, transaction.Footprint, h.budget)
	h.transaction = &transaction
	h.frames = nil
	h.framesPushed = 0
	h.events = nil
	h.diagnostics = nil
	h.start = time.Now()

	h.logger.Debug("transaction started",
		"cpu_limit", transaction.Limits.CPU,
		"memory_limit", transaction.Limits.Memory,
		"footprint", h.storage.Footprint().Len(),
	)

	return nil
}

// Invoke calls the contract function as the root frame of the transaction.
func (h *Host) Invoke(
	ctx context.Context,
	contract common.Address,
	function string,
	args []values.Val,
) (values.Val, error) {
	if h.transaction == nil {
		return 0, fmt.Errorf("no transaction in progress")
	}
	if len(h.frames) != 0 {
		return 0, fmt.Errorf("invocation already in progress")
	}
	for _, arg := range args {
		err := h.objects.Validate(arg)
		if err != nil {
			return 0, err
		}
	}
	return h.callContract(ctx, contract, function, args)
}

// Status is the outcome of a transaction.
type Status uint8

const (
	StatusCommitted Status = iota
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusAborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// TransactionResult is the outcome of a transaction.
//
// An aborted transaction has no value, events or writes,
// but still reports the consumed budget.
type TransactionResult struct {
	Err         error
	Value       []byte
	Events      []Event
	Diagnostics []DiagnosticEvent
	Writes      []ledger.Write
	CPU         uint64
	Memory      uint64
	Status      Status
}

// Commit surfaces the buffered writes to the committer and ends the transaction.
// If the committer fails, the transaction is aborted.
func (h *Host) Commit() TransactionResult {
	return h.commit(nil)
}

func (h *Host) commit(value []byte) TransactionResult {
	if h.transaction == nil {
		return TransactionResult{
			Status: StatusAborted,
			Err:    fmt.Errorf("no transaction in progress"),
		}
	}
	if len(h.frames) != 0 {
		return h.Abort(errors.NewUnexpectedError("commit with %d frames on the stack", len(h.frames)))
	}

	writes := h.storage.WriteSet()
	if h.config.Committer != nil && len(writes) > 0 {
		err := h.config.Committer.Apply(writes)
		if err != nil {
			return h.Abort(errors.NewExternalError(err))
		}
	}

	result := TransactionResult{
		Status:      StatusCommitted,
		Value:       value,
		Events:      h.events,
		Diagnostics: h.diagnostics,
		Writes:      writes,
		CPU:         h.budget.CPU(),
		Memory:      h.budget.Memory(),
	}
	h.end(result)
	return result
}

// Abort ends the transaction without surfacing any writes.
func (h *Host) Abort(cause error) TransactionResult {
	// unwind whatever is left on the stack, e.g. after a panic
	for len(h.frames) > 0 {
		_ = h.popFrame(h.frames[len(h.frames)-1], cause)
	}

	result := TransactionResult{
		Status:      StatusAborted,
		Err:         cause,
		Diagnostics: h.diagnostics,
		CPU:         h.budget.CPU(),
		Memory:      h.budget.Memory(),
	}
	h.end(result)
	return result
}

func (h *Host) end(result TransactionResult) {
	committed := result.Status == StatusCommitted

	h.logger.Debug("transaction ended",
		"status", result.Status,
		"cpu", result.CPU,
		"memory", result.Memory,
		"writes", len(result.Writes),
		"events", len(result.Events),
		"error", result.Err,
	)

	h.metrics.Transaction(result.Status.String(), result.CPU, result.Memory)
	if h.config.Tracer.enabled() {
		h.config.Tracer.reportTransactionTrace(committed, result.CPU, result.Memory, time.Since(h.start))
	}

	h.transaction = nil
	h.frames = nil
	h.events = nil
	h.diagnostics = nil
}

// Execute runs the whole transaction: the arguments are decoded,
// the contract is invoked, and the transaction is committed on success
// or aborted on any error.
func (h *Host) Execute(ctx context.Context, transaction Transaction, call ContractCall) (result TransactionResult) {
	err := h.BeginTransaction(transaction)
	if err != nil {
		return TransactionResult{
			Status: StatusAborted,
			Err:    err,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			var cause error
			switch r := r.(type) {
			case error:
				cause = errors.NewUnexpectedErrorFromCause(r)
			default:
				cause = errors.NewUnexpectedError("%s", r)
			}
			result = h.Abort(cause)
		}
	}()

	args := make([]values.Val, 0, len(call.Args))
	for _, encoded := range call.Args {
		arg, err := codec.Decode(h.objects, encoded)
		if err != nil {
			return h.Abort(err)
		}
		args = append(args, arg)
	}

	value, err := h.Invoke(ctx, call.Contract, call.Function, args)
	if err != nil {
		return h.Abort(err)
	}

	encoded, err := codec.Encode(h.objects, value)
	if err != nil {
		return h.Abort(err)
	}

	return h.commit(encoded)
}
