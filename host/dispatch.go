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
	"sort"
	"time"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// ValueType is the interpreter-native type of a host function parameter or result.
type ValueType uint8

const (
	// ValueTypeVal is a Val in its raw 64-bit representation
	ValueTypeVal ValueType = iota
	// ValueTypeU64 is a raw unsigned 64-bit integer
	ValueTypeU64
	// ValueTypeI64 is a raw signed 64-bit integer
	ValueTypeI64
	// ValueTypeNone is the result type of a function without result
	ValueTypeNone
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeVal:
		return "Val"
	case ValueTypeU64:
		return "u64"
	case ValueTypeI64:
		return "i64"
	case ValueTypeNone:
		return "none"
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// LinearMemory is the guest memory available to host functions.
type LinearMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// Invocation is a call of a host function.
type Invocation struct {
	Context context.Context
	Host    *Host
	// Memory is the linear memory of the calling guest, nil for native callers
	Memory    LinearMemory
	Function  *HostFunction
	Arguments []values.Val
}

type HostFunctionImpl func(invocation Invocation) (values.Val, error)

// Cost is an upfront charge of a host function.
type Cost struct {
	Type  common.CostType
	Input uint64
}

// HostFunction is an entry of the dispatch table.
type HostFunction struct {
	Impl   HostFunctionImpl
	Module string
	Name   string
	// Params are the parameter types. Raw integer parameters are passed to Impl as canonical Vals.
	Params []ValueType
	// Costs are charged before Impl is called
	Costs  []Cost
	Result ValueType
	// Diagnostic functions are uncharged no-ops unless diagnostics are enabled
	Diagnostic bool
}

func (f *HostFunction) Arity() int {
	return len(f.Params)
}

func (f *HostFunction) QualifiedName() string {
	return f.Module + "." + f.Name
}

// DispatchTable maps module and function names to host functions.
type DispatchTable struct {
	functions map[string]*HostFunction
}

func NewEmptyDispatchTable() *DispatchTable {
	return &DispatchTable{
		functions: map[string]*HostFunction{},
	}
}

// NewDispatchTable returns a table with all built-in host functions.
func NewDispatchTable() *DispatchTable {
	table := NewEmptyDispatchTable()
	for _, functions := range [][]HostFunction{
		contextFunctions,
		intFunctions,
		vecFunctions,
		mapFunctions,
		bufFunctions,
		cryptoFunctions,
		ledgerFunctions,
		callFunctions,
		addressFunctions,
		prngFunctions,
	} {
		for _, function := range functions {
			err := table.Register(function)
			if err != nil {
				panic(err)
			}
		}
	}
	return table
}

// Register adds the function to the table.
func (t *DispatchTable) Register(function HostFunction) error {
	name := function.QualifiedName()
	if _, ok := t.functions[name]; ok {
		return fmt.Errorf("duplicate host function: %s", name)
	}
	if function.Impl == nil {
		return fmt.Errorf("host function without implementation: %s", name)
	}
	t.functions[name] = &function
	return nil
}

func (t *DispatchTable) Lookup(module, name string) (*HostFunction, bool) {
	function, ok := t.functions[module+"."+name]
	return function, ok
}

// Modules returns the names of all modules, in order.
func (t *DispatchTable) Modules() []string {
	seen := map[string]struct{}{}
	var modules []string
	for _, function := range t.functions {
		if _, ok := seen[function.Module]; ok {
			continue
		}
		seen[function.Module] = struct{}{}
		modules = append(modules, function.Module)
	}
	sort.Strings(modules)
	return modules
}

// Functions returns the functions of the module, ordered by name.
func (t *DispatchTable) Functions(module string) []*HostFunction {
	var functions []*HostFunction
	for _, function := range t.functions {
		if function.Module == module {
			functions = append(functions, function)
		}
	}
	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Name < functions[j].Name
	})
	return functions
}

func (t *DispatchTable) Len() int {
	return len(t.functions)
}

func newUnknownImportError(module, name string) error {
	return errors.NewHostError(errors.KindUnknownImport, "unknown host function %s.%s", module, name)
}

// Dispatch calls the host function with the given Vals.
// It is used by native contracts; see DispatchNative for interpreters.
func (h *Host) Dispatch(
	ctx context.Context,
	memory LinearMemory,
	module string,
	name string,
	args []values.Val,
) (values.Val, error) {
	function, ok := h.table.Lookup(module, name)
	if !ok {
		return 0, newUnknownImportError(module, name)
	}
	if len(args) != function.Arity() {
		return 0, errors.NewHostError(
			errors.KindTypeMismatch,
			"%s expects %d arguments, got %d",
			function.QualifiedName(),
			function.Arity(),
			len(args),
		)
	}
	for _, arg := range args {
		err := h.objects.Validate(arg)
		if err != nil {
			return 0, err
		}
	}
	return h.dispatch(ctx, memory, function, args)
}

// DispatchNative calls the host function with interpreter-native arguments.
// It is the entry point of the VM adapter.
func (h *Host) DispatchNative(
	ctx context.Context,
	memory LinearMemory,
	module string,
	name string,
	args []uint64,
) (uint64, error) {
	function, ok := h.table.Lookup(module, name)
	if !ok {
		return 0, newUnknownImportError(module, name)
	}
	if len(args) != function.Arity() {
		return 0, errors.NewHostError(
			errors.KindTypeMismatch,
			"%s expects %d arguments, got %d",
			function.QualifiedName(),
			function.Arity(),
			len(args),
		)
	}

	vals := make([]values.Val, len(args))
	for i, arg := range args {
		v, err := h.ValFromNative(function.Params[i], arg)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}

	result, err := h.dispatch(ctx, memory, function, vals)
	if err != nil {
		return 0, err
	}

	return h.NativeFromVal(function.Result, result)
}

// ValFromNative converts an interpreter-native value of the given type into a Val.
func (h *Host) ValFromNative(ty ValueType, raw uint64) (values.Val, error) {
	switch ty {
	case ValueTypeVal:
		v, err := values.FromRaw(raw)
		if err != nil {
			return 0, err
		}
		err = h.objects.Validate(v)
		if err != nil {
			return 0, err
		}
		return v, nil
	case ValueTypeU64:
		return h.objects.U64Val(raw)
	case ValueTypeI64:
		return h.objects.I64Val(int64(raw))
	}
	return 0, errors.NewUnexpectedError("invalid parameter type %s", ty)
}

// NativeFromVal converts a Val into an interpreter-native value of the given type.
func (h *Host) NativeFromVal(ty ValueType, v values.Val) (uint64, error) {
	switch ty {
	case ValueTypeVal:
		return v.Raw(), nil
	case ValueTypeU64:
		return h.objects.U64(v)
	case ValueTypeI64:
		i, err := h.objects.I64(v)
		return uint64(i), err
	case ValueTypeNone:
		return 0, nil
	}
	return 0, errors.NewUnexpectedError("invalid result type %s", ty)
}

func (h *Host) dispatch(
	ctx context.Context,
	memory LinearMemory,
	function *HostFunction,
	args []values.Val,
) (values.Val, error) {
	if len(h.frames) == 0 {
		return 0, errors.NewUnexpectedError(
			"host function %s called outside of a frame",
			function.QualifiedName(),
		)
	}

	if function.Diagnostic && !h.config.DiagnosticsEnabled {
		return values.Void, nil
	}

	if !function.Diagnostic {
		err := h.budget.Charge(common.CostTypeDispatchHostFunction, 1)
		if err != nil {
			return 0, err
		}
		for _, cost := range function.Costs {
			err := h.budget.Charge(cost.Type, cost.Input)
			if err != nil {
				return 0, err
			}
		}
	}

	var start time.Time
	tracing := h.config.Tracer.enabled()
	if tracing {
		start = time.Now()
	}

	result, err := function.Impl(Invocation{
		Context:   ctx,
		Host:      h,
		Memory:    memory,
		Function:  function,
		Arguments: args,
	})

	h.metrics.HostCall(function.Module, function.Name)
	if tracing {
		h.config.Tracer.reportHostFunctionTrace(function.Module, function.Name, time.Since(start))
	}

	if err != nil {
		h.logger.Trace("host function failed",
			"function", function.QualifiedName(),
			"error", err,
		)
		return 0, err
	}

	return result, nil
}
