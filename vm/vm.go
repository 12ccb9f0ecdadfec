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

package vm

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/host"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/values"
	"github.com/onflow/wasmhost/wasm"
)

const (
	// MeteringModule provides the instruction metering hook.
	// Guests may not import it, instrumentation adds the import
	MeteringModule = "vm"
	// ConsumeInstructionsFunction charges the given number of executed instructions
	ConsumeInstructionsFunction = "consume_instructions"

	DefaultCacheSize = 128
	// DefaultMaxMemoryPages limits guests to 16 MiB of linear memory
	DefaultMaxMemoryPages = 256
)

// Config is the configuration of a VM.
type Config struct {
	Logger hclog.Logger
	// Table provides the host functions guests may import.
	// It must agree with the dispatch table of the hosts using the VM
	Table *host.DispatchTable
	// CacheSize is the number of compiled modules kept
	CacheSize int
	// MaxMemoryPages is the maximum size of the linear memory of a guest, in 64 KiB pages
	MaxMemoryPages uint32
}

// VM runs WASM contract code on the wazero interpreter.
// A VM may be shared by hosts on different goroutines.
type VM struct {
	config  Config
	logger  hclog.Logger
	runtime wazero.Runtime
	// cache maps code hashes to compiled and validated modules
	cache *lru.Cache
}

var _ host.Executor = &VM{}

func New(config Config) (*VM, error) {
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}
	if config.Table == nil {
		config.Table = host.NewDispatchTable()
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultCacheSize
	}
	if config.MaxMemoryPages == 0 {
		config.MaxMemoryPages = DefaultMaxMemoryPages
	}

	ctx := context.Background()

	runtime := wazero.NewRuntimeWithConfig(
		ctx,
		wazero.NewRuntimeConfigInterpreter().
			WithMemoryLimitPages(config.MaxMemoryPages),
	)

	cache, err := lru.NewWithEvict(
		config.CacheSize,
		func(_ interface{}, value interface{}) {
			_ = value.(wazero.CompiledModule).Close(ctx)
		},
	)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	vm := &VM{
		config:  config,
		logger:  config.Logger.Named("vm"),
		runtime: runtime,
		cache:   cache,
	}

	err = vm.instantiateHostModules(ctx)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	return vm, nil
}

// Close releases all compiled modules and the runtime.
func (vm *VM) Close(ctx context.Context) error {
	vm.cache.Purge()
	return vm.runtime.Close(ctx)
}

func i64Types(count int) []api.ValueType {
	types := make([]api.ValueType, count)
	for i := range types {
		types[i] = api.ValueTypeI64
	}
	return types
}

func resultCount(function *host.HostFunction) int {
	if function.Result == host.ValueTypeNone {
		return 0
	}
	return 1
}

// instantiateHostModules provides each module of the dispatch table,
// and the metering module, to guests
func (vm *VM) instantiateHostModules(ctx context.Context) error {
	table := vm.config.Table

	for _, module := range table.Modules() {
		builder := vm.runtime.NewHostModuleBuilder(module)
		for _, function := range table.Functions(module) {
			builder.NewFunctionBuilder().
				WithName(function.Name).
				WithGoModuleFunction(
					hostFunction(function),
					i64Types(function.Arity()),
					i64Types(resultCount(function)),
				).
				Export(function.Name)
		}
		_, err := builder.Instantiate(ctx)
		if err != nil {
			return err
		}
	}

	_, err := vm.runtime.NewHostModuleBuilder(MeteringModule).
		NewFunctionBuilder().
		WithName(ConsumeInstructionsFunction).
		WithGoModuleFunction(
			api.GoModuleFunc(consumeInstructions),
			i64Types(1),
			nil,
		).
		Export(ConsumeInstructionsFunction).
		Instantiate(ctx)
	return err
}

func hostFunction(function *host.HostFunction) api.GoModuleFunc {
	module := function.Module
	name := function.Name
	arity := function.Arity()
	hasResult := resultCount(function) > 0

	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inv := invocationFromContext(ctx)
		inv.run(func() error {
			memory := mod.Memory()
			err := inv.chargeMemoryGrowth(memory)
			if err != nil {
				return err
			}

			var linearMemory host.LinearMemory
			if memory != nil {
				linearMemory = memory
			}

			args := make([]uint64, arity)
			copy(args, stack[:arity])

			result, err := inv.host.DispatchNative(ctx, linearMemory, module, name, args)
			if err != nil {
				return err
			}
			if hasResult {
				stack[0] = result
			}
			return nil
		})
	}
}

func consumeInstructions(ctx context.Context, _ api.Module, stack []uint64) {
	inv := invocationFromContext(ctx)
	inv.run(func() error {
		return inv.host.Charge(common.CostTypeWasmInsnExec, stack[0])
	})
}

// Execute instantiates the code and calls the exported function.
// Host errors raised by host functions are returned unchanged,
// all other guest failures are ContractTrap errors.
func (vm *VM) Execute(
	ctx context.Context,
	h *host.Host,
	code []byte,
	function string,
	args []values.Val,
) (values.Val, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	// charged identically whether or not the module is cached
	err := h.Charge(common.CostTypeVmInstantiation, uint64(len(code)))
	if err != nil {
		return 0, err
	}

	compiled, cached, err := vm.compile(ctx, code)
	if err != nil {
		return 0, err
	}

	inv := &invocation{host: h}
	ctx = withInvocation(ctx, inv)

	instance, err := vm.runtime.InstantiateModule(
		ctx,
		compiled,
		wazero.NewModuleConfig().
			WithName("").
			WithStartFunctions(),
	)
	if err != nil {
		return 0, inv.failure(function, err)
	}
	defer func() {
		_ = instance.Close(ctx)
	}()

	h.TraceVM(
		"instantiate",
		start,
		attribute.Int("size", len(code)),
		attribute.Bool("cached", cached),
	)

	err = inv.chargeMemoryGrowth(instance.Memory())
	if err != nil {
		return 0, err
	}

	exported := instance.ExportedFunction(function)
	if exported == nil {
		return 0, errors.NewHostError(
			errors.KindMissingValue,
			"contract does not export function %s",
			function,
		)
	}

	paramCount := len(exported.Definition().ParamTypes())
	if paramCount != len(args) {
		return 0, errors.NewHostError(
			errors.KindTypeMismatch,
			"function %s expects %d arguments, got %d",
			function,
			paramCount,
			len(args),
		)
	}

	params := make([]uint64, len(args))
	for i, arg := range args {
		params[i] = arg.Raw()
	}

	results, err := exported.Call(ctx, params...)
	if err != nil || inv.err != nil {
		return 0, inv.failure(function, err)
	}

	err = inv.chargeMemoryGrowth(instance.Memory())
	if err != nil {
		return 0, err
	}

	if len(results) == 0 {
		return values.Void, nil
	}
	return values.FromRaw(results[0])
}

// compile returns the compiled and validated module for the code,
// and whether it was cached.
// The code is instrumented to charge for executed instructions before it is compiled,
// the cache is keyed by the hash of the code as deployed
func (vm *VM) compile(ctx context.Context, code []byte) (wazero.CompiledModule, bool, error) {
	hash := ledger.WasmExecutable(code).WasmHash

	if cached, ok := vm.cache.Get(hash); ok {
		return cached.(wazero.CompiledModule), true, nil
	}

	module, err := wasm.DecodeModule(code)
	if err != nil {
		return nil, false, errors.WrapHostError(errors.KindInvalidInput, err)
	}

	err = checkImports(module)
	if err != nil {
		return nil, false, err
	}

	instrument(module)

	instrumented, err := wasm.EncodeModule(module)
	if err != nil {
		return nil, false, errors.WrapHostError(errors.KindInvalidInput, err)
	}

	compiled, err := vm.runtime.CompileModule(ctx, instrumented)
	if err != nil {
		return nil, false, errors.WrapHostError(errors.KindInvalidInput, err)
	}

	err = vm.validate(compiled)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, false, err
	}

	vm.logger.Trace("compiled module",
		"hash", hash,
		"size", len(code),
	)

	vm.cache.Add(hash, compiled)

	return compiled, false, nil
}

func isI64Only(types []api.ValueType) bool {
	for _, ty := range types {
		if ty != api.ValueTypeI64 {
			return false
		}
	}
	return true
}

// validate checks that all imports resolve to host functions,
// and that imported and exported functions only use i64
func (vm *VM) validate(compiled wazero.CompiledModule) error {
	for _, definition := range compiled.ImportedFunctions() {
		module, name, _ := definition.Import()
		params := definition.ParamTypes()
		results := definition.ResultTypes()

		if !isI64Only(params) || !isI64Only(results) {
			return errors.NewHostError(
				errors.KindTypeMismatch,
				"import %s.%s must only use i64",
				module,
				name,
			)
		}

		// the metering hook added by instrumentation takes the instruction count
		expectedParams, expectedResults := 1, 0
		if module != MeteringModule || name != ConsumeInstructionsFunction {
			function, ok := vm.config.Table.Lookup(module, name)
			if !ok {
				return errors.NewHostError(
					errors.KindUnknownImport,
					"unknown host function %s.%s",
					module,
					name,
				)
			}
			expectedParams = function.Arity()
			expectedResults = resultCount(function)
		}

		if len(params) != expectedParams || len(results) != expectedResults {
			return errors.NewHostError(
				errors.KindTypeMismatch,
				"import %s.%s has wrong signature",
				module,
				name,
			)
		}
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		definition := exports[name]
		results := definition.ResultTypes()
		if !isI64Only(definition.ParamTypes()) || !isI64Only(results) || len(results) > 1 {
			return errors.NewHostError(
				errors.KindTypeMismatch,
				"export %s must only use i64 and return at most one value",
				name,
			)
		}
	}

	return nil
}
