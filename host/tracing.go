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
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onflow/wasmhost/common"
)

const (
	tracingHostFunctionPrefix = "function."
	tracingFramePrefix        = "frame."
	tracingTransactionPrefix  = "transaction."
	tracingVMPrefix           = "vm."

	tracingCommittedPostfix  = "committed"
	tracingRolledBackPostfix = "rolledBack"
	tracingAbortedPostfix    = "aborted"
)

// OnRecordTraceFunc is a function that records a trace.
type OnRecordTraceFunc func(
	operationName string,
	duration time.Duration,
	attrs []attribute.KeyValue,
)

type Tracer struct {
	// OnRecordTrace is triggered when a trace is recorded
	OnRecordTrace OnRecordTraceFunc
	// TracingEnabled determines if tracing is enabled.
	// Tracing reports host function calls, frames and transactions.
	// Traces never influence execution.
	TracingEnabled bool
}

func (tracer Tracer) enabled() bool {
	return tracer.TracingEnabled && tracer.OnRecordTrace != nil
}

func (tracer Tracer) reportHostFunctionTrace(module, name string, duration time.Duration) {
	tracer.OnRecordTrace(tracingHostFunctionPrefix+module+"."+name, duration, nil)
}

func (tracer Tracer) reportFrameTrace(
	contract common.Address,
	function string,
	depth int,
	committed bool,
	duration time.Duration,
) {
	postfix := tracingRolledBackPostfix
	if committed {
		postfix = tracingCommittedPostfix
	}
	tracer.OnRecordTrace(
		tracingFramePrefix+postfix,
		duration,
		[]attribute.KeyValue{
			attribute.String("contract", contract.String()),
			attribute.String("function", function),
			attribute.Int("depth", depth),
		},
	)
}

func (tracer Tracer) reportTransactionTrace(
	committed bool,
	cpu uint64,
	memory uint64,
	duration time.Duration,
) {
	postfix := tracingAbortedPostfix
	if committed {
		postfix = tracingCommittedPostfix
	}
	tracer.OnRecordTrace(
		tracingTransactionPrefix+postfix,
		duration,
		[]attribute.KeyValue{
			attribute.Int64("cpu", int64(cpu)),
			attribute.Int64("memory", int64(memory)),
		},
	)
}

// TraceVM reports an operation of the VM adapter, e.g. module instantiation.
func (h *Host) TraceVM(operation string, start time.Time, attrs ...attribute.KeyValue) {
	if !h.config.Tracer.enabled() {
		return
	}
	h.config.Tracer.OnRecordTrace(tracingVMPrefix+operation, time.Since(start), attrs)
}
