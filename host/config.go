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
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-hclog"

	"github.com/onflow/wasmhost/budget"
	"github.com/onflow/wasmhost/ledger"
	"github.com/onflow/wasmhost/metrics"
	"github.com/onflow/wasmhost/objects"
)

const (
	DefaultMaxCallDepth = 16
	DefaultMaxFrames    = 1024
)

// Config is the configuration of a host.
type Config struct {
	// Executor runs WASM contract code
	Executor Executor
	// Committer receives the write set of committed transactions
	Committer ledger.Committer
	Logger    hclog.Logger
	Metrics   *metrics.Metrics
	// Tracer reports timings of host operations
	Tracer       Tracer
	CostModel    budget.CostModel
	ObjectLimits objects.Limits
	// MaxCallDepth is the maximum number of frames on the stack at once
	MaxCallDepth int
	// MaxFrames is the maximum number of frames pushed during a transaction
	MaxFrames int
	// DiagnosticsEnabled enables the recording of diagnostic events
	DiagnosticsEnabled bool
}

func DefaultConfig() Config {
	return Config{
		CostModel:    budget.DefaultCostModel(),
		ObjectLimits: objects.DefaultLimits(),
		MaxCallDepth: DefaultMaxCallDepth,
		MaxFrames:    DefaultMaxFrames,
	}
}

type fileConfig struct {
	CostModel          budget.CostModelOverrides `yaml:"cost_model"`
	ObjectLimits       *objects.Limits           `yaml:"object_limits"`
	MaxCallDepth       int                       `yaml:"max_call_depth"`
	MaxFrames          int                       `yaml:"max_frames"`
	DiagnosticsEnabled bool                      `yaml:"diagnostics_enabled"`
}

// ParseConfig parses a YAML configuration on top of the default configuration, e.g.:
//
//	max_call_depth: 8
//	object_limits:
//	  max_object_size: 1048576
//	  max_objects: 4096
//	  max_total_bytes: 16777216
//	cost_model:
//	  cpu:
//	    WasmInsnExec: {const: 0, linear: 4}
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	var parsed fileConfig
	err := yaml.Unmarshal(data, &parsed)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse host config: %w", err)
	}

	err = config.CostModel.Apply(parsed.CostModel)
	if err != nil {
		return Config{}, err
	}

	if parsed.ObjectLimits != nil {
		config.ObjectLimits = *parsed.ObjectLimits
	}
	if parsed.MaxCallDepth > 0 {
		config.MaxCallDepth = parsed.MaxCallDepth
	}
	if parsed.MaxFrames > 0 {
		config.MaxFrames = parsed.MaxFrames
	}
	config.DiagnosticsEnabled = parsed.DiagnosticsEnabled

	return config, nil
}
