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

package metrics

import (
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "host"

// Metrics are the prometheus collectors of a host.
// A nil collector is not reported, so the zero value is a no-op.
type Metrics struct {
	// Host function calls, by module and function
	hostCalls *prometheus.CounterVec
	// Finished transactions, by status
	transactions *prometheus.CounterVec
	// Consumed CPU instructions of finished transactions
	cpu prometheus.Counter
	// Consumed memory bytes of finished transactions
	memory prometheus.Counter
	// Depth of pushed frames
	frameDepth prometheus.Histogram
	// Frames rolled back
	rollbacks prometheus.Counter
}

// Register registers all collectors with the registerer.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	var result error

	for _, collector := range m.collectors() {
		err := registerer.Register(collector)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result
}

func (m *Metrics) collectors() []prometheus.Collector {
	var collectors []prometheus.Collector

	if m.hostCalls != nil {
		collectors = append(collectors, m.hostCalls)
	}
	if m.transactions != nil {
		collectors = append(collectors, m.transactions)
	}
	if m.cpu != nil {
		collectors = append(collectors, m.cpu)
	}
	if m.memory != nil {
		collectors = append(collectors, m.memory)
	}
	if m.frameDepth != nil {
		collectors = append(collectors, m.frameDepth)
	}
	if m.rollbacks != nil {
		collectors = append(collectors, m.rollbacks)
	}

	return collectors
}

func (m *Metrics) HostCall(module, name string) {
	if m.hostCalls == nil {
		return
	}

	m.hostCalls.WithLabelValues(module, name).Inc()
}

func (m *Metrics) Transaction(status string, cpu, memory uint64) {
	if m.transactions != nil {
		m.transactions.WithLabelValues(status).Inc()
	}

	if m.cpu != nil {
		m.cpu.Add(float64(cpu))
	}

	if m.memory != nil {
		m.memory.Add(float64(memory))
	}
}

func (m *Metrics) FramePushed(depth int) {
	if m.frameDepth == nil {
		return
	}

	m.frameDepth.Observe(float64(depth))
}

func (m *Metrics) FrameRolledBack() {
	if m.rollbacks == nil {
		return
	}

	m.rollbacks.Inc()
}

// GetPrometheusMetrics return the host metrics instance
func GetPrometheusMetrics(namespace string, labelsWithValues ...string) *Metrics {
	constLabels := ParseLabels(labelsWithValues...)

	return &Metrics{
		hostCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "function_calls",
			Help:        "Host function calls",
			ConstLabels: constLabels,
		}, []string{"module", "function"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "transactions",
			Help:        "Finished transactions",
			ConstLabels: constLabels,
		}, []string{"status"}),
		cpu: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "cpu_instructions",
			Help:        "CPU instructions consumed by finished transactions",
			ConstLabels: constLabels,
		}),
		memory: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "memory_bytes",
			Help:        "Memory bytes consumed by finished transactions",
			ConstLabels: constLabels,
		}),
		frameDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "frame_depth",
			Help:        "Depth of pushed call frames",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 1, 16),
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "frame_rollbacks",
			Help:        "Call frames rolled back",
			ConstLabels: constLabels,
		}),
	}
}

// NilMetrics will return the non operational host metrics
func NilMetrics() *Metrics {
	return &Metrics{}
}

// ParseLabels converts label name and value pairs into labels.
func ParseLabels(labelsWithValues ...string) prometheus.Labels {
	if len(labelsWithValues)%2 != 0 {
		panic("invalid labels")
	}

	constLabels := map[string]string{}
	for i := 1; i < len(labelsWithValues); i += 2 {
		constLabels[labelsWithValues[i-1]] = labelsWithValues[i]
	}

	return constLabels
}
