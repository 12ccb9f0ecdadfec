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
	"github.com/onflow/wasmhost/codec"
	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// MaxEventTopics is the maximum number of topics of a contract event.
const MaxEventTopics = 4

// Event is a contract event.
//
// Events outlive the transaction's objects, so topics and data are
// held in their encoded form (see package codec).
type Event struct {
	Contract common.Address
	// Topics is the encoded vec of topics
	Topics []byte
	Data   []byte
}

// DiagnosticEvent is recorded by log_diagnostic when diagnostics are enabled.
// Diagnostic events are kept even if the emitting frame is rolled back.
type DiagnosticEvent struct {
	Contract common.Address
	Message  []byte
	Args     []byte
}

func (h *Host) emitEvent(topics values.Val, data values.Val) error {
	frame, err := h.currentFrame()
	if err != nil {
		return err
	}

	topicsVec, err := h.objects.Vec(topics)
	if err != nil {
		return err
	}
	if len(topicsVec) > MaxEventTopics {
		return errors.NewInvalidInputError(
			"too many event topics: %d, at most %d",
			len(topicsVec),
			MaxEventTopics,
		)
	}

	encodedTopics, err := codec.Encode(h.objects, topics)
	if err != nil {
		return err
	}
	encodedData, err := codec.Encode(h.objects, data)
	if err != nil {
		return err
	}

	frame.events = append(frame.events, Event{
		Contract: frame.Contract,
		Topics:   encodedTopics,
		Data:     encodedData,
	})
	return nil
}

func (h *Host) recordDiagnostic(message values.Val, args values.Val) error {
	frame, err := h.currentFrame()
	if err != nil {
		return err
	}

	encodedMessage, err := codec.Encode(h.objects, message)
	if err != nil {
		return err
	}
	encodedArgs, err := codec.Encode(h.objects, args)
	if err != nil {
		return err
	}

	h.diagnostics = append(h.diagnostics, DiagnosticEvent{
		Contract: frame.Contract,
		Message:  encodedMessage,
		Args:     encodedArgs,
	})

	h.logger.Debug("diagnostic",
		"contract", frame.Contract,
		"message", message,
	)
	return nil
}
