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
	"time"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/objects"
	"github.com/onflow/wasmhost/storage"
)

// FrameState is the state of a frame: Pushed → Running → {Committed | RolledBack}.
type FrameState uint8

const (
	FrameStatePushed FrameState = iota
	FrameStateRunning
	FrameStateCommitted
	FrameStateRolledBack
)

func (s FrameState) String() string {
	switch s {
	case FrameStatePushed:
		return "pushed"
	case FrameStateRunning:
		return "running"
	case FrameStateCommitted:
		return "committed"
	case FrameStateRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("FrameState(%d)", uint8(s))
}

// Frame is the scoped state of a single contract invocation.
type Frame struct {
	start           time.Time
	prng            *PRNG
	Contract        common.Address
	Function        string
	events          []Event
	storageSnapshot storage.Snapshot
	objectsToken    objects.Token
	Depth           int
	State           FrameState
}

// Frames returns the frames currently on the stack, root first.
func (h *Host) Frames() []*Frame {
	return h.frames
}

func (h *Host) currentFrame() (*Frame, error) {
	if len(h.frames) == 0 {
		return nil, errors.NewUnexpectedError("no frame on the stack")
	}
	return h.frames[len(h.frames)-1], nil
}

// invoker returns the contract which invoked the current frame.
// The root frame has no invoking contract.
func (h *Host) invoker() (common.Address, bool) {
	if len(h.frames) < 2 {
		return common.Address{}, false
	}
	return h.frames[len(h.frames)-2].Contract, true
}

// pushFrame checkpoints the object store and the storage
// and pushes a new frame for the invocation.
func (h *Host) pushFrame(contract common.Address, function string) (*Frame, error) {
	depth := len(h.frames)

	if depth >= h.config.MaxCallDepth {
		return nil, errors.NewHostError(
			errors.KindCallDepthExceeded,
			"call depth exceeds limit %d",
			h.config.MaxCallDepth,
		)
	}
	if h.framesPushed >= h.config.MaxFrames {
		return nil, errors.NewHostError(
			errors.KindCallDepthExceeded,
			"frame count exceeds limit %d",
			h.config.MaxFrames,
		)
	}

	frame := &Frame{
		Contract:        contract,
		Function:        function,
		Depth:           depth,
		State:           FrameStatePushed,
		objectsToken:    h.objects.Checkpoint(),
		storageSnapshot: h.storage.Snapshot(),
	}
	if h.config.Tracer.enabled() {
		frame.start = time.Now()
	}

	h.frames = append(h.frames, frame)
	h.framesPushed++
	h.objects.SetDepth(depth)
	h.metrics.FramePushed(depth)

	h.logger.Trace("frame pushed",
		"contract", contract,
		"function", function,
		"depth", depth,
	)

	frame.State = FrameStateRunning
	return frame, nil
}

// popFrame pops the frame.
//
// On success the frame's events are merged into the parent frame.
// On failure the object store and the storage are restored to the frame's checkpoint,
// and the frame's events are discarded.
func (h *Host) popFrame(frame *Frame, cause error) error {
	if len(h.frames) == 0 || h.frames[len(h.frames)-1] != frame {
		return errors.NewUnexpectedError("popped frame is not on top of the stack")
	}

	h.frames = h.frames[:len(h.frames)-1]
	if len(h.frames) > 0 {
		h.objects.SetDepth(len(h.frames) - 1)
	} else {
		h.objects.SetDepth(0)
	}

	committed := cause == nil
	if committed {
		frame.State = FrameStateCommitted
		if len(h.frames) > 0 {
			parent := h.frames[len(h.frames)-1]
			parent.events = append(parent.events, frame.events...)
		} else {
			h.events = append(h.events, frame.events...)
		}
	} else {
		frame.State = FrameStateRolledBack
		frame.events = nil
		h.storage.Restore(frame.storageSnapshot)
		err := h.objects.Restore(frame.objectsToken)
		if err != nil {
			// a frame which cannot be rolled back leaves the transaction in an unknown state
			return errors.NewUnexpectedErrorFromCause(err)
		}
		h.metrics.FrameRolledBack()
	}

	h.logger.Trace("frame popped",
		"contract", frame.Contract,
		"function", frame.Function,
		"depth", frame.Depth,
		"state", frame.State,
	)

	if h.config.Tracer.enabled() {
		h.config.Tracer.reportFrameTrace(
			frame.Contract,
			frame.Function,
			frame.Depth,
			committed,
			time.Since(frame.start),
		)
	}

	return cause
}
