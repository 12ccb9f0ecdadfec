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

package objects

import (
	"math"
	"math/bits"

	"github.com/onflow/wasmhost/common"
	"github.com/onflow/wasmhost/errors"
	"github.com/onflow/wasmhost/values"
)

// Limits are the ceilings of the object store.
type Limits struct {
	// MaxObjectSize is the maximum deep size of a single object.
	MaxObjectSize uint64 `yaml:"max_object_size"`
	// MaxObjects is the maximum number of live objects.
	MaxObjects uint32 `yaml:"max_objects"`
	// MaxTotalBytes is the maximum sum of the shallow sizes of all live objects.
	MaxTotalBytes uint64 `yaml:"max_total_bytes"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxObjectSize: 64 * 1024 * 1024,
		MaxObjects:    1 << 20,
		MaxTotalBytes: 256 * 1024 * 1024,
	}
}

type entry struct {
	object Object
	// deepSize is the size of the object including all referenced objects.
	deepSize uint64
	epoch    uint32
	// depth is the frame depth at which the object was allocated.
	depth int
}

// Token is a checkpoint of the store.
type Token struct {
	length     int
	totalBytes uint64
}

// Store is the arena of objects of a host.
//
// Handles carry the epoch of the store at allocation time.
// Restoring a checkpoint discards the newer entries and advances the epoch,
// so handles to discarded entries can never alias later allocations.
type Store struct {
	meter      common.Meter
	limits     Limits
	entries    []entry
	totalBytes uint64
	epoch      uint32
	depth      int
}

func NewStore(meter common.Meter, limits Limits) *Store {
	return &Store{
		meter:  meter,
		limits: limits,
	}
}

func (s *Store) Meter() common.Meter {
	return s.meter
}

func (s *Store) Limits() Limits {
	return s.limits
}

// SetDepth sets the frame depth recorded for new allocations.
func (s *Store) SetDepth(depth int) {
	s.depth = depth
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	return len(s.entries)
}

// TotalBytes returns the sum of the shallow sizes of all live objects.
func (s *Store) TotalBytes() uint64 {
	return s.totalBytes
}

// Allocate inserts the object and returns its handle.
//
// The allocation is charged by the deep size of the object
// before the store limits are checked and the object is inserted.
// All values referenced by the object must be valid.
func (s *Store) Allocate(object Object) (values.Val, error) {
	shallowSize := object.ShallowSize()
	deepSize := shallowSize
	for _, child := range object.Children() {
		if !child.IsObject() {
			continue
		}
		childEntry, err := s.resolveEntry(child)
		if err != nil {
			return 0, err
		}
		deepSize = saturatingAdd(deepSize, childEntry.deepSize)
	}

	err := s.meter.Charge(common.CostTypeHostMemAlloc, deepSize)
	if err != nil {
		return 0, err
	}

	if deepSize > s.limits.MaxObjectSize {
		return 0, errors.NewResourceExceededError(
			"object size %d exceeds limit %d",
			deepSize,
			s.limits.MaxObjectSize,
		)
	}
	if len(s.entries) >= int(s.limits.MaxObjects) {
		return 0, errors.NewResourceExceededError(
			"object count exceeds limit %d",
			s.limits.MaxObjects,
		)
	}
	totalBytes := saturatingAdd(s.totalBytes, shallowSize)
	if totalBytes > s.limits.MaxTotalBytes {
		return 0, errors.NewResourceExceededError(
			"object store size %d exceeds limit %d",
			totalBytes,
			s.limits.MaxTotalBytes,
		)
	}

	index := uint32(len(s.entries))
	s.entries = append(s.entries, entry{
		object:   object,
		deepSize: deepSize,
		epoch:    s.epoch,
		depth:    s.depth,
	})
	s.totalBytes = totalBytes

	return values.NewObjectHandle(object.Tag(), index, s.epoch), nil
}

func (s *Store) resolveEntry(v values.Val) (*entry, error) {
	if !v.IsObject() {
		return nil, errors.NewHostError(errors.KindTypeMismatch, "not an object: %s", v)
	}
	index := v.ObjectIndex()
	if uint64(index) >= uint64(len(s.entries)) {
		return nil, errors.NewInvalidHandleError("unknown object %s", v)
	}
	e := &s.entries[index]
	if e.epoch != v.ObjectEpoch() {
		return nil, errors.NewInvalidHandleError("stale object %s", v)
	}
	if e.object.Tag() != v.Tag() {
		return nil, errors.NewInvalidHandleError("forged object %s", v)
	}
	return e, nil
}

// Resolve returns the object referenced by the handle.
func (s *Store) Resolve(v values.Val) (Object, error) {
	e, err := s.resolveEntry(v)
	if err != nil {
		return nil, err
	}
	return e.object, nil
}

// ResolveAs resolves the handle and checks the object has the expected type.
func ResolveAs[T Object](s *Store, v values.Val) (T, error) {
	var zero T
	if v.Tag() != zero.Tag() {
		return zero, errors.NewTypeMismatchError(zero.Tag(), v.Tag())
	}
	object, err := s.Resolve(v)
	if err != nil {
		return zero, err
	}
	typed, ok := object.(T)
	if !ok {
		return zero, errors.NewTypeMismatchError(zero.Tag(), object.Tag())
	}
	return typed, nil
}

// DeepSize returns the deep size of the value. Immediates have size zero.
func (s *Store) DeepSize(v values.Val) (uint64, error) {
	if !v.IsObject() {
		return 0, nil
	}
	e, err := s.resolveEntry(v)
	if err != nil {
		return 0, err
	}
	return e.deepSize, nil
}

// Depth returns the frame depth at which the object was allocated.
func (s *Store) Depth(v values.Val) (int, error) {
	e, err := s.resolveEntry(v)
	if err != nil {
		return 0, err
	}
	return e.depth, nil
}

// Validate checks that the value is a canonical immediate or a live handle.
func (s *Store) Validate(v values.Val) error {
	if !v.IsObject() {
		return nil
	}
	_, err := s.resolveEntry(v)
	return err
}

func (s *Store) Checkpoint() Token {
	return Token{
		length:     len(s.entries),
		totalBytes: s.totalBytes,
	}
}

// Restore discards every object allocated after the checkpoint was taken.
func (s *Store) Restore(token Token) error {
	if token.length > len(s.entries) {
		return errors.NewUnexpectedError(
			"cannot restore object store to %d entries, only %d live",
			token.length,
			len(s.entries),
		)
	}
	if token.length == len(s.entries) {
		return nil
	}
	if s.epoch == values.MaxEpoch {
		return errors.NewResourceExceededError("object store epochs exhausted")
	}

	clear(s.entries[token.length:])
	s.entries = s.entries[:token.length]
	s.totalBytes = token.totalBytes
	s.epoch++

	return nil
}

// Reset discards all objects and advances the epoch,
// so handles allocated before the reset are stale.
// The epoch wraps around after MaxEpoch resets.
func (s *Store) Reset() {
	clear(s.entries)
	s.entries = s.entries[:0]
	s.totalBytes = 0
	s.depth = 0
	if s.epoch == values.MaxEpoch {
		s.epoch = 0
	} else {
		s.epoch++
	}
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
