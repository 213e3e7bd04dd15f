// Copyright 2018 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package atom provides the small atomic values used by the core for
// reference counts, state words, closed flags, and statistics.
//
// Two backends exist.  The Native types use the processor's atomic
// instructions.  The Locked types serialize every operation, on every
// value in the process, through one package level mutex; they exist
// for targets without usable atomics, and are only suitable for
// values touched at low frequency.  The unqualified Flag, Bool, Int
// and Uint64 names refer to the Native types, unless the build tag
// sp_lockatomics is supplied, in which case they refer to the Locked
// types.  Callers should use the unqualified names.
//
// The zero value of every type is ready for use, and equivalent to the
// state established by Init.
package atom

// FlagValue is a test-and-set flag.
type FlagValue interface {
	// TestAndSet sets the flag, returning the previous state.
	TestAndSet() bool
	// Reset clears the flag.
	Reset()
}

// BoolValue is an atomic boolean.
type BoolValue interface {
	Init()
	Get() bool
	Set(bool)
	Swap(bool) bool
	CompareAndSwap(old, new bool) bool
}

// IntValue is an atomic signed counter.  Add, Sub, Inc and Dec
// return the value after the update.
type IntValue interface {
	Init()
	Get() int
	Set(int)
	Swap(int) int
	CompareAndSwap(old, new int) bool
	Add(int) int
	Sub(int) int
	Inc() int
	Dec() int
}

// Uint64Value is an atomic unsigned 64-bit counter.
type Uint64Value interface {
	Init()
	Get() uint64
	Set(uint64)
	Swap(uint64) uint64
	CompareAndSwap(old, new uint64) bool
	Add(uint64) uint64
	Sub(uint64) uint64
	Inc() uint64
	Dec() uint64
}

var (
	_ FlagValue   = (*NativeFlag)(nil)
	_ FlagValue   = (*LockedFlag)(nil)
	_ BoolValue   = (*NativeBool)(nil)
	_ BoolValue   = (*LockedBool)(nil)
	_ IntValue    = (*NativeInt)(nil)
	_ IntValue    = (*LockedInt)(nil)
	_ Uint64Value = (*NativeUint64)(nil)
	_ Uint64Value = (*LockedUint64)(nil)
)
