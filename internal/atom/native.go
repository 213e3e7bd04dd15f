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

package atom

import (
	"sync/atomic"
)

// NativeFlag is a FlagValue backed by hardware atomics.
type NativeFlag struct {
	v atomic.Bool
}

func (f *NativeFlag) TestAndSet() bool {
	return f.v.Swap(true)
}

func (f *NativeFlag) Reset() {
	f.v.Store(false)
}

// NativeBool is a BoolValue backed by hardware atomics.
type NativeBool struct {
	v atomic.Bool
}

func (b *NativeBool) Init() {
	b.v.Store(false)
}

func (b *NativeBool) Get() bool {
	return b.v.Load()
}

func (b *NativeBool) Set(n bool) {
	b.v.Store(n)
}

func (b *NativeBool) Swap(n bool) bool {
	return b.v.Swap(n)
}

func (b *NativeBool) CompareAndSwap(old, new bool) bool {
	return b.v.CompareAndSwap(old, new)
}

// NativeInt is an IntValue backed by hardware atomics.  The value is
// held in 64 bits regardless of the platform word size.
type NativeInt struct {
	v atomic.Int64
}

func (i *NativeInt) Init() {
	i.v.Store(0)
}

func (i *NativeInt) Get() int {
	return int(i.v.Load())
}

func (i *NativeInt) Set(n int) {
	i.v.Store(int64(n))
}

func (i *NativeInt) Swap(n int) int {
	return int(i.v.Swap(int64(n)))
}

func (i *NativeInt) CompareAndSwap(old, new int) bool {
	return i.v.CompareAndSwap(int64(old), int64(new))
}

func (i *NativeInt) Add(n int) int {
	return int(i.v.Add(int64(n)))
}

func (i *NativeInt) Sub(n int) int {
	return int(i.v.Add(-int64(n)))
}

func (i *NativeInt) Inc() int {
	return int(i.v.Add(1))
}

func (i *NativeInt) Dec() int {
	return int(i.v.Add(-1))
}

// NativeUint64 is a Uint64Value backed by hardware atomics.
type NativeUint64 struct {
	v atomic.Uint64
}

func (u *NativeUint64) Init() {
	u.v.Store(0)
}

func (u *NativeUint64) Get() uint64 {
	return u.v.Load()
}

func (u *NativeUint64) Set(n uint64) {
	u.v.Store(n)
}

func (u *NativeUint64) Swap(n uint64) uint64 {
	return u.v.Swap(n)
}

func (u *NativeUint64) CompareAndSwap(old, new uint64) bool {
	return u.v.CompareAndSwap(old, new)
}

func (u *NativeUint64) Add(n uint64) uint64 {
	return u.v.Add(n)
}

func (u *NativeUint64) Sub(n uint64) uint64 {
	return u.v.Add(^(n - 1))
}

func (u *NativeUint64) Inc() uint64 {
	return u.v.Add(1)
}

func (u *NativeUint64) Dec() uint64 {
	return u.v.Add(^uint64(0))
}
