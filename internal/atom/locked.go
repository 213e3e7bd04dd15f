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
	"sync"
)

// lock guards every Locked value in the process.  All operations on
// all values contend here, so keep Locked values off hot paths.
var lock sync.Mutex

// LockedFlag is a FlagValue guarded by the process wide lock.
type LockedFlag struct {
	f bool
}

func (f *LockedFlag) TestAndSet() bool {
	lock.Lock()
	v := f.f
	f.f = true
	lock.Unlock()
	return v
}

func (f *LockedFlag) Reset() {
	lock.Lock()
	f.f = false
	lock.Unlock()
}

// LockedBool is a BoolValue guarded by the process wide lock.
type LockedBool struct {
	b bool
}

func (b *LockedBool) Init() {
	lock.Lock()
	b.b = false
	lock.Unlock()
}

func (b *LockedBool) Get() bool {
	lock.Lock()
	v := b.b
	lock.Unlock()
	return v
}

func (b *LockedBool) Set(n bool) {
	lock.Lock()
	b.b = n
	lock.Unlock()
}

func (b *LockedBool) Swap(n bool) bool {
	lock.Lock()
	v := b.b
	b.b = n
	lock.Unlock()
	return v
}

func (b *LockedBool) CompareAndSwap(old, new bool) bool {
	lock.Lock()
	defer lock.Unlock()
	if b.b != old {
		return false
	}
	b.b = new
	return true
}

// LockedInt is an IntValue guarded by the process wide lock.
type LockedInt struct {
	v int
}

func (i *LockedInt) Init() {
	lock.Lock()
	i.v = 0
	lock.Unlock()
}

func (i *LockedInt) Get() int {
	lock.Lock()
	v := i.v
	lock.Unlock()
	return v
}

func (i *LockedInt) Set(n int) {
	lock.Lock()
	i.v = n
	lock.Unlock()
}

func (i *LockedInt) Swap(n int) int {
	lock.Lock()
	v := i.v
	i.v = n
	lock.Unlock()
	return v
}

func (i *LockedInt) CompareAndSwap(old, new int) bool {
	lock.Lock()
	defer lock.Unlock()
	if i.v != old {
		return false
	}
	i.v = new
	return true
}

func (i *LockedInt) Add(n int) int {
	lock.Lock()
	i.v += n
	v := i.v
	lock.Unlock()
	return v
}

func (i *LockedInt) Sub(n int) int {
	lock.Lock()
	i.v -= n
	v := i.v
	lock.Unlock()
	return v
}

func (i *LockedInt) Inc() int {
	return i.Add(1)
}

func (i *LockedInt) Dec() int {
	return i.Sub(1)
}

// LockedUint64 is a Uint64Value guarded by the process wide lock.
type LockedUint64 struct {
	v uint64
}

func (u *LockedUint64) Init() {
	lock.Lock()
	u.v = 0
	lock.Unlock()
}

func (u *LockedUint64) Get() uint64 {
	lock.Lock()
	v := u.v
	lock.Unlock()
	return v
}

func (u *LockedUint64) Set(n uint64) {
	lock.Lock()
	u.v = n
	lock.Unlock()
}

func (u *LockedUint64) Swap(n uint64) uint64 {
	lock.Lock()
	v := u.v
	u.v = n
	lock.Unlock()
	return v
}

func (u *LockedUint64) CompareAndSwap(old, new uint64) bool {
	lock.Lock()
	defer lock.Unlock()
	if u.v != old {
		return false
	}
	u.v = new
	return true
}

func (u *LockedUint64) Add(n uint64) uint64 {
	lock.Lock()
	u.v += n
	v := u.v
	lock.Unlock()
	return v
}

func (u *LockedUint64) Sub(n uint64) uint64 {
	lock.Lock()
	u.v -= n
	v := u.v
	lock.Unlock()
	return v
}

func (u *LockedUint64) Inc() uint64 {
	return u.Add(1)
}

func (u *LockedUint64) Dec() uint64 {
	return u.Sub(1)
}
