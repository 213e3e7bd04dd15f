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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type backend struct {
	name   string
	flag   func() FlagValue
	bool   func() BoolValue
	int    func() IntValue
	uint64 func() Uint64Value
}

var backends = []backend{
	{
		name:   "native",
		flag:   func() FlagValue { return &NativeFlag{} },
		bool:   func() BoolValue { return &NativeBool{} },
		int:    func() IntValue { return &NativeInt{} },
		uint64: func() Uint64Value { return &NativeUint64{} },
	},
	{
		name:   "locked",
		flag:   func() FlagValue { return &LockedFlag{} },
		bool:   func() BoolValue { return &LockedBool{} },
		int:    func() IntValue { return &LockedInt{} },
		uint64: func() Uint64Value { return &LockedUint64{} },
	},
}

func TestFlag(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			f := b.flag()
			assert.False(t, f.TestAndSet())
			assert.True(t, f.TestAndSet())
			f.Reset()
			assert.False(t, f.TestAndSet())
		})
	}
}

func TestBool(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := b.bool()
			v.Init()
			assert.False(t, v.Get())
			v.Set(true)
			assert.True(t, v.Get())
			assert.True(t, v.Swap(false))
			assert.False(t, v.Get())
			assert.False(t, v.CompareAndSwap(true, true))
			assert.True(t, v.CompareAndSwap(false, true))
			assert.True(t, v.Get())
		})
	}
}

func TestInt(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := b.int()
			v.Init()
			assert.Equal(t, 0, v.Get())
			v.Set(5)
			assert.Equal(t, 5, v.Swap(7))
			assert.Equal(t, 10, v.Add(3))
			assert.Equal(t, 6, v.Sub(4))
			assert.Equal(t, 7, v.Inc())
			assert.Equal(t, 6, v.Dec())
			assert.False(t, v.CompareAndSwap(5, 1))
			assert.True(t, v.CompareAndSwap(6, -2))
			assert.Equal(t, -2, v.Get())
			assert.Equal(t, -3, v.Dec())
		})
	}
}

func TestUint64(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			v := b.uint64()
			v.Init()
			assert.Equal(t, uint64(0), v.Get())
			v.Set(1 << 40)
			assert.Equal(t, uint64(1<<40), v.Swap(9))
			assert.Equal(t, uint64(12), v.Add(3))
			assert.Equal(t, uint64(2), v.Sub(10))
			assert.Equal(t, uint64(0), v.Sub(2))
			assert.Equal(t, uint64(1), v.Inc())
			assert.Equal(t, uint64(0), v.Dec())
			assert.True(t, v.CompareAndSwap(0, 42))
			assert.False(t, v.CompareAndSwap(0, 43))
			assert.Equal(t, uint64(42), v.Get())
		})
	}
}

func TestConcurrentIncrement(t *testing.T) {
	const workers = 16
	const loops = 1000

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			iv := b.int()
			uv := b.uint64()
			iv.Set(100)
			uv.Set(100)

			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < loops; j++ {
						iv.Inc()
						uv.Inc()
					}
				}()
			}
			wg.Wait()

			require.Equal(t, 100+workers*loops, iv.Get())
			require.Equal(t, uint64(100+workers*loops), uv.Get())
		})
	}
}

func TestConcurrentFlagWinner(t *testing.T) {
	const workers = 32

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			f := b.flag()
			var winners NativeInt
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					if !f.TestAndSet() {
						winners.Inc()
					}
				}()
			}
			wg.Wait()
			require.Equal(t, 1, winners.Get())
		})
	}
}

func TestBackendSelected(t *testing.T) {
	var v Int
	v.Inc()
	assert.Equal(t, 1, v.Get())
	assert.Contains(t, []string{"native", "locked"}, Backend)
}
