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

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

func TestEncodeOption(t *testing.T) {
	cases := []struct {
		value interface{}
		want  []byte
	}{
		{time.Duration(1), []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		{sp.Infinite, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{int(258), []byte{0, 0, 0, 0, 0, 0, 1, 2}},
		{uint64(1 << 32), []byte{0, 0, 0, 1, 0, 0, 0, 0}},
		{uint16(0x1020), []byte{0x10, 0x20}},
		{true, []byte{1}},
		{false, []byte{0}},
		{[]byte("abc"), []byte("abc")},
		{"xy", []byte("xy")},
	}
	for _, c := range cases {
		b, err := encodeOption(c.value)
		require.NoError(t, err)
		assert.Equal(t, c.want, b, "%T %v", c.value, c.value)
	}

	_, err := encodeOption(struct{}{})
	assert.Equal(t, errors.ErrBadOption, err)
}

func TestDecodeOption(t *testing.T) {
	v, err := decodeOption(sp.OptionRecvDeadline, []byte{0, 0, 0, 0, 0, 0, 0x03, 0xe8})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(1000), v)

	v, err = decodeOption(sp.OptionReadQLen, []byte{0, 0, 0, 0, 0, 0, 0, 7})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = decodeOption(sp.OptionBestEffort, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = decodeOption(sp.OptionSubscribe, []byte("topic"))
	require.NoError(t, err)
	assert.Equal(t, []byte("topic"), v)

	_, err = decodeOption(sp.OptionRecvDeadline, []byte{0, 1})
	assert.Equal(t, errors.ErrBadValue, err)
	_, err = decodeOption(sp.OptionBestEffort, nil)
	assert.Equal(t, errors.ErrBadValue, err)
	_, err = decodeOption(sp.OptionPipeCount, make([]byte, 8))
	assert.Equal(t, errors.ErrReadOnly, err)
	_, err = decodeOption("NO-SUCH-OPTION", nil)
	assert.Equal(t, errors.ErrBadOption, err)
}
