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
	"encoding/binary"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// optionKind is the binary shape of an option value.
type optionKind int

const (
	kindDuration optionKind = iota
	kindInt
	kindBool
	kindUint16
	kindUint64
	kindBytes
)

// Options settable in binary form.  Read-only options are absent, as
// are options whose values have no binary form (loggers, addresses).
var optionKinds = map[string]optionKind{
	sp.OptionRecvDeadline:     kindDuration,
	sp.OptionSendDeadline:     kindDuration,
	sp.OptionReconnectTime:    kindDuration,
	sp.OptionMaxReconnectTime: kindDuration,
	sp.OptionReadQLen:         kindInt,
	sp.OptionWriteQLen:        kindInt,
	sp.OptionMaxRecvSize:      kindInt,
	sp.OptionBestEffort:       kindBool,
	sp.OptionKeepAlive:        kindBool,
	sp.OptionNoDelay:          kindBool,
	sp.OptionSubscribe:        kindBytes,
	sp.OptionUnsubscribe:      kindBytes,
}

// encodeOption renders an option value in its fixed binary form.
// Integers and durations are 8 bytes, big-endian.
func encodeOption(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case time.Duration:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b, nil
	case int:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(int64(v)))
		return b, nil
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b, nil
	case uint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v)
		return b, nil
	case bool:
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case []byte:
		return append([]byte{}, v...), nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.ErrBadOption
}

// decodeOption parses the binary form of a settable option.  The
// buffer must be exactly the natural size of the option.
func decodeOption(name string, b []byte) (interface{}, error) {
	kind, ok := optionKinds[name]
	if !ok {
		switch name {
		case sp.OptionProtocol, sp.OptionPeer, sp.OptionPipeCount,
			sp.OptionMessagesSent, sp.OptionMessagesReceived, sp.OptionRaw:
			return nil, errors.ErrReadOnly
		}
		return nil, errors.ErrBadOption
	}
	switch kind {
	case kindDuration, kindInt, kindUint64:
		if len(b) != 8 {
			return nil, errors.ErrBadValue
		}
		u := binary.BigEndian.Uint64(b)
		switch kind {
		case kindDuration:
			return time.Duration(int64(u)), nil
		case kindInt:
			return int(int64(u)), nil
		}
		return u, nil
	case kindUint16:
		if len(b) != 2 {
			return nil, errors.ErrBadValue
		}
		return binary.BigEndian.Uint16(b), nil
	case kindBool:
		if len(b) != 1 {
			return nil, errors.ErrBadValue
		}
		return b[0] != 0, nil
	}
	return append([]byte{}, b...), nil
}
