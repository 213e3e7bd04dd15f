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

// Package protocol implements some common things protocol implementors
// need, and the registry used to open sockets by protocol number or
// name.  Only protocol implementations should need the former.
package protocol

import (
	"sync"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/internal/core"
)

// Protocol numbers
const (
	ProtoPair = sp.ProtoPair
	ProtoPub  = sp.ProtoPub
	ProtoSub  = sp.ProtoSub
	ProtoPush = sp.ProtoPush
	ProtoPull = sp.ProtoPull
	ProtoBus  = sp.ProtoBus
)

// Pipe is a single connection -- provided by the transport layer.
type Pipe = sp.ProtocolPipe

// Info describes a protocol and it's peer.
type Info = sp.ProtocolInfo

// Protocol is the main ops vector for a protocol.
type Protocol = sp.ProtocolBase

// Socket is the interface definition of a sp.Socket.
// We need this for creating new ones.
type Socket = sp.Socket

// Message is an alias for the common sp.Message.
type Message = sp.Message

// Borrow common error codes for convenience.
const (
	ErrClosed      = errors.ErrClosed
	ErrSendTimeout = errors.ErrSendTimeout
	ErrRecvTimeout = errors.ErrRecvTimeout
	ErrWouldBlock  = errors.ErrWouldBlock
	ErrBadValue    = errors.ErrBadValue
	ErrBadOption   = errors.ErrBadOption
	ErrReadOnly    = errors.ErrReadOnly
	ErrProtoOp     = errors.ErrProtoOp
	ErrProtoState  = errors.ErrProtoState
	ErrCanceled    = errors.ErrCanceled
)

// Common option definitions
// We have elided transport-specific options here.
const (
	OptionRaw          = sp.OptionRaw
	OptionRecvDeadline = sp.OptionRecvDeadline
	OptionSendDeadline = sp.OptionSendDeadline
	OptionSubscribe    = sp.OptionSubscribe
	OptionUnsubscribe  = sp.OptionUnsubscribe
	OptionWriteQLen    = sp.OptionWriteQLen
	OptionReadQLen     = sp.OptionReadQLen
	OptionBestEffort   = sp.OptionBestEffort
)

// MakeSocket creates a Socket on top of a Protocol.
func MakeSocket(proto Protocol) Socket {
	return core.MakeSocket(proto)
}

var registry struct {
	sync.RWMutex
	byNumber map[uint16]func() (Socket, error)
	byName   map[string]func() (Socket, error)
}

func init() {
	registry.byNumber = make(map[uint16]func() (Socket, error))
	registry.byName = make(map[string]func() (Socket, error))
}

// Register makes a protocol available to Open and OpenName.  The
// protocol packages register themselves when imported.
func Register(info Info, newSocket func() (Socket, error)) {
	registry.Lock()
	registry.byNumber[info.Self] = newSocket
	registry.byName[info.SelfName] = newSocket
	registry.Unlock()
}

// Open creates a socket for the protocol with the given number.  An
// unknown or unregistered number gives ErrBadProto.
func Open(number uint16) (Socket, error) {
	registry.RLock()
	fn, ok := registry.byNumber[number]
	registry.RUnlock()
	if !ok {
		return nil, errors.ErrBadProto
	}
	return fn()
}

// OpenName is Open, by protocol name ("pair", "pub", ...).
func OpenName(name string) (Socket, error) {
	registry.RLock()
	fn, ok := registry.byName[name]
	registry.RUnlock()
	if !ok {
		return nil, errors.ErrBadProto
	}
	return fn()
}
