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

package sp

import (
	"time"
)

// ProtocolInfo is a description of the protocol.
type ProtocolInfo struct {
	Self     uint16
	Peer     uint16
	SelfName string
	PeerName string
}

// ProtocolPipe is the handle a protocol has to a connected pipe.  It
// can be thought of as one side of a TCP, IPC, or other type of
// connection, already validated against the peer protocol.
type ProtocolPipe interface {
	// ID returns a unique 31-bit value associated with the pipe.
	ID() uint32

	// Close closes the pipe.  The protocol's RemovePipe will be
	// called as a consequence.
	Close() error

	// SendMsg sends a message.  On success it returns nil, and the
	// pipe owns the message.  This is a blocking call.  On error the
	// pipe is closed.
	SendMsg(*Message) error

	// RecvMsg receives a message.  It blocks until the message is
	// received.  On error, the pipe is closed and nil is returned.
	RecvMsg() *Message

	// GetOption returns a transport specific option for the pipe.
	GetOption(string) (interface{}, error)
}

// ProtocolBase provides the protocol-specific handling for sockets.
// The socket core takes care of the socket life cycle, the pipes and
// the timing options; the protocol decides where messages go.
//
// Deadlines passed to SendMsg and RecvMsg are absolute.  The zero
// time means wait without limit.  The special deadline used by the
// message queues for non-blocking operation means never wait at all,
// and the operation fails with ErrWouldBlock instead.
type ProtocolBase interface {
	// Info returns the information describing this protocol.
	Info() ProtocolInfo

	// SendMsg sends the message.  The message may be queued, or
	// may be delivered immediately, depending on the nature of
	// the protocol.  On success, the protocol assumes ownership
	// of the message.  On error, the caller retains ownership,
	// and may either resend the message or dispose of it otherwise.
	SendMsg(m *Message, deadline time.Time) error

	// RecvMsg receives a complete message, including the message header,
	// which is useful for protocols in raw mode.
	RecvMsg(deadline time.Time) (*Message, error)

	// AddPipe is called when a new Pipe is added to the socket.
	// Typically this is as a result of connect or accept completing.
	// Returning an error rejects the pipe, which is then closed.
	AddPipe(ProtocolPipe) error

	// RemovePipe is called when a Pipe is removed from the socket.
	// Typically this indicates a disconnected or closed connection.
	RemovePipe(ProtocolPipe)

	// GetOption is used to retrieve the current value of an option.
	// If the protocol doesn't recognize the option, ErrBadOption should
	// be returned.
	GetOption(string) (interface{}, error)

	// SetOption is used to set an option.  ErrBadOption is returned if
	// the option name is not recognized, ErrBadValue if the value is
	// invalid.
	SetOption(string, interface{}) error

	// Close wakes every pending SendMsg and RecvMsg with ErrClosed,
	// and discards queued messages.  Options stay readable.
	Close() error
}

// Useful constants for protocol numbers.  Note that the major protocol number
// is stored in the upper 12 bits, and the minor (subprotocol) is located in
// the bottom 4 bits.
const (
	ProtoPair = (1 * 16)
	ProtoPub  = (2 * 16)
	ProtoSub  = (2 * 16) + 1
	ProtoPush = (5 * 16)
	ProtoPull = (5 * 16) + 1
	ProtoBus  = (7 * 16)
)

var protocolNames = map[uint16]string{
	ProtoPair: "pair",
	ProtoPub:  "pub",
	ProtoSub:  "sub",
	ProtoPush: "push",
	ProtoPull: "pull",
	ProtoBus:  "bus",
}

// ProtocolName returns the name corresponding to a given protocol number.
// This is useful for transports like WebSocket, which use a text name
// rather than the number in the handshake.
func ProtocolName(number uint16) string {
	return protocolNames[number]
}
