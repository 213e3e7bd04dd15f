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

// Flags modify the behavior of a single operation.
type Flags int

const (
	// FlagNonBlock makes a send or receive fail with ErrWouldBlock,
	// rather than wait, when it cannot complete immediately.
	FlagNonBlock = Flags(1 << iota)

	// FlagSynch makes Dial (and Listen) wait for the first attempt to
	// resolve, returning its error, instead of retrying in the
	// background.
	FlagSynch
)

// Socket is the main access handle applications use to access the SP
// system.  It is an abstraction of an application's "connection" to a
// messaging topology.  Applications can have more than one Socket open
// at a time.
type Socket interface {
	// Info returns information about the protocol (numbers and names)
	// and peer protocol.
	Info() ProtocolInfo

	// Close closes the open Socket.  Further operations on the socket
	// will return ErrClosed.
	Close() error

	// Shutdown makes pending and future send and receive operations
	// fail with ErrClosed, and tears down all connections, but leaves
	// options readable until Close.  A second Shutdown returns
	// ErrClosed.
	Shutdown() error

	// Send puts the message on the outbound send queue.  It blocks
	// until the message can be queued, or the send deadline expires.
	// If a queued message is later dropped for any reason,
	// there will be no notification back to the application.
	Send([]byte) error

	// Recv receives a complete message.  The entire message is received.
	Recv() ([]byte, error)

	// SendMsg puts the message on the outbound send.  It works like Send,
	// but allows the caller to supply message headers.  AGAIN, the Socket
	// ASSUMES OWNERSHIP OF THE MESSAGE.
	SendMsg(*Message) error

	// RecvMsg receives a complete message, including the message header,
	// which is useful for protocols in raw mode.
	RecvMsg() (*Message, error)

	// SendMsgFlags is SendMsg, modified by flags.  On error the caller
	// keeps ownership of the message.
	SendMsgFlags(*Message, Flags) error

	// RecvMsgFlags is RecvMsg, modified by flags.
	RecvMsgFlags(Flags) (*Message, error)

	// Dial connects a remote endpoint to the Socket.  The function
	// returns immediately, and an asynchronous goroutine is started to
	// establish and maintain the connection, reconnecting as needed.
	// If the address is invalid, then an error is returned.
	Dial(addr string) error

	// DialFlags is Dial, modified by flags.  With FlagSynch the first
	// connection attempt is made before returning, and its failure is
	// returned without any retry.
	DialFlags(addr string, flags Flags) error

	// NewDialer returns a Dialer object which can be used to get
	// access to the underlying configuration for dialing.
	NewDialer(addr string, options map[string]interface{}) (Dialer, error)

	// Listen connects a local endpoint to the Socket.  Remote peers
	// may connect (e.g. with Dial) and will each be "connected" to
	// the Socket.  The accepter logic is run in a separate goroutine.
	// The address is bound before returning, so ErrAddrInUse is
	// reported here.
	Listen(addr string) error

	// ListenFlags is Listen, modified by flags.
	ListenFlags(addr string, flags Flags) error

	NewListener(addr string, options map[string]interface{}) (Listener, error)

	// GetOption is used to retrieve an option for a socket.
	GetOption(name string) (interface{}, error)

	// SetOption is used to set an option for a socket.
	SetOption(name string, value interface{}) error

	// GetOptionBytes copies the option, in its fixed binary form, into
	// buf and returns the natural size of the option.  If buf is too
	// short nothing is copied, but the size is still returned and this
	// is not an error.
	GetOptionBytes(name string, buf []byte) (int, error)

	// SetOptionBytes sets an option from its fixed binary form.  The
	// length of buf must match the natural size of the option.
	SetOptionBytes(name string, buf []byte) error

	// SetPipeEventHook sets a PipeEventHook function to be called when a
	// Pipe is added or removed from this socket (connect/disconnect).
	// The previous hook is returned (nil if none.)  (Only one hook can
	// be used at a time.)
	SetPipeEventHook(PipeEventHook) PipeEventHook

	// AddTransport adds a transport for use by this socket only,
	// taking precedence over the registered transports.
	AddTransport(Transport)
}

// Dialer is an interface to the underlying dialer for a transport
// and address.
type Dialer interface {
	// Close closes the dialer, and removes it from the Socket.
	// Any connected pipes associated with this dialer are left
	// connected.
	Close() error

	// Dial starts connecting on the address.  If a connection fails,
	// it will restart, unless FlagSynch is given, in which case the
	// first failure is returned.
	Dial(flags Flags) error

	// Address returns the string (full URL) of the Listener.
	Address() string

	// SetOption sets an option on the Dialer. Setting options
	// can only be done before Dial() has been called.
	SetOption(name string, value interface{}) error

	// GetOption gets an option value from the Listener.
	GetOption(name string) (interface{}, error)
}

// Listener is an interface to the underlying listener for a transport
// and address.
type Listener interface {
	// Close closes the listener, and removes it from the Socket.
	// Any connected pipes associated with this listener are left
	// connected.
	Close() error

	// Listen starts listening for new connectons on the address.
	Listen(flags Flags) error

	// Address returns the string (full URL) of the Listener.
	Address() string

	// SetOption sets an option on the Listener. Setting options
	// can only be done before Listen() has been called.
	SetOption(name string, value interface{}) error

	// GetOption gets an option value from the Listener.
	GetOption(name string) (interface{}, error)
}
