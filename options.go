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

// Infinite is the timeout value that blocks until the operation can
// complete or the socket is closed.
const Infinite = time.Duration(-1)

// The following are Options used by SetOption, GetOption.

const (
	// OptionRaw is used to test if the socket in RAW mode.  The details of
	// how this varies from normal mode vary from protocol to protocol,
	// but RAW mode is generally minimal protocol processing, and
	// stateless.  RAW mode sockets are constructed with different
	// protocol constructor.  Raw mode is generally used with Device(),
	// and the value is a bool.  This option is read-only.
	OptionRaw = "RAW"

	// OptionRecvDeadline is the time until the next Recv times out.  The
	// value is a time.Duration.  Zero means non-blocking: a Recv that
	// cannot be satisfied immediately fails with ErrWouldBlock.  A
	// negative value (Infinite) blocks until a message arrives or the
	// socket is closed, and is the default.  The deadline is computed
	// when the operation starts; changing this does not affect an
	// operation already waiting.
	OptionRecvDeadline = "RECV-DEADLINE"

	// OptionSendDeadline is the time until the next Send times out.  The
	// value is a time.Duration, with the same meaning as for
	// OptionRecvDeadline.
	OptionSendDeadline = "SEND-DEADLINE"

	// OptionSubscribe is used by SUB.  The argument is a []byte.
	// The application will receive messages that start with this prefix.
	// Multiple subscriptions may be in effect on a given socket.  The
	// application will not receive messages that do not match any current
	// subscriptions.  (If there are no subscriptions for a SUB
	// socket, then the application will not receive any messages.  An
	// empty prefix can be used to subscribe to all messages.)
	OptionSubscribe = "SUBSCRIBE"

	// OptionUnsubscribe is used by SUB.  The argument is a []byte,
	// representing a previously established subscription, which will be
	// removed from the socket.
	OptionUnsubscribe = "UNSUBSCRIBE"

	// OptionLocalAddr expresses a local address.  For dialers, this is
	// the (often random) address that was locally bound.  For listeners,
	// it is usually the service address.  The value is a net.Addr.  This
	// is generally a read-only value for pipes.
	OptionLocalAddr = "LOCAL-ADDR"

	// OptionRemoteAddr expresses a remote address.  The value is a
	// net.Addr, and is read-only on pipes.
	OptionRemoteAddr = "REMOTE-ADDR"

	// OptionWriteQLen is used to set the size, in messages, of the write
	// queue.  For protocols that keep a queue per pipe, this is the depth
	// of each pipe's queue.  Zero means every send must meet the pipe's
	// sender directly.  The value is an int.
	OptionWriteQLen = "WRITEQ-LEN"

	// OptionReadQLen is used to set the size, in messages, of the read
	// queue.  The value is an int.
	OptionReadQLen = "READQ-LEN"

	// OptionKeepAlive is used to set TCP KeepAlive.  Value is a boolean.
	// Default is true.
	OptionKeepAlive = "KEEPALIVE"

	// OptionNoDelay is used to configure Nagle -- when true messages are
	// sent as soon as possible, otherwise some buffering may occur.
	// Value is a boolean.  Default is true.
	OptionNoDelay = "NO-DELAY"

	// OptionMaxRecvSize supplies the maximum receive size for inbound
	// messages.  This option exists because the wire protocol allows
	// the sender to specify the size of the incoming message, and
	// if the size were overly large, a bad remote actor could perform a
	// remote Denial-Of-Service by requesting ridiculously  large message
	// sizes and then stalling on send.  The default value is 1MB.
	//
	// A value of 0 removes the limit, but should not be used unless
	// absolutely sure that the peer is trustworthy.
	//
	// Not all transports honor this limit.  For example, this limit
	// makes no sense when used with inproc.
	//
	// Note that the size includes any Protocol specific header.  It is
	// better to pick a value that is a little too big, than too small.
	//
	// This option is only intended to prevent gross abuse  of the system,
	// and not a substitute for proper application message verification.
	OptionMaxRecvSize = "MAX-RCV-SIZE"

	// OptionReconnectTime is the initial interval used for connection
	// attempts.  If a connection attempt does not succeed, then
	// the socket will wait this long before trying again.  An optional
	// exponential backoff may cause this value to grow.  See
	// OptionMaxReconnectTime for more details.   This is a
	// time.Duration whose default value is 100msec.  This option must
	// be set before starting any dialers.
	OptionReconnectTime = "RECONNECT-TIME"

	// OptionMaxReconnectTime is the maximum value of the time between
	// connection attempts, when an exponential backoff is used.  If
	// this value is zero, then exponential backoff is disabled,
	// otherwise the value to wait between attempts grows by roughly a
	// third each time, until it reaches this value.  The default is
	// one minute.  This option must be set before starting any dialers.
	OptionMaxReconnectTime = "MAX-RECONNECT-TIME"

	// OptionBestEffort enables non-blocking send operations on the
	// socket. Normally (for some socket types), a socket will block if
	// there are no receivers, or the receivers are unable to keep up
	// with the sender. (Multicast sockets types like Bus or Star do not
	// behave this way.)  If this option is set, instead of blocking, the
	// message will be silently discarded.  The value is a boolean, and
	// defaults to False.
	OptionBestEffort = "BEST-EFFORT"

	// OptionProtocol is the protocol number of the socket, as a uint16.
	// This option is read-only.
	OptionProtocol = "PROTOCOL"

	// OptionPeer is the protocol number of the expected peer, as a
	// uint16.  This option is read-only.
	OptionPeer = "PEER"

	// OptionPipeCount is the number of pipes currently attached to the
	// socket, as an int.  This option is read-only.
	OptionPipeCount = "PIPE-COUNT"

	// OptionMessagesSent is the count of messages the application has
	// handed to the socket successfully, as a uint64.  Read-only.
	OptionMessagesSent = "MESSAGES-SENT"

	// OptionMessagesReceived is the count of messages the socket has
	// delivered to the application, as a uint64.  Read-only.
	OptionMessagesReceived = "MESSAGES-RECEIVED"

	// OptionLogger is the *logrus.Logger the socket reports connection
	// activity to.  The default is the logrus standard logger.
	OptionLogger = "LOGGER"
)
