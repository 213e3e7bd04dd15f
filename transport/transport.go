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

// Package transport holds what transport implementations share: the
// registry consulted when a socket dials or listens, address helpers,
// option storage, and the SP framing used by stream transports.  Only
// transport implementations should need to import this package.
package transport

import (
	stderrors "errors"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// Message is an alias for the sp.Message
type Message = sp.Message

// ProtocolInfo is stuff that describes a protocol.
type ProtocolInfo = sp.ProtocolInfo

// Pipe is a transport pipe.
type Pipe = sp.TranPipe

// Dialer is a factory that creates Pipes by connecting to remote listeners.
type Dialer = sp.TranDialer

// Listener is a factory that creates Pipes by listening to inbound dialers.
type Listener = sp.TranListener

// Transport is our transport operations.
type Transport = sp.Transport

// StripScheme removes the leading scheme (such as "http://") from an address
// string.  This is mostly a utility for benefit of transport providers.
func StripScheme(t Transport, addr string) (string, error) {
	if !strings.HasPrefix(addr, t.Scheme()+"://") {
		return addr, errors.ErrBadTran
	}
	return addr[len(t.Scheme()+"://"):], nil
}

// ResolveTCPAddr is like net.ResolveTCPAddr, but it handles the
// wildcard used in nanomsg URLs, replacing it with an empty
// string to indicate that all local interfaces be used.
func ResolveTCPAddr(addr string) (*net.TCPAddr, error) {
	if strings.HasPrefix(addr, "*") {
		addr = addr[1:]
	}
	return net.ResolveTCPAddr("tcp", addr)
}

// MapError converts the operating system errors that the socket
// contract names into their canonical values.  Other errors are
// returned unchanged.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, syscall.ECONNREFUSED), stderrors.Is(err, os.ErrNotExist):
		return errors.ErrConnRefused
	case stderrors.Is(err, syscall.EADDRINUSE):
		return errors.ErrAddrInUse
	case stderrors.Is(err, net.ErrClosed):
		return errors.ErrClosed
	}
	return err
}

var lock sync.RWMutex
var transports = map[string]Transport{}

// RegisterTransport is used to register the transport globally,
// after which it will be available for all sockets.  The
// transport will override any others registered for the same
// scheme.
func RegisterTransport(t Transport) {
	lock.Lock()
	transports[t.Scheme()] = t
	lock.Unlock()
}

// GetTransport is used by a socket to lookup the transport
// for a given scheme.
func GetTransport(scheme string) Transport {
	lock.RLock()
	defer lock.RUnlock()
	if t, ok := transports[scheme]; ok {
		return t
	}
	return nil
}
