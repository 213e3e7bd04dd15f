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

//go:build !windows && !plan9
// +build !windows,!plan9

// Package ipc implements the IPC transport on top of UNIX domain sockets.
// To enable it simply import it.
package ipc

import (
	"net"
	"sync"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/transport"
)

const (
	// Transport is a transport.Transport for IPC.
	Transport = ipcTran(0)
)

func init() {
	transport.RegisterTransport(Transport)
}

func newOptions() transport.Options {
	return transport.NewOptions(map[string]interface{}{
		sp.OptionMaxRecvSize: 0,
	})
}

type dialer struct {
	addr  *net.UnixAddr
	proto transport.ProtocolInfo
	opts  transport.Options
}

// Dial implements the Dialer Dial method.  A path with nobody
// listening is refused.
func (d *dialer) Dial() (transport.Pipe, error) {

	conn, err := net.DialUnix("unix", nil, d.addr)
	if err != nil {
		return nil, transport.MapError(err)
	}
	return transport.NewConnPipeIPC(conn, d.proto, d.opts)
}

// SetOption implements Dialer SetOption method.
func (d *dialer) SetOption(n string, v interface{}) error {
	return d.opts.Set(n, v)
}

// GetOption implements Dialer GetOption method.
func (d *dialer) GetOption(n string) (interface{}, error) {
	return d.opts.Get(n)
}

type listener struct {
	sync.Mutex
	addr     *net.UnixAddr
	proto    transport.ProtocolInfo
	listener *net.UnixListener
	opts     transport.Options
}

// Listen implements the Listener Listen method.
func (l *listener) Listen() error {
	listener, err := net.ListenUnix("unix", l.addr)
	if err != nil {
		return transport.MapError(err)
	}
	l.Lock()
	l.listener = listener
	l.Unlock()
	return nil
}

func (l *listener) Address() string {
	return "ipc://" + l.addr.String()
}

// Accept implements the the Listener Accept method.
func (l *listener) Accept() (transport.Pipe, error) {
	l.Lock()
	listener := l.listener
	l.Unlock()
	if listener == nil {
		return nil, errors.ErrClosed
	}

	conn, err := listener.AcceptUnix()
	if err != nil {
		return nil, transport.MapError(err)
	}
	return transport.NewConnPipeIPC(conn, l.proto, l.opts)
}

// Close implements the Listener Close method.  The socket file is
// removed.
func (l *listener) Close() error {
	l.Lock()
	listener := l.listener
	l.Unlock()
	if listener != nil {
		listener.Close()
	}
	return nil
}

func (l *listener) SetOption(n string, v interface{}) error {
	return l.opts.Set(n, v)
}

func (l *listener) GetOption(n string) (interface{}, error) {
	return l.opts.Get(n)
}

type ipcTran int

// Scheme implements the Transport Scheme method.
func (ipcTran) Scheme() string {
	return "ipc"
}

// NewDialer implements the Transport NewDialer method.
func (t ipcTran) NewDialer(addr string, sock sp.Socket) (transport.Dialer, error) {
	var err error

	if addr, err = transport.StripScheme(t, addr); err != nil {
		return nil, err
	}

	d := &dialer{
		proto: sock.Info(),
		opts:  newOptions(),
	}
	if d.addr, err = net.ResolveUnixAddr("unix", addr); err != nil {
		return nil, err
	}
	return d, nil
}

// NewListener implements the Transport NewListener method.
func (t ipcTran) NewListener(addr string, sock sp.Socket) (transport.Listener, error) {
	var err error
	l := &listener{
		proto: sock.Info(),
		opts:  newOptions(),
	}

	if addr, err = transport.StripScheme(t, addr); err != nil {
		return nil, err
	}

	if l.addr, err = net.ResolveUnixAddr("unix", addr); err != nil {
		return nil, err
	}

	return l, nil
}
