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

//go:build windows
// +build windows

// Package ipc implements the IPC transport on top of Windows Named Pipes.
// To enable it simply import it.
package ipc

import (
	"net"
	"sync"

	"github.com/Microsoft/go-winio"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/transport"
)

// Transport is a transport.Transport for IPC.
const Transport = ipcTran(0)

func init() {
	transport.RegisterTransport(Transport)
}

// The options here are pretty specific to Windows Named Pipes.

const (
	// OptionSecurityDescriptor represents a Windows security
	// descriptor in SDDL format (string).  This can only be set on
	// a Listener, and must be set before the Listen routine
	// is called.
	OptionSecurityDescriptor = "WIN-IPC-SECURITY-DESCRIPTOR"

	// OptionInputBufferSize represents the Windows Named Pipe
	// input buffer size in bytes (type int32).  Default is 4096.
	OptionInputBufferSize = "WIN-IPC-INPUT-BUFFER-SIZE"

	// OptionOutputBufferSize represents the Windows Named Pipe
	// output buffer size in bytes (type int32).  Default is 4096.
	OptionOutputBufferSize = "WIN-IPC-OUTPUT-BUFFER-SIZE"
)

const pipePrefix = `\\.\pipe\`

type dialer struct {
	path  string
	proto transport.ProtocolInfo
	opts  transport.Options
}

// Dial implements the Dialer Dial method.  A pipe that does not exist
// is refused.
func (d *dialer) Dial() (transport.Pipe, error) {

	conn, err := winio.DialPipe(pipePrefix+d.path, nil)
	if err != nil {
		if err == winio.ErrTimeout {
			return nil, errors.ErrConnRefused
		}
		return nil, transport.MapError(err)
	}
	return transport.NewConnPipeIPC(conn, d.proto, d.opts)
}

func (d *dialer) SetOption(n string, v interface{}) error {
	return d.opts.Set(n, v)
}

func (d *dialer) GetOption(n string) (interface{}, error) {
	return d.opts.Get(n)
}

type listener struct {
	sync.Mutex
	path     string
	proto    transport.ProtocolInfo
	listener net.Listener
	opts     transport.Options
}

// Listen implements the Listener Listen method.
func (l *listener) Listen() error {

	config := &winio.PipeConfig{
		InputBufferSize:    l.opts[OptionInputBufferSize].(int32),
		OutputBufferSize:   l.opts[OptionOutputBufferSize].(int32),
		SecurityDescriptor: l.opts[OptionSecurityDescriptor].(string),
		MessageMode:        false,
	}

	listener, err := winio.ListenPipe(pipePrefix+l.path, config)
	if err != nil {
		return transport.MapError(err)
	}
	l.Lock()
	l.listener = listener
	l.Unlock()
	return nil
}

func (l *listener) Address() string {
	return "ipc://" + l.path
}

// Accept implements the the Listener Accept method.
func (l *listener) Accept() (transport.Pipe, error) {
	l.Lock()
	listener := l.listener
	l.Unlock()
	if listener == nil {
		return nil, errors.ErrClosed
	}

	conn, err := listener.Accept()
	if err != nil {
		if err == winio.ErrPipeListenerClosed {
			return nil, errors.ErrClosed
		}
		return nil, err
	}
	return transport.NewConnPipeIPC(conn, l.proto, l.opts)
}

// Close implements the Listener Close method.
func (l *listener) Close() error {
	l.Lock()
	listener := l.listener
	l.Unlock()
	if listener != nil {
		listener.Close()
	}
	return nil
}

// SetOption sets an option.  The Windows specific options are typed,
// and must be set before Listen.
func (l *listener) SetOption(name string, val interface{}) error {
	switch name {
	case OptionInputBufferSize, OptionOutputBufferSize:
		if v, ok := val.(int32); ok {
			l.opts[name] = v
			return nil
		}
		return errors.ErrBadValue

	case OptionSecurityDescriptor:
		if v, ok := val.(string); ok {
			l.opts[name] = v
			return nil
		}
		return errors.ErrBadValue
	}
	return l.opts.Set(name, val)
}

func (l *listener) GetOption(name string) (interface{}, error) {
	return l.opts.Get(name)
}

type ipcTran int

// Scheme implements the Transport Scheme method.
func (ipcTran) Scheme() string {
	return "ipc"
}

// NewDialer implements the Transport NewDialer method.
func (t ipcTran) NewDialer(address string, sock sp.Socket) (transport.Dialer, error) {
	var err error

	if address, err = transport.StripScheme(t, address); err != nil {
		return nil, err
	}

	d := &dialer{
		proto: sock.Info(),
		path:  address,
		opts: transport.NewOptions(map[string]interface{}{
			sp.OptionMaxRecvSize: 0,
		}),
	}
	return d, nil
}

// NewListener implements the Transport NewListener method.
func (t ipcTran) NewListener(address string, sock sp.Socket) (transport.Listener, error) {
	var err error

	if address, err = transport.StripScheme(t, address); err != nil {
		return nil, err
	}

	l := &listener{
		proto: sock.Info(),
		path:  address,
		opts: transport.NewOptions(map[string]interface{}{
			OptionInputBufferSize:    int32(4096),
			OptionOutputBufferSize:   int32(4096),
			OptionSecurityDescriptor: "",
			sp.OptionMaxRecvSize:     0,
		}),
	}
	return l, nil
}
