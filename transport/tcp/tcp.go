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

// Package tcp implements the TCP transport.  To enable it simply
// import it.
package tcp

import (
	"net"
	"sync"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/transport"
)

const (
	// Transport is a transport.Transport for TCP.
	Transport = tcpTran(0)
)

func init() {
	transport.RegisterTransport(Transport)
}

func newOptions() transport.Options {
	return transport.NewOptions(map[string]interface{}{
		sp.OptionNoDelay:     true,
		sp.OptionKeepAlive:   true,
		sp.OptionMaxRecvSize: 0,
	})
}

func configure(conn *net.TCPConn, opts transport.Options) error {
	if err := conn.SetNoDelay(opts.Bool(sp.OptionNoDelay)); err != nil {
		return err
	}
	return conn.SetKeepAlive(opts.Bool(sp.OptionKeepAlive))
}

type dialer struct {
	addr  string
	proto transport.ProtocolInfo
	opts  transport.Options
}

// Dial implements the Dialer Dial method
func (d *dialer) Dial() (transport.Pipe, error) {
	addr, err := transport.ResolveTCPAddr(d.addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		return nil, transport.MapError(err)
	}
	if err = configure(conn, d.opts); err != nil {
		conn.Close()
		return nil, err
	}
	return transport.NewConnPipe(conn, d.proto, d.opts)
}

func (d *dialer) SetOption(n string, v interface{}) error {
	return d.opts.Set(n, v)
}

func (d *dialer) GetOption(n string) (interface{}, error) {
	return d.opts.Get(n)
}

type listener struct {
	sync.Mutex
	addr     string
	bound    net.Addr
	proto    transport.ProtocolInfo
	listener *net.TCPListener
	opts     transport.Options
}

// Listen binds the address.  A port of zero picks a free port, which
// Address then reports.
func (l *listener) Listen() error {
	addr, err := transport.ResolveTCPAddr(l.addr)
	if err != nil {
		return err
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return transport.MapError(err)
	}
	l.Lock()
	l.listener = listener
	l.bound = listener.Addr()
	l.Unlock()
	return nil
}

func (l *listener) Address() string {
	l.Lock()
	defer l.Unlock()
	if l.bound != nil {
		return "tcp://" + l.bound.String()
	}
	return "tcp://" + l.addr
}

func (l *listener) Accept() (transport.Pipe, error) {
	l.Lock()
	listener := l.listener
	l.Unlock()
	if listener == nil {
		return nil, errors.ErrClosed
	}

	conn, err := listener.AcceptTCP()
	if err != nil {
		return nil, transport.MapError(err)
	}
	if err = configure(conn, l.opts); err != nil {
		conn.Close()
		return nil, err
	}
	return transport.NewConnPipe(conn, l.proto, l.opts)
}

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
	if n == sp.OptionLocalAddr {
		l.Lock()
		defer l.Unlock()
		if l.bound != nil {
			return l.bound, nil
		}
	}
	return l.opts.Get(n)
}

type tcpTran int

func (tcpTran) Scheme() string {
	return "tcp"
}

func (t tcpTran) NewDialer(addr string, sock sp.Socket) (transport.Dialer, error) {
	var err error

	if addr, err = transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	// Check the address form up front, so a bad one fails the dial
	// call instead of every attempt.
	if _, err = transport.ResolveTCPAddr(addr); err != nil {
		return nil, errors.ErrBadAddr
	}
	return &dialer{addr: addr, proto: sock.Info(), opts: newOptions()}, nil
}

func (t tcpTran) NewListener(addr string, sock sp.Socket) (transport.Listener, error) {
	var err error

	if addr, err = transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	if _, err = transport.ResolveTCPAddr(addr); err != nil {
		return nil, errors.ErrBadAddr
	}
	return &listener{addr: addr, proto: sock.Info(), opts: newOptions()}, nil
}
