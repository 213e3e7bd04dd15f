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

// Package inproc implements a simple inproc transport, connecting
// sockets within the same process.  Addresses are arbitrary strings
// after the inproc:// prefix.
package inproc

import (
	"sync"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/transport"
)

// inproc implements the Pipe interface on top of channels.  The
// channels are unbuffered, so a send completes only when the peer
// takes the message.
type inproc struct {
	rq     chan *sp.Message
	wq     chan *sp.Message
	closeq chan struct{}
	readyq chan struct{}
	peerq  chan struct{}
	proto  sp.ProtocolInfo
	addr   string
	once   sync.Once
}

type listener struct {
	addr      string
	proto     sp.ProtocolInfo
	accepters []*inproc
	bound     bool
	closed    bool
	opts      transport.Options
}

type dialer struct {
	addr  string
	proto sp.ProtocolInfo
	opts  transport.Options
}

type inprocTran int

const (
	// Transport is a transport.Transport for intra-process communication.
	Transport = inprocTran(0)
)

var listeners struct {
	// Who is listening, on which "address"?
	byAddr map[string]*listener
	cv     sync.Cond
	mx     sync.Mutex
}

func init() {
	listeners.byAddr = make(map[string]*listener)
	listeners.cv.L = &listeners.mx
	transport.RegisterTransport(Transport)
}

func newPipe(addr string, proto sp.ProtocolInfo) *inproc {
	return &inproc{
		addr:   addr,
		proto:  proto,
		closeq: make(chan struct{}),
		readyq: make(chan struct{}),
	}
}

func (p *inproc) Recv() (*sp.Message, error) {
	select {
	case m := <-p.rq:
		return m, nil
	case <-p.closeq:
		return nil, errors.ErrClosed
	case <-p.peerq:
		return nil, errors.ErrClosed
	}
}

func (p *inproc) Send(m *sp.Message) error {

	// The receiver gets a fresh copy of the message, to break
	// ownership, with header and body joined as on a stream.
	nmsg := sp.NewMessage(len(m.Header) + len(m.Body))
	nmsg.Body = append(nmsg.Body, m.Header...)
	nmsg.Body = append(nmsg.Body, m.Body...)
	select {
	case p.wq <- nmsg:
		m.Free()
		return nil
	case <-p.closeq:
	case <-p.peerq:
	}
	nmsg.Free()
	return errors.ErrClosed
}

func (p *inproc) LocalProtocol() uint16 {
	return p.proto.Self
}

func (p *inproc) RemoteProtocol() uint16 {
	return p.proto.Peer
}

func (p *inproc) Close() error {
	p.once.Do(func() { close(p.closeq) })
	return nil
}

func (p *inproc) GetOption(n string) (interface{}, error) {
	switch n {
	case sp.OptionRemoteAddr, sp.OptionLocalAddr:
		return p.addr, nil
	}
	return nil, errors.ErrBadOption
}

func (d *dialer) Dial() (sp.TranPipe, error) {

	var server *inproc
	client := newPipe(d.addr, d.proto)

	listeners.mx.Lock()

	// NB: No timeouts here!
	for {
		var l *listener
		var ok bool
		if l, ok = listeners.byAddr[d.addr]; !ok || l == nil {
			listeners.mx.Unlock()
			return nil, errors.ErrConnRefused
		}

		if client.proto.Peer != l.proto.Self || l.proto.Peer != client.proto.Self {
			listeners.mx.Unlock()
			return nil, errors.ErrBadProto
		}

		if len(l.accepters) != 0 {
			server = l.accepters[len(l.accepters)-1]
			l.accepters = l.accepters[:len(l.accepters)-1]
			break
		}

		listeners.cv.Wait()
	}

	listeners.mx.Unlock()

	server.wq = make(chan *sp.Message)
	server.rq = make(chan *sp.Message)
	client.rq = server.wq
	client.wq = server.rq
	server.peerq = client.closeq
	client.peerq = server.closeq

	close(server.readyq)
	close(client.readyq)
	return client, nil
}

func (d *dialer) SetOption(n string, v interface{}) error {
	return d.opts.Set(n, v)
}

func (d *dialer) GetOption(n string) (interface{}, error) {
	return d.opts.Get(n)
}

func (l *listener) Listen() error {
	listeners.mx.Lock()
	defer listeners.mx.Unlock()
	if l.closed {
		return errors.ErrClosed
	}
	if l.bound {
		return errors.ErrAddrInUse
	}
	if _, ok := listeners.byAddr[l.addr]; ok {
		return errors.ErrAddrInUse
	}
	l.bound = true
	listeners.byAddr[l.addr] = l
	listeners.cv.Broadcast()
	return nil
}

func (l *listener) Accept() (sp.TranPipe, error) {
	server := newPipe(l.addr, l.proto)

	listeners.mx.Lock()
	if l.closed || !l.bound {
		listeners.mx.Unlock()
		return nil, errors.ErrClosed
	}
	l.accepters = append(l.accepters, server)
	listeners.cv.Broadcast()
	listeners.mx.Unlock()

	select {
	case <-server.readyq:
		return server, nil
	case <-server.closeq:
		return nil, errors.ErrClosed
	}
}

func (l *listener) Close() error {
	listeners.mx.Lock()
	if l.closed {
		listeners.mx.Unlock()
		return errors.ErrClosed
	}
	l.closed = true
	if listeners.byAddr[l.addr] == l {
		delete(listeners.byAddr, l.addr)
	}
	servers := l.accepters
	l.accepters = nil
	listeners.cv.Broadcast()
	listeners.mx.Unlock()

	for _, s := range servers {
		s.Close()
	}

	return nil
}

func (l *listener) Address() string {
	return l.addr
}

func (l *listener) SetOption(n string, v interface{}) error {
	return l.opts.Set(n, v)
}

func (l *listener) GetOption(n string) (interface{}, error) {
	return l.opts.Get(n)
}

func (t inprocTran) Scheme() string {
	return "inproc"
}

func (t inprocTran) NewDialer(addr string, sock sp.Socket) (sp.TranDialer, error) {
	if _, err := transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	return &dialer{addr: addr, proto: sock.Info(), opts: transport.NewOptions(nil)}, nil
}

func (t inprocTran) NewListener(addr string, sock sp.Socket) (sp.TranListener, error) {
	if _, err := transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	return &listener{addr: addr, proto: sock.Info(), opts: transport.NewOptions(nil)}, nil
}
