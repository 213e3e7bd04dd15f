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

// Package ws implements a simple WebSocket transport.  Each SP message
// travels as one binary WebSocket message, and the SP protocol is
// negotiated as the WebSocket subprotocol "<name>.sp.nanomsg.org".
// To enable it simply import it.
package ws

import (
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/transport"
)

// Some special options
const (
	// OptionWebSocketMux is a retrieve-only property used to obtain
	// the *http.ServeMux instance associated with the server.  This
	// can be used to subsequently register additional handlers for
	// different URIs.  This option is only valid on a Listener.
	OptionWebSocketMux = "WEBSOCKET-MUX"

	// OptionWebSocketCheckOrigin controls the check of the origin of
	// the request.  When true (the default) a browser request whose
	// Origin does not match the Host is refused.
	OptionWebSocketCheckOrigin = "WEBSOCKET-CHECKORIGIN"
)

const (
	// Transport is a transport.Transport for WebSocket.
	Transport = wsTran(0)
)

func init() {
	transport.RegisterTransport(Transport)
}

func subprotocol(number uint16) string {
	return sp.ProtocolName(number) + ".sp.nanomsg.org"
}

// wsPipe implements the Pipe interface on a websocket
type wsPipe struct {
	ws    *websocket.Conn
	proto transport.ProtocolInfo
	open  bool
	wg    sync.WaitGroup
	props map[string]interface{}
	sync.Mutex
}

func newPipe(ws *websocket.Conn, proto transport.ProtocolInfo, maxrx int) *wsPipe {
	w := &wsPipe{ws: ws, proto: proto, open: true}
	if maxrx > 0 {
		w.ws.SetReadLimit(int64(maxrx))
	}
	w.props = map[string]interface{}{
		sp.OptionLocalAddr:  ws.LocalAddr(),
		sp.OptionRemoteAddr: ws.RemoteAddr(),
	}
	w.wg.Add(1)
	return w
}

func (w *wsPipe) Recv() (*sp.Message, error) {

	// We ignore the message type for receive.
	_, body, err := w.ws.ReadMessage()
	if err == websocket.ErrReadLimit {
		return nil, errors.ErrTooLong
	} else if err != nil {
		return nil, err
	}
	msg := sp.NewMessage(len(body))
	msg.Body = append(msg.Body, body...)
	return msg, nil
}

func (w *wsPipe) Send(m *sp.Message) error {

	var buf []byte

	if len(m.Header) > 0 {
		buf = make([]byte, 0, len(m.Header)+len(m.Body))
		buf = append(buf, m.Header...)
		buf = append(buf, m.Body...)
	} else {
		buf = m.Body
	}
	if err := w.ws.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return err
	}
	m.Free()
	return nil
}

func (w *wsPipe) LocalProtocol() uint16 {
	return w.proto.Self
}

func (w *wsPipe) RemoteProtocol() uint16 {
	return w.proto.Peer
}

func (w *wsPipe) Close() error {
	w.Lock()
	defer w.Unlock()
	if w.open {
		w.open = false
		w.ws.Close()
		w.wg.Done()
	}
	return nil
}

func (w *wsPipe) GetOption(name string) (interface{}, error) {
	if v, ok := w.props[name]; ok {
		return v, nil
	}
	return nil, errors.ErrBadOption
}

type dialer struct {
	addr  string // url
	proto transport.ProtocolInfo
	opts  transport.Options
}

// Dial connects and upgrades.  A server that does not speak our peer's
// protocol is refused with ErrBadProto.
func (d *dialer) Dial() (transport.Pipe, error) {
	wd := &websocket.Dialer{}
	wd.Subprotocols = []string{subprotocol(d.proto.Peer)}

	ws, _, err := wd.Dial(d.addr, nil)
	if err != nil {
		if err == websocket.ErrBadHandshake {
			return nil, errors.ErrConnRefused
		}
		return nil, transport.MapError(err)
	}
	if ws.Subprotocol() != subprotocol(d.proto.Peer) {
		ws.Close()
		return nil, errors.ErrBadProto
	}
	return newPipe(ws, d.proto, d.opts.MaxRecvSize()), nil
}

func (d *dialer) SetOption(n string, v interface{}) error {
	return d.opts.Set(n, v)
}

func (d *dialer) GetOption(n string) (interface{}, error) {
	return d.opts.Get(n)
}

type listener struct {
	pending  []*wsPipe
	lock     sync.Mutex
	cv       sync.Cond
	running  bool
	closed   bool
	ug       websocket.Upgrader
	htsvr    *http.Server
	mux      *http.ServeMux
	url      *url.URL
	bound    net.Addr
	listener net.Listener
	proto    transport.ProtocolInfo
	opts     transport.Options
}

func (l *listener) SetOption(n string, v interface{}) error {
	if err := l.opts.Set(n, v); err != nil {
		return err
	}
	if n == OptionWebSocketCheckOrigin {
		l.lock.Lock()
		if v.(bool) {
			l.ug.CheckOrigin = nil
		} else {
			l.ug.CheckOrigin = func(r *http.Request) bool { return true }
		}
		l.lock.Unlock()
	}
	return nil
}

func (l *listener) GetOption(n string) (interface{}, error) {
	switch n {
	case OptionWebSocketMux:
		return l.mux, nil
	case sp.OptionLocalAddr:
		l.lock.Lock()
		defer l.lock.Unlock()
		if l.bound != nil {
			return l.bound, nil
		}
	}
	return l.opts.Get(n)
}

func (l *listener) Listen() error {
	var taddr *net.TCPAddr
	var err error

	// We listen separately, that way we can catch and deal with the
	// case of a port already in use.
	if taddr, err = transport.ResolveTCPAddr(l.url.Host); err != nil {
		return err
	}

	tlist, err := net.ListenTCP("tcp", taddr)
	if err != nil {
		return transport.MapError(err)
	}

	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		tlist.Close()
		return errors.ErrClosed
	}
	l.listener = tlist
	l.bound = tlist.Addr()
	l.pending = nil
	l.running = true
	l.htsvr = &http.Server{Handler: l.mux}
	htsvr := l.htsvr
	l.lock.Unlock()

	go htsvr.Serve(tlist)

	return nil
}

func (l *listener) Accept() (transport.Pipe, error) {
	var w *wsPipe

	l.lock.Lock()
	defer l.lock.Unlock()

	for {
		if !l.running || l.closed {
			return nil, errors.ErrClosed
		}
		if len(l.pending) == 0 {
			l.cv.Wait()
			continue
		}
		w = l.pending[0]
		l.pending = l.pending[1:]
		break
	}

	return w, nil
}

func (l *listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.lock.Lock()
	ug := l.ug
	l.lock.Unlock()

	ws, err := ug.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	l.lock.Lock()
	if !l.running || l.closed || ws.Subprotocol() != subprotocol(l.proto.Self) {
		ws.Close()
		l.lock.Unlock()
		return
	}

	p := newPipe(ws, l.proto, l.opts.MaxRecvSize())
	l.pending = append(l.pending, p)
	l.cv.Broadcast()
	l.lock.Unlock()

	// We must not return before the socket is closed, because
	// our caller will close the websocket on our return.
	p.wg.Wait()
}

func (l *listener) Close() error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return errors.ErrClosed
	}
	l.closed = true
	l.running = false
	htsvr := l.htsvr
	tlist := l.listener
	l.listener = nil
	pending := l.pending
	l.pending = nil
	l.cv.Broadcast()
	l.lock.Unlock()

	// Serve may not have picked up the listener yet, so release the
	// address here rather than leave it to the server.
	if tlist != nil {
		tlist.Close()
	}
	if htsvr != nil {
		htsvr.Close()
	}
	for _, w := range pending {
		w.Close()
	}
	return nil
}

func (l *listener) Address() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.bound != nil {
		u := *l.url
		u.Host = l.bound.String()
		return u.String()
	}
	return l.url.String()
}

type wsTran int

func (wsTran) Scheme() string {
	return "ws"
}

func newOptions() transport.Options {
	return transport.NewOptions(map[string]interface{}{
		sp.OptionMaxRecvSize: 0,
	})
}

func (t wsTran) NewDialer(addr string, sock sp.Socket) (transport.Dialer, error) {
	if _, err := transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(addr); err != nil {
		return nil, errors.ErrBadAddr
	}
	return &dialer{addr: addr, proto: sock.Info(), opts: newOptions()}, nil
}

func (t wsTran) NewListener(addr string, sock sp.Socket) (transport.Listener, error) {
	var err error

	if _, err = transport.StripScheme(t, addr); err != nil {
		return nil, err
	}
	l := &listener{proto: sock.Info(), opts: newOptions()}
	l.opts[OptionWebSocketCheckOrigin] = true
	l.cv.L = &l.lock
	l.ug.Subprotocols = []string{subprotocol(l.proto.Self)}

	if l.url, err = url.ParseRequestURI(addr); err != nil {
		return nil, errors.ErrBadAddr
	}
	if len(l.url.Path) == 0 {
		l.url.Path = "/"
	}
	l.mux = http.NewServeMux()
	l.mux.Handle(l.url.Path, l)

	return l, nil
}
