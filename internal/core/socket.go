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

// Package core implements the protocol independent parts of a socket:
// its life cycle, its pipes, its dialers and listeners, and the options
// that govern timing.  Protocols plug in through sp.ProtocolBase.
package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
	"nanomsg.org/go/sp/internal/atom"
	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/transport"
)

// defaultMaxRxSize is the default maximum Rx size
const defaultMaxRxSize = 1024 * 1024

const defaultReconnMinTime = time.Millisecond * 100

const defaultReconnMaxTime = time.Minute

// socket is the meaty part of the core information.
type socket struct {
	proto sp.ProtocolBase

	sync.Mutex

	closed   atom.Bool // true if Socket was closed at API level
	shutdown atom.Bool // true once Shutdown has run

	recvTimeout   time.Duration // relative timeout for receives
	sendTimeout   time.Duration // relative timeout for sends
	reconnMinTime time.Duration // reconnect time after error or disconnect
	reconnMaxTime time.Duration // max reconnect interval
	maxRxSize     int           // max recv size
	log           *logrus.Logger

	listeners map[*listener]struct{}
	dialers   map[*dialer]struct{}
	pipes     map[uint32]*pipe

	translk sync.RWMutex
	trans   map[string]sp.Transport

	hook sp.PipeEventHook

	sent     atom.Uint64
	received atom.Uint64
}

func newSocket(proto sp.ProtocolBase) *socket {
	s := &socket{
		proto:         proto,
		recvTimeout:   sp.Infinite,
		sendTimeout:   sp.Infinite,
		reconnMinTime: defaultReconnMinTime,
		reconnMaxTime: defaultReconnMaxTime,
		maxRxSize:     defaultMaxRxSize,
		log:           logrus.StandardLogger(),
		trans:         make(map[string]sp.Transport),
		listeners:     make(map[*listener]struct{}),
		dialers:       make(map[*dialer]struct{}),
		pipes:         make(map[uint32]*pipe),
	}
	return s
}

// MakeSocket is intended for use by Protocol implementations.  The intention
// is that they can wrap this to provide a "proto.NewSocket()" implementation.
func MakeSocket(proto sp.ProtocolBase) sp.Socket {
	return newSocket(proto)
}

// String just emits a very high level debug.  This avoids
// triggering race conditions from trying to print %v without
// holding locks on structure members.
func (s *socket) String() string {
	return fmt.Sprintf("SOCKET[%s](%p)", s.proto.Info().SelfName, s)
}

func (s *socket) logger() *logrus.Entry {
	s.Lock()
	l := s.log
	s.Unlock()
	return l.WithField("socket", s.String())
}

func (s *socket) logPipe(p *pipe) *logrus.Entry {
	return s.logger().WithFields(logrus.Fields{
		"pipe": p.id,
		"addr": p.Address(),
	})
}

func (s *socket) pipeHook() sp.PipeEventHook {
	s.Lock()
	defer s.Unlock()
	return s.hook
}

func (s *socket) stopped() bool {
	return s.closed.Get() || s.shutdown.Get()
}

func (s *socket) addPipe(tp sp.TranPipe, d *dialer, l *listener) error {
	p := newPipe(tp, s, d, l)

	// Either listener or dialer is non-nil.
	if l == nil && d == nil {
		panic("both l and d should not be nil")
	}

	hook := s.pipeHook()
	if hook != nil {
		hook(sp.PipeEventAttaching, p)
	}

	s.Lock()
	if s.stopped() || p.state.Get() != pipeConnecting {
		s.Unlock()
		p.Close()
		return errors.ErrClosed
	}
	if err := s.proto.AddPipe(p); err != nil {
		s.Unlock()
		s.logPipe(p).WithError(err).Debug("pipe rejected by protocol")
		p.Close()
		return err
	}
	s.pipes[p.id] = p
	s.Unlock()

	if !p.open() {
		return errors.ErrClosed
	}
	s.logPipe(p).Debug("pipe attached")
	if d != nil {
		// Resets the redial backoff; only a pipe the protocol
		// accepted counts as a good connection.
		d.pipeConnected()
	}
	if hook != nil {
		hook(sp.PipeEventAttached, p)
	}
	return nil
}

// remPipe detaches the pipe from the protocol, if it was attached.
// This runs under the socket lock so that it cannot interleave with
// addPipe; protocols must not call back into the socket from
// RemovePipe.
func (s *socket) remPipe(p *pipe) {
	s.Lock()
	if q, ok := s.pipes[p.id]; ok && q == p {
		delete(s.pipes, p.id)
		s.proto.RemovePipe(p)
	}
	s.Unlock()
}

func (s *socket) remDialer(d *dialer) {
	s.Lock()
	delete(s.dialers, d)
	s.Unlock()
}

func (s *socket) remListener(l *listener) {
	s.Lock()
	delete(s.listeners, l)
	s.Unlock()
}

// teardown closes everything attached to the socket, and then the
// protocol, which wakes any callers still waiting on it.
func (s *socket) teardown() {
	s.Lock()
	listeners := make([]*listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	dialers := make([]*dialer, 0, len(s.dialers))
	for d := range s.dialers {
		dialers = append(dialers, d)
	}
	pipes := make([]*pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.Unlock()

	for _, l := range listeners {
		l.Close()
	}
	for _, d := range dialers {
		d.Close()
	}
	for _, p := range pipes {
		p.Close()
	}

	s.proto.Close()
}

func (s *socket) Close() error {
	if s.closed.Swap(true) {
		return errors.ErrClosed
	}
	s.teardown()
	s.logger().Debug("socket closed")
	return nil
}

func (s *socket) Shutdown() error {
	if s.closed.Get() || s.shutdown.Swap(true) {
		return errors.ErrClosed
	}
	s.teardown()
	s.logger().Debug("socket shut down")
	return nil
}

func (s *socket) Info() sp.ProtocolInfo {
	return s.proto.Info()
}

func (s *socket) SendMsgFlags(msg *sp.Message, flags sp.Flags) error {
	if s.stopped() {
		return errors.ErrClosed
	}
	deadline := msgq.NonBlock
	if flags&sp.FlagNonBlock == 0 {
		s.Lock()
		deadline = msgq.Deadline(s.sendTimeout)
		s.Unlock()
	}
	if err := s.proto.SendMsg(msg, deadline); err != nil {
		return err
	}
	s.sent.Inc()
	return nil
}

func (s *socket) SendMsg(msg *sp.Message) error {
	return s.SendMsgFlags(msg, 0)
}

func (s *socket) Send(b []byte) error {
	msg := sp.NewMessage(len(b))
	msg.Body = append(msg.Body, b...)
	if err := s.SendMsg(msg); err != nil {
		msg.Free()
		return err
	}
	return nil
}

func (s *socket) RecvMsgFlags(flags sp.Flags) (*sp.Message, error) {
	if s.stopped() {
		return nil, errors.ErrClosed
	}
	deadline := msgq.NonBlock
	if flags&sp.FlagNonBlock == 0 {
		s.Lock()
		deadline = msgq.Deadline(s.recvTimeout)
		s.Unlock()
	}
	msg, err := s.proto.RecvMsg(deadline)
	if err != nil {
		return nil, err
	}
	s.received.Inc()
	return msg, nil
}

func (s *socket) RecvMsg() (*sp.Message, error) {
	return s.RecvMsgFlags(0)
}

func (s *socket) Recv() ([]byte, error) {
	msg, err := s.RecvMsg()
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, len(msg.Body))
	b = append(b, msg.Body...)
	msg.Free()
	return b, nil
}

func (s *socket) getTransport(addr string) sp.Transport {
	var i int

	if i = strings.Index(addr, "://"); i < 0 {
		return nil
	}
	scheme := addr[:i]

	s.translk.RLock()
	t, ok := s.trans[scheme]
	s.translk.RUnlock()

	if t != nil && ok {
		return t
	}
	return transport.GetTransport(scheme)
}

func (s *socket) AddTransport(t sp.Transport) {
	s.translk.Lock()
	s.trans[t.Scheme()] = t
	s.translk.Unlock()
}

func (s *socket) SetPipeEventHook(hook sp.PipeEventHook) sp.PipeEventHook {
	s.Lock()
	old := s.hook
	s.hook = hook
	s.Unlock()
	return old
}

func (s *socket) DialFlags(addr string, flags sp.Flags) error {
	d, err := s.NewDialer(addr, nil)
	if err != nil {
		return err
	}
	return d.Dial(flags)
}

func (s *socket) Dial(addr string) error {
	return s.DialFlags(addr, 0)
}

func (s *socket) NewDialer(addr string, options map[string]interface{}) (sp.Dialer, error) {
	if s.stopped() {
		return nil, errors.ErrClosed
	}
	t := s.getTransport(addr)
	if t == nil {
		return nil, errors.ErrBadTran
	}
	td, err := t.NewDialer(addr, s)
	if err != nil {
		return nil, err
	}
	s.Lock()
	d := &dialer{
		d:             td,
		s:             s,
		reconnMinTime: s.reconnMinTime,
		reconnMaxTime: s.reconnMaxTime,
		addr:          addr,
	}
	maxRxSize := s.maxRxSize
	s.Unlock()

	for n, v := range options {
		if err := d.SetOption(n, v); err != nil {
			return nil, err
		}
	}
	if _, ok := options[sp.OptionMaxRecvSize]; !ok {
		err = td.SetOption(sp.OptionMaxRecvSize, maxRxSize)
		if err != nil && err != errors.ErrBadOption {
			return nil, err
		}
	}

	s.Lock()
	if s.stopped() {
		s.Unlock()
		return nil, errors.ErrClosed
	}
	s.dialers[d] = struct{}{}
	s.Unlock()
	return d, nil
}

func (s *socket) ListenFlags(addr string, flags sp.Flags) error {
	l, err := s.NewListener(addr, nil)
	if err != nil {
		return err
	}
	return l.Listen(flags)
}

func (s *socket) Listen(addr string) error {
	return s.ListenFlags(addr, 0)
}

func (s *socket) NewListener(addr string, options map[string]interface{}) (sp.Listener, error) {
	if s.stopped() {
		return nil, errors.ErrClosed
	}
	t := s.getTransport(addr)
	if t == nil {
		return nil, errors.ErrBadTran
	}
	tl, err := t.NewListener(addr, s)
	if err != nil {
		return nil, err
	}
	for n, v := range options {
		if err = tl.SetOption(n, v); err != nil {
			tl.Close()
			return nil, err
		}
	}
	s.Lock()
	maxRxSize := s.maxRxSize
	s.Unlock()
	if _, ok := options[sp.OptionMaxRecvSize]; !ok {
		err = tl.SetOption(sp.OptionMaxRecvSize, maxRxSize)
		if err != nil && err != errors.ErrBadOption {
			tl.Close()
			return nil, err
		}
	}
	l := &listener{
		l:    tl,
		s:    s,
		addr: addr,
	}
	s.Lock()
	if s.stopped() {
		s.Unlock()
		tl.Close()
		return nil, errors.ErrClosed
	}
	s.listeners[l] = struct{}{}
	s.Unlock()

	return l, nil
}

func (s *socket) SetOption(name string, value interface{}) error {
	if s.closed.Get() {
		return errors.ErrClosed
	}

	switch name {
	case sp.OptionRecvDeadline, sp.OptionSendDeadline:
		v, ok := value.(time.Duration)
		if !ok {
			return errors.ErrBadValue
		}
		if v < 0 {
			v = sp.Infinite
		}
		s.Lock()
		if name == sp.OptionRecvDeadline {
			s.recvTimeout = v
		} else {
			s.sendTimeout = v
		}
		s.Unlock()
		return nil

	case sp.OptionLogger:
		v, ok := value.(*logrus.Logger)
		if !ok || v == nil {
			return errors.ErrBadValue
		}
		s.Lock()
		s.log = v
		s.Unlock()
		return nil

	case sp.OptionMaxRecvSize:
		v, ok := value.(int)
		if !ok || v < 0 {
			return errors.ErrBadValue
		}
		s.Lock()
		s.maxRxSize = v
		s.Unlock()

	case sp.OptionReconnectTime, sp.OptionMaxReconnectTime:
		v, ok := value.(time.Duration)
		if !ok || v < 0 {
			return errors.ErrBadValue
		}
		s.Lock()
		if name == sp.OptionReconnectTime {
			s.reconnMinTime = v
		} else {
			s.reconnMaxTime = v
		}
		s.Unlock()
		return nil

	case sp.OptionProtocol, sp.OptionPeer, sp.OptionPipeCount,
		sp.OptionMessagesSent, sp.OptionMessagesReceived:
		return errors.ErrReadOnly

	default:
		return s.proto.SetOption(name, value)
	}

	// Only the receive size limit reaches here; it also applies to
	// endpoints already created.
	s.Lock()
	dialers := make([]*dialer, 0, len(s.dialers))
	for d := range s.dialers {
		dialers = append(dialers, d)
	}
	listeners := make([]*listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.Unlock()
	// Transports without a receive limit refuse it; that is not an
	// error for the socket.
	for _, d := range dialers {
		if err := d.SetOption(name, value); err != nil {
			s.logger().WithError(err).WithFields(logrus.Fields{
				"addr":   d.Address(),
				"option": name,
			}).Debug("option not applied to dialer")
		}
	}
	for _, l := range listeners {
		if err := l.SetOption(name, value); err != nil {
			s.logger().WithError(err).WithFields(logrus.Fields{
				"addr":   l.Address(),
				"option": name,
			}).Debug("option not applied to listener")
		}
	}
	return nil
}

func (s *socket) GetOption(name string) (interface{}, error) {
	if s.closed.Get() {
		return nil, errors.ErrClosed
	}

	s.Lock()
	defer s.Unlock()

	switch name {
	case sp.OptionRecvDeadline:
		return s.recvTimeout, nil
	case sp.OptionSendDeadline:
		return s.sendTimeout, nil
	case sp.OptionMaxRecvSize:
		return s.maxRxSize, nil
	case sp.OptionReconnectTime:
		return s.reconnMinTime, nil
	case sp.OptionMaxReconnectTime:
		return s.reconnMaxTime, nil
	case sp.OptionLogger:
		return s.log, nil
	case sp.OptionProtocol:
		return s.proto.Info().Self, nil
	case sp.OptionPeer:
		return s.proto.Info().Peer, nil
	case sp.OptionPipeCount:
		return len(s.pipes), nil
	case sp.OptionMessagesSent:
		return s.sent.Get(), nil
	case sp.OptionMessagesReceived:
		return s.received.Get(), nil
	}
	return s.proto.GetOption(name)
}

func (s *socket) GetOptionBytes(name string, buf []byte) (int, error) {
	v, err := s.GetOption(name)
	if err != nil {
		return 0, err
	}
	b, err := encodeOption(v)
	if err != nil {
		return 0, err
	}
	if len(buf) >= len(b) {
		copy(buf, b)
	}
	return len(b), nil
}

func (s *socket) SetOptionBytes(name string, buf []byte) error {
	v, err := decodeOption(name, buf)
	if err != nil {
		return err
	}
	return s.SetOption(name, v)
}
