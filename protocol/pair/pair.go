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

// Package pair implements the PAIR protocol.  This is a simple 1:1
// messaging pattern.  Only one peer can be connected at a time; any
// further pipes are refused until the peer goes away.
package pair

import (
	"sync"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/protocol"
)

// Protocol identity information.
const (
	Self     = protocol.ProtoPair
	Peer     = protocol.ProtoPair
	SelfName = "pair"
	PeerName = "pair"
)

const defaultQLen = 128

type pipe struct {
	p      protocol.Pipe
	s      *socket
	sendq  *msgq.Queue
	closeq chan struct{}
	closed bool
}

type socket struct {
	closed     bool
	closeq     chan struct{}
	peer       *pipe
	peerq      chan struct{} // closed when a peer attaches
	sendQLen   int
	bestEffort bool
	recvq      *msgq.Queue
	sync.Mutex
}

func init() {
	protocol.Register(info, NewSocket)
}

var info = protocol.Info{
	Self:     Self,
	Peer:     Peer,
	SelfName: SelfName,
	PeerName: PeerName,
}

// SendMsg hands the message to the peer's send queue.  Without a peer
// it waits for one to attach, within the same deadline.  In best
// effort mode it never waits, and drops the message instead.
func (s *socket) SendMsg(m *protocol.Message, deadline time.Time) error {
	for {
		s.Lock()
		if s.closed {
			s.Unlock()
			return protocol.ErrClosed
		}
		p := s.peer
		peerq := s.peerq
		bestEffort := s.bestEffort
		s.Unlock()

		if bestEffort {
			deadline = msgq.NonBlock
		}
		if p == nil {
			err := msgq.Wait(deadline, peerq, s.closeq, protocol.ErrSendTimeout)
			if err == protocol.ErrWouldBlock && bestEffort {
				m.Free()
				return nil
			} else if err != nil {
				return err
			}
			continue
		}

		switch err := p.sendq.PutAbort(m, deadline, s.closeq); err {
		case nil:
			return nil
		case protocol.ErrClosed:
			// The peer went away under us; look again.
			continue
		case protocol.ErrCanceled:
			return protocol.ErrClosed
		case protocol.ErrWouldBlock:
			if bestEffort {
				m.Free()
				return nil
			}
			return err
		default:
			return err
		}
	}
}

func (s *socket) RecvMsg(deadline time.Time) (*protocol.Message, error) {
	return s.recvq.Get(deadline)
}

func (s *socket) SetOption(name string, value interface{}) error {
	switch name {

	case protocol.OptionBestEffort:
		if v, ok := value.(bool); ok {
			s.Lock()
			s.bestEffort = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionReadQLen:
		if v, ok := value.(int); ok && v >= 0 {
			return s.recvq.Resize(v)
		}
		return protocol.ErrBadValue

	case protocol.OptionWriteQLen:
		if v, ok := value.(int); ok && v >= 0 {
			s.Lock()
			s.sendQLen = v
			p := s.peer
			s.Unlock()
			if p != nil {
				p.sendq.Resize(v)
			}
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionRaw:
		return protocol.ErrReadOnly
	}

	return protocol.ErrBadOption
}

func (s *socket) GetOption(option string) (interface{}, error) {
	switch option {
	case protocol.OptionRaw:
		return false, nil
	case protocol.OptionBestEffort:
		s.Lock()
		v := s.bestEffort
		s.Unlock()
		return v, nil
	case protocol.OptionReadQLen:
		return s.recvq.Cap(), nil
	case protocol.OptionWriteQLen:
		s.Lock()
		v := s.sendQLen
		s.Unlock()
		return v, nil
	}

	return nil, protocol.ErrBadOption
}

func (s *socket) AddPipe(pp protocol.Pipe) error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return protocol.ErrClosed
	}
	if s.peer != nil {
		return protocol.ErrProtoState
	}
	p := &pipe{
		p:      pp,
		s:      s,
		sendq:  msgq.New(s.sendQLen),
		closeq: make(chan struct{}),
	}
	s.peer = p
	close(s.peerq)
	go p.receiver()
	go p.sender()
	return nil
}

func (s *socket) RemovePipe(pp protocol.Pipe) {
	s.Lock()
	p := s.peer
	if p == nil || pp != p.p {
		s.Unlock()
		return
	}
	s.Unlock()
	p.detach()
}

func (*socket) Info() protocol.Info {
	return info
}

func (s *socket) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return protocol.ErrClosed
	}
	s.closed = true
	p := s.peer
	s.Unlock()

	close(s.closeq)
	s.recvq.Close()
	if p != nil {
		p.Close()
	}
	return nil
}

func (p *pipe) receiver() {
	s := p.s
	for {
		m := p.p.RecvMsg()
		if m == nil {
			break
		}
		if err := s.recvq.PutAbort(m, msgq.Forever, p.closeq); err != nil {
			m.Free()
			break
		}
	}
	p.Close()
}

func (p *pipe) sender() {
	for {
		m, err := p.sendq.GetAbort(msgq.Forever, p.closeq)
		if err != nil {
			break
		}
		if err := p.p.SendMsg(m); err != nil {
			m.Free()
			break
		}
	}
	p.Close()
}

// detach forgets the pipe.  Messages still queued for it are dropped.
func (p *pipe) detach() bool {
	s := p.s
	s.Lock()
	if p.closed {
		s.Unlock()
		return false
	}
	p.closed = true
	if s.peer == p {
		s.peer = nil
		s.peerq = make(chan struct{})
	}
	s.Unlock()
	close(p.closeq)
	p.sendq.Close()
	return true
}

func (p *pipe) Close() error {
	if !p.detach() {
		return protocol.ErrClosed
	}
	p.p.Close()
	return nil
}

// NewProtocol returns a new protocol implementation.
func NewProtocol() protocol.Protocol {
	s := &socket{
		closeq:   make(chan struct{}),
		peerq:    make(chan struct{}),
		recvq:    msgq.New(defaultQLen),
		sendQLen: defaultQLen,
	}
	return s
}

// NewSocket allocates a new Socket using the PAIR protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
