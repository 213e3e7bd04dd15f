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

// Package push implements the PUSH protocol, which is the write side of
// the pipeline pattern.  (PULL is the reader.)  Messages are load
// balanced across the connected pullers; each goes to exactly one.
package push

import (
	"sync"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/protocol"
)

// Protocol identity information.
const (
	Self     = protocol.ProtoPush
	Peer     = protocol.ProtoPull
	SelfName = "push"
	PeerName = "pull"
)

const defaultQLen = 128

type pipe struct {
	p      protocol.Pipe
	s      *socket
	closeq chan struct{}
	once   sync.Once
}

type socket struct {
	closed     bool
	closeq     chan struct{}
	pipes      map[uint32]*pipe
	bestEffort bool
	sendq      *msgq.Queue
	sync.Mutex
}

var info = protocol.Info{
	Self:     Self,
	Peer:     Peer,
	SelfName: SelfName,
	PeerName: PeerName,
}

func init() {
	protocol.Register(info, NewSocket)
}

func (s *socket) SendMsg(m *protocol.Message, deadline time.Time) error {
	s.Lock()
	bestEffort := s.bestEffort
	s.Unlock()

	if bestEffort {
		deadline = msgq.NonBlock
	}
	switch err := s.sendq.PutAbort(m, deadline, s.closeq); err {
	case nil:
		return nil
	case protocol.ErrWouldBlock:
		if bestEffort {
			m.Free()
			return nil
		}
		return err
	case protocol.ErrCanceled:
		return protocol.ErrClosed
	default:
		return err
	}
}

func (*socket) RecvMsg(time.Time) (*protocol.Message, error) {
	return nil, protocol.ErrProtoOp
}

func (s *socket) SetOption(name string, value interface{}) error {
	switch name {
	case protocol.OptionWriteQLen:
		if v, ok := value.(int); ok && v >= 0 {
			return s.sendq.Resize(v)
		}
		return protocol.ErrBadValue

	case protocol.OptionBestEffort:
		if v, ok := value.(bool); ok {
			s.Lock()
			s.bestEffort = v
			s.Unlock()
			return nil
		}
		return protocol.ErrBadValue

	case protocol.OptionRaw:
		return protocol.ErrReadOnly
	}
	return protocol.ErrBadOption
}

func (s *socket) GetOption(name string) (interface{}, error) {
	switch name {
	case protocol.OptionRaw:
		return false, nil
	case protocol.OptionWriteQLen:
		return s.sendq.Cap(), nil
	case protocol.OptionBestEffort:
		s.Lock()
		v := s.bestEffort
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
	p := &pipe{
		p:      pp,
		s:      s,
		closeq: make(chan struct{}),
	}
	s.pipes[pp.ID()] = p
	go p.sender()
	go p.receiver()
	return nil
}

func (s *socket) RemovePipe(pp protocol.Pipe) {
	s.Lock()
	p, ok := s.pipes[pp.ID()]
	if ok && p.p == pp {
		delete(s.pipes, pp.ID())
	}
	s.Unlock()
	if ok {
		p.detach()
	}
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
	pipes := make([]*pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.Unlock()

	close(s.closeq)
	s.sendq.Close()
	for _, p := range pipes {
		p.detach()
		p.p.Close()
	}
	return nil
}

func (p *pipe) detach() {
	p.once.Do(func() { close(p.closeq) })
}

func (p *pipe) sender() {
	for {
		m, err := p.s.sendq.GetAbort(msgq.Forever, p.closeq)
		if err != nil {
			break
		}
		if err := p.p.SendMsg(m); err != nil {
			m.Free()
			break
		}
	}
	p.p.Close()
}

// receiver only exists to notice the peer going away.  Anything a
// puller sends us is discarded.
func (p *pipe) receiver() {
	for {
		m := p.p.RecvMsg()
		if m == nil {
			break
		}
		m.Free()
	}
	p.p.Close()
}

// NewProtocol returns a new PUSH protocol object.
func NewProtocol() protocol.Protocol {
	return &socket{
		closeq: make(chan struct{}),
		pipes:  make(map[uint32]*pipe),
		sendq:  msgq.New(defaultQLen),
	}
}

// NewSocket allocates a new Socket using the PUSH protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
