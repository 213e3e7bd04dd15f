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

// Package pull implements the PULL protocol, which is the read side of
// the pipeline pattern.  (PUSH is the writer.)
package pull

import (
	"sync"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/protocol"
)

// Protocol identity information.
const (
	Self     = protocol.ProtoPull
	Peer     = protocol.ProtoPush
	SelfName = "pull"
	PeerName = "push"
)

const defaultQLen = 128

type pipe struct {
	p      protocol.Pipe
	s      *socket
	closeq chan struct{}
	once   sync.Once
}

type socket struct {
	closed bool
	pipes  map[uint32]*pipe
	recvq  *msgq.Queue
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

func (*socket) SendMsg(*protocol.Message, time.Time) error {
	return protocol.ErrProtoOp
}

func (s *socket) RecvMsg(deadline time.Time) (*protocol.Message, error) {
	return s.recvq.Get(deadline)
}

func (s *socket) SetOption(name string, value interface{}) error {
	switch name {
	case protocol.OptionReadQLen:
		if v, ok := value.(int); ok && v >= 0 {
			return s.recvq.Resize(v)
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
	case protocol.OptionReadQLen:
		return s.recvq.Cap(), nil
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

	s.recvq.Close()
	for _, p := range pipes {
		p.detach()
		p.p.Close()
	}
	return nil
}

func (p *pipe) detach() {
	p.once.Do(func() { close(p.closeq) })
}

// receiver stops reading from the pipe while the receive queue is
// full, which pushes back on the sender.
func (p *pipe) receiver() {
	for {
		m := p.p.RecvMsg()
		if m == nil {
			break
		}
		if err := p.s.recvq.PutAbort(m, msgq.Forever, p.closeq); err != nil {
			m.Free()
			break
		}
	}
	p.p.Close()
}

// NewProtocol returns a new PULL protocol object.
func NewProtocol() protocol.Protocol {
	return &socket{
		pipes: make(map[uint32]*pipe),
		recvq: msgq.New(defaultQLen),
	}
}

// NewSocket allocates a new Socket using the PULL protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
