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

// Package pub implements the PUB protocol.  This protocol publishes messages
// to subscribers (SUB peers).  The subscribers will filter incoming messages
// from the publisher based on their subscription.
//
// A publisher never waits.  A subscriber that cannot keep up simply
// misses messages.
package pub

import (
	"sync"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/protocol"
)

// Protocol identity information.
const (
	Self     = protocol.ProtoPub
	Peer     = protocol.ProtoSub
	SelfName = "pub"
	PeerName = "sub"
)

const defaultQLen = 16

type pipe struct {
	p      protocol.Pipe
	s      *socket
	sendq  *msgq.Queue
	closeq chan struct{}
	once   sync.Once
}

type socket struct {
	closed   bool
	pipes    map[uint32]*pipe
	sendQLen int
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

// SendMsg shares the message with every subscriber whose queue has
// room.  The deadline is ignored.
func (s *socket) SendMsg(m *protocol.Message, _ time.Time) error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return protocol.ErrClosed
	}
	for _, p := range s.pipes {
		if p.sendq.Put(m.Clone(), msgq.NonBlock) != nil {
			m.Free()
		}
	}
	s.Unlock()
	m.Free()
	return nil
}

func (*socket) RecvMsg(time.Time) (*protocol.Message, error) {
	return nil, protocol.ErrProtoOp
}

func (s *socket) SetOption(name string, value interface{}) error {
	switch name {
	case protocol.OptionWriteQLen:
		if v, ok := value.(int); ok && v >= 0 {
			s.Lock()
			s.sendQLen = v
			pipes := make([]*pipe, 0, len(s.pipes))
			for _, p := range s.pipes {
				pipes = append(pipes, p)
			}
			s.Unlock()
			for _, p := range pipes {
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

func (s *socket) GetOption(name string) (interface{}, error) {
	switch name {
	case protocol.OptionRaw:
		return false, nil
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
	p := &pipe{
		p:      pp,
		s:      s,
		sendq:  msgq.New(s.sendQLen),
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

	for _, p := range pipes {
		p.detach()
		p.p.Close()
	}
	return nil
}

func (p *pipe) detach() {
	p.once.Do(func() {
		close(p.closeq)
		p.sendq.Close()
	})
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
	p.p.Close()
}

// receiver only notices the subscriber going away.  Subscribers
// have nothing to say to us.
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

// NewProtocol returns a new PUB protocol object.
func NewProtocol() protocol.Protocol {
	return &socket{
		pipes:    make(map[uint32]*pipe),
		sendQLen: defaultQLen,
	}
}

// NewSocket allocates a new Socket using the PUB protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
