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

// Package sub implements the SUB protocol.  This protocol receives messages
// from publishers (PUB peers).  The messages are filtered based on
// subscription, such that only subscribed messages (see OptionSubscribe) are
// received.
//
// Note that in order to receive any messages, at least one subscription must
// be present.  If no subscription is present (the default state), receive
// operations will block forever.
package sub

import (
	"bytes"
	"sync"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/protocol"
)

// Protocol identity information.
const (
	Self     = protocol.ProtoSub
	Peer     = protocol.ProtoPub
	SelfName = "sub"
	PeerName = "pub"
)

const defaultQLen = 128

type pipe struct {
	p protocol.Pipe
	s *socket
}

type socket struct {
	closed bool
	pipes  map[uint32]*pipe
	subs   [][]byte
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

// matches must be called with the lock held.
func (s *socket) matches(m *protocol.Message) bool {
	for _, sub := range s.subs {
		if bytes.HasPrefix(m.Body, sub) {
			return true
		}
	}
	return false
}

func (s *socket) subscribe(topic []byte) error {
	for _, sub := range s.subs {
		if bytes.Equal(sub, topic) {
			// Already present
			return nil
		}
	}
	s.subs = append(s.subs, append([]byte{}, topic...))
	return nil
}

func (s *socket) unsubscribe(topic []byte) error {
	for i, sub := range s.subs {
		if !bytes.Equal(sub, topic) {
			continue
		}
		s.subs = append(s.subs[:i], s.subs[i+1:]...)
		return nil
	}
	// Subscription not present
	return protocol.ErrBadValue
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

	case protocol.OptionSubscribe:
	case protocol.OptionUnsubscribe:
	default:
		return protocol.ErrBadOption
	}

	var vb []byte

	switch v := value.(type) {
	case []byte:
		vb = v
	case string:
		vb = []byte(v)
	default:
		return protocol.ErrBadValue
	}

	if name == protocol.OptionSubscribe {
		s.Lock()
		defer s.Unlock()
		return s.subscribe(vb)
	}

	s.Lock()
	err := s.unsubscribe(vb)
	s.Unlock()
	if err != nil {
		return err
	}
	// Messages already queued may no longer be wanted.
	s.recvq.Prune(func(m *protocol.Message) bool {
		s.Lock()
		defer s.Unlock()
		return s.matches(m)
	})
	return nil
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
		p: pp,
		s: s,
	}
	s.pipes[pp.ID()] = p
	go p.receiver()
	return nil
}

func (s *socket) RemovePipe(pp protocol.Pipe) {
	s.Lock()
	if p, ok := s.pipes[pp.ID()]; ok && p.p == pp {
		delete(s.pipes, pp.ID())
	}
	s.Unlock()
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
		p.p.Close()
	}
	return nil
}

// receiver delivers matching messages without waiting.  When the
// receive queue is full the message is dropped.
func (p *pipe) receiver() {
	s := p.s
	for {
		m := p.p.RecvMsg()
		if m == nil {
			break
		}
		s.Lock()
		match := s.matches(m)
		s.Unlock()
		if !match || s.recvq.Put(m, msgq.NonBlock) != nil {
			m.Free()
		}
	}
	p.p.Close()
}

// NewProtocol returns a new SUB protocol object.
func NewProtocol() protocol.Protocol {
	return &socket{
		pipes: make(map[uint32]*pipe),
		recvq: msgq.New(defaultQLen),
	}
}

// NewSocket allocates a new Socket using the SUB protocol.
func NewSocket() (protocol.Socket, error) {
	return protocol.MakeSocket(NewProtocol()), nil
}
