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

package test

import (
	"sync"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/internal/atom"
)

var mockID atom.Uint64

// MockPipe is a protocol pipe with no transport behind it.  Tests
// play the remote peer: Inject hands the protocol a message as if it
// arrived, and Sent collects what the protocol sent.
type MockPipe struct {
	id     uint32
	recvq  chan *sp.Message
	sendq  chan *sp.Message
	closeq chan struct{}
	once   sync.Once
}

// NewMockPipe returns an open MockPipe with a fresh ID.
func NewMockPipe() *MockPipe {
	return &MockPipe{
		id:     uint32(mockID.Inc()),
		recvq:  make(chan *sp.Message),
		sendq:  make(chan *sp.Message),
		closeq: make(chan struct{}),
	}
}

func (p *MockPipe) ID() uint32 {
	return p.id
}

func (p *MockPipe) Close() error {
	p.once.Do(func() { close(p.closeq) })
	return nil
}

// Closed returns a channel that is closed once the pipe is.
func (p *MockPipe) Closed() <-chan struct{} {
	return p.closeq
}

func (p *MockPipe) SendMsg(m *sp.Message) error {
	select {
	case p.sendq <- m:
		return nil
	case <-p.closeq:
		return sp.ErrClosed
	}
}

func (p *MockPipe) RecvMsg() *sp.Message {
	select {
	case m := <-p.recvq:
		return m
	case <-p.closeq:
		return nil
	}
}

func (p *MockPipe) GetOption(string) (interface{}, error) {
	return nil, sp.ErrBadOption
}

// Inject delivers a message with the given body to the protocol.  It
// fails with ErrSendTimeout if the protocol does not take it in time.
func (p *MockPipe) Inject(body string, timeout time.Duration) error {
	m := sp.NewMessage(len(body))
	m.Body = append(m.Body, body...)
	select {
	case p.recvq <- m:
		return nil
	case <-p.closeq:
		m.Free()
		return sp.ErrClosed
	case <-time.After(timeout):
		m.Free()
		return sp.ErrSendTimeout
	}
}

// Sent returns the body of the next message the protocol sent on the
// pipe.  It fails with ErrRecvTimeout if none arrives in time.
func (p *MockPipe) Sent(timeout time.Duration) (string, error) {
	select {
	case m := <-p.sendq:
		body := string(m.Body)
		m.Free()
		return body, nil
	case <-time.After(timeout):
		return "", sp.ErrRecvTimeout
	}
}

// NewMessage returns a message carrying body.
func NewMessage(body string) *sp.Message {
	m := sp.NewMessage(len(body))
	m.Body = append(m.Body, body...)
	return m
}
