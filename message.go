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

package sp

import (
	"github.com/valyala/bytebufferpool"

	"nanomsg.org/go/sp/internal/atom"
)

// Message encapsulates the messages that we exchange back and forth.  The
// meaning of the Header and Body fields, and where the splits occur, will
// vary depending on the protocol.  Note however that any headers applied by
// transport layers (including TCP/ethernet headers, and SP protocol
// independent length headers), are *not* included in the Header.
//
// A Message has exactly one owner at a time.  Sending a message hands
// it to the socket; receiving one hands it to the caller.
type Message struct {
	// Header carries any protocol header.
	Header []byte

	// Body is the payload.  It starts out in pooled storage, which
	// Free recycles; a slice assigned here by the caller is left alone.
	Body []byte

	// Pipe may be set on message receipt, to indicate the Pipe from
	// which the Message was received.  There are no guarantees that the
	// Pipe is still active, and applications should only use this for
	// informational purposes.
	Pipe Pipe

	bb     *bytebufferpool.ByteBuffer
	refcnt atom.Int
}

var bodyPool bytebufferpool.Pool

// Free releases the message.  When the last reference is dropped the
// body storage returns to the pool, and the message must not be used
// again.
func (m *Message) Free() {
	if v := m.refcnt.Dec(); v > 0 {
		return
	} else if v < 0 {
		panic("message freed more than once")
	}
	if bb := m.bb; bb != nil {
		m.bb = nil
		// A Body the caller replaced, or that append moved, is not
		// ours to recycle.
		if sharesStorage(m.Body, bb.B) {
			bb.B = bb.B[:0]
			bodyPool.Put(bb)
		}
	}
	m.Body = nil
	m.Header = nil
	m.Pipe = nil
}

// sharesStorage reports whether a and b are slices of the same
// backing array.  Slices of one array share their last element.
func sharesStorage(a, b []byte) bool {
	if cap(a) == 0 || cap(b) == 0 {
		return false
	}
	return &a[:cap(a)][cap(a)-1] == &b[:cap(b)][cap(b)-1]
}

// Clone adds a reference to the message, and returns it.  The message
// is shared, so none of the holders may modify it until MakeUnique is
// called.  Each reference must be released with Free.
func (m *Message) Clone() *Message {
	m.refcnt.Inc()
	return m
}

// MakeUnique returns a message that the caller may modify.  If the
// message is shared, a private copy is made and the caller's reference
// to the shared one is dropped.
func (m *Message) MakeUnique() *Message {
	if m.refcnt.Get() == 1 {
		return m
	}
	n := m.Dup()
	m.Free()
	return n
}

// Dup creates a "duplicate" message.  The new message has its own
// storage and a single reference.
func (m *Message) Dup() *Message {
	dup := NewMessage(len(m.Body))
	dup.Body = append(dup.Body, m.Body...)
	dup.Header = append(dup.Header, m.Header...)
	dup.Pipe = m.Pipe
	return dup
}

// Len returns the combined length of header and body.
func (m *Message) Len() int {
	return len(m.Header) + len(m.Body)
}

// NewMessage is the supported way to obtain a new Message.  The body
// is empty with at least sz bytes of capacity, drawn from a shared pool.
func NewMessage(sz int) *Message {
	bb := bodyPool.Get()
	if cap(bb.B) < sz {
		bb.B = make([]byte, 0, sz)
	}
	m := &Message{
		Body:   bb.B[:0],
		Header: make([]byte, 0, 32),
		bb:     bb,
	}
	m.refcnt.Set(1)
	return m
}
