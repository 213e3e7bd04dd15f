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

// Package msgq implements the bounded message queue used between
// application callers and pipe goroutines.  A queue holds up to its
// depth of messages in FIFO order.  A queue of depth zero holds
// nothing: a Put completes only by handing the message directly to a
// Get.
package msgq

import (
	"sync"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// Forever is the deadline that never expires.
var Forever time.Time

// NonBlock is the deadline used for operations that must not wait.
// An operation that cannot complete immediately fails with
// ErrWouldBlock.
var NonBlock = time.Unix(0, 1)

// Deadline converts a relative timeout, as stored in the socket
// deadline options, into an absolute deadline.  Negative timeouts
// never expire, and zero means non-blocking.
func Deadline(d time.Duration) time.Time {
	switch {
	case d < 0:
		return Forever
	case d == 0:
		return NonBlock
	}
	return time.Now().Add(d)
}

// IsNonBlock reports whether the deadline requests a non-blocking
// operation.
func IsNonBlock(deadline time.Time) bool {
	return deadline.Equal(NonBlock)
}

// Queue is a bounded FIFO of messages.  All methods are safe for
// concurrent use.
type Queue struct {
	sync.Mutex
	ch      chan *sp.Message
	closeq  chan struct{}
	resizeq chan struct{}
	closed  bool
}

// New returns an open queue of the given depth.  Negative depths are
// treated as zero.
func New(depth int) *Queue {
	if depth < 0 {
		depth = 0
	}
	return &Queue{
		ch:      make(chan *sp.Message, depth),
		closeq:  make(chan struct{}),
		resizeq: make(chan struct{}),
	}
}

func (q *Queue) snapshot() (chan *sp.Message, chan struct{}, chan struct{}) {
	q.Lock()
	defer q.Unlock()
	return q.ch, q.closeq, q.resizeq
}

// Put appends the message, waiting for room until the deadline.  On
// success the queue owns the message.  It fails with ErrClosed once
// the queue is closed, ErrWouldBlock for a NonBlock deadline, and
// ErrSendTimeout when the deadline passes.
func (q *Queue) Put(m *sp.Message, deadline time.Time) error {
	return q.PutAbort(m, deadline, nil)
}

// PutAbort is Put, but also gives up with ErrCanceled when abortq is
// closed.
func (q *Queue) PutAbort(m *sp.Message, deadline time.Time, abortq <-chan struct{}) error {
	var w waiter
	defer w.stop()

	for {
		ch, closeq, resizeq := q.snapshot()
		select {
		case <-closeq:
			return errors.ErrClosed
		default:
		}
		select {
		case ch <- m:
			return nil
		default:
		}
		if IsNonBlock(deadline) {
			return errors.ErrWouldBlock
		}
		tq, expired := w.start(deadline)
		if expired {
			return errors.ErrSendTimeout
		}
		select {
		case ch <- m:
			return nil
		case <-closeq:
			return errors.ErrClosed
		case <-abortq:
			return errors.ErrCanceled
		case <-tq:
			return errors.ErrSendTimeout
		case <-resizeq:
		}
	}
}

// Get removes the oldest message, waiting for one until the deadline.
// It fails with ErrClosed once the queue is closed, ErrWouldBlock for
// a NonBlock deadline, and ErrRecvTimeout when the deadline passes.
func (q *Queue) Get(deadline time.Time) (*sp.Message, error) {
	return q.GetAbort(deadline, nil)
}

// GetAbort is Get, but also gives up with ErrCanceled when abortq is
// closed.
func (q *Queue) GetAbort(deadline time.Time, abortq <-chan struct{}) (*sp.Message, error) {
	var w waiter
	defer w.stop()

	for {
		ch, closeq, resizeq := q.snapshot()
		select {
		case <-closeq:
			return nil, errors.ErrClosed
		default:
		}
		select {
		case m := <-ch:
			return m, nil
		default:
		}
		if IsNonBlock(deadline) {
			return nil, errors.ErrWouldBlock
		}
		tq, expired := w.start(deadline)
		if expired {
			return nil, errors.ErrRecvTimeout
		}
		select {
		case m := <-ch:
			return m, nil
		case <-closeq:
			return nil, errors.ErrClosed
		case <-abortq:
			return nil, errors.ErrCanceled
		case <-tq:
			return nil, errors.ErrRecvTimeout
		case <-resizeq:
		}
	}
}

// Close closes the queue.  Waiters wake with ErrClosed, and queued
// messages are freed.  Closing a closed queue returns ErrClosed.
func (q *Queue) Close() error {
	q.Lock()
	if q.closed {
		q.Unlock()
		return errors.ErrClosed
	}
	q.closed = true
	close(q.closeq)
	ch := q.ch
	q.Unlock()

	for {
		select {
		case m := <-ch:
			m.Free()
		default:
			return nil
		}
	}
}

// Closed returns a channel that is closed when the queue is.
func (q *Queue) Closed() <-chan struct{} {
	q.Lock()
	defer q.Unlock()
	return q.closeq
}

// Resize changes the depth of the queue.  Queued messages are kept in
// order as far as they fit, and the rest are freed.  Waiters retry
// against the new depth, keeping their original deadlines.  A message
// racing with the resize may be dropped.
func (q *Queue) Resize(depth int) error {
	if depth < 0 {
		return errors.ErrBadValue
	}
	return q.refill(depth, nil)
}

// Prune frees every queued message for which keep returns false.  The
// order of the remaining messages is preserved.
func (q *Queue) Prune(keep func(*sp.Message) bool) error {
	return q.refill(-1, keep)
}

func (q *Queue) refill(depth int, keep func(*sp.Message) bool) error {
	q.Lock()
	defer q.Unlock()
	if q.closed {
		return errors.ErrClosed
	}
	old := q.ch
	if depth < 0 {
		depth = cap(old)
	}
	q.ch = make(chan *sp.Message, depth)
	for done := false; !done; {
		select {
		case m := <-old:
			if len(q.ch) < depth && (keep == nil || keep(m)) {
				q.ch <- m
			} else {
				m.Free()
			}
		default:
			done = true
		}
	}
	close(q.resizeq)
	q.resizeq = make(chan struct{})
	return nil
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.ch)
}

// Cap returns the depth of the queue.
func (q *Queue) Cap() int {
	q.Lock()
	defer q.Unlock()
	return cap(q.ch)
}
