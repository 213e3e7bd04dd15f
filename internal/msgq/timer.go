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

package msgq

import (
	"sync"
	"time"

	"nanomsg.org/go/sp/errors"
)

var timerPool sync.Pool

func acquireTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}
	t := v.(*time.Timer)
	t.Reset(d)
	return t
}

func releaseTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// waiter holds the timer for one blocking operation.  The timer is
// started on the first wait and kept across retries, so the deadline
// is honored from the start of the operation.
type waiter struct {
	t *time.Timer
}

func (w *waiter) start(deadline time.Time) (<-chan time.Time, bool) {
	if deadline.IsZero() {
		return nil, false
	}
	if w.t == nil {
		d := time.Until(deadline)
		if d <= 0 {
			return nil, true
		}
		w.t = acquireTimer(d)
	}
	return w.t.C, false
}

func (w *waiter) stop() {
	if w.t != nil {
		releaseTimer(w.t)
		w.t = nil
	}
}

// Wait blocks until readyq is closed, returning nil.  It returns
// ErrClosed if closeq is closed first, ErrWouldBlock for a NonBlock
// deadline, and timeoutErr once the deadline passes.  Protocols use
// it to wait for a peer to appear.
func Wait(deadline time.Time, readyq, closeq <-chan struct{}, timeoutErr error) error {
	select {
	case <-closeq:
		return errors.ErrClosed
	case <-readyq:
		return nil
	default:
	}
	if IsNonBlock(deadline) {
		return errors.ErrWouldBlock
	}

	var w waiter
	defer w.stop()
	tq, expired := w.start(deadline)
	if expired {
		return timeoutErr
	}
	select {
	case <-closeq:
		return errors.ErrClosed
	case <-readyq:
		return nil
	case <-tq:
		return timeoutErr
	}
}
