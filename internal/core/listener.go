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

package core

import (
	"sync"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

type listener struct {
	sync.Mutex
	l      sp.TranListener
	s      *socket
	addr   string
	bound  bool
	closed bool
}

func (l *listener) GetOption(n string) (interface{}, error) {
	if val, err := l.l.GetOption(n); err != errors.ErrBadOption {
		return val, err
	}
	return l.s.GetOption(n)
}

func (l *listener) SetOption(n string, v interface{}) error {
	// Listeners do not keep local options; we just pass this down.
	return l.l.SetOption(n, v)
}

// serve spins in a loop, calling the accepter's Accept routine.
func (l *listener) serve() {
	for {
		l.Lock()
		if l.closed {
			l.Unlock()
			break
		}
		l.Unlock()

		// If the underlying listener is closed, or not
		// listening, we expect to return back with an error.
		if tp, err := l.l.Accept(); err == errors.ErrClosed {
			return
		} else if err == nil {
			l.s.addPipe(tp, nil, l)
		} else {
			l.s.logger().WithError(err).WithField("addr", l.addr).
				Warn("accept failed")
			// Debounce a little bit, to avoid thrashing the CPU.
			time.Sleep(time.Second / 100)
		}
	}
}

// Listen binds the address before returning, in either mode, so that
// a conflicting address is always reported to the caller.  The
// accepter runs in its own goroutine.
func (l *listener) Listen(flags sp.Flags) error {
	l.Lock()
	if l.closed {
		l.Unlock()
		return errors.ErrClosed
	}
	if l.bound {
		l.Unlock()
		return errors.ErrAddrInUse
	}
	l.bound = true
	l.Unlock()

	if err := l.l.Listen(); err != nil {
		l.Close()
		return err
	}

	go l.serve()
	return nil
}

func (l *listener) Address() string {
	return l.l.Address()
}

func (l *listener) Close() error {
	l.Lock()
	if l.closed {
		l.Unlock()
		return errors.ErrClosed
	}
	l.closed = true
	l.Unlock()
	err := l.l.Close()
	l.s.remListener(l)
	return err
}
