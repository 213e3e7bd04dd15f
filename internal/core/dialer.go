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

	"github.com/jpillora/backoff"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// Dialer states.  Idle until Dial; Stopped is final.
const (
	dialerIdle = iota
	dialerConnecting
	dialerBound
	dialerRetrying
	dialerStopped
)

type dialer struct {
	sync.Mutex
	d             sp.TranDialer
	s             *socket
	addr          string
	dialing       bool
	state         int
	redialer      *time.Timer
	bo            backoff.Backoff
	reconnMinTime time.Duration
	reconnMaxTime time.Duration
}

func (d *dialer) Dial(flags sp.Flags) error {
	d.Lock()
	switch d.state {
	case dialerStopped:
		d.Unlock()
		return errors.ErrClosed
	case dialerIdle:
	default:
		d.Unlock()
		return errors.ErrAddrInUse
	}
	d.state = dialerConnecting

	// Growth is about 1.3x per failure, with jitter.  A zero
	// maximum keeps the interval fixed at the minimum.
	max := d.reconnMaxTime
	if max == 0 {
		max = d.reconnMinTime
	}
	d.bo = backoff.Backoff{
		Factor: 1.3,
		Jitter: true,
		Min:    d.reconnMinTime,
		Max:    max,
	}
	d.Unlock()

	if flags&sp.FlagSynch == 0 {
		go d.redial()
		return nil
	}

	// One attempt only; a failure retires the dialer.
	if err := d.dial(false); err != nil {
		d.Close()
		return err
	}
	return nil
}

func (d *dialer) Close() error {
	d.Lock()
	if d.state == dialerStopped {
		d.Unlock()
		return errors.ErrClosed
	}
	d.state = dialerStopped
	if d.redialer != nil {
		d.redialer.Stop()
		d.redialer = nil
	}
	d.Unlock()
	d.s.remDialer(d)
	return nil
}

func (d *dialer) GetOption(n string) (interface{}, error) {
	switch n {
	case sp.OptionReconnectTime:
		d.Lock()
		v := d.reconnMinTime
		d.Unlock()
		return v, nil
	case sp.OptionMaxReconnectTime:
		d.Lock()
		v := d.reconnMaxTime
		d.Unlock()
		return v, nil
	}
	if val, err := d.d.GetOption(n); err != errors.ErrBadOption {
		return val, err
	}
	// Pass it up to the socket
	return d.s.GetOption(n)
}

func (d *dialer) SetOption(n string, v interface{}) error {
	switch n {
	case sp.OptionReconnectTime, sp.OptionMaxReconnectTime:
		t, ok := v.(time.Duration)
		if !ok || t < 0 {
			return errors.ErrBadValue
		}
		d.Lock()
		defer d.Unlock()
		if d.state != dialerIdle {
			return errors.ErrProtoState
		}
		if n == sp.OptionReconnectTime {
			d.reconnMinTime = t
		} else {
			d.reconnMaxTime = t
		}
		return nil
	}
	// Transport specific options passed down.
	return d.d.SetOption(n, v)
}

func (d *dialer) Address() string {
	return d.addr
}

// Socket calls this after the pipe is fully accepted (we got a good
// SP layer connection) -- this way we still get the full backoff if
// we achieve a TCP connect, but the upper layer protocols are mismatched,
// or the remote peer just rejects us (such as if an already connected
// pair pipe.)
func (d *dialer) pipeConnected() {
	d.Lock()
	d.bo.Reset()
	if d.state != dialerStopped {
		d.state = dialerBound
	}
	d.Unlock()
}

// pipeClosed schedules a redial.  We always wait a little after the
// pipe closes, to avoid spinning hard when the peer keeps refusing us.
func (d *dialer) pipeClosed() {
	d.Lock()
	defer d.Unlock()
	if d.state == dialerStopped {
		return
	}
	d.state = dialerRetrying
	if d.redialer != nil {
		d.redialer.Stop()
	}
	d.redialer = time.AfterFunc(d.bo.Duration(), d.redial)
}

// dial makes one connection attempt.  If redial is set, a transport
// failure schedules the next attempt.  A pipe that the socket refuses
// is closed, and closing it schedules the next attempt instead.
func (d *dialer) dial(redial bool) error {
	d.Lock()
	if d.state == dialerStopped || d.dialing {
		d.Unlock()
		return errors.ErrClosed
	}
	if d.redialer != nil {
		d.redialer.Stop()
		d.redialer = nil
	}
	d.dialing = true
	d.state = dialerConnecting
	d.Unlock()

	tp, err := d.d.Dial()

	d.Lock()
	d.dialing = false
	if err == nil {
		d.Unlock()
		return d.s.addPipe(tp, d, nil)
	}
	if !redial || d.state == dialerStopped {
		d.Unlock()
		return err
	}
	wait := d.bo.Duration()
	d.state = dialerRetrying
	d.redialer = time.AfterFunc(wait, d.redial)
	d.Unlock()

	d.s.logger().WithError(err).WithField("addr", d.addr).
		Debugf("dial failed, retrying in %v", wait)
	return err
}

func (d *dialer) redial() {
	d.dial(true)
}
