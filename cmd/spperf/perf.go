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

package main

import (
	"fmt"
	"sync"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol/pair"
	"nanomsg.org/go/sp/transport/all"
)

// Result is the outcome of one measurement.
type Result struct {
	Size  int
	Count int
	Time  time.Duration
}

// Latency is the average one-way latency of the round trips.
func (r Result) Latency() time.Duration {
	if r.Count == 0 {
		return 0
	}
	return r.Time / time.Duration(r.Count*2)
}

// MsgPerSec is the message rate of a throughput run.
func (r Result) MsgPerSec() float64 {
	return float64(r.Count) / r.Time.Seconds()
}

// Mbps is the payload rate of a throughput run, in megabits.
func (r Result) Mbps() float64 {
	return float64(r.Count*8*r.Size) / r.Time.Seconds() / 1000000.0
}

func newSocket(f func() (sp.Socket, error)) (sp.Socket, error) {
	s, err := f()
	if err != nil {
		return nil, err
	}
	all.AddTransports(s)
	return s, nil
}

func listen(s sp.Socket, addr string, noDelay bool) error {
	l, err := s.NewListener(addr, nil)
	if err != nil {
		return err
	}
	// Only meaningful for TCP.
	l.SetOption(sp.OptionNoDelay, noDelay)
	return l.Listen(0)
}

func dial(s sp.Socket, addr string, noDelay bool) error {
	d, err := s.NewDialer(addr, nil)
	if err != nil {
		return err
	}
	d.SetOption(sp.OptionNoDelay, noDelay)
	return d.Dial(0)
}

// lingerTime bounds how long a server waits for its client to hang up
// after the last reply.
const lingerTime = 5 * time.Second

// hangup returns a channel that is closed when s loses a pipe.
func hangup(s sp.Socket) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once
	s.SetPipeEventHook(func(ev sp.PipeEvent, p sp.Pipe) {
		if ev == sp.PipeEventDetached {
			once.Do(func() { close(ch) })
		}
	})
	return ch
}

// linger keeps the server socket open until the client has read the
// last reply and gone away.  Closing earlier would drop that reply
// from the send queue.
func linger(gone <-chan struct{}) {
	select {
	case <-gone:
	case <-time.After(lingerTime):
	}
}

// LatencyServer echoes roundTrips messages back to the client.  It is
// the equivalent of local_lat.
func LatencyServer(addr string, msgSize int, roundTrips int, ready chan<- struct{}) error {
	s, err := newSocket(pair.NewSocket)
	if err != nil {
		return err
	}
	defer s.Close()
	gone := hangup(s)

	if err = listen(s, addr, true); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	for i := 0; i != roundTrips; i++ {
		msg, err := s.RecvMsg()
		if err != nil {
			return err
		}
		if len(msg.Body) != msgSize {
			msg.Free()
			return fmt.Errorf("received wrong message size: %d != %d", len(msg.Body), msgSize)
		}
		if err = s.SendMsg(msg); err != nil {
			msg.Free()
			return err
		}
	}
	linger(gone)
	return nil
}

// LatencyClient measures round trip times against a LatencyServer.  It
// is the equivalent of remote_lat.
func LatencyClient(addr string, msgSize int, roundTrips int) (Result, error) {
	r := Result{Size: msgSize, Count: roundTrips}
	s, err := newSocket(pair.NewSocket)
	if err != nil {
		return r, err
	}
	defer s.Close()

	if err = dial(s, addr, true); err != nil {
		return r, err
	}

	msg := sp.NewMessage(msgSize)
	msg.Body = msg.Body[0:msgSize]

	start := time.Now()
	for i := 0; i < roundTrips; i++ {
		if err = s.SendMsg(msg); err != nil {
			msg.Free()
			return r, err
		}
		if msg, err = s.RecvMsg(); err != nil {
			return r, err
		}
	}
	r.Time = time.Since(start)
	msg.Free()
	return r, nil
}

// ThroughputServer counts count messages from its peer, timing from
// the empty start message, then acknowledges with an empty message so
// the client knows nothing is still queued.  It is the equivalent of
// local_thr.
func ThroughputServer(addr string, msgSize int, count int, ready chan<- struct{}) (Result, error) {
	r := Result{Size: msgSize, Count: count}
	s, err := newSocket(pair.NewSocket)
	if err != nil {
		return r, err
	}
	defer s.Close()
	gone := hangup(s)

	if err = listen(s, addr, false); err != nil {
		return r, err
	}
	if ready != nil {
		close(ready)
	}

	msg, err := s.RecvMsg()
	if err != nil {
		return r, fmt.Errorf("failed to receive start message: %v", err)
	}
	msg.Free()

	start := time.Now()
	for i := 0; i != count; i++ {
		msg, err := s.RecvMsg()
		if err != nil {
			return r, err
		}
		n := len(msg.Body)
		msg.Free()
		if n != msgSize {
			return r, fmt.Errorf("received wrong message size: %d != %d", n, msgSize)
		}
	}
	r.Time = time.Since(start)

	if err = s.Send([]byte{}); err != nil {
		return r, fmt.Errorf("failed to send acknowledgement: %v", err)
	}
	linger(gone)
	return r, nil
}

// ThroughputClient sends count messages of msgSize bytes, after an
// empty start message, and waits for the server to acknowledge them
// before closing.  It is the equivalent of remote_thr.
func ThroughputClient(addr string, msgSize int, count int) error {
	s, err := newSocket(pair.NewSocket)
	if err != nil {
		return err
	}
	defer s.Close()

	if err = dial(s, addr, false); err != nil {
		return err
	}

	body := make([]byte, msgSize)
	for i := range body {
		body[i] = 111
	}

	if err = s.Send([]byte{}); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err = s.Send(body); err != nil {
			return err
		}
	}
	if _, err = s.Recv(); err != nil {
		return fmt.Errorf("no acknowledgement: %v", err)
	}
	return nil
}
