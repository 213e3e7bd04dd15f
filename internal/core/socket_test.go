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

package core_test

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol/pair"
	_ "nanomsg.org/go/sp/transport/inproc"

	. "github.com/smartystreets/goconvey/convey"
)

type pipeEvent struct {
	ev sp.PipeEvent
	p  sp.Pipe
}

func watch(s sp.Socket) chan pipeEvent {
	evq := make(chan pipeEvent, 16)
	s.SetPipeEventHook(func(ev sp.PipeEvent, p sp.Pipe) {
		evq <- pipeEvent{ev, p}
	})
	return evq
}

func nextEvent(evq chan pipeEvent) pipeEvent {
	select {
	case e := <-evq:
		return e
	case <-time.After(2 * time.Second):
		return pipeEvent{ev: -1}
	}
}

func hasMessage(hook *logtest.Hook, prefix string) bool {
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, prefix) {
			return true
		}
	}
	return false
}

func newPair() sp.Socket {
	s, err := pair.NewSocket()
	So(err, ShouldBeNil)
	return s
}

func TestPipeEvents(t *testing.T) {
	Convey("Given a listening socket with a pipe hook", t, func() {
		addr := "inproc://core-events"
		s1 := newPair()
		defer s1.Close()
		logger, hook := logtest.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		So(s1.SetOption(sp.OptionLogger, logger), ShouldBeNil)
		evq := watch(s1)
		So(s1.Listen(addr), ShouldBeNil)

		s2 := newPair()
		defer s2.Close()

		Convey("Connecting and disconnecting fire events in order", func() {
			So(s2.DialFlags(addr, sp.FlagSynch), ShouldBeNil)

			e := nextEvent(evq)
			So(e.ev, ShouldEqual, sp.PipeEventAttaching)
			id := e.p.ID()
			So(id, ShouldNotEqual, 0)
			So(id&0x80000000, ShouldEqual, 0)

			e = nextEvent(evq)
			So(e.ev, ShouldEqual, sp.PipeEventAttached)
			So(e.p.ID(), ShouldEqual, id)
			So(e.p.Address(), ShouldEqual, addr)
			So(e.p.Listener(), ShouldNotBeNil)
			So(e.p.Dialer(), ShouldBeNil)
			So(hasMessage(hook, "pipe attached"), ShouldBeTrue)

			v, err := s1.GetOption(sp.OptionPipeCount)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1)

			So(s2.Close(), ShouldBeNil)
			e = nextEvent(evq)
			So(e.ev, ShouldEqual, sp.PipeEventDetached)
			So(e.p.ID(), ShouldEqual, id)
			So(hasMessage(hook, "pipe detached"), ShouldBeTrue)
		})

		Convey("Closing the pipe while attaching rejects it", func() {
			s1.SetPipeEventHook(func(ev sp.PipeEvent, p sp.Pipe) {
				if ev == sp.PipeEventAttaching {
					p.Close()
				}
				evq <- pipeEvent{ev, p}
			})
			So(s2.SetOption(sp.OptionReconnectTime, time.Hour), ShouldBeNil)
			So(s2.DialFlags(addr, sp.FlagSynch), ShouldBeNil)

			e := nextEvent(evq)
			So(e.ev, ShouldEqual, sp.PipeEventAttaching)
			select {
			case e = <-evq:
			case <-time.After(100 * time.Millisecond):
			}
			So(e.ev, ShouldEqual, sp.PipeEventAttaching)
			v, err := s1.GetOption(sp.OptionPipeCount)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})

		Convey("The old hook is returned", func() {
			old := s1.SetPipeEventHook(nil)
			So(old, ShouldNotBeNil)
			So(s1.SetPipeEventHook(nil), ShouldBeNil)
		})
	})
}

func TestDialerRedial(t *testing.T) {
	Convey("Given a dialer with nobody listening", t, func() {
		addr := "inproc://core-redial"
		s1 := newPair()
		defer s1.Close()
		evq := watch(s1)

		s2 := newPair()
		defer s2.Close()
		logger, hook := logtest.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		So(s2.SetOption(sp.OptionLogger, logger), ShouldBeNil)
		So(s2.SetOption(sp.OptionReconnectTime, 5*time.Millisecond), ShouldBeNil)
		So(s2.SetOption(sp.OptionMaxReconnectTime, 20*time.Millisecond), ShouldBeNil)

		Convey("A synchronous dial is refused", func() {
			So(s2.DialFlags(addr, sp.FlagSynch), ShouldEqual, sp.ErrConnRefused)
		})

		Convey("An asynchronous dial keeps trying", func() {
			So(s2.Dial(addr), ShouldBeNil)
			time.Sleep(50 * time.Millisecond)
			So(hasMessage(hook, "dial failed"), ShouldBeTrue)

			So(s1.Listen(addr), ShouldBeNil)
			So(nextEvent(evq).ev, ShouldEqual, sp.PipeEventAttaching)
			e := nextEvent(evq)
			So(e.ev, ShouldEqual, sp.PipeEventAttached)

			Convey("And reconnects when the pipe drops", func() {
				So(e.p.Close(), ShouldBeNil)
				So(nextEvent(evq).ev, ShouldEqual, sp.PipeEventDetached)
				So(nextEvent(evq).ev, ShouldEqual, sp.PipeEventAttaching)
				e2 := nextEvent(evq)
				So(e2.ev, ShouldEqual, sp.PipeEventAttached)
				So(e2.p.ID(), ShouldNotEqual, e.p.ID())
			})
		})
	})
}

func TestDialerOptions(t *testing.T) {
	Convey("Given a dialer", t, func() {
		s := newPair()
		defer s.Close()
		d, err := s.NewDialer("inproc://core-dialer-opts", map[string]interface{}{
			sp.OptionReconnectTime: 5 * time.Millisecond,
		})
		So(err, ShouldBeNil)
		So(d.Address(), ShouldEqual, "inproc://core-dialer-opts")

		Convey("Reconnect times are local", func() {
			v, err := d.GetOption(sp.OptionReconnectTime)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 5*time.Millisecond)
			So(d.SetOption(sp.OptionMaxReconnectTime, "soon"), ShouldEqual, sp.ErrBadValue)
			So(d.SetOption(sp.OptionMaxReconnectTime, -time.Second), ShouldEqual, sp.ErrBadValue)
		})

		Convey("Socket options show through", func() {
			v, err := d.GetOption(sp.OptionRecvDeadline)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, sp.Infinite)
		})

		Convey("Options are fixed once dialing", func() {
			So(d.Dial(0), ShouldBeNil)
			So(d.SetOption(sp.OptionReconnectTime, time.Second), ShouldEqual, sp.ErrProtoState)
			So(d.Dial(0), ShouldEqual, sp.ErrAddrInUse)
		})

		Convey("A closed dialer stays closed", func() {
			So(d.Close(), ShouldBeNil)
			So(d.Close(), ShouldEqual, sp.ErrClosed)
			So(d.Dial(0), ShouldEqual, sp.ErrClosed)
			So(d.SetOption(sp.OptionReconnectTime, time.Second), ShouldEqual, sp.ErrProtoState)
		})

		Convey("A failed synchronous dial retires the dialer", func() {
			So(d.Dial(sp.FlagSynch), ShouldEqual, sp.ErrConnRefused)
			So(d.Dial(0), ShouldEqual, sp.ErrClosed)
			So(d.Dial(sp.FlagSynch), ShouldEqual, sp.ErrClosed)
			So(d.Close(), ShouldEqual, sp.ErrClosed)
		})
	})

	Convey("Bad dialer options are refused", t, func() {
		s := newPair()
		defer s.Close()
		_, err := s.NewDialer("inproc://core-dialer-opts", map[string]interface{}{
			"NO-SUCH-OPTION": 1,
		})
		So(err, ShouldEqual, sp.ErrBadOption)
	})
}

func TestEndpointOptionLogging(t *testing.T) {
	Convey("Given a socket with inproc endpoints", t, func() {
		s := newPair()
		defer s.Close()
		logger, hook := logtest.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		So(s.SetOption(sp.OptionLogger, logger), ShouldBeNil)
		_, err := s.NewDialer("inproc://core-endpoint-opts", nil)
		So(err, ShouldBeNil)
		_, err = s.NewListener("inproc://core-endpoint-opts", nil)
		So(err, ShouldBeNil)

		Convey("A receive limit they cannot take is logged, not returned", func() {
			So(s.SetOption(sp.OptionMaxRecvSize, 4096), ShouldBeNil)
			So(hasMessage(hook, "option not applied to dialer"), ShouldBeTrue)
			So(hasMessage(hook, "option not applied to listener"), ShouldBeTrue)
			for _, e := range hook.AllEntries() {
				if strings.HasPrefix(e.Message, "option not applied") {
					So(e.Level, ShouldEqual, logrus.DebugLevel)
					So(e.Data["option"], ShouldEqual, sp.OptionMaxRecvSize)
					So(e.Data["addr"], ShouldEqual, "inproc://core-endpoint-opts")
					So(e.Data[logrus.ErrorKey], ShouldEqual, sp.ErrBadOption)
				}
			}

			v, err := s.GetOption(sp.OptionMaxRecvSize)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 4096)
		})
	})
}

func TestListener(t *testing.T) {
	Convey("Given a listener", t, func() {
		s := newPair()
		defer s.Close()
		l, err := s.NewListener("inproc://core-listener", nil)
		So(err, ShouldBeNil)

		Convey("It can only listen once", func() {
			So(l.Listen(0), ShouldBeNil)
			So(l.Listen(0), ShouldEqual, sp.ErrAddrInUse)
			So(l.Address(), ShouldEqual, "inproc://core-listener")
		})

		Convey("Closing frees the address", func() {
			So(l.Listen(0), ShouldBeNil)
			So(l.Close(), ShouldBeNil)
			So(l.Close(), ShouldEqual, sp.ErrClosed)
			So(l.Listen(0), ShouldEqual, sp.ErrClosed)
			So(s.Listen("inproc://core-listener"), ShouldBeNil)
		})

		Convey("Socket options show through", func() {
			v, err := l.GetOption(sp.OptionMaxRecvSize)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1024*1024)
		})
	})
}
