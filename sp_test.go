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

package sp_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol"
	"nanomsg.org/go/sp/protocol/bus"
	"nanomsg.org/go/sp/protocol/pair"
	"nanomsg.org/go/sp/protocol/pub"
	"nanomsg.org/go/sp/protocol/pull"
	"nanomsg.org/go/sp/protocol/push"
	"nanomsg.org/go/sp/protocol/sub"
	"nanomsg.org/go/sp/transport/all"

	. "github.com/smartystreets/goconvey/convey"
)

func newSock(f func() (sp.Socket, error)) sp.Socket {
	s, err := f()
	So(err, ShouldBeNil)
	So(s, ShouldNotBeNil)
	return s
}

// connect listens on addr with l and dials the bound address from d.
// It waits until the listening side has attached the pipe.
func connect(l, d sp.Socket, addr string) {
	attached := make(chan struct{}, 1)
	l.SetPipeEventHook(func(ev sp.PipeEvent, p sp.Pipe) {
		if ev == sp.PipeEventAttached {
			select {
			case attached <- struct{}{}:
			default:
			}
		}
	})
	lst, err := l.NewListener(addr, nil)
	So(err, ShouldBeNil)
	So(lst.Listen(0), ShouldBeNil)
	So(d.DialFlags(lst.Address(), sp.FlagSynch), ShouldBeNil)
	ok := false
	select {
	case <-attached:
		ok = true
	case <-time.After(2 * time.Second):
	}
	So(ok, ShouldBeTrue)
	l.SetPipeEventHook(nil)
}

func TestRecvTimeout(t *testing.T) {
	Convey("Given a pair socket with a receive deadline", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()
		d := 50 * time.Millisecond
		So(s.SetOption(sp.OptionRecvDeadline, d), ShouldBeNil)

		Convey("Receive times out within the deadline window", func() {
			start := time.Now()
			_, err := s.Recv()
			elapsed := time.Since(start)
			So(err, ShouldEqual, sp.ErrRecvTimeout)
			So(elapsed, ShouldBeGreaterThanOrEqualTo, d)
			So(elapsed, ShouldBeLessThan, 2*d)
		})

		Convey("A send without a peer times out too", func() {
			So(s.SetOption(sp.OptionSendDeadline, d), ShouldBeNil)
			start := time.Now()
			So(s.Send([]byte("abc")), ShouldEqual, sp.ErrSendTimeout)
			elapsed := time.Since(start)
			So(elapsed, ShouldBeGreaterThanOrEqualTo, d)
			So(elapsed, ShouldBeLessThan, 2*d)
		})

		Convey("A zero deadline means non-blocking", func() {
			So(s.SetOption(sp.OptionRecvDeadline, time.Duration(0)), ShouldBeNil)
			_, err := s.Recv()
			So(err, ShouldEqual, sp.ErrWouldBlock)
		})
	})
}

func TestNonBlock(t *testing.T) {
	Convey("Given a pair socket with no peer", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()

		Convey("Non-blocking receive would block", func() {
			_, err := s.RecvMsgFlags(sp.FlagNonBlock)
			So(err, ShouldEqual, sp.ErrWouldBlock)
		})

		Convey("Non-blocking send would block", func() {
			m := sp.NewMessage(3)
			m.Body = append(m.Body, "abc"...)
			So(s.SendMsgFlags(m, sp.FlagNonBlock), ShouldEqual, sp.ErrWouldBlock)
			m.Free()
		})
	})
}

func TestShutdown(t *testing.T) {
	Convey("Given a socket", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()
		So(s.SetOption(sp.OptionRecvDeadline, time.Second), ShouldBeNil)

		Convey("Shutdown wakes a blocked receive", func() {
			errq := make(chan error, 1)
			go func() {
				_, err := s.Recv()
				errq <- err
			}()
			time.Sleep(20 * time.Millisecond)
			So(s.Shutdown(), ShouldBeNil)
			So(<-errq, ShouldEqual, sp.ErrClosed)
		})

		Convey("After shutdown", func() {
			So(s.Shutdown(), ShouldBeNil)

			Convey("A second shutdown fails", func() {
				So(s.Shutdown(), ShouldEqual, sp.ErrClosed)
			})
			Convey("Send and receive fail", func() {
				So(s.Send([]byte("abc")), ShouldEqual, sp.ErrClosed)
				_, err := s.Recv()
				So(err, ShouldEqual, sp.ErrClosed)
			})
			Convey("Dial and listen fail", func() {
				So(s.Dial("inproc://shutdown"), ShouldEqual, sp.ErrClosed)
				So(s.Listen("inproc://shutdown"), ShouldEqual, sp.ErrClosed)
			})
			Convey("Options are still readable", func() {
				v, err := s.GetOption(sp.OptionRecvDeadline)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, time.Second)
			})
			Convey("Close still succeeds once", func() {
				So(s.Close(), ShouldBeNil)
				So(s.Close(), ShouldEqual, sp.ErrClosed)
			})
		})

		Convey("After close everything fails", func() {
			So(s.Close(), ShouldBeNil)
			_, err := s.GetOption(sp.OptionRecvDeadline)
			So(err, ShouldEqual, sp.ErrClosed)
			So(s.SetOption(sp.OptionRecvDeadline, time.Second), ShouldEqual, sp.ErrClosed)
			So(s.Shutdown(), ShouldEqual, sp.ErrClosed)
			_, err = s.Recv()
			So(err, ShouldEqual, sp.ErrClosed)
		})
	})
}

func TestOptionBytes(t *testing.T) {
	Convey("Given a socket", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()
		So(s.SetOption(sp.OptionRecvDeadline, time.Duration(0x0102)), ShouldBeNil)

		Convey("A short buffer gets the size and nothing else", func() {
			buf := []byte{9, 9, 9, 9}
			n, err := s.GetOptionBytes(sp.OptionRecvDeadline, buf)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 8)
			So(buf, ShouldResemble, []byte{9, 9, 9, 9})
		})

		Convey("A big enough buffer gets the value", func() {
			buf := make([]byte, 10)
			n, err := s.GetOptionBytes(sp.OptionRecvDeadline, buf)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 8)
			So(buf[:n], ShouldResemble, []byte{0, 0, 0, 0, 0, 0, 1, 2})
		})

		Convey("Options can be set from bytes", func() {
			So(s.SetOptionBytes(sp.OptionSendDeadline, []byte{0, 0, 0, 0, 0, 0, 0, 5}), ShouldBeNil)
			v, err := s.GetOption(sp.OptionSendDeadline)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, time.Duration(5))
			So(s.SetOptionBytes(sp.OptionSendDeadline, []byte{1}), ShouldEqual, sp.ErrBadValue)
			So(s.SetOptionBytes(sp.OptionProtocol, []byte{0, 16}), ShouldEqual, sp.ErrReadOnly)
		})

		Convey("The protocol number is two bytes", func() {
			buf := make([]byte, 2)
			n, err := s.GetOptionBytes(sp.OptionProtocol, buf)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(buf, ShouldResemble, []byte{0, 16})
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("Given a socket", t, func() {
		s := newSock(push.NewSocket)
		defer s.Close()

		Convey("Read-only options refuse writes", func() {
			for _, name := range []string{
				sp.OptionProtocol, sp.OptionPeer, sp.OptionPipeCount,
				sp.OptionMessagesSent, sp.OptionMessagesReceived, sp.OptionRaw,
			} {
				So(s.SetOption(name, 1), ShouldEqual, sp.ErrReadOnly)
			}
		})

		Convey("Protocol identity is reported", func() {
			v, err := s.GetOption(sp.OptionProtocol)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, uint16(sp.ProtoPush))
			v, err = s.GetOption(sp.OptionPeer)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, uint16(sp.ProtoPull))
		})

		Convey("Bad values and names are refused", func() {
			So(s.SetOption(sp.OptionRecvDeadline, 5), ShouldEqual, sp.ErrBadValue)
			So(s.SetOption(sp.OptionMaxRecvSize, -1), ShouldEqual, sp.ErrBadValue)
			So(s.SetOption(sp.OptionLogger, "stderr"), ShouldEqual, sp.ErrBadValue)
			So(s.SetOption("NO-SUCH-OPTION", 5), ShouldEqual, sp.ErrBadOption)
			_, err := s.GetOption("NO-SUCH-OPTION")
			So(err, ShouldEqual, sp.ErrBadOption)
		})

		Convey("Negative deadlines mean forever", func() {
			So(s.SetOption(sp.OptionSendDeadline, -5*time.Second), ShouldBeNil)
			v, err := s.GetOption(sp.OptionSendDeadline)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, sp.Infinite)
		})
	})
}

func TestBadTransport(t *testing.T) {
	Convey("Given a socket", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()

		Convey("Unknown schemes are not supported", func() {
			So(s.Dial("bogus://somewhere"), ShouldEqual, sp.ErrBadTran)
			So(s.DialFlags("bogus://somewhere", sp.FlagSynch), ShouldEqual, sp.ErrBadTran)
			So(s.Listen("bogus://somewhere"), ShouldEqual, sp.ErrBadTran)
			So(s.ListenFlags("bogus://somewhere", sp.FlagSynch), ShouldEqual, sp.ErrBadTran)
		})

		Convey("Synchronous dial to nobody is refused", func() {
			So(s.DialFlags("inproc://notthere", sp.FlagSynch), ShouldEqual, sp.ErrConnRefused)
		})

		Convey("Asynchronous dial to nobody succeeds", func() {
			So(s.Dial("inproc://notthere"), ShouldBeNil)
		})

		Convey("A second listener on an address is refused", func() {
			So(s.Listen("inproc://twice"), ShouldBeNil)
			s2 := newSock(pair.NewSocket)
			defer s2.Close()
			So(s2.Listen("inproc://twice"), ShouldEqual, sp.ErrAddrInUse)
			So(s.Listen("inproc://twice"), ShouldEqual, sp.ErrAddrInUse)
		})

		Convey("Distinct addresses listen independently", func() {
			So(s.Listen("inproc://one"), ShouldBeNil)
			So(s.Listen("inproc://two"), ShouldBeNil)
			So(s.ListenFlags("inproc://three", sp.FlagSynch), ShouldBeNil)
		})

		Convey("An incompatible peer is refused", func() {
			So(s.Listen("inproc://mismatch"), ShouldBeNil)
			s2 := newSock(push.NewSocket)
			defer s2.Close()
			So(s2.DialFlags("inproc://mismatch", sp.FlagSynch), ShouldEqual, sp.ErrBadProto)
		})
	})
}

func ipcAddr(name string) string {
	return "ipc://" + filepath.Join(os.TempDir(), fmt.Sprintf("sp-%s-%d.sock", name, os.Getpid()))
}

func TestEndToEnd(t *testing.T) {
	addrs := []string{
		"inproc://e2e",
		"tcp://127.0.0.1:0",
		"ws://127.0.0.1:0/e2e",
	}
	if os.PathSeparator == '/' {
		addrs = append(addrs, ipcAddr("e2e"))
	}
	for _, addr := range addrs {
		Convey("Pair sockets exchange messages over "+addr, t, func() {
			s1 := newSock(pair.NewSocket)
			defer s1.Close()
			s2 := newSock(pair.NewSocket)
			defer s2.Close()
			So(s1.SetOption(sp.OptionRecvDeadline, time.Second), ShouldBeNil)
			So(s2.SetOption(sp.OptionRecvDeadline, time.Second), ShouldBeNil)
			connect(s1, s2, addr)

			So(s2.Send([]byte("abc")), ShouldBeNil)
			b, err := s1.Recv()
			So(err, ShouldBeNil)
			So(b, ShouldResemble, []byte("abc"))

			So(s1.Send([]byte("def")), ShouldBeNil)
			m, err := s2.RecvMsg()
			So(err, ShouldBeNil)
			So(string(m.Body), ShouldEqual, "def")
			So(m.Pipe, ShouldNotBeNil)
			So(m.Pipe.Dialer(), ShouldNotBeNil)
			m.Free()

			v, err := s1.GetOption(sp.OptionMessagesReceived)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, uint64(1))
			v, err = s1.GetOption(sp.OptionMessagesSent)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, uint64(1))
			for _, s := range []sp.Socket{s1, s2} {
				v, err = s.GetOption(sp.OptionPipeCount)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 1)
			}
		})
	}
}

func TestBackpressure(t *testing.T) {
	Convey("Given a pipeline with short queues and an idle puller", t, func() {
		tx := newSock(push.NewSocket)
		defer tx.Close()
		rx := newSock(pull.NewSocket)
		defer rx.Close()
		So(tx.SetOption(sp.OptionWriteQLen, 1), ShouldBeNil)
		So(rx.SetOption(sp.OptionReadQLen, 1), ShouldBeNil)
		So(tx.SetOption(sp.OptionSendDeadline, 200*time.Millisecond), ShouldBeNil)
		connect(rx, tx, "inproc://backpressure")

		// With both queues one deep the pipeline holds exactly four
		// messages: one in the pull read queue, one held by the pull
		// pipe waiting for room there, one held by the push pipe in
		// the unbuffered inproc hand-off, and one in the push write
		// queue.
		Convey("Sends eventually time out and nothing is lost", func() {
			sent := 0
			var err error
			for sent < 20 {
				if err = tx.Send([]byte{byte(sent)}); err != nil {
					break
				}
				sent++
			}
			So(err, ShouldEqual, sp.ErrSendTimeout)
			So(sent, ShouldEqual, 4)

			m := sp.NewMessage(1)
			m.Body = append(m.Body, 0xff)
			So(tx.SendMsgFlags(m, sp.FlagNonBlock), ShouldEqual, sp.ErrWouldBlock)
			m.Free()

			So(rx.SetOption(sp.OptionRecvDeadline, time.Second), ShouldBeNil)
			for i := 0; i < sent; i++ {
				b, err := rx.Recv()
				So(err, ShouldBeNil)
				So(b, ShouldResemble, []byte{byte(i)})
			}

			// Draining makes room again.
			So(tx.Send([]byte("more")), ShouldBeNil)
			b, err := rx.Recv()
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "more")
		})
	})
}

func TestPubSub(t *testing.T) {
	Convey("Given a publisher and a subscriber", t, func() {
		p := newSock(pub.NewSocket)
		defer p.Close()
		s := newSock(sub.NewSocket)
		defer s.Close()
		connect(s, p, "inproc://pubsub")
		So(s.SetOption(sp.OptionSubscribe, "weather"), ShouldBeNil)
		So(s.SetOption(sp.OptionRecvDeadline, 100*time.Millisecond), ShouldBeNil)

		Convey("Only subscribed topics arrive", func() {
			So(p.Send([]byte("sports: tied")), ShouldBeNil)
			So(p.Send([]byte("weather: rain")), ShouldBeNil)
			b, err := s.Recv()
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "weather: rain")
			_, err = s.Recv()
			So(err, ShouldEqual, sp.ErrRecvTimeout)
		})

		Convey("Publishers cannot receive, subscribers cannot send", func() {
			_, err := p.Recv()
			So(err, ShouldEqual, sp.ErrProtoOp)
			So(s.Send([]byte("x")), ShouldEqual, sp.ErrProtoOp)
		})
	})
}

func TestBus(t *testing.T) {
	Convey("Given three bus sockets in a line", t, func() {
		a := newSock(bus.NewSocket)
		defer a.Close()
		b := newSock(bus.NewSocket)
		defer b.Close()
		c := newSock(bus.NewSocket)
		defer c.Close()
		connect(b, a, "inproc://bus-ab")
		connect(b, c, "inproc://bus-bc")
		for _, s := range []sp.Socket{a, b, c} {
			So(s.SetOption(sp.OptionRecvDeadline, 100*time.Millisecond), ShouldBeNil)
		}

		Convey("The middle reaches both ends", func() {
			So(b.Send([]byte("hello")), ShouldBeNil)
			for _, s := range []sp.Socket{a, c} {
				m, err := s.Recv()
				So(err, ShouldBeNil)
				So(string(m), ShouldEqual, "hello")
			}
		})

		Convey("An end reaches only its neighbor", func() {
			So(a.Send([]byte("psst")), ShouldBeNil)
			m, err := b.Recv()
			So(err, ShouldBeNil)
			So(string(m), ShouldEqual, "psst")
			_, err = c.Recv()
			So(err, ShouldEqual, sp.ErrRecvTimeout)
		})
	})
}

func TestSocketTransports(t *testing.T) {
	Convey("A socket can carry its own transports", t, func() {
		s := newSock(pair.NewSocket)
		defer s.Close()
		all.AddTransports(s)
		So(s.Listen("inproc://own-transports"), ShouldBeNil)
	})
}

func TestOpenByNumber(t *testing.T) {
	Convey("Sockets open by protocol number", t, func() {
		s, err := protocol.Open(sp.ProtoPair)
		So(err, ShouldBeNil)
		defer s.Close()
		So(s.Info().SelfName, ShouldEqual, "pair")

		_, err = protocol.Open(0xffff)
		So(err, ShouldEqual, sp.ErrBadProto)
	})
}

func TestMessage(t *testing.T) {
	Convey("Given a message", t, func() {
		m := sp.NewMessage(16)
		m.Body = append(m.Body, "hello"...)

		Convey("Clone shares it until the last free", func() {
			c := m.Clone()
			So(c, ShouldEqual, m)
			u := c.MakeUnique()
			So(u, ShouldNotEqual, m)
			So(bytes.Equal(u.Body, m.Body), ShouldBeTrue)
			u.Free()
			m.Free()
		})

		Convey("Dup copies it", func() {
			d := m.Dup()
			d.Body[0] = 'j'
			So(string(m.Body), ShouldEqual, "hello")
			So(d.Len(), ShouldEqual, 5)
			d.Free()
			m.Free()
		})

		Convey("A body supplied by the caller is not recycled", func() {
			mine := []byte("abc")
			m.Body = mine
			m.Free()
			for i := 0; i < 10; i++ {
				n := sp.NewMessage(3)
				n.Body = append(n.Body, "xyz"...)
				defer n.Free()
			}
			So(string(mine), ShouldEqual, "abc")
		})

		Convey("A body moved by append is not recycled", func() {
			m.Body = append(m.Body, make([]byte, cap(m.Body))...)
			grown := m.Body
			m.Free()
			for i := 0; i < 10; i++ {
				n := sp.NewMessage(len(grown))
				n.Body = append(n.Body, bytes.Repeat([]byte("z"), len(grown))...)
				defer n.Free()
			}
			So(string(grown[:5]), ShouldEqual, "hello")
		})

		Convey("Freeing twice panics", func() {
			m.Free()
			So(m.Free, ShouldPanic)
		})
	})
}
