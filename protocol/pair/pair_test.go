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

package pair_test

import (
	"testing"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/internal/test"
	"nanomsg.org/go/sp/protocol"
	"nanomsg.org/go/sp/protocol/pair"

	. "github.com/smartystreets/goconvey/convey"
)

const wait = 50 * time.Millisecond

func TestPairInfo(t *testing.T) {
	Convey("Pair peers with pair", t, func() {
		info := pair.NewProtocol().Info()
		So(info.Self, ShouldEqual, protocol.ProtoPair)
		So(info.Peer, ShouldEqual, protocol.ProtoPair)
		So(info.SelfName, ShouldEqual, "pair")
		So(info.PeerName, ShouldEqual, "pair")
	})
}

func TestPairNoPeer(t *testing.T) {
	Convey("Given a pair with no peer", t, func() {
		p := pair.NewProtocol()
		defer p.Close()

		Convey("Non-blocking sends would block", func() {
			m := test.NewMessage("abc")
			So(p.SendMsg(m, msgq.NonBlock), ShouldEqual, protocol.ErrWouldBlock)
			m.Free()
		})

		Convey("Sends time out", func() {
			m := test.NewMessage("abc")
			start := time.Now()
			So(p.SendMsg(m, time.Now().Add(wait)), ShouldEqual, protocol.ErrSendTimeout)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, wait)
			m.Free()
		})

		Convey("Best effort sends are discarded", func() {
			So(p.SetOption(protocol.OptionBestEffort, true), ShouldBeNil)
			So(p.SendMsg(test.NewMessage("abc"), msgq.Forever), ShouldBeNil)
		})

		Convey("A waiting send completes when a peer arrives", func() {
			errq := make(chan error, 1)
			go func() {
				errq <- p.SendMsg(test.NewMessage("late"), time.Now().Add(time.Second))
			}()
			time.Sleep(wait)
			mp := test.NewMockPipe()
			So(p.AddPipe(mp), ShouldBeNil)
			So(<-errq, ShouldBeNil)
			body, err := mp.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "late")
		})

		Convey("Close wakes a waiting send", func() {
			errq := make(chan error, 1)
			m := test.NewMessage("abc")
			go func() {
				errq <- p.SendMsg(m, msgq.Forever)
			}()
			time.Sleep(wait)
			So(p.Close(), ShouldBeNil)
			So(<-errq, ShouldEqual, protocol.ErrClosed)
			m.Free()
		})
	})
}

func TestPairPeer(t *testing.T) {
	Convey("Given a pair with a peer", t, func() {
		p := pair.NewProtocol()
		So(p.SetOption(protocol.OptionWriteQLen, 1), ShouldBeNil)
		mp := test.NewMockPipe()
		So(p.AddPipe(mp), ShouldBeNil)
		defer p.Close()

		Convey("A second peer is refused", func() {
			So(p.AddPipe(test.NewMockPipe()), ShouldEqual, protocol.ErrProtoState)
		})

		Convey("Messages flow both ways", func() {
			So(p.SendMsg(test.NewMessage("abc"), msgq.Forever), ShouldBeNil)
			body, err := mp.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "abc")

			So(mp.Inject("def", time.Second), ShouldBeNil)
			m, err := p.RecvMsg(time.Now().Add(time.Second))
			So(err, ShouldBeNil)
			So(string(m.Body), ShouldEqual, "def")
			m.Free()
		})

		Convey("A slow peer pushes back", func() {
			// One in flight to the peer, one queued.
			So(p.SendMsg(test.NewMessage("1"), time.Now().Add(time.Second)), ShouldBeNil)
			So(p.SendMsg(test.NewMessage("2"), time.Now().Add(time.Second)), ShouldBeNil)
			m := test.NewMessage("3")
			So(p.SendMsg(m, time.Now().Add(wait)), ShouldEqual, protocol.ErrSendTimeout)

			Convey("Until it catches up", func() {
				body, err := mp.Sent(time.Second)
				So(err, ShouldBeNil)
				So(body, ShouldEqual, "1")
				So(p.SendMsg(m, time.Now().Add(time.Second)), ShouldBeNil)
				body, err = mp.Sent(time.Second)
				So(err, ShouldBeNil)
				So(body, ShouldEqual, "2")
				body, err = mp.Sent(time.Second)
				So(err, ShouldBeNil)
				So(body, ShouldEqual, "3")
			})
		})

		Convey("A departed peer makes room for another", func() {
			p.RemovePipe(mp)
			mp.Close()
			m := test.NewMessage("abc")
			So(p.SendMsg(m, msgq.NonBlock), ShouldEqual, protocol.ErrWouldBlock)
			m.Free()
			mp2 := test.NewMockPipe()
			So(p.AddPipe(mp2), ShouldBeNil)
			So(p.SendMsg(test.NewMessage("again"), time.Now().Add(time.Second)), ShouldBeNil)
			body, err := mp2.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "again")
		})

		Convey("Close closes the peer", func() {
			So(p.Close(), ShouldBeNil)
			So(p.Close(), ShouldEqual, protocol.ErrClosed)
			closed := false
			select {
			case <-mp.Closed():
				closed = true
			case <-time.After(time.Second):
			}
			So(closed, ShouldBeTrue)
			_, err := p.RecvMsg(msgq.Forever)
			So(err, ShouldEqual, protocol.ErrClosed)
			m := test.NewMessage("abc")
			So(p.SendMsg(m, msgq.Forever), ShouldEqual, protocol.ErrClosed)
			m.Free()
		})
	})
}

func TestPairOptions(t *testing.T) {
	Convey("Given a pair", t, func() {
		p := pair.NewProtocol()
		defer p.Close()

		Convey("It is not raw", func() {
			v, err := p.GetOption(protocol.OptionRaw)
			So(err, ShouldBeNil)
			So(v, ShouldBeFalse)
			So(p.SetOption(protocol.OptionRaw, true), ShouldEqual, protocol.ErrReadOnly)
		})

		Convey("Queue lengths can be changed", func() {
			So(p.SetOption(protocol.OptionReadQLen, 4), ShouldBeNil)
			v, err := p.GetOption(protocol.OptionReadQLen)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 4)
			So(p.SetOption(protocol.OptionWriteQLen, 0), ShouldBeNil)
			v, err = p.GetOption(protocol.OptionWriteQLen)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})

		Convey("Bad values are refused", func() {
			So(p.SetOption(protocol.OptionReadQLen, -1), ShouldEqual, protocol.ErrBadValue)
			So(p.SetOption(protocol.OptionWriteQLen, "x"), ShouldEqual, protocol.ErrBadValue)
			So(p.SetOption(protocol.OptionBestEffort, 1), ShouldEqual, protocol.ErrBadValue)
		})

		Convey("Unknown options are refused", func() {
			So(p.SetOption("NO-SUCH-OPTION", 1), ShouldEqual, protocol.ErrBadOption)
			_, err := p.GetOption("NO-SUCH-OPTION")
			So(err, ShouldEqual, protocol.ErrBadOption)
		})
	})
}
