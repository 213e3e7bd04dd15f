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

package pub_test

import (
	"testing"
	"time"

	"nanomsg.org/go/sp/internal/msgq"
	"nanomsg.org/go/sp/internal/test"
	"nanomsg.org/go/sp/protocol"
	"nanomsg.org/go/sp/protocol/pub"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPubInfo(t *testing.T) {
	Convey("Pub peers with sub", t, func() {
		info := pub.NewProtocol().Info()
		So(info.Self, ShouldEqual, protocol.ProtoPub)
		So(info.Peer, ShouldEqual, protocol.ProtoSub)
		So(info.SelfName, ShouldEqual, "pub")
		So(info.PeerName, ShouldEqual, "sub")
	})
}

func TestPub(t *testing.T) {
	Convey("Given a pub with two subscribers", t, func() {
		p := pub.NewProtocol()
		defer p.Close()
		mp1 := test.NewMockPipe()
		mp2 := test.NewMockPipe()
		So(p.AddPipe(mp1), ShouldBeNil)
		So(p.AddPipe(mp2), ShouldBeNil)

		Convey("Every subscriber gets each message", func() {
			So(p.SendMsg(test.NewMessage("news"), msgq.NonBlock), ShouldBeNil)
			body, err := mp1.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "news")
			body, err = mp2.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "news")
		})

		Convey("A slow subscriber misses messages", func() {
			So(p.SetOption(protocol.OptionWriteQLen, 2), ShouldBeNil)
			for i := 0; i < 10; i++ {
				So(p.SendMsg(test.NewMessage("x"), msgq.NonBlock), ShouldBeNil)
			}
			got := 0
			for {
				if _, err := mp1.Sent(50 * time.Millisecond); err != nil {
					break
				}
				got++
			}
			// Two queued, and perhaps one already taken by the sender.
			So(got, ShouldBeBetweenOrEqual, 2, 3)
		})

		Convey("Receiving is not allowed", func() {
			_, err := p.RecvMsg(msgq.NonBlock)
			So(err, ShouldEqual, protocol.ErrProtoOp)
		})

		Convey("A departed subscriber gets nothing", func() {
			p.RemovePipe(mp2)
			mp2.Close()
			So(p.SendMsg(test.NewMessage("news"), msgq.NonBlock), ShouldBeNil)
			body, err := mp1.Sent(time.Second)
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "news")
		})

		Convey("Sending after close fails", func() {
			So(p.Close(), ShouldBeNil)
			m := test.NewMessage("x")
			So(p.SendMsg(m, msgq.NonBlock), ShouldEqual, protocol.ErrClosed)
			m.Free()
		})
	})
}
