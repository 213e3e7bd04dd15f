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

package all_test

import (
	"testing"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol"
	_ "nanomsg.org/go/sp/protocol/all"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOpen(t *testing.T) {
	Convey("Every protocol can be opened by number and name", t, func() {
		for _, info := range []sp.ProtocolInfo{
			{Self: sp.ProtoPair, Peer: sp.ProtoPair, SelfName: "pair", PeerName: "pair"},
			{Self: sp.ProtoPub, Peer: sp.ProtoSub, SelfName: "pub", PeerName: "sub"},
			{Self: sp.ProtoSub, Peer: sp.ProtoPub, SelfName: "sub", PeerName: "pub"},
			{Self: sp.ProtoPush, Peer: sp.ProtoPull, SelfName: "push", PeerName: "pull"},
			{Self: sp.ProtoPull, Peer: sp.ProtoPush, SelfName: "pull", PeerName: "push"},
			{Self: sp.ProtoBus, Peer: sp.ProtoBus, SelfName: "bus", PeerName: "bus"},
		} {
			s, err := protocol.Open(info.Self)
			So(err, ShouldBeNil)
			So(s.Info(), ShouldResemble, info)
			So(s.Close(), ShouldBeNil)

			s, err = protocol.OpenName(info.SelfName)
			So(err, ShouldBeNil)
			So(s.Info(), ShouldResemble, info)
			v, err := s.GetOption(sp.OptionProtocol)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, info.Self)
			So(s.Close(), ShouldBeNil)
		}
	})

	Convey("Unknown protocols are refused", t, func() {
		_, err := protocol.Open(9999)
		So(err, ShouldEqual, sp.ErrBadProto)
		_, err = protocol.OpenName("req")
		So(err, ShouldEqual, sp.ErrBadProto)
	})
}
