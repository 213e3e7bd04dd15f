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

// Package all is used to register all transports.  This allows a program
// to support all known transports with a single import.
package all

import (
	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/transport/inproc"
	"nanomsg.org/go/sp/transport/ipc"
	"nanomsg.org/go/sp/transport/tcp"
	"nanomsg.org/go/sp/transport/ws"
)

// AddTransports adds all known transports to the given socket.  This
// is only needed for sockets that must not depend on the global
// registrations, which importing this package already performs.
func AddTransports(sock sp.Socket) {
	sock.AddTransport(inproc.Transport)
	sock.AddTransport(ipc.Transport)
	sock.AddTransport(tcp.Transport)
	sock.AddTransport(ws.Transport)
}
