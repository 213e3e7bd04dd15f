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

// Package sp provides a pure Go implementation of the Scalability
// Protocols core.  These are more familiarly known as "nanomsg", after
// the C-based software package that is also their reference
// implementation.
//
// A Socket exchanges discrete messages with its peers over pipes.
// Pipes are created by dialers and listeners bound to transport
// addresses such as inproc://name, ipc:///path, tcp://host:port and
// ws://host:port/path.  How messages are routed across the pipes of a
// socket (one peer, fan-out, load balancing) is decided by the
// protocol the socket was opened with; see the protocol packages.
//
// The root package holds only the interfaces and shared definitions.
// Sockets are created by the protocol packages, for example
// pair.NewSocket(), and transports are made available by importing
// them, usually all at once with transport/all.
//
// For more information, see www.nanomsg.org.
package sp
