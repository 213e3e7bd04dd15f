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

package transport

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// conn implements the Pipe interface on top of net.Conn.  The
// assumption is that transports using this have similar wire protocols,
// and conn is meant to be used as a building block.
type conn struct {
	c       net.Conn
	proto   ProtocolInfo
	open    bool
	options map[string]interface{}
	maxrx   int
	ipc     bool
	sync.Mutex
}

// Recv implements the Pipe Recv method.  The message received is expected
// as a 64-bit size (network byte order) followed by the message itself.
// IPC connections carry one extra leading byte, always 1, in front of
// the size.
func (p *conn) Recv() (*Message, error) {
	var hdr [9]byte

	h := hdr[1:]
	if p.ipc {
		h = hdr[:]
	}
	if _, err := io.ReadFull(p.c, h); err != nil {
		return nil, err
	}
	if p.ipc && hdr[0] != 1 {
		return nil, errors.ErrGarbled
	}
	sz := binary.BigEndian.Uint64(hdr[1:])

	// Limit messages to the maximum receive value, if not
	// unlimited.  This avoids a potential denial of service.
	if sz > uint64(1<<62) || (p.maxrx > 0 && sz > uint64(p.maxrx)) {
		return nil, errors.ErrTooLong
	}
	msg := sp.NewMessage(int(sz))
	msg.Body = msg.Body[0:sz]
	if _, err := io.ReadFull(p.c, msg.Body); err != nil {
		msg.Free()
		return nil, err
	}
	return msg, nil
}

// Send implements the Pipe Send method.  The message is sent as a 64-bit
// size (network byte order) followed by the message itself.
func (p *conn) Send(msg *Message) error {
	var hdr [9]byte

	hdr[0] = 1
	binary.BigEndian.PutUint64(hdr[1:], uint64(len(msg.Header)+len(msg.Body)))
	h := hdr[1:]
	if p.ipc {
		h = hdr[:]
	}

	buff := net.Buffers{h, msg.Header, msg.Body}
	if _, err := buff.WriteTo(p.c); err != nil {
		return err
	}

	msg.Free()
	return nil
}

// LocalProtocol returns our local protocol number.
func (p *conn) LocalProtocol() uint16 {
	return p.proto.Self
}

// RemoteProtocol returns our peer's protocol number.
func (p *conn) RemoteProtocol() uint16 {
	return p.proto.Peer
}

// Close implements the Pipe Close method.
func (p *conn) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.open {
		p.open = false
		return p.c.Close()
	}
	return nil
}

func (p *conn) GetOption(n string) (interface{}, error) {
	if v, ok := p.options[n]; ok {
		return v, nil
	}
	return nil, errors.ErrBadOption
}

// NewConnPipe allocates a new Pipe using the supplied net.Conn, and
// initializes it.  It performs the handshake required at the SP layer,
// only returning the Pipe once the SP layer negotiation is complete.
//
// Stream oriented transports can utilize this to implement a Transport.
// Using this layered interface, the implementation needn't bother
// concerning itself with passing actual SP messages once the lower
// layer connection is established.
func NewConnPipe(c net.Conn, proto ProtocolInfo, options Options) (Pipe, error) {
	return newConn(c, proto, options, false)
}

// NewConnPipeIPC is NewConnPipe for IPC connections, which frame each
// message with an extra leading byte for compatibility with nanomsg.
func NewConnPipeIPC(c net.Conn, proto ProtocolInfo, options Options) (Pipe, error) {
	return newConn(c, proto, options, true)
}

func newConn(c net.Conn, proto ProtocolInfo, options Options, ipc bool) (Pipe, error) {
	p := &conn{
		c:       c,
		proto:   proto,
		ipc:     ipc,
		options: make(map[string]interface{}),
	}

	p.options[sp.OptionMaxRecvSize] = int(0)
	for n, v := range options {
		p.options[n] = v
	}
	p.options[sp.OptionLocalAddr] = p.c.LocalAddr()
	p.options[sp.OptionRemoteAddr] = p.c.RemoteAddr()
	p.maxrx = options.MaxRecvSize()

	if err := p.handshake(); err != nil {
		return nil, err
	}

	return p, nil
}

// handshake establishes an SP connection between peers.  Both sides must
// send the header, then both sides must wait for the peer's header.
// The header is eight bytes: a zero, 'S', 'P', the version (zero), the
// 16-bit protocol number and two reserved zero bytes.  A peer that
// is not the protocol we expect is refused.
func (p *conn) handshake() error {
	var h [8]byte

	h[1] = 'S'
	h[2] = 'P'
	binary.BigEndian.PutUint16(h[4:], p.proto.Self)
	if _, err := p.c.Write(h[:]); err != nil {
		p.c.Close()
		return err
	}
	if _, err := io.ReadFull(p.c, h[:]); err != nil {
		p.c.Close()
		return err
	}
	if h[0] != 0 || h[1] != 'S' || h[2] != 'P' || h[6] != 0 || h[7] != 0 {
		p.c.Close()
		return errors.ErrBadHeader
	}
	// The only version number we support at present is "0", at offset 3.
	if h[3] != 0 {
		p.c.Close()
		return errors.ErrBadVersion
	}

	// The protocol number lives as 16-bits (big-endian) at offset 4.
	if binary.BigEndian.Uint16(h[4:]) != p.proto.Peer {
		p.c.Close()
		return errors.ErrBadProto
	}
	p.open = true
	return nil
}
