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

// Package test provides the battery of checks every transport is
// expected to pass, so that each transport's tests can share it.
package test

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol/pair"
	"nanomsg.org/go/sp/protocol/pull"
	"nanomsg.org/go/sp/protocol/push"
)

// TranTest provides a common test structure for transports, so that they
// can implement a battery of standard tests.
type TranTest struct {
	addr     string
	tran     sp.Transport
	sockPush sp.Socket
	sockPull sp.Socket
	sockPair sp.Socket
}

// NewTranTest creates a TranTest.  The listener side speaks PULL and
// the dialer side PUSH.
func NewTranTest(tran sp.Transport, addr string) *TranTest {
	tt := &TranTest{addr: addr, tran: tran}
	tt.sockPush, _ = push.NewSocket()
	tt.sockPull, _ = pull.NewSocket()
	tt.sockPair, _ = pair.NewSocket()
	return tt
}

// Address returns the address the tests use.
func (tt *TranTest) Address() string {
	return tt.addr
}

func (tt *TranTest) listen(t *testing.T) sp.TranListener {
	l, err := tt.tran.NewListener(tt.addr, tt.sockPull)
	if err != nil {
		t.Fatalf("NewListener failed: %v", err)
	}
	if err = l.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	return l
}

// connect returns the accepted and dialed ends of one connection.
func (tt *TranTest) connect(t *testing.T, l sp.TranListener) (sp.TranPipe, sp.TranPipe) {
	var client sp.TranPipe
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d, err := tt.tran.NewDialer(l.Address(), tt.sockPush)
		if err != nil {
			t.Errorf("NewDialer failed: %v", err)
			return
		}
		if client, err = d.Dial(); err != nil {
			t.Errorf("Dial failed: %v", err)
		}
	}()

	server, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	wg.Wait()
	if client == nil {
		server.Close()
		t.FailNow()
	}
	return server, client
}

// TestListenAndAccept tests that we can both listen and accept connections
// for the given transport.
func (tt *TranTest) TestListenAndAccept(t *testing.T) {
	l := tt.listen(t)
	defer l.Close()

	server, client := tt.connect(t, l)
	defer server.Close()
	defer client.Close()

	if server.LocalProtocol() != sp.ProtoPull || server.RemoteProtocol() != sp.ProtoPush {
		t.Errorf("Server protocols wrong: %d %d",
			server.LocalProtocol(), server.RemoteProtocol())
	}
	if client.LocalProtocol() != sp.ProtoPush || client.RemoteProtocol() != sp.ProtoPull {
		t.Errorf("Client protocols wrong: %d %d",
			client.LocalProtocol(), client.RemoteProtocol())
	}
	if v, err := client.GetOption(sp.OptionRemoteAddr); err == nil {
		t.Logf("Dialed remote peer %v", v)
	}
	if _, err := client.GetOption("NO-SUCH-OPTION"); err != sp.ErrBadOption {
		t.Errorf("Expected ErrBadOption, got %v", err)
	}
}

// TestDuplicateListen checks to make sure that an attempt to listen
// on a second socket, when another listener is already present, properly
// fails with ErrAddrInUse.
func (tt *TranTest) TestDuplicateListen(t *testing.T) {
	l1 := tt.listen(t)
	defer l1.Close()

	l2, err := tt.tran.NewListener(tt.addr, tt.sockPull)
	if err != nil {
		t.Fatalf("NewListener failed: %v", err)
	}
	defer l2.Close()
	if err = l2.Listen(); err != sp.ErrAddrInUse {
		t.Errorf("Duplicate listen gave %v, expected ErrAddrInUse", err)
	}
}

// TestConnRefused tests that attempts to dial to an address without a listener
// properly fail with ErrConnRefused.
func (tt *TranTest) TestConnRefused(t *testing.T) {
	d, err := tt.tran.NewDialer(tt.addr, tt.sockPush)
	if err != nil || d == nil {
		t.Fatalf("NewDialer failed: %v", err)
	}
	c, err := d.Dial()
	if err != sp.ErrConnRefused || c != nil {
		t.Errorf("Connection not refused (%s): %v", tt.addr, err)
	}
}

// TestBadProtocol checks that a peer speaking an incompatible protocol
// is refused with ErrBadProto.
func (tt *TranTest) TestBadProtocol(t *testing.T) {
	l, err := tt.tran.NewListener(tt.addr, tt.sockPull)
	if err != nil {
		t.Fatalf("NewListener failed: %v", err)
	}
	if err = l.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	go func() {
		for {
			p, err := l.Accept()
			if err == sp.ErrClosed {
				return
			}
			if p != nil {
				p.Close()
			}
		}
	}()

	d, err := tt.tran.NewDialer(l.Address(), tt.sockPair)
	if err != nil {
		t.Fatalf("NewDialer failed: %v", err)
	}
	p, err := d.Dial()
	if err != sp.ErrBadProto {
		t.Errorf("Expected ErrBadProto, got %v", err)
	}
	if p != nil {
		p.Close()
	}
}

// TestSendRecv test that the transport can send and receive, in both
// directions, and that the sender gives up the message.
func (tt *TranTest) TestSendRecv(t *testing.T) {
	ping := []byte("REQUEST_MESSAGE")
	ack := []byte("RESPONSE_MESSAGE")

	l := tt.listen(t)
	defer l.Close()

	server, client := tt.connect(t, l)
	defer server.Close()
	defer client.Close()

	errq := make(chan error, 1)
	go func() {
		m := sp.NewMessage(len(ping))
		m.Body = append(m.Body, ping...)
		errq <- client.Send(m)
	}()

	m, err := server.Recv()
	if err != nil {
		t.Fatalf("Server receive error: %v", err)
	}
	if !bytes.Equal(m.Body, ping) {
		t.Errorf("Request mismatch: %v, %v", m.Body, ping)
	}
	if len(m.Header) != 0 {
		t.Errorf("Server request non-empty header: %v", m.Header)
	}
	m.Free()
	if err = <-errq; err != nil {
		t.Fatalf("Client send error: %v", err)
	}

	go func() {
		m := sp.NewMessage(len(ack))
		m.Body = append(m.Body, ack...)
		errq <- server.Send(m)
	}()
	m, err = client.Recv()
	if err != nil {
		t.Fatalf("Client receive error: %v", err)
	}
	if !bytes.Equal(m.Body, ack) {
		t.Errorf("Reply mismatch: %v, %v", m.Body, ack)
	}
	m.Free()
	if err = <-errq; err != nil {
		t.Fatalf("Server send error: %v", err)
	}
}

// TestClosedPipe checks that closing one end of a connection makes
// receives on the other end fail.
func (tt *TranTest) TestClosedPipe(t *testing.T) {
	l := tt.listen(t)
	defer l.Close()

	server, client := tt.connect(t, l)
	defer client.Close()

	errq := make(chan error, 1)
	go func() {
		_, err := client.Recv()
		errq <- err
	}()
	server.Close()

	select {
	case err := <-errq:
		if err == nil {
			t.Errorf("Receive on closed connection succeeded")
		}
	case <-time.After(5 * time.Second):
		t.Errorf("Receive did not notice the close")
	}
}

// TestAcceptAfterClose checks that Accept on a closed listener
// fails with ErrClosed.
func (tt *TranTest) TestAcceptAfterClose(t *testing.T) {
	l := tt.listen(t)
	l.Close()
	if _, err := l.Accept(); err != sp.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

// TestScheme tests the Scheme() entry point on the transport.
func (tt *TranTest) TestScheme(t *testing.T) {
	scheme := tt.tran.Scheme()
	if !strings.HasPrefix(tt.addr, scheme+"://") {
		t.Errorf("Wrong scheme: addr %s, scheme %s", tt.addr, scheme)
	}
	if _, err := tt.tran.NewDialer("bogus://x", tt.sockPush); err != sp.ErrBadTran {
		t.Errorf("Expected ErrBadTran, got %v", err)
	}
	if _, err := tt.tran.NewListener("bogus://x", tt.sockPull); err != sp.ErrBadTran {
		t.Errorf("Expected ErrBadTran, got %v", err)
	}
}

// TestOptionsInvalid tests passing invalid options to dialers and
// listeners.
func (tt *TranTest) TestOptionsInvalid(t *testing.T) {
	l, err := tt.tran.NewListener(tt.addr, tt.sockPull)
	if err != nil {
		t.Fatalf("Unable to create listener: %v", err)
	}
	defer l.Close()
	if err = l.SetOption("NO-SUCH-OPTION", true); err != sp.ErrBadOption {
		t.Errorf("Listener SetOption gave %v, expected ErrBadOption", err)
	}
	if _, err = l.GetOption("NO-SUCH-OPTION"); err != sp.ErrBadOption {
		t.Errorf("Listener GetOption gave %v, expected ErrBadOption", err)
	}

	d, err := tt.tran.NewDialer(tt.addr, tt.sockPush)
	if err != nil {
		t.Fatalf("Unable to create dialer: %v", err)
	}
	if err = d.SetOption("NO-SUCH-OPTION", true); err != sp.ErrBadOption {
		t.Errorf("Dialer SetOption gave %v, expected ErrBadOption", err)
	}
	if _, err = d.GetOption("NO-SUCH-OPTION"); err != sp.ErrBadOption {
		t.Errorf("Dialer GetOption gave %v, expected ErrBadOption", err)
	}
}

// TestAll runs a full battery of standard tests on the transport.
func (tt *TranTest) TestAll(t *testing.T) {
	t.Run("Scheme", tt.TestScheme)
	t.Run("ListenAndAccept", tt.TestListenAndAccept)
	t.Run("DuplicateListen", tt.TestDuplicateListen)
	t.Run("ConnRefused", tt.TestConnRefused)
	t.Run("BadProtocol", tt.TestBadProtocol)
	t.Run("SendRecv", tt.TestSendRecv)
	t.Run("ClosedPipe", tt.TestClosedPipe)
	t.Run("AcceptAfterClose", tt.TestAcceptAfterClose)
	t.Run("OptionsInvalid", tt.TestOptionsInvalid)
}
