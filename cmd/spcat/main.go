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

// spcat implements a nanocat(1) workalike command.
package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/droundy/goopt"
	"github.com/sirupsen/logrus"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/internal/config"
	_ "nanomsg.org/go/sp/transport/all"
)

var (
	verbose      int
	cfg          = &config.Config{}
	cfgPath      string
	sendInterval time.Duration
	sendDelay    time.Duration
	sendData     []byte
	printFormat  string
)

func setProto(p string) error {
	if cfg.Protocol != "" {
		return errors.New("protocol already selected")
	}
	cfg.Protocol = p
	return nil
}

func addDial(addr string) error {
	if !strings.Contains(addr, "://") {
		return errors.New("invalid address format")
	}
	cfg.Dial = append(cfg.Dial, addr)
	return nil
}

func addListen(addr string) error {
	if !strings.Contains(addr, "://") {
		return errors.New("invalid address format")
	}
	cfg.Listen = append(cfg.Listen, addr)
	return nil
}

func setSeconds(d **time.Duration) func(string) error {
	return func(s string) error {
		v, err := parseSeconds(s)
		if err != nil {
			return err
		}
		*d = &v
		return nil
	}
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("value not a number")
	}
	return time.Duration(f * float64(time.Second)), nil
}

func setSendData(data string) error {
	if sendData != nil {
		return errors.New("data or file already set")
	}
	sendData = []byte(data)
	return nil
}

func setSendFile(path string) error {
	if sendData != nil {
		return errors.New("data or file already set")
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	sendData = b
	return nil
}

func setFormat(f string) error {
	if len(printFormat) > 0 {
		return errors.New("output format already set")
	}
	switch f {
	case "no", "raw", "ascii", "quoted", "msgpack":
	default:
		return errors.New("invalid format type")
	}
	printFormat = f
	return nil
}

func fatalf(format string, v ...interface{}) {
	logrus.Fatalf(format, v...)
}

func init() {
	goopt.NoArg([]string{"--verbose", "-v"}, "Increase verbosity",
		func() error {
			verbose++
			return nil
		})
	goopt.NoArg([]string{"--silent", "-q"}, "Decrease verbosity",
		func() error {
			verbose--
			return nil
		})
	goopt.ReqArg([]string{"--config", "-c"}, "FILE",
		"Load socket profile from YAML FILE",
		func(path string) error {
			cfgPath = path
			return nil
		})

	for _, name := range []string{"push", "pull", "pub", "sub", "bus", "pair"} {
		name := name
		goopt.NoArg([]string{"--" + name},
			"Use "+strings.ToUpper(name)+" socket type",
			func() error {
				return setProto(name)
			})
	}

	goopt.ReqArg([]string{"--bind"}, "ADDR", "Bind socket to ADDR",
		addListen)
	goopt.ReqArg([]string{"--connect"}, "ADDR", "Connect socket to ADDR",
		addDial)
	goopt.ReqArg([]string{"--bind-ipc", "-X"}, "PATH",
		"Bind socket to IPC PATH",
		func(path string) error { return addListen("ipc://" + path) })
	goopt.ReqArg([]string{"--connect-ipc", "-x"}, "PATH",
		"Connect socket to IPC PATH",
		func(path string) error { return addDial("ipc://" + path) })
	goopt.ReqArg([]string{"--bind-local", "-L"}, "PORT",
		"Bind socket to TCP localhost PORT",
		func(port string) error { return addListen("tcp://127.0.0.1:" + port) })
	goopt.ReqArg([]string{"--connect-local", "-l"}, "PORT",
		"Connect socket to TCP localhost PORT",
		func(port string) error { return addDial("tcp://127.0.0.1:" + port) })
	goopt.ReqArg([]string{"--subscribe"}, "PREFIX",
		"Subcribe to PREFIX (default is wildcard)",
		func(prefix string) error {
			cfg.Subscribe = append(cfg.Subscribe, prefix)
			return nil
		})
	goopt.ReqArg([]string{"--recv-timeout"}, "SEC", "Set receive timeout",
		setSeconds(&cfg.RecvDeadline))
	goopt.ReqArg([]string{"--send-timeout"}, "SEC", "Set send timeout",
		setSeconds(&cfg.SendDeadline))
	goopt.ReqArg([]string{"--send-delay", "-d"}, "SEC",
		"Set initial send delay",
		func(s string) (err error) {
			sendDelay, err = parseSeconds(s)
			return
		})
	goopt.ReqArg([]string{"--interval", "-i"}, "SEC",
		"Send DATA every SEC seconds",
		func(s string) (err error) {
			sendInterval, err = parseSeconds(s)
			return
		})
	goopt.NoArg([]string{"--raw"}, "Raw output, no delimiters",
		func() error { return setFormat("raw") })
	goopt.NoArg([]string{"--ascii", "-A"}, "ASCII output, one per line",
		func() error { return setFormat("ascii") })
	goopt.NoArg([]string{"--quoted", "-Q"}, "Quoted output, one per line",
		func() error { return setFormat("quoted") })
	goopt.NoArg([]string{"--msgpack"},
		"Msgpacked binary output (see msgpack.org)",
		func() error { return setFormat("msgpack") })
	goopt.ReqArg([]string{"--data", "-D"}, "DATA", "Data to send",
		setSendData)
	goopt.ReqArg([]string{"--file", "-F"}, "FILE", "Send contents of FILE",
		setSendFile)

	goopt.Description = func() string {
		return `spcat is a command-line interface to send and receive
data via the SP (nanomsg) protocols.  It is designed to be suitable for
use as a drop-in replacement for nanocat(1). `
	}
	goopt.Suite = "sp"
	goopt.Summary = "command line interface to SP messaging"
}

func printMsg(w io.Writer, format string, msg *sp.Message) {
	bw := bufio.NewWriter(w)
	switch format {
	case "no":
		return
	case "raw":
		bw.Write(msg.Body)
	case "ascii":
		for _, b := range msg.Body {
			if strconv.IsPrint(rune(b)) {
				bw.WriteByte(b)
			} else {
				bw.WriteByte('.')
			}
		}
		bw.WriteString("\n")
	case "quoted":
		for _, b := range msg.Body {
			switch b {
			case '\n':
				bw.WriteString("\\n")
			case '\r':
				bw.WriteString("\\r")
			case '\\':
				bw.WriteString("\\\\")
			case '"':
				bw.WriteString("\\\"")
			default:
				if strconv.IsPrint(rune(b)) {
					bw.WriteByte(b)
				} else {
					fmt.Fprintf(bw, "\\x%02x", b)
				}
			}
		}
		bw.WriteString("\n")
	case "msgpack":
		enc := make([]byte, 5)
		switch {
		case len(msg.Body) < 256:
			enc = enc[:2]
			enc[0] = 0xc4
			enc[1] = byte(len(msg.Body))
		case len(msg.Body) < 65536:
			enc = enc[:3]
			enc[0] = 0xc5
			binary.BigEndian.PutUint16(enc[1:], uint16(len(msg.Body)))
		default:
			enc[0] = 0xc6
			binary.BigEndian.PutUint32(enc[1:], uint32(len(msg.Body)))
		}
		bw.Write(enc)
		bw.Write(msg.Body)
	}
	bw.Flush()
}

func recvLoop(sock sp.Socket, done chan struct{}) {
	defer close(done)
	for {
		msg, err := sock.RecvMsg()
		switch err {
		case nil:
		case sp.ErrRecvTimeout, sp.ErrClosed:
			return
		default:
			fatalf("RecvMsg failed: %v", err)
		}
		printMsg(os.Stdout, printFormat, msg)
		msg.Free()
	}
}

func sendLoop(sock sp.Socket, done chan struct{}) {
	defer close(done)
	if sendData == nil {
		fatalf("No data to send!")
	}
	for {
		msg := sp.NewMessage(len(sendData))
		msg.Body = append(msg.Body, sendData...)
		if err := sock.SendMsg(msg); err != nil {
			msg.Free()
			fatalf("SendMsg failed: %v", err)
		}
		if sendInterval <= 0 {
			return
		}
		time.Sleep(sendInterval)
	}
}

func main() {
	goopt.Parse(nil)

	logrus.SetOutput(os.Stderr)
	switch {
	case verbose > 1:
		logrus.SetLevel(logrus.DebugLevel)
	case verbose < 0:
		logrus.SetLevel(logrus.ErrorLevel)
	}

	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
		merge(loaded, cfg)
		cfg = loaded
		if verbose == 0 && cfg.LogLevel != "" {
			logrus.SetLevel(cfg.Level())
		}
	}

	if cfg.Protocol == "" {
		fatalf("Protocol not specified.")
	}
	if len(cfg.Listen) == 0 && len(cfg.Dial) == 0 {
		fatalf("No address specified.")
	}
	if cfg.Protocol != "sub" && len(cfg.Subscribe) > 0 {
		fatalf("Subscriptions only valid with SUB type sockets.")
	}
	if cfg.Protocol == "sub" && len(cfg.Subscribe) == 0 {
		cfg.Subscribe = []string{""}
	}
	if printFormat == "" {
		printFormat = "raw"
	}

	sock, err := cfg.Open()
	if err != nil {
		fatalf("Failed creating socket: %v", err)
	}
	defer sock.Close()

	if err = cfg.Connect(sock); err != nil {
		fatalf("%v", err)
	}
	logrus.WithFields(logrus.Fields{
		"protocol": cfg.Protocol,
		"listen":   cfg.Listen,
		"dial":     cfg.Dial,
	}).Debug("socket ready")

	time.Sleep(sendDelay)

	rxdone := make(chan struct{})
	txdone := make(chan struct{})

	switch cfg.Protocol {
	case "push", "pub":
		go sendLoop(sock, txdone)
		close(rxdone)
	case "pull", "sub":
		go recvLoop(sock, rxdone)
		close(txdone)
	case "pair", "bus":
		if sendData != nil {
			go sendLoop(sock, txdone)
		} else {
			close(txdone)
		}
		go recvLoop(sock, rxdone)
	default:
		fatalf("Unknown protocol %s", cfg.Protocol)
	}

	<-rxdone
	<-txdone
}

// merge overlays settings given on the command line onto a loaded
// profile.
func merge(dst, src *config.Config) {
	if src.Protocol != "" {
		dst.Protocol = src.Protocol
	}
	dst.Listen = append(dst.Listen, src.Listen...)
	dst.Dial = append(dst.Dial, src.Dial...)
	dst.Subscribe = append(dst.Subscribe, src.Subscribe...)
	if src.RecvDeadline != nil {
		dst.RecvDeadline = src.RecvDeadline
	}
	if src.SendDeadline != nil {
		dst.SendDeadline = src.SendDeadline
	}
}
