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

// spperf measures SP latency and throughput, in the manner of the
// libnanomsg perf tools.  The measurement is chosen by the name the
// program is invoked as, or by the first argument.
package main

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/sirupsen/logrus"
)

func intArgs(usage string, args []string) (string, int, int) {
	if len(args) < 3 {
		logrus.Fatalf("Usage: %s", usage)
	}
	a, err := strconv.Atoi(args[1])
	if err != nil {
		logrus.Fatalf("Bad msg-size: %v", err)
	}
	b, err := strconv.Atoi(args[2])
	if err != nil {
		logrus.Fatalf("Bad count: %v", err)
	}
	return args[0], a, b
}

func printLatency(r Result) {
	fmt.Printf("message size: %d [B]\n", r.Size)
	fmt.Printf("round trip count: %d\n", r.Count)
	fmt.Printf("average latency: %.3f [us]\n",
		float64(r.Latency().Nanoseconds())/1000.0)
}

func printThroughput(r Result) {
	fmt.Printf("message size: %d [B]\n", r.Size)
	fmt.Printf("message count: %d\n", r.Count)
	fmt.Printf("throughput: %d [msg/s]\n", uint64(r.MsgPerSec()))
	fmt.Printf("throughput: %.3f [Mb/s]\n", r.Mbps())
}

func check(err error) {
	if err != nil {
		logrus.Fatal(err)
	}
}

func run(cmd string, args []string) bool {
	switch cmd {
	case "remote_lat", "latency_client":
		addr, size, n := intArgs("remote_lat <connect-to> <msg-size> <roundtrips>", args)
		r, err := LatencyClient(addr, size, n)
		check(err)
		printLatency(r)

	case "local_lat", "latency_server":
		addr, size, n := intArgs("local_lat <bind-to> <msg-size> <roundtrips>", args)
		check(LatencyServer(addr, size, n, nil))

	case "remote_thr", "throughput_client":
		addr, size, n := intArgs("remote_thr <connect-to> <msg-size> <msg-count>", args)
		check(ThroughputClient(addr, size, n))

	case "local_thr", "throughput_server":
		addr, size, n := intArgs("local_thr <bind-to> <msg-size> <msg-count>", args)
		r, err := ThroughputServer(addr, size, n, nil)
		check(err)
		printThroughput(r)

	case "inproc_lat":
		_, size, n := intArgs("inproc_lat <msg-size> <roundtrip-count>",
			append([]string{""}, args...))
		ready := make(chan struct{})
		errq := make(chan error, 1)
		go func() { errq <- LatencyServer("inproc://inproc_lat", size, n, ready) }()
		<-ready
		r, err := LatencyClient("inproc://inproc_lat", size, n)
		check(err)
		check(<-errq)
		printLatency(r)

	case "inproc_thr":
		_, size, n := intArgs("inproc_thr <msg-size> <msg-count>",
			append([]string{""}, args...))
		ready := make(chan struct{})
		errq := make(chan error, 1)
		go func() {
			<-ready
			errq <- ThroughputClient("inproc://inproc_thr", size, n)
		}()
		r, err := ThroughputServer("inproc://inproc_thr", size, n, ready)
		check(err)
		check(<-errq)
		printThroughput(r)

	default:
		return false
	}
	return true
}

func main() {
	args := os.Args
	if run(path.Base(args[0]), args[1:]) {
		return
	}
	if len(args) > 1 && run(args[1], args[2:]) {
		return
	}
	fmt.Fprintln(os.Stderr, "Bad Usage!")
	os.Exit(1)
}
