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

// Package config loads socket profiles from YAML.  A profile names a
// protocol, the addresses to listen on and dial, and any socket
// options to set before connecting.
package config

import (
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/protocol"
	_ "nanomsg.org/go/sp/protocol/all"
)

// Config is a socket profile.  Unset options keep the socket defaults.
type Config struct {
	Protocol  string   `yaml:"protocol"`
	Listen    []string `yaml:"listen"`
	Dial      []string `yaml:"dial"`
	Subscribe []string `yaml:"subscribe"`
	LogLevel  string   `yaml:"logLevel"`

	RecvDeadline     *time.Duration `yaml:"recvDeadline"`
	SendDeadline     *time.Duration `yaml:"sendDeadline"`
	ReconnectTime    *time.Duration `yaml:"reconnectTime"`
	MaxReconnectTime *time.Duration `yaml:"maxReconnectTime"`
	ReadQLen         *int           `yaml:"readQLen"`
	WriteQLen        *int           `yaml:"writeQLen"`
	MaxRecvSize      *int           `yaml:"maxRecvSize"`
	BestEffort       *bool          `yaml:"bestEffort"`
}

// Load reads and parses the profile at path.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a YAML profile and checks it for obvious mistakes.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	for _, addrs := range [][]string{c.Listen, c.Dial} {
		for _, a := range addrs {
			if !strings.Contains(a, "://") {
				return fmt.Errorf("config: invalid address %q", a)
			}
		}
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config: %v", err)
		}
	}
	if len(c.Subscribe) > 0 && c.Protocol != "" && c.Protocol != "sub" {
		return fmt.Errorf("config: subscriptions need a sub socket, not %s", c.Protocol)
	}
	return nil
}

// Level returns the configured log level, Info when none is set.
func (c *Config) Level() logrus.Level {
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		return lvl
	}
	return logrus.InfoLevel
}

// Open creates a socket for the profile's protocol and applies the
// profile to it.  Nothing is connected yet; see Connect.
func (c *Config) Open() (sp.Socket, error) {
	if c.Protocol == "" {
		return nil, fmt.Errorf("config: no protocol")
	}
	sock, err := protocol.OpenName(c.Protocol)
	if err != nil {
		return nil, fmt.Errorf("config: protocol %s: %v", c.Protocol, err)
	}
	if err = c.Apply(sock); err != nil {
		sock.Close()
		return nil, err
	}
	return sock, nil
}

type setting struct {
	name  string
	value interface{}
}

func (c *Config) settings() []setting {
	var ss []setting
	add := func(name string, v interface{}) {
		ss = append(ss, setting{name, v})
	}
	if c.RecvDeadline != nil {
		add(sp.OptionRecvDeadline, *c.RecvDeadline)
	}
	if c.SendDeadline != nil {
		add(sp.OptionSendDeadline, *c.SendDeadline)
	}
	if c.ReconnectTime != nil {
		add(sp.OptionReconnectTime, *c.ReconnectTime)
	}
	if c.MaxReconnectTime != nil {
		add(sp.OptionMaxReconnectTime, *c.MaxReconnectTime)
	}
	if c.ReadQLen != nil {
		add(sp.OptionReadQLen, *c.ReadQLen)
	}
	if c.WriteQLen != nil {
		add(sp.OptionWriteQLen, *c.WriteQLen)
	}
	if c.MaxRecvSize != nil {
		add(sp.OptionMaxRecvSize, *c.MaxRecvSize)
	}
	if c.BestEffort != nil {
		add(sp.OptionBestEffort, *c.BestEffort)
	}
	for _, s := range c.Subscribe {
		add(sp.OptionSubscribe, s)
	}
	return ss
}

// Apply sets the profile's options and subscriptions on sock.
func (c *Config) Apply(sock sp.Socket) error {
	for _, s := range c.settings() {
		if err := sock.SetOption(s.name, s.value); err != nil {
			return fmt.Errorf("config: option %s: %v", s.name, err)
		}
	}
	return nil
}

// Connect starts the profile's listeners, then its dialers.  Dialing
// is asynchronous, so peers that are not up yet are retried.
func (c *Config) Connect(sock sp.Socket) error {
	for _, a := range c.Listen {
		if err := sock.Listen(a); err != nil {
			return fmt.Errorf("listen %s: %v", a, err)
		}
	}
	for _, a := range c.Dial {
		if err := sock.Dial(a); err != nil {
			return fmt.Errorf("dial %s: %v", a, err)
		}
	}
	return nil
}
