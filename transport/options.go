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
	"time"

	"nanomsg.org/go/sp"
	"nanomsg.org/go/sp/errors"
)

// Options is the option store used by transport dialers and
// listeners.  Only options the transport declares are accepted.
type Options map[string]interface{}

// NewOptions returns an option store that accepts the named options,
// with the given defaults.  Options without a default are declared
// by a nil value of the right type.
func NewOptions(defaults map[string]interface{}) Options {
	o := make(Options, len(defaults))
	for n, v := range defaults {
		o[n] = v
	}
	return o
}

// Get retrieves an option value.
func (o Options) Get(name string) (interface{}, error) {
	v, ok := o[name]
	if !ok {
		return nil, errors.ErrBadOption
	}
	return v, nil
}

// Set sets a declared option, checking that the value has the same
// type as the declared one.
func (o Options) Set(name string, val interface{}) error {
	old, ok := o[name]
	if !ok {
		return errors.ErrBadOption
	}
	switch old.(type) {
	case bool:
		if _, ok := val.(bool); !ok {
			return errors.ErrBadValue
		}
	case int:
		if v, ok := val.(int); !ok || v < 0 {
			return errors.ErrBadValue
		}
	case time.Duration:
		if _, ok := val.(time.Duration); !ok {
			return errors.ErrBadValue
		}
	}
	o[name] = val
	return nil
}

// MaxRecvSize returns the receive limit held in the store, or zero
// for no limit.
func (o Options) MaxRecvSize() int {
	if v, ok := o[sp.OptionMaxRecvSize].(int); ok {
		return v
	}
	return 0
}

// Bool returns a boolean option, or false if it is not set.
func (o Options) Bool(name string) bool {
	v, _ := o[name].(bool)
	return v
}
