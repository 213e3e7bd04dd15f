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

// Package all is used to register all protocols.  This allows a user to
// open any of them by name or number with protocol.Open, by just
// importing this one package.
package all

import (
	// Imported for their registration side effects.
	_ "nanomsg.org/go/sp/protocol/bus"
	_ "nanomsg.org/go/sp/protocol/pair"
	_ "nanomsg.org/go/sp/protocol/pub"
	_ "nanomsg.org/go/sp/protocol/pull"
	_ "nanomsg.org/go/sp/protocol/push"
	_ "nanomsg.org/go/sp/protocol/sub"
)
