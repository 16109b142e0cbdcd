// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package transport implements the server-sent event channel used to stream
// results back to gateway clients.
package transport

import (
	"errors"

	"github.com/google/uuid"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported by response writer")

// Event is one unit sent over a client's channel.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
	ID   string      `json:"id,omitempty"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(name string, data interface{}) Event {
	return Event{Name: name, Data: data, ID: uuid.NewString()}
}

// Delivery is the outcome of a best-effort send.
type Delivery int

const (
	// Delivered means the frame was written and flushed.
	Delivered Delivery = iota
	// ClientGone means there is no open channel for the client.
	ClientGone
	// WriteFailed means the channel was open but the write failed.
	WriteFailed
)

// OK reports whether the event reached the transport.
func (d Delivery) OK() bool {
	return d == Delivered
}

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case ClientGone:
		return "client_gone"
	case WriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}
