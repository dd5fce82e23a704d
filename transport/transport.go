// Copyright 2023 The locpub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/pkg/errors"
)

// ErrRequestTimeout will be passed to an IQ error handler when no response
// arrived within the configured request timeout.
var ErrRequestTimeout = errors.New("transport: request timeout")

// ErrNotConnected will be returned when trying to operate over a transport
// that is not connected.
var ErrNotConnected = errors.New("transport: not connected")

// Status represents a transport connection status.
type Status int

const (
	// Connecting status is reported while the connection is being established.
	Connecting Status = iota

	// Connected status is reported once the stream is authenticated and bound.
	Connected

	// ConnectionFailed status is reported when the connection could not be established.
	ConnectionFailed

	// AuthFailed status is reported when stream credentials were rejected.
	AuthFailed

	// Disconnecting status is reported while tearing down the connection.
	Disconnecting

	// Disconnected status is reported once the connection is fully torn down.
	Disconnected
)

// String returns status string representation.
func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionFailed:
		return "connection-failed"
	case AuthFailed:
		return "auth-failed"
	case Disconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// StatusHandler is invoked on every connection status transition.
type StatusHandler func(status Status)

// EventHandler is invoked when an inbound event of a registered kind arrives.
type EventHandler func(ev *InboundEvent)

// IQResultHandler is invoked when an IQ request completes with a result.
type IQResultHandler func(iq *stravaganza.IQ)

// IQErrorHandler is invoked when an IQ request fails or times out.
type IQErrorHandler func(err error)

// Transport represents the session transport collaborator. Registered event
// handlers are cleared on every disconnection, so consumers must re-register
// them on each successful connect.
type Transport interface {
	// Connect asynchronously establishes and authenticates the stream,
	// reporting progress through hnd.
	Connect(ctx context.Context, identifier, secret string, hnd StatusHandler) error

	// Disconnect gracefully closes the stream.
	Disconnect(ctx context.Context) error

	// AddHandler registers an inbound event handler for the given kind.
	AddHandler(kind EventKind, hnd EventHandler)

	// Send writes a stanza over the stream in a fire-and-forget fashion.
	Send(elem stravaganza.Element) error

	// SendIQ writes an IQ stanza tracking its response: exactly one of the
	// passed handlers is eventually invoked.
	SendIQ(iq *stravaganza.IQ, onResult IQResultHandler, onError IQErrorHandler) error
}
