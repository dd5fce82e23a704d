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
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
)

const (
	discoInfoNamespace   = "http://jabber.org/protocol/disco#info"
	pubSubEventNamespace = "http://jabber.org/protocol/pubsub#event"
)

// EventKind represents the closed set of inbound event kinds the session layer
// consumes. Classification happens once, at the transport boundary.
type EventKind int

const (
	// DiscoInfoQuery represents an inbound disco#info get query.
	DiscoInfoQuery EventKind = iota

	// PubSubItem represents an inbound pub/sub item notification.
	PubSubItem

	// PubSubRetract represents an inbound pub/sub item retraction notification.
	PubSubRetract

	// Presence represents an inbound presence update.
	Presence
)

// InboundEvent represents a classified inbound stanza.
type InboundEvent struct {
	// Kind is the classified event kind.
	Kind EventKind

	// From is the stanza originator address.
	From *jid.JID

	// ID is the originating stanza identifier.
	ID string

	// Node carries the pub/sub node or the disco query node, when present.
	Node string

	// PresenceType carries the presence stanza type attribute, when present.
	PresenceType string

	// Payload carries the event relevant child element: the disco query
	// element or the notified pub/sub item.
	Payload stravaganza.Element
}

// classifyStanza decides the inbound event kind of a stanza, returning nil for
// stanzas the session layer has no interest in.
func classifyStanza(stanza stravaganza.Stanza) *InboundEvent {
	switch st := stanza.(type) {
	case *stravaganza.IQ:
		return classifyIQ(st)
	case *stravaganza.Presence:
		return &InboundEvent{
			Kind:         Presence,
			From:         st.FromJID(),
			ID:           st.Attribute(stravaganza.ID),
			PresenceType: st.Attribute(stravaganza.Type),
		}
	case *stravaganza.Message:
		return classifyMessage(st)
	}
	return nil
}

func classifyIQ(iq *stravaganza.IQ) *InboundEvent {
	if !iq.IsGet() {
		return nil
	}
	query := iq.ChildNamespace("query", discoInfoNamespace)
	if query == nil {
		return nil
	}
	return &InboundEvent{
		Kind:    DiscoInfoQuery,
		From:    iq.FromJID(),
		ID:      iq.Attribute(stravaganza.ID),
		Node:    query.Attribute("node"),
		Payload: query,
	}
}

func classifyMessage(msg *stravaganza.Message) *InboundEvent {
	ev := msg.ChildNamespace("event", pubSubEventNamespace)
	if ev == nil {
		return nil
	}
	items := ev.Child("items")
	if items == nil {
		return nil
	}
	ie := &InboundEvent{
		From: msg.FromJID(),
		ID:   msg.Attribute(stravaganza.ID),
		Node: items.Attribute("node"),
	}
	if items.Child("retract") != nil {
		ie.Kind = PubSubRetract
		return ie
	}
	item := items.Child("item")
	if item == nil {
		return nil
	}
	ie.Kind = PubSubItem
	ie.Payload = item
	return ie
}
