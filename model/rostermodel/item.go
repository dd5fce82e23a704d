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

package rostermodel

import (
	"sort"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
)

// roster item subscription values
const (
	SubscriptionNone = "none"
	SubscriptionTo   = "to"
	SubscriptionFrom = "from"
	SubscriptionBoth = "both"
)

// Item represents a contact list entry along with its live presence flag.
type Item struct {
	JID          string
	Name         string
	Subscription string
	Online       bool
}

// NewItem parses an XML element returning a derived roster item instance.
// Unrecognized subscription values degrade to "none" and a missing name
// falls back to the JID local part.
func NewItem(elem stravaganza.Element) *Item {
	jd := elem.Attribute("jid")
	name := elem.Attribute("name")
	if len(name) == 0 {
		name = localPart(jd)
	}
	sub := elem.Attribute("subscription")
	switch sub {
	case SubscriptionNone, SubscriptionTo, SubscriptionFrom, SubscriptionBoth:
	default:
		sub = SubscriptionNone
	}
	return &Item{
		JID:          jd,
		Name:         name,
		Subscription: sub,
	}
}

// SortItems orders roster items for presentation: online contacts first,
// then lexicographically by display name.
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Online != items[j].Online {
			return items[i].Online
		}
		return items[i].Name < items[j].Name
	})
}

func localPart(jd string) string {
	if at := strings.Index(jd, "@"); at >= 0 {
		return jd[:at]
	}
	return jd
}
