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
	"testing"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/stretchr/testify/require"
)

func TestItem_New(t *testing.T) {
	el := stravaganza.NewBuilder("item").
		WithAttribute("jid", "ortuman@jackal.im").
		WithAttribute("subscription", "both").
		Build()

	it := NewItem(el)

	require.Equal(t, "ortuman@jackal.im", it.JID)
	require.Equal(t, "ortuman", it.Name)
	require.Equal(t, SubscriptionBoth, it.Subscription)
	require.False(t, it.Online)
}

func TestItem_UnknownSubscription(t *testing.T) {
	el := stravaganza.NewBuilder("item").
		WithAttribute("jid", "noelia@jackal.im").
		WithAttribute("name", "Noelia").
		WithAttribute("subscription", "pending-out").
		Build()

	it := NewItem(el)

	require.Equal(t, "Noelia", it.Name)
	require.Equal(t, SubscriptionNone, it.Subscription)
}

func TestItem_Sort(t *testing.T) {
	items := []Item{
		{JID: "c@jackal.im", Name: "Carla", Online: false},
		{JID: "a@jackal.im", Name: "Abel", Online: false},
		{JID: "z@jackal.im", Name: "Zoe", Online: true},
		{JID: "m@jackal.im", Name: "Marcos", Online: true},
	}
	SortItems(items)

	require.Equal(t, "Marcos", items[0].Name)
	require.Equal(t, "Zoe", items[1].Name)
	require.Equal(t, "Abel", items[2].Name)
	require.Equal(t, "Carla", items[3].Name)
}
