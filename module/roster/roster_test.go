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

package roster

import (
	"testing"

	"github.com/jackal-xmpp/stravaganza/v2"
	rostermodel "github.com/locpub/locpub/model/rostermodel"
	"github.com/stretchr/testify/require"
)

func rosterResultIQ(t *testing.T, items ...stravaganza.Element) *stravaganza.IQ {
	t.Helper()
	iq, err := stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, "ros-1").
		WithAttribute(stravaganza.From, "ortuman@jackal.im").
		WithAttribute(stravaganza.To, "ortuman@jackal.im/yard").
		WithAttribute(stravaganza.Type, stravaganza.ResultType).
		WithChild(
			stravaganza.NewBuilder("query").
				WithAttribute(stravaganza.Namespace, rosterNamespace).
				WithChildren(items...).
				Build(),
		).
		BuildIQ()
	require.NoError(t, err)
	return iq
}

func rosterItem(jd, name, sub string) stravaganza.Element {
	b := stravaganza.NewBuilder("item").
		WithAttribute("jid", jd).
		WithAttribute("subscription", sub)
	if len(name) > 0 {
		b = b.WithAttribute("name", name)
	}
	return b.Build()
}

func TestTracker_ReplaceAll(t *testing.T) {
	tr := NewTracker()

	tr.ReplaceAll(rosterResultIQ(t,
		rosterItem("noelia@jackal.im", "Noelia", "both"),
		rosterItem("hamlet@jackal.im", "", "to"),
	))

	items := tr.Snapshot()
	require.Len(t, items, 2)

	item, ok := tr.Item("hamlet@jackal.im")
	require.True(t, ok)
	require.Equal(t, "hamlet", item.Name)
	require.Equal(t, rostermodel.SubscriptionTo, item.Subscription)
}

func TestTracker_ReplaceAllPreservesOnlineFlag(t *testing.T) {
	tr := NewTracker()
	tr.ReplaceAll(rosterResultIQ(t, rosterItem("noelia@jackal.im", "Noelia", "both")))

	require.True(t, tr.SetOnline("noelia@jackal.im", true))

	tr.ReplaceAll(rosterResultIQ(t,
		rosterItem("noelia@jackal.im", "Noelia", "both"),
		rosterItem("hamlet@jackal.im", "Hamlet", "from"),
	))
	item, _ := tr.Item("noelia@jackal.im")
	require.True(t, item.Online)

	item, _ = tr.Item("hamlet@jackal.im")
	require.False(t, item.Online)
}

func TestTracker_SetOnlineEdge(t *testing.T) {
	tr := NewTracker()
	tr.ReplaceAll(rosterResultIQ(t, rosterItem("noelia@jackal.im", "Noelia", "both")))

	// only the offline to online transition reports an edge
	require.True(t, tr.SetOnline("noelia@jackal.im", true))
	require.False(t, tr.SetOnline("noelia@jackal.im", true))
	require.False(t, tr.SetOnline("noelia@jackal.im", false))
	require.True(t, tr.SetOnline("noelia@jackal.im", true))

	// unknown contacts never report an edge
	require.False(t, tr.SetOnline("stranger@jackal.im", true))
}

func TestTracker_SnapshotOrder(t *testing.T) {
	tr := NewTracker()
	tr.ReplaceAll(rosterResultIQ(t,
		rosterItem("a@jackal.im", "Zed", "both"),
		rosterItem("b@jackal.im", "Amy", "both"),
		rosterItem("c@jackal.im", "Bob", "both"),
	))
	tr.SetOnline("a@jackal.im", true)

	items := tr.Snapshot()
	require.Equal(t, "Zed", items[0].Name) // online first
	require.Equal(t, "Amy", items[1].Name)
	require.Equal(t, "Bob", items[2].Name)
}

func TestTracker_Refreshable(t *testing.T) {
	tr := NewTracker()
	tr.ReplaceAll(rosterResultIQ(t,
		rosterItem("both-offline@jackal.im", "A", "both"),
		rosterItem("to-online@jackal.im", "B", "to"),
		rosterItem("to-offline@jackal.im", "C", "to"),
	))
	tr.SetOnline("to-online@jackal.im", true)

	jids := tr.Refreshable()
	require.ElementsMatch(t, []string{"both-offline@jackal.im", "to-online@jackal.im"}, jids)
}
