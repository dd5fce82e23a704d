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

package xep0030

import (
	"testing"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	discomodel "github.com/locpub/locpub/model/disco"
	"github.com/stretchr/testify/require"
)

func TestResponder_ResultIQ(t *testing.T) {
	r := NewResponder(
		discomodel.Identity{Category: "client", Type: "console", Name: "locpub"},
		[]discomodel.Feature{
			"http://jabber.org/protocol/caps",
			"http://jabber.org/protocol/disco#info",
			"http://jabber.org/protocol/geoloc",
		},
	)
	from, _ := jid.NewWithString("hamlet@jackal.im/balcony", true)
	to, _ := jid.NewWithString("ortuman@jackal.im/yard", true)

	iq, err := r.ResultIQ(from, to, "iq-1234", "")
	require.NoError(t, err)

	require.Equal(t, "iq-1234", iq.Attribute(stravaganza.ID))
	require.Equal(t, "ortuman@jackal.im/yard", iq.Attribute(stravaganza.To))
	require.True(t, iq.IsResult())

	query := iq.ChildNamespace("query", discoInfoNamespace)
	require.NotNil(t, query)
	require.Empty(t, query.Attribute("node"))

	identity := query.Child("identity")
	require.NotNil(t, identity)
	require.Equal(t, "client", identity.Attribute("category"))
	require.Equal(t, "console", identity.Attribute("type"))
	require.Equal(t, "locpub", identity.Attribute("name"))

	features := query.Children("feature")
	require.Len(t, features, 3)
	require.Equal(t, "http://jabber.org/protocol/caps", features[0].Attribute("var"))
}

func TestResponder_EchoesQueryNode(t *testing.T) {
	r := NewResponder(
		discomodel.Identity{Category: "client", Type: "console", Name: "locpub"},
		nil,
	)
	from, _ := jid.NewWithString("hamlet@jackal.im/balcony", true)
	to, _ := jid.NewWithString("noelia@jackal.im/hall", true)

	iq, err := r.ResultIQ(from, to, "iq-5678", "https://locpub.app#QgayPKawpkPSDYmwT/WM94uAlu0=")
	require.NoError(t, err)

	query := iq.ChildNamespace("query", discoInfoNamespace)
	require.NotNil(t, query)
	require.Equal(t, "https://locpub.app#QgayPKawpkPSDYmwT/WM94uAlu0=", query.Attribute("node"))
}
