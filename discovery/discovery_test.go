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

package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, string) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewResolver(time.Second)
	r.scheme = "http"
	return r, strings.TrimPrefix(srv.URL, "http://")
}

func TestDiscovery_PrefersSecureWebSocket(t *testing.T) {
	r, domain := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/.well-known/host-meta.json", req.URL.Path)
		_, _ = w.Write([]byte(`{
			"links": [
				{"rel": "urn:xmpp:alt-connections:websocket", "href": "ws://jackal.im:5290/ws"},
				{"rel": "urn:xmpp:alt-connections:websocket", "href": "wss://jackal.im:5290/ws"}
			]
		}`))
	})

	ep, err := r.Discover(context.Background(), domain)

	require.NoError(t, err)
	require.Equal(t, WebSocket, ep.Scheme)
	require.Equal(t, "wss://jackal.im:5290/ws", ep.URL)
}

func TestDiscovery_XMLFallbackTemplate(t *testing.T) {
	r, domain := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, ".json") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
			<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0">
				<Link rel="urn:xmpp:alt-connections:websocket" template="wss://{host}/xmpp-websocket"/>
			</XRD>`))
	})

	ep, err := r.Discover(context.Background(), domain)

	require.NoError(t, err)
	require.Equal(t, WebSocket, ep.Scheme)
	require.Equal(t, "wss://"+domain+"/xmpp-websocket", ep.URL)
}

func TestDiscovery_MalformedJSONFallsBackToXML(t *testing.T) {
	r, domain := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, ".json") {
			_, _ = w.Write([]byte(`{"links": [`)) // truncated body
			return
		}
		_, _ = w.Write([]byte(`<XRD><Link rel="urn:xmpp:alt-connections:xbosh" href="https://jackal.im/bosh"/></XRD>`))
	})

	ep, err := r.Discover(context.Background(), domain)

	require.NoError(t, err)
	require.Equal(t, BOSH, ep.Scheme)
	require.Equal(t, "https://jackal.im/bosh", ep.URL)
}

func TestDiscovery_NoAlternativeLinks(t *testing.T) {
	r, domain := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, ".json") {
			_, _ = w.Write([]byte(`{"links": [{"rel": "lrdd", "href": "https://jackal.im/lrdd"}]}`))
			return
		}
		_, _ = w.Write([]byte(`<XRD></XRD>`))
	})

	ep, err := r.Discover(context.Background(), domain)

	require.Nil(t, ep)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscovery_UnreachableHost(t *testing.T) {
	r := NewResolver(time.Millisecond * 250)

	ep, err := r.Discover(context.Background(), "localhost:1")

	require.Nil(t, ep)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtractEndpoint_SecureUpgradeOnly(t *testing.T) {
	// a later plain ws link must not replace an already selected wss one
	links := []Link{
		{Rel: "urn:xmpp:alt-connections:websocket", Href: "wss://jackal.im/ws"},
		{Rel: "urn:xmpp:alt-connections:websocket", Href: "ws://other.jackal.im/ws"},
	}
	ep := extractEndpoint(links, "jackal.im")

	require.NotNil(t, ep)
	require.Equal(t, "wss://jackal.im/ws", ep.URL)
}

func TestExtractEndpoint_EmptyTarget(t *testing.T) {
	links := []Link{
		{Rel: "urn:xmpp:alt-connections:websocket", Href: ""},
	}
	require.Nil(t, extractEndpoint(links, "jackal.im"))
}
