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
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/locpub/locpub/log"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/net/idna"
)

const (
	websocketRel = "urn:xmpp:alt-connections:websocket"
	boshRel      = "urn:xmpp:alt-connections:xbosh"

	hostMetaPath    = "/.well-known/host-meta"
	hostPlaceholder = "{host}"

	maxBodySize = 1 << 20
)

// ErrNotFound will be returned by Discover when the well-known document is
// unreachable or carries no usable alternative connection link.
var ErrNotFound = errors.New("discovery: no connection endpoint found")

// Scheme represents an alternative connection endpoint scheme.
type Scheme string

const (
	// WebSocket represents a websocket connection endpoint.
	WebSocket Scheme = "websocket"

	// BOSH represents a legacy bidirectional HTTP connection endpoint.
	BOSH Scheme = "bosh"
)

// Endpoint represents a resolved connection endpoint.
type Endpoint struct {
	Scheme Scheme
	URL    string
}

// Link represents a typed host-meta document link.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type hostMetaDoc struct {
	Links []Link `json:"links"`
}

type xrdDoc struct {
	XMLName xml.Name  `xml:"XRD"`
	Links   []xrdLink `xml:"Link"`
}

type xrdLink struct {
	Rel      string `xml:"rel,attr"`
	Href     string `xml:"href,attr"`
	Template string `xml:"template,attr"`
}

// Resolver resolves a domain name to an alternative connection endpoint by
// fetching its well-known host-meta document, preferring the JSON form and
// falling back to XRD.
type Resolver struct {
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	scheme string
}

// NewResolver returns an initialized discovery resolver.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "discovery",
		}),
		scheme: "https",
	}
}

// Discover resolves domain to a connection endpoint. Fetch and parse failures
// of any kind are advisory and collapse to ErrNotFound; the caller is expected
// to allow a manually entered endpoint as fallback.
func (r *Resolver) Discover(ctx context.Context, domain string) (*Endpoint, error) {
	host := normalizeDomain(domain)

	ep, err := r.cb.Execute(func() (interface{}, error) {
		return r.resolve(ctx, host)
	})
	if err != nil {
		log.Debugw("Endpoint discovery failed", "domain", host, "err", err)
		return nil, ErrNotFound
	}
	return ep.(*Endpoint), nil
}

func (r *Resolver) resolve(ctx context.Context, domain string) (*Endpoint, error) {
	base := fmt.Sprintf("%s://%s%s", r.scheme, domain, hostMetaPath)

	if links, err := r.fetchJSON(ctx, base+".json"); err == nil {
		if ep := extractEndpoint(links, domain); ep != nil {
			return ep, nil
		}
	}
	links, err := r.fetchXML(ctx, base)
	if err != nil {
		return nil, err
	}
	ep := extractEndpoint(links, domain)
	if ep == nil {
		return nil, ErrNotFound
	}
	return ep, nil
}

func (r *Resolver) fetchJSON(ctx context.Context, url string) ([]Link, error) {
	body, err := r.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	var doc hostMetaDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing host-meta JSON body")
	}
	return doc.Links, nil
}

func (r *Resolver) fetchXML(ctx context.Context, url string) ([]Link, error) {
	body, err := r.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	var doc xrdDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing host-meta XRD body")
	}
	links := make([]Link, 0, len(doc.Links))
	for _, ln := range doc.Links {
		href := ln.Href
		if len(href) == 0 {
			href = ln.Template
		}
		links = append(links, Link{Rel: ln.Rel, Href: href})
	}
	return links, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/xrd+xml, application/xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// extractEndpoint scans typed links applying the endpoint selection rule:
// websocket links are preferred over BOSH ones, and an already selected
// websocket endpoint is only replaced by a later link when the later one uses
// the secure scheme and the current one does not.
func extractEndpoint(links []Link, domain string) *Endpoint {
	var wsURL, boshURL string

	for _, ln := range links {
		target := strings.ReplaceAll(ln.Href, hostPlaceholder, domain)
		if len(target) == 0 {
			continue
		}
		switch ln.Rel {
		case websocketRel:
			if len(wsURL) == 0 || (strings.HasPrefix(target, "wss://") && !strings.HasPrefix(wsURL, "wss://")) {
				wsURL = target
			}
		case boshRel:
			boshURL = target
		}
	}
	switch {
	case len(wsURL) > 0:
		return &Endpoint{Scheme: WebSocket, URL: wsURL}
	case len(boshURL) > 0:
		return &Endpoint{Scheme: BOSH, URL: boshURL}
	default:
		return nil
	}
}

func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	host, port := domain, ""
	if i := strings.LastIndex(domain, ":"); i >= 0 {
		host, port = domain[:i], domain[i:]
	}
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return domain
	}
	return ascii + port
}
