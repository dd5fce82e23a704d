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

package xep0115

import (
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
	discomodel "github.com/locpub/locpub/model/disco"
)

const capabilitiesNamespace = "http://jabber.org/protocol/caps"

// CapabilitySet represents an advertised client capability set (XEP-0115).
type CapabilitySet struct {
	// Node is the capability node URI.
	Node string

	// Identity is the single advertised disco identity.
	Identity discomodel.Identity

	// Features is the advertised feature set, kept sorted.
	Features []discomodel.Feature

	mu  sync.Mutex
	ver string
}

// NewCapabilitySet returns an initialized capability set. The feature slice is
// copied and sorted.
func NewCapabilitySet(node string, identity discomodel.Identity, features []discomodel.Feature) *CapabilitySet {
	fs := make([]discomodel.Feature, len(features))
	copy(fs, features)
	sort.Slice(fs, func(i, j int) bool { return fs[i] < fs[j] })
	return &CapabilitySet{
		Node:     node,
		Identity: identity,
		Features: fs,
	}
}

// Ver returns the capability verification string, computed once and cached.
func (c *CapabilitySet) Ver() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ver) == 0 {
		c.ver = computeVer(c.Identity, c.Features)
	}
	return c.ver
}

// PresenceElement returns the <c/> element attached to outgoing available
// presences.
func (c *CapabilitySet) PresenceElement() stravaganza.Element {
	return stravaganza.NewBuilder("c").
		WithAttribute(stravaganza.Namespace, capabilitiesNamespace).
		WithAttribute("hash", "sha-1").
		WithAttribute("node", c.Node).
		WithAttribute("ver", c.Ver()).
		Build()
}

func computeVer(identity discomodel.Identity, features []discomodel.Feature) string {
	var sb strings.Builder
	sb.WriteString(identity.Category)
	sb.WriteString("/")
	sb.WriteString(identity.Type)
	sb.WriteString("//")
	sb.WriteString(identity.Name)
	sb.WriteString("<")
	for _, f := range features {
		sb.WriteString(f)
		sb.WriteString("<")
	}
	h := sha1.New()
	_, _ = h.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
