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
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	discomodel "github.com/locpub/locpub/model/disco"
)

const discoInfoNamespace = "http://jabber.org/protocol/disco#info"

// Responder answers inbound disco#info queries with a fixed identity and
// feature set (XEP-0030).
type Responder struct {
	identity discomodel.Identity
	features []discomodel.Feature
}

// NewResponder returns an initialized disco#info responder. The feature slice
// is expected to be sorted by the caller.
func NewResponder(identity discomodel.Identity, features []discomodel.Feature) *Responder {
	return &Responder{
		identity: identity,
		features: features,
	}
}

// ResultIQ builds the result IQ answering an inbound disco#info query.
// The query node, when present, is echoed back verbatim.
func (r *Responder) ResultIQ(from, to *jid.JID, reqID, node string) (*stravaganza.IQ, error) {
	qb := stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, discoInfoNamespace)
	if len(node) > 0 {
		qb = qb.WithAttribute("node", node)
	}
	qb = qb.WithChild(
		stravaganza.NewBuilder("identity").
			WithAttribute("category", r.identity.Category).
			WithAttribute("type", r.identity.Type).
			WithAttribute("name", r.identity.Name).
			Build(),
	)
	for _, f := range r.features {
		qb = qb.WithChild(
			stravaganza.NewBuilder("feature").
				WithAttribute("var", f).
				Build(),
		)
	}
	return stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, reqID).
		WithAttribute(stravaganza.From, from.String()).
		WithAttribute(stravaganza.To, to.String()).
		WithAttribute(stravaganza.Type, stravaganza.ResultType).
		WithChild(qb.Build()).
		BuildIQ()
}
