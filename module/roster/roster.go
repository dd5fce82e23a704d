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
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
	rostermodel "github.com/locpub/locpub/model/rostermodel"
)

const rosterNamespace = "jabber:iq:roster"

// Tracker keeps the contact list state of the active session. The item set is
// replaced wholesale on every roster fetch while presence derived online flags
// are layered on top.
type Tracker struct {
	mu    sync.RWMutex
	items map[string]rostermodel.Item
}

// NewTracker returns an initialized empty roster tracker.
func NewTracker() *Tracker {
	return &Tracker{
		items: make(map[string]rostermodel.Item),
	}
}

// ReplaceAll rebuilds the item set out of a roster IQ result, preserving the
// online flag of contacts that survive the replacement.
func (t *Tracker) ReplaceAll(iq *stravaganza.IQ) {
	query := iq.ChildNamespace("query", rosterNamespace)
	if query == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.items
	t.items = make(map[string]rostermodel.Item)
	for _, elem := range query.Children("item") {
		item := rostermodel.NewItem(elem)
		if len(item.JID) == 0 {
			continue
		}
		if prev, ok := old[item.JID]; ok {
			item.Online = prev.Online
		}
		t.items[item.JID] = *item
	}
}

// SetOnline flips the online flag of the given bare JID, reporting whether the
// contact transitioned from offline to online.
func (t *Tracker) SetOnline(bareJID string, online bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[bareJID]
	if !ok {
		return false
	}
	cameOnline := online && !item.Online
	item.Online = online
	t.items[bareJID] = item
	return cameOnline
}

// Item returns the tracked item of the given bare JID.
func (t *Tracker) Item(bareJID string) (rostermodel.Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[bareJID]
	return item, ok
}

// Snapshot returns the sorted tracked item set.
func (t *Tracker) Snapshot() []rostermodel.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()

	items := make([]rostermodel.Item, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, item)
	}
	rostermodel.SortItems(items)
	return items
}

// Refreshable returns the bare JIDs whose shared location is worth pulling:
// contacts either online or with a mutual subscription.
func (t *Tracker) Refreshable() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var jids []string
	for _, item := range t.items {
		if item.Online || item.Subscription == rostermodel.SubscriptionBoth {
			jids = append(jids, item.JID)
		}
	}
	return jids
}

// Clear drops every tracked item.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.items = make(map[string]rostermodel.Item)
	t.mu.Unlock()
}
