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

package event

import (
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	rostermodel "github.com/locpub/locpub/model/rostermodel"
)

const (
	// SessionStatusChanged event is posted on every session status transition.
	SessionStatusChanged = "session.status.changed"

	// RosterUpdated event is posted whenever the tracked roster changes.
	RosterUpdated = "roster.updated"

	// SharesUpdated event is posted whenever the set of known contact
	// locations changes.
	SharesUpdated = "shares.updated"

	// SharingToggled event is posted whenever own location sharing is
	// started or stopped.
	SharingToggled = "sharing.toggled"

	// ToastRaised event is posted to surface a short lived user notice.
	ToastRaised = "toast.raised"
)

// SessionStatusEventInfo contains all information associated to a session
// status event.
type SessionStatusEventInfo struct {
	// JID is the session account bare JID.
	JID string

	// Status is the session status string representation.
	Status string
}

// RosterEventInfo contains all information associated to a roster event.
type RosterEventInfo struct {
	// Items is the sorted roster snapshot.
	Items []rostermodel.Item
}

// SharesEventInfo contains all information associated to a shares event.
type SharesEventInfo struct {
	// Records is the sorted snapshot of known contact locations.
	Records []geolocmodel.Record
}

// SharingEventInfo contains all information associated to a sharing toggle
// event.
type SharingEventInfo struct {
	// Enabled tells whether own location sharing is active.
	Enabled bool
}

// ToastEventInfo contains all information associated to a toast event.
type ToastEventInfo struct {
	// Text is the notice text.
	Text string
}
