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

package geolocmodel

import (
	"fmt"
	"sort"
	"time"
)

// Location represents a geographic position as published to the geolocation node.
type Location struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	Altitude *float64
	Speed    *float64
}

// Record represents a contact's last known published location.
type Record struct {
	JID string
	Location
	Timestamp time.Time
}

// SeenAgo returns a human readable label of the elapsed time since the record timestamp.
func (r *Record) SeenAgo(now time.Time) string {
	return TimeAgo(r.Timestamp, now)
}

// TimeAgo formats the elapsed time between t and now.
func TimeAgo(t, now time.Time) string {
	secs := int(now.Sub(t).Round(time.Second).Seconds())
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds ago", secs)
	}
	return fmt.Sprintf("%dm ago", (secs+30)/60)
}

// SortRecords orders location records lexicographically by JID.
func SortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].JID < recs[j].JID
	})
}
