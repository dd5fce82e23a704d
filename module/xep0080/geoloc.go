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

package xep0080

import (
	"strconv"
	"time"

	"github.com/jackal-xmpp/stravaganza/v2"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	"github.com/pkg/errors"
)

// Namespace is the user location namespace (XEP-0080).
const Namespace = "http://jabber.org/protocol/geoloc"

const timestampFormat = time.RFC3339

// defaultAccuracy applies to payloads carrying coordinates but no accuracy
// child, in meters.
const defaultAccuracy = float64(10)

// ErrNoLocation will be returned when a geoloc payload carries no usable
// coordinates. Publishing such an empty payload retracts the share.
var ErrNoLocation = errors.New("xep0080: no location in geoloc payload")

// Element builds a geoloc payload element out of loc. The timestamp child
// carries ts in RFC 3339 UTC form.
func Element(loc geolocmodel.Location, ts time.Time) stravaganza.Element {
	b := stravaganza.NewBuilder("geoloc").
		WithAttribute(stravaganza.Namespace, Namespace).
		WithChild(numChild("lat", loc.Lat)).
		WithChild(numChild("lon", loc.Lon))
	if loc.Accuracy > 0 {
		b = b.WithChild(numChild("accuracy", loc.Accuracy))
	}
	if loc.Altitude != nil {
		b = b.WithChild(numChild("alt", *loc.Altitude))
	}
	if loc.Speed != nil {
		b = b.WithChild(numChild("speed", *loc.Speed))
	}
	return b.WithChild(
		stravaganza.NewBuilder("timestamp").
			WithText(ts.UTC().Format(timestampFormat)).
			Build(),
	).Build()
}

// EmptyElement builds the empty geoloc payload used to retract a published
// location.
func EmptyElement() stravaganza.Element {
	return stravaganza.NewBuilder("geoloc").
		WithAttribute(stravaganza.Namespace, Namespace).
		Build()
}

// Parse extracts a location out of a geoloc payload element. A payload
// missing either coordinate yields ErrNoLocation; a missing accuracy defaults
// to 10 meters.
func Parse(elem stravaganza.Element, now time.Time) (geolocmodel.Location, time.Time, error) {
	var loc geolocmodel.Location

	lat, latOK := numText(elem, "lat")
	lon, lonOK := numText(elem, "lon")
	if !latOK || !lonOK {
		return loc, time.Time{}, ErrNoLocation
	}
	loc.Lat = lat
	loc.Lon = lon

	loc.Accuracy = defaultAccuracy
	if acc, ok := numText(elem, "accuracy"); ok {
		loc.Accuracy = acc
	}
	if alt, ok := numText(elem, "alt"); ok {
		loc.Altitude = &alt
	}
	if spd, ok := numText(elem, "speed"); ok {
		loc.Speed = &spd
	}
	ts := now
	if tsElem := elem.Child("timestamp"); tsElem != nil {
		if parsed, err := time.Parse(timestampFormat, tsElem.Text()); err == nil {
			ts = parsed
		}
	}
	return loc, ts, nil
}

func numChild(name string, val float64) stravaganza.Element {
	return stravaganza.NewBuilder(name).
		WithText(strconv.FormatFloat(val, 'f', -1, 64)).
		Build()
}

func numText(elem stravaganza.Element, name string) (float64, bool) {
	child := elem.Child(name)
	if child == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(child.Text(), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}
