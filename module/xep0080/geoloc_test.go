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
	"testing"
	"time"

	"github.com/jackal-xmpp/stravaganza/v2"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	"github.com/stretchr/testify/require"
)

func TestGeoloc_ElementRoundTrip(t *testing.T) {
	alt := 14.5
	loc := geolocmodel.Location{
		Lat:      41.3851,
		Lon:      2.1734,
		Accuracy: 25,
		Altitude: &alt,
	}
	ts := time.Date(2023, time.July, 11, 16, 30, 0, 0, time.UTC)

	el := Element(loc, ts)
	require.Equal(t, "geoloc", el.Name())
	require.Equal(t, Namespace, el.Attribute(stravaganza.Namespace))
	require.Equal(t, "41.3851", el.Child("lat").Text())
	require.Equal(t, "2.1734", el.Child("lon").Text())
	require.Equal(t, "25", el.Child("accuracy").Text())
	require.Equal(t, "14.5", el.Child("alt").Text())
	require.Nil(t, el.Child("speed"))
	require.Equal(t, "2023-07-11T16:30:00Z", el.Child("timestamp").Text())

	parsed, parsedTS, err := Parse(el, time.Now())
	require.NoError(t, err)
	require.Equal(t, loc.Lat, parsed.Lat)
	require.Equal(t, loc.Lon, parsed.Lon)
	require.Equal(t, loc.Accuracy, parsed.Accuracy)
	require.NotNil(t, parsed.Altitude)
	require.Equal(t, alt, *parsed.Altitude)
	require.Nil(t, parsed.Speed)
	require.True(t, ts.Equal(parsedTS))
}

func TestGeoloc_ParseMissingCoordinates(t *testing.T) {
	el := stravaganza.NewBuilder("geoloc").
		WithAttribute(stravaganza.Namespace, Namespace).
		WithChild(stravaganza.NewBuilder("lat").WithText("41.3851").Build()).
		Build()

	_, _, err := Parse(el, time.Now())
	require.ErrorIs(t, err, ErrNoLocation)

	_, _, err = Parse(EmptyElement(), time.Now())
	require.ErrorIs(t, err, ErrNoLocation)
}

func TestGeoloc_ParseDefaultsAccuracy(t *testing.T) {
	el := stravaganza.NewBuilder("geoloc").
		WithAttribute(stravaganza.Namespace, Namespace).
		WithChild(stravaganza.NewBuilder("lat").WithText("51.5").Build()).
		WithChild(stravaganza.NewBuilder("lon").WithText("-0.09").Build()).
		Build()

	loc, _, err := Parse(el, time.Now())
	require.NoError(t, err)
	require.Equal(t, 10.0, loc.Accuracy)

	// an explicit accuracy always wins
	loc, _, err = Parse(Element(geolocmodel.Location{Lat: 1, Lon: 2, Accuracy: 25}, time.Now()), time.Now())
	require.NoError(t, err)
	require.Equal(t, 25.0, loc.Accuracy)
}

func TestGeoloc_ParseDefaultsTimestamp(t *testing.T) {
	now := time.Date(2023, time.July, 11, 17, 0, 0, 0, time.UTC)
	el := Element(geolocmodel.Location{Lat: 1, Lon: 2}, now)

	elNoTS := stravaganza.NewBuilder("geoloc").
		WithAttribute(stravaganza.Namespace, Namespace).
		WithChild(el.Child("lat")).
		WithChild(el.Child("lon")).
		Build()

	_, ts, err := Parse(elNoTS, now)
	require.NoError(t, err)
	require.True(t, now.Equal(ts))
}
