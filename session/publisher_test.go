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

package session

import (
	"testing"
	"time"

	"github.com/jackal-xmpp/sonar"
	"github.com/locpub/locpub/module/xep0080"
	"github.com/stretchr/testify/require"
)

func TestPublisher_RefusesToStartDisconnected(t *testing.T) {
	s, _ := testSession(t)
	p := NewPublisher(s, StaticSource{Loc: locationOf(51.5, -0.09, 25)}, sonar.New(), time.Minute)

	require.ErrorIs(t, p.Start(), ErrInvalidState)
	require.False(t, p.Active())
}

func TestPublisher_PublishesOnStartAndRetractsOnStop(t *testing.T) {
	s, tr := testSession(t)
	connect(t, s, tr)

	p := NewPublisher(s, StaticSource{Loc: locationOf(51.5, -0.09, 25)}, sonar.New(), time.Hour)
	require.NoError(t, p.Start())
	require.True(t, p.Active())

	require.Eventually(t, func() bool {
		return len(tr.sentIQs()) == 2 // roster + initial publish
	}, time.Second, time.Millisecond*10)

	pub := tr.sentIQs()[1]
	geoloc := pub.iq.ChildNamespace("pubsub", pubSubNamespace).
		Child("publish").Child("item").
		ChildNamespace("geoloc", xep0080.Namespace)
	require.Equal(t, "51.5", geoloc.Child("lat").Text())

	p.Stop()
	require.False(t, p.Active())

	iqs := tr.sentIQs()
	retract := iqs[len(iqs)-1]
	empty := retract.iq.ChildNamespace("pubsub", pubSubNamespace).
		Child("publish").Child("item").
		ChildNamespace("geoloc", xep0080.Namespace)
	require.NotNil(t, empty)
	require.Nil(t, empty.Child("lat"))
}

func TestPublisher_PublishesOnEveryTick(t *testing.T) {
	s, tr := testSession(t)
	connect(t, s, tr)

	p := NewPublisher(s, StaticSource{Loc: locationOf(40, -3, 10)}, sonar.New(), time.Millisecond*20)
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return len(tr.sentIQs()) >= 4 // roster + initial + at least two ticks
	}, time.Second, time.Millisecond*10)
}

func TestPublisher_Toggle(t *testing.T) {
	s, tr := testSession(t)
	connect(t, s, tr)

	p := NewPublisher(s, StaticSource{Loc: locationOf(1, 2, 3)}, sonar.New(), time.Hour)

	require.NoError(t, p.Toggle())
	require.True(t, p.Active())
	require.NoError(t, p.Toggle())
	require.False(t, p.Active())
}
