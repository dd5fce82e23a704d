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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackal-xmpp/runqueue/v2"
	"github.com/jackal-xmpp/sonar"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/locpub/locpub/event"
	"github.com/locpub/locpub/log"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	rostermodel "github.com/locpub/locpub/model/rostermodel"
	"github.com/locpub/locpub/module/roster"
	"github.com/locpub/locpub/module/xep0030"
	"github.com/locpub/locpub/module/xep0080"
	"github.com/locpub/locpub/module/xep0115"
	"github.com/locpub/locpub/transport"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	pubSubNamespace = "http://jabber.org/protocol/pubsub"
	rosterNamespace = "jabber:iq:roster"

	geolocNode   = xep0080.Namespace
	geolocItemID = "current"
)

// refreshInterval spaces out bulk location pulls.
const refreshInterval = time.Millisecond * 250

// ErrInvalidState will be returned when an operation is attempted from a
// session state it is not valid in.
var ErrInvalidState = errors.New("session: invalid state")

// State represents a session lifecycle state.
type State int

const (
	// Disconnected state: no stream, no retained protocol state.
	Disconnected State = iota

	// Connecting state: stream establishment in progress.
	Connecting

	// Connected state: stream authenticated, bound and advertised.
	Connected

	// Failed state: transient, entered on connection or authentication
	// failure right before landing back on Disconnected.
	Failed
)

// String returns state string representation.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Config contains session configuration.
type Config struct {
	// JID is the account bare JID.
	JID *jid.JID

	// Password is the account secret.
	Password string

	// Capabilities is the advertised capability set.
	Capabilities *xep0115.CapabilitySet
}

// Session drives the protocol conversation of one account: connection
// lifecycle, capability advertisement, roster tracking and geolocation
// publish/subscribe. All state mutation is serialized on an internal run
// queue; read accessors return snapshots.
type Session struct {
	cfg Config
	tr  transport.Transport
	sn  *sonar.Sonar
	rq  *runqueue.RunQueue

	disco   *xep0030.Responder
	tracker *roster.Tracker
	limiter *rate.Limiter

	mu     sync.RWMutex
	state  State
	gen    uint64
	shares map[string]geolocmodel.Record

	timeNow func() time.Time
}

// New returns an initialized session.
func New(cfg Config, tr transport.Transport, sn *sonar.Sonar) *Session {
	return &Session{
		cfg:     cfg,
		tr:      tr,
		sn:      sn,
		rq:      runqueue.New("session"),
		disco:   xep0030.NewResponder(cfg.Capabilities.Identity, cfg.Capabilities.Features),
		tracker: roster.NewTracker(),
		limiter: rate.NewLimiter(rate.Every(refreshInterval), 1),
		shares:  make(map[string]geolocmodel.Record),
		timeNow: time.Now,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Roster returns the sorted tracked roster snapshot.
func (s *Session) Roster() []rostermodel.Item {
	return s.tracker.Snapshot()
}

// Shares returns the sorted snapshot of known contact locations.
func (s *Session) Shares() []geolocmodel.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]geolocmodel.Record, 0, len(s.shares))
	for _, rec := range s.shares {
		records = append(records, rec)
	}
	geolocmodel.SortRecords(records)
	return records
}

// Connect starts establishing the stream. Valid from Disconnected only.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = Connecting
	gen := s.gen
	s.mu.Unlock()

	s.postStatus(ctx)

	log.Infow("Connecting", "jid", s.cfg.JID.String())
	err := s.tr.Connect(ctx, s.cfg.JID.String(), s.cfg.Password, func(st transport.Status) {
		s.onTransportStatus(gen, st)
	})
	if err != nil {
		// no status callback will ever arrive: land on Disconnected here
		s.rq.Run(func() {
			if s.generation() != gen {
				return
			}
			s.handleFailure("connection failed")
			s.handleDisconnected()
		})
	}
	return err
}

// Disconnect tears down the stream, retracting the published location on a
// best effort basis first. Valid from Connecting and Connected.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	switch st {
	case Connected:
		if err := s.PublishEmptyGeoloc(); err != nil {
			log.Debugw("Failed to retract location before disconnecting", "err", err)
		}
	case Connecting:
		break
	default:
		return ErrInvalidState
	}
	return s.tr.Disconnect(ctx)
}

// Close stops the session control queue. The session must not be used
// afterwards.
func (s *Session) Close(ctx context.Context) error {
	c := make(chan struct{})
	s.rq.Stop(func() { close(c) })
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLocation publishes loc under the fixed geoloc node item, overwriting
// any previously published location.
func (s *Session) PublishLocation(loc geolocmodel.Location) error {
	return s.publishGeoloc(xep0080.Element(loc, s.timeNow()))
}

// PublishEmptyGeoloc overwrites the published location with an empty payload,
// retracting the share.
func (s *Session) PublishEmptyGeoloc() error {
	return s.publishGeoloc(xep0080.EmptyElement())
}

// RequestContactGeoloc pulls the shared location of the given contact. The
// result is routed through the same update path as pushed notifications; a
// failed pull leaves cached state untouched.
func (s *Session) RequestContactGeoloc(contactJID string) error {
	s.mu.RLock()
	connected := s.state == Connected
	gen := s.gen
	s.mu.RUnlock()
	if !connected {
		return ErrInvalidState
	}
	s.pullContactGeoloc(gen, contactJID)
	return nil
}

// RefreshAllLocations pulls the shared location of every contact either
// online or mutually subscribed. The fan-out is rate limited and runs off the
// control thread.
func (s *Session) RefreshAllLocations(ctx context.Context) error {
	s.mu.RLock()
	connected := s.state == Connected
	gen := s.gen
	s.mu.RUnlock()
	if !connected {
		return ErrInvalidState
	}
	jids := s.tracker.Refreshable()

	go func() {
		for _, contactJID := range jids {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.pullContactGeoloc(gen, contactJID)
		}
	}()
	return nil
}

func (s *Session) onTransportStatus(gen uint64, st transport.Status) {
	s.rq.Run(func() {
		if s.generation() != gen {
			return
		}
		switch st {
		case transport.Connected:
			s.handleConnected(gen)

		case transport.ConnectionFailed:
			s.handleFailure("connection failed")

		case transport.AuthFailed:
			s.handleFailure("authentication failed")

		case transport.Disconnected:
			s.handleDisconnected()
		}
	})
}

func (s *Session) handleConnected(gen uint64) {
	s.setState(Connected)
	s.postStatus(context.Background())
	s.postToast("connected")

	// the transport handler table clears on every disconnection, so the
	// full handler set is registered again on each successful connect
	s.tr.AddHandler(transport.DiscoInfoQuery, func(ev *transport.InboundEvent) {
		s.runWithGen(gen, func() { s.processDiscoInfo(ev) })
	})
	s.tr.AddHandler(transport.PubSubItem, func(ev *transport.InboundEvent) {
		s.runWithGen(gen, func() { s.processPubSubItem(ev) })
	})
	s.tr.AddHandler(transport.PubSubRetract, func(ev *transport.InboundEvent) {
		s.runWithGen(gen, func() { s.processPubSubRetract(ev) })
	})
	s.tr.AddHandler(transport.Presence, func(ev *transport.InboundEvent) {
		s.runWithGen(gen, func() { s.processPresence(ev) })
	})

	if err := s.sendCapsPresence(); err != nil {
		log.Warnw("Failed to send capabilities presence", "err", err)
	}
	s.requestRoster(gen)
}

func (s *Session) handleFailure(reason string) {
	s.setState(Failed)
	s.postStatus(context.Background())
	s.postToast(reason)
	log.Warnw("Session failure", "jid", s.cfg.JID.String(), "reason", reason)
}

func (s *Session) handleDisconnected() {
	s.mu.Lock()
	s.gen++
	s.state = Disconnected
	s.shares = make(map[string]geolocmodel.Record)
	s.mu.Unlock()
	s.tracker.Clear()

	ctx := context.Background()
	s.postStatus(ctx)
	s.postRoster(ctx)
	s.postShares(ctx)
	log.Infow("Disconnected", "jid", s.cfg.JID.String())
}

func (s *Session) sendCapsPresence() error {
	pr := stravaganza.NewBuilder("presence").
		WithChild(s.cfg.Capabilities.PresenceElement()).
		Build()
	return s.tr.Send(pr)
}

func (s *Session) requestRoster(gen uint64) {
	bare := s.cfg.JID.ToBareJID().String()
	iq, err := stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.From, bare).
		WithAttribute(stravaganza.To, bare).
		WithAttribute(stravaganza.Type, stravaganza.GetType).
		WithChild(
			stravaganza.NewBuilder("query").
				WithAttribute(stravaganza.Namespace, rosterNamespace).
				Build(),
		).
		BuildIQ()
	if err != nil {
		log.Errorf("Failed to build roster request: %v", err)
		return
	}
	err = s.tr.SendIQ(iq,
		func(resIQ *stravaganza.IQ) {
			s.runWithGen(gen, func() {
				s.tracker.ReplaceAll(resIQ)
				s.postRoster(context.Background())
			})
		},
		func(err error) {
			s.runWithGen(gen, func() {
				log.Warnw("Roster request failed", "err", err)
				s.postToast("roster request failed")
			})
		},
	)
	if err != nil {
		log.Warnw("Failed to send roster request", "err", err)
	}
}

func (s *Session) publishGeoloc(payload stravaganza.Element) error {
	s.mu.RLock()
	connected := s.state == Connected
	gen := s.gen
	s.mu.RUnlock()
	if !connected {
		return ErrInvalidState
	}
	bare := s.cfg.JID.ToBareJID().String()
	iq, err := stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.From, bare).
		WithAttribute(stravaganza.To, bare).
		WithAttribute(stravaganza.Type, stravaganza.SetType).
		WithChild(
			stravaganza.NewBuilder("pubsub").
				WithAttribute(stravaganza.Namespace, pubSubNamespace).
				WithChild(
					stravaganza.NewBuilder("publish").
						WithAttribute("node", geolocNode).
						WithChild(
							stravaganza.NewBuilder("item").
								WithAttribute("id", geolocItemID).
								WithChild(payload).
								Build(),
						).
						Build(),
				).
				Build(),
		).
		BuildIQ()
	if err != nil {
		return errors.Wrap(err, "building publish request")
	}
	return s.tr.SendIQ(iq,
		func(_ *stravaganza.IQ) {
			log.Debugw("Location published", "jid", bare)
		},
		func(err error) {
			s.runWithGen(gen, func() {
				log.Warnw("Location publish failed", "err", err)
				s.postToast("location publish failed")
			})
		},
	)
}

func (s *Session) pullContactGeoloc(gen uint64, contactJID string) {
	iq, err := stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.From, s.cfg.JID.ToBareJID().String()).
		WithAttribute(stravaganza.To, contactJID).
		WithAttribute(stravaganza.Type, stravaganza.GetType).
		WithChild(
			stravaganza.NewBuilder("pubsub").
				WithAttribute(stravaganza.Namespace, pubSubNamespace).
				WithChild(
					stravaganza.NewBuilder("items").
						WithAttribute("node", geolocNode).
						WithAttribute("max_items", "1").
						Build(),
				).
				Build(),
		).
		BuildIQ()
	if err != nil {
		log.Errorf("Failed to build geoloc pull request: %v", err)
		return
	}
	err = s.tr.SendIQ(iq,
		func(resIQ *stravaganza.IQ) {
			s.runWithGen(gen, func() { s.processGeolocPull(contactJID, resIQ) })
		},
		func(err error) {
			log.Debugw("Geoloc pull failed", "jid", contactJID, "err", err)
		},
	)
	if err != nil {
		log.Debugw("Failed to send geoloc pull request", "jid", contactJID, "err", err)
	}
}

func (s *Session) processGeolocPull(contactJID string, resIQ *stravaganza.IQ) {
	pubSub := resIQ.ChildNamespace("pubsub", pubSubNamespace)
	if pubSub == nil {
		return
	}
	items := pubSub.Child("items")
	if items == nil {
		return
	}
	item := items.Child("item")
	if item == nil {
		s.removeShare(contactJID)
		return
	}
	s.updateShareFromItem(contactJID, item)
}

func (s *Session) processDiscoInfo(ev *transport.InboundEvent) {
	resIQ, err := s.disco.ResultIQ(s.cfg.JID, ev.From, ev.ID, ev.Node)
	if err != nil {
		log.Errorf("Failed to build disco#info result: %v", err)
		return
	}
	if err := s.tr.Send(resIQ); err != nil {
		log.Debugw("Failed to answer disco#info query", "err", err)
	}
}

func (s *Session) processPresence(ev *transport.InboundEvent) {
	if ev.From == nil {
		return
	}
	bare := ev.From.ToBareJID().String()
	if bare == s.cfg.JID.ToBareJID().String() {
		return
	}
	var online bool
	switch ev.PresenceType {
	case "", "available":
		online = true
	case "unavailable":
		online = false
	default:
		// subscription management types are not tracked
		return
	}
	if _, known := s.tracker.Item(bare); !known {
		// presence of senders outside the roster is not tracked
		return
	}
	cameOnline := s.tracker.SetOnline(bare, online)
	s.postRoster(context.Background())

	if cameOnline {
		s.mu.RLock()
		gen := s.gen
		s.mu.RUnlock()
		s.pullContactGeoloc(gen, bare)
	}
}

func (s *Session) processPubSubItem(ev *transport.InboundEvent) {
	if ev.From == nil || ev.Node != geolocNode {
		return
	}
	bare := ev.From.ToBareJID().String()
	if bare == s.cfg.JID.ToBareJID().String() {
		return
	}
	s.updateShareFromItem(bare, ev.Payload)
}

func (s *Session) processPubSubRetract(ev *transport.InboundEvent) {
	if ev.From == nil || ev.Node != geolocNode {
		return
	}
	s.removeShare(ev.From.ToBareJID().String())
}

// updateShareFromItem consolidates every inbound location item, pushed or
// pulled: a payload with usable coordinates upserts the record while anything
// else retracts it.
func (s *Session) updateShareFromItem(bareJID string, item stravaganza.Element) {
	geoloc := item.ChildNamespace("geoloc", xep0080.Namespace)
	if geoloc == nil {
		s.removeShare(bareJID)
		return
	}
	loc, ts, err := xep0080.Parse(geoloc, s.timeNow())
	if err != nil {
		log.Debugw("Retracting share on unusable geoloc payload", "jid", bareJID, "err", err)
		s.removeShare(bareJID)
		return
	}
	s.mu.Lock()
	s.shares[bareJID] = geolocmodel.Record{
		JID:       bareJID,
		Location:  loc,
		Timestamp: ts,
	}
	s.mu.Unlock()
	s.postShares(context.Background())
}

func (s *Session) removeShare(bareJID string) {
	s.mu.Lock()
	_, ok := s.shares[bareJID]
	if ok {
		delete(s.shares, bareJID)
	}
	s.mu.Unlock()
	if ok {
		s.postShares(context.Background())
	}
}

// runWithGen enqueues fn on the control queue, discarding it if the session
// generation advanced since gen was captured.
func (s *Session) runWithGen(gen uint64, fn func()) {
	s.rq.Run(func() {
		if s.generation() != gen {
			return
		}
		fn()
	})
}

func (s *Session) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) postStatus(ctx context.Context) {
	_ = s.sn.Post(ctx, sonar.NewEventBuilder(event.SessionStatusChanged).
		WithInfo(&event.SessionStatusEventInfo{
			JID:    s.cfg.JID.ToBareJID().String(),
			Status: s.State().String(),
		}).
		WithSender(s).
		Build(),
	)
}

func (s *Session) postRoster(ctx context.Context) {
	_ = s.sn.Post(ctx, sonar.NewEventBuilder(event.RosterUpdated).
		WithInfo(&event.RosterEventInfo{Items: s.tracker.Snapshot()}).
		WithSender(s).
		Build(),
	)
}

func (s *Session) postShares(ctx context.Context) {
	_ = s.sn.Post(ctx, sonar.NewEventBuilder(event.SharesUpdated).
		WithInfo(&event.SharesEventInfo{Records: s.Shares()}).
		WithSender(s).
		Build(),
	)
}

func (s *Session) postToast(text string) {
	_ = s.sn.Post(context.Background(), sonar.NewEventBuilder(event.ToastRaised).
		WithInfo(&event.ToastEventInfo{Text: text}).
		WithSender(s).
		Build(),
	)
}
