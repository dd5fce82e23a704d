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

	"github.com/jackal-xmpp/sonar"
	"github.com/locpub/locpub/event"
	"github.com/locpub/locpub/log"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
)

// Source provides the own location to be shared.
type Source interface {
	// Location returns the current own location.
	Location(ctx context.Context) (geolocmodel.Location, error)
}

// StaticSource is a Source returning a fixed location.
type StaticSource struct {
	// Loc is the location returned on every call.
	Loc geolocmodel.Location
}

// Location returns the configured fixed location.
func (s StaticSource) Location(_ context.Context) (geolocmodel.Location, error) {
	return s.Loc, nil
}

// Publisher periodically publishes the own location while sharing is active:
// once on start, on every tick, and an empty retraction payload on stop.
type Publisher struct {
	sess     *Session
	src      Source
	sn       *sonar.Sonar
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPublisher returns an initialized location publisher.
func NewPublisher(sess *Session, src Source, sn *sonar.Sonar, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Publisher{
		sess:     sess,
		src:      src,
		sn:       sn,
		interval: interval,
	}
}

// Active tells whether sharing is currently active.
func (p *Publisher) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start begins sharing. It refuses to start unless the session is connected.
func (p *Publisher) Start() error {
	if p.sess.State() != Connected {
		return ErrInvalidState
	}
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.loop(ctx)

	p.postToggled(true)
	log.Infow("Location sharing started", "interval", p.interval)
	return nil
}

// Stop ends sharing, retracting the published location.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	if err := p.sess.PublishEmptyGeoloc(); err != nil {
		log.Debugw("Failed to retract location", "err", err)
	}
	p.postToggled(false)
	log.Infow("Location sharing stopped")
}

// Toggle flips the sharing state.
func (p *Publisher) Toggle() error {
	if p.Active() {
		p.Stop()
		return nil
	}
	return p.Start()
}

func (p *Publisher) loop(ctx context.Context) {
	p.publishOnce(ctx)

	tc := time.NewTicker(p.interval)
	defer tc.Stop()
	for {
		select {
		case <-tc.C:
			p.publishOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	loc, err := p.src.Location(ctx)
	if err != nil {
		log.Warnw("Failed to fetch own location", "err", err)
		return
	}
	if err := p.sess.PublishLocation(loc); err != nil {
		log.Debugw("Failed to publish own location", "err", err)
	}
}

func (p *Publisher) postToggled(enabled bool) {
	_ = p.sn.Post(context.Background(), sonar.NewEventBuilder(event.SharingToggled).
		WithInfo(&event.SharingEventInfo{Enabled: enabled}).
		WithSender(p).
		Build(),
	)
}
