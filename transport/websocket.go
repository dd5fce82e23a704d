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

package transport

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/locpub/locpub/auth"
	"github.com/locpub/locpub/log"
	"github.com/pkg/errors"
)

const (
	framingNamespace = "urn:ietf:params:xml:ns:xmpp-framing"
	saslNamespace    = "urn:ietf:params:xml:ns:xmpp-sasl"
	bindNamespace    = "urn:ietf:params:xml:ns:xmpp-bind"

	wsSubprotocol = "xmpp"

	resourcePrefix = "locpub-"
)

type wsState uint32

const (
	wsDisconnected wsState = iota
	wsConnecting
	wsAuthenticating
	wsBinding
	wsBound
)

type pendingReq struct {
	onResult IQResultHandler
	onError  IQErrorHandler
	tm       *time.Timer
}

// Config represents websocket transport configuration.
type Config struct {
	// URL is the websocket endpoint URL.
	URL string

	// DialTimeout is the websocket handshake timeout.
	DialTimeout time.Duration

	// RequestTimeout bounds every tracked IQ round-trip.
	RequestTimeout time.Duration

	// KeepAlive is the interval between websocket ping control frames.
	KeepAlive time.Duration
}

// WebSocket represents a websocket framed stream transport (RFC 7395).
type WebSocket struct {
	cfg Config

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     wsState
	epoch     uint64
	boundJID  *jid.JID
	statusHnd StatusHandler
	handlers  map[EventKind][]EventHandler
	reqs      map[string]pendingReq

	wMu sync.Mutex // gorilla allows a single concurrent writer
}

// NewWebSocket returns an initialized websocket transport.
func NewWebSocket(cfg Config) *WebSocket {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = time.Second * 15
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = time.Second * 30
	}
	return &WebSocket{
		cfg:      cfg,
		handlers: make(map[EventKind][]EventHandler),
		reqs:     make(map[string]pendingReq),
	}
}

// Connect asynchronously establishes the stream, negotiating SASL and
// resource binding, reporting every transition through hnd.
func (w *WebSocket) Connect(_ context.Context, identifier, secret string, hnd StatusHandler) error {
	jd, err := jid.NewWithString(identifier, false)
	if err != nil {
		return errors.Wrap(err, "parsing identifier")
	}
	w.mu.Lock()
	if w.state != wsDisconnected {
		w.mu.Unlock()
		return errors.New("transport: already connected")
	}
	w.state = wsConnecting
	w.epoch++
	epoch := w.epoch
	w.statusHnd = hnd
	w.mu.Unlock()

	w.report(Connecting)

	go w.negotiate(epoch, jd, secret)
	return nil
}

// Disconnect gracefully closes the stream.
func (w *WebSocket) Disconnect(_ context.Context) error {
	w.mu.Lock()
	if w.state == wsDisconnected {
		w.mu.Unlock()
		return ErrNotConnected
	}
	epoch := w.epoch
	conn := w.conn
	w.mu.Unlock()

	w.report(Disconnecting)
	if conn != nil {
		_ = w.writeString(`<close xmlns="` + framingNamespace + `"/>`)
	}
	w.teardown(epoch, conn)
	return nil
}

// AddHandler registers an inbound event handler for the given kind.
func (w *WebSocket) AddHandler(kind EventKind, hnd EventHandler) {
	w.mu.Lock()
	w.handlers[kind] = append(w.handlers[kind], hnd)
	w.mu.Unlock()
}

// Send writes a stanza over the stream in a fire-and-forget fashion.
func (w *WebSocket) Send(elem stravaganza.Element) error {
	w.mu.RLock()
	bound := w.state == wsBound
	w.mu.RUnlock()
	if !bound {
		return ErrNotConnected
	}
	return w.writeString(elem.String())
}

// SendIQ writes an IQ stanza tracking its response by stanza identifier.
func (w *WebSocket) SendIQ(iq *stravaganza.IQ, onResult IQResultHandler, onError IQErrorHandler) error {
	w.mu.RLock()
	bound := w.state == wsBound
	w.mu.RUnlock()
	if !bound {
		return ErrNotConnected
	}
	reqID := iq.Attribute(stravaganza.ID)

	w.mu.Lock()
	w.reqs[reqID] = pendingReq{
		onResult: onResult,
		onError:  onError,
		tm: time.AfterFunc(w.cfg.RequestTimeout, func() {
			w.failReq(reqID, ErrRequestTimeout)
		}),
	}
	w.mu.Unlock()

	if err := w.writeString(iq.String()); err != nil {
		w.failReq(reqID, err)
	}
	return nil
}

func (w *WebSocket) negotiate(epoch uint64, jd *jid.JID, secret string) {
	d := websocket.Dialer{
		Subprotocols:     []string{wsSubprotocol},
		HandshakeTimeout: w.cfg.DialTimeout,
	}
	conn, _, err := d.Dial(w.cfg.URL, nil)
	if err != nil {
		log.Warnw("Websocket dial failed", "url", w.cfg.URL, "err", err)
		w.failConnection(epoch, nil, ConnectionFailed)
		return
	}
	w.mu.Lock()
	if w.epoch != epoch || w.state != wsConnecting {
		// torn down while dialing: drop the fresh connection
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	if err := w.authenticate(epoch, conn, jd, secret); err != nil {
		st := ConnectionFailed
		if errors.Is(err, errAuthRejected) {
			st = AuthFailed
		}
		log.Warnw("Stream negotiation failed", "jid", jd.String(), "err", err)
		w.failConnection(epoch, conn, st)
		return
	}
	boundJID, err := w.bindResource(epoch, conn, jd)
	if err != nil {
		log.Warnw("Resource binding failed", "jid", jd.String(), "err", err)
		w.failConnection(epoch, conn, ConnectionFailed)
		return
	}
	w.mu.Lock()
	if w.epoch != epoch || w.state != wsBinding {
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.state = wsBound
	w.boundJID = boundJID
	w.mu.Unlock()

	log.Infow("Stream established", "jid", boundJID.String())
	w.report(Connected)

	if w.cfg.KeepAlive > 0 {
		go w.keepAliveLoop(conn)
	}
	w.readLoop(epoch, conn)
}

var errAuthRejected = errors.New("transport: authentication rejected")

func (w *WebSocket) authenticate(epoch uint64, conn *websocket.Conn, jd *jid.JID, secret string) error {
	if !w.transition(epoch, wsAuthenticating) {
		return ErrNotConnected
	}
	features, err := w.openStream(conn, jd)
	if err != nil {
		return err
	}
	mechElem := features.Child("mechanisms")
	if mechElem == nil {
		return errors.New("transport: no SASL mechanisms offered")
	}
	var offered []string
	for _, m := range mechElem.Children("mechanism") {
		offered = append(offered, m.Text())
	}
	mech := auth.SelectMechanism(offered, jd.Node(), secret)
	if mech == nil {
		return errors.Errorf("transport: no supported SASL mechanism among %v", offered)
	}
	initial, err := mech.InitialResponse()
	if err != nil {
		return err
	}
	authElem := stravaganza.NewBuilder("auth").
		WithAttribute(stravaganza.Namespace, saslNamespace).
		WithAttribute("mechanism", mech.Name()).
		WithText(base64.StdEncoding.EncodeToString(initial)).
		Build()
	if err := w.writeString(authElem.String()); err != nil {
		return err
	}
	for {
		el, err := w.readElement(conn)
		if err != nil {
			return err
		}
		switch el.Name() {
		case "challenge":
			challenge, err := base64.StdEncoding.DecodeString(el.Text())
			if err != nil {
				return err
			}
			resp, err := mech.ProcessChallenge(challenge)
			if err != nil {
				return err
			}
			respElem := stravaganza.NewBuilder("response").
				WithAttribute(stravaganza.Namespace, saslNamespace).
				WithText(base64.StdEncoding.EncodeToString(resp)).
				Build()
			if err := w.writeString(respElem.String()); err != nil {
				return err
			}

		case "success":
			if len(el.Text()) > 0 {
				payload, err := base64.StdEncoding.DecodeString(el.Text())
				if err != nil {
					return err
				}
				if err := mech.ProcessSuccess(payload); err != nil {
					return err
				}
			}
			// stream restart
			_, err := w.openStream(conn, jd)
			return err

		case "failure":
			return errAuthRejected

		default:
			return errors.Errorf("transport: unexpected element <%s/> during authentication", el.Name())
		}
	}
}

func (w *WebSocket) openStream(conn *websocket.Conn, jd *jid.JID) (stravaganza.Element, error) {
	open := stravaganza.NewBuilder("open").
		WithAttribute(stravaganza.Namespace, framingNamespace).
		WithAttribute("to", jd.Domain()).
		WithAttribute("version", "1.0").
		Build()
	if err := w.writeString(open.String()); err != nil {
		return nil, err
	}
	el, err := w.readElement(conn)
	if err != nil {
		return nil, err
	}
	if el.Name() != "open" {
		return nil, errors.Errorf("transport: expected stream open, got <%s/>", el.Name())
	}
	features, err := w.readElement(conn)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(features.Name(), "features") {
		return nil, errors.Errorf("transport: expected stream features, got <%s/>", features.Name())
	}
	return features, nil
}

func (w *WebSocket) bindResource(epoch uint64, conn *websocket.Conn, jd *jid.JID) (*jid.JID, error) {
	if !w.transition(epoch, wsBinding) {
		return nil, ErrNotConnected
	}
	resource := jd.Resource()
	if len(resource) == 0 {
		resource = resourcePrefix + uuid.New().String()[:8]
	}
	// built as a raw element since stream level IQs carry no addresses
	bindIQ := stravaganza.NewBuilder("iq").
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.Type, stravaganza.SetType).
		WithChild(
			stravaganza.NewBuilder("bind").
				WithAttribute(stravaganza.Namespace, bindNamespace).
				WithChild(
					stravaganza.NewBuilder("resource").
						WithText(resource).
						Build(),
				).
				Build(),
		).
		Build()
	if err := w.writeString(bindIQ.String()); err != nil {
		return nil, err
	}
	el, err := w.readElement(conn)
	if err != nil {
		return nil, err
	}
	if el.Name() != "iq" || el.Attribute(stravaganza.Type) != stravaganza.ResultType {
		return nil, errors.Errorf("transport: unexpected bind response <%s/>", el.Name())
	}
	bound := el.ChildNamespace("bind", bindNamespace)
	if bound == nil || bound.Child("jid") == nil {
		return nil, errors.New("transport: malformed bind result")
	}
	return jid.NewWithString(bound.Child("jid").Text(), true)
}

func (w *WebSocket) readLoop(epoch uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.RLock()
			stale := w.epoch != epoch || w.state == wsDisconnected
			w.mu.RUnlock()
			if !stale {
				log.Debugw("Websocket read failed", "err", err)
				w.teardown(epoch, conn)
			}
			return
		}
		el, err := parseElement(data)
		if err != nil {
			if !errors.Is(err, ErrNoElement) {
				log.Warnw("Failed to parse inbound element", "err", err)
			}
			continue
		}
		if el.Name() == "close" {
			w.teardown(epoch, conn)
			return
		}
		w.handleElement(el)
	}
}

func (w *WebSocket) handleElement(el stravaganza.Element) {
	stanza, err := w.buildStanza(el)
	if err != nil {
		log.Debugw("Discarding malformed stanza", "name", el.Name(), "err", err)
		return
	}
	if iq, ok := stanza.(*stravaganza.IQ); ok && (iq.IsResult() || iq.Attribute(stravaganza.Type) == stravaganza.ErrorType) {
		w.completeReq(iq)
		return
	}
	ev := classifyStanza(stanza)
	if ev == nil {
		return
	}
	w.mu.RLock()
	hnds := append([]EventHandler(nil), w.handlers[ev.Kind]...)
	w.mu.RUnlock()

	// handlers run in registration order, preserving transport delivery order
	for _, hnd := range hnds {
		hnd(ev)
	}
}

func (w *WebSocket) completeReq(iq *stravaganza.IQ) {
	reqID := iq.Attribute(stravaganza.ID)

	w.mu.Lock()
	req, ok := w.reqs[reqID]
	if ok {
		req.tm.Stop()
		delete(w.reqs, reqID)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	if iq.IsResult() {
		req.onResult(iq)
		return
	}
	reason := "unknown"
	if errElem := iq.Child("error"); errElem != nil {
		for _, child := range errElem.AllChildren() {
			if child.Name() != "text" {
				reason = child.Name()
				break
			}
		}
	}
	req.onError(errors.Errorf("transport: iq error response: %s", reason))
}

func (w *WebSocket) failReq(reqID string, err error) {
	w.mu.Lock()
	req, ok := w.reqs[reqID]
	if ok {
		req.tm.Stop()
		delete(w.reqs, reqID)
	}
	w.mu.Unlock()
	if ok {
		req.onError(err)
	}
}

func (w *WebSocket) failConnection(epoch uint64, conn *websocket.Conn, st Status) {
	w.mu.RLock()
	stale := w.epoch != epoch || w.state == wsDisconnected
	w.mu.RUnlock()
	// a failure racing an explicit disconnect is not reported twice
	if !stale {
		w.report(st)
	}
	w.teardown(epoch, conn)
}

// transition advances the negotiation state, refusing when the transport was
// torn down or reconnected meanwhile.
func (w *WebSocket) transition(epoch uint64, st wsState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch || w.state == wsDisconnected {
		return false
	}
	w.state = st
	return true
}

// teardown closes the connection, fails every pending request and clears the
// registered handler table before reporting the final disconnected status.
// Calls carrying a stale epoch only close the passed connection.
func (w *WebSocket) teardown(epoch uint64, conn *websocket.Conn) {
	w.mu.Lock()
	if w.epoch != epoch || w.state == wsDisconnected {
		w.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if conn == nil {
		conn = w.conn
	}
	w.state = wsDisconnected
	w.conn = nil
	w.boundJID = nil
	pending := w.reqs
	w.reqs = make(map[string]pendingReq)
	w.handlers = make(map[EventKind][]EventHandler)
	w.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, req := range pending {
		req.tm.Stop()
		req.onError(ErrNotConnected)
	}
	w.report(Disconnected)
}

func (w *WebSocket) keepAliveLoop(conn *websocket.Conn) {
	tc := time.NewTicker(w.cfg.KeepAlive)
	defer tc.Stop()

	for range tc.C {
		w.mu.RLock()
		active := w.conn == conn && w.state == wsBound
		w.mu.RUnlock()
		if !active {
			return
		}
		w.wMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second*5))
		w.wMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (w *WebSocket) readElement(conn *websocket.Conn) (stravaganza.Element, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		el, err := parseElement(data)
		switch {
		case errors.Is(err, ErrNoElement):
			continue
		case err != nil:
			return nil, err
		}
		return el, nil
	}
}

func (w *WebSocket) writeString(s string) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	w.wMu.Lock()
	defer w.wMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(s))
}

func (w *WebSocket) report(st Status) {
	w.mu.RLock()
	hnd := w.statusHnd
	w.mu.RUnlock()
	if hnd != nil {
		hnd(st)
	}
}

// buildStanza normalizes addressing before typed building: stanzas delivered
// without an explicit originator come from the own account (RFC 6120 §8.1.2.1).
func (w *WebSocket) buildStanza(el stravaganza.Element) (stravaganza.Stanza, error) {
	w.mu.RLock()
	boundJID := w.boundJID
	w.mu.RUnlock()
	if boundJID == nil {
		return nil, ErrNotConnected
	}
	sb := stravaganza.NewBuilderFromElement(el)
	if len(el.Attribute(stravaganza.From)) == 0 {
		sb = sb.WithAttribute(stravaganza.From, boundJID.ToBareJID().String())
	}
	if len(el.Attribute(stravaganza.To)) == 0 {
		sb = sb.WithAttribute(stravaganza.To, boundJID.String())
	}
	switch el.Name() {
	case "iq":
		return sb.BuildIQ()
	case "presence":
		return sb.BuildPresence()
	case "message":
		return sb.BuildMessage()
	default:
		return nil, errors.Errorf("transport: unrecognized stanza <%s/>", el.Name())
	}
}
