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

package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackal-xmpp/sonar"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/locpub/locpub/discovery"
	"github.com/locpub/locpub/log"
	discomodel "github.com/locpub/locpub/model/disco"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	"github.com/locpub/locpub/module/xep0115"
	"github.com/locpub/locpub/session"
	"github.com/locpub/locpub/transport"
	"github.com/locpub/locpub/ui"
	"github.com/locpub/locpub/version"
	"github.com/pkg/errors"
)

const (
	defaultConfigFile       = "locpub.yml"
	defaultShutDownWaitTime = time.Second * 5
	defaultDiscoveryTimeout = time.Second * 10

	capsNode = "https://locpub.app"
)

var capsFeatures = []discomodel.Feature{
	"http://jabber.org/protocol/caps",
	"http://jabber.org/protocol/disco#info",
	"http://jabber.org/protocol/geoloc",
	"http://jabber.org/protocol/geoloc+notify",
	"http://jabber.org/protocol/pubsub#event",
}

var capsIdentity = discomodel.Identity{
	Category: "client",
	Type:     "console",
	Name:     "locpub",
}

const usageStr = `
Usage: locpub [options]

Options:
    -c, --config <file>    Configuration file path
Common Options:
    -h, --help             Show this message
    -v, --version          Show version
`

// Application encapsulates the locpub terminal client.
type Application struct {
	output     io.Writer
	args       []string
	sess       *session.Session
	pub        *session.Publisher
	term       *ui.UI
	waitStopCh chan os.Signal
}

// New returns a runnable application given an output and a command line
// arguments array.
func New(output io.Writer, args []string) *Application {
	return &Application{
		output:     output,
		args:       args,
		waitStopCh: make(chan os.Signal, 1),
	}
}

// Run runs locpub until either a stop signal is received or the terminal
// surface exits.
func (a *Application) Run() error {
	if len(a.args) == 0 {
		return errors.New("empty command-line arguments")
	}
	var configFile string
	var showVersion, showUsage bool

	fs := flag.NewFlagSet("locpub", flag.ExitOnError)
	fs.SetOutput(a.output)

	fs.BoolVar(&showUsage, "help", false, "Show this message")
	fs.BoolVar(&showUsage, "h", false, "Show this message")
	fs.BoolVar(&showVersion, "version", false, "Print version information.")
	fs.BoolVar(&showVersion, "v", false, "Print version information.")
	fs.StringVar(&configFile, "config", defaultConfigFile, "Configuration file path.")
	fs.StringVar(&configFile, "c", defaultConfigFile, "Configuration file path.")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(a.output, "%s\n", usageStr)
	}
	_ = fs.Parse(a.args[1:])

	if showUsage {
		fs.Usage()
		return nil
	}
	if showVersion {
		_, _ = fmt.Fprintf(a.output, "locpub version: %v\n", version.Version)
		return nil
	}
	var cfg Config
	if err := cfg.FromFile(configFile); err != nil {
		return err
	}
	if err := a.initLogger(&cfg.Logger); err != nil {
		return err
	}
	accountJID, err := jid.NewWithString(cfg.Account.JID, false)
	if err != nil {
		return errors.Wrap(err, "parsing account jid")
	}
	endpointURL, err := resolveEndpoint(&cfg.Endpoint, accountJID.Domain())
	if err != nil {
		return err
	}
	log.Infow("Resolved stream endpoint", "url", endpointURL)

	sn := sonar.New()
	tr := transport.NewWebSocket(transport.Config{
		URL:            endpointURL,
		DialTimeout:    cfg.Endpoint.DialTimeout,
		RequestTimeout: cfg.Endpoint.RequestTimeout,
		KeepAlive:      cfg.Endpoint.KeepAlive,
	})
	a.sess = session.New(session.Config{
		JID:          accountJID,
		Password:     cfg.Account.Password,
		Capabilities: xep0115.NewCapabilitySet(capsNode, capsIdentity, capsFeatures),
	}, tr, sn)

	a.pub = session.NewPublisher(a.sess, session.StaticSource{
		Loc: geolocmodel.Location{
			Lat:      cfg.Sharing.Lat,
			Lon:      cfg.Sharing.Lon,
			Accuracy: cfg.Sharing.Accuracy,
		},
	}, sn, cfg.Sharing.Interval)

	a.term = ui.New(&controller{sess: a.sess, pub: a.pub}, sn)

	log.Infof("locpub %v", version.Version)

	signal.Notify(a.waitStopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-a.waitStopCh
		log.Infof("Received %s signal, shutting down", sig.String())
		a.term.Stop()
	}()

	if err := a.term.Run(); err != nil {
		return err
	}
	return a.gracefullyShutdown()
}

func (a *Application) initLogger(cfg *loggerConfig) error {
	output := io.Discard
	if len(cfg.LogPath) > 0 {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), os.ModePerm); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return err
		}
		output = f
	}
	log.SetLogger(log.NewDefaultLogger(output, cfg.Format), cfg.Level)
	return nil
}

func (a *Application) gracefullyShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutDownWaitTime)
	defer cancel()

	a.pub.Stop()
	if err := a.sess.Disconnect(ctx); err != nil && !errors.Is(err, session.ErrInvalidState) {
		log.Warnw("Failed to disconnect session", "err", err)
	}
	return a.sess.Close(ctx)
}

// resolveEndpoint yields the websocket endpoint URL: the manually configured
// one when present, the discovered one otherwise.
func resolveEndpoint(cfg *endpointConfig, accountDomain string) (string, error) {
	if len(cfg.URL) > 0 {
		return cfg.URL, nil
	}
	domain := cfg.Domain
	if len(domain) == 0 {
		domain = accountDomain
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultDiscoveryTimeout)
	defer cancel()

	ep, err := discovery.NewResolver(defaultDiscoveryTimeout).Discover(ctx, domain)
	if err != nil {
		return "", errors.Wrapf(err, "discovering endpoint for %s", domain)
	}
	if ep.Scheme != discovery.WebSocket {
		log.Warnw("Discovery yielded a non websocket endpoint", "scheme", ep.Scheme, "url", ep.URL)
		return "", errors.Errorf("no websocket endpoint advertised by %s", domain)
	}
	return ep.URL, nil
}

type controller struct {
	sess *session.Session
	pub  *session.Publisher
}

func (c *controller) Connect(ctx context.Context) error { return c.sess.Connect(ctx) }

func (c *controller) Disconnect(ctx context.Context) error {
	c.pub.Stop()
	return c.sess.Disconnect(ctx)
}

func (c *controller) ToggleSharing() error { return c.pub.Toggle() }

func (c *controller) RefreshLocations(ctx context.Context) error {
	return c.sess.RefreshAllLocations(ctx)
}
