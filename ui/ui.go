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

package ui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jackal-xmpp/sonar"
	"github.com/locpub/locpub/event"
	"github.com/locpub/locpub/log"
	geolocmodel "github.com/locpub/locpub/model/geoloc"
	rostermodel "github.com/locpub/locpub/model/rostermodel"
	"github.com/rivo/tview"
)

const toastVisibleFor = time.Second * 3

// Controller exposes the session commands the terminal surface triggers.
type Controller interface {
	// Connect starts establishing the stream.
	Connect(ctx context.Context) error

	// Disconnect tears down the stream.
	Disconnect(ctx context.Context) error

	// ToggleSharing flips own location sharing.
	ToggleSharing() error

	// RefreshLocations pulls every refreshable contact location.
	RefreshLocations(ctx context.Context) error
}

// UI renders the terminal surface: connection status, sorted roster, active
// shares with age labels and a log pane. All data arrives as event snapshots.
type UI struct {
	ctrl Controller
	sn   *sonar.Sonar
	subs []sonar.SubID

	app        *tview.Application
	rosterView *tview.TextView
	sharesView *tview.TextView
	logView    *tview.TextView
	statusBar  *tview.TextView

	status  string
	sharing bool
	toastTm *time.Timer

	timeNow func() time.Time
}

// New returns an initialized terminal UI.
func New(ctrl Controller, sn *sonar.Sonar) *UI {
	u := &UI{
		ctrl:    ctrl,
		sn:      sn,
		app:     tview.NewApplication(),
		status:  "disconnected",
		timeNow: time.Now,
	}
	u.rosterView = newPane("Contacts")
	u.sharesView = newPane("Shared Locations")
	u.logView = newPane("Log")
	u.logView.SetScrollable(true)

	u.statusBar = tview.NewTextView().SetDynamicColors(true)
	u.statusBar.SetBackgroundColor(tcell.ColorDarkBlue)

	return u
}

// Run subscribes to session events and blocks running the terminal surface.
func (u *UI) Run() error {
	u.subs = append(u.subs, u.sn.Subscribe(event.SessionStatusChanged, u.onStatusChanged))
	u.subs = append(u.subs, u.sn.Subscribe(event.RosterUpdated, u.onRosterUpdated))
	u.subs = append(u.subs, u.sn.Subscribe(event.SharesUpdated, u.onSharesUpdated))
	u.subs = append(u.subs, u.sn.Subscribe(event.SharingToggled, u.onSharingToggled))
	u.subs = append(u.subs, u.sn.Subscribe(event.ToastRaised, u.onToastRaised))

	top := tview.NewFlex().
		AddItem(u.rosterView, 0, 1, false).
		AddItem(u.sharesView, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 3, false).
		AddItem(u.logView, 0, 1, false).
		AddItem(u.statusBar, 1, 0, false)

	u.app.SetInputCapture(u.onKeyPressed)
	u.drawStatusBar()

	return u.app.SetRoot(root, true).EnableMouse(false).Run()
}

// Stop unsubscribes and shuts the terminal surface down.
func (u *UI) Stop() {
	for _, sub := range u.subs {
		u.sn.Unsubscribe(sub)
	}
	u.app.Stop()
}

func (u *UI) onKeyPressed(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Rune() {
	case 'c':
		if err := u.ctrl.Connect(context.Background()); err != nil {
			u.appendLog(fmt.Sprintf("connect: %v", err))
		}
	case 'd':
		if err := u.ctrl.Disconnect(context.Background()); err != nil {
			u.appendLog(fmt.Sprintf("disconnect: %v", err))
		}
	case 's':
		if err := u.ctrl.ToggleSharing(); err != nil {
			u.appendLog(fmt.Sprintf("sharing: %v", err))
		}
	case 'r':
		if err := u.ctrl.RefreshLocations(context.Background()); err != nil {
			u.appendLog(fmt.Sprintf("refresh: %v", err))
		}
	case 'q':
		u.app.Stop()
	default:
		return ev
	}
	return nil
}

func (u *UI) onStatusChanged(_ context.Context, ev sonar.Event) error {
	inf := ev.Info().(*event.SessionStatusEventInfo)
	u.app.QueueUpdateDraw(func() {
		u.status = inf.Status
		u.appendLog("session " + inf.Status)
		u.drawStatusBar()
	})
	return nil
}

func (u *UI) onRosterUpdated(_ context.Context, ev sonar.Event) error {
	inf := ev.Info().(*event.RosterEventInfo)
	u.app.QueueUpdateDraw(func() {
		u.drawRoster(inf.Items)
	})
	return nil
}

func (u *UI) onSharesUpdated(_ context.Context, ev sonar.Event) error {
	inf := ev.Info().(*event.SharesEventInfo)
	u.app.QueueUpdateDraw(func() {
		u.drawShares(inf.Records)
	})
	return nil
}

func (u *UI) onSharingToggled(_ context.Context, ev sonar.Event) error {
	inf := ev.Info().(*event.SharingEventInfo)
	u.app.QueueUpdateDraw(func() {
		u.sharing = inf.Enabled
		u.drawStatusBar()
	})
	return nil
}

func (u *UI) onToastRaised(_ context.Context, ev sonar.Event) error {
	inf := ev.Info().(*event.ToastEventInfo)
	u.app.QueueUpdateDraw(func() {
		u.showToast(inf.Text)
	})
	return nil
}

func (u *UI) drawRoster(items []rostermodel.Item) {
	u.rosterView.Clear()
	for _, item := range items {
		marker := "[gray]·"
		if item.Online {
			marker = "[green]●"
		}
		fmt.Fprintf(u.rosterView, "%s [white]%s [gray](%s)\n", marker, tview.Escape(item.Name), item.Subscription)
	}
}

func (u *UI) drawShares(records []geolocmodel.Record) {
	u.sharesView.Clear()
	now := u.timeNow()
	for _, rec := range records {
		fmt.Fprintf(u.sharesView, "[white]%s [yellow]%s, %s [gray]±%sm [white]%s\n",
			tview.Escape(rec.JID),
			strconv.FormatFloat(rec.Lat, 'f', -1, 64),
			strconv.FormatFloat(rec.Lon, 'f', -1, 64),
			strconv.FormatFloat(rec.Accuracy, 'f', -1, 64),
			rec.SeenAgo(now),
		)
	}
}

func (u *UI) drawStatusBar() {
	sharing := "off"
	if u.sharing {
		sharing = "on"
	}
	u.statusBar.Clear()
	fmt.Fprintf(u.statusBar, " [white]%s [gray]| sharing %s | c)onnect d)isconnect s)hare r)efresh q)uit", u.status, sharing)
}

func (u *UI) showToast(text string) {
	if u.toastTm != nil {
		u.toastTm.Stop()
	}
	u.statusBar.Clear()
	fmt.Fprintf(u.statusBar, " [yellow]%s", tview.Escape(text))

	u.toastTm = time.AfterFunc(toastVisibleFor, func() {
		u.app.QueueUpdateDraw(u.drawStatusBar)
	})
	u.appendLog(text)
}

func (u *UI) appendLog(text string) {
	fmt.Fprintf(u.logView, "[gray]%s [white]%s\n", u.timeNow().Format("15:04:05"), tview.Escape(text))
	u.logView.ScrollToEnd()
	log.Debugf("ui: %s", text)
}

func newPane(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetTitle(" " + title + " ")
	return tv
}
