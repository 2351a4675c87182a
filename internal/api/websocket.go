/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/heimdall_alarm/internal/events"
)

// streamedTypes are the events pushed to websocket clients.
var streamedTypes = []events.EventType{
	events.EventAlarmTriggered,
	events.EventAlarmStopped,
	events.EventAlarmSnoozed,
	events.EventAlarmDisabled,
	events.EventAlarmUpdated,
	events.EventNowPlaying,
	events.EventPlaybackFailed,
	events.EventPreviewStarted,
	events.EventPreviewStopped,
}

type wsEvent struct {
	Type    string         `json:"type"`
	Time    time.Time      `json:"time"`
	Payload events.Payload `json:"payload"`
}

// handleEvents upgrades to a websocket and streams bus events until the
// client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host clients, auth already passed
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	merged := make(chan wsEvent, 32)

	for _, eventType := range streamedTypes {
		sub := a.bus.Subscribe(eventType)
		defer a.bus.Unsubscribe(eventType, sub)

		go func(eventType events.EventType, sub events.Subscriber) {
			for payload := range sub {
				select {
				case merged <- wsEvent{Type: string(eventType), Time: time.Now(), Payload: payload}:
				case <-ctx.Done():
					return
				}
			}
		}(eventType, sub)
	}

	a.logger.Debug().Str("remote", r.RemoteAddr).Msg("Event stream connected")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-merged:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				a.logger.Debug().Err(err).Msg("Event stream client gone")
				return
			}
		}
	}
}
