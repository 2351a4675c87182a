/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus relays the in-process event bus to NATS so other
// household services (displays, home automation) can react to alarms.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/events"
)

const subjectPrefix = "heimdall.events."

// relayedTypes are the event categories mirrored to NATS.
var relayedTypes = []events.EventType{
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

// NATSRelay forwards bus events to NATS subjects, one subject per event
// type under the heimdall.events prefix.
type NATSRelay struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewNATSRelay(url string, bus *events.Bus, logger zerolog.Logger) (*NATSRelay, error) {
	conn, err := nats.Connect(url,
		nats.Name("heimdall-alarm"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NATSRelay{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "nats_relay").Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Start launches one forwarding goroutine per relayed event type.
func (r *NATSRelay) Start() {
	for _, eventType := range relayedTypes {
		sub := r.bus.Subscribe(eventType)
		r.wg.Add(1)
		go r.forward(eventType, sub)
	}
	r.logger.Info().Int("types", len(relayedTypes)).Msg("NATS relay started")
}

func (r *NATSRelay) forward(eventType events.EventType, sub events.Subscriber) {
	defer r.wg.Done()
	subject := subjectPrefix + string(eventType)

	for {
		select {
		case <-r.stopCh:
			r.bus.Unsubscribe(eventType, sub)
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(payload)
			if err != nil {
				r.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to encode event")
				continue
			}
			if err := r.conn.Publish(subject, data); err != nil {
				r.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
			}
		}
	}
}

// Close stops forwarding and drains the connection.
func (r *NATSRelay) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	if err := r.conn.Drain(); err != nil {
		r.logger.Warn().Err(err).Msg("NATS drain failed")
	}
}
