/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notify implements the notification trigger path: alarm
// notifications scheduled ahead of their due time, fired by timers and
// relayed over the event bus.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/models"
)

// Notification is one scheduled alarm notification.
type Notification struct {
	ID      string    `json:"id"`
	AlarmID string    `json:"alarm_id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
}

// Scheduler keeps one pending timer per enabled alarm and fires a
// notification event when the timer elapses. The trigger engine runs a
// periodic checker alongside this path; duplicate firings for the same
// minute are collapsed downstream.
type Scheduler struct {
	bus    *events.Bus
	logger zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]Notification
}

func NewScheduler(bus *events.Bus, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		bus:     bus,
		logger:  logger.With().Str("component", "notify_scheduler").Logger(),
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]Notification),
	}
}

// Schedule arms a timer for the notification and returns its id. A
// notification whose time already passed fires immediately.
func (s *Scheduler) Schedule(n Notification) string {
	n.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	delay := time.Until(n.At)
	if delay < 0 {
		delay = 0
	}

	s.pending[n.ID] = n
	s.timers[n.ID] = time.AfterFunc(delay, func() { s.fire(n.ID) })

	s.logger.Debug().Str("alarm_id", n.AlarmID).Time("at", n.At).Msg("Notification scheduled")
	return n.ID
}

// Cancel disarms a pending notification. Cancelling an unknown or
// already-fired id is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

// CancelAlarm disarms every pending notification for the alarm. Called
// when an alarm is updated, disabled or deleted.
func (s *Scheduler) CancelAlarm(alarmID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.pending {
		if n.AlarmID == alarmID {
			s.cancelLocked(id)
		}
	}
}

// Scheduled returns the pending notifications, unordered.
func (s *Scheduler) Scheduled() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.pending))
	for _, n := range s.pending {
		out = append(out, n)
	}
	return out
}

// SyncAlarms replaces all pending notifications with one per enabled
// alarm, armed for its next occurrence (the snooze time when snoozed).
func (s *Scheduler) SyncAlarms(alarms []models.Alarm, now time.Time) {
	s.mu.Lock()
	for id := range s.pending {
		s.cancelLocked(id)
	}
	s.mu.Unlock()

	for _, alarm := range alarms {
		if !alarm.Enabled {
			continue
		}
		at := NextOccurrence(alarm, now)
		if at.IsZero() {
			continue
		}
		title := alarm.Label
		if title == "" {
			title = "Alarm " + alarm.TimeString()
		}
		s.Schedule(Notification{
			AlarmID: alarm.ID,
			Title:   title,
			Body:    alarm.Sound.Name(),
			At:      at,
		})
	}
}

// Close disarms all timers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.cancelLocked(id)
	}
}

func (s *Scheduler) cancelLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.pending, id)
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	n, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		delete(s.timers, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.logger.Info().Str("alarm_id", n.AlarmID).Msg("Notification fired")
	s.bus.Publish(events.EventNotificationFired, events.Payload{
		"id":       n.ID,
		"alarm_id": n.AlarmID,
		"title":    n.Title,
		"at":       n.At,
	})
}

// NextOccurrence computes when an alarm should next ring after now. A
// pending snooze wins. One-shot alarms ring today or tomorrow; repeating
// alarms ring on the next matching weekday. Returns the zero time when
// the alarm can never ring.
func NextOccurrence(alarm models.Alarm, now time.Time) time.Time {
	if alarm.SnoozeUntil != nil && alarm.SnoozeUntil.After(now) {
		return *alarm.SnoozeUntil
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), alarm.Hour, alarm.Minute, 0, 0, now.Location())

	if alarm.IsOneShot() {
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}

	for i := 0; i < 8; i++ {
		day := candidate.AddDate(0, 0, i)
		if day.After(now) && alarm.RepeatsOn(day.Weekday()) {
			return day
		}
	}
	return time.Time{}
}
