/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/audio"
	"github.com/friendsincode/heimdall_alarm/internal/dedup"
	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/models"
	"github.com/friendsincode/heimdall_alarm/internal/notify"
	"github.com/friendsincode/heimdall_alarm/internal/store"
	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

// State is the engine's playback state.
type State string

const (
	StateIdle      State = "idle"
	StateTriggered State = "triggered"
)

// Status is a snapshot of the manager for the API and event relays.
type Status struct {
	State         State  `json:"state"`
	ActiveAlarmID string `json:"active_alarm_id,omitempty"`
	SourceName    string `json:"source_name,omitempty"`
	PreviewName   string `json:"preview_name,omitempty"`
}

// Manager owns the two playback slots: the active alarm and the
// preview. The slots are mutually exclusive; an alarm firing evicts any
// running preview, and a preview cannot start while an alarm rings.
//
// Trigger requests arrive from two independent paths (the scheduled
// notification and the periodic checker); the dedup registry collapses
// them so each alarm minute plays exactly once.
type Manager struct {
	alarms   *store.AlarmStore
	factory  *audio.Factory
	registry *dedup.Registry
	notifier *notify.Scheduler
	bus      *events.Bus
	logger   zerolog.Logger

	mu            sync.Mutex
	activeAlarmID string
	activeAlarm   models.Alarm
	activeSource  audio.Source
	preview       audio.Source
}

func NewManager(alarms *store.AlarmStore, factory *audio.Factory, registry *dedup.Registry, notifier *notify.Scheduler, bus *events.Bus, logger zerolog.Logger) *Manager {
	return &Manager{
		alarms:   alarms,
		factory:  factory,
		registry: registry,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With().Str("component", "alarm_manager").Logger(),
	}
}

// Trigger fires an alarm. origin names the path that noticed the due
// time ("checker", "notification", "manual") and only appears in logs
// and metrics. Duplicate requests for the same alarm minute and
// requests while another alarm rings are ignored without error.
func (m *Manager) Trigger(ctx context.Context, alarm models.Alarm, origin string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeSource != nil {
		m.logger.Debug().Str("alarm_id", alarm.ID).Str("origin", origin).Msg("Trigger ignored, an alarm is already ringing")
		return nil
	}

	if !m.registry.MarkIfFirst(ctx, alarm.ID, now) {
		telemetry.AlarmDuplicatesSuppressedTotal.Inc()
		m.logger.Debug().Str("alarm_id", alarm.ID).Str("origin", origin).Msg("Trigger suppressed, minute already fired")
		return nil
	}

	source := m.factory.Build(alarm.Sound)
	if source == nil {
		m.logger.Warn().Str("alarm_id", alarm.ID).Msg("Alarm skipped, no playable sound configured")
		telemetry.AlarmTriggersTotal.WithLabelValues(origin, "skipped").Inc()
		return nil
	}

	// A snooze that just elapsed is consumed by this trigger.
	if alarm.SnoozeUntil != nil {
		if err := m.alarms.SetSnoozeUntil(ctx, alarm.ID, nil); err != nil {
			m.logger.Error().Err(err).Str("alarm_id", alarm.ID).Msg("Failed to clear snooze")
		}
	}

	if m.preview != nil {
		m.stopPreviewLocked(ctx)
	}

	if err := source.Play(ctx); err != nil {
		telemetry.AlarmTriggersTotal.WithLabelValues(origin, "error").Inc()
		m.bus.Publish(events.EventPlaybackFailed, events.Payload{
			"alarm_id": alarm.ID,
			"source":   source.Name(),
			"error":    err.Error(),
		})
		return fmt.Errorf("trigger alarm %s: %w", alarm.ID, err)
	}

	m.activeAlarmID = alarm.ID
	m.activeAlarm = alarm
	m.activeSource = source
	telemetry.ActiveSourceGauge.Set(1)
	telemetry.AlarmTriggersTotal.WithLabelValues(origin, "ok").Inc()

	m.logger.Info().Str("alarm_id", alarm.ID).Str("source", source.Name()).Str("origin", origin).Msg("Alarm triggered")
	m.bus.Publish(events.EventAlarmTriggered, events.Payload{
		"alarm_id": alarm.ID,
		"source":   source.Name(),
		"origin":   origin,
	})
	m.bus.Publish(events.EventNowPlaying, events.Payload{
		"source": source.Name(),
	})
	return nil
}

// Stop ends the ringing alarm. Idempotent: stopping while idle is a
// no-op. Stopping a one-shot alarm also disables it so it does not ring
// again tomorrow.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.activeSource == nil {
		m.mu.Unlock()
		return nil
	}
	alarm := m.activeAlarm
	source := m.activeSource
	m.activeAlarmID = ""
	m.activeAlarm = models.Alarm{}
	m.activeSource = nil
	telemetry.ActiveSourceGauge.Set(0)
	m.mu.Unlock()

	if err := source.Stop(ctx); err != nil {
		// Playback is already torn down as far as the caller cares;
		// surface the error but keep the state transition.
		m.logger.Error().Err(err).Str("alarm_id", alarm.ID).Msg("Stop reported an error")
	}
	if err := source.Cleanup(ctx); err != nil {
		m.logger.Warn().Err(err).Str("alarm_id", alarm.ID).Msg("Source cleanup reported an error")
	}

	if alarm.IsOneShot() {
		if err := m.alarms.SetEnabled(ctx, alarm.ID, false); err != nil {
			m.logger.Error().Err(err).Str("alarm_id", alarm.ID).Msg("Failed to disable one-shot alarm")
		} else {
			m.bus.Publish(events.EventAlarmDisabled, events.Payload{"alarm_id": alarm.ID})
		}
	}

	m.logger.Info().Str("alarm_id", alarm.ID).Msg("Alarm stopped")
	m.bus.Publish(events.EventAlarmStopped, events.Payload{"alarm_id": alarm.ID})
	return nil
}

// Snooze silences the ringing alarm and re-arms it a few minutes out.
// Only valid while an alarm rings and only for alarms with snooze
// enabled. The alarm stays enabled through a snooze, one-shot or not;
// only an explicit Stop consumes a one-shot.
func (m *Manager) Snooze(ctx context.Context, defaultMinutes int) (time.Time, error) {
	m.mu.Lock()
	if m.activeSource == nil {
		m.mu.Unlock()
		return time.Time{}, fmt.Errorf("no alarm is ringing")
	}
	alarm := m.activeAlarm
	source := m.activeSource
	if !alarm.SnoozeEnabled {
		m.mu.Unlock()
		return time.Time{}, fmt.Errorf("alarm %s has snooze disabled", alarm.ID)
	}
	m.activeAlarmID = ""
	m.activeAlarm = models.Alarm{}
	m.activeSource = nil
	telemetry.ActiveSourceGauge.Set(0)
	m.mu.Unlock()

	minutes := alarm.SnoozeIntervalMinutes
	if minutes <= 0 {
		minutes = defaultMinutes
	}
	until := time.Now().Truncate(time.Minute).Add(time.Duration(minutes) * time.Minute)

	if err := source.Stop(ctx); err != nil {
		m.logger.Error().Err(err).Str("alarm_id", alarm.ID).Msg("Stop during snooze reported an error")
	}
	if err := source.Cleanup(ctx); err != nil {
		m.logger.Warn().Err(err).Str("alarm_id", alarm.ID).Msg("Source cleanup reported an error")
	}

	if err := m.alarms.SetSnoozeUntil(ctx, alarm.ID, &until); err != nil {
		return time.Time{}, fmt.Errorf("persist snooze: %w", err)
	}

	m.notifier.Schedule(notify.Notification{
		AlarmID: alarm.ID,
		Title:   "Snoozed alarm",
		Body:    alarm.Sound.Name(),
		At:      until,
	})

	telemetry.SnoozesTotal.Inc()
	m.logger.Info().Str("alarm_id", alarm.ID).Time("until", until).Msg("Alarm snoozed")
	m.bus.Publish(events.EventAlarmSnoozed, events.Payload{
		"alarm_id": alarm.ID,
		"until":    until,
	})
	return until, nil
}

// StartPreview plays a sound selection outside any alarm, for auditioning
// stations and playlists. Refused while an alarm rings. Starting a new
// preview replaces the running one.
func (m *Manager) StartPreview(ctx context.Context, sound models.SoundSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeSource != nil {
		return fmt.Errorf("cannot preview while an alarm is ringing")
	}
	if m.preview != nil {
		m.stopPreviewLocked(ctx)
	}

	source := m.factory.Build(sound)
	if source == nil {
		return fmt.Errorf("nothing to preview")
	}
	if err := source.Play(ctx); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}

	m.preview = source
	m.logger.Info().Str("source", source.Name()).Msg("Preview started")
	m.bus.Publish(events.EventPreviewStarted, events.Payload{"source": source.Name()})
	return nil
}

// StopPreview ends the preview, if any.
func (m *Manager) StopPreview(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.preview == nil {
		return nil
	}
	m.stopPreviewLocked(ctx)
	return nil
}

func (m *Manager) stopPreviewLocked(ctx context.Context) {
	name := m.preview.Name()
	if err := m.preview.Stop(ctx); err != nil {
		m.logger.Warn().Err(err).Str("source", name).Msg("Preview stop reported an error")
	}
	if err := m.preview.Cleanup(ctx); err != nil {
		m.logger.Warn().Err(err).Str("source", name).Msg("Preview cleanup reported an error")
	}
	m.preview = nil
	m.logger.Info().Str("source", name).Msg("Preview stopped")
	m.bus.Publish(events.EventPreviewStopped, events.Payload{"source": name})
}

// Ringing reports whether an alarm is currently playing.
func (m *Manager) Ringing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSource != nil
}

// Status returns a read-only snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: StateIdle}
	if m.activeSource != nil {
		st.State = StateTriggered
		st.ActiveAlarmID = m.activeAlarmID
		st.SourceName = m.activeSource.Name()
	}
	if m.preview != nil {
		st.PreviewName = m.preview.Name()
	}
	return st
}

// Close stops whatever is playing. Used on shutdown.
func (m *Manager) Close(ctx context.Context) {
	_ = m.Stop(ctx)
	_ = m.StopPreview(ctx)
}
