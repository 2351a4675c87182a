/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package checker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/heimdall_alarm/internal/alarm"
	"github.com/friendsincode/heimdall_alarm/internal/audio"
	"github.com/friendsincode/heimdall_alarm/internal/dedup"
	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/models"
	"github.com/friendsincode/heimdall_alarm/internal/music"
	"github.com/friendsincode/heimdall_alarm/internal/notify"
	"github.com/friendsincode/heimdall_alarm/internal/store"
)

type stubSession struct {
	mu      sync.Mutex
	plays   int
	loaded  bool
	playing bool
}

func (s *stubSession) Load(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	return nil
}

func (s *stubSession) Play(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	s.playing = true
	return nil
}

func (s *stubSession) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *stubSession) Unload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.playing = false
	return nil
}

func (s *stubSession) Status(context.Context) (audio.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SessionStatus{Loaded: s.loaded, Playing: s.playing}, nil
}

func (s *stubSession) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// stubKeepAlive records start/stop transitions.
type stubKeepAlive struct {
	mu     sync.Mutex
	active bool
	starts int
	stops  int
}

func (k *stubKeepAlive) Start(context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		k.stops++
	}
	k.active = true
	k.starts++
	return nil
}

func (k *stubKeepAlive) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active {
		k.stops++
	}
	k.active = false
	return nil
}

func (k *stubKeepAlive) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

type stubMusic struct{}

func (stubMusic) ListPlaylists(context.Context) ([]music.Playlist, error) { return nil, nil }
func (stubMusic) ListDevices(context.Context) ([]music.Device, error)     { return nil, nil }
func (stubMusic) Play(context.Context, string) error                      { return nil }
func (stubMusic) Pause(context.Context) error                             { return nil }

type checkerFixture struct {
	service   *Service
	manager   *alarm.Manager
	alarms    *store.AlarmStore
	session   *stubSession
	keepAlive *stubKeepAlive
	bus       *events.Bus
}

func newCheckerFixture(t *testing.T) *checkerFixture {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.AutoMigrate(&models.Alarm{}, &models.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	alarms := store.NewAlarmStore(database, logger)
	registry := dedup.New("", "", 0, time.Minute, logger)
	session := &stubSession{}

	factory := audio.NewFactory(session, stubMusic{}, audio.FactoryConfig{}, logger)
	notifier := notify.NewScheduler(bus, logger)
	t.Cleanup(notifier.Close)
	manager := alarm.NewManager(alarms, factory, registry, notifier, bus, logger)

	keepAlive := &stubKeepAlive{}
	service := New(alarms, manager, notifier, keepAlive, registry, bus, time.Second, logger)
	return &checkerFixture{
		service:   service,
		manager:   manager,
		alarms:    alarms,
		session:   session,
		keepAlive: keepAlive,
		bus:       bus,
	}
}

func (f *checkerFixture) createAlarmAt(t *testing.T, at time.Time, mutate func(*models.Alarm)) models.Alarm {
	t.Helper()
	a := models.Alarm{
		Hour:    at.Hour(),
		Minute:  at.Minute(),
		Enabled: true,
		Sound: models.SoundSource{
			Kind:       models.SoundKindRadio,
			StreamURL:  "https://example.com/stream",
			StreamName: "Test FM",
		},
	}
	if mutate != nil {
		mutate(&a)
	}
	if err := f.alarms.Create(context.Background(), &a); err != nil {
		t.Fatalf("create alarm: %v", err)
	}
	return a
}

func TestTickFiresDueAlarm(t *testing.T) {
	f := newCheckerFixture(t)
	now := time.Now()
	a := f.createAlarmAt(t, now, nil)

	f.service.tick(context.Background())

	if !f.manager.Ringing() {
		t.Fatal("due alarm should be ringing after a tick")
	}
	if got := f.manager.Status().ActiveAlarmID; got != a.ID {
		t.Fatalf("wrong alarm fired: %s", got)
	}
}

func TestTickIgnoresAlarmsNotDue(t *testing.T) {
	f := newCheckerFixture(t)
	f.createAlarmAt(t, time.Now().Add(time.Hour), nil)

	f.service.tick(context.Background())

	if f.manager.Ringing() {
		t.Fatal("no alarm should fire outside its minute")
	}
}

func TestTickSkipsEvaluationWhileRinging(t *testing.T) {
	f := newCheckerFixture(t)
	now := time.Now()
	a := f.createAlarmAt(t, now, nil)
	b := f.createAlarmAt(t, now, nil)

	f.service.tick(context.Background())
	f.service.tick(context.Background())

	if got := f.manager.Status().ActiveAlarmID; got != a.ID && got != b.ID {
		t.Fatalf("unexpected active alarm %s", got)
	}
	if f.session.playCount() != 1 {
		t.Fatalf("a second tick while ringing must not start playback, plays=%d", f.session.playCount())
	}
}

func TestTickIsIdempotentWithinMinute(t *testing.T) {
	f := newCheckerFixture(t)
	f.createAlarmAt(t, time.Now(), nil)

	f.service.tick(context.Background())
	if err := f.manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Same minute, next tick: the registry holds the mark.
	f.service.tick(context.Background())

	if f.manager.Ringing() {
		t.Fatal("stopped alarm must not re-fire within its minute")
	}
	if f.session.playCount() != 1 {
		t.Fatalf("expected a single play, got %d", f.session.playCount())
	}
}

func TestKeepAliveYieldsToRingingAlarm(t *testing.T) {
	f := newCheckerFixture(t)
	f.createAlarmAt(t, time.Now(), nil)

	// First sweep starts the keep-alive, then fires the due alarm.
	f.service.tick(context.Background())
	if !f.manager.Ringing() {
		t.Fatal("due alarm should be ringing after a tick")
	}

	// The next sweep notices playback owns the audio path.
	f.service.tick(context.Background())
	if f.keepAlive.Active() {
		t.Fatal("keep-alive must stand down while an alarm plays")
	}

	if err := f.manager.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	f.service.tick(context.Background())
	if !f.keepAlive.Active() {
		t.Fatal("keep-alive should resume once playback ends")
	}
}

func TestKeepAliveRestartedWhenDead(t *testing.T) {
	f := newCheckerFixture(t)

	f.service.tick(context.Background())
	if !f.keepAlive.Active() {
		t.Fatal("idle sweep should hold the keep-alive open")
	}

	// Simulate the activity dying between sweeps.
	if err := f.keepAlive.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	f.service.tick(context.Background())
	if !f.keepAlive.Active() {
		t.Fatal("dead keep-alive should be restarted on the next sweep")
	}
	if f.keepAlive.starts != 2 {
		t.Fatalf("expected 2 starts, got %d", f.keepAlive.starts)
	}
}

func TestNotificationPathReevaluates(t *testing.T) {
	f := newCheckerFixture(t)
	a := f.createAlarmAt(t, time.Now().Add(time.Hour), nil)

	// Stale notification for an alarm that is no longer due.
	f.service.onNotificationFired(context.Background(), events.Payload{"alarm_id": a.ID})
	if f.manager.Ringing() {
		t.Fatal("stale notification must not trigger the alarm")
	}

	b := f.createAlarmAt(t, time.Now(), nil)
	f.service.onNotificationFired(context.Background(), events.Payload{"alarm_id": b.ID})
	if !f.manager.Ringing() {
		t.Fatal("due notification should trigger the alarm")
	}
}

func TestNotificationPathUnknownAlarm(t *testing.T) {
	f := newCheckerFixture(t)
	// Deleted alarm: the notification is ignored without error.
	f.service.onNotificationFired(context.Background(), events.Payload{"alarm_id": "gone"})
	if f.manager.Ringing() {
		t.Fatal("unknown alarm must not trigger")
	}
}
