/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type scriptedSession struct {
	mu      sync.Mutex
	loaded  bool
	playing bool
	loads   int
	plays   int
	stops   int
	stopErr error
}

func (s *scriptedSession) Load(_ context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	s.loaded = true
	return nil
}

func (s *scriptedSession) Play(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.plays++
	s.playing = true
	return nil
}

func (s *scriptedSession) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if s.stopErr != nil {
		return s.stopErr
	}
	s.playing = false
	return nil
}

func (s *scriptedSession) Unload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.playing = false
	return nil
}

func (s *scriptedSession) Status(context.Context) (SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{Loaded: s.loaded, Playing: s.playing}, nil
}

func (s *scriptedSession) setState(loaded, playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = loaded
	s.playing = playing
}

func (s *scriptedSession) counts() (loads, plays int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.plays
}

func (s *scriptedSession) state() (loaded, playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded, s.playing
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStreamPlayLoadsAndStarts(t *testing.T) {
	session := &scriptedSession{}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 0, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer src.Stop(context.Background())

	loads, plays := session.counts()
	if loads != 1 || plays != 1 {
		t.Fatalf("expected 1 load and 1 play, got %d/%d", loads, plays)
	}
	if err := src.Play(context.Background()); err == nil {
		t.Fatal("second play on a running source must fail")
	}
}

func TestStreamMonitorResumesStalledPlayback(t *testing.T) {
	session := &scriptedSession{}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 10*time.Millisecond, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer src.Stop(context.Background())

	// Player stalls with the media still loaded.
	session.setState(true, false)

	waitFor(t, time.Second, func() bool {
		_, plays := session.counts()
		return plays >= 2
	})

	loads, _ := session.counts()
	if loads != 1 {
		t.Fatalf("resume must not reload the media, loads=%d", loads)
	}
}

func TestStreamMonitorReloadsDroppedMedia(t *testing.T) {
	session := &scriptedSession{}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 10*time.Millisecond, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer src.Stop(context.Background())

	// Player dropped the media entirely.
	session.setState(false, false)

	waitFor(t, time.Second, func() bool {
		loads, _ := session.counts()
		return loads >= 2
	})
}

func TestStreamStopIsIdempotent(t *testing.T) {
	session := &scriptedSession{}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 0, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStreamCleanupReleasesSession(t *testing.T) {
	session := &scriptedSession{}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 10*time.Millisecond, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := src.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if loaded, _ := session.state(); loaded {
		t.Fatal("cleanup must unload the session")
	}

	// The monitor is gone with it: a stall after cleanup must not be
	// answered.
	session.setState(true, false)
	_, playsBefore := session.counts()
	time.Sleep(50 * time.Millisecond)
	if _, plays := session.counts(); plays != playsBefore {
		t.Fatalf("monitor still running after cleanup, plays %d -> %d", playsBefore, plays)
	}

	if err := src.Cleanup(context.Background()); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
}

func TestStreamStopSwallowsExpectedErrors(t *testing.T) {
	session := &scriptedSession{stopErr: ErrAlreadyStopped}
	src := NewStreamSource(session, "https://example.com/s", "Test FM", 0, zerolog.Nop())

	if err := src.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("already-stopped teardown should be success, got %v", err)
	}
}
