/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

// StreamSource plays an internet radio stream and keeps it alive. A
// monitor goroutine polls the session and restarts playback when the
// stream stalls or the player drops the media entirely.
type StreamSource struct {
	session  Session
	url      string
	name     string
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	playing  bool
	stopOnce *sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStreamSource creates a stream source. interval is the monitor poll
// period; zero disables monitoring.
func NewStreamSource(session Session, url, name string, interval time.Duration, logger zerolog.Logger) *StreamSource {
	return &StreamSource{
		session:  session,
		url:      url,
		name:     name,
		interval: interval,
		logger:   logger.With().Str("component", "stream_source").Str("stream", name).Logger(),
	}
}

func (s *StreamSource) Name() string { return s.name }

// Play loads the stream URL, starts playback and launches the monitor.
// Calling Play on a source that is already playing is an error; sources
// are single-use per trigger.
func (s *StreamSource) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return fmt.Errorf("stream %s: already playing", s.name)
	}

	if err := s.startLocked(ctx); err != nil {
		return err
	}

	s.playing = true
	s.stopOnce = &sync.Once{}

	if s.interval > 0 {
		monCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.monitor(monCtx, s.done)
	}

	telemetry.PlaybackStartsTotal.WithLabelValues("radio", "ok").Inc()
	s.logger.Info().Str("url", s.url).Msg("Stream playback started")
	return nil
}

func (s *StreamSource) startLocked(ctx context.Context) error {
	if err := s.session.Load(ctx, s.url); err != nil {
		telemetry.PlaybackStartsTotal.WithLabelValues("radio", "error").Inc()
		return fmt.Errorf("load stream %s: %w", s.url, err)
	}
	if err := s.session.Play(ctx); err != nil {
		telemetry.PlaybackStartsTotal.WithLabelValues("radio", "error").Inc()
		return fmt.Errorf("play stream %s: %w", s.url, err)
	}
	return nil
}

// Stop halts playback and the monitor. Safe to call multiple times and
// concurrently; teardown races with the player winding down on its own
// are treated as success.
func (s *StreamSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = false
	once := s.stopOnce
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	var stopErr error
	once.Do(func() {
		if cancel != nil {
			cancel()
			<-done
		}

		if err := s.session.Stop(ctx); err != nil && !IsExpectedStopError(err) {
			stopErr = fmt.Errorf("stop stream %s: %w", s.name, err)
			return
		}
		s.logger.Info().Msg("Stream playback stopped")
	})
	return stopErr
}

// Cleanup stops playback if still running and unloads the media,
// returning the shared session to the idle state. Idempotent.
func (s *StreamSource) Cleanup(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	if err := s.session.Unload(ctx); err != nil && !IsExpectedStopError(err) {
		return fmt.Errorf("unload stream %s: %w", s.name, err)
	}
	return nil
}

// monitor polls the session and recovers from two failure shapes: the
// player paused or stalled with the media still loaded (resume), or the
// media was dropped entirely (reload from scratch).
func (s *StreamSource) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkOnce(ctx)
		}
	}
}

func (s *StreamSource) checkOnce(ctx context.Context) {
	status, err := s.session.Status(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stream status check failed")
		return
	}

	switch {
	case status.Loaded && status.Playing:
		return
	case status.Loaded && !status.Playing:
		s.logger.Warn().Msg("Stream stalled, resuming playback")
		if err := s.session.Play(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Stream resume failed")
			return
		}
		telemetry.StreamRecoveriesTotal.WithLabelValues("resume").Inc()
	default:
		s.logger.Warn().Msg("Stream media lost, reloading")
		s.mu.Lock()
		err := s.startLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			s.logger.Error().Err(err).Msg("Stream reload failed")
			return
		}
		telemetry.StreamRecoveriesTotal.WithLabelValues("reload").Inc()
	}
}
