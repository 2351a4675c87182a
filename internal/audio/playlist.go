/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/music"
	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

// PlaylistSource plays a music-service playlist through the connected
// account. The service needs an active player device, which may take a
// moment to appear after wake, so starts are retried with a backoff.
type PlaylistSource struct {
	client    music.Client
	uri       string
	name      string
	attempts  int
	baseDelay time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	playing bool
}

// NewPlaylistSource creates a playlist source. attempts is the total
// number of start attempts; baseDelay grows linearly between them.
func NewPlaylistSource(client music.Client, uri, name string, attempts int, baseDelay time.Duration, logger zerolog.Logger) *PlaylistSource {
	if attempts < 1 {
		attempts = 1
	}
	return &PlaylistSource{
		client:    client,
		uri:       uri,
		name:      name,
		attempts:  attempts,
		baseDelay: baseDelay,
		logger:    logger.With().Str("component", "playlist_source").Str("playlist", name).Logger(),
	}
}

func (p *PlaylistSource) Name() string { return p.name }

// Play starts the playlist, retrying while the player device is not
// ready. Non-transient errors fail immediately.
func (p *PlaylistSource) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return fmt.Errorf("playlist %s: already playing", p.name)
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		err := p.client.Play(ctx, p.uri)
		if err == nil {
			p.playing = true
			telemetry.PlaybackStartsTotal.WithLabelValues("playlist", "ok").Inc()
			p.logger.Info().Str("uri", p.uri).Int("attempt", attempt).Msg("Playlist playback started")
			return nil
		}
		lastErr = err

		if !errors.Is(err, music.ErrPlayerNotReady) {
			telemetry.PlaybackStartsTotal.WithLabelValues("playlist", "error").Inc()
			return fmt.Errorf("play playlist %s: %w", p.uri, err)
		}

		if attempt == p.attempts {
			break
		}

		delay := time.Duration(attempt) * p.baseDelay
		telemetry.PlaybackRetriesTotal.WithLabelValues("playlist").Inc()
		p.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Player not ready, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	telemetry.PlaybackStartsTotal.WithLabelValues("playlist", "error").Inc()
	return fmt.Errorf("play playlist %s: %d attempts exhausted: %w", p.uri, p.attempts, lastErr)
}

// Stop pauses playback. Pausing a player that already stopped or
// disappeared is fine; only unexpected errors are reported.
func (p *PlaylistSource) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	p.mu.Unlock()

	if err := p.client.Pause(ctx); err != nil && !errors.Is(err, music.ErrPlayerNotReady) {
		return fmt.Errorf("pause playlist %s: %w", p.name, err)
	}
	p.logger.Info().Msg("Playlist playback stopped")
	return nil
}

// Cleanup stops playback if still running. The remote player holds no
// local resources beyond that.
func (p *PlaylistSource) Cleanup(ctx context.Context) error {
	return p.Stop(ctx)
}
