/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/models"
	"github.com/friendsincode/heimdall_alarm/internal/music"
)

// FactoryConfig carries the tuning every constructed source shares.
type FactoryConfig struct {
	StreamMonitorInterval time.Duration
	PlaylistRetryAttempts int
	PlaylistRetryDelay    time.Duration
}

// Factory builds a playable Source from a persisted sound selection.
type Factory struct {
	session Session
	client  music.Client
	cfg     FactoryConfig
	logger  zerolog.Logger
}

func NewFactory(session Session, client music.Client, cfg FactoryConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		session: session,
		client:  client,
		cfg:     cfg,
		logger:  logger.With().Str("component", "audio_factory").Logger(),
	}
}

// Build resolves a sound selection to a source. When both a playlist and
// a stream are stored the playlist wins. An empty selection yields nil;
// the caller skips the alarm.
func (f *Factory) Build(sound models.SoundSource) Source {
	if sound.PlaylistURI != "" {
		return NewPlaylistSource(f.client, sound.PlaylistURI, sound.PlaylistName,
			f.cfg.PlaylistRetryAttempts, f.cfg.PlaylistRetryDelay, f.logger)
	}
	if sound.StreamURL != "" {
		return NewStreamSource(f.session, sound.StreamURL, sound.StreamName,
			f.cfg.StreamMonitorInterval, f.logger)
	}
	f.logger.Warn().Msg("Alarm has no sound source configured, nothing to play")
	return nil
}
