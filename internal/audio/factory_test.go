/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/models"
)

func newTestFactory() *Factory {
	return NewFactory(&scriptedSession{}, &scriptedMusic{}, FactoryConfig{
		StreamMonitorInterval: time.Second,
		PlaylistRetryAttempts: 3,
		PlaylistRetryDelay:    time.Second,
	}, zerolog.Nop())
}

func TestFactoryPlaylistTakesPrecedence(t *testing.T) {
	f := newTestFactory()

	source := f.Build(models.SoundSource{
		StreamURL:    "https://example.com/s",
		StreamName:   "Test FM",
		PlaylistURI:  "playlist:1",
		PlaylistName: "Morning",
	})
	if _, ok := source.(*PlaylistSource); !ok {
		t.Fatalf("expected a playlist source, got %T", source)
	}
	if source.Name() != "Morning" {
		t.Fatalf("unexpected source name %q", source.Name())
	}
}

func TestFactoryBuildsStreamSource(t *testing.T) {
	f := newTestFactory()

	source := f.Build(models.SoundSource{
		Kind:       models.SoundKindRadio,
		StreamURL:  "https://example.com/s",
		StreamName: "Test FM",
	})
	if _, ok := source.(*StreamSource); !ok {
		t.Fatalf("expected a stream source, got %T", source)
	}
}

func TestFactoryEmptySelectionYieldsNil(t *testing.T) {
	f := newTestFactory()
	if source := f.Build(models.SoundSource{}); source != nil {
		t.Fatalf("empty selection should build nothing, got %T", source)
	}
}
