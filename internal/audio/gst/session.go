/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package gst runs audio playback through a gst-launch subprocess.
package gst

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/audio"
)

const stopGracePeriod = 3 * time.Second

// Session drives one gst-launch pipeline at a time. The process plays
// whatever URI was last loaded; when it dies on its own the session
// reports loaded-but-not-playing so the caller can resume.
type Session struct {
	gstBin string
	logger zerolog.Logger

	mu   sync.Mutex
	uri  string
	cmd  *exec.Cmd
	done chan struct{}
}

// NewSession creates a session. gstBin defaults to gst-launch-1.0 when
// empty.
func NewSession(gstBin string, logger zerolog.Logger) *Session {
	if gstBin == "" {
		gstBin = "gst-launch-1.0"
	}
	return &Session{
		gstBin: gstBin,
		logger: logger.With().Str("component", "gst_session").Logger(),
	}
}

// Load records the media URI. Any running pipeline keeps playing the old
// media until Play or Stop is called.
func (s *Session) Load(_ context.Context, uri string) error {
	if uri == "" {
		return fmt.Errorf("gst: empty media uri")
	}
	s.mu.Lock()
	s.uri = uri
	s.mu.Unlock()
	return nil
}

// Play starts a pipeline for the loaded URI. A pipeline already playing
// the same media is restarted so the stream picks up from live.
func (s *Session) Play(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uri == "" {
		return audio.ErrNotLoaded
	}

	if s.cmd != nil {
		s.killLocked()
	}

	cmd := exec.Command(s.gstBin, "playbin", fmt.Sprintf("uri=%s", s.uri))
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.gstBin, err)
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug().Err(err).Msg("Pipeline process exited")
		}
		close(done)
	}()

	s.cmd = cmd
	s.done = done
	s.logger.Info().Str("uri", s.uri).Int("pid", cmd.Process.Pid).Msg("Pipeline started")
	return nil
}

// Stop halts the pipeline, first with an interrupt so gst can flush,
// then with a kill after a grace period.
func (s *Session) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return audio.ErrAlreadyStopped
	}

	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.done = nil

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
		return nil
	}
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		s.logger.Warn().Msg("Pipeline did not exit after interrupt, killing")
		_ = cmd.Process.Kill()
		<-done
	}
	s.logger.Info().Msg("Pipeline stopped")
	return nil
}

// Unload stops any pipeline and clears the media.
func (s *Session) Unload(ctx context.Context) error {
	err := s.Stop(ctx)
	s.mu.Lock()
	s.uri = ""
	s.mu.Unlock()
	return err
}

// Status reports whether media is loaded and whether the pipeline
// process is currently alive.
func (s *Session) Status(_ context.Context) (audio.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := audio.SessionStatus{URI: s.uri, Loaded: s.uri != ""}
	if s.cmd != nil {
		select {
		case <-s.done:
			s.cmd = nil
			s.done = nil
		default:
			st.Playing = true
		}
	}
	return st, nil
}

// killLocked tears down the running pipeline without grace. Caller holds
// the mutex.
func (s *Session) killLocked() {
	_ = s.cmd.Process.Kill()
	<-s.done
	s.cmd = nil
	s.done = nil
}
