/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package keepalive keeps the host audio path warm between alarms so
// the first trigger of the day does not race device power management.
package keepalive

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/telemetry"
)

// Capability is a background activity that holds the audio stack open.
// Start is re-entrant: calling it while running tears down the previous
// activity and starts a fresh one.
type Capability interface {
	Start(ctx context.Context) error
	Stop() error
	Active() bool
}

// SilentAudio plays an inaudible test tone through a gst-launch
// subprocess. Cheap on CPU, keeps the sink claimed.
type SilentAudio struct {
	gstBin string
	logger zerolog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewSilentAudio(gstBin string, logger zerolog.Logger) *SilentAudio {
	if gstBin == "" {
		gstBin = "gst-launch-1.0"
	}
	return &SilentAudio{
		gstBin: gstBin,
		logger: logger.With().Str("component", "keepalive").Logger(),
	}
}

func (k *SilentAudio) Start(_ context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cmd != nil {
		k.stopLocked()
	}

	cmd := exec.Command(k.gstBin, "audiotestsrc", "wave=silence", "!", "autoaudiosink")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start keepalive pipeline: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	k.cmd = cmd
	k.done = done
	telemetry.KeepAliveGauge.Set(1)
	k.logger.Info().Int("pid", cmd.Process.Pid).Msg("Keep-alive activity started")
	return nil
}

func (k *SilentAudio) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cmd == nil {
		return nil
	}
	k.stopLocked()
	k.logger.Info().Msg("Keep-alive activity stopped")
	return nil
}

func (k *SilentAudio) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cmd == nil {
		return false
	}
	select {
	case <-k.done:
		k.cmd = nil
		k.done = nil
		telemetry.KeepAliveGauge.Set(0)
		return false
	default:
		return true
	}
}

func (k *SilentAudio) stopLocked() {
	_ = k.cmd.Process.Kill()
	<-k.done
	k.cmd = nil
	k.done = nil
	telemetry.KeepAliveGauge.Set(0)
}

// Noop satisfies Capability for hosts that do not need the audio path
// held open.
type Noop struct{}

func (Noop) Start(context.Context) error { return nil }
func (Noop) Stop() error                 { return nil }
func (Noop) Active() bool                { return false }
