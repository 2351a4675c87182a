/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audio provides the playable sources an alarm can be bound to
// and the player session capability they run on.
package audio

import (
	"context"
	"errors"
)

// Expected teardown conditions. Stopping a source that already wound
// down reports one of these; callers treat them as success.
var (
	ErrAlreadyStopped = errors.New("audio: session already stopped")
	ErrNotLoaded      = errors.New("audio: no media loaded")
)

// SessionStatus is a snapshot of the player session.
type SessionStatus struct {
	Loaded  bool
	Playing bool
	URI     string
}

// Session is the capability a stream source needs from the underlying
// player. Implementations must be safe for concurrent use.
type Session interface {
	Load(ctx context.Context, uri string) error
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
	Status(ctx context.Context) (SessionStatus, error)
}

// Source is a playable alarm sound. Play blocks only until playback has
// started; Stop tears playback down and is idempotent. Cleanup is the
// final release when the source leaves its manager slot: it implies
// Stop, leaves no timers running and hands the player session back.
type Source interface {
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Name() string
}

// IsExpectedStopError reports whether err is a teardown condition that
// means the source was already not playing.
func IsExpectedStopError(err error) bool {
	return errors.Is(err, ErrAlreadyStopped) || errors.Is(err, ErrNotLoaded)
}
