/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package music talks to the connected music-service account: playlist
// listing, device discovery and remote playback control.
package music

import (
	"context"
	"errors"
)

var (
	// ErrPlayerNotReady means the account has no active player device.
	// This is transient after device wake and callers retry it.
	ErrPlayerNotReady = errors.New("music: no active player device")

	// ErrUnauthorized means the stored token is missing or expired.
	ErrUnauthorized = errors.New("music: unauthorized")
)

// Playlist is a playable collection on the music service.
type Playlist struct {
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Tracks int    `json:"tracks"`
	Image  string `json:"image,omitempty"`
}

// Device is a player endpoint registered with the account.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"is_active"`
}

// Client is the music-service surface the alarm engine needs.
type Client interface {
	ListPlaylists(ctx context.Context) ([]Playlist, error)
	ListDevices(ctx context.Context) ([]Device, error)
	Play(ctx context.Context, contextURI string) error
	Pause(ctx context.Context) error
}

// TokenSource yields the bearer token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
