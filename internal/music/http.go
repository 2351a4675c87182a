/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient implements Client against the music service web API.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	logger  zerolog.Logger
}

func NewHTTPClient(baseURL string, tokens TokenSource, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With().Str("component", "music_client").Logger(),
	}
}

func (c *HTTPClient) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var payload struct {
		Items []struct {
			URI    string `json:"uri"`
			Name   string `json:"name"`
			Tracks struct {
				Total int `json:"total"`
			} `json:"tracks"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/me/playlists?limit=50", nil, &payload); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(payload.Items))
	for _, item := range payload.Items {
		p := Playlist{URI: item.URI, Name: item.Name, Tracks: item.Tracks.Total}
		if len(item.Images) > 0 {
			p.Image = item.Images[0].URL
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

func (c *HTTPClient) ListDevices(ctx context.Context) ([]Device, error) {
	var payload struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/me/player/devices", nil, &payload); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return payload.Devices, nil
}

func (c *HTTPClient) Play(ctx context.Context, contextURI string) error {
	body := map[string]string{"context_uri": contextURI}
	if err := c.do(ctx, http.MethodPut, "/v1/me/player/play", body, nil); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	return nil
}

func (c *HTTPClient) Pause(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPut, "/v1/me/player/pause", nil, nil); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		// The player endpoints 404 when no device is active.
		return ErrPlayerNotReady
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
