/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/heimdall_alarm/internal/store"
)

// StoredToken is the token record persisted in the KV store by the
// account-linking flow.
type StoredToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// KVTokenSource reads the bearer token from the KV store with a short
// in-memory cache so playback control does not hit the database on
// every call.
type KVTokenSource struct {
	kv *store.KV

	mu     sync.Mutex
	cached StoredToken
}

func NewKVTokenSource(kv *store.KV) *KVTokenSource {
	return &KVTokenSource{kv: kv}
}

func (t *KVTokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached.AccessToken != "" && time.Now().Before(t.cached.ExpiresAt) {
		return t.cached.AccessToken, nil
	}

	var tok StoredToken
	if err := t.kv.Get(ctx, store.KeyMusicToken, &tok); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("read music token: %w", err)
	}
	if tok.AccessToken == "" || !time.Now().Before(tok.ExpiresAt) {
		return "", ErrUnauthorized
	}

	t.cached = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call re-reads the store.
func (t *KVTokenSource) Invalidate() {
	t.mu.Lock()
	t.cached = StoredToken{}
	t.mu.Unlock()
}
