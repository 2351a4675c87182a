/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dedup prevents the same alarm from firing twice within one minute
// when the scheduled-notification path and the background checker race. The
// registry, not a mutex, is the concurrency-control primitive: the two
// trigger paths run in different execution contexts and both funnel through
// MarkIfFirst.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "heimdall:fired:"

// Registry records (alarmID, hour, minute) trigger attempts with expiring
// entries. Backed by Redis when available so several processes of one
// account de-duplicate against each other; falls back to an in-memory TTL
// map otherwise.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.Mutex
	local    map[string]time.Time
	disabled bool // Redis circuit breaker state
}

// New creates a registry. redisAddr may be empty for in-memory-only operation.
func New(redisAddr, redisPassword string, redisDB int, ttl time.Duration, logger zerolog.Logger) *Registry {
	if ttl <= 0 {
		ttl = time.Minute
	}

	r := &Registry{
		ttl:    ttl,
		logger: logger.With().Str("component", "dedup").Logger(),
		local:  make(map[string]time.Time),
	}

	if redisAddr == "" {
		return r
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("redis unavailable, de-duplication is in-memory only")
		r.disabled = true
		return r
	}

	r.client = client
	r.logger.Info().Str("addr", redisAddr).Msg("redis de-duplication registry initialized")
	return r
}

// Key renders the registry key for an alarm at a wall-clock minute.
func Key(alarmID string, at time.Time) string {
	return fmt.Sprintf("%s%s:%02d:%02d", keyPrefix, alarmID, at.Hour(), at.Minute())
}

// MarkIfFirst records the (alarm, minute) pair and reports whether this call
// was the first within the TTL window. Exactly one of two racing callers
// receives true.
func (r *Registry) MarkIfFirst(ctx context.Context, alarmID string, at time.Time) bool {
	key := Key(alarmID, at)

	if r.available() {
		ok, err := r.client.SetNX(ctx, key, "1", r.ttl).Result()
		if err == nil {
			return ok
		}
		r.handleError(err)
	}

	return r.markLocal(key)
}

// Seen reports whether the (alarm, minute) pair has already been marked,
// without marking it.
func (r *Registry) Seen(ctx context.Context, alarmID string, at time.Time) bool {
	key := Key(alarmID, at)

	if r.available() {
		n, err := r.client.Exists(ctx, key).Result()
		if err == nil {
			return n > 0
		}
		r.handleError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.local[key]
	return ok && time.Now().Before(expiry)
}

// Reset clears all local state. Intended for tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = make(map[string]time.Time)
}

// Close releases the Redis connection.
func (r *Registry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Registry) available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil && !r.disabled
}

func (r *Registry) handleError(err error) {
	r.logger.Warn().Err(err).Msg("redis de-duplication failed, switching to in-memory registry")
	r.mu.Lock()
	r.disabled = true
	r.mu.Unlock()
}

func (r *Registry) markLocal(key string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Prune expired entries while we hold the lock; the map stays tiny.
	for k, expiry := range r.local {
		if expiry.Before(now) {
			delete(r.local, k)
		}
	}

	if expiry, ok := r.local[key]; ok && now.Before(expiry) {
		return false
	}
	r.local[key] = now.Add(r.ttl)
	return true
}
