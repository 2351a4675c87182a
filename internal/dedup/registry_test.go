/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLocalRegistry(ttl time.Duration) *Registry {
	return New("", "", 0, ttl, zerolog.Nop())
}

func TestMarkIfFirstOnlyOnce(t *testing.T) {
	r := newLocalRegistry(time.Minute)
	at := time.Date(2026, 3, 3, 7, 0, 12, 0, time.Local)

	if !r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("first mark should win")
	}
	if r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("second mark for the same minute must lose")
	}
}

func TestMarkDistinguishesAlarmsAndMinutes(t *testing.T) {
	r := newLocalRegistry(time.Minute)
	at := time.Date(2026, 3, 3, 7, 0, 0, 0, time.Local)

	if !r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("first mark should win")
	}
	if !r.MarkIfFirst(context.Background(), "a2", at) {
		t.Fatal("a different alarm in the same minute is a different key")
	}
	if !r.MarkIfFirst(context.Background(), "a1", at.Add(time.Minute)) {
		t.Fatal("the same alarm in the next minute is a different key")
	}
}

func TestMarkSecondsDoNotMatter(t *testing.T) {
	r := newLocalRegistry(time.Minute)
	at := time.Date(2026, 3, 3, 7, 0, 2, 0, time.Local)

	if !r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("first mark should win")
	}
	if r.MarkIfFirst(context.Background(), "a1", at.Add(40*time.Second)) {
		t.Fatal("marks within the same minute must collide regardless of seconds")
	}
}

func TestMarkExpiresAfterTTL(t *testing.T) {
	r := newLocalRegistry(20 * time.Millisecond)
	at := time.Date(2026, 3, 3, 7, 0, 0, 0, time.Local)

	if !r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("first mark should win")
	}
	time.Sleep(30 * time.Millisecond)
	if !r.MarkIfFirst(context.Background(), "a1", at) {
		t.Fatal("mark should be gone after the TTL")
	}
}

func TestSeen(t *testing.T) {
	r := newLocalRegistry(time.Minute)
	at := time.Date(2026, 3, 3, 7, 0, 0, 0, time.Local)

	if r.Seen(context.Background(), "a1", at) {
		t.Fatal("unmarked pair must not be seen")
	}
	r.MarkIfFirst(context.Background(), "a1", at)
	if !r.Seen(context.Background(), "a1", at) {
		t.Fatal("marked pair should be seen")
	}
}

func TestMarkIfFirstConcurrent(t *testing.T) {
	r := newLocalRegistry(time.Minute)
	at := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.MarkIfFirst(context.Background(), "a1", at) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("exactly one racer should win, got %d", winners)
	}
}
