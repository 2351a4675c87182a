/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"fmt"
	"testing"
	"time"
)

func TestRingOverwritesOldest(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Add(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "m2" || all[2].Message != "m4" {
		t.Fatalf("unexpected order: %s .. %s", all[0].Message, all[2].Message)
	}
}

func TestWriteParsesLogLine(t *testing.T) {
	b := New(10)

	line := `{"level":"warn","component":"checker","alarm_id":"a1","time":"2026-03-03T07:00:00Z","message":"Trigger failed"}`
	n, err := b.Write([]byte(line))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(line) {
		t.Fatalf("short write: %d != %d", n, len(line))
	}

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	entry := all[0]
	if entry.Level != "warn" || entry.Component != "checker" || entry.Message != "Trigger failed" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Fields["alarm_id"] != "a1" {
		t.Fatalf("extra fields lost: %+v", entry.Fields)
	}
}

func TestWriteIgnoresGarbage(t *testing.T) {
	b := New(10)
	if _, err := b.Write([]byte("not json")); err != nil {
		t.Fatalf("garbage write should be dropped silently: %v", err)
	}
	if len(b.GetAll()) != 0 {
		t.Fatal("garbage must not produce entries")
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	now := time.Now()
	b.Add(LogEntry{Timestamp: now, Level: "info", Component: "api", Message: "request served"})
	b.Add(LogEntry{Timestamp: now, Level: "error", Component: "checker", Message: "trigger failed"})
	b.Add(LogEntry{Timestamp: now, Level: "info", Component: "checker", Message: "tick"})

	got := b.Query(QueryParams{Component: "checker"})
	if len(got) != 2 {
		t.Fatalf("component filter: expected 2, got %d", len(got))
	}
	// Newest first.
	if got[0].Message != "tick" {
		t.Fatalf("expected newest first, got %q", got[0].Message)
	}

	got = b.Query(QueryParams{Level: "error"})
	if len(got) != 1 || got[0].Message != "trigger failed" {
		t.Fatalf("level filter failed: %+v", got)
	}

	got = b.Query(QueryParams{Search: "TRIGGER"})
	if len(got) != 1 {
		t.Fatalf("search should be case-insensitive, got %d", len(got))
	}

	got = b.Query(QueryParams{Limit: 1})
	if len(got) != 1 {
		t.Fatalf("limit ignored, got %d", len(got))
	}
}
