/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	hour, minute, err := ParseTime("07:05")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hour != 7 || minute != 5 {
		t.Fatalf("got %d:%d, want 7:5", hour, minute)
	}

	// Unpadded fields are fine; anything beyond two digit groups is not.
	hour, minute, err = ParseTime("7:5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hour != 7 || minute != 5 {
		t.Fatalf("got %d:%d, want 7:5", hour, minute)
	}

	bad := []string{
		"", "25:00", "12:60", "-1:30", "noon",
		"07:05x", "07:05:30", "+7:05", " 7:05", "07: 5", "7:005",
	}
	for _, in := range bad {
		if _, _, err := ParseTime(in); err == nil {
			t.Errorf("ParseTime(%q) should fail", in)
		}
	}
}

func TestNewAlarmIDShape(t *testing.T) {
	id := NewAlarmID()
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 8 {
		t.Fatalf("unexpected id shape %q", id)
	}
	if id == NewAlarmID() {
		t.Fatal("ids must be unique")
	}
}

func TestSoundSourceName(t *testing.T) {
	s := SoundSource{Kind: SoundKindRadio, StreamName: "Test FM"}
	if s.Name() != "Test FM" {
		t.Fatalf("got %q", s.Name())
	}
	s = SoundSource{Kind: SoundKindPlaylist, PlaylistName: "Morning"}
	if s.Name() != "Morning" {
		t.Fatalf("got %q", s.Name())
	}
	if (SoundSource{}).Name() != "" {
		t.Fatal("empty source has no name")
	}
}

func TestRepeatsOn(t *testing.T) {
	a := Alarm{RepeatDays: []int{0, 6}}
	if !a.RepeatsOn(time.Sunday) || !a.RepeatsOn(time.Saturday) {
		t.Fatal("weekend alarm should repeat on Saturday and Sunday")
	}
	if a.RepeatsOn(time.Wednesday) {
		t.Fatal("weekend alarm must not repeat on Wednesday")
	}
	if a.IsOneShot() {
		t.Fatal("alarm with repeat days is not one-shot")
	}
	if !(Alarm{}).IsOneShot() {
		t.Fatal("alarm without repeat days is one-shot")
	}
}
