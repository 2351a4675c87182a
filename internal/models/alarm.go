/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SoundKind discriminates the alarm sound source union.
type SoundKind string

const (
	SoundKindRadio    SoundKind = "radio"
	SoundKindPlaylist SoundKind = "playlist"
)

// SoundSource is the tagged union persisted with each alarm. Exactly one
// variant is populated for an enabled alarm: a radio stream (URL + display
// name) or a music-service playlist (URI + display name).
type SoundSource struct {
	Kind         SoundKind `json:"kind"`
	StreamURL    string    `json:"stream_url,omitempty"`
	StreamName   string    `json:"stream_name,omitempty"`
	PlaylistURI  string    `json:"playlist_uri,omitempty"`
	PlaylistName string    `json:"playlist_name,omitempty"`
}

// Name returns the human-readable label of whichever variant is set.
func (s SoundSource) Name() string {
	switch s.Kind {
	case SoundKindPlaylist:
		return s.PlaylistName
	case SoundKindRadio:
		return s.StreamName
	default:
		return ""
	}
}

// Empty reports whether no variant is populated.
func (s SoundSource) Empty() bool {
	return s.PlaylistURI == "" && s.StreamURL == ""
}

// Alarm is a persisted wake schedule. Weekdays use the canonical 0-6
// numbering with Sunday=0, matching time.Weekday.
type Alarm struct {
	ID                    string      `gorm:"primaryKey" json:"id"`
	Hour                  int         `json:"hour"`
	Minute                int         `json:"minute"`
	RepeatDays            []int       `gorm:"serializer:json" json:"repeat_days"`
	Enabled               bool        `gorm:"index" json:"enabled"`
	Sound                 SoundSource `gorm:"serializer:json" json:"sound"`
	SnoozeEnabled         bool        `json:"snooze_enabled"`
	SnoozeIntervalMinutes int         `json:"snooze_interval_minutes"`
	SnoozeUntil           *time.Time  `json:"snooze_until,omitempty"`
	Label                 string      `json:"label"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// NewAlarmID generates a client-side unique id: millisecond timestamp prefix
// plus a random suffix. The prefix keeps ids roughly sortable by creation.
func NewAlarmID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// TimeString renders the alarm time as "HH:MM" in local device time.
func (a Alarm) TimeString() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// IsOneShot reports whether the alarm has no repeat days.
func (a Alarm) IsOneShot() bool {
	return len(a.RepeatDays) == 0
}

// RepeatsOn reports whether the alarm repeats on the given weekday.
func (a Alarm) RepeatsOn(day time.Weekday) bool {
	for _, d := range a.RepeatDays {
		if d == int(day) {
			return true
		}
	}
	return false
}

// ParseTime splits an "HH:MM" string into hour and minute. Both parts
// must be plain digits; signs, seconds and trailing text are rejected.
func ParseTime(value string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || !isClockField(hh) || !isClockField(mm) {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", value)
	}
	hour, _ = strconv.Atoi(hh)
	minute, _ = strconv.Atoi(mm)
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", value)
	}
	return hour, minute, nil
}

func isClockField(s string) bool {
	if len(s) < 1 || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// KVEntry is a string-keyed JSON value used for favorites, cached catalog
// lists, and cached music-service tokens. A missing key reads as empty.
type KVEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// FavoriteStation is a saved radio stream, stored under the favorites KV key.
type FavoriteStation struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Tags    string `json:"tags,omitempty"`
}
