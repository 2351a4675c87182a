/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"testing"
	"time"

	"github.com/friendsincode/heimdall_alarm/internal/models"
)

// Tuesday 2026-03-03 07:00:30 local.
var tuesday0700 = time.Date(2026, 3, 3, 7, 0, 30, 0, time.Local)

func baseAlarm() models.Alarm {
	return models.Alarm{
		ID:      "a1",
		Hour:    7,
		Minute:  0,
		Enabled: true,
	}
}

func TestIsDueDisabledNeverFires(t *testing.T) {
	a := baseAlarm()
	a.Enabled = false
	if IsDue(a, tuesday0700) {
		t.Fatal("disabled alarm must not be due")
	}
}

func TestIsDueOneShotMatchesExactMinute(t *testing.T) {
	a := baseAlarm()

	if !IsDue(a, tuesday0700) {
		t.Fatal("one-shot alarm should be due at its configured minute")
	}
	if IsDue(a, tuesday0700.Add(time.Minute)) {
		t.Fatal("alarm must not be due one minute late")
	}
	if IsDue(a, tuesday0700.Add(-time.Minute)) {
		t.Fatal("alarm must not be due one minute early")
	}
}

func TestIsDueSecondsNeverMatter(t *testing.T) {
	a := baseAlarm()
	for _, sec := range []int{0, 1, 29, 59} {
		now := time.Date(2026, 3, 3, 7, 0, sec, 0, time.Local)
		if !IsDue(a, now) {
			t.Fatalf("alarm should be due at second %d", sec)
		}
	}
}

func TestIsDueRepeatDays(t *testing.T) {
	a := baseAlarm()
	a.RepeatDays = []int{1, 2, 3, 4, 5} // weekdays, Sunday=0

	if !IsDue(a, tuesday0700) {
		t.Fatal("weekday alarm should fire on Tuesday")
	}

	sunday := time.Date(2026, 3, 1, 7, 0, 0, 0, time.Local)
	if IsDue(a, sunday) {
		t.Fatal("weekday alarm must not fire on Sunday")
	}

	a.RepeatDays = []int{0}
	if !IsDue(a, sunday) {
		t.Fatal("Sunday alarm should fire on Sunday")
	}
}

func TestIsDueSnoozeOverridesSchedule(t *testing.T) {
	a := baseAlarm()
	until := tuesday0700.Add(5 * time.Minute).Truncate(time.Minute)
	a.SnoozeUntil = &until

	// The configured minute no longer matters while snoozed.
	if IsDue(a, tuesday0700) {
		t.Fatal("snoozed alarm must not fire at its configured time")
	}
	if IsDue(a, until.Add(-time.Minute)) {
		t.Fatal("snoozed alarm must not fire before the snooze minute")
	}
	if !IsDue(a, until) {
		t.Fatal("snoozed alarm should fire at the snooze minute")
	}
	if !IsDue(a, until.Add(30*time.Second)) {
		t.Fatal("snooze comparison should be minute granular")
	}
}

func TestIsDueSnoozedRepeatAlarmIgnoresWeekday(t *testing.T) {
	// A snooze crossing midnight still fires, even on a day the alarm
	// does not normally repeat on.
	a := baseAlarm()
	a.RepeatDays = []int{2} // Tuesday only
	until := time.Date(2026, 3, 4, 0, 3, 0, 0, time.Local)
	a.SnoozeUntil = &until

	if !IsDue(a, until) {
		t.Fatal("snoozed alarm should fire on the snooze minute regardless of weekday")
	}
}

func TestFirstDuePicksFirstMatchOnly(t *testing.T) {
	a := baseAlarm()
	b := baseAlarm()
	b.ID = "a2"

	due := FirstDue([]models.Alarm{a, b}, tuesday0700)
	if due == nil || due.ID != "a1" {
		t.Fatalf("expected first alarm to win the minute, got %+v", due)
	}
}

func TestFirstDueNoneDue(t *testing.T) {
	a := baseAlarm()
	if due := FirstDue([]models.Alarm{a}, tuesday0700.Add(time.Hour)); due != nil {
		t.Fatalf("expected no due alarm, got %+v", due)
	}
}
