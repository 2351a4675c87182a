/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package alarm holds the trigger engine: the due-time evaluator and
// the manager that owns active and preview playback.
package alarm

import (
	"time"

	"github.com/friendsincode/heimdall_alarm/internal/models"
)

// IsDue reports whether an alarm should ring at now. Evaluation is
// minute-granular; seconds never matter.
//
// A pending snooze overrides the configured time: the alarm is due once
// now reaches the snooze minute, whatever weekday it is. Otherwise the
// configured hour and minute must match exactly; one-shot alarms match
// any day, repeating alarms only their configured weekdays.
func IsDue(alarm models.Alarm, now time.Time) bool {
	if !alarm.Enabled {
		return false
	}

	if alarm.SnoozeUntil != nil {
		return !now.Truncate(time.Minute).Before(alarm.SnoozeUntil.Truncate(time.Minute))
	}

	if alarm.Hour != now.Hour() || alarm.Minute != now.Minute() {
		return false
	}
	if alarm.IsOneShot() {
		return true
	}
	return alarm.RepeatsOn(now.Weekday())
}

// FirstDue returns the first due alarm in list order, or nil. When two
// alarms share a due minute only the first wins; the loser rings the
// next time it comes around.
func FirstDue(alarms []models.Alarm, now time.Time) *models.Alarm {
	for i := range alarms {
		if IsDue(alarms[i], now) {
			return &alarms[i]
		}
	}
	return nil
}
