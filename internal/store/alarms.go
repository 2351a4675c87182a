/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists alarm records and string-keyed JSON values. It holds
// no scheduling logic; triggering is the alarm manager's concern.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_alarm/internal/models"
)

var (
	// ErrAlarmNotFound indicates the alarm was not found.
	ErrAlarmNotFound = errors.New("alarm not found")
)

// AlarmStore provides CRUD access to persisted alarms.
type AlarmStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewAlarmStore creates an alarm store.
func NewAlarmStore(database *gorm.DB, logger zerolog.Logger) *AlarmStore {
	return &AlarmStore{
		db:     database,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Create persists a new alarm, generating an id when none is set.
func (s *AlarmStore) Create(ctx context.Context, alarm *models.Alarm) error {
	if alarm.ID == "" {
		alarm.ID = models.NewAlarmID()
	}
	if alarm.SnoozeIntervalMinutes <= 0 {
		alarm.SnoozeIntervalMinutes = 5
	}

	if err := s.db.WithContext(ctx).Create(alarm).Error; err != nil {
		return fmt.Errorf("create alarm: %w", err)
	}

	s.logger.Info().
		Str("alarm_id", alarm.ID).
		Str("time", alarm.TimeString()).
		Bool("enabled", alarm.Enabled).
		Msg("alarm created")

	return nil
}

// Update replaces the stored record for the alarm's id.
func (s *AlarmStore) Update(ctx context.Context, alarm *models.Alarm) error {
	result := s.db.WithContext(ctx).Model(&models.Alarm{}).
		Where("id = ?", alarm.ID).
		Select("*").Omit("id", "created_at").
		Updates(alarm)
	if result.Error != nil {
		return fmt.Errorf("update alarm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}

	s.logger.Info().Str("alarm_id", alarm.ID).Msg("alarm updated")
	return nil
}

// Delete removes an alarm by id.
func (s *AlarmStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Alarm{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete alarm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}

	s.logger.Info().Str("alarm_id", id).Msg("alarm deleted")
	return nil
}

// Get retrieves an alarm by id.
func (s *AlarmStore) Get(ctx context.Context, id string) (*models.Alarm, error) {
	var alarm models.Alarm
	if err := s.db.WithContext(ctx).First(&alarm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlarmNotFound
		}
		return nil, fmt.Errorf("query alarm: %w", err)
	}
	return &alarm, nil
}

// List returns all alarms ordered by time of day.
func (s *AlarmStore) List(ctx context.Context) ([]models.Alarm, error) {
	var alarms []models.Alarm
	if err := s.db.WithContext(ctx).Order("hour ASC, minute ASC").Find(&alarms).Error; err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	return alarms, nil
}

// ListEnabled returns alarms eligible for trigger evaluation.
func (s *AlarmStore) ListEnabled(ctx context.Context) ([]models.Alarm, error) {
	var alarms []models.Alarm
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&alarms).Error; err != nil {
		return nil, fmt.Errorf("query enabled alarms: %w", err)
	}
	return alarms, nil
}

// SetEnabled flips the enabled flag without touching the rest of the record.
func (s *AlarmStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result := s.db.WithContext(ctx).Model(&models.Alarm{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("toggle alarm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

// SetSnoozeUntil writes (or clears, with nil) the snooze deadline.
func (s *AlarmStore) SetSnoozeUntil(ctx context.Context, id string, until *time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Alarm{}).
		Where("id = ?", id).
		Update("snooze_until", until)
	if result.Error != nil {
		return fmt.Errorf("set snooze: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}
	return nil
}
