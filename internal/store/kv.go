/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/heimdall_alarm/internal/models"
)

// Well-known KV keys.
const (
	KeyFavoriteStations = "favorite_stations"
	KeyCountryList      = "catalog:countries"
	KeyTagList          = "catalog:tags"
	KeyMusicToken       = "music:token"
)

// ErrKeyNotFound indicates the KV key has never been written.
var ErrKeyNotFound = errors.New("key not found")

// KV is a string-keyed JSON store. Readers treat a missing key as empty.
type KV struct {
	db *gorm.DB
}

// NewKV creates a KV store over the shared database.
func NewKV(database *gorm.DB) *KV {
	return &KV{db: database}
}

// Get unmarshals the value stored under key into dest. Returns ErrKeyNotFound
// when the key has never been set.
func (k *KV) Get(ctx context.Context, key string, dest any) error {
	var entry models.KVEntry
	if err := k.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("kv get %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return fmt.Errorf("kv decode %s: %w", key, err)
	}
	return nil
}

// Set marshals value as JSON and upserts it under key.
func (k *KV) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv encode %s: %w", key, err)
	}

	entry := models.KVEntry{Key: key, Value: data, UpdatedAt: time.Now()}
	err = k.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.db.WithContext(ctx).Delete(&models.KVEntry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when a key was last written, or zero for a missing key.
func (k *KV) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var entry models.KVEntry
	if err := k.db.WithContext(ctx).Select("updated_at").First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("kv stat %s: %w", key, err)
	}
	return entry.UpdatedAt, nil
}
