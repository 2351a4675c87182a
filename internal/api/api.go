/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api serves the REST and websocket surface of the alarm
// engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_alarm/internal/alarm"
	"github.com/friendsincode/heimdall_alarm/internal/auth"
	"github.com/friendsincode/heimdall_alarm/internal/events"
	"github.com/friendsincode/heimdall_alarm/internal/logbuffer"
	"github.com/friendsincode/heimdall_alarm/internal/models"
	"github.com/friendsincode/heimdall_alarm/internal/music"
	"github.com/friendsincode/heimdall_alarm/internal/notify"
	"github.com/friendsincode/heimdall_alarm/internal/store"
)

// API bundles the handler dependencies.
type API struct {
	alarms        *store.AlarmStore
	kv            *store.KV
	manager       *alarm.Manager
	notifier      *notify.Scheduler
	musicClient   music.Client
	authService   *auth.Service
	bus           *events.Bus
	logBuffer     *logbuffer.Buffer
	defaultSnooze int
	logger        zerolog.Logger
}

type Config struct {
	Alarms               *store.AlarmStore
	KV                   *store.KV
	Manager              *alarm.Manager
	Notifier             *notify.Scheduler
	MusicClient          music.Client
	AuthService          *auth.Service
	Bus                  *events.Bus
	LogBuffer            *logbuffer.Buffer
	DefaultSnoozeMinutes int
}

func New(cfg Config, logger zerolog.Logger) *API {
	return &API{
		alarms:        cfg.Alarms,
		kv:            cfg.KV,
		manager:       cfg.Manager,
		notifier:      cfg.Notifier,
		musicClient:   cfg.MusicClient,
		authService:   cfg.AuthService,
		bus:           cfg.Bus,
		logBuffer:     cfg.LogBuffer,
		defaultSnooze: cfg.DefaultSnoozeMinutes,
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all API endpoints on r. Everything under /api/v1 except
// login requires a token when auth is enabled.
func (a *API) Routes(r chi.Router) {
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.authService.Middleware)

		r.Route("/api/v1/alarms", func(r chi.Router) {
			r.Get("/", a.handleListAlarms)
			r.Post("/", a.handleCreateAlarm)
			r.Get("/{id}", a.handleGetAlarm)
			r.Put("/{id}", a.handleUpdateAlarm)
			r.Delete("/{id}", a.handleDeleteAlarm)
			r.Post("/{id}/toggle", a.handleToggleAlarm)
			r.Post("/{id}/trigger", a.handleTriggerAlarm)
		})

		r.Route("/api/v1/playback", func(r chi.Router) {
			r.Get("/status", a.handlePlaybackStatus)
			r.Post("/stop", a.handleStop)
			r.Post("/snooze", a.handleSnooze)
		})

		r.Route("/api/v1/preview", func(r chi.Router) {
			r.Post("/start", a.handlePreviewStart)
			r.Post("/stop", a.handlePreviewStop)
		})

		r.Get("/api/v1/favorites", a.handleListFavorites)
		r.Put("/api/v1/favorites", a.handlePutFavorites)

		r.Get("/api/v1/catalog/{list}", a.handleGetCatalog)
		r.Put("/api/v1/catalog/{list}", a.handlePutCatalog)
		r.Delete("/api/v1/catalog/{list}", a.handleDeleteCatalog)

		r.Get("/api/v1/music/playlists", a.handleListPlaylists)
		r.Get("/api/v1/music/devices", a.handleListDevices)

		r.Get("/api/v1/notifications", a.handleListNotifications)
		r.Post("/api/v1/notifications/respond", a.handleNotificationResponse)
		r.Get("/api/v1/logs", a.handleLogs)
		r.Get("/api/v1/events", a.handleEvents)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			a.logger.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := a.authService.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// alarmRequest is the mutable subset of an alarm accepted on create and
// update.
type alarmRequest struct {
	Time                  string             `json:"time"`
	RepeatDays            []int              `json:"repeat_days"`
	Enabled               *bool              `json:"enabled"`
	Sound                 models.SoundSource `json:"sound"`
	SnoozeEnabled         *bool              `json:"snooze_enabled"`
	SnoozeIntervalMinutes int                `json:"snooze_interval_minutes"`
	Label                 string             `json:"label"`
}

func (req alarmRequest) apply(alarm *models.Alarm) error {
	hour, minute, err := models.ParseTime(req.Time)
	if err != nil {
		return err
	}
	for _, d := range req.RepeatDays {
		if d < 0 || d > 6 {
			return errors.New("repeat days must be 0 (Sunday) through 6 (Saturday)")
		}
	}

	alarm.Hour = hour
	alarm.Minute = minute
	alarm.RepeatDays = req.RepeatDays
	alarm.Sound = req.Sound
	alarm.SnoozeIntervalMinutes = req.SnoozeIntervalMinutes
	alarm.Label = req.Label
	if req.Enabled != nil {
		alarm.Enabled = *req.Enabled
	}
	if req.SnoozeEnabled != nil {
		alarm.SnoozeEnabled = *req.SnoozeEnabled
	}
	return nil
}

func (a *API) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	alarms, err := a.alarms.List(r.Context())
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, alarms)
}

func (a *API) handleCreateAlarm(w http.ResponseWriter, r *http.Request) {
	var req alarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newAlarm := models.Alarm{Enabled: true, SnoozeEnabled: true}
	if err := req.apply(&newAlarm); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.alarms.Create(r.Context(), &newAlarm); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.bus.Publish(events.EventAlarmUpdated, events.Payload{"alarm_id": newAlarm.ID})
	a.writeJSON(w, http.StatusCreated, newAlarm)
}

func (a *API) handleGetAlarm(w http.ResponseWriter, r *http.Request) {
	found, err := a.alarms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			a.writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, found)
}

func (a *API) handleUpdateAlarm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req alarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := a.alarms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			a.writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := req.apply(existing); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Editing an alarm discards any pending snooze.
	existing.SnoozeUntil = nil

	if err := a.alarms.Update(r.Context(), existing); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.bus.Publish(events.EventAlarmUpdated, events.Payload{"alarm_id": id})
	a.writeJSON(w, http.StatusOK, existing)
}

func (a *API) handleDeleteAlarm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.alarms.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			a.writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.notifier.CancelAlarm(id)
	a.bus.Publish(events.EventAlarmUpdated, events.Payload{"alarm_id": id})
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleToggleAlarm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := a.alarms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			a.writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	enabled := !existing.Enabled
	if err := a.alarms.SetEnabled(r.Context(), id, enabled); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !enabled {
		// Disabling clears any pending snooze with it.
		if err := a.alarms.SetSnoozeUntil(r.Context(), id, nil); err != nil {
			a.logger.Warn().Err(err).Str("alarm_id", id).Msg("Failed to clear snooze on disable")
		}
		a.notifier.CancelAlarm(id)
	}

	a.bus.Publish(events.EventAlarmUpdated, events.Payload{"alarm_id": id})
	a.writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}

func (a *API) handleTriggerAlarm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := a.alarms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			a.writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := a.manager.Trigger(r.Context(), *found, "manual", time.Now()); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Stop(r.Context()); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handleSnooze(w http.ResponseWriter, r *http.Request) {
	until, err := a.manager.Snooze(r.Context(), a.defaultSnooze)
	if err != nil {
		a.writeError(w, http.StatusConflict, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"snoozed_until": until})
}

func (a *API) handlePreviewStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sound models.SoundSource `json:"sound"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.manager.StartPreview(r.Context(), req.Sound); err != nil {
		a.writeError(w, http.StatusConflict, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handlePreviewStop(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.StopPreview(r.Context()); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	var favorites []models.FavoriteStation
	if err := a.kv.Get(r.Context(), store.KeyFavoriteStations, &favorites); err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if favorites == nil {
		favorites = []models.FavoriteStation{}
	}
	a.writeJSON(w, http.StatusOK, favorites)
}

func (a *API) handlePutFavorites(w http.ResponseWriter, r *http.Request) {
	var favorites []models.FavoriteStation
	if err := json.NewDecoder(r.Body).Decode(&favorites); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.kv.Set(r.Context(), store.KeyFavoriteStations, favorites); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, favorites)
}

// catalogKey maps a catalog list name from the URL to its KV key. The
// catalog is the station-directory metadata the UI caches between
// sessions: country names and stream tags.
func catalogKey(list string) (string, bool) {
	switch list {
	case "countries":
		return store.KeyCountryList, true
	case "tags":
		return store.KeyTagList, true
	default:
		return "", false
	}
}

func (a *API) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	key, ok := catalogKey(chi.URLParam(r, "list"))
	if !ok {
		a.writeError(w, http.StatusNotFound, "unknown catalog list")
		return
	}

	var items []string
	if err := a.kv.Get(r.Context(), key, &items); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []string{}
	}

	cachedAt, err := a.kv.UpdatedAt(r.Context(), key)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{"items": items}
	if !cachedAt.IsZero() {
		resp["cached_at"] = cachedAt
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	key, ok := catalogKey(chi.URLParam(r, "list"))
	if !ok {
		a.writeError(w, http.StatusNotFound, "unknown catalog list")
		return
	}

	var items []string
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.kv.Set(r.Context(), key, items); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleDeleteCatalog(w http.ResponseWriter, r *http.Request) {
	key, ok := catalogKey(chi.URLParam(r, "list"))
	if !ok {
		a.writeError(w, http.StatusNotFound, "unknown catalog list")
		return
	}
	if err := a.kv.Delete(r.Context(), key); err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.musicClient.ListPlaylists(r.Context())
	if err != nil {
		if errors.Is(err, music.ErrUnauthorized) {
			a.writeError(w, http.StatusBadGateway, "music account not linked")
			return
		}
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.musicClient.ListDevices(r.Context())
	if err != nil {
		if errors.Is(err, music.ErrUnauthorized) {
			a.writeError(w, http.StatusBadGateway, "music account not linked")
			return
		}
		a.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, devices)
}

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.notifier.Scheduled())
}

// handleNotificationResponse maps the action buttons on a delivered
// notification onto the playback operations.
func (a *API) handleNotificationResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "stop":
		if err := a.manager.Stop(r.Context()); err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "snooze":
		if _, err := a.manager.Snooze(r.Context(), a.defaultSnooze); err != nil {
			a.writeError(w, http.StatusConflict, err.Error())
			return
		}
	default:
		a.writeError(w, http.StatusBadRequest, "action must be stop or snooze")
		return
	}

	a.bus.Publish(events.EventNotificationResponded, events.Payload{"action": req.Action})
	a.writeJSON(w, http.StatusOK, a.manager.Status())
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	params := logbuffer.QueryParams{
		Level:     r.URL.Query().Get("level"),
		Component: r.URL.Query().Get("component"),
		Search:    r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		if since, err := time.Parse(time.RFC3339, raw); err == nil {
			params.Since = since
		}
	}
	a.writeJSON(w, http.StatusOK, a.logBuffer.Query(params))
}
