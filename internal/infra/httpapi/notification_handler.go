package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"license_notifier/internal/app"
	"license_notifier/internal/domain/notification"
	"license_notifier/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
)

const maxHistoryLimit = 1000

// HistoryReader lists ledger rows.
type HistoryReader interface {
	History(ctx context.Context, filter notification.HistoryFilter) ([]*notification.Record, error)
}

// ScheduleReporter exposes the daily scheduler state.
type ScheduleReporter interface {
	Status() scheduler.Status
}

type NotificationHandler struct {
	notifService app.NotificationService
	settings     app.SettingsService
	history      HistoryReader
	schedule     ScheduleReporter
	logger       *logrus.Entry
}

func NewNotificationHandler(ns app.NotificationService, ss app.SettingsService, hr HistoryReader, sr ScheduleReporter, logger *logrus.Entry) *NotificationHandler {
	return &NotificationHandler{
		notifService: ns,
		settings:     ss,
		history:      hr,
		schedule:     sr,
		logger:       logger,
	}
}

type settingsDTO struct {
	Enabled          bool      `json:"enabled"`
	NotificationDays []int     `json:"notificationDays"`
	NotificationTime string    `json:"notificationTime"`
	Timezone         string    `json:"timezone"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

func toSettingsDTO(s *notification.Settings) *settingsDTO {
	return &settingsDTO{
		Enabled:          s.Enabled,
		NotificationDays: s.Thresholds.Days(),
		NotificationTime: s.NotificationTime,
		Timezone:         s.Timezone,
		UpdatedAt:        s.UpdatedAt,
	}
}

type settingsResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message,omitempty"`
	Settings *settingsDTO `json:"settings,omitempty"`
}

// updateSettingsRequest is a full replacement; every field is required.
type updateSettingsRequest struct {
	Enabled          *bool   `json:"enabled"`
	NotificationDays *[]int  `json:"notificationDays"`
	NotificationTime *string `json:"notificationTime"`
	Timezone         *string `json:"timezone"`
}

func (req *updateSettingsRequest) toUpdate() (app.SettingsUpdate, error) {
	var missing []string
	if req.Enabled == nil {
		missing = append(missing, "enabled")
	}
	if req.NotificationDays == nil {
		missing = append(missing, "notificationDays")
	}
	if req.NotificationTime == nil {
		missing = append(missing, "notificationTime")
	}
	if len(missing) > 0 {
		return app.SettingsUpdate{}, fmt.Errorf("%w: missing %s", app.ErrInvalidSettings, strings.Join(missing, ", "))
	}
	u := app.SettingsUpdate{
		Enabled:          *req.Enabled,
		Days:             *req.NotificationDays,
		NotificationTime: *req.NotificationTime,
	}
	if req.Timezone != nil {
		u.Timezone = *req.Timezone
	}
	return u, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Check runs a manual pass and returns its counts.
func (h *NotificationHandler) Check(w http.ResponseWriter, r *http.Request) {
	result := h.notifService.TriggerNow(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Load(r.Context())
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Success: true, Settings: toSettingsDTO(settings)})
}

func (h *NotificationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, settingsResponse{Message: "invalid request body: " + err.Error()})
		return
	}
	update, err := req.toUpdate()
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}

	message := "Notification settings saved"
	settings, err := h.settings.Save(r.Context(), update)
	switch {
	case errors.Is(err, app.ErrRescheduleFailed) && settings != nil:
		h.logger.WithError(err).Warn("Settings persisted without rescheduling")
		message = "Notification settings saved, but the daily run keeps its previous time until restart: " + err.Error()
	case err != nil:
		h.writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Success:  true,
		Message:  message,
		Settings: toSettingsDTO(settings),
	})
}

func (h *NotificationHandler) writeSettingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidSettings):
		writeJSON(w, http.StatusBadRequest, settingsResponse{Message: err.Error()})
	case errors.Is(err, app.ErrSettingsOwnerNotFound):
		writeJSON(w, http.StatusNotFound, settingsResponse{Message: err.Error()})
	default:
		h.logger.WithError(err).Error("Notification settings request failed")
		writeJSON(w, http.StatusInternalServerError, settingsResponse{Message: "failed to process notification settings"})
	}
}

type historyRecordDTO struct {
	ID                int64     `json:"id"`
	LicenseID         int64     `json:"licenseId"`
	Type              string    `json:"notificationType"`
	Status            string    `json:"status"`
	Subject           string    `json:"subject"`
	RecipientCategory string    `json:"recipientCategory"`
	RecipientEmail    string    `json:"recipientEmail"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	SentAt            time.Time `json:"sentAt"`
}

func parseHistoryFilter(r *http.Request) (notification.HistoryFilter, error) {
	q := r.URL.Query()
	var filter notification.HistoryFilter

	if v := q.Get("license_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("invalid license_id %q", v)
		}
		filter.LicenseID = id
	}
	for _, t := range splitList(q.Get("type")) {
		filter.Types = append(filter.Types, notification.Type(t))
	}
	for _, s := range splitList(q.Get("status")) {
		st := notification.Status(s)
		if st != notification.StatusSent && st != notification.StatusFailed {
			return filter, fmt.Errorf("invalid status %q", s)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxHistoryLimit {
			return filter, fmt.Errorf("invalid limit %q (1-%d)", v, maxHistoryLimit)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.history.History(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read notification history")
		http.Error(w, "failed to fetch notification history", http.StatusInternalServerError)
		return
	}
	out := make([]historyRecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, historyRecordDTO{
			ID:                rec.ID,
			LicenseID:         rec.LicenseID,
			Type:              string(rec.Type),
			Status:            string(rec.Status),
			Subject:           rec.Subject,
			RecipientCategory: string(rec.RecipientCategory),
			RecipientEmail:    rec.RecipientEmail,
			ErrorMessage:      rec.ErrorMessage,
			SentAt:            rec.SentAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NotificationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schedule.Status())
}
