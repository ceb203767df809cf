/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/models"
	"github.com/friendsincode/shuttle_hub/internal/telemetry"
)

const dateLayout = "2006-01-02"

type registrationRequest struct {
	ScheduleID     string `json:"schedule_id"`
	PassengerName  string `json:"passenger_name"`
	PassengerPhone string `json:"passenger_phone"`
	PassengerEmail string `json:"passenger_email"`
	Date           string `json:"date"` // YYYY-MM-DD
}

func (a *API) handleRegistrationCreate(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.ScheduleID == "" || req.PassengerName == "" || req.PassengerPhone == "" {
		writeError(w, http.StatusBadRequest, "missing_required_fields")
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	var schedule models.ShuttleSchedule
	result := a.db.WithContext(r.Context()).Preload("Shuttle").First(&schedule, "id = ?", req.ScheduleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "schedule_not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if !schedule.IsActive || schedule.IsBreak {
		telemetry.RegistrationsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusConflict, "schedule_not_bookable")
		return
	}
	if schedule.Shuttle != nil && schedule.Shuttle.Status != models.ShuttleActive {
		telemetry.RegistrationsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusConflict, "shuttle_inactive")
		return
	}

	registration := models.ShuttleRegistration{
		ID:               uuid.NewString(),
		ScheduleID:       req.ScheduleID,
		PassengerName:    req.PassengerName,
		PassengerPhone:   req.PassengerPhone,
		PassengerEmail:   req.PassengerEmail,
		RegistrationDate: date,
		Status:           models.RegistrationConfirmed,
	}

	capacity := 50
	if schedule.Shuttle != nil && schedule.Shuttle.Capacity > 0 {
		capacity = schedule.Shuttle.Capacity
	}

	// Duplicate and capacity checks run inside the insert transaction so
	// two concurrent bookings cannot both pass them against stale counts.
	txErr := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&models.ShuttleRegistration{}).
			Where("schedule_id = ? AND passenger_phone = ? AND registration_date = ? AND status = ?",
				req.ScheduleID, req.PassengerPhone, date, models.RegistrationConfirmed).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return errDuplicateRegistration
		}

		var confirmed int64
		if err := tx.Model(&models.ShuttleRegistration{}).
			Where("schedule_id = ? AND registration_date = ? AND status = ?",
				req.ScheduleID, date, models.RegistrationConfirmed).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed >= int64(capacity) {
			return errCapacityFull
		}

		return tx.Create(&registration).Error
	})
	switch {
	case errors.Is(txErr, errDuplicateRegistration):
		telemetry.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		writeError(w, http.StatusConflict, "already_registered")
		return
	case errors.Is(txErr, errCapacityFull):
		telemetry.RegistrationsTotal.WithLabelValues("capacity_full").Inc()
		writeError(w, http.StatusConflict, "capacity_full")
		return
	case txErr != nil:
		a.logger.Error().Err(txErr).Msg("create registration failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	telemetry.RegistrationsTotal.WithLabelValues("confirmed").Inc()
	if a.cache != nil {
		_ = a.cache.InvalidateSeatCount(r.Context(), req.ScheduleID, req.Date)
	}

	a.bus.Publish(events.EventRegistrationCreated, events.Payload{
		"registration_id": registration.ID,
		"schedule_id":     registration.ScheduleID,
		"date":            req.Date,
	})

	writeJSON(w, http.StatusCreated, registration)
}

var (
	errDuplicateRegistration = errors.New("duplicate registration")
	errCapacityFull          = errors.New("capacity full")
)

// handleRegistrationCancel cancels a registration. The caller must supply
// the phone number used at booking time as proof of ownership.
func (a *API) handleRegistrationCancel(w http.ResponseWriter, r *http.Request) {
	registrationID := chi.URLParam(r, "registrationID")
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone_required")
		return
	}

	var registration models.ShuttleRegistration
	result := a.db.WithContext(r.Context()).First(&registration, "id = ?", registrationID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if registration.PassengerPhone != phone {
		writeError(w, http.StatusForbidden, "phone_mismatch")
		return
	}
	if registration.Status != models.RegistrationConfirmed {
		writeError(w, http.StatusConflict, "not_cancellable")
		return
	}

	if err := a.db.WithContext(r.Context()).Model(&registration).
		Update("status", models.RegistrationCancelled).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	telemetry.RegistrationsTotal.WithLabelValues("cancelled").Inc()
	if a.cache != nil {
		_ = a.cache.InvalidateSeatCount(r.Context(), registration.ScheduleID,
			registration.RegistrationDate.Format(dateLayout))
	}

	a.bus.Publish(events.EventRegistrationCancelled, events.Payload{
		"registration_id": registration.ID,
		"schedule_id":     registration.ScheduleID,
		"resource_type":   "registration",
		"resource_id":     registration.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (a *API) handleRegistrationCount(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleID")
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().Format(dateLayout)
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	if a.cache != nil {
		if count, found := a.cache.GetSeatCount(r.Context(), scheduleID, dateStr); found {
			writeJSON(w, http.StatusOK, map[string]any{
				"schedule_id": scheduleID,
				"date":        dateStr,
				"confirmed":   count,
			})
			return
		}
	}

	var confirmed int64
	if err := a.db.WithContext(r.Context()).Model(&models.ShuttleRegistration{}).
		Where("schedule_id = ? AND registration_date = ? AND status = ?",
			scheduleID, date, models.RegistrationConfirmed).
		Count(&confirmed).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if a.cache != nil {
		_ = a.cache.SetSeatCount(r.Context(), scheduleID, dateStr, int(confirmed))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedule_id": scheduleID,
		"date":        dateStr,
		"confirmed":   confirmed,
	})
}

func (a *API) handleAdminRegistrationsList(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).Preload("Schedule")

	if scheduleID := r.URL.Query().Get("schedule_id"); scheduleID != "" {
		query = query.Where("schedule_id = ?", scheduleID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(dateLayout, from); err == nil {
			query = query.Where("registration_date >= ?", t)
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(dateLayout, to); err == nil {
			query = query.Where("registration_date <= ?", t)
		}
	}

	var registrations []models.ShuttleRegistration
	if err := query.Order("registration_date DESC, created_at DESC").
		Limit(500).Find(&registrations).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"registrations": registrations})
}
