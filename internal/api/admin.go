/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/shuttle_hub/internal/logbuffer"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

type dashboardStats struct {
	Companies          int64 `json:"companies"`
	Shuttles           int64 `json:"shuttles"`
	ActiveShuttles     int64 `json:"active_shuttles"`
	Schedules          int64 `json:"schedules"`
	RegistrationsToday int64 `json:"registrations_today"`
	RegistrationsTotal int64 `json:"registrations_total"`
	LastImportAt       any   `json:"last_import_at"`
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats dashboardStats

	counts := []struct {
		dest  *int64
		query func() error
	}{
		{&stats.Companies, func() error {
			return a.db.WithContext(ctx).Model(&models.Company{}).Count(&stats.Companies).Error
		}},
		{&stats.Shuttles, func() error {
			return a.db.WithContext(ctx).Model(&models.Shuttle{}).Count(&stats.Shuttles).Error
		}},
		{&stats.ActiveShuttles, func() error {
			return a.db.WithContext(ctx).Model(&models.Shuttle{}).
				Where("status = ?", models.ShuttleActive).Count(&stats.ActiveShuttles).Error
		}},
		{&stats.Schedules, func() error {
			return a.db.WithContext(ctx).Model(&models.ShuttleSchedule{}).
				Where("is_active = ?", true).Count(&stats.Schedules).Error
		}},
		{&stats.RegistrationsTotal, func() error {
			return a.db.WithContext(ctx).Model(&models.ShuttleRegistration{}).
				Count(&stats.RegistrationsTotal).Error
		}},
		{&stats.RegistrationsToday, func() error {
			today, _ := time.Parse(dateLayout, time.Now().Format(dateLayout))
			return a.db.WithContext(ctx).Model(&models.ShuttleRegistration{}).
				Where("registration_date = ? AND status = ?", today, models.RegistrationConfirmed).
				Count(&stats.RegistrationsToday).Error
		}},
	}
	for _, c := range counts {
		if err := c.query(); err != nil {
			a.logger.Error().Err(err).Msg("dashboard stats query failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}

	var lastImport models.ImportLog
	if err := a.db.WithContext(ctx).
		Where("status = ?", models.ImportSuccess).
		Order("created_at DESC").
		First(&lastImport).Error; err == nil {
		stats.LastImportAt = lastImport.CreatedAt
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRegistrationsExport streams registrations as a CSV attachment,
// optionally bounded by from/to dates.
func (a *API) handleRegistrationsExport(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).
		Preload("Schedule").
		Preload("Schedule.Shuttle")

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
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var registrations []models.ShuttleRegistration
	if err := query.Order("registration_date ASC, created_at ASC").
		Find(&registrations).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	filename := fmt.Sprintf("registrations_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"registration_id", "date", "status",
		"passenger_name", "passenger_phone", "passenger_email",
		"shuttle", "route", "direction", "departure_time",
	})

	for _, reg := range registrations {
		shuttleName, route, direction, departure := "", "", "", ""
		if reg.Schedule != nil {
			route = string(reg.Schedule.RouteType)
			direction = string(reg.Schedule.Direction)
			departure = reg.Schedule.DepartureTime
			if reg.Schedule.Shuttle != nil {
				shuttleName = reg.Schedule.Shuttle.Name
			}
		}
		_ = cw.Write([]string{
			reg.ID,
			reg.RegistrationDate.Format(dateLayout),
			string(reg.Status),
			reg.PassengerName,
			reg.PassengerPhone,
			reg.PassengerEmail,
			shuttleName,
			route,
			direction,
			departure,
		})
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		a.logger.Error().Err(err).Msg("csv export write failed")
	}
}

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		ShuttleID:  r.URL.Query().Get("shuttle_id"),
		Search:     r.URL.Query().Get("search"),
		Descending: true,
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	params.Limit = 500
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if r.URL.Query().Get("order") == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}
