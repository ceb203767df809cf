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

	"github.com/friendsincode/shuttle_hub/internal/cache"
	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

type scheduleRequest struct {
	RouteType        string  `json:"route_type"`
	Direction        string  `json:"direction"`
	DepartureTime    string  `json:"departure_time"`
	ArrivalTime      *string `json:"arrival_time"`
	RouteDescription string  `json:"route_description"`
	DaysOfWeek       []int   `json:"days_of_week"`
	IsBreak          bool    `json:"is_break"`
	IsActive         *bool   `json:"is_active"`
	SortOrder        *int    `json:"sort_order"`
}

// normalizeClock accepts H:MM, HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeClock(raw string) (string, bool) {
	for _, layout := range []string{"15:04:05", "15:04", "3:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04:05"), true
		}
	}
	return "", false
}

func (req *scheduleRequest) toModel(shuttleID string, sortOrder int) (*models.ShuttleSchedule, string) {
	route := models.RouteType(req.RouteType)
	if route != models.RouteSavidorToTzafrir && route != models.RouteKiryatAryehToTzafrir {
		return nil, "unknown_route_type"
	}
	direction := models.Direction(req.Direction)
	if direction != models.DirectionOutbound && direction != models.DirectionReturn {
		return nil, "unknown_direction"
	}

	departure, ok := normalizeClock(req.DepartureTime)
	if !ok {
		return nil, "invalid_departure_time"
	}

	var arrival *string
	if req.ArrivalTime != nil && *req.ArrivalTime != "" {
		normalized, ok := normalizeClock(*req.ArrivalTime)
		if !ok {
			return nil, "invalid_arrival_time"
		}
		arrival = &normalized
	}

	days := models.IntList(req.DaysOfWeek)
	if len(days) == 0 {
		days = models.IntList{1, 2, 3, 4, 5}
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, "invalid_days_of_week"
		}
	}

	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	} else if req.IsBreak {
		active = false
	}

	return &models.ShuttleSchedule{
		ID:               uuid.NewString(),
		ShuttleID:        shuttleID,
		RouteType:        route,
		Direction:        direction,
		DepartureTime:    departure,
		ArrivalTime:      arrival,
		TimeSlot:         departure[:5],
		RouteDescription: req.RouteDescription,
		DaysOfWeek:       days,
		IsBreak:          req.IsBreak,
		IsActive:         active,
		SortOrder:        sortOrder,
	}, ""
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	var schedules []models.ShuttleSchedule
	if err := a.db.WithContext(r.Context()).
		Where("shuttle_id = ?", shuttleID).
		Order("sort_order ASC, departure_time ASC").
		Find(&schedules).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (a *API) handleSchedulesCreate(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	shuttle, ok := a.loadShuttle(w, r, shuttleID)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var nextOrder int64
	a.db.WithContext(r.Context()).Model(&models.ShuttleSchedule{}).
		Where("shuttle_id = ?", shuttleID).Count(&nextOrder)

	schedule, code := req.toModel(shuttleID, int(nextOrder)+1)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	if err := a.db.WithContext(r.Context()).Create(schedule).Error; err != nil {
		a.logger.Error().Err(err).Msg("create schedule failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.afterScheduleChange(r, shuttle, string(models.AuditActionScheduleUpdate), schedule.ID)
	writeJSON(w, http.StatusCreated, schedule)
}

func (a *API) handleSchedulesUpdate(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleID")

	var schedule models.ShuttleSchedule
	result := a.db.WithContext(r.Context()).First(&schedule, "id = ?", scheduleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.RouteType != "" {
		route := models.RouteType(req.RouteType)
		if route != models.RouteSavidorToTzafrir && route != models.RouteKiryatAryehToTzafrir {
			writeError(w, http.StatusBadRequest, "unknown_route_type")
			return
		}
		updates["route_type"] = route
	}
	if req.Direction != "" {
		direction := models.Direction(req.Direction)
		if direction != models.DirectionOutbound && direction != models.DirectionReturn {
			writeError(w, http.StatusBadRequest, "unknown_direction")
			return
		}
		updates["direction"] = direction
	}
	if req.DepartureTime != "" {
		departure, ok := normalizeClock(req.DepartureTime)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_departure_time")
			return
		}
		updates["departure_time"] = departure
		updates["time_slot"] = departure[:5]
	}
	if req.ArrivalTime != nil {
		if *req.ArrivalTime == "" {
			updates["arrival_time"] = nil
		} else {
			arrival, ok := normalizeClock(*req.ArrivalTime)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_arrival_time")
				return
			}
			updates["arrival_time"] = arrival
		}
	}
	if req.RouteDescription != "" {
		updates["route_description"] = req.RouteDescription
	}
	if len(req.DaysOfWeek) > 0 {
		updates["days_of_week"] = models.IntList(req.DaysOfWeek)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&schedule).Updates(updates).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "update_failed")
			return
		}
	}

	shuttle, ok := a.loadShuttle(w, r, schedule.ShuttleID)
	if !ok {
		return
	}
	a.afterScheduleChange(r, shuttle, string(models.AuditActionScheduleUpdate), schedule.ID)
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) handleSchedulesDelete(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleID")

	var schedule models.ShuttleSchedule
	result := a.db.WithContext(r.Context()).First(&schedule, "id = ?", scheduleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).
			Delete(&models.ShuttleRegistration{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ShuttleSchedule{}, "id = ?", scheduleID).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	shuttle, ok := a.loadShuttle(w, r, schedule.ShuttleID)
	if !ok {
		return
	}
	a.afterScheduleChange(r, shuttle, string(models.AuditActionScheduleUpdate), scheduleID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSchedulesReplace swaps a shuttle's whole timetable for the posted
// list in one transaction, mirroring the CSV import semantics for
// hand-entered data.
func (a *API) handleSchedulesReplace(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	shuttle, ok := a.loadShuttle(w, r, shuttleID)
	if !ok {
		return
	}

	var req struct {
		Schedules []scheduleRequest `json:"schedules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Schedules) == 0 {
		writeError(w, http.StatusBadRequest, "schedules_required")
		return
	}

	rows := make([]models.ShuttleSchedule, 0, len(req.Schedules))
	for i, entry := range req.Schedules {
		row, code := entry.toModel(shuttleID, i+1)
		if code != "" {
			writeError(w, http.StatusBadRequest, code)
			return
		}
		rows = append(rows, *row)
	}

	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shuttle_id = ?", shuttleID).
			Delete(&models.ShuttleSchedule{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("bulk schedule replace failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.afterScheduleChange(r, shuttle, string(models.AuditActionScheduleBulkReplace), shuttleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"processed_count": len(rows),
	})
}

// Public views

func (a *API) handlePublicShuttles(w http.ResponseWriter, r *http.Request) {
	var shuttles []models.Shuttle
	if err := a.db.WithContext(r.Context()).
		Preload("Company").
		Preload("Schedules", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("sort_order ASC, departure_time ASC")
		}).
		Where("status = ?", models.ShuttleActive).
		Order("name ASC").
		Find(&shuttles).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"shuttles": shuttles})
}

type timetableGroup struct {
	RouteType string                   `json:"route_type"`
	Outbound  []models.ShuttleSchedule `json:"outbound"`
	Return    []models.ShuttleSchedule `json:"return"`
}

// handlePublicTimetable returns a company's active schedules grouped by
// route then direction, served from Redis when possible.
func (a *API) handlePublicTimetable(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	if a.cache != nil {
		if view, found := a.cache.GetOrganizedView(r.Context(), companyID); found {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(view.Body)
			return
		}
	}

	var company models.Company
	result := a.db.WithContext(r.Context()).First(&company, "id = ?", companyID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var schedules []models.ShuttleSchedule
	if err := a.db.WithContext(r.Context()).
		Joins("JOIN shuttles ON shuttles.id = shuttle_schedules.shuttle_id").
		Where("shuttles.company_id = ? AND shuttles.status = ? AND shuttle_schedules.is_active = ?",
			companyID, models.ShuttleActive, true).
		Order("shuttle_schedules.sort_order ASC, shuttle_schedules.departure_time ASC").
		Find(&schedules).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	grouped := map[models.RouteType]*timetableGroup{}
	order := []models.RouteType{models.RouteSavidorToTzafrir, models.RouteKiryatAryehToTzafrir}
	for _, route := range order {
		grouped[route] = &timetableGroup{RouteType: string(route)}
	}
	for _, s := range schedules {
		group, ok := grouped[s.RouteType]
		if !ok {
			group = &timetableGroup{RouteType: string(s.RouteType)}
			grouped[s.RouteType] = group
			order = append(order, s.RouteType)
		}
		if s.Direction == models.DirectionReturn {
			group.Return = append(group.Return, s)
		} else {
			group.Outbound = append(group.Outbound, s)
		}
	}

	routes := make([]timetableGroup, 0, len(order))
	for _, route := range order {
		routes = append(routes, *grouped[route])
	}

	body := map[string]any{
		"company": map[string]string{
			"id":   company.ID,
			"name": company.Name,
		},
		"routes": routes,
	}

	if a.cache != nil {
		if raw, err := json.Marshal(body); err == nil {
			_ = a.cache.SetOrganizedView(r.Context(), &cache.CachedOrganizedView{
				CompanyID:   companyID,
				Body:        raw,
				GeneratedAt: time.Now(),
			})
		}
	}

	writeJSON(w, http.StatusOK, body)
}

func (a *API) loadShuttle(w http.ResponseWriter, r *http.Request, shuttleID string) (*models.Shuttle, bool) {
	var shuttle models.Shuttle
	result := a.db.WithContext(r.Context()).First(&shuttle, "id = ?", shuttleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return &shuttle, true
}

// afterScheduleChange invalidates caches and fans out schedule events.
func (a *API) afterScheduleChange(r *http.Request, shuttle *models.Shuttle, action, resourceID string) {
	a.invalidateShuttleCaches(r, shuttle.ID, shuttle.CompanyID)

	a.bus.Publish(events.EventScheduleUpdated, events.Payload{
		"shuttle_id": shuttle.ID,
		"company_id": shuttle.CompanyID,
	})
	a.publishAuditEvent(r, events.EventAuditScheduleChange, events.Payload{
		"action":        action,
		"resource_type": "schedule",
		"resource_id":   resourceID,
		"shuttle_id":    shuttle.ID,
	})
}
