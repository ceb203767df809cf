/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

type shuttleRequest struct {
	Name      string `json:"name"`
	CompanyID string `json:"company_id"`
	Capacity  *int   `json:"capacity"`
	Status    string `json:"status"`
}

func (a *API) handleShuttlesList(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).Preload("Company")
	if companyID := r.URL.Query().Get("company_id"); companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var shuttles []models.Shuttle
	if err := query.Order("name ASC").Find(&shuttles).Error; err != nil {
		a.logger.Error().Err(err).Msg("list shuttles failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shuttles": shuttles})
}

func (a *API) handleShuttlesCreate(w http.ResponseWriter, r *http.Request) {
	var req shuttleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" || req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "missing_required_fields")
		return
	}

	var company models.Company
	if err := a.db.WithContext(r.Context()).First(&company, "id = ?", req.CompanyID).Error; err != nil {
		writeError(w, http.StatusBadRequest, "unknown_company")
		return
	}

	capacity := 50
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_capacity")
			return
		}
		capacity = *req.Capacity
	}

	status := models.ShuttleActive
	if req.Status != "" {
		status = models.ShuttleStatus(req.Status)
		if status != models.ShuttleActive && status != models.ShuttleInactive {
			writeError(w, http.StatusBadRequest, "unknown_status")
			return
		}
	}

	shuttle := models.Shuttle{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CompanyID: req.CompanyID,
		Capacity:  capacity,
		Status:    status,
	}

	if err := a.db.WithContext(r.Context()).Create(&shuttle).Error; err != nil {
		a.logger.Error().Err(err).Msg("create shuttle failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateShuttleCaches(r, shuttle.ID, shuttle.CompanyID)
	a.publishAuditEvent(r, events.EventAuditShuttleChange, events.Payload{
		"action":        string(models.AuditActionShuttleCreate),
		"resource_type": "shuttle",
		"resource_id":   shuttle.ID,
		"name":          shuttle.Name,
	})

	writeJSON(w, http.StatusCreated, shuttle)
}

func (a *API) handleShuttlesGet(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	var shuttle models.Shuttle
	result := a.db.WithContext(r.Context()).Preload("Company").First(&shuttle, "id = ?", shuttleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, shuttle)
}

func (a *API) handleShuttlesUpdate(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	var req shuttleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var shuttle models.Shuttle
	result := a.db.WithContext(r.Context()).First(&shuttle, "id = ?", shuttleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.CompanyID != "" && req.CompanyID != shuttle.CompanyID {
		var company models.Company
		if err := a.db.WithContext(r.Context()).First(&company, "id = ?", req.CompanyID).Error; err != nil {
			writeError(w, http.StatusBadRequest, "unknown_company")
			return
		}
		updates["company_id"] = req.CompanyID
	}
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_capacity")
			return
		}
		updates["capacity"] = *req.Capacity
	}
	if req.Status != "" {
		status := models.ShuttleStatus(req.Status)
		if status != models.ShuttleActive && status != models.ShuttleInactive {
			writeError(w, http.StatusBadRequest, "unknown_status")
			return
		}
		updates["status"] = status
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&shuttle).Updates(updates).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "update_failed")
			return
		}
	}

	a.invalidateShuttleCaches(r, shuttle.ID, shuttle.CompanyID)
	a.publishAuditEvent(r, events.EventAuditShuttleChange, events.Payload{
		"action":        string(models.AuditActionShuttleUpdate),
		"resource_type": "shuttle",
		"resource_id":   shuttle.ID,
	})

	writeJSON(w, http.StatusOK, shuttle)
}

func (a *API) handleShuttlesDelete(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	var shuttle models.Shuttle
	result := a.db.WithContext(r.Context()).First(&shuttle, "id = ?", shuttleID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Schedules and their registrations go with the shuttle.
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var scheduleIDs []string
		if err := tx.Model(&models.ShuttleSchedule{}).
			Where("shuttle_id = ?", shuttleID).
			Pluck("id", &scheduleIDs).Error; err != nil {
			return err
		}
		if len(scheduleIDs) > 0 {
			if err := tx.Where("schedule_id IN ?", scheduleIDs).
				Delete(&models.ShuttleRegistration{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("shuttle_id = ?", shuttleID).
			Delete(&models.ShuttleSchedule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Shuttle{}, "id = ?", shuttleID).Error
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("delete shuttle failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateShuttleCaches(r, shuttleID, shuttle.CompanyID)
	a.publishAuditEvent(r, events.EventAuditShuttleChange, events.Payload{
		"action":        string(models.AuditActionShuttleDelete),
		"resource_type": "shuttle",
		"resource_id":   shuttleID,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) invalidateShuttleCaches(r *http.Request, shuttleID, companyID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateShuttle(r.Context(), shuttleID, companyID); err != nil {
		a.logger.Debug().Err(err).Str("shuttle_id", shuttleID).Msg("cache invalidation failed")
	}
}
