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

type companyRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
}

func (a *API) handleCompaniesList(w http.ResponseWriter, r *http.Request) {
	var companies []models.Company
	if err := a.db.WithContext(r.Context()).Order("name ASC").Find(&companies).Error; err != nil {
		a.logger.Error().Err(err).Msg("list companies failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (a *API) handleCompaniesCreate(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	company := models.Company{
		ID:           uuid.NewString(),
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}

	if err := a.db.WithContext(r.Context()).Create(&company).Error; err != nil {
		a.logger.Error().Err(err).Msg("create company failed")
		writeError(w, http.StatusConflict, "name_in_use")
		return
	}

	a.invalidateCompanyCaches(r, company.ID)
	a.publishAuditEvent(r, events.EventAuditCompanyChange, events.Payload{
		"action":        string(models.AuditActionCompanyCreate),
		"resource_type": "company",
		"resource_id":   company.ID,
		"name":          company.Name,
	})

	writeJSON(w, http.StatusCreated, company)
}

func (a *API) handleCompaniesGet(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var company models.Company
	result := a.db.WithContext(r.Context()).Preload("Shuttles").First(&company, "id = ?", companyID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, company)
}

func (a *API) handleCompaniesUpdate(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var req companyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
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

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.ContactEmail != "" {
		updates["contact_email"] = req.ContactEmail
	}
	if req.ContactPhone != "" {
		updates["contact_phone"] = req.ContactPhone
	}

	if len(updates) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&company).Updates(updates).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "update_failed")
			return
		}
	}

	a.invalidateCompanyCaches(r, company.ID)
	a.publishAuditEvent(r, events.EventAuditCompanyChange, events.Payload{
		"action":        string(models.AuditActionCompanyUpdate),
		"resource_type": "company",
		"resource_id":   company.ID,
	})

	writeJSON(w, http.StatusOK, company)
}

func (a *API) handleCompaniesDelete(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var count int64
	if err := a.db.WithContext(r.Context()).Model(&models.Shuttle{}).
		Where("company_id = ?", companyID).Count(&count).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "company_has_shuttles")
		return
	}

	result := a.db.WithContext(r.Context()).Delete(&models.Company{}, "id = ?", companyID)
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	a.invalidateCompanyCaches(r, companyID)
	a.publishAuditEvent(r, events.EventAuditCompanyChange, events.Payload{
		"action":        string(models.AuditActionCompanyDelete),
		"resource_type": "company",
		"resource_id":   companyID,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) invalidateCompanyCaches(r *http.Request, companyID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidateCompany(r.Context(), companyID); err != nil {
		a.logger.Debug().Err(err).Str("company_id", companyID).Msg("cache invalidation failed")
	}
}
