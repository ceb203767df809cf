/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/cache"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

// handlePublicCompanies lists companies that have at least one active
// shuttle, for the public booking page's company picker.
func (a *API) handlePublicCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if a.cache != nil {
		if companies, found := a.cache.GetCompanyList(ctx); found {
			writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
			return
		}
	}

	var companies []models.Company
	if err := a.db.WithContext(ctx).
		Preload("Shuttles", "status = ?", models.ShuttleActive).
		Order("name ASC").
		Find(&companies).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedCompany, 0, len(companies))
	for _, company := range companies {
		if len(company.Shuttles) == 0 {
			continue
		}
		out = append(out, cache.CachedCompany{
			ID:           company.ID,
			Name:         company.Name,
			ContactEmail: company.ContactEmail,
			ContactPhone: company.ContactPhone,
			ShuttleCount: len(company.Shuttles),
		})
	}

	if a.cache != nil {
		_ = a.cache.SetCompanyList(ctx, out)
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": out})
}

// handlePublicCompanyShuttles lists a company's active shuttles.
func (a *API) handlePublicCompanyShuttles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := chi.URLParam(r, "companyID")

	if a.cache != nil {
		if shuttles, found := a.cache.GetShuttleList(ctx, companyID); found {
			writeJSON(w, http.StatusOK, map[string]any{"shuttles": shuttles})
			return
		}
	}

	var company models.Company
	result := a.db.WithContext(ctx).First(&company, "id = ?", companyID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var shuttles []models.Shuttle
	if err := a.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, models.ShuttleActive).
		Order("name ASC").
		Find(&shuttles).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedShuttle, 0, len(shuttles))
	for _, shuttle := range shuttles {
		out = append(out, cache.CachedShuttle{
			ID:       shuttle.ID,
			Name:     shuttle.Name,
			Capacity: shuttle.Capacity,
			Status:   string(shuttle.Status),
		})
	}

	if a.cache != nil {
		_ = a.cache.SetShuttleList(ctx, companyID, out)
	}
	writeJSON(w, http.StatusOK, map[string]any{"shuttles": out})
}

// handlePublicShuttleTimetable returns a shuttle's active schedule rows as
// a flat ordered list.
func (a *API) handlePublicShuttleTimetable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shuttleID := chi.URLParam(r, "shuttleID")

	if a.cache != nil {
		if tt, found := a.cache.GetTimetable(ctx, shuttleID); found {
			writeJSON(w, http.StatusOK, tt)
			return
		}
	}

	shuttle, ok := a.loadShuttle(w, r, shuttleID)
	if !ok {
		return
	}
	if shuttle.Status != models.ShuttleActive {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	var schedules []models.ShuttleSchedule
	if err := a.db.WithContext(ctx).
		Where("shuttle_id = ? AND is_active = ?", shuttleID, true).
		Order("sort_order ASC, departure_time ASC").
		Find(&schedules).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	rows := make([]cache.CachedScheduleRow, 0, len(schedules))
	for _, s := range schedules {
		row := cache.CachedScheduleRow{
			ID:            s.ID,
			Route:         string(s.RouteType),
			Direction:     string(s.Direction),
			DepartureTime: s.DepartureTime,
			SortOrder:     s.SortOrder,
			IsActive:      s.IsActive,
		}
		if s.ArrivalTime != nil {
			row.ArrivalTime = *s.ArrivalTime
		}
		rows = append(rows, row)
	}

	tt := &cache.CachedTimetable{
		ShuttleID:   shuttleID,
		ShuttleName: shuttle.Name,
		Rows:        rows,
		GeneratedAt: time.Now(),
	}
	if a.cache != nil {
		_ = a.cache.SetTimetable(ctx, tt)
	}
	writeJSON(w, http.StatusOK, tt)
}

// handleCacheFlush empties the Redis cache. Super admin escape hatch for
// when a stale view survives normal invalidation.
func (a *API) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	if a.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache_unavailable")
		return
	}
	if err := a.cache.FlushAll(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("cache flush failed")
		writeError(w, http.StatusInternalServerError, "cache_flush_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flushed": true})
}
