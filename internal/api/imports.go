/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/importer"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

// handleTimetableUpload receives a multipart CSV upload, runs the
// importer against the target shuttle and archives the raw file.
func (a *API) handleTimetableUpload(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed")
		return
	}

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		filename = "timetable.csv"
	}

	result, err := a.importerSvc.Import(r.Context(), shuttleID, filename, string(raw))
	if err != nil {
		a.writeImportError(w, err)
		return
	}

	// Archive the raw upload. Failure here does not undo the import;
	// the schedule data is already committed.
	archiveKey := fmt.Sprintf("uploads/%s/%s_%s", shuttleID,
		time.Now().UTC().Format("20060102T150405Z"), filename)
	if a.uploads != nil {
		if err := a.uploads.Put(r.Context(), archiveKey, raw); err != nil {
			a.logger.Warn().Err(err).Str("key", archiveKey).Msg("failed to archive uploaded timetable")
			archiveKey = ""
		}
	} else {
		archiveKey = ""
	}
	if archiveKey != "" {
		if err := a.db.WithContext(r.Context()).Model(&models.Shuttle{}).
			Where("id = ?", shuttleID).
			Update("csv_file_path", archiveKey).Error; err != nil {
			a.logger.Warn().Err(err).Msg("failed to record archive path")
		}
	}

	if shuttle, ok := a.loadShuttleQuiet(r, shuttleID); ok {
		a.invalidateShuttleCaches(r, shuttleID, shuttle.CompanyID)
	}

	a.publishAuditEvent(r, events.EventAuditImport, events.Payload{
		"resource_type":   "shuttle",
		"resource_id":     shuttleID,
		"filename":        filename,
		"processed_count": result.Processed,
		"layout":          result.Layout,
	})

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	shuttleID := chi.URLParam(r, "shuttleID")

	logs, err := a.importerSvc.History(r.Context(), shuttleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"imports": logs})
}

func (a *API) writeImportError(w http.ResponseWriter, err error) {
	var storageErr *importer.StorageError
	switch {
	case errors.Is(err, importer.ErrShuttleNotFound):
		writeError(w, http.StatusNotFound, "shuttle_not_found")
	case errors.Is(err, importer.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "empty_input")
	case errors.Is(err, importer.ErrNoValidRows):
		writeError(w, http.StatusUnprocessableEntity, "no_valid_rows")
	case errors.As(err, &storageErr):
		a.logger.Error().Err(err).Msg("timetable import storage failure")
		writeError(w, http.StatusInternalServerError, "storage_error")
	default:
		a.logger.Error().Err(err).Msg("timetable import failed")
		writeError(w, http.StatusInternalServerError, "import_failed")
	}
}

func (a *API) loadShuttleQuiet(r *http.Request, shuttleID string) (*models.Shuttle, bool) {
	var shuttle models.Shuttle
	if err := a.db.WithContext(r.Context()).First(&shuttle, "id = ?", shuttleID).Error; err != nil {
		return nil, false
	}
	return &shuttle, true
}
