/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer converts uploaded timetable files into schedule rows
// and atomically replaces a shuttle's schedule with the parsed set.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/models"
	"github.com/friendsincode/shuttle_hub/internal/telemetry"
)

// Phase tracks where an import call is in its lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseParsing    Phase = "parsing"
	PhaseValidating Phase = "validating"
	PhaseCommitting Phase = "committing"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Result reports the outcome of one import call.
type Result struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed_count"`
	Message   string   `json:"message"`
	Layout    string   `json:"layout"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Publisher is the slice of the event bus the importer needs.
type Publisher interface {
	Publish(events.EventType, events.Payload)
}

// Service parses timetables and replaces shuttle schedules.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	bus    Publisher

	// Per-shuttle locks serialize concurrent imports of the same shuttle
	// so the last upload wins deterministically instead of racing.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an importer service.
func New(database *gorm.DB, logger zerolog.Logger, bus Publisher) *Service {
	return &Service{
		db:     database,
		logger: logger.With().Str("component", "importer").Logger(),
		bus:    bus,
		locks:  make(map[string]*sync.Mutex),
	}
}

// defaultDays is the weekday set assigned to imported rows (Mon-Fri).
var defaultDays = models.IntList{1, 2, 3, 4, 5}

// Import parses rawText and replaces all schedule rows of the shuttle in
// one transaction. filename is recorded on the import log entry. The
// transaction is rolled back in full on any failure, including context
// cancellation, so readers always observe the old or the new schedule,
// never a mix.
func (s *Service) Import(ctx context.Context, shuttleID, filename, rawText string) (*Result, error) {
	start := time.Now()

	result, err := s.runImport(ctx, shuttleID, filename, rawText)

	telemetry.TimetableImportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.TimetableImportsTotal.WithLabelValues(string(models.ImportError)).Inc()
		if s.bus != nil {
			s.bus.Publish(events.EventImportFailed, events.Payload{
				"shuttle_id": shuttleID,
				"filename":   filename,
				"error":      err.Error(),
			})
		}
		return result, err
	}

	telemetry.TimetableImportsTotal.WithLabelValues(string(models.ImportSuccess)).Inc()
	if s.bus != nil {
		s.bus.Publish(events.EventImportCompleted, events.Payload{
			"shuttle_id": shuttleID,
			"filename":   filename,
			"processed":  result.Processed,
		})
		s.bus.Publish(events.EventScheduleUpdated, events.Payload{
			"shuttle_id": shuttleID,
		})
	}
	return result, nil
}

func (s *Service) runImport(ctx context.Context, shuttleID, filename, rawText string) (*Result, error) {
	if strings.TrimSpace(shuttleID) == "" {
		return nil, ErrShuttleNotFound
	}

	var shuttle models.Shuttle
	if err := s.db.WithContext(ctx).First(&shuttle, "id = ?", shuttleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShuttleNotFound
		}
		return nil, &StorageError{Op: "lookup shuttle", Err: err}
	}

	logEntry := models.ImportLog{
		ID:        uuid.NewString(),
		ShuttleID: shuttleID,
		Filename:  filename,
		Status:    models.ImportProcessing,
	}
	if err := s.db.WithContext(ctx).Create(&logEntry).Error; err != nil {
		return nil, &StorageError{Op: "create import log", Err: err}
	}

	if strings.TrimSpace(rawText) == "" {
		s.finalizeFailure(shuttleID, logEntry.ID, ErrEmptyInput.Error())
		return nil, ErrEmptyInput
	}

	// Parsing
	lines := strings.Split(strings.ReplaceAll(rawText, "\r\n", "\n"), "\n")
	layout := DetectLayout(lines[0])
	entries, warnings := layout.Parse(lines)

	s.logger.Debug().
		Str("shuttle_id", shuttleID).
		Str("layout", layout.Name()).
		Int("raw_entries", len(entries)).
		Msg("parsed timetable")

	// Validating
	entries = dedupe(entries)
	if len(entries) == 0 {
		s.finalizeFailure(shuttleID, logEntry.ID, ErrNoValidRows.Error())
		return nil, ErrNoValidRows
	}

	// Committing
	unlock := s.lockShuttle(shuttleID)
	defer unlock()

	if err := s.replaceSchedules(ctx, &shuttle, entries); err != nil {
		s.finalizeFailure(shuttleID, logEntry.ID, err.Error())
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(&models.ImportLog{}).Where("id = ?", logEntry.ID).Updates(map[string]any{
		"status":            models.ImportSuccess,
		"processed_records": len(entries),
		"processed_at":      now,
	}).Error; err != nil {
		s.logger.Error().Err(err).Str("import_log_id", logEntry.ID).Msg("update import log after commit")
	}

	s.logger.Info().
		Str("shuttle_id", shuttleID).
		Str("layout", layout.Name()).
		Int("processed", len(entries)).
		Msg("timetable imported")

	return &Result{
		Success:   true,
		Processed: len(entries),
		Message:   fmt.Sprintf("imported %d schedule rows", len(entries)),
		Layout:    layout.Name(),
		Warnings:  warnings,
	}, nil
}

// replaceSchedules swaps the shuttle's schedule rows for entries inside
// one transaction. Any error, early return, or context cancellation rolls
// the transaction back before this function returns.
func (s *Service) replaceSchedules(ctx context.Context, shuttle *models.Shuttle, entries []Entry) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return &StorageError{Op: "begin", Err: tx.Error}
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := tx.Where("shuttle_id = ?", shuttle.ID).Delete(&models.ShuttleSchedule{}).Error; err != nil {
		return &StorageError{Op: "delete schedules", Err: err}
	}

	rows := make([]models.ShuttleSchedule, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.ShuttleSchedule{
			ID:               uuid.NewString(),
			ShuttleID:        shuttle.ID,
			RouteType:        e.RouteType,
			Direction:        e.Direction,
			DepartureTime:    e.DepartureTime,
			ArrivalTime:      e.ArrivalTime,
			TimeSlot:         e.TimeSlot,
			RouteDescription: e.Description,
			DaysOfWeek:       defaultDays,
			IsBreak:          e.IsBreak,
			IsActive:         !e.IsBreak,
			SortOrder:        e.SortOrder,
		})
	}
	if err := tx.CreateInBatches(rows, 100).Error; err != nil {
		return &StorageError{Op: "insert schedules", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	now := time.Now()
	if err := tx.Model(&models.Shuttle{}).Where("id = ?", shuttle.ID).Updates(map[string]any{
		"csv_status":      models.ImportSuccess,
		"csv_uploaded_at": now,
	}).Error; err != nil {
		return &StorageError{Op: "update shuttle status", Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	committed = true
	return nil
}

// finalizeFailure records the error on the import log and the shuttle,
// outside the (already rolled back) import transaction.
func (s *Service) finalizeFailure(shuttleID, logID, detail string) {
	now := time.Now()
	if err := s.db.Model(&models.ImportLog{}).Where("id = ?", logID).Updates(map[string]any{
		"status":        models.ImportError,
		"error_message": detail,
		"processed_at":  now,
	}).Error; err != nil {
		s.logger.Error().Err(err).Str("import_log_id", logID).Msg("record import failure")
	}
	if err := s.db.Model(&models.Shuttle{}).Where("id = ?", shuttleID).
		Update("csv_status", models.ImportError).Error; err != nil {
		s.logger.Error().Err(err).Str("shuttle_id", shuttleID).Msg("record shuttle import failure")
	}
}

// History returns past import attempts for a shuttle, most recent first.
func (s *Service) History(ctx context.Context, shuttleID string) ([]models.ImportLog, error) {
	var logs []models.ImportLog
	err := s.db.WithContext(ctx).
		Where("shuttle_id = ?", shuttleID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, &StorageError{Op: "list import logs", Err: err}
	}
	return logs, nil
}

// lockShuttle acquires the per-shuttle import lock and returns the
// release function.
func (s *Service) lockShuttle(shuttleID string) func() {
	s.mu.Lock()
	l, ok := s.locks[shuttleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[shuttleID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// dedupe keeps the first occurrence of each (route, direction, departure)
// triple in discovery order, then orders the survivors by their parse-time
// sort hint and assigns final 1-based positions. Duplicate resolution never
// looks at the hint, only at which row came first in the file.
func dedupe(entries []Entry) []Entry {
	type key struct {
		route     models.RouteType
		direction models.Direction
		departure string
	}
	seen := make(map[key]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := key{e.RouteType, e.Direction, e.DepartureTime}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	for i := range out {
		out[i].SortOrder = i + 1
	}
	return out
}
