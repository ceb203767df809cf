/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to relevant events and logs them as audit entries.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	adminLogin := s.bus.Subscribe(events.EventAuditAdminLogin)
	adminCreate := s.bus.Subscribe(events.EventAuditAdminCreate)
	companyChange := s.bus.Subscribe(events.EventAuditCompanyChange)
	shuttleChange := s.bus.Subscribe(events.EventAuditShuttleChange)
	scheduleChange := s.bus.Subscribe(events.EventAuditScheduleChange)
	timetableImport := s.bus.Subscribe(events.EventAuditImport)
	registrationCancelled := s.bus.Subscribe(events.EventRegistrationCancelled)

	defer func() {
		s.bus.Unsubscribe(events.EventAuditAdminLogin, adminLogin)
		s.bus.Unsubscribe(events.EventAuditAdminCreate, adminCreate)
		s.bus.Unsubscribe(events.EventAuditCompanyChange, companyChange)
		s.bus.Unsubscribe(events.EventAuditShuttleChange, shuttleChange)
		s.bus.Unsubscribe(events.EventAuditScheduleChange, scheduleChange)
		s.bus.Unsubscribe(events.EventAuditImport, timetableImport)
		s.bus.Unsubscribe(events.EventRegistrationCancelled, registrationCancelled)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-adminLogin:
			s.logAuditEntry(ctx, models.AuditActionAdminLogin, payload)

		case payload := <-adminCreate:
			s.logAuditEntry(ctx, models.AuditActionAdminCreate, payload)

		case payload := <-companyChange:
			s.logAuditEntry(ctx, s.actionOrDefault(payload, models.AuditActionCompanyUpdate), payload)

		case payload := <-shuttleChange:
			s.logAuditEntry(ctx, s.actionOrDefault(payload, models.AuditActionShuttleUpdate), payload)

		case payload := <-scheduleChange:
			s.logAuditEntry(ctx, s.actionOrDefault(payload, models.AuditActionScheduleUpdate), payload)

		case payload := <-timetableImport:
			s.logAuditEntry(ctx, models.AuditActionTimetableImport, payload)

		case payload := <-registrationCancelled:
			s.logAuditEntry(ctx, models.AuditActionRegistrationCancel, payload)
		}
	}
}

// actionOrDefault lets one event type carry create/update/delete variants
// through the "action" payload key.
func (s *Service) actionOrDefault(payload events.Payload, def models.AuditAction) models.AuditAction {
	if raw, ok := payload["action"].(string); ok && raw != "" {
		return models.AuditAction(raw)
	}
	return def
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Details:   make(map[string]any),
		CreatedAt: time.Now(),
	}

	// Extract user info
	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	if userEmail, ok := payload["user_email"].(string); ok {
		entry.UserEmail = userEmail
	}

	// Extract resource info
	if resourceType, ok := payload["resource_type"].(string); ok {
		entry.ResourceType = resourceType
	}
	if resourceID, ok := payload["resource_id"].(string); ok {
		entry.ResourceID = resourceID
	}

	// Extract request context
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}
	if userAgent, ok := payload["user_agent"].(string); ok {
		entry.UserAgent = userAgent
	}

	// Copy remaining fields to details
	for k, v := range payload {
		switch k {
		case "user_id", "user_email", "resource_type", "resource_id", "ip_address", "user_agent":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID    *string
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit logs with filters.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100) // Default limit
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	// Order by timestamp descending (most recent first)
	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
