/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for all sensitive operations.
const (
	AuditActionAdminLogin          AuditAction = "admin.login"
	AuditActionAdminCreate         AuditAction = "admin.create"
	AuditActionAdminPasswordReset  AuditAction = "admin.password_reset"
	AuditActionCompanyCreate       AuditAction = "company.create"
	AuditActionCompanyUpdate       AuditAction = "company.update"
	AuditActionCompanyDelete       AuditAction = "company.delete"
	AuditActionShuttleCreate       AuditAction = "shuttle.create"
	AuditActionShuttleUpdate       AuditAction = "shuttle.update"
	AuditActionShuttleDelete       AuditAction = "shuttle.delete"
	AuditActionScheduleUpdate      AuditAction = "schedule.update"
	AuditActionScheduleBulkReplace AuditAction = "schedule.bulk_replace"
	AuditActionTimetableImport     AuditAction = "timetable.import"
	AuditActionRegistrationCancel  AuditAction = "registration.cancel"
)

// AuditLog records sensitive operations for security and compliance.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user"` // NULL for system actions
	UserEmail    string         `gorm:"type:varchar(255)"`              // Denormalized for readability
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"` // "company", "shuttle", "schedule", etc.
	ResourceID   string         `gorm:"type:uuid"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json"`
	IPAddress    string         `gorm:"type:varchar(45)"` // IPv4 or IPv6
	UserAgent    string         `gorm:"type:varchar(512)"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
