/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/shuttle_hub/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.AdminUser{},
		&models.Company{},
		&models.Shuttle{},
		&models.ShuttleSchedule{},
		&models.ShuttleRegistration{},
		&models.ImportLog{},
		&models.APIKey{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	if err := applyPostgresRegistrationGuard(database); err != nil {
		return err
	}
	if err := normalizeLegacyRoles(database); err != nil {
		return err
	}
	if err := backfillScheduleTimeSlots(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresRegistrationGuard adds a partial unique index so the
// "one confirmed seat per passenger per departure per day" rule is also
// enforced at the storage layer, not only in the handler.
func applyPostgresRegistrationGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_unique_confirmed
ON shuttle_registrations (schedule_id, passenger_phone, (registration_date::date))
WHERE status = 'confirmed';
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres registration guard: %w", err)
	}

	return nil
}

// normalizeLegacyRoles maps role spellings from the original deployment
// onto the current role set.
func normalizeLegacyRoles(database *gorm.DB) error {
	if err := database.Exec("UPDATE admin_users SET role = ? WHERE LOWER(TRIM(role)) IN ?", models.RoleSuperAdmin, []string{"superadmin", "super_admin", "root"}).Error; err != nil {
		return fmt.Errorf("normalize legacy super admin role: %w", err)
	}
	if err := database.Exec("UPDATE admin_users SET role = ? WHERE LOWER(TRIM(role)) = ?", models.RoleAdmin, "administrator").Error; err != nil {
		return fmt.Errorf("normalize legacy admin role: %w", err)
	}
	return nil
}

// backfillScheduleTimeSlots populates time_slot for rows imported before
// the display label was stored alongside the normalized times.
func backfillScheduleTimeSlots(database *gorm.DB) error {
	type row struct {
		ID            string
		DepartureTime string
		ArrivalTime   *string
	}
	var rows []row
	if err := database.
		Model(&models.ShuttleSchedule{}).
		Select("id, departure_time, arrival_time").
		Where("(time_slot IS NULL OR time_slot = '') AND departure_time != ''").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("backfill time slots query: %w", err)
	}

	for _, r := range rows {
		slot := shortTime(r.DepartureTime)
		if r.ArrivalTime != nil && *r.ArrivalTime != "" {
			slot = slot + "-" + shortTime(*r.ArrivalTime)
		}
		if err := database.Model(&models.ShuttleSchedule{}).
			Where("id = ?", r.ID).
			Update("time_slot", slot).Error; err != nil {
			return fmt.Errorf("backfill time slot for schedule %s: %w", r.ID, err)
		}
	}

	return nil
}

// shortTime trims HH:MM:SS down to HH:MM for display labels.
func shortTime(t string) string {
	if len(t) == 8 {
		return t[:5]
	}
	return t
}
