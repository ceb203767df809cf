/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package legacy imports data from the original Node/Python shuttle
// booking deployment, reading its Postgres schema directly.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/migration"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

// Importer copies companies, shuttles, schedules, registrations and admin
// accounts from a legacy database into the current schema.
type Importer struct {
	db       *gorm.DB
	logger   zerolog.Logger
	options  migration.Options
	stats    migration.Stats
	progress migration.ProgressCallback

	// legacy schedule id -> new schedule id, for registration rewiring
	scheduleIDs map[string]string
}

// NewImporter creates a legacy importer.
func NewImporter(db *gorm.DB, logger zerolog.Logger, options migration.Options) *Importer {
	return &Importer{
		db:          db,
		logger:      logger.With().Str("component", "legacy_importer").Logger(),
		options:     options,
		scheduleIDs: make(map[string]string),
	}
}

// SetProgressCallback sets the progress callback function.
func (i *Importer) SetProgressCallback(callback migration.ProgressCallback) {
	i.progress = callback
}

// Import copies everything from the legacy database at dbDSN.
func (i *Importer) Import(ctx context.Context, dbDSN string) (*migration.Stats, error) {
	i.logger.Info().
		Str("dsn", maskDSN(dbDSN)).
		Bool("dry_run", i.options.DryRun).
		Msg("starting legacy import")

	i.reportProgress(1, 6, "Connecting to legacy database")
	legacyDB, err := sql.Open("postgres", dbDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to legacy db: %w", err)
	}
	defer legacyDB.Close()

	if err := legacyDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping legacy db: %w", err)
	}

	return i.runAgainst(ctx, legacyDB)
}

// runAgainst drives the import over an already open source connection.
func (i *Importer) runAgainst(ctx context.Context, legacyDB *sql.DB) (*migration.Stats, error) {
	i.reportProgress(2, 6, "Importing companies")
	if err := i.importCompanies(ctx, legacyDB); err != nil {
		return nil, fmt.Errorf("import companies: %w", err)
	}

	i.reportProgress(3, 6, "Importing shuttles")
	if err := i.importShuttles(ctx, legacyDB); err != nil {
		return nil, fmt.Errorf("import shuttles: %w", err)
	}

	i.reportProgress(4, 6, "Importing schedules")
	if err := i.importSchedules(ctx, legacyDB); err != nil {
		return nil, fmt.Errorf("import schedules: %w", err)
	}

	if !i.options.SkipRegistrations {
		i.reportProgress(5, 6, "Importing registrations")
		if err := i.importRegistrations(ctx, legacyDB); err != nil {
			return nil, fmt.Errorf("import registrations: %w", err)
		}
	}

	if !i.options.SkipUsers {
		i.reportProgress(6, 6, "Importing admin users")
		if err := i.importUsers(ctx, legacyDB); err != nil {
			i.logger.Warn().Err(err).Msg("failed to import admin users, continuing")
			i.stats.ErrorsEncountered++
		}
	}

	i.reportProgress(6, 6, "Import completed")
	i.logger.Info().Interface("stats", i.stats).Msg("legacy import completed")

	return &i.stats, nil
}

func (i *Importer) importCompanies(ctx context.Context, legacyDB *sql.DB) error {
	rows, err := legacyDB.QueryContext(ctx, `
		SELECT id, name, contact_email, contact_phone, created_at
		FROM companies
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		var email, phone sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&id, &name, &email, &phone, &createdAt); err != nil {
			i.logger.Error().Err(err).Msg("scan company")
			i.stats.ErrorsEncountered++
			continue
		}

		company := models.Company{
			ID:           id,
			Name:         name,
			ContactEmail: email.String,
			ContactPhone: phone.String,
			CreatedAt:    createdAt,
		}
		if !i.options.DryRun {
			if err := i.db.WithContext(ctx).Create(&company).Error; err != nil {
				i.logger.Error().Err(err).Str("company", name).Msg("create company")
				i.stats.ErrorsEncountered++
				continue
			}
		}
		i.stats.CompaniesImported++
	}
	return rows.Err()
}

func (i *Importer) importShuttles(ctx context.Context, legacyDB *sql.DB) error {
	rows, err := legacyDB.QueryContext(ctx, `
		SELECT id, name, company_id, capacity, status, created_at
		FROM shuttles
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query shuttles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		var companyID, status sql.NullString
		var capacity sql.NullInt64
		var createdAt time.Time
		if err := rows.Scan(&id, &name, &companyID, &capacity, &status, &createdAt); err != nil {
			i.logger.Error().Err(err).Msg("scan shuttle")
			i.stats.ErrorsEncountered++
			continue
		}

		shuttle := models.Shuttle{
			ID:        id,
			Name:      name,
			CompanyID: companyID.String,
			Capacity:  int(capacity.Int64),
			Status:    models.ShuttleStatus(status.String),
			CreatedAt: createdAt,
		}
		if shuttle.Capacity <= 0 {
			shuttle.Capacity = 50
		}
		if shuttle.Status == "" {
			shuttle.Status = models.ShuttleActive
		}
		if !i.options.DryRun {
			if err := i.db.WithContext(ctx).Create(&shuttle).Error; err != nil {
				i.logger.Error().Err(err).Str("shuttle", name).Msg("create shuttle")
				i.stats.ErrorsEncountered++
				continue
			}
		}
		i.stats.ShuttlesImported++
	}
	return rows.Err()
}

func (i *Importer) importSchedules(ctx context.Context, legacyDB *sql.DB) error {
	rows, err := legacyDB.QueryContext(ctx, `
		SELECT id, shuttle_id, route_type, direction, departure_time,
		       arrival_time, days_of_week, is_active, created_at
		FROM shuttle_schedules
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	sortOrder := 0
	for rows.Next() {
		var id, shuttleID, routeType, direction string
		var departure string
		var arrival, daysOfWeek sql.NullString
		var isActive bool
		var createdAt time.Time
		if err := rows.Scan(&id, &shuttleID, &routeType, &direction, &departure,
			&arrival, &daysOfWeek, &isActive, &createdAt); err != nil {
			i.logger.Error().Err(err).Msg("scan schedule")
			i.stats.ErrorsEncountered++
			continue
		}

		sortOrder++
		departure = normalizeLegacyTime(departure)
		slot := shortTime(departure)
		var arrivalPtr *string
		if arrival.Valid && arrival.String != "" {
			a := normalizeLegacyTime(arrival.String)
			arrivalPtr = &a
			slot = slot + "-" + shortTime(a)
		}

		schedule := models.ShuttleSchedule{
			ID:            uuid.NewString(),
			ShuttleID:     shuttleID,
			RouteType:     models.RouteType(routeType),
			Direction:     models.Direction(direction),
			DepartureTime: departure,
			ArrivalTime:   arrivalPtr,
			TimeSlot:      slot,
			DaysOfWeek:    parseLegacyDays(daysOfWeek.String),
			IsActive:      isActive,
			SortOrder:     sortOrder,
			CreatedAt:     createdAt,
		}
		i.scheduleIDs[id] = schedule.ID

		if !i.options.DryRun {
			if err := i.db.WithContext(ctx).Create(&schedule).Error; err != nil {
				i.logger.Error().Err(err).Str("schedule_id", id).Msg("create schedule")
				i.stats.ErrorsEncountered++
				continue
			}
		}
		i.stats.SchedulesImported++
	}
	return rows.Err()
}

func (i *Importer) importRegistrations(ctx context.Context, legacyDB *sql.DB) error {
	rows, err := legacyDB.QueryContext(ctx, `
		SELECT id, schedule_id, passenger_name, passenger_phone, passenger_email,
		       registration_date, status, user_name, phone_number, created_at
		FROM shuttle_registrations
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var cutoff time.Time
	if i.options.RegistrationCutoffDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -i.options.RegistrationCutoffDays)
	}

	for rows.Next() {
		var id string
		var scheduleID, name, phone, email, status, userName, phoneNumber sql.NullString
		var registrationDate, createdAt time.Time
		if err := rows.Scan(&id, &scheduleID, &name, &phone, &email,
			&registrationDate, &status, &userName, &phoneNumber, &createdAt); err != nil {
			i.logger.Error().Err(err).Msg("scan registration")
			i.stats.ErrorsEncountered++
			continue
		}

		if !cutoff.IsZero() && registrationDate.Before(cutoff) {
			continue
		}

		newScheduleID, ok := i.scheduleIDs[scheduleID.String]
		if !ok {
			i.logger.Warn().Str("registration_id", id).Msg("registration references unknown schedule, skipping")
			i.stats.ErrorsEncountered++
			continue
		}

		// The oldest legacy rows stored the passenger under user_name /
		// phone_number before the passenger_* columns existed.
		passengerName := name.String
		if passengerName == "" {
			passengerName = userName.String
		}
		passengerPhone := phone.String
		if passengerPhone == "" {
			passengerPhone = phoneNumber.String
		}
		if passengerName == "" || passengerPhone == "" {
			i.logger.Warn().Str("registration_id", id).Msg("registration missing passenger identity, skipping")
			i.stats.ErrorsEncountered++
			continue
		}

		registration := models.ShuttleRegistration{
			ID:               id,
			ScheduleID:       newScheduleID,
			PassengerName:    passengerName,
			PassengerPhone:   passengerPhone,
			PassengerEmail:   email.String,
			RegistrationDate: registrationDate,
			Status:           models.RegistrationStatus(status.String),
			CreatedAt:        createdAt,
		}
		if registration.Status == "" {
			registration.Status = models.RegistrationConfirmed
		}
		if !i.options.DryRun {
			if err := i.db.WithContext(ctx).Create(&registration).Error; err != nil {
				i.logger.Error().Err(err).Str("registration_id", id).Msg("create registration")
				i.stats.ErrorsEncountered++
				continue
			}
		}
		i.stats.RegistrationsImported++
	}
	return rows.Err()
}

func (i *Importer) importUsers(ctx context.Context, legacyDB *sql.DB) error {
	rows, err := legacyDB.QueryContext(ctx, `
		SELECT id, email, password_hash, full_name, role, is_active, last_login, created_at
		FROM admin_users
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("query admin users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, email, passwordHash string
		var fullName, role sql.NullString
		var isActive bool
		var lastLogin sql.NullTime
		var createdAt time.Time
		if err := rows.Scan(&id, &email, &passwordHash, &fullName, &role,
			&isActive, &lastLogin, &createdAt); err != nil {
			i.logger.Error().Err(err).Msg("scan admin user")
			i.stats.ErrorsEncountered++
			continue
		}

		user := models.AdminUser{
			ID:           id,
			Email:        email,
			PasswordHash: passwordHash,
			FullName:     fullName.String,
			Role:         normalizeLegacyRole(role.String),
			IsActive:     isActive,
			CreatedAt:    createdAt,
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			user.LastLogin = &t
		}
		if !i.options.DryRun {
			if err := i.db.WithContext(ctx).Create(&user).Error; err != nil {
				i.logger.Error().Err(err).Str("email", email).Msg("create admin user")
				i.stats.ErrorsEncountered++
				continue
			}
		}
		i.stats.UsersImported++
	}
	return rows.Err()
}

func (i *Importer) reportProgress(step, total int, message string) {
	if i.progress != nil {
		i.progress(step, total, message)
	}
	i.logger.Info().Int("step", step).Int("total", total).Msg(message)
}

// parseLegacyDays parses a Postgres integer array literal like "{1,2,3}".
// Legacy data used 1=Monday..7=Sunday; 7 maps to 0 in the current scheme.
func parseLegacyDays(raw string) models.IntList {
	raw = strings.Trim(strings.TrimSpace(raw), "{}")
	if raw == "" {
		return models.IntList{1, 2, 3, 4, 5}
	}
	var days models.IntList
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if n == 7 {
			n = 0
		}
		if n >= 0 && n <= 6 {
			days = append(days, n)
		}
	}
	if len(days) == 0 {
		return models.IntList{1, 2, 3, 4, 5}
	}
	return days
}

// normalizeLegacyTime turns Postgres time values ("07:30:00",
// "0000-01-01T07:30:00Z" from some drivers) into HH:MM:SS.
func normalizeLegacyTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 {
		raw = strings.TrimSuffix(raw[idx+1:], "Z")
	}
	if len(raw) == 5 {
		return raw + ":00"
	}
	if len(raw) > 8 {
		return raw[:8]
	}
	return raw
}

func shortTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

func normalizeLegacyRole(raw string) models.RoleName {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "super_admin", "superadmin", "root":
		return models.RoleSuperAdmin
	case "viewer", "readonly":
		return models.RoleViewer
	default:
		return models.RoleAdmin
	}
}

// maskDSN hides credentials when logging connection strings.
func maskDSN(dsn string) string {
	if idx := strings.Index(dsn, "@"); idx >= 0 {
		if schemeEnd := strings.Index(dsn, "://"); schemeEnd >= 0 && schemeEnd < idx {
			return dsn[:schemeEnd+3] + "***" + dsn[idx:]
		}
	}
	return dsn
}
