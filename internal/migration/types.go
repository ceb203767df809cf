/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package migration moves data out of the legacy shuttle booking
// deployment into the current schema.
package migration

// Options controls what a legacy import touches.
type Options struct {
	DryRun            bool
	SkipUsers         bool
	SkipRegistrations bool

	// RegistrationCutoffDays drops registrations older than this many
	// days. 0 imports everything.
	RegistrationCutoffDays int
}

// Stats tracks what an import created.
type Stats struct {
	CompaniesImported     int
	ShuttlesImported      int
	SchedulesImported     int
	RegistrationsImported int
	UsersImported         int
	ErrorsEncountered     int
}

// ProgressCallback reports step-by-step progress to the caller.
type ProgressCallback func(step, total int, message string)
