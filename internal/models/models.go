/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RoleName enumerates the admin RBAC roles.
type RoleName string

const (
	RoleSuperAdmin RoleName = "super_admin"
	RoleAdmin      RoleName = "admin"
	RoleViewer     RoleName = "viewer"
)

// RouteType identifies the physical route a schedule entry belongs to.
type RouteType string

const (
	RouteSavidorToTzafrir     RouteType = "savidor_to_tzafrir"
	RouteKiryatAryehToTzafrir RouteType = "kiryat_aryeh_to_tzafrir"
)

// Direction of travel relative to the Tzafrir campus.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

// ShuttleStatus reflects whether a shuttle is in service.
type ShuttleStatus string

const (
	ShuttleActive   ShuttleStatus = "active"
	ShuttleInactive ShuttleStatus = "inactive"
)

// ImportStatus tracks the lifecycle of a timetable import.
type ImportStatus string

const (
	ImportProcessing ImportStatus = "processing"
	ImportSuccess    ImportStatus = "success"
	ImportError      ImportStatus = "error"
)

// RegistrationStatus tracks a passenger registration.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationCompleted RegistrationStatus = "completed"
)

// AdminUser represents an authenticated dashboard account.
type AdminUser struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	FullName     string
	Role         RoleName `gorm:"type:varchar(16)"`
	IsActive     bool     `gorm:"default:true"`
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Company is a transportation provider operating one or more shuttles.
type Company struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"uniqueIndex"`
	ContactEmail string
	ContactPhone string `gorm:"type:varchar(50)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Shuttles []Shuttle `gorm:"foreignKey:CompanyID" json:",omitempty"`
}

// Shuttle is a vehicle with an importable timetable.
type Shuttle struct {
	ID        string        `gorm:"type:uuid;primaryKey"`
	Name      string        `gorm:"index"`
	CompanyID string        `gorm:"type:uuid;index"`
	Capacity  int           `gorm:"default:50"`
	Status    ShuttleStatus `gorm:"type:varchar(16);default:active"`

	// Last timetable import metadata.
	CSVStatus     ImportStatus `gorm:"type:varchar(16)"`
	CSVFilePath   string
	CSVUploadedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Company   *Company          `gorm:"foreignKey:CompanyID" json:",omitempty"`
	Schedules []ShuttleSchedule `gorm:"foreignKey:ShuttleID" json:",omitempty"`
}

// IntList stores a list of weekday numbers portably across backends.
type IntList []int

// ShuttleSchedule is one departure produced by a timetable import or
// entered by hand. Times are wall-clock strings normalized to HH:MM:SS.
type ShuttleSchedule struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	ShuttleID        string    `gorm:"type:uuid;index"`
	RouteType        RouteType `gorm:"type:varchar(32);index"`
	Direction        Direction `gorm:"type:varchar(16);index"`
	DepartureTime    string    `gorm:"type:varchar(8)"`
	ArrivalTime      *string   `gorm:"type:varchar(8)"`
	TimeSlot         string
	RouteDescription string
	DaysOfWeek       IntList `gorm:"type:text;serializer:json"`
	IsBreak          bool
	// No column default: break rows are created inactive and a default
	// tag would make gorm drop the explicit false on insert.
	IsActive  bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time

	Shuttle *Shuttle `gorm:"foreignKey:ShuttleID" json:",omitempty"`
}

// ShuttleRegistration is a passenger seat reservation for one schedule
// entry on one calendar date.
type ShuttleRegistration struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	ScheduleID       string `gorm:"type:uuid;index"`
	PassengerName    string
	PassengerPhone   string `gorm:"type:varchar(50);index"`
	PassengerEmail   string
	RegistrationDate time.Time          `gorm:"index"`
	Status           RegistrationStatus `gorm:"type:varchar(16);default:confirmed"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Schedule *ShuttleSchedule `gorm:"foreignKey:ScheduleID" json:",omitempty"`
}

// ImportLog records one timetable import attempt for a shuttle.
type ImportLog struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	ShuttleID        string `gorm:"type:uuid;index"`
	Filename         string
	Status           ImportStatus `gorm:"type:varchar(16);index"`
	ProcessedRecords int
	ErrorMessage     string `gorm:"type:text"`
	ProcessedAt      *time.Time
	CreatedAt        time.Time
}
