package db

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/models"
)

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestBackfillScheduleTimeSlots(t *testing.T) {
	database := newMigratedDB(t)

	arrival := "08:15:00"
	rows := []models.ShuttleSchedule{
		{ID: uuid.NewString(), ShuttleID: uuid.NewString(), DepartureTime: "07:30:00", IsActive: true},
		{ID: uuid.NewString(), ShuttleID: uuid.NewString(), DepartureTime: "08:00:00", ArrivalTime: &arrival, IsActive: true},
		{ID: uuid.NewString(), ShuttleID: uuid.NewString(), DepartureTime: "09:00:00", TimeSlot: "already set", IsActive: true},
	}
	for i := range rows {
		if err := database.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create schedule: %v", err)
		}
	}

	if err := backfillScheduleTimeSlots(database); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	want := []string{"07:30", "08:00-08:15", "already set"}
	for i, row := range rows {
		var got models.ShuttleSchedule
		if err := database.First(&got, "id = ?", row.ID).Error; err != nil {
			t.Fatalf("reload schedule: %v", err)
		}
		if got.TimeSlot != want[i] {
			t.Errorf("row %d: time_slot = %q, want %q", i, got.TimeSlot, want[i])
		}
	}
}

func TestNormalizeLegacyRoles(t *testing.T) {
	database := newMigratedDB(t)

	user := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        "legacy@example.com",
		PasswordHash: "x",
		Role:         "superadmin",
		IsActive:     true,
	}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := normalizeLegacyRoles(database); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	var got models.AdminUser
	if err := database.First(&got, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Role != models.RoleSuperAdmin {
		t.Errorf("role = %q, want %q", got.Role, models.RoleSuperAdmin)
	}
}
