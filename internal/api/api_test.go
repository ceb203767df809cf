/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/auth"
	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/importer"
	"github.com/friendsincode/shuttle_hub/internal/models"
	"github.com/friendsincode/shuttle_hub/internal/storage"
)

var testSecret = []byte("test-secret-0123456789abcdef0123")

func newTestAPI(t *testing.T) (*API, *chi.Mux, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.AdminUser{}, &models.Company{}, &models.Shuttle{},
		&models.ShuttleSchedule{}, &models.ShuttleRegistration{},
		&models.ImportLog{}, &models.APIKey{}, &models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	importerSvc := importer.New(db, zerolog.Nop(), bus)
	uploads := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())

	a := New(db, testSecret, time.Hour, importerSvc, nil, nil, uploads, 10<<20, bus, zerolog.Nop())

	r := chi.NewRouter()
	a.Routes(r)
	return a, r, db
}

func seedAdmin(t *testing.T, db *gorm.DB, role models.RoleName) (models.AdminUser, string) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        string(role) + "@example.com",
		PasswordHash: hash,
		FullName:     "Test " + string(role),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}

	token, err := auth.Issue(testSecret, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func seedShuttle(t *testing.T, db *gorm.DB, capacity int) models.Shuttle {
	t.Helper()

	company := models.Company{ID: uuid.NewString(), Name: "Metro Lines " + uuid.NewString()[:8]}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	shuttle := models.Shuttle{
		ID:        uuid.NewString(),
		Name:      "Morning Express",
		CompanyID: company.ID,
		Capacity:  capacity,
		Status:    models.ShuttleActive,
	}
	if err := db.Create(&shuttle).Error; err != nil {
		t.Fatalf("create shuttle: %v", err)
	}
	return shuttle
}

func seedSchedule(t *testing.T, db *gorm.DB, shuttleID string) models.ShuttleSchedule {
	t.Helper()

	schedule := models.ShuttleSchedule{
		ID:            uuid.NewString(),
		ShuttleID:     shuttleID,
		RouteType:     models.RouteSavidorToTzafrir,
		Direction:     models.DirectionOutbound,
		DepartureTime: "07:30:00",
		TimeSlot:      "07:30",
		DaysOfWeek:    models.IntList{1, 2, 3, 4, 5},
		IsActive:      true,
		SortOrder:     1,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return schedule
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	_, r, _ := newTestAPI(t)

	rr := doJSON(t, r, "GET", "/api/v1/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	_, r, db := newTestAPI(t)
	user, _ := seedAdmin(t, db, models.RoleAdmin)

	rr := doJSON(t, r, "POST", "/api/v1/auth/login", "", loginRequest{
		Email:    user.Email,
		Password: "password123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected token in response")
	}
	if resp.User.Email != user.Email {
		t.Errorf("user email = %q, want %q", resp.User.Email, user.Email)
	}

	verify := doJSON(t, r, "GET", "/api/v1/auth/verify", resp.Token, nil)
	if verify.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", verify.Code)
	}

	var updated models.AdminUser
	if err := db.First(&updated, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if updated.LastLogin == nil {
		t.Error("expected last_login to be recorded")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, r, db := newTestAPI(t)
	user, _ := seedAdmin(t, db, models.RoleAdmin)

	rr := doJSON(t, r, "POST", "/api/v1/auth/login", "", loginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireRolesViewerForbidden(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, token := seedAdmin(t, db, models.RoleViewer)

	rr := doJSON(t, r, "POST", "/api/v1/companies", token, companyRequest{Name: "New Co"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCompanyCRUD(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, adminToken := seedAdmin(t, db, models.RoleAdmin)
	_, superToken := seedAdmin(t, db, models.RoleSuperAdmin)

	created := doJSON(t, r, "POST", "/api/v1/companies", adminToken, companyRequest{
		Name:         "Metro Lines",
		ContactEmail: "ops@metro.example",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", created.Code, created.Body.String())
	}
	var company models.Company
	if err := json.NewDecoder(created.Body).Decode(&company); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := doJSON(t, r, "GET", "/api/v1/companies/"+company.ID, adminToken, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", got.Code)
	}

	updated := doJSON(t, r, "PUT", "/api/v1/companies/"+company.ID, adminToken, companyRequest{
		ContactPhone: "03-1234567",
	})
	if updated.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", updated.Code)
	}

	// Deletion requires super_admin and refuses companies with shuttles.
	shuttle := models.Shuttle{ID: uuid.NewString(), Name: "S1", CompanyID: company.ID, Capacity: 50, Status: models.ShuttleActive}
	if err := db.Create(&shuttle).Error; err != nil {
		t.Fatalf("create shuttle: %v", err)
	}
	blocked := doJSON(t, r, "DELETE", "/api/v1/companies/"+company.ID, superToken, nil)
	if blocked.Code != http.StatusConflict {
		t.Fatalf("delete with shuttles: expected 409, got %d", blocked.Code)
	}

	if err := db.Delete(&models.Shuttle{}, "id = ?", shuttle.ID).Error; err != nil {
		t.Fatalf("cleanup shuttle: %v", err)
	}
	asAdmin := doJSON(t, r, "DELETE", "/api/v1/companies/"+company.ID, adminToken, nil)
	if asAdmin.Code != http.StatusForbidden {
		t.Fatalf("delete as admin: expected 403, got %d", asAdmin.Code)
	}
	deleted := doJSON(t, r, "DELETE", "/api/v1/companies/"+company.ID, superToken, nil)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", deleted.Code)
	}
}

func TestRegistrationDuplicateAndCapacity(t *testing.T) {
	_, r, db := newTestAPI(t)
	shuttle := seedShuttle(t, db, 2)
	schedule := seedSchedule(t, db, shuttle.ID)

	register := func(phone string) *httptest.ResponseRecorder {
		return doJSON(t, r, "POST", "/api/v1/public/registrations", "", registrationRequest{
			ScheduleID:     schedule.ID,
			PassengerName:  "Passenger " + phone,
			PassengerPhone: phone,
			Date:           "2026-09-15",
		})
	}

	if rr := register("050-0000001"); rr.Code != http.StatusCreated {
		t.Fatalf("first registration: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := register("050-0000001"); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate registration: expected 409, got %d", rr.Code)
	}
	if rr := register("050-0000002"); rr.Code != http.StatusCreated {
		t.Fatalf("second registration: expected 201, got %d", rr.Code)
	}
	if rr := register("050-0000003"); rr.Code != http.StatusConflict {
		t.Fatalf("over capacity: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	// A different travel date has its own capacity pool.
	other := doJSON(t, r, "POST", "/api/v1/public/registrations", "", registrationRequest{
		ScheduleID:     schedule.ID,
		PassengerName:  "Passenger",
		PassengerPhone: "050-0000003",
		Date:           "2026-09-16",
	})
	if other.Code != http.StatusCreated {
		t.Fatalf("other date: expected 201, got %d", other.Code)
	}

	count := doJSON(t, r, "GET", "/api/v1/public/schedules/"+schedule.ID+"/registrations/count?date=2026-09-15", "", nil)
	if count.Code != http.StatusOK {
		t.Fatalf("count: expected 200, got %d", count.Code)
	}
	var counts struct {
		Confirmed int `json:"confirmed"`
	}
	if err := json.NewDecoder(count.Body).Decode(&counts); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if counts.Confirmed != 2 {
		t.Errorf("confirmed = %d, want 2", counts.Confirmed)
	}
}

func TestRegistrationCancelRequiresMatchingPhone(t *testing.T) {
	_, r, db := newTestAPI(t)
	shuttle := seedShuttle(t, db, 10)
	schedule := seedSchedule(t, db, shuttle.ID)

	created := doJSON(t, r, "POST", "/api/v1/public/registrations", "", registrationRequest{
		ScheduleID:     schedule.ID,
		PassengerName:  "Dana",
		PassengerPhone: "050-1111111",
		Date:           "2026-09-15",
	})
	if created.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", created.Code)
	}
	var registration models.ShuttleRegistration
	if err := json.NewDecoder(created.Body).Decode(&registration); err != nil {
		t.Fatalf("decode: %v", err)
	}

	wrong := doJSON(t, r, "DELETE", "/api/v1/public/registrations/"+registration.ID+"?phone=050-9999999", "", nil)
	if wrong.Code != http.StatusForbidden {
		t.Fatalf("wrong phone: expected 403, got %d", wrong.Code)
	}

	ok := doJSON(t, r, "DELETE", "/api/v1/public/registrations/"+registration.ID+"?phone=050-1111111", "", nil)
	if ok.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", ok.Code)
	}

	again := doJSON(t, r, "DELETE", "/api/v1/public/registrations/"+registration.ID+"?phone=050-1111111", "", nil)
	if again.Code != http.StatusConflict {
		t.Fatalf("cancel twice: expected 409, got %d", again.Code)
	}
}

func TestRegistrationRejectsInactiveSchedule(t *testing.T) {
	_, r, db := newTestAPI(t)
	shuttle := seedShuttle(t, db, 10)
	schedule := seedSchedule(t, db, shuttle.ID)
	if err := db.Model(&schedule).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rr := doJSON(t, r, "POST", "/api/v1/public/registrations", "", registrationRequest{
		ScheduleID:     schedule.ID,
		PassengerName:  "Dana",
		PassengerPhone: "050-1111111",
		Date:           "2026-09-15",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

const uploadCSV = `time_slot,route_description,sort_order,is_break
7:00,Outbound from Savidor,1,false
12:30-13:30,Break,2,true
8:00,Outbound from Savidor,3,false
`

func TestTimetableUploadEndToEnd(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, token := seedAdmin(t, db, models.RoleAdmin)
	shuttle := seedShuttle(t, db, 50)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "timetable.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(uploadCSV)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/shuttles/"+shuttle.ID+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var result importer.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Processed != 3 {
		t.Errorf("result = %+v, want success with 3 rows", result)
	}

	var reloaded models.Shuttle
	if err := db.First(&reloaded, "id = ?", shuttle.ID).Error; err != nil {
		t.Fatalf("reload shuttle: %v", err)
	}
	if reloaded.CSVStatus != models.ImportSuccess {
		t.Errorf("csv status = %q, want success", reloaded.CSVStatus)
	}
	if reloaded.CSVFilePath == "" {
		t.Error("expected archive path to be recorded")
	}

	history := doJSON(t, r, "GET", "/api/v1/shuttles/"+shuttle.ID+"/imports", token, nil)
	if history.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", history.Code)
	}
	var hist struct {
		Imports []models.ImportLog `json:"imports"`
	}
	if err := json.NewDecoder(history.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Imports) != 1 || hist.Imports[0].Status != models.ImportSuccess {
		t.Errorf("history = %+v, want one successful import", hist.Imports)
	}
}

func TestTimetableUploadUnknownShuttle(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, token := seedAdmin(t, db, models.RoleAdmin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "timetable.csv")
	_, _ = part.Write([]byte(uploadCSV))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/shuttles/"+uuid.NewString()+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPublicTimetableGroupsByRouteAndDirection(t *testing.T) {
	_, r, db := newTestAPI(t)
	shuttle := seedShuttle(t, db, 50)

	rows := []models.ShuttleSchedule{
		{ID: uuid.NewString(), ShuttleID: shuttle.ID, RouteType: models.RouteSavidorToTzafrir, Direction: models.DirectionOutbound, DepartureTime: "07:00:00", IsActive: true, SortOrder: 1},
		{ID: uuid.NewString(), ShuttleID: shuttle.ID, RouteType: models.RouteSavidorToTzafrir, Direction: models.DirectionReturn, DepartureTime: "16:00:00", IsActive: true, SortOrder: 2},
		{ID: uuid.NewString(), ShuttleID: shuttle.ID, RouteType: models.RouteKiryatAryehToTzafrir, Direction: models.DirectionOutbound, DepartureTime: "07:30:00", IsActive: true, SortOrder: 3},
		{ID: uuid.NewString(), ShuttleID: shuttle.ID, RouteType: models.RouteKiryatAryehToTzafrir, Direction: models.DirectionOutbound, DepartureTime: "08:30:00", IsActive: false, SortOrder: 4},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("create schedules: %v", err)
	}

	rr := doJSON(t, r, "GET", "/api/v1/public/companies/"+shuttle.CompanyID+"/timetable", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Routes []struct {
			RouteType string                   `json:"route_type"`
			Outbound  []models.ShuttleSchedule `json:"outbound"`
			Return    []models.ShuttleSchedule `json:"return"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Routes) != 2 {
		t.Fatalf("expected 2 route groups, got %d", len(resp.Routes))
	}
	if len(resp.Routes[0].Outbound) != 1 || len(resp.Routes[0].Return) != 1 {
		t.Errorf("savidor group = %d outbound / %d return, want 1/1",
			len(resp.Routes[0].Outbound), len(resp.Routes[0].Return))
	}
	// The inactive departure must not leak into the public view.
	if len(resp.Routes[1].Outbound) != 1 {
		t.Errorf("kiryat group = %d outbound, want 1", len(resp.Routes[1].Outbound))
	}
}

func TestSchedulesBulkReplace(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, token := seedAdmin(t, db, models.RoleAdmin)
	shuttle := seedShuttle(t, db, 50)
	seedSchedule(t, db, shuttle.ID)

	body := map[string]any{
		"schedules": []map[string]any{
			{"route_type": "savidor_to_tzafrir", "direction": "outbound", "departure_time": "7:00"},
			{"route_type": "savidor_to_tzafrir", "direction": "return", "departure_time": "16:30"},
		},
	}
	rr := doJSON(t, r, "POST", "/api/v1/shuttles/"+shuttle.ID+"/schedules/replace", token, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var schedules []models.ShuttleSchedule
	if err := db.Where("shuttle_id = ?", shuttle.ID).Order("sort_order ASC").Find(&schedules).Error; err != nil {
		t.Fatalf("load schedules: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("expected 2 schedules after replace, got %d", len(schedules))
	}
	if schedules[0].DepartureTime != "07:00:00" {
		t.Errorf("departure = %q, want normalized 07:00:00", schedules[0].DepartureTime)
	}
}

func TestAuthRequiredForAdminRoutes(t *testing.T) {
	_, r, _ := newTestAPI(t)

	rr := doJSON(t, r, "GET", "/api/v1/companies", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestPublicCompaniesOnlyListsThoseWithActiveShuttles(t *testing.T) {
	_, r, db := newTestAPI(t)

	shuttle := seedShuttle(t, db, 10)
	// A company with no shuttles should not appear.
	empty := models.Company{ID: uuid.NewString(), Name: "No Fleet Ltd"}
	if err := db.Create(&empty).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}

	rr := doJSON(t, r, http.MethodGet, "/api/v1/public/companies", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Companies []struct {
			ID           string `json:"id"`
			ShuttleCount int    `json:"shuttle_count"`
		} `json:"companies"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(resp.Companies))
	}
	if resp.Companies[0].ID != shuttle.CompanyID || resp.Companies[0].ShuttleCount != 1 {
		t.Errorf("unexpected company entry: %+v", resp.Companies[0])
	}
}

func TestPublicShuttleTimetableFlatRows(t *testing.T) {
	_, r, db := newTestAPI(t)

	shuttle := seedShuttle(t, db, 10)
	seedSchedule(t, db, shuttle.ID)
	inactive := models.ShuttleSchedule{
		ID:            uuid.NewString(),
		ShuttleID:     shuttle.ID,
		RouteType:     models.RouteSavidorToTzafrir,
		Direction:     models.DirectionReturn,
		DepartureTime: "17:30:00",
		IsActive:      false,
		SortOrder:     2,
	}
	if err := db.Create(&inactive).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	rr := doJSON(t, r, http.MethodGet, "/api/v1/public/shuttles/"+shuttle.ID+"/timetable", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		ShuttleName string `json:"shuttle_name"`
		Rows        []struct {
			DepartureTime string `json:"departure_time"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ShuttleName != shuttle.Name {
		t.Errorf("shuttle_name = %q", resp.ShuttleName)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].DepartureTime != "07:30:00" {
		t.Errorf("rows = %+v", resp.Rows)
	}

	rr = doJSON(t, r, http.MethodGet, "/api/v1/public/shuttles/"+uuid.NewString()+"/timetable", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown shuttle status = %d", rr.Code)
	}
}

func TestCacheFlushWithoutCacheUnavailable(t *testing.T) {
	_, r, db := newTestAPI(t)
	_, token := seedAdmin(t, db, models.RoleSuperAdmin)

	rr := doJSON(t, r, http.MethodPost, "/api/v1/admin/cache/flush", token, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without redis", rr.Code)
	}
}
