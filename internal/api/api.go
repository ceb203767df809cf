/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/shuttle_hub/internal/audit"
	"github.com/friendsincode/shuttle_hub/internal/auth"
	"github.com/friendsincode/shuttle_hub/internal/cache"
	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/importer"
	"github.com/friendsincode/shuttle_hub/internal/logbuffer"
	"github.com/friendsincode/shuttle_hub/internal/models"
	"github.com/friendsincode/shuttle_hub/internal/storage"
	"github.com/friendsincode/shuttle_hub/internal/telemetry"
)

// API exposes HTTP handlers.
type API struct {
	db             *gorm.DB
	jwtSecret      []byte
	jwtTTL         time.Duration
	importerSvc    *importer.Service
	auditSvc       *audit.Service
	cache          *cache.Cache
	uploads        storage.ObjectStore
	maxUploadBytes int64
	bus            *events.Bus
	logBuffer      *logbuffer.Buffer
	logger         zerolog.Logger
}

// SetLogBuffer attaches the in-memory log ring buffer. Optional; the log
// endpoints report unavailable without it.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.logBuffer = buf
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, jwtTTL time.Duration, importerSvc *importer.Service, auditSvc *audit.Service, cacheSvc *cache.Cache, uploads storage.ObjectStore, maxUploadBytes int64, bus *events.Bus, logger zerolog.Logger) *API {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &API{
		db:             db,
		jwtSecret:      jwtSecret,
		jwtTTL:         jwtTTL,
		importerSvc:    importerSvc,
		auditSvc:       auditSvc,
		cache:          cacheSvc,
		uploads:        uploads,
		maxUploadBytes: maxUploadBytes,
		bus:            bus,
		logger:         logger,
	}
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Get("/public/companies", a.handlePublicCompanies)
		r.Get("/public/shuttles", a.handlePublicShuttles)
		r.Get("/public/shuttles/{shuttleID}/timetable", a.handlePublicShuttleTimetable)
		r.Get("/public/companies/{companyID}/shuttles", a.handlePublicCompanyShuttles)
		r.Get("/public/companies/{companyID}/timetable", a.handlePublicTimetable)
		r.Post("/public/registrations", a.handleRegistrationCreate)
		r.Delete("/public/registrations/{registrationID}", a.handleRegistrationCancel)
		r.Get("/public/schedules/{scheduleID}/registrations/count", a.handleRegistrationCount)

		r.Post("/auth/login", a.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/auth", func(r chi.Router) {
				r.Get("/verify", a.handleVerify)
				r.Post("/refresh", a.handleRefresh)
				r.Post("/reset-password", a.handleResetPassword)
				r.With(a.requireRoles(models.RoleSuperAdmin)).Post("/register", a.handleRegister)

				r.Route("/api-keys", func(kr chi.Router) {
					kr.Get("/", a.handleAPIKeysList)
					kr.Post("/", a.handleAPIKeysCreate)
					kr.Delete("/{keyID}", a.handleAPIKeysRevoke)
				})
			})

			pr.Route("/companies", func(r chi.Router) {
				r.Get("/", a.handleCompaniesList)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Post("/", a.handleCompaniesCreate)
				r.Route("/{companyID}", func(r chi.Router) {
					r.Get("/", a.handleCompaniesGet)
					r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Put("/", a.handleCompaniesUpdate)
					r.With(a.requireRoles(models.RoleSuperAdmin)).Delete("/", a.handleCompaniesDelete)
				})
			})

			pr.Route("/shuttles", func(r chi.Router) {
				r.Get("/", a.handleShuttlesList)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Post("/", a.handleShuttlesCreate)
				r.Route("/{shuttleID}", func(r chi.Router) {
					r.Get("/", a.handleShuttlesGet)
					r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Put("/", a.handleShuttlesUpdate)
					r.With(a.requireRoles(models.RoleSuperAdmin)).Delete("/", a.handleShuttlesDelete)

					r.Get("/schedules", a.handleSchedulesList)
					r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Post("/schedules", a.handleSchedulesCreate)
					r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Post("/schedules/replace", a.handleSchedulesReplace)

					r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Post("/import", a.handleTimetableUpload)
					r.Get("/imports", a.handleImportHistory)
				})
			})

			pr.Route("/schedules/{scheduleID}", func(r chi.Router) {
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Put("/", a.handleSchedulesUpdate)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Delete("/", a.handleSchedulesDelete)
			})

			pr.Route("/admin", func(r chi.Router) {
				r.Get("/dashboard", a.handleDashboard)
				r.Get("/registrations", a.handleAdminRegistrationsList)
				r.Get("/registrations/export.csv", a.handleRegistrationsExport)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Get("/audit", a.handleAuditList)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Get("/logs", a.handleSystemLogs)
				r.With(a.requireRoles(models.RoleSuperAdmin, models.RoleAdmin)).Get("/logs/stats", a.handleLogStats)
				r.With(a.requireRoles(models.RoleSuperAdmin)).Post("/cache/flush", a.handleCacheFlush)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.WebSocketConnections.Inc()
	defer telemetry.WebSocketConnections.Dec()

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{
			events.EventScheduleUpdated,
			events.EventRegistrationCreated,
			events.EventImportCompleted,
			events.EventHealth,
		}
	}

	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		subscribers = append(subscribers, a.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Error().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload := <-sub:
					if err := a.writeEvent(ctx, conn, eventTypes[i], payload); err != nil {
						a.logger.Error().Err(err).Msg("websocket write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, bytes)
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, exists := allowedSet[claims.Role]; exists {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, events.EventType(strings.TrimSpace(part)))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		payload["user_id"] = claims.UserID
		payload["user_email"] = claims.Email
	}

	return payload
}

// publishAuditEvent publishes an audit event with user and request context.
func (a *API) publishAuditEvent(r *http.Request, eventType events.EventType, data events.Payload) {
	payload := a.auditContext(r)
	for k, v := range data {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}
