/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/shuttle_hub/internal/api"
	"github.com/friendsincode/shuttle_hub/internal/audit"
	"github.com/friendsincode/shuttle_hub/internal/auth"
	"github.com/friendsincode/shuttle_hub/internal/cache"
	"github.com/friendsincode/shuttle_hub/internal/config"
	"github.com/friendsincode/shuttle_hub/internal/db"
	"github.com/friendsincode/shuttle_hub/internal/events"
	"github.com/friendsincode/shuttle_hub/internal/importer"
	"github.com/friendsincode/shuttle_hub/internal/logbuffer"
	"github.com/friendsincode/shuttle_hub/internal/models"
	"github.com/friendsincode/shuttle_hub/internal/storage"
	"github.com/friendsincode/shuttle_hub/internal/telemetry"
	"github.com/friendsincode/shuttle_hub/internal/version"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db          *gorm.DB
	cache       *cache.Cache
	api         *api.API
	importerSvc *importer.Service
	auditSvc    *audit.Service
	bus         *events.Bus
	bridge      events.Bridge
	uploads     storage.ObjectStore
	updates     *version.Checker
	logBuffer   *logbuffer.Buffer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil,
// in which case the admin log endpoints report unavailable.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("shuttle-hub-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The event stream holds its connection open past any
			// sane request deadline.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			// Timetable uploads can be slow on bad office Wi-Fi.
			if strings.HasSuffix(r.URL.Path, "/import") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Keep the header deadline to protect against slowloris; the
		// middleware timeout covers everything except uploads and the
		// websocket stream.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := s.ensureBootstrapAdmin(); err != nil {
		return err
	}

	// Redis cache for the public timetable and seat counts. Optional;
	// the API degrades to direct queries without it.
	if s.cfg.RedisAddr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		timetableCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = timetableCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	// Archive store for uploaded timetable files.
	if s.cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.S3Config{
			Endpoint:     s.cfg.S3Endpoint,
			Region:       s.cfg.S3Region,
			Bucket:       s.cfg.S3Bucket,
			AccessKey:    s.cfg.S3AccessKeyID,
			SecretKey:    s.cfg.S3SecretAccessKey,
			UsePathStyle: s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("initialize s3 upload store: %w", err)
		}
		s.uploads = s3Store
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("timetable uploads archived to S3")
	} else {
		if err := os.MkdirAll(s.cfg.UploadRoot, 0o755); err != nil {
			return fmt.Errorf("create upload directory %s: %w", s.cfg.UploadRoot, err)
		}
		s.uploads = storage.NewFilesystemStore(s.cfg.UploadRoot, s.logger)
		s.logger.Info().Str("path", s.cfg.UploadRoot).Msg("timetable uploads archived to filesystem")
	}

	s.importerSvc = importer.New(database, s.logger, s.bus)
	s.auditSvc = audit.NewService(database, s.bus, s.logger)

	switch s.cfg.EventBridge {
	case "nats":
		bridge, err := events.NewNATSBridge(s.cfg.NATSURL, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("initialize nats event bridge: %w", err)
		}
		s.bridge = bridge
		s.DeferClose(bridge.Close)
	case "redis":
		bridge, err := events.NewRedisBridge(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("initialize redis event bridge: %w", err)
		}
		s.bridge = bridge
		s.DeferClose(bridge.Close)
	}

	s.api = api.New(
		database,
		[]byte(s.cfg.JWTSigningKey),
		s.cfg.JWTTTL,
		s.importerSvc,
		s.auditSvc,
		s.cache,
		s.uploads,
		s.cfg.MaxUploadSizeBytes(),
		s.bus,
		s.logger,
	)
	if s.logBuffer != nil {
		s.api.SetLogBuffer(s.logBuffer)
	}

	return nil
}

// ensureBootstrapAdmin creates the first super admin from the environment
// when the admin table is empty, so a fresh deployment can log in.
func (s *Server) ensureBootstrapAdmin() error {
	email := s.cfg.BootstrapAdminEmail
	password := s.cfg.BootstrapAdminPassword
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admin users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}
	admin := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Bootstrap Admin",
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info().Str("email", email).Msg("bootstrap super admin created")
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	s.updates = version.NewChecker(s.logger)
	s.updates.Start(ctx)

	if s.bridge != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.bridge.Start(ctx)
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}

	// Database connection pool metrics.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	// Periodic health heartbeat for websocket subscribers.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.bus.Publish(events.EventHealth, events.Payload{
					"status":    "ok",
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
			}
		}
	}()

	// Standalone metrics listener, kept off the public port.
	if s.cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		metricsServer := &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		s.DeferClose(func() error {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}
}

// runCacheInvalidationListener clears cached timetable views when events
// from other instances arrive over the bridge. Locally originated events
// already invalidated the cache in the handler, a second delete is a no-op.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	scheduleUpdated := s.bus.Subscribe(events.EventScheduleUpdated)
	importCompleted := s.bus.Subscribe(events.EventImportCompleted)

	defer func() {
		s.bus.Unsubscribe(events.EventScheduleUpdated, scheduleUpdated)
		s.bus.Unsubscribe(events.EventImportCompleted, importCompleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload) {
		shuttleID, _ := payload["shuttle_id"].(string)
		companyID, _ := payload["company_id"].(string)
		if shuttleID == "" && companyID == "" {
			return
		}
		s.cache.InvalidateShuttle(ctx, shuttleID, companyID)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-scheduleUpdated:
			invalidate(payload)
		case payload := <-importCompleted:
			invalidate(payload)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`, version.Version)
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
