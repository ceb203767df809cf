/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultCompanyListTTL = 5 * time.Minute
	DefaultTimetableTTL   = 10 * time.Minute
	DefaultShuttleListTTL = 5 * time.Minute
	DefaultSeatCountTTL   = 30 * time.Second
)

// Key prefixes for Redis cache
const (
	KeyCompanyList = "shuttlehub:cache:companies"
	KeyShuttleList = "shuttlehub:cache:shuttles:"  // + company_id
	KeyTimetable   = "shuttlehub:cache:timetable:" // + shuttle_id
	KeyOrganized   = "shuttlehub:cache:organized:" // + company_id
	KeySeatCount   = "shuttlehub:cache:seats:"     // + schedule_id + ":" + date
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	CompanyListTTL time.Duration
	ShuttleListTTL time.Duration
	TimetableTTL   time.Duration
	SeatCountTTL   time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		CompanyListTTL: DefaultCompanyListTTL,
		ShuttleListTTL: DefaultShuttleListTTL,
		TimetableTTL:   DefaultTimetableTTL,
		SeatCountTTL:   DefaultSeatCountTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Company caching methods

// CachedCompany represents a cached company record.
type CachedCompany struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ShuttleCount int    `json:"shuttle_count"`
}

// GetCompanyList retrieves the cached list of companies.
func (c *Cache) GetCompanyList(ctx context.Context) ([]CachedCompany, bool) {
	var companies []CachedCompany
	found, err := c.get(ctx, KeyCompanyList, &companies)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(companies)).Msg("company list cache hit")
	return companies, true
}

// SetCompanyList caches the list of companies.
func (c *Cache) SetCompanyList(ctx context.Context, companies []CachedCompany) error {
	c.logger.Debug().Int("count", len(companies)).Msg("caching company list")
	return c.set(ctx, KeyCompanyList, companies, c.config.CompanyListTTL)
}

// InvalidateCompanyList removes the company list from cache.
func (c *Cache) InvalidateCompanyList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating company list cache")
	return c.delete(ctx, KeyCompanyList)
}

// Shuttle list caching methods

// CachedShuttle represents a cached public shuttle record.
type CachedShuttle struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// GetShuttleList retrieves the cached active shuttles for a company.
func (c *Cache) GetShuttleList(ctx context.Context, companyID string) ([]CachedShuttle, bool) {
	var shuttles []CachedShuttle
	found, err := c.get(ctx, KeyShuttleList+companyID, &shuttles)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("company_id", companyID).Int("count", len(shuttles)).Msg("shuttle list cache hit")
	return shuttles, true
}

// SetShuttleList caches the active shuttles for a company.
func (c *Cache) SetShuttleList(ctx context.Context, companyID string, shuttles []CachedShuttle) error {
	return c.set(ctx, KeyShuttleList+companyID, shuttles, c.config.ShuttleListTTL)
}

// Timetable caching methods

// CachedScheduleRow represents one schedule row inside a cached timetable.
type CachedScheduleRow struct {
	ID            string `json:"id"`
	Route         string `json:"route"`
	Direction     string `json:"direction"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time,omitempty"`
	SortOrder     int    `json:"sort_order"`
	IsActive      bool   `json:"is_active"`
}

// CachedTimetable represents the cached flat timetable for a shuttle.
type CachedTimetable struct {
	ShuttleID   string              `json:"shuttle_id"`
	ShuttleName string              `json:"shuttle_name"`
	Rows        []CachedScheduleRow `json:"rows"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// GetTimetable retrieves the cached timetable for a shuttle.
func (c *Cache) GetTimetable(ctx context.Context, shuttleID string) (*CachedTimetable, bool) {
	var tt CachedTimetable
	found, err := c.get(ctx, KeyTimetable+shuttleID, &tt)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("shuttle_id", shuttleID).Int("rows", len(tt.Rows)).Msg("timetable cache hit")
	return &tt, true
}

// SetTimetable caches the timetable for a shuttle.
func (c *Cache) SetTimetable(ctx context.Context, tt *CachedTimetable) error {
	c.logger.Debug().Str("shuttle_id", tt.ShuttleID).Int("rows", len(tt.Rows)).Msg("caching timetable")
	return c.set(ctx, KeyTimetable+tt.ShuttleID, tt, c.config.TimetableTTL)
}

// InvalidateTimetable removes a shuttle's timetable from cache.
func (c *Cache) InvalidateTimetable(ctx context.Context, shuttleID string) error {
	c.logger.Debug().Str("shuttle_id", shuttleID).Msg("invalidating timetable cache")
	return c.delete(ctx, KeyTimetable+shuttleID)
}

// Organized view caching methods

// CachedOrganizedView is the public route/direction grouping for a company,
// stored as pre-marshalled JSON so the HTTP layer can serve it verbatim.
type CachedOrganizedView struct {
	CompanyID   string          `json:"company_id"`
	Body        json.RawMessage `json:"body"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// GetOrganizedView retrieves the cached organized timetable for a company.
func (c *Cache) GetOrganizedView(ctx context.Context, companyID string) (*CachedOrganizedView, bool) {
	var view CachedOrganizedView
	found, err := c.get(ctx, KeyOrganized+companyID, &view)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("company_id", companyID).Msg("organized view cache hit")
	return &view, true
}

// SetOrganizedView caches the organized timetable for a company.
func (c *Cache) SetOrganizedView(ctx context.Context, view *CachedOrganizedView) error {
	c.logger.Debug().Str("company_id", view.CompanyID).Msg("caching organized view")
	return c.set(ctx, KeyOrganized+view.CompanyID, view, c.config.TimetableTTL)
}

// InvalidateOrganizedView removes a company's organized timetable from cache.
func (c *Cache) InvalidateOrganizedView(ctx context.Context, companyID string) error {
	c.logger.Debug().Str("company_id", companyID).Msg("invalidating organized view cache")
	return c.delete(ctx, KeyOrganized+companyID)
}

// Seat count caching methods

// GetSeatCount retrieves the cached confirmed registration count for a
// schedule slot on a travel date (date formatted YYYY-MM-DD).
func (c *Cache) GetSeatCount(ctx context.Context, scheduleID, date string) (int, bool) {
	var count int
	found, err := c.get(ctx, KeySeatCount+scheduleID+":"+date, &count)
	if err != nil || !found {
		return 0, false
	}
	return count, true
}

// SetSeatCount caches the confirmed registration count for a schedule slot.
func (c *Cache) SetSeatCount(ctx context.Context, scheduleID, date string, count int) error {
	return c.set(ctx, KeySeatCount+scheduleID+":"+date, count, c.config.SeatCountTTL)
}

// InvalidateSeatCount removes a schedule slot's seat count from cache.
func (c *Cache) InvalidateSeatCount(ctx context.Context, scheduleID, date string) error {
	return c.delete(ctx, KeySeatCount+scheduleID+":"+date)
}

// Bulk invalidation methods

// InvalidateShuttle removes all caches related to a shuttle and its company.
func (c *Cache) InvalidateShuttle(ctx context.Context, shuttleID, companyID string) error {
	c.logger.Debug().Str("shuttle_id", shuttleID).Msg("invalidating all shuttle caches")

	if err := c.InvalidateTimetable(ctx, shuttleID); err != nil {
		return err
	}

	if companyID != "" {
		if err := c.InvalidateOrganizedView(ctx, companyID); err != nil {
			return err
		}
		if err := c.delete(ctx, KeyShuttleList+companyID); err != nil {
			return err
		}
	}

	return nil
}

// InvalidateCompany removes all caches related to a company.
func (c *Cache) InvalidateCompany(ctx context.Context, companyID string) error {
	c.logger.Debug().Str("company_id", companyID).Msg("invalidating all company caches")

	if err := c.InvalidateCompanyList(ctx); err != nil {
		return err
	}
	if err := c.InvalidateOrganizedView(ctx, companyID); err != nil {
		return err
	}
	return c.delete(ctx, KeyShuttleList+companyID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "shuttlehub:cache:*")
}
