package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"transferhub/internal/repositories/cache"
)

// HealthHandler reports liveness of the service and its dependencies.
type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Check handles GET /health. A degraded dependency flips the status but
// still returns 200 so load balancers keep routing while the issue is
// investigated.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	database := "connected"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		database = "unavailable"
	}

	redisState := "connected"
	if err := cache.HealthCheck(c.UserContext(), h.rdb); err != nil {
		redisState = "unavailable"
	}

	status := "ok"
	if database != "connected" || redisState != "connected" {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":  status,
		"version": "1.0.0",
		"services": fiber.Map{
			"database": database,
			"redis":    redisState,
		},
	})
}
