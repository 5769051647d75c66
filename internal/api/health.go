package api

import (
	"context"
	"time"

	"github.com/modelzoo/backend/internal/services/circuitbreaker"
	"github.com/modelzoo/backend/internal/services/database"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	redisClient *redis.Client
	db          *database.DB
	breakers    *circuitbreaker.Manager
}

func NewHealthHandler(redisClient *redis.Client, db *database.DB, breakers *circuitbreaker.Manager) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		db:          db,
		breakers:    breakers,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	checks := fiber.Map{
		"redis":    h.checkRedis(),
		"database": h.checkDatabase(),
	}
	if states := h.breakers.States(); len(states) > 0 {
		checks["circuit_breakers"] = states
	}

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	if checks["redis"] == "unhealthy" || checks["database"] == "unhealthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
