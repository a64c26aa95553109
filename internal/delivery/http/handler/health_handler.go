package handler

import (
	"context"
	"time"

	"gigwatch/internal/database"
	"gigwatch/internal/infrastructure/cache"
	"gigwatch/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type HealthHandler struct {
	db    database.DB
	redis *cache.Redis
}

func NewHealthHandler(db database.DB, redis *cache.Redis) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Handle(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbHealthy := h != nil && h.db != nil && h.db.Ping(ctx) == nil
	redisHealthy := h != nil && h.redis != nil && h.redis.Ping(ctx) == nil

	data := fiber.Map{
		"database": dbHealthy,
		"redis":    redisHealthy,
	}
	if !dbHealthy {
		return response.Error(c, fiber.StatusServiceUnavailable, "", data)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}
